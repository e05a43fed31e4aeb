package sim

import (
	"errors"
	"fmt"
)

// ErrorKind classifies kernel errors by how the caller must react.
type ErrorKind int

const (
	// KindConfiguration means the simulation graph cannot be trusted to execute.
	// The outermost driver terminates the run; library code only reports it.
	KindConfiguration ErrorKind = iota + 1
	// KindAdvisory means metadata is incomplete but wiring is intact.
	KindAdvisory
	// KindContract means a caller broke the documented API contract.
	KindContract
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAdvisory:
		return "advisory"
	case KindContract:
		return "contract"
	default:
		return "unknown"
	}
}

// Sentinel errors, matched with errors.Is.
var (
	ErrNotRegistered     = errors.New("element not registered")
	ErrRegistrySealed    = errors.New("registry sealed after first build")
	ErrDuplicatePort     = errors.New("duplicate port name")
	ErrDuplicateName     = errors.New("duplicate component name")
	ErrPortReconfigured  = errors.New("port already configured")
	ErrSlotOverpopulated = errors.New("slot allows one sub-component")
	ErrSlotNotDense      = errors.New("slot requires dense population")
	ErrAlreadyBuilt      = errors.New("component already attached")
	ErrNotBuilt          = errors.New("component not built")
	ErrDestroyed         = errors.New("component info destroyed")
	ErrUnknownUnit       = errors.New("unknown component")
	ErrInvalidTime       = errors.New("invalid time value")
	ErrRegionMismatch    = errors.New("shared region mismatch")
	ErrRegionPublished   = errors.New("shared region is read-only")
	ErrWrongAPI          = errors.New("element does not implement requested API")
	ErrInvalidModel      = errors.New("invalid model description")
)

// Error wraps a sentinel with its classification and the place it was detected.
type Error struct {
	Kind      ErrorKind
	Op        string
	Component string
	Err       error
	Message   string
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Component != "" {
		return fmt.Sprintf("%s [%s] %s", e.Op, e.Component, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

func configErr(op, component string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Component: component, Err: err, Message: fmt.Sprintf(format, args...)}
}

func contractErr(op, component string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindContract, Op: op, Component: component, Err: err, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err, or 0 if err is not a kernel error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsConfiguration reports whether err is a configuration defect.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsContract reports whether err is an API contract violation.
func IsContract(err error) bool {
	return KindOf(err) == KindContract
}
