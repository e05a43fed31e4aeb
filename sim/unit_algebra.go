package sim

import (
	"fmt"
	"math/big"
	"strings"
)

// Unit is the base unit of a UnitAlgebra value.
type Unit string

const (
	UnitSeconds Unit = "s"
	UnitHertz   Unit = "Hz"
	UnitNone    Unit = ""
)

// siPrefixes maps an SI prefix to its power of ten.
var siPrefixes = map[string]int64{
	"":  0,
	"f": -15,
	"p": -12,
	"n": -9,
	"u": -6,
	"µ": -6,
	"m": -3,
	"k": 3,
	"K": 3,
	"M": 6,
	"G": 9,
	"T": 12,
}

// UnitAlgebra is an exact rational quantity with a unit, e.g. "2.5 GHz" or "10ns".
type UnitAlgebra struct {
	value *big.Rat
	unit  Unit
}

// ParseUnitAlgebra parses "<number>[ ]<prefix><unit>". The number may be a decimal
// or a fraction ("1/3"). Accepted units are s and Hz; a bare number is unitless.
func ParseUnitAlgebra(s string) (UnitAlgebra, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return UnitAlgebra{}, fmt.Errorf("%w: empty quantity", ErrInvalidTime)
	}
	split := len(in)
	for i, r := range in {
		if !strings.ContainsRune("0123456789.+-/eE", r) {
			split = i
			break
		}
	}
	// an exponent marker directly followed by a unit letter is not an exponent
	num := strings.TrimSpace(in[:split])
	suffix := strings.TrimSpace(in[split:])
	if strings.HasSuffix(num, "e") || strings.HasSuffix(num, "E") {
		num = num[:len(num)-1]
		suffix = in[len(num):]
	}
	value, ok := new(big.Rat).SetString(num)
	if !ok {
		return UnitAlgebra{}, fmt.Errorf("%w: bad number in %q", ErrInvalidTime, s)
	}

	var unit Unit
	var prefix string
	switch {
	case suffix == "":
		unit = UnitNone
	case strings.HasSuffix(suffix, "Hz"):
		unit = UnitHertz
		prefix = strings.TrimSuffix(suffix, "Hz")
	case strings.HasSuffix(suffix, "s"):
		unit = UnitSeconds
		prefix = strings.TrimSuffix(suffix, "s")
	default:
		return UnitAlgebra{}, fmt.Errorf("%w: unknown unit %q in %q", ErrInvalidTime, suffix, s)
	}
	exp, ok := siPrefixes[prefix]
	if !ok {
		return UnitAlgebra{}, fmt.Errorf("%w: unknown SI prefix %q in %q", ErrInvalidTime, prefix, s)
	}
	value.Mul(value, pow10(exp))
	return UnitAlgebra{value: value, unit: unit}, nil
}

func pow10(exp int64) *big.Rat {
	p := new(big.Int).Exp(big.NewInt(10), big.NewInt(abs64(exp)), nil)
	if exp < 0 {
		return new(big.Rat).SetFrac(big.NewInt(1), p)
	}
	return new(big.Rat).SetInt(p)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Unit returns the base unit.
func (u UnitAlgebra) Unit() Unit {
	return u.unit
}

// Value returns a copy of the value in base units.
func (u UnitAlgebra) Value() *big.Rat {
	if u.value == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(u.value)
}

// HasUnits reports whether the quantity is expressed in unit.
func (u UnitAlgebra) HasUnits(unit Unit) bool {
	return u.unit == unit
}

// Period converts a frequency to its period; seconds are returned unchanged.
func (u UnitAlgebra) Period() (UnitAlgebra, error) {
	switch u.unit {
	case UnitSeconds:
		return u, nil
	case UnitHertz:
		if u.value.Sign() <= 0 {
			return UnitAlgebra{}, fmt.Errorf("%w: non-positive frequency %s", ErrInvalidTime, u)
		}
		return UnitAlgebra{value: new(big.Rat).Inv(u.value), unit: UnitSeconds}, nil
	default:
		return UnitAlgebra{}, fmt.Errorf("%w: %s is not a time or frequency", ErrInvalidTime, u)
	}
}

// RoundedRatio returns u/other rounded to the nearest integer.
// exact is false when rounding discarded a remainder.
func (u UnitAlgebra) RoundedRatio(other UnitAlgebra) (n uint64, exact bool, err error) {
	if other.value == nil || other.value.Sign() == 0 {
		return 0, false, fmt.Errorf("%w: division by zero", ErrInvalidTime)
	}
	if u.value.Sign() < 0 {
		return 0, false, fmt.Errorf("%w: negative quantity %s", ErrInvalidTime, u)
	}
	ratio := new(big.Rat).Quo(u.value, other.value)
	q, r := new(big.Int).QuoRem(ratio.Num(), ratio.Denom(), new(big.Int))
	exact = r.Sign() == 0
	// round half up
	if new(big.Int).Lsh(r, 1).Cmp(ratio.Denom()) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsUint64() {
		return 0, false, fmt.Errorf("%w: %s overflows the core tick range", ErrInvalidTime, u)
	}
	return q.Uint64(), exact, nil
}

// String formats the value in base units.
func (u UnitAlgebra) String() string {
	if u.value == nil {
		return "0"
	}
	f, _ := u.value.Float64()
	if u.unit == UnitNone {
		return fmt.Sprintf("%g", f)
	}
	return fmt.Sprintf("%g %s", f, u.unit)
}
