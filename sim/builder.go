package sim

import (
	"sort"
)

// Creator constructs one concrete implementation of capability T from arguments A.
type Creator[T any, A any] func(args A) (T, error)

// Builder is a name-keyed factory for a single capability family.
//
// Every family (components, modules, each sub-component API) owns its own Builder,
// so the same implementation name may exist independently in two families.
// Registration must complete before the first Build: the first Build seals the
// Builder and any later Register is rejected with ErrRegistrySealed.
//
// Thread-safety: NOT thread-safe. Registration happens during bootstrap and builds
// happen on the partition's event-loop goroutine.
type Builder[T any, A any] struct {
	family   string
	creators map[string]Creator[T, A]
	sealed   bool
}

// NewBuilder creates an empty Builder for the named capability family.
func NewBuilder[T any, A any](family string) *Builder[T, A] {
	return &Builder[T, A]{
		family:   family,
		creators: make(map[string]Creator[T, A]),
	}
}

// Family returns the capability family name.
func (b *Builder[T, A]) Family() string {
	return b.family
}

// Register adds or replaces the creator for name.
// A later registration of the same name overwrites the earlier one.
func (b *Builder[T, A]) Register(name string, create Creator[T, A]) error {
	if b.sealed {
		return contractErr("Builder.Register", "", ErrRegistrySealed,
			"cannot register %q in %s", name, b.family)
	}
	if name == "" || create == nil {
		return contractErr("Builder.Register", "", ErrNotRegistered,
			"empty name or nil creator in %s", b.family)
	}
	b.creators[name] = create
	return nil
}

// Build instantiates the implementation registered under name.
// An unregistered name is a configuration defect: it means a plugin reference in
// the model was never packaged or loaded.
func (b *Builder[T, A]) Build(name string, args A) (T, error) {
	b.sealed = true
	create, ok := b.creators[name]
	if !ok {
		var zero T
		return zero, configErr("Builder.Build", "", ErrNotRegistered,
			"%s not registered as a %s API", name, b.family)
	}
	return create(args)
}

// Has reports whether name is registered.
func (b *Builder[T, A]) Has(name string) bool {
	_, ok := b.creators[name]
	return ok
}

// Seal forbids further registration.
func (b *Builder[T, A]) Seal() {
	b.sealed = true
}

// Sealed reports whether registration is closed.
func (b *Builder[T, A]) Sealed() bool {
	return b.sealed
}

// Names returns the registered names in sorted order.
func (b *Builder[T, A]) Names() []string {
	names := make([]string, 0, len(b.creators))
	for name := range b.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
