package sim

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Component is a simulated unit. Implementations embed *BaseComponent, which
// provides Base.
type Component interface {
	Base() *BaseComponent
}

// Setupper is implemented by components that need a hook after the whole model
// is built and before the first activity runs.
type Setupper interface {
	Setup() error
}

// Finisher is implemented by components that need a hook after the run.
type Finisher interface {
	Finish()
}

// Destroyer is implemented by components that release resources on teardown.
// Destroy runs while the component's sub-components are still intact.
type Destroyer interface {
	Destroy()
}

// Module is a helper object with no place in the composition tree.
type Module any

// ComponentArgs are the construction arguments of a top-level component.
type ComponentArgs struct {
	Base   *BaseComponent
	Params *Params
}

// SubComponentArgs are the construction arguments of a sub-component.
type SubComponentArgs struct {
	Base   *BaseComponent
	Parent *BaseComponent
	Params *Params
}

// ModuleArgs are the construction arguments of a module. Owner is nil when the
// module is loaded without a component.
type ModuleArgs struct {
	Params *Params
	Owner  *BaseComponent
}

// SlotDoc documents a sub-component slot of an element.
type SlotDoc struct {
	Name        string
	Description string
	API         string
}

// PortDoc documents a port of an element.
type PortDoc struct {
	Name        string
	Description string
}

// ParamDoc documents a parameter of an element.
type ParamDoc struct {
	Name        string
	Description string
	Default     string
}

// ElementDoc is the metadata registered with an element.
type ElementDoc struct {
	Name        string // element name within its library
	Description string
	Params      []ParamDoc
	Ports       []PortDoc
	Slots       []SlotDoc
}

// Library groups elements under one name. Register is called once, when the
// library is loaded into a Factory.
type Library struct {
	Name     string
	Register func(r *Registrar) error
}

// Families reported by Factory.Elements.
const (
	FamilyComponent = "Component"
	FamilyModule    = "Module"
)

// Factory is the type registry: it maps "library.element" names to constructors.
// Components and modules each have a Builder; every sub-component API has its own.
type Factory struct {
	components *Builder[Component, ComponentArgs]
	modules    *Builder[Module, ModuleArgs]
	subAPIs    map[string]*Builder[Component, SubComponentArgs]
	subAPIsOf  map[string][]string // element name to the APIs it is registered under
	docs       map[string]ElementDoc
	libraries  map[string]bool
}

// NewFactory creates an empty Factory.
func NewFactory() *Factory {
	return &Factory{
		components: NewBuilder[Component, ComponentArgs](FamilyComponent),
		modules:    NewBuilder[Module, ModuleArgs](FamilyModule),
		subAPIs:    make(map[string]*Builder[Component, SubComponentArgs]),
		subAPIsOf:  make(map[string][]string),
		docs:       make(map[string]ElementDoc),
		libraries:  make(map[string]bool),
	}
}

// LoadLibrary registers every element of lib. Loading the same library twice is a
// no-op. Libraries must be loaded before the model is built.
func (f *Factory) LoadLibrary(lib Library) error {
	if lib.Name == "" || strings.Contains(lib.Name, ".") {
		return configErr("Factory.LoadLibrary", "", ErrNotRegistered, "invalid library name %q", lib.Name)
	}
	if f.libraries[lib.Name] {
		return nil
	}
	if err := lib.Register(&Registrar{factory: f, library: lib.Name}); err != nil {
		return fmt.Errorf("loading library %s: %w", lib.Name, err)
	}
	f.libraries[lib.Name] = true
	return nil
}

// Libraries returns the loaded library names.
func (f *Factory) Libraries() []string {
	names := make([]string, 0, len(f.libraries))
	for name := range f.libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateComponent builds a top-level component of type typ.
func (f *Factory) CreateComponent(typ string, args ComponentArgs) (Component, error) {
	return f.components.Build(typ, args)
}

// CreateSubComponent builds a sub-component of type typ through its API builder.
// A name registered under more than one API is ambiguous here; use
// CreateSubComponentFor.
func (f *Factory) CreateSubComponent(typ string, args SubComponentArgs) (Component, error) {
	apis := f.subAPIsOf[typ]
	switch len(apis) {
	case 0:
		return nil, configErr("Factory.CreateSubComponent", "", ErrNotRegistered,
			"SubComponent %s not registered", typ)
	case 1:
		return f.subAPIs[apis[0]].Build(typ, args)
	default:
		return nil, configErr("Factory.CreateSubComponent", "", ErrDuplicateName,
			"SubComponent %s is registered under APIs %s, the slot must name one",
			typ, strings.Join(apis, ", "))
	}
}

// CreateSubComponentFor builds typ through the builder of api. An empty api falls
// back to CreateSubComponent.
func (f *Factory) CreateSubComponentFor(api, typ string, args SubComponentArgs) (Component, error) {
	if api == "" {
		return f.CreateSubComponent(typ, args)
	}
	b, ok := f.subAPIs[api]
	if !ok {
		return nil, configErr("Factory.CreateSubComponentFor", "", ErrNotRegistered,
			"SubComponent %s not registered: no element implements API %s", typ, api)
	}
	return b.Build(typ, args)
}

// CreateModule builds a module of type typ.
func (f *Factory) CreateModule(typ string, args ModuleArgs) (Module, error) {
	return f.modules.Build(typ, args)
}

// SubComponentAPIs returns the APIs a sub-component type was registered under,
// sorted.
func (f *Factory) SubComponentAPIs(typ string) []string {
	return append([]string(nil), f.subAPIsOf[typ]...)
}

// DoesComponentExist reports whether typ is a registered component.
func (f *Factory) DoesComponentExist(typ string) bool {
	return f.components.Has(typ)
}

// DoesSubComponentExist reports whether typ is a registered sub-component.
func (f *Factory) DoesSubComponentExist(typ string) bool {
	return len(f.subAPIsOf[typ]) > 0
}

// DoesModuleExist reports whether typ is a registered module.
func (f *Factory) DoesModuleExist(typ string) bool {
	return f.modules.Has(typ)
}

// SlotDeclared reports whether unitType documents slot.
func (f *Factory) SlotDeclared(unitType, slot string) bool {
	doc, ok := f.docs[unitType]
	if !ok {
		return false
	}
	for _, s := range doc.Slots {
		if s.Name == slot {
			return true
		}
	}
	return false
}

// SlotAPI returns the API documented for slot of unitType, or "" when the slot
// is undocumented or names no API.
func (f *Factory) SlotAPI(unitType, slot string) string {
	for _, s := range f.docs[unitType].Slots {
		if s.Name == slot {
			return s.API
		}
	}
	return ""
}

// Describe returns the documentation registered for typ.
func (f *Factory) Describe(typ string) (ElementDoc, bool) {
	doc, ok := f.docs[typ]
	return doc, ok
}

// Elements lists registered element names by family. Sub-component families are
// keyed by API name.
func (f *Factory) Elements() map[string][]string {
	out := map[string][]string{
		FamilyComponent: f.components.Names(),
		FamilyModule:    f.modules.Names(),
	}
	for api, b := range f.subAPIs {
		out[api] = b.Names()
	}
	return out
}

// Registrar is handed to Library.Register and qualifies element names with the
// library name.
type Registrar struct {
	factory *Factory
	library string
}

func (r *Registrar) qualify(doc ElementDoc) (string, error) {
	if doc.Name == "" || strings.Contains(doc.Name, ".") {
		return "", configErr("Registrar", r.library, ErrNotRegistered, "invalid element name %q", doc.Name)
	}
	return r.library + "." + doc.Name, nil
}

// Component registers a top-level component.
func (r *Registrar) Component(doc ElementDoc, create Creator[Component, ComponentArgs]) error {
	name, err := r.qualify(doc)
	if err != nil {
		return err
	}
	if err := r.factory.components.Register(name, create); err != nil {
		return err
	}
	r.factory.docs[name] = doc
	return nil
}

// SubComponent registers a sub-component under api. Each API has its own name space.
func (r *Registrar) SubComponent(api string, doc ElementDoc, create Creator[Component, SubComponentArgs]) error {
	name, err := r.qualify(doc)
	if err != nil {
		return err
	}
	if api == "" {
		return configErr("Registrar.SubComponent", name, ErrNotRegistered, "empty API name")
	}
	b, ok := r.factory.subAPIs[api]
	if !ok {
		b = NewBuilder[Component, SubComponentArgs](api)
		r.factory.subAPIs[api] = b
	}
	if err := b.Register(name, create); err != nil {
		return err
	}
	if apis := r.factory.subAPIsOf[name]; !slices.Contains(apis, api) {
		apis = append(apis, api)
		sort.Strings(apis)
		r.factory.subAPIsOf[name] = apis
	}
	r.factory.docs[name] = doc
	return nil
}

// Module registers a module.
func (r *Registrar) Module(doc ElementDoc, create Creator[Module, ModuleArgs]) error {
	name, err := r.qualify(doc)
	if err != nil {
		return err
	}
	if err := r.factory.modules.Register(name, create); err != nil {
		return err
	}
	r.factory.docs[name] = doc
	return nil
}
