package sim

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// ConfigGraph is the model description a simulation is built from.
// All fields must be listed to satisfy KnownFields(true) strict parsing.
type ConfigGraph struct {
	TimeBase   string            `yaml:"timebase"`
	Seed       int64             `yaml:"seed"`
	Components []ConfigComponent `yaml:"components" validate:"dive"`
	Links      []ConfigLink      `yaml:"links" validate:"dive"`
}

// ConfigComponent declares a top-level component.
type ConfigComponent struct {
	Name          string               `yaml:"name" validate:"required,excludesall=:[]"`
	Type          string               `yaml:"type" validate:"required"`
	Params        map[string]any       `yaml:"params"`
	SubComponents []ConfigSubComponent `yaml:"subcomponents" validate:"dive"`
}

// ConfigSubComponent declares a sub-component in a slot of its parent.
type ConfigSubComponent struct {
	Slot          string               `yaml:"slot" validate:"required"`
	Index         int                  `yaml:"index" validate:"min=0"`
	Type          string               `yaml:"type" validate:"required"`
	Params        map[string]any       `yaml:"params"`
	SubComponents []ConfigSubComponent `yaml:"subcomponents" validate:"dive"`
}

// ConfigPort addresses one port. Component is the full name of a component or a
// declared sub-component ("host:nic[0]").
type ConfigPort struct {
	Component string `yaml:"component" validate:"required"`
	Port      string `yaml:"port" validate:"required"`
}

// ConfigLink connects two ports.
type ConfigLink struct {
	Name    string     `yaml:"name"`
	Latency string     `yaml:"latency"`
	Left    ConfigPort `yaml:"left"`
	Right   ConfigPort `yaml:"right"`
}

// LoadConfigGraph reads and validates a YAML model file.
func LoadConfigGraph(path string) (*ConfigGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	return ParseConfigGraph(data)
}

// ParseConfigGraph decodes and validates a YAML model. Unknown fields are errors.
func ParseConfigGraph(data []byte) (*ConfigGraph, error) {
	var g ConfigGraph
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&g); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

func subComponentName(parent, slot string, index int) string {
	return fmt.Sprintf("%s:%s[%d]", parent, slot, index)
}

var (
	schemaOnce  sync.Once
	schema      *validator.Validate
	schemaTrans ut.Translator
)

// modelSchema returns the shared validator. Field names in messages follow the
// yaml tags so they match what the user wrote.
func modelSchema() (*validator.Validate, ut.Translator) {
	schemaOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		schemaTrans, _ = uni.GetTranslator("en")

		schema = validator.New(validator.WithRequiredStructEnabled())
		schema.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("yaml")
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(schema, schemaTrans)
	})
	return schema, schemaTrans
}

// checkSchema reports the first field-level defect of g.
func (g *ConfigGraph) checkSchema() error {
	v, trans := modelSchema()
	err := v.Struct(g)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return configErr("ConfigGraph.Validate", "", ErrInvalidModel, "%s: %s", fe.Namespace(), fe.Translate(trans))
	}
	return configErr("ConfigGraph.Validate", "", ErrInvalidModel, "%v", err)
}

// Validate checks the structural rules of the graph: required fields, unique
// names, resolvable latencies and link endpoints that exist and are used at most
// once.
func (g *ConfigGraph) Validate() error {
	if err := g.checkSchema(); err != nil {
		return err
	}
	tl, err := NewTimeLord(g.TimeBase)
	if err != nil {
		return err
	}
	names := make(map[string]bool)
	var collect func(parent string, subs []ConfigSubComponent) error
	collect = func(parent string, subs []ConfigSubComponent) error {
		for _, sc := range subs {
			name := subComponentName(parent, sc.Slot, sc.Index)
			if names[name] {
				return configErr("ConfigGraph.Validate", parent, ErrSlotOverpopulated,
					"slot %s[%d] declared twice", sc.Slot, sc.Index)
			}
			names[name] = true
			if err := collect(name, sc.SubComponents); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range g.Components {
		if names[c.Name] {
			return configErr("ConfigGraph.Validate", c.Name, ErrDuplicateName, "component declared twice")
		}
		names[c.Name] = true
		if err := collect(c.Name, c.SubComponents); err != nil {
			return err
		}
	}

	used := make(map[ConfigPort]string)
	for _, l := range g.Links {
		if _, err := resolveLatency(tl, l.Latency); err != nil {
			return fmt.Errorf("link %q: %w", l.Name, err)
		}
		for _, p := range []ConfigPort{l.Left, l.Right} {
			if !names[p.Component] {
				return configErr("ConfigGraph.Validate", p.Component, ErrUnknownUnit, "link %q names unknown component", l.Name)
			}
			if other, ok := used[p]; ok {
				return configErr("ConfigGraph.Validate", p.Component, ErrDuplicatePort,
					"port %q used by links %q and %q", p.Port, other, l.Name)
			}
			used[p] = l.Name
		}
	}
	return nil
}

func resolveLatency(tl *TimeLord, latency string) (SimTime, error) {
	if latency == "" {
		return 0, nil
	}
	ua, err := ParseUnitAlgebra(latency)
	if err != nil {
		return 0, configErr("ConfigGraph", "", err, "cannot resolve latency %q", latency)
	}
	// zero is a valid latency in any time unit, unlike a zero time base
	if ua.Value().Sign() == 0 && !ua.HasUnits(UnitHertz) {
		return 0, nil
	}
	tc, err := tl.TimeConverterForUnit(ua)
	if err != nil {
		return 0, err
	}
	return tc.ToCore(1)
}

func paramsFromConfig(owner string, raw map[string]any) (*Params, error) {
	kv := make(map[string]string, len(raw))
	for k, v := range raw {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, configErr("ConfigGraph", owner, err, "param %q is not a scalar", k)
		}
		kv[k] = s
	}
	return NewParams(kv), nil
}

// Build compiles g into the composition tree and constructs every top-level
// component. The simulation's own time base is used for link latencies.
func (s *Simulation) Build(g *ConfigGraph) error {
	for _, c := range g.Components {
		params, err := paramsFromConfig(c.Name, c.Params)
		if err != nil {
			return err
		}
		if _, err := s.AddComponent(c.Name, c.Type, params); err != nil {
			return err
		}
		if err := s.declareSubComponents(c.Name, c.SubComponents); err != nil {
			return err
		}
	}
	for _, l := range g.Links {
		latency, err := resolveLatency(s.timeLord, l.Latency)
		if err != nil {
			return fmt.Errorf("link %q: %w", l.Name, err)
		}
		if err := s.Connect(l.Left.Component, l.Left.Port, l.Right.Component, l.Right.Port, latency); err != nil {
			return err
		}
	}
	return s.Instantiate()
}

func (s *Simulation) declareSubComponents(parent string, subs []ConfigSubComponent) error {
	for _, sc := range subs {
		params, err := paramsFromConfig(parent, sc.Params)
		if err != nil {
			return err
		}
		sub, err := s.DeclareSubComponent(parent, sc.Slot, sc.Index, sc.Type, params)
		if err != nil {
			return err
		}
		if err := s.declareSubComponents(sub.Name(), sc.SubComponents); err != nil {
			return err
		}
	}
	return nil
}
