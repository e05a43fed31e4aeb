package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// Element names registered by newHarness.
const (
	unitType = "t.unit"
	subType  = "t.sub"
	testAPI  = "t.API"
)

// probe is the component built for every unitType and subType node. Its
// behaviour comes from the hook registered for its full name.
type probe struct {
	*BaseComponent
	h *harness
}

func (p *probe) Setup() error {
	p.h.log = append(p.h.log, "setup "+p.Name())
	if hook := p.h.setupHooks[p.Name()]; hook != nil {
		return hook(p)
	}
	return nil
}

func (p *probe) Finish() {
	p.h.log = append(p.h.log, "finish "+p.Name())
}

func (p *probe) Destroy() {
	p.h.log = append(p.h.log, "destroy "+p.Name())
	if hook := p.h.destroyHooks[p.Name()]; hook != nil {
		hook(p)
	}
}

// harness owns a Simulation whose factory knows the probe elements.
type harness struct {
	t            *testing.T
	sim          *Simulation
	hooks        map[string]func(p *probe) error
	setupHooks   map[string]func(p *probe) error
	destroyHooks map[string]func(p *probe)
	log          []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, SimulationConfig{})
}

func newHarnessWith(t *testing.T, cfg SimulationConfig) *harness {
	t.Helper()
	h := &harness{
		t:            t,
		hooks:        make(map[string]func(p *probe) error),
		setupHooks:   make(map[string]func(p *probe) error),
		destroyHooks: make(map[string]func(p *probe)),
	}
	create := func(b *BaseComponent) (Component, error) {
		p := &probe{BaseComponent: b, h: h}
		if hook := h.hooks[b.Name()]; hook != nil {
			if err := hook(p); err != nil {
				return nil, err
			}
		}
		return p, nil
	}
	slots := []SlotDoc{{Name: "slot", API: testAPI}, {Name: "array", API: testAPI}}
	f := NewFactory()
	require.NoError(t, f.LoadLibrary(Library{Name: "t", Register: func(r *Registrar) error {
		return errors.Join(
			r.Component(ElementDoc{Name: "unit", Slots: slots}, func(a ComponentArgs) (Component, error) {
				return create(a.Base)
			}),
			r.SubComponent(testAPI, ElementDoc{Name: "sub", Slots: slots}, func(a SubComponentArgs) (Component, error) {
				return create(a.Base)
			}),
		)
	}}))
	cfg.Factory = f
	s, err := NewSimulation(cfg)
	require.NoError(t, err)
	h.sim = s
	return h
}

// on registers the construction hook for the component named name.
func (h *harness) on(name string, hook func(p *probe) error) {
	h.hooks[name] = hook
}

func (h *harness) add(names ...string) {
	h.t.Helper()
	for _, name := range names {
		_, err := h.sim.AddComponent(name, unitType, nil)
		require.NoError(h.t, err)
	}
}

func (h *harness) declare(parent, slot string, index int) {
	h.t.Helper()
	_, err := h.sim.DeclareSubComponent(parent, slot, index, subType, nil)
	require.NoError(h.t, err)
}

func (h *harness) connect(left, leftPort, right, rightPort string) {
	h.t.Helper()
	require.NoError(h.t, h.sim.Connect(left, leftPort, right, rightPort, 0))
}

func (h *harness) probe(name string) *probe {
	h.t.Helper()
	c := h.sim.ComponentByName(name)
	require.NotNil(h.t, c, "component %s not built", name)
	return c.(*probe)
}
