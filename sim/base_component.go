package sim

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simcore/sim/trace"
)

// BaseComponent is embedded by every component and sub-component. It carries the
// wiring protocol: port resolution and sharing, time-base and clock registration,
// sub-component loading and shared-region access.
type BaseComponent struct {
	sim             *Simulation
	info            *ComponentInfo
	defaultTimeBase *TimeConverter
}

func newBaseComponent(s *Simulation, info *ComponentInfo) *BaseComponent {
	b := &BaseComponent{sim: s, info: info}
	info.base = b
	return b
}

// Base implements Component for types that embed *BaseComponent.
func (b *BaseComponent) Base() *BaseComponent { return b }

func (b *BaseComponent) ID() ComponentID         { return b.info.id }
func (b *BaseComponent) Name() string            { return b.info.name }
func (b *BaseComponent) Type() string            { return b.info.typ }
func (b *BaseComponent) Params() *Params         { return b.info.params }
func (b *BaseComponent) Info() *ComponentInfo    { return b.info }
func (b *BaseComponent) Simulation() *Simulation { return b.sim }

// DefaultTimeBase returns the converter used for links and time queries that do
// not name one. Nil means unset.
func (b *BaseComponent) DefaultTimeBase() *TimeConverter { return b.defaultTimeBase }

// SetDefaultTimeBase sets the default converter without touching links.
func (b *BaseComponent) SetDefaultTimeBase(tc *TimeConverter) { b.defaultTimeBase = tc }

// Parent returns the base of the owning component, or nil at the top level.
func (b *BaseComponent) Parent() *BaseComponent {
	if b.info.parent == nil {
		return nil
	}
	return b.info.parent.base
}

// TrueComponent returns the top-level component this unit belongs to. It is nil
// while that component is still being constructed.
func (b *BaseComponent) TrueComponent() Component {
	return b.info.TrueInfo().component
}

// ConfigureLink binds the endpoint for port name.
//
// The component's own map is searched first. When the node shares its parent's
// ports, an unconfigured endpoint is taken over from the nearest ancestor that
// holds one; a declared (non-anonymous) claimant starts with no time base.
// A nil handler selects polling mode. tb overrides the component's default time
// base. An unconnected port yields nil, nil.
func (b *BaseComponent) ConfigureLink(name string, tb *TimeConverter, h *EventHandler) (*Link, error) {
	source := trace.LinkSourceOwn
	from := ""
	l := b.info.linkMap.GetLink(name)
	if l == nil && b.info.SharesPorts() && b.info.parent != nil {
		inherited, holder := b.info.parent.findInheritedPort(name)
		if inherited != nil {
			b.info.claims = append(b.info.claims, portClaim{port: name, holder: holder, link: inherited, before: *inherited})
			if !b.info.anonymous {
				inherited.defaultTimeBase = nil
			}
			if err := b.info.ensureLinkMap().InsertLink(name, inherited); err != nil {
				return nil, err
			}
			l = inherited
			source = trace.LinkSourceInherited
			from = holder.name
		}
	}
	if l == nil {
		return nil, nil
	}
	if l.configured {
		return nil, configErr("BaseComponent.ConfigureLink", b.Name(), ErrPortReconfigured,
			"attempt to configure port %q more than once", name)
	}
	if l.self {
		source = trace.LinkSourceSelf
	}
	if tb != nil {
		l.defaultTimeBase = tb
	} else if b.defaultTimeBase != nil {
		l.defaultTimeBase = b.defaultTimeBase
	}
	l.handler = h
	l.polling = h == nil
	l.configured = true
	l.owner = b.Name()
	l.port = name

	if b.sim.trace.Enabled() {
		var factor uint64
		if l.defaultTimeBase != nil {
			factor = l.defaultTimeBase.Factor()
		}
		b.sim.trace.RecordLink(trace.LinkRecord{
			Component:      b.Name(),
			Port:           name,
			Source:         source,
			From:           from,
			Polling:        l.polling,
			TimeBaseFactor: factor,
			Clock:          uint64(b.sim.currentCycle),
		})
	}
	return l, nil
}

// ConfigureLinkIn is ConfigureLink with the time base given as a string.
func (b *BaseComponent) ConfigureLinkIn(name, timeBase string, h *EventHandler) (*Link, error) {
	tc, err := b.sim.timeLord.TimeConverter(timeBase)
	if err != nil {
		return nil, withComponent(err, b.Name())
	}
	return b.ConfigureLink(name, tc, h)
}

// ConfigureSelfLink creates and binds a loopback port. Any existing port with the
// same name is a configuration error.
func (b *BaseComponent) ConfigureSelfLink(name string, tb *TimeConverter, h *EventHandler) (*Link, error) {
	lm := b.info.ensureLinkMap()
	if lm.GetLink(name) != nil {
		return nil, configErr("BaseComponent.ConfigureSelfLink", b.Name(), ErrDuplicatePort,
			"attempting to add self link with duplicate name %q", name)
	}
	if err := lm.InsertLink(name, newSelfLink(b.sim)); err != nil {
		return nil, err
	}
	lm.AddSelfPort(name)
	return b.ConfigureLink(name, tb, h)
}

// IsPortConnected reports whether ConfigureLink(name) would find an endpoint.
func (b *BaseComponent) IsPortConnected(name string) bool {
	if b.info.linkMap.GetLink(name) != nil {
		return true
	}
	if b.info.SharesPorts() && b.info.parent != nil {
		return b.info.parent.peekInheritedPort(name) != nil
	}
	return false
}

// TimeConverter resolves base through the simulation's TimeLord.
func (b *BaseComponent) TimeConverter(base string) (*TimeConverter, error) {
	return b.sim.timeLord.TimeConverter(base)
}

// RegisterTimeBase resolves base. With regAll it becomes the component's default
// and the default of every link whose time base is unset, including the links of
// anonymous sub-components.
func (b *BaseComponent) RegisterTimeBase(base string, regAll bool) (*TimeConverter, error) {
	tc, err := b.sim.timeLord.TimeConverter(base)
	if err != nil {
		return nil, withComponent(err, b.Name())
	}
	if regAll {
		b.propagateTimeBase(tc)
	}
	b.recordTiming(trace.TimingTimeBase, base, tc, 0)
	return tc, nil
}

func (b *BaseComponent) propagateTimeBase(tc *TimeConverter) {
	b.defaultTimeBase = tc
	b.info.setDefaultTimeBaseForLinks(tc)
}

// RegisterClock ticks h at freq. With regAll the clock's converter becomes the
// default time base as in RegisterTimeBase.
func (b *BaseComponent) RegisterClock(freq string, h *ClockHandler, regAll bool) (*TimeConverter, error) {
	tc, err := b.sim.RegisterClock(freq, h, ClockPriority)
	if err != nil {
		return nil, withComponent(err, b.Name())
	}
	if regAll {
		b.propagateTimeBase(tc)
	}
	b.recordTiming(trace.TimingClock, freq, tc, ClockPriority)
	return tc, nil
}

// RegisterClockConverter is RegisterClock with a resolved converter.
func (b *BaseComponent) RegisterClockConverter(tc *TimeConverter, h *ClockHandler, regAll bool) *TimeConverter {
	tc = b.sim.RegisterClockConverter(tc, h, ClockPriority)
	if regAll {
		b.propagateTimeBase(tc)
	}
	b.recordTiming(trace.TimingClock, "", tc, ClockPriority)
	return tc
}

// ReregisterClock puts h back on the clock at tc and returns its next cycle.
func (b *BaseComponent) ReregisterClock(tc *TimeConverter, h *ClockHandler) Cycle {
	return b.sim.ReregisterClock(tc, h, ClockPriority)
}

// NextClockCycle returns the next cycle of the component clock at tc.
func (b *BaseComponent) NextClockCycle(tc *TimeConverter) Cycle {
	return b.sim.NextClockCycle(tc, ClockPriority)
}

// UnregisterClock removes h from the component clock at tc.
func (b *BaseComponent) UnregisterClock(tc *TimeConverter, h *ClockHandler) {
	b.sim.UnregisterClock(tc, h, ClockPriority)
}

// RegisterOneShot runs h once after delay.
func (b *BaseComponent) RegisterOneShot(delay string, h *OneShotHandler) (*TimeConverter, error) {
	tc, err := b.sim.RegisterOneShot(delay, h, OneShotPriority)
	if err != nil {
		return nil, withComponent(err, b.Name())
	}
	b.recordTiming(trace.TimingOneShot, delay, tc, OneShotPriority)
	return tc, nil
}

func (b *BaseComponent) recordTiming(kind trace.TimingKind, resolution string, tc *TimeConverter, priority int) {
	if !b.sim.trace.Enabled() {
		return
	}
	b.sim.trace.RecordTiming(trace.TimingRecord{
		Component:  b.Name(),
		Kind:       kind,
		Resolution: resolution,
		Factor:     tc.Factor(),
		Priority:   priority,
		Clock:      uint64(b.sim.currentCycle),
	})
}

// CurrentSimTime returns the current time counted in tc. A nil tc uses the
// component's default time base; with neither set the result is in core ticks.
func (b *BaseComponent) CurrentSimTime(tc *TimeConverter) uint64 {
	if tc == nil {
		tc = b.defaultTimeBase
	}
	if tc == nil {
		return uint64(b.sim.currentCycle)
	}
	return tc.FromCore(b.sim.currentCycle)
}

// CurrentSimTimeIn returns the current time counted in base.
func (b *BaseComponent) CurrentSimTimeIn(base string) (uint64, error) {
	tc, err := b.sim.timeLord.TimeConverter(base)
	if err != nil {
		return 0, withComponent(err, b.Name())
	}
	return tc.FromCore(b.sim.currentCycle), nil
}

func (b *BaseComponent) CurrentSimTimeNano() uint64  { return b.sim.timeLord.Nano().FromCore(b.sim.currentCycle) }
func (b *BaseComponent) CurrentSimTimeMicro() uint64 { return b.sim.timeLord.Micro().FromCore(b.sim.currentCycle) }
func (b *BaseComponent) CurrentSimTimeMilli() uint64 { return b.sim.timeLord.Milli().FromCore(b.sim.currentCycle) }

// LoadModule creates a module that is not tied to this component.
func (b *BaseComponent) LoadModule(typ string, params *Params) (Module, error) {
	m, err := b.sim.factory.CreateModule(typ, ModuleArgs{Params: params})
	return m, withComponent(err, b.Name())
}

// LoadModuleWithComponent creates a module owned by this component.
func (b *BaseComponent) LoadModuleWithComponent(typ string, params *Params) (Module, error) {
	m, err := b.sim.factory.CreateModule(typ, ModuleArgs{Params: params, Owner: b})
	return m, withComponent(err, b.Name())
}

// DoesSubComponentExist reports whether typ is a registered sub-component.
func (b *BaseComponent) DoesSubComponentExist(typ string) bool {
	return b.sim.factory.DoesSubComponentExist(typ)
}

// LoadAnonymousSubComponent creates a sub-component that is not present in the
// model. An empty slot name files it under AnonymousSlot.
func (b *BaseComponent) LoadAnonymousSubComponent(typ, slot string, num int, share ShareFlags, params *Params) (Component, error) {
	sub := b.info.addAnonymousSubComponent(slot, num, typ, params, share)
	c, err := b.sim.constructSubComponent(sub, b)
	if err != nil {
		b.info.removeSubComponent(sub)
		return nil, err
	}
	return c, nil
}

// declaredInSlot returns the configured sub-components in slot.
func (b *BaseComponent) declaredInSlot(slot string) []*ComponentInfo {
	var out []*ComponentInfo
	for _, sub := range b.info.SubComponentsInSlot(slot) {
		if !sub.anonymous {
			out = append(out, sub)
		}
	}
	return out
}

func (b *BaseComponent) findDeclared(slot string, num int) *ComponentInfo {
	for _, sub := range b.declaredInSlot(slot) {
		if sub.slotNum == num {
			return sub
		}
	}
	return nil
}

// LoadNamedSubComponent loads the sub-component configured in a singular slot.
// An empty slot yields nil, nil.
func (b *BaseComponent) LoadNamedSubComponent(slot string, share ShareFlags, params *Params) (Component, error) {
	if n := len(b.declaredInSlot(slot)); n > 1 {
		return nil, configErr("BaseComponent.LoadNamedSubComponent", b.Name(), ErrSlotOverpopulated,
			"ComponentSlot %q in component type %q only allows for one SubComponent, %d provided", slot, b.Type(), n)
	}
	return b.LoadNamedSubComponentAt(slot, 0, share, params)
}

// LoadNamedSubComponentAt loads the sub-component configured at slot[num].
// params, when given, provide defaults under the configured parameters.
// An empty index yields nil, nil.
func (b *BaseComponent) LoadNamedSubComponentAt(slot string, num int, share ShareFlags, params *Params) (Component, error) {
	if !b.sim.factory.SlotDeclared(b.Type(), slot) {
		logrus.WithFields(logrus.Fields{
			"component": b.Name(),
			"type":      b.Type(),
			"slot":      slot,
		}).Warn("loading sub-component into a slot the component type does not document")
	}
	sub := b.findDeclared(slot, num)
	if sub == nil {
		return nil, nil
	}
	if sub.IsBuilt() {
		return nil, contractErr("BaseComponent.LoadNamedSubComponentAt", b.Name(), ErrAlreadyBuilt,
			"%s already loaded", sub.name)
	}
	sub.shareFlags = share
	if params != nil {
		sub.params = params.Merge(sub.params)
	}
	return b.sim.constructSubComponent(sub, b)
}

// SubComponentSlotInfo describes the configured population of slot. It returns
// nil, nil when nothing is configured there. With fatalOnEmptyIndex a slot that
// is not densely populated from index 0 is a configuration error.
func (b *BaseComponent) SubComponentSlotInfo(slot string, fatalOnEmptyIndex bool) (*SlotInfo, error) {
	declared := b.declaredInSlot(slot)
	if len(declared) == 0 {
		return nil, nil
	}
	si := &SlotInfo{owner: b, slot: slot, populated: make(map[int]bool, len(declared))}
	for _, sub := range declared {
		si.populated[sub.slotNum] = true
		if sub.slotNum > si.max {
			si.max = sub.slotNum
		}
	}
	if fatalOnEmptyIndex && !si.IsAllPopulated() {
		return nil, configErr("BaseComponent.SubComponentSlotInfo", b.Name(), ErrSlotNotDense,
			"slot %q of component type %q has empty indices below %d", slot, b.Type(), si.max)
	}
	return si, nil
}

// LocalSharedRegion returns the partition-local block for key.
func (b *BaseComponent) LocalSharedRegion(key string, size int) (SharedRegion, error) {
	return b.sim.regions.LocalRegion(key, size)
}

// GlobalSharedRegion returns the block for key that replicas merge with merger.
func (b *BaseComponent) GlobalSharedRegion(key string, size int, merger SharedRegionMerger) (SharedRegion, error) {
	return b.sim.regions.GlobalRegion(key, size, merger)
}

// RNG returns this component's random stream for subsystem.
func (b *BaseComponent) RNG(subsystem string) *rand.Rand {
	return b.sim.rng.ForStream(StreamName(b.Name(), subsystem))
}

// EndSimulation asks the engine to stop after the current tick.
func (b *BaseComponent) EndSimulation() {
	b.sim.EndSimulation()
}

// SubComponentAs narrows a loaded sub-component to the API T. It passes through
// errors and absence, and reports ErrWrongAPI when c does not implement T.
func SubComponentAs[T any](c Component, err error) (T, error) {
	var zero T
	if err != nil || c == nil {
		return zero, err
	}
	t, ok := c.(T)
	if !ok {
		return zero, contractErr("SubComponentAs", c.Base().Name(), ErrWrongAPI,
			"%s does not implement %T", c.Base().Type(), &zero)
	}
	return t, nil
}

// ModuleAs narrows a loaded module to T the same way SubComponentAs does.
func ModuleAs[T any](m Module, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := m.(T)
	if !ok {
		return zero, contractErr("ModuleAs", "", ErrWrongAPI, "module %T does not implement %T", m, &zero)
	}
	return t, nil
}
