package sim

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simcore/sim/trace"
)

// SimulationConfig groups the collaborators of one simulation partition.
type SimulationConfig struct {
	TimeBase string              // core tick, "" means DefaultTimeBase
	Seed     int64               // master seed for per-component random streams
	Horizon  string              // stop time such as "10us", "" means run until idle
	Factory  *Factory            // nil creates an empty Factory
	Regions  SharedRegionManager // nil creates a MemoryRegionManager
	Trace    *trace.WiringTrace  // nil disables wiring trace
}

// Simulation owns simulated time, the activity queue and the composition tree of
// one partition. It is driven from a single goroutine.
type Simulation struct {
	runID    uuid.UUID
	timeLord *TimeLord
	factory  *Factory
	regions  SharedRegionManager
	rng      *PartitionedRNG
	trace    *trace.WiringTrace

	queue        *ActivityQueue
	currentCycle SimTime
	horizon      SimTime // 0 = unbounded
	clocks       map[clockKey]*Clock

	roots  []*ComponentInfo
	byName map[string]*ComponentInfo

	instantiated  bool
	exitRequested bool
	destroyed     bool
}

// NewSimulation creates an empty simulation.
func NewSimulation(cfg SimulationConfig) (*Simulation, error) {
	tl, err := NewTimeLord(cfg.TimeBase)
	if err != nil {
		return nil, err
	}
	s := &Simulation{
		runID:    uuid.New(),
		timeLord: tl,
		factory:  cfg.Factory,
		regions:  cfg.Regions,
		rng:      NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		trace:    cfg.Trace,
		queue:    NewActivityQueue(),
		clocks:   make(map[clockKey]*Clock),
		byName:   make(map[string]*ComponentInfo),
	}
	if s.factory == nil {
		s.factory = NewFactory()
	}
	if s.regions == nil {
		s.regions = NewMemoryRegionManager()
	}
	if cfg.Horizon != "" {
		tc, err := tl.TimeConverter(cfg.Horizon)
		if err != nil {
			return nil, err
		}
		if s.horizon, err = tc.ToCore(1); err != nil {
			return nil, err
		}
	}
	if s.trace != nil {
		s.trace.RunID = s.runID.String()
	}
	return s, nil
}

// RunID identifies this run in traces and logs.
func (s *Simulation) RunID() string { return s.runID.String() }

func (s *Simulation) TimeLord() *TimeLord          { return s.timeLord }
func (s *Simulation) Factory() *Factory            { return s.factory }
func (s *Simulation) Regions() SharedRegionManager { return s.regions }
func (s *Simulation) RNG() *PartitionedRNG         { return s.rng }
func (s *Simulation) Trace() *trace.WiringTrace    { return s.trace }
func (s *Simulation) Roots() []*ComponentInfo      { return append([]*ComponentInfo(nil), s.roots...) }
func (s *Simulation) Horizon() SimTime             { return s.horizon }
func (s *Simulation) PendingActivities() int       { return s.queue.Len() }

// CurrentSimCycle returns the current time in core ticks.
func (s *Simulation) CurrentSimCycle() SimTime { return s.currentCycle }

func (s *Simulation) insertActivity(a Activity) {
	s.queue.Insert(a)
}

// Schedule queues an arbitrary activity. Activities in the past are rejected.
func (s *Simulation) Schedule(a Activity) error {
	if a.DeliveryTime() < s.currentCycle {
		return contractErr("Simulation.Schedule", "", ErrInvalidTime,
			"activity %T at tick %d is before current tick %d", a, a.DeliveryTime(), s.currentCycle)
	}
	s.insertActivity(a)
	return nil
}

// RegisterClock adds h to the clock ticking at freq (a period or a frequency).
func (s *Simulation) RegisterClock(freq string, h *ClockHandler, priority int) (*TimeConverter, error) {
	tc, err := s.timeLord.TimeConverter(freq)
	if err != nil {
		return nil, err
	}
	return s.RegisterClockConverter(tc, h, priority), nil
}

// RegisterClockConverter adds h to the clock ticking at tc. Each (resolution,
// priority) pair has one clock; registering the same handler twice is a no-op.
func (s *Simulation) RegisterClockConverter(tc *TimeConverter, h *ClockHandler, priority int) *TimeConverter {
	key := clockKey{factor: tc.Factor(), priority: priority}
	c, ok := s.clocks[key]
	if !ok {
		c = newClock(tc, priority)
		s.clocks[key] = c
	}
	c.add(h)
	c.schedule(s)
	return c.period
}

// ReregisterClock puts h back on the clock at tc and returns the cycle of its
// next tick.
func (s *Simulation) ReregisterClock(tc *TimeConverter, h *ClockHandler, priority int) Cycle {
	s.RegisterClockConverter(tc, h, priority)
	return s.NextClockCycle(tc, priority)
}

// NextClockCycle returns the next cycle, counted in tc, at which the clock for
// (tc, priority) ticks.
func (s *Simulation) NextClockCycle(tc *TimeConverter, priority int) Cycle {
	c, ok := s.clocks[clockKey{factor: tc.Factor(), priority: priority}]
	if ok && c.scheduled {
		return Cycle(tc.FromCore(c.next))
	}
	f := SimTime(tc.Factor())
	return Cycle(tc.FromCore((s.currentCycle/f)*f + f))
}

// UnregisterClock removes h from the clock at tc. A clock left without handlers
// stops after its queued tick.
func (s *Simulation) UnregisterClock(tc *TimeConverter, h *ClockHandler, priority int) {
	if c, ok := s.clocks[clockKey{factor: tc.Factor(), priority: priority}]; ok {
		c.remove(h)
	}
}

// Clock returns the clock for (tc, priority), or nil.
func (s *Simulation) Clock(tc *TimeConverter, priority int) *Clock {
	return s.clocks[clockKey{factor: tc.Factor(), priority: priority}]
}

// RegisterOneShot runs h once, delay from now.
func (s *Simulation) RegisterOneShot(delay string, h *OneShotHandler, priority int) (*TimeConverter, error) {
	tc, err := s.timeLord.TimeConverter(delay)
	if err != nil {
		return nil, err
	}
	return s.RegisterOneShotConverter(tc, h, priority)
}

// RegisterOneShotConverter runs h once, one unit of tc from now. A fire time past
// the end of simulated time is an ErrInvalidTime contract error.
func (s *Simulation) RegisterOneShotConverter(tc *TimeConverter, h *OneShotHandler, priority int) (*TimeConverter, error) {
	d, err := tc.ToCore(1)
	if err != nil {
		return nil, err
	}
	at, err := addTime("Simulation.RegisterOneShot", s.currentCycle, d)
	if err != nil {
		return nil, err
	}
	s.insertActivity(&oneShot{time: at, priority: priority, handler: h})
	return tc, nil
}

// EndSimulation stops the run after every activity of the current tick.
func (s *Simulation) EndSimulation() {
	s.insertActivity(&exitActivity{time: s.currentCycle})
}

// Run dispatches activities until the queue drains, the horizon is passed or an
// exit is requested.
func (s *Simulation) Run() error {
	if !s.instantiated {
		return contractErr("Simulation.Run", "", ErrNotBuilt, "model has not been built")
	}
	if s.destroyed {
		return contractErr("Simulation.Run", "", ErrDestroyed, "simulation destroyed")
	}
	for s.queue.Len() > 0 && !s.exitRequested {
		if s.horizon != 0 && s.queue.Peek().DeliveryTime() > s.horizon {
			s.currentCycle = s.horizon
			break
		}
		a := s.queue.PopNext()
		s.currentCycle = a.DeliveryTime()
		logrus.Debugf("[tick %07d] Executing %T", s.currentCycle, a)
		a.Execute(s)
	}
	logrus.Infof("[tick %07d] Simulation ended", s.currentCycle)
	return nil
}

// Setup calls Setup on every built component, parents before children.
func (s *Simulation) Setup() error {
	if !s.instantiated {
		return contractErr("Simulation.Setup", "", ErrNotBuilt, "model has not been built")
	}
	var firstErr error
	s.walk(func(info *ComponentInfo) {
		if firstErr != nil {
			return
		}
		if su, ok := info.component.(Setupper); ok {
			if err := su.Setup(); err != nil {
				firstErr = &Error{Kind: KindConfiguration, Op: "Simulation.Setup", Component: info.name, Err: err}
			}
		}
	})
	return firstErr
}

// Finish calls Finish on every built component, parents before children.
func (s *Simulation) Finish() {
	s.walk(func(info *ComponentInfo) {
		if f, ok := info.component.(Finisher); ok {
			f.Finish()
		}
	})
}

// Destroy tears down the composition tree. The simulation cannot be used
// afterwards.
func (s *Simulation) Destroy() {
	if s.destroyed {
		return
	}
	for _, root := range s.roots {
		root.destroy()
	}
	s.roots = nil
	s.byName = make(map[string]*ComponentInfo)
	s.destroyed = true
}

func (s *Simulation) walk(fn func(*ComponentInfo)) {
	for _, root := range s.roots {
		root.Walk(fn)
	}
}

// InfoByName returns the node registered under name, or nil.
func (s *Simulation) InfoByName(name string) *ComponentInfo {
	return s.byName[name]
}

// ComponentByName returns the built component registered under name, or nil.
func (s *Simulation) ComponentByName(name string) Component {
	if info := s.byName[name]; info != nil {
		return info.component
	}
	return nil
}

func (s *Simulation) registerInfo(info *ComponentInfo) {
	if _, exists := s.byName[info.name]; !exists {
		s.byName[info.name] = info
	}
}

// AddComponent adds an unbuilt top-level component to the tree.
func (s *Simulation) AddComponent(name, typ string, params *Params) (*ComponentInfo, error) {
	if s.instantiated {
		return nil, contractErr("Simulation.AddComponent", name, ErrAlreadyBuilt, "model already built")
	}
	if _, exists := s.byName[name]; exists {
		return nil, configErr("Simulation.AddComponent", name, ErrDuplicateName, "component name already used")
	}
	info := NewComponentInfo(name, typ, params)
	s.roots = append(s.roots, info)
	s.registerInfo(info)
	return info, nil
}

// DeclareSubComponent adds a configured sub-component under the node named parent.
func (s *Simulation) DeclareSubComponent(parent, slot string, index int, typ string, params *Params) (*ComponentInfo, error) {
	p := s.byName[parent]
	if p == nil {
		return nil, configErr("Simulation.DeclareSubComponent", parent, ErrUnknownUnit, "no such component")
	}
	if slot == "" || index < 0 {
		return nil, configErr("Simulation.DeclareSubComponent", parent, ErrSlotNotDense, "bad slot %q[%d]", slot, index)
	}
	if existing := p.FindSubComponent(slot, index); existing != nil {
		return nil, configErr("Simulation.DeclareSubComponent", parent, ErrSlotOverpopulated,
			"slot %s[%d] declared twice", slot, index)
	}
	sub := p.AddSubComponent(slot, index, typ, params)
	s.registerInfo(sub)
	return sub, nil
}

// Connect binds two ports with a new link. Components are addressed by their full
// name, so a declared sub-component port is "parent:slot[index]".
func (s *Simulation) Connect(leftComp, leftPort, rightComp, rightPort string, latency SimTime) error {
	if s.instantiated {
		return contractErr("Simulation.Connect", leftComp, ErrAlreadyBuilt, "model already built")
	}
	left, right := s.byName[leftComp], s.byName[rightComp]
	if left == nil {
		return configErr("Simulation.Connect", leftComp, ErrUnknownUnit, "no such component")
	}
	if right == nil {
		return configErr("Simulation.Connect", rightComp, ErrUnknownUnit, "no such component")
	}
	if left == right && leftPort == rightPort {
		return configErr("Simulation.Connect", leftComp, ErrDuplicatePort, "port %q linked to itself", leftPort)
	}
	if left.linkMap.GetLink(leftPort) != nil {
		return configErr("Simulation.Connect", leftComp, ErrDuplicatePort, "port %q already linked", leftPort)
	}
	if right.linkMap.GetLink(rightPort) != nil {
		return configErr("Simulation.Connect", rightComp, ErrDuplicatePort, "port %q already linked", rightPort)
	}
	l, r := newLinkPair(s, latency)
	if err := left.ensureLinkMap().InsertLink(leftPort, l); err != nil {
		return err
	}
	return right.ensureLinkMap().InsertLink(rightPort, r)
}

// Instantiate constructs every top-level component in declaration order.
// Sub-components are constructed by their parents.
func (s *Simulation) Instantiate() error {
	if s.instantiated {
		return contractErr("Simulation.Instantiate", "", ErrAlreadyBuilt, "model already built")
	}
	for _, info := range s.roots {
		if err := s.constructComponent(info); err != nil {
			return err
		}
	}
	s.instantiated = true
	s.warnUnclaimedPorts()
	return nil
}

func (s *Simulation) constructComponent(info *ComponentInfo) error {
	base := newBaseComponent(s, info)
	c, err := s.factory.CreateComponent(info.typ, ComponentArgs{Base: base, Params: info.params})
	if err != nil {
		info.base = nil
		return withComponent(err, info.name)
	}
	if c == nil || c.Base() != base {
		info.base = nil
		return contractErr("Simulation.constructComponent", info.name, ErrWrongAPI,
			"%s did not return a component built on the supplied base", info.typ)
	}
	return info.setComponent(c)
}

func (s *Simulation) constructSubComponent(sub *ComponentInfo, parent *BaseComponent) (Component, error) {
	base := newBaseComponent(s, sub)
	api := s.factory.SlotAPI(parent.Type(), sub.slotName)
	c, err := s.factory.CreateSubComponentFor(api, sub.typ, SubComponentArgs{Base: base, Parent: parent, Params: sub.params})
	if err != nil {
		sub.base = nil
		sub.returnClaimedPorts()
		return nil, withComponent(err, sub.name)
	}
	if c == nil || c.Base() != base {
		sub.base = nil
		sub.returnClaimedPorts()
		return nil, contractErr("Simulation.constructSubComponent", sub.name, ErrWrongAPI,
			"%s did not return a component built on the supplied base", sub.typ)
	}
	if err := sub.setComponent(c); err != nil {
		return nil, err
	}
	s.registerInfo(sub)
	if s.trace.Enabled() {
		s.trace.RecordSubComponent(trace.SubComponentRecord{
			Parent:     parent.Name(),
			Name:       sub.name,
			Type:       sub.typ,
			Slot:       sub.slotName,
			Index:      sub.slotNum,
			Anonymous:  sub.anonymous,
			SharePorts: sub.SharesPorts(),
		})
	}
	return c, nil
}

// withComponent fills in the component name of a kernel error that lacks one.
func withComponent(err error, name string) error {
	if e, ok := err.(*Error); ok && e.Component == "" {
		cp := *e
		cp.Component = name
		return &cp
	}
	return err
}

func (s *Simulation) warnUnclaimedPorts() {
	s.walk(func(info *ComponentInfo) {
		for _, port := range info.linkMap.Names() {
			if !info.linkMap.GetLink(port).configured {
				logrus.WithFields(logrus.Fields{
					"component": info.name,
					"type":      info.typ,
					"port":      port,
				}).Warn("linked port was never configured")
			}
		}
	})
}
