package sim

// ClockHandler is called once per clock cycle. Returning true unregisters it.
// Handlers are compared by pointer identity.
type ClockHandler struct {
	fn func(cycle Cycle) bool
}

// NewClockHandler wraps fn as a clock handler.
func NewClockHandler(fn func(cycle Cycle) bool) *ClockHandler {
	return &ClockHandler{fn: fn}
}

// OneShotHandler is called once when its one-shot fires.
type OneShotHandler struct {
	fn func()
}

// NewOneShotHandler wraps fn as a one-shot handler.
func NewOneShotHandler(fn func()) *OneShotHandler {
	return &OneShotHandler{fn: fn}
}

type clockKey struct {
	factor   uint64
	priority int
}

// Clock fans one periodic tick out to every handler registered at the same
// resolution and priority. At most one activity per Clock is ever queued.
type Clock struct {
	period    *TimeConverter
	priority  int
	handlers  []*ClockHandler
	next      SimTime
	scheduled bool
}

func newClock(period *TimeConverter, priority int) *Clock {
	return &Clock{period: period, priority: priority}
}

// Period returns the converter the clock ticks at.
func (c *Clock) Period() *TimeConverter { return c.period }

// HandlerCount returns the number of registered handlers.
func (c *Clock) HandlerCount() int { return len(c.handlers) }

func (c *Clock) hasHandler(h *ClockHandler) bool {
	for _, existing := range c.handlers {
		if existing == h {
			return true
		}
	}
	return false
}

// add registers h unless it is already present.
func (c *Clock) add(h *ClockHandler) {
	if !c.hasHandler(h) {
		c.handlers = append(c.handlers, h)
	}
}

func (c *Clock) remove(h *ClockHandler) bool {
	for i, existing := range c.handlers {
		if existing == h {
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// nextTick returns the first period boundary strictly after now.
func (c *Clock) nextTick(now SimTime) SimTime {
	f := SimTime(c.period.Factor())
	return (now/f)*f + f
}

// schedule queues the clock's next tick if it is not already queued.
func (c *Clock) schedule(s *Simulation) {
	if c.scheduled {
		return
	}
	c.next = c.nextTick(s.currentCycle)
	c.scheduled = true
	s.insertActivity(c)
}

// DeliveryTime implements Activity.
func (c *Clock) DeliveryTime() SimTime { return c.next }

// Priority implements Activity.
func (c *Clock) Priority() int { return c.priority }

// Execute calls every handler registered when the tick began. A handler removed
// by an earlier handler in the same tick is skipped.
func (c *Clock) Execute(s *Simulation) {
	c.scheduled = false
	cycle := Cycle(c.period.FromCore(s.currentCycle))
	snapshot := make([]*ClockHandler, len(c.handlers))
	copy(snapshot, c.handlers)
	for _, h := range snapshot {
		if !c.hasHandler(h) {
			continue
		}
		if h.fn(cycle) {
			c.remove(h)
		}
	}
	if len(c.handlers) > 0 {
		c.schedule(s)
	}
}

// oneShot fires a single handler at a fixed time.
type oneShot struct {
	time     SimTime
	priority int
	handler  *OneShotHandler
}

func (o *oneShot) DeliveryTime() SimTime { return o.time }
func (o *oneShot) Priority() int         { return o.priority }
func (o *oneShot) Execute(_ *Simulation) { o.handler.fn() }

// exitActivity stops the event loop.
type exitActivity struct {
	time SimTime
}

func (e *exitActivity) DeliveryTime() SimTime { return e.time }
func (e *exitActivity) Priority() int         { return ExitPriority }
func (e *exitActivity) Execute(s *Simulation) { s.exitRequested = true }
