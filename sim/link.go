package sim

// Event is the payload carried by a link. The kernel never inspects it.
type Event any

// EventHandler receives events delivered to an event-driven port.
// Handlers are compared by pointer identity.
type EventHandler struct {
	fn func(ev Event)
}

// NewEventHandler wraps fn as an event handler.
func NewEventHandler(fn func(ev Event)) *EventHandler {
	return &EventHandler{fn: fn}
}

// Link is one side of a bound channel between two ports, or a loopback for a
// self-link. Events sent on a link are delivered to its peer.
type Link struct {
	peer            *Link
	sim             *Simulation
	latency         SimTime
	defaultTimeBase *TimeConverter
	handler         *EventHandler
	polling         bool
	configured      bool
	self            bool
	owner           string
	port            string
	pending         []Event
}

// newLinkPair creates the two sides of a channel with the given latency.
func newLinkPair(s *Simulation, latency SimTime) (*Link, *Link) {
	left := &Link{sim: s, latency: latency}
	right := &Link{sim: s, latency: latency, peer: left}
	left.peer = right
	return left, right
}

// newSelfLink creates a loopback endpoint whose peer is itself.
func newSelfLink(s *Simulation) *Link {
	l := &Link{sim: s, self: true}
	l.peer = l
	return l
}

// IsConfigured reports whether a component has bound this endpoint.
func (l *Link) IsConfigured() bool { return l.configured }

// IsPolling reports whether the endpoint is read with Recv instead of a handler.
func (l *Link) IsPolling() bool { return l.polling }

// IsSelfLink reports whether the endpoint loops back to itself.
func (l *Link) IsSelfLink() bool { return l.self }

// Latency returns the minimum delivery delay in core ticks.
func (l *Link) Latency() SimTime { return l.latency }

// DefaultTimeBase returns the resolution used to interpret send delays.
// Nil means unset.
func (l *Link) DefaultTimeBase() *TimeConverter { return l.defaultTimeBase }

// Owner returns the name of the component that configured this endpoint.
func (l *Link) Owner() string { return l.owner }

// Port returns the port name this endpoint was configured under.
func (l *Link) Port() string { return l.port }

// Send delivers ev to the peer after delay units of the link's default time base.
func (l *Link) Send(delay uint64, ev Event) error {
	if l.defaultTimeBase == nil {
		if delay != 0 {
			return contractErr("Link.Send", l.owner, ErrInvalidTime,
				"port %q has no default time base for delay %d", l.port, delay)
		}
		return l.send(0, ev)
	}
	d, err := l.defaultTimeBase.ToCore(delay)
	if err != nil {
		return withComponent(err, l.owner)
	}
	return l.send(d, ev)
}

// SendIn delivers ev to the peer after delay units of tc.
func (l *Link) SendIn(delay uint64, tc *TimeConverter, ev Event) error {
	d, err := tc.ToCore(delay)
	if err != nil {
		return withComponent(err, l.owner)
	}
	return l.send(d, ev)
}

func (l *Link) send(delay SimTime, ev Event) error {
	if l.peer == nil || l.sim == nil {
		return contractErr("Link.Send", l.owner, ErrNotBuilt, "port %q is not bound to a peer", l.port)
	}
	at, err := addTime("Link.Send", l.latency, delay)
	if err == nil {
		at, err = addTime("Link.Send", l.sim.currentCycle, at)
	}
	if err != nil {
		return withComponent(err, l.owner)
	}
	l.sim.insertActivity(&linkDelivery{
		time:   at,
		target: l.peer,
		event:  ev,
	})
	return nil
}

// Recv returns the oldest delivered event on a polling endpoint, or nil.
func (l *Link) Recv() Event {
	if len(l.pending) == 0 {
		return nil
	}
	ev := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return ev
}

// linkDelivery hands an event to its target endpoint at delivery time.
type linkDelivery struct {
	time   SimTime
	target *Link
	event  Event
}

func (d *linkDelivery) DeliveryTime() SimTime { return d.time }
func (d *linkDelivery) Priority() int         { return EventPriority }

func (d *linkDelivery) Execute(_ *Simulation) {
	if d.target.handler != nil {
		d.target.handler.fn(d.event)
		return
	}
	d.target.pending = append(d.target.pending, d.event)
}
