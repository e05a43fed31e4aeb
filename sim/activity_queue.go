package sim

import "container/heap"

// Dispatch priorities for activities that fall on the same core tick.
// Lower values run first. Clocks observe the state left by the previous tick,
// link events are then delivered, and one-shots see the effects of both.
const (
	ClockPriority   = 40
	EventPriority   = 50
	OneShotPriority = 80
	ExitPriority    = 99
)

// Activity is anything the event loop can dispatch.
type Activity interface {
	DeliveryTime() SimTime
	Priority() int
	Execute(s *Simulation)
}

type queuedActivity struct {
	act   Activity
	time  SimTime
	prio  int
	order uint64
}

// ActivityQueue is a priority queue with deterministic ordering.
// Ordering: delivery time → priority → insertion order.
type ActivityQueue struct {
	items     []queuedActivity
	insertSeq uint64
}

// NewActivityQueue creates an empty queue.
func NewActivityQueue() *ActivityQueue {
	q := &ActivityQueue{items: make([]queuedActivity, 0)}
	heap.Init(q)
	return q
}

// Len implements heap.Interface
func (q *ActivityQueue) Len() int {
	return len(q.items)
}

// Less implements heap.Interface with deterministic ordering
func (q *ActivityQueue) Less(i, j int) bool {
	ai, aj := q.items[i], q.items[j]

	// Primary: delivery time (lower first)
	if ai.time != aj.time {
		return ai.time < aj.time
	}

	// Secondary: priority (lower value = processed first)
	if ai.prio != aj.prio {
		return ai.prio < aj.prio
	}

	// Tertiary: insertion order (deterministic tie-breaker)
	return ai.order < aj.order
}

// Swap implements heap.Interface
func (q *ActivityQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

// Push implements heap.Interface
func (q *ActivityQueue) Push(x any) {
	q.items = append(q.items, x.(queuedActivity))
}

// Pop implements heap.Interface
func (q *ActivityQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[0 : n-1]
	return item
}

// Insert adds an activity to the queue.
// Time and priority are captured at insertion; later changes to the activity do not
// reorder it.
func (q *ActivityQueue) Insert(a Activity) {
	q.insertSeq++
	heap.Push(q, queuedActivity{act: a, time: a.DeliveryTime(), prio: a.Priority(), order: q.insertSeq})
}

// PopNext removes and returns the next activity
func (q *ActivityQueue) PopNext() Activity {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(queuedActivity).act
}

// Peek returns the next activity without removing it
func (q *ActivityQueue) Peek() Activity {
	if q.Len() == 0 {
		return nil
	}
	return q.items[0].act
}
