package engine

import (
	"sync"

	"github.com/roach88/nbhd/internal/community"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventActorChanged carries a new signed-in identity ("" signs out).
	EventActorChanged EventType = iota + 1
	// EventRefresh is an explicit refresh request from presentation code.
	EventRefresh
	// EventCycleResult carries a finished resolver run back to the loop.
	EventCycleResult
	// EventTimer runs a scheduler callback on the loop goroutine.
	EventTimer
)

// String returns a log-friendly name.
func (t EventType) String() string {
	switch t {
	case EventActorChanged:
		return "actor_changed"
	case EventRefresh:
		return "refresh"
	case EventCycleResult:
		return "cycle_result"
	case EventTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the engine loop.
type Event struct {
	Type EventType

	// Actor is the new identity (EventActorChanged) or the identity the
	// result was resolved for (EventCycleResult).
	Actor community.ActorID

	// Attempt is the cycle a result belongs to (EventCycleResult).
	Attempt int64

	// Resolution and Err carry the resolver output (EventCycleResult).
	Resolution *Resolution
	Err        error

	// Fire is the scheduler callback (EventTimer).
	Fire func()
}

// eventQueue is the loop's unbounded FIFO inbox. Producers (SetActor,
// Refresh, fetch goroutines, timer callbacks) never block on it.
//
// signal has capacity 1 and coalesces wakeups; Run selects on it together
// with ctx.Done. Close closes signal so a waiting loop wakes immediately.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. It returns false, dropping e, once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue pops the oldest event, or reports false when empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	q.events[0] = Event{} // release Resolution and Fire
	q.events = q.events[1:]
	if len(q.events) == 0 {
		q.events = nil
	}
	return e, true
}

// Wait returns the wakeup channel. A receive means "try TryDequeue again",
// not that an event is guaranteed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len reports the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting events and wakes the loop. Queued events stay
// dequeueable.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
