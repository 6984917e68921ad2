package input

import "sync/atomic"

// DefaultQueueSize bounds the number of gestures buffered between UI ticks.
const DefaultQueueSize = 64

// Queue is the single hand-off point between reader goroutines and the UI
// tick.
type Queue struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewQueue returns a queue holding at most size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Event, size)}
}

// Push enqueues ev without blocking. When the queue is full the event is
// dropped and counted.
func (q *Queue) Push(ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Drain returns every pending event in arrival order without blocking.
func (q *Queue) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-q.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Dropped reports how many events were discarded because the queue was
// full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
