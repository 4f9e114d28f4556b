package reconcile

import "sync"

// Trigger asks for a reconcile pass.
type Trigger struct {
	// Reason is logged with the pass, e.g. "online" or "sync-event".
	Reason string

	// Tag limits the pass to one sync tag. Empty means every kind.
	Tag string
}

// triggerQueue is a thread-safe FIFO of pending triggers.
//
// A trigger for the same tag as one already waiting is dropped: the waiting pass will
// see every action the dropped one would have.
//
// The queue signals availability over a buffered channel of size 1 so the
// Run loop can wait on it together with context cancellation.
type triggerQueue struct {
	mu       sync.Mutex
	triggers []Trigger
	closed   bool
	signal   chan struct{}
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		triggers: make([]Trigger, 0, 8),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds t unless an equal trigger is already waiting.
// Returns false if the queue is closed.
func (q *triggerQueue) Enqueue(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	for _, waiting := range q.triggers {
		if waiting.Tag == t.Tag {
			return true
		}
	}
	q.triggers = append(q.triggers, t)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front trigger without blocking.
func (q *triggerQueue) TryDequeue() (Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.triggers) == 0 {
		return Trigger{}, false
	}
	t := q.triggers[0]
	if len(q.triggers) == 1 {
		q.triggers = q.triggers[:0]
	} else {
		q.triggers = q.triggers[1:]
	}
	return t, true
}

// Wait returns a channel that signals when triggers may be available.
// It is closed by Close.
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of waiting triggers.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.triggers)
}

// Close stops accepting triggers and wakes the Run loop.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
