package intake

import (
	"errors"
	"sync/atomic"

	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("intake queue full")
	ErrQueueClosed = errors.New("intake queue closed")
)

// Queue buffers executions that arrive while a rebuild is in flight.
// They are never merged into the in-flight computation; the next
// rebuild drains and picks them up.
type Queue struct {
	ch     chan schema.Execution
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan schema.Execution, capacity)}
}

// TryPublish enqueues an execution without blocking.
func (q *Queue) TryPublish(e schema.Execution) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain removes and returns everything currently buffered.
func (q *Queue) Drain() []schema.Execution {
	var out []schema.Execution
	for {
		select {
		case e, ok := <-q.ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

// Len returns the number of buffered executions.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new executions.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}
