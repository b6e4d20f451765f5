// Package memq is an in-process FIFO of job ids.
package memq

import (
	"context"
	"sync"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/google/uuid"
)

// Queue is an unbounded FIFO. Pop blocks until an id is available, the
// context ends or the queue is closed. Each pushed id is handed to exactly
// one Pop.
type Queue struct {
	mu     sync.Mutex
	items  []uuid.UUID
	closed bool

	signal chan struct{}
	done   chan struct{}
}

func New() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *Queue) Push(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return common.ErrClosed
	}
	q.items = append(q.items, id)
	q.mu.Unlock()

	q.notify()
	return nil
}

func (q *Queue) Pop(ctx context.Context) (uuid.UUID, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return uuid.Nil, common.ErrClosed
		}
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()

			// pass the wakeup on to another waiting consumer
			if more {
				q.notify()
			}
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		case <-q.done:
		case <-q.signal:
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes every blocked Pop. Ids still queued are dropped.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.items = nil
	close(q.done)
	return nil
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
