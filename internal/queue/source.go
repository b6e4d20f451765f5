package queue

import (
	"context"

	"github.com/google/uuid"
)

// Source is the FIFO feeding the worker pool. Every pushed id must be
// returned by exactly one Pop.
type Source interface {
	Push(ctx context.Context, id uuid.UUID) error
	// Pop blocks until an id is available. It returns common.ErrClosed once
	// the source is closed, or the context error.
	Pop(ctx context.Context) (uuid.UUID, error)
	Len() int
	Close() error
}
