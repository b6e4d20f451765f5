// Package store keeps job records behind an interface with an atomic
// read-modify-write primitive.
package store

import (
	"context"
	"time"

	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/google/uuid"
)

// UpdateFunc mutates a job in place. Returning an error aborts the update
// and leaves the stored record unchanged.
type UpdateFunc func(j *job.Job) error

type Store interface {
	// Create inserts a new record; it fails with common.ErrConflict on a
	// duplicate id.
	Create(ctx context.Context, j *job.Job) error
	// Get returns a copy of the record or common.ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*job.Job, error)
	// Update applies fn atomically with respect to other Updates of the same
	// record and returns the new state.
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*job.Job, error)
	// Delete removes a record regardless of its status.
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByOwner returns the owner's jobs, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*job.Job, error)
	// DeleteTerminalBefore removes terminal jobs that completed before
	// cutoff and returns them.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]*job.Job, error)
	Close() error
}

// Expired reports whether a terminal job finished before cutoff. Jobs
// without a completion time age from creation.
func Expired(j *job.Job, cutoff time.Time) bool {
	if !j.Status.IsTerminal() {
		return false
	}
	at := j.CreatedAt
	if j.CompletedAt != nil {
		at = *j.CompletedAt
	}
	return at.Before(cutoff)
}
