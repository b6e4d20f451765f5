package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/google/uuid"
)

type entry struct {
	job *job.Job
	seq uint64
}

// Memory is a Store backed by a map. Callers always receive copies.
type Memory struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entry
	seq  uint64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{jobs: make(map[uuid.UUID]*entry)}
}

func (m *Memory) Create(ctx context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[j.ID]; ok {
		return fmt.Errorf("job %s: %w", j.ID, common.ErrConflict)
	}
	m.seq++
	m.jobs[j.ID] = &entry{job: j.Clone(), seq: m.seq}
	return nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrJobNotFound, id)
	}
	return e.job.Clone(), nil
}

func (m *Memory) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrJobNotFound, id)
	}

	next := e.job.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	e.job = next
	return next.Clone(), nil
}

func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", common.ErrJobNotFound, id)
	}
	delete(m.jobs, id)
	return nil
}

func (m *Memory) ListByOwner(ctx context.Context, ownerID string) ([]*job.Job, error) {
	m.mu.RLock()
	var matched []*entry
	for _, e := range m.jobs {
		if e.job.OwnerID == ownerID {
			matched = append(matched, &entry{job: e.job.Clone(), seq: e.seq})
		}
	}
	m.mu.RUnlock()

	sortEntries(matched)
	out := make([]*job.Job, len(matched))
	for i, e := range matched {
		out[i] = e.job
	}
	return out, nil
}

func (m *Memory) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []*entry
	for id, e := range m.jobs {
		if Expired(e.job, cutoff) {
			removed = append(removed, e)
			delete(m.jobs, id)
		}
	}

	sortEntries(removed)
	out := make([]*job.Job, len(removed))
	for i, e := range removed {
		out[i] = e.job
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

func sortEntries(es []*entry) {
	slices.SortFunc(es, func(a, b *entry) int {
		if c := a.job.CreatedAt.Compare(b.job.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
}
