// Package repository persists analysis jobs in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/fedutinova/speechcoach/internal/database"
	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/fedutinova/speechcoach/internal/pipeline"
	"github.com/fedutinova/speechcoach/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const schema = `
	CREATE TABLE IF NOT EXISTS analysis_jobs (
		seq          BIGSERIAL UNIQUE,
		id           UUID PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		audio_ref    TEXT NOT NULL,
		transcript   TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		progress     INTEGER NOT NULL DEFAULT 0,
		result       JSONB,
		error        TEXT NOT NULL DEFAULT '',
		metadata     JSONB NOT NULL DEFAULT '{}',
		created_at   TIMESTAMPTZ NOT NULL,
		started_at   TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS analysis_jobs_owner_idx ON analysis_jobs (owner_id, created_at, seq);
	CREATE INDEX IF NOT EXISTS analysis_jobs_status_idx ON analysis_jobs (status, completed_at);
`

const jobColumns = `id, owner_id, audio_ref, transcript, status, progress, result, error, metadata, created_at, started_at, completed_at`

// JobRepository is a store.Store on PostgreSQL. Updates lock the row with
// SELECT ... FOR UPDATE so concurrent claims serialize per job.
type JobRepository struct {
	db *database.DB
}

var _ store.Store = (*JobRepository)(nil)

func NewJobRepository(db *database.DB) *JobRepository {
	return &JobRepository{db: db}
}

// EnsureSchema creates the jobs table and its indexes if missing.
func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool().Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create jobs schema: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	result, metadata, err := encode(j)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Pool().Exec(ctx, query,
		j.ID, j.OwnerID, j.AudioRef, j.Transcript, j.Status, j.Progress,
		result, j.Error, metadata, j.CreatedAt, j.StartedAt, j.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("job %s: %w", j.ID, common.ErrConflict)
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1`
	return getJob(ctx, r.db.Pool(), query, id)
}

func (r *JobRepository) Update(ctx context.Context, id uuid.UUID, fn store.UpdateFunc) (*job.Job, error) {
	var updated *job.Job
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1 FOR UPDATE`
		j, err := getJob(ctx, tx, query, id)
		if err != nil {
			return err
		}
		if err := fn(j); err != nil {
			return err
		}

		result, metadata, err := encode(j)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE analysis_jobs
			SET status = $2, progress = $3, result = $4, error = $5, metadata = $6,
			    started_at = $7, completed_at = $8
			WHERE id = $1
		`, j.ID, j.Status, j.Progress, result, j.Error, metadata, j.StartedAt, j.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		updated = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM analysis_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", common.ErrJobNotFound, id)
	}
	return nil
}

func (r *JobRepository) ListByOwner(ctx context.Context, ownerID string) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE owner_id = $1 ORDER BY created_at, seq`
	rows, err := r.db.Pool().Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return collectJobs(rows)
}

func (r *JobRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]*job.Job, error) {
	query := `
		DELETE FROM analysis_jobs
		WHERE status IN ($1, $2, $3) AND COALESCE(completed_at, created_at) < $4
		RETURNING ` + jobColumns
	rows, err := r.db.Pool().Query(ctx, query,
		job.StatusCompleted, job.StatusFailed, job.StatusCancelled, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired jobs: %w", err)
	}
	return collectJobs(rows)
}

// Close is a no-op; the pool belongs to the caller.
func (r *JobRepository) Close() error {
	return nil
}

func getJob(ctx context.Context, q database.Querier, query string, id uuid.UUID) (*job.Job, error) {
	j, err := scanJob(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j        job.Job
		result   []byte
		metadata []byte
	)
	err := row.Scan(&j.ID, &j.OwnerID, &j.AudioRef, &j.Transcript, &j.Status, &j.Progress,
		&result, &j.Error, &metadata, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}

	if len(result) > 0 {
		j.Result = &pipeline.Result{}
		if err := json.Unmarshal(result, j.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}
	j.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &j.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &j, nil
}

func encode(j *job.Job) (result, metadata []byte, err error) {
	if j.Result != nil {
		if result, err = json.Marshal(j.Result); err != nil {
			return nil, nil, fmt.Errorf("failed to encode result: %w", err)
		}
	}
	md := j.Metadata
	if md == nil {
		md = map[string]string{}
	}
	if metadata, err = json.Marshal(md); err != nil {
		return nil, nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return result, metadata, nil
}
