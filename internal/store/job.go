package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/musician-app/apiserver/types"
)

// JobRepository handles persistence for generation jobs.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Upsert records an accepted job under the engine-assigned id. A retry with
// the same id leaves the existing row untouched, so submission is idempotent.
func (r *JobRepository) Upsert(ctx context.Context, job types.Job) (types.Job, error) {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return types.Job{}, err
	}

	const query = `
		INSERT INTO jobs (id, user_id, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, user_id, status, payload, error, completed_at, created_at, updated_at`
	return r.scanOne(r.db.QueryRowContext(ctx, query,
		job.ID, job.UserID, job.Status, payloadJSON, now))
}

// GetOwned fetches a job only when it belongs to the given user. The owner
// predicate is part of the lookup; an unowned job reads as absent.
func (r *JobRepository) GetOwned(ctx context.Context, id, userID string) (types.Job, error) {
	const query = `
		SELECT id, user_id, status, payload, error, completed_at, created_at, updated_at
		FROM jobs
		WHERE id = $1 AND user_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, userID))
}

// SetStatus advances a non-terminal job to the given status. Terminal rows
// are left untouched, keeping transitions monotonic even when two pollers
// race.
func (r *JobRepository) SetStatus(ctx context.Context, id string, status types.JobStatus) error {
	const query = `
		UPDATE jobs
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')`
	_, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	return err
}

// MarkCompleted moves a non-terminal job to COMPLETED with a completion
// timestamp. It reports whether this call performed the transition, so the
// winning poller of a race can be identified.
func (r *JobRepository) MarkCompleted(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	const query = `
		UPDATE jobs
		SET status = 'COMPLETED', completed_at = $2, updated_at = $2
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')`
	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkFailed moves a non-terminal job to FAILED with the upstream error.
func (r *JobRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `
		UPDATE jobs
		SET status = 'FAILED', error = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')`
	_, err := r.db.ExecContext(ctx, query, id, message, time.Now())
	return err
}

func (r *JobRepository) scanOne(row *sql.Row) (types.Job, error) {
	var job types.Job
	var payloadJSON []byte
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&payloadJSON,
		&job.Error,
		&job.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Job{}, ErrNotFound
		}
		return types.Job{}, err
	}
	if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
		return types.Job{}, err
	}
	return job, nil
}
