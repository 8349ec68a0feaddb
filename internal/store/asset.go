package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/musician-app/apiserver/types"
)

// AssetRepository handles persistence for generated assets.
//
// Single-asset reads always conjoin the asset id with the owning user id in
// one lookup. There is deliberately no Get-by-id: an asset that exists but
// is not the caller's must be indistinguishable from one that does not
// exist.
type AssetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// CreateIfAbsent inserts one take's asset row. The (job_id, take_index)
// uniqueness makes materialization idempotent: a second poller inserting
// the same take gets the existing row back.
func (r *AssetRepository) CreateIfAbsent(ctx context.Context, asset types.Asset) (types.Asset, error) {
	asset.ID = uuid.NewString()
	asset.CreatedAt = time.Now()

	const query = `
		INSERT INTO assets (id, user_id, job_id, take_index, title, bpm, duration,
			audio_key, loop_key, stems_key, license_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (job_id, take_index) DO UPDATE SET job_id = EXCLUDED.job_id
		RETURNING id, user_id, job_id, take_index, title, bpm, duration,
			audio_key, loop_key, stems_key, license_key, created_at`
	return r.scanOne(r.db.QueryRowContext(ctx, query,
		asset.ID,
		asset.UserID,
		asset.JobID,
		asset.TakeIndex,
		asset.Title,
		asset.BPM,
		asset.Duration,
		asset.AudioKey,
		asset.LoopKey,
		asset.StemsKey,
		asset.LicenseKey,
		asset.CreatedAt,
	))
}

// GetOwned fetches an asset only when it belongs to the given user.
func (r *AssetRepository) GetOwned(ctx context.Context, id, userID string) (types.Asset, error) {
	const query = `
		SELECT id, user_id, job_id, take_index, title, bpm, duration,
			audio_key, loop_key, stems_key, license_key, created_at
		FROM assets
		WHERE id = $1 AND user_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, userID))
}

// ListByUser returns the user's assets, newest first, capped at limit.
func (r *AssetRepository) ListByUser(ctx context.Context, userID string, limit int) ([]types.Asset, error) {
	if limit < 1 {
		limit = 50
	}

	const query = `
		SELECT id, user_id, job_id, take_index, title, bpm, duration,
			audio_key, loop_key, stems_key, license_key, created_at
		FROM assets
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]types.Asset, 0, limit)
	for rows.Next() {
		var asset types.Asset
		if err := rows.Scan(
			&asset.ID,
			&asset.UserID,
			&asset.JobID,
			&asset.TakeIndex,
			&asset.Title,
			&asset.BPM,
			&asset.Duration,
			&asset.AudioKey,
			&asset.LoopKey,
			&asset.StemsKey,
			&asset.LicenseKey,
			&asset.CreatedAt,
		); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// ListByJob returns a job's assets in take order.
func (r *AssetRepository) ListByJob(ctx context.Context, jobID string) ([]types.Asset, error) {
	const query = `
		SELECT id, user_id, job_id, take_index, title, bpm, duration,
			audio_key, loop_key, stems_key, license_key, created_at
		FROM assets
		WHERE job_id = $1
		ORDER BY take_index`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []types.Asset
	for rows.Next() {
		var asset types.Asset
		if err := rows.Scan(
			&asset.ID,
			&asset.UserID,
			&asset.JobID,
			&asset.TakeIndex,
			&asset.Title,
			&asset.BPM,
			&asset.Duration,
			&asset.AudioKey,
			&asset.LoopKey,
			&asset.StemsKey,
			&asset.LicenseKey,
			&asset.CreatedAt,
		); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func (r *AssetRepository) scanOne(row *sql.Row) (types.Asset, error) {
	var asset types.Asset
	err := row.Scan(
		&asset.ID,
		&asset.UserID,
		&asset.JobID,
		&asset.TakeIndex,
		&asset.Title,
		&asset.BPM,
		&asset.Duration,
		&asset.AudioKey,
		&asset.LoopKey,
		&asset.StemsKey,
		&asset.LicenseKey,
		&asset.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Asset{}, ErrNotFound
		}
		return types.Asset{}, err
	}
	return asset, nil
}
