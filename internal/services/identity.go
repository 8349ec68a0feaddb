package services

import (
	"context"

	"github.com/musician-app/apiserver/types"
)

// Identity is the caller's resolved identity. Either field may be empty:
// PlatformUserID comes from a verified platform token, UserID from the
// fallback cookie established on a prior compose call.
type Identity struct {
	PlatformUserID string
	UserID         string
}

// Anonymous reports whether no identity mechanism resolved.
func (i Identity) Anonymous() bool {
	return i.PlatformUserID == "" && i.UserID == ""
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByPlatformID(ctx context.Context, platformUserID string) (types.User, error)
	UpsertByPlatformID(ctx context.Context, platformUserID, username string, tier types.Tier, initialCredits int64) (types.User, error)
	SyncTier(ctx context.Context, userID string, tier types.Tier, baselineCredits int64) (types.User, error)
	DecrementCredits(ctx context.Context, userID string, amount int64) (int64, error)
}

// JobRepository defines persistence operations for jobs.
type JobRepository interface {
	Upsert(ctx context.Context, job types.Job) (types.Job, error)
	GetOwned(ctx context.Context, id, userID string) (types.Job, error)
	SetStatus(ctx context.Context, id string, status types.JobStatus) error
	MarkCompleted(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, message string) error
}

// AssetRepository defines persistence operations for assets.
type AssetRepository interface {
	CreateIfAbsent(ctx context.Context, asset types.Asset) (types.Asset, error)
	GetOwned(ctx context.Context, id, userID string) (types.Asset, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]types.Asset, error)
	ListByJob(ctx context.Context, jobID string) ([]types.Asset, error)
}

// EventRepository defines operations on the append-only event ledger.
type EventRepository interface {
	Append(ctx context.Context, userID string, eventType types.EventType, payload any) error
	HasEvent(ctx context.Context, userID string, eventType types.EventType) (bool, error)
}

// TierResolver resolves a platform identity to its entitled tier.
type TierResolver interface {
	Resolve(ctx context.Context, platformUserID string) (types.Tier, bool)
}
