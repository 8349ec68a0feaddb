package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/musician-app/apiserver/types"
)

// decrementTimeout bounds the credit transaction so a stuck lock cannot
// hang a request indefinitely.
const decrementTimeout = 5 * time.Second

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `
		SELECT id, platform_user_id, username, tier, credits, created_at, updated_at
		FROM users
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByPlatformID(ctx context.Context, platformUserID string) (types.User, error) {
	const query = `
		SELECT id, platform_user_id, username, tier, credits, created_at, updated_at
		FROM users
		WHERE platform_user_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, platformUserID))
}

// UpsertByPlatformID provisions a user on first contact. An existing row is
// returned unchanged; the supplied defaults only apply to new accounts.
func (r *UserRepository) UpsertByPlatformID(ctx context.Context, platformUserID, username string, tier types.Tier, initialCredits int64) (types.User, error) {
	now := time.Now()
	const query = `
		INSERT INTO users (id, platform_user_id, username, tier, credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (platform_user_id) DO UPDATE SET platform_user_id = EXCLUDED.platform_user_id
		RETURNING id, platform_user_id, username, tier, credits, created_at, updated_at`
	return r.scanOne(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), platformUserID, username, tier, initialCredits, now))
}

// SyncTier records the entitled tier. On a tier change the balance is
// raised to the new tier's baseline; an unchanged tier leaves the balance
// alone so spent credits stay spent. It never reduces an existing balance.
func (r *UserRepository) SyncTier(ctx context.Context, userID string, tier types.Tier, baselineCredits int64) (types.User, error) {
	const query = `
		UPDATE users
		SET credits = CASE WHEN tier = $2 THEN credits ELSE GREATEST(credits, $3) END,
			tier = $2,
			updated_at = $4
		WHERE id = $1
		RETURNING id, platform_user_id, username, tier, credits, created_at, updated_at`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, tier, baselineCredits, time.Now()))
}

// DecrementCredits atomically subtracts amount from the user's balance and
// returns the new balance. The read, the check and the write run in one
// transaction with the row locked, so concurrent decrements serialize and
// the balance can never go negative.
func (r *UserRepository) DecrementCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, decrementTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT credits FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if balance < amount {
		return 0, ErrInsufficientCredits
	}

	var updated int64
	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET credits = credits - $2, updated_at = $3
		WHERE id = $1
		RETURNING credits`, userID, amount, time.Now()).Scan(&updated)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *UserRepository) scanOne(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.PlatformUserID,
		&user.Username,
		&user.Tier,
		&user.Credits,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
