package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/musician-app/apiserver/types"
)

// EventRepository handles the append-only event ledger.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append records one event. Events are never updated or deleted.
func (r *EventRepository) Append(ctx context.Context, userID string, eventType types.EventType, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if payload == nil {
		payloadJSON = []byte("{}")
	}

	const query = `
		INSERT INTO events (id, user_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.ExecContext(ctx, query,
		uuid.NewString(), userID, eventType, payloadJSON, time.Now())
	return err
}

// HasEvent reports whether at least one event of the given type exists for
// the user. Used for one-time grants such as the free trial.
func (r *EventRepository) HasEvent(ctx context.Context, userID string, eventType types.EventType) (bool, error) {
	const query = `SELECT 1 FROM events WHERE user_id = $1 AND type = $2 LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, query, userID, eventType).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
