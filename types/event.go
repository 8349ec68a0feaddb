package types

import (
	"encoding/json"
	"time"
)

// EventType enumerates the recorded event kinds.
type EventType string

// Known event types. FreeTrialUsed doubles as one-time-grant bookkeeping:
// its presence means the user has consumed their free trial.
const (
	EventGenerationRequested EventType = "generation_requested"
	EventGenerationCompleted EventType = "generation_completed"
	EventFreeTrialUsed       EventType = "free_trial_used"
	EventDownloadWAV         EventType = "download_wav"
	EventDownloadStems       EventType = "download_stems"
	EventLicenseOpened       EventType = "license_opened"
)

// Event is one append-only ledger/audit record. Events are never mutated
// or deleted.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id" db:"id"`

	// UserID identifies the user the event belongs to.
	UserID string `json:"user_id" db:"user_id"`

	// Type is the event kind.
	Type EventType `json:"type" db:"type"`

	// Payload carries free-form event details.
	Payload json.RawMessage `json:"payload" db:"payload"`

	// CreatedAt is the timestamp when the event was appended.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
