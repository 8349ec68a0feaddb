package types

import (
	"database/sql"
	"time"
)

// JobStatus represents the lifecycle state of a generation job.
// Transitions are monotonic: QUEUED -> PROCESSING -> COMPLETED | FAILED.
// There is no transition out of a terminal state.
type JobStatus string

// Supported job statuses.
const (
	JobQueued     JobStatus = "QUEUED"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job represents one submitted generation request, tracked through an
// asynchronous lifecycle. A job may produce several output takes.
type Job struct {
	// ID equals the identifier assigned by the external generation
	// engine, so retries correlate idempotently with the same row.
	ID string `json:"id" db:"id"`

	// UserID identifies the owning user.
	UserID string `json:"user_id" db:"user_id"`

	// Status is the current lifecycle state.
	Status JobStatus `json:"status" db:"status"`

	// Payload is the generation request as accepted and billed.
	Payload ComposeParams `json:"payload" db:"payload"`

	// Error carries the upstream failure message for FAILED jobs.
	Error sql.NullString `json:"error,omitempty" db:"error"`

	// CompletedAt is set once the job reaches COMPLETED.
	CompletedAt sql.NullTime `json:"completed_at,omitempty" db:"completed_at"`

	// CreatedAt is the timestamp when the request was accepted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent status change.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ComposeParams is the validated payload of a generation request.
type ComposeParams struct {
	// Vibe is the free-text prompt describing the desired output.
	Vibe string `json:"vibe"`

	// BPM is the requested tempo, 40 to 220.
	BPM int `json:"bpm"`

	// Duration is the requested length in seconds, 5 to 120.
	Duration int `json:"duration"`

	// Structure is an arrangement tag (e.g. "intro-verse-hook").
	Structure string `json:"structure"`

	// Seed optionally pins the engine's randomness for reproducibility.
	Seed string `json:"seed,omitempty"`

	// Batch is the number of variations to generate, 1 to 10.
	Batch int `json:"batch"`

	// Stems requests per-instrument stem outputs.
	Stems bool `json:"stems"`

	// Vocals requests a vocal layer in the generated audio.
	Vocals bool `json:"vocals,omitempty"`

	// ReusePlan requests reuse of a previous arrangement plan.
	ReusePlan bool `json:"reusePlan,omitempty"`

	// StreamingPreview requests low-latency streamed preview support.
	StreamingPreview bool `json:"streamingPreview,omitempty"`
}
