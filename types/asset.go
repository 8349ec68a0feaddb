package types

import (
	"database/sql"
	"time"
)

// Asset represents one finished, downloadable output ("take") belonging to
// exactly one job and one user. Immutable after creation except for the
// lazily materialized license object.
type Asset struct {
	// ID is the unique identifier of the asset.
	ID string `json:"id" db:"id"`

	// UserID identifies the owning user. Every read path must conjoin
	// this with the asset id; there is no lookup by id alone.
	UserID string `json:"user_id" db:"user_id"`

	// JobID identifies the generation job that produced this asset.
	JobID string `json:"job_id" db:"job_id"`

	// TakeIndex is the 1-based position of this take within its job's
	// batch. Together with JobID it makes asset creation idempotent.
	TakeIndex int `json:"take_index" db:"take_index"`

	// Title is a human-readable name derived from the prompt.
	Title string `json:"title" db:"title"`

	// BPM is the tempo of the generated audio.
	BPM int `json:"bpm" db:"bpm"`

	// Duration is the length of the generated audio in seconds.
	Duration int `json:"duration" db:"duration"`

	// AudioKey is the object-storage key of the primary audio.
	AudioKey string `json:"-" db:"audio_key"`

	// LoopKey is the object-storage key of the loop-friendly variant.
	LoopKey string `json:"-" db:"loop_key"`

	// StemsKey is the object-storage key of the stems archive, when
	// stems were requested and produced.
	StemsKey sql.NullString `json:"-" db:"stems_key"`

	// LicenseKey is the object-storage key under which the license text
	// is materialized on first request.
	LicenseKey string `json:"-" db:"license_key"`

	// CreatedAt is the timestamp when the asset was materialized.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
