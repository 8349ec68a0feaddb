package types

import "time"

// User represents an account in the system.
// Accounts are provisioned lazily on first authenticated interaction and
// keyed by the marketplace platform's user identifier.
type User struct {
	// ID is the stable internal identifier of the user.
	ID string `json:"id" db:"id"`

	// PlatformUserID is the unique identifier assigned by the
	// marketplace platform. Used for upsert-on-first-contact.
	PlatformUserID string `json:"platform_user_id" db:"platform_user_id"`

	// Username is the user's display name.
	Username string `json:"username" db:"username"`

	// Tier is the subscription tier last synced for this user.
	Tier Tier `json:"tier" db:"tier"`

	// Credits is the user's current credit balance. Never negative;
	// one credit funds one generated variation.
	Credits int64 `json:"credits" db:"credits"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
