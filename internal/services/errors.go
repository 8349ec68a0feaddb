package services

import (
	"errors"
	"fmt"

	"github.com/musician-app/apiserver/types"
)

// ErrUnauthenticated is returned when no identity could be resolved for
// the caller.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrPaywall is returned when the caller's identity resolved but neither a
// paid tier nor free-trial eligibility covers the request.
var ErrPaywall = errors.New("paywall: no entitled tier and free trial already used")

// ErrInsufficientCredits is returned when the caller is entitled but out of
// balance. Distinct from ErrPaywall: the remedy is topping up, not
// upgrading.
var ErrInsufficientCredits = errors.New("insufficient credits")

// UpgradeRequiredError is returned when a request exceeds the caller's tier
// policy. It names the minimum tier that would satisfy the request so the
// caller can offer an upgrade path.
type UpgradeRequiredError struct {
	Field        string
	RequiredTier types.Tier
}

func (e *UpgradeRequiredError) Error() string {
	return fmt.Sprintf("%s requires the %s tier", e.Field, e.RequiredTier)
}

// ValidationError is returned for malformed or out-of-range input, before
// any side effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UpstreamError is returned when the generation engine or a media download
// fails. Surfaced as a server-side failure, never as a success.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
