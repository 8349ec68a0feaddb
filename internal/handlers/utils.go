package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/musician-app/apiserver/internal/policy"
	"github.com/musician-app/apiserver/internal/services"
	"github.com/musician-app/apiserver/internal/store"
	"go.uber.org/zap"
)

// Error codes returned to clients. Machine-readable so embedding frontends
// can route each failure to the right UI (upgrade dialog, top-up, rewrite).
const (
	codeUnauthenticated     = "UNAUTHENTICATED"
	codePaywall             = "FORBIDDEN_PAYWALL"
	codeUpgradeRequired     = "UPGRADE_REQUIRED"
	codeInsufficientCredits = "INSUFFICIENT_CREDITS"
	codePromptBlocked       = "PROMPT_BLOCKED"
	codeValidation          = "VALIDATION_ERROR"
	codeNotFound            = "NOT_FOUND"
	codeInternal            = "INTERNAL_ERROR"
	codeUpstream            = "UPSTREAM_ERROR"
)

type errorBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RequiredPlan string `json:"requiredPlan,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func writeErrorCode(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, map[string]errorBody{"error": body})
}

// writeError maps service errors onto HTTP status codes and stable error
// codes. Unknown errors surface as opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	var (
		upgradeErr *services.UpgradeRequiredError
		promptErr  *policy.PromptError
		validErr   *services.ValidationError
		upErr      *services.UpstreamError
	)

	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		writeErrorCode(w, http.StatusUnauthorized, errorBody{
			Code: codeUnauthenticated, Message: "authentication required",
		})
	case errors.Is(err, services.ErrPaywall):
		writeErrorCode(w, http.StatusForbidden, errorBody{
			Code: codePaywall, Message: "an active plan is required",
		})
	case errors.As(err, &upgradeErr):
		writeErrorCode(w, http.StatusForbidden, errorBody{
			Code:         codeUpgradeRequired,
			Message:      upgradeErr.Error(),
			RequiredPlan: string(upgradeErr.RequiredTier),
		})
	case errors.Is(err, services.ErrInsufficientCredits):
		writeErrorCode(w, http.StatusPaymentRequired, errorBody{
			Code: codeInsufficientCredits, Message: "not enough credits for this request",
		})
	case errors.As(err, &promptErr):
		writeErrorCode(w, http.StatusUnprocessableEntity, errorBody{
			Code: codePromptBlocked, Message: promptErr.Error(),
		})
	case errors.As(err, &validErr):
		writeErrorCode(w, http.StatusBadRequest, errorBody{
			Code: codeValidation, Message: validErr.Error(),
		})
	case errors.Is(err, store.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, errorBody{
			Code: codeNotFound, Message: "not found",
		})
	case errors.As(err, &upErr):
		zap.L().Error("upstream failure", zap.Error(err))
		writeErrorCode(w, http.StatusBadGateway, errorBody{
			Code: codeUpstream, Message: "an upstream service failed",
		})
	default:
		zap.L().Error("internal error", zap.Error(err))
		writeErrorCode(w, http.StatusInternalServerError, errorBody{
			Code: codeInternal, Message: "internal server error",
		})
	}
}
