package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/musician-app/apiserver/internal/policy"
	"github.com/musician-app/apiserver/internal/services"
	"github.com/musician-app/apiserver/internal/store"
	"github.com/musician-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthenticated", services.ErrUnauthenticated, http.StatusUnauthorized, codeUnauthenticated},
		{"paywall", services.ErrPaywall, http.StatusForbidden, codePaywall},
		{"insufficient credits", services.ErrInsufficientCredits, http.StatusPaymentRequired, codeInsufficientCredits},
		{"prompt blocked", &policy.PromptError{Reason: "nope"}, http.StatusUnprocessableEntity, codePromptBlocked},
		{"validation", &services.ValidationError{Message: "bad bpm"}, http.StatusBadRequest, codeValidation},
		{"not found", store.ErrNotFound, http.StatusNotFound, codeNotFound},
		{"upstream", &services.UpstreamError{Op: "poll", Err: errors.New("boom")}, http.StatusBadGateway, codeUpstream},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestWriteErrorUpgradeRequiredNamesPlan(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &services.UpgradeRequiredError{Field: "duration", RequiredTier: types.TierMid})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, codeUpgradeRequired, body.Code)
	assert.Equal(t, "MID", body.RequiredPlan)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused"))

	assert.NotContains(t, rec.Body.String(), "connection refused")
}
