package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/musician-app/apiserver/internal/services"
	"github.com/musician-app/apiserver/types"
)

// ComposeHandler exposes the generation pipeline: submit a request, then
// poll its job until assets materialize.
type ComposeHandler struct {
	compose  *services.ComposeService
	jobs     *services.JobService
	assets   *services.AssetService
	identity *IdentityMiddleware
}

func NewComposeHandler(
	compose *services.ComposeService,
	jobs *services.JobService,
	assets *services.AssetService,
	identity *IdentityMiddleware,
) *ComposeHandler {
	return &ComposeHandler{compose: compose, jobs: jobs, assets: assets, identity: identity}
}

type composeResponse struct {
	JobID         string `json:"jobId"`
	UsedFreeTrial bool   `json:"usedFreeTrial"`
}

// Create handles POST /compose.
func (h *ComposeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params types.ComposeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, &services.ValidationError{Message: "invalid request body"})
		return
	}

	ident := IdentityFromContext(r.Context())
	result, err := h.compose.RequestGeneration(r.Context(), ident, params)
	if err != nil {
		writeError(w, err)
		return
	}

	// Bind the browser to the provisioned user so later requests work
	// even when the embedding context stops forwarding the token.
	h.identity.SetIdentityCookie(w, result.UserID)

	writeJSON(w, http.StatusOK, composeResponse{
		JobID:         result.JobID,
		UsedFreeTrial: result.UsedFreeTrial,
	})
}

// Poll handles GET /compose/{jobId}.
func (h *ComposeHandler) Poll(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	ident := IdentityFromContext(r.Context())
	userID, err := h.assets.ResolveUserID(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.jobs.Poll(r.Context(), jobID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	// A failed job is reported as a failure, never inside a 2xx body.
	if result.Status == types.JobFailed {
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
