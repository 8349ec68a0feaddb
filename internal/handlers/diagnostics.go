package handlers

import (
	"net/http"

	"github.com/musician-app/apiserver/internal/services"
)

// DiagnosticsHandler reports the caller's resolved identity and entitlement
// state. Never fails; missing data comes back as empty fields.
type DiagnosticsHandler struct {
	diagnostics *services.DiagnosticsService
}

func NewDiagnosticsHandler(diagnostics *services.DiagnosticsService) *DiagnosticsHandler {
	return &DiagnosticsHandler{diagnostics: diagnostics}
}

// Describe handles GET /diagnostics.
func (h *DiagnosticsHandler) Describe(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.diagnostics.Describe(r.Context(), ident))
}
