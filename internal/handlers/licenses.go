package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/musician-app/apiserver/internal/services"
	"go.uber.org/zap"
)

// LicenseHandler issues license certificates for owned assets.
type LicenseHandler struct {
	assets *services.AssetService
	logger *zap.Logger
}

func NewLicenseHandler(assets *services.AssetService, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{assets: assets, logger: logger}
}

// Create handles POST /licenses/{assetId}.
func (h *LicenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetId")

	ident := IdentityFromContext(r.Context())
	userID, err := h.assets.ResolveUserID(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}

	download, err := h.assets.License(r.Context(), userID, assetID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer download.Body.Close()

	streamAttachment(w, download, h.logger)
}
