package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/musician-app/apiserver/internal/services"
	"go.uber.org/zap"
)

// AssetHandler serves the caller's asset library and guarded downloads.
type AssetHandler struct {
	assets       *services.AssetService
	signedURLTTL time.Duration
	logger       *zap.Logger
}

func NewAssetHandler(assets *services.AssetService, signedURLTTL time.Duration, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{assets: assets, signedURLTTL: signedURLTTL, logger: logger}
}

// List handles GET /assets.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	userID, err := h.assets.ResolveUserID(r.Context(), ident)
	if err != nil {
		if services.IsNotFound(err) {
			// A user we have never seen has an empty library, not an
			// error.
			writeJSON(w, http.StatusOK, map[string]any{"assets": []services.AssetView{}})
			return
		}
		writeError(w, err)
		return
	}

	views, err := h.assets.List(r.Context(), userID, h.signedURLTTL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": views})
}

// Download handles GET /assets/{assetId}/download?type={wav|loop|stems}.
func (h *AssetHandler) Download(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetId")
	variant := services.DownloadVariant(r.URL.Query().Get("type"))
	if variant == "" {
		variant = services.VariantWAV
	}

	ident := IdentityFromContext(r.Context())
	userID, err := h.assets.ResolveUserID(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}

	download, err := h.assets.Download(r.Context(), userID, assetID, variant)
	if err != nil {
		writeError(w, err)
		return
	}
	defer download.Body.Close()

	streamAttachment(w, download, h.logger)
}

func streamAttachment(w http.ResponseWriter, d services.Download, logger *zap.Logger) {
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
	if _, err := io.Copy(w, d.Body); err != nil {
		logger.Warn("attachment stream interrupted", zap.Error(err))
	}
}
