package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/musician-app/apiserver/internal/storage"
	"github.com/musician-app/apiserver/internal/store"
	"github.com/musician-app/apiserver/types"
	"go.uber.org/zap"
)

// maxAssetListSize caps the library listing; the library view is a recency
// window, not a full export.
const maxAssetListSize = 50

// DownloadVariant selects which rendition of an asset to download.
type DownloadVariant string

// Supported download variants.
const (
	VariantWAV   DownloadVariant = "wav"
	VariantLoop  DownloadVariant = "loop"
	VariantStems DownloadVariant = "stems"
)

// Download is a streamed asset rendition with its delivery metadata.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
}

// AssetService serves the user's asset library and guarded downloads.
//
// Every read is keyed by owner and asset together. An asset that exists but
// belongs to someone else is indistinguishable from one that does not exist,
// so asset ids cannot be enumerated.
type AssetService struct {
	assets  AssetRepository
	users   UserRepository
	events  EventRepository
	storage *storage.Storage
	logger  *zap.Logger
}

func NewAssetService(
	assets AssetRepository,
	users UserRepository,
	events EventRepository,
	store *storage.Storage,
	logger *zap.Logger,
) *AssetService {
	return &AssetService{
		assets:  assets,
		users:   users,
		events:  events,
		storage: store,
		logger:  logger,
	}
}

// ResolveUserID maps a caller identity onto an internal user id without
// provisioning. Unknown identities come back as store.ErrNotFound so guarded
// reads collapse to the same not-found surface.
func (s *AssetService) ResolveUserID(ctx context.Context, ident Identity) (string, error) {
	switch {
	case ident.UserID != "":
		return ident.UserID, nil
	case ident.PlatformUserID != "":
		user, err := s.users.GetByPlatformID(ctx, ident.PlatformUserID)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	default:
		return "", ErrUnauthenticated
	}
}

// List returns the user's assets, newest first, with signed delivery URLs.
func (s *AssetService) List(ctx context.Context, userID string, signedURLTTL time.Duration) ([]AssetView, error) {
	assets, err := s.assets.ListByUser(ctx, userID, maxAssetListSize)
	if err != nil {
		return nil, err
	}

	views := make([]AssetView, 0, len(assets))
	for _, a := range assets {
		view := AssetView{
			ID:        a.ID,
			JobID:     a.JobID,
			TakeIndex: a.TakeIndex,
			Title:     a.Title,
			BPM:       a.BPM,
			Duration:  a.Duration,
			CreatedAt: a.CreatedAt,
		}
		if view.AudioURL, err = s.storage.SignedURL(ctx, a.AudioKey, signedURLTTL); err != nil {
			return nil, err
		}
		if view.LoopURL, err = s.storage.SignedURL(ctx, a.LoopKey, signedURLTTL); err != nil {
			return nil, err
		}
		if a.StemsKey.Valid {
			if view.StemsURL, err = s.storage.SignedURL(ctx, a.StemsKey.String, signedURLTTL); err != nil {
				return nil, err
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Download streams one rendition of an owned asset. An unrecognized variant,
// or a stems request on an asset generated without stems, reads as
// not-found rather than revealing what renditions exist.
func (s *AssetService) Download(ctx context.Context, userID, assetID string, variant DownloadVariant) (Download, error) {
	asset, err := s.assets.GetOwned(ctx, assetID, userID)
	if err != nil {
		return Download{}, err
	}

	var (
		key         string
		contentType string
		suffix      string
		eventType   types.EventType
	)
	switch variant {
	case VariantWAV:
		key, contentType, suffix, eventType = asset.AudioKey, "audio/mpeg", ".mp3", types.EventDownloadWAV
	case VariantLoop:
		key, contentType, suffix, eventType = asset.LoopKey, "audio/mpeg", "_loop.mp3", types.EventDownloadWAV
	case VariantStems:
		if !asset.StemsKey.Valid {
			return Download{}, store.ErrNotFound
		}
		key, contentType, suffix, eventType = asset.StemsKey.String, "application/zip", "_stems.zip", types.EventDownloadStems
	default:
		return Download{}, store.ErrNotFound
	}

	body, err := s.storage.Get(ctx, key)
	if err != nil {
		return Download{}, &UpstreamError{Op: "fetch asset object", Err: err}
	}

	if err := s.events.Append(ctx, userID, eventType, map[string]string{"asset_id": asset.ID}); err != nil {
		s.logger.Warn("failed to record analytics event", zap.Error(err))
	}

	return Download{
		Body:        body,
		ContentType: contentType,
		Filename:    sanitizeFilename(asset.Title) + suffix,
	}, nil
}

// License streams the license text for an owned asset, materializing it into
// object storage on first request. Repeat requests rewrite the same object
// under the same key, so the operation is idempotent.
func (s *AssetService) License(ctx context.Context, userID, assetID string) (Download, error) {
	asset, err := s.assets.GetOwned(ctx, assetID, userID)
	if err != nil {
		return Download{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return Download{}, err
	}

	text := licenseText(user, asset)
	if err := s.storage.Put(ctx, asset.LicenseKey, strings.NewReader(text), int64(len(text)), "text/plain"); err != nil {
		return Download{}, &UpstreamError{Op: "store license object", Err: err}
	}

	if err := s.events.Append(ctx, userID, types.EventLicenseOpened, map[string]string{"asset_id": asset.ID}); err != nil {
		s.logger.Warn("failed to record analytics event", zap.Error(err))
	}

	return Download{
		Body:        io.NopCloser(strings.NewReader(text)),
		ContentType: "text/plain",
		Filename:    sanitizeFilename(asset.Title) + "_license.txt",
	}, nil
}

func licenseText(user types.User, asset types.Asset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MUSICIAN LICENSE CERTIFICATE\n")
	fmt.Fprintf(&b, "============================\n\n")
	fmt.Fprintf(&b, "Track:     %s\n", asset.Title)
	fmt.Fprintf(&b, "Asset ID:  %s\n", asset.ID)
	fmt.Fprintf(&b, "Tempo:     %d BPM\n", asset.BPM)
	fmt.Fprintf(&b, "Duration:  %d seconds\n", asset.Duration)
	fmt.Fprintf(&b, "Licensee:  %s\n", user.Username)
	fmt.Fprintf(&b, "Plan:      %s\n", user.Tier)
	fmt.Fprintf(&b, "Generated: %s\n", asset.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Issued:    %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "The licensee holds a perpetual, worldwide, royalty-free license\n")
	fmt.Fprintf(&b, "to use, modify and commercially exploit this generated track.\n")
	fmt.Fprintf(&b, "Redistribution of the unmodified track as a standalone work is\n")
	fmt.Fprintf(&b, "not permitted. This certificate identifies the track and the\n")
	fmt.Fprintf(&b, "plan under which it was generated.\n")
	return b.String()
}

// sanitizeFilename reduces a title to a safe attachment filename stem.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "track"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// IsNotFound reports whether err is the guarded-read not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
