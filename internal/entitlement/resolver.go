// Package entitlement resolves a platform identity to the highest
// subscription tier the platform confirms access for.
package entitlement

import (
	"context"
	"time"

	"github.com/musician-app/apiserver/internal/platform"
	"github.com/musician-app/apiserver/types"
	"go.uber.org/zap"
)

// Resolver probes tiers from highest to lowest against the platform's two
// grant mechanisms and caches positive results for a bounded TTL. It is a
// pure read; callers decide whether to persist the outcome.
type Resolver struct {
	checker   platform.AccessChecker
	cache     Cache
	ttl       time.Duration
	bundleIDs map[string]string
	passIDs   map[string]string
	logger    *zap.Logger
}

// NewResolver constructs a Resolver. bundleIDs and passIDs map tier names
// to platform grant ids; tiers without a configured id are skipped.
func NewResolver(checker platform.AccessChecker, cache Cache, ttl time.Duration, bundleIDs, passIDs map[string]string, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		checker:   checker,
		cache:     cache,
		ttl:       ttl,
		bundleIDs: bundleIDs,
		passIDs:   passIDs,
		logger:    logger,
	}
}

// Resolve returns the highest entitled tier, or false when the platform
// confirms none. An error on an individual grant check counts as "no
// access" for that check; resolution itself never fails on upstream errors.
func (r *Resolver) Resolve(ctx context.Context, platformUserID string) (types.Tier, bool) {
	if tier, ok, err := r.cache.Get(ctx, platformUserID); err == nil && ok {
		return tier, true
	} else if err != nil {
		r.logger.Warn("entitlement cache read failed", zap.Error(err))
	}

	detected, ok := r.probe(ctx, platformUserID)
	if !ok {
		return "", false
	}

	if err := r.cache.Set(ctx, platformUserID, detected, r.ttl); err != nil {
		r.logger.Warn("entitlement cache write failed", zap.Error(err))
	}
	return detected, true
}

func (r *Resolver) probe(ctx context.Context, platformUserID string) (types.Tier, bool) {
	for _, tier := range types.TiersDescending {
		if id, ok := r.bundleIDs[string(tier)]; ok {
			if r.check(ctx, tier, "bundle", func() (bool, error) {
				return r.checker.HasBundleAccess(ctx, platformUserID, id)
			}) {
				return tier, true
			}
		}
	}
	for _, tier := range types.TiersDescending {
		if id, ok := r.passIDs[string(tier)]; ok {
			if r.check(ctx, tier, "pass", func() (bool, error) {
				return r.checker.HasPassAccess(ctx, platformUserID, id)
			}) {
				return tier, true
			}
		}
	}
	return "", false
}

func (r *Resolver) check(ctx context.Context, tier types.Tier, kind string, fn func() (bool, error)) bool {
	granted, err := fn()
	if err != nil {
		r.logger.Warn("entitlement check failed",
			zap.String("tier", string(tier)),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return false
	}
	return granted
}
