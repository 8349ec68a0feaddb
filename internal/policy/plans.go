// Package policy holds the static plan policy table and the prompt content
// policy. Everything here is pure lookup and string matching; no I/O.
package policy

import "github.com/musician-app/apiserver/types"

// Plan describes the quotas and feature flags of one subscription tier.
type Plan struct {
	MaxDurationSeconds int
	MaxBatchSize       int
	AllowVocals        bool
	AllowStems         bool
	AllowPlanReuse     bool
	AllowStreaming     bool

	// BaselineCredits is the credit floor granted with the tier. Tier
	// syncs raise a balance to this floor but never reduce it.
	BaselineCredits int64

	// PerDurationBilling switches credit cost from flat-per-take to
	// duration-proportional (one credit per started 30 seconds, per
	// take). Off for every current tier; kept as a policy parameter
	// because billing by duration is a plausible product change.
	PerDurationBilling bool
}

// InitialCredits is the balance granted to a lazily provisioned account
// before any tier sync.
const InitialCredits int64 = 10

var plans = map[types.Tier]Plan{
	types.TierBase: {
		MaxDurationSeconds: 30,
		MaxBatchSize:       2,
		BaselineCredits:    150,
	},
	types.TierMid: {
		MaxDurationSeconds: 60,
		MaxBatchSize:       10,
		AllowVocals:        true,
		AllowStems:         true,
		AllowPlanReuse:     true,
		AllowStreaming:     true,
		BaselineCredits:    600,
	},
	types.TierTop: {
		MaxDurationSeconds: 120,
		MaxBatchSize:       10,
		AllowVocals:        true,
		AllowStems:         true,
		AllowPlanReuse:     true,
		AllowStreaming:     true,
		BaselineCredits:    2000,
	},
}

// ForTier returns the plan policy for the given tier. Unknown tiers fall
// back to the BASE policy.
func ForTier(tier types.Tier) Plan {
	if plan, ok := plans[tier]; ok {
		return plan
	}
	return plans[types.TierBase]
}

// MinTierForDuration returns the lowest tier whose policy admits the given
// duration, or false when no tier does.
func MinTierForDuration(seconds int) (types.Tier, bool) {
	for _, tier := range types.TiersAscending {
		if seconds <= plans[tier].MaxDurationSeconds {
			return tier, true
		}
	}
	return "", false
}

// MinTierForBatch returns the lowest tier whose policy admits the given
// batch size, or false when no tier does.
func MinTierForBatch(batch int) (types.Tier, bool) {
	for _, tier := range types.TiersAscending {
		if batch <= plans[tier].MaxBatchSize {
			return tier, true
		}
	}
	return "", false
}

// Feature names a tier-gated request flag.
type Feature string

const (
	FeatureVocals    Feature = "vocals"
	FeatureStems     Feature = "stems"
	FeaturePlanReuse Feature = "reusePlan"
	FeatureStreaming Feature = "streamingPreview"
)

// Allows reports whether the plan grants the feature.
func (p Plan) Allows(feature Feature) bool {
	switch feature {
	case FeatureVocals:
		return p.AllowVocals
	case FeatureStems:
		return p.AllowStems
	case FeaturePlanReuse:
		return p.AllowPlanReuse
	case FeatureStreaming:
		return p.AllowStreaming
	}
	return false
}

// MinTierForFeature returns the lowest tier granting the feature, or false
// when none does.
func MinTierForFeature(feature Feature) (types.Tier, bool) {
	for _, tier := range types.TiersAscending {
		if plans[tier].Allows(feature) {
			return tier, true
		}
	}
	return "", false
}

// CreditCost computes the credits required for a request under the plan:
// one credit per take, or one per started 30 seconds per take when the
// plan bills by duration.
func CreditCost(plan Plan, durationSeconds, batch int) int64 {
	if !plan.PerDurationBilling {
		return int64(batch)
	}
	blocks := (durationSeconds + 29) / 30
	if blocks < 1 {
		blocks = 1
	}
	return int64(blocks * batch)
}
