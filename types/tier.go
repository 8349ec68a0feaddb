package types

// Tier represents a subscription level controlling quotas and
// feature access.
type Tier string

// Supported tiers, lowest to highest. TierNone marks an account with no
// confirmed subscription; such accounts hold only their provisioning
// credits until an entitlement check grants a tier.
const (
	TierNone Tier = ""
	TierBase Tier = "BASE"
	TierMid  Tier = "MID"
	TierTop  Tier = "TOP"
)

// TiersDescending lists tiers from highest to lowest priority. Entitlement
// resolution probes them in this order and stops at the first match.
var TiersDescending = []Tier{TierTop, TierMid, TierBase}

// TiersAscending lists tiers from lowest to highest. Policy lookups walk
// this order to find the minimum tier satisfying a request.
var TiersAscending = []Tier{TierBase, TierMid, TierTop}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierBase, TierMid, TierTop:
		return true
	}
	return false
}

// AtLeast reports whether t is the same as or higher than other.
func (t Tier) AtLeast(other Tier) bool {
	return tierRank(t) >= tierRank(other)
}

func tierRank(t Tier) int {
	switch t {
	case TierBase:
		return 1
	case TierMid:
		return 2
	case TierTop:
		return 3
	default:
		return 0
	}
}
