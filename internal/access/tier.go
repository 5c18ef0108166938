package access

import (
	"fmt"
	"sort"
)

// Tier is the ordinal membership level derived from a member's active
// entitlements. It is always computed fresh from grants, never stored.
type Tier int

const (
	TierNone Tier = iota
	TierFriend
	TierPatron
	TierPartner
)

var tierNames = [...]string{
	TierNone:    "none",
	TierFriend:  "friend",
	TierPatron:  "patron",
	TierPartner: "partner",
}

// String returns the wire form of the tier ("none", "friend", ...).
func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t >= TierNone && t <= TierPartner
}

// ParseTier maps a wire string back to a Tier. Unknown values are an
// error, never a silent default.
func ParseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if name == s {
			return Tier(t), nil
		}
	}
	return TierNone, fmt.Errorf("access: unknown tier %q", s)
}

// Entitlement keys recognized by the platform. Keys are flat strings
// granted to members by billing and account management; each one must
// be registered below with an explicit tier weight before it can
// influence tier resolution.
const (
	KeySubFriend  = "sub_friend"
	KeySubPatron  = "sub_patron"
	KeySubPartner = "sub_partner"
	KeyGiftPatron = "gift_patron"

	// KeyAdmin is a capability, not a membership level: it is checked
	// by capability requirements and carries no tier weight.
	KeyAdmin = "admin"
)

// tierWeights registers every known entitlement key. A key absent from
// this table contributes nothing to tier resolution, so new keys added
// elsewhere never widen access by accident.
var tierWeights = map[string]Tier{
	KeySubFriend:  TierFriend,
	KeySubPatron:  TierPatron,
	KeySubPartner: TierPartner,
	KeyGiftPatron: TierPatron,
	KeyAdmin:      TierNone,
}

// ResolveTier computes the membership tier for a set of active
// entitlement keys: the maximum registered weight among them. It is
// total; any input, including the empty set, yields a defined tier.
func ResolveTier(keys []string) Tier {
	tier := TierNone
	for _, key := range keys {
		if w, ok := tierWeights[key]; ok && w > tier {
			tier = w
		}
	}
	return tier
}

// KeysAtOrAbove returns the registered entitlement keys whose weight
// meets min, sorted for stable SQL. Callers sizing audiences use this
// so their queries cannot drift from ResolveTier. Keys with no tier
// weight are never included.
func KeysAtOrAbove(min Tier) []string {
	var keys []string
	for key, w := range tierWeights {
		if w > TierNone && w >= min {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
