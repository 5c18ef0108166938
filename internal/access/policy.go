package access

import "fmt"

// Reason explains a decision. OK accompanies every allow; the deny
// reasons feed audit and telemetry, not client responses.
type Reason string

const (
	ReasonOK                Reason = "OK"
	ReasonNoPrincipal       Reason = "NO_PRINCIPAL"
	ReasonMissingCapability Reason = "MISSING_CAPABILITY"
	ReasonTierTooLow        Reason = "TIER_TOO_LOW"
	ReasonResourceHidden    Reason = "RESOURCE_HIDDEN"
)

// RequirementKind selects the evaluation mode.
type RequirementKind string

const (
	// RequirementGlobal gates an action on holding every listed
	// capability key, regardless of tier.
	RequirementGlobal RequirementKind = "global"

	// RequirementResource gates a resource on a minimum tier.
	RequirementResource RequirementKind = "resource"
)

// ResourcePolicy is the access-relevant slice of a content entity,
// authored by the CMS and read-only here. A nil MinTierToLoad means
// the resource is publicly loadable.
type ResourcePolicy struct {
	PublicPageVisible bool  `json:"public_page_visible"`
	MinTierToLoad     *Tier `json:"min_tier_to_load"`
}

// Requirement is a declared precondition: either a capability set
// (global) or a tier floor (resource).
type Requirement struct {
	Kind     RequirementKind
	Required []string
	MinTier  *Tier
}

// GlobalRequirement builds a capability requirement.
func GlobalRequirement(keys ...string) Requirement {
	return Requirement{Kind: RequirementGlobal, Required: keys}
}

// Decision is the ephemeral result of one evaluation. It is never
// persisted as primary state, only mirrored into audit sinks.
type Decision struct {
	Allowed     bool
	Reason      Reason
	Tier        Tier
	Requirement Requirement
}

// EvaluateCapabilities allows iff every required key is present in the
// principal's active entitlement set. Capabilities are binary grants;
// tier ordering plays no part here.
func EvaluateCapabilities(keys []string, required []string) Decision {
	decision := Decision{
		Tier:        ResolveTier(keys),
		Requirement: GlobalRequirement(required...),
	}
	held := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		held[k] = struct{}{}
	}
	for _, want := range required {
		if _, ok := held[want]; !ok {
			decision.Reason = ReasonMissingCapability
			return decision
		}
	}
	decision.Allowed = true
	decision.Reason = ReasonOK
	return decision
}

// EvaluateResource decides whether the holder of keys may load a
// resource with the given policy. Evaluation order is fixed:
//
//  1. a hidden resource denies everyone, partner included; hiding is
//     publication state, not an entitlement concern;
//  2. a nil tier floor is publicly loadable;
//  3. partner satisfies any floor (kept as an explicit override, not
//     an artifact of the ordering);
//  4. otherwise ordinal comparison against the floor.
//
// A floor outside the tier enumeration returns ErrPolicyMisconfigured
// with a denying decision, never a permissive fallback.
func EvaluateResource(keys []string, policy ResourcePolicy) (Decision, error) {
	decision := Decision{
		Tier: ResolveTier(keys),
		Requirement: Requirement{
			Kind:    RequirementResource,
			MinTier: policy.MinTierToLoad,
		},
	}

	if !policy.PublicPageVisible {
		decision.Reason = ReasonResourceHidden
		return decision, nil
	}

	if policy.MinTierToLoad == nil {
		decision.Allowed = true
		decision.Reason = ReasonOK
		return decision, nil
	}

	floor := *policy.MinTierToLoad
	if !floor.Valid() {
		decision.Reason = ReasonTierTooLow
		return decision, fmt.Errorf("%w: min tier %d outside enumeration", ErrPolicyMisconfigured, int(floor))
	}

	if decision.Tier == TierPartner {
		decision.Allowed = true
		decision.Reason = ReasonOK
		return decision, nil
	}

	if decision.Tier >= floor {
		decision.Allowed = true
		decision.Reason = ReasonOK
		return decision, nil
	}

	decision.Reason = ReasonTierTooLow
	return decision, nil
}
