package access

import (
	"errors"
	"testing"
)

func tierPtr(t Tier) *Tier { return &t }

func TestEvaluateCapabilities(t *testing.T) {
	d := EvaluateCapabilities([]string{KeyAdmin}, []string{KeyAdmin})
	if !d.Allowed || d.Reason != ReasonOK {
		t.Fatalf("expected allow, got %+v", d)
	}

	d = EvaluateCapabilities([]string{KeySubPartner}, []string{KeyAdmin})
	if d.Allowed || d.Reason != ReasonMissingCapability {
		t.Fatalf("partner tier must not imply admin capability: %+v", d)
	}

	d = EvaluateCapabilities(nil, []string{KeyAdmin})
	if d.Allowed {
		t.Fatalf("empty set passed capability check: %+v", d)
	}
}

func TestCapabilityIndependentOfTier(t *testing.T) {
	// Admin capability alone resolves to no tier, yet passes the
	// capability check requiring it.
	keys := []string{KeyAdmin}
	if tier := ResolveTier(keys); tier != TierNone {
		t.Fatalf("admin-only keys resolved to %v", tier)
	}
	if d := EvaluateCapabilities(keys, []string{KeyAdmin}); !d.Allowed {
		t.Fatalf("admin capability denied: %+v", d)
	}
	// And the same keys fail a partner floor.
	d, err := EvaluateResource(keys, ResourcePolicy{PublicPageVisible: true, MinTierToLoad: tierPtr(TierPartner)})
	if err != nil {
		t.Fatalf("EvaluateResource: %v", err)
	}
	if d.Allowed || d.Reason != ReasonTierTooLow {
		t.Fatalf("admin capability must not satisfy a tier floor: %+v", d)
	}
}

func TestEvaluateResource(t *testing.T) {
	cases := []struct {
		name       string
		keys       []string
		policy     ResourcePolicy
		wantAllow  bool
		wantReason Reason
	}{
		{
			"patron passes friend floor",
			[]string{KeySubPatron},
			ResourcePolicy{PublicPageVisible: true, MinTierToLoad: tierPtr(TierFriend)},
			true, ReasonOK,
		},
		{
			"anonymous denied patron floor",
			nil,
			ResourcePolicy{PublicPageVisible: true, MinTierToLoad: tierPtr(TierPatron)},
			false, ReasonTierTooLow,
		},
		{
			"nil floor is public even for anonymous",
			nil,
			ResourcePolicy{PublicPageVisible: true},
			true, ReasonOK,
		},
		{
			"hidden denies partner before tier comparison",
			[]string{KeySubPartner},
			ResourcePolicy{PublicPageVisible: false},
			false, ReasonResourceHidden,
		},
		{
			"hidden denies even with nil floor",
			nil,
			ResourcePolicy{PublicPageVisible: false, MinTierToLoad: nil},
			false, ReasonResourceHidden,
		},
		{
			"exact floor match allows",
			[]string{KeySubFriend},
			ResourcePolicy{PublicPageVisible: true, MinTierToLoad: tierPtr(TierFriend)},
			true, ReasonOK,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := EvaluateResource(tc.keys, tc.policy)
			if err != nil {
				t.Fatalf("EvaluateResource: %v", err)
			}
			if d.Allowed != tc.wantAllow || d.Reason != tc.wantReason {
				t.Fatalf("got %+v, want allow=%v reason=%s", d, tc.wantAllow, tc.wantReason)
			}
		})
	}
}

func TestPartnerOverrideSatisfiesEveryFloor(t *testing.T) {
	// The override is a standing rule on this path, tested separately
	// from the ordinal comparison.
	for _, floor := range []Tier{TierNone, TierFriend, TierPatron, TierPartner} {
		d, err := EvaluateResource([]string{KeySubPartner},
			ResourcePolicy{PublicPageVisible: true, MinTierToLoad: tierPtr(floor)})
		if err != nil {
			t.Fatalf("floor %v: %v", floor, err)
		}
		if !d.Allowed {
			t.Fatalf("partner denied at floor %v: %+v", floor, d)
		}
	}
}

func TestEvaluateResourceMisconfiguredFloor(t *testing.T) {
	bad := Tier(42)
	d, err := EvaluateResource([]string{KeySubPartner},
		ResourcePolicy{PublicPageVisible: true, MinTierToLoad: &bad})
	if !errors.Is(err, ErrPolicyMisconfigured) {
		t.Fatalf("expected ErrPolicyMisconfigured, got %v", err)
	}
	if d.Allowed {
		t.Fatal("misconfigured policy must deny, never default to allow")
	}
}
