// Package access derives membership tiers from entitlement grants and
// decides every protected operation on the platform. All gate checks
// flow through the Guard so evaluation order, fail-closed behavior and
// auditing cannot diverge between surfaces.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"patronage.fm/internal/obs"
)

// MemberResolver maps an authenticator principal to the internal
// member identifier. Implementations return ErrNoMember when no member
// row is linked to the principal.
type MemberResolver interface {
	MemberIDByPrincipal(ctx context.Context, principalID string) (string, error)
}

// EntitlementSource returns the currently-active entitlement keys for
// a member. Window filtering is the store's contract; the guard never
// sees validity windows.
type EntitlementSource interface {
	ActiveKeys(ctx context.Context, memberID string) ([]string, error)
}

const auditDispatchTimeout = 5 * time.Second

// Guard is the single evaluator behind every protected surface. Each
// call re-resolves the member and re-fetches active entitlements:
// revocation must bite on the very next request, so nothing here is
// cached across decisions.
type Guard struct {
	members      MemberResolver
	entitlements EntitlementSource
	recorder     Recorder
}

// GuardOption configures optional Guard behavior.
type GuardOption func(*Guard)

// WithRecorder attaches an audit sink. Decisions are recorded
// fire-and-forget; sink failures never surface to callers.
func WithRecorder(rec Recorder) GuardOption {
	return func(g *Guard) { g.recorder = rec }
}

// NewGuard constructs a Guard over the given stores.
func NewGuard(members MemberResolver, entitlements EntitlementSource, opts ...GuardOption) (*Guard, error) {
	if members == nil {
		return nil, errors.New("access: member resolver is required")
	}
	if entitlements == nil {
		return nil, errors.New("access: entitlement source is required")
	}
	g := &Guard{members: members, entitlements: entitlements}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// RequireCapability gates an administrative action: the principal must
// resolve to a member holding every listed capability key. On success
// it returns the member ID for downstream use. Failures are terminal:
// a denial is not a transient fault and is never retried.
func (g *Guard) RequireCapability(ctx context.Context, principalID string, required ...string) (string, error) {
	operation := "capability:" + strings.Join(required, ",")

	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		g.record(ctx, Decision{Reason: ReasonNoPrincipal, Requirement: GlobalRequirement(required...)},
			AuditContext{Operation: operation})
		return "", ErrUnauthorized
	}

	memberID, err := g.members.MemberIDByPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrNoMember) {
			g.record(ctx, Decision{Reason: ReasonNoPrincipal, Requirement: GlobalRequirement(required...)},
				AuditContext{Principal: principalID, Operation: operation})
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("%w: member lookup: %v", ErrStoreUnavailable, err)
	}

	keys, err := g.entitlements.ActiveKeys(ctx, memberID)
	if err != nil {
		return "", fmt.Errorf("%w: entitlement lookup: %v", ErrStoreUnavailable, err)
	}

	decision := EvaluateCapabilities(keys, required)
	g.record(ctx, decision, AuditContext{Principal: principalID, Operation: operation})
	if !decision.Allowed {
		return "", ErrForbidden
	}
	return memberID, nil
}

// ResourceAccess is the result of a resource-scoped evaluation. The
// member ID is empty for anonymous viewers.
type ResourceAccess struct {
	MemberID string
	Decision Decision
}

// ResolveResourceAccess decides whether the caller may load a resource
// under the given policy. An empty principal, or a principal with no
// member record yet, evaluates as an anonymous viewer at TierNone; a
// nil tier floor still admits them. Denial is expressed in the
// decision, not as an error; errors mean the evaluation itself could
// not complete and always fail closed.
func (g *Guard) ResolveResourceAccess(ctx context.Context, principalID string, resource string, policy ResourcePolicy) (ResourceAccess, error) {
	operation := "resource:load"

	var memberID string
	var keys []string
	principalID = strings.TrimSpace(principalID)
	if principalID != "" {
		id, err := g.members.MemberIDByPrincipal(ctx, principalID)
		switch {
		case err == nil:
			memberID = id
			keys, err = g.entitlements.ActiveKeys(ctx, memberID)
			if err != nil {
				return ResourceAccess{}, fmt.Errorf("%w: entitlement lookup: %v", ErrStoreUnavailable, err)
			}
		case errors.Is(err, ErrNoMember):
			// Signed in but never materialized as a member; treated as
			// an anonymous viewer rather than an error.
		default:
			return ResourceAccess{}, fmt.Errorf("%w: member lookup: %v", ErrStoreUnavailable, err)
		}
	}

	decision, err := EvaluateResource(keys, policy)
	audit := AuditContext{Principal: principalID, Operation: operation, Resource: resource}
	if err != nil {
		obs.LogRequest(map[string]any{
			"level":    "error",
			"msg":      "resource policy misconfigured",
			"resource": resource,
			"error":    err.Error(),
		})
		obs.ObservePolicyMisconfigured()
		g.record(ctx, decision, audit)
		return ResourceAccess{MemberID: memberID, Decision: decision}, err
	}

	g.record(ctx, decision, audit)
	return ResourceAccess{MemberID: memberID, Decision: decision}, nil
}

// record mirrors a decision into metrics and, when configured, the
// audit sink. The sink runs on its own goroutine with cancellation
// detached from the request, so a slow or failing recorder cannot
// block or fail the decision path. Context values (request id) still
// flow through for correlation.
func (g *Guard) record(ctx context.Context, decision Decision, audit AuditContext) {
	obs.ObserveDecision(string(decision.Requirement.Kind), decision.Allowed, string(decision.Reason))
	if g.recorder == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				obs.LogRequest(map[string]any{
					"level": "error",
					"msg":   "audit recorder panicked",
					"panic": fmt.Sprint(r),
				})
			}
		}()
		ctx, cancel := context.WithTimeout(detached, auditDispatchTimeout)
		defer cancel()
		if err := g.recorder.Record(ctx, decision, audit); err != nil {
			obs.LogRequest(map[string]any{
				"level":     "error",
				"msg":       "audit record failed",
				"operation": audit.Operation,
				"error":     err.Error(),
			})
		}
	}()
}
