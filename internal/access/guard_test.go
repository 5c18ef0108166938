package access

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	members map[string]string // principal -> member
	keys    map[string][]string
	err     error
}

func (f *fakeStore) MemberIDByPrincipal(ctx context.Context, principalID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	id, ok := f.members[principalID]
	if !ok {
		return "", ErrNoMember
	}
	return id, nil
}

func (f *fakeStore) ActiveKeys(ctx context.Context, memberID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.keys[memberID], nil
}

type captureRecorder struct {
	ch chan Decision
}

func (r *captureRecorder) Record(ctx context.Context, d Decision, _ AuditContext) error {
	r.ch <- d
	return nil
}

type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, d Decision, _ AuditContext) error {
	return errors.New("sink down")
}

type panickingRecorder struct{}

func (panickingRecorder) Record(ctx context.Context, d Decision, _ AuditContext) error {
	panic("sink exploded")
}

func newTestStore() *fakeStore {
	return &fakeStore{
		members: map[string]string{
			"prin-admin":  "mem-admin",
			"prin-patron": "mem-patron",
		},
		keys: map[string][]string{
			"mem-admin":  {KeyAdmin},
			"mem-patron": {KeySubPatron},
		},
	}
}

func TestRequireCapability(t *testing.T) {
	store := newTestStore()
	guard, err := NewGuard(store, store)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	ctx := context.Background()

	memberID, err := guard.RequireCapability(ctx, "prin-admin", KeyAdmin)
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if memberID != "mem-admin" {
		t.Fatalf("unexpected member id %q", memberID)
	}

	if _, err := guard.RequireCapability(ctx, "prin-patron", KeyAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := guard.RequireCapability(ctx, "", KeyAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty principal, got %v", err)
	}
	if _, err := guard.RequireCapability(ctx, "prin-ghost", KeyAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown principal, got %v", err)
	}
}

func TestGuardFailsClosedOnStoreError(t *testing.T) {
	store := newTestStore()
	store.err = context.DeadlineExceeded
	guard, err := NewGuard(store, store)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	if _, err := guard.RequireCapability(context.Background(), "prin-admin", KeyAdmin); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	_, err = guard.ResolveResourceAccess(context.Background(), "prin-patron", "album:1", ResourcePolicy{PublicPageVisible: true})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestResolveResourceAccessAnonymous(t *testing.T) {
	store := newTestStore()
	guard, err := NewGuard(store, store)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	// No principal, nil floor: public.
	res, err := guard.ResolveResourceAccess(context.Background(), "", "album:pub", ResourcePolicy{PublicPageVisible: true})
	if err != nil {
		t.Fatalf("ResolveResourceAccess: %v", err)
	}
	if !res.Decision.Allowed || res.MemberID != "" {
		t.Fatalf("anonymous should load public resource: %+v", res)
	}

	// Principal without a member record evaluates as anonymous.
	floor := TierPatron
	res, err = guard.ResolveResourceAccess(context.Background(), "prin-ghost", "album:gated",
		ResourcePolicy{PublicPageVisible: true, MinTierToLoad: &floor})
	if err != nil {
		t.Fatalf("ResolveResourceAccess: %v", err)
	}
	if res.Decision.Allowed || res.Decision.Reason != ReasonTierTooLow {
		t.Fatalf("unlinked principal must evaluate at TierNone: %+v", res.Decision)
	}
}

func TestResolveResourceAccessMember(t *testing.T) {
	store := newTestStore()
	guard, err := NewGuard(store, store)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	floor := TierFriend
	res, err := guard.ResolveResourceAccess(context.Background(), "prin-patron", "album:gated",
		ResourcePolicy{PublicPageVisible: true, MinTierToLoad: &floor})
	if err != nil {
		t.Fatalf("ResolveResourceAccess: %v", err)
	}
	if !res.Decision.Allowed || res.Decision.Tier != TierPatron || res.MemberID != "mem-patron" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGuardRecordsDecisions(t *testing.T) {
	store := newTestStore()
	rec := &captureRecorder{ch: make(chan Decision, 1)}
	guard, err := NewGuard(store, store, WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	if _, err := guard.RequireCapability(context.Background(), "prin-admin", KeyAdmin); err != nil {
		t.Fatalf("RequireCapability: %v", err)
	}

	select {
	case d := <-rec.ch:
		if !d.Allowed || d.Reason != ReasonOK {
			t.Fatalf("recorded decision mismatch: %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("decision was never recorded")
	}
}

func TestGuardSwallowsRecorderFailures(t *testing.T) {
	store := newTestStore()

	for name, rec := range map[string]Recorder{
		"error": failingRecorder{},
		"panic": panickingRecorder{},
	} {
		t.Run(name, func(t *testing.T) {
			guard, err := NewGuard(store, store, WithRecorder(rec))
			if err != nil {
				t.Fatalf("NewGuard: %v", err)
			}
			memberID, err := guard.RequireCapability(context.Background(), "prin-admin", KeyAdmin)
			if err != nil || memberID != "mem-admin" {
				t.Fatalf("recorder failure leaked into decision: id=%q err=%v", memberID, err)
			}
		})
	}
}
