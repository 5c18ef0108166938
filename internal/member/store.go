package member

import "context"

// Store describes persistence for members and entitlement grants.
// The read side feeds the access guard; the write side is exercised by
// admin tooling on behalf of billing and account management.
type Store interface {
	Create(ctx context.Context, m *Member) error
	Find(ctx context.Context, id string) (*Member, error)
	FindByPrincipal(ctx context.Context, principalID string) (*Member, error)
	LinkPrincipal(ctx context.Context, memberID, principalID string) error
	List(ctx context.Context) ([]*Member, error)

	Grant(ctx context.Context, g *EntitlementGrant) error
	Revoke(ctx context.Context, memberID, key string) error

	// MemberIDByPrincipal and ActiveKeys satisfy the guard's
	// access.MemberResolver and access.EntitlementSource contracts.
	MemberIDByPrincipal(ctx context.Context, principalID string) (string, error)
	ActiveKeys(ctx context.Context, memberID string) ([]string, error)
}
