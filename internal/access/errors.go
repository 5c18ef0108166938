package access

import "errors"

var (
	// ErrUnauthorized means no resolvable member stands behind the
	// caller. Never retried; the HTTP layer maps it to 401.
	ErrUnauthorized = errors.New("access: unauthorized")

	// ErrForbidden means the member was resolved but the requirement
	// was not met. Maps to 403.
	ErrForbidden = errors.New("access: forbidden")

	// ErrStoreUnavailable means a member or entitlement lookup could
	// not complete. The decision fails closed, identically to
	// ErrUnauthorized, but is reported distinctly so operators can
	// tell outages from genuine denials.
	ErrStoreUnavailable = errors.New("access: store unavailable")

	// ErrPolicyMisconfigured means a resource declares a tier outside
	// the known enumeration. The safe default is deny.
	ErrPolicyMisconfigured = errors.New("access: policy misconfigured")

	// ErrNoMember is the contract between MemberResolver
	// implementations and the guard: returned when no member row maps
	// to the given principal.
	ErrNoMember = errors.New("access: no member for principal")
)
