package access

import "context"

// AuditContext carries who did what to which resource alongside the
// decision being recorded.
type AuditContext struct {
	Principal string
	Operation string
	Resource  string
}

// Recorder mirrors decisions into an audit sink. Recording is strictly
// best-effort: the guard dispatches it off the decision path and
// swallows every failure, so implementations may be slow or broken
// without ever affecting an access result.
type Recorder interface {
	Record(ctx context.Context, decision Decision, audit AuditContext) error
}
