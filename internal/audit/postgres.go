package audit

import (
	"context"
	"database/sql"

	"patronage.fm/internal/access"
	"patronage.fm/internal/ids"
)

// PGRecorder appends decisions to the access_audit table.
type PGRecorder struct {
	db *sql.DB
}

var _ access.Recorder = (*PGRecorder)(nil)

func NewPGRecorder(db *sql.DB) *PGRecorder {
	return &PGRecorder{db: db}
}

// Record appends one immutable row. Errors propagate to the guard's
// dispatcher, which logs and drops them.
func (r *PGRecorder) Record(ctx context.Context, decision access.Decision, audit access.AuditContext) error {
	var minTier any
	if decision.Requirement.MinTier != nil {
		minTier = decision.Requirement.MinTier.String()
	}
	_, err := r.db.ExecContext(ctx,
		`insert into access_audit(id, principal_id, operation, resource, mode, allowed, reason, tier, min_tier)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		ids.New(), audit.Principal, audit.Operation, audit.Resource,
		string(decision.Requirement.Kind), decision.Allowed,
		string(decision.Reason), decision.Tier.String(), minTier,
	)
	return err
}

// Fanout records into every sink, returning the first failure after
// attempting all of them.
type Fanout []access.Recorder

var _ access.Recorder = Fanout(nil)

func (f Fanout) Record(ctx context.Context, decision access.Decision, audit access.AuditContext) error {
	var first error
	for _, rec := range f {
		if err := rec.Record(ctx, decision, audit); err != nil && first == nil {
			first = err
		}
	}
	return first
}
