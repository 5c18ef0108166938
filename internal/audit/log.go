package audit

import (
	"context"
	"encoding/json"
	"time"

	"patronage.fm/internal/access"
	"patronage.fm/internal/obs"
)

// LogRecorder writes one JSON line per decision to the shared logger.
type LogRecorder struct{}

var _ access.Recorder = LogRecorder{}

// Record emits the decision as a structured audit line.
func (LogRecorder) Record(ctx context.Context, decision access.Decision, audit access.AuditContext) error {
	entry := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"type":      "access_audit",
		"operation": audit.Operation,
		"mode":      string(decision.Requirement.Kind),
		"allowed":   decision.Allowed,
		"reason":    string(decision.Reason),
		"tier":      decision.Tier.String(),
	}
	if audit.Principal != "" {
		entry["principal"] = audit.Principal
	}
	if audit.Resource != "" {
		entry["resource"] = audit.Resource
	}
	if decision.Requirement.MinTier != nil {
		entry["min_tier"] = decision.Requirement.MinTier.String()
	}
	if len(decision.Requirement.Required) > 0 {
		entry["required"] = decision.Requirement.Required
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
