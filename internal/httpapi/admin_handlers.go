package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"patronage.fm/internal/access"
	"patronage.fm/internal/member"
)

type createMemberRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PrincipalID string `json:"principal_id"`
}

type grantRequest struct {
	Key    string     `json:"key"`
	EndsAt *time.Time `json:"ends_at"`
}

// requireAdmin runs the capability guard for the administrative
// surface and writes the failure response itself. The bool result
// tells the handler whether to proceed.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	principal, _ := access.PrincipalFromContext(r.Context())
	if _, err := a.guard.RequireCapability(r.Context(), principal, access.KeyAdmin); err != nil {
		a.denyForError(w, r, err)
		return false
	}
	return true
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		members, err := a.members.List(r.Context())
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "list members failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": members})
	case http.MethodPost:
		var req createMemberRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		m := &member.Member{
			Email:       req.Email,
			DisplayName: strings.TrimSpace(req.DisplayName),
			PrincipalID: strings.TrimSpace(req.PrincipalID),
		}
		if err := a.members.Create(r.Context(), m); err != nil {
			if errors.Is(err, member.ErrInvalidInput) {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, r, http.StatusInternalServerError, "create member failed")
			return
		}
		writeJSON(w, http.StatusCreated, m)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleMemberGrants serves POST /v1/admin/members/{id}/grants and
// DELETE /v1/admin/members/{id}/grants/{key}.
func (a *API) handleMemberGrants(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/members/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "grants" {
		http.NotFound(w, r)
		return
	}
	memberID := parts[0]

	switch {
	case r.Method == http.MethodPost && len(parts) == 2:
		var req grantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		grant := &member.EntitlementGrant{MemberID: memberID, Key: req.Key, EndsAt: req.EndsAt}
		if err := a.members.Grant(r.Context(), grant); err != nil {
			if errors.Is(err, member.ErrInvalidInput) {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, r, http.StatusInternalServerError, "grant failed")
			return
		}
		writeJSON(w, http.StatusCreated, grant)
	case r.Method == http.MethodDelete && len(parts) == 3 && parts[2] != "":
		if err := a.members.Revoke(r.Context(), memberID, parts[2]); err != nil {
			if errors.Is(err, member.ErrInvalidInput) {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, r, http.StatusInternalServerError, "revoke failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

// handleAudience serves GET /v1/admin/audience?min_tier=patron for
// campaign audience sizing.
func (a *API) handleAudience(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("min_tier"))
	if raw == "" {
		raw = access.TierNone.String()
	}
	min, err := access.ParseTier(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown tier")
		return
	}
	count, err := a.catalog.AudienceCount(r.Context(), min)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "audience count failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"min_tier": min.String(),
		"count":    count,
	})
}
