package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"patronage.fm/internal/access"
	"patronage.fm/internal/catalog"
	"patronage.fm/internal/member"
	"patronage.fm/internal/obs"
	"patronage.fm/internal/session"
)

// ReadyProbe checks readiness (DB ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AlbumCatalog is the read surface the album handlers need.
type AlbumCatalog interface {
	BySlug(ctx context.Context, slug string) (*catalog.Album, error)
	AudienceCount(ctx context.Context, min access.Tier) (int, error)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	guard      *access.Guard
	members    member.Store
	catalog    AlbumCatalog
	sessions   *session.Verifier
	readyProbe ReadyProbe
	version    string
}

// Config bundles API dependencies.
type Config struct {
	Guard      *access.Guard
	Members    member.Store
	Catalog    AlbumCatalog
	Sessions   *session.Verifier
	ReadyProbe ReadyProbe
	Version    string
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		guard:      cfg.Guard,
		members:    cfg.Members,
		catalog:    cfg.Catalog,
		sessions:   cfg.Sessions,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)

	a.mux.HandleFunc("/v1/me", a.handleMe)
	a.mux.HandleFunc("/v1/albums/", a.handleAlbum)

	a.mux.HandleFunc("/v1/admin/members", a.handleMembers)
	a.mux.HandleFunc("/v1/admin/members/", a.handleMemberGrants)
	a.mux.HandleFunc("/v1/admin/audience", a.handleAudience)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.mux)
	h = RateLimit(h, 50, 25)
	h = Logging(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "patronage-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	m, err := a.members.FindByPrincipal(r.Context(), principal)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "no member for session")
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "member lookup failed")
		return
	}
	keys, err := a.members.ActiveKeys(r.Context(), m.ID)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "entitlement lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"member": m,
		"tier":   access.ResolveTier(keys).String(),
	})
}

// handleAlbum serves GET /v1/albums/{slug} through the resource guard.
// A hidden album and a missing album answer identically with 404 so
// gated content cannot be probed for existence.
func (a *API) handleAlbum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/albums/"), "/")
	if slug == "" || strings.Contains(slug, "/") {
		http.NotFound(w, r)
		return
	}

	album, err := a.catalog.BySlug(r.Context(), slug)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, access.ErrPolicyMisconfigured):
			// Operators see the failure; the caller only sees 404 so
			// the album's existence is not leaked.
			obs.LogRequest(map[string]any{
				"level":      "error",
				"msg":        "resource policy misconfigured",
				"resource":   "album:" + slug,
				"request_id": RequestIDFromContext(r.Context()),
				"error":      err.Error(),
			})
			obs.ObservePolicyMisconfigured()
			http.NotFound(w, r)
		default:
			writeError(w, r, http.StatusServiceUnavailable, "catalog lookup failed")
		}
		return
	}

	principal, _ := access.PrincipalFromContext(r.Context())
	res, err := a.guard.ResolveResourceAccess(r.Context(), principal, "album:"+slug, album.Policy)
	if err != nil {
		a.denyForError(w, r, err)
		return
	}
	if !res.Decision.Allowed {
		a.denyForDecision(w, r, res.Decision, principal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"album": album,
		"tier":  res.Decision.Tier.String(),
	})
}

// denyForDecision maps a denying decision onto the product's HTTP
// contract: hidden resources 404, anonymous viewers 401, resolved
// members 403 with the required-tier hint the page deliberately shows.
func (a *API) denyForDecision(w http.ResponseWriter, r *http.Request, d access.Decision, principal string) {
	switch d.Reason {
	case access.ReasonResourceHidden:
		http.NotFound(w, r)
	case access.ReasonTierTooLow:
		if principal == "" {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		payload := map[string]any{"error": "membership tier too low"}
		if d.Requirement.MinTier != nil {
			payload["required_tier"] = d.Requirement.MinTier.String()
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusForbidden, payload)
	default:
		writeError(w, r, http.StatusForbidden, "access denied")
	}
}

// denyForError maps guard errors, always failing closed.
func (a *API) denyForError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, access.ErrStoreUnavailable):
		obs.LogRequest(map[string]any{
			"level":      "error",
			"msg":        "access store unavailable",
			"request_id": RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusServiceUnavailable, "access check unavailable")
	case errors.Is(err, access.ErrPolicyMisconfigured):
		http.NotFound(w, r)
	default:
		writeError(w, r, http.StatusInternalServerError, "access check failed")
	}
}
