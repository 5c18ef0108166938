package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"patronage.fm/internal/access"
)

// PGStore reads albums and their resource policies from PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// BySlug loads one album with its policy. A stored min_tier outside
// the tier enumeration is a configuration error, surfaced as
// access.ErrPolicyMisconfigured so callers deny rather than guess.
func (s *PGStore) BySlug(ctx context.Context, slug string) (*Album, error) {
	row := s.db.QueryRowContext(ctx,
		`select a.id, a.slug, a.title, p.public_page_visible, p.min_tier_to_load, a.created_at, a.updated_at
		 from albums a
		 join resource_policies p on p.resource_id = a.id
		 where a.slug=$1`, slug)

	var (
		album   Album
		minTier sql.NullString
	)
	err := row.Scan(&album.ID, &album.Slug, &album.Title,
		&album.Policy.PublicPageVisible, &minTier, &album.CreatedAt, &album.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if minTier.Valid {
		tier, err := access.ParseTier(minTier.String)
		if err != nil {
			return nil, fmt.Errorf("%w: album %s declares min tier %q",
				access.ErrPolicyMisconfigured, album.Slug, minTier.String)
		}
		album.Policy.MinTierToLoad = &tier
	}
	return &album, nil
}

// AudienceCount sizes a campaign audience: distinct members holding an
// active entitlement that resolves to at least min. The key list comes
// from the access registry, so this query can never drift from
// ResolveTier. A floor of TierNone means every member.
func (s *PGStore) AudienceCount(ctx context.Context, min access.Tier) (int, error) {
	if !min.Valid() {
		return 0, fmt.Errorf("%w: audience floor %d", access.ErrPolicyMisconfigured, int(min))
	}
	if min == access.TierNone {
		var count int
		err := s.db.QueryRowContext(ctx, `select count(*) from members`).Scan(&count)
		return count, err
	}

	keys := access.KeysAtOrAbove(min)
	if len(keys) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, key := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = key
	}
	query := fmt.Sprintf(
		`select count(distinct member_id) from entitlement_grants
		 where key in (%s) and starts_at <= now() and (ends_at is null or ends_at > now())`,
		strings.Join(placeholders, ","))

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
