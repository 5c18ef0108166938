package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"patronage.fm/internal/access"
	"patronage.fm/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, m *Member) error {
	m.Email = strings.TrimSpace(strings.ToLower(m.Email))
	if m.Email == "" || !strings.Contains(m.Email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if m.ID == "" {
		m.ID = ids.New()
	}
	var principal any
	if p := strings.TrimSpace(m.PrincipalID); p != "" {
		principal = p
	}
	_, err := s.db.ExecContext(ctx,
		`insert into members(id, principal_id, email, display_name) values($1,$2,$3,$4)`,
		m.ID, principal, m.Email, m.DisplayName,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Member, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, coalesce(principal_id,''), email, display_name, created_at, updated_at
		 from members where id=$1`, id)
	return scanMember(row)
}

func (s *PGStore) FindByPrincipal(ctx context.Context, principalID string) (*Member, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, coalesce(principal_id,''), email, display_name, created_at, updated_at
		 from members where principal_id=$1`, principalID)
	return scanMember(row)
}

func (s *PGStore) LinkPrincipal(ctx context.Context, memberID, principalID string) error {
	memberID = strings.TrimSpace(memberID)
	principalID = strings.TrimSpace(principalID)
	if memberID == "" || principalID == "" {
		return fmt.Errorf("%w: member_id and principal_id are required", ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx,
		`update members set principal_id=$2, updated_at=now() where id=$1 and principal_id is null`,
		memberID, principalID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: member missing or already linked", ErrAlreadyExists)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, coalesce(principal_id,''), email, display_name, created_at, updated_at
		 from members order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.PrincipalID, &m.Email, &m.DisplayName, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (s *PGStore) Grant(ctx context.Context, g *EntitlementGrant) error {
	g.Key = strings.TrimSpace(g.Key)
	if g.MemberID == "" || g.Key == "" {
		return fmt.Errorf("%w: member_id and key are required", ErrInvalidInput)
	}
	if g.ID == "" {
		g.ID = ids.New()
	}
	var starts any
	if !g.StartsAt.IsZero() {
		starts = g.StartsAt
	}
	_, err := s.db.ExecContext(ctx,
		`insert into entitlement_grants(id, member_id, key, starts_at, ends_at)
		 values($1,$2,$3,coalesce($4,now()),$5)`,
		g.ID, g.MemberID, g.Key, starts, g.EndsAt,
	)
	return err
}

// Revoke closes every open window for the key so the very next
// decision no longer sees it.
func (s *PGStore) Revoke(ctx context.Context, memberID, key string) error {
	memberID = strings.TrimSpace(memberID)
	key = strings.TrimSpace(key)
	if memberID == "" || key == "" {
		return fmt.Errorf("%w: member_id and key are required", ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx,
		`update entitlement_grants set ends_at=now()
		 where member_id=$1 and key=$2 and (ends_at is null or ends_at > now())`,
		memberID, key,
	)
	return err
}

// MemberIDByPrincipal reports access.ErrNoMember when the principal is
// unlinked, per the guard contract.
func (s *PGStore) MemberIDByPrincipal(ctx context.Context, principalID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`select id from members where principal_id=$1`, principalID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", access.ErrNoMember
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// ActiveKeys returns the distinct entitlement keys whose validity
// window covers the current instant.
func (s *PGStore) ActiveKeys(ctx context.Context, memberID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct key from entitlement_grants
		 where member_id=$1 and starts_at <= now() and (ends_at is null or ends_at > now())
		 order by key`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func scanMember(row *sql.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.PrincipalID, &m.Email, &m.DisplayName, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
