package member

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"patronage.fm/internal/access"
)

func TestActiveKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select distinct key from entitlement_grants").
		WithArgs("mem-1").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("admin").AddRow("sub_patron"))

	store := NewPGStore(db)
	keys, err := store.ActiveKeys(context.Background(), "mem-1")
	if err != nil {
		t.Fatalf("ActiveKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "admin" || keys[1] != "sub_patron" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMemberIDByPrincipalNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id from members where principal_id").
		WithArgs("prin-ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewPGStore(db)
	if _, err := store.MemberIDByPrincipal(context.Background(), "prin-ghost"); !errors.Is(err, access.ErrNoMember) {
		t.Fatalf("expected access.ErrNoMember, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into entitlement_grants").
		WithArgs(sqlmock.AnyArg(), "mem-1", "sub_patron", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("update entitlement_grants set ends_at=now").
		WithArgs("mem-1", "sub_patron").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	grant := &EntitlementGrant{MemberID: "mem-1", Key: "sub_patron"}
	if err := store.Grant(context.Background(), grant); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if grant.ID == "" {
		t.Fatal("expected generated grant id")
	}
	if err := store.Revoke(context.Background(), "mem-1", "sub_patron"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	if err := store.Grant(context.Background(), &EntitlementGrant{MemberID: "", Key: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFindByPrincipal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("select id, coalesce.*from members where principal_id").
		WithArgs("prin-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "principal_id", "email", "display_name", "created_at", "updated_at"},
		).AddRow("mem-1", "prin-1", "a@b.c", "Ada", now, now))

	store := NewPGStore(db)
	m, err := store.FindByPrincipal(context.Background(), "prin-1")
	if err != nil {
		t.Fatalf("FindByPrincipal: %v", err)
	}
	if m.ID != "mem-1" || m.Email != "a@b.c" {
		t.Fatalf("unexpected member: %+v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
