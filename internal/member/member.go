// Package member owns the identity and entitlement rows the access
// engine reads. Rows are written by account management and billing;
// the guard only ever consumes the active-key projection.
package member

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("member: not found")
	ErrAlreadyExists = errors.New("member: already exists")
	ErrInvalidInput  = errors.New("member: invalid input")
)

// Member is the internal account record. PrincipalID links it to the
// external authenticator and is empty for members who exist before
// signup (gift recipients); at most one member per principal.
type Member struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntitlementGrant is a time-bounded grant of one entitlement key.
// A nil EndsAt means the window is open-ended. A grant is active when
// the current time falls inside the window; only the store applies
// that filter.
type EntitlementGrant struct {
	ID        string     `json:"id"`
	MemberID  string     `json:"member_id"`
	Key       string     `json:"key"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
