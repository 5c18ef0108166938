// Package catalog reads the content entities whose policies gate
// access. Policy rows are authored by the CMS and are read-only here.
package catalog

import (
	"errors"
	"time"

	"patronage.fm/internal/access"
)

var ErrNotFound = errors.New("catalog: not found")

// Album is a gated content entity. Policy is the access-relevant
// projection of its CMS row.
type Album struct {
	ID        string                `json:"id"`
	Slug      string                `json:"slug"`
	Title     string                `json:"title"`
	Policy    access.ResourcePolicy `json:"policy"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}
