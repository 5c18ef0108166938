// Package ids generates row identifiers for members, grants and audit
// entries. ULIDs sort by creation time, so listings come back in
// insertion order without a separate sequence column.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New returns a fresh ULID string.
func New() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}
