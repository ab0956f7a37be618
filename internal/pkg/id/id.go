package id

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as primary keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewCodeID returns a UUIDv7 for one-time code records. Version 7 keeps
// ids ordered by issuance so ties on issued_at still sort newest-last.
func NewCodeID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
