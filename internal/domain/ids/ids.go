// Package ids validates backend record IDs and mints gateway-side IDs.
package ids

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var ErrInvalidID = errors.New("invalid id")

// IsUUID reports whether value is a UUID in canonical 8-4-4-4-12 form.
func IsUUID(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}

// ValidateID rejects anything that is not a backend-issued UUID.
func ValidateID(value string) error {
	if !IsUUID(value) {
		return ErrInvalidID
	}
	return nil
}

// NewULID generates a ULID for ts. ULIDs sort by creation time, which keeps
// audit records ordered.
func NewULID(ts time.Time) string {
	return ulid.MustNew(ulid.Timestamp(ts), rand.Reader).String()
}

// IsULID returns true when value is a valid ULID.
func IsULID(value string) bool {
	_, err := ulid.ParseStrict(strings.TrimSpace(value))
	return err == nil
}
