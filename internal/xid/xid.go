package xid

import (
	"github.com/google/uuid"
)

// New returns a time-ordered UUID string. Rows created later sort after
// earlier ones, which keeps insertion order stable for equal timestamps.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
