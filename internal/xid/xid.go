package xid

import (
	"time"

	"github.com/google/uuid"
)

// New returns a random (version 4) identifier.
func New() string {
	return uuid.NewString()
}

// Valid reports whether id parses as a UUID.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Millis truncates t to the millisecond precision used by persisted timestamps.
func Millis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
