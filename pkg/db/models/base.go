package models

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewPublicID returns a time-ordered ULID used as the external identifier of
// stock units and orders.
func NewPublicID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func ensurePublicID(id *string, now time.Time) {
	if *id == "" {
		*id = NewPublicID(now)
	}
}
