// Package id provides UUIDv7 identifiers for ingredients, ledger entries and recipes.
package id

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// Generator supplies unique identifiers for new records.
type Generator interface {
	NewID() ID
}

// UUIDv7 generates time-ordered UUIDs.
type UUIDv7 struct{}

// NewID implements Generator.
func (UUIDv7) NewID() ID {
	return New()
}

// New generates a new UUIDv7, falling back to V4 if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Sequence is a deterministic Generator for tests and seed data.
// IDs are 00000000-0000-0000-0000-<counter>.
type Sequence struct {
	n atomic.Uint64
}

// NewID implements Generator.
func (s *Sequence) NewID() ID {
	return MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", s.n.Add(1)))
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
