// Package idempotency defines the key store that lets clients retry ledger
// writes without recording the same stock movement twice.
package idempotency

import (
	"context"
	"net/http"
	"time"
)

// DefaultTTL is how long a completed response stays replayable.
const DefaultTTL = 24 * time.Hour

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
)

// Record stores the result of an idempotent operation.
type Record struct {
	Key         string    `db:"idempotency_key"`
	Operation   string    `db:"operation"`
	Status      Status    `db:"status"`
	RequestHash string    `db:"request_hash"` // SHA256 of the request body
	Response    []byte    `db:"response"`
	StatusCode  int       `db:"response_status"`
	ContentType string    `db:"response_content_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Replay is the cached HTTP response of a completed request.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store manages idempotency keys.
type Store interface {
	// Acquire claims key for a request. It returns (nil, nil) when the caller
	// should run the request, a Replay when the request already completed, and
	// an error when the key is held by a running request or was used for a
	// different one.
	Acquire(ctx context.Context, key, operation, requestHash string) (*Replay, error)

	// Complete stores the response for later replay.
	Complete(ctx context.Context, key string, replay Replay) error

	// Release forgets a pending key so the request can be retried.
	Release(ctx context.Context, key string) error

	// CleanupExpired removes expired records and returns how many were removed.
	CleanupExpired(ctx context.Context) (int64, error)
}

// StalePending is how long a pending key may stay unfinished before another
// request may reclaim it.
const StalePending = time.Minute

// ReplayOf builds the replay of a finished record.
func ReplayOf(r Record) *Replay {
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	ct := r.ContentType
	if ct == "" {
		ct = "application/json"
	}
	return &Replay{StatusCode: status, ContentType: ct, Body: r.Response}
}
