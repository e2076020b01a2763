// Package tx defines the transaction contract used by domain services.
// Implementations live in infrastructure/storage (postgres and memory).
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
//
// A ledger mutation (read ingredient, recompute, write) always runs inside
// RunInTransaction; nested calls reuse the transaction already in ctx.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ReadOnly executes fn against a consistent snapshot.
	// Feasibility calculations use it so that they never observe a half-applied recompute.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
