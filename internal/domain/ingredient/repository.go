package ingredient

import (
	"context"
	"time"

	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
)

// Repository defines persistence for ingredients and their ledgers.
type Repository interface {
	// Create inserts a new ingredient together with its entries.
	Create(ctx context.Context, ing *Ingredient) error

	// GetByID retrieves an ingredient with its recomputed ledger.
	GetByID(ctx context.Context, ingredientID id.ID) (*Ingredient, error)

	// GetForUpdate retrieves an ingredient with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, ingredientID id.ID) (*Ingredient, error)

	// Update stores the ledger and bumps Version.
	// Fails with CONCURRENT_MODIFICATION if the stored version differs from ing.Version.
	Update(ctx context.Context, ing *Ingredient) error

	// List retrieves ingredients matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Ingredient, error)

	// GetByIDs retrieves several ingredients at once. Missing ids are absent from the map.
	GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*Ingredient, error)
}

// ListFilter for filtering ingredient lists.
type ListFilter struct {
	Search string
	Types  []Type
	Limit  int
	Offset int
}

// AuditLog records ledger mutations for later inspection.
type AuditLog interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// AuditRecord describes one applied ledger mutation.
type AuditRecord struct {
	IngredientID id.ID
	Operation    string
	EntryID      id.ID
	Before       types.Quantity
	After        types.Quantity
	Changes      map[string]any
	RecordedAt   time.Time
}
