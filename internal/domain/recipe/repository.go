package recipe

import (
	"context"

	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/ingredient"
)

// Repository defines persistence for recipes and their lines.
type Repository interface {
	// Create inserts a recipe together with its lines.
	Create(ctx context.Context, r *Recipe) error

	// GetByID retrieves a recipe with its lines.
	GetByID(ctx context.Context, recipeID id.ID) (*Recipe, error)

	// Update replaces the recipe and its lines and bumps Version.
	// Fails with CONCURRENT_MODIFICATION if the stored version differs from r.Version.
	Update(ctx context.Context, r *Recipe) error

	// List retrieves recipes matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Recipe, error)
}

// ListFilter for filtering recipe lists.
type ListFilter struct {
	Tier         Tier // Empty means any tier
	BaseRecipeID *id.ID
	Limit        int
	Offset       int
}

// IngredientLookup resolves the ingredients a recipe refers to.
type IngredientLookup interface {
	GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*ingredient.Ingredient, error)
}
