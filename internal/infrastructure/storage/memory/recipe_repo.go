package memory

import (
	"cmp"
	"context"
	"slices"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/recipe"
)

// RecipeRepo implements recipe.Repository.
type RecipeRepo struct {
	store *Store
}

// NewRecipeRepo creates a repository over the store.
func NewRecipeRepo(store *Store) *RecipeRepo {
	return &RecipeRepo{store: store}
}

// Create inserts a recipe.
func (r *RecipeRepo) Create(ctx context.Context, rec *recipe.Recipe) error {
	return r.store.write(ctx, func() error {
		if _, exists := r.store.recipes[rec.ID]; exists {
			return apperror.NewDuplicate("recipe", "id", rec.ID.String())
		}
		r.store.recipes[rec.ID] = rec.Clone()
		return nil
	})
}

// GetByID retrieves a recipe.
func (r *RecipeRepo) GetByID(ctx context.Context, recipeID id.ID) (*recipe.Recipe, error) {
	var (
		found *recipe.Recipe
		ok    bool
	)
	r.store.read(ctx, func() {
		found, ok = r.store.recipes[recipeID]
		if ok {
			found = found.Clone()
		}
	})
	if !ok {
		return nil, apperror.NewNotFound("recipe", recipeID.String())
	}
	return found, nil
}

// Update replaces a recipe if its version still matches and bumps the version.
func (r *RecipeRepo) Update(ctx context.Context, rec *recipe.Recipe) error {
	return r.store.write(ctx, func() error {
		stored, ok := r.store.recipes[rec.ID]
		if !ok {
			return apperror.NewNotFound("recipe", rec.ID.String())
		}
		if stored.Version != rec.Version {
			return apperror.NewConcurrentModification("recipe", rec.ID.String())
		}
		rec.Version++
		r.store.recipes[rec.ID] = rec.Clone()
		return nil
	})
}

// List retrieves recipes ordered by name.
func (r *RecipeRepo) List(ctx context.Context, filter recipe.ListFilter) ([]*recipe.Recipe, error) {
	var items []*recipe.Recipe
	r.store.read(ctx, func() {
		for _, rec := range r.store.recipes {
			if filter.Tier != "" && rec.Tier != filter.Tier {
				continue
			}
			if filter.BaseRecipeID != nil && (rec.BaseRecipeID == nil || *rec.BaseRecipeID != *filter.BaseRecipeID) {
				continue
			}
			items = append(items, rec.Clone())
		}
	})

	slices.SortFunc(items, func(a, b *recipe.Recipe) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return paginate(items, filter.Offset, filter.Limit), nil
}
