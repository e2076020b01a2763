package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/ingredient"
)

// IngredientRepo implements ingredient.Repository.
type IngredientRepo struct {
	store *Store
}

// NewIngredientRepo creates a repository over the store.
func NewIngredientRepo(store *Store) *IngredientRepo {
	return &IngredientRepo{store: store}
}

// Create inserts a new ingredient.
func (r *IngredientRepo) Create(ctx context.Context, ing *ingredient.Ingredient) error {
	return r.store.write(ctx, func() error {
		if _, exists := r.store.ingredients[ing.ID]; exists {
			return apperror.NewDuplicate("ingredient", "id", ing.ID.String())
		}
		r.store.ingredients[ing.ID] = ing.Clone()
		return nil
	})
}

// GetByID retrieves an ingredient.
func (r *IngredientRepo) GetByID(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	var (
		found *ingredient.Ingredient
		ok    bool
	)
	r.store.read(ctx, func() {
		found, ok = r.store.ingredients[ingredientID]
		if ok {
			found = found.Clone()
		}
	})
	if !ok {
		return nil, apperror.NewNotFound("ingredient", ingredientID.String())
	}
	return found, nil
}

// GetForUpdate retrieves an ingredient. The transaction already holds the store's write lock.
func (r *IngredientRepo) GetForUpdate(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	return r.GetByID(ctx, ingredientID)
}

// Update stores the ingredient if its version still matches and bumps the version.
func (r *IngredientRepo) Update(ctx context.Context, ing *ingredient.Ingredient) error {
	return r.store.write(ctx, func() error {
		stored, ok := r.store.ingredients[ing.ID]
		if !ok {
			return apperror.NewNotFound("ingredient", ing.ID.String())
		}
		if stored.Version != ing.Version {
			return apperror.NewConcurrentModification("ingredient", ing.ID.String())
		}
		ing.Version++
		r.store.ingredients[ing.ID] = ing.Clone()
		return nil
	})
}

// List retrieves ingredients ordered by name.
func (r *IngredientRepo) List(ctx context.Context, filter ingredient.ListFilter) ([]*ingredient.Ingredient, error) {
	var items []*ingredient.Ingredient
	search := strings.ToLower(filter.Search)

	r.store.read(ctx, func() {
		for _, ing := range r.store.ingredients {
			if search != "" && !strings.Contains(strings.ToLower(ing.Name), search) {
				continue
			}
			if len(filter.Types) > 0 && !slices.Contains(filter.Types, ing.Type) {
				continue
			}
			items = append(items, ing.Clone())
		}
	})

	slices.SortFunc(items, func(a, b *ingredient.Ingredient) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return paginate(items, filter.Offset, filter.Limit), nil
}

// GetByIDs retrieves several ingredients. Unknown ids are skipped.
func (r *IngredientRepo) GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*ingredient.Ingredient, error) {
	result := make(map[id.ID]*ingredient.Ingredient, len(ids))
	r.store.read(ctx, func() {
		for _, ingredientID := range ids {
			if ing, ok := r.store.ingredients[ingredientID]; ok {
				result[ingredientID] = ing.Clone()
			}
		}
	})
	return result, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
