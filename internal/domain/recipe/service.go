package recipe

import (
	"context"
	"fmt"
	"time"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/tx"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/pkg/logger"
)

// Service provides business logic for recipes.
type Service struct {
	repo        Repository
	ingredients IngredientLookup
	txManager   tx.Manager
	ids         id.Generator
	clock       func() time.Time
}

// ServiceConfig configures the recipe service.
type ServiceConfig struct {
	Repo        Repository
	Ingredients IngredientLookup
	TxManager   tx.Manager
	IDs         id.Generator     // Optional, UUIDv7 by default
	Clock       func() time.Time // Optional, time.Now by default
}

// NewService creates a new recipe service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:        cfg.Repo,
		ingredients: cfg.Ingredients,
		txManager:   cfg.TxManager,
		ids:         cfg.IDs,
		clock:       cfg.Clock,
	}
	if s.ids == nil {
		s.ids = id.UUIDv7{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Create validates and stores a new recipe.
func (s *Service) Create(ctx context.Context, r *Recipe) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// 1. Validate shape and references
		if err := s.validate(ctx, r); err != nil {
			return err
		}

		// 2. Assign identity
		now := s.clock().UTC()
		r.ID = s.ids.NewID()
		r.Version = 1
		r.CreatedAt = now
		r.UpdatedAt = now

		// 3. Persist
		if err := s.repo.Create(ctx, r); err != nil {
			return fmt.Errorf("create recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "recipe created",
		"recipe_id", r.ID,
		"name", r.Name,
		"tier", r.Tier,
		"lines", len(r.Lines))
	return nil
}

// Update validates and replaces an existing recipe. r.Version must match the stored version.
func (s *Service) Update(ctx context.Context, r *Recipe) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, r.ID)
		if err != nil {
			return normalizeGetErr(err, r.ID)
		}
		if existing.Tier != r.Tier {
			return apperror.NewValidation("recipe tier cannot be changed").WithDetail("field", "tier")
		}
		if err := s.validate(ctx, r); err != nil {
			return err
		}

		r.CreatedAt = existing.CreatedAt
		r.UpdatedAt = s.clock().UTC()
		if err := s.repo.Update(ctx, r); err != nil {
			return fmt.Errorf("update recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "recipe updated",
		"recipe_id", r.ID,
		"version", r.Version)
	return nil
}

// GetByID retrieves a recipe.
func (s *Service) GetByID(ctx context.Context, recipeID id.ID) (*Recipe, error) {
	r, err := s.repo.GetByID(ctx, recipeID)
	if err != nil {
		return nil, normalizeGetErr(err, recipeID)
	}
	return r, nil
}

// List retrieves recipes matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Recipe, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return items, nil
}

// ListBase retrieves every base recipe.
func (s *Service) ListBase(ctx context.Context) ([]*Recipe, error) {
	return s.List(ctx, ListFilter{Tier: TierBase})
}

// Resolve reads a recipe and its base from one snapshot and returns the effective lines.
func (s *Service) Resolve(ctx context.Context, recipeID id.ID) (Resolved, error) {
	var res Resolved
	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, recipeID)
		if err != nil {
			return normalizeGetErr(err, recipeID)
		}

		var base *Recipe
		if r.Tier == TierFull && r.BaseRecipeID != nil {
			base, err = s.repo.GetByID(ctx, *r.BaseRecipeID)
			if apperror.IsNotFound(err) {
				return apperror.NewIntegrity("recipe", r.BaseRecipeID.String()).
					WithDetail("recipe_id", recipeID.String())
			}
			if err != nil {
				return fmt.Errorf("get base recipe: %w", err)
			}
		}

		res = Resolved{Recipe: r, Base: base, Lines: r.EffectiveLines(base)}
		return nil
	})
	return res, err
}

func (s *Service) validate(ctx context.Context, r *Recipe) error {
	var errs apperror.FieldErrors
	r.validateShape(&errs)

	var base *Recipe
	if r.Tier == TierFull && r.BaseRecipeID != nil && !id.IsNil(*r.BaseRecipeID) {
		b, err := s.repo.GetByID(ctx, *r.BaseRecipeID)
		switch {
		case err == nil:
			base = b
		case !apperror.IsNotFound(err):
			return fmt.Errorf("get base recipe: %w", err)
		}
	}

	ids := make([]id.ID, 0, len(r.Lines))
	for _, l := range r.Lines {
		if !id.IsNil(l.IngredientID) {
			ids = append(ids, l.IngredientID)
		}
	}
	ingredients := map[id.ID]*ingredient.Ingredient{}
	if len(ids) > 0 {
		found, err := s.ingredients.GetByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load recipe ingredients: %w", err)
		}
		ingredients = found
	}

	r.validateReferences(base, ingredients, &errs)
	return errs.Err()
}

func normalizeGetErr(err error, recipeID id.ID) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("recipe", recipeID.String())
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", "recipe").WithDetail("id", recipeID.String())
}
