package dto

import (
	"fmt"
	"time"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/recipe"
)

// RecipeLineRequest is one bill-of-materials line.
type RecipeLineRequest struct {
	IngredientID          string         `json:"ingredientId"`
	QuantityPerOutputUnit types.Quantity `json:"quantityPerOutputUnit"`
	Unit                  string         `json:"unit"`
}

// CreateRecipeRequest is the body of POST /recipes.
type CreateRecipeRequest struct {
	Name           string              `json:"name" binding:"required"`
	Tier           string              `json:"tier" binding:"required"`
	BaseRecipeID   *string             `json:"baseRecipeId"`
	OutputQuantity *types.Quantity     `json:"outputQuantity"`
	WasteRate      *types.Quantity     `json:"wasteRate"`
	Lines          []RecipeLineRequest `json:"lines"`
}

// ToEntity builds an unsaved recipe.
func (r CreateRecipeRequest) ToEntity() (*recipe.Recipe, error) {
	rec := &recipe.Recipe{
		Name:           r.Name,
		Tier:           recipe.Tier(r.Tier),
		OutputQuantity: types.Zero(),
		WasteRate:      types.Zero(),
	}
	if r.OutputQuantity != nil {
		if err := CheckQuantity("outputQuantity", *r.OutputQuantity); err != nil {
			return nil, err
		}
		rec.OutputQuantity = *r.OutputQuantity
	}
	if r.WasteRate != nil {
		if err := CheckQuantity("wasteRate", *r.WasteRate); err != nil {
			return nil, err
		}
		rec.WasteRate = *r.WasteRate
	}
	if r.BaseRecipeID != nil && *r.BaseRecipeID != "" {
		baseID, err := ParseID("baseRecipeId", *r.BaseRecipeID)
		if err != nil {
			return nil, err
		}
		rec.BaseRecipeID = &baseID
	}

	lines, err := toLines(r.Lines)
	if err != nil {
		return nil, err
	}
	rec.Lines = lines
	return rec, nil
}

func toLines(in []RecipeLineRequest) ([]recipe.Line, error) {
	var errs apperror.FieldErrors
	lines := make([]recipe.Line, 0, len(in))
	for i, l := range in {
		ingredientID, err := id.Parse(l.IngredientID)
		if err != nil {
			errs.Add(fmt.Sprintf("lines[%d].ingredientId", i), "invalid id format")
		}
		if err := types.CheckQuantity(l.QuantityPerOutputUnit); err != nil {
			errs.Add(fmt.Sprintf("lines[%d].quantityPerOutputUnit", i), err.Error())
		}
		lines = append(lines, recipe.Line{
			IngredientID:          ingredientID,
			QuantityPerOutputUnit: l.QuantityPerOutputUnit,
			Unit:                  types.Unit(l.Unit),
		})
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// UpdateRecipeRequest is the body of PUT /recipes/:id. The tier cannot change.
type UpdateRecipeRequest struct {
	CreateRecipeRequest
	Version int `json:"version" binding:"required,min=1"`
}

// ToEntity builds the replacement recipe.
func (r UpdateRecipeRequest) ToEntity(recipeID id.ID) (*recipe.Recipe, error) {
	rec, err := r.CreateRecipeRequest.ToEntity()
	if err != nil {
		return nil, err
	}
	rec.ID = recipeID
	rec.Version = r.Version
	return rec, nil
}

// RecipeListRequest holds the query of GET /recipes.
type RecipeListRequest struct {
	PaginationRequest
	Tier         string `form:"tier"`
	BaseRecipeID string `form:"baseRecipeId"`
}

// ToFilter converts the query to a repository filter.
func (r RecipeListRequest) ToFilter() (recipe.ListFilter, error) {
	f := recipe.ListFilter{Tier: recipe.Tier(r.Tier), Limit: r.Limit, Offset: r.Offset}
	if r.BaseRecipeID != "" {
		baseID, err := ParseID("baseRecipeId", r.BaseRecipeID)
		if err != nil {
			return f, err
		}
		f.BaseRecipeID = &baseID
	}
	return f, nil
}

// RecipeResponse represents a recipe. EffectiveLines are present for resolved recipes.
type RecipeResponse struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Tier           recipe.Tier    `json:"tier"`
	BaseRecipeID   *string        `json:"baseRecipeId,omitempty"`
	OutputQuantity types.Quantity `json:"outputQuantity"`
	WasteRate      types.Quantity `json:"wasteRate"`
	Lines          []recipe.Line  `json:"lines"`
	EffectiveLines []recipe.Line  `json:"effectiveLines,omitempty"`
	Version        int            `json:"version"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// FromRecipe converts a recipe.
func FromRecipe(r *recipe.Recipe) RecipeResponse {
	resp := RecipeResponse{
		ID:             r.ID.String(),
		Name:           r.Name,
		Tier:           r.Tier,
		OutputQuantity: r.OutputQuantity,
		WasteRate:      r.WasteRate,
		Lines:          r.Lines,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.BaseRecipeID != nil {
		s := r.BaseRecipeID.String()
		resp.BaseRecipeID = &s
	}
	if resp.Lines == nil {
		resp.Lines = []recipe.Line{}
	}
	return resp
}

// FromResolved converts a recipe together with its effective lines.
func FromResolved(r recipe.Resolved) RecipeResponse {
	resp := FromRecipe(r.Recipe)
	resp.EffectiveLines = r.Lines
	return resp
}
