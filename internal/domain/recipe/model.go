// Package recipe provides the bill of materials model: base recipes and full
// recipes that extend one base with add-on ingredients.
package recipe

import (
	"context"
	"fmt"
	"slices"
	"time"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/ingredient"
)

// Tier distinguishes base recipes from full recipes.
type Tier string

const (
	TierBase Tier = "base"
	TierFull Tier = "full"
)

// tierRoles maps each tier to the ingredient role its own lines may use.
var tierRoles = map[Tier]ingredient.Role{
	TierBase: ingredient.RoleBase,
	TierFull: ingredient.RoleAddOn,
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRoles[t]
	return ok
}

// Accepts reports whether an ingredient of type typ may be listed in a recipe of this tier.
func (t Tier) Accepts(typ ingredient.Type) bool {
	role, ok := tierRoles[t]
	return ok && typ.Role() == role
}

// Line is one bill-of-materials line: an ingredient amount per unit of output.
type Line struct {
	IngredientID          id.ID          `db:"ingredient_id" json:"ingredientId"`
	QuantityPerOutputUnit types.Quantity `db:"quantity" json:"quantityPerOutputUnit"`
	Unit                  types.Unit     `db:"unit" json:"unit"`
}

// Recipe is a bill of materials.
type Recipe struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Tier Tier   `db:"tier" json:"tier"`

	// BaseRecipeID is set for full recipes only.
	BaseRecipeID *id.ID `db:"base_recipe_id" json:"baseRecipeId,omitempty"`

	Lines []Line `db:"-" json:"lines"`

	// OutputQuantity is the amount of product one run yields. Zero means unknown.
	OutputQuantity types.Quantity `db:"output_quantity" json:"outputQuantity"`

	// WasteRate is a percentage in [0, 100] applied on top of every line.
	WasteRate types.Quantity `db:"waste_rate" json:"wasteRate"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsBase reports whether r is a base recipe.
func (r *Recipe) IsBase() bool {
	return r.Tier == TierBase
}

// WasteFactor returns 1 + WasteRate/100.
func (r *Recipe) WasteFactor() types.Quantity {
	return types.WasteFactor(r.WasteRate)
}

// EffectiveLines returns the lines a run actually consumes.
// A base recipe uses its own lines. A full recipe uses the base lines followed by
// its own lines; when both name the same ingredient the base line wins.
func (r *Recipe) EffectiveLines(base *Recipe) []Line {
	if r.Tier != TierFull || base == nil {
		return slices.Clone(r.Lines)
	}

	lines := make([]Line, 0, len(base.Lines)+len(r.Lines))
	seen := make(map[id.ID]struct{}, len(base.Lines))
	for _, l := range base.Lines {
		lines = append(lines, l)
		seen[l.IngredientID] = struct{}{}
	}
	for _, l := range r.Lines {
		if _, dup := seen[l.IngredientID]; dup {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// Clone returns a deep copy.
func (r *Recipe) Clone() *Recipe {
	c := *r
	c.Lines = slices.Clone(r.Lines)
	if r.BaseRecipeID != nil {
		baseID := *r.BaseRecipeID
		c.BaseRecipeID = &baseID
	}
	return &c
}

// Validate checks the invariants that need no lookups.
func (r *Recipe) Validate(ctx context.Context) error {
	var errs apperror.FieldErrors
	r.validateShape(&errs)
	return errs.Err()
}

func (r *Recipe) validateShape(errs *apperror.FieldErrors) {
	if r.Name == "" {
		errs.Add("name", "name is required")
	}
	if !r.Tier.Valid() {
		errs.Add("tier", "invalid recipe tier")
	}
	switch {
	case r.Tier == TierFull && (r.BaseRecipeID == nil || id.IsNil(*r.BaseRecipeID)):
		errs.Add("baseRecipeId", "full recipe must reference a base recipe")
	case r.Tier == TierBase && r.BaseRecipeID != nil:
		errs.Add("baseRecipeId", "base recipe cannot reference another recipe")
	}
	if len(r.Lines) == 0 {
		errs.Add("lines", "at least one line is required")
	}
	if err := types.CheckQuantity(r.OutputQuantity); err != nil {
		errs.Add("outputQuantity", err.Error())
	} else if r.OutputQuantity.IsNegative() {
		errs.Add("outputQuantity", "output quantity must not be negative")
	}
	if err := types.CheckQuantity(r.WasteRate); err != nil {
		errs.Add("wasteRate", err.Error())
	} else if r.WasteRate.IsNegative() || r.WasteRate.GreaterThan(types.Hundred) {
		errs.Add("wasteRate", "waste rate must be between 0 and 100")
	}

	seen := make(map[id.ID]int, len(r.Lines))
	for i, l := range r.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if id.IsNil(l.IngredientID) {
			errs.Add(field+".ingredientId", "ingredient is required")
			continue
		}
		if err := types.CheckQuantity(l.QuantityPerOutputUnit); err != nil {
			errs.Add(field+".quantityPerOutputUnit", err.Error())
		} else if !l.QuantityPerOutputUnit.IsPositive() {
			errs.Add(field+".quantityPerOutputUnit", "quantity must be positive")
		}
		if prev, dup := seen[l.IngredientID]; dup {
			errs.Add(field+".ingredientId", fmt.Sprintf("ingredient already listed in lines[%d]", prev))
			continue
		}
		seen[l.IngredientID] = i
	}
}

// validateReferences checks lines against the ingredient catalogue and, for full
// recipes, against the base recipe.
func (r *Recipe) validateReferences(base *Recipe, ingredients map[id.ID]*ingredient.Ingredient, errs *apperror.FieldErrors) {
	if r.Tier == TierFull && r.BaseRecipeID != nil && !id.IsNil(*r.BaseRecipeID) {
		switch {
		case base == nil:
			errs.Add("baseRecipeId", "base recipe does not exist")
		case !base.IsBase():
			errs.Add("baseRecipeId", "referenced recipe is not a base recipe")
		}
	}

	var inherited map[id.ID]struct{}
	if base != nil && base.IsBase() {
		inherited = make(map[id.ID]struct{}, len(base.Lines))
		for _, l := range base.Lines {
			inherited[l.IngredientID] = struct{}{}
		}
	}

	for i, l := range r.Lines {
		if id.IsNil(l.IngredientID) {
			continue
		}
		field := fmt.Sprintf("lines[%d]", i)
		ing, ok := ingredients[l.IngredientID]
		if !ok {
			errs.Add(field+".ingredientId", "ingredient does not exist")
			continue
		}
		if l.Unit != ing.Unit {
			errs.Add(field+".unit", fmt.Sprintf("unit must be %q", ing.Unit))
		}
		if r.Tier.Valid() && !r.Tier.Accepts(ing.Type) {
			errs.Add(field+".ingredientId", fmt.Sprintf("%s ingredient cannot be used in a %s recipe", ing.Type, r.Tier))
		}
		if _, dup := inherited[l.IngredientID]; dup {
			errs.Add(field+".ingredientId", "ingredient is already provided by the base recipe")
		}
	}
}

// Resolved is a recipe together with the base it was read with and its effective lines.
type Resolved struct {
	Recipe *Recipe
	Base   *Recipe
	Lines  []Line
}
