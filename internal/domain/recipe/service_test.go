package recipe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/recipe"
	"bakehouse/internal/infrastructure/storage/memory"
)

type fixture struct {
	svc         *recipe.Service
	ingredients *ingredient.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	txm := memory.NewTxManager(store)
	ingRepo := memory.NewIngredientRepo(store)
	return fixture{
		svc: recipe.NewService(recipe.ServiceConfig{
			Repo:        memory.NewRecipeRepo(store),
			Ingredients: ingRepo,
			TxManager:   txm,
		}),
		ingredients: ingredient.NewService(ingredient.ServiceConfig{
			Repo:               ingRepo,
			TxManager:          txm,
			AllowNegativeStock: true,
		}),
	}
}

func (f fixture) ingredient(t *testing.T, name string, typ ingredient.Type, unit types.Unit) id.ID {
	t.Helper()
	ing := ingredient.New(name, typ, unit, types.Zero())
	require.NoError(t, f.ingredients.Create(context.Background(), ing))
	return ing.ID
}

func line(ingredientID id.ID, qty string, unit types.Unit) recipe.Line {
	return recipe.Line{IngredientID: ingredientID, QuantityPerOutputUnit: types.MustQuantity(qty), Unit: unit}
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, apperror.CodeValidation, appErr.Code)

	fieldErrs, ok := appErr.Details["fields"].([]apperror.FieldError)
	require.True(t, ok)
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	return fields
}

func TestTier_Accepts(t *testing.T) {
	assert.True(t, recipe.TierBase.Accepts(ingredient.TypeBase))
	assert.False(t, recipe.TierBase.Accepts(ingredient.TypeFlavor))
	assert.True(t, recipe.TierFull.Accepts(ingredient.TypeFlavor))
	assert.True(t, recipe.TierFull.Accepts(ingredient.TypeTopping))
	assert.False(t, recipe.TierFull.Accepts(ingredient.TypeBase))
	assert.False(t, recipe.TierFull.Accepts(ingredient.TypeDecoration))
	assert.False(t, recipe.Tier("mega").Accepts(ingredient.TypeBase))
}

func TestEffectiveLines(t *testing.T) {
	flour, sugar, cocoa := id.New(), id.New(), id.New()
	base := &recipe.Recipe{
		Tier:  recipe.TierBase,
		Lines: []recipe.Line{line(flour, "100", types.UnitMass), line(sugar, "50", types.UnitMass)},
	}
	baseID := id.New()
	full := &recipe.Recipe{
		Tier:         recipe.TierFull,
		BaseRecipeID: &baseID,
		Lines:        []recipe.Line{line(sugar, "999", types.UnitMass), line(cocoa, "10", types.UnitMass)},
	}

	assert.Len(t, base.EffectiveLines(nil), 2)

	lines := full.EffectiveLines(base)
	require.Len(t, lines, 3)
	assert.Equal(t, flour, lines[0].IngredientID)
	assert.Equal(t, sugar, lines[1].IngredientID)
	assert.Equal(t, "50", lines[1].QuantityPerOutputUnit.String(), "inherited line wins")
	assert.Equal(t, cocoa, lines[2].IngredientID)
}

func TestRecipe_ValidateShape(t *testing.T) {
	flour := id.New()
	tests := []struct {
		name   string
		recipe recipe.Recipe
		field  string
	}{
		{
			name:   "missing name",
			recipe: recipe.Recipe{Tier: recipe.TierBase, Lines: []recipe.Line{line(flour, "1", types.UnitMass)}},
			field:  "name",
		},
		{
			name:   "no lines",
			recipe: recipe.Recipe{Name: "Sponge", Tier: recipe.TierBase},
			field:  "lines",
		},
		{
			name:   "zero quantity",
			recipe: recipe.Recipe{Name: "Sponge", Tier: recipe.TierBase, Lines: []recipe.Line{line(flour, "0", types.UnitMass)}},
			field:  "lines[0].quantityPerOutputUnit",
		},
		{
			name: "waste above 100",
			recipe: recipe.Recipe{
				Name: "Sponge", Tier: recipe.TierBase, WasteRate: types.MustQuantity("101"),
				Lines: []recipe.Line{line(flour, "1", types.UnitMass)},
			},
			field: "wasteRate",
		},
		{
			name:   "quantity below precision",
			recipe: recipe.Recipe{Name: "Sponge", Tier: recipe.TierBase, Lines: []recipe.Line{line(flour, "1e-100", types.UnitMass)}},
			field:  "lines[0].quantityPerOutputUnit",
		},
		{
			name: "waste rate with huge exponent",
			recipe: recipe.Recipe{
				Name: "Sponge", Tier: recipe.TierBase, WasteRate: types.MustQuantity("1e999999999"),
				Lines: []recipe.Line{line(flour, "1", types.UnitMass)},
			},
			field: "wasteRate",
		},
		{
			name: "output below precision",
			recipe: recipe.Recipe{
				Name: "Sponge", Tier: recipe.TierBase, OutputQuantity: types.MustQuantity("0.000000001"),
				Lines: []recipe.Line{line(flour, "1", types.UnitMass)},
			},
			field: "outputQuantity",
		},
		{
			name:   "full without base",
			recipe: recipe.Recipe{Name: "Choc cake", Tier: recipe.TierFull, Lines: []recipe.Line{line(flour, "1", types.UnitMass)}},
			field:  "baseRecipeId",
		},
		{
			name: "duplicate ingredient",
			recipe: recipe.Recipe{
				Name: "Sponge", Tier: recipe.TierBase,
				Lines: []recipe.Line{line(flour, "1", types.UnitMass), line(flour, "2", types.UnitMass)},
			},
			field: "lines[1].ingredientId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.recipe.Validate(context.Background())
			require.Error(t, err)
			assert.Contains(t, fieldsOf(t, err), tt.field)
		})
	}
}

func TestService_CreateBaseAndFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flour := f.ingredient(t, "Flour", ingredient.TypeBase, types.UnitMass)
	eggs := f.ingredient(t, "Eggs", ingredient.TypeBase, types.UnitCount)
	cocoa := f.ingredient(t, "Cocoa", ingredient.TypeFlavor, types.UnitMass)

	base := &recipe.Recipe{
		Name:           "Sponge",
		Tier:           recipe.TierBase,
		Lines:          []recipe.Line{line(flour, "200", types.UnitMass), line(eggs, "4", types.UnitCount)},
		OutputQuantity: types.MustQuantity("1"),
	}
	require.NoError(t, f.svc.Create(ctx, base))
	assert.Equal(t, 1, base.Version)

	full := &recipe.Recipe{
		Name:           "Chocolate sponge",
		Tier:           recipe.TierFull,
		BaseRecipeID:   &base.ID,
		Lines:          []recipe.Line{line(cocoa, "30", types.UnitMass)},
		OutputQuantity: types.MustQuantity("1"),
		WasteRate:      types.MustQuantity("5"),
	}
	require.NoError(t, f.svc.Create(ctx, full))

	resolved, err := f.svc.Resolve(ctx, full.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.Base)
	assert.Equal(t, base.ID, resolved.Base.ID)
	assert.Len(t, resolved.Lines, 3)

	bases, err := f.svc.ListBase(ctx)
	require.NoError(t, err)
	require.Len(t, bases, 1)
	assert.Equal(t, base.ID, bases[0].ID)
}

func TestService_FullRecipeCannotRepeatBaseIngredient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flour := f.ingredient(t, "Flour", ingredient.TypeBase, types.UnitMass)
	cocoa := f.ingredient(t, "Cocoa", ingredient.TypeFlavor, types.UnitMass)

	base := &recipe.Recipe{Name: "Sponge", Tier: recipe.TierBase, Lines: []recipe.Line{line(flour, "200", types.UnitMass)}}
	require.NoError(t, f.svc.Create(ctx, base))

	full := &recipe.Recipe{
		Name:         "Extra flour sponge",
		Tier:         recipe.TierFull,
		BaseRecipeID: &base.ID,
		Lines:        []recipe.Line{line(cocoa, "30", types.UnitMass), line(flour, "50", types.UnitMass)},
	}
	err := f.svc.Create(ctx, full)
	require.Error(t, err)
	assert.Contains(t, fieldsOf(t, err), "lines[1].ingredientId")

	all, err := f.svc.List(ctx, recipe.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "rejected recipe is not stored")
}

func TestService_ReferenceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flour := f.ingredient(t, "Flour", ingredient.TypeBase, types.UnitMass)
	sprinkles := f.ingredient(t, "Sprinkles", ingredient.TypeDecoration, types.UnitMass)
	cocoa := f.ingredient(t, "Cocoa", ingredient.TypeFlavor, types.UnitMass)

	base := &recipe.Recipe{Name: "Sponge", Tier: recipe.TierBase, Lines: []recipe.Line{line(flour, "200", types.UnitMass)}}
	require.NoError(t, f.svc.Create(ctx, base))
	missing := id.New()

	tests := []struct {
		name   string
		recipe *recipe.Recipe
		field  string
	}{
		{
			name:   "unknown ingredient",
			recipe: &recipe.Recipe{Name: "X", Tier: recipe.TierBase, Lines: []recipe.Line{line(missing, "1", types.UnitMass)}},
			field:  "lines[0].ingredientId",
		},
		{
			name:   "unit mismatch",
			recipe: &recipe.Recipe{Name: "X", Tier: recipe.TierBase, Lines: []recipe.Line{line(flour, "1", types.UnitCount)}},
			field:  "lines[0].unit",
		},
		{
			name:   "flavor in base recipe",
			recipe: &recipe.Recipe{Name: "X", Tier: recipe.TierBase, Lines: []recipe.Line{line(cocoa, "1", types.UnitMass)}},
			field:  "lines[0].ingredientId",
		},
		{
			name: "decoration in full recipe",
			recipe: &recipe.Recipe{
				Name: "X", Tier: recipe.TierFull, BaseRecipeID: &base.ID,
				Lines: []recipe.Line{line(sprinkles, "1", types.UnitMass)},
			},
			field: "lines[0].ingredientId",
		},
		{
			name: "unknown base recipe",
			recipe: &recipe.Recipe{
				Name: "X", Tier: recipe.TierFull, BaseRecipeID: &missing,
				Lines: []recipe.Line{line(cocoa, "1", types.UnitMass)},
			},
			field: "baseRecipeId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Create(ctx, tt.recipe)
			require.Error(t, err)
			assert.Contains(t, fieldsOf(t, err), tt.field)
		})
	}
}

func TestService_FullRecipeMustReferenceBaseTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flour := f.ingredient(t, "Flour", ingredient.TypeBase, types.UnitMass)
	cocoa := f.ingredient(t, "Cocoa", ingredient.TypeFlavor, types.UnitMass)
	mint := f.ingredient(t, "Mint", ingredient.TypeFlavor, types.UnitMass)

	base := &recipe.Recipe{Name: "Sponge", Tier: recipe.TierBase, Lines: []recipe.Line{line(flour, "200", types.UnitMass)}}
	require.NoError(t, f.svc.Create(ctx, base))
	full := &recipe.Recipe{Name: "Choc", Tier: recipe.TierFull, BaseRecipeID: &base.ID, Lines: []recipe.Line{line(cocoa, "1", types.UnitMass)}}
	require.NoError(t, f.svc.Create(ctx, full))

	onFull := &recipe.Recipe{Name: "Mint choc", Tier: recipe.TierFull, BaseRecipeID: &full.ID, Lines: []recipe.Line{line(mint, "1", types.UnitMass)}}
	err := f.svc.Create(ctx, onFull)
	require.Error(t, err)
	assert.Contains(t, fieldsOf(t, err), "baseRecipeId")
}

func TestService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flour := f.ingredient(t, "Flour", ingredient.TypeBase, types.UnitMass)
	butter := f.ingredient(t, "Butter", ingredient.TypeBase, types.UnitMass)

	base := &recipe.Recipe{Name: "Shortbread", Tier: recipe.TierBase, Lines: []recipe.Line{line(flour, "300", types.UnitMass)}}
	require.NoError(t, f.svc.Create(ctx, base))

	edited := base.Clone()
	edited.Lines = append(edited.Lines, line(butter, "200", types.UnitMass))
	require.NoError(t, f.svc.Update(ctx, edited))
	assert.Equal(t, 2, edited.Version)

	got, err := f.svc.GetByID(ctx, base.ID)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 2)

	// base still carries version 1
	base.Name = "Stale"
	err = f.svc.Update(ctx, base)
	assert.True(t, apperror.IsConcurrentModification(err))

	tierChange := got.Clone()
	tierChange.Tier = recipe.TierFull
	err = f.svc.Update(ctx, tierChange)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.GetByID(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}
