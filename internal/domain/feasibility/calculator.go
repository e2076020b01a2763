// Package feasibility projects recipe runs onto ingredient stock: what a batch
// needs, whether stock covers it, and how many runs stock allows.
package feasibility

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/tx"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/recipe"
	"bakehouse/pkg/logger"
)

// RecipeResolver returns a recipe with its effective lines.
type RecipeResolver interface {
	Resolve(ctx context.Context, recipeID id.ID) (recipe.Resolved, error)
}

// IngredientReader loads ingredients with their ledgers. Missing ids are absent from the map.
type IngredientReader interface {
	GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*ingredient.Ingredient, error)
}

// Calculator answers feasibility questions against a consistent read snapshot.
type Calculator struct {
	recipes     RecipeResolver
	ingredients IngredientReader
	txManager   tx.Manager
	tracer      trace.Tracer
}

// NewCalculator creates a feasibility calculator.
func NewCalculator(recipes RecipeResolver, ingredients IngredientReader, txManager tx.Manager) *Calculator {
	return &Calculator{
		recipes:     recipes,
		ingredients: ingredients,
		txManager:   txManager,
		tracer:      otel.Tracer("bakehouse/feasibility"),
	}
}

// Status of one requirement line.
type Status string

const (
	StatusOK      Status = "ok"
	StatusShort   Status = "short"
	StatusUnknown Status = "unknown"
)

// LineResult is the requirement of one ingredient for a batch.
type LineResult struct {
	IngredientID id.ID
	Name         string
	Unit         types.Unit
	Required     types.Quantity
	Available    types.Quantity
	Sufficient   bool
	Shortage     types.Quantity
	Status       Status

	// Issue is set when the line could not be evaluated.
	Issue *apperror.AppError
}

// Requirements is the projection of a number of runs onto stock.
type Requirements struct {
	RecipeID id.ID
	Runs     types.Quantity
	Lines    []LineResult

	// AllSufficient is true when every evaluated line is covered and at least one was evaluated.
	AllSufficient bool
	// Complete is false when some line referenced a missing ingredient.
	Complete bool
}

// LineCapacity is the number of runs the stock of one ingredient allows.
type LineCapacity struct {
	IngredientID id.ID
	Name         string
	Available    types.Quantity
	PerRun       types.Quantity
	MaxRuns      types.Quantity
	Status       Status
	Issue        *apperror.AppError
}

// MaxProducible is the largest batch current stock allows.
type MaxProducible struct {
	RecipeID id.ID

	// Applicable is false when no line constrains production (empty bill of materials).
	Applicable bool
	MaxRuns    types.Quantity
	Bottleneck *id.ID

	// MaxProductQuantity is nil when the recipe has no output quantity.
	MaxProductQuantity *types.Quantity

	Lines    []LineCapacity
	Complete bool
}

// Runs converts a desired product quantity into recipe runs.
func Runs(desiredProductQuantity, outputQuantity types.Quantity) (types.Quantity, error) {
	if !outputQuantity.IsPositive() {
		return types.Zero(), apperror.NewNotApplicable("recipe output quantity is not set")
	}
	if err := checkQuantity("quantity", desiredProductQuantity); err != nil {
		return types.Zero(), err
	}
	if desiredProductQuantity.IsNegative() {
		return types.Zero(), apperror.NewValidation("quantity must not be negative").WithDetail("field", "quantity")
	}
	return desiredProductQuantity.Div(outputQuantity), nil
}

func checkQuantity(field string, q types.Quantity) error {
	if err := types.CheckQuantity(q); err != nil {
		return apperror.NewValidation(err.Error()).WithDetail("field", field)
	}
	return nil
}

// ComputeRequirements projects runs of the recipe onto current stock.
func (c *Calculator) ComputeRequirements(ctx context.Context, recipeID id.ID, runs types.Quantity) (Requirements, error) {
	if err := checkQuantity("runs", runs); err != nil {
		return Requirements{}, err
	}
	if runs.IsNegative() {
		return Requirements{}, apperror.NewValidation("runs must not be negative").WithDetail("field", "runs")
	}

	ctx, span := c.tracer.Start(ctx, "feasibility.ComputeRequirements",
		trace.WithAttributes(attribute.String("recipe_id", recipeID.String())))
	defer span.End()

	var res Requirements
	err := c.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		resolved, stock, err := c.load(ctx, recipeID)
		if err != nil {
			return err
		}
		res = requirements(resolved, stock, runs)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Requirements{}, err
	}

	logger.Debug(ctx, "requirements computed",
		"recipe_id", recipeID,
		"runs", runs.String(),
		"all_sufficient", res.AllSufficient,
		"complete", res.Complete)
	return res, nil
}

// ComputeRequirementsForQuantity projects the runs needed for a desired product quantity.
// Runs derived by division may carry more fractional digits than user input allows.
func (c *Calculator) ComputeRequirementsForQuantity(ctx context.Context, recipeID id.ID, desiredProductQuantity types.Quantity) (Requirements, error) {
	ctx, span := c.tracer.Start(ctx, "feasibility.ComputeRequirementsForQuantity",
		trace.WithAttributes(
			attribute.String("recipe_id", recipeID.String()),
			attribute.String("quantity", desiredProductQuantity.String()),
		))
	defer span.End()

	var res Requirements
	err := c.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		resolved, stock, err := c.load(ctx, recipeID)
		if err != nil {
			return err
		}
		runs, err := Runs(desiredProductQuantity, resolved.Recipe.OutputQuantity)
		if err != nil {
			return err
		}
		res = requirements(resolved, stock, runs)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Requirements{}, err
	}

	logger.Debug(ctx, "requirements computed",
		"recipe_id", recipeID,
		"quantity", desiredProductQuantity.String(),
		"runs", res.Runs.String(),
		"all_sufficient", res.AllSufficient)
	return res, nil
}

// ComputeMaxProducible returns the largest number of runs current stock allows and the bottleneck ingredient.
func (c *Calculator) ComputeMaxProducible(ctx context.Context, recipeID id.ID) (MaxProducible, error) {
	ctx, span := c.tracer.Start(ctx, "feasibility.ComputeMaxProducible",
		trace.WithAttributes(attribute.String("recipe_id", recipeID.String())))
	defer span.End()

	var res MaxProducible
	err := c.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		resolved, stock, err := c.load(ctx, recipeID)
		if err != nil {
			return err
		}
		res = maxProducible(resolved, stock)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return MaxProducible{}, err
	}

	logger.Debug(ctx, "max producible computed",
		"recipe_id", recipeID,
		"applicable", res.Applicable,
		"max_runs", res.MaxRuns.String())
	return res, nil
}

func (c *Calculator) load(ctx context.Context, recipeID id.ID) (recipe.Resolved, map[id.ID]*ingredient.Ingredient, error) {
	resolved, err := c.recipes.Resolve(ctx, recipeID)
	if err != nil {
		return recipe.Resolved{}, nil, err
	}

	ids := make([]id.ID, 0, len(resolved.Lines))
	for _, l := range resolved.Lines {
		ids = append(ids, l.IngredientID)
	}
	stock, err := c.ingredients.GetByIDs(ctx, ids)
	if err != nil {
		return recipe.Resolved{}, nil, fmt.Errorf("load ingredients: %w", err)
	}
	return resolved, stock, nil
}

// perRun is the amount of one line consumed by a single run, waste included.
func perRun(l recipe.Line, wasteFactor types.Quantity) types.Quantity {
	return l.QuantityPerOutputUnit.Mul(wasteFactor)
}

func requirements(resolved recipe.Resolved, stock map[id.ID]*ingredient.Ingredient, runs types.Quantity) Requirements {
	wasteFactor := resolved.Recipe.WasteFactor()
	res := Requirements{
		RecipeID: resolved.Recipe.ID,
		Runs:     runs,
		Lines:    make([]LineResult, 0, len(resolved.Lines)),
		Complete: true,
	}

	evaluated, sufficient := 0, true
	for _, l := range resolved.Lines {
		line := LineResult{
			IngredientID: l.IngredientID,
			Unit:         l.Unit,
			Required:     perRun(l, wasteFactor).Mul(runs),
		}

		ing, ok := stock[l.IngredientID]
		if !ok {
			line.Status = StatusUnknown
			line.Issue = apperror.NewIntegrity("ingredient", l.IngredientID.String())
			res.Complete = false
			res.Lines = append(res.Lines, line)
			continue
		}

		line.Name = ing.Name
		line.Available = ing.CurrentQuantity()
		line.Sufficient = line.Available.GreaterThanOrEqual(line.Required)
		line.Shortage = types.Zero()
		line.Status = StatusOK
		if !line.Sufficient {
			line.Shortage = line.Required.Sub(line.Available)
			line.Status = StatusShort
			sufficient = false
		}
		evaluated++
		res.Lines = append(res.Lines, line)
	}

	res.AllSufficient = sufficient && evaluated > 0
	return res
}

func maxProducible(resolved recipe.Resolved, stock map[id.ID]*ingredient.Ingredient) MaxProducible {
	r := resolved.Recipe
	wasteFactor := r.WasteFactor()
	res := MaxProducible{
		RecipeID: r.ID,
		MaxRuns:  types.Zero(),
		Lines:    make([]LineCapacity, 0, len(resolved.Lines)),
		Complete: true,
	}

	var minRuns *types.Quantity
	for _, l := range resolved.Lines {
		line := LineCapacity{
			IngredientID: l.IngredientID,
			PerRun:       perRun(l, wasteFactor),
		}

		ing, ok := stock[l.IngredientID]
		if !ok {
			line.Status = StatusUnknown
			line.Issue = apperror.NewIntegrity("ingredient", l.IngredientID.String())
			res.Complete = false
			res.Lines = append(res.Lines, line)
			continue
		}
		line.Name = ing.Name
		line.Available = ing.CurrentQuantity()

		// A line that consumes nothing does not constrain production.
		if !line.PerRun.IsPositive() {
			line.Status = StatusOK
			res.Lines = append(res.Lines, line)
			continue
		}

		runs := types.Zero()
		if line.Available.IsPositive() {
			runs = types.DivFloor(line.Available, line.PerRun)
		}
		line.MaxRuns = runs
		line.Status = StatusOK
		if !runs.IsPositive() {
			line.Status = StatusShort
		}
		res.Lines = append(res.Lines, line)

		if minRuns == nil || runs.LessThan(*minRuns) {
			minRuns = &runs
			bottleneck := l.IngredientID
			res.Bottleneck = &bottleneck
		}
	}

	if minRuns == nil {
		return res
	}

	res.Applicable = true
	res.MaxRuns = *minRuns
	if r.OutputQuantity.IsPositive() {
		q := res.MaxRuns.Mul(r.OutputQuantity)
		res.MaxProductQuantity = &q
	}
	return res
}
