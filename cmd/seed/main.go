// Package main provides a CLI tool for seeding the database with a demo bakery.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bakehouse/internal/app"
	"bakehouse/internal/config"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/ledger"
	"bakehouse/internal/domain/recipe"
	"bakehouse/pkg/logger"
)

type seedIngredient struct {
	name    string
	typ     ingredient.Type
	unit    types.Unit
	initial string
	imports []string
}

var demoIngredients = []seedIngredient{
	{name: "Flour", typ: ingredient.TypeBase, unit: types.UnitMass, initial: "5000", imports: []string{"10000"}},
	{name: "Sugar", typ: ingredient.TypeBase, unit: types.UnitMass, initial: "2000", imports: []string{"3000"}},
	{name: "Butter", typ: ingredient.TypeBase, unit: types.UnitMass, initial: "1000"},
	{name: "Eggs", typ: ingredient.TypeBase, unit: types.UnitCount, initial: "60", imports: []string{"120"}},
	{name: "Cocoa", typ: ingredient.TypeFlavor, unit: types.UnitMass, initial: "500"},
	{name: "Strawberries", typ: ingredient.TypeTopping, unit: types.UnitMass, initial: "0", imports: []string{"800"}},
	{name: "Cake box", typ: ingredient.TypeMaterial, unit: types.UnitCount, initial: "100"},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	st, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer st.Close()
	svc := app.NewServices(cfg, st)

	existing, err := svc.Ingredients.List(ctx, ingredient.ListFilter{Limit: 1})
	if err != nil {
		log.Fatalw("failed to inspect ingredients", "error", err)
	}
	if len(existing) > 0 {
		log.Info("database already has ingredients, nothing to seed")
		return
	}

	ids, err := seedIngredients(ctx, svc)
	if err != nil {
		log.Fatalw("failed to seed ingredients", "error", err)
	}
	fullID, err := seedRecipes(ctx, svc, ids)
	if err != nil {
		log.Fatalw("failed to seed recipes", "error", err)
	}

	capacity, err := svc.Calculator.ComputeMaxProducible(ctx, fullID)
	if err != nil {
		log.Fatalw("failed to compute capacity", "error", err)
	}
	log.Infow("seed complete",
		"ingredients", len(ids),
		"chocolate_cake_max_runs", capacity.MaxRuns.String(),
	)
}

func seedIngredients(ctx context.Context, svc app.Services) (map[string]id.ID, error) {
	ids := make(map[string]id.ID, len(demoIngredients))
	deliveryDay := time.Now().UTC().AddDate(0, 0, -7)

	for _, s := range demoIngredients {
		ing := ingredient.New(s.name, s.typ, s.unit, types.MustQuantity(s.initial))
		if err := svc.Ingredients.Create(ctx, ing); err != nil {
			return nil, fmt.Errorf("create %s: %w", s.name, err)
		}
		for _, qty := range s.imports {
			_, err := svc.Ingredients.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
				Kind:        ledger.KindImport,
				Quantity:    types.MustQuantity(qty),
				OccurredAt:  deliveryDay,
				SupplierRef: "demo-delivery",
			})
			if err != nil {
				return nil, fmt.Errorf("import %s: %w", s.name, err)
			}
		}
		ids[s.name] = ing.ID
	}
	return ids, nil
}

func seedRecipes(ctx context.Context, svc app.Services, ids map[string]id.ID) (id.ID, error) {
	line := func(name, qty string, unit types.Unit) recipe.Line {
		return recipe.Line{IngredientID: ids[name], QuantityPerOutputUnit: types.MustQuantity(qty), Unit: unit}
	}

	sponge := &recipe.Recipe{
		Name:           "Vanilla sponge",
		Tier:           recipe.TierBase,
		OutputQuantity: types.MustQuantity("1"),
		WasteRate:      types.MustQuantity("5"),
		Lines: []recipe.Line{
			line("Flour", "250", types.UnitMass),
			line("Sugar", "200", types.UnitMass),
			line("Butter", "150", types.UnitMass),
			line("Eggs", "4", types.UnitCount),
		},
	}
	if err := svc.Recipes.Create(ctx, sponge); err != nil {
		return id.ID{}, fmt.Errorf("create base recipe: %w", err)
	}

	cake := &recipe.Recipe{
		Name:           "Chocolate strawberry cake",
		Tier:           recipe.TierFull,
		BaseRecipeID:   &sponge.ID,
		OutputQuantity: types.MustQuantity("1"),
		WasteRate:      types.MustQuantity("5"),
		Lines: []recipe.Line{
			line("Cocoa", "40", types.UnitMass),
			line("Strawberries", "150", types.UnitMass),
		},
	}
	if err := svc.Recipes.Create(ctx, cake); err != nil {
		return id.ID{}, fmt.Errorf("create full recipe: %w", err)
	}
	return cake.ID, nil
}
