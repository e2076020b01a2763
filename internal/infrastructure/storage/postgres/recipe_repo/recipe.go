// Package recipe_repo provides the PostgreSQL implementation of recipe.Repository.
package recipe_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/recipe"
	"bakehouse/internal/infrastructure/storage/postgres"
)

// Compile-time check that RecipeRepo implements recipe.Repository.
var _ recipe.Repository = (*RecipeRepo)(nil)

var (
	recipeColumns = postgres.Columns[recipe.Recipe]()
	lineColumns   = []string{"recipe_id", "line_no", "ingredient_id", "quantity", "unit"}
)

// RecipeRepo implements recipe.Repository.
type RecipeRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewRecipeRepo creates a new recipe repository.
func NewRecipeRepo(txManager *postgres.TxManager) *RecipeRepo {
	return &RecipeRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a recipe with its lines.
func (r *RecipeRepo) Create(ctx context.Context, rec *recipe.Recipe) error {
	sql, args, err := r.builder.
		Insert(postgres.TableRecipes).
		SetMap(postgres.ColumnMap(rec)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}
	return r.insertLines(ctx, rec)
}

// GetByID retrieves a recipe with its lines.
func (r *RecipeRepo) GetByID(ctx context.Context, recipeID id.ID) (*recipe.Recipe, error) {
	sql, args, err := r.builder.
		Select(recipeColumns...).
		From(postgres.TableRecipes).
		Where(squirrel.Eq{"id": recipeID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec recipe.Recipe
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("recipe", recipeID.String())
		}
		return nil, fmt.Errorf("get recipe: %w", err)
	}

	lines, err := r.loadLines(ctx, []id.ID{recipeID})
	if err != nil {
		return nil, err
	}
	rec.Lines = lines[recipeID]
	return &rec, nil
}

// Update replaces the recipe and its lines if the version still matches.
func (r *RecipeRepo) Update(ctx context.Context, rec *recipe.Recipe) error {
	data := postgres.ColumnMap(rec, "name", "base_recipe_id", "output_quantity", "waste_rate", "updated_at")

	sql, args, err := r.builder.
		Update(postgres.TableRecipes).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": rec.ID}).
		Where(squirrel.Eq{"version": rec.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update recipe: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("recipe", rec.ID.String())
	}
	rec.Version++

	sql, args, err = r.builder.
		Delete(postgres.TableRecipeLines).
		Where(squirrel.Eq{"recipe_id": rec.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("clear recipe lines: %w", err)
	}
	return r.insertLines(ctx, rec)
}

func (r *RecipeRepo) insertLines(ctx context.Context, rec *recipe.Recipe) error {
	if len(rec.Lines) == 0 {
		return nil
	}

	q := r.builder.Insert(postgres.TableRecipeLines).Columns(lineColumns...)
	for i, l := range rec.Lines {
		q = q.Values(rec.ID, i, l.IngredientID, l.QuantityPerOutputUnit, l.Unit)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert recipe lines: %w", err)
	}
	return nil
}

type lineRow struct {
	RecipeID id.ID `db:"recipe_id"`
	LineNo   int   `db:"line_no"`
	recipe.Line
}

func (r *RecipeRepo) loadLines(ctx context.Context, ids []id.ID) (map[id.ID][]recipe.Line, error) {
	sql, args, err := r.builder.
		Select(lineColumns...).
		From(postgres.TableRecipeLines).
		Where(squirrel.Eq{"recipe_id": ids}).
		OrderBy("recipe_id", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("load recipe lines: %w", err)
	}

	result := make(map[id.ID][]recipe.Line, len(ids))
	for _, row := range rows {
		result[row.RecipeID] = append(result[row.RecipeID], row.Line)
	}
	return result, nil
}

// List retrieves recipes ordered by name.
func (r *RecipeRepo) List(ctx context.Context, filter recipe.ListFilter) ([]*recipe.Recipe, error) {
	q := r.builder.
		Select(recipeColumns...).
		From(postgres.TableRecipes).
		OrderBy("name", "id")

	if filter.Tier != "" {
		q = q.Where(squirrel.Eq{"tier": filter.Tier})
	}
	if filter.BaseRecipeID != nil {
		q = q.Where(squirrel.Eq{"base_recipe_id": *filter.BaseRecipeID})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*recipe.Recipe
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]id.ID, 0, len(items))
	for _, rec := range items {
		ids = append(ids, rec.ID)
	}
	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range items {
		rec.Lines = lines[rec.ID]
	}
	return items, nil
}
