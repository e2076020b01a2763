// Package ingredient_repo provides the PostgreSQL implementation of ingredient.Repository.
// Ledger entries live in their own table and are rewritten as a whole after every mutation.
package ingredient_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/ledger"
	"bakehouse/internal/infrastructure/storage/postgres"
)

// Compile-time check that IngredientRepo implements ingredient.Repository.
var _ ingredient.Repository = (*IngredientRepo)(nil)

var (
	ingredientColumns = postgres.Columns[ingredient.Ingredient]()

	// entryColumns prefixes the entry's own columns with its owner.
	entryColumns = append([]string{"ingredient_id"}, postgres.Columns[ledger.Entry]()...)
)

// IngredientRepo implements ingredient.Repository.
type IngredientRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewIngredientRepo creates a new ingredient repository.
func NewIngredientRepo(txManager *postgres.TxManager) *IngredientRepo {
	return &IngredientRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new ingredient together with its entries.
func (r *IngredientRepo) Create(ctx context.Context, ing *ingredient.Ingredient) error {
	sql, args, err := r.builder.
		Insert(postgres.TableIngredients).
		SetMap(postgres.ColumnMap(ing)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ingredient: %w", err)
	}
	return r.writeEntries(ctx, ing)
}

// GetByID retrieves an ingredient with its recomputed ledger.
func (r *IngredientRepo) GetByID(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	return r.get(ctx, ingredientID, false)
}

// GetForUpdate retrieves an ingredient and locks its row until the transaction ends.
func (r *IngredientRepo) GetForUpdate(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}
	return r.get(ctx, ingredientID, true)
}

func (r *IngredientRepo) get(ctx context.Context, ingredientID id.ID, forUpdate bool) (*ingredient.Ingredient, error) {
	q := r.builder.
		Select(ingredientColumns...).
		From(postgres.TableIngredients).
		Where(squirrel.Eq{"id": ingredientID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ing ingredient.Ingredient
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &ing, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ingredient", ingredientID.String())
		}
		return nil, fmt.Errorf("get ingredient: %w", err)
	}

	entries, err := r.loadEntries(ctx, []id.ID{ingredientID})
	if err != nil {
		return nil, err
	}
	ing.SetLedger(ledger.New(ing.InitialQuantity, ing.Unit, entries[ingredientID]))
	return &ing, nil
}

// Update stores the recomputed ledger if the version still matches.
func (r *IngredientRepo) Update(ctx context.Context, ing *ingredient.Ingredient) error {
	sql, args, err := r.builder.
		Update(postgres.TableIngredients).
		Set("name", ing.Name).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", ing.UpdatedAt).
		Where(squirrel.Eq{"id": ing.ID}).
		Where(squirrel.Eq{"version": ing.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update ingredient: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("ingredient", ing.ID.String())
	}
	ing.Version++

	sql, args, err = r.builder.
		Delete(postgres.TableLedgerEntries).
		Where(squirrel.Eq{"ingredient_id": ing.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("clear ledger entries: %w", err)
	}
	return r.writeEntries(ctx, ing)
}

// writeEntries inserts every entry of the ingredient.
// Fast path: COPY inside a transaction; otherwise a multi-row INSERT.
func (r *IngredientRepo) writeEntries(ctx context.Context, ing *ingredient.Ingredient) error {
	if len(ing.Entries) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(ing.Entries))
	for _, e := range ing.Entries {
		values := postgres.ColumnMap(e)
		row := make([]any, 0, len(entryColumns))
		row = append(row, ing.ID)
		for _, col := range entryColumns[1:] {
			row = append(row, copyValue(values[col]))
		}
		rows = append(rows, row)
	}

	if r.txManager.GetTx(ctx) != nil {
		if _, err := r.inserter.CopyFromSlice(ctx, postgres.TableLedgerEntries, entryColumns, rows); err != nil {
			return fmt.Errorf("copy ledger entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(postgres.TableLedgerEntries).Columns(entryColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

// copyValue adapts values for the binary COPY protocol, which has no text fallback for NUMERIC.
func copyValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
	}
	return v
}

type entryRow struct {
	IngredientID id.ID `db:"ingredient_id"`
	ledger.Entry
}

// loadEntries returns the entries of each ingredient in ledger order.
func (r *IngredientRepo) loadEntries(ctx context.Context, ids []id.ID) (map[id.ID][]ledger.Entry, error) {
	sql, args, err := r.builder.
		Select(entryColumns...).
		From(postgres.TableLedgerEntries).
		Where(squirrel.Eq{"ingredient_id": ids}).
		OrderBy("ingredient_id", "occurred_at", "seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []entryRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("load ledger entries: %w", err)
	}

	result := make(map[id.ID][]ledger.Entry, len(ids))
	for _, row := range rows {
		row.Entry.OccurredAt = ledger.DateOf(row.Entry.OccurredAt)
		result[row.IngredientID] = append(result[row.IngredientID], row.Entry)
	}
	return result, nil
}

// List retrieves ingredients ordered by name.
func (r *IngredientRepo) List(ctx context.Context, filter ingredient.ListFilter) ([]*ingredient.Ingredient, error) {
	q := r.builder.
		Select(ingredientColumns...).
		From(postgres.TableIngredients).
		OrderBy("name", "id")

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + escapeLike(filter.Search) + "%"})
	}
	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"type": filter.Types})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return r.selectWithLedgers(ctx, q)
}

// GetByIDs retrieves several ingredients. Unknown ids are skipped.
func (r *IngredientRepo) GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*ingredient.Ingredient, error) {
	result := make(map[id.ID]*ingredient.Ingredient, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	q := r.builder.
		Select(ingredientColumns...).
		From(postgres.TableIngredients).
		Where(squirrel.Eq{"id": ids})

	items, err := r.selectWithLedgers(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, ing := range items {
		result[ing.ID] = ing
	}
	return result, nil
}

func (r *IngredientRepo) selectWithLedgers(ctx context.Context, q squirrel.SelectBuilder) ([]*ingredient.Ingredient, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*ingredient.Ingredient
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]id.ID, 0, len(items))
	for _, ing := range items {
		ids = append(ids, ing.ID)
	}
	entries, err := r.loadEntries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, ing := range items {
		ing.SetLedger(ledger.New(ing.InitialQuantity, ing.Unit, entries[ing.ID]))
	}
	return items, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
