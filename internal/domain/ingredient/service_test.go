package ingredient_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/ledger"
	"bakehouse/internal/infrastructure/audit"
	"bakehouse/internal/infrastructure/storage/memory"
)

var today = time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC)

type fixture struct {
	svc   *ingredient.Service
	repo  *memory.IngredientRepo
	audit *memory.AuditLog
}

func newFixture(t *testing.T, allowNegative bool) fixture {
	t.Helper()
	store := memory.New()
	codec, err := audit.NewCodec(0)
	require.NoError(t, err)

	f := fixture{
		repo:  memory.NewIngredientRepo(store),
		audit: memory.NewAuditLog(store, codec),
	}
	f.svc = ingredient.NewService(ingredient.ServiceConfig{
		Repo:               f.repo,
		TxManager:          memory.NewTxManager(store),
		IDs:                &id.Sequence{},
		Clock:              func() time.Time { return today },
		Audit:              f.audit,
		AllowNegativeStock: allowNegative,
	})
	return f
}

func (f fixture) create(t *testing.T, name string, initial string) *ingredient.Ingredient {
	t.Helper()
	ing := ingredient.New(name, ingredient.TypeBase, types.UnitMass, types.MustQuantity(initial))
	require.NoError(t, f.svc.Create(context.Background(), ing))
	return ing
}

func q(s string) types.Quantity { return types.MustQuantity(s) }

func TestType_Roles(t *testing.T) {
	tests := []struct {
		typ  ingredient.Type
		role ingredient.Role
	}{
		{ingredient.TypeBase, ingredient.RoleBase},
		{ingredient.TypeFlavor, ingredient.RoleAddOn},
		{ingredient.TypeTopping, ingredient.RoleAddOn},
		{ingredient.TypeDecoration, ingredient.RoleNone},
		{ingredient.TypeMaterial, ingredient.RoleNone},
		{ingredient.Type("glitter"), ingredient.RoleNone},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.role, tt.typ.Role())
		})
	}
	assert.False(t, ingredient.Type("glitter").Valid())
}

func TestIngredient_Validate(t *testing.T) {
	tests := []struct {
		name  string
		ing   *ingredient.Ingredient
		field string
	}{
		{"missing name", ingredient.New("", ingredient.TypeBase, types.UnitMass, q("0")), "name"},
		{"bad type", ingredient.New("Flour", "glitter", types.UnitMass, q("0")), "type"},
		{"bad unit", ingredient.New("Flour", ingredient.TypeBase, "cup", q("0")), "unit"},
		{"negative initial", ingredient.New("Flour", ingredient.TypeBase, types.UnitMass, q("-1")), "initialQuantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ing.Validate(context.Background())
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestService_CreateHasEmptyLedger(t *testing.T) {
	f := newFixture(t, true)
	ing := f.create(t, "Flour", "250")

	assert.False(t, id.IsNil(ing.ID))
	assert.Empty(t, ing.Entries)

	got, err := f.svc.GetByID(context.Background(), ing.ID)
	require.NoError(t, err)
	assert.Equal(t, "250", got.CurrentQuantity().String())
	assert.False(t, got.IsOutOfStock())
}

func TestService_AppendDefaultsToToday(t *testing.T) {
	f := newFixture(t, true)
	ing := f.create(t, "Flour", "0")

	got, err := f.svc.AppendEntry(context.Background(), ing.ID, ingredient.AppendInput{
		Kind:     ledger.KindImport,
		Quantity: q("500"),
	})
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)

	e := got.Entries[0]
	assert.Equal(t, ledger.DateOf(today), e.OccurredAt)
	assert.Equal(t, today, e.CreatedAt)
	assert.Equal(t, types.UnitMass, e.Unit)
	assert.Equal(t, "500", e.Delta.String())
	assert.Equal(t, "0", e.BalanceBefore.String())
	assert.Equal(t, "500", e.BalanceAfter.String())
	assert.Equal(t, 2, got.Version)
}

func TestService_UsageIsStoredNegative(t *testing.T) {
	f := newFixture(t, true)
	ing := f.create(t, "Butter", "100")

	got, err := f.svc.AppendEntry(context.Background(), ing.ID, ingredient.AppendInput{
		Kind:     ledger.KindUsage,
		Quantity: q("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, "-30", got.Entries[0].Delta.String())
	assert.Equal(t, "70", got.CurrentQuantity().String())
}

func TestService_ZeroQuantityRejected(t *testing.T) {
	f := newFixture(t, true)
	ing := f.create(t, "Flour", "0")

	_, err := f.svc.AppendEntry(context.Background(), ing.ID, ingredient.AppendInput{
		Kind:     ledger.KindImport,
		Quantity: q("0"),
	})
	assert.True(t, apperror.IsValidation(err))

	got, err := f.svc.GetByID(context.Background(), ing.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Entries)
}

func TestService_UnboundedQuantityRejected(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	ing := f.create(t, "Flour", "10")

	_, err := f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
		Kind:     ledger.KindImport,
		Quantity: q("1e-100"),
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)

	got, err := f.svc.GetByID(ctx, ing.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Entries)
	assert.Equal(t, "10", got.CurrentQuantity().String())

	huge := ingredient.New("Salt", ingredient.TypeBase, types.UnitMass, q("1e30"))
	err = f.svc.Create(ctx, huge)
	assert.True(t, apperror.IsValidation(err), "got %v", err)
}

func TestService_ReplaceReflowsTail(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	ing := f.create(t, "Sugar", "0")

	first, err := f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
		Kind: ledger.KindImport, Quantity: q("10"), OccurredAt: today.AddDate(0, 0, -3),
	})
	require.NoError(t, err)
	firstID := first.Entries[0].ID

	_, err = f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
		Kind: ledger.KindImport, Quantity: q("5"), OccurredAt: today.AddDate(0, 0, -2),
	})
	require.NoError(t, err)
	_, err = f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
		Kind: ledger.KindUsage, Quantity: q("3"), OccurredAt: today.AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	twenty := q("20")
	got, err := f.svc.ReplaceEntry(ctx, ing.ID, firstID, ledger.Patch{Magnitude: &twenty})
	require.NoError(t, err)

	require.Len(t, got.Entries, 3)
	assert.Equal(t, firstID, got.Entries[0].ID)
	assert.Equal(t, "20", got.Entries[0].BalanceAfter.String())
	assert.Equal(t, "25", got.Entries[1].BalanceAfter.String())
	assert.Equal(t, "22", got.Entries[2].BalanceAfter.String())
	assert.Equal(t, "22", got.CurrentQuantity().String())
}

func TestService_RemoveEntry(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	ing := f.create(t, "Eggs", "12")

	got, err := f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{Kind: ledger.KindUsage, Quantity: q("12")})
	require.NoError(t, err)
	assert.True(t, got.IsOutOfStock())

	got, err = f.svc.RemoveEntry(ctx, ing.ID, got.Entries[0].ID)
	require.NoError(t, err)
	assert.Empty(t, got.Entries)
	assert.Equal(t, "12", got.CurrentQuantity().String())

	_, err = f.svc.RemoveEntry(ctx, ing.ID, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_UnknownIngredient(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.AppendEntry(context.Background(), id.New(), ingredient.AppendInput{
		Kind: ledger.KindImport, Quantity: q("1"),
	})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.CurrentQuantity(context.Background(), id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_NegativeStockAllowedByDefault(t *testing.T) {
	f := newFixture(t, true)
	ing := f.create(t, "Cocoa", "5")

	got, err := f.svc.AppendEntry(context.Background(), ing.ID, ingredient.AppendInput{
		Kind: ledger.KindUsage, Quantity: q("8"),
	})
	require.NoError(t, err)
	assert.Equal(t, "-3", got.CurrentQuantity().String())
	assert.True(t, got.IsOutOfStock())
}

func TestService_NegativeStockGuard(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ing := f.create(t, "Cocoa", "5")

	_, err := f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{Kind: ledger.KindUsage, Quantity: q("8")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	// A back-dated usage that dips below zero before a later import is rejected too.
	_, err = f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
		Kind: ledger.KindImport, Quantity: q("10"), OccurredAt: today,
	})
	require.NoError(t, err)
	_, err = f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
		Kind: ledger.KindUsage, Quantity: q("6"), OccurredAt: today.AddDate(0, 0, -1),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	got, err := f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{Kind: ledger.KindUsage, Quantity: q("15")})
	require.NoError(t, err)
	assert.Equal(t, "0", got.CurrentQuantity().String())
}

func TestService_BalanceAtAndTurnover(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	ing := f.create(t, "Milk", "100")

	for _, in := range []ingredient.AppendInput{
		{Kind: ledger.KindImport, Quantity: q("50"), OccurredAt: today.AddDate(0, 0, -5)},
		{Kind: ledger.KindUsage, Quantity: q("20"), OccurredAt: today.AddDate(0, 0, -3)},
		{Kind: ledger.KindUsage, Quantity: q("40"), OccurredAt: today.AddDate(0, 0, -1)},
	} {
		_, err := f.svc.AppendEntry(ctx, ing.ID, in)
		require.NoError(t, err)
	}

	bal, err := f.svc.BalanceAt(ctx, ing.ID, today.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Equal(t, "130", bal.String())

	level, err := f.svc.StockAt(ctx, ing.ID, today.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Equal(t, ing.ID, level.IngredientID)
	assert.Equal(t, types.UnitMass, level.Unit)
	assert.Equal(t, "130", level.CurrentQuantity.String())
	assert.False(t, level.OutOfStock)
	require.NotNil(t, level.At)
	assert.Equal(t, ledger.DateOf(today.AddDate(0, 0, -3)), *level.At)

	current, err := f.svc.Stock(ctx, ing.ID)
	require.NoError(t, err)
	assert.Equal(t, "90", current.CurrentQuantity.String())
	assert.Nil(t, current.At)

	to, err := f.svc.Turnover(ctx, ing.ID, today.AddDate(0, 0, -4), today)
	require.NoError(t, err)
	assert.Equal(t, "150", to.OpeningBalance.String())
	assert.Equal(t, "0", to.Imported.String())
	assert.Equal(t, "60", to.Used.String())
	assert.Equal(t, "90", to.ClosingBalance.String())

	_, err = f.svc.Turnover(ctx, ing.ID, today, today.AddDate(0, 0, -1))
	assert.True(t, apperror.IsValidation(err))
}

func TestService_MutationsAreAudited(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	ing := f.create(t, "Vanilla", "0")

	got, err := f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
		Kind: ledger.KindImport, Quantity: q("2"), Note: "first jar",
	})
	require.NoError(t, err)
	_, err = f.svc.RemoveEntry(ctx, ing.ID, got.Entries[0].ID)
	require.NoError(t, err)

	history, err := f.audit.History(ctx, ing.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "remove", history[0].Operation)
	assert.Equal(t, "2", history[0].BalanceBefore)
	assert.Equal(t, "0", history[0].BalanceAfter)
	assert.Equal(t, "append", history[1].Operation)
	assert.Contains(t, string(history[1].Changes), "first jar")
}

func TestService_FailedMutationLeavesNoTrace(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	ing := f.create(t, "Salt", "1")

	_, err := f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{Kind: ledger.KindUsage, Quantity: q("2")})
	require.Error(t, err)

	got, err := f.svc.GetByID(ctx, ing.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Entries)
	assert.Equal(t, 1, got.Version)

	history, err := f.audit.History(ctx, ing.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_ConcurrentAppendsLoseNoUpdate(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	ing := f.create(t, "Flour", "0")

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{
				Kind: ledger.KindImport, Quantity: q("1.5"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.GetByID(ctx, ing.ID)
	require.NoError(t, err)
	assert.Len(t, got.Entries, workers)
	assert.Equal(t, "75", got.CurrentQuantity().String())
	assert.Equal(t, workers+1, got.Version)
}

func TestService_StaleVersionRejected(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	ing := f.create(t, "Yeast", "10")

	stale, err := f.repo.GetByID(ctx, ing.ID)
	require.NoError(t, err)

	_, err = f.svc.AppendEntry(ctx, ing.ID, ingredient.AppendInput{Kind: ledger.KindUsage, Quantity: q("1")})
	require.NoError(t, err)

	err = f.repo.Update(ctx, stale)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestService_List(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.create(t, "Wheat flour", "0")
	f.create(t, "Rye flour", "0")

	berries := ingredient.New("Strawberries", ingredient.TypeTopping, types.UnitMass, q("0"))
	require.NoError(t, f.svc.Create(ctx, berries))

	all, err := f.svc.List(ctx, ingredient.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Rye flour", all[0].Name)

	flours, err := f.svc.List(ctx, ingredient.ListFilter{Search: "FLOUR"})
	require.NoError(t, err)
	assert.Len(t, flours, 2)

	toppings, err := f.svc.List(ctx, ingredient.ListFilter{Types: []ingredient.Type{ingredient.TypeTopping}})
	require.NoError(t, err)
	require.Len(t, toppings, 1)
	assert.Equal(t, berries.ID, toppings[0].ID)
}
