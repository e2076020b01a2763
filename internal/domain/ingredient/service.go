package ingredient

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/tx"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/ledger"
	"bakehouse/pkg/logger"
)

// Service provides business logic for ingredients and their ledgers.
type Service struct {
	repo      Repository
	txManager tx.Manager
	ids       id.Generator
	clock     func() time.Time
	audit     AuditLog
	locks     *keyedMutex

	allowNegativeStock bool
}

// ServiceConfig configures the ingredient service.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.Manager
	IDs       id.Generator     // Optional, UUIDv7 by default
	Clock     func() time.Time // Optional, time.Now by default
	Audit     AuditLog         // Optional

	// AllowNegativeStock=false rejects mutations that drive a running balance further below zero.
	AllowNegativeStock bool
}

// NewService creates a new ingredient service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:               cfg.Repo,
		txManager:          cfg.TxManager,
		ids:                cfg.IDs,
		clock:              cfg.Clock,
		audit:              cfg.Audit,
		locks:              newKeyedMutex(),
		allowNegativeStock: cfg.AllowNegativeStock,
	}
	if s.ids == nil {
		s.ids = id.UUIDv7{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Create registers a new ingredient. InitialQuantity is fixed from here on.
func (s *Service) Create(ctx context.Context, ing *Ingredient) error {
	// 1. Validate catalogue invariants
	if err := ing.Validate(ctx); err != nil {
		return err
	}

	// 2. Assign identity
	now := s.clock().UTC()
	ing.ID = s.ids.NewID()
	ing.Version = 1
	ing.CreatedAt = now
	ing.UpdatedAt = now
	ing.SetLedger(ledger.New(ing.InitialQuantity, ing.Unit, nil))

	// 3. Persist
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, ing); err != nil {
			return fmt.Errorf("create ingredient: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "ingredient created",
		"ingredient_id", ing.ID,
		"name", ing.Name,
		"type", ing.Type,
		"initial_quantity", ing.InitialQuantity.String())
	return nil
}

// GetByID retrieves an ingredient with its ledger.
func (s *Service) GetByID(ctx context.Context, ingredientID id.ID) (*Ingredient, error) {
	ing, err := s.repo.GetByID(ctx, ingredientID)
	if err != nil {
		return nil, normalizeGetErr(err, ingredientID)
	}
	return ing, nil
}

// List retrieves ingredients matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Ingredient, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return items, nil
}

// MutateLedger applies op to the ingredient's ledger and stores the recomputed result.
// Mutations of the same ingredient are serialised; the read, recompute and write
// happen in one transaction under a row lock.
func (s *Service) MutateLedger(ctx context.Context, ingredientID id.ID, op ledger.Operation) (*Ingredient, error) {
	unlock := s.locks.Lock(ingredientID)
	defer unlock()

	var (
		result  *Ingredient
		before  types.Quantity
		entryID id.ID
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// 1. Lock the ingredient row
		ing, err := s.repo.GetForUpdate(ctx, ingredientID)
		if err != nil {
			return normalizeGetErr(err, ingredientID)
		}

		// 2. Recompute through the engine
		current := ing.Ledger()
		next, err := current.Apply(op)
		if err != nil {
			return err
		}
		if err := s.checkNegativeStock(ingredientID, current, next); err != nil {
			return err
		}

		// 3. Store
		before = current.Closing()
		ing.SetLedger(next)
		ing.UpdatedAt = s.clock().UTC()
		if err := s.repo.Update(ctx, ing); err != nil {
			return fmt.Errorf("update ingredient ledger: %w", err)
		}

		// 4. Audit inside the same transaction
		entryID = operationEntryID(op)
		if s.audit != nil {
			rec := AuditRecord{
				IngredientID: ingredientID,
				Operation:    ledger.OperationName(op),
				EntryID:      entryID,
				Before:       before,
				After:        next.Closing(),
				Changes:      operationChanges(op),
				RecordedAt:   ing.UpdatedAt,
			}
			if err := s.audit.Record(ctx, rec); err != nil {
				return fmt.Errorf("record ledger audit: %w", err)
			}
		}

		result = ing
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "ledger mutated",
		"ingredient_id", ingredientID,
		"operation", ledger.OperationName(op),
		"entry_id", entryID,
		"before", before.String(),
		"after", result.CurrentQuantity().String(),
		"version", result.Version)
	return result, nil
}

func (s *Service) checkNegativeStock(ingredientID id.ID, current, next ledger.Ledger) error {
	if s.allowNegativeStock {
		return nil
	}
	lowest := next.LowestBalance()
	if !lowest.IsNegative() {
		return nil
	}
	// A ledger that was already negative may still be corrected as long as it does not get worse.
	if !lowest.LessThan(current.LowestBalance()) {
		return nil
	}
	return apperror.NewInsufficientStock(ingredientID.String(), lowest.InexactFloat64())
}

// AppendInput describes a new ledger entry.
type AppendInput struct {
	Kind        ledger.Kind
	Quantity    types.Quantity // Magnitude; the sign follows Kind
	OccurredAt  time.Time      // Zero means today
	UnitPrice   decimal.Decimal
	SupplierRef string
	Note        string
}

// AppendEntry records an import or usage. Back-dated entries are allowed.
func (s *Service) AppendEntry(ctx context.Context, ingredientID id.ID, in AppendInput) (*Ingredient, error) {
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock()
	}

	e := ledger.NewEntry(s.ids.NewID(), in.Kind, in.Quantity, "", ledger.DateOf(occurredAt))
	e.UnitPrice = in.UnitPrice
	e.SupplierRef = in.SupplierRef
	e.Note = in.Note
	e.CreatedAt = s.clock().UTC()

	return s.MutateLedger(ctx, ingredientID, ledger.Append{Entry: e})
}

// ReplaceEntry edits an existing entry; every later balance reflows.
func (s *Service) ReplaceEntry(ctx context.Context, ingredientID, entryID id.ID, patch ledger.Patch) (*Ingredient, error) {
	if patch.OccurredAt != nil {
		d := ledger.DateOf(*patch.OccurredAt)
		patch.OccurredAt = &d
	}
	return s.MutateLedger(ctx, ingredientID, ledger.Replace{ID: entryID, Patch: patch})
}

// RemoveEntry deletes an entry; every later balance reflows.
func (s *Service) RemoveEntry(ctx context.Context, ingredientID, entryID id.ID) (*Ingredient, error) {
	return s.MutateLedger(ctx, ingredientID, ledger.Remove{ID: entryID})
}

// StockLevel is the derived stock of one ingredient.
type StockLevel struct {
	IngredientID    id.ID
	Unit            types.Unit
	CurrentQuantity types.Quantity
	OutOfStock      bool

	// At is the day the level was taken at; nil for the current stock.
	At *time.Time
}

// Stock returns the current quantity and out-of-stock flag.
func (s *Service) Stock(ctx context.Context, ingredientID id.ID) (StockLevel, error) {
	ing, err := s.GetByID(ctx, ingredientID)
	if err != nil {
		return StockLevel{}, err
	}
	return StockLevel{
		IngredientID:    ing.ID,
		Unit:            ing.Unit,
		CurrentQuantity: ing.CurrentQuantity(),
		OutOfStock:      ing.IsOutOfStock(),
	}, nil
}

// StockAt returns the stock as of the end of the given day, read from one snapshot.
func (s *Service) StockAt(ctx context.Context, ingredientID id.ID, at time.Time) (StockLevel, error) {
	ing, err := s.GetByID(ctx, ingredientID)
	if err != nil {
		return StockLevel{}, err
	}
	day := ledger.DateOf(at)
	qty := ing.Ledger().BalanceAt(day)
	return StockLevel{
		IngredientID:    ing.ID,
		Unit:            ing.Unit,
		CurrentQuantity: qty,
		OutOfStock:      !qty.IsPositive(),
		At:              &day,
	}, nil
}

// CurrentQuantity returns InitialQuantity plus the sum of all deltas.
func (s *Service) CurrentQuantity(ctx context.Context, ingredientID id.ID) (types.Quantity, error) {
	level, err := s.Stock(ctx, ingredientID)
	if err != nil {
		return types.Zero(), err
	}
	return level.CurrentQuantity, nil
}

// IsOutOfStock reports whether the current quantity is zero or below.
func (s *Service) IsOutOfStock(ctx context.Context, ingredientID id.ID) (bool, error) {
	level, err := s.Stock(ctx, ingredientID)
	if err != nil {
		return false, err
	}
	return level.OutOfStock, nil
}

// BalanceAt returns the stock as of the end of the given day.
func (s *Service) BalanceAt(ctx context.Context, ingredientID id.ID, at time.Time) (types.Quantity, error) {
	ing, err := s.GetByID(ctx, ingredientID)
	if err != nil {
		return types.Zero(), err
	}
	return ing.Ledger().BalanceAt(ledger.DateOf(at)), nil
}

// Turnover summarises movements in [from, to].
func (s *Service) Turnover(ctx context.Context, ingredientID id.ID, from, to time.Time) (ledger.Turnover, error) {
	if to.Before(from) {
		return ledger.Turnover{}, apperror.NewValidation("'to' must not be before 'from'").WithDetail("field", "to")
	}
	ing, err := s.GetByID(ctx, ingredientID)
	if err != nil {
		return ledger.Turnover{}, err
	}
	return ing.Ledger().Turnover(ledger.DateOf(from), ledger.DateOf(to)), nil
}

func normalizeGetErr(err error, ingredientID id.ID) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("ingredient", ingredientID.String())
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", "ingredient").WithDetail("id", ingredientID.String())
}

func operationEntryID(op ledger.Operation) id.ID {
	switch o := op.(type) {
	case ledger.Append:
		return o.Entry.ID
	case ledger.Replace:
		return o.ID
	case ledger.Remove:
		return o.ID
	}
	return id.ID{}
}

func operationChanges(op ledger.Operation) map[string]any {
	changes := make(map[string]any)
	switch o := op.(type) {
	case ledger.Append:
		changes["kind"] = o.Entry.Kind
		changes["delta"] = o.Entry.Delta.String()
		changes["occurredAt"] = o.Entry.OccurredAt
		if o.Entry.Note != "" {
			changes["note"] = o.Entry.Note
		}
	case ledger.Replace:
		p := o.Patch
		if p.Kind != nil {
			changes["kind"] = *p.Kind
		}
		if p.Magnitude != nil {
			changes["quantity"] = p.Magnitude.String()
		}
		if p.OccurredAt != nil {
			changes["occurredAt"] = *p.OccurredAt
		}
		if p.UnitPrice != nil {
			changes["unitPrice"] = p.UnitPrice.String()
		}
		if p.SupplierRef != nil {
			changes["supplierRef"] = *p.SupplierRef
		}
		if p.Note != nil {
			changes["note"] = *p.Note
		}
	}
	return changes
}
