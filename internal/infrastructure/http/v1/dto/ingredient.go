package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/ledger"
	"bakehouse/internal/infrastructure/audit"
)

// --- Ingredient ---

// CreateIngredientRequest is the body of POST /ingredients.
type CreateIngredientRequest struct {
	Name            string          `json:"name" binding:"required"`
	Type            string          `json:"type" binding:"required"`
	Unit            string          `json:"unit" binding:"required"`
	InitialQuantity *types.Quantity `json:"initialQuantity"`
}

// ToEntity builds an unsaved ingredient.
func (r CreateIngredientRequest) ToEntity() *ingredient.Ingredient {
	initial := types.Zero()
	if r.InitialQuantity != nil {
		initial = *r.InitialQuantity
	}
	return ingredient.New(r.Name, ingredient.Type(r.Type), types.Unit(r.Unit), initial)
}

// IngredientListRequest holds the query of GET /ingredients.
type IngredientListRequest struct {
	PaginationRequest
	Search string   `form:"search"`
	Types  []string `form:"type"`
}

// ToFilter converts the query to a repository filter.
func (r IngredientListRequest) ToFilter() ingredient.ListFilter {
	f := ingredient.ListFilter{Search: r.Search, Limit: r.Limit, Offset: r.Offset}
	for _, t := range r.Types {
		f.Types = append(f.Types, ingredient.Type(t))
	}
	return f
}

// IngredientResponse represents an ingredient with its derived stock.
type IngredientResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            ingredient.Type `json:"type"`
	Role            ingredient.Role `json:"role"`
	Unit            types.Unit      `json:"unit"`
	InitialQuantity types.Quantity  `json:"initialQuantity"`
	CurrentQuantity types.Quantity  `json:"currentQuantity"`
	OutOfStock      bool            `json:"outOfStock"`
	Entries         []EntryResponse `json:"entries,omitempty"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// FromIngredient converts the aggregate. Entries are included when withLedger is set.
func FromIngredient(ing *ingredient.Ingredient, withLedger bool) IngredientResponse {
	resp := IngredientResponse{
		ID:              ing.ID.String(),
		Name:            ing.Name,
		Type:            ing.Type,
		Role:            ing.Type.Role(),
		Unit:            ing.Unit,
		InitialQuantity: ing.InitialQuantity,
		CurrentQuantity: ing.CurrentQuantity(),
		OutOfStock:      ing.IsOutOfStock(),
		Version:         ing.Version,
		CreatedAt:       ing.CreatedAt,
		UpdatedAt:       ing.UpdatedAt,
	}
	if withLedger {
		resp.Entries = make([]EntryResponse, len(ing.Entries))
		for i, e := range ing.Entries {
			resp.Entries[i] = FromEntry(e)
		}
	}
	return resp
}

// --- Ledger entries ---

// EntryResponse is one ledger entry with its running balances.
type EntryResponse struct {
	ID            string          `json:"id"`
	Kind          ledger.Kind     `json:"kind"`
	Quantity      types.Quantity  `json:"quantity"`
	Delta         types.Quantity  `json:"delta"`
	Unit          types.Unit      `json:"unit"`
	OccurredAt    string          `json:"occurredAt"`
	BalanceBefore types.Quantity  `json:"balanceBefore"`
	BalanceAfter  types.Quantity  `json:"balanceAfter"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	SupplierRef   string          `json:"supplierRef,omitempty"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// FromEntry converts a ledger entry.
func FromEntry(e ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:            e.ID.String(),
		Kind:          e.Kind,
		Quantity:      e.Magnitude(),
		Delta:         e.Delta,
		Unit:          e.Unit,
		OccurredAt:    FormatDate(e.OccurredAt),
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		UnitPrice:     e.UnitPrice,
		SupplierRef:   e.SupplierRef,
		Note:          e.Note,
		CreatedAt:     e.CreatedAt,
	}
}

// AppendEntryRequest is the body of POST /ingredients/:id/ledger.
type AppendEntryRequest struct {
	Kind        string           `json:"kind" binding:"required"`
	Quantity    types.Quantity   `json:"quantity"`
	OccurredAt  string           `json:"occurredAt"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	SupplierRef string           `json:"supplierRef"`
	Note        string           `json:"note"`
}

// ToInput converts the request. An empty occurredAt means today.
func (r AppendEntryRequest) ToInput() (ingredient.AppendInput, error) {
	in := ingredient.AppendInput{
		Kind:        ledger.Kind(r.Kind),
		Quantity:    r.Quantity,
		SupplierRef: r.SupplierRef,
		Note:        r.Note,
	}
	if !in.Kind.Valid() {
		return in, apperror.NewValidation("kind must be import or usage").WithDetail("field", "kind")
	}
	if err := CheckQuantity("quantity", r.Quantity); err != nil {
		return in, err
	}
	if r.UnitPrice != nil {
		if err := CheckQuantity("unitPrice", *r.UnitPrice); err != nil {
			return in, err
		}
		in.UnitPrice = *r.UnitPrice
	}
	if r.OccurredAt != "" {
		t, err := ParseDate("occurredAt", r.OccurredAt)
		if err != nil {
			return in, err
		}
		in.OccurredAt = t
	}
	return in, nil
}

// PatchEntryRequest is the body of PATCH /ingredients/:id/ledger/:entryId.
type PatchEntryRequest struct {
	Kind        *string          `json:"kind"`
	Quantity    *types.Quantity  `json:"quantity"`
	OccurredAt  *string          `json:"occurredAt"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	SupplierRef *string          `json:"supplierRef"`
	Note        *string          `json:"note"`
}

// ToPatch converts the request. Absent fields stay unchanged.
func (r PatchEntryRequest) ToPatch() (ledger.Patch, error) {
	p := ledger.Patch{
		Magnitude:   r.Quantity,
		UnitPrice:   r.UnitPrice,
		SupplierRef: r.SupplierRef,
		Note:        r.Note,
	}
	if r.Quantity != nil {
		if err := CheckQuantity("quantity", *r.Quantity); err != nil {
			return p, err
		}
	}
	if r.UnitPrice != nil {
		if err := CheckQuantity("unitPrice", *r.UnitPrice); err != nil {
			return p, err
		}
	}
	if r.Kind != nil {
		k := ledger.Kind(*r.Kind)
		if !k.Valid() {
			return p, apperror.NewValidation("kind must be import or usage").WithDetail("field", "kind")
		}
		p.Kind = &k
	}
	if r.OccurredAt != nil {
		t, err := ParseDate("occurredAt", *r.OccurredAt)
		if err != nil {
			return p, err
		}
		p.OccurredAt = &t
	}
	return p, nil
}

// LedgerMutationResponse returns the touched entry and the reflowed ingredient.
type LedgerMutationResponse struct {
	EntryID    string             `json:"entryId"`
	Ingredient IngredientResponse `json:"ingredient"`
}

// --- Stock ---

// StockResponse is the derived stock of one ingredient.
type StockResponse struct {
	IngredientID string         `json:"ingredientId"`
	Unit         types.Unit     `json:"unit"`
	Quantity     types.Quantity `json:"quantity"`
	OutOfStock   bool           `json:"outOfStock"`
	At           string         `json:"at,omitempty"`
}

// FromStockLevel converts the current stock.
func FromStockLevel(s ingredient.StockLevel) StockResponse {
	return StockResponse{
		IngredientID: s.IngredientID.String(),
		Unit:         s.Unit,
		Quantity:     s.CurrentQuantity,
		OutOfStock:   s.OutOfStock,
		At:           formatOptionalDate(s.At),
	}
}

// TurnoverResponse summarises movements over a date range.
type TurnoverResponse struct {
	IngredientID   string         `json:"ingredientId"`
	From           string         `json:"from"`
	To             string         `json:"to"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	Imported       types.Quantity `json:"imported"`
	Used           types.Quantity `json:"used"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}

// FromTurnover converts a turnover summary.
func FromTurnover(ingredientID string, t ledger.Turnover) TurnoverResponse {
	return TurnoverResponse{
		IngredientID:   ingredientID,
		From:           FormatDate(t.From),
		To:             FormatDate(t.To),
		OpeningBalance: t.OpeningBalance,
		Imported:       t.Imported,
		Used:           t.Used,
		ClosingBalance: t.ClosingBalance,
	}
}

// --- Audit ---

// AuditEntryResponse is one recorded ledger mutation.
type AuditEntryResponse struct {
	ID            string          `json:"id"`
	Operation     string          `json:"operation"`
	EntryID       string          `json:"entryId"`
	BalanceBefore string          `json:"balanceBefore"`
	BalanceAfter  string          `json:"balanceAfter"`
	Changes       json.RawMessage `json:"changes,omitempty"`
	RequestID     string          `json:"requestId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// FromAuditEntry converts a decoded audit entry.
func FromAuditEntry(e audit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:            e.ID.String(),
		Operation:     e.Operation,
		EntryID:       e.EntryID.String(),
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Changes:       e.Changes,
		RequestID:     e.RequestID,
		CreatedAt:     e.CreatedAt,
	}
}
