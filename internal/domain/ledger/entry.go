// Package ledger holds the chronological stock ledger of a single ingredient.
//
// Stock is never stored: it is the fold of signed deltas over the entries sorted
// by OccurredAt. Every mutation returns a fully recomputed ledger, so the cached
// BalanceBefore/BalanceAfter of each entry are always consistent with the fold.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
)

// Kind is the direction of a stock change.
type Kind string

const (
	// KindImport adds stock (positive delta).
	KindImport Kind = "import"
	// KindUsage consumes stock (negative delta).
	KindUsage Kind = "usage"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImport || k == KindUsage
}

// Signed returns magnitude with the sign implied by the kind.
func (k Kind) Signed(magnitude types.Quantity) types.Quantity {
	if k == KindUsage {
		return magnitude.Abs().Neg()
	}
	return magnitude.Abs()
}

// Entry is one recorded stock change.
type Entry struct {
	ID   id.ID `db:"id" json:"id"`
	Kind Kind  `db:"kind" json:"kind"`

	// Delta is signed: positive for imports, negative for usages.
	Delta types.Quantity `db:"delta" json:"delta"`
	Unit  types.Unit     `db:"unit" json:"unit"`

	// OccurredAt is the sole ordering key.
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`

	// Seq is the insertion sequence within the ledger; it breaks OccurredAt ties.
	Seq int64 `db:"seq" json:"seq"`

	// Derived by Recompute, never authoritative.
	BalanceBefore types.Quantity `db:"balance_before" json:"balanceBefore"`
	BalanceAfter  types.Quantity `db:"balance_after" json:"balanceAfter"`

	// Audit metadata, not used in calculations.
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
	SupplierRef string          `db:"supplier_ref" json:"supplierRef,omitempty"`
	Note        string          `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// NewEntry creates an entry whose delta carries the sign of kind.
// CreatedAt is left zero for the caller to stamp from its clock.
func NewEntry(entryID id.ID, kind Kind, magnitude types.Quantity, unit types.Unit, occurredAt time.Time) Entry {
	return Entry{
		ID:         entryID,
		Kind:       kind,
		Delta:      kind.Signed(magnitude),
		Unit:       unit,
		OccurredAt: occurredAt,
	}
}

// Magnitude returns the unsigned size of the change.
func (e Entry) Magnitude() types.Quantity {
	return e.Delta.Abs()
}

// Patch describes an edit of an existing entry. Nil fields are left unchanged.
type Patch struct {
	Kind        *Kind
	Magnitude   *types.Quantity
	OccurredAt  *time.Time
	UnitPrice   *decimal.Decimal
	SupplierRef *string
	Note        *string
}

// DateOf truncates t to the start of its UTC day. Ledger dates carry no time of day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
