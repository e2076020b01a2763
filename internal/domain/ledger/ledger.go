package ledger

import (
	"fmt"
	"time"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
)

// Ledger is the entry store of one ingredient: its opening balance, its unit and
// its entries. Methods never modify the receiver; they return a new, recomputed Ledger.
type Ledger struct {
	Initial types.Quantity
	Unit    types.Unit
	Entries []Entry
}

// New builds a recomputed ledger.
func New(initial types.Quantity, unit types.Unit, entries []Entry) Ledger {
	return Ledger{Initial: initial, Unit: unit, Entries: Recompute(initial, entries)}
}

// Closing returns the current stock. For an empty ledger it is Initial.
func (l Ledger) Closing() types.Quantity {
	return Sum(l.Initial, l.Entries)
}

// Find returns the entry with the given id.
func (l Ledger) Find(entryID id.ID) (Entry, bool) {
	for _, e := range l.Entries {
		if e.ID == entryID {
			return e, true
		}
	}
	return Entry{}, false
}

// BalanceAt returns the stock as of the end of the given day.
func (l Ledger) BalanceAt(at time.Time) types.Quantity {
	return BalanceAt(l.Initial, l.Entries, at)
}

// Turnover summarises movements in [from, to].
func (l Ledger) Turnover(from, to time.Time) Turnover {
	return ComputeTurnover(l.Initial, l.Entries, from, to)
}

// LowestBalance returns the smallest running balance reached, including Initial.
func (l Ledger) LowestBalance() types.Quantity {
	lowest := l.Initial
	for _, e := range Recompute(l.Initial, l.Entries) {
		if e.BalanceAfter.LessThan(lowest) {
			lowest = e.BalanceAfter
		}
	}
	return lowest
}

// Append inserts e at its chronological position; back-dated entries are allowed.
// An empty e.Unit is taken from the ledger; Seq is assigned after the current maximum.
func (l Ledger) Append(e Entry) (Ledger, error) {
	if id.IsNil(e.ID) {
		return l, apperror.NewValidation("entry id is required").WithDetail("field", "id")
	}
	if _, exists := l.Find(e.ID); exists {
		return l, apperror.NewDuplicate("ledger entry", "id", e.ID.String())
	}
	if e.Unit == "" {
		e.Unit = l.Unit
	}
	if err := l.validate(e); err != nil {
		return l, err
	}

	var maxSeq int64
	for _, existing := range l.Entries {
		maxSeq = max(maxSeq, existing.Seq)
	}
	if e.Seq <= maxSeq {
		e.Seq = maxSeq + 1
	}

	entries := make([]Entry, 0, len(l.Entries)+1)
	entries = append(entries, l.Entries...)
	entries = append(entries, e)
	return New(l.Initial, l.Unit, entries), nil
}

// Replace edits the entry with the given id. Identity (ID, Seq) is preserved.
func (l Ledger) Replace(entryID id.ID, p Patch) (Ledger, error) {
	idx := l.indexOf(entryID)
	if idx < 0 {
		return l, apperror.NewNotFound("ledger entry", entryID.String())
	}

	e := l.Entries[idx]
	kind, magnitude := e.Kind, e.Magnitude()
	if p.Kind != nil {
		kind = *p.Kind
	}
	if p.Magnitude != nil {
		magnitude = *p.Magnitude
	}
	if p.Kind != nil || p.Magnitude != nil {
		if err := checkQuantity("quantity", magnitude); err != nil {
			return l, err
		}
		if !magnitude.IsPositive() {
			return l, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
		}
		e.Kind = kind
		e.Delta = kind.Signed(magnitude)
	}
	if p.OccurredAt != nil {
		e.OccurredAt = *p.OccurredAt
	}
	if p.UnitPrice != nil {
		e.UnitPrice = *p.UnitPrice
	}
	if p.SupplierRef != nil {
		e.SupplierRef = *p.SupplierRef
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if err := l.validate(e); err != nil {
		return l, err
	}

	entries := make([]Entry, len(l.Entries))
	copy(entries, l.Entries)
	entries[idx] = e
	return New(l.Initial, l.Unit, entries), nil
}

// Remove deletes the entry with the given id.
func (l Ledger) Remove(entryID id.ID) (Ledger, error) {
	idx := l.indexOf(entryID)
	if idx < 0 {
		return l, apperror.NewNotFound("ledger entry", entryID.String())
	}

	entries := make([]Entry, 0, len(l.Entries)-1)
	entries = append(entries, l.Entries[:idx]...)
	entries = append(entries, l.Entries[idx+1:]...)
	return New(l.Initial, l.Unit, entries), nil
}

// Apply runs op against the ledger.
func (l Ledger) Apply(op Operation) (Ledger, error) {
	switch o := op.(type) {
	case Append:
		return l.Append(o.Entry)
	case Replace:
		return l.Replace(o.ID, o.Patch)
	case Remove:
		return l.Remove(o.ID)
	default:
		return l, fmt.Errorf("unsupported ledger operation %T", op)
	}
}

func (l Ledger) indexOf(entryID id.ID) int {
	for i, e := range l.Entries {
		if e.ID == entryID {
			return i
		}
	}
	return -1
}

func (l Ledger) validate(e Entry) error {
	if !e.Kind.Valid() {
		return apperror.NewValidation("invalid entry kind").
			WithDetail("field", "kind").
			WithDetail("value", string(e.Kind))
	}
	if err := checkQuantity("quantity", e.Delta); err != nil {
		return err
	}
	if err := checkQuantity("unitPrice", e.UnitPrice); err != nil {
		return err
	}
	if e.Delta.IsZero() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if (e.Kind == KindImport) != e.Delta.IsPositive() {
		return apperror.NewValidation("delta sign does not match entry kind").
			WithDetail("field", "quantity").
			WithDetail("kind", string(e.Kind))
	}
	if e.Unit != l.Unit {
		return apperror.NewValidation("entry unit does not match ingredient unit").
			WithDetail("field", "unit").
			WithDetail("expected", string(l.Unit)).
			WithDetail("actual", string(e.Unit))
	}
	if e.OccurredAt.IsZero() {
		return apperror.NewValidation("occurredAt is required").WithDetail("field", "occurredAt")
	}
	return nil
}

func checkQuantity(field string, q types.Quantity) error {
	if err := types.CheckQuantity(q); err != nil {
		return apperror.NewValidation(err.Error()).WithDetail("field", field)
	}
	return nil
}

// Operation is a ledger mutation: Append, Replace or Remove.
type Operation interface {
	operation() string
}

// Append adds a new entry.
type Append struct {
	Entry Entry
}

// Replace edits an existing entry.
type Replace struct {
	ID    id.ID
	Patch Patch
}

// Remove deletes an entry.
type Remove struct {
	ID id.ID
}

func (Append) operation() string  { return "append" }
func (Replace) operation() string { return "replace" }
func (Remove) operation() string  { return "remove" }

// OperationName returns "append", "replace" or "remove".
func OperationName(op Operation) string {
	return op.operation()
}
