// Package ingredient provides the Ingredient aggregate: catalogue data plus the
// stock ledger from which the current quantity is derived.
package ingredient

import (
	"context"
	"slices"
	"time"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/ledger"
)

// Type classifies an ingredient.
type Type string

const (
	TypeBase       Type = "base"
	TypeFlavor     Type = "flavor"
	TypeTopping    Type = "topping"
	TypeDecoration Type = "decoration"
	TypeMaterial   Type = "material"
)

// Role is the part an ingredient type may play in recipe composition.
type Role string

const (
	// RoleBase ingredients make up base recipes.
	RoleBase Role = "base"
	// RoleAddOn ingredients are added by full recipes on top of a base.
	RoleAddOn Role = "add_on"
	// RoleNone ingredients never appear in recipes.
	RoleNone Role = "none"
)

var roles = map[Type]Role{
	TypeBase:       RoleBase,
	TypeFlavor:     RoleAddOn,
	TypeTopping:    RoleAddOn,
	TypeDecoration: RoleNone,
	TypeMaterial:   RoleNone,
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	_, ok := roles[t]
	return ok
}

// Role returns the composition role of t. Unknown types have RoleNone.
func (t Type) Role() Role {
	if r, ok := roles[t]; ok {
		return r
	}
	return RoleNone
}

// Ingredient is a stock-keeping ingredient.
type Ingredient struct {
	ID   id.ID      `db:"id" json:"id"`
	Name string     `db:"name" json:"name"`
	Type Type       `db:"type" json:"type"`
	Unit types.Unit `db:"unit" json:"unit"`

	// InitialQuantity is the balance before the first ledger entry. Fixed at creation.
	InitialQuantity types.Quantity `db:"initial_quantity" json:"initialQuantity"`

	// Entries is the recomputed ledger, chronologically ordered.
	Entries []ledger.Entry `db:"-" json:"entries"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates an ingredient with an empty ledger.
func New(name string, typ Type, unit types.Unit, initial types.Quantity) *Ingredient {
	now := time.Now().UTC()
	return &Ingredient{
		Name:            name,
		Type:            typ,
		Unit:            unit,
		InitialQuantity: initial,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Ledger returns the ingredient's entry store.
func (i *Ingredient) Ledger() ledger.Ledger {
	return ledger.Ledger{Initial: i.InitialQuantity, Unit: i.Unit, Entries: i.Entries}
}

// SetLedger replaces the entries with those of a recomputed ledger.
func (i *Ingredient) SetLedger(l ledger.Ledger) {
	i.Entries = l.Entries
}

// CurrentQuantity folds the ledger: InitialQuantity plus every delta.
func (i *Ingredient) CurrentQuantity() types.Quantity {
	return ledger.Sum(i.InitialQuantity, i.Entries)
}

// IsOutOfStock reports whether the current quantity is zero or below.
func (i *Ingredient) IsOutOfStock() bool {
	return !i.CurrentQuantity().IsPositive()
}

// Clone returns a deep copy.
func (i *Ingredient) Clone() *Ingredient {
	c := *i
	c.Entries = slices.Clone(i.Entries)
	return &c
}

// Validate checks catalogue invariants.
func (i *Ingredient) Validate(ctx context.Context) error {
	var errs apperror.FieldErrors
	if i.Name == "" {
		errs.Add("name", "name is required")
	}
	if !i.Type.Valid() {
		errs.Add("type", "invalid ingredient type")
	}
	if !i.Unit.Valid() {
		errs.Add("unit", "invalid unit")
	}
	if err := types.CheckQuantity(i.InitialQuantity); err != nil {
		errs.Add("initialQuantity", err.Error())
	} else if i.InitialQuantity.IsNegative() {
		errs.Add("initialQuantity", "initial quantity must not be negative")
	}
	return errs.Err()
}
