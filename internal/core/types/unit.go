package types

// Unit is the measurement unit of an ingredient. It is fixed per ingredient.
type Unit string

const (
	UnitMass  Unit = "g"     // grams
	UnitCount Unit = "piece" // pieces
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitMass, UnitCount:
		return true
	}
	return false
}
