package syntax

// Binary operator precedence limits. Higher binds tighter.
const (
	MinPrec = 1   // lowest precedence a declaration may use
	MaxPrec = 100 // highest precedence a declaration may use

	// DefaultBinaryPrec is used for a binary operator definition that
	// does not declare an explicit precedence.
	DefaultBinaryPrec = 30
)

// PrecTable is the mutable binary-operator precedence table.
//
// It is shared by reference between the parser (which consults it
// during precedence climbing) and the code generator (which registers
// a user-defined operator's precedence when the operator's defining
// function has been generated successfully, and removes it again if
// generation fails). One table corresponds to one compilation session.
type PrecTable struct {
	prec map[byte]int
}

// NewPrecTable returns a precedence table seeded with the built-in
// operators.
func NewPrecTable() *PrecTable {
	return &PrecTable{
		prec: map[byte]int{
			'=': 2,
			'<': 10,
			'+': 20,
			'-': 20,
			'*': 40,
		},
	}
}

// Lookup returns the precedence of op, or 0 if op is not a registered
// binary operator.
func (t *PrecTable) Lookup(op byte) int {
	return t.prec[op]
}

// Set registers or updates the precedence of op.
func (t *PrecTable) Set(op byte, prec int) {
	t.prec[op] = prec
}

// Remove deletes op from the table. Removing an unregistered operator
// is a no-op.
func (t *PrecTable) Remove(op byte) {
	delete(t.prec, op)
}
