// Package ir implements the SSA (Static Single Assignment) intermediate
// representation for the Kaleido compiler.
//
// Every value in the source language is a double-precision float, so the
// IR carries no type information: each non-void value produces a float64.
package ir

// Op represents an IR operation code.
type Op int

const (
	OpInvalid Op = iota

	// Constants
	OpConstF64 // float constant; AuxFloat = value

	// Arithmetic
	OpAddF64 // float + float
	OpSubF64 // float - float
	OpMulF64 // float * float

	// Comparison
	OpCmpLT // float < float; yields 1.0 or 0.0

	// Memory
	OpAlloca // stack cell holding one float; Aux = variable name
	OpLoad   // load from cell; Args[0] = cell
	OpStore  // store to cell; Args[0] = cell, Args[1] = val; void

	// Calls
	OpCall // call by name; Aux = callee name (string); Args = arguments

	// SSA-specific
	OpPhi  // φ function; Args = one per predecessor
	OpCopy // value copy (identity)
	OpArg  // function parameter; AuxInt = param index; Aux = param name

	opCount // sentinel; must be last
)

// OpInfo holds metadata about an IR operation.
type OpInfo struct {
	Name   string // human-readable name
	IsPure bool   // true if the op has no side effects and can be DCE'd
	IsVoid bool   // true if the op produces no value (Store)
}

// opInfoTable maps each Op to its OpInfo.
// Index by Op value.
var opInfoTable = [opCount]OpInfo{
	OpInvalid: {Name: "Invalid"},

	OpConstF64: {Name: "ConstF64", IsPure: true},

	OpAddF64: {Name: "AddF64", IsPure: true},
	OpSubF64: {Name: "SubF64", IsPure: true},
	OpMulF64: {Name: "MulF64", IsPure: true},

	OpCmpLT: {Name: "CmpLT", IsPure: true},

	// Memory ops are NOT pure; Alloca identity matters and Load
	// observes stores.
	OpAlloca: {Name: "Alloca"},
	OpLoad:   {Name: "Load"},
	OpStore:  {Name: "Store", IsVoid: true},

	// Calls may have arbitrary side effects.
	OpCall: {Name: "Call"},

	OpPhi:  {Name: "Phi", IsPure: true},
	OpCopy: {Name: "Copy", IsPure: true},
	OpArg:  {Name: "Arg", IsPure: true},
}

// String returns the human-readable name of the op.
func (o Op) String() string {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o].Name
	}
	return "unknown"
}

// Info returns the OpInfo for this op.
func (o Op) Info() OpInfo {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o]
	}
	return OpInfo{Name: "unknown"}
}

// IsPure returns true if this op has no side effects.
func (o Op) IsPure() bool {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o].IsPure
	}
	return false
}

// IsVoid returns true if this op produces no value.
func (o Op) IsVoid() bool {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o].IsVoid
	}
	return false
}
