package syntax

// ----------------------------------------------------------------------------
// Interfaces
//
// There are two classes of nodes: Expressions, which make up function
// bodies, and Items, which are the results of parsing one top-level
// form (a function definition, an extern declaration, or a bare
// expression wrapped in an anonymous function). All nodes implement
// the Node interface.

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Pos // position of first character belonging to the node
	aNode()   // marker method to restrict implementations to this package
}

// Expr is the interface for all expression nodes.
type Expr interface {
	Node
	aExpr()
}

// Item is the interface for top-level parse results.
// The concrete types are *Function and *Prototype.
type Item interface {
	Node
	aItem()
}

// ----------------------------------------------------------------------------
// Base node types

// node is the base struct embedded in all AST nodes.
type node struct {
	pos Pos
}

func (n *node) Pos() Pos { return n.pos }
func (n *node) aNode()   {}

// expr is embedded in all expression nodes.
type expr struct{ node }

func (*expr) aExpr() {}

// ----------------------------------------------------------------------------
// Expressions

// NumberLit represents a numeric literal.
type NumberLit struct {
	expr
	Value float64
}

// VariableRef represents a reference to a named variable.
type VariableRef struct {
	expr
	Name string
}

// UnaryExpr represents an application of a user-defined unary operator:
// !x, -x, etc. The operator is the single character Op.
type UnaryExpr struct {
	expr
	Op byte // operator character
	X  Expr // operand
}

// BinaryExpr represents a binary operation: x + y, a < b.
// Op '=' is the assignment form: X must be a *VariableRef.
type BinaryExpr struct {
	expr
	Op byte // operator character
	X  Expr // left operand
	Y  Expr // right operand
}

// CallExpr represents a function call: callee(a, b).
type CallExpr struct {
	expr
	Callee string
	Args   []Expr
}

// IfExpr represents a conditional expression:
// if cond then a else b. Both branches are mandatory; the expression
// always produces a value.
type IfExpr struct {
	expr
	Cond Expr
	Then Expr
	Else Expr
}

// ForExpr represents a counted loop:
// for i = start, end, step in body. Step is nil when omitted (the code
// generator substitutes 1.0). The loop variable is scoped to the loop
// and shadows any outer binding of the same name. The expression
// always evaluates to 0.0.
type ForExpr struct {
	expr
	VarName string
	Start   Expr
	End     Expr
	Step    Expr // nil means default step of 1.0
	Body    Expr
}

// VarInit is one (name, optional initializer) pair of a var expression.
type VarInit struct {
	Name string
	Init Expr // nil means default initializer of 0.0
}

// VarExpr introduces one or more mutable bindings scoped to Body:
// var a = 1, b in body. Bindings shadow outer bindings of the same
// names; the outer bindings are restored after Body.
type VarExpr struct {
	expr
	Vars []VarInit
	Body Expr
}

// ----------------------------------------------------------------------------
// Prototypes and functions

// OpKind describes whether a prototype declares a plain function or a
// user-defined operator.
type OpKind uint8

const (
	PlainFunc OpKind = iota
	UnaryOp          // unary<ch>, exactly one parameter
	BinaryOp         // binary<ch>, exactly two parameters
)

// opKindNames maps operator kinds to their string representation.
var opKindNames = [...]string{
	PlainFunc: "func",
	UnaryOp:   "unary",
	BinaryOp:  "binary",
}

// String returns the string representation of the operator kind.
func (k OpKind) String() string {
	if int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return "OpKind(?)"
}

// Prototype is a function signature: name, ordered parameter names, and
// (for operators) fixed arity and precedence metadata. A Prototype on
// its own is an extern declaration; paired with a body inside a
// Function it is a definition.
type Prototype struct {
	node
	Name   string   // "" for the prototype of an anonymous expression
	Params []string // ordered parameter names
	Kind   OpKind
	Prec   int // binary operator precedence; meaningful only for BinaryOp
}

func (*Prototype) aItem() {}

// IsOperator reports whether the prototype declares a unary or binary
// operator function.
func (p *Prototype) IsOperator() bool {
	return p.Kind != PlainFunc
}

// OperatorChar returns the operator character of a unary<ch> or
// binary<ch> prototype.
func (p *Prototype) OperatorChar() byte {
	if !p.IsOperator() || len(p.Name) == 0 {
		panic("syntax: OperatorChar on non-operator prototype")
	}
	return p.Name[len(p.Name)-1]
}

// Function is a function definition: a prototype plus a body
// expression. A top-level bare expression parses as a Function with an
// unnamed zero-parameter prototype.
type Function struct {
	node
	Proto *Prototype
	Body  Expr
}

func (*Function) aItem() {}

// IsAnon reports whether f wraps a top-level bare expression.
func (f *Function) IsAnon() bool {
	return f.Proto.Name == ""
}
