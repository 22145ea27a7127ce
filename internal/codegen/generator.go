package codegen

import (
	"fmt"

	"github.com/kaleido-lang/kaleido/internal/ir"
	"github.com/kaleido-lang/kaleido/internal/syntax"
)

// scope is one frame of the per-function symbol table, mapping binding
// names to their alloca cells. Lookups walk outward; popping a frame
// restores whatever the enclosing frames bound.
type scope struct {
	outer *scope
	vars  map[string]*ir.Value
}

func (s *scope) lookup(name string) (*ir.Value, bool) {
	for f := s; f != nil; f = f.outer {
		if cell, ok := f.vars[name]; ok {
			return cell, true
		}
	}
	return nil, false
}

func (s *scope) bind(name string, cell *ir.Value) {
	s.vars[name] = cell
}

// Generator lowers parsed items into IR functions within a Unit. It owns
// the per-function scope stack and shares the operator precedence table
// with the parser: a user-defined binary operator becomes parseable only
// once its defining function has generated successfully.
type Generator struct {
	unit *Unit
	prec *syntax.PrecTable

	fn    *ir.Func
	b     *ir.Block // current block
	scope *scope
	anon  int // counter for anonymous expression names
}

// NewGenerator creates a generator emitting into unit. prec is the same
// table the parser reads.
func NewGenerator(unit *Unit, prec *syntax.PrecTable) *Generator {
	return &Generator{unit: unit, prec: prec}
}

// Unit returns the translation unit the generator emits into.
func (g *Generator) Unit() *Unit { return g.unit }

// Generate lowers one top-level item. A definition (or anonymous
// expression) yields its finished IR function; a bare prototype (extern)
// is recorded in the unit and yields a nil function. Failures leave the
// unit and the precedence table as they were before the call.
func (g *Generator) Generate(item syntax.Item) (*ir.Func, error) {
	switch item := item.(type) {
	case *syntax.Prototype:
		_, err := g.unit.declare(item.Name, item.Params, item.Pos())
		return nil, err
	case *syntax.Function:
		return g.genFunction(item)
	default:
		return nil, &Error{Pos: item.Pos(), Msg: fmt.Sprintf("cannot generate %T", item)}
	}
}

// genFunction lowers a function definition: declare/merge the prototype,
// materialize parameter cells, register operator precedence, lower the
// body, and finalize. On failure every side effect is rolled back.
func (g *Generator) genFunction(fn *syntax.Function) (*ir.Func, error) {
	proto := fn.Proto
	name := proto.Name
	if fn.IsAnon() {
		name = fmt.Sprintf("__anon_expr%d", g.anon)
		g.anon++
	}

	_, hadPrior := g.unit.Decl(name)
	decl, err := g.unit.declare(name, proto.Params, proto.Pos())
	if err != nil {
		return nil, err
	}

	// Register a binary operator's precedence before lowering so the
	// rollback path can undo exactly what was done here.
	var opChar byte
	var prevPrec int
	if proto.Kind == syntax.BinaryOp {
		opChar = proto.OperatorChar()
		prevPrec = g.prec.Lookup(opChar)
		g.prec.Set(opChar, proto.Prec)
	}

	rollback := func() {
		if proto.Kind == syntax.BinaryOp {
			if prevPrec > 0 {
				g.prec.Set(opChar, prevPrec)
			} else {
				g.prec.Remove(opChar)
			}
		}
		// A failed definition over a forward declaration keeps the
		// declaration usable; a fresh one is removed entirely.
		if !hadPrior {
			g.unit.remove(name)
		}
	}

	g.fn = ir.NewFunc(name, proto.Params)
	g.b = g.fn.Entry
	g.scope = &scope{vars: make(map[string]*ir.Value)}

	// Parameters: incoming argument stored into a named cell.
	for i, param := range proto.Params {
		arg := g.fn.NewValuePos(g.fn.Entry, ir.OpArg, proto.Pos())
		arg.AuxInt = int64(i)
		arg.Aux = param

		cell := g.entryAlloca(param)
		g.fn.NewValue(g.b, ir.OpStore, cell, arg)
		g.scope.bind(param, cell)
	}

	val, err := g.expr(fn.Body)
	if err != nil {
		rollback()
		return nil, err
	}

	g.b.Kind = ir.BlockReturn
	g.b.SetControl(val)

	ir.ComputeDom(g.fn)
	if verr := ir.VerifyDom(g.fn); verr != nil {
		rollback()
		return nil, &Error{Pos: fn.Pos(), Msg: fmt.Sprintf("internal error lowering %q: %v", name, verr)}
	}

	decl.Func = g.fn
	return g.fn, nil
}

// entryAlloca creates a named cell in the entry block. All cells go into
// the entry block so mem2reg can promote them; storage lives to the end
// of the function, scope exit only removes visibility.
func (g *Generator) entryAlloca(name string) *ir.Value {
	cell := g.fn.NewValue(g.fn.Entry, ir.OpAlloca)
	cell.Aux = name
	return cell
}

// expr lowers an expression to an IR value in the current block.
func (g *Generator) expr(e syntax.Expr) (*ir.Value, error) {
	switch e := e.(type) {
	case *syntax.NumberLit:
		v := g.fn.NewValuePos(g.b, ir.OpConstF64, e.Pos())
		v.AuxFloat = e.Value
		return v, nil

	case *syntax.VariableRef:
		cell, ok := g.scope.lookup(e.Name)
		if !ok {
			return nil, &Error{Pos: e.Pos(), Msg: fmt.Sprintf("unknown variable name %q", e.Name)}
		}
		return g.fn.NewValuePos(g.b, ir.OpLoad, e.Pos(), cell), nil

	case *syntax.UnaryExpr:
		return g.unaryExpr(e)

	case *syntax.BinaryExpr:
		return g.binaryExpr(e)

	case *syntax.CallExpr:
		return g.callExpr(e)

	case *syntax.IfExpr:
		return g.ifExpr(e)

	case *syntax.ForExpr:
		return g.forExpr(e)

	case *syntax.VarExpr:
		return g.varExpr(e)

	default:
		return nil, &Error{Pos: e.Pos(), Msg: fmt.Sprintf("cannot lower %T", e)}
	}
}

// unaryExpr dispatches a unary operator to its user-defined function.
func (g *Generator) unaryExpr(e *syntax.UnaryExpr) (*ir.Value, error) {
	x, err := g.expr(e.X)
	if err != nil {
		return nil, err
	}

	callee := "unary" + string(e.Op)
	if _, ok := g.unit.Decl(callee); !ok {
		return nil, &Error{Pos: e.Pos(), Msg: fmt.Sprintf("unknown unary operator %q", string(e.Op))}
	}

	call := g.fn.NewValuePos(g.b, ir.OpCall, e.Pos(), x)
	call.Aux = callee
	return call, nil
}

// binaryExpr lowers builtins directly and dispatches any other operator
// character to its binary<ch> function.
func (g *Generator) binaryExpr(e *syntax.BinaryExpr) (*ir.Value, error) {
	// Assignment: the left side must be a plain variable reference; it
	// is not evaluated as an expression.
	if e.Op == '=' {
		ref, ok := e.X.(*syntax.VariableRef)
		if !ok {
			return nil, &Error{Pos: e.Pos(), Msg: "destination of '=' must be a variable"}
		}
		val, err := g.expr(e.Y)
		if err != nil {
			return nil, err
		}
		cell, ok := g.scope.lookup(ref.Name)
		if !ok {
			return nil, &Error{Pos: ref.Pos(), Msg: fmt.Sprintf("unknown variable name %q", ref.Name)}
		}
		g.fn.NewValuePos(g.b, ir.OpStore, e.Pos(), cell, val)
		return val, nil
	}

	x, err := g.expr(e.X)
	if err != nil {
		return nil, err
	}
	y, err := g.expr(e.Y)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case '+':
		return g.fn.NewValuePos(g.b, ir.OpAddF64, e.Pos(), x, y), nil
	case '-':
		return g.fn.NewValuePos(g.b, ir.OpSubF64, e.Pos(), x, y), nil
	case '*':
		return g.fn.NewValuePos(g.b, ir.OpMulF64, e.Pos(), x, y), nil
	case '<':
		// The comparison result is already in the numeric domain: 1.0
		// if x < y, else 0.0.
		return g.fn.NewValuePos(g.b, ir.OpCmpLT, e.Pos(), x, y), nil
	}

	callee := "binary" + string(e.Op)
	if _, ok := g.unit.Decl(callee); !ok {
		return nil, &Error{Pos: e.Pos(), Msg: fmt.Sprintf("invalid binary operator %q", string(e.Op))}
	}

	call := g.fn.NewValuePos(g.b, ir.OpCall, e.Pos(), x, y)
	call.Aux = callee
	return call, nil
}

// callExpr lowers a call. The callee must already be declared with
// matching arity; arguments lower left to right.
func (g *Generator) callExpr(e *syntax.CallExpr) (*ir.Value, error) {
	decl, ok := g.unit.Decl(e.Callee)
	if !ok {
		return nil, &Error{Pos: e.Pos(), Msg: fmt.Sprintf("unknown function %q referenced", e.Callee)}
	}
	if len(e.Args) != len(decl.Params) {
		return nil, &Error{Pos: e.Pos(), Msg: fmt.Sprintf("incorrect # arguments passed to %q", e.Callee)}
	}

	args := make([]*ir.Value, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := g.expr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	call := g.fn.NewValuePos(g.b, ir.OpCall, e.Pos(), args...)
	call.Aux = e.Callee
	return call, nil
}

// ifExpr lowers the three-block diamond: branch on the condition, lower
// each arm into its own block, and merge the arm values with a phi in the
// continuation block.
func (g *Generator) ifExpr(e *syntax.IfExpr) (*ir.Value, error) {
	cond, err := g.expr(e.Cond)
	if err != nil {
		return nil, err
	}

	bThen := g.fn.NewBlock(ir.BlockPlain)
	bElse := g.fn.NewBlock(ir.BlockPlain)
	bMerge := g.fn.NewBlock(ir.BlockPlain)

	// Nonzero condition means true.
	g.b.Kind = ir.BlockIf
	g.b.SetControl(cond)
	g.b.AddSucc(bThen)
	g.b.AddSucc(bElse)

	// Each arm may itself create further blocks; the phi's incoming
	// edges come from wherever the arms end up.
	g.b = bThen
	thenVal, err := g.expr(e.Then)
	if err != nil {
		return nil, err
	}
	g.b.AddSucc(bMerge)

	g.b = bElse
	elseVal, err := g.expr(e.Else)
	if err != nil {
		return nil, err
	}
	g.b.AddSucc(bMerge)

	g.b = bMerge
	phi := g.fn.NewValuePos(bMerge, ir.OpPhi, e.Pos(), thenVal, elseVal)
	return phi, nil
}

// forExpr lowers a counted loop through a mutable induction cell. The
// start value is computed before the induction variable shadows any outer
// binding of the same name; the loop expression itself is always 0.0.
func (g *Generator) forExpr(e *syntax.ForExpr) (*ir.Value, error) {
	startVal, err := g.expr(e.Start)
	if err != nil {
		return nil, err
	}

	cell := g.entryAlloca(e.VarName)
	g.fn.NewValuePos(g.b, ir.OpStore, e.Pos(), cell, startVal)

	g.scope = &scope{outer: g.scope, vars: map[string]*ir.Value{e.VarName: cell}}
	defer func() { g.scope = g.scope.outer }()

	bLoop := g.fn.NewBlock(ir.BlockPlain)
	bAfter := g.fn.NewBlock(ir.BlockPlain)
	g.b.AddSucc(bLoop)

	// Body value is discarded; only its effects matter.
	g.b = bLoop
	if _, err := g.expr(e.Body); err != nil {
		return nil, err
	}

	var stepVal *ir.Value
	if e.Step != nil {
		stepVal, err = g.expr(e.Step)
		if err != nil {
			return nil, err
		}
	} else {
		stepVal = g.fn.NewValuePos(g.b, ir.OpConstF64, e.Pos())
		stepVal.AuxFloat = 1.0
	}

	cur := g.fn.NewValuePos(g.b, ir.OpLoad, e.Pos(), cell)
	next := g.fn.NewValuePos(g.b, ir.OpAddF64, e.Pos(), cur, stepVal)
	g.fn.NewValuePos(g.b, ir.OpStore, e.Pos(), cell, next)

	endVal, err := g.expr(e.End)
	if err != nil {
		return nil, err
	}

	// Nonzero end condition re-enters the loop.
	g.b.Kind = ir.BlockIf
	g.b.SetControl(endVal)
	g.b.AddSucc(bLoop)
	g.b.AddSucc(bAfter)

	g.b = bAfter
	zero := g.fn.NewValuePos(bAfter, ir.OpConstF64, e.Pos())
	return zero, nil
}

// varExpr lowers a var binding list. Entries are evaluated and installed
// sequentially, so later initializers see earlier bindings and a
// duplicate name shadows its predecessor for the rest of the list.
func (g *Generator) varExpr(e *syntax.VarExpr) (*ir.Value, error) {
	g.scope = &scope{outer: g.scope, vars: make(map[string]*ir.Value)}
	defer func() { g.scope = g.scope.outer }()

	for _, v := range e.Vars {
		var initVal *ir.Value
		if v.Init != nil {
			var err error
			initVal, err = g.expr(v.Init)
			if err != nil {
				return nil, err
			}
		} else {
			initVal = g.fn.NewValuePos(g.b, ir.OpConstF64, e.Pos())
		}

		cell := g.entryAlloca(v.Name)
		g.fn.NewValuePos(g.b, ir.OpStore, e.Pos(), cell, initVal)
		g.scope.bind(v.Name, cell)
	}

	return g.expr(e.Body)
}
