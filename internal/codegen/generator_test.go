package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleido-lang/kaleido/internal/ir"
	"github.com/kaleido-lang/kaleido/internal/syntax"
)

// session bundles a parser and generator sharing one precedence table,
// the way the driver wires them.
type session struct {
	parser *syntax.Parser
	gen    *Generator
}

func newSession(t *testing.T, src string) *session {
	t.Helper()
	prec := syntax.NewPrecTable()
	errh := func(pos syntax.Pos, msg string) {}
	p := syntax.NewParser("test.k", strings.NewReader(src), prec, errh)
	return &session{
		parser: p,
		gen:    NewGenerator(NewUnit(), prec),
	}
}

// genAll parses and generates every item, returning the results and the
// first error from each item.
func (s *session) genAll(t *testing.T) ([]*ir.Func, []error) {
	t.Helper()
	var funcs []*ir.Func
	var errs []error
	for {
		item, err := s.parser.Next()
		if item == nil {
			break
		}
		require.NoError(t, err)
		f, gerr := s.gen.Generate(item)
		if gerr != nil {
			errs = append(errs, gerr)
			continue
		}
		if f != nil {
			funcs = append(funcs, f)
		}
	}
	return funcs, errs
}

// genOne generates a single-item source and requires success.
func genOne(t *testing.T, src string) *ir.Func {
	t.Helper()
	s := newSession(t, src)
	funcs, errs := s.genAll(t)
	require.Empty(t, errs)
	require.Len(t, funcs, 1)
	return funcs[0]
}

func countOp(f *ir.Func, op ir.Op) int {
	n := 0
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op == op {
				n++
			}
		}
	}
	return n
}

func TestGenerateSimpleDef(t *testing.T) {
	f := genOne(t, "def add(x y) x+y")

	assert.Equal(t, "add", f.Name)
	assert.Equal(t, []string{"x", "y"}, f.Params)
	assert.Equal(t, 1, countOp(f, ir.OpAddF64))
	assert.Equal(t, 2, countOp(f, ir.OpArg))
	// One cell per parameter, stored once each.
	assert.Equal(t, 2, countOp(f, ir.OpAlloca))
	assert.Equal(t, 2, countOp(f, ir.OpStore))

	require.NoError(t, ir.Verify(f))
}

func TestGenerateAnonymousNames(t *testing.T) {
	s := newSession(t, "1+2; 3*4")
	funcs, errs := s.genAll(t)
	require.Empty(t, errs)
	require.Len(t, funcs, 2)

	// Each bare expression becomes an independently named routine.
	assert.Equal(t, "__anon_expr0", funcs[0].Name)
	assert.Equal(t, "__anon_expr1", funcs[1].Name)
	assert.Empty(t, funcs[0].Params)
}

func TestGenerateExternThenDef(t *testing.T) {
	s := newSession(t, "extern foo(a b) def foo(a b) a+b")
	funcs, errs := s.genAll(t)
	require.Empty(t, errs)
	require.Len(t, funcs, 1)

	d, ok := s.gen.Unit().Decl("foo")
	require.True(t, ok)
	assert.True(t, d.Defined())
}

func TestGenerateRedefinition(t *testing.T) {
	s := newSession(t, "def foo(a b) a+b def foo(a b) a-b")
	funcs, errs := s.genAll(t)
	require.Len(t, funcs, 1)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "redefinition of function")

	// The original definition survives.
	f, ok := s.gen.Unit().Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, 1, countOp(f, ir.OpAddF64))
}

func TestGenerateRedefinitionDifferentArity(t *testing.T) {
	s := newSession(t, "extern foo(a b) def foo(a) a")
	_, errs := s.genAll(t)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "different # args")
}

func TestGenerateUnknownVariable(t *testing.T) {
	s := newSession(t, "def f(x) y")
	_, errs := s.genAll(t)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unknown variable name")
}

func TestGenerateUnknownFunction(t *testing.T) {
	s := newSession(t, "def f(x) g(x)")
	_, errs := s.genAll(t)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unknown function")
}

func TestGenerateCallArityMismatch(t *testing.T) {
	s := newSession(t, "extern g(a b) def f(x) g(x)")
	_, errs := s.genAll(t)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "incorrect # arguments")
}

func TestGenerateCall(t *testing.T) {
	s := newSession(t, "extern g(a b) def f(x) g(x, x*2)")
	funcs, errs := s.genAll(t)
	require.Empty(t, errs)
	require.Len(t, funcs, 1)

	f := funcs[0]
	assert.Equal(t, 1, countOp(f, ir.OpCall))
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op == ir.OpCall {
				assert.Equal(t, "g", v.Aux)
				assert.Len(t, v.Args, 2)
			}
		}
	}
}

func TestGenerateAssignment(t *testing.T) {
	f := genOne(t, "def f(x) x = x + 1")

	// Parameter store plus the assignment store.
	assert.Equal(t, 2, countOp(f, ir.OpStore))
	// The assignment's value is the function result.
	ret := f.Blocks[len(f.Blocks)-1]
	for _, b := range f.Blocks {
		if b.Kind == ir.BlockReturn {
			ret = b
		}
	}
	assert.Equal(t, ir.OpAddF64, ret.Controls[0].Op)
}

func TestGenerateAssignmentToNonVariable(t *testing.T) {
	s := newSession(t, "def f(x) (x+1) = 2")
	_, errs := s.genAll(t)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "destination of '=' must be a variable")
}

func TestGenerateIfDiamond(t *testing.T) {
	f := genOne(t, "def f(x) if x < 10 then 1 else 2")

	// Entry plus then, else, merge.
	require.Equal(t, 4, f.NumBlocks())
	assert.Equal(t, ir.BlockIf, f.Entry.Kind)
	assert.Equal(t, ir.OpCmpLT, f.Entry.Controls[0].Op)
	assert.Equal(t, 1, countOp(f, ir.OpPhi))

	merge := f.Blocks[3]
	assert.Equal(t, ir.BlockReturn, merge.Kind)
	require.Equal(t, 2, merge.NumPreds())
	phi := merge.Controls[0]
	assert.Equal(t, ir.OpPhi, phi.Op)
	assert.InEpsilon(t, 1.0, phi.Args[0].AuxFloat, 1e-9)
	assert.InEpsilon(t, 2.0, phi.Args[1].AuxFloat, 1e-9)
}

func TestGenerateNestedIf(t *testing.T) {
	f := genOne(t, "def f(x) if x then (if x < 2 then 1 else 2) else 3")
	assert.Equal(t, 2, countOp(f, ir.OpPhi))
	require.NoError(t, ir.Verify(f))
}

func TestGenerateForLoop(t *testing.T) {
	f := genOne(t, "extern put(c) def count(n) for i = 1, i < n in put(i)")

	// Preheader (entry), loop, after.
	require.Equal(t, 3, f.NumBlocks())

	loop := f.Blocks[1]
	assert.Equal(t, ir.BlockIf, loop.Kind)
	// Back edge: the loop block is its own first successor.
	require.Equal(t, 2, loop.NumSuccs())
	assert.Same(t, loop, loop.Succs[0])

	// The loop expression always yields 0.0.
	after := f.Blocks[2]
	require.Equal(t, ir.BlockReturn, after.Kind)
	assert.Equal(t, ir.OpConstF64, after.Controls[0].Op)
	assert.Zero(t, after.Controls[0].AuxFloat)
}

func TestGenerateForLoopScopeRestored(t *testing.T) {
	// The induction variable does not leak past the loop.
	s := newSession(t, "def f(n) (for i = 1, i < n in i) + i")
	_, errs := s.genAll(t)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unknown variable name")
}

func TestGenerateForLoopShadowsParameter(t *testing.T) {
	// The induction variable shadows the parameter inside the body;
	// both cells exist but the body's loads hit the loop cell.
	f := genOne(t, "def f(i) for i = 0, i < 10 in i")
	assert.Equal(t, 2, countOp(f, ir.OpAlloca))
	require.NoError(t, ir.Verify(f))
}

func TestGenerateVarExpr(t *testing.T) {
	f := genOne(t, "def f(x) var a = 1, b = a + x in a * b")

	// Cells: x, a, b.
	assert.Equal(t, 3, countOp(f, ir.OpAlloca))
	assert.Equal(t, 1, countOp(f, ir.OpMulF64))
	require.NoError(t, ir.Verify(f))
}

func TestGenerateVarDefaultZero(t *testing.T) {
	f := genOne(t, "def f(x) var a in a")

	// a's cell is initialized from a 0.0 constant.
	found := false
	for _, v := range f.Entry.Values {
		if v.Op == ir.OpStore && v.Args[1].Op == ir.OpConstF64 && v.Args[1].AuxFloat == 0 {
			found = true
		}
	}
	assert.True(t, found, "missing zero initialization store")
}

func TestGenerateVarScopeRestored(t *testing.T) {
	s := newSession(t, "def f(x) (var a = 1 in a) + a")
	_, errs := s.genAll(t)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unknown variable name")
}

func TestGenerateVarDuplicateNameShadows(t *testing.T) {
	// The second a's initializer sees the first a; the body sees the
	// second.
	f := genOne(t, "def f(x) var a = 1, a = a + 1 in a")
	assert.Equal(t, 3, countOp(f, ir.OpAlloca))
	require.NoError(t, ir.Verify(f))
}

func TestGenerateUserBinaryOperator(t *testing.T) {
	s := newSession(t, "def binary| 5 (a b) a + b\ndef f(x) x | 1")
	funcs, errs := s.genAll(t)
	require.Empty(t, errs)
	require.Len(t, funcs, 2)

	// The use dispatches to the operator function.
	f := funcs[1]
	assert.Equal(t, 1, countOp(f, ir.OpCall))
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op == ir.OpCall {
				assert.Equal(t, "binary|", v.Aux)
			}
		}
	}
}

func TestGenerateOperatorBeforeDefinition(t *testing.T) {
	// Before its definition generates, '|' is not in the precedence
	// table: "x | 1" parses as x followed by a unary application whose
	// operator is undeclared.
	s := newSession(t, "def f(x) x | 1")
	funcs, errs := s.genAll(t)
	require.Len(t, funcs, 1)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unknown unary operator")
}

func TestGenerateUserUnaryOperator(t *testing.T) {
	s := newSession(t, "def unary!(v) if v then 0 else 1\ndef f(x) !x")
	funcs, errs := s.genAll(t)
	require.Empty(t, errs)
	require.Len(t, funcs, 2)

	f := funcs[1]
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op == ir.OpCall {
				assert.Equal(t, "unary!", v.Aux)
				assert.Len(t, v.Args, 1)
			}
		}
	}
}

func TestGenerateFailedOperatorRollsBackPrecedence(t *testing.T) {
	// The body references an unknown name, so the definition fails and
	// '|' must not remain registered.
	prec := syntax.NewPrecTable()
	errh := func(pos syntax.Pos, msg string) {}
	p := syntax.NewParser("test.k", strings.NewReader("def binary| 5 (a b) a + nope"), prec, errh)
	g := NewGenerator(NewUnit(), prec)

	item, err := p.Next()
	require.NoError(t, err)
	_, gerr := g.Generate(item)
	require.Error(t, gerr)

	assert.Zero(t, prec.Lookup('|'))
	_, ok := g.Unit().Decl("binary|")
	assert.False(t, ok, "failed operator left a declaration behind")
}

func TestGenerateFailedDefKeepsExtern(t *testing.T) {
	s := newSession(t, "extern foo(a) def foo(a) nope def f(x) foo(x)")
	funcs, errs := s.genAll(t)
	require.Len(t, errs, 1)

	// The forward declaration survives the failed definition, so the
	// later call still resolves.
	require.Len(t, funcs, 1)
	d, ok := s.gen.Unit().Decl("foo")
	require.True(t, ok)
	assert.False(t, d.Defined())
}

func TestGenerateExternRecorded(t *testing.T) {
	s := newSession(t, "extern sin(x)")
	funcs, errs := s.genAll(t)
	require.Empty(t, errs)
	assert.Empty(t, funcs)

	d, ok := s.gen.Unit().Decl("sin")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, d.Params)
	assert.False(t, d.Defined())
}

func TestGenerateAllOutputsPassVerifyDom(t *testing.T) {
	src := `
extern putchard(c)
def binary : 1 (a b) b
def unary-(v) 0-v
def fib(n) if n < 3 then 1 else fib(n-1)+fib(n-2)
def loop(n) for i = 0, i < n, 2 in putchard(i)
def locals(x) var a = x, b = a*a in (a = b) : a
fib(10) : loop(4)
`
	s := newSession(t, src)
	funcs, errs := s.genAll(t)
	require.Empty(t, errs)

	for _, f := range funcs {
		ir.ComputeDom(f)
		assert.NoError(t, ir.VerifyDom(f), "func %s:\n%s", f.Name, ir.Sprint(f))
	}
}
