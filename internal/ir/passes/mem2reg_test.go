package passes

import (
	"testing"

	"github.com/kaleido-lang/kaleido/internal/ir"
)

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

// verifyAfter runs Mem2Reg and checks the result is still well formed.
func verifyAfter(t *testing.T, f *ir.Func) {
	t.Helper()
	Mem2Reg(f)
	if err := ir.Verify(f); err != nil {
		t.Fatalf("Verify(%s) after mem2reg failed:\n%v\nIR:\n%s", f.Name, err, ir.Sprint(f))
	}
	ir.ComputeDom(f)
	if err := ir.VerifyDom(f); err != nil {
		t.Fatalf("VerifyDom(%s) after mem2reg failed:\n%v\nIR:\n%s", f.Name, err, ir.Sprint(f))
	}
}

// TestMem2RegSimpleReturn promotes: var x = 42 in x
func TestMem2RegSimpleReturn(t *testing.T) {
	f := ir.NewFunc("f", nil)
	entry := f.Entry

	cell := f.NewValue(entry, ir.OpAlloca)
	cell.Aux = "x"
	c42 := f.NewValue(entry, ir.OpConstF64)
	c42.AuxFloat = 42
	f.NewValue(entry, ir.OpStore, cell, c42)
	ld := f.NewValue(entry, ir.OpLoad, cell)

	entry.Kind = ir.BlockReturn
	entry.SetControl(ld)

	verifyAfter(t, f)

	if n := countOp(f, ir.OpAlloca); n != 0 {
		t.Errorf("allocas after mem2reg = %d, want 0", n)
	}
	if n := countOp(f, ir.OpLoad); n != 0 {
		t.Errorf("loads after mem2reg = %d, want 0", n)
	}
	if n := countOp(f, ir.OpStore); n != 0 {
		t.Errorf("stores after mem2reg = %d, want 0", n)
	}

	// The return block control should now be the constant itself.
	if ctrl := entry.Controls[0]; ctrl.Op != ir.OpConstF64 || ctrl.AuxFloat != 42 {
		t.Errorf("return value = %s, want ConstF64[42]", ctrl.LongString())
	}
}

// TestMem2RegReassignment promotes a cell stored twice; the last store wins.
func TestMem2RegReassignment(t *testing.T) {
	f := ir.NewFunc("f", nil)
	entry := f.Entry

	cell := f.NewValue(entry, ir.OpAlloca)
	cell.Aux = "x"
	c1 := f.NewValue(entry, ir.OpConstF64)
	c1.AuxFloat = 1
	f.NewValue(entry, ir.OpStore, cell, c1)
	c2 := f.NewValue(entry, ir.OpConstF64)
	c2.AuxFloat = 2
	f.NewValue(entry, ir.OpStore, cell, c2)
	ld := f.NewValue(entry, ir.OpLoad, cell)

	entry.Kind = ir.BlockReturn
	entry.SetControl(ld)

	verifyAfter(t, f)

	if n := countOp(f, ir.OpAlloca); n != 0 {
		t.Errorf("allocas after mem2reg = %d, want 0", n)
	}
	if ctrl := entry.Controls[0]; ctrl.Op != ir.OpConstF64 || ctrl.AuxFloat != 2 {
		t.Errorf("return value = %s, want ConstF64[2]", ctrl.LongString())
	}
}

// TestMem2RegDiamondPhi promotes a cell stored in both arms of a branch,
// which requires a phi at the merge point.
func TestMem2RegDiamondPhi(t *testing.T) {
	f := ir.NewFunc("f", []string{"x"})
	entry := f.Entry

	x := f.NewValue(entry, ir.OpArg)
	x.Aux = "x"
	cell := f.NewValue(entry, ir.OpAlloca)
	cell.Aux = "r"

	bThen := f.NewBlock(ir.BlockPlain)
	bElse := f.NewBlock(ir.BlockPlain)
	merge := f.NewBlock(ir.BlockReturn)

	entry.Kind = ir.BlockIf
	entry.SetControl(x)
	entry.AddSucc(bThen)
	entry.AddSucc(bElse)

	c1 := f.NewValue(bThen, ir.OpConstF64)
	c1.AuxFloat = 1
	f.NewValue(bThen, ir.OpStore, cell, c1)
	bThen.AddSucc(merge)

	c2 := f.NewValue(bElse, ir.OpConstF64)
	c2.AuxFloat = 2
	f.NewValue(bElse, ir.OpStore, cell, c2)
	bElse.AddSucc(merge)

	ld := f.NewValue(merge, ir.OpLoad, cell)
	merge.SetControl(ld)

	verifyAfter(t, f)

	if n := countOp(f, ir.OpAlloca); n != 0 {
		t.Errorf("allocas after mem2reg = %d, want 0", n)
	}
	if n := countOp(f, ir.OpPhi); n != 1 {
		t.Errorf("phis after mem2reg = %d, want 1", n)
	}

	phi := merge.Values[0]
	if phi.Op != ir.OpPhi {
		t.Fatalf("merge.Values[0].Op = %v, want OpPhi", phi.Op)
	}
	if phi.Args[0] != c1 || phi.Args[1] != c2 {
		t.Errorf("phi args = %v %v, want %v %v", phi.Args[0], phi.Args[1], c1, c2)
	}
}

// TestMem2RegLoopPhi promotes the induction cell of a counting loop.
// Shape: entry -> header; header -> body, exit; body -> header.
func TestMem2RegLoopPhi(t *testing.T) {
	f := ir.NewFunc("f", nil)
	entry := f.Entry
	header := f.NewBlock(ir.BlockIf)
	body := f.NewBlock(ir.BlockPlain)
	exit := f.NewBlock(ir.BlockReturn)

	cell := f.NewValue(entry, ir.OpAlloca)
	cell.Aux = "i"
	c0 := f.NewValue(entry, ir.OpConstF64)
	f.NewValue(entry, ir.OpStore, cell, c0)
	entry.AddSucc(header)

	ld1 := f.NewValue(header, ir.OpLoad, cell)
	c10 := f.NewValue(header, ir.OpConstF64)
	c10.AuxFloat = 10
	cmp := f.NewValue(header, ir.OpCmpLT, ld1, c10)
	header.SetControl(cmp)
	header.AddSucc(body)
	header.AddSucc(exit)

	ld2 := f.NewValue(body, ir.OpLoad, cell)
	c1 := f.NewValue(body, ir.OpConstF64)
	c1.AuxFloat = 1
	add := f.NewValue(body, ir.OpAddF64, ld2, c1)
	f.NewValue(body, ir.OpStore, cell, add)
	body.AddSucc(header)

	ld3 := f.NewValue(exit, ir.OpLoad, cell)
	exit.SetControl(ld3)

	verifyAfter(t, f)

	if n := countOp(f, ir.OpAlloca); n != 0 {
		t.Errorf("allocas after mem2reg = %d, want 0", n)
	}
	if n := countOp(f, ir.OpPhi); n != 1 {
		t.Errorf("phis after mem2reg = %d, want 1", n)
	}

	// The phi lives in the loop header and merges c0 with the increment.
	phi := header.Values[0]
	if phi.Op != ir.OpPhi {
		t.Fatalf("header.Values[0].Op = %v, want OpPhi", phi.Op)
	}
	if phi.Args[0] != c0 || phi.Args[1] != add {
		t.Errorf("phi args = %v %v, want %v %v", phi.Args[0], phi.Args[1], c0, add)
	}
}

// TestMem2RegNonPromotableEscape leaves a cell alone when its address is
// stored into another cell.
func TestMem2RegNonPromotableEscape(t *testing.T) {
	f := ir.NewFunc("f", nil)
	entry := f.Entry

	cell := f.NewValue(entry, ir.OpAlloca)
	cell.Aux = "x"
	other := f.NewValue(entry, ir.OpAlloca)
	other.Aux = "p"
	// Store the cell itself as a value: the address escapes.
	f.NewValue(entry, ir.OpStore, other, cell)
	ld := f.NewValue(entry, ir.OpLoad, cell)

	entry.Kind = ir.BlockReturn
	entry.SetControl(ld)

	Mem2Reg(f)

	if countOp(f, ir.OpAlloca) == 0 {
		t.Error("escaped alloca was incorrectly promoted")
	}
}

// TestMem2RegLoadBeforeStore reads an uninitialized cell; the reaching
// definition is the shared zero constant.
func TestMem2RegLoadBeforeStore(t *testing.T) {
	f := ir.NewFunc("f", nil)
	entry := f.Entry

	cell := f.NewValue(entry, ir.OpAlloca)
	cell.Aux = "x"
	ld := f.NewValue(entry, ir.OpLoad, cell)

	entry.Kind = ir.BlockReturn
	entry.SetControl(ld)

	verifyAfter(t, f)

	ctrl := entry.Controls[0]
	if ctrl.Op != ir.OpConstF64 || ctrl.AuxFloat != 0 {
		t.Errorf("return value = %s, want ConstF64[0]", ctrl.LongString())
	}
}

// TestMem2RegMultipleCells promotes two independent cells through a branch.
func TestMem2RegMultipleCells(t *testing.T) {
	f := ir.NewFunc("f", []string{"n"})
	entry := f.Entry

	n := f.NewValue(entry, ir.OpArg)
	n.Aux = "n"
	xCell := f.NewValue(entry, ir.OpAlloca)
	xCell.Aux = "x"
	yCell := f.NewValue(entry, ir.OpAlloca)
	yCell.Aux = "y"
	c1 := f.NewValue(entry, ir.OpConstF64)
	c1.AuxFloat = 1
	c2 := f.NewValue(entry, ir.OpConstF64)
	c2.AuxFloat = 2
	f.NewValue(entry, ir.OpStore, xCell, c1)
	f.NewValue(entry, ir.OpStore, yCell, c2)

	bThen := f.NewBlock(ir.BlockPlain)
	merge := f.NewBlock(ir.BlockReturn)

	entry.Kind = ir.BlockIf
	entry.SetControl(n)
	entry.AddSucc(bThen)
	entry.AddSucc(merge)

	c10 := f.NewValue(bThen, ir.OpConstF64)
	c10.AuxFloat = 10
	c20 := f.NewValue(bThen, ir.OpConstF64)
	c20.AuxFloat = 20
	f.NewValue(bThen, ir.OpStore, xCell, c10)
	f.NewValue(bThen, ir.OpStore, yCell, c20)
	bThen.AddSucc(merge)

	ldx := f.NewValue(merge, ir.OpLoad, xCell)
	ldy := f.NewValue(merge, ir.OpLoad, yCell)
	sum := f.NewValue(merge, ir.OpAddF64, ldx, ldy)
	merge.SetControl(sum)

	verifyAfter(t, f)

	if n := countOp(f, ir.OpAlloca); n != 0 {
		t.Errorf("allocas after mem2reg = %d, want 0", n)
	}
	if n := countOp(f, ir.OpPhi); n != 2 {
		t.Errorf("phis after mem2reg = %d, want 2", n)
	}
}

func TestMem2RegPassRunner(t *testing.T) {
	f := ir.NewFunc("f", []string{"x"})
	entry := f.Entry

	x := f.NewValue(entry, ir.OpArg)
	x.Aux = "x"
	cell := f.NewValue(entry, ir.OpAlloca)
	cell.Aux = "y"
	c1 := f.NewValue(entry, ir.OpConstF64)
	c1.AuxFloat = 1
	sum := f.NewValue(entry, ir.OpAddF64, x, c1)
	f.NewValue(entry, ir.OpStore, cell, sum)
	ld := f.NewValue(entry, ir.OpLoad, cell)

	entry.Kind = ir.BlockReturn
	entry.SetControl(ld)

	err := Run(f, Default(), Config{Verify: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := countOp(f, ir.OpAlloca); n != 0 {
		t.Errorf("allocas after pass runner = %d, want 0", n)
	}
}
