// Package interp evaluates generated IR functions directly, standing in
// for a native-code backend. Calls resolve through the translation unit
// first and a native (extern) registry second.
package interp

import (
	"fmt"

	"github.com/kaleido-lang/kaleido/internal/ir"
)

// Resolver resolves a callee name to its finished IR function. The
// codegen translation unit satisfies this.
type Resolver interface {
	Lookup(name string) (*ir.Func, bool)
}

// Native is a host function callable from the language. Every parameter
// and the result are in the language's single numeric domain.
type Native func(args []float64) float64

// maxCallDepth bounds recursion so runaway programs fail with an error
// instead of exhausting the host stack.
const maxCallDepth = 10000

// Machine executes IR functions.
type Machine struct {
	resolver Resolver
	natives  map[string]Native
}

// NewMachine creates a machine resolving calls through r.
func NewMachine(r Resolver) *Machine {
	return &Machine{
		resolver: r,
		natives:  make(map[string]Native),
	}
}

// RegisterNative installs a host function under name. A generated
// function with the same name takes priority at call time.
func (m *Machine) RegisterNative(name string, fn Native) {
	m.natives[name] = fn
}

// Call runs the named function with the given arguments.
func (m *Machine) Call(name string, args ...float64) (float64, error) {
	return m.call(name, args, 0)
}

// Run executes f directly with the given arguments.
func (m *Machine) Run(f *ir.Func, args ...float64) (float64, error) {
	return m.run(f, args, 0)
}

func (m *Machine) call(name string, args []float64, depth int) (float64, error) {
	if f, ok := m.resolver.Lookup(name); ok {
		return m.run(f, args, depth)
	}
	if fn, ok := m.natives[name]; ok {
		return fn(args), nil
	}
	return 0, fmt.Errorf("undefined function %q", name)
}

func (m *Machine) run(f *ir.Func, args []float64, depth int) (float64, error) {
	if depth > maxCallDepth {
		return 0, fmt.Errorf("call depth exceeded running %q", f.Name)
	}
	if len(args) != len(f.Params) {
		return 0, fmt.Errorf("function %q expects %d arguments, got %d",
			f.Name, len(f.Params), len(args))
	}

	regs := make(map[*ir.Value]float64)
	cells := make(map[*ir.Value]*float64)

	reg := func(v *ir.Value) (float64, error) {
		x, ok := regs[v]
		if !ok {
			return 0, fmt.Errorf("function %q: %s read before definition", f.Name, v)
		}
		return x, nil
	}

	block := f.Entry
	var prev *ir.Block

	for {
		// Phis read their incoming values together, against the state
		// the predecessor left behind, so loop-carried phis in one
		// block cannot observe each other's new values.
		var phiVals []float64
		for _, v := range block.Values {
			if v.Op != ir.OpPhi {
				break
			}
			idx := -1
			for i, p := range block.Preds {
				if p == prev {
					idx = i
					break
				}
			}
			if idx < 0 || idx >= len(v.Args) {
				return 0, fmt.Errorf("function %q: phi %s has no edge from %s", f.Name, v, prev)
			}
			x, err := reg(v.Args[idx])
			if err != nil {
				return 0, err
			}
			phiVals = append(phiVals, x)
		}
		for i := range phiVals {
			regs[block.Values[i]] = phiVals[i]
		}

		for _, v := range block.Values {
			switch v.Op {
			case ir.OpPhi:
				// handled above

			case ir.OpConstF64:
				regs[v] = v.AuxFloat

			case ir.OpArg:
				i := int(v.AuxInt)
				if i < 0 || i >= len(args) {
					return 0, fmt.Errorf("function %q: argument index %d out of range", f.Name, i)
				}
				regs[v] = args[i]

			case ir.OpAlloca:
				cell := new(float64)
				cells[v] = cell

			case ir.OpLoad:
				cell, ok := cells[v.Args[0]]
				if !ok {
					return 0, fmt.Errorf("function %q: load from non-cell %s", f.Name, v.Args[0])
				}
				regs[v] = *cell

			case ir.OpStore:
				cell, ok := cells[v.Args[0]]
				if !ok {
					return 0, fmt.Errorf("function %q: store to non-cell %s", f.Name, v.Args[0])
				}
				x, err := reg(v.Args[1])
				if err != nil {
					return 0, err
				}
				*cell = x

			case ir.OpAddF64, ir.OpSubF64, ir.OpMulF64, ir.OpCmpLT:
				x, err := reg(v.Args[0])
				if err != nil {
					return 0, err
				}
				y, err := reg(v.Args[1])
				if err != nil {
					return 0, err
				}
				switch v.Op {
				case ir.OpAddF64:
					regs[v] = x + y
				case ir.OpSubF64:
					regs[v] = x - y
				case ir.OpMulF64:
					regs[v] = x * y
				case ir.OpCmpLT:
					if x < y {
						regs[v] = 1
					} else {
						regs[v] = 0
					}
				}

			case ir.OpCall:
				name, _ := v.Aux.(string)
				callArgs := make([]float64, len(v.Args))
				for i, a := range v.Args {
					x, err := reg(a)
					if err != nil {
						return 0, err
					}
					callArgs[i] = x
				}
				res, err := m.call(name, callArgs, depth+1)
				if err != nil {
					return 0, err
				}
				regs[v] = res

			case ir.OpCopy:
				x, err := reg(v.Args[0])
				if err != nil {
					return 0, err
				}
				regs[v] = x

			default:
				return 0, fmt.Errorf("function %q: cannot execute op %s", f.Name, v.Op)
			}
		}

		switch block.Kind {
		case ir.BlockReturn:
			if len(block.Controls) == 0 || block.Controls[0] == nil {
				return 0, fmt.Errorf("function %q: return without value", f.Name)
			}
			return reg(block.Controls[0])

		case ir.BlockPlain:
			if len(block.Succs) != 1 {
				return 0, fmt.Errorf("function %q: block %s has no successor", f.Name, block)
			}
			prev, block = block, block.Succs[0]

		case ir.BlockIf:
			if len(block.Controls) == 0 || len(block.Succs) != 2 {
				return 0, fmt.Errorf("function %q: malformed branch in %s", f.Name, block)
			}
			cond, err := reg(block.Controls[0])
			if err != nil {
				return 0, err
			}
			if cond != 0 {
				prev, block = block, block.Succs[0]
			} else {
				prev, block = block, block.Succs[1]
			}

		default:
			return 0, fmt.Errorf("function %q: block %s has invalid kind", f.Name, block)
		}
	}
}
