package ir

import (
	"github.com/kaleido-lang/kaleido/internal/syntax"
)

// Func represents an IR function.
// It contains a control flow graph of Blocks, each containing Values.
type Func struct {
	// Name is the function name.
	Name string

	// Params are the parameter names, in declaration order.
	Params []string

	// Blocks is the list of basic blocks. Blocks[0] is always the entry block.
	Blocks []*Block

	// Entry is the entry block (same as Blocks[0]).
	Entry *Block

	// nextValueID is the next available value ID.
	nextValueID ID

	// nextBlockID is the next available block ID.
	nextBlockID ID
}

// NewFunc creates a new IR function with the given name and parameters.
// An entry block is automatically created.
func NewFunc(name string, params []string) *Func {
	f := &Func{
		Name:   name,
		Params: params,
	}
	entry := f.NewBlock(BlockPlain)
	f.Entry = entry
	return f
}

// NewBlock creates a new basic block with the given kind and appends it to the function.
func (f *Func) NewBlock(kind BlockKind) *Block {
	b := &Block{
		ID:   f.nextBlockID,
		Kind: kind,
		Func: f,
	}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewValue creates a new Value in the given block.
func (f *Func) NewValue(b *Block, op Op, args ...*Value) *Value {
	v := &Value{
		ID:    f.nextValueID,
		Op:    op,
		Block: b,
	}
	f.nextValueID++
	for _, arg := range args {
		v.AddArg(arg)
	}
	b.Values = append(b.Values, v)
	return v
}

// NewValuePos creates a new Value with source position in the given block.
func (f *Func) NewValuePos(b *Block, op Op, pos syntax.Pos, args ...*Value) *Value {
	v := f.NewValue(b, op, args...)
	v.Pos = pos
	return v
}

// NewValueAtFront creates a new Value at the front of b's value list.
// Used by passes that insert phis ahead of existing values.
func (f *Func) NewValueAtFront(b *Block, op Op) *Value {
	v := &Value{
		ID:    f.nextValueID,
		Op:    op,
		Block: b,
	}
	f.nextValueID++
	b.Values = append([]*Value{v}, b.Values...)
	return v
}

// ReplaceUses rewrites every use of old (args and block controls) to new,
// adjusting use counts.
func (f *Func) ReplaceUses(old, new *Value) {
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			for i, arg := range v.Args {
				if arg == old {
					v.Args[i] = new
					old.Uses--
					new.Uses++
				}
			}
		}
		for i, c := range b.Controls {
			if c == old {
				b.Controls[i] = new
				old.Uses--
				new.Uses++
			}
		}
	}
}

// NumBlocks returns the number of blocks in the function.
func (f *Func) NumBlocks() int { return len(f.Blocks) }

// NumValues returns the total number of values across all blocks.
func (f *Func) NumValues() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Values)
	}
	return n
}
