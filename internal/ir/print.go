package ir

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Fprint writes the IR representation of a function to w.
//
// Format:
//
//	func name(a, b):
//	  b0: (entry)
//	    v0 = Arg [0] {a}
//	    v1 = ConstF64 [42]
//	    v2 = AddF64 v0 v1
//	    Return v2
func Fprint(w io.Writer, f *Func) {
	fmt.Fprintf(w, "func %s(%s):\n", f.Name, strings.Join(f.Params, ", "))
	for _, b := range f.Blocks {
		fprintBlock(w, b, f)
	}
}

// fprintBlock writes a single block to w.
func fprintBlock(w io.Writer, b *Block, f *Func) {
	label := ""
	if b == f.Entry {
		label = " (entry)"
	}

	// Show predecessor list for non-entry blocks.
	predsStr := ""
	if len(b.Preds) > 0 {
		preds := make([]string, len(b.Preds))
		for i, p := range b.Preds {
			preds[i] = p.String()
		}
		predsStr = " <- " + strings.Join(preds, " ")
	}

	fmt.Fprintf(w, "  %s:%s%s\n", b, label, predsStr)

	for _, v := range b.Values {
		fmt.Fprintf(w, "    %s\n", formatValue(v))
	}

	fmt.Fprintf(w, "    %s\n", formatTerminator(b))
}

// formatValue formats a value as a string.
func formatValue(v *Value) string {
	var sb strings.Builder

	// For void ops, don't print "vN = ".
	if v.Op.IsVoid() {
		sb.WriteString(v.Op.String())
	} else {
		fmt.Fprintf(&sb, "v%d = %s", v.ID, v.Op)
	}

	switch v.Op {
	case OpConstF64:
		fmt.Fprintf(&sb, " [%g]", v.AuxFloat)
	case OpArg:
		fmt.Fprintf(&sb, " [%d]", v.AuxInt)
	}

	if v.Aux != nil {
		fmt.Fprintf(&sb, " {%v}", v.Aux)
	}

	for _, arg := range v.Args {
		fmt.Fprintf(&sb, " v%d", arg.ID)
	}

	return sb.String()
}

// formatTerminator formats a block terminator.
func formatTerminator(b *Block) string {
	switch b.Kind {
	case BlockPlain:
		if len(b.Succs) > 0 {
			return fmt.Sprintf("Plain -> %s", b.Succs[0])
		}
		return "Plain"
	case BlockIf:
		if len(b.Controls) > 0 && len(b.Succs) >= 2 {
			return fmt.Sprintf("If v%d -> %s %s", b.Controls[0].ID, b.Succs[0], b.Succs[1])
		}
		return "If (malformed)"
	case BlockReturn:
		if len(b.Controls) > 0 && b.Controls[0] != nil {
			return fmt.Sprintf("Return v%d", b.Controls[0].ID)
		}
		return "Return"
	default:
		return "???"
	}
}

// Sprint returns the IR representation of a function as a string.
func Sprint(f *Func) string {
	var sb strings.Builder
	Fprint(&sb, f)
	return sb.String()
}

// Print writes the IR representation of a function to stdout.
func Print(f *Func) {
	Fprint(os.Stdout, f)
}
