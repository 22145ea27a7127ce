package interp

import (
	"fmt"
	"io"
)

// RegisterBuiltins installs the standard native library on m, writing
// output to w: putchard prints the character for its argument's code
// point, printd prints the number followed by a newline. Both return 0.
func RegisterBuiltins(m *Machine, w io.Writer) {
	m.RegisterNative("putchard", func(args []float64) float64 {
		fmt.Fprintf(w, "%c", rune(args[0]))
		return 0
	})
	m.RegisterNative("printd", func(args []float64) float64 {
		fmt.Fprintf(w, "%f\n", args[0])
		return 0
	})
}
