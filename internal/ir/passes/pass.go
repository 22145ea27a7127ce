// Package passes implements the IR optimization pipeline.
package passes

import (
	"fmt"
	"os"

	"github.com/kaleido-lang/kaleido/internal/ir"
)

// Pass describes a single IR optimization pass.
type Pass struct {
	Name string
	Fn   func(f *ir.Func)
}

// Config controls pass execution behavior.
type Config struct {
	DumpBefore string // dump IR before this pass ("*" for all)
	DumpAfter  string // dump IR after this pass ("*" for all)
	Verify     bool   // verify IR before/after each pass
	DumpFunc   string // restrict dumps to this function name
}

// Default returns the standard optimization pipeline, mirroring the
// per-function pass order the code generator runs after emission.
func Default() []Pass {
	return []Pass{
		{Name: "mem2reg", Fn: Mem2Reg},
		{Name: "dce", Fn: DCE},
	}
}

// Run executes the given passes on f in order.
func Run(f *ir.Func, passes []Pass, cfg Config) error {
	for _, p := range passes {
		if shouldDump(cfg.DumpBefore, p.Name) && matchFunc(cfg.DumpFunc, f.Name) {
			fmt.Fprintf(os.Stderr, "--- before %s (%s) ---\n", p.Name, f.Name)
			ir.Fprint(os.Stderr, f)
			fmt.Fprintln(os.Stderr)
		}

		if cfg.Verify {
			if err := ir.Verify(f); err != nil {
				return fmt.Errorf("verify before %s: %w", p.Name, err)
			}
		}

		p.Fn(f)

		if cfg.Verify {
			if err := ir.Verify(f); err != nil {
				return fmt.Errorf("verify after %s: %w", p.Name, err)
			}
		}

		if shouldDump(cfg.DumpAfter, p.Name) && matchFunc(cfg.DumpFunc, f.Name) {
			fmt.Fprintf(os.Stderr, "--- after %s (%s) ---\n", p.Name, f.Name)
			ir.Fprint(os.Stderr, f)
			fmt.Fprintln(os.Stderr)
		}
	}
	return nil
}

func shouldDump(pattern, name string) bool {
	return pattern == "*" || pattern == name
}

func matchFunc(filter, name string) bool {
	return filter == "" || filter == name
}
