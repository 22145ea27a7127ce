package passes

import (
	"github.com/kaleido-lang/kaleido/internal/ir"
)

// DCE removes pure values with no uses. It iterates to a fixed point so
// that chains of dead computations are removed in one run.
func DCE(f *ir.Func) {
	changed := true
	for changed {
		changed = false
		for _, b := range f.Blocks {
			var live []*ir.Value
			for _, v := range b.Values {
				if v.Uses == 0 && v.IsPure() {
					for _, arg := range v.Args {
						if arg != nil {
							arg.Uses--
						}
					}
					changed = true
					continue
				}
				live = append(live, v)
			}
			b.Values = live
		}
	}
}
