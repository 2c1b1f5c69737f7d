package optimize

import "github.com/ome-lang/ome/ir"

// Level selects how much of the pipeline Run applies, mirroring
// query_pipeline.go's "each stage reads the previous stage's result,
// gated by a config flag" shape (here: compiler.optimize in ome.Config).
type Level int

const (
	// LevelNone skips optimization entirely: IR from ir.Lower is passed
	// straight to the register allocator unmodified.
	LevelNone Level = 0
	// LevelDefault runs all four passes.
	LevelDefault Level = 1
)

// Run applies the optimizer passes to m in place, in spec.md §4.7's
// fixed order: alias elimination, constant sinking, redundant-untag
// elimination (itself finishing with another alias pass, since
// rewriting an UNTAG to an ALIAS can only be cleaned up by one), then
// local renumbering.
func Run(m *ir.Method, level Level) {
	if level == LevelNone {
		return
	}
	EliminateAliases(m)
	SinkConstants(m)
	EliminateRedundantUntags(m)
	EliminateAliases(m)
	RenumberLocals(m)
}
