// Package optimize implements the four-pass optimizer of spec.md §4.7,
// run over a method's lowered IR before register allocation. Grounded on
// query_pipeline.go's chained Query.Compute shape: each pass consumes the
// previous pass's instruction stream and produces a new one rather than
// mutating in place.
package optimize

import "github.com/ome-lang/ome/ir"

// EliminateAliases chases ALIAS chains to their ultimate source and
// rewrites every other instruction's inputs to read that source
// directly, then drops the ALIAS instructions themselves (spec.md §4.7
// pass 1).
func EliminateAliases(m *ir.Method) {
	resolved := map[int]int{}
	root := func(t int) int {
		for {
			if r, ok := resolved[t]; ok {
				t = r
				continue
			}
			return t
		}
	}

	out := m.Instructions[:0:0]
	for _, instr := range m.Instructions {
		if a, ok := instr.(ir.Alias); ok {
			resolved[a.Dest] = root(a.Src)
			continue
		}
		out = append(out, rewriteInputs(instr, root))
	}
	m.Instructions = out
}

// rewriteInputs returns instr with every source register replaced by
// root(register); destinations are never touched since ALIAS itself
// never maps a dest (only its own source).
func rewriteInputs(instr ir.Instruction, root func(int) int) ir.Instruction {
	switch v := instr.(type) {
	case ir.Call:
		args := make([]int, len(v.Args))
		for i, a := range v.Args {
			args[i] = root(a)
		}
		v.Args = args
		return v
	case ir.Tag:
		v.Src = root(v.Src)
		return v
	case ir.Untag:
		v.Src = root(v.Src)
		return v
	case ir.GetSlot:
		v.Object = root(v.Object)
		return v
	case ir.SetSlot:
		v.Object = root(v.Object)
		v.Value = root(v.Value)
		return v
	case ir.Return:
		v.Src = root(v.Src)
		return v
	default:
		return instr
	}
}
