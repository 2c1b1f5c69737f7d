package optimize

import "github.com/ome-lang/ome/ir"

// SinkConstants moves a LOAD_VALUE/LOAD_STRING that is used exactly once
// to sit immediately before that use, provided no CALL instruction lies
// between the load and its use (spec.md §4.7 pass 2). Sinking across a
// CALL would extend the constant's live range across a point where the
// register allocator must already account for every live caller-saved
// temp, defeating the point of sinking it in the first place (decided in
// DESIGN.md's Open Questions).
func SinkConstants(m *ir.Method) {
	useCount := map[int]int{}
	useIndex := map[int]int{}
	for i, instr := range m.Instructions {
		for _, src := range inputsOf(instr) {
			useCount[src]++
			useIndex[src] = i
		}
	}

	type pending struct {
		instr ir.Instruction
		dest  int
	}
	var sinkable []pending
	keep := m.Instructions[:0:0]

	for i, instr := range m.Instructions {
		dest, ok := loadDest(instr)
		if ok && useCount[dest] == 1 && !callBetween(m.Instructions, i, useIndex[dest]) {
			sinkable = append(sinkable, pending{instr: instr, dest: dest})
			continue
		}
		keep = append(keep, instr)
	}

	if len(sinkable) == 0 {
		return
	}

	final := make([]ir.Instruction, 0, len(keep)+len(sinkable))
	for _, instr := range keep {
		for _, p := range sinkable {
			if usesInput(instr, p.dest) {
				final = append(final, p.instr)
			}
		}
		final = append(final, instr)
	}
	m.Instructions = final
}

func loadDest(instr ir.Instruction) (int, bool) {
	switch v := instr.(type) {
	case ir.LoadValue:
		return v.Dest, true
	case ir.LoadString:
		return v.Dest, true
	default:
		return 0, false
	}
}

func callBetween(instrs []ir.Instruction, from, to int) bool {
	for i := from + 1; i < to && i < len(instrs); i++ {
		if _, ok := instrs[i].(ir.Call); ok {
			return true
		}
	}
	return false
}

func usesInput(instr ir.Instruction, reg int) bool {
	for _, in := range inputsOf(instr) {
		if in == reg {
			return true
		}
	}
	return false
}

func inputsOf(instr ir.Instruction) []int {
	switch v := instr.(type) {
	case ir.Call:
		return v.Args
	case ir.Tag:
		return []int{v.Src}
	case ir.Untag:
		return []int{v.Src}
	case ir.GetSlot:
		return []int{v.Object}
	case ir.SetSlot:
		return []int{v.Object, v.Value}
	case ir.Return:
		return []int{v.Src}
	case ir.Alias:
		return []int{v.Src}
	default:
		return nil
	}
}
