package optimize

import "github.com/ome-lang/ome/ir"

// EliminateRedundantUntags implements both sub-rules of spec.md §4.7 pass
// 3. First: a second UNTAG of the same source register is rewritten into
// an ALIAS of the first UNTAG's result (cache, keyed by source register).
// Second: an UNTAG is elided outright when its own source register is
// itself known to already hold an untagged value — freshly produced by a
// prior UNTAG, or by an ALIAS of one — since UNTAG has no other way to
// produce an untagged output by contract. A follow-up EliminateAliases
// pass folds away the ALIASes left behind by either sub-rule.
//
// Both caches invalidate a register whenever it's overwritten:
// GET_SLOT/CALL/CREATE/LOAD_VALUE/... all produce fresh tagged values, so
// any of those between two UNTAGs of the same nominal source (or between
// an UNTAG and a later use of its destination) invalidates that entry.
func EliminateRedundantUntags(m *ir.Method) {
	cache := map[int]int{}     // original untagged src -> its first UNTAG's dest
	untagged := map[int]bool{} // register currently known to hold an untagged value
	out := make([]ir.Instruction, 0, len(m.Instructions))

	for _, instr := range m.Instructions {
		switch v := instr.(type) {
		case ir.Untag:
			if prior, ok := cache[v.Src]; ok {
				out = append(out, ir.Alias{Dest: v.Dest, Src: prior})
				untagged[v.Dest] = true
				continue
			}
			if untagged[v.Src] {
				out = append(out, ir.Alias{Dest: v.Dest, Src: v.Src})
				untagged[v.Dest] = true
				continue
			}
			cache[v.Src] = v.Dest
			untagged[v.Dest] = true
			out = append(out, instr)
			continue
		case ir.Alias:
			out = append(out, instr)
			if untagged[v.Src] {
				untagged[v.Dest] = true
			}
			continue
		}
		out = append(out, instr)
		if dest, ok := writeDest(instr); ok {
			delete(cache, dest)
			delete(untagged, dest)
		}
	}
	m.Instructions = out
}

// writeDest returns the register an instruction other than UNTAG/ALIAS
// writes, if the cache must be invalidated for it (conservatively: any
// destination reuse of a register number that was previously an UNTAG
// source invalidates that cache entry, since instruction lists never
// reuse register numbers across SSA-style temps, this is nearly always a
// no-op guard — kept for correctness if a later pass ever does reuse
// one).
func writeDest(instr ir.Instruction) (int, bool) {
	switch v := instr.(type) {
	case ir.Call:
		return v.Dest, true
	case ir.Tag:
		return v.Dest, true
	case ir.Create:
		return v.Dest, true
	case ir.CreateArray:
		return v.Dest, true
	case ir.LoadValue:
		return v.Dest, true
	case ir.LoadString:
		return v.Dest, true
	case ir.GetSlot:
		return v.Dest, true
	default:
		return 0, false
	}
}
