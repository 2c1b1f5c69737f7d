package optimize

import "github.com/ome-lang/ome/ir"

// RenumberLocals reassigns temp numbers densely, in order of first
// occurrence in the instruction stream, so that no gaps remain (spec.md
// §4.7 pass 4). It computes no live ranges: every distinct temp keeps a
// distinct number, even where two temps' ranges never overlap. Argument
// registers (0..NumArgs-1) are never renumbered — callers address them
// positionally.
func RenumberLocals(m *ir.Method) {
	next := m.NumArgs
	mapping := make(map[int]int, m.NumLocals)
	for i := 0; i < m.NumArgs; i++ {
		mapping[i] = i
	}

	assign := func(t int) int {
		if t < m.NumArgs {
			return t
		}
		if mapped, ok := mapping[t]; ok {
			return mapped
		}
		mapping[t] = next
		next++
		return next - 1
	}

	out := make([]ir.Instruction, len(m.Instructions))
	for i, instr := range m.Instructions {
		out[i] = renumberInstr(instr, assign)
	}
	m.Instructions = out
	m.NumLocals = next
}

func renumberInstr(instr ir.Instruction, assign func(int) int) ir.Instruction {
	switch v := instr.(type) {
	case ir.Call:
		v.Dest = assign(v.Dest)
		args := make([]int, len(v.Args))
		for i, a := range v.Args {
			args[i] = assign(a)
		}
		v.Args = args
		return v
	case ir.Tag:
		v.Dest, v.Src = assign(v.Dest), assign(v.Src)
		return v
	case ir.Untag:
		v.Dest, v.Src = assign(v.Dest), assign(v.Src)
		return v
	case ir.Create:
		v.Dest = assign(v.Dest)
		return v
	case ir.CreateArray:
		v.Dest = assign(v.Dest)
		return v
	case ir.Alias:
		v.Dest, v.Src = assign(v.Dest), assign(v.Src)
		return v
	case ir.LoadValue:
		v.Dest = assign(v.Dest)
		return v
	case ir.LoadString:
		v.Dest = assign(v.Dest)
		return v
	case ir.GetSlot:
		v.Dest, v.Object = assign(v.Dest), assign(v.Object)
		return v
	case ir.SetSlot:
		v.Object, v.Value = assign(v.Object), assign(v.Value)
		return v
	case ir.Return:
		v.Src = assign(v.Src)
		return v
	default:
		return instr
	}
}
