// Package regalloc implements the linear-scan register allocator of
// spec.md §4.8: live intervals over the renumbered IR, LIFO register
// reuse, furthest-next-use spill eviction, and SPILL/UNSPILL synthesis
// around CALL sites for live caller-saved temps. Grounded on
// vm_encoder.go's Encode pass — a single forward walk assigning a
// resource (there: a byte offset; here: a register or stack slot) to
// each IR position and rewriting references to it — and
// original_source/ome/target_x86_64.py's concrete register file (via the
// target package).
package regalloc

import (
	"sort"

	"github.com/ome-lang/ome/ir"
	"github.com/ome-lang/ome/target"
)

// ReturnRegisterSentinel, used as a Move.Src, denotes the architecture's
// distinguished return register rather than a pool index — the return
// register is never itself a member of the allocatable pool (spec.md
// §4.8: "the return register" is supplied by the target distinctly from
// its general-purpose temporaries).
const ReturnRegisterSentinel = -1

// Result is the allocator's output: the method's instruction stream
// rewritten with SPILL/UNSPILL/MOVE/PUSH, and the peak stack-slot count
// the function prologue must reserve.
type Result struct {
	Instructions  []ir.Instruction
	NumStackSlots int
}

type interval struct {
	temp       int
	start, end int
	uses       []int // instruction indices that read this temp, ascending
}

// Allocate runs the allocator over m against spec, returning the final
// instruction stream. m is not mutated.
func Allocate(m *ir.Method, spec target.Spec) *Result {
	intervals := computeIntervals(m)
	a := &allocator{
		spec:      spec,
		intervals: intervals,
		reg:       map[int]int{},   // temp -> register pool index
		regOf:     map[int]int{},   // register pool index -> temp
		slot:      map[int]int{},   // temp -> stack slot, once spilled
		free:      freeStack(spec), // LIFO: last freed popped first
	}
	return a.run(m)
}

func computeIntervals(m *ir.Method) map[int]*interval {
	result := map[int]*interval{}
	get := func(t int) *interval {
		iv, ok := result[t]
		if !ok {
			iv = &interval{temp: t, start: -1, end: -1}
			result[t] = iv
		}
		return iv
	}
	for t := 0; t < m.NumArgs; t++ {
		iv := get(t)
		iv.start = 0
	}
	for i, instr := range m.Instructions {
		if d, ok := defOf(instr); ok {
			iv := get(d)
			if iv.start < 0 {
				iv.start = i
			}
		}
		for _, s := range usesOf(instr) {
			iv := get(s)
			if iv.start < 0 {
				iv.start = i
			}
			iv.end = i
			iv.uses = append(iv.uses, i)
		}
	}
	for _, iv := range result {
		if iv.end < iv.start {
			iv.end = iv.start
		}
	}
	return result
}

func defOf(instr ir.Instruction) (int, bool) {
	switch v := instr.(type) {
	case ir.Call:
		return v.Dest, true
	case ir.Tag:
		return v.Dest, true
	case ir.Untag:
		return v.Dest, true
	case ir.Create:
		return v.Dest, true
	case ir.CreateArray:
		return v.Dest, true
	case ir.Alias:
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

func usesOf(instr ir.Instruction) []int {
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

func freeStack(spec target.Spec) []int {
	n := len(spec.AllScratchRegisters())
	stack := make([]int, n)
	for i := range stack {
		stack[i] = n - 1 - i // pool index 0 popped first
	}
	return stack
}

type allocator struct {
	spec      target.Spec
	intervals map[int]*interval
	reg       map[int]int
	regOf     map[int]int
	slot      map[int]int
	free      []int
	nextSlot  int
	peakSlot  int
	out       []ir.Instruction
}

func (a *allocator) run(m *ir.Method) *Result {
	// Incoming arguments occupy the target's argument registers in order
	// (self is arg 0). Methods whose NumArgs exceeds len(ArgRegisters)
	// need an incoming-stack-argument convention this pass does not yet
	// implement (DESIGN.md's Open Questions records this as a named scope
	// boundary, not a silent gap).
	for t := 0; t < m.NumArgs && t < len(a.spec.ArgRegisters); t++ {
		a.bindRegister(t, t)
		a.popFree(t)
	}

	for i, instr := range m.Instructions {
		a.expireBefore(i)

		if call, ok := instr.(ir.Call); ok {
			a.emitCall(i, call)
			continue
		}

		d, hasDef := defOf(instr)
		if hasDef {
			a.ensureRegister(d, i)
		}
		a.out = append(a.out, rewriteRegisters(instr, a.reg))
	}

	return &Result{Instructions: a.out, NumStackSlots: a.peakSlot}
}

// expireBefore frees registers held by temps whose interval ended before
// instruction index i, pushing them back onto the free stack so the most
// recently freed register is preferred for reuse (LIFO).
func (a *allocator) expireBefore(i int) {
	var expired []int
	for t, reg := range a.reg {
		if iv := a.intervals[t]; iv != nil && iv.end < i {
			expired = append(expired, reg)
			delete(a.reg, t)
			delete(a.regOf, t)
		}
	}
	sort.Ints(expired)
	for j := len(expired) - 1; j >= 0; j-- {
		a.free = append(a.free, expired[j])
	}
}

func (a *allocator) popFree(reg int) {
	for i, r := range a.free {
		if r == reg {
			a.free = append(a.free[:i], a.free[i+1:]...)
			return
		}
	}
}

func (a *allocator) bindRegister(temp, reg int) {
	a.reg[temp] = reg
	a.regOf[reg] = temp
}

// ensureRegister assigns temp a register, spilling the active temp with
// the furthest next use (after position i) if none is free.
func (a *allocator) ensureRegister(temp, i int) {
	if _, ok := a.reg[temp]; ok {
		return
	}
	if len(a.free) > 0 {
		reg := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		a.bindRegister(temp, reg)
		return
	}
	victim, reg := a.furthestNextUse(i)
	slot := a.assignSlot(victim)
	a.out = append(a.out, ir.Spill{Reg: reg, StackSlot: slot})
	delete(a.reg, victim)
	delete(a.regOf, victim)
	a.bindRegister(temp, reg)
}

// furthestNextUse picks the active temp whose next use (at or after i)
// is furthest away, breaking ties by lowest temp number so the result is
// deterministic regardless of map iteration order (spec.md §5).
func (a *allocator) furthestNextUse(i int) (temp, reg int) {
	temps := a.activeTemps()
	best := -1
	for _, t := range temps {
		next := a.nextUseAfter(t, i)
		if next > best {
			best = next
			temp = t
		}
	}
	return temp, a.reg[temp]
}

func (a *allocator) activeTemps() []int {
	temps := make([]int, 0, len(a.reg))
	for t := range a.reg {
		temps = append(temps, t)
	}
	sort.Ints(temps)
	return temps
}

func (a *allocator) nextUseAfter(temp, i int) int {
	iv := a.intervals[temp]
	if iv == nil {
		return -1
	}
	for _, u := range iv.uses {
		if u >= i {
			return u
		}
	}
	return iv.end
}

func (a *allocator) assignSlot(temp int) int {
	if s, ok := a.slot[temp]; ok {
		return s
	}
	s := a.nextSlot
	a.nextSlot++
	if a.nextSlot > a.peakSlot {
		a.peakSlot = a.nextSlot
	}
	a.slot[temp] = s
	return s
}

// emitCall handles a CALL site: every temp still resident in a register
// and live past the call is spilled first and unspilled immediately
// after, since every allocatable register is caller-saved (spec.md
// §4.8). Call arguments are moved into the target's argument registers
// in order; arguments beyond the register count are PUSHed right-to-left
// before the call (spec.md §4.6/§4.8). The destination receives the
// result via a MOVE from the return register.
func (a *allocator) emitCall(i int, call ir.Call) {
	argRegs := len(a.spec.ArgRegisters)

	// Capture each argument's current register before the spill loop
	// below can evict it out of a.reg — an argument temp that is also
	// live past this call is both moved into its arg register here and
	// spilled/restored around the call so its original register's value
	// survives the call too.
	argLocs := make([]int, len(call.Args))
	for idx, t := range call.Args {
		argLocs[idx] = a.reg[t]
	}

	type saved struct {
		temp, reg, slot int
	}
	var spilled []saved
	for _, t := range a.activeTemps() {
		reg := a.reg[t]
		if iv := a.intervals[t]; iv != nil && iv.end > i {
			slot := a.assignSlot(t)
			a.out = append(a.out, ir.Spill{Reg: reg, StackSlot: slot})
			spilled = append(spilled, saved{temp: t, reg: reg, slot: slot})
		}
	}
	for _, s := range spilled {
		delete(a.reg, s.temp)
		delete(a.regOf, s.temp)
		a.free = append(a.free, s.reg)
	}

	for idx := len(call.Args) - 1; idx >= argRegs; idx-- {
		a.out = append(a.out, ir.Push{Src: argLocs[idx]})
	}
	for idx := 0; idx < len(call.Args) && idx < argRegs; idx++ {
		a.out = append(a.out, ir.Move{Dst: idx, Src: argLocs[idx]})
	}

	a.out = append(a.out, ir.Call{Dest: call.Dest, Label: call.Label, Args: nil, Traceback: call.Traceback})

	for _, s := range spilled {
		reg := s.reg
		a.popFree(reg)
		a.out = append(a.out, ir.Unspill{Reg: reg, StackSlot: s.slot})
		a.bindRegister(s.temp, reg)
	}

	a.ensureRegister(call.Dest, i)
	a.out = append(a.out, ir.Move{Dst: a.reg[call.Dest], Src: ReturnRegisterSentinel})
}

func rewriteRegisters(instr ir.Instruction, reg map[int]int) ir.Instruction {
	switch v := instr.(type) {
	case ir.Tag:
		v.Dest, v.Src = reg[v.Dest], reg[v.Src]
		return v
	case ir.Untag:
		v.Dest, v.Src = reg[v.Dest], reg[v.Src]
		return v
	case ir.Create:
		v.Dest = reg[v.Dest]
		return v
	case ir.CreateArray:
		v.Dest = reg[v.Dest]
		return v
	case ir.Alias:
		v.Dest, v.Src = reg[v.Dest], reg[v.Src]
		return v
	case ir.LoadValue:
		v.Dest = reg[v.Dest]
		return v
	case ir.LoadString:
		v.Dest = reg[v.Dest]
		return v
	case ir.GetSlot:
		v.Dest, v.Object = reg[v.Dest], reg[v.Object]
		return v
	case ir.SetSlot:
		v.Object, v.Value = reg[v.Object], reg[v.Value]
		return v
	case ir.Return:
		v.Src = reg[v.Src]
		return v
	default:
		return instr
	}
}
