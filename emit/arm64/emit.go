// Package arm64 is the AArch64 counterpart of emit/x86_64. No
// original_source file covers this architecture (only target_x86_64.py
// was retrieved), so its instruction templates are invented by analogy
// from target_x86_64.py's x86_64 sequences, transliterated into AArch64
// mnemonics the same way target/arm64.go transliterates the x86_64
// register file into AAPCS64's — shift/OR/ROR tagging becomes
// LSL/ORR/ROR, PUSH/stack-slot spills become STR/LDR against the stack
// pointer, CMP/B.EQ replaces CMP/JE for dispatch.
package arm64

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/ome-lang/ome/emit"
	"github.com/ome-lang/ome/ir"
	"github.com/ome-lang/ome/program"
	"github.com/ome-lang/ome/regalloc"
	"github.com/ome-lang/ome/tags"
	"github.com/ome-lang/ome/target"
)

//go:embed prelude.s.tmpl
var preludeFS embed.FS

type preludeData struct {
	NumTagBits          int
	NumDataBits         int
	TagConstant         int
	StackPointer        string
	NurseryBumpPointer  string
	NurseryLimitPointer string
	ArgRegister0        string
	Main                string
}

// RenderPrelude is arm64's analogue of x86_64.RenderPrelude.
func RenderPrelude(spec target.Spec, mainLabel string) (string, error) {
	tmpl, err := template.ParseFS(preludeFS, "prelude.s.tmpl")
	if err != nil {
		return "", err
	}
	data := preludeData{
		NumTagBits:          spec.NumTagBits,
		NumDataBits:         64 - spec.NumTagBits,
		TagConstant:         tags.TagConstant,
		StackPointer:        spec.StackPointer,
		NurseryBumpPointer:  spec.NurseryBumpPointer,
		NurseryLimitPointer: spec.NurseryLimitPointer,
		ArgRegister0:        spec.ArgRegisters[0],
		Main:                mainLabel,
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type emitter struct {
	spec          target.Spec
	w             *emit.Writer
	tails         *emit.TailEmitter
	prefix        string
	seq           int
	numStackSlots int
}

// EmitMethod is arm64's analogue of x86_64.EmitMethod.
func EmitMethod(w *emit.Writer, tails *emit.TailEmitter, spec target.Spec, label string, res *regalloc.Result) {
	e := &emitter{spec: spec, w: w, tails: tails, prefix: label, numStackSlots: res.NumStackSlots}
	w.Label(label)
	e.enter()
	for _, instr := range res.Instructions {
		e.emitInstr(instr)
	}
}

func (e *emitter) enter() {
	if e.numStackSlots > 0 {
		e.w.Linef("sub %s, %s, #%d", e.spec.StackPointer, e.spec.StackPointer, e.numStackSlots*8)
	}
}

func (e *emitter) leave() {
	if e.numStackSlots > 0 {
		e.w.Linef("add %s, %s, #%d", e.spec.StackPointer, e.spec.StackPointer, e.numStackSlots*8)
	}
	e.w.Line("ret")
}

func (e *emitter) reg(pool int) string {
	if pool == regalloc.ReturnRegisterSentinel {
		return e.spec.ReturnRegister
	}
	return e.spec.AllScratchRegisters()[pool]
}

func (e *emitter) emitInstr(instr ir.Instruction) {
	switch v := instr.(type) {
	case ir.Tag:
		e.tag(v)
	case ir.Untag:
		e.untag(v)
	case ir.Create:
		e.create(v)
	case ir.CreateArray:
		e.createArray(v)
	case ir.Alias:
		e.move(v.Dest, v.Src)
	case ir.LoadValue:
		e.loadValue(v)
	case ir.LoadString:
		e.loadString(v)
	case ir.GetSlot:
		e.getSlot(v)
	case ir.SetSlot:
		e.setSlot(v)
	case ir.Call:
		e.call(v)
	case ir.Return:
		e.returnInstr(v)
	case ir.Spill:
		e.spill(v)
	case ir.Unspill:
		e.unspill(v)
	case ir.Move:
		e.move(v.Dst, v.Src)
	case ir.Push:
		e.push(v)
	default:
		panic(fmt.Sprintf("emit/arm64: unhandled instruction %T", instr))
	}
}

func (e *emitter) emitTagBits(reg string, tagValue int) {
	e.w.Linef("lsl %s, %s, #%d", reg, reg, e.spec.NumTagBits-3)
	e.w.Linef("orr %s, %s, #%d", reg, reg, tagValue)
	e.w.Linef("ror %s, %s, #%d", reg, reg, e.spec.NumTagBits)
}

func (e *emitter) tag(i ir.Tag) {
	dest, src := e.reg(i.Dest), e.reg(i.Src)
	if dest != src {
		e.w.Linef("mov %s, %s", dest, src)
	}
	e.emitTagBits(dest, i.TagValue)
}

func (e *emitter) untag(i ir.Untag) {
	dest, src := e.reg(i.Dest), e.reg(i.Src)
	if dest != src {
		e.w.Linef("mov %s, %s", dest, src)
	}
	e.w.Linef("lsl %s, %s, #%d", dest, dest, e.spec.NumTagBits)
	e.w.Linef("lsr %s, %s, #%d", dest, dest, e.spec.NumTagBits-3)
}

func (e *emitter) move(dst, src int) {
	d, s := e.reg(dst), e.reg(src)
	if d == s {
		return
	}
	e.w.Linef("mov %s, %s", d, s)
}

func (e *emitter) spill(i ir.Spill) {
	e.w.Linef("str %s, [%s, #%d]", e.reg(i.Reg), e.spec.StackPointer, i.StackSlot*8)
}

func (e *emitter) unspill(i ir.Unspill) {
	e.w.Linef("ldr %s, [%s, #%d]", e.reg(i.Reg), e.spec.StackPointer, i.StackSlot*8)
}

func (e *emitter) push(i ir.Push) {
	e.w.Linef("str %s, [%s, #-16]!", e.reg(i.Src), e.spec.StackPointer)
}

func (e *emitter) call(i ir.Call) {
	e.w.Linef("bl %s", i.Label)
	e.emitErrorCheck(i.Traceback)
}

// emitErrorCheck is emit/x86_64's emitErrorCheck transliterated into
// AArch64 mnemonics: TST/B.PL in place of TEST/JNS, B.MI in place of JS.
func (e *emitter) emitErrorCheck(traceback int) {
	e.seq++
	okLabel := fmt.Sprintf("%s.call_ok_%d", e.prefix, e.seq)
	e.w.Linef("tst %s, %s", e.spec.ReturnRegister, e.spec.ReturnRegister)
	e.w.Linef("b.pl %s", okLabel)
	if traceback >= 0 {
		tbLabel := fmt.Sprintf("%s.traceback_%d", e.prefix, e.seq)
		e.w.Linef("b %s", tbLabel)
		e.tails.Defer(func(w *emit.Writer) {
			w.Label(tbLabel)
			w.Linef("str %s, [sp, #-16]!", e.spec.ReturnRegister)
			w.Linef("adr %s, %s", e.spec.ArgRegisters[0], tracebackRowLabel(traceback))
			w.Line("bl OME_traceback_append")
			w.Linef("ldr %s, [sp], #16", e.spec.ReturnRegister)
			w.Linef("b %s.epilogue", e.prefix)
		})
	} else {
		e.w.Linef("b.mi %s.epilogue", e.prefix)
	}
	e.w.Label(okLabel)
}

func (e *emitter) loadValue(i ir.LoadValue) {
	dataBits := 64 - e.spec.NumTagBits
	mask := (int64(1) << uint(dataBits)) - 1
	value := (int64(i.TagValue) << uint(dataBits)) | (i.Value & mask)
	e.w.Linef("mov %s, #0x%x", e.reg(i.Dest), uint64(value))
}

func (e *emitter) loadString(i ir.LoadString) {
	dest := e.reg(i.Dest)
	e.w.Linef("adr %s, %s", dest, i.Data.Name)
	e.emitTagBits(dest, tags.TagString)
}

func (e *emitter) getSlot(i ir.GetSlot) {
	e.w.Linef("ldr %s, [%s, #%d]", e.reg(i.Dest), e.reg(i.Object), i.SlotIndex*8)
}

func (e *emitter) setSlot(i ir.SetSlot) {
	e.w.Linef("str %s, [%s, #%d]", e.reg(i.Value), e.reg(i.Object), i.SlotIndex*8)
}

func (e *emitter) emitCreate(dest string, numSlots int) {
	e.seq++
	returnLabel := fmt.Sprintf("%s.gc_return_%d", e.prefix, e.seq)
	fullLabel := fmt.Sprintf("%s.gc_full_%d", e.prefix, e.seq)

	e.w.Label(returnLabel)
	e.w.Linef("mov %s, %s", dest, e.spec.NurseryBumpPointer)
	e.w.Linef("add %s, %s, #%d", e.spec.NurseryBumpPointer, e.spec.NurseryBumpPointer, (numSlots+1)*8)
	e.w.Linef("cmp %s, %s", e.spec.NurseryBumpPointer, e.spec.NurseryLimitPointer)
	e.w.Linef("b.hs %s", fullLabel)

	e.tails.Defer(func(w *emit.Writer) {
		w.Label(fullLabel)
		w.Line("bl OME_collect_nursery")
		w.Linef("b %s", returnLabel)
	})
}

func (e *emitter) create(i ir.Create) {
	e.emitCreate(e.reg(i.Dest), i.NumSlots)
}

func (e *emitter) createArray(i ir.CreateArray) {
	e.emitCreate(e.reg(i.Dest), i.Size)
	e.w.Linef("str w%s, [%s, #-4]", stripX(e.reg(i.Dest)), e.reg(i.Dest))
}

func stripX(reg string) string {
	if len(reg) > 0 && reg[0] == 'x' {
		return reg[1:]
	}
	return reg
}

func (e *emitter) returnInstr(i ir.Return) {
	src := e.reg(i.Src)
	if src != e.spec.ReturnRegister {
		e.w.Linef("mov %s, %s", e.spec.ReturnRegister, src)
	}
	e.w.Label(e.prefix + ".epilogue")
	e.leave()
}

// EmitDispatch mirrors x86_64.EmitDispatch, substituting AArch64
// comparison/branch mnemonics for x86's cmp/jcc chain.
func EmitDispatch(w *emit.Writer, tails *emit.TailEmitter, spec target.Spec, messageLabel string, entries []emit.DispatchEntry) {
	sorted := emit.SortDispatchEntries(entries)

	anyConstant := false
	for _, en := range sorted {
		if en.Tag >= tags.MinConstantTag {
			anyConstant = true
		}
	}

	dispatchLabel := messageLabel + ".dispatch"
	constantLabel := messageLabel + ".constant"
	notUnderstoodLabel := messageLabel + ".not_understood"

	w.Label(messageLabel)
	w.Linef("lsr x0, %s, #%d", spec.ArgRegisters[0], 64-spec.NumTagBits)
	if anyConstant {
		w.Linef("cmp x0, #%d", tags.TagConstant)
		w.Linef("b.eq %s", constantLabel)
	}
	w.Label(dispatchLabel)
	for i, en := range sorted {
		if i == len(sorted)-1 {
			w.Linef("cmp x0, #0x%X", en.Tag)
			w.Linef("b.ne %s", notUnderstoodLabel)
			w.Linef("b %s", en.Label)
			continue
		}
		nextArm := fmt.Sprintf("%s.arm_%d", messageLabel, i+1)
		w.Linef("cmp x0, #0x%X", en.Tag)
		w.Linef("b.ne %s", nextArm)
		w.Linef("b %s", en.Label)
		w.Label(nextArm)
	}
	if len(sorted) == 0 {
		w.Linef("b %s", notUnderstoodLabel)
	}

	if anyConstant {
		tails.Defer(func(w *emit.Writer) {
			w.Label(constantLabel)
			w.Linef("mov w0, w%s", stripX(spec.ArgRegisters[0]))
			w.Linef("add x0, x0, #0x%x", 1<<spec.NumTagBits)
			w.Linef("b %s", dispatchLabel)
		})
	}
	tails.Defer(func(w *emit.Writer) {
		w.Label(notUnderstoodLabel)
		w.Line("b OME_not_understood")
	})
}
