// Package x86_64 implements the primary textual target emitter of
// spec.md §4.9 for the x86_64 architecture, grounded directly on
// original_source/ome/target_x86_64.py's per-instruction emit_* methods
// and nasm output, and on the teacher's embed+text/template pattern
// (gen_go.go's go:embed parser.go / genc.go's go:embed c/vm.c) for the
// runtime prelude.
package x86_64

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

// RenderPrelude fills prelude.s.tmpl with spec's register file and the
// resolved label of the program's main method.
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

// emitter holds the per-method state needed to render one method's
// instruction stream: which Writer/TailEmitter it writes to, the target
// register file, a label prefix for this method's GC-slow-path labels
// (kept unique across methods), and a running count of PUSHed overflow
// call arguments awaiting the matching CALL's stack cleanup.
type emitter struct {
	spec          target.Spec
	w             *emit.Writer
	tails         *emit.TailEmitter
	prefix        string
	seq           int
	pendingPushes int
	numStackSlots int
}

// EmitMethod writes label's full body (prologue, instructions, epilogue)
// into w, queuing any CREATE slow paths onto tails.
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
		e.w.Linef("sub %s, %d", e.spec.StackPointer, e.numStackSlots*8)
	}
}

func (e *emitter) leave() {
	if e.numStackSlots > 0 {
		e.w.Linef("add %s, %d", e.spec.StackPointer, e.numStackSlots*8)
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
		panic(fmt.Sprintf("emit/x86_64: unhandled instruction %T", instr))
	}
}

// emitTagBits applies target_x86_64.py's emit_tag: shift the payload up
// into the tag field, OR in the tag, then rotate it back so the tag lands
// in the high bits without a second shift.
func (e *emitter) emitTagBits(reg string, tagValue int) {
	e.w.Linef("shl %s, %d", reg, e.spec.NumTagBits-3)
	e.w.Linef("or %s, %d", reg, tagValue)
	e.w.Linef("ror %s, %d", reg, e.spec.NumTagBits)
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
	e.w.Linef("shl %s, %d", dest, e.spec.NumTagBits)
	e.w.Linef("shr %s, %d", dest, e.spec.NumTagBits-3)
}

func (e *emitter) move(dst, src int) {
	d, s := e.reg(dst), e.reg(src)
	if d == s {
		return
	}
	e.w.Linef("mov %s, %s", d, s)
}

func (e *emitter) spill(i ir.Spill) {
	e.w.Linef("mov [%s+%d], %s", e.spec.StackPointer, i.StackSlot*8, e.reg(i.Reg))
}

func (e *emitter) unspill(i ir.Unspill) {
	e.w.Linef("mov %s, [%s+%d]", e.reg(i.Reg), e.spec.StackPointer, i.StackSlot*8)
}

func (e *emitter) push(i ir.Push) {
	e.pendingPushes++
	e.w.Linef("push %s", e.reg(i.Src))
}

func (e *emitter) call(i ir.Call) {
	e.w.Linef("call %s", i.Label)
	if e.pendingPushes > 0 {
		e.w.Linef("add %s, %d", e.spec.StackPointer, e.pendingPushes*8)
	}
	e.pendingPushes = 0
	e.emitErrorCheck(i.Traceback)
}

// emitErrorCheck implements spec.md §6's error-propagation contract: a
// callee signals error by returning a tagged value whose sign bit is
// set, so every CALL is immediately followed by a sign test. On error,
// a call with traceback_info jumps out of line to a trampoline that
// records the call site's traceback row before falling into the
// method's epilogue; a call with none jumps straight to the epilogue.
// Either way the return register already holds the callee's
// error-tagged value, so the epilogue needs no further mov before
// propagating it to this method's own caller.
func (e *emitter) emitErrorCheck(traceback int) {
	e.seq++
	okLabel := fmt.Sprintf("%s.call_ok_%d", e.prefix, e.seq)
	e.w.Linef("test %s, %s", e.spec.ReturnRegister, e.spec.ReturnRegister)
	e.w.Linef("jns %s", okLabel)
	if traceback >= 0 {
		tbLabel := fmt.Sprintf("%s.traceback_%d", e.prefix, e.seq)
		e.w.Linef("jmp %s", tbLabel)
		e.tails.Defer(func(w *emit.Writer) {
			w.Label(tbLabel)
			w.Linef("push %s", e.spec.ReturnRegister)
			w.Linef("lea %s, [rel %s]", e.spec.ArgRegisters[0], tracebackRowLabel(traceback))
			w.Line("call OME_traceback_append")
			w.Linef("pop %s", e.spec.ReturnRegister)
			w.Linef("jmp %s.epilogue", e.prefix)
		})
	} else {
		e.w.Linef("js %s.epilogue", e.prefix)
	}
	e.w.Label(okLabel)
}

func (e *emitter) loadValue(i ir.LoadValue) {
	dataBits := 64 - e.spec.NumTagBits
	mask := (int64(1) << uint(dataBits)) - 1
	value := (int64(i.TagValue) << uint(dataBits)) | (i.Value & mask)
	e.w.Linef("mov %s, 0x%x", e.reg(i.Dest), uint64(value))
}

func (e *emitter) loadString(i ir.LoadString) {
	dest := e.reg(i.Dest)
	e.w.Linef("lea %s, [rel %s]", dest, i.Data.Name)
	e.emitTagBits(dest, tags.TagString)
}

func (e *emitter) getSlot(i ir.GetSlot) {
	e.w.Linef("mov %s, [%s+%d]", e.reg(i.Dest), e.reg(i.Object), i.SlotIndex*8)
}

func (e *emitter) setSlot(i ir.SetSlot) {
	e.w.Linef("mov [%s+%d], %s", e.reg(i.Object), i.SlotIndex*8, e.reg(i.Value))
}

// emitCreate implements target_x86_64.py's emit_create: the fast path
// bumps the nursery pointer and checks it against the limit inline; the
// GC call and retry live in a tail block so the common case stays
// straight-line code.
func (e *emitter) emitCreate(dest string, numSlots int) {
	e.seq++
	returnLabel := fmt.Sprintf("%s.gc_return_%d", e.prefix, e.seq)
	fullLabel := fmt.Sprintf("%s.gc_full_%d", e.prefix, e.seq)

	e.w.Label(returnLabel)
	e.w.Linef("mov %s, %s", dest, e.spec.NurseryBumpPointer)
	e.w.Linef("add %s, %d", e.spec.NurseryBumpPointer, (numSlots+1)*8)
	e.w.Linef("cmp %s, %s", e.spec.NurseryBumpPointer, e.spec.NurseryLimitPointer)
	e.w.Linef("jae %s", fullLabel)

	e.tails.Defer(func(w *emit.Writer) {
		w.Label(fullLabel)
		w.Line("call OME_collect_nursery")
		w.Linef("jmp %s", returnLabel)
	})
}

func (e *emitter) create(i ir.Create) {
	e.emitCreate(e.reg(i.Dest), i.NumSlots)
}

func (e *emitter) createArray(i ir.CreateArray) {
	e.emitCreate(e.reg(i.Dest), i.Size)
	e.w.Linef("mov dword [%s-4], %d", e.reg(i.Dest), i.Size)
}

func (e *emitter) returnInstr(i ir.Return) {
	src := e.reg(i.Src)
	if src != e.spec.ReturnRegister {
		e.w.Linef("mov %s, %s", e.spec.ReturnRegister, src)
	}
	// Early-error jumps from emitErrorCheck land here, after the return
	// register already holds the value to propagate.
	e.w.Label(e.prefix + ".epilogue")
	e.leave()
}

// EmitDispatch writes a dynamically-dispatched message's comparison
// chain, grounded on target_x86_64.py's emit_dispatch /
// emit_dispatch_compare_eq: extract the receiver's tag, route
// constant-tagged receivers through a synthetic tag derived from their
// payload, then walk entries (sorted ascending) with an equality test per
// arm, falling through to a not-understood trampoline. The original's
// emit_dispatch_compare_gte builds a true binary-search tree over the
// sorted arms; this emitter uses a linear chain instead — simpler to keep
// deterministic and correct without a way to exercise the generated
// assembly, at the cost of O(n) comparisons instead of O(log n).
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
	w.Linef("mov rax, %s", spec.ArgRegisters[0])
	w.Linef("shr rax, %d", 64-spec.NumTagBits)
	if anyConstant {
		w.Linef("cmp rax, %d", tags.TagConstant)
		w.Linef("je %s", constantLabel)
	}
	w.Label(dispatchLabel)
	for i, en := range sorted {
		if i == len(sorted)-1 {
			w.Linef("cmp rax, 0x%X", en.Tag)
			w.Linef("jne %s", notUnderstoodLabel)
			w.Linef("jmp %s", en.Label)
			continue
		}
		nextArm := fmt.Sprintf("%s.arm_%d", messageLabel, i+1)
		w.Linef("cmp rax, 0x%X", en.Tag)
		w.Linef("jne %s", nextArm)
		w.Linef("jmp %s", en.Label)
		w.Label(nextArm)
	}
	if len(sorted) == 0 {
		w.Linef("jmp %s", notUnderstoodLabel)
	}

	if anyConstant {
		tails.Defer(func(w *emit.Writer) {
			w.Label(constantLabel)
			w.Line("xor rax, rax")
			w.Linef("mov eax, %s", narrow32(spec.ArgRegisters[0]))
			w.Linef("add rax, 0x%x", 1<<spec.NumTagBits)
			w.Linef("jmp %s", dispatchLabel)
		})
	}
	tails.Defer(func(w *emit.Writer) {
		w.Label(notUnderstoodLabel)
		w.Line("jmp OME_not_understood")
	})
}

// narrow32 maps a 64-bit register name to its 32-bit sub-register name,
// needed by the constant-tag synthesis (target_x86_64.py's "mov eax,
// edi"): it reads the receiver's low 32 bits as the constant's payload.
func narrow32(reg64 string) string {
	if n, ok := narrow32Names[reg64]; ok {
		return n
	}
	return reg64
}

var narrow32Names = map[string]string{
	"rax": "eax", "rbx": "ebx", "rcx": "ecx", "rdx": "edx",
	"rsi": "esi", "rdi": "edi", "rbp": "ebp", "rsp": "esp",
	"r8": "r8d", "r9": "r9d", "r10": "r10d", "r11": "r11d",
	"r12": "r12d", "r13": "r13d", "r14": "r14d", "r15": "r15d",
}
