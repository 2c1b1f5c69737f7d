// Package c is the secondary target emitter of SPEC_FULL.md's domain
// stack, promoting original_source/ome/target/lang_c/backend_file.py's
// stub C backend into a real one. Grounded on the teacher's genc.go,
// which plays the identical role relative to gen_go.go (a second, simpler
// backend sharing the same IR walk as the primary one). Unlike
// emit/x86_64 and emit/arm64 this backend needs no register allocator
// pass: a C function already has as many local variables as it likes, so
// EmitMethod walks the optimised (pre-regalloc) ir.Method directly, one C
// local per temp.
package c

import (
	"fmt"

	"github.com/ome-lang/ome/emit"
	"github.com/ome-lang/ome/ir"
	"github.com/ome-lang/ome/tags"
)

// Prelude is the runtime support every emitted translation unit needs:
// the tagged-value macros and the object-creation helpers the instruction
// walk calls into. Grounded on target_x86_64.py's builtin_code defines:
// the tagged-value macros are restated as C #define macros, and object
// creation (OME_create, OME_create_array) as static C functions.
const Prelude = `/* generated by the ome compiler's C backend */
#include <stdlib.h>

#define OME_NUM_TAG_BITS 8
#define OME_NUM_DATA_BITS (64 - OME_NUM_TAG_BITS)
#define OME_VALUE(value, tag) (((unsigned long)(tag) << OME_NUM_DATA_BITS) | (unsigned long)(value))
#define OME_UNTAG(v) ((v) & ((1UL << OME_NUM_DATA_BITS) - 1))
#define OME_TAG_OF(v) ((v) >> OME_NUM_DATA_BITS)

static unsigned long *OME_create(int tag, int num_slots) {
	unsigned long *obj = calloc(num_slots + 1, sizeof(unsigned long));
	obj[0] = (unsigned long)tag;
	return obj + 1;
}

static unsigned long *OME_create_array(int size) {
	unsigned long *obj = OME_create(0, size);
	((int *)obj)[-1] = size;
	return obj;
}
`

// EmitMethod writes label's C function definition into w: one parameter
// per incoming argument (self is t0), one declared local per remaining
// temp, and one C statement per IR instruction in order.
func EmitMethod(w *emit.Writer, label string, m *ir.Method) {
	w.Linef("static unsigned long %s(%s) {", label, paramList(m.NumArgs))
	w.Indent()
	if m.NumLocals > m.NumArgs {
		w.Line(localDecls(m.NumArgs, m.NumLocals))
	}
	for _, instr := range m.Instructions {
		emitInstr(w, instr)
	}
	w.Unindent()
	w.Line("}")
}

func paramList(numArgs int) string {
	if numArgs == 0 {
		return "void"
	}
	s := ""
	for i := 0; i < numArgs; i++ {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("unsigned long t%d", i)
	}
	return s
}

func localDecls(from, to int) string {
	s := "unsigned long "
	for i := from; i < to; i++ {
		if i > from {
			s += ", "
		}
		s += fmt.Sprintf("t%d", i)
	}
	return s + ";"
}

func emitInstr(w *emit.Writer, instr ir.Instruction) {
	switch v := instr.(type) {
	case ir.Call:
		w.Linef("t%d = %s(%s);", v.Dest, v.Label, argList(v.Args))
	case ir.Tag:
		w.Linef("t%d = OME_VALUE(t%d, %d);", v.Dest, v.Src, v.TagValue)
	case ir.Untag:
		w.Linef("t%d = OME_UNTAG(t%d);", v.Dest, v.Src)
	case ir.Create:
		w.Linef("t%d = (unsigned long)OME_create(%d, %d);", v.Dest, v.TagValue, v.NumSlots)
	case ir.CreateArray:
		w.Linef("t%d = (unsigned long)OME_create_array(%d);", v.Dest, v.Size)
	case ir.Alias:
		w.Linef("t%d = t%d;", v.Dest, v.Src)
	case ir.LoadValue:
		w.Linef("t%d = OME_VALUE(%dL, %d);", v.Dest, v.Value, v.TagValue)
	case ir.LoadString:
		w.Linef("t%d = OME_VALUE((unsigned long)%s, %d);", v.Dest, v.Data.Name, tags.TagString)
	case ir.GetSlot:
		w.Linef("t%d = ((unsigned long *)OME_UNTAG(t%d))[%d];", v.Dest, v.Object, v.SlotIndex)
	case ir.SetSlot:
		w.Linef("((unsigned long *)OME_UNTAG(t%d))[%d] = t%d;", v.Object, v.SlotIndex, v.Value)
	case ir.Return:
		w.Linef("return t%d;", v.Src)
	default:
		panic(fmt.Sprintf("emit/c: unhandled instruction %T (register-allocated IR is not valid input to this backend)", instr))
	}
}

func argList(args []int) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("t%d", a)
	}
	return s
}
