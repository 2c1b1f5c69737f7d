package x86_64_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-lang/ome/emit"
	x86_64 "github.com/ome-lang/ome/emit/x86_64"
	"github.com/ome-lang/ome/ir"
	"github.com/ome-lang/ome/program"
	"github.com/ome-lang/ome/regalloc"
	"github.com/ome-lang/ome/target"
)

func TestEmitMethodReturnsSelfMovesIntoRax(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.Emit(ir.Return{Src: 0})
	res := regalloc.Allocate(m, target.X86_64)

	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	x86_64.EmitMethod(w, tails, target.X86_64, "OME_method_5_test", res)

	out := w.String()
	assert.Contains(t, out, "OME_method_5_test:")
	assert.Contains(t, out, "mov rax, rdi")
	assert.Contains(t, out, "ret")
}

func TestEmitMethodCreateQueuesGCSlowPathOnTails(t *testing.T) {
	m := ir.NewMethod("test", 1)
	dest := m.NewTemp()
	m.Emit(ir.Create{Dest: dest, TagValue: 10, NumSlots: 2})
	m.Emit(ir.Return{Src: dest})
	res := regalloc.Allocate(m, target.X86_64)

	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	x86_64.EmitMethod(w, tails, target.X86_64, "OME_method_5_test", res)

	require.NotEmpty(t, w.String())
	assert.Contains(t, w.String(), "add rbx,")
	assert.Contains(t, w.String(), "jae")

	tailOut := emit.NewWriter()
	tails.Flush(tailOut)
	assert.Contains(t, tailOut.String(), "call OME_collect_nursery")
}

func TestEmitDispatchSortsArmsAndFallsThroughToNotUnderstood(t *testing.T) {
	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	x86_64.EmitDispatch(w, tails, target.X86_64, "OME_message_plus_", []emit.DispatchEntry{
		{Tag: 20, Label: "OME_method_20_plus_"},
		{Tag: 10, Label: "OME_method_10_plus_"},
	})

	out := w.String()
	firstIdx := strings.Index(out, "0xA")
	secondIdx := strings.Index(out, "0x14")
	require.True(t, firstIdx >= 0 && secondIdx >= 0)
	assert.Less(t, firstIdx, secondIdx, "arms must be emitted in ascending tag order")

	tailOut := emit.NewWriter()
	tails.Flush(tailOut)
	assert.Contains(t, tailOut.String(), "jmp OME_not_understood")
}

func TestRenderPreludeSubstitutesMainLabel(t *testing.T) {
	out, err := x86_64.RenderPrelude(target.X86_64, "OME_method_5_main")
	require.NoError(t, err)
	assert.Contains(t, out, "call OME_method_5_main")
}

func TestEmitCallWithNoTracebackJumpsStraightToEpilogueOnError(t *testing.T) {
	m := ir.NewMethod("test", 1)
	dest := m.NewTemp()
	m.Emit(ir.Call{Dest: dest, Label: "OME_message_plus_", Traceback: -1})
	m.Emit(ir.Return{Src: dest})
	res := regalloc.Allocate(m, target.X86_64)

	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	x86_64.EmitMethod(w, tails, target.X86_64, "OME_method_5_test", res)

	out := w.String()
	assert.Contains(t, out, "call OME_message_plus_")
	assert.Contains(t, out, "test rax, rax")
	assert.Contains(t, out, "js OME_method_5_test.epilogue")
	assert.Contains(t, out, "OME_method_5_test.epilogue:")
}

func TestEmitCallWithTracebackQueuesAppendTrampoline(t *testing.T) {
	m := ir.NewMethod("test", 1)
	dest := m.NewTemp()
	m.Emit(ir.Call{Dest: dest, Label: "OME_message_plus_", Traceback: 3})
	m.Emit(ir.Return{Src: dest})
	res := regalloc.Allocate(m, target.X86_64)

	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	x86_64.EmitMethod(w, tails, target.X86_64, "OME_method_5_test", res)

	tailOut := emit.NewWriter()
	tails.Flush(tailOut)
	out := tailOut.String()
	assert.Contains(t, out, "lea rdi, [rel OME_traceback_row_3]")
	assert.Contains(t, out, "call OME_traceback_append")
	assert.Contains(t, out, "jmp OME_method_5_test.epilogue")
}

func TestEmitTracebackTableRendersOneRowPerEntry(t *testing.T) {
	w := emit.NewWriter()
	x86_64.EmitTracebackTable(w, []program.TraceBackEntry{
		{Index: 0, MethodName: "plus:", Line: 3, Column: 5},
	})

	out := w.String()
	assert.Contains(t, out, "OME_traceback_row_0:")
	assert.Contains(t, out, "OME_traceback_row_0.name:")
	assert.Contains(t, out, "dq 3")
	assert.Contains(t, out, "dq 5")
}

func TestEmitTracebackTableEmptyWritesNothing(t *testing.T) {
	w := emit.NewWriter()
	x86_64.EmitTracebackTable(w, nil)
	assert.Empty(t, w.String())
}
