package arm64_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-lang/ome/emit"
	arm64 "github.com/ome-lang/ome/emit/arm64"
	"github.com/ome-lang/ome/ir"
	"github.com/ome-lang/ome/program"
	"github.com/ome-lang/ome/regalloc"
	"github.com/ome-lang/ome/target"
)

func TestEmitMethodReturnsSelfMovesIntoX0(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.Emit(ir.Return{Src: 0})
	res := regalloc.Allocate(m, target.ARM64)

	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	arm64.EmitMethod(w, tails, target.ARM64, "OME_method_5_test", res)

	out := w.String()
	assert.Contains(t, out, "OME_method_5_test:")
	assert.Contains(t, out, "ret")
}

func TestEmitDispatchOrdersArmsAscending(t *testing.T) {
	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	arm64.EmitDispatch(w, tails, target.ARM64, "OME_message_plus_", []emit.DispatchEntry{
		{Tag: 20, Label: "OME_method_20_plus_"},
		{Tag: 10, Label: "OME_method_10_plus_"},
	})

	out := w.String()
	firstIdx := strings.Index(out, "#0xA")
	secondIdx := strings.Index(out, "#0x14")
	require.True(t, firstIdx >= 0 && secondIdx >= 0)
	assert.Less(t, firstIdx, secondIdx, "arms must be emitted in ascending tag order")
}

func TestRenderPreludeSubstitutesMainLabel(t *testing.T) {
	out, err := arm64.RenderPrelude(target.ARM64, "OME_method_5_main")
	require.NoError(t, err)
	assert.Contains(t, out, "bl OME_method_5_main")
}

func TestEmitCallWithNoTracebackJumpsStraightToEpilogueOnError(t *testing.T) {
	m := ir.NewMethod("test", 1)
	dest := m.NewTemp()
	m.Emit(ir.Call{Dest: dest, Label: "OME_message_plus_", Traceback: -1})
	m.Emit(ir.Return{Src: dest})
	res := regalloc.Allocate(m, target.ARM64)

	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	arm64.EmitMethod(w, tails, target.ARM64, "OME_method_5_test", res)

	out := w.String()
	assert.Contains(t, out, "bl OME_message_plus_")
	assert.Contains(t, out, "tst x0, x0")
	assert.Contains(t, out, "b.mi OME_method_5_test.epilogue")
	assert.Contains(t, out, "OME_method_5_test.epilogue:")
}

func TestEmitCallWithTracebackQueuesAppendTrampoline(t *testing.T) {
	m := ir.NewMethod("test", 1)
	dest := m.NewTemp()
	m.Emit(ir.Call{Dest: dest, Label: "OME_message_plus_", Traceback: 3})
	m.Emit(ir.Return{Src: dest})
	res := regalloc.Allocate(m, target.ARM64)

	w := emit.NewWriter()
	tails := emit.NewTailEmitter()
	arm64.EmitMethod(w, tails, target.ARM64, "OME_method_5_test", res)

	tailOut := emit.NewWriter()
	tails.Flush(tailOut)
	out := tailOut.String()
	assert.Contains(t, out, "adr x0, OME_traceback_row_3")
	assert.Contains(t, out, "bl OME_traceback_append")
	assert.Contains(t, out, "b OME_method_5_test.epilogue")
}

func TestEmitTracebackTableRendersOneRowPerEntry(t *testing.T) {
	w := emit.NewWriter()
	arm64.EmitTracebackTable(w, []program.TraceBackEntry{
		{Index: 0, MethodName: "plus:", Line: 3, Column: 5},
	})

	out := w.String()
	assert.Contains(t, out, "OME_traceback_row_0:")
	assert.Contains(t, out, ".quad 3")
	assert.Contains(t, out, ".quad 5")
}
