package c_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ome-lang/ome/emit"
	c "github.com/ome-lang/ome/emit/c"
	"github.com/ome-lang/ome/ir"
)

func TestEmitMethodDeclaresParamsAndLocals(t *testing.T) {
	m := ir.NewMethod("test", 1)
	sum := m.NewTemp()
	m.Emit(ir.LoadValue{Dest: sum, TagValue: 1, Value: 5})
	m.Emit(ir.Return{Src: sum})

	w := emit.NewWriter()
	c.EmitMethod(w, "OME_method_5_test", m)

	out := w.String()
	assert.Contains(t, out, "static unsigned long OME_method_5_test(unsigned long t0)")
	assert.Contains(t, out, "unsigned long t1;")
	assert.Contains(t, out, "t1 = OME_VALUE(5L, 1);")
	assert.Contains(t, out, "return t1;")
}

func TestEmitMethodRendersSlotAccessAsPointerArithmetic(t *testing.T) {
	m := ir.NewMethod("test", 1)
	v := m.NewTemp()
	m.Emit(ir.GetSlot{Dest: v, Object: 0, SlotIndex: 2})
	m.Emit(ir.Return{Src: v})

	w := emit.NewWriter()
	c.EmitMethod(w, "OME_method_5_get", m)

	assert.Contains(t, w.String(), "t1 = ((unsigned long *)OME_UNTAG(t0))[2];")
}

func TestPreludeDefinesTaggedValueMacros(t *testing.T) {
	assert.Contains(t, c.Prelude, "#define OME_VALUE")
	assert.Contains(t, c.Prelude, "#define OME_UNTAG")
}
