package emit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-lang/ome/emit"
	"github.com/ome-lang/ome/ir"
)

func TestRenderDebugProducesGofmtCleanSource(t *testing.T) {
	m := ir.NewMethod("test", 1)
	sum := m.NewTemp()
	m.Emit(ir.LoadValue{Dest: sum, TagValue: 1, Value: 5})
	m.Emit(ir.Return{Src: sum})

	out, err := emit.RenderDebug("OME_method_5_test", m)
	require.NoError(t, err)
	assert.Contains(t, out, "func OME_method_5_test(t0 int) int {")
	assert.Contains(t, out, "t1 := loadValue(1, 5)")
	assert.Contains(t, out, "return t1")
}
