package emit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ome-lang/ome/emit"
)

func TestWriterIndentsNestedLines(t *testing.T) {
	w := emit.NewWriter()
	w.Line("top")
	w.Indent()
	w.Line("nested")
	w.Unindent()
	w.Line("top again")

	assert.Equal(t, "top\n\tnested\ntop again\n", w.String())
}

func TestWriterUnindentNeverGoesNegative(t *testing.T) {
	w := emit.NewWriter()
	w.Unindent()
	w.Line("still at zero")
	assert.Equal(t, "still at zero\n", w.String())
}

func TestWriterLabelUsesColonSyntax(t *testing.T) {
	w := emit.NewWriter()
	w.Label("OME_main")
	assert.Equal(t, "OME_main:\n", w.String())
}

func TestTailEmitterFlushesInQueueOrder(t *testing.T) {
	tails := emit.NewTailEmitter()
	tails.Defer(func(w *emit.Writer) { w.Line("first") })
	tails.Defer(func(w *emit.Writer) { w.Line("second") })

	w := emit.NewWriter()
	tails.Flush(w)

	assert.Equal(t, "first\nsecond\n", w.String())
}

func TestTailEmitterFlushClearsTheQueue(t *testing.T) {
	tails := emit.NewTailEmitter()
	tails.Defer(func(w *emit.Writer) { w.Line("once") })

	w1, w2 := emit.NewWriter(), emit.NewWriter()
	tails.Flush(w1)
	tails.Flush(w2)

	assert.Equal(t, "once\n", w1.String())
	assert.Equal(t, "", w2.String())
}
