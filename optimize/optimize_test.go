package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-lang/ome/ir"
	"github.com/ome-lang/ome/optimize"
)

func TestEliminateAliasesChasesChainsAndRewritesInputs(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.Emit(ir.LoadValue{Dest: m.NewTemp(), TagValue: 1, Value: 10}) // t1
	m.Emit(ir.Alias{Dest: m.NewTemp(), Src: 1})                     // t2 = alias t1
	m.Emit(ir.Alias{Dest: m.NewTemp(), Src: 2})                     // t3 = alias t2
	m.Emit(ir.Return{Src: 3})

	optimize.EliminateAliases(m)

	for _, instr := range m.Instructions {
		_, isAlias := instr.(ir.Alias)
		assert.False(t, isAlias, "all ALIAS instructions should be eliminated")
	}
	ret, ok := m.Instructions[len(m.Instructions)-1].(ir.Return)
	require.True(t, ok)
	assert.Equal(t, 1, ret.Src, "return should be rewritten to the alias chain's root")
}

func TestSinkConstantsMovesSingleUseLoadToJustBeforeUse(t *testing.T) {
	m := ir.NewMethod("test", 1)
	load := m.NewTemp()
	m.Emit(ir.LoadValue{Dest: load, TagValue: 1, Value: 99})
	other := m.NewTemp()
	m.Emit(ir.LoadValue{Dest: other, TagValue: 1, Value: 1})
	m.Emit(ir.Tag{Dest: m.NewTemp(), Src: load, TagValue: 1})

	optimize.SinkConstants(m)

	var loadIdx, useIdx int
	for i, instr := range m.Instructions {
		if lv, ok := instr.(ir.LoadValue); ok && lv.Value == 99 {
			loadIdx = i
		}
		if tg, ok := instr.(ir.Tag); ok && tg.Src == load {
			useIdx = i
		}
	}
	assert.Equal(t, useIdx-1, loadIdx, "the load should sit immediately before its only use")
}

func TestSinkConstantsNeverCrossesACallBoundary(t *testing.T) {
	m := ir.NewMethod("test", 1)
	load := m.NewTemp()
	m.Emit(ir.LoadValue{Dest: load, TagValue: 1, Value: 7})
	m.Emit(ir.Call{Dest: m.NewTemp(), Label: "OME_message_print", Args: []int{0}, Traceback: -1})
	m.Emit(ir.Return{Src: load})

	before := len(m.Instructions)
	optimize.SinkConstants(m)
	require.Equal(t, before, len(m.Instructions))

	loadIdx, callIdx := -1, -1
	for i, instr := range m.Instructions {
		switch instr.(type) {
		case ir.LoadValue:
			loadIdx = i
		case ir.Call:
			callIdx = i
		}
	}
	assert.Less(t, loadIdx, callIdx, "load must stay before the call, not sink across it")
}

func TestEliminateRedundantUntagsAliasesSecondUntag(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.Emit(ir.Untag{Dest: m.NewTemp(), Src: 0})
	m.Emit(ir.Untag{Dest: m.NewTemp(), Src: 0})

	optimize.EliminateRedundantUntags(m)

	_, firstIsUntag := m.Instructions[0].(ir.Untag)
	assert.True(t, firstIsUntag)
	second, ok := m.Instructions[1].(ir.Alias)
	require.True(t, ok, "second UNTAG of the same source should become an ALIAS")
	assert.Equal(t, m.Instructions[0].(ir.Untag).Dest, second.Src)
}

func TestEliminateRedundantUntagsInvalidatesAfterRetag(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.Emit(ir.Untag{Dest: m.NewTemp(), Src: 0})
	m.Emit(ir.GetSlot{Dest: 0, Object: 0, SlotIndex: 0}) // rebinds register 0
	m.Emit(ir.Untag{Dest: m.NewTemp(), Src: 0})

	optimize.EliminateRedundantUntags(m)

	var untags int
	for _, instr := range m.Instructions {
		if _, ok := instr.(ir.Untag); ok {
			untags++
		}
	}
	assert.Equal(t, 2, untags, "untag after a GET_SLOT rebinding its source must not be treated as redundant")
}

func TestEliminateRedundantUntagsElidesChainedUntagOfAlreadyUntaggedValue(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.Emit(ir.Untag{Dest: m.NewTemp(), Src: 0}) // t1 = UNTAG t0 (first, genuine untag)
	m.Emit(ir.Untag{Dest: m.NewTemp(), Src: 1}) // t2 = UNTAG t1 -- t1 is already untagged

	optimize.EliminateRedundantUntags(m)

	_, firstIsUntag := m.Instructions[0].(ir.Untag)
	assert.True(t, firstIsUntag, "the genuine untag of a tagged value must survive")
	second, ok := m.Instructions[1].(ir.Alias)
	require.True(t, ok, "untagging an already-untagged register must be elided to an ALIAS")
	assert.Equal(t, 1, second.Src, "the alias should just copy the already-untagged register through")
}

func TestEliminateRedundantUntagsPropagatesUntaggedThroughAlias(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.Emit(ir.Untag{Dest: m.NewTemp(), Src: 0}) // t1 = UNTAG t0
	m.Emit(ir.Alias{Dest: m.NewTemp(), Src: 1}) // t2 = ALIAS t1 (still untagged)
	m.Emit(ir.Untag{Dest: m.NewTemp(), Src: 2}) // t3 = UNTAG t2 -- t2 is already untagged via the alias

	optimize.EliminateRedundantUntags(m)

	var untags int
	for _, instr := range m.Instructions {
		if _, ok := instr.(ir.Untag); ok {
			untags++
		}
	}
	assert.Equal(t, 1, untags, "the untag reached only through an ALIAS of an untagged value must still be elided")
}

func TestRenumberLocalsPreservesArgsAndDensifiesTemps(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.NumLocals = 1
	t5 := 5
	m.NumLocals = 6
	m.Emit(ir.LoadValue{Dest: t5, TagValue: 1, Value: 3})
	m.Emit(ir.Return{Src: t5})

	optimize.RenumberLocals(m)

	load, ok := m.Instructions[0].(ir.LoadValue)
	require.True(t, ok)
	assert.Equal(t, 1, load.Dest, "first renumbered temp should immediately follow the arg registers")
	ret := m.Instructions[1].(ir.Return)
	assert.Equal(t, load.Dest, ret.Src)
}

func TestRunLevelNoneLeavesMethodUnchanged(t *testing.T) {
	m := ir.NewMethod("test", 1)
	m.Emit(ir.Alias{Dest: m.NewTemp(), Src: 0})
	before := len(m.Instructions)

	optimize.Run(m, optimize.LevelNone)

	assert.Equal(t, before, len(m.Instructions))
}
