package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/errs"
)

func TestNewAllocatorRanges(t *testing.T) {
	a := NewAllocator()
	assert.Equal(t, len(opaqueNames), a.PointerTagThreshold())
	assert.Equal(t, len(opaqueNames)+len(pointerNames), a.blockTagStart)
}

func TestBuiltinConstantIDsAreFixed(t *testing.T) {
	a := NewAllocator()
	tests := []struct {
		name string
		want int
	}{
		{"False", ConstantFalse},
		{"True", ConstantTrue},
		{"Empty", ConstantEmpty},
		{"BuiltIn", ConstantBuiltIn},
		{"Stack-Overflow", ConstantStackOverflow},
		{"Not-Understood", ConstantNotUnderstood},
		{"Type-Error", ConstantTypeError},
		{"Index-Error", ConstantIndexError},
		{"Overflow", ConstantOverflow},
		{"Divide-By-Zero", ConstantDivideByZero},
	}
	for _, tt := range tests {
		got, err := a.InternConstant(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestInternConstantIsByValue(t *testing.T) {
	a := NewAllocator()
	first, err := a.InternConstant("True")
	require.NoError(t, err)
	second, err := a.InternConstant("True")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fresh, err := a.InternConstant("a-user-constant")
	require.NoError(t, err)
	assert.NotEqual(t, first, fresh)
	again, err := a.InternConstant("a-user-constant")
	require.NoError(t, err)
	assert.Equal(t, fresh, again)
}

func TestAllocateBlockTagsAssignsDisjointRanges(t *testing.T) {
	a := NewAllocator()
	plain1 := &ast.Block{}
	plain2 := &ast.Block{}
	constant := &ast.Block{IsConstant: true}

	require.NoError(t, a.AllocateBlockTags([]*ast.Block{plain1, constant, plain2}))

	require.True(t, plain1.Tag.Assigned)
	require.False(t, plain1.Tag.IsConstant)
	require.True(t, plain2.Tag.Assigned)
	require.False(t, plain2.Tag.IsConstant)
	assert.NotEqual(t, plain1.Tag.PointerTag, plain2.Tag.PointerTag)
	assert.GreaterOrEqual(t, plain1.Tag.PointerTag, a.blockTagStart)
	assert.Less(t, plain1.Tag.PointerTag, MinConstantTag)
	assert.Less(t, plain2.Tag.PointerTag, MinConstantTag)

	require.True(t, constant.Tag.Assigned)
	require.True(t, constant.Tag.IsConstant)
	assert.GreaterOrEqual(t, constant.Tag.ConstantID, len(builtinConstantNames))
}

func TestAllocateBlockTagsExhaustion(t *testing.T) {
	a := NewAllocator()
	a.nextTag = MinConstantTag // simulate the range already filled up

	err := a.AllocateBlockTags([]*ast.Block{{}})
	require.Error(t, err)
	var compileErr errs.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, errs.CategoryTagSpace, compileErr.Category())
}

func TestTagOfReportsAssignedNames(t *testing.T) {
	a := NewAllocator()
	name, ok := a.TagOf(0)
	require.True(t, ok)
	assert.Equal(t, "Constant", name)

	_, ok = a.TagOf(-1)
	assert.False(t, ok)
}
