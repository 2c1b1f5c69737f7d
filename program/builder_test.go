package program_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/parser"
	"github.com/ome-lang/ome/program"
	"github.com/ome-lang/ome/resolve"
	"github.com/ome-lang/ome/source"
)

func parseAndResolve(t *testing.T, src string) *ast.TopLevelMethod {
	t.Helper()
	p := parser.New("test.ome", src, 0)
	top, err := p.Parse()
	require.NoError(t, err)
	r := resolve.New(testBuiltin())
	require.NoError(t, r.Resolve(top))
	return top
}

func testBuiltin() *ast.BuiltInBlock {
	return ast.NewBuiltInBlock([]*ast.Method{
		ast.NewBuiltinMethod("print", nil, source.Range{}),
		ast.NewBuiltinMethod("plus:", []string{"print"}, source.Range{}),
		ast.NewBuiltinMethod("true", nil, source.Range{}),
	})
}

func TestBuildCollectsBlocksSendsAndTraceback(t *testing.T) {
	top := parseAndResolve(t, "outer = { v = 10. |get| v }. main = outer get")
	p := program.Build(top)

	require.NotEmpty(t, p.BlockList)
	require.NotEmpty(t, p.SendList)
	require.NotEmpty(t, p.TracebackTable)

	for i, entry := range p.TracebackTable {
		assert.Equal(t, i, entry.Index)
	}
}

func TestBuildDedupesTracebackBySourcePosition(t *testing.T) {
	top := parseAndResolve(t, "main = 1 print")
	p := program.Build(top)

	var printSends int
	for _, s := range p.SendList {
		if s.Symbol == "print" {
			printSends++
		}
	}
	require.Equal(t, 1, printSends)

	before := len(p.TracebackTable)
	again := program.Build(top) // rebuilding from the same AST must be stable
	assert.Equal(t, before, len(again.TracebackTable))
}

func TestTracebackIndexForUnknownSendIsNegativeOne(t *testing.T) {
	top := parseAndResolve(t, "main = 1 print")
	p := program.Build(top)

	foreign := ast.NewSend(nil, "print", nil, source.Range{}, ast.TraceBackInfo{StreamName: "other.ome"})
	assert.Equal(t, -1, p.TracebackIndexFor(foreign))
}
