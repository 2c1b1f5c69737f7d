package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/errs"
	"github.com/ome-lang/ome/parser"
	"github.com/ome-lang/ome/resolve"
	"github.com/ome-lang/ome/source"
)

func testBuiltin() *ast.BuiltInBlock {
	symbols := []string{"print", "plus:", "times:", "true", "false", "nil", "fib:"}
	methods := make([]*ast.Method, len(symbols))
	for i, s := range symbols {
		methods[i] = ast.NewMethod(s, nil, nil, source.Range{})
	}
	return ast.NewBuiltInBlock(methods)
}

// sendTrace is a flattened, order-stable snapshot of every bare-name
// send's resolved binding, used to compare two resolve passes for
// structural equality without needing deep AST equality.
type sendTrace struct {
	symbol           string
	kind             ast.ReceiverKind
	localIndex       int
	selfSlotIndex    int
	captureSlotIndex int
}

func trace(n ast.Node, out *[]sendTrace) {
	switch node := n.(type) {
	case nil:
		return
	case *ast.Block:
		for _, m := range node.Methods {
			trace(m.Body, out)
		}
	case *ast.Sequence:
		for _, item := range node.Items {
			trace(item, out)
		}
	case *ast.Array:
		for _, item := range node.Items {
			trace(item, out)
		}
	case *ast.LocalVariable:
		trace(node.Value, out)
	case *ast.Send:
		if node.Receiver != nil {
			trace(node.Receiver, out)
		}
		for _, arg := range node.Args {
			trace(arg, out)
		}
		*out = append(*out, sendTrace{
			symbol:           node.Symbol,
			kind:             node.Kind,
			localIndex:       node.LocalIndex,
			selfSlotIndex:    node.SelfSlotIndex,
			captureSlotIndex: node.CaptureSlotIndex,
		})
	}
}

func parseProgram(t *testing.T, src string) *ast.TopLevelMethod {
	t.Helper()
	top, err := parser.New("t.ome", src, 0).Parse()
	require.NoError(t, err)
	return top
}

func TestResolveSelfSlot(t *testing.T) {
	top := parseProgram(t, "main = { x = 5. |get| x } get")
	r := resolve.New(testBuiltin())
	require.NoError(t, r.Resolve(top))

	var sends []sendTrace
	trace(top.Body, &sends)
	require.NotEmpty(t, sends)

	var found bool
	for _, s := range sends {
		if s.symbol == "x" {
			found = true
			assert.Equal(t, ast.ReceiverSelfSlot, s.kind)
		}
	}
	assert.True(t, found, "expected a resolved send for `x`")
}

func TestResolveCaptureAcrossNestedBlock(t *testing.T) {
	top := parseProgram(t, "outer = { v = 10. |get| { |read| v } }. main = outer")
	r := resolve.New(testBuiltin())
	require.NoError(t, r.Resolve(top))

	root := top.Body.(*ast.Block)
	outerLocal := findLocal(t, root, "outer")
	outerBlock := outerLocal.Value.(*ast.Block)
	getMethod, ok := outerBlock.MethodBySymbol("get")
	require.True(t, ok)
	inner := getMethod.Body.(*ast.Block)

	require.Len(t, inner.Captures, 1)
	require.Len(t, inner.Slots, 1)
	assert.Equal(t, inner.Captures[0].SlotIndex, inner.Slots[0].Index)

	// The inner block's `read` method body is the bare send `v`,
	// rewritten to read the synthetic capture slot rather than a direct
	// self-slot on `outer`.
	readMethod, ok := inner.MethodBySymbol("read")
	require.True(t, ok)
	send := findFirstSend(readMethod.Body)
	require.NotNil(t, send)
	assert.Equal(t, ast.ReceiverCapture, send.Kind)
	assert.Equal(t, inner.Slots[0].Index, send.CaptureSlotIndex)
}

func TestResolveIdempotent(t *testing.T) {
	top := parseProgram(t, "outer = { v = 10. |get| { |read| v } }. main = outer get")
	r := resolve.New(testBuiltin())
	require.NoError(t, r.Resolve(top))

	var first []sendTrace
	trace(top.Body, &first)

	require.NoError(t, r.Resolve(top))
	var second []sendTrace
	trace(top.Body, &second)

	assert.Equal(t, first, second)
}

func TestResolveUnboundName(t *testing.T) {
	top := parseProgram(t, "main = foo")
	r := resolve.New(testBuiltin())
	err := r.Resolve(top)
	require.Error(t, err)
	var ce errs.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errs.CategoryUnboundName, ce.Category())
}

func TestResolvePrivateSymbolOnlyMatchesInnermost(t *testing.T) {
	top := parseProgram(t, "outer = { |~secret| 1. |get| { |read| ~secret } }. main = outer")
	r := resolve.New(testBuiltin())
	err := r.Resolve(top)
	require.Error(t, err)
}

func findLocal(t *testing.T, b *ast.Block, name string) *ast.LocalVariable {
	t.Helper()
	init, ok := b.MethodBySymbol("~init")
	require.True(t, ok)
	seq, ok := init.Body.(*ast.Sequence)
	if ok {
		for _, item := range seq.Items {
			if lv, ok := item.(*ast.LocalVariable); ok && lv.Name == name {
				return lv
			}
		}
	} else if lv, ok := init.Body.(*ast.LocalVariable); ok && lv.Name == name {
		return lv
	}
	t.Fatalf("local %q not found", name)
	return nil
}

func findFirstSend(n ast.Node) *ast.Send {
	switch node := n.(type) {
	case *ast.Send:
		return node
	case *ast.Sequence:
		for _, item := range node.Items {
			if s := findFirstSend(item); s != nil {
				return s
			}
		}
	case *ast.Block:
		for _, m := range node.Methods {
			if s := findFirstSend(m.Body); s != nil {
				return s
			}
		}
	}
	return nil
}
