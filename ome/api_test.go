package ome_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/ome"
	"github.com/ome-lang/ome/source"
)

func testBuiltin() *ast.BuiltInBlock {
	return ast.NewBuiltInBlock([]*ast.Method{
		ast.NewBuiltinMethod("print", nil, source.Range{}),
		ast.NewBuiltinMethod("plus:", []string{"print"}, source.Range{}),
		ast.NewBuiltinMethod("times:", nil, source.Range{}),
	})
}

func TestCompileHelloWorldProducesX86_64Target(t *testing.T) {
	cfg := ome.NewConfig()
	art, err := ome.Compile("test.ome", "main = 'Hello, world!' print", testBuiltin(), cfg)
	require.NoError(t, err)
	assert.Contains(t, art.Target, "OME_method_main:")
	assert.Contains(t, art.Target, "global _start")
}

func TestCompilePrintFlagsPopulateArtifact(t *testing.T) {
	cfg := ome.NewConfig()
	cfg.SetBool("compiler.print_ast", true)
	cfg.SetBool("compiler.print_resolved_ast", true)
	cfg.SetBool("compiler.print_ir", true)

	art, err := ome.Compile("test.ome", "main = (2 plus: 3) times: 4 print", testBuiltin(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, art.AST)
	assert.NotEmpty(t, art.ResolvedAST)
	assert.Contains(t, art.IR, "OME_method_main:")
}

func TestCompileArm64Target(t *testing.T) {
	cfg := ome.NewConfig()
	cfg.SetString("compiler.target", "arm64")
	art, err := ome.Compile("test.ome", "main = 'Hello, world!' print", testBuiltin(), cfg)
	require.NoError(t, err)
	assert.Contains(t, art.Target, "OME_method_main:")
	assert.Contains(t, art.Target, "_start:")
}

func TestCompileCBackendEmitsPlainMethodBodies(t *testing.T) {
	cfg := ome.NewConfig()
	cfg.SetString("compiler.backend", "c")
	art, err := ome.Compile("test.ome", "main = 'Hello, world!' print", testBuiltin(), cfg)
	require.NoError(t, err)
	assert.Contains(t, art.Target, "OME_VALUE")
	assert.Contains(t, art.Target, "OME_method_main")
}

func TestCompileRejectsUnknownTarget(t *testing.T) {
	cfg := ome.NewConfig()
	cfg.SetString("compiler.target", "riscv64")
	_, err := ome.Compile("test.ome", "main = 1", testBuiltin(), cfg)
	assert.Error(t, err)
}

func TestCompileSurfacesParseError(t *testing.T) {
	cfg := ome.NewConfig()
	_, err := ome.Compile("test.ome", "", testBuiltin(), cfg)
	assert.Error(t, err)
}

// TestCompileEmitsSignBitCheckAndTracebackRowForEveryCall covers
// spec.md §6/§8's E4 scenario ("prints a traceback ending with
// Type-Error to stderr and exits with code 1"): main's one send must
// compile to a sign test on the call's result plus a traceback row and
// append trampoline the runtime prelude can walk on exit.
func TestCompileEmitsSignBitCheckAndTracebackRowForEveryCall(t *testing.T) {
	cfg := ome.NewConfig()
	art, err := ome.Compile("test.ome", "main = 1 plus: 2", testBuiltin(), cfg)
	require.NoError(t, err)
	assert.Contains(t, art.Target, "test rax, rax")
	assert.Contains(t, art.Target, "call OME_traceback_append")
	assert.Contains(t, art.Target, "OME_traceback_row_0:")
	assert.Contains(t, art.Target, "OME_print_traceback_and_exit")
	assert.Contains(t, art.Target, "Type-Error")
}

func TestCompileEmitsSignBitCheckForArm64(t *testing.T) {
	cfg := ome.NewConfig()
	cfg.SetString("compiler.target", "arm64")
	art, err := ome.Compile("test.ome", "main = 1 plus: 2", testBuiltin(), cfg)
	require.NoError(t, err)
	assert.Contains(t, art.Target, "tst x0, x0")
	assert.Contains(t, art.Target, "bl OME_traceback_append")
	assert.Contains(t, art.Target, "Type-Error")
}
