package ome

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/emit"
	arm64_backend "github.com/ome-lang/ome/emit/arm64"
	c_backend "github.com/ome-lang/ome/emit/c"
	x86_64_backend "github.com/ome-lang/ome/emit/x86_64"
	"github.com/ome-lang/ome/ir"
	"github.com/ome-lang/ome/optimize"
	"github.com/ome-lang/ome/parser"
	"github.com/ome-lang/ome/program"
	"github.com/ome-lang/ome/regalloc"
	"github.com/ome-lang/ome/resolve"
	"github.com/ome-lang/ome/tags"
	"github.com/ome-lang/ome/target"
)

// Artifact collects every optional debug dump a Config's print_* flags
// ask for, alongside the one dump that always matters: Target, the
// assembled program Compile was asked to produce.
type Artifact struct {
	AST         string
	ResolvedAST string
	IR          string
	Target      string
}

// targetSpecFor resolves a compiler.target config value to a target.Spec,
// the only two architectures emit/x86_64 and emit/arm64 know how to
// generate (spec.md §9's "target platform" flag).
func targetSpecFor(name string) (target.Spec, error) {
	switch name {
	case "", "x86_64":
		return target.X86_64, nil
	case "arm64":
		return target.ARM64, nil
	default:
		return target.Spec{}, fmt.Errorf("ome: unknown target platform %q", name)
	}
}

// Compile runs the full pipeline of spec.md §4.1 over src: parse, resolve
// free variables against builtin, flatten to a Program, allocate tags,
// compute reachability, then lower/optimize/allocate/emit every method
// reachability keeps, finally assembling the backend's whole-program
// output (prelude + method bodies + dispatch tables). Grounded on the
// teacher's GrammarFromFile/GrammarTransformations sequential,
// config-gated pipeline shape.
//
// A non-nil error may still be accompanied by a partially filled
// Artifact (e.g. AST populated even though resolution later failed) so a
// caller asked to print intermediate stages still sees them.
func Compile(streamName, src string, builtin *ast.BuiltInBlock, cfg *Config) (*Artifact, error) {
	art := &Artifact{}

	p := parser.NewWithLimits(streamName, src, cfg.GetInt("compiler.indent_width"), parser.Limits{
		MaxParameters: cfg.GetInt("method.max_params"),
		MaxArraySize:  cfg.GetInt("array.max_size"),
	})
	top, err := p.Parse()
	if err != nil {
		return art, err
	}
	if cfg.GetBool("compiler.print_ast") {
		art.AST = top.PrettyString()
	}

	r := resolve.New(builtin)
	if err := r.Resolve(top); err != nil {
		return art, err
	}
	if cfg.GetBool("compiler.print_resolved_ast") {
		art.ResolvedAST = top.PrettyString()
	}

	prog := program.Build(top)
	alloc := tags.NewAllocatorWithPointerThreshold(cfg.GetInt("tags.pointer_threshold"))
	if err := alloc.AllocateBlockTags(prog.BlockList); err != nil {
		return art, err
	}
	reach := program.ComputeReachability(prog, builtin)

	topBlock, ok := top.Body.(*ast.Block)
	if !ok {
		return art, fmt.Errorf("ome: top-level body is not a block")
	}
	mainExpr, ok := mainExprOf(topBlock)
	if !ok {
		return art, fmt.Errorf("ome: no `main` slot or method found")
	}

	spec, err := targetSpecFor(cfg.GetString("compiler.target"))
	if err != nil {
		return art, err
	}
	level := optimize.Level(cfg.GetInt("compiler.optimize"))
	backendName := cfg.GetString("compiler.backend")

	cp := &compilation{
		prog:    prog,
		reach:   reach,
		spec:    spec,
		level:   level,
		w:       emit.NewWriter(),
		tails:   emit.NewTailEmitter(),
		cfg:     cfg,
		art:     art,
		backend: backendName,
	}

	mainMethod := ast.NewMethod("main", nil, mainExpr, top.Range())
	mainLabel := "OME_method_main"
	if err := cp.compileAndEmit(mainLabel, mainMethod); err != nil {
		return art, err
	}

	called := map[string]bool{}
	for _, cm := range reach.CalledMethods {
		called[calledKey(cm.Block.ID, cm.Symbol)] = true
	}

	bySymbol := map[string][]emit.DispatchEntry{}
	for _, block := range prog.BlockList {
		blockTag := tags.TagValueOf(block.Tag)
		for _, m := range block.Methods {
			if m.Body == nil {
				// Implemented by the opaque assembly runtime (spec.md §1);
				// nothing for this pipeline to lower.
				continue
			}
			if !reach.SentMessages[m.Symbol] && !called[calledKey(block.ID, m.Symbol)] {
				continue
			}
			label := ir.MethodLabel(blockTag, m.Symbol)
			if err := cp.compileAndEmit(label, m); err != nil {
				return art, err
			}
			if reach.SentMessages[m.Symbol] {
				bySymbol[m.Symbol] = append(bySymbol[m.Symbol], emit.DispatchEntry{Tag: blockTag, Label: label})
			}
		}
	}

	if cp.isAsmBackend() {
		for _, symbol := range sortedKeys(bySymbol) {
			entries := bySymbol[symbol]
			if len(entries) == 0 {
				continue
			}
			cp.emitDispatch(ir.MessageLabel(symbol), entries)
		}
		cp.tails.Flush(cp.w)
		cp.emitTracebackTable()

		prelude, err := cp.renderPrelude(mainLabel)
		if err != nil {
			return art, err
		}
		art.Target = prelude + cp.w.String()
	} else {
		art.Target = c_backend.Prelude + cp.w.String()
	}

	if cfg.GetBool("compiler.print_ir") {
		art.IR = cp.irDump.String()
	}

	return art, nil
}

// mainExprOf finds the expression the program's entry point evaluates:
// either an explicit `main = ...` method body, or (the common case) the
// initializer of a `main` slot, which parser.parseBlock folds into the
// top-level block's synthetic "~init" method alongside every other local
// definition.
//
// This is a deliberate simplification against the real runtime's
// `OME_toplevel`/self-threading scheme (target_x86_64.py's prelude
// constructs an actual top-level object and calls Main with it as self,
// spec.md §4.9): entry expressions that reference `self` or a sibling
// slot in the top-level block would need that object constructed first.
// spec.md's own examples (§5, E1-E4) never do this, so evaluating main's
// expression directly — without constructing a toplevel receiver — keeps
// Compile correct for every example in scope while avoiding an unused
// code path for the common case where main is self-contained.
func mainExprOf(top *ast.Block) (ast.Node, bool) {
	if m, ok := top.MethodBySymbol("main"); ok {
		return m.Body, true
	}
	slot, ok := top.SlotByName("main")
	if !ok {
		return nil, false
	}
	init, ok := top.MethodBySymbol("~init")
	if !ok {
		return nil, false
	}
	seq, ok := init.Body.(*ast.Sequence)
	if !ok {
		return nil, false
	}
	for _, item := range seq.Items {
		if lv, ok := item.(*ast.LocalVariable); ok && lv.SlotIndex == slot.Index {
			return lv.Value, true
		}
	}
	return nil, false
}

func calledKey(blockID int, symbol string) string { return fmt.Sprintf("%d:%s", blockID, symbol) }

func sortedKeys(m map[string][]emit.DispatchEntry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// compilation threads the per-Compile-call state that would otherwise be
// repeated in every helper's argument list.
type compilation struct {
	prog    *program.Program
	reach   *program.Reachability
	spec    target.Spec
	level   optimize.Level
	w       *emit.Writer
	tails   *emit.TailEmitter
	cfg     *Config
	art     *Artifact
	backend string
	irDump  strings.Builder
}

func (cp *compilation) isAsmBackend() bool {
	return cp.backend == "" || cp.backend == "asm"
}

// compileAndEmit lowers method's body to IR under name, optimizes it, then
// either register-allocates and emits it through an assembly backend or
// (for the C backend, which needs no register allocator since C
// functions have unlimited locals) emits the optimized IR directly.
func (cp *compilation) compileAndEmit(name string, method *ast.Method) error {
	m := ir.Lower(name, method, cp.prog, ir.DefaultLowererConfig())
	optimize.Run(m, cp.level)

	if cp.cfg.GetBool("compiler.print_ir") {
		fmt.Fprintf(&cp.irDump, "%s:\n", name)
		for _, instr := range m.Instructions {
			fmt.Fprintf(&cp.irDump, "\t%s\n", instr)
		}
	}

	if !cp.isAsmBackend() {
		if cp.backend == "c-debug" {
			debug, err := emit.RenderDebug(name, m)
			if err != nil {
				return err
			}
			cp.w.Line(debug)
			return nil
		}
		c_backend.EmitMethod(cp.w, name, m)
		return nil
	}

	res := regalloc.Allocate(m, cp.spec)
	switch cp.spec.Name {
	case "arm64":
		arm64_backend.EmitMethod(cp.w, cp.tails, cp.spec, name, res)
	default:
		x86_64_backend.EmitMethod(cp.w, cp.tails, cp.spec, name, res)
	}
	return nil
}

func (cp *compilation) emitDispatch(label string, entries []emit.DispatchEntry) {
	switch cp.spec.Name {
	case "arm64":
		arm64_backend.EmitDispatch(cp.w, cp.tails, cp.spec, label, entries)
	default:
		x86_64_backend.EmitDispatch(cp.w, cp.tails, cp.spec, label, entries)
	}
}

// emitTracebackTable writes the program's deduplicated traceback entries
// (spec.md §6's Data-block traceback entry table) once, after every
// method and dispatch table, so every emitted CALL's traceback_info
// index resolves to a row that actually exists in the output.
func (cp *compilation) emitTracebackTable() {
	switch cp.spec.Name {
	case "arm64":
		arm64_backend.EmitTracebackTable(cp.w, cp.prog.TracebackTable)
	default:
		x86_64_backend.EmitTracebackTable(cp.w, cp.prog.TracebackTable)
	}
}

func (cp *compilation) renderPrelude(mainLabel string) (string, error) {
	switch cp.spec.Name {
	case "arm64":
		return arm64_backend.RenderPrelude(cp.spec, mainLabel)
	default:
		return x86_64_backend.RenderPrelude(cp.spec, mainLabel)
	}
}
