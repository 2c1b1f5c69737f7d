// Package program consumes a resolved AST and builds the flattened
// artifacts the rest of the pipeline acts on (spec.md §4.5): the full
// block list, the full send list, and a deduplicated traceback table.
// Grounded on grammar_compiler.go's single-pass, AST-to-artifact Compile
// function, adapted from emitting instructions directly to collecting
// flat lists a later ir.Lower pass consumes.
package program

import (
	"github.com/ome-lang/ome/ast"
)

// TraceBackEntry is one deduplicated row of the traceback table (spec.md
// §4.5): a call site the runtime can report in a stack trace.
type TraceBackEntry struct {
	Index      int
	MethodName string
	Line       int32
	Column     int32
	Underline  int
}

// Program is the flattened, order-stable artifact produced by Build.
type Program struct {
	BlockList      []*ast.Block
	SendList       []*ast.Send
	TracebackTable []TraceBackEntry

	tracebackIndex map[tracebackKey]int
}

type tracebackKey struct {
	stream string
	line   int32
	column int32
}

// TracebackIndexFor returns the TracebackTable index recorded for send's
// call site, or -1 if send was never seen by Build.
func (p *Program) TracebackIndexFor(send *ast.Send) int {
	key := keyOf(send.TB)
	if idx, ok := p.tracebackIndex[key]; ok {
		return idx
	}
	return -1
}

func keyOf(tb ast.TraceBackInfo) tracebackKey {
	return tracebackKey{stream: tb.StreamName, line: tb.Span.Start.Line, column: tb.Span.Start.Column}
}

// Build walks top's resolved body, collecting every Block (in
// first-encounter depth-first order, matching
// original_source/ome/compiler.py's single traversal), every Send, and a
// traceback entry per distinct (stream, line, column) call site.
func Build(top *ast.TopLevelMethod) *Program {
	p := &Program{tracebackIndex: map[tracebackKey]int{}}
	bld := &builder{p: p}
	bld.walk(top.Body, "main")
	return p
}

type builder struct {
	p *Program
}

func (b *builder) walk(n ast.Node, methodName string) {
	switch node := n.(type) {
	case nil:
		return
	case *ast.Block:
		b.p.BlockList = append(b.p.BlockList, node)
		for _, m := range node.Methods {
			b.walk(m.Body, m.Symbol)
		}
		for _, c := range node.Captures {
			// The capture's enclosing-scope reference is evaluated at the
			// point this block is constructed, in the enclosing scope's
			// method context; attributed here rather than left untracked
			// so its traceback entry (and, for a dynamic send, its symbol)
			// still reaches the send list.
			b.walk(c.EnclosingRef, methodName)
		}
	case *ast.Sequence:
		for _, item := range node.Items {
			b.walk(item, methodName)
		}
	case *ast.Array:
		for _, item := range node.Items {
			b.walk(item, methodName)
		}
	case *ast.LocalVariable:
		b.walk(node.Value, methodName)
	case *ast.Send:
		b.walkSend(node, methodName)
	case *ast.Number, *ast.StringLit:
		// leaves
	}
}

func (b *builder) walkSend(send *ast.Send, methodName string) {
	b.walk(send.Receiver, methodName)
	for _, arg := range send.Args {
		b.walk(arg, methodName)
	}
	b.p.SendList = append(b.p.SendList, send)
	b.intern(send, methodName)
}

func (b *builder) intern(send *ast.Send, methodName string) {
	key := keyOf(send.TB)
	if _, ok := b.p.tracebackIndex[key]; ok {
		return
	}
	idx := len(b.p.TracebackTable)
	b.p.tracebackIndex[key] = idx
	b.p.TracebackTable = append(b.p.TracebackTable, TraceBackEntry{
		Index:      idx,
		MethodName: methodName,
		Line:       send.TB.Span.Start.Line,
		Column:     send.TB.Span.Start.Column,
		Underline:  send.TB.Underline,
	})
}
