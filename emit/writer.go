// Package emit implements the textual target emitter of spec.md §4.9: a
// shared line-oriented Writer used by every backend, plus a TailEmitter
// sidecar for code that must appear after the instruction it was queued
// from (a CREATE's GC slow path, a dispatch table's not-understood
// trampoline). Grounded on gen.go's outputWriter (indent-tracking string
// builder) and original_source/ome/target_x86_64.py's emitter protocol,
// where `self.emit` is a callable the target methods use for in-place
// lines and `self.emit.tail_emitter(label)` returns a second callable
// whose lines are appended once the main body is done.
package emit

import (
	"fmt"
	"strings"
)

// Writer accumulates one backend's output text, line by line.
type Writer struct {
	buf    strings.Builder
	indent int
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Indent() { w.indent++ }

func (w *Writer) Unindent() {
	if w.indent > 0 {
		w.indent--
	}
}

// Line writes s, indented to the current level, terminated with a
// newline.
func (w *Writer) Line(s string) {
	for i := 0; i < w.indent; i++ {
		w.buf.WriteString("\t")
	}
	w.buf.WriteString(s)
	w.buf.WriteByte('\n')
}

// Linef is Line with fmt.Sprintf formatting.
func (w *Writer) Linef(format string, args ...interface{}) {
	w.Line(fmt.Sprintf(format, args...))
}

// Label writes s followed by ":" with no indent and no trailing blank,
// matching nasm/most assemblers' label syntax.
func (w *Writer) Label(s string) {
	w.buf.WriteString(s)
	w.buf.WriteString(":\n")
}

// Blank writes an empty line.
func (w *Writer) Blank() { w.buf.WriteByte('\n') }

func (w *Writer) String() string { return w.buf.String() }

// TailEmitter queues writer callbacks in a plain ordered list, flushing
// them in first-queued order once the caller is done with the main
// instruction walk. Entries are not keyed by label: Defer takes only the
// callback, and a tail queued twice is emitted twice. A CREATE's slow path and a
// dispatch table's fallthrough trampoline are both queued this way so
// the fast path stays linear and the cold code lands after it, mirroring
// target_x86_64.py's emit_create/emit_dispatch use of tail_emitter.
type TailEmitter struct {
	tails []func(*Writer)
}

func NewTailEmitter() *TailEmitter { return &TailEmitter{} }

// Defer queues fn to run against the shared Writer once Flush is called.
func (t *TailEmitter) Defer(fn func(*Writer)) {
	t.tails = append(t.tails, fn)
}

// Flush runs every queued tail against w, in queue order, then clears the
// queue so the TailEmitter can be reused for the next method.
func (t *TailEmitter) Flush(w *Writer) {
	for _, fn := range t.tails {
		fn(w)
	}
	t.tails = nil
}
