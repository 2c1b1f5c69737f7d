package x86_64

import (
	"fmt"

	"github.com/ome-lang/ome/emit"
	"github.com/ome-lang/ome/program"
)

// tracebackRowLabel names the data row a CALL's traceback_info field
// indexes into (spec.md §6's "Data block... traceback entry table as a
// sorted array keyed by index"). Shared between emitErrorCheck (which
// addresses a row) and EmitTracebackTable (which defines it).
func tracebackRowLabel(index int) string {
	return fmt.Sprintf("OME_traceback_row_%d", index)
}

// EmitTracebackTable writes one data row per entry of a Program's
// TracebackTable: a {name_ptr, name_len, line, column} quad whose address
// the OME_traceback_append trampoline records in the runtime's
// traceback buffer, and OME_print_traceback_and_exit later reads back to
// print spec.md §8's E4 diagnostic. This is a deliberate simplification
// of spec.md §6's literal `{file_info_ptr, source_line_ptr}` pair: no
// stage of this pipeline renders the call site's source line back out as
// text, so the row carries the method name plus line/column instead,
// mirroring what program.TraceBackEntry already tracks.
func EmitTracebackTable(w *emit.Writer, table []program.TraceBackEntry) {
	if len(table) == 0 {
		return
	}
	w.Line("section .rodata")
	for _, entry := range table {
		nameLabel := tracebackRowLabel(entry.Index) + ".name"
		w.Label(nameLabel)
		w.Linef("db %s  ; %q", asmBytes(entry.MethodName), entry.MethodName)
		w.Linef("%s.len equ $-%s-1", tracebackRowLabel(entry.Index), nameLabel)

		w.Label(tracebackRowLabel(entry.Index))
		w.Linef("dq %s", nameLabel)
		w.Linef("dq %s.len", tracebackRowLabel(entry.Index))
		w.Linef("dq %d", entry.Line)
		w.Linef("dq %d", entry.Column)
	}
}

// asmBytes renders s as a nasm db byte list terminated with a trailing
// NUL, sidestepping nasm string-literal escaping rules entirely (the
// name.len equ above is what every reader actually uses; the NUL is
// just a defensive terminator).
func asmBytes(s string) string {
	out := ""
	for i := 0; i < len(s); i++ {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", s[i])
	}
	if out != "" {
		out += ", "
	}
	return out + "0"
}
