package arm64

import (
	"fmt"

	"github.com/ome-lang/ome/emit"
	"github.com/ome-lang/ome/program"
)

// tracebackRowLabel mirrors emit/x86_64's: the data row a CALL's
// traceback_info field indexes into (spec.md §6).
func tracebackRowLabel(index int) string {
	return fmt.Sprintf("OME_traceback_row_%d", index)
}

// EmitTracebackTable is emit/x86_64.EmitTracebackTable transliterated
// into AArch64 gas directives (.quad instead of dq, `label = . - label`
// instead of `equ $-label`).
func EmitTracebackTable(w *emit.Writer, table []program.TraceBackEntry) {
	if len(table) == 0 {
		return
	}
	w.Line(".section .rodata")
	for _, entry := range table {
		nameLabel := tracebackRowLabel(entry.Index) + "_name"
		w.Label(nameLabel)
		w.Linef(".byte %s  // %q", asmBytes(entry.MethodName), entry.MethodName)
		w.Linef("%s_len = . - %s - 1", tracebackRowLabel(entry.Index), nameLabel)

		w.Label(tracebackRowLabel(entry.Index))
		w.Linef(".quad %s", nameLabel)
		w.Linef(".quad %s_len", tracebackRowLabel(entry.Index))
		w.Linef(".quad %d", entry.Line)
		w.Linef(".quad %d", entry.Column)
	}
}

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
