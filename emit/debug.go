package emit

import (
	"bytes"
	"fmt"
	"go/format"

	"github.com/ome-lang/ome/ir"
)

// RenderDebug renders method as a readable Go-syntax function body — one
// statement per IR instruction, temps as named variables — and formats it
// with go/format.Source, the way gen_go.go pipes its emitted text through
// go/parser+go/printer before returning it (SPEC_FULL.md §2: this is the
// one backend where that combination is meaningful, since there is no
// go/format equivalent for raw assembly text). Used by `-backend=c-debug`
// for engineers who want to read a method's lowered form without parsing
// nasm or C.
func RenderDebug(name string, method *ir.Method) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "func %s(", name)
	for i := 0; i < method.NumArgs; i++ {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "t%d", i)
	}
	buf.WriteString(" int) int {\n")
	for _, instr := range method.Instructions {
		fmt.Fprintf(&buf, "\t%s\n", goStmt(instr))
	}
	buf.WriteString("}\n")

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.String(), err
	}
	return string(formatted), nil
}

// goStmt renders one instruction as a single Go statement. Instructions
// are already valid Go expression shapes (t<N> := ... or a bare call), so
// this is a direct textual transliteration rather than a real
// IR-to-Go compiler.
func goStmt(instr ir.Instruction) string {
	switch v := instr.(type) {
	case ir.Call:
		return fmt.Sprintf("t%d := call(%q, %s)", v.Dest, v.Label, intList(v.Args))
	case ir.Tag:
		return fmt.Sprintf("t%d := tag(t%d, %d)", v.Dest, v.Src, v.TagValue)
	case ir.Untag:
		return fmt.Sprintf("t%d := untag(t%d)", v.Dest, v.Src)
	case ir.Create:
		return fmt.Sprintf("t%d := create(%d, %d)", v.Dest, v.TagValue, v.NumSlots)
	case ir.CreateArray:
		return fmt.Sprintf("t%d := createArray(%d)", v.Dest, v.Size)
	case ir.Alias:
		return fmt.Sprintf("t%d := t%d", v.Dest, v.Src)
	case ir.LoadValue:
		return fmt.Sprintf("t%d := loadValue(%d, %d)", v.Dest, v.TagValue, v.Value)
	case ir.LoadString:
		return fmt.Sprintf("t%d := loadString(%q)", v.Dest, v.Data.Value)
	case ir.GetSlot:
		return fmt.Sprintf("t%d := t%d.slot[%d]", v.Dest, v.Object, v.SlotIndex)
	case ir.SetSlot:
		return fmt.Sprintf("t%d.slot[%d] = t%d", v.Object, v.SlotIndex, v.Value)
	case ir.Return:
		return fmt.Sprintf("return t%d", v.Src)
	default:
		return fmt.Sprintf("_ = %q // %s", instr.String(), "register-allocated instruction has no Go rendering")
	}
}

func intList(args []int) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("t%d", a)
	}
	return s
}
