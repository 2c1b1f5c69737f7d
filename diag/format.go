package diag

import (
	"fmt"
	"strings"

	"github.com/ome-lang/ome/errs"
)

// FormatError renders a compile error as a multi-line diagnostic: bold
// file name, coloured severity word, message, and (when the error carries
// a position) the source line with a caret under the offending column.
func FormatError(err errs.CompileError) string {
	return formatDiagnostic(DefaultTheme.Error, "error", err)
}

// FormatWarning renders a non-fatal diagnostic in the same shape as
// FormatError but with the warning color, per spec.md §7 (warnings don't
// abort compilation).
func FormatWarning(message string) string {
	return fmt.Sprintf("%s: %s", Color(DefaultTheme.Warning, "%s", "warning"), message)
}

func formatDiagnostic(color, severity string, err errs.CompileError) string {
	var sb strings.Builder

	if pos, ok := err.(errs.Positioned); ok {
		stream, span, line := pos.Position()
		fmt.Fprintf(&sb, "%s: %s: %s\n",
			Color(Bold, "%s", stream+":"+span.String()),
			Color(color, "%s", severity),
			err.Error())
		if line != "" {
			sb.WriteString(line)
			sb.WriteString("\n")
			col := int(span.Start.Column)
			if col < 1 {
				col = 1
			}
			sb.WriteString(strings.Repeat(" ", col-1))
			sb.WriteString(Color(color, "%s", "^"))
			return sb.String()
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	fmt.Fprintf(&sb, "%s: %s", Color(color, "%s", severity), err.Error())
	return sb.String()
}
