package source

import (
	"strings"
)

const eof rune = -1

// defaultTabWidth is the number of columns a tab expands to when no
// other width is configured.
const defaultTabWidth = 8

// indentFrame is one level of the nested indentation stack: the minimum
// column the current sub-expression requires (indentLevel) and the line
// on which that level was first established (indentLine).
type indentFrame struct {
	indentLevel int
	indentLine  int
}

// Reader streams runes out of a single source file, tracking line/column
// position and a stack of indentation requirements used to delimit
// statements without explicit terminators (spec.md §4.1).
type Reader struct {
	streamName string
	input      []rune
	tabWidth   int

	cursor int
	line   int
	column int

	lineIndent int // this line's leading indent, computed once per line

	indent indentFrame
	stack  []indentFrame

	commentCount int
	lastComment  int
}

// NewReader creates a Reader over the given source text. tabWidth
// controls how many columns a tab character occupies; 0 selects the
// default of 8.
func NewReader(streamName, input string, tabWidth int) *Reader {
	if tabWidth <= 0 {
		tabWidth = defaultTabWidth
	}
	r := &Reader{
		streamName: streamName,
		input:      []rune(input),
		tabWidth:   tabWidth,
		line:       1,
		column:     1,
	}
	r.lineIndent = r.measureLineIndent()
	return r
}

func (r *Reader) StreamName() string { return r.streamName }

// Cursor returns the current rune offset into the input.
func (r *Reader) Cursor() int { return r.cursor }

// Line returns the current 1-indexed line number.
func (r *Reader) Line() int { return r.line }

// Column returns the current 1-indexed column, with tabs expanded.
func (r *Reader) Column() int { return r.column }

// Location returns the reader's current position as a source Location.
func (r *Reader) Location() Location {
	return Location{Line: int32(r.line), Column: int32(r.column), Cursor: r.cursor}
}

// Peek returns the rune under the cursor without advancing, or eof.
func (r *Reader) Peek() rune {
	if r.cursor >= len(r.input) {
		return eof
	}
	return r.input[r.cursor]
}

// Any returns the rune under the cursor and advances past it.
func (r *Reader) Any() rune {
	c := r.Peek()
	if c == eof {
		return eof
	}
	r.cursor++
	if c == '\n' {
		r.line++
		r.column = 1
		r.lineIndent = r.measureLineIndent()
	} else if c == '\t' {
		r.column += r.tabWidth - ((r.column - 1) % r.tabWidth)
	} else {
		r.column++
	}
	return c
}

func (r *Reader) measureLineIndent() int {
	col := 1
	for i := r.cursor; i < len(r.input); i++ {
		switch r.input[i] {
		case ' ':
			col++
		case '\t':
			col += r.tabWidth - ((col - 1) % r.tabWidth)
		default:
			return col - 1
		}
	}
	return col - 1
}

// PushIndent saves the current indentation frame and establishes a new
// one at the given level, first set on the current line. Used around
// block, array and parenthesised sub-expressions.
func (r *Reader) PushIndent(level int) {
	r.stack = append(r.stack, r.indent)
	r.indent = indentFrame{indentLevel: level, indentLine: r.line}
}

// PopIndent restores the indentation frame saved by the matching
// PushIndent.
func (r *Reader) PopIndent() {
	n := len(r.stack)
	if n == 0 {
		r.indent = indentFrame{}
		return
	}
	r.indent = r.stack[n-1]
	r.stack = r.stack[:n-1]
}

// IndentLevel returns the minimum column the current sub-expression
// requires.
func (r *Reader) IndentLevel() int { return r.indent.indentLevel }

// TokenAvailable reports whether a token at the reader's current
// position belongs to the current sub-expression, per spec.md §4.1:
// column > indent_level OR line == indent_line.
func (r *Reader) TokenAvailable() bool {
	return r.column > r.indent.indentLevel || r.line == r.indent.indentLine
}

// SkipSpaceAndComments consumes whitespace and comments ("#…" or "--…"
// to end of line). Comments are discarded but counted for diagnostics.
func (r *Reader) SkipSpaceAndComments() {
	for {
		c := r.Peek()
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			r.Any()
		case c == '#' || (c == '-' && r.peekAt(1) == '-'):
			r.commentCount++
			r.lastComment = r.line
			for r.Peek() != '\n' && r.Peek() != eof {
				r.Any()
			}
		default:
			return
		}
	}
}

func (r *Reader) peekAt(offset int) rune {
	idx := r.cursor + offset
	if idx < 0 || idx >= len(r.input) {
		return eof
	}
	return r.input[idx]
}

// CommentCount returns how many comments have been consumed so far.
func (r *Reader) CommentCount() int { return r.commentCount }

// CurrentLineText returns the full text of the reader's current line,
// used to render source-line-and-caret diagnostics.
func (r *Reader) CurrentLineText() string {
	start := r.cursor
	for start > 0 && r.input[start-1] != '\n' {
		start--
	}
	end := r.cursor
	for end < len(r.input) && r.input[end] != '\n' {
		end++
	}
	return string(r.input[start:end])
}

// NewError builds a source.Error anchored at the reader's current
// position, with the source line attached for caret rendering.
func (r *Reader) NewError(message string) Error {
	loc := r.Location()
	return Error{
		Stream:  r.streamName,
		Message: message,
		Span:    Span{Start: loc, End: loc},
		Line:    r.CurrentLineText(),
	}
}

// NewErrorAt is like NewError but anchored at an explicit span.
func (r *Reader) NewErrorAt(message string, span Span) Error {
	return Error{
		Stream:  r.streamName,
		Message: message,
		Span:    span,
		Line:    strings.TrimRight(r.CurrentLineText(), "\r"),
	}
}
