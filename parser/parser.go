// Package parser implements the hand-written recursive-descent parser of
// spec.md §4.2: a significant-indentation expression grammar producing
// the ast package's tagged AST nodes.
package parser

import (
	"fmt"
	"strings"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/errs"
	"github.com/ome-lang/ome/source"
)

// Default limits enforced by the parser (spec.md §3 invariants), used
// whenever New is called directly or NewWithLimits is given a zero Limits
// field. ome.NewConfig's "method.max_params"/"array.max_size" keys
// override these per Compile call.
const (
	MaxParameters = 15
	MaxArraySize  = 4096
)

var reservedNames = map[string]struct{}{
	"self":  {},
	"true":  {},
	"false": {},
	"nil":   {},
}

// Limits bounds the parser enforces while building the AST (spec.md §3
// invariants), configurable via ome.Config's "method.max_params" and
// "array.max_size" keys.
type Limits struct {
	MaxParameters int
	MaxArraySize  int
}

// Parser holds the state necessary to build the AST out of a single
// source stream. Parse errors are non-recoverable: the first error wins
// (spec.md §4.2).
type Parser struct {
	r           *source.Reader
	nextBlockID int
	limits      Limits
}

// New creates a Parser over streamName/input. tabWidth of 0 selects the
// reader's default (8 columns); the default Limits apply.
func New(streamName, input string, tabWidth int) *Parser {
	return NewWithLimits(streamName, input, tabWidth, Limits{})
}

// NewWithLimits is New plus explicit parameter-count/array-size bounds; a
// zero field in limits falls back to the package default for that bound.
func NewWithLimits(streamName, input string, tabWidth int, limits Limits) *Parser {
	if limits.MaxParameters == 0 {
		limits.MaxParameters = MaxParameters
	}
	if limits.MaxArraySize == 0 {
		limits.MaxArraySize = MaxArraySize
	}
	return &Parser{r: source.NewReader(streamName, input, tabWidth), limits: limits}
}

// Parse parses a complete program: a top-level block that must define
// `main`, wrapped in a TopLevelMethod (spec.md §3). `main` may be a slot
// (a localdef, per the worked examples in spec.md §8) or an explicit
// `|main| ...` method, since slot reads and method dispatch share one
// symbol namespace (spec.md §3) and OME_toplevel reaches `main` the same
// way either way: by sending it as a message.
func (p *Parser) Parse() (*ast.TopLevelMethod, error) {
	start := p.r.Cursor()
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != eof {
		return nil, p.errorf("unexpected trailing input")
	}
	_, hasMainSlot := block.SlotByName("main")
	_, hasMainMethod := block.MethodBySymbol("main")
	if !hasMainSlot && !hasMainMethod {
		return nil, errs.Located{
			Cat:     errs.CategoryNoMainMethod,
			Message: "top-level block must define `main`",
			Stream:  p.r.StreamName(),
			Span:    source.Span{},
			Line:    "",
		}
	}
	end := p.r.Cursor()
	return ast.NewTopLevelMethod(block, source.NewRange(start, end)), nil
}

const eof = -1

func (p *Parser) peek() rune { return p.r.Peek() }

func (p *Parser) advance() rune { return p.r.Any() }

func (p *Parser) skipSpace() { p.r.SkipSpaceAndComments() }

func (p *Parser) errorf(format string, args ...any) error {
	return p.errorAtf(p.r.Location(), format, args...)
}

func (p *Parser) errorAtf(loc source.Location, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	span := source.Span{Start: loc, End: loc}
	return errs.Located{
		Cat:     errs.CategoryParse,
		Message: msg,
		Stream:  p.r.StreamName(),
		Span:    span,
		Line:    p.r.CurrentLineText(),
	}
}

func (p *Parser) expectRune(c rune) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q but got %q", c, p.peek())
	}
	p.advance()
	return nil
}

// isNameStart/isNameCont classify identifier characters: letters and
// underscore to start, plus digits to continue.
func isNameStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameCont(c rune) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

// parseBareName reads a plain identifier (no leading `~`) without
// consuming leading whitespace.
func (p *Parser) parseBareName() (string, source.Range, error) {
	start := p.r.Cursor()
	if !isNameStart(p.peek()) {
		return "", source.Range{}, p.errorf("expected a name")
	}
	var sb strings.Builder
	for isNameCont(p.peek()) {
		sb.WriteRune(p.advance())
	}
	return sb.String(), source.NewRange(start, p.r.Cursor()), nil
}

// parseName reads a NAME token, allowing a leading `~` for private
// symbols, after skipping leading whitespace.
func (p *Parser) parseName() (string, source.Range, error) {
	p.skipSpace()
	start := p.r.Cursor()
	private := false
	if p.peek() == '~' {
		private = true
		p.advance()
	}
	name, _, err := p.parseBareName()
	if err != nil {
		return "", source.Range{}, err
	}
	if private {
		name = "~" + name
	}
	return name, source.NewRange(start, p.r.Cursor()), nil
}

// parseKeywordPart reads one keyword part of a message symbol. Only the
// first part of a keyword chain may carry a leading `~` (a private
// keyword message, legal only when sent to the implicit self receiver —
// spec.md §3); later parts are always plain names.
func (p *Parser) parseKeywordPart(first bool) (string, source.Range, error) {
	if !first {
		return p.parseBareName()
	}
	start := p.r.Cursor()
	private := p.peek() == '~'
	if private {
		p.advance()
	}
	name, _, err := p.parseBareName()
	if err != nil {
		return "", source.Range{}, err
	}
	if private {
		name = "~" + name
	}
	return name, source.NewRange(start, p.r.Cursor()), nil
}

func isReserved(name string) bool {
	_, ok := reservedNames[name]
	return ok
}

// lookaheadKeyword reports whether the upcoming name (optionally
// `~`-prefixed, for a private keyword method's first part) is
// immediately followed by ':' (making it a keyword part rather than a
// unary name).
func (p *Parser) lookaheadKeyword() bool {
	save := *p.r
	defer func() { *p.r = save }()
	p.skipSpace()
	if p.peek() == '~' {
		p.advance()
	}
	if !isNameStart(p.peek()) {
		return false
	}
	for isNameCont(p.peek()) {
		p.advance()
	}
	return p.peek() == ':'
}
