package parser

import (
	"strings"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/errs"
	"github.com/ome-lang/ome/source"
)

// parseBlock parses a block body: zero or more local definitions followed
// by zero or more `|signature| body` method definitions (spec.md §4.2).
// Duplicate slot/method names are rejected (spec.md §4.2, §8.6).
func (p *Parser) parseBlock() (*ast.Block, error) {
	start := p.r.Cursor()
	var (
		slots   []*ast.Slot
		methods []*ast.Method
		locals  []*ast.LocalVariable
		seen    = map[string]source.Range{}
	)

	for {
		p.skipSpace()
		if p.peek() != '|' && isNameStart(p.peek()) && !p.lookaheadKeyword() {
			local, err := p.tryParseLocalDef()
			if err != nil {
				return nil, err
			}
			if local == nil {
				break
			}
			if rg, dup := seen[local.Name]; dup {
				return nil, p.conflictError(local.Name, rg)
			}
			seen[local.Name] = local.Range()
			idx := len(slots)
			slots = append(slots, &ast.Slot{Name: local.Name, Mutable: local.Mutable, Index: idx})
			local.SlotIndex = idx
			locals = append(locals, local)
			p.consumeStatementSep()
			continue
		}
		break
	}

	for p.peekRune() == '|' {
		method, err := p.parseMethodDef()
		if err != nil {
			return nil, err
		}
		if rg, dup := seen[method.Symbol]; dup {
			return nil, p.conflictError(method.Symbol, rg)
		}
		seen[method.Symbol] = method.Range()
		methods = append(methods, method)
		p.skipSpace()
	}

	block := ast.NewBlock(slots, methods, source.NewRange(start, p.r.Cursor()))
	block.ID = p.nextBlockID
	p.nextBlockID++
	if len(locals) > 0 {
		// Slot initialisers run in declaration order before any method
		// executes; represented as a synthetic "init" method the
		// program builder lowers ahead of block construction.
		block.Methods = append([]*ast.Method{
			ast.NewMethod("~init", nil, ast.NewSequence(localsToNodes(locals), block.Range()), block.Range()),
		}, block.Methods...)
	}
	return block, nil
}

func localsToNodes(locals []*ast.LocalVariable) []ast.Node {
	out := make([]ast.Node, len(locals))
	for i, l := range locals {
		out[i] = l
	}
	return out
}

func (p *Parser) conflictError(name string, _ source.Range) error {
	return errs.Located{
		Cat:     errs.CategoryNameConflict,
		Message: "`" + name + "` is already defined in this block",
		Stream:  p.r.StreamName(),
		Span:    source.Span{Start: p.r.Location(), End: p.r.Location()},
		Line:    p.r.CurrentLineText(),
	}
}

func (p *Parser) peekRune() rune {
	p.skipSpace()
	return p.peek()
}

// consumeStatementSep consumes an explicit `;` or `.`, or a newline whose
// following token is available at the current indentation level
// (spec.md §4.2 SEP rule). It is a no-op if none is present, letting
// callers stop looping naturally.
func (p *Parser) consumeStatementSep() {
	for p.peek() == ' ' || p.peek() == '\t' {
		p.advance()
	}
	if p.peek() == ';' || p.peek() == '.' {
		p.advance()
		return
	}
	// A bare newline is itself whitespace consumed by skipSpace; nothing
	// further to do here since the indentation stack governs whether the
	// next token belongs to this sequence.
}

// tryParseLocalDef attempts `NAME ('=' | ':=') expr`; returns nil (no
// error) if the upcoming tokens are not a local definition (i.e. the name
// is followed by neither `=` nor `:=`, meaning it starts a method
// signature or isn't present at all).
func (p *Parser) tryParseLocalDef() (*ast.LocalVariable, error) {
	save := *p.r
	start := p.r.Cursor()
	name, nameRg, err := p.parseBareName()
	if err != nil {
		*p.r = save
		return nil, nil
	}
	if isReserved(name) {
		return nil, errs.Located{
			Cat:     errs.CategoryReservedName,
			Message: "`" + name + "` is reserved and cannot be used as a binder",
			Stream:  p.r.StreamName(),
			Span:    source.Span{Start: p.r.Location(), End: p.r.Location()},
			Line:    p.r.CurrentLineText(),
		}
	}
	p.skipSpace()
	mutable := false
	switch {
	case p.peek() == ':' && p.peekAt2() == '=':
		p.advance()
		p.advance()
		mutable = true
	case p.peek() == '=':
		p.advance()
	default:
		*p.r = save
		return nil, nil
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	_ = nameRg
	return ast.NewLocalVariable(name, value, mutable, source.NewRange(start, p.r.Cursor())), nil
}

func (p *Parser) peekAt2() rune {
	// peeks one rune past the current one without consuming either.
	save := *p.r
	p.advance()
	c := p.peek()
	*p.r = save
	return c
}

// parseMethodDef parses `'|' signature '|' body`.
func (p *Parser) parseMethodDef() (*ast.Method, error) {
	start := p.r.Cursor()
	if err := p.expectRune('|'); err != nil {
		return nil, err
	}
	symbol, argNames, err := p.parseSignature()
	if err != nil {
		return nil, err
	}
	if err := p.expectRune('|'); err != nil {
		return nil, err
	}
	if len(argNames) > p.limits.MaxParameters {
		return nil, errs.Located{
			Cat:     errs.CategoryTooManyParams,
			Message: "method takes more than 15 parameters",
			Stream:  p.r.StreamName(),
			Span:    source.Span{Start: p.r.Location(), End: p.r.Location()},
			Line:    p.r.CurrentLineText(),
		}
	}
	body, err := p.parseStatementsUntilPipeOrEnd()
	if err != nil {
		return nil, err
	}
	return ast.NewMethod(symbol, argNames, body, source.NewRange(start, p.r.Cursor())), nil
}

// parseSignature parses `(KEYWORD argname (',' argname)*)+ | NAME`. The
// symbol concatenates each keyword with its colon, followed by one comma
// per extra positional argument in that keyword's clause (spec.md §3).
func (p *Parser) parseSignature() (symbol string, argNames []string, err error) {
	p.skipSpace()
	if p.lookaheadKeyword() {
		var sb strings.Builder
		first := true
		for {
			kw, _, err := p.parseKeywordPart(first)
			first = false
			if err != nil {
				return "", nil, err
			}
			if err := p.expectRune(':'); err != nil {
				return "", nil, err
			}
			sb.WriteString(kw)
			sb.WriteString(":")

			arg, _, err := p.parseName()
			if err != nil {
				return "", nil, err
			}
			argNames = append(argNames, arg)

			for {
				p.skipSpace()
				if p.peek() != ',' {
					break
				}
				p.advance()
				arg, _, err := p.parseName()
				if err != nil {
					return "", nil, err
				}
				argNames = append(argNames, arg)
				sb.WriteString(",")
			}

			p.skipSpace()
			if !p.lookaheadKeyword() {
				break
			}
		}
		return sb.String(), argNames, nil
	}

	name, _, err := p.parseName()
	if err != nil {
		return "", nil, err
	}
	return name, nil, nil
}
