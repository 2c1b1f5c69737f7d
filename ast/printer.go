package ast

import (
	"fmt"
	"strings"

	"github.com/ome-lang/ome/diag"
)

type formatFunc func(kind string, input string) string

func formatPlain(_ string, input string) string { return input }

var printerTheme = map[string]string{
	"send":   diag.DefaultTheme.Operator,
	"number": diag.DefaultTheme.Literal,
	"string": diag.DefaultTheme.Literal,
	"block":  diag.DefaultTheme.Label,
	"local":  diag.DefaultTheme.Operand,
	"range":  diag.DefaultTheme.Span,
}

func formatThemed(kind string, input string) string {
	if c, ok := printerTheme[kind]; ok {
		return diag.Color(c, "%s", input)
	}
	return input
}

// ppNode renders n and its children as an indented tree, in the style of
// `├──`/`└──` connectors, with each node's Range printed alongside its
// label.
func ppNode(n Node, f formatFunc) string {
	var out strings.Builder
	out.WriteString(format(n, f))
	writeChildren(&out, n, "", f)
	return strings.TrimRight(out.String(), "\n")
}

func writeChildren(out *strings.Builder, n Node, prefix string, f formatFunc) {
	children := childrenOf(n)
	for i, c := range children {
		last := i == len(children)-1
		connector := "├── "
		nextPrefix := prefix + "│   "
		if last {
			connector = "└── "
			nextPrefix = prefix + "    "
		}
		out.WriteString("\n")
		out.WriteString(prefix)
		out.WriteString(connector)
		out.WriteString(format(c, f))
		writeChildren(out, c, nextPrefix, f)
	}
}

func format(n Node, f formatFunc) string {
	kind, label := nodeLabel(n)
	return fmt.Sprintf("%s (%s)", f(kind, label), n.Range())
}

func nodeLabel(n Node) (kind, label string) {
	switch t := n.(type) {
	case *TopLevelMethod:
		return "", "TopLevel"
	case *Block:
		return "block", fmt.Sprintf("Block[%d slots, %d methods]", len(t.Slots), len(t.Methods))
	case *Method:
		return "send", fmt.Sprintf("Method[%s]", t.Symbol)
	case *Sequence:
		return "", "Sequence"
	case *LocalVariable:
		op := "="
		if t.Mutable {
			op = ":="
		}
		return "local", fmt.Sprintf("Local[%s %s]", t.Name, op)
	case *Send:
		recv := "self"
		if t.Receiver != nil {
			recv = "expr"
		}
		return "send", fmt.Sprintf("Send[%s <- %s]", t.Symbol, recv)
	case *Number:
		return "number", fmt.Sprintf("Number[%s]", t.String())
	case *StringLit:
		return "string", fmt.Sprintf("String[%s]", t.Value)
	case *Array:
		return "", "Array"
	case *BuiltInBlock:
		return "block", "BuiltIn"
	default:
		return "", fmt.Sprintf("%T", n)
	}
}

func childrenOf(n Node) []Node {
	var out []Node
	switch t := n.(type) {
	case *TopLevelMethod:
		if t.Body != nil {
			out = append(out, t.Body)
		}
	case *Block:
		for _, m := range t.Methods {
			out = append(out, m)
		}
	case *Method:
		if t.Body != nil {
			out = append(out, t.Body)
		}
	case *Sequence:
		out = append(out, t.Items...)
	case *LocalVariable:
		if t.Value != nil {
			out = append(out, t.Value)
		}
	case *Send:
		if t.Receiver != nil {
			out = append(out, t.Receiver)
		}
		out = append(out, t.Args...)
	case *Array:
		out = append(out, t.Items...)
	}
	return out
}
