package ast

import "strings"

// SymbolArity computes a message's argument count from its canonical
// symbol form, per spec.md §3 and the arity law of spec.md §8.3: the
// number of colons plus commas is the count of explicit arguments, and
// the returned arity adds one for the implicit receiver, so a unary
// symbol (no colon, no comma) has arity 1 and "foo:bar:" has arity 3.
func SymbolArity(symbol string) int {
	if symbol == "" {
		return 0
	}
	colons := strings.Count(symbol, ":")
	commas := strings.Count(symbol, ",")
	if colons == 0 && commas == 0 {
		return 1
	}
	return colons + commas + 1
}

// IsPrivateSymbol reports whether symbol names a private method, which may
// only be sent to the implicit self receiver.
func IsPrivateSymbol(symbol string) bool {
	return strings.HasPrefix(symbol, "~")
}

// IsSetterSymbol reports whether symbol is a mutable-slot setter, i.e.
// ends in exactly one trailing colon with no other colons or commas
// (distinguishing "x:" from a keyword send "x:y:").
func IsSetterSymbol(symbol string) bool {
	return len(symbol) > 1 &&
		strings.HasSuffix(symbol, ":") &&
		strings.Count(symbol, ":") == 1 &&
		strings.Count(symbol, ",") == 0
}

// JoinKeywordParts builds the canonical symbol for a keyword message from
// its parts, e.g. JoinKeywordParts([]string{"foo", "bar"}) == "foo:bar:".
func JoinKeywordParts(parts []string) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p)
		sb.WriteString(":")
	}
	return sb.String()
}
