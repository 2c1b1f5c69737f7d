package program

import (
	"sort"

	"github.com/ome-lang/ome/ast"
)

// CalledMethod identifies one statically-known (receiver block, symbol)
// pair that reachability found live but that isn't already covered by a
// dynamic send of the same symbol.
type CalledMethod struct {
	Block  *ast.Block
	Symbol string
}

// Reachability is the two-set result of ComputeReachability (spec.md
// §4.5): sent_messages (symbols reached via dynamic dispatch, including
// every built-in message transitively reachable from them) and
// called_methods (statically-known sends not already covered by
// sent_messages).
type Reachability struct {
	SentMessages  map[string]bool
	CalledMethods []CalledMethod
}

// ComputeReachability runs the fixed-point worklist of spec.md §4.5 over
// p's send list and builtin's own declared Sends (ast.Method.Sends),
// grounded on original_source/ome/compiler.py's `while changed:` loop and
// query_analysis.go's computeCallGraphData/computeUnusedRules call-graph
// walk (same reachable-from-entry-point computation, run in the opposite
// direction: OME keeps what is reachable, the teacher reports what isn't).
//
// sent_messages always starts with {"main", "string"} (spec.md §9:
// "string" stays for compatibility even though nothing in SPEC_FULL.md
// sends it directly) plus every symbol sent to a receiver whose static
// block could not be determined.
func ComputeReachability(p *Program, builtin *ast.BuiltInBlock) *Reachability {
	sent := map[string]bool{"main": true, "string": true}
	var staticSends []*ast.Send

	for _, send := range p.SendList {
		if send.IsStaticallyResolved() {
			staticSends = append(staticSends, send)
			continue
		}
		sent[send.Symbol] = true
	}

	builtinSends := map[string][]string{}
	for _, m := range builtin.Methods {
		builtinSends[m.Symbol] = m.Sends
	}

	for changed := true; changed; {
		changed = false
		for symbol := range sent {
			for _, next := range builtinSends[symbol] {
				if !sent[next] {
					sent[next] = true
					changed = true
				}
			}
		}
	}

	type pair struct {
		id     int
		symbol string
	}
	var called []CalledMethod
	seen := map[pair]bool{}
	for _, send := range staticSends {
		if sent[send.Symbol] {
			continue
		}
		key := pair{id: send.ReceiverBlock.ID, symbol: send.Symbol}
		if seen[key] {
			continue
		}
		seen[key] = true
		called = append(called, CalledMethod{Block: send.ReceiverBlock, Symbol: send.Symbol})
	}

	sort.Slice(called, func(i, j int) bool {
		if called[i].Block.ID != called[j].Block.ID {
			return called[i].Block.ID < called[j].Block.ID
		}
		return called[i].Symbol < called[j].Symbol
	})

	return &Reachability{SentMessages: sent, CalledMethods: called}
}
