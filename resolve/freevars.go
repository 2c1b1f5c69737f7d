// Package resolve implements the two-pass name resolver of spec.md §4.3:
// free-variable resolution (Pass A) followed by capture-slot rewriting
// (Pass B). Both passes are folded into one post-order walk here — a
// capture is chained into synthetic self-slots the moment Pass A
// discovers it (see blockrefs.go) — which still satisfies resolver
// idempotence (spec.md §8, property 4) since re-running the walk over an
// already-resolved tree re-derives the same bindings and finds each
// synthetic slot already in place.
package resolve

import (
	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/errs"
)

// Resolver carries the built-in block that seeds the outermost scope.
type Resolver struct {
	builtin *ast.BuiltInBlock
}

// New creates a Resolver parameterised by the target's built-in block.
func New(builtin *ast.BuiltInBlock) *Resolver {
	return &Resolver{builtin: builtin}
}

// frame is one level of the lexical scope stack: either the outermost
// built-in frame, a block's own slots/methods, or a method's argument
// bindings (pushed immediately above its owning block's frame).
type frame struct {
	blockID int // -1 for the built-in frame
	block   *ast.Block
	builtin *ast.BuiltInBlock
	slots   map[string]int
	methods map[string]bool
	args    map[string]int
}

type lookupKind int

const (
	lookupNone lookupKind = iota
	lookupArg
	lookupSlot
	lookupMethod
	lookupBuiltin
)

type lookupResult struct {
	kind  lookupKind
	index int
	block *ast.Block
}

// Resolve runs the resolver over a parsed program's top-level block.
func (r *Resolver) Resolve(top *ast.TopLevelMethod) error {
	rt := &run{builtin: r.builtin, synthetic: map[string]int{}}
	builtinFrame := &frame{blockID: -1, builtin: r.builtin}
	root, ok := top.Body.(*ast.Block)
	if !ok {
		return nil
	}
	return rt.resolveBlock(root, []*frame{builtinFrame}, []*ast.Block{})
}

// run carries the mutable state threaded through one Resolve call: a
// cache of already-allocated capture chains, keyed so repeated reads of
// the same ancestor binding within the same block reuse one slot.
type run struct {
	builtin   *ast.BuiltInBlock
	synthetic map[string]int // "<chainBlockID>:<originBlockID>:<symbol>" -> slot index
}

func (rt *run) resolveBlock(b *ast.Block, stack []*frame, blocks []*ast.Block) error {
	if len(blocks) > 0 {
		b.Encloser = blocks[len(blocks)-1].ID
	}
	bf := &frame{
		blockID: b.ID,
		block:   b,
		slots:   map[string]int{},
		methods: map[string]bool{},
	}
	for _, s := range b.Slots {
		bf.slots[s.Name] = s.Index
	}
	for _, m := range b.Methods {
		bf.methods[m.Symbol] = true
	}
	stack = append(stack, bf)
	blocks = append(blocks, b)

	for _, m := range b.Methods {
		mf := &frame{blockID: b.ID, block: b, args: map[string]int{}}
		for i, name := range m.ArgNames {
			mf.args[name] = i + 1 // arg0 is implicit self
		}
		methodStack := append(stack, mf)
		if err := rt.resolveNode(m.Body, methodStack, blocks); err != nil {
			return err
		}
	}
	return nil
}

func (rt *run) resolveNode(n ast.Node, stack []*frame, blocks []*ast.Block) error {
	switch node := n.(type) {
	case nil:
		return nil
	case *ast.Block:
		return rt.resolveBlock(node, stack, blocks)
	case *ast.Sequence:
		for _, item := range node.Items {
			if err := rt.resolveNode(item, stack, blocks); err != nil {
				return err
			}
		}
		return nil
	case *ast.Array:
		for _, item := range node.Items {
			if err := rt.resolveNode(item, stack, blocks); err != nil {
				return err
			}
		}
		return nil
	case *ast.LocalVariable:
		return rt.resolveNode(node.Value, stack, blocks)
	case *ast.Number, *ast.StringLit:
		return nil
	case *ast.Send:
		return rt.resolveSend(node, stack, blocks)
	default:
		return nil
	}
}

func (rt *run) resolveSend(send *ast.Send, stack []*frame, blocks []*ast.Block) error {
	if send.Receiver != nil {
		if err := rt.resolveNode(send.Receiver, stack, blocks); err != nil {
			return err
		}
	}
	for _, arg := range send.Args {
		if err := rt.resolveNode(arg, stack, blocks); err != nil {
			return err
		}
	}
	// Only a bare, zero-argument, receiver-less send is a candidate
	// variable reference (spec.md §4.3); keyword sends and sends with an
	// explicit receiver are ordinary dispatch, already handled above.
	if send.Receiver != nil || len(send.Args) > 0 {
		return nil
	}

	innermost := blocks[len(blocks)-1]

	switch send.Symbol {
	case "self":
		send.Kind = ast.ReceiverExplicit
		send.ReceiverBlock = innermost
		return nil
	}

	private := ast.IsPrivateSymbol(send.Symbol)
	res, originIdx := rt.lookup(send.Symbol, stack, blocks, private)
	switch res.kind {
	case lookupArg:
		send.Kind = ast.ReceiverLocal
		send.LocalIndex = res.index
	case lookupSlot:
		if originIdx == len(blocks)-1 {
			send.Kind = ast.ReceiverSelfSlot
			send.SelfSlotIndex = res.index
		} else {
			send.Kind = ast.ReceiverCapture
			send.CaptureSlotIndex = rt.chainCapture(blocks, originIdx, send.Symbol, lookupSlot, res.index)
		}
	case lookupMethod:
		if originIdx == len(blocks)-1 {
			send.Kind = ast.ReceiverExplicit
			send.ReceiverBlock = res.block
		} else {
			// A bare send resolving to an ancestor's method is captured
			// as a value the same way a slot read is: the capture chain
			// reads the method's result once, at each constructing site,
			// and stores it in a synthetic slot.
			slotIdx := rt.chainCapture(blocks, originIdx, send.Symbol, lookupMethod, 0)
			send.Kind = ast.ReceiverCapture
			send.CaptureSlotIndex = slotIdx
		}
	case lookupBuiltin:
		send.Kind = ast.ReceiverExplicit
	default:
		return errs.Located{
			Cat:     errs.CategoryUnboundName,
			Message: "unbound name `" + send.Symbol + "`",
			Stream:  send.TB.StreamName,
			Span:    send.TB.Span,
			Line:    "",
		}
	}
	return nil
}

// lookup searches the scope stack innermost-to-outermost for symbol.
// privateOnly restricts the search to frames belonging to the innermost
// block (its own args frame and block frame) per spec.md §4.3. Returns
// the matching block's index into `blocks` (for non-arg, non-builtin
// matches) so the caller can tell a local hit (innermost) from a capture
// (an ancestor).
func (rt *run) lookup(symbol string, stack []*frame, blocks []*ast.Block, privateOnly bool) (lookupResult, int) {
	innermostBlockID := -2
	if len(blocks) > 0 {
		innermostBlockID = blocks[len(blocks)-1].ID
	}
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		if privateOnly && f.blockID != innermostBlockID {
			break
		}
		if f.args != nil {
			if idx, ok := f.args[symbol]; ok {
				return lookupResult{kind: lookupArg, index: idx}, -1
			}
		}
		if f.slots != nil {
			if idx, ok := f.slots[symbol]; ok {
				return lookupResult{kind: lookupSlot, index: idx, block: f.block}, blockIndex(blocks, f.blockID)
			}
		}
		if f.methods != nil {
			if f.methods[symbol] {
				return lookupResult{kind: lookupMethod, block: f.block}, blockIndex(blocks, f.blockID)
			}
		}
		if f.builtin != nil {
			if _, ok := f.builtin.MethodBySymbol(symbol); ok {
				return lookupResult{kind: lookupBuiltin}, -1
			}
		}
	}
	return lookupResult{kind: lookupNone}, -1
}

func blockIndex(blocks []*ast.Block, id int) int {
	for i, b := range blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}
