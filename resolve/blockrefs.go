package resolve

import "github.com/ome-lang/ome/ast"

// chainCapture implements Pass B (spec.md §4.3): given a binding found at
// blocks[originIdx] while resolving a bare send inside the innermost
// block blocks[len(blocks)-1], thread a synthetic self-slot through every
// intervening block so each level only ever reads its own slots or self.
// Returns the synthetic slot index to use in the innermost block (the
// send's own CaptureSlotIndex).
//
// Each synthetic slot's Capture.EnclosingRef is the expression that
// supplies its initial value when the block literal is constructed: for
// the first link that's a direct read of the origin block's own binding;
// for every link after that it's a read of the previous link's synthetic
// slot, since each nested block literal is itself an expression
// evaluated inside its immediate parent's body.
func (rt *run) chainCapture(blocks []*ast.Block, originIdx int, symbol string, kind lookupKind, originIndex int) int {
	var prevRef ast.Node
	for level := originIdx + 1; level < len(blocks); level++ {
		b := blocks[level]
		key := capKey(b.ID, blocks[originIdx].ID, symbol)
		if idx, ok := rt.synthetic[key]; ok {
			prevRef = selfSlotRef(b, idx, syntheticName(blocks[originIdx].ID, symbol))
			continue
		}

		name := syntheticName(blocks[originIdx].ID, symbol)
		if s, ok := b.SlotByName(name); ok {
			// Threaded by an earlier Resolve over this same tree.
			rt.synthetic[key] = s.Index
			prevRef = selfSlotRef(b, s.Index, name)
			continue
		}

		var ref ast.Node
		if level == originIdx+1 {
			ref = originRef(blocks[originIdx], symbol, kind, originIndex)
		} else {
			ref = prevRef
		}

		idx := len(b.Slots)
		b.Slots = append(b.Slots, &ast.Slot{Name: name, Mutable: false, Index: idx})
		b.Captures = append(b.Captures, &ast.Capture{SlotIndex: idx, EnclosingRef: ref})
		rt.synthetic[key] = idx
		prevRef = selfSlotRef(b, idx, name)
	}
	// prevRef now reads the synthetic slot in the innermost block.
	return rt.synthetic[capKey(blocks[len(blocks)-1].ID, blocks[originIdx].ID, symbol)]
}

func capKey(chainBlockID, originBlockID int, symbol string) string {
	return itoa(chainBlockID) + ":" + itoa(originBlockID) + ":" + symbol
}

func syntheticName(originBlockID int, symbol string) string {
	return "~cap$" + itoa(originBlockID) + "$" + symbol
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// originRef builds the expression that reads the captured binding from
// its defining block's own perspective (a self-slot or self-method send
// with no explicit receiver).
func originRef(origin *ast.Block, symbol string, kind lookupKind, index int) ast.Node {
	send := ast.NewSend(nil, symbol, nil, origin.Range(), ast.TraceBackInfo{})
	if kind == lookupSlot {
		send.Kind = ast.ReceiverSelfSlot
		send.SelfSlotIndex = index
	} else {
		send.Kind = ast.ReceiverExplicit
		send.ReceiverBlock = origin
	}
	return send
}

func selfSlotRef(b *ast.Block, slotIndex int, symbol string) ast.Node {
	send := ast.NewSend(nil, symbol, nil, b.Range(), ast.TraceBackInfo{})
	send.Kind = ast.ReceiverSelfSlot
	send.SelfSlotIndex = slotIndex
	return send
}
