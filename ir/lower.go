package ir

import (
	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/program"
	"github.com/ome-lang/ome/tags"
)

// tagOpaqueSmallInteger/tagOpaqueSmallDecimal mirror tags.opaqueNames'
// fixed ordering (Constant=0, Small-Integer=1, Small-Decimal=2). ir does
// import tags (for TagValueOf), but opaqueNames is unexported there, so
// these are restated here as the conventional defaults a caller may
// override via LowererConfig for another opaque-tag numbering.
const (
	tagOpaqueSmallInteger = 1
	tagOpaqueSmallDecimal = 2
)

// LowererConfig parameterises Lower with target-specific tag values that
// the IR itself has no business hard-coding (spec.md §9: "re-express [Python
// module-level tag constants] as an immutable configuration record threaded
// through the pipeline").
type LowererConfig struct {
	SmallIntegerTag int
	SmallDecimalTag int
}

// DefaultLowererConfig matches the tags package's own opaque ordering.
func DefaultLowererConfig() LowererConfig {
	return LowererConfig{SmallIntegerTag: tagOpaqueSmallInteger, SmallDecimalTag: tagOpaqueSmallDecimal}
}

// Lower lowers method's body into IR under name (ordinarily
// ir.MethodLabel(tag, method.Symbol) for a statically dispatched method,
// or ir.MessageLabel(method.Symbol) for a dynamic-dispatch trampoline
// body). prog supplies traceback indices for call sites (spec.md §4.5).
func Lower(name string, method *ast.Method, prog *program.Program, cfg LowererConfig) *Method {
	m := NewMethod(name, len(method.ArgNames)+1)
	l := &lowerer{m: m, prog: prog, cfg: cfg, slotTemp: map[slotKey]int{}}
	result := l.lowerNode(method.Body)
	m.Emit(Return{Src: result})
	return m
}

// lowerBlockCreation lowers the construction of a block literal: a
// CREATE followed by one SET_SLOT per slot initialiser (spec.md §4.6),
// inlining the block's synthetic "~init" method's assignments rather than
// dispatching to it as a callable method (it is never invoked at
// runtime — grammar.go's parseBlock comment: "the program builder lowers
// [it] ahead of block construction"). Captured slots (resolver Pass B)
// are initialised the same way, each from its EnclosingRef expression
// evaluated in the enclosing lowerer's own context. Returns the temp
// holding the newly created object.
func (l *lowerer) lowerBlockCreation(b *ast.Block) int {
	tagValue := tags.TagValueOf(b.Tag)
	dest := l.m.NewTemp()
	l.m.Emit(Create{Dest: dest, TagValue: tagValue, NumSlots: len(b.Slots)})

	if initMethod, ok := b.MethodBySymbol("~init"); ok {
		inner := &lowerer{m: l.m, prog: l.prog, cfg: l.cfg, slotTemp: map[slotKey]int{}, self: dest}
		if seq, ok := initMethod.Body.(*ast.Sequence); ok {
			for _, item := range seq.Items {
				inner.lowerSlotInit(dest, item)
			}
		} else {
			inner.lowerSlotInit(dest, initMethod.Body)
		}
	}

	for _, cap := range b.Captures {
		value := l.lowerNode(cap.EnclosingRef)
		l.m.Emit(SetSlot{Object: dest, SlotIndex: cap.SlotIndex, Value: value})
	}

	return dest
}

func (l *lowerer) lowerSlotInit(object int, n ast.Node) {
	local, ok := n.(*ast.LocalVariable)
	if !ok {
		l.lowerNode(n)
		return
	}
	value := l.lowerNode(local.Value)
	l.m.Emit(SetSlot{Object: object, SlotIndex: local.SlotIndex, Value: value})
}

type slotKey struct {
	kind int // 0 = self-slot, 1 = capture
	idx  int
}

type lowerer struct {
	m        *Method
	prog     *program.Program
	cfg      LowererConfig
	slotTemp map[slotKey]int
	self     int // temp holding self; 0 for a normal method (arg 0)
}

func (l *lowerer) lowerNode(n ast.Node) int {
	switch node := n.(type) {
	case *ast.Sequence:
		result := l.selfTemp()
		for _, item := range node.Items {
			result = l.lowerNode(item)
		}
		return result
	case *ast.LocalVariable:
		return l.lowerNode(node.Value)
	case *ast.Number:
		return l.lowerNumber(node)
	case *ast.StringLit:
		return l.lowerString(node)
	case *ast.Array:
		return l.lowerArray(node)
	case *ast.Block:
		return l.lowerBlockCreation(node)
	case *ast.Send:
		return l.lowerSend(node)
	default:
		return l.selfTemp()
	}
}

func (l *lowerer) selfTemp() int { return l.self }

func (l *lowerer) lowerNumber(n *ast.Number) int {
	dest := l.m.NewTemp()
	tag := l.cfg.SmallIntegerTag
	if n.Exponent != 0 {
		tag = l.cfg.SmallDecimalTag
	}
	l.m.Emit(LoadValue{Dest: dest, TagValue: tag, Value: n.Significand})
	return dest
}

func (l *lowerer) lowerString(n *ast.StringLit) int {
	dest := l.m.NewTemp()
	label := l.m.NewLabel("str")
	label.Value = n.Value
	l.m.Emit(LoadString{Dest: dest, Data: label})
	return dest
}

func (l *lowerer) lowerArray(n *ast.Array) int {
	dest := l.m.NewTemp()
	l.m.Emit(CreateArray{Dest: dest, Size: len(n.Items)})
	for i, item := range n.Items {
		value := l.lowerNode(item)
		l.m.Emit(SetSlot{Object: dest, SlotIndex: i, Value: value})
	}
	return dest
}

func (l *lowerer) lowerSend(send *ast.Send) int {
	if send.Receiver == nil && send.Symbol == "self" && len(send.Args) == 0 {
		return l.selfTemp()
	}

	switch send.Kind {
	case ast.ReceiverLocal:
		return l.aliasCached(slotKey{kind: 2, idx: send.LocalIndex}, send.LocalIndex)
	case ast.ReceiverSelfSlot:
		return l.slotRead(slotKey{kind: 0, idx: send.SelfSlotIndex}, send.SelfSlotIndex)
	case ast.ReceiverCapture:
		return l.slotRead(slotKey{kind: 1, idx: send.CaptureSlotIndex}, send.CaptureSlotIndex)
	}

	// A same-block method resolved statically by the name resolver always
	// targets self (resolve/freevars.go's lookupMethod same-block branch).
	if send.Receiver == nil && send.IsStaticallyResolved() {
		tagValue := tags.TagValueOf(send.ReceiverBlock.Tag)
		return l.emitCall(MethodLabel(tagValue, send.Symbol), l.selfTemp(), send.Args, send)
	}

	recv := l.selfTemp()
	if send.Receiver != nil {
		recv = l.lowerNode(send.Receiver)
	}
	return l.emitCall(MessageLabel(send.Symbol), recv, send.Args, send)
}

func (l *lowerer) emitCall(label string, recv int, argNodes []ast.Node, send *ast.Send) int {
	args := make([]int, 0, len(argNodes)+1)
	args = append(args, recv)
	for _, a := range argNodes {
		args = append(args, l.lowerNode(a))
	}
	tb := -1
	if l.prog != nil {
		tb = l.prog.TracebackIndexFor(send)
	}
	dest := l.m.NewTemp()
	l.m.Emit(Call{Dest: dest, Label: label, Args: args, Traceback: tb})
	return dest
}

// aliasCached emits an ALIAS to src the first time key is requested and
// every time after, per spec.md §4.6 ("a local read is an ALIAS to the
// already-assigned temp"); the optimiser's alias-elimination pass
// collapses repeats.
func (l *lowerer) aliasCached(key slotKey, src int) int {
	dest := l.m.NewTemp()
	l.m.Emit(Alias{Dest: dest, Src: src})
	return dest
}

// slotRead emits a GET_SLOT the first time key is read and an ALIAS to
// that same temp on every subsequent read within this method, so a
// repeatedly-read self-slot or capture is only ever loaded once.
func (l *lowerer) slotRead(key slotKey, index int) int {
	if t, ok := l.slotTemp[key]; ok {
		dest := l.m.NewTemp()
		l.m.Emit(Alias{Dest: dest, Src: t})
		return dest
	}
	dest := l.m.NewTemp()
	l.m.Emit(GetSlot{Dest: dest, Object: l.selfTemp(), SlotIndex: index})
	l.slotTemp[key] = dest
	return dest
}
