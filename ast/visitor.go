package ast

import "fmt"

// Visitor is implemented by tree walks over the AST: the resolver passes,
// the IR lowering pass, and the pretty printers.
type Visitor interface {
	VisitTopLevelMethod(*TopLevelMethod) error
	VisitBlock(*Block) error
	VisitMethod(*Method) error
	VisitSequence(*Sequence) error
	VisitLocalVariable(*LocalVariable) error
	VisitSend(*Send) error
	VisitNumber(*Number) error
	VisitStringLit(*StringLit) error
	VisitArray(*Array) error
	VisitBuiltInBlock(*BuiltInBlock) error
}

// Walk visits node's direct children with v, in source order. It does not
// descend further; callers that need a full traversal should recurse from
// within their own Visit methods.
func Walk(v Visitor, n Node) error {
	switch t := n.(type) {
	case *TopLevelMethod:
		if t.Body != nil {
			return t.Body.Accept(v)
		}
	case *Block:
		for _, m := range t.Methods {
			if err := m.Accept(v); err != nil {
				return err
			}
		}
	case *Method:
		if t.Body != nil {
			return t.Body.Accept(v)
		}
	case *Sequence:
		for _, item := range t.Items {
			if err := item.Accept(v); err != nil {
				return err
			}
		}
	case *LocalVariable:
		if t.Value != nil {
			return t.Value.Accept(v)
		}
	case *Send:
		if t.Receiver != nil {
			if err := t.Receiver.Accept(v); err != nil {
				return err
			}
		}
		for _, a := range t.Args {
			if err := a.Accept(v); err != nil {
				return err
			}
		}
	case *Array:
		for _, item := range t.Items {
			if err := item.Accept(v); err != nil {
				return err
			}
		}
	case *Number, *StringLit, *BuiltInBlock:
		// leaves
	default:
		return fmt.Errorf("ast.Walk: unknown node type %T", n)
	}
	return nil
}

// InspectFn is called for every node in a depth-first traversal. If it
// returns false the children of the current node are skipped.
type InspectFn func(Node) bool

type inspector struct {
	fn InspectFn
}

func (i inspector) VisitTopLevelMethod(n *TopLevelMethod) error { return i.visit(n) }
func (i inspector) VisitBlock(n *Block) error                   { return i.visit(n) }
func (i inspector) VisitMethod(n *Method) error                 { return i.visit(n) }
func (i inspector) VisitSequence(n *Sequence) error             { return i.visit(n) }
func (i inspector) VisitLocalVariable(n *LocalVariable) error   { return i.visit(n) }
func (i inspector) VisitSend(n *Send) error                     { return i.visit(n) }
func (i inspector) VisitNumber(n *Number) error                 { return i.visit(n) }
func (i inspector) VisitStringLit(n *StringLit) error           { return i.visit(n) }
func (i inspector) VisitArray(n *Array) error                   { return i.visit(n) }
func (i inspector) VisitBuiltInBlock(n *BuiltInBlock) error     { return i.visit(n) }

func (i inspector) visit(n Node) error {
	if !i.fn(n) {
		return nil
	}
	return Walk(i, n)
}

// Inspect traverses an AST in depth-first order, calling fn for every
// node. Mirrors the shape of Go's own ast.Inspect.
func Inspect(n Node, fn InspectFn) error {
	if !fn(n) {
		return nil
	}
	return Walk(inspector{fn: fn}, n)
}
