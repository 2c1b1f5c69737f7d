// Package tags implements the tag and constant allocator of spec.md §4.4,
// grounded on original_source/ome/idalloc.py's IdAllocator. Tag IDs are
// small integers packed into the high bits of a 64-bit tagged value: the
// allocator assigns opaque, pointer, user-block, and constant tags into
// disjoint ranges and interns constants by value so two references to the
// same built-in (e.g. True) collapse onto one constant ID.
package tags

import (
	"fmt"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/errs"
)

// Layout constants (spec.md §4.4). The tagged-value MSB is the error bit
// (spec.md §4.6), so only the low NumTagBits-1 bits are available for
// assignable tag IDs; no defining source for concrete values was present
// in the retrieved original_source/ files — chosen and recorded in
// DESIGN.md's Open Questions.
const (
	NumTagBits     = 8
	MaxTag         = 120 // highest assignable non-constant tag ID
	MinConstantTag = 96  // first tag ID of the constant range
	MaxConstant    = 24  // count of constant IDs addressable in that range

	// TagConstant is the fixed tag ID of the "Constant" opaque kind: it is
	// always the first name in opaqueNames, so it is always ID 0
	// (original_source/ome/idalloc.py asserts `Tag_Constant ==
	// self.tags['Constant']` for the same reason). The emitter's dispatch
	// code tests a receiver's tag against this value to special-case the
	// constant range (spec.md §4.9).
	TagConstant = 0
)

// opaqueNames are runtime-provided tags (integers, booleans, ...),
// assigned IDs 0..len(opaqueNames)-1.
var opaqueNames = []string{
	"Constant",
	"Small-Integer",
	"Small-Decimal",
}

// TagString is the fixed tag ID of the heap-allocated String kind: the
// first name in pointerNames, immediately following opaqueNames, so it is
// always len(opaqueNames).
var TagString = len(opaqueNames)

// pointerNames are heap-pointer tags, assigned immediately after the
// opaque range. Their lower bound is the "pointer tag threshold" the GC
// uses to decide whether a tagged word is a root.
var pointerNames = []string{
	"String",
	"String-Buffer",
	"Byte-Array",
	"Byte-Array-Mutable",
	"Byte-Array-Buffer",
	"Array",
	"Array-Mutable",
	"Array-Buffer",
}

// builtinConstantNames occupy the first constant-ID slots, in this fixed
// order, so the runtime can rely on e.g. Constant_False always mapping to
// ConstantFalse (spec.md §4.4: "the allocator must guarantee
// Constant_BuiltIn maps to the fixed ID the runtime expects").
var builtinConstantNames = []string{
	"False",
	"True",
	"Empty",
	"BuiltIn",
	"Stack-Overflow",
	"Not-Understood",
	"Type-Error",
	"Index-Error",
	"Overflow",
	"Divide-By-Zero",
}

// Fixed built-in constant IDs, matching builtinConstantNames' order.
const (
	ConstantFalse = iota
	ConstantTrue
	ConstantEmpty
	ConstantBuiltIn
	ConstantStackOverflow
	ConstantNotUnderstood
	ConstantTypeError
	ConstantIndexError
	ConstantOverflow
	ConstantDivideByZero
)

// Allocator assigns tag IDs to opaque/pointer/user-block kinds and
// constant IDs to interned constant names, per spec.md §4.4.
type Allocator struct {
	nextTag       int
	pointerTagID  int // "P": first pointer tag; also the GC's root threshold
	blockTagStart int // "P+Q": first user-block tag
	names         map[int]string

	constantsByName map[string]int
	nextConstant    int
}

// NewAllocator creates an Allocator with the opaque and pointer ranges
// pre-assigned and the built-in constant names interned at their fixed
// IDs.
func NewAllocator() *Allocator {
	return NewAllocatorWithPointerThreshold(0)
}

// NewAllocatorWithPointerThreshold is NewAllocator, but reserves opaque
// tag IDs up to minPointerTag before opening the pointer range, so the
// GC's pointer/immediate boundary (ome.Config's "tags.pointer_threshold")
// stays fixed across compiler versions even as opaqueNames grows. A
// minPointerTag at or below the number of names in opaqueNames is a
// no-op, matching NewAllocator's unreserved layout.
func NewAllocatorWithPointerThreshold(minPointerTag int) *Allocator {
	a := &Allocator{names: map[int]string{}, constantsByName: map[string]int{}}
	for _, name := range opaqueNames {
		a.assignTag(name)
	}
	if minPointerTag > a.nextTag {
		a.nextTag = minPointerTag
	}
	a.pointerTagID = a.nextTag
	for _, name := range pointerNames {
		a.assignTag(name)
	}
	a.blockTagStart = a.nextTag
	for _, name := range builtinConstantNames {
		a.internConstant(name)
	}
	return a
}

func (a *Allocator) assignTag(name string) int {
	id := a.nextTag
	a.names[id] = name
	a.nextTag++
	return id
}

// PointerTagThreshold returns "P": the lowest tag ID that denotes a heap
// pointer. Tags below this are opaque (immediate) values.
func (a *Allocator) PointerTagThreshold() int { return a.pointerTagID }

// internConstant returns name's constant ID, allocating a new one the
// first time name is seen; repeat calls with the same name return the
// same ID (value interning, per SPEC_FULL.md §3).
func (a *Allocator) internConstant(name string) int {
	if id, ok := a.constantsByName[name]; ok {
		return id
	}
	id := a.nextConstant
	a.constantsByName[name] = id
	a.nextConstant++
	return id
}

// InternConstant returns the ConstantID for name, interning it if this is
// the first reference. Exceeding MaxConstant fails with
// ConstantSpaceExhausted.
func (a *Allocator) InternConstant(name string) (int, error) {
	id := a.internConstant(name)
	if id > MaxConstant {
		return 0, errs.Basic{
			Cat:     errs.CategoryConstantSpace,
			Message: fmt.Sprintf("constant space exhausted interning %q (id %d > max %d)", name, id, MaxConstant),
		}
	}
	return id, nil
}

// AllocateBlockTags assigns a tag to every block in blocks (spec.md §4.4):
// non-constant blocks receive sequential tags above the user-block
// threshold, in block-list order; constant blocks are interned by a
// synthetic per-block name and receive a tag in the constant range
// (MinConstantTag + constantID), matching
// original_source/ome/idalloc.py's constant_id_to_tag.
func (a *Allocator) AllocateBlockTags(blocks []*ast.Block) error {
	for _, b := range blocks {
		if b.IsConstant {
			continue
		}
		if a.nextTag >= MinConstantTag {
			return errs.Basic{Cat: errs.CategoryTagSpace, Message: "tag space exhausted allocating user block tags"}
		}
		id := a.assignTag(fmt.Sprintf("Block-%d", a.nextTag))
		b.Tag = ast.Tag{Assigned: true, IsConstant: false, PointerTag: id}
	}
	for _, b := range blocks {
		if !b.IsConstant {
			continue
		}
		constantID := a.internConstant(fmt.Sprintf("Constant-Block-%p", b))
		if constantID > MaxConstant {
			return errs.Basic{Cat: errs.CategoryConstantSpace, Message: "constant space exhausted allocating constant blocks"}
		}
		b.Tag = ast.Tag{Assigned: true, IsConstant: true, ConstantID: constantID}
	}
	return nil
}

// TagOf returns the textual name recorded for a non-constant tag ID, for
// diagnostics; ok is false for unknown or constant-range IDs.
func (a *Allocator) TagOf(id int) (string, bool) {
	name, ok := a.names[id]
	return name, ok
}

// TagValueOf returns the single runtime tag number t denotes, folding the
// constant-ID and pointer-tag namespaces into the one numeric space the
// emitter's CREATE/CALL operands need (original_source/ome/idalloc.py's
// constant_id_to_tag).
func TagValueOf(t ast.Tag) int {
	if t.IsConstant {
		return MinConstantTag + t.ConstantID
	}
	return t.PointerTag
}
