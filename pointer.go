package caffeine

import "fmt"

// Pointer identifies a location in a Context's heap space: which heap,
// which allocation within it, and a byte offset into that allocation.
// A pointer constructed directly from a raw address (e.g. the result of
// a symbolic computation) carries no heap/alloc yet — Address is set and
// resolved is false — until Heaps.Resolve ties it to one or more
// concrete allocations (spec §4.C, original_source's
// InterpreterContext::ptr_resolve).
type Pointer struct {
	heap     int
	alloc    uint64
	offset   Expr
	address  Expr // raw (possibly symbolic) address; valid when !resolved
	resolved bool
}

// NewPointer returns a resolved pointer into a specific allocation.
func NewPointer(heap int, alloc uint64, offset Expr) Pointer {
	return Pointer{heap: heap, alloc: alloc, offset: offset, resolved: true}
}

// NewUnresolvedPointer wraps a raw address expression that has not yet
// been tied to a specific allocation.
func NewUnresolvedPointer(address Expr) Pointer {
	return Pointer{address: address}
}

func (p Pointer) IsResolved() bool { return p.resolved }
func (p Pointer) Heap() int        { return p.heap }
func (p Pointer) Alloc() uint64    { return p.alloc }
func (p Pointer) Offset() Expr     { return p.offset }
func (p Pointer) Address() Expr    { return p.address }

// WithOffset returns a copy of a resolved pointer at a new offset into
// the same allocation.
func (p Pointer) WithOffset(offset Expr) Pointer {
	assert(p.resolved, "WithOffset: pointer not resolved")
	p.offset = offset
	return p
}

func (p Pointer) String() string {
	if !p.resolved {
		return fmt.Sprintf("(ptr unresolved %s)", p.address)
	}
	return fmt.Sprintf("(ptr heap=%d alloc=%d %s)", p.heap, p.alloc, p.offset)
}

// AsAddress returns an expression for the pointer's address as seen by
// the interpreted program: offset when resolved, the raw address
// otherwise.
func (p Pointer) AsAddress() Expr {
	if !p.resolved {
		return p.address
	}
	return p.offset
}

func ComparePointer(a, b Pointer) int {
	if a.resolved != b.resolved {
		if !a.resolved {
			return -1
		}
		return 1
	}
	if !a.resolved {
		return CompareExpr(a.address, b.address)
	}
	if a.heap != b.heap {
		if a.heap < b.heap {
			return -1
		}
		return 1
	}
	if a.alloc != b.alloc {
		if a.alloc < b.alloc {
			return -1
		}
		return 1
	}
	return CompareExpr(a.offset, b.offset)
}
