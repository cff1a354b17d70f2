package caffeine

import "github.com/benbjohnson/immutable"

// Heap is a persistent, copy-on-write collection of allocations sharing
// one address kind (stack/heap/global). Using immutable.SortedMap here
// mirrors glee's ExecutionState.heap field, generalized from a single
// flat map to one instance per AllocKind (spec §4.C: "a context owns one
// or more heaps").
type Heap struct {
	kind    AllocKind
	allocs  *immutable.SortedMap
	nextID  uint64
}

func NewHeap(kind AllocKind) *Heap {
	return &Heap{kind: kind, allocs: immutable.NewSortedMap(&uint64Comparer{}), nextID: 1}
}

func (h *Heap) Clone() *Heap {
	return &Heap{kind: h.kind, allocs: h.allocs, nextID: h.nextID}
}

// Alloc reserves a new allocation of size bytes and returns it.
func (h *Heap) Alloc(base, size Expr, indexWidth uint) *Allocation {
	id := h.nextID
	h.nextID++

	var byteCount uint
	if c, ok := size.(*ConstantExpr); ok {
		byteCount = uint(c.Value.Uint64())
	}
	array := NewArray(id, byteCount, indexWidth)
	alloc := NewAllocation(id, h.kind, base, size, array)
	h.allocs = h.allocs.Set(id, alloc)
	return alloc
}

// Get returns the allocation with the given id, or nil.
func (h *Heap) Get(id uint64) *Allocation {
	v, ok := h.allocs.Get(id)
	if !ok {
		return nil
	}
	return v.(*Allocation)
}

// Set replaces (or inserts) an allocation.
func (h *Heap) Set(a *Allocation) {
	h.allocs = h.allocs.Set(a.ID, a)
}

// Free drops an allocation from the map (further accesses will fail to
// resolve). The Allocation value itself, and its Live flag, are left
// unchanged.
func (h *Heap) Free(id uint64) {
	h.allocs = h.allocs.Delete(id)
}

// Allocations iterates every live allocation in id order.
func (h *Heap) Allocations() []*Allocation {
	var out []*Allocation
	itr := h.allocs.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		out = append(out, v.(*Allocation))
	}
	return out
}

// uint64Comparer orders heap/allocation keys, adapted from glee's
// ExecutionState heap comparer.
type uint64Comparer struct{}

func (c *uint64Comparer) Compare(a, b interface{}) int {
	x, y := a.(uint64), b.(uint64)
	if x < y {
		return -1
	} else if x > y {
		return 1
	}
	return 0
}

// Heaps is the full set of address spaces a Context owns, indexed by
// AllocKind. Pointer.Heap() selects among them the way
// original_source's Pointer::heap() indexes ctx.heaps.
type Heaps struct {
	spaces [3]*Heap // indexed by AllocKind
}

func NewHeaps() *Heaps {
	return &Heaps{spaces: [3]*Heap{NewHeap(AllocStack), NewHeap(AllocHeap), NewHeap(AllocGlobal)}}
}

func (h *Heaps) Clone() *Heaps {
	other := &Heaps{}
	for i, s := range h.spaces {
		other.spaces[i] = s.Clone()
	}
	return other
}

func (h *Heaps) Of(kind AllocKind) *Heap { return h.spaces[kind] }

func (h *Heaps) Allocation(p Pointer) *Allocation {
	assert(p.IsResolved(), "Allocation: pointer not resolved")
	return h.spaces[p.heap].Get(p.alloc)
}

// CheckValid returns an assertion that a pointer (resolved or not) names
// a live allocation with room for a width-byte access. For an
// unresolved pointer this degenerates to "some live allocation contains
// this address", evaluated lazily by Resolve.
func (h *Heaps) CheckValid(p Pointer, width uint) Expr {
	if p.IsResolved() {
		alloc := h.Allocation(p)
		if alloc == nil || !alloc.Live {
			return NewBoolConstantExpr(false)
		}
		return alloc.CheckInbounds(p.offset, width)
	}

	var cond Expr = NewBoolConstantExpr(false)
	for _, space := range h.spaces {
		for _, alloc := range space.Allocations() {
			if !alloc.Live {
				continue
			}
			offset := NewBinaryExpr(SUB, p.address, alloc.Base)
			cond = NewBinaryExpr(OR, cond, alloc.CheckInbounds(offset, width))
		}
	}
	return cond
}

// Resolve returns the set of resolved pointers an unresolved pointer
// could feasibly name, one per allocation whose address range is
// satisfiable against the current path condition together with ctx's
// accumulated constraints. Grounded on
// original_source/src/Interpreter/TransformBuilder.cpp's resolve() loop,
// which forks the context once per candidate and back-propagates the
// equality when the pointer was not already resolved.
func (h *Heaps) Resolve(ctx *Context, solver Solver, p Pointer) []Pointer {
	if p.IsResolved() {
		return []Pointer{p}
	}

	var candidates []Pointer
	for kindIdx, space := range h.spaces {
		for _, alloc := range space.Allocations() {
			if !alloc.Live {
				continue
			}
			offset := NewBinaryExpr(SUB, p.address, alloc.Base)
			inRange := alloc.CheckInbounds(offset, 0)
			if IsConstantFalse(inRange) {
				continue
			}
			result, err := solver.Check(append(ctx.Assertions.All(), NewAssertion(inRange)))
			if err != nil || result.Kind != SolverSAT {
				continue
			}
			candidates = append(candidates, NewPointer(kindIdx, alloc.ID, offset))
		}
	}
	return candidates
}
