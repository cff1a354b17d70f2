package caffeine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeap_AllocAssignsIncreasingIDs(t *testing.T) {
	h := NewHeap(AllocHeap)
	a := h.Alloc(NewConstantExpr(0x1000, Width64), NewConstantExpr(8, Width64), Width64)
	b := h.Alloc(NewConstantExpr(0x2000, Width64), NewConstantExpr(8, Width64), Width64)

	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, uint64(2), b.ID)
	assert.Equal(t, h.Get(a.ID), a)
	assert.Equal(t, h.Get(b.ID), b)
}

func TestHeap_Free(t *testing.T) {
	h := NewHeap(AllocHeap)
	a := h.Alloc(NewConstantExpr(0x1000, Width64), NewConstantExpr(8, Width64), Width64)
	h.Free(a.ID)
	assert.Nil(t, h.Get(a.ID))
}

func TestHeap_Clone_IsCopyOnWrite(t *testing.T) {
	h := NewHeap(AllocHeap)
	a := h.Alloc(NewConstantExpr(0x1000, Width64), NewConstantExpr(8, Width64), Width64)

	clone := h.Clone()
	clone.Alloc(NewConstantExpr(0x2000, Width64), NewConstantExpr(8, Width64), Width64)

	assert.Len(t, h.Allocations(), 1)
	assert.Len(t, clone.Allocations(), 2)
	assert.Equal(t, a.ID, h.Allocations()[0].ID)
}

func TestHeaps_Of(t *testing.T) {
	h := NewHeaps()
	assert.NotNil(t, h.Of(AllocStack))
	assert.NotNil(t, h.Of(AllocHeap))
	assert.NotNil(t, h.Of(AllocGlobal))
}

func TestHeaps_Allocation(t *testing.T) {
	h := NewHeaps()
	a := h.Of(AllocHeap).Alloc(NewConstantExpr(0x1000, Width64), NewConstantExpr(8, Width64), Width64)

	p := NewPointer(int(AllocHeap), a.ID, NewConstantExpr(0, Width64))
	assert.Equal(t, a, h.Allocation(p))
}

func TestHeaps_CheckValid_Resolved(t *testing.T) {
	h := NewHeaps()
	a := h.Of(AllocHeap).Alloc(NewConstantExpr(0x1000, Width64), NewConstantExpr(8, Width64), Width64)

	p := NewPointer(int(AllocHeap), a.ID, NewConstantExpr(0, Width64))
	assert.Equal(t, NewBoolConstantExpr(true), h.CheckValid(p, 4))

	bad := NewPointer(int(AllocHeap), a.ID, NewConstantExpr(6, Width64))
	assert.Equal(t, NewBoolConstantExpr(false), h.CheckValid(bad, 4))
}

func TestHeaps_Resolve_ResolvedPointerPassesThrough(t *testing.T) {
	h := NewHeaps()
	p := NewPointer(int(AllocHeap), 1, NewConstantExpr(0, Width64))
	backend := &fakeSolver{result: SAT(nil)}
	got := h.Resolve(NewContext(64, true), backend, p)
	assert.Equal(t, []Pointer{p}, got)
	assert.Equal(t, 0, backend.calls, "an already-resolved pointer needs no solver query")
}

func TestHeaps_Resolve_UnresolvedFindsFeasibleCandidate(t *testing.T) {
	h := NewHeaps()
	a := h.Of(AllocHeap).Alloc(NewConstantExpr(0x1000, Width64), NewConstantExpr(8, Width64), Width64)

	ctx := NewContext(64, true)
	unresolved := NewUnresolvedPointer(NewConstantExpr(0x1004, Width64))
	backend := &fakeSolver{result: SAT(nil)}

	candidates := h.Resolve(ctx, backend, unresolved)
	assert.Len(t, candidates, 1)
	assert.Equal(t, a.ID, candidates[0].Alloc())
}

func TestHeaps_Resolve_SkipsStructurallyOutOfRangeAllocation(t *testing.T) {
	h := NewHeaps()
	h.Of(AllocHeap).Alloc(NewConstantExpr(0x1000, Width64), NewConstantExpr(8, Width64), Width64)

	ctx := NewContext(64, true)
	// address below the allocation's base underflows to a huge unsigned
	// offset, which CheckInbounds can refute without a solver query.
	unresolved := NewUnresolvedPointer(NewConstantExpr(0x500, Width64))
	backend := &fakeSolver{result: SAT(nil)}

	candidates := h.Resolve(ctx, backend, unresolved)
	assert.Len(t, candidates, 0)
	assert.Equal(t, 0, backend.calls)
}
