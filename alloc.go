package caffeine

import "fmt"

// AllocKind distinguishes the origin of an allocation, mirroring the
// separate heaps original_source keeps for stack, heap and global
// storage (a Pointer's heap() selects among them).
type AllocKind int

const (
	AllocStack AllocKind = iota
	AllocHeap
	AllocGlobal
)

func (k AllocKind) String() string {
	switch k {
	case AllocStack:
		return "stack"
	case AllocHeap:
		return "heap"
	case AllocGlobal:
		return "global"
	default:
		return "alloc"
	}
}

// Allocation is a single block of addressable memory: a symbolic byte
// array plus its base address and kind. Size is tracked separately from
// the backing array's byte count so a variable-length malloc can be
// modeled with a symbolic size (spec §4.C). Heap.Alloc sizes the backing
// array from Size only when Size is a constant; an allocation with a
// symbolic Size gets a zero-length backing array.
type Allocation struct {
	ID      uint64
	Kind    AllocKind
	Base    Expr // pointer-width address of byte 0
	Size    Expr // pointer-width symbolic or concrete length in bytes
	Array   *Array
	Live    bool
}

func NewAllocation(id uint64, kind AllocKind, base, size Expr, array *Array) *Allocation {
	return &Allocation{ID: id, Kind: kind, Base: base, Size: size, Array: array, Live: true}
}

func (a *Allocation) String() string {
	return fmt.Sprintf("(alloc #%d %s base=%s size=%s)", a.ID, a.Kind, a.Base, a.Size)
}

// Clone returns a shallow copy; the backing Array is itself
// copy-on-write, so only a new header is needed for a fork.
func (a *Allocation) Clone() *Allocation {
	other := *a
	return &other
}

// CheckInbounds returns an assertion that the half-open byte range
// [offset, offset+width) lies entirely within the allocation,
// equivalent to original_source's Allocation::check_inbounds used by
// TransformBuilder::resolve.
func (a *Allocation) CheckInbounds(offset Expr, width uint) Expr {
	widthWidth := ExprWidth(offset)
	end := NewBinaryExpr(ADD, offset, NewConstantExpr(uint64(width), widthWidth))
	withinLow := NewBinaryExpr(UGE, offset, NewConstantExpr(0, widthWidth))
	withinHigh := NewBinaryExpr(ULE, end, a.Size)
	noOverflow := NewBinaryExpr(UGE, end, offset)
	return NewBinaryExpr(AND, NewBinaryExpr(AND, withinLow, withinHigh), noOverflow)
}

// Read loads a width-bit value at offset, honoring littleEndian.
func (a *Allocation) Read(offset Expr, width uint, littleEndian bool) Expr {
	return a.Array.Select(offset, width, littleEndian)
}

// Write stores value at offset into a fresh copy of the allocation's
// backing array and returns a clone of the allocation pointing at it.
func (a *Allocation) Write(offset, value Expr, littleEndian bool) *Allocation {
	other := a.Clone()
	other.Array = a.Array.Store(offset, value, littleEndian)
	return other
}
