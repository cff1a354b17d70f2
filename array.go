package caffeine

import "fmt"

// Array is a persistent byte array backing an Allocation: a base value
// plus a linked list of symbolic updates layered on top of it (spec
// §4.C's "backing array-expression indexed by a bit-vector... storing
// 8-bit values").
type Array struct {
	ID          uint64
	Size        uint // width, in bytes
	IndexWidth  uint // bit width of the index (heap pointer width)
	Updates     *ArrayUpdate
}

// NewArray returns a new zero-initialized Array of the given size,
// indexed by indexWidth-bit offsets.
func NewArray(id uint64, size, indexWidth uint) *Array {
	return &Array{ID: id, Size: size, IndexWidth: indexWidth}
}

func (a *Array) String() string {
	if a.ID != 0 {
		return fmt.Sprintf("(array #%d %d)", a.ID, a.Size)
	}
	return fmt.Sprintf("(array %d)", a.Size)
}

// Clone returns a shallow copy of the array; Updates is shared since it
// is itself an immutable linked list.
func (a *Array) Clone() *Array {
	return &Array{ID: a.ID, Size: a.Size, IndexWidth: a.IndexWidth, Updates: a.Updates}
}

// Select reads a width-bit value at offset, byte by byte, in the given
// endianness.
func (a *Array) Select(offset Expr, width uint, littleEndian bool) Expr {
	assert(width > 0, "select: invalid width")
	offset = newZExtExpr(offset, a.IndexWidth)

	if width == WidthBool {
		return NewExtractExpr(a.selectByte(offset), 0, WidthBool)
	}

	var result Expr
	n := width / 8
	for i := uint(0); i != n; i++ {
		byteOffset := i
		if !littleEndian {
			byteOffset = n - i - 1
		}
		value := a.selectByte(NewBinaryExpr(ADD, offset, a.indexConst(uint64(byteOffset))))
		if i == 0 {
			result = value
		} else {
			result = NewConcatExpr(value, result)
		}
	}
	return result
}

func (a *Array) indexConst(v uint64) Expr { return NewConstantExpr(v, a.IndexWidth) }

// selectByte reads a single byte, walking the update chain for a
// constant-index hit before falling back to a solver-level load.
func (a *Array) selectByte(index Expr) Expr {
	assert(ExprWidth(index) == a.IndexWidth, "selectByte: invalid array index width: %d", ExprWidth(index))
	for upd := a.Updates; upd != nil; upd = upd.Next {
		eq, ok := NewBinaryExpr(EQ, index, upd.Index).(*ConstantExpr)
		if !ok {
			break // symbolic index in the chain, must fall back to solver
		} else if eq.IsTrue() {
			return upd.Value
		}
	}
	return NewLoadExpr(a, index)
}

// Store writes value at offset and returns the updated array.
func (a *Array) Store(offset, value Expr, littleEndian bool) *Array {
	other := a.Clone()
	offset = newZExtExpr(offset, a.IndexWidth)

	width := ExprWidth(value)
	assert(width > 0, "store: invalid width")
	if width == WidthBool {
		other.storeByte(offset, value)
		return other
	}

	n := width / 8
	for i := uint(0); i != n; i++ {
		byteOffset := i
		if !littleEndian {
			byteOffset = n - i - 1
		}
		other.storeByte(
			NewBinaryExpr(ADD, offset, a.indexConst(uint64(byteOffset))),
			NewExtractExpr(value, i*8, Width8),
		)
	}
	return other
}

func (a *Array) storeByte(index, value Expr) {
	assert(ExprWidth(index) == a.IndexWidth, "storeByte: invalid array index width: %d", ExprWidth(index))

	if c, ok := index.(*ConstantExpr); ok {
		assert(c.Value.Uint64() < uint64(a.Size), "storeByte: index out of bounds")
	}

	a.Updates = NewArrayUpdate(index, value, a.Updates)

	if c, ok := index.(*ConstantExpr); ok {
		prev := a.Updates
		for upd := prev.Next; upd != nil; upd = upd.Next {
			uc, ok := upd.Index.(*ConstantExpr)
			if !ok {
				break
			}
			if c.Value.Eq(uc.Value) {
				prev.Next = upd.Next
			} else {
				// copy rather than relink: upd may be shared with clones
				cp := *upd
				prev.Next = &cp
				prev = &cp
			}
		}
	}
}

// IsSymbolic reports whether any byte of the array is not fully concrete.
func (a *Array) IsSymbolic() bool {
	concrete := make([]bool, a.Size)
	for upd := a.Updates; upd != nil; upd = upd.Next {
		idx, ok := upd.Index.(*ConstantExpr)
		if !ok {
			return true
		}
		if _, ok := upd.Value.(*ConstantExpr); ok {
			concrete[idx.Value.Uint64()] = true
		}
	}
	for _, c := range concrete {
		if !c {
			return true
		}
	}
	return false
}

// Equal returns an expression asserting a and other hold the same bytes.
func (a *Array) Equal(other *Array) Expr {
	if a.Size != other.Size {
		return NewBoolConstantExpr(false)
	} else if a.Size == 0 {
		return NewBoolConstantExpr(true)
	}

	var cond Expr
	for i := uint(0); i < a.Size; i++ {
		idx := a.indexConst(uint64(i))
		x, y := a.selectByte(idx), other.selectByte(idx)
		eq := newEqExpr(x, y)
		if IsConstantFalse(eq) {
			return NewBoolConstantExpr(false)
		}
		if i == 0 {
			cond = eq
		} else {
			cond = newAndExpr(cond, eq)
		}
	}
	return cond
}

// CompareArray structurally orders two arrays (nil sorts first).
func CompareArray(a, b *Array) int {
	if a == nil && b == nil {
		return 0
	} else if a == nil {
		return -1
	} else if b == nil {
		return 1
	}
	if a.ID != b.ID {
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	if a.Size != b.Size {
		if a.Size < b.Size {
			return -1
		}
		return 1
	}
	return CompareArrayUpdate(a.Updates, b.Updates)
}

// ArrayUpdate is one node of an array's persistent update log.
type ArrayUpdate struct {
	Index Expr
	Value Expr
	Next  *ArrayUpdate
}

func NewArrayUpdate(index, value Expr, next *ArrayUpdate) *ArrayUpdate {
	return &ArrayUpdate{
		Index: index,
		Value: newZExtExpr(value, Width8),
		Next:  next,
	}
}

func CompareArrayUpdate(a, b *ArrayUpdate) int {
	if a == nil && b == nil {
		return 0
	} else if a == nil {
		return -1
	} else if b == nil {
		return 1
	}
	if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
		return cmp
	}
	if cmp := CompareExpr(a.Value, b.Value); cmp != 0 {
		return cmp
	}
	return CompareArrayUpdate(a.Next, b.Next)
}
