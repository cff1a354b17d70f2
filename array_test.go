package caffeine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArray_StoreThenSelect_Concrete(t *testing.T) {
	a := NewArray(1, 4, Width32)
	a = a.Store(NewConstantExpr(0, Width32), NewConstantExpr(0xDEADBEEF, Width32), true)

	got := a.Select(NewConstantExpr(0, Width32), Width32, true)
	assert.Equal(t, NewConstantExpr(0xDEADBEEF, Width32), got)
}

func TestArray_StoreThenSelect_BigEndian(t *testing.T) {
	a := NewArray(1, 4, Width32)
	a = a.Store(NewConstantExpr(0, Width32), NewConstantExpr(0x01020304, Width32), false)

	got := a.Select(NewConstantExpr(0, Width32), Width8, false)
	assert.Equal(t, NewConstantExpr(0x01, Width8), got)
}

func TestArray_OverlappingStoreShadowsPriorUpdate(t *testing.T) {
	a := NewArray(1, 4, Width32)
	a = a.Store(NewConstantExpr(0, Width32), NewConstantExpr(0xAA, Width8), true)
	a = a.Store(NewConstantExpr(0, Width32), NewConstantExpr(0xBB, Width8), true)

	got := a.Select(NewConstantExpr(0, Width32), Width8, true)
	assert.Equal(t, NewConstantExpr(0xBB, Width8), got)

	n := 0
	for upd := a.Updates; upd != nil; upd = upd.Next {
		n++
	}
	assert.Equal(t, 1, n, "stale shadowed update at the same constant index should be pruned")
}

func TestArray_StoreIsImmutable(t *testing.T) {
	a := NewArray(1, 4, Width32)
	b := a.Store(NewConstantExpr(0, Width32), NewConstantExpr(0xFF, Width8), true)

	assert.Nil(t, a.Updates)
	assert.NotNil(t, b.Updates)
}

func TestArray_SelectUnwrittenByteIsSymbolicLoad(t *testing.T) {
	a := NewArray(7, 4, Width32)
	got := a.Select(NewConstantExpr(2, Width32), Width8, true)
	load, ok := got.(*LoadExpr)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), load.Array.ID)
}

func TestArray_IsSymbolic(t *testing.T) {
	a := NewArray(1, 2, Width32)
	assert.True(t, a.IsSymbolic(), "unwritten array is symbolic")

	a = a.Store(NewConstantExpr(0, Width32), NewConstantExpr(1, Width8), true)
	a = a.Store(NewConstantExpr(1, Width32), NewConstantExpr(2, Width8), true)
	assert.False(t, a.IsSymbolic(), "every byte concretely written")

	sym := NewSymbolicExpr(NewSymbol("x"), IntType(Width8))
	a = a.Store(NewConstantExpr(0, Width32), sym, true)
	assert.True(t, a.IsSymbolic(), "a symbolic byte value makes the whole array symbolic")
}

func TestArray_Equal(t *testing.T) {
	a := NewArray(1, 2, Width32)
	a = a.Store(NewConstantExpr(0, Width32), NewConstantExpr(1, Width8), true)
	a = a.Store(NewConstantExpr(1, Width32), NewConstantExpr(2, Width8), true)

	b := NewArray(2, 2, Width32)
	b = b.Store(NewConstantExpr(0, Width32), NewConstantExpr(1, Width8), true)
	b = b.Store(NewConstantExpr(1, Width32), NewConstantExpr(2, Width8), true)

	assert.Equal(t, NewBoolConstantExpr(true), a.Equal(b))

	c := NewArray(3, 2, Width32)
	c = c.Store(NewConstantExpr(0, Width32), NewConstantExpr(9, Width8), true)
	c = c.Store(NewConstantExpr(1, Width32), NewConstantExpr(2, Width8), true)
	assert.Equal(t, NewBoolConstantExpr(false), a.Equal(c))
}

func TestArray_Equal_DifferentSize(t *testing.T) {
	a := NewArray(1, 2, Width32)
	b := NewArray(2, 4, Width32)
	assert.Equal(t, NewBoolConstantExpr(false), a.Equal(b))
}

func TestCompareArray(t *testing.T) {
	a := NewArray(1, 4, Width32)
	b := NewArray(1, 4, Width32)
	assert.Equal(t, 0, CompareArray(a, b))

	c := NewArray(2, 4, Width32)
	assert.NotEqual(t, 0, CompareArray(a, c))
}

func TestArray_Clone_SharesUpdatesButNotHeader(t *testing.T) {
	a := NewArray(1, 4, Width32)
	a = a.Store(NewConstantExpr(0, Width32), NewConstantExpr(1, Width8), true)

	b := a.Clone()
	assert.Equal(t, a.Updates, b.Updates)

	b.Updates = nil
	assert.NotNil(t, a.Updates, "clone header mutation must not affect the original")
}
