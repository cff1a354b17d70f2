package caffeine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestExprWidth(t *testing.T) {
	assert.Equal(t, uint(32), ExprWidth(NewConstantExpr(7, Width32)))
	assert.Equal(t, uint(1), ExprWidth(NewBoolConstantExpr(true)))
	assert.Equal(t, uint(16), ExprWidth(NewExtractExpr(NewConstantExpr(0xBEEF, Width32), 0, Width16)))
}

func TestBinaryOp_String(t *testing.T) {
	assert.Equal(t, "add", ADD.String())
	assert.Equal(t, "ult", ULT.String())
	assert.Equal(t, "sge", SGE.String())
}

func TestBinaryOp_IsArithmetic(t *testing.T) {
	assert.True(t, ADD.IsArithmetic())
	assert.True(t, ASHR.IsArithmetic())
	assert.False(t, EQ.IsArithmetic())
	assert.False(t, SGE.IsArithmetic())
}

func TestBinaryOp_IsCompare(t *testing.T) {
	assert.True(t, EQ.IsCompare())
	assert.True(t, SGE.IsCompare())
	assert.False(t, ADD.IsCompare())
}

func TestBinaryExpr_String(t *testing.T) {
	e := &BinaryExpr{Op: ADD, LHS: NewConstantExpr(1, Width8), RHS: NewConstantExpr(2, Width8)}
	assert.Equal(t, "(add (const 1 8) (const 2 8))", e.String())
}

func TestBinaryExpr_Type(t *testing.T) {
	sym := NewSymbolicExpr(NewSymbol("x"), IntType(Width32))
	add := NewBinaryExpr(ADD, sym, NewConstantExpr(1, Width32))
	assert.Equal(t, IntType(Width32), add.Type())

	eq := NewBinaryExpr(EQ, sym, NewConstantExpr(1, Width32))
	assert.Equal(t, IntType(WidthBool), eq.Type())
}

func symW(name string, width uint) Expr { return NewSymbolicExpr(NewSymbol(name), IntType(width)) }

func TestNewBinaryExpr_Add(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		got := NewBinaryExpr(ADD, NewConstantExpr(3, Width8), NewConstantExpr(4, Width8))
		assert.Equal(t, NewConstantExpr(7, Width8), got)
	})
	t.Run("wraps at width", func(t *testing.T) {
		got := NewBinaryExpr(ADD, NewConstantExpr(0xFF, Width8), NewConstantExpr(1, Width8))
		assert.Equal(t, NewConstantExpr(0, Width8), got)
	})
	t.Run("zero identity", func(t *testing.T) {
		x := symW("x", Width32)
		got := NewBinaryExpr(ADD, NewConstantExpr(0, Width32), x)
		assert.Equal(t, x, got)
		got2 := NewBinaryExpr(ADD, x, NewConstantExpr(0, Width32))
		assert.Equal(t, x, got2)
	})
	t.Run("symbolic operands build a node", func(t *testing.T) {
		x, y := symW("x", Width32), symW("y", Width32)
		got := NewBinaryExpr(ADD, x, y)
		want := &BinaryExpr{Op: ADD, LHS: x, RHS: y}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("constant reordered to RHS", func(t *testing.T) {
		x := symW("x", Width32)
		got := NewBinaryExpr(ADD, NewConstantExpr(5, Width32), x)
		want := &BinaryExpr{Op: ADD, LHS: x, RHS: NewConstantExpr(5, Width32)}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNewBinaryExpr_Sub(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		assert.Equal(t, NewConstantExpr(1, Width8), NewBinaryExpr(SUB, NewConstantExpr(4, Width8), NewConstantExpr(3, Width8)))
	})
	t.Run("self subtraction is zero", func(t *testing.T) {
		x := symW("x", Width32)
		assert.Equal(t, NewConstantExpr(0, Width32), NewBinaryExpr(SUB, x, x))
	})
	t.Run("zero rhs identity", func(t *testing.T) {
		x := symW("x", Width32)
		assert.Equal(t, x, NewBinaryExpr(SUB, x, NewConstantExpr(0, Width32)))
	})
}

func TestNewBinaryExpr_Mul(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		assert.Equal(t, NewConstantExpr(12, Width8), NewBinaryExpr(MUL, NewConstantExpr(3, Width8), NewConstantExpr(4, Width8)))
	})
	t.Run("one identity", func(t *testing.T) {
		x := symW("x", Width32)
		assert.Equal(t, x, NewBinaryExpr(MUL, NewConstantExpr(1, Width32), x))
		assert.Equal(t, x, NewBinaryExpr(MUL, x, NewConstantExpr(1, Width32)))
	})
	t.Run("zero absorbs", func(t *testing.T) {
		x := symW("x", Width32)
		assert.Equal(t, NewConstantExpr(0, Width32), NewBinaryExpr(MUL, NewConstantExpr(0, Width32), x))
	})
}

func TestNewBinaryExpr_Div(t *testing.T) {
	assert.Equal(t, NewConstantExpr(3, Width8), NewBinaryExpr(UDIV, NewConstantExpr(9, Width8), NewConstantExpr(3, Width8)))
	assert.Equal(t, NewConstantExpr(0xFE, Width8), NewBinaryExpr(SDIV, NewConstantExpr(0xFE, Width8), NewConstantExpr(1, Width8)))

	x := symW("x", Width32)
	got := NewBinaryExpr(UDIV, x, NewConstantExpr(2, Width32))
	want := &BinaryExpr{Op: UDIV, LHS: x, RHS: NewConstantExpr(2, Width32)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNewBinaryExpr_Rem(t *testing.T) {
	assert.Equal(t, NewConstantExpr(1, Width8), NewBinaryExpr(UREM, NewConstantExpr(7, Width8), NewConstantExpr(3, Width8)))
}

func TestNewBinaryExpr_And(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		assert.Equal(t, NewConstantExpr(0x0F, Width8), NewBinaryExpr(AND, NewConstantExpr(0xFF, Width8), NewConstantExpr(0x0F, Width8)))
	})
	t.Run("all ones identity", func(t *testing.T) {
		x := symW("x", Width8)
		assert.Equal(t, x, NewBinaryExpr(AND, x, NewConstantExpr(0xFF, Width8)))
	})
	t.Run("zero absorbs", func(t *testing.T) {
		x := symW("x", Width8)
		assert.Equal(t, NewConstantExpr(0, Width8), NewBinaryExpr(AND, x, NewConstantExpr(0, Width8)))
	})
}

func TestNewBinaryExpr_Or(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		assert.Equal(t, NewConstantExpr(0xFF, Width8), NewBinaryExpr(OR, NewConstantExpr(0xF0, Width8), NewConstantExpr(0x0F, Width8)))
	})
	t.Run("all ones absorbs", func(t *testing.T) {
		x := symW("x", Width8)
		assert.Equal(t, NewConstantExpr(0xFF, Width8), NewBinaryExpr(OR, x, NewConstantExpr(0xFF, Width8)))
	})
	t.Run("zero identity", func(t *testing.T) {
		x := symW("x", Width8)
		assert.Equal(t, x, NewBinaryExpr(OR, x, NewConstantExpr(0, Width8)))
	})
}

func TestNewBinaryExpr_Xor(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		assert.Equal(t, NewConstantExpr(0xFF, Width8), NewBinaryExpr(XOR, NewConstantExpr(0xF0, Width8), NewConstantExpr(0x0F, Width8)))
	})
	t.Run("zero identity", func(t *testing.T) {
		x := symW("x", Width8)
		assert.Equal(t, x, NewBinaryExpr(XOR, NewConstantExpr(0, Width8), x))
	})
}

func TestNewBinaryExpr_Shift(t *testing.T) {
	assert.Equal(t, NewConstantExpr(8, Width8), NewBinaryExpr(SHL, NewConstantExpr(1, Width8), NewConstantExpr(3, Width8)))
	assert.Equal(t, NewConstantExpr(1, Width8), NewBinaryExpr(LSHR, NewConstantExpr(8, Width8), NewConstantExpr(3, Width8)))
	assert.Equal(t, NewConstantExpr(0xFF, Width8), NewBinaryExpr(ASHR, NewConstantExpr(0x80, Width8), NewConstantExpr(7, Width8)))
}

func TestNewBinaryExpr_Compare(t *testing.T) {
	assert.Equal(t, NewBoolConstantExpr(true), NewBinaryExpr(ULT, NewConstantExpr(1, Width8), NewConstantExpr(2, Width8)))
	assert.Equal(t, NewBoolConstantExpr(true), NewBinaryExpr(UGT, NewConstantExpr(2, Width8), NewConstantExpr(1, Width8)))
	assert.Equal(t, NewBoolConstantExpr(true), NewBinaryExpr(SLT, NewConstantExpr(0xFF, Width8), NewConstantExpr(1, Width8)))
	assert.Equal(t, NewBoolConstantExpr(false), NewBinaryExpr(SGT, NewConstantExpr(0xFF, Width8), NewConstantExpr(1, Width8)))
}

func TestNewBinaryExpr_Eq(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		assert.Equal(t, NewBoolConstantExpr(true), NewBinaryExpr(EQ, NewConstantExpr(5, Width8), NewConstantExpr(5, Width8)))
		assert.Equal(t, NewBoolConstantExpr(false), NewBinaryExpr(EQ, NewConstantExpr(5, Width8), NewConstantExpr(6, Width8)))
	})
	t.Run("structurally identical operands fold to true", func(t *testing.T) {
		x := symW("x", Width32)
		assert.Equal(t, NewBoolConstantExpr(true), NewBinaryExpr(EQ, x, x))
	})
}

func TestNewBinaryExpr_Ne(t *testing.T) {
	got := NewBinaryExpr(NE, NewConstantExpr(5, Width8), NewConstantExpr(6, Width8))
	assert.Equal(t, NewBoolConstantExpr(true), got)
}

func TestNewBinaryExpr_WidthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewBinaryExpr(ADD, NewConstantExpr(1, Width8), NewConstantExpr(1, Width32))
	})
}

func TestNewNotExpr(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		assert.Equal(t, NewConstantExpr(0xF0, Width8), NewNotExpr(NewConstantExpr(0x0F, Width8)))
	})
	t.Run("double negation cancels", func(t *testing.T) {
		x := symW("x", Width8)
		assert.Equal(t, x, NewNotExpr(NewNotExpr(x)))
	})
}

func TestNewCastExpr(t *testing.T) {
	t.Run("zext constant folding", func(t *testing.T) {
		got := NewCastExpr(NewConstantExpr(0xFF, Width8), Width32, false)
		assert.Equal(t, NewConstantExpr(0xFF, Width32), got)
	})
	t.Run("sext constant folding preserves sign", func(t *testing.T) {
		got := NewCastExpr(NewConstantExpr(0xFF, Width8), Width32, true)
		assert.Equal(t, NewConstantExpr(0xFFFFFFFF, Width32), got)
	})
	t.Run("same width is a no-op", func(t *testing.T) {
		x := symW("x", Width32)
		assert.Equal(t, x, NewCastExpr(x, Width32, false))
	})
	t.Run("symbolic widening builds a node", func(t *testing.T) {
		x := symW("x", Width8)
		got := NewCastExpr(x, Width32, false)
		want := &CastExpr{Src: x, Width: Width32, Signed: false}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNewExtractExpr(t *testing.T) {
	t.Run("full width is a no-op", func(t *testing.T) {
		x := symW("x", Width32)
		assert.Equal(t, x, NewExtractExpr(x, 0, Width32))
	})
	t.Run("constant folding", func(t *testing.T) {
		got := NewExtractExpr(NewConstantExpr(0xBEEF, Width32), 8, Width8)
		assert.Equal(t, NewConstantExpr(0xBE, Width8), got)
	})
	t.Run("out of range panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewExtractExpr(NewConstantExpr(0, Width32), 30, Width8)
		})
	})
}

func TestNewConcatExpr(t *testing.T) {
	t.Run("constant folding", func(t *testing.T) {
		got := NewConcatExpr(NewConstantExpr(0xBE, Width8), NewConstantExpr(0xEF, Width8))
		assert.Equal(t, NewConstantExpr(0xBEEF, Width16), got)
	})
	t.Run("adjacent extracts of the same source recombine", func(t *testing.T) {
		x := symW("x", Width32)
		msb := NewExtractExpr(x, 8, Width8)
		lsb := NewExtractExpr(x, 0, Width8)
		got := NewConcatExpr(msb, lsb)
		want := NewExtractExpr(x, 0, Width16)
		assert.Equal(t, want, got)
	})
}

func TestNewSelectExpr(t *testing.T) {
	x, y := symW("x", Width32), symW("y", Width32)
	t.Run("constant true condition", func(t *testing.T) {
		assert.Equal(t, x, NewSelectExpr(NewBoolConstantExpr(true), x, y))
	})
	t.Run("constant false condition", func(t *testing.T) {
		assert.Equal(t, y, NewSelectExpr(NewBoolConstantExpr(false), x, y))
	})
	t.Run("identical branches fold regardless of condition", func(t *testing.T) {
		cond := symW("c", WidthBool)
		assert.Equal(t, x, NewSelectExpr(cond, x, x))
	})
}

func TestCompareExpr(t *testing.T) {
	x := symW("x", Width32)
	y := symW("y", Width32)
	assert.Equal(t, 0, CompareExpr(x, x))
	assert.NotEqual(t, 0, CompareExpr(x, y))
	assert.Equal(t, 0, CompareExpr(NewConstantExpr(1, Width8), NewConstantExpr(1, Width8)))
	assert.NotEqual(t, 0, CompareExpr(NewConstantExpr(1, Width8), NewConstantExpr(2, Width8)))
}

func TestFindArrays(t *testing.T) {
	a1 := NewArray(1, 4, Width32)
	a2 := NewArray(2, 4, Width32)
	idx := NewConstantExpr(0, Width32)
	e := NewBinaryExpr(ADD, NewLoadExpr(a1, idx), NewLoadExpr(a2, idx))

	arrays := FindArrays(e)
	assert.Len(t, arrays, 2)
	assert.Equal(t, uint64(1), arrays[0].ID)
	assert.Equal(t, uint64(2), arrays[1].ID)
}

func TestExprEvaluator_Evaluate(t *testing.T) {
	arr := NewArray(1, 4, Width32)
	ee := NewExprEvaluator([]*Array{arr}, [][]byte{{10, 20, 30, 40}})

	load := NewLoadExpr(arr, NewConstantExpr(1, Width32))
	got, err := ee.Evaluate(load)
	assert.NoError(t, err)
	assert.Equal(t, NewConstantExpr(20, Width8), got)

	expr := NewBinaryExpr(ADD, load, NewConstantExpr(5, Width8))
	got, err = ee.Evaluate(expr)
	assert.NoError(t, err)
	assert.Equal(t, NewConstantExpr(25, Width8), got)
}

func TestExprEvaluator_Evaluate_OutOfBounds(t *testing.T) {
	arr := NewArray(1, 2, Width32)
	ee := NewExprEvaluator([]*Array{arr}, [][]byte{{1, 2}})
	_, err := ee.Evaluate(NewLoadExpr(arr, NewConstantExpr(9, Width32)))
	assert.Error(t, err)
}
