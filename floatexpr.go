package caffeine

import (
	"fmt"
	"math"
)

// FloatBinaryOp enumerates the IEEE-754 binary float operators (spec
// §3/§6.A "float compare"/float arithmetic), kept distinct from the
// integer BinaryOp family the way original_source's opcode table keeps
// FAdd/FSub/... separate from Add/Sub/....
type FloatBinaryOp int

const (
	FADD FloatBinaryOp = iota
	FSUB
	FMUL
	FDIV
	FREM
)

var floatBinaryOpNames = [...]string{"fadd", "fsub", "fmul", "fdiv", "frem"}

func (op FloatBinaryOp) String() string { return floatBinaryOpNames[op] }

// FloatCompareOp enumerates the six ordered float comparison predicates
// (spec §3: "float compare (EQ, NE, LT, LE, GT, GE — ordered)").
type FloatCompareOp int

const (
	FCMP_EQ FloatCompareOp = iota
	FCMP_NE
	FCMP_LT
	FCMP_LE
	FCMP_GT
	FCMP_GE
)

var floatCompareOpNames = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (op FloatCompareOp) String() string { return floatCompareOpNames[op] }

// FloatBinaryExpr applies an IEEE-754 arithmetic operator to two
// equal-shape float operands.
type FloatBinaryExpr struct {
	Op       FloatBinaryOp
	LHS, RHS Expr
}

func (e *FloatBinaryExpr) Type() Type     { return e.LHS.Type() }
func (e *FloatBinaryExpr) String() string { return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS) }
func (*FloatBinaryExpr) expr()            {}

// NewFloatBinaryExpr builds (or folds) a float binary expression.
func NewFloatBinaryExpr(op FloatBinaryOp, lhs, rhs Expr) Expr {
	lc, lok := lhs.(*ConstantFloatExpr)
	rc, rok := rhs.(*ConstantFloatExpr)
	if lok && rok {
		a, b := lc.Float64(), rc.Float64()
		var r float64
		switch op {
		case FADD:
			r = a + b
		case FSUB:
			r = a - b
		case FMUL:
			r = a * b
		case FDIV:
			r = a / b
		case FREM:
			r = math.Mod(a, b)
		}
		return NewConstantFloatExprFromFloat64(r, lc.Kind)
	}
	return &FloatBinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// FloatCompareExpr is an ordered IEEE-754 comparison, yielding a 1-bit
// boolean result (NaN operands make every predicate but NE false).
type FloatCompareExpr struct {
	Op       FloatCompareOp
	LHS, RHS Expr
}

func (e *FloatCompareExpr) Type() Type     { return IntType(WidthBool) }
func (e *FloatCompareExpr) String() string { return fmt.Sprintf("(fcmp.%s %s %s)", e.Op, e.LHS, e.RHS) }
func (*FloatCompareExpr) expr()            {}

func NewFloatCompareExpr(op FloatCompareOp, lhs, rhs Expr) Expr {
	lc, lok := lhs.(*ConstantFloatExpr)
	rc, rok := rhs.(*ConstantFloatExpr)
	if lok && rok {
		a, b := lc.Float64(), rc.Float64()
		nan := math.IsNaN(a) || math.IsNaN(b)
		var r bool
		switch op {
		case FCMP_EQ:
			r = !nan && a == b
		case FCMP_NE:
			r = nan || a != b
		case FCMP_LT:
			r = !nan && a < b
		case FCMP_LE:
			r = !nan && a <= b
		case FCMP_GT:
			r = !nan && a > b
		case FCMP_GE:
			r = !nan && a >= b
		}
		return NewBoolConstantExpr(r)
	}
	return &FloatCompareExpr{Op: op, LHS: lhs, RHS: rhs}
}

// FNegExpr negates a float's sign bit.
type FNegExpr struct{ Expr Expr }

func (e *FNegExpr) Type() Type     { return e.Expr.Type() }
func (e *FNegExpr) String() string { return fmt.Sprintf("(fneg %s)", e.Expr) }
func (*FNegExpr) expr()            {}

func NewFNegExpr(e Expr) Expr {
	if c, ok := e.(*ConstantFloatExpr); ok {
		return NewConstantFloatExprFromFloat64(-c.Float64(), c.Kind)
	}
	return &FNegExpr{Expr: e}
}

// FIsNaNExpr tests whether a float is NaN.
type FIsNaNExpr struct{ Expr Expr }

func (e *FIsNaNExpr) Type() Type     { return IntType(WidthBool) }
func (e *FIsNaNExpr) String() string { return fmt.Sprintf("(fisnan %s)", e.Expr) }
func (*FIsNaNExpr) expr()            {}

func NewFIsNaNExpr(e Expr) Expr {
	if c, ok := e.(*ConstantFloatExpr); ok {
		return NewBoolConstantExpr(c.IsNaN())
	}
	return &FIsNaNExpr{Expr: e}
}

// BitcastExpr reinterprets a bit pattern between int and float shape
// without changing the bits (spec §4.A "bitcast"); original_source's
// Z3Solver.cpp handles exactly these two directions.
type BitcastExpr struct {
	Src  Expr
	Kind Type
}

func (e *BitcastExpr) Type() Type     { return e.Kind }
func (e *BitcastExpr) String() string { return fmt.Sprintf("(bitcast %s %s)", e.Src, e.Kind) }
func (*BitcastExpr) expr()            {}

func NewBitcastExpr(src Expr, t Type) Expr {
	st := src.Type()
	if st.Equal(t) {
		return src
	}
	if c, ok := src.(*ConstantExpr); ok && t.IsFloat() {
		return bitsToFloat(c, t)
	}
	if c, ok := src.(*ConstantFloatExpr); ok && t.IsInt() {
		return c.bitsAsInt()
	}
	return &BitcastExpr{Src: src, Kind: t}
}

// ConstantFloatExpr is an IEEE-754 float constant represented explicitly
// as (sign, exponent, mantissa) rather than a Go float64, so that
// non-canonical bit patterns (in particular NaNs) survive a round trip
// through the solver (spec §4.B).
type ConstantFloatExpr struct {
	Sign     bool
	Exponent uint64 // biased exponent, ExponentBits wide
	Mantissa uint64 // explicit mantissa (no implicit leading bit), MantissaBits wide
	Kind     Type   // TypeFloat
}

func (e *ConstantFloatExpr) Type() Type { return e.Kind }
func (e *ConstantFloatExpr) String() string {
	return fmt.Sprintf("(const-float sign=%v exp=%d mant=%d %s)", e.Sign, e.Exponent, e.Mantissa, e.Kind)
}
func (*ConstantFloatExpr) expr() {}

// NewConstantFloatExprFromFloat64 builds a constant from a Go float64,
// re-encoded into the target (ebits,sbits) shape. Only exact for
// double-shaped (11,52) targets; narrower targets truncate the mantissa.
func NewConstantFloatExprFromFloat64(v float64, t Type) *ConstantFloatExpr {
	bits := math.Float64bits(v)
	sign := bits>>63 != 0
	rawExp := int64((bits>>52)&0x7ff) - 1023
	mant := bits & ((1 << 52) - 1)

	if t.ExponentBits == 11 && t.MantissaBits == 52 {
		return &ConstantFloatExpr{Sign: sign, Exponent: uint64(rawExp + bias(t.ExponentBits)), Mantissa: mant, Kind: t}
	}

	if math.IsNaN(v) {
		return canonicalNaN(t)
	}
	if math.IsInf(v, 0) {
		return &ConstantFloatExpr{Sign: sign, Exponent: allOnes(t.ExponentBits), Mantissa: 0, Kind: t}
	}
	if v == 0 {
		return &ConstantFloatExpr{Sign: sign, Exponent: 0, Mantissa: 0, Kind: t}
	}

	biasedExp := rawExp + bias(t.ExponentBits)
	shift := uint(52 - t.MantissaBits)
	return &ConstantFloatExpr{
		Sign:     sign,
		Exponent: uint64(biasedExp),
		Mantissa: mant >> shift,
		Kind:     t,
	}
}

func bias(exponentBits uint) int64 { return (1 << (exponentBits - 1)) - 1 }
func allOnes(bits uint) uint64     { return (uint64(1) << bits) - 1 }

// canonicalNaN returns the canonical NaN for t: exponent all-ones,
// mantissa non-zero (spec §4.B's NaN canonicalization rule).
func canonicalNaN(t Type) *ConstantFloatExpr {
	return &ConstantFloatExpr{Sign: false, Exponent: allOnes(t.ExponentBits), Mantissa: 1, Kind: t}
}

// IsNaN reports whether the value is NaN (all-ones exponent, non-zero
// mantissa).
func (e *ConstantFloatExpr) IsNaN() bool {
	return e.Exponent == allOnes(e.Kind.ExponentBits) && e.Mantissa != 0
}

// Float64 converts to a Go float64 for evaluation purposes. Lossy for
// shapes other than (11,52).
func (e *ConstantFloatExpr) Float64() float64 {
	if e.Kind.ExponentBits == 11 && e.Kind.MantissaBits == 52 {
		bits := e.Mantissa & ((1 << 52) - 1)
		bits |= (e.Exponent & 0x7ff) << 52
		if e.Sign {
			bits |= 1 << 63
		}
		return math.Float64frombits(bits)
	}

	if e.IsNaN() {
		return math.NaN()
	}
	if e.Exponent == allOnes(e.Kind.ExponentBits) {
		if e.Sign {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	exp := int64(e.Exponent) - bias(e.Kind.ExponentBits)
	mant := 1.0 + float64(e.Mantissa)/float64(uint64(1)<<e.Kind.MantissaBits)
	v := mant * math.Pow(2, float64(exp))
	if e.Sign {
		v = -v
	}
	return v
}

// bitsAsInt packs (sign, exponent, mantissa) into a single bitvector
// constant, IEEE layout (sign high, then exponent, then mantissa).
func (e *ConstantFloatExpr) bitsAsInt() *ConstantExpr {
	width := e.Kind.Bitwidth()
	mantWidth := e.Kind.MantissaBits
	expWidth := e.Kind.ExponentBits

	v := NewConstantExpr(e.Mantissa, mantWidth)
	exp := NewConstantExpr(e.Exponent, expWidth)
	v = NewExtractExpr(NewConcatExpr(exp, v), 0, mantWidth+expWidth).(*ConstantExpr)
	v = v.ZExt(width)
	if e.Sign {
		signBit := NewConstantExpr(1, width).Shl(NewConstantExpr(uint64(width-1), width))
		v = v.Or(signBit)
	}
	return v
}

// bitsToFloat unpacks a bitvector constant into (sign, exponent,
// mantissa) for type t.
func bitsToFloat(c *ConstantExpr, t Type) *ConstantFloatExpr {
	mantWidth := t.MantissaBits
	expWidth := t.ExponentBits
	width := t.Bitwidth()

	mant := c.Extract(0, mantWidth)
	exp := c.Extract(mantWidth, expWidth)
	sign := c.Extract(width-1, 1)

	return &ConstantFloatExpr{
		Sign:     !sign.IsZero(),
		Exponent: exp.Value.Uint64(),
		Mantissa: mant.Value.Uint64(),
		Kind:     t,
	}
}
