package caffeine

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
)

// Expr is a node in the immutable expression graph (spec §3/§4.A).
// Nodes are not hash-consed: two structurally equal expressions may be
// distinct values, so pointer identity does not imply or detect equality;
// CompareExpr is what detects it.
type Expr interface {
	fmt.Stringer
	Type() Type
	expr()
}

func (*BinaryExpr) expr()    {}
func (*CastExpr) expr()      {}
func (*ConcatExpr) expr()    {}
func (*ConstantExpr) expr()  {}
func (*ExtractExpr) expr()   {}
func (*NotExpr) expr()       {}
func (*LoadExpr) expr()      {}
func (*SelectExpr) expr()    {}
func (*SymbolicExpr) expr()  {}
func (*UndefExpr) expr()     {}
func (*FixedArrayExpr) expr() {}

// ExprWidth returns the bit width of an integer/bool-kinded expression.
func ExprWidth(e Expr) uint {
	t := e.Type()
	assert(t.IsInt(), "ExprWidth: not an integer-kinded expression: %v", t)
	return t.Width
}

// BinaryOp enumerates the integer binary operators (spec §3's "binary op"
// and integer "compare" node kinds).
type BinaryOp int

const (
	arithmeticOpBegin = BinaryOp(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	SHL
	LSHR
	ASHR
	arithmeticOpEnd

	compareOpBegin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compareOpEnd
)

var binaryOpNames = [...]string{
	ADD: "add", SUB: "sub", MUL: "mul", UDIV: "udiv", SDIV: "sdiv",
	UREM: "urem", SREM: "srem", AND: "and", OR: "or", XOR: "xor",
	SHL: "shl", LSHR: "lshr", ASHR: "ashr",
	EQ: "eq", NE: "ne", ULT: "ult", ULE: "ule", UGT: "ugt", UGE: "uge",
	SLT: "slt", SLE: "sle", SGT: "sgt", SGE: "sge",
}

func (op BinaryOp) String() string {
	if op >= 0 && int(op) < len(binaryOpNames) && binaryOpNames[op] != "" {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

func (op BinaryOp) IsArithmetic() bool { return op > arithmeticOpBegin && op < arithmeticOpEnd }
func (op BinaryOp) IsCompare() bool    { return op > compareOpBegin && op < compareOpEnd }

// BinaryExpr applies a binary operator to two equal-width integer operands.
type BinaryExpr struct {
	Op       BinaryOp
	LHS, RHS Expr
}

func (e *BinaryExpr) Type() Type {
	if e.Op.IsCompare() {
		return IntType(WidthBool)
	}
	return e.LHS.Type()
}

func (e *BinaryExpr) String() string { return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS) }

// NewBinaryExpr builds (or folds) a binary integer expression. Constant
// folding is performed eagerly when both operands are constants;
// arithmetic wraps at the declared width per two's-complement semantics
// (spec §4.A).
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(ExprWidth(lhs) == ExprWidth(rhs), "binary expr width mismatch: %s %d != %d", op, ExprWidth(lhs), ExprWidth(rhs))

	switch op {
	case ADD:
		return newAddExpr(lhs, rhs)
	case SUB:
		return newSubExpr(lhs, rhs)
	case MUL:
		return newMulExpr(lhs, rhs)
	case UDIV, SDIV:
		return newDivExpr(op, lhs, rhs)
	case UREM, SREM:
		return newRemExpr(op, lhs, rhs)
	case AND:
		return newAndExpr(lhs, rhs)
	case OR:
		return newOrExpr(lhs, rhs)
	case XOR:
		return newXorExpr(lhs, rhs)
	case SHL:
		return newShiftExpr(SHL, lhs, rhs)
	case LSHR:
		return newShiftExpr(LSHR, lhs, rhs)
	case ASHR:
		return newShiftExpr(ASHR, lhs, rhs)
	case EQ:
		return newEqExpr(lhs, rhs)
	case NE:
		return NewNotExpr(newEqExpr(lhs, rhs))
	case ULT:
		return newCompareExpr(ULT, lhs, rhs)
	case UGT:
		return newCompareExpr(ULT, rhs, lhs)
	case ULE:
		return newCompareExpr(ULE, lhs, rhs)
	case UGE:
		return newCompareExpr(ULE, rhs, lhs)
	case SLT:
		return newCompareExpr(SLT, lhs, rhs)
	case SGT:
		return newCompareExpr(SLT, rhs, lhs)
	case SLE:
		return newCompareExpr(SLE, lhs, rhs)
	case SGE:
		return newCompareExpr(SLE, rhs, lhs)
	default:
		fault("NewBinaryExpr: unsupported op %s", op)
		return nil
	}
}

func newAddExpr(lhs, rhs Expr) Expr {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}
	if l, ok := lhs.(*ConstantExpr); ok {
		if l.IsZero() {
			return rhs
		}
		if r, ok := rhs.(*ConstantExpr); ok {
			return l.Add(r)
		}
	}
	return &BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs}
}

func newSubExpr(lhs, rhs Expr) Expr {
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return l.Sub(r)
		}
	}
	if r, ok := rhs.(*ConstantExpr); ok && r.IsZero() {
		return lhs
	}
	return &BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs}
}

func newMulExpr(lhs, rhs Expr) Expr {
	if IsConstantExpr(rhs) && !IsConstantExpr(lhs) {
		lhs, rhs = rhs, lhs
	}
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return l.Mul(r)
		}
		if l.IsOne() {
			return rhs
		}
		if l.IsZero() {
			return l
		}
	}
	return &BinaryExpr{Op: MUL, LHS: lhs, RHS: rhs}
}

func newDivExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			if op == UDIV {
				return l.UDiv(r)
			}
			return l.SDiv(r)
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

func newRemExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			if op == UREM {
				return l.URem(r)
			}
			return l.SRem(r)
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

func newAndExpr(lhs, rhs Expr) Expr {
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return l.And(r)
		}
	}
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}
	if r, ok := rhs.(*ConstantExpr); ok {
		if r.IsAllOnes() {
			return lhs
		}
		if r.IsZero() {
			return r
		}
	}
	return &BinaryExpr{Op: AND, LHS: lhs, RHS: rhs}
}

func newOrExpr(lhs, rhs Expr) Expr {
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return l.Or(r)
		}
	}
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}
	if r, ok := rhs.(*ConstantExpr); ok {
		if r.IsAllOnes() {
			return r
		}
		if r.IsZero() {
			return lhs
		}
	}
	return &BinaryExpr{Op: OR, LHS: lhs, RHS: rhs}
}

func newXorExpr(lhs, rhs Expr) Expr {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}
	if l, ok := lhs.(*ConstantExpr); ok {
		if l.IsZero() {
			return rhs
		}
		if r, ok := rhs.(*ConstantExpr); ok {
			return l.Xor(r)
		}
	}
	return &BinaryExpr{Op: XOR, LHS: lhs, RHS: rhs}
}

func newShiftExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			switch op {
			case SHL:
				return l.Shl(r)
			case LSHR:
				return l.LShr(r)
			default:
				return l.AShr(r)
			}
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

func newCompareExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			switch op {
			case ULT:
				return l.Ult(r)
			case ULE:
				return l.Ule(r)
			case SLT:
				return l.Slt(r)
			default:
				return l.Sle(r)
			}
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

func newEqExpr(lhs, rhs Expr) Expr {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}
	if l, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return l.Eq(r)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(1, WidthBool)
	}
	return &BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs}
}

// NotExpr is a bitwise (or boolean) complement.
type NotExpr struct{ Expr Expr }

func (e *NotExpr) Type() Type     { return e.Expr.Type() }
func (e *NotExpr) String() string { return fmt.Sprintf("(not %s)", e.Expr) }

func NewNotExpr(e Expr) Expr {
	if c, ok := e.(*ConstantExpr); ok {
		return c.Not()
	}
	if n, ok := e.(*NotExpr); ok {
		return n.Expr
	}
	return &NotExpr{Expr: e}
}

// CastExpr zero- or sign-extends an integer to a wider width.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

func (e *CastExpr) Type() Type { return IntType(e.Width) }
func (e *CastExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(sext %s %d)", e.Src, e.Width)
	}
	return fmt.Sprintf("(zext %s %d)", e.Src, e.Width)
}

// NewCastExpr zero- or sign-extends src to width.
func NewCastExpr(src Expr, width uint, signed bool) Expr {
	if signed {
		return newSExtExpr(src, width)
	}
	return newZExtExpr(src, width)
}

func newZExtExpr(src Expr, w uint) Expr {
	sw := ExprWidth(src)
	if w == sw {
		return src
	}
	assert(w > sw, "zext: target width %d not wider than source %d", w, sw)
	if c, ok := src.(*ConstantExpr); ok {
		return c.ZExt(w)
	}
	return &CastExpr{Src: src, Width: w, Signed: false}
}

func newSExtExpr(src Expr, w uint) Expr {
	sw := ExprWidth(src)
	if w == sw {
		return src
	}
	assert(w > sw, "sext: target width %d not wider than source %d", w, sw)
	if c, ok := src.(*ConstantExpr); ok {
		return c.SExt(w)
	}
	return &CastExpr{Src: src, Width: w, Signed: true}
}

// ExtractExpr extracts Width bits from Expr starting at bit Offset.
type ExtractExpr struct {
	Expr   Expr
	Offset uint
	Width  uint
}

func (e *ExtractExpr) Type() Type { return IntType(e.Width) }
func (e *ExtractExpr) String() string {
	return fmt.Sprintf("(extract %s %d %d)", e.Expr, e.Offset, e.Width)
}

// NewExtractExpr extracts width bits from expr at offset (truncation is
// the special case offset=0, width<ExprWidth(expr)).
func NewExtractExpr(e Expr, offset, width uint) Expr {
	kw := ExprWidth(e)
	assert(width > 0, "extract: zero width")
	assert(offset+width <= kw, "extract out of bounds: %d+%d > %d", offset, width, kw)

	if offset == 0 && width == kw {
		return e
	}
	if c, ok := e.(*ConstantExpr); ok {
		return c.Extract(offset, width)
	}
	if c, ok := e.(*ConcatExpr); ok {
		lw := ExprWidth(c.LSB)
		if offset >= lw {
			return NewExtractExpr(c.MSB, offset-lw, width)
		}
		if offset+width <= lw {
			return NewExtractExpr(c.LSB, offset, width)
		}
		return NewConcatExpr(
			NewExtractExpr(c.MSB, 0, width-lw+offset),
			NewExtractExpr(c.LSB, offset, lw-offset),
		)
	}
	return &ExtractExpr{Expr: e, Offset: offset, Width: width}
}

// ConcatExpr concatenates two bitvectors, MSB most significant.
type ConcatExpr struct{ MSB, LSB Expr }

func (e *ConcatExpr) Type() Type { return IntType(ExprWidth(e.MSB) + ExprWidth(e.LSB)) }
func (e *ConcatExpr) String() string { return fmt.Sprintf("(concat %s %s)", e.MSB, e.LSB) }

// NewConcatExpr concatenates msb:lsb into a single wider bitvector.
func NewConcatExpr(msb, lsb Expr) Expr {
	if m, ok := msb.(*ConstantExpr); ok {
		if l, ok := lsb.(*ConstantExpr); ok {
			return m.Concat(l)
		}
	}
	if m, ok := msb.(*ExtractExpr); ok {
		if l, ok := lsb.(*ExtractExpr); ok {
			if CompareExpr(m.Expr, l.Expr) == 0 && l.Offset+l.Width == m.Offset {
				return NewExtractExpr(m.Expr, l.Offset, m.Width+l.Width)
			}
		}
	}
	return &ConcatExpr{MSB: msb, LSB: lsb}
}

// SelectExpr is the IR's ternary select op: cond ? trueValue : falseValue.
// Named distinctly from the array-read LoadExpr to avoid a name collision
// between the IR's ternary op and an array read sharing the same name.
type SelectExpr struct {
	Cond            Expr
	TrueVal, FalseVal Expr
}

func (e *SelectExpr) Type() Type { return e.TrueVal.Type() }
func (e *SelectExpr) String() string {
	return fmt.Sprintf("(select %s %s %s)", e.Cond, e.TrueVal, e.FalseVal)
}

// NewSelectExpr builds the ternary select, folding when the condition is
// constant.
func NewSelectExpr(cond, t, f Expr) Expr {
	if c, ok := cond.(*ConstantExpr); ok {
		if c.IsTrue() {
			return t
		}
		return f
	}
	if CompareExpr(t, f) == 0 {
		return t
	}
	return &SelectExpr{Cond: cond, TrueVal: t, FalseVal: f}
}

// LoadExpr reads one byte from a symbolic array at Index, renamed from
// an array-read "SelectExpr" to free that name for the ternary op above.
type LoadExpr struct {
	Array *Array
	Index Expr
}

func (e *LoadExpr) Type() Type     { return IntType(Width8) }
func (e *LoadExpr) String() string { return fmt.Sprintf("(load %s %s)", e.Array, e.Index) }

func NewLoadExpr(a *Array, index Expr) Expr {
	return &LoadExpr{Array: a, Index: index}
}

// SymbolicExpr is a free symbolic constant identified by a Symbol.
type SymbolicExpr struct {
	Symbol Symbol
	Kind   Type
}

func (e *SymbolicExpr) Type() Type     { return e.Kind }
func (e *SymbolicExpr) String() string { return fmt.Sprintf("(symbolic %s %s)", e.Symbol, e.Kind) }

func NewSymbolicExpr(sym Symbol, t Type) Expr { return &SymbolicExpr{Symbol: sym, Kind: t} }

// UndefExpr represents an undefined value of a given type; the solver is
// free to pick any value of that type (spec: "undef" node kind).
type UndefExpr struct{ Kind Type }

func (e *UndefExpr) Type() Type     { return e.Kind }
func (e *UndefExpr) String() string { return fmt.Sprintf("(undef %s)", e.Kind) }

func NewUndefExpr(t Type) Expr { return &UndefExpr{Kind: t} }

// FixedArrayExpr is a constant array literal of concrete element exprs.
type FixedArrayExpr struct {
	Elems []Expr
	Kind  Type // element type
}

func (e *FixedArrayExpr) Type() Type { return ArrayType(e.Kind.Bitwidth()) }
func (e *FixedArrayExpr) String() string {
	return fmt.Sprintf("(fixed-array %d x %s)", len(e.Elems), e.Kind)
}

func NewFixedArrayExpr(elemType Type, elems []Expr) Expr {
	return &FixedArrayExpr{Elems: elems, Kind: elemType}
}

// ConstantExpr is an integer constant of up to 256 bits, stored as a
// masked 256-bit word (widths beyond 256 bits are not supported, matching
// the practical limit the retrieval pack's uint256 type imposes).
type ConstantExpr struct {
	Value *uint256.Int
	Width uint
}

func bitmask(width uint) *uint256.Int {
	if width >= 256 {
		return new(uint256.Int).Not(uint256.NewInt(0))
	}
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, width)
	return shifted.Sub(shifted, uint256.NewInt(1))
}

// NewConstantExpr returns a new width-bit constant, masking value to width.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	v := uint256.NewInt(value)
	v.And(v, bitmask(width))
	return &ConstantExpr{Value: v, Width: width}
}

// NewConstantExprBig returns a new width-bit constant from a uint256 value.
func NewConstantExprBig(value *uint256.Int, width uint) *ConstantExpr {
	v := new(uint256.Int).And(value, bitmask(width))
	return &ConstantExpr{Value: v, Width: width}
}

func NewConstantExpr8(v uint64) *ConstantExpr  { return NewConstantExpr(v, Width8) }
func NewConstantExpr16(v uint64) *ConstantExpr { return NewConstantExpr(v, Width16) }
func NewConstantExpr32(v uint64) *ConstantExpr { return NewConstantExpr(v, Width32) }
func NewConstantExpr64(v uint64) *ConstantExpr { return NewConstantExpr(v, Width64) }

func NewBoolConstantExpr(v bool) *ConstantExpr {
	if v {
		return NewConstantExpr(1, WidthBool)
	}
	return NewConstantExpr(0, WidthBool)
}

func (e *ConstantExpr) Type() Type     { return IntType(e.Width) }
func (e *ConstantExpr) String() string { return fmt.Sprintf("(const %s %d)", e.Value, e.Width) }

func (e *ConstantExpr) IsZero() bool { return e.Value.IsZero() }
func (e *ConstantExpr) IsOne() bool  { return e.Value.Eq(uint256.NewInt(1)) }
func (e *ConstantExpr) IsTrue() bool { return e.Width == WidthBool && !e.Value.IsZero() }
func (e *ConstantExpr) IsFalse() bool { return e.Width == WidthBool && e.Value.IsZero() }
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value.Eq(bitmask(e.Width))
}

// signExtended returns e's value sign-extended to the full 256-bit space,
// used as a bridge to uint256's native signed operations.
func (e *ConstantExpr) signExtended() *uint256.Int {
	if e.Width >= 256 {
		return e.Value.Clone()
	}
	signBit := new(uint256.Int).Lsh(uint256.NewInt(1), e.Width-1)
	if new(uint256.Int).And(e.Value, signBit).IsZero() {
		return e.Value.Clone()
	}
	highMask := new(uint256.Int).Not(bitmask(e.Width))
	return new(uint256.Int).Or(e.Value, highMask)
}

func (e *ConstantExpr) binop(other *ConstantExpr, f func(z, x, y *uint256.Int) *uint256.Int) *ConstantExpr {
	assert(e.Width == other.Width, "width mismatch: %d != %d", e.Width, other.Width)
	z := new(uint256.Int)
	f(z, e.Value, other.Value)
	return NewConstantExprBig(z, e.Width)
}

func (e *ConstantExpr) Add(o *ConstantExpr) *ConstantExpr { return e.binop(o, (*uint256.Int).Add) }
func (e *ConstantExpr) Sub(o *ConstantExpr) *ConstantExpr { return e.binop(o, (*uint256.Int).Sub) }
func (e *ConstantExpr) Mul(o *ConstantExpr) *ConstantExpr { return e.binop(o, (*uint256.Int).Mul) }
func (e *ConstantExpr) And(o *ConstantExpr) *ConstantExpr { return e.binop(o, (*uint256.Int).And) }
func (e *ConstantExpr) Or(o *ConstantExpr) *ConstantExpr  { return e.binop(o, (*uint256.Int).Or) }
func (e *ConstantExpr) Xor(o *ConstantExpr) *ConstantExpr { return e.binop(o, (*uint256.Int).Xor) }

func (e *ConstantExpr) UDiv(o *ConstantExpr) *ConstantExpr {
	assert(!o.IsZero(), "udiv by zero")
	return e.binop(o, (*uint256.Int).Div)
}
func (e *ConstantExpr) URem(o *ConstantExpr) *ConstantExpr {
	assert(!o.IsZero(), "urem by zero")
	return e.binop(o, (*uint256.Int).Mod)
}

func (e *ConstantExpr) SDiv(o *ConstantExpr) *ConstantExpr {
	assert(!o.IsZero(), "sdiv by zero")
	a, b := e.signExtended(), o.signExtended()
	z := new(uint256.Int).SDiv(a, b)
	return NewConstantExprBig(z, e.Width)
}
func (e *ConstantExpr) SRem(o *ConstantExpr) *ConstantExpr {
	assert(!o.IsZero(), "srem by zero")
	a, b := e.signExtended(), o.signExtended()
	z := new(uint256.Int).SMod(a, b)
	return NewConstantExprBig(z, e.Width)
}

func (e *ConstantExpr) Shl(o *ConstantExpr) *ConstantExpr {
	n := uint(o.Value.Uint64())
	z := new(uint256.Int).Lsh(e.Value, n)
	return NewConstantExprBig(z, e.Width)
}
func (e *ConstantExpr) LShr(o *ConstantExpr) *ConstantExpr {
	n := uint(o.Value.Uint64())
	z := new(uint256.Int).Rsh(e.Value, n)
	return NewConstantExprBig(z, e.Width)
}
func (e *ConstantExpr) AShr(o *ConstantExpr) *ConstantExpr {
	n := uint(o.Value.Uint64())
	a := e.signExtended()
	// Arithmetic shift on the sign-extended 256-bit value replicates the
	// width-w sign bit correctly because the high bits above w are already
	// a copy of it.
	z := new(uint256.Int).SRsh(a, n)
	return NewConstantExprBig(z, e.Width)
}

func (e *ConstantExpr) Eq(o *ConstantExpr) *ConstantExpr {
	assert(e.Width == o.Width, "eq: width mismatch")
	return NewBoolConstantExpr(e.Value.Eq(o.Value))
}
func (e *ConstantExpr) Ult(o *ConstantExpr) *ConstantExpr { return NewBoolConstantExpr(e.Value.Lt(o.Value)) }
func (e *ConstantExpr) Ule(o *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Value.Lt(o.Value) || e.Value.Eq(o.Value))
}
func (e *ConstantExpr) Slt(o *ConstantExpr) *ConstantExpr {
	a, b := e.signExtended(), o.signExtended()
	return NewBoolConstantExpr(a.Slt(b))
}
func (e *ConstantExpr) Sle(o *ConstantExpr) *ConstantExpr {
	a, b := e.signExtended(), o.signExtended()
	return NewBoolConstantExpr(a.Slt(b) || a.Eq(b))
}

func (e *ConstantExpr) ZExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	if width == WidthBool {
		return NewBoolConstantExpr(!e.Value.IsZero())
	}
	return NewConstantExprBig(e.Value, width)
}

func (e *ConstantExpr) SExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewConstantExprBig(e.signExtended(), width)
}

func (e *ConstantExpr) Not() *ConstantExpr {
	z := new(uint256.Int).Not(e.Value)
	return NewConstantExprBig(z, e.Width)
}

func (e *ConstantExpr) Extract(offset, width uint) *ConstantExpr {
	z := new(uint256.Int).Rsh(e.Value, offset)
	return NewConstantExprBig(z, width)
}

func (e *ConstantExpr) Concat(lsb *ConstantExpr) *ConstantExpr {
	z := new(uint256.Int).Lsh(e.Value, lsb.Width)
	z.Or(z, lsb.Value)
	return NewConstantExprBig(z, e.Width+lsb.Width)
}

func IsConstantExpr(e Expr) bool { _, ok := e.(*ConstantExpr); return ok }

func IsConstantTrue(e Expr) bool {
	c, ok := e.(*ConstantExpr)
	return ok && c.IsTrue()
}

func IsConstantFalse(e Expr) bool {
	c, ok := e.(*ConstantExpr)
	return ok && c.IsFalse()
}

func NewIsZeroExpr(e Expr) Expr { return NewBinaryExpr(EQ, e, NewConstantExpr(0, ExprWidth(e))) }

// CompareExpr structurally orders two expressions. Structurally equal
// expressions compare as 0 even when they are distinct nodes, since
// nodes are not interned.
func CompareExpr(a, b Expr) int {
	if a == nil && b == nil {
		return 0
	} else if a == nil {
		return -1
	} else if b == nil {
		return 1
	}

	if ak, bk := exprKind(a), exprKind(b); ak != bk {
		if ak < bk {
			return -1
		}
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		b := b.(*ConstantExpr)
		if a.Width != b.Width {
			if a.Width < b.Width {
				return -1
			}
			return 1
		}
		return a.Value.Cmp(b.Value)
	case *SymbolicExpr:
		return a.Symbol.Compare(b.(*SymbolicExpr).Symbol)
	case *UndefExpr:
		return 0
	case *LoadExpr:
		b := b.(*LoadExpr)
		if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
			return cmp
		}
		return CompareArray(a.Array, b.Array)
	case *SelectExpr:
		b := b.(*SelectExpr)
		if cmp := CompareExpr(a.Cond, b.Cond); cmp != 0 {
			return cmp
		}
		if cmp := CompareExpr(a.TrueVal, b.TrueVal); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.FalseVal, b.FalseVal)
	case *ConcatExpr:
		b := b.(*ConcatExpr)
		if cmp := CompareExpr(a.MSB, b.MSB); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.LSB, b.LSB)
	case *ExtractExpr:
		b := b.(*ExtractExpr)
		if a.Offset != b.Offset {
			if a.Offset < b.Offset {
				return -1
			}
			return 1
		}
		if a.Width != b.Width {
			if a.Width < b.Width {
				return -1
			}
			return 1
		}
		return CompareExpr(a.Expr, b.Expr)
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *CastExpr:
		b := b.(*CastExpr)
		if a.Signed != b.Signed {
			if !a.Signed {
				return -1
			}
			return 1
		}
		if a.Width != b.Width {
			if a.Width < b.Width {
				return -1
			}
			return 1
		}
		return CompareExpr(a.Src, b.Src)
	case *BinaryExpr:
		b := b.(*BinaryExpr)
		if a.Op != b.Op {
			if a.Op < b.Op {
				return -1
			}
			return 1
		}
		if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.RHS, b.RHS)
	case *FixedArrayExpr:
		b := b.(*FixedArrayExpr)
		if len(a.Elems) != len(b.Elems) {
			if len(a.Elems) < len(b.Elems) {
				return -1
			}
			return 1
		}
		for i := range a.Elems {
			if cmp := CompareExpr(a.Elems[i], b.Elems[i]); cmp != 0 {
				return cmp
			}
		}
		return 0
	default:
		fault("CompareExpr: unhandled expression type %T", a)
		return 0
	}
}

func exprKind(e Expr) int {
	switch e.(type) {
	case *ConstantExpr:
		return 1
	case *SymbolicExpr:
		return 2
	case *UndefExpr:
		return 3
	case *LoadExpr:
		return 4
	case *SelectExpr:
		return 5
	case *ConcatExpr:
		return 6
	case *ExtractExpr:
		return 7
	case *NotExpr:
		return 8
	case *CastExpr:
		return 9
	case *BinaryExpr:
		return 10
	case *FixedArrayExpr:
		return 11
	default:
		fault("exprKind: unhandled expression type %T", e)
		return 0
	}
}

// ExprVisitor is invoked for every node WalkExpr descends into; returning
// a nil visitor stops descent into that node's children.
type ExprVisitor interface {
	Visit(e Expr) (Expr, ExprVisitor)
}

// WalkExpr performs a double-dispatch traversal over expr's operand tree,
// mutating children in place when the visitor returns a different node.
func WalkExpr(v ExprVisitor, e Expr) Expr {
	out, next := v.Visit(e)
	if next == nil {
		return out
	}

	switch e := e.(type) {
	case *BinaryExpr:
		e.LHS = WalkExpr(next, e.LHS)
		e.RHS = WalkExpr(next, e.RHS)
	case *CastExpr:
		e.Src = WalkExpr(next, e.Src)
	case *ConcatExpr:
		e.MSB = WalkExpr(next, e.MSB)
		e.LSB = WalkExpr(next, e.LSB)
	case *ExtractExpr:
		e.Expr = WalkExpr(next, e.Expr)
	case *NotExpr:
		e.Expr = WalkExpr(next, e.Expr)
	case *SelectExpr:
		e.Cond = WalkExpr(next, e.Cond)
		e.TrueVal = WalkExpr(next, e.TrueVal)
		e.FalseVal = WalkExpr(next, e.FalseVal)
	case *LoadExpr:
		e.Index = WalkExpr(next, e.Index)
		for upd := e.Array.Updates; upd != nil; upd = upd.Next {
			upd.Index = WalkExpr(next, upd.Index)
			upd.Value = WalkExpr(next, upd.Value)
		}
	case *FixedArrayExpr:
		for i := range e.Elems {
			e.Elems[i] = WalkExpr(next, e.Elems[i])
		}
	case *ConstantExpr, *SymbolicExpr, *UndefExpr:
		// leaves
	default:
		fault("WalkExpr: unhandled expression type %T", e)
	}
	return out
}

// FindArrays returns every symbolic array referenced by exprs, sorted by
// array id.
func FindArrays(exprs ...Expr) []*Array {
	v := &arrayCollector{seen: make(map[uint64]*Array)}
	for _, e := range exprs {
		WalkExpr(v, e)
	}
	arrays := make([]*Array, 0, len(v.seen))
	for _, a := range v.seen {
		arrays = append(arrays, a)
	}
	sort.Slice(arrays, func(i, j int) bool { return CompareArray(arrays[i], arrays[j]) < 0 })
	return arrays
}

type arrayCollector struct{ seen map[uint64]*Array }

func (v *arrayCollector) Visit(e Expr) (Expr, ExprVisitor) {
	if l, ok := e.(*LoadExpr); ok && l.Array.IsSymbolic() {
		if _, ok := v.seen[l.Array.ID]; !ok {
			v.seen[l.Array.ID] = l.Array
		}
	}
	return e, v
}

// ExprEvaluator concretely evaluates an expression given known array
// byte contents, used to check a model's reported values (round-trip
// property in spec §8).
type ExprEvaluator struct {
	arrays map[uint64][]byte
}

func NewExprEvaluator(arrays []*Array, values [][]byte) *ExprEvaluator {
	assert(len(arrays) == len(values), "array/value count mismatch: %d != %d", len(arrays), len(values))
	m := make(map[uint64][]byte, len(arrays))
	for i, a := range arrays {
		m[a.ID] = values[i]
	}
	return &ExprEvaluator{arrays: m}
}

func (ee *ExprEvaluator) Evaluate(e Expr) (*ConstantExpr, error) {
	switch e := e.(type) {
	case *ConstantExpr:
		return e, nil
	case *BinaryExpr:
		lhs, err := ee.Evaluate(e.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := ee.Evaluate(e.RHS)
		if err != nil {
			return nil, err
		}
		return NewBinaryExpr(e.Op, lhs, rhs).(*ConstantExpr), nil
	case *CastExpr:
		src, err := ee.Evaluate(e.Src)
		if err != nil {
			return nil, err
		}
		return NewCastExpr(src, e.Width, e.Signed).(*ConstantExpr), nil
	case *ConcatExpr:
		msb, err := ee.Evaluate(e.MSB)
		if err != nil {
			return nil, err
		}
		lsb, err := ee.Evaluate(e.LSB)
		if err != nil {
			return nil, err
		}
		return NewConcatExpr(msb, lsb).(*ConstantExpr), nil
	case *ExtractExpr:
		src, err := ee.Evaluate(e.Expr)
		if err != nil {
			return nil, err
		}
		return NewExtractExpr(src, e.Offset, e.Width).(*ConstantExpr), nil
	case *NotExpr:
		src, err := ee.Evaluate(e.Expr)
		if err != nil {
			return nil, err
		}
		return NewNotExpr(src).(*ConstantExpr), nil
	case *SelectExpr:
		cond, err := ee.Evaluate(e.Cond)
		if err != nil {
			return nil, err
		}
		if cond.IsTrue() {
			return ee.Evaluate(e.TrueVal)
		}
		return ee.Evaluate(e.FalseVal)
	case *LoadExpr:
		idx, err := ee.Evaluate(e.Index)
		if err != nil {
			return nil, err
		}
		for upd := e.Array.Updates; upd != nil; upd = upd.Next {
			uidx, err := ee.Evaluate(upd.Index)
			if err != nil {
				return nil, err
			}
			if !uidx.Value.Eq(idx.Value) {
				continue
			}
			return ee.Evaluate(upd.Value)
		}
		initial, ok := ee.arrays[e.Array.ID]
		if !ok {
			return nil, fmt.Errorf("array not bound: id=%d", e.Array.ID)
		}
		i := idx.Value.Uint64()
		if int(i) >= len(initial) {
			return nil, fmt.Errorf("select index out of bounds: %d >= %d", i, len(initial))
		}
		return NewConstantExpr(uint64(initial[i]), Width8), nil
	default:
		return nil, fmt.Errorf("invalid expression type: %T", e)
	}
}
