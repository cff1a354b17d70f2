package caffeine

import (
	"fmt"
	"strings"
)

// LLVMScalar is a single non-aggregate value bound to an IR value: either
// a plain bitvector/float expression or a heap pointer. Keeping the two
// as a tagged union (rather than letting Pointer masquerade as an Expr)
// mirrors original_source's LLVMScalar, which Pointer-typed values must
// go through ptr_resolve/ptr_allocation before arithmetic can touch them.
type LLVMScalar struct {
	expr      Expr
	ptr       Pointer
	isPointer bool
}

func ScalarExpr(e Expr) LLVMScalar       { return LLVMScalar{expr: e} }
func ScalarPointer(p Pointer) LLVMScalar { return LLVMScalar{ptr: p, isPointer: true} }

func (s LLVMScalar) IsPointer() bool { return s.isPointer }

func (s LLVMScalar) Expr() Expr {
	assert(!s.isPointer, "LLVMScalar.Expr: value is a pointer")
	return s.expr
}

func (s LLVMScalar) Pointer() Pointer {
	assert(s.isPointer, "LLVMScalar.Pointer: value is not a pointer")
	return s.ptr
}

func (s LLVMScalar) String() string {
	if s.isPointer {
		return s.ptr.String()
	}
	return s.expr.String()
}

// LLVMValueKind distinguishes a scalar binding from a vector or
// aggregate (struct/array) of scalars.
type LLVMValueKind int

const (
	LLVMScalarKind LLVMValueKind = iota
	LLVMVectorKind
	LLVMAggregateKind
)

// LLVMValue is anything an IR instruction can produce or consume: a
// scalar, a fixed-length vector of scalars, or a nested aggregate of
// sub-values (struct fields / array elements). This is the Go analogue
// of original_source's LLVMValue variant and replaces glee's flatter
// Binding interface (Expr | *Array | Tuple), since LLVM structs/vectors
// need arbitrary nesting that SSA's flattened form did not.
type LLVMValue struct {
	kind     LLVMValueKind
	scalar   LLVMScalar
	elements []LLVMValue
}

func NewScalarValue(s LLVMScalar) LLVMValue {
	return LLVMValue{kind: LLVMScalarKind, scalar: s}
}

func NewExprValue(e Expr) LLVMValue { return NewScalarValue(ScalarExpr(e)) }

func NewPointerValue(p Pointer) LLVMValue { return NewScalarValue(ScalarPointer(p)) }

func NewVectorValue(elems []LLVMValue) LLVMValue {
	return LLVMValue{kind: LLVMVectorKind, elements: elems}
}

func NewAggregateValue(elems []LLVMValue) LLVMValue {
	return LLVMValue{kind: LLVMAggregateKind, elements: elems}
}

func (v LLVMValue) Kind() LLVMValueKind { return v.kind }
func (v LLVMValue) IsScalar() bool      { return v.kind == LLVMScalarKind }

func (v LLVMValue) Scalar() LLVMScalar {
	assert(v.kind == LLVMScalarKind, "LLVMValue.Scalar: not a scalar value")
	return v.scalar
}

func (v LLVMValue) Expr() Expr { return v.Scalar().Expr() }

func (v LLVMValue) Pointer() Pointer { return v.Scalar().Pointer() }

// Elements returns the member values of a vector or aggregate.
func (v LLVMValue) Elements() []LLVMValue {
	assert(v.kind != LLVMScalarKind, "LLVMValue.Elements: value is a scalar")
	return v.elements
}

// Element returns the i-th member of a vector or aggregate value.
func (v LLVMValue) Element(i int) LLVMValue {
	return v.Elements()[i]
}

func (v LLVMValue) String() string {
	switch v.kind {
	case LLVMScalarKind:
		return v.scalar.String()
	default:
		parts := make([]string, len(v.elements))
		for i, e := range v.elements {
			parts[i] = e.String()
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	}
}

// Map applies f to every scalar leaf and rebuilds the same shape.
func (v LLVMValue) Map(f func(LLVMScalar) LLVMScalar) LLVMValue {
	if v.kind == LLVMScalarKind {
		return NewScalarValue(f(v.scalar))
	}
	out := make([]LLVMValue, len(v.elements))
	for i, e := range v.elements {
		out[i] = e.Map(f)
	}
	return LLVMValue{kind: v.kind, elements: out}
}
