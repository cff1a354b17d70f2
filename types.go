package caffeine

import "fmt"

// TypeKind enumerates the expression IR's type kinds (spec §3).
type TypeKind int

const (
	TypeVoid TypeKind = iota
	TypeInt
	TypeFloat
	TypeArray
	TypePointer
	TypeFunction
	TypeVector
)

// Type describes the shape of an expression node: an integer of a given
// width, a float with explicit exponent/mantissa bit counts, a
// byte-indexed array, a pointer, a function, or a vector of some element
// type.
type Type struct {
	Kind TypeKind

	// Width is the bit width for TypeInt, or the index width for
	// TypeArray.
	Width uint

	// ExponentBits/MantissaBits describe a TypeFloat's IEEE-754 layout,
	// e.g. (8, 23) for float32, (11, 52) for float64.
	ExponentBits uint
	MantissaBits uint

	// Elem is the element type for TypeVector.
	Elem *Type
	// VectorLen is the number of elements for TypeVector.
	VectorLen uint
}

// IntType returns an integer type of the given bit width.
func IntType(width uint) Type { return Type{Kind: TypeInt, Width: width} }

// FloatType returns a floating point type with the given exponent and
// mantissa (excluding implicit leading bit) widths.
func FloatType(exponentBits, mantissaBits uint) Type {
	return Type{Kind: TypeFloat, ExponentBits: exponentBits, MantissaBits: mantissaBits}
}

// Common IEEE-754 float types.
func Float32Type() Type { return FloatType(8, 23) }
func Float64Type() Type { return FloatType(11, 52) }

// ArrayType returns an array type indexed by width-bit offsets.
func ArrayType(indexWidth uint) Type { return Type{Kind: TypeArray, Width: indexWidth} }

// PointerType returns the pointer type.
func PointerType() Type { return Type{Kind: TypePointer} }

// VoidType returns the void type.
func VoidType() Type { return Type{Kind: TypeVoid} }

// VectorType returns a vector of n elements of elem.
func VectorType(elem Type, n uint) Type {
	e := elem
	return Type{Kind: TypeVector, Elem: &e, VectorLen: n}
}

func (t Type) IsInt() bool     { return t.Kind == TypeInt }
func (t Type) IsFloat() bool   { return t.Kind == TypeFloat }
func (t Type) IsArray() bool   { return t.Kind == TypeArray }
func (t Type) IsPointer() bool { return t.Kind == TypePointer }
func (t Type) IsVector() bool  { return t.Kind == TypeVector }

// Bitwidth returns the number of bits a value of this type occupies
// when flattened into a bitvector (int or float only).
func (t Type) Bitwidth() uint {
	switch t.Kind {
	case TypeInt:
		return t.Width
	case TypeFloat:
		return t.ExponentBits + t.MantissaBits + 1
	default:
		fault("Bitwidth: type has no fixed bit width: %v", t)
		return 0
	}
}

// Equal reports whether t and other describe the same type.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TypeInt, TypeArray:
		return t.Width == other.Width
	case TypeFloat:
		return t.ExponentBits == other.ExponentBits && t.MantissaBits == other.MantissaBits
	case TypeVector:
		return t.VectorLen == other.VectorLen && t.Elem.Equal(*other.Elem)
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Kind {
	case TypeVoid:
		return "void"
	case TypeInt:
		return fmt.Sprintf("i%d", t.Width)
	case TypeFloat:
		return fmt.Sprintf("f%d.%d", t.ExponentBits, t.MantissaBits)
	case TypeArray:
		return fmt.Sprintf("array(i%d)", t.Width)
	case TypePointer:
		return "ptr"
	case TypeFunction:
		return "function"
	case TypeVector:
		return fmt.Sprintf("<%d x %s>", t.VectorLen, t.Elem)
	default:
		return "<invalid type>"
	}
}
