package z3_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/caffeine-vm/caffeine"
	"github.com/caffeine-vm/caffeine/solver/z3"
)

func mustCloseSolver(t *testing.T, s *z3.Solver) {
	t.Helper()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSolver_Check(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			s := z3.NewSolver()
			defer mustCloseSolver(t, s)
			result, err := s.Check([]caffeine.Assertion{caffeine.NewAssertion(caffeine.NewBoolConstantExpr(true))})
			if err != nil {
				t.Fatal(err)
			} else if !result.IsSAT() {
				t.Fatal("expected sat")
			}
		})
		t.Run("False", func(t *testing.T) {
			s := z3.NewSolver()
			defer mustCloseSolver(t, s)
			result, err := s.Check([]caffeine.Assertion{caffeine.NewAssertion(caffeine.NewBoolConstantExpr(false))})
			if err != nil {
				t.Fatal(err)
			} else if !result.IsUnsat() {
				t.Fatal("expected unsat")
			}
		})
	})

	t.Run("Array", func(t *testing.T) {
		t.Run("Width8", func(t *testing.T) {
			s := z3.NewSolver()
			defer mustCloseSolver(t, s)

			array := caffeine.NewArray(100, 1, caffeine.Width64)
			expr := caffeine.NewBinaryExpr(caffeine.EQ,
				array.Select(caffeine.NewConstantExpr(0, 64), 8, false),
				caffeine.NewConstantExpr(10, 8),
			)

			result, err := s.Resolve([]caffeine.Assertion{caffeine.NewAssertion(expr)})
			if err != nil {
				t.Fatal(err)
			} else if !result.IsSAT() {
				t.Fatal("expected sat")
			}
			bytes, ok := result.Model.Array(array.ID)
			if !ok {
				t.Fatal("expected array in model")
			}
			if diff := cmp.Diff(bytes, []byte{10}); diff != "" {
				t.Fatal(diff)
			}
		})

		t.Run("Width16", func(t *testing.T) {
			s := z3.NewSolver()
			defer mustCloseSolver(t, s)

			array := caffeine.NewArray(100, 2, caffeine.Width64)
			expr := caffeine.NewBinaryExpr(caffeine.EQ,
				array.Select(caffeine.NewConstantExpr(0, 64), 16, false),
				caffeine.NewConstantExpr(0xAABB, 16),
			)

			result, err := s.Resolve([]caffeine.Assertion{caffeine.NewAssertion(expr)})
			if err != nil {
				t.Fatal(err)
			} else if !result.IsSAT() {
				t.Fatal("expected sat")
			}
			bytes, _ := result.Model.Array(array.ID)
			if diff := cmp.Diff(bytes, []byte{0xAA, 0xBB}); diff != "" {
				t.Fatal(diff)
			}
		})
	})

	t.Run("Symbolic", func(t *testing.T) {
		s := z3.NewSolver()
		defer mustCloseSolver(t, s)

		x := caffeine.NewSymbolicExpr(caffeine.NewSymbol("x"), caffeine.IntType(32))
		expr := caffeine.NewBinaryExpr(caffeine.EQ, x, caffeine.NewConstantExpr(42, 32))

		result, err := s.Check([]caffeine.Assertion{caffeine.NewAssertion(expr)})
		if err != nil {
			t.Fatal(err)
		} else if !result.IsSAT() {
			t.Fatal("expected sat")
		}
	})

	t.Run("Unsatisfiable", func(t *testing.T) {
		s := z3.NewSolver()
		defer mustCloseSolver(t, s)

		x := caffeine.NewSymbolicExpr(caffeine.NewSymbol("x"), caffeine.IntType(8))
		gt := caffeine.NewAssertion(caffeine.NewBinaryExpr(caffeine.UGT, x, caffeine.NewConstantExpr(200, 8)))
		lt := caffeine.NewAssertion(caffeine.NewBinaryExpr(caffeine.ULT, x, caffeine.NewConstantExpr(10, 8)))

		result, err := s.Check([]caffeine.Assertion{gt, lt})
		if err != nil {
			t.Fatal(err)
		} else if !result.IsUnsat() {
			t.Fatal("expected unsat")
		}
	})

	t.Run("WideConstant", func(t *testing.T) {
		s := z3.NewSolver()
		defer mustCloseSolver(t, s)

		x := caffeine.NewSymbolicExpr(caffeine.NewSymbol("x"), caffeine.IntType(256))
		big := caffeine.NewConstantExpr(1, 256).Shl(caffeine.NewConstantExpr(200, 256))
		expr := caffeine.NewBinaryExpr(caffeine.EQ, x, big)

		result, err := s.Check([]caffeine.Assertion{caffeine.NewAssertion(expr)})
		if err != nil {
			t.Fatal(err)
		} else if !result.IsSAT() {
			t.Fatal("expected sat for a >64-bit constant encoding")
		}
	})

	t.Run("Select", func(t *testing.T) {
		s := z3.NewSolver()
		defer mustCloseSolver(t, s)

		cond := caffeine.NewSymbolicExpr(caffeine.NewSymbol("cond"), caffeine.IntType(caffeine.WidthBool))
		sel := caffeine.NewSelectExpr(cond, caffeine.NewConstantExpr(1, 8), caffeine.NewConstantExpr(2, 8))
		expr := caffeine.NewBinaryExpr(caffeine.EQ, sel, caffeine.NewConstantExpr(2, 8))

		result, err := s.Check([]caffeine.Assertion{caffeine.NewAssertion(expr)})
		if err != nil {
			t.Fatal(err)
		} else if !result.IsSAT() {
			t.Fatal("expected sat (cond = false branch)")
		}
	})

	t.Run("Float", func(t *testing.T) {
		t.Run("Arithmetic", func(t *testing.T) {
			s := z3.NewSolver()
			defer mustCloseSolver(t, s)

			x := caffeine.NewConstantFloatExprFromFloat64(1.5, caffeine.Float64Type())
			y := caffeine.NewConstantFloatExprFromFloat64(2.5, caffeine.Float64Type())
			sum := caffeine.NewFloatBinaryExpr(caffeine.FADD, x, y)
			want := caffeine.NewConstantFloatExprFromFloat64(4.0, caffeine.Float64Type())
			expr := caffeine.NewFloatCompareExpr(caffeine.FCMP_EQ, sum, want)

			result, err := s.Check([]caffeine.Assertion{caffeine.NewAssertion(expr)})
			if err != nil {
				t.Fatal(err)
			} else if !result.IsSAT() {
				t.Fatal("expected sat")
			}
		})

		t.Run("NaNNotEqualSelf", func(t *testing.T) {
			s := z3.NewSolver()
			defer mustCloseSolver(t, s)

			nan := caffeine.NewConstantFloatExprFromFloat64(nanValue(), caffeine.Float64Type())
			expr := caffeine.NewFloatCompareExpr(caffeine.FCMP_EQ, nan, nan)

			result, err := s.Check([]caffeine.Assertion{caffeine.NewAssertion(expr)})
			if err != nil {
				t.Fatal(err)
			} else if !result.IsUnsat() {
				t.Fatal("expected unsat: NaN is never equal to itself")
			}
		})

		t.Run("Bitcast", func(t *testing.T) {
			s := z3.NewSolver()
			defer mustCloseSolver(t, s)

			f := caffeine.NewConstantFloatExprFromFloat64(1.0, caffeine.Float32Type())
			bits := caffeine.NewBitcastExpr(f, caffeine.IntType(32))
			expr := caffeine.NewBinaryExpr(caffeine.EQ, bits, caffeine.NewConstantExpr(0x3F800000, 32))

			result, err := s.Check([]caffeine.Assertion{caffeine.NewAssertion(expr)})
			if err != nil {
				t.Fatal(err)
			} else if !result.IsSAT() {
				t.Fatal("expected sat")
			}
		})
	})
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
