package interp

import (
	"github.com/llir/llvm/ir/constant"
	gotypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/caffeine-vm/caffeine"
)

// eval resolves an operand to its LLVMValue: a binding in the current
// frame if one exists, or a literal conversion if the operand is an
// llir/llvm constant (constants are never bound since nothing produced
// them via an instruction). This generalizes glee's ExecutionState.Eval,
// which special-cased *ssa.Const the same way.
func (e *Engine) eval(ic *caffeine.InterpreterContext, val value.Value) caffeine.LLVMValue {
	if v, ok := ic.Frame().TryLookup(val); ok {
		return v
	}
	if c, ok := val.(constant.Constant); ok {
		return e.evalConstant(c)
	}
	panic(&caffeine.Fault{Message: "unbound, non-constant value: " + val.Ident()})
}

func (e *Engine) evalConstant(c constant.Constant) caffeine.LLVMValue {
	switch c := c.(type) {
	case *constant.Int:
		width := bitwidth(c.Typ)
		return caffeine.NewExprValue(caffeine.NewConstantExprBig(bigToUint256(c.X), width))
	case *constant.Float:
		t := c.Typ
		var kind caffeine.Type
		if t.Kind == gotypes.FloatKindFloat {
			kind = caffeine.Float32Type()
		} else {
			kind = caffeine.Float64Type()
		}
		f, _ := c.X.Float64()
		return caffeine.NewExprValue(caffeine.NewConstantFloatExprFromFloat64(f, kind))
	case *constant.Null:
		return caffeine.NewExprValue(caffeine.NewConstantExpr(0, e.PointerWidth))
	case *constant.ZeroInitializer:
		return caffeine.NewExprValue(caffeine.NewConstantExpr(0, bitwidth(c.Typ)))
	default:
		panic(&caffeine.Fault{Message: "unsupported constant kind: " + c.Ident()})
	}
}
