package interp

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"

	"github.com/caffeine-vm/caffeine"
)

// execTerminator runs the current block's terminator: a conditional
// branch forks the context in two (one per feasible arm, pruning
// infeasible ones via a cheap Check rather than assuming both are live);
// ret pops the frame and, if a caller frame exists, resumes it with the
// bound result; unreachable kills the path.
func (e *Engine) execTerminator(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame) ([]*caffeine.Context, error) {
	term := frame.Terminator()
	if term == nil {
		return nil, fmt.Errorf("caffeine: block has no terminator")
	}

	switch term := term.(type) {
	case *ir.TermRet:
		return nil, e.execRet(ic, frame, term)

	case *ir.TermBr:
		frame.Jump(term.Target.(*ir.Block))
		return nil, nil

	case *ir.TermCondBr:
		return e.execCondBr(ic, frame, term)

	case *ir.TermSwitch:
		return e.execSwitch(ic, frame, term)

	case *ir.TermUnreachable:
		ic.Ctx.Status = caffeine.StatusDead
		return nil, nil

	default:
		return nil, fmt.Errorf("caffeine: unsupported terminator: %T", term)
	}
}

func (e *Engine) execRet(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, term *ir.TermRet) error {
	var result caffeine.LLVMValue
	hasResult := term.X != nil
	if hasResult {
		result = e.eval(ic, term.X)
	}

	callerResultDest := frame.Result()
	ic.PopFrame()

	if ic.Ctx.Status == caffeine.StatusComplete {
		return nil
	}
	if hasResult && callerResultDest != nil {
		ic.Insert(callerResultDest, result)
	}
	return nil
}

func (e *Engine) execCondBr(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, term *ir.TermCondBr) ([]*caffeine.Context, error) {
	cond := e.eval(ic, term.Cond).Expr()

	if c, ok := cond.(*caffeine.ConstantExpr); ok {
		if c.IsTrue() {
			frame.Jump(term.TargetTrue.(*ir.Block))
		} else {
			frame.Jump(term.TargetFalse.(*ir.Block))
		}
		return nil, nil
	}

	forks := ic.Ctx.Fork(2)
	trueCtx, falseCtx := forks[0], forks[1]
	trueCtx.Add(cond)
	falseCtx.Add(caffeine.NewNotExpr(cond))

	var live []*caffeine.Context
	if result, err := e.Solver.Check(trueCtx.Assertions, nil); err == nil && result.IsSAT() {
		trueCtx.Frame().Jump(term.TargetTrue.(*ir.Block))
		live = append(live, trueCtx)
	} else {
		e.Log.Debug().Uint64("context", ic.Ctx.ID).Msg("pruned true branch: infeasible")
	}
	if result, err := e.Solver.Check(falseCtx.Assertions, nil); err == nil && result.IsSAT() {
		falseCtx.Frame().Jump(term.TargetFalse.(*ir.Block))
		live = append(live, falseCtx)
	} else {
		e.Log.Debug().Uint64("context", ic.Ctx.ID).Msg("pruned false branch: infeasible")
	}
	if len(live) == 0 {
		e.Log.Warn().Uint64("context", ic.Ctx.ID).Msg("both branches infeasible, path dead")
		ic.Ctx.Status = caffeine.StatusDead
		return nil, nil
	}
	return live, nil
}

// execSwitch forks N+1 ways, one per case plus default (spec §4.G): each
// case fork is predicated by an equality assertion against its constant,
// the default fork by the conjunction of all cases' negated equalities.
// Infeasible forks are pruned exactly as execCondBr prunes its two arms.
func (e *Engine) execSwitch(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, term *ir.TermSwitch) ([]*caffeine.Context, error) {
	cond := e.eval(ic, term.X).Expr()

	if c, ok := cond.(*caffeine.ConstantExpr); ok {
		for _, cs := range term.Cases {
			caseVal := caffeine.NewConstantExpr(cs.X.(*constant.Int).X.Uint64(), caffeine.ExprWidth(cond))
			if caffeine.CompareExpr(c, caseVal) == 0 {
				frame.Jump(cs.Target.(*ir.Block))
				return nil, nil
			}
		}
		frame.Jump(term.TargetDefault.(*ir.Block))
		return nil, nil
	}

	forks := ic.Ctx.Fork(len(term.Cases) + 1)
	caseCtxs, defaultCtx := forks[:len(term.Cases)], forks[len(term.Cases)]

	noneEq := caffeine.Expr(caffeine.NewBoolConstantExpr(true))
	for i, cs := range term.Cases {
		caseVal := caffeine.NewConstantExpr(cs.X.(*constant.Int).X.Uint64(), caffeine.ExprWidth(cond))
		eq := caffeine.NewBinaryExpr(caffeine.EQ, cond, caseVal)
		caseCtxs[i].Add(eq)
		noneEq = caffeine.NewBinaryExpr(caffeine.AND, noneEq, caffeine.NewNotExpr(eq))
	}
	defaultCtx.Add(noneEq)

	var live []*caffeine.Context
	for i, cs := range term.Cases {
		caseCtx := caseCtxs[i]
		if result, err := e.Solver.Check(caseCtx.Assertions, nil); err == nil && result.IsSAT() {
			caseCtx.Frame().Jump(cs.Target.(*ir.Block))
			live = append(live, caseCtx)
		} else {
			e.Log.Debug().Uint64("context", ic.Ctx.ID).Int("case", i).Msg("pruned switch case: infeasible")
		}
	}
	if result, err := e.Solver.Check(defaultCtx.Assertions, nil); err == nil && result.IsSAT() {
		defaultCtx.Frame().Jump(term.TargetDefault.(*ir.Block))
		live = append(live, defaultCtx)
	} else {
		e.Log.Debug().Uint64("context", ic.Ctx.ID).Msg("pruned switch default: infeasible")
	}
	if len(live) == 0 {
		e.Log.Warn().Uint64("context", ic.Ctx.ID).Msg("all switch arms infeasible, path dead")
		ic.Ctx.Status = caffeine.StatusDead
		return nil, nil
	}
	return live, nil
}
