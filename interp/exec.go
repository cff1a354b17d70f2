package interp

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/caffeine-vm/caffeine"
	"github.com/caffeine-vm/caffeine/transform"
)

// step executes the current instruction (or terminator, if the frame's
// instruction cursor has run off the end of the block) of ic's top
// frame. Most instructions mutate ic.Ctx in place and return no forks;
// a resolve()-backed memory access or a conditional branch may return
// more than one, in which case the caller queues the extras and
// continues on the first.
func (e *Engine) step(ic *caffeine.InterpreterContext) ([]*caffeine.Context, error) {
	frame := ic.Frame()
	if frame == nil {
		return nil, fmt.Errorf("caffeine: step: no active frame")
	}

	if frame.AtTerminator() {
		return e.execTerminator(ic, frame)
	}

	inst := frame.Instr()
	frame.Advance()
	return nil, e.execInstruction(ic, frame, inst)
}

func (e *Engine) execInstruction(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, inst ir.Instruction) error {
	switch inst := inst.(type) {
	case *ir.InstAlloca:
		return e.execAlloca(ic, frame, inst)
	case *ir.InstLoad:
		return e.execLoad(ic, frame, inst)
	case *ir.InstStore:
		return e.execStore(ic, frame, inst)
	case *ir.InstSelect:
		return e.execSelect(ic, frame, inst)
	case *ir.InstCall:
		return e.execCall(ic, frame, inst)
	case *ir.InstZExt:
		v := e.eval(ic, inst.From).Expr()
		ic.Insert(inst, caffeine.NewExprValue(caffeine.NewCastExpr(v, bitwidth(inst.To), false)))
		return nil
	case *ir.InstSExt:
		v := e.eval(ic, inst.From).Expr()
		ic.Insert(inst, caffeine.NewExprValue(caffeine.NewCastExpr(v, bitwidth(inst.To), true)))
		return nil
	case *ir.InstTrunc:
		v := e.eval(ic, inst.From).Expr()
		ic.Insert(inst, caffeine.NewExprValue(caffeine.NewExtractExpr(v, 0, bitwidth(inst.To))))
		return nil
	case *ir.InstBitCast:
		return e.execBitCast(ic, frame, inst)
	default:
		return e.execBinaryOrCompare(ic, frame, inst)
	}
}

func (e *Engine) execAlloca(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, inst *ir.InstAlloca) error {
	width := bitwidth(inst.ElemType) / 8
	if width == 0 {
		width = 1
	}
	addr := caffeine.NewSymbolicExpr(caffeine.NewSymbol(inst.Ident()+".addr"), caffeine.IntType(e.PointerWidth))
	alloc := ic.Ctx.Heaps.Of(caffeine.AllocStack).Alloc(addr, caffeine.NewConstantExpr(uint64(width), e.PointerWidth), e.PointerWidth)
	ptr := caffeine.NewPointer(int(caffeine.AllocStack), alloc.ID, caffeine.NewConstantExpr(0, e.PointerWidth))
	ic.Insert(inst, caffeine.NewPointerValue(ptr))
	return nil
}

func (e *Engine) execLoad(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, inst *ir.InstLoad) error {
	width := bitwidth(inst.ElemType)
	b := transform.New(ic)
	ptrRef := b.Bind(e.eval(ic, inst.Src))
	resolvedRef := b.Resolve(ptrRef, width, false)
	valRef := b.Read(resolvedRef, width)
	b.BindInto(valRef, inst)
	return e.finishMemoryOp(ic, b.Execute())
}

func (e *Engine) execStore(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, inst *ir.InstStore) error {
	width := bitwidth(inst.Src.Type())
	b := transform.New(ic)
	ptrRef := b.Bind(e.eval(ic, inst.Dst))
	valueRef := b.Bind(e.eval(ic, inst.Src))
	resolvedRef := b.Resolve(ptrRef, width, true)
	b.Write(resolvedRef, valueRef)
	return e.finishMemoryOp(ic, b.Execute())
}

// finishMemoryOp drives a transform.Builder result back into the engine:
// a single continuation already left ic.Ctx updated in place by
// Execute; a fork queues every extra path on the store and leaves ic
// pointed at the first so the caller's frame variable (read fresh via
// ic.Frame() on the next step) stays in sync.
func (e *Engine) finishMemoryOp(ic *caffeine.InterpreterContext, result transform.Result) error {
	switch result.Kind {
	case transform.Died:
		ic.Ctx.Status = caffeine.StatusDead
		return nil
	case transform.Continue:
		return nil
	case transform.Forked:
		for _, fork := range result.Contexts[1:] {
			e.Store.AddContext(fork)
		}
		*ic = *ic.WithContext(result.Contexts[0])
		return nil
	}
	return nil
}

func (e *Engine) execSelect(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, inst *ir.InstSelect) error {
	cond := e.eval(ic, inst.Cond).Expr()
	t := e.eval(ic, inst.ValueTrue).Expr()
	f := e.eval(ic, inst.ValueFalse).Expr()
	ic.Insert(inst, caffeine.NewExprValue(caffeine.NewSelectExpr(cond, t, f)))
	return nil
}

func (e *Engine) execBitCast(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, inst *ir.InstBitCast) error {
	from := e.eval(ic, inst.From)
	if from.Scalar().IsPointer() {
		ic.Insert(inst, from)
		return nil
	}
	toFloat := isFloatType(inst.To)
	v := from.Expr()
	if toFloat {
		ic.Insert(inst, caffeine.NewExprValue(caffeine.NewBitcastExpr(v, floatKind(inst.To))))
	} else {
		ic.Insert(inst, caffeine.NewExprValue(caffeine.NewBitcastExpr(v, caffeine.IntType(bitwidth(inst.To)))))
	}
	return nil
}

// execCall dispatches calls to the handful of recognized intrinsics
// (spec §4.G "symbolic value / assertion intrinsics"); any other callee
// pushes a fresh frame the way glee's ExtractCall + Push does.
func (e *Engine) execCall(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, inst *ir.InstCall) error {
	callee, ok := inst.Callee.(*ir.Func)
	if !ok {
		return fmt.Errorf("caffeine: indirect calls are not yet supported: %s", inst.Ident())
	}

	switch callee.Name() {
	case "caffeine_assert":
		cond := e.eval(ic, inst.Args[0]).Expr()
		notCond := caffeine.NewNotExpr(cond)
		result, err := ic.Resolve(notCond)
		if err != nil {
			return err
		}
		if result.IsSAT() {
			ic.LogFailure(caffeine.NewAssertion(notCond), result.Model, "assertion failed")
			ic.Ctx.Status = caffeine.StatusFailed
			return nil
		}
		if result.IsUnknown() {
			ic.Ctx.Status = caffeine.StatusFailed
			ic.Ctx.Reason = caffeine.ReasonSolverUnknown
			return nil
		}
		ic.Add(cond)
		return nil

	case "caffeine_assume":
		cond := e.eval(ic, inst.Args[0]).Expr()
		ic.Add(cond)
		return nil

	case "caffeine_symbolic":
		width := bitwidth(inst.Typ)
		sym := caffeine.NewSymbolicExpr(caffeine.NewSymbol(fmt.Sprintf("sym%d", ic.Ctx.ID)), caffeine.IntType(width))
		ic.Insert(inst, caffeine.NewExprValue(sym))
		return nil

	case "malloc":
		return e.execMalloc(ic, inst)

	case "free":
		return e.execFree(ic, inst)

	default:
		if len(callee.Blocks) == 0 {
			return fmt.Errorf("caffeine: unmodeled external function: %s", callee.Name())
		}
		newFrame := ic.PushFrame(callee, inst)
		for i, param := range callee.Params {
			newFrame.Bind(param, e.eval(ic, inst.Args[i]))
		}
		return nil
	}
}

// execMalloc models the malloc heap intrinsic (spec §4.G "alloca /
// malloc / free") the same way execAlloca models alloca: a fresh
// AllocHeap allocation with a symbolic base address, sized by the
// call's size argument rather than a fixed element width.
func (e *Engine) execMalloc(ic *caffeine.InterpreterContext, inst *ir.InstCall) error {
	size := toPointerWidth(e.eval(ic, inst.Args[0]).Expr(), e.PointerWidth)
	addr := caffeine.NewSymbolicExpr(caffeine.NewSymbol(inst.Ident()+".addr"), caffeine.IntType(e.PointerWidth))
	alloc := ic.Ctx.Heaps.Of(caffeine.AllocHeap).Alloc(addr, size, e.PointerWidth)
	ptr := caffeine.NewPointer(int(caffeine.AllocHeap), alloc.ID, caffeine.NewConstantExpr(0, e.PointerWidth))
	ic.Insert(inst, caffeine.NewPointerValue(ptr))
	return nil
}

// execFree models the free heap intrinsic: it resolves the pointer
// argument exactly as a load/store would (forking once per allocation
// it could plausibly name, logging an invalid-access failure if freeing
// it is infeasible) and then drops that allocation, so any later access
// through a stale pointer to the same id fails to resolve.
func (e *Engine) execFree(ic *caffeine.InterpreterContext, inst *ir.InstCall) error {
	b := transform.New(ic)
	ptrRef := b.Bind(e.eval(ic, inst.Args[0]))
	resolvedRef := b.Resolve(ptrRef, 0, true)
	b.Free(resolvedRef)
	return e.finishMemoryOp(ic, b.Execute())
}

// toPointerWidth widens or narrows e to width, the way an implicit
// size_t-to-pointer-width conversion would for malloc's size argument.
func toPointerWidth(e caffeine.Expr, width uint) caffeine.Expr {
	w := caffeine.ExprWidth(e)
	switch {
	case w == width:
		return e
	case w < width:
		return caffeine.NewCastExpr(e, width, false)
	default:
		return caffeine.NewExtractExpr(e, 0, width)
	}
}

func (e *Engine) execBinaryOrCompare(ic *caffeine.InterpreterContext, frame *caffeine.StackFrame, inst ir.Instruction) error {
	v, ok := inst.(value.Value)
	if !ok {
		return fmt.Errorf("caffeine: unsupported instruction: %T", inst)
	}

	binOp, lhs, rhs, isBin := intBinaryOperands(inst)
	if isBin {
		l, r := e.eval(ic, lhs).Expr(), e.eval(ic, rhs).Expr()
		if isDivisionOp(binOp) {
			failed, err := e.guardNonzeroDivisor(ic, r)
			if err != nil || failed {
				return err
			}
		}
		if isShiftOp(binOp) {
			failed, err := e.guardShiftInBounds(ic, r)
			if err != nil || failed {
				return err
			}
		}
		ic.Insert(v, caffeine.NewExprValue(caffeine.NewBinaryExpr(binOp, l, r)))
		return nil
	}

	if icmp, ok := inst.(*ir.InstICmp); ok {
		op := icmpOp(icmp.Pred)
		l, r := e.eval(ic, icmp.X).Expr(), e.eval(ic, icmp.Y).Expr()
		ic.Insert(v, caffeine.NewExprValue(caffeine.NewBinaryExpr(op, l, r)))
		return nil
	}

	return fmt.Errorf("caffeine: unsupported instruction: %T", inst)
}

func isDivisionOp(op caffeine.BinaryOp) bool {
	switch op {
	case caffeine.UDIV, caffeine.SDIV, caffeine.UREM, caffeine.SREM:
		return true
	default:
		return false
	}
}

func isShiftOp(op caffeine.BinaryOp) bool {
	switch op {
	case caffeine.SHL, caffeine.LSHR, caffeine.ASHR:
		return true
	default:
		return false
	}
}

// guardShiftInBounds checks whether a shift amount can reach or exceed
// its operand's bit width on the current path (spec §4.G "undefined
// behavior checks": shift amount >= width), the same check-log-kill
// shape as guardNonzeroDivisor.
func (e *Engine) guardShiftInBounds(ic *caffeine.InterpreterContext, amount caffeine.Expr) (failed bool, err error) {
	width := caffeine.ExprWidth(amount)
	tooWide := caffeine.NewBinaryExpr(caffeine.UGE, amount, caffeine.NewConstantExpr(uint64(width), width))
	result, err := ic.Resolve(tooWide)
	if err != nil {
		return false, err
	}
	if result.IsSAT() {
		ic.LogFailure(caffeine.NewAssertion(tooWide), result.Model, "shift amount out of bounds")
		ic.Ctx.Status = caffeine.StatusFailed
		return true, nil
	}
	if result.IsUnknown() {
		ic.Ctx.Status = caffeine.StatusFailed
		ic.Ctx.Reason = caffeine.ReasonSolverUnknown
		return true, nil
	}
	ic.Add(caffeine.NewNotExpr(tooWide))
	return false, nil
}

// guardNonzeroDivisor checks whether divisor can be zero on the current
// path (spec §8 S1): if so, the path is reported as a failure with a
// model pinning the zero divisor and ends here, the same way
// caffeine_assert ends a path on a reachable violation rather than
// forking one. Otherwise divisor != 0 is added to the path condition and
// execution continues normally into the division itself.
func (e *Engine) guardNonzeroDivisor(ic *caffeine.InterpreterContext, divisor caffeine.Expr) (failed bool, err error) {
	isZero := caffeine.NewBinaryExpr(caffeine.EQ, divisor, caffeine.NewConstantExpr(0, caffeine.ExprWidth(divisor)))
	result, err := ic.Resolve(isZero)
	if err != nil {
		return false, err
	}
	if result.IsSAT() {
		ic.LogFailure(caffeine.NewAssertion(isZero), result.Model, "division by zero")
		ic.Ctx.Status = caffeine.StatusFailed
		return true, nil
	}
	if result.IsUnknown() {
		ic.Ctx.Status = caffeine.StatusFailed
		ic.Ctx.Reason = caffeine.ReasonSolverUnknown
		return true, nil
	}
	ic.Add(caffeine.NewNotExpr(isZero))
	return false, nil
}

func intBinaryOperands(inst ir.Instruction) (op caffeine.BinaryOp, lhs, rhs value.Value, ok bool) {
	switch inst := inst.(type) {
	case *ir.InstAdd:
		return caffeine.ADD, inst.X, inst.Y, true
	case *ir.InstSub:
		return caffeine.SUB, inst.X, inst.Y, true
	case *ir.InstMul:
		return caffeine.MUL, inst.X, inst.Y, true
	case *ir.InstUDiv:
		return caffeine.UDIV, inst.X, inst.Y, true
	case *ir.InstSDiv:
		return caffeine.SDIV, inst.X, inst.Y, true
	case *ir.InstURem:
		return caffeine.UREM, inst.X, inst.Y, true
	case *ir.InstSRem:
		return caffeine.SREM, inst.X, inst.Y, true
	case *ir.InstAnd:
		return caffeine.AND, inst.X, inst.Y, true
	case *ir.InstOr:
		return caffeine.OR, inst.X, inst.Y, true
	case *ir.InstXor:
		return caffeine.XOR, inst.X, inst.Y, true
	case *ir.InstShl:
		return caffeine.SHL, inst.X, inst.Y, true
	case *ir.InstLShr:
		return caffeine.LSHR, inst.X, inst.Y, true
	case *ir.InstAShr:
		return caffeine.ASHR, inst.X, inst.Y, true
	default:
		return 0, nil, nil, false
	}
}

func icmpOp(pred enum.IPred) caffeine.BinaryOp {
	switch pred {
	case enum.IPredEQ:
		return caffeine.EQ
	case enum.IPredNE:
		return caffeine.NE
	case enum.IPredUGT:
		return caffeine.UGT
	case enum.IPredUGE:
		return caffeine.UGE
	case enum.IPredULT:
		return caffeine.ULT
	case enum.IPredULE:
		return caffeine.ULE
	case enum.IPredSGT:
		return caffeine.SGT
	case enum.IPredSGE:
		return caffeine.SGE
	case enum.IPredSLT:
		return caffeine.SLT
	case enum.IPredSLE:
		return caffeine.SLE
	default:
		panic(&caffeine.Fault{Message: fmt.Sprintf("unsupported icmp predicate: %v", pred)})
	}
}

func bitwidth(t types.Type) uint {
	switch t := t.(type) {
	case *types.IntType:
		return uint(t.BitSize)
	case *types.PointerType:
		return 64
	case *types.FloatType:
		switch t.Kind {
		case types.FloatKindFloat:
			return 32
		case types.FloatKindDouble:
			return 64
		default:
			return 64
		}
	default:
		return 0
	}
}

func isFloatType(t types.Type) bool {
	_, ok := t.(*types.FloatType)
	return ok
}

func floatKind(t types.Type) caffeine.Type {
	ft := t.(*types.FloatType)
	switch ft.Kind {
	case types.FloatKindFloat:
		return caffeine.Float32Type()
	default:
		return caffeine.Float64Type()
	}
}
