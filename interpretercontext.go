package caffeine

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// FailureLogger persists a reproducer for a confirmed assertion failure.
// Implementations (package logger) own how/where reproducers are
// written; the engine only needs to report them (spec §4.H).
type FailureLogger interface {
	LogFailure(ctx *Context, assertion Assertion, model *Model, message string) error
}

// ExecutionPolicy decides whether a context is worth continuing to
// execute and when the overall run should stop (spec §4.H). StrictUnknown
// pins Open Question #1: whether a SolverUnknown result during path
// exploration should be treated as a failure-worthy condition or
// silently pruned.
type ExecutionPolicy interface {
	ShouldExecute(ctx *Context) bool
	OnPathComplete(ctx *Context)
	IsComplete() bool
}

// ExecutionContextStore is the pluggable worklist of pending contexts
// (spec §4.H), generalizing glee's Searcher interface
// (SelectState/AddState) into an add_context/next_context/size
// vocabulary.
type ExecutionContextStore interface {
	AddContext(ctx *Context)
	NextContext() (*Context, bool)
	Size() int
}

// InterpreterContext is the façade an opcode handler operates through:
// the current path's Context plus the shared solver and boundary
// services, so individual instruction handlers never need to thread all
// four through their own argument lists. Ported field-for-field from
// original_source's InterpreterContext.
type InterpreterContext struct {
	Ctx    *Context
	Solver *CheckpointingSolver
	Logger FailureLogger
	Policy ExecutionPolicy
	Store  ExecutionContextStore
}

func NewInterpreterContext(ctx *Context, solver *CheckpointingSolver, logger FailureLogger, policy ExecutionPolicy, store ExecutionContextStore) *InterpreterContext {
	return &InterpreterContext{Ctx: ctx, Solver: solver, Logger: logger, Policy: policy, Store: store}
}

// WithContext returns a copy of ic with its Context replaced, used when
// a TransformBuilder operation forks onto a new path.
func (ic *InterpreterContext) WithContext(ctx *Context) *InterpreterContext {
	other := *ic
	other.Ctx = ctx
	return &other
}

func (ic *InterpreterContext) Frame() *StackFrame { return ic.Ctx.Frame() }

func (ic *InterpreterContext) PushFrame(fn *ir.Func, result value.Value) *StackFrame {
	return ic.Ctx.PushFrame(fn, result)
}

func (ic *InterpreterContext) PopFrame() *StackFrame { return ic.Ctx.PopFrame() }

func (ic *InterpreterContext) Lookup(val value.Value) LLVMValue { return ic.Ctx.Lookup(val) }

func (ic *InterpreterContext) Insert(val value.Value, v LLVMValue) { ic.Ctx.Insert(val, v) }

func (ic *InterpreterContext) Add(e Expr) { ic.Ctx.Add(e) }

// Check queries satisfiability of the path condition plus an optional
// extra assertion, without retaining a model.
func (ic *InterpreterContext) Check(extra Expr) (SolverResult, error) {
	var a *Assertion
	if extra != nil {
		na := NewAssertion(extra)
		a = &na
	}
	return ic.Solver.Check(ic.Ctx.Assertions, a)
}

// Resolve is like Check but retains a model on SAT.
func (ic *InterpreterContext) Resolve(extra Expr) (SolverResult, error) {
	var a *Assertion
	if extra != nil {
		na := NewAssertion(extra)
		a = &na
	}
	return ic.Solver.Resolve(ic.Ctx.Assertions, a)
}

// LogFailure reports a confirmed assertion failure, and the model
// witnessing it, to the configured FailureLogger.
func (ic *InterpreterContext) LogFailure(assertion Assertion, model *Model, message string) {
	if ic.Logger == nil {
		return
	}
	if err := ic.Logger.LogFailure(ic.Ctx, assertion, model, message); err != nil {
		fault("failed to log failure: %v", err)
	}
}

// PtrResolve resolves an unresolved pointer against the current
// context's heaps.
func (ic *InterpreterContext) PtrResolve(p Pointer) []Pointer {
	return ic.Ctx.PtrResolve(ic.Solver.Backend, p)
}

// PtrAllocation returns the allocation a resolved pointer names.
func (ic *InterpreterContext) PtrAllocation(p Pointer) *Allocation {
	return ic.Ctx.Heaps.Allocation(p)
}
