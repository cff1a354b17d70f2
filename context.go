package caffeine

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// ContextStatus is the terminal state of a path, mirroring glee's
// ExecutionStatus widened with the outcomes spec §4.D calls out
// (assertion failure is distinct from a Go-style panic/exit).
type ContextStatus string

const (
	StatusRunning  ContextStatus = "running"
	StatusComplete ContextStatus = "complete"
	StatusFailed   ContextStatus = "failed"
	StatusDead     ContextStatus = "dead" // killed by die_on_failure with an unproven bad pointer
)

// ReasonSolverUnknown is the Context.Reason a path is closed with when a
// solver query returns Unknown rather than SAT/UNSAT (a resource fault
// per spec §7 class 4): the step that hit it treats the path as done
// rather than retrying, and ExecutionPolicy.OnPathComplete decides
// whether that counts as failure-worthy (strict mode) or pruned-safe.
const ReasonSolverUnknown = "solver unknown"

// Context is the full state of one path under exploration: its call
// stack, its heaps, and its accumulated path condition. Adapted from
// glee's ExecutionState, split so that Heaps/AssertionList (spec §4.A,
// §4.C) are reusable standalone components rather than inline fields.
type Context struct {
	ID     uint64
	Status ContextStatus
	Reason string

	Stack      []*StackFrame
	Heaps      *Heaps
	Assertions *AssertionList

	PointerWidth uint
	LittleEndian bool
}

// NewContext returns a fresh context with an empty stack, empty heaps,
// and no constraints.
func NewContext(pointerWidth uint, littleEndian bool) *Context {
	return &Context{
		Status:       StatusRunning,
		Heaps:        NewHeaps(),
		Assertions:   NewAssertionList(),
		PointerWidth: pointerWidth,
		LittleEndian: littleEndian,
	}
}

// Frame returns the currently executing stack frame, or nil if the
// stack is empty (the context has returned from its entry function).
func (c *Context) Frame() *StackFrame {
	if len(c.Stack) == 0 {
		return nil
	}
	return c.Stack[len(c.Stack)-1]
}

// PushFrame pushes a new frame for a call into fn, binding its result
// (in the caller) to result once the callee returns.
func (c *Context) PushFrame(fn *ir.Func, result value.Value) *StackFrame {
	f := NewStackFrame(c.Frame(), fn, result)
	c.Stack = append(c.Stack, f)
	return f
}

// PopFrame removes the top frame from the stack. Marks the context
// complete once the last frame returns.
func (c *Context) PopFrame() *StackFrame {
	f := c.Stack[len(c.Stack)-1]
	c.Stack = c.Stack[:len(c.Stack)-1]
	if len(c.Stack) == 0 {
		c.Status = StatusComplete
	}
	return f
}

// Lookup resolves val in the current frame.
func (c *Context) Lookup(val value.Value) LLVMValue { return c.Frame().Lookup(val) }

// Insert binds val in the current frame.
func (c *Context) Insert(val value.Value, v LLVMValue) { c.Frame().Bind(val, v) }

// Add appends a constraint to the path condition.
func (c *Context) Add(e Expr) { c.Assertions.Insert(e) }

// Clone returns a deep-enough copy for forking: independent stack frames
// and assertion list, with heaps shared copy-on-write (each Heap's
// backing map is itself persistent).
func (c *Context) Clone() *Context {
	stack := make([]*StackFrame, len(c.Stack))
	for i, f := range c.Stack {
		stack[i] = f.Clone()
	}
	return &Context{
		ID:           c.ID,
		Status:       c.Status,
		Reason:       c.Reason,
		Stack:        stack,
		Heaps:        c.Heaps.Clone(),
		Assertions:   c.Assertions.Clone(),
		PointerWidth: c.PointerWidth,
		LittleEndian: c.LittleEndian,
	}
}

// ForkOnce returns a single independent clone, used to seed
// TransformBuilder.Execute the way original_source calls
// interp->ctx->fork_once() before running a builder's operation stack.
func (c *Context) ForkOnce() *Context { return c.Clone() }

// Fork returns n independent clones, one per feasible branch, the way
// original_source's Context::fork(n) backs TransformBuilder's resolve()
// loop over candidate allocations.
func (c *Context) Fork(n int) []*Context {
	out := make([]*Context, n)
	for i := range out {
		out[i] = c.Clone()
	}
	return out
}

// Backprop records that an unresolved pointer's raw address must equal a
// specific allocation's base plus offset, narrowing later queries on
// this forked context the same way original_source's
// Context::backprop does after TransformBuilder::resolve picks a
// candidate for an unresolved pointer.
func (c *Context) Backprop(unresolved Pointer, resolved Pointer) {
	assert(!unresolved.IsResolved(), "Backprop: pointer already resolved")
	alloc := c.Heaps.Allocation(resolved)
	addr := NewBinaryExpr(ADD, alloc.Base, resolved.offset)
	c.Add(NewBinaryExpr(EQ, unresolved.address, addr))
}

// PtrResolve resolves an unresolved pointer against this context's
// heaps using solver, returning one candidate per feasible allocation.
func (c *Context) PtrResolve(solver Solver, p Pointer) []Pointer {
	return c.Heaps.Resolve(c, solver, p)
}

func (c *Context) String() string {
	return fmt.Sprintf("context(#%d status=%s depth=%d)", c.ID, c.Status, len(c.Stack))
}
