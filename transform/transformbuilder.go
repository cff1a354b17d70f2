// Package transform implements the LIFO-worklist execution model used to
// run a sequence of heap-touching operations that may fork into several
// successor paths (spec §4.F). It is a direct port of
// original_source/src/Interpreter/TransformBuilder.cpp's execute()/
// resolve() pair: an instruction handler that needs to read or write
// memory through a possibly-unresolved pointer builds a short Builder
// instead of hand-rolling the fork loop itself.
package transform

import (
	"github.com/llir/llvm/ir/value"

	"github.com/caffeine-vm/caffeine"
)

// ContextState is one entry on the worklist: a path fork in progress,
// the intermediate values computed by earlier operations in this
// builder, and the index of the next operation to run.
type ContextState struct {
	Ctx  *caffeine.Context
	Vals map[int]caffeine.LLVMValue
	Inst int
}

func (s ContextState) cloneVals() map[int]caffeine.LLVMValue {
	out := make(map[int]caffeine.LLVMValue, len(s.Vals)+1)
	for k, v := range s.Vals {
		out[k] = v
	}
	return out
}

// InsertFn pushes a new fork onto the worklist, mirroring
// TransformBuilder.cpp's InsertFn continuation passed to each op.
type InsertFn func(ContextState)

// Operation is a single step of a builder: given the state it runs in
// and a way to spawn successor states, it does its work and calls
// insert zero or more times (zero to kill the path, more than one to
// fork it).
type Operation func(state ContextState, insert InsertFn)

// ResultKind distinguishes a builder run that stayed on a single path
// from one that forked.
type ResultKind int

const (
	Continue ResultKind = iota
	Forked
	Died
)

// Result is the outcome of Builder.Execute.
type Result struct {
	Kind     ResultKind
	Contexts []*caffeine.Context // valid when Kind == Forked
}

// Builder accumulates a sequence of Operations to run against one
// InterpreterContext's current path.
type Builder struct {
	ic         *caffeine.InterpreterContext
	operations []Operation
}

// New returns an empty builder bound to ic. Operations added to it run
// against forks of ic.Ctx.
func New(ic *caffeine.InterpreterContext) *Builder {
	return &Builder{ic: ic}
}

func (b *Builder) push(op Operation) int {
	b.operations = append(b.operations, op)
	return len(b.operations) - 1
}

// Execute runs the accumulated operations to completion: a stack-based
// worklist loop identical in shape to TransformBuilder::execute, which
// pops the top state, runs its next operation, and pushes whatever that
// operation inserts, until the worklist is empty. An operation is run
// at most once per path; every insert spawns an independent path whose
// remaining operations run from the next index onward.
func (b *Builder) Execute() Result {
	var stack []ContextState
	stack = append(stack, ContextState{Ctx: b.ic.Ctx.ForkOnce(), Vals: map[int]caffeine.LLVMValue{}, Inst: 0})

	var insert InsertFn
	insert = func(s ContextState) { stack = append(stack, s) }

	var output []*caffeine.Context
	for len(stack) > 0 {
		state := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if state.Inst >= len(b.operations) {
			output = append(output, state.Ctx)
			continue
		}

		op := b.operations[state.Inst]
		state.Inst++
		op(state, insert)
	}

	switch len(output) {
	case 0:
		return Result{Kind: Died}
	case 1:
		b.ic.Ctx = output[0]
		return Result{Kind: Continue}
	default:
		return Result{Kind: Forked, Contexts: output}
	}
}

// Assign appends an operation that computes a value with no forking and
// binds it under a new ref, usable by later operations in the same
// builder.
func (b *Builder) Assign(produce func(ic *caffeine.InterpreterContext, state ContextState) caffeine.LLVMValue) int {
	idx := len(b.operations)
	b.push(func(state ContextState, insert InsertFn) {
		v := produce(b.ic.WithContext(state.Ctx), state)
		next := state
		next.Vals = state.cloneVals()
		next.Vals[idx] = v
		insert(next)
	})
	return idx
}

// Resolve is the direct port of TransformBuilder::resolve: it checks the
// pointer bound to ptrRef for validity, logs a failure if an invalid
// access is feasible, kills the path on dieOnFailure if so, then forks
// once per allocation the pointer could plausibly name, asserting
// in-bounds and back-propagating the resolution into each fork's path
// condition. It returns a ref to the resolved Pointer value.
func (b *Builder) Resolve(ptrRef int, accessWidth uint, dieOnFailure bool) int {
	idx := len(b.operations)
	b.push(func(state ContextState, insert InsertFn) {
		ic := b.ic.WithContext(state.Ctx)
		unresolved := state.Vals[ptrRef].Pointer()

		assertion := ic.Ctx.Heaps.CheckValid(unresolved, accessWidth)
		invalid := caffeine.NewNotExpr(assertion)
		if result, err := ic.Resolve(invalid); err == nil && result.IsSAT() {
			ic.LogFailure(caffeine.NewAssertion(invalid), result.Model, "invalid pointer load/store")
			if dieOnFailure {
				return
			}
		}

		resolved := ic.PtrResolve(unresolved)
		forks := ic.Ctx.Fork(len(resolved))
		for i, ptr := range resolved {
			fork := forks[i]
			alloc := fork.Heaps.Allocation(ptr)
			fork.Add(alloc.CheckInbounds(ptr.Offset(), accessWidth))
			if !unresolved.IsResolved() {
				fork.Backprop(unresolved, ptr)
			}

			next := ContextState{Ctx: fork, Vals: state.cloneVals(), Inst: state.Inst}
			next.Vals[idx] = caffeine.NewPointerValue(ptr)
			insert(next)
		}
	})
	return idx
}

// Read appends a memory load through a resolved pointer ref, returning a
// ref to the loaded expression value.
func (b *Builder) Read(ptrRef int, width uint) int {
	idx := len(b.operations)
	b.push(func(state ContextState, insert InsertFn) {
		ic := b.ic.WithContext(state.Ctx)
		ptr := state.Vals[ptrRef].Pointer()
		alloc := ic.PtrAllocation(ptr)
		value := alloc.Read(ptr.Offset(), width, state.Ctx.LittleEndian)

		next := state
		next.Vals = state.cloneVals()
		next.Vals[idx] = caffeine.NewExprValue(value)
		insert(next)
	})
	return idx
}

// Write appends a memory store through a resolved pointer ref.
func (b *Builder) Write(ptrRef, valueRef int) {
	b.push(func(state ContextState, insert InsertFn) {
		ic := b.ic.WithContext(state.Ctx)
		ptr := state.Vals[ptrRef].Pointer()
		value := state.Vals[valueRef].Expr()

		alloc := ic.PtrAllocation(ptr)
		updated := alloc.Write(ptr.Offset(), value, state.Ctx.LittleEndian)
		state.Ctx.Heaps.Of(caffeine.AllocKind(ptr.Heap())).Set(updated)

		insert(state)
	})
}

// Free appends an operation that drops the allocation a resolved
// pointer ref names from its heap, mirroring Write's direct
// state.Ctx.Heaps mutation. A later load/store through the same
// allocation id fails to resolve (Heaps.CheckValid treats a missing
// allocation as invalid), modeling use-after-free as an ordinary
// invalid-access failure rather than a distinct check.
func (b *Builder) Free(ptrRef int) {
	b.push(func(state ContextState, insert InsertFn) {
		ptr := state.Vals[ptrRef].Pointer()
		state.Ctx.Heaps.Of(caffeine.AllocKind(ptr.Heap())).Free(ptr.Alloc())
		insert(state)
	})
}

// Bind seeds a ref with an already-known value, letting instruction
// handlers feed existing operands into a builder alongside the refs
// produced by Assign/Resolve/Read.
func (b *Builder) Bind(v caffeine.LLVMValue) int {
	idx := len(b.operations)
	b.push(func(state ContextState, insert InsertFn) {
		next := state
		next.Vals = state.cloneVals()
		next.Vals[idx] = v
		insert(next)
	})
	return idx
}

// Value looks up a previously computed ref's value within a running
// operation's state; exported so instruction handlers outside this
// package can read intermediate results back out.
func Value(state ContextState, ref int) caffeine.LLVMValue { return state.Vals[ref] }

// BindInto appends a no-fork operation that binds a previously computed
// ref's value onto dest in the forked context's current frame. Since
// Execute's output contexts are independent forks with their own stack
// frames, a load/store's result must be bound this way rather than
// handed back through the caller's pre-fork frame pointer.
func (b *Builder) BindInto(ref int, dest value.Value) {
	b.push(func(state ContextState, insert InsertFn) {
		state.Ctx.Insert(dest, state.Vals[ref])
		insert(state)
	})
}
