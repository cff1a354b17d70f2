package caffeine

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// StackFrame is the state of one call into a function: its local value
// bindings and its position in the function's control flow graph.
// Adapted from glee's StackFrame (fn/bindings/block/pc), retargeted from
// ssa.Function/ssa.Value to llir/llvm's ir.Func/value.Value.
type StackFrame struct {
	Func     *ir.Func
	caller   *StackFrame
	bindings map[value.Value]LLVMValue

	block *ir.Block
	pc    int

	// result is the value to bind the call result to in the caller's
	// frame, set when this frame was pushed by a call instruction.
	result value.Value
}

// NewStackFrame returns a frame positioned at the first instruction of
// fn's entry block.
func NewStackFrame(caller *StackFrame, fn *ir.Func, result value.Value) *StackFrame {
	var block *ir.Block
	if len(fn.Blocks) > 0 {
		block = fn.Blocks[0]
	}
	return &StackFrame{
		Func:     fn,
		caller:   caller,
		bindings: make(map[value.Value]LLVMValue),
		block:    block,
		pc:       0,
		result:   result,
	}
}

// Caller returns the frame that pushed this one, or nil for the
// entry frame.
func (f *StackFrame) Caller() *StackFrame { return f.caller }

// Result returns the IR value, in the caller's frame, that this frame's
// return value should be bound to.
func (f *StackFrame) Result() value.Value { return f.result }

// Block returns the basic block currently executing.
func (f *StackFrame) Block() *ir.Block { return f.block }

// Instr returns the current instruction, or nil past the block's last
// instruction (meaning the block's terminator runs next).
func (f *StackFrame) Instr() ir.Instruction {
	if f.block == nil || f.pc >= len(f.block.Insts) {
		return nil
	}
	return f.block.Insts[f.pc]
}

// Terminator returns the current block's terminating instruction.
func (f *StackFrame) Terminator() ir.Terminator {
	if f.block == nil {
		return nil
	}
	return f.block.Term
}

// AtTerminator reports whether every non-terminating instruction in the
// block has run.
func (f *StackFrame) AtTerminator() bool {
	return f.block == nil || f.pc >= len(f.block.Insts)
}

// Advance moves to the next instruction in the block.
func (f *StackFrame) Advance() { f.pc++ }

// Jump transfers control to dst, resetting the instruction cursor.
func (f *StackFrame) Jump(dst *ir.Block) {
	f.block, f.pc = dst, 0
}

// Lookup returns the binding for val, panicking via fault if unbound —
// every SSA value must be bound before use by construction.
func (f *StackFrame) Lookup(val value.Value) LLVMValue {
	v, ok := f.bindings[val]
	assert(ok, "unbound value: %s", val.Ident())
	return v
}

// TryLookup returns the binding for val and whether it exists.
func (f *StackFrame) TryLookup(val value.Value) (LLVMValue, bool) {
	v, ok := f.bindings[val]
	return v, ok
}

// Bind assigns v to val in this frame.
func (f *StackFrame) Bind(val value.Value, v LLVMValue) {
	f.bindings[val] = v
}

// Clone returns a copy of the frame with an independent binding map,
// the way glee's StackFrame.Clone does, since binding maps are mutated
// in place as new values are computed.
func (f *StackFrame) Clone() *StackFrame {
	other := *f
	other.bindings = make(map[value.Value]LLVMValue, len(f.bindings))
	for k, v := range f.bindings {
		other.bindings[k] = v
	}
	return &other
}

func (f *StackFrame) String() string {
	return fmt.Sprintf("frame(%s @ pc=%d)", f.Func.Ident(), f.pc)
}
