// Package interp is the interpreter core (spec §4.G): it walks
// llir/llvm IR instruction by instruction, dispatching each to an
// operation that reads/writes an InterpreterContext, and drains an
// ExecutionContextStore of pending paths until none remain or a policy
// says to stop. Retargeted from glee's Executor/ssa.Instruction dispatch
// loop (_teacher_ref/executor.go.orig) onto llir/llvm IR.
package interp

import (
	"context"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/rs/zerolog"

	"github.com/caffeine-vm/caffeine"
)

// Engine owns the module under test and the services an
// InterpreterContext needs: the solver, the boundary services, and
// symbolic argument injection for the entry function.
type Engine struct {
	Module *ir.Module
	Solver *caffeine.CheckpointingSolver
	Logger caffeine.FailureLogger
	Policy caffeine.ExecutionPolicy
	Store  caffeine.ExecutionContextStore

	PointerWidth uint
	LittleEndian bool

	// Log is the structured logger for path fork/prune/complete events.
	// Its zero value is zerolog.Logger{}, which writes to nothing, so an
	// Engine built without SetLogger stays silent.
	Log zerolog.Logger
}

// NewEngine wires the four boundary services together with the module
// to interpret. Log defaults to zerolog.Nop(); call SetLogger to attach
// a real sink.
func NewEngine(module *ir.Module, solver caffeine.Solver, logger caffeine.FailureLogger, policy caffeine.ExecutionPolicy, store caffeine.ExecutionContextStore, pointerWidth uint, littleEndian bool) *Engine {
	return &Engine{
		Module:       module,
		Solver:       caffeine.NewCheckpointingSolver(solver),
		Logger:       logger,
		Policy:       policy,
		Store:        store,
		PointerWidth: pointerWidth,
		LittleEndian: littleEndian,
		Log:          zerolog.Nop(),
	}
}

// SetLogger attaches log as the engine's structured logger, and
// propagates it to the checkpointing solver decorator so short-circuit
// decisions show up in the same stream.
func (e *Engine) SetLogger(log zerolog.Logger) {
	e.Log = log
	e.Solver.Log = log
}

// SymbolicArg describes one entry-function parameter to seed with a
// fresh symbolic value rather than a concrete one (spec §4.G "symbolic
// entry arguments").
type SymbolicArg struct {
	Name  string
	Width uint
}

// Start builds the initial context for entryName, binding its
// parameters to fresh symbols named per args, and queues it on Store.
func (e *Engine) Start(entryName string, args []SymbolicArg) error {
	fn := e.findFunction(entryName)
	if fn == nil {
		return fmt.Errorf("caffeine: entry function not found: %s", entryName)
	}

	ctx := caffeine.NewContext(e.PointerWidth, e.LittleEndian)
	e.Log.Info().Str("entry", entryName).Msg("starting exploration")
	frame := ctx.PushFrame(fn, nil)

	for i, param := range fn.Params {
		var width uint
		var name string
		if i < len(args) {
			width, name = args[i].Width, args[i].Name
		} else {
			width, name = e.PointerWidth, param.Ident()
		}
		sym := caffeine.NewSymbolicExpr(caffeine.NewSymbol(name), caffeine.IntType(width))
		frame.Bind(param, caffeine.NewExprValue(sym))
	}

	e.Store.AddContext(ctx)
	return nil
}

func (e *Engine) findFunction(name string) *ir.Func {
	for _, fn := range e.Module.Funcs {
		if fn.Name() == name {
			return fn
		}
	}
	return nil
}

// Run drains the store, stepping each context until it completes, dies,
// the policy decides to stop early, or goCtx is cancelled. Cancellation
// is cooperative (spec §5): goCtx is only checked between store dequeues
// and between TransformBuilder steps, never used to interrupt a solver
// query already in flight. An engine fault (a *caffeine.Fault panic)
// raised while stepping is recovered and returned as the error.
func (e *Engine) Run(goCtx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = caffeine.Recover(r)
		}
	}()
	for !e.Policy.IsComplete() {
		if err := goCtx.Err(); err != nil {
			e.Log.Info().Err(err).Msg("exploration cancelled")
			return err
		}
		ctx, ok := e.Store.NextContext()
		if !ok {
			return nil
		}
		if !e.Policy.ShouldExecute(ctx) {
			continue
		}
		if err := e.runContext(goCtx, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runContext(goCtx context.Context, ctx *caffeine.Context) error {
	ic := caffeine.NewInterpreterContext(ctx, e.Solver, e.Logger, e.Policy, e.Store)

	for ctx.Status == caffeine.StatusRunning {
		if err := goCtx.Err(); err != nil {
			e.Log.Info().Err(err).Uint64("context", ctx.ID).Msg("exploration cancelled mid-path")
			return err
		}
		forks, err := e.step(ic)
		if err != nil {
			return err
		}
		switch {
		case len(forks) == 0:
			// path continued in place (ic.Ctx was mutated) or died silently
			if ic.Ctx.Status != caffeine.StatusRunning {
				ctx = ic.Ctx
			}
		case len(forks) == 1:
			ic = ic.WithContext(forks[0])
		default:
			e.Log.Debug().Uint64("parent", ctx.ID).Int("forks", len(forks)).Msg("path forked")
			for _, fork := range forks[1:] {
				e.Store.AddContext(fork)
			}
			ic = ic.WithContext(forks[0])
		}
		ctx = ic.Ctx
	}

	e.Log.Debug().Uint64("context", ctx.ID).Str("status", string(ctx.Status)).Str("reason", ctx.Reason).Msg("path complete")
	e.Policy.OnPathComplete(ctx)
	return nil
}
