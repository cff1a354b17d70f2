// Package policy provides ExecutionPolicy implementations: the
// prune/continue and run-termination decisions an Engine consults
// between steps (spec §4.H).
package policy

import (
	"sync"

	"github.com/caffeine-vm/caffeine"
)

var _ caffeine.ExecutionPolicy = (*Default)(nil)

// Default is the policy a caffeine CLI run uses unless overridden: it
// never prunes a live context (ShouldExecute always true, leaving
// pruning to the solver-backed feasibility checks already done at each
// fork), completes once a context budget is exhausted, and tracks
// per-reason path counts for reporting. StrictUnknown pins Open
// Question #1: whether a path that ends with a SolverUnknown result
// counts toward the failure-worthy total or is counted as pruned-safe.
type Default struct {
	mu sync.Mutex

	// MaxContexts caps how many paths this policy lets complete before
	// IsComplete reports true. Zero means unbounded.
	MaxContexts int

	// StrictUnknown, when true, treats a completed context whose Status
	// is StatusFailed with Reason ReasonSolverUnknown as failure-worthy; when
	// false such contexts are counted under Unknown only.
	StrictUnknown bool

	completed int
	succeeded int
	failed    int
	dead      int
	unknown   int
}

// NewDefault returns a Default policy with no context budget.
func NewDefault(strictUnknown bool) *Default {
	return &Default{StrictUnknown: strictUnknown}
}

// WithBudget returns a Default policy that stops after maxContexts paths
// have completed.
func WithBudget(strictUnknown bool, maxContexts int) *Default {
	return &Default{StrictUnknown: strictUnknown, MaxContexts: maxContexts}
}

// ShouldExecute never prunes on its own; infeasible forks are already
// filtered by the solver Check at the branch point (interp.execCondBr),
// so by the time a context reaches the store it is worth running.
func (p *Default) ShouldExecute(ctx *caffeine.Context) bool {
	return true
}

// OnPathComplete tallies ctx's terminal status for reporting and
// IsComplete's budget check. The reason/assertion pair spec §4.H passes
// alongside Context is read off ctx itself: Context.Status carries the
// outcome kind and Context.Reason carries the human-readable detail, so
// a caller never needs to thread them as separate parameters.
func (p *Default) OnPathComplete(ctx *caffeine.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	switch ctx.Status {
	case caffeine.StatusComplete:
		p.succeeded++
	case caffeine.StatusFailed:
		if ctx.Reason == caffeine.ReasonSolverUnknown && !p.StrictUnknown {
			p.unknown++
		} else {
			p.failed++
		}
	case caffeine.StatusDead:
		p.dead++
	default:
		p.unknown++
	}
}

// IsComplete reports true once MaxContexts paths have completed. A zero
// MaxContexts means the run only ends when the store drains.
func (p *Default) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.MaxContexts > 0 && p.completed >= p.MaxContexts
}

// Counts returns a snapshot of per-reason completion totals, for CLI
// summary reporting at the end of a run.
func (p *Default) Counts() (succeeded, failed, dead, unknown int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded, p.failed, p.dead, p.unknown
}
