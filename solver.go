package caffeine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// SolverResultKind is the three-valued outcome of a solver query (spec
// §4.B), widening glee's plain Solver.Solve bool into SAT/UNSAT/Unknown
// the way original_source's SolverResult does.
type SolverResultKind int

const (
	SolverUnsat SolverResultKind = iota
	SolverSAT
	SolverUnknown
)

func (k SolverResultKind) String() string {
	switch k {
	case SolverSAT:
		return "sat"
	case SolverUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// SolverResult is the result of a solver query: its three-valued
// outcome, plus a model when SAT.
type SolverResult struct {
	Kind  SolverResultKind
	Model *Model
}

func SAT(model *Model) SolverResult    { return SolverResult{Kind: SolverSAT, Model: model} }
func Unsat() SolverResult              { return SolverResult{Kind: SolverUnsat} }
func Unknown() SolverResult            { return SolverResult{Kind: SolverUnknown} }
func (r SolverResult) IsSAT() bool     { return r.Kind == SolverSAT }
func (r SolverResult) IsUnsat() bool   { return r.Kind == SolverUnsat }
func (r SolverResult) IsUnknown() bool { return r.Kind == SolverUnknown }

// Model maps symbols and arrays to concrete values, as read back from a
// satisfying solver assignment (spec §4.B "Model").
type Model struct {
	symbols map[Symbol]*ConstantExpr
	arrays  map[uint64][]byte
}

func NewModel() *Model {
	return &Model{symbols: make(map[Symbol]*ConstantExpr), arrays: make(map[uint64][]byte)}
}

func (m *Model) SetSymbol(s Symbol, v *ConstantExpr) { m.symbols[s] = v }
func (m *Model) SetArray(id uint64, bytes []byte)    { m.arrays[id] = bytes }

func (m *Model) Symbol(s Symbol) (*ConstantExpr, bool) {
	v, ok := m.symbols[s]
	return v, ok
}

func (m *Model) Array(id uint64) ([]byte, bool) {
	v, ok := m.arrays[id]
	return v, ok
}

// String renders the model's concrete symbol and array assignments in a
// deterministic (sorted) order, for reproducer output (spec §3 invariant
// 5: every emitted failure carries a concrete satisfying model).
func (m *Model) String() string {
	if m == nil {
		return "(no model)"
	}

	syms := make([]Symbol, 0, len(m.symbols))
	for s := range m.symbols {
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Compare(syms[j]) < 0 })

	var b strings.Builder
	for _, s := range syms {
		fmt.Fprintf(&b, "  %s = %s\n", s, m.symbols[s].Value)
	}

	ids := make([]uint64, 0, len(m.arrays))
	for id := range m.arrays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(&b, "  array[%d] = % x\n", id, m.arrays[id])
	}

	return b.String()
}

// Evaluator returns an ExprEvaluator seeded from this model's arrays,
// suitable for concretizing a symbolic expression under this model.
func (m *Model) Evaluator() *ExprEvaluator {
	var arrays []*Array
	var values [][]byte
	for id, bytes := range m.arrays {
		arrays = append(arrays, NewArray(id, uint(len(bytes)), Width64))
		values = append(values, bytes)
	}
	return NewExprEvaluator(arrays, values)
}

// Solver is the pluggable SMT backend interface (spec §4.B). Check
// answers satisfiability only; Resolve additionally returns a model on
// SAT. Implementations may use Check as a cheap pre-filter before paying
// for a full Resolve, as original_source's Z3Solver::check does:
// short-circuit on an empty unproven set, else delegate to resolve and
// discard its model.
type Solver interface {
	Check(assertions []Assertion) (SolverResult, error)
	Resolve(assertions []Assertion) (SolverResult, error)
}

// CheckpointingSolver decorates a Solver with AssertionList-aware
// short-circuiting: if every assertion is already proven, the query is
// trivially SAT without invoking the backend at all. This generalizes
// original_source's Z3Solver::check, which returns SAT immediately when
// assertions.unproven() is empty and no extra assertion was supplied.
type CheckpointingSolver struct {
	Backend Solver

	// Log reports short-circuited queries (skipped backend calls); its
	// zero value is a no-op logger.
	Log zerolog.Logger
}

func NewCheckpointingSolver(backend Solver) *CheckpointingSolver {
	return &CheckpointingSolver{Backend: backend, Log: zerolog.Nop()}
}

func (s *CheckpointingSolver) Check(list *AssertionList, extra *Assertion) (SolverResult, error) {
	if list.HasConstantFalse() {
		s.Log.Debug().Msg("short-circuit: constant-false assertion")
		return Unsat(), nil
	}
	if len(list.Unproven()) == 0 && extra == nil {
		s.Log.Debug().Msg("short-circuit: all assertions already proven")
		return SAT(nil), nil
	}
	return s.Resolve(list, extra)
}

func (s *CheckpointingSolver) Resolve(list *AssertionList, extra *Assertion) (SolverResult, error) {
	all := list.All()
	if extra != nil {
		all = append(all, *extra)
	}
	result, err := s.Backend.Resolve(all)
	if err != nil {
		return SolverResult{}, fmt.Errorf("caffeine: solver query failed: %w", err)
	}
	if result.IsSAT() && extra == nil {
		list.MarkProven()
	}
	return result, nil
}
