package caffeine

import "fmt"

// Assertion is a single boolean constraint on the path condition.
type Assertion struct {
	Expr Expr
}

func NewAssertion(e Expr) Assertion {
	assert(e.Type().IsInt() && e.Type().Width == WidthBool, "assertion must be boolean: %s", e)
	return Assertion{Expr: e}
}

func (a Assertion) String() string { return a.Expr.String() }

// IsConstantTrue/IsConstantFalse mirror the ConstantExpr predicates for
// the wrapped boolean expression.
func (a Assertion) IsConstantTrue() bool  { return IsConstantTrue(a.Expr) }
func (a Assertion) IsConstantFalse() bool { return IsConstantFalse(a.Expr) }

// Checkpoint marks a position in an AssertionList to later restore() to,
// the way original_source's Z3Solver::check pushes an incremental solver
// scope before a speculative query and pops it afterward (the
// make_guard/defer-restore idiom in Z3Solver.cpp).
type Checkpoint struct {
	proven   int
	unproven int
}

// AssertionList holds a path condition as two ordered slices: assertions
// already proven valid against the accumulated path condition (and so
// can be dropped from future solver queries without changing
// satisfiability), and assertions still outstanding. Splitting the two
// lets a decorator solver (see solver.go) skip re-proving facts it
// already established, generalizing glee's single flat constraint slice
// (ExecutionState.AddConstraint) into the proven/unproven split spec §4.A
// calls for.
type AssertionList struct {
	proven   []Assertion
	unproven []Assertion
}

// NewAssertionList returns an empty assertion list.
func NewAssertionList() *AssertionList {
	return &AssertionList{}
}

// Insert adds a constraint to the path condition. A constant-false
// assertion is kept as-is (the list becomes trivially unsatisfiable); a
// constant-true assertion is dropped since it can never affect
// satisfiability. Conjunctions are split into their conjuncts the way
// glee's AddConstraint splits top-level ANDs so each conjunct can be
// proven or refuted independently.
func (l *AssertionList) Insert(e Expr) {
	if and, ok := e.(*BinaryExpr); ok && and.Op == AND {
		l.Insert(and.LHS)
		l.Insert(and.RHS)
		return
	}
	if IsConstantTrue(e) {
		return
	}
	l.unproven = append(l.unproven, NewAssertion(e))
}

// MarkProven moves every currently-unproven assertion into the proven
// set. Call after a solver query has established that the full
// unproven set holds given the proven set, so later queries need not
// re-derive it.
func (l *AssertionList) MarkProven() {
	l.proven = append(l.proven, l.unproven...)
	l.unproven = nil
}

// Proven returns the assertions already known to hold.
func (l *AssertionList) Proven() []Assertion { return l.proven }

// Unproven returns the assertions not yet established.
func (l *AssertionList) Unproven() []Assertion { return l.unproven }

// All returns every assertion, proven first.
func (l *AssertionList) All() []Assertion {
	out := make([]Assertion, 0, len(l.proven)+len(l.unproven))
	out = append(out, l.proven...)
	out = append(out, l.unproven...)
	return out
}

// Empty reports whether the list carries no constraints at all.
func (l *AssertionList) Empty() bool { return len(l.proven) == 0 && len(l.unproven) == 0 }

// HasConstantFalse reports whether any assertion is syntactically false,
// in which case the path condition is trivially unsatisfiable without
// invoking the solver.
func (l *AssertionList) HasConstantFalse() bool {
	for _, a := range l.proven {
		if a.IsConstantFalse() {
			return true
		}
	}
	for _, a := range l.unproven {
		if a.IsConstantFalse() {
			return true
		}
	}
	return false
}

// Checkpoint captures the list's current length so a later restore()
// can undo everything inserted since.
func (l *AssertionList) Checkpoint() Checkpoint {
	return Checkpoint{proven: len(l.proven), unproven: len(l.unproven)}
}

// Restore truncates the list back to a prior checkpoint, discarding any
// assertions (proven or not) added since.
func (l *AssertionList) Restore(cp Checkpoint) {
	n := cp.proven + cp.unproven
	if len(l.proven) >= n {
		l.proven = l.proven[:n]
		l.unproven = nil
		return
	}
	l.unproven = l.unproven[:n-len(l.proven)]
}

// Clone returns an independent copy sharing no backing array with l,
// safe to mutate on one execution fork without affecting another.
func (l *AssertionList) Clone() *AssertionList {
	out := &AssertionList{
		proven:   make([]Assertion, len(l.proven)),
		unproven: make([]Assertion, len(l.unproven)),
	}
	copy(out.proven, l.proven)
	copy(out.unproven, l.unproven)
	return out
}

func (l *AssertionList) String() string {
	return fmt.Sprintf("AssertionList{proven=%d unproven=%d}", len(l.proven), len(l.unproven))
}
