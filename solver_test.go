package caffeine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSolver struct {
	calls   int
	result  SolverResult
	err     error
	lastLen int
}

func (f *fakeSolver) Check(assertions []Assertion) (SolverResult, error) {
	f.calls++
	f.lastLen = len(assertions)
	return f.result, f.err
}

func (f *fakeSolver) Resolve(assertions []Assertion) (SolverResult, error) {
	f.calls++
	f.lastLen = len(assertions)
	return f.result, f.err
}

func TestCheckpointingSolver_ShortCircuitsConstantFalse(t *testing.T) {
	backend := &fakeSolver{result: SAT(nil)}
	s := NewCheckpointingSolver(backend)

	list := NewAssertionList()
	list.Insert(NewBoolConstantExpr(false))

	result, err := s.Check(list, nil)
	assert.NoError(t, err)
	assert.True(t, result.IsUnsat())
	assert.Equal(t, 0, backend.calls, "backend must not be queried once a constant-false assertion is present")
}

func TestCheckpointingSolver_ShortCircuitsAllProven(t *testing.T) {
	backend := &fakeSolver{result: Unsat()}
	s := NewCheckpointingSolver(backend)

	list := NewAssertionList()
	list.Insert(NewSymbolicExpr(NewSymbol("x"), IntType(WidthBool)))
	list.MarkProven()

	result, err := s.Check(list, nil)
	assert.NoError(t, err)
	assert.True(t, result.IsSAT())
	assert.Equal(t, 0, backend.calls, "backend must not be queried once every assertion is already proven and there is no extra")
}

func TestCheckpointingSolver_DelegatesWhenUnproven(t *testing.T) {
	backend := &fakeSolver{result: SAT(nil)}
	s := NewCheckpointingSolver(backend)

	list := NewAssertionList()
	list.Insert(NewSymbolicExpr(NewSymbol("x"), IntType(WidthBool)))

	result, err := s.Check(list, nil)
	assert.NoError(t, err)
	assert.True(t, result.IsSAT())
	assert.Equal(t, 1, backend.calls)
}

func TestCheckpointingSolver_DelegatesWithExtraEvenIfAllProven(t *testing.T) {
	backend := &fakeSolver{result: SAT(nil)}
	s := NewCheckpointingSolver(backend)

	list := NewAssertionList()
	list.Insert(NewSymbolicExpr(NewSymbol("x"), IntType(WidthBool)))
	list.MarkProven()

	extra := NewAssertion(NewSymbolicExpr(NewSymbol("y"), IntType(WidthBool)))
	_, err := s.Check(list, &extra)
	assert.NoError(t, err)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, 2, backend.lastLen, "proven assertion plus the extra must both reach the backend")
}

func TestCheckpointingSolver_MarksProvenOnSATWithNoExtra(t *testing.T) {
	backend := &fakeSolver{result: SAT(nil)}
	s := NewCheckpointingSolver(backend)

	list := NewAssertionList()
	list.Insert(NewSymbolicExpr(NewSymbol("x"), IntType(WidthBool)))

	_, err := s.Check(list, nil)
	assert.NoError(t, err)
	assert.Len(t, list.Proven(), 1)
	assert.Len(t, list.Unproven(), 0)
}

func TestCheckpointingSolver_DoesNotMarkProvenWithExtra(t *testing.T) {
	backend := &fakeSolver{result: SAT(nil)}
	s := NewCheckpointingSolver(backend)

	list := NewAssertionList()
	list.Insert(NewSymbolicExpr(NewSymbol("x"), IntType(WidthBool)))

	extra := NewAssertion(NewSymbolicExpr(NewSymbol("y"), IntType(WidthBool)))
	_, err := s.Check(list, &extra)
	assert.NoError(t, err)
	assert.Len(t, list.Proven(), 0, "an extra, one-off assertion must not get baked into the path condition as proven")
}

func TestCheckpointingSolver_WrapsBackendError(t *testing.T) {
	backend := &fakeSolver{err: errors.New("boom")}
	s := NewCheckpointingSolver(backend)

	list := NewAssertionList()
	list.Insert(NewSymbolicExpr(NewSymbol("x"), IntType(WidthBool)))

	_, err := s.Check(list, nil)
	assert.Error(t, err)
}
