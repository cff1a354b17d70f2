// Package z3 adapts glee's cgo Z3 binding (z3.go) into the widened
// three-valued, model-returning caffeine.Solver interface (spec §4.B),
// adding float (FPA) sort support per
// original_source/src/Solver/Z3Solver.cpp and a general bitvector width
// (glee hardcoded 32/64-bit constant encodings; this solver's operand
// widths come from the expression itself, up to MaxIntWidth).
package z3

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/caffeine-vm/caffeine"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
*/
import "C"

var _ caffeine.Solver = (*Solver)(nil)

// Solver is a caffeine.Solver backed by an embedded Z3 instance, one
// fresh Z3 solver object per query (no incremental push/pop state is
// kept across calls — caffeine.CheckpointingSolver is what avoids
// redundant queries at the AssertionList level).
type Solver struct {
	ctx   *Context
	stats Stats

	// Log reports each query's outcome and timing; zero value is silent.
	Log zerolog.Logger
}

func NewSolver() *Solver {
	return &Solver{ctx: NewContext(), Log: zerolog.Nop()}
}

// SetLogger attaches log as this solver's structured logger.
func (s *Solver) SetLogger(log zerolog.Logger) { s.Log = log }

func (s *Solver) Close() error { return s.ctx.Close() }

func (s *Solver) Stats() Stats { return s.stats }

func (s *Solver) Check(assertions []caffeine.Assertion) (caffeine.SolverResult, error) {
	return s.query(assertions, false)
}

func (s *Solver) Resolve(assertions []caffeine.Assertion) (caffeine.SolverResult, error) {
	return s.query(assertions, true)
}

func (s *Solver) query(assertions []caffeine.Assertion, wantModel bool) (result caffeine.SolverResult, err error) {
	t := time.Now()
	defer func() {
		elapsed := time.Since(t)
		s.stats.SolveN++
		s.stats.SolveTime += elapsed
		ev := s.Log.Debug()
		if err != nil {
			ev = s.Log.Warn().Err(err)
		}
		ev.Int("assertions", len(assertions)).Bool("model", wantModel).Dur("elapsed", elapsed).Str("result", result.Kind.String()).Msg("solver query")
	}()

	solver := C.Z3_mk_solver(s.ctx.raw)
	if err := s.ctx.err("Z3_mk_solver"); err != nil {
		return caffeine.SolverResult{}, err
	}
	C.Z3_solver_inc_ref(s.ctx.raw, solver)
	defer C.Z3_solver_dec_ref(s.ctx.raw, solver)

	var arrays []*caffeine.Array
	for _, a := range assertions {
		ast, err := s.ctx.toAST(a.Expr)
		if err != nil {
			return caffeine.SolverResult{}, err
		}
		C.Z3_solver_assert(s.ctx.raw, solver, ast)
		if err := s.ctx.err("Z3_solver_assert"); err != nil {
			return caffeine.SolverResult{}, err
		}
		arrays = append(arrays, caffeine.FindArrays(a.Expr)...)
	}

	ret := C.Z3_solver_check(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return caffeine.SolverResult{}, err
	}

	switch ret {
	case C.Z3_L_FALSE:
		return caffeine.Unsat(), nil
	case C.Z3_L_UNDEF:
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return caffeine.SolverResult{}, caffeine.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return caffeine.SolverResult{}, caffeine.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return caffeine.SolverResult{}, caffeine.ErrSolverResourceLimit
		default:
			return caffeine.Unknown(), nil
		}
	}

	if !wantModel {
		return caffeine.SAT(nil), nil
	}

	z3model := C.Z3_solver_get_model(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return caffeine.SolverResult{}, err
	}
	model, err := s.ctx.readModel(z3model, arrays)
	if err != nil {
		return caffeine.SolverResult{}, err
	}
	return caffeine.SAT(model), nil
}

// Context wraps a Z3 context used to translate caffeine expressions into
// Z3 ASTs, one node at a time, memoizing the way original_source's
// Z3OpVisitor caches per-Operation to avoid rebuilding shared
// subexpressions. The cache is never cleared: it lives as long as the
// Context and is shared by every query a Solver makes through it.
type Context struct {
	raw   C.Z3_context
	cache map[caffeine.Expr]C.Z3_ast
}

func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)
	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	return &Context{raw: raw, cache: make(map[caffeine.Expr]C.Z3_ast)}
}

func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return ctx.err("Z3_del_context")
}

func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

func (ctx *Context) toAST(expr caffeine.Expr) (C.Z3_ast, error) {
	if cached, ok := ctx.cache[expr]; ok {
		return cached, nil
	}
	ast, err := ctx.toASTUncached(expr)
	if err != nil {
		return nil, err
	}
	ctx.cache[expr] = ast
	return ast, nil
}

func (ctx *Context) toASTUncached(expr caffeine.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *caffeine.ConstantExpr:
		return ctx.constantAST(expr)
	case *caffeine.ConstantFloatExpr:
		return ctx.constantFloatAST(expr)
	case *caffeine.SymbolicExpr:
		return ctx.symbolicAST(expr)
	case *caffeine.UndefExpr:
		return ctx.freshConstAST(expr.Type())
	case *caffeine.LoadExpr:
		return ctx.loadAST(expr)
	case *caffeine.FixedArrayExpr:
		return ctx.fixedArrayAST(expr)
	case *caffeine.ConcatExpr:
		return ctx.concatAST(expr)
	case *caffeine.ExtractExpr:
		return ctx.extractAST(expr)
	case *caffeine.CastExpr:
		return ctx.castAST(expr)
	case *caffeine.NotExpr:
		return ctx.notAST(expr)
	case *caffeine.SelectExpr:
		return ctx.selectAST(expr)
	case *caffeine.BinaryExpr:
		return ctx.binaryAST(expr)
	case *caffeine.FloatBinaryExpr:
		return ctx.floatBinaryAST(expr)
	case *caffeine.FloatCompareExpr:
		return ctx.floatCompareAST(expr)
	case *caffeine.FNegExpr:
		return ctx.fnegAST(expr)
	case *caffeine.FIsNaNExpr:
		return ctx.fisnanAST(expr)
	case *caffeine.BitcastExpr:
		return ctx.bitcastAST(expr)
	default:
		return nil, fmt.Errorf("z3: unsupported expression type: %T", expr)
	}
}

func (ctx *Context) constantAST(expr *caffeine.ConstantExpr) (C.Z3_ast, error) {
	if expr.Width == caffeine.WidthBool {
		if expr.IsTrue() {
			return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
		}
		return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
	}
	sort, err := ctx.bvSort(expr.Width)
	if err != nil {
		return nil, err
	}
	cstr := C.CString(expr.Value.Dec())
	defer C.free(unsafe.Pointer(cstr))
	return C.Z3_mk_numeral(ctx.raw, cstr, sort), ctx.err("Z3_mk_numeral")
}

func (ctx *Context) constantFloatAST(expr *caffeine.ConstantFloatExpr) (C.Z3_ast, error) {
	sort, err := ctx.fpaSort(expr.Kind)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_fpa_numeral_double(ctx.raw, C.double(expr.Float64()), sort), ctx.err("Z3_mk_fpa_numeral_double")
}

func (ctx *Context) symbolicAST(expr *caffeine.SymbolicExpr) (C.Z3_ast, error) {
	name := expr.Symbol.String()
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(ctx.raw, cname)

	if expr.Kind.IsFloat() {
		sort, err := ctx.fpaSort(expr.Kind)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_const(ctx.raw, sym, sort), ctx.err("Z3_mk_const")
	}
	if expr.Kind.Width == caffeine.WidthBool {
		return C.Z3_mk_const(ctx.raw, sym, C.Z3_mk_bool_sort(ctx.raw)), ctx.err("Z3_mk_const")
	}
	sort, err := ctx.bvSort(expr.Kind.Width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_const(ctx.raw, sym, sort), ctx.err("Z3_mk_const")
}

// freshConstAST models an undef value as an unconstrained fresh
// constant: any assignment is a legal witness.
func (ctx *Context) freshConstAST(t caffeine.Type) (C.Z3_ast, error) {
	if t.IsFloat() {
		sort, err := ctx.fpaSort(t)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_fresh_const(ctx.raw, C.CString("undef"), sort), ctx.err("Z3_mk_fresh_const")
	}
	sort, err := ctx.bvSort(t.Width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_fresh_const(ctx.raw, C.CString("undef"), sort), ctx.err("Z3_mk_fresh_const")
}

func (ctx *Context) loadAST(expr *caffeine.LoadExpr) (C.Z3_ast, error) {
	array, err := ctx.arrayWithUpdates(expr.Array, expr.Array.Updates)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toAST(expr.Index)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_select(ctx.raw, array, index), ctx.err("Z3_mk_select")
}

func (ctx *Context) fixedArrayAST(expr *caffeine.FixedArrayExpr) (C.Z3_ast, error) {
	if len(expr.Elems) == 0 {
		return nil, fmt.Errorf("z3: empty fixed array")
	}
	first, err := ctx.toAST(expr.Elems[0])
	if err != nil {
		return nil, err
	}
	arr := C.Z3_mk_const_array(ctx.raw, C.Z3_get_sort(ctx.raw, first), first)
	for i := 1; i < len(expr.Elems); i++ {
		elem, err := ctx.toAST(expr.Elems[i])
		if err != nil {
			return nil, err
		}
		idx, err := ctx.bvConst(caffeine.Width64, uint64(i))
		if err != nil {
			return nil, err
		}
		arr = C.Z3_mk_store(ctx.raw, arr, idx, elem)
	}
	return arr, ctx.err("Z3_mk_store")
}

func (ctx *Context) concatAST(expr *caffeine.ConcatExpr) (C.Z3_ast, error) {
	msb, err := ctx.toAST(expr.MSB)
	if err != nil {
		return nil, err
	}
	lsb, err := ctx.toAST(expr.LSB)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_concat(ctx.raw, msb, lsb), ctx.err("Z3_mk_concat")
}

func (ctx *Context) extractAST(expr *caffeine.ExtractExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	if expr.Width == caffeine.WidthBool {
		bit := C.Z3_mk_extract(ctx.raw, C.uint(expr.Offset), C.uint(expr.Offset), src)
		one, err := ctx.bvConst(1, 1)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_eq(ctx.raw, bit, one), ctx.err("Z3_mk_eq")
	}
	return C.Z3_mk_extract(ctx.raw, C.uint(expr.Offset+expr.Width-1), C.uint(expr.Offset), src), ctx.err("Z3_mk_extract")
}

func (ctx *Context) castAST(expr *caffeine.CastExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Src)
	if err != nil {
		return nil, err
	}
	srcWidth := caffeine.ExprWidth(expr.Src)
	if srcWidth == caffeine.WidthBool {
		whenTrue, err := ctx.boolCastTrue(expr)
		if err != nil {
			return nil, err
		}
		whenFalse, err := ctx.bvConst(expr.Width, 0)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_ite(ctx.raw, src, whenTrue, whenFalse), ctx.err("Z3_mk_ite")
	}
	if expr.Signed {
		return C.Z3_mk_sign_ext(ctx.raw, C.uint(expr.Width-srcWidth), src), ctx.err("Z3_mk_sign_ext")
	}
	return C.Z3_mk_zero_ext(ctx.raw, C.uint(expr.Width-srcWidth), src), ctx.err("Z3_mk_zero_ext")
}

func (ctx *Context) boolCastTrue(expr *caffeine.CastExpr) (C.Z3_ast, error) {
	if expr.Signed {
		return ctx.bvConst(expr.Width, ^uint64(0))
	}
	return ctx.bvConst(expr.Width, 1)
}

func (ctx *Context) notAST(expr *caffeine.NotExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	if caffeine.ExprWidth(expr.Expr) == caffeine.WidthBool {
		return C.Z3_mk_not(ctx.raw, src), ctx.err("Z3_mk_not")
	}
	return C.Z3_mk_bvnot(ctx.raw, src), ctx.err("Z3_mk_bvnot")
}

func (ctx *Context) selectAST(expr *caffeine.SelectExpr) (C.Z3_ast, error) {
	cond, err := ctx.toAST(expr.Cond)
	if err != nil {
		return nil, err
	}
	t, err := ctx.toAST(expr.TrueVal)
	if err != nil {
		return nil, err
	}
	f, err := ctx.toAST(expr.FalseVal)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, cond, t, f), ctx.err("Z3_mk_ite")
}

func (ctx *Context) binaryAST(expr *caffeine.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}
	isBool := caffeine.ExprWidth(expr.LHS) == caffeine.WidthBool

	switch expr.Op {
	case caffeine.ADD:
		return C.Z3_mk_bvadd(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvadd")
	case caffeine.SUB:
		return C.Z3_mk_bvsub(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsub")
	case caffeine.MUL:
		return C.Z3_mk_bvmul(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvmul")
	case caffeine.UDIV:
		return C.Z3_mk_bvudiv(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvudiv")
	case caffeine.SDIV:
		return C.Z3_mk_bvsdiv(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsdiv")
	case caffeine.UREM:
		return C.Z3_mk_bvurem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvurem")
	case caffeine.SREM:
		return C.Z3_mk_bvsrem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsrem")
	case caffeine.AND:
		if isBool {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_and(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_and")
		}
		return C.Z3_mk_bvand(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvand")
	case caffeine.OR:
		if isBool {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_or(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_or")
		}
		return C.Z3_mk_bvor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvor")
	case caffeine.XOR:
		if isBool {
			return C.Z3_mk_xor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_xor")
		}
		return C.Z3_mk_bvxor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvxor")
	case caffeine.SHL:
		return C.Z3_mk_bvshl(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvshl")
	case caffeine.LSHR:
		return C.Z3_mk_bvlshr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvlshr")
	case caffeine.ASHR:
		return C.Z3_mk_bvashr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvashr")
	case caffeine.EQ:
		if isBool {
			return C.Z3_mk_iff(ctx.raw, lhs, rhs), ctx.err("Z3_mk_iff")
		}
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case caffeine.ULT:
		return C.Z3_mk_bvult(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvult")
	case caffeine.ULE:
		return C.Z3_mk_bvule(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvule")
	case caffeine.SLT:
		return C.Z3_mk_bvslt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvslt")
	case caffeine.SLE:
		return C.Z3_mk_bvsle(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsle")
	default:
		return nil, fmt.Errorf("z3: unsupported binary op: %s", expr.Op)
	}
}

func (ctx *Context) floatBinaryAST(expr *caffeine.FloatBinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}
	rm := C.Z3_mk_fpa_round_nearest_ties_to_even(ctx.raw)
	switch expr.Op {
	case caffeine.FADD:
		return C.Z3_mk_fpa_add(ctx.raw, rm, lhs, rhs), ctx.err("Z3_mk_fpa_add")
	case caffeine.FSUB:
		return C.Z3_mk_fpa_sub(ctx.raw, rm, lhs, rhs), ctx.err("Z3_mk_fpa_sub")
	case caffeine.FMUL:
		return C.Z3_mk_fpa_mul(ctx.raw, rm, lhs, rhs), ctx.err("Z3_mk_fpa_mul")
	case caffeine.FDIV:
		return C.Z3_mk_fpa_div(ctx.raw, rm, lhs, rhs), ctx.err("Z3_mk_fpa_div")
	case caffeine.FREM:
		return C.Z3_mk_fpa_rem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_fpa_rem")
	default:
		return nil, fmt.Errorf("z3: unsupported float op: %s", expr.Op)
	}
}

func (ctx *Context) floatCompareAST(expr *caffeine.FloatCompareExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}
	switch expr.Op {
	case caffeine.FCMP_EQ:
		return C.Z3_mk_fpa_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_fpa_eq")
	case caffeine.FCMP_NE:
		eq := C.Z3_mk_fpa_eq(ctx.raw, lhs, rhs)
		return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
	case caffeine.FCMP_LT:
		return C.Z3_mk_fpa_lt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_fpa_lt")
	case caffeine.FCMP_LE:
		return C.Z3_mk_fpa_leq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_fpa_leq")
	case caffeine.FCMP_GT:
		return C.Z3_mk_fpa_gt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_fpa_gt")
	case caffeine.FCMP_GE:
		return C.Z3_mk_fpa_geq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_fpa_geq")
	default:
		return nil, fmt.Errorf("z3: unsupported fcmp op: %s", expr.Op)
	}
}

func (ctx *Context) fnegAST(expr *caffeine.FNegExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_fpa_neg(ctx.raw, src), ctx.err("Z3_mk_fpa_neg")
}

func (ctx *Context) fisnanAST(expr *caffeine.FIsNaNExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_fpa_is_nan(ctx.raw, src), ctx.err("Z3_mk_fpa_is_nan")
}

func (ctx *Context) bitcastAST(expr *caffeine.BitcastExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Src)
	if err != nil {
		return nil, err
	}
	if expr.Kind.IsFloat() {
		sort, err := ctx.fpaSort(expr.Kind)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_fpa_to_fp_bv(ctx.raw, src, sort), ctx.err("Z3_mk_fpa_to_fp_bv")
	}
	return C.Z3_mk_fpa_to_ieee_bv(ctx.raw, src), ctx.err("Z3_mk_fpa_to_ieee_bv")
}

func (ctx *Context) bvSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) fpaSort(t caffeine.Type) (C.Z3_sort, error) {
	return C.Z3_mk_fpa_sort(ctx.raw, C.uint(t.ExponentBits), C.uint(t.MantissaBits+1)), ctx.err("Z3_mk_fpa_sort")
}

func (ctx *Context) bvConst(width uint, value uint64) (C.Z3_ast, error) {
	sort, err := ctx.bvSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.ulonglong(value), sort), ctx.err("Z3_mk_unsigned_int64")
}

func (ctx *Context) arraySort(indexWidth uint) (C.Z3_sort, error) {
	domain, err := ctx.bvSort(indexWidth)
	if err != nil {
		return nil, err
	}
	rangeSort, err := ctx.bvSort(caffeine.Width8)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_array_sort(ctx.raw, domain, rangeSort), ctx.err("Z3_mk_array_sort")
}

func (ctx *Context) arrayRoot(array *caffeine.Array) (C.Z3_ast, error) {
	sort, err := ctx.arraySort(array.IndexWidth)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("A%d", array.ID)
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(ctx.raw, cname)
	return C.Z3_mk_const(ctx.raw, sym, sort), ctx.err("Z3_mk_const")
}

func (ctx *Context) arrayWithUpdates(root *caffeine.Array, upd *caffeine.ArrayUpdate) (C.Z3_ast, error) {
	if upd == nil {
		return ctx.arrayRoot(root)
	}
	array, err := ctx.arrayWithUpdates(root, upd.Next)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toAST(upd.Index)
	if err != nil {
		return nil, err
	}
	value, err := ctx.toAST(upd.Value)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_store(ctx.raw, array, index, value), ctx.err("Z3_mk_store")
}

// readModel builds a caffeine.Model from a satisfying Z3 assignment,
// concretizing every array that appeared in the query byte by byte.
// Grounded on Z3Solver.cpp's z3_to_apint/z3_to_apfloat readback, without
// the NaN-sign-hardcoding special case since this solver only ever
// constructs canonical NaNs (see ConstantFloatExpr.canonicalNaN).
func (ctx *Context) readModel(model C.Z3_model, arrays []*caffeine.Array) (*caffeine.Model, error) {
	m := caffeine.NewModel()
	seen := make(map[uint64]bool)
	for _, array := range arrays {
		if seen[array.ID] {
			continue
		}
		seen[array.ID] = true
		bytes, err := ctx.evalArray(model, array)
		if err != nil {
			return nil, err
		}
		m.SetArray(array.ID, bytes)
	}
	return m, nil
}

func (ctx *Context) evalArray(model C.Z3_model, array *caffeine.Array) ([]byte, error) {
	root, err := ctx.arrayRoot(array)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, array.Size)
	for offset := uint(0); offset < array.Size; offset++ {
		idx, err := ctx.bvConst(array.IndexWidth, uint64(offset))
		if err != nil {
			return nil, err
		}
		sel := C.Z3_mk_select(ctx.raw, root, idx)
		if err := ctx.err("Z3_mk_select"); err != nil {
			return nil, err
		}
		var result C.Z3_ast
		C.Z3_model_eval(ctx.raw, model, sel, C.bool(true), &result)
		if err := ctx.err("Z3_model_eval"); err != nil {
			return nil, err
		}
		var b C.int
		C.Z3_get_numeral_int(ctx.raw, result, &b)
		if err := ctx.err("Z3_get_numeral_int"); err != nil {
			return nil, err
		}
		out = append(out, byte(b))
	}
	return out, nil
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
