package caffeine

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
)

func newTestFunc(name string) *ir.Func {
	param := ir.NewParam("n", types.I32)
	fn := ir.NewFunc(name, types.Void, param)
	block := fn.NewBlock("entry")
	block.NewRet(nil)
	return fn
}

func TestContext_PushPopFrame(t *testing.T) {
	c := NewContext(64, true)
	assert.Nil(t, c.Frame())

	fn := newTestFunc("f")
	c.PushFrame(fn, nil)
	assert.NotNil(t, c.Frame())
	assert.Equal(t, StatusRunning, c.Status)

	c.PopFrame()
	assert.Nil(t, c.Frame())
	assert.Equal(t, StatusComplete, c.Status)
}

func TestContext_Add_DelegatesToAssertions(t *testing.T) {
	c := NewContext(64, true)
	x := NewSymbolicExpr(NewSymbol("x"), IntType(WidthBool))
	c.Add(x)
	assert.Len(t, c.Assertions.Unproven(), 1)
}

func TestContext_Clone_IndependentStackAndAssertions(t *testing.T) {
	c := NewContext(64, true)
	fn := newTestFunc("f")
	frame := c.PushFrame(fn, nil)
	frame.Bind(fn.Params[0], NewExprValue(NewConstantExpr(1, Width32)))
	c.Add(NewSymbolicExpr(NewSymbol("x"), IntType(WidthBool)))

	clone := c.Clone()
	clone.Add(NewSymbolicExpr(NewSymbol("y"), IntType(WidthBool)))
	clone.Frame().Bind(fn.Params[0], NewExprValue(NewConstantExpr(2, Width32)))

	assert.Len(t, c.Assertions.Unproven(), 1)
	assert.Len(t, clone.Assertions.Unproven(), 2)

	v, _ := c.Frame().TryLookup(fn.Params[0])
	assert.Equal(t, NewExprValue(NewConstantExpr(1, Width32)), v)
}

func TestContext_ForkAndForkOnce(t *testing.T) {
	c := NewContext(64, true)
	forks := c.Fork(3)
	assert.Len(t, forks, 3)

	one := c.ForkOnce()
	assert.NotNil(t, one)
}

func TestContext_String(t *testing.T) {
	c := NewContext(64, true)
	c.ID = 7
	assert.Contains(t, c.String(), "context(#7")
}
