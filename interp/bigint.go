package interp

import (
	"math/big"

	"github.com/holiman/uint256"
)

// bigToUint256 converts an arbitrary-precision integer constant (as
// llir/llvm represents integer literals) into the fixed 256-bit word
// ConstantExpr is backed by. Values wider than 256 bits are out of
// scope (see the width ceiling documented alongside ConstantExpr).
func bigToUint256(v *big.Int) *uint256.Int {
	out := new(uint256.Int)
	out.SetFromBig(v)
	return out
}
