package testing

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ExpandTo18 scales a whole-token amount to 18 decimals.
// For example, ExpandTo18(5) returns 5 * 10^18.
func ExpandTo18(n int64) *uint256.Int {
	e18 := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))
	return e18.Mul(e18, uint256.NewInt(uint64(n)))
}

// MustBig parses a decimal amount literal. Panics on malformed input, so it
// is only for test constants.
func MustBig(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(fmt.Sprintf("parsing amount %q: %v", s, err))
	}
	return v
}
