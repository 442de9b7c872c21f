// Package pool provides helpers for liquidity-pool tests, most notably a
// flash-swap callee that can either repay the pool or re-enter it.
package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/state"
	"github.com/lovelyswap/golovelyd/internal/core/token"
)

// Borrower is a contract that receives flash-swap callbacks. With ReEnter set
// it calls back into the pair mid-swap, which must trip the reentrancy lock;
// otherwise it repays the pool from its own balance.
type Borrower struct {
	world *state.World
	addr  common.Address

	pair   *pair.Pair
	token0 *token.Token
	token1 *token.Token

	ReEnter bool

	// Repay amounts sent back to the pair during the callback.
	Repay0, Repay1 *uint256.Int
}

// NewBorrower deploys a borrower bound to a pair.
func NewBorrower(w *state.World, p *pair.Pair, token0, token1 *token.Token) (*Borrower, error) {
	b := &Borrower{
		world:  w,
		addr:   w.NewAddress(),
		pair:   p,
		token0: token0,
		token1: token1,
		Repay0: uint256.NewInt(0),
		Repay1: uint256.NewInt(0),
	}
	if err := w.Register(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Borrower) Address() common.Address { return b.addr }

// OnSwap implements pair.SwapCallee.
func (b *Borrower) OnSwap(sender common.Address, amount0Out, amount1Out *uint256.Int, data []byte) error {
	ctx := state.NewContext(b.world, b.addr)
	if b.ReEnter {
		return b.pair.Swap(ctx, uint256.NewInt(0), uint256.NewInt(1), b.addr, nil)
	}
	if !b.Repay0.IsZero() {
		if err := b.token0.Transfer(ctx, b.pair.Address(), b.Repay0); err != nil {
			return err
		}
	}
	if !b.Repay1.IsZero() {
		if err := b.token1.Transfer(ctx, b.pair.Address(), b.Repay1); err != nil {
			return err
		}
	}
	return nil
}
