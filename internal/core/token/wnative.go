package token

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/state"
)

var ErrInsufficientDeposit = errors.New("token: withdrawal exceeds wrapped balance")

// Wrapped is the wrapped-native-currency token (WETH-style): native coin in,
// token out, one to one.
type Wrapped struct {
	*Token
}

// NewWrapped deploys the wrapped-native token.
func NewWrapped(w *state.World, name, symbol string) (*Wrapped, error) {
	t, err := New(w, name, symbol, 18)
	if err != nil {
		return nil, err
	}
	return &Wrapped{Token: t}, nil
}

// Deposit wraps the native value attached to the call.
func (t *Wrapped) Deposit(ctx *state.Context) error {
	if err := ctx.World.NativeTransfer(ctx.Caller, t.addr, ctx.Value); err != nil {
		return err
	}
	return t.Mint(ctx.Caller, ctx.Value)
}

// Withdraw burns wrapped tokens and returns native currency to the caller.
func (t *Wrapped) Withdraw(ctx *state.Context, amount *uint256.Int) error {
	if t.BalanceOf(ctx.Caller).Lt(amount) {
		return ErrInsufficientDeposit
	}
	if err := t.Burn(ctx.Caller, amount); err != nil {
		return err
	}
	return ctx.World.NativeTransfer(t.addr, ctx.Caller, amount)
}
