package router

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/factory"
	"github.com/lovelyswap/golovelyd/internal/core/state"
)

// swapSupportingFeeOnTransfer executes a path for tokens that take a cut of
// every transfer. Hop inputs are measured as the pair's balance over its
// reserve rather than trusted from the priced amounts.
func (r *Router) swapSupportingFeeOnTransfer(ctx *state.Context, path []common.Address, to common.Address) error {
	self := r.self(ctx)
	ownerFee, lpFee := r.factory.TradingFees()
	for i := 0; i < len(path)-1; i++ {
		input, output := path[i], path[i+1]
		p, err := r.pairFor(input, output)
		if err != nil {
			return err
		}
		erc20In, err := r.erc20(input)
		if err != nil {
			return err
		}
		reserve0, reserve1, _ := p.Reserves()
		token0, _ := factory.SortTokens(input, output)
		reserveInput, reserveOutput := reserve0, reserve1
		if input != token0 {
			reserveInput, reserveOutput = reserve1, reserve0
		}
		amountInput := new(uint256.Int).Sub(erc20In.BalanceOf(p.Address()), reserveInput)
		amountOutput, err := GetAmountOut(amountInput, reserveInput, reserveOutput, ownerFee+lpFee)
		if err != nil {
			return err
		}
		amount0Out, amount1Out := uint256.NewInt(0), amountOutput
		if input != token0 {
			amount0Out, amount1Out = amountOutput, uint256.NewInt(0)
		}
		recipient := to
		if i < len(path)-2 {
			next, err := r.pairFor(output, path[i+2])
			if err != nil {
				return err
			}
			recipient = next.Address()
		}
		if err := p.Swap(self, amount0Out, amount1Out, recipient, nil); err != nil {
			return err
		}
		if r.hook != nil {
			r.hook.OnTrade(ctx, ctx.Caller, p, input, output, amountInput, amountOutput)
		}
	}
	return nil
}

// SwapExactTokensForTokensSupportingFeeOnTransferTokens is the exact-input
// token swap for fee-on-transfer assets: only the final balance delta at `to`
// is checked against amountOutMin.
func (r *Router) SwapExactTokensForTokensSupportingFeeOnTransferTokens(ctx *state.Context, amountIn, amountOutMin *uint256.Int, path []common.Address, to common.Address, deadline uint64) error {
	if err := r.ensure(ctx, deadline); err != nil {
		return err
	}
	if len(path) < 2 {
		return ErrInvalidPath
	}
	first, err := r.pairFor(path[0], path[1])
	if err != nil {
		return err
	}
	erc20In, err := r.erc20(path[0])
	if err != nil {
		return err
	}
	erc20Out, err := r.erc20(path[len(path)-1])
	if err != nil {
		return err
	}
	if err := erc20In.TransferFrom(r.self(ctx), ctx.Caller, first.Address(), amountIn); err != nil {
		return err
	}
	balanceBefore := erc20Out.BalanceOf(to)
	if err := r.swapSupportingFeeOnTransfer(ctx, path, to); err != nil {
		return err
	}
	received := new(uint256.Int).Sub(erc20Out.BalanceOf(to), balanceBefore)
	if received.Lt(amountOutMin) {
		return ErrInsufficientOutputAmount
	}
	return nil
}

// SwapExactNativeForTokensSupportingFeeOnTransferTokens wraps the attached
// value and swaps it for fee-on-transfer tokens.
func (r *Router) SwapExactNativeForTokensSupportingFeeOnTransferTokens(ctx *state.Context, amountOutMin *uint256.Int, path []common.Address, to common.Address, deadline uint64) error {
	if err := r.ensure(ctx, deadline); err != nil {
		return err
	}
	if len(path) < 2 || path[0] != r.wnative.Address() {
		return ErrInvalidPath
	}
	erc20Out, err := r.erc20(path[len(path)-1])
	if err != nil {
		return err
	}
	if err := r.receiveNative(ctx); err != nil {
		return err
	}
	if err := r.wrapToFirstHop(ctx, path, ctx.Value); err != nil {
		return err
	}
	balanceBefore := erc20Out.BalanceOf(to)
	if err := r.swapSupportingFeeOnTransfer(ctx, path, to); err != nil {
		return err
	}
	received := new(uint256.Int).Sub(erc20Out.BalanceOf(to), balanceBefore)
	if received.Lt(amountOutMin) {
		return ErrInsufficientOutputAmount
	}
	return nil
}

// SwapExactTokensForNativeSupportingFeeOnTransferTokens swaps fee-on-transfer
// tokens for native coin, paying out whatever wrapped amount reached the
// router.
func (r *Router) SwapExactTokensForNativeSupportingFeeOnTransferTokens(ctx *state.Context, amountIn, amountOutMin *uint256.Int, path []common.Address, to common.Address, deadline uint64) error {
	if err := r.ensure(ctx, deadline); err != nil {
		return err
	}
	if len(path) < 2 || path[len(path)-1] != r.wnative.Address() {
		return ErrInvalidPath
	}
	first, err := r.pairFor(path[0], path[1])
	if err != nil {
		return err
	}
	erc20In, err := r.erc20(path[0])
	if err != nil {
		return err
	}
	if err := erc20In.TransferFrom(r.self(ctx), ctx.Caller, first.Address(), amountIn); err != nil {
		return err
	}
	if err := r.swapSupportingFeeOnTransfer(ctx, path, r.addr); err != nil {
		return err
	}
	amountOut := r.wnative.BalanceOf(r.addr)
	if amountOut.Lt(amountOutMin) {
		return ErrInsufficientOutputAmount
	}
	return r.unwrapTo(ctx, amountOut, to)
}
