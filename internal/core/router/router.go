// Package router is the user-facing entry point of the exchange: it quotes
// trades, adds and removes liquidity, and routes multi-hop swaps through the
// pairs the factory deployed. The router never creates pairs.
package router

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/factory"
	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/state"
	"github.com/lovelyswap/golovelyd/internal/core/token"
)

var (
	ErrExpired              = errors.New("router: EXPIRED")
	ErrInsufficientAAmount  = errors.New("router: INSUFFICIENT_A_AMOUNT")
	ErrInsufficientBAmount  = errors.New("router: INSUFFICIENT_B_AMOUNT")
	ErrExcessiveInputAmount = errors.New("router: EXCESSIVE_INPUT_AMOUNT")
)

// TradeHook observes every executed swap hop. The trading-competition router
// uses it to accrue participant volume.
type TradeHook interface {
	OnTrade(ctx *state.Context, trader common.Address, p *pair.Pair, tokenIn, tokenOut common.Address, amountIn, amountOut *uint256.Int)
}

// Router executes trades and liquidity operations against factory pairs.
type Router struct {
	world   *state.World
	addr    common.Address
	factory *factory.Factory
	wnative *token.Wrapped

	hook TradeHook
}

// New deploys a router bound to a factory and the wrapped-native token.
func New(w *state.World, f *factory.Factory, wnative *token.Wrapped) (*Router, error) {
	r := &Router{world: w, addr: w.NewAddress(), factory: f, wnative: wnative}
	if err := w.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) Address() common.Address  { return r.addr }
func (r *Router) Factory() common.Address  { return r.factory.Address() }
func (r *Router) WNative() common.Address  { return r.wnative.Address() }
func (r *Router) World() *state.World      { return r.world }
func (r *Router) SetTradeHook(h TradeHook) { r.hook = h }

func (r *Router) ensure(ctx *state.Context, deadline uint64) error {
	if ctx.Now() > deadline {
		return ErrExpired
	}
	return nil
}

// self returns a call context with the router as caller.
func (r *Router) self(ctx *state.Context) *state.Context {
	return state.NewContext(ctx.World, r.addr)
}

func (r *Router) erc20(addr common.Address) (pair.ERC20, error) {
	t, ok := r.world.Contract(addr).(pair.ERC20)
	if !ok {
		return nil, ErrPairNotExist
	}
	return t, nil
}

// receiveNative pulls the attached native value into the router, mirroring a
// payable call. Callers refund any unspent remainder via refundNative.
func (r *Router) receiveNative(ctx *state.Context) error {
	return r.world.NativeTransfer(ctx.Caller, r.addr, ctx.Value)
}

func (r *Router) refundNative(ctx *state.Context, spent *uint256.Int) error {
	if !spent.Lt(ctx.Value) {
		return nil
	}
	return r.world.NativeTransfer(r.addr, ctx.Caller, new(uint256.Int).Sub(ctx.Value, spent))
}

// wrap converts amount of router-held native into wrapped tokens held by the
// router.
func (r *Router) wrap(ctx *state.Context, amount *uint256.Int) error {
	return r.wnative.Deposit(r.self(ctx).WithValue(amount))
}

// unwrapTo burns amount of router-held wrapped tokens and pays the native out
// to `to`.
func (r *Router) unwrapTo(ctx *state.Context, amount *uint256.Int, to common.Address) error {
	if err := r.wnative.Withdraw(r.self(ctx), amount); err != nil {
		return err
	}
	return r.world.NativeTransfer(r.addr, to, amount)
}

// optimalAmounts fits the desired deposit to the current reserve ratio.
func (r *Router) optimalAmounts(tokenA, tokenB common.Address, amountADesired, amountBDesired, amountAMin, amountBMin *uint256.Int) (amountA, amountB *uint256.Int, err error) {
	reserveA, reserveB, err := r.reservesFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	if reserveA.IsZero() && reserveB.IsZero() {
		return amountADesired, amountBDesired, nil
	}
	amountBOptimal, err := Quote(amountADesired, reserveA, reserveB)
	if err != nil {
		return nil, nil, err
	}
	if !amountBOptimal.Gt(amountBDesired) {
		if amountBOptimal.Lt(amountBMin) {
			return nil, nil, ErrInsufficientBAmount
		}
		return amountADesired, amountBOptimal, nil
	}
	amountAOptimal, err := Quote(amountBDesired, reserveB, reserveA)
	if err != nil {
		return nil, nil, err
	}
	if amountAOptimal.Gt(amountADesired) {
		return nil, nil, ErrInsufficientAAmount
	}
	if amountAOptimal.Lt(amountAMin) {
		return nil, nil, ErrInsufficientAAmount
	}
	return amountAOptimal, amountBDesired, nil
}

// AddLiquidity deposits both assets at the pool ratio and mints LP shares to
// `to`. Desired amounts bound what is pulled; min amounts bound slippage.
func (r *Router) AddLiquidity(ctx *state.Context, tokenA, tokenB common.Address, amountADesired, amountBDesired, amountAMin, amountBMin *uint256.Int, to common.Address, deadline uint64) (amountA, amountB, liquidity *uint256.Int, err error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, nil, nil, err
	}
	p, err := r.pairFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, nil, err
	}
	amountA, amountB, err = r.optimalAmounts(tokenA, tokenB, amountADesired, amountBDesired, amountAMin, amountBMin)
	if err != nil {
		return nil, nil, nil, err
	}
	erc20A, err := r.erc20(tokenA)
	if err != nil {
		return nil, nil, nil, err
	}
	erc20B, err := r.erc20(tokenB)
	if err != nil {
		return nil, nil, nil, err
	}
	self := r.self(ctx)
	if err := erc20A.TransferFrom(self, ctx.Caller, p.Address(), amountA); err != nil {
		return nil, nil, nil, err
	}
	if err := erc20B.TransferFrom(self, ctx.Caller, p.Address(), amountB); err != nil {
		return nil, nil, nil, err
	}
	liquidity, err = p.Mint(self, to)
	if err != nil {
		return nil, nil, nil, err
	}
	return amountA, amountB, liquidity, nil
}

// AddLiquidityNative is AddLiquidity with the native coin on one side. The
// attached value bounds the native deposit; any unspent remainder is
// refunded.
func (r *Router) AddLiquidityNative(ctx *state.Context, tokenAddr common.Address, amountTokenDesired, amountTokenMin, amountNativeMin *uint256.Int, to common.Address, deadline uint64) (amountToken, amountNative, liquidity *uint256.Int, err error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, nil, nil, err
	}
	p, err := r.pairFor(tokenAddr, r.wnative.Address())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := r.receiveNative(ctx); err != nil {
		return nil, nil, nil, err
	}
	amountToken, amountNative, err = r.optimalAmounts(tokenAddr, r.wnative.Address(), amountTokenDesired, ctx.Value, amountTokenMin, amountNativeMin)
	if err != nil {
		return nil, nil, nil, err
	}
	erc20, err := r.erc20(tokenAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	self := r.self(ctx)
	if err := erc20.TransferFrom(self, ctx.Caller, p.Address(), amountToken); err != nil {
		return nil, nil, nil, err
	}
	if err := r.wrap(ctx, amountNative); err != nil {
		return nil, nil, nil, err
	}
	if err := r.wnative.Transfer(self, p.Address(), amountNative); err != nil {
		return nil, nil, nil, err
	}
	liquidity, err = p.Mint(self, to)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := r.refundNative(ctx, amountNative); err != nil {
		return nil, nil, nil, err
	}
	return amountToken, amountNative, liquidity, nil
}

// RemoveLiquidity burns LP shares and pays both assets out to `to`.
func (r *Router) RemoveLiquidity(ctx *state.Context, tokenA, tokenB common.Address, liquidity, amountAMin, amountBMin *uint256.Int, to common.Address, deadline uint64) (amountA, amountB *uint256.Int, err error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, nil, err
	}
	p, err := r.pairFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	self := r.self(ctx)
	if err := p.TransferFrom(self, ctx.Caller, p.Address(), liquidity); err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := p.Burn(self, to)
	if err != nil {
		return nil, nil, err
	}
	token0, _ := factory.SortTokens(tokenA, tokenB)
	amountA, amountB = amount0, amount1
	if tokenA != token0 {
		amountA, amountB = amount1, amount0
	}
	if amountA.Lt(amountAMin) {
		return nil, nil, ErrInsufficientAAmount
	}
	if amountB.Lt(amountBMin) {
		return nil, nil, ErrInsufficientBAmount
	}
	return amountA, amountB, nil
}

// RemoveLiquidityNative burns LP shares of a token/wrapped pair and pays the
// wrapped side out as native coin.
func (r *Router) RemoveLiquidityNative(ctx *state.Context, tokenAddr common.Address, liquidity, amountTokenMin, amountNativeMin *uint256.Int, to common.Address, deadline uint64) (amountToken, amountNative *uint256.Int, err error) {
	amountToken, amountNative, err = r.RemoveLiquidity(ctx, tokenAddr, r.wnative.Address(), liquidity, amountTokenMin, amountNativeMin, r.addr, deadline)
	if err != nil {
		return nil, nil, err
	}
	erc20, err := r.erc20(tokenAddr)
	if err != nil {
		return nil, nil, err
	}
	if err := erc20.Transfer(r.self(ctx), to, amountToken); err != nil {
		return nil, nil, err
	}
	if err := r.unwrapTo(ctx, amountNative, to); err != nil {
		return nil, nil, err
	}
	return amountToken, amountNative, nil
}

// RemoveLiquidityWithPermit removes liquidity using a signed approval instead
// of a prior allowance. approveMax signs the unlimited allowance.
func (r *Router) RemoveLiquidityWithPermit(ctx *state.Context, tokenA, tokenB common.Address, liquidity, amountAMin, amountBMin *uint256.Int, to common.Address, deadline uint64, approveMax bool, v byte, sigR, sigS [32]byte) (amountA, amountB *uint256.Int, err error) {
	p, err := r.pairFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	value := liquidity
	if approveMax {
		value = token.MaxUint256()
	}
	if err := p.Permit(ctx.Caller, r.addr, value, uint256.NewInt(deadline), v, sigR, sigS); err != nil {
		return nil, nil, err
	}
	return r.RemoveLiquidity(ctx, tokenA, tokenB, liquidity, amountAMin, amountBMin, to, deadline)
}

// RemoveLiquidityNativeWithPermit is RemoveLiquidityNative on a signed
// approval.
func (r *Router) RemoveLiquidityNativeWithPermit(ctx *state.Context, tokenAddr common.Address, liquidity, amountTokenMin, amountNativeMin *uint256.Int, to common.Address, deadline uint64, approveMax bool, v byte, sigR, sigS [32]byte) (amountToken, amountNative *uint256.Int, err error) {
	p, err := r.pairFor(tokenAddr, r.wnative.Address())
	if err != nil {
		return nil, nil, err
	}
	value := liquidity
	if approveMax {
		value = token.MaxUint256()
	}
	if err := p.Permit(ctx.Caller, r.addr, value, uint256.NewInt(deadline), v, sigR, sigS); err != nil {
		return nil, nil, err
	}
	return r.RemoveLiquidityNative(ctx, tokenAddr, liquidity, amountTokenMin, amountNativeMin, to, deadline)
}

// RemoveLiquidityNativeSupportingFeeOnTransferTokens removes liquidity for
// tokens that take a cut of every transfer: it forwards whatever actually
// arrived instead of the computed amount.
func (r *Router) RemoveLiquidityNativeSupportingFeeOnTransferTokens(ctx *state.Context, tokenAddr common.Address, liquidity, amountTokenMin, amountNativeMin *uint256.Int, to common.Address, deadline uint64) (amountNative *uint256.Int, err error) {
	_, amountNative, err = r.RemoveLiquidity(ctx, tokenAddr, r.wnative.Address(), liquidity, amountTokenMin, amountNativeMin, r.addr, deadline)
	if err != nil {
		return nil, err
	}
	erc20, err := r.erc20(tokenAddr)
	if err != nil {
		return nil, err
	}
	if err := erc20.Transfer(r.self(ctx), to, erc20.BalanceOf(r.addr)); err != nil {
		return nil, err
	}
	if err := r.unwrapTo(ctx, amountNative, to); err != nil {
		return nil, err
	}
	return amountNative, nil
}

// swap executes a priced path hop by hop. Funds for the first hop must
// already sit in the first pair.
func (r *Router) swap(ctx *state.Context, amounts []*uint256.Int, path []common.Address, to common.Address) error {
	self := r.self(ctx)
	for i := 0; i < len(path)-1; i++ {
		input, output := path[i], path[i+1]
		token0, _ := factory.SortTokens(input, output)
		amountOut := amounts[i+1]
		amount0Out, amount1Out := uint256.NewInt(0), amountOut
		if input != token0 {
			amount0Out, amount1Out = amountOut, uint256.NewInt(0)
		}
		recipient := to
		if i < len(path)-2 {
			next, err := r.pairFor(output, path[i+2])
			if err != nil {
				return err
			}
			recipient = next.Address()
		}
		p, err := r.pairFor(input, output)
		if err != nil {
			return err
		}
		if err := p.Swap(self, amount0Out, amount1Out, recipient, nil); err != nil {
			return err
		}
		if r.hook != nil {
			r.hook.OnTrade(ctx, ctx.Caller, p, input, output, amounts[i], amountOut)
		}
	}
	return nil
}

// SwapExactTokensForTokens trades a fixed input along path for at least
// amountOutMin of the final token.
func (r *Router) SwapExactTokensForTokens(ctx *state.Context, amountIn, amountOutMin *uint256.Int, path []common.Address, to common.Address, deadline uint64) ([]*uint256.Int, error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, err
	}
	amounts, err := r.GetAmountsOut(amountIn, path)
	if err != nil {
		return nil, err
	}
	if amounts[len(amounts)-1].Lt(amountOutMin) {
		return nil, ErrInsufficientOutputAmount
	}
	if err := r.payFirstHop(ctx, path, amounts[0]); err != nil {
		return nil, err
	}
	return amounts, r.swap(ctx, amounts, path, to)
}

// SwapTokensForExactTokens trades at most amountInMax along path for a fixed
// output.
func (r *Router) SwapTokensForExactTokens(ctx *state.Context, amountOut, amountInMax *uint256.Int, path []common.Address, to common.Address, deadline uint64) ([]*uint256.Int, error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, err
	}
	amounts, err := r.GetAmountsIn(amountOut, path)
	if err != nil {
		return nil, err
	}
	if amounts[0].Gt(amountInMax) {
		return nil, ErrExcessiveInputAmount
	}
	if err := r.payFirstHop(ctx, path, amounts[0]); err != nil {
		return nil, err
	}
	return amounts, r.swap(ctx, amounts, path, to)
}

// SwapExactNativeForTokens trades a fixed native input (the attached value)
// for tokens. The path must start at the wrapped-native token.
func (r *Router) SwapExactNativeForTokens(ctx *state.Context, amountOutMin *uint256.Int, path []common.Address, to common.Address, deadline uint64) ([]*uint256.Int, error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, err
	}
	if len(path) == 0 || path[0] != r.wnative.Address() {
		return nil, ErrInvalidPath
	}
	amounts, err := r.GetAmountsOut(ctx.Value, path)
	if err != nil {
		return nil, err
	}
	if amounts[len(amounts)-1].Lt(amountOutMin) {
		return nil, ErrInsufficientOutputAmount
	}
	if err := r.receiveNative(ctx); err != nil {
		return nil, err
	}
	if err := r.wrapToFirstHop(ctx, path, amounts[0]); err != nil {
		return nil, err
	}
	return amounts, r.swap(ctx, amounts, path, to)
}

// SwapTokensForExactNative trades at most amountInMax of tokens for a fixed
// native output. The path must end at the wrapped-native token.
func (r *Router) SwapTokensForExactNative(ctx *state.Context, amountOut, amountInMax *uint256.Int, path []common.Address, to common.Address, deadline uint64) ([]*uint256.Int, error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, err
	}
	if len(path) == 0 || path[len(path)-1] != r.wnative.Address() {
		return nil, ErrInvalidPath
	}
	amounts, err := r.GetAmountsIn(amountOut, path)
	if err != nil {
		return nil, err
	}
	if amounts[0].Gt(amountInMax) {
		return nil, ErrExcessiveInputAmount
	}
	if err := r.payFirstHop(ctx, path, amounts[0]); err != nil {
		return nil, err
	}
	if err := r.swap(ctx, amounts, path, r.addr); err != nil {
		return nil, err
	}
	return amounts, r.unwrapTo(ctx, amounts[len(amounts)-1], to)
}

// SwapExactTokensForNative trades a fixed token input for at least
// amountOutMin of native coin.
func (r *Router) SwapExactTokensForNative(ctx *state.Context, amountIn, amountOutMin *uint256.Int, path []common.Address, to common.Address, deadline uint64) ([]*uint256.Int, error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, err
	}
	if len(path) == 0 || path[len(path)-1] != r.wnative.Address() {
		return nil, ErrInvalidPath
	}
	amounts, err := r.GetAmountsOut(amountIn, path)
	if err != nil {
		return nil, err
	}
	if amounts[len(amounts)-1].Lt(amountOutMin) {
		return nil, ErrInsufficientOutputAmount
	}
	if err := r.payFirstHop(ctx, path, amounts[0]); err != nil {
		return nil, err
	}
	if err := r.swap(ctx, amounts, path, r.addr); err != nil {
		return nil, err
	}
	return amounts, r.unwrapTo(ctx, amounts[len(amounts)-1], to)
}

// SwapNativeForExactTokens trades native coin for a fixed token output,
// refunding the unspent part of the attached value.
func (r *Router) SwapNativeForExactTokens(ctx *state.Context, amountOut *uint256.Int, path []common.Address, to common.Address, deadline uint64) ([]*uint256.Int, error) {
	if err := r.ensure(ctx, deadline); err != nil {
		return nil, err
	}
	if len(path) == 0 || path[0] != r.wnative.Address() {
		return nil, ErrInvalidPath
	}
	amounts, err := r.GetAmountsIn(amountOut, path)
	if err != nil {
		return nil, err
	}
	if amounts[0].Gt(ctx.Value) {
		return nil, ErrExcessiveInputAmount
	}
	if err := r.receiveNative(ctx); err != nil {
		return nil, err
	}
	if err := r.wrapToFirstHop(ctx, path, amounts[0]); err != nil {
		return nil, err
	}
	if err := r.swap(ctx, amounts, path, to); err != nil {
		return nil, err
	}
	return amounts, r.refundNative(ctx, amounts[0])
}

// payFirstHop pulls the caller's input tokens into the first pair of path.
func (r *Router) payFirstHop(ctx *state.Context, path []common.Address, amount *uint256.Int) error {
	if len(path) < 2 {
		return ErrInvalidPath
	}
	first, err := r.pairFor(path[0], path[1])
	if err != nil {
		return err
	}
	erc20, err := r.erc20(path[0])
	if err != nil {
		return err
	}
	return erc20.TransferFrom(r.self(ctx), ctx.Caller, first.Address(), amount)
}

// wrapToFirstHop wraps router-held native and deposits it into the first
// pair of path.
func (r *Router) wrapToFirstHop(ctx *state.Context, path []common.Address, amount *uint256.Int) error {
	first, err := r.pairFor(path[0], path[1])
	if err != nil {
		return err
	}
	if err := r.wrap(ctx, amount); err != nil {
		return err
	}
	return r.wnative.Transfer(r.self(ctx), first.Address(), amount)
}
