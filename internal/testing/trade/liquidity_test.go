package trade_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/router"
	"github.com/lovelyswap/golovelyd/internal/core/token"
	jtx "github.com/lovelyswap/golovelyd/internal/testing"
)

// nativePair opens a token/wrapped-native pair and seeds it with liquidity
// held by the admin.
func nativePair(env *jtx.TestEnv, wnative *token.Wrapped, tok *token.Token, tokenAmount, nativeAmount *uint256.Int) *pair.Pair {
	env.T.Helper()
	p := env.CreatePair(tok.Address(), wnative.Address())
	env.MustRun(func() error {
		if err := wnative.Deposit(env.CtxValue(env.Admin, nativeAmount)); err != nil {
			return err
		}
		if err := wnative.Transfer(env.Ctx(env.Admin), p.Address(), nativeAmount); err != nil {
			return err
		}
		if err := tok.Transfer(env.Ctx(env.Admin), p.Address(), tokenAmount); err != nil {
			return err
		}
		_, err := p.Mint(env.Ctx(env.Admin), env.Admin.Address)
		return err
	})
	return p
}

func deadline(env *jtx.TestEnv) uint64 { return env.Now() + 100 }

func TestAddLiquidity(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	token0, token1, p := env.PairFixture()
	env.Approve(env.Admin, token0, r.Address(), token.MaxUint256())
	env.Approve(env.Admin, token1, r.Address(), token.MaxUint256())

	expectedLiquidity := jtx.ExpandTo18(2)
	env.MustRun(func() error {
		amountA, amountB, liquidity, err := r.AddLiquidity(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			jtx.ExpandTo18(1), jtx.ExpandTo18(4), jtx.ExpandTo18(1), jtx.ExpandTo18(4),
			env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, jtx.ExpandTo18(1), amountA)
		jtx.RequireAmount(t, jtx.ExpandTo18(4), amountB)
		jtx.RequireAmount(t, new(uint256.Int).SubUint64(expectedLiquidity, pair.MinimumLiquidity), liquidity)
		return nil
	})
	jtx.RequireBalance(t, p, env.Other.Address, new(uint256.Int).SubUint64(expectedLiquidity, pair.MinimumLiquidity))
	jtx.RequireReserves(t, p, jtx.ExpandTo18(1), jtx.ExpandTo18(4))

	// A second deposit is fitted to the 1:4 pool ratio.
	env.RunExpect(router.ErrInsufficientBAmount, func() error {
		_, _, _, err := r.AddLiquidity(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			jtx.ExpandTo18(2), jtx.ExpandTo18(10), jtx.ExpandTo18(2), new(uint256.Int).AddUint64(jtx.ExpandTo18(8), 1),
			env.Other.Address, deadline(env))
		return err
	})
	env.RunExpect(router.ErrInsufficientAAmount, func() error {
		_, _, _, err := r.AddLiquidity(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			jtx.ExpandTo18(4), jtx.ExpandTo18(8), new(uint256.Int).AddUint64(jtx.ExpandTo18(2), 1), jtx.ExpandTo18(8),
			env.Other.Address, deadline(env))
		return err
	})
	env.MustRun(func() error {
		amountA, amountB, _, err := r.AddLiquidity(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			jtx.ExpandTo18(2), jtx.ExpandTo18(10), jtx.ExpandTo18(2), jtx.ExpandTo18(8),
			env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, jtx.ExpandTo18(2), amountA)
		jtx.RequireAmount(t, jtx.ExpandTo18(8), amountB)
		return nil
	})
}

func TestAddLiquidityExpired(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	token0, token1, _ := env.PairFixture()

	env.RunExpect(router.ErrExpired, func() error {
		_, _, _, err := r.AddLiquidity(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			jtx.ExpandTo18(1), jtx.ExpandTo18(4), jtx.ExpandTo18(1), jtx.ExpandTo18(4),
			env.Admin.Address, env.Now()-1)
		return err
	})
}

func TestAddLiquidityRequiresPair(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	tokenA := env.DeployToken("Token A", "TKA", jtx.ExpandTo18(100), env.Admin.Address)
	tokenB := env.DeployToken("Token B", "TKB", jtx.ExpandTo18(100), env.Admin.Address)

	env.RunExpect(router.ErrPairNotExist, func() error {
		_, _, _, err := r.AddLiquidity(env.Ctx(env.Admin),
			tokenA.Address(), tokenB.Address(),
			jtx.ExpandTo18(1), jtx.ExpandTo18(4), jtx.ExpandTo18(1), jtx.ExpandTo18(4),
			env.Admin.Address, deadline(env))
		return err
	})
}

func TestAddLiquidityNativeRefundsDust(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, wnative := env.RouterFixture()
	tok := env.DeployToken("Token A", "TKA", jtx.ExpandTo18(100), env.Admin.Address)
	p := nativePair(env, wnative, tok, jtx.ExpandTo18(1), jtx.ExpandTo18(4))
	env.Approve(env.Admin, tok, r.Address(), token.MaxUint256())

	before := env.World.NativeBalanceOf(env.Admin.Address)
	env.MustRun(func() error {
		amountToken, amountNative, liquidity, err := r.AddLiquidityNative(
			env.CtxValue(env.Admin, jtx.ExpandTo18(5)),
			tok.Address(), jtx.ExpandTo18(1), jtx.ExpandTo18(1), jtx.ExpandTo18(4),
			env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, jtx.ExpandTo18(1), amountToken)
		jtx.RequireAmount(t, jtx.ExpandTo18(4), amountNative)
		jtx.RequireAmount(t, jtx.ExpandTo18(2), liquidity)
		return nil
	})
	// Only four of the five attached native coins are spent; the dust comes
	// back.
	after := env.World.NativeBalanceOf(env.Admin.Address)
	jtx.RequireAmount(t, jtx.ExpandTo18(4), new(uint256.Int).Sub(before, after))
	jtx.RequireBalance(t, tok, p.Address(), jtx.ExpandTo18(2))
	jtx.RequireBalance(t, wnative, p.Address(), jtx.ExpandTo18(8))
}

func TestRemoveLiquidity(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	token0, token1, p := env.PairFixture()
	liquidity := env.AddLiquidity(env.Admin, p, token0, token1, jtx.ExpandTo18(1), jtx.ExpandTo18(4))
	env.Approve(env.Admin, p, r.Address(), liquidity)

	env.RunExpect(router.ErrInsufficientAAmount, func() error {
		_, _, err := r.RemoveLiquidity(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			liquidity, jtx.ExpandTo18(1), uint256.NewInt(0),
			env.Other.Address, deadline(env))
		return err
	})
	env.RunExpect(router.ErrInsufficientBAmount, func() error {
		_, _, err := r.RemoveLiquidity(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			liquidity, uint256.NewInt(0), jtx.ExpandTo18(4),
			env.Other.Address, deadline(env))
		return err
	})

	expected0 := new(uint256.Int).SubUint64(jtx.ExpandTo18(1), 500)
	expected1 := new(uint256.Int).SubUint64(jtx.ExpandTo18(4), 2000)
	env.MustRun(func() error {
		amountA, amountB, err := r.RemoveLiquidity(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			liquidity, uint256.NewInt(0), uint256.NewInt(0),
			env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, expected0, amountA)
		jtx.RequireAmount(t, expected1, amountB)
		return nil
	})
	jtx.RequireBalance(t, token0, env.Other.Address, expected0)
	jtx.RequireBalance(t, token1, env.Other.Address, expected1)
	jtx.RequireBalance(t, p, env.Admin.Address, uint256.NewInt(0))
}

func TestRemoveLiquidityNative(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, wnative := env.RouterFixture()
	tok := env.DeployToken("Token A", "TKA", jtx.ExpandTo18(100), env.Admin.Address)
	p := nativePair(env, wnative, tok, jtx.ExpandTo18(1), jtx.ExpandTo18(4))

	liquidity := new(uint256.Int).SubUint64(jtx.ExpandTo18(2), pair.MinimumLiquidity)
	env.Approve(env.Admin, p, r.Address(), liquidity)

	before := env.World.NativeBalanceOf(env.Other.Address)
	env.MustRun(func() error {
		amountToken, amountNative, err := r.RemoveLiquidityNative(env.Ctx(env.Admin),
			tok.Address(), liquidity, uint256.NewInt(0), uint256.NewInt(0),
			env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, new(uint256.Int).SubUint64(jtx.ExpandTo18(1), 500), amountToken)
		jtx.RequireAmount(t, new(uint256.Int).SubUint64(jtx.ExpandTo18(4), 2000), amountNative)
		return nil
	})
	jtx.RequireBalance(t, tok, env.Other.Address, new(uint256.Int).SubUint64(jtx.ExpandTo18(1), 500))
	after := env.World.NativeBalanceOf(env.Other.Address)
	jtx.RequireAmount(t, new(uint256.Int).SubUint64(jtx.ExpandTo18(4), 2000), new(uint256.Int).Sub(after, before))
}

func TestRemoveLiquidityWithPermit(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	token0, token1, p := env.PairFixture()
	liquidity := env.AddLiquidity(env.Admin, p, token0, token1, jtx.ExpandTo18(1), jtx.ExpandTo18(4))

	dl := deadline(env)
	v, sigR, sigS, err := env.Admin.SignPermit(p.Token, r.Address(), liquidity, uint256.NewInt(dl))
	require.NoError(t, err)

	env.MustRun(func() error {
		_, _, err := r.RemoveLiquidityWithPermit(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			liquidity, uint256.NewInt(0), uint256.NewInt(0),
			env.Other.Address, dl, false, v, sigR, sigS)
		return err
	})
	jtx.RequireBalance(t, p, env.Admin.Address, uint256.NewInt(0))
}

func TestRemoveLiquidityWithPermitApproveMax(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	token0, token1, p := env.PairFixture()
	liquidity := env.AddLiquidity(env.Admin, p, token0, token1, jtx.ExpandTo18(1), jtx.ExpandTo18(4))

	dl := deadline(env)
	v, sigR, sigS, err := env.Admin.SignPermit(p.Token, r.Address(), token.MaxUint256(), uint256.NewInt(dl))
	require.NoError(t, err)

	env.MustRun(func() error {
		_, _, err := r.RemoveLiquidityWithPermit(env.Ctx(env.Admin),
			token0.Address(), token1.Address(),
			liquidity, uint256.NewInt(0), uint256.NewInt(0),
			env.Other.Address, dl, true, v, sigR, sigS)
		return err
	})
	jtx.RequireBalance(t, p, env.Admin.Address, uint256.NewInt(0))
	// The unlimited allowance survives the removal.
	jtx.RequireAmount(t, token.MaxUint256(), p.Allowance(env.Admin.Address, r.Address()))
}
