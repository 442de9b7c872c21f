package trade_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lovelyswap/golovelyd/internal/core/router"
	"github.com/lovelyswap/golovelyd/internal/core/token"
	jtx "github.com/lovelyswap/golovelyd/internal/testing"
)

func TestSwapExactTokensForTokens(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	token0, token1, _ := env.PairFixture()
	env.AddLiquidity(env.Admin, env.Factory.GetPair(token0.Address(), token1.Address()), token0, token1, jtx.ExpandTo18(5), jtx.ExpandTo18(10))
	env.Approve(env.Admin, token0, r.Address(), token.MaxUint256())

	path := []common.Address{token0.Address(), token1.Address()}
	expectedOut := jtx.MustBig("1662497915624478906")

	env.RunExpect(router.ErrInsufficientOutputAmount, func() error {
		_, err := r.SwapExactTokensForTokens(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), new(uint256.Int).AddUint64(expectedOut, 1), path, env.Other.Address, deadline(env))
		return err
	})
	env.MustRun(func() error {
		amounts, err := r.SwapExactTokensForTokens(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), expectedOut, path, env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, jtx.ExpandTo18(1), amounts[0])
		jtx.RequireAmount(t, expectedOut, amounts[1])
		return nil
	})
	jtx.RequireBalance(t, token1, env.Other.Address, expectedOut)
}

func TestSwapTokensForExactTokens(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	token0, token1, p := env.PairFixture()
	env.AddLiquidity(env.Admin, p, token0, token1, jtx.ExpandTo18(5), jtx.ExpandTo18(10))
	env.Approve(env.Admin, token0, r.Address(), token.MaxUint256())

	path := []common.Address{token0.Address(), token1.Address()}
	expectedIn := jtx.MustBig("557227237267357629")

	env.RunExpect(router.ErrExcessiveInputAmount, func() error {
		_, err := r.SwapTokensForExactTokens(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), new(uint256.Int).SubUint64(expectedIn, 1), path, env.Other.Address, deadline(env))
		return err
	})
	env.MustRun(func() error {
		amounts, err := r.SwapTokensForExactTokens(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), expectedIn, path, env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, expectedIn, amounts[0])
		jtx.RequireAmount(t, jtx.ExpandTo18(1), amounts[1])
		return nil
	})
	jtx.RequireBalance(t, token1, env.Other.Address, jtx.ExpandTo18(1))
}

func TestSwapThroughTwoPairs(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, _ := env.RouterFixture()
	token0, token1, p01 := env.PairFixture()
	token2 := env.DeployToken("Token C", "TKC", jtx.ExpandTo18(10_000), env.Admin.Address)
	p12 := env.CreatePair(token1.Address(), token2.Address())
	env.AddLiquidity(env.Admin, p01, token0, token1, jtx.ExpandTo18(5), jtx.ExpandTo18(10))
	env.MustRun(func() error {
		if err := token1.Transfer(env.Ctx(env.Admin), p12.Address(), jtx.ExpandTo18(10)); err != nil {
			return err
		}
		if err := token2.Transfer(env.Ctx(env.Admin), p12.Address(), jtx.ExpandTo18(10)); err != nil {
			return err
		}
		_, err := p12.Mint(env.Ctx(env.Admin), env.Admin.Address)
		return err
	})
	env.Approve(env.Admin, token0, r.Address(), token.MaxUint256())

	path := []common.Address{token0.Address(), token1.Address(), token2.Address()}
	env.MustRun(func() error {
		amounts, err := r.SwapExactTokensForTokens(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), uint256.NewInt(0), path, env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		require.Len(t, amounts, 3)
		jtx.RequireAmount(t, jtx.MustBig("1662497915624478906"), amounts[1])
		jtx.RequireBalance(t, token2, env.Other.Address, amounts[2])
		return nil
	})
}

func TestSwapExactNativeForTokens(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, wnative := env.RouterFixture()
	tok := env.DeployToken("Token A", "TKA", jtx.ExpandTo18(100), env.Admin.Address)
	nativePair(env, wnative, tok, jtx.ExpandTo18(10), jtx.ExpandTo18(5))

	expectedOut := jtx.MustBig("1662497915624478906")
	env.RunExpect(router.ErrInvalidPath, func() error {
		_, err := r.SwapExactNativeForTokens(env.CtxValue(env.Other, jtx.ExpandTo18(1)),
			uint256.NewInt(0), []common.Address{tok.Address(), wnative.Address()}, env.Other.Address, deadline(env))
		return err
	})
	env.MustRun(func() error {
		amounts, err := r.SwapExactNativeForTokens(env.CtxValue(env.Other, jtx.ExpandTo18(1)),
			expectedOut, []common.Address{wnative.Address(), tok.Address()}, env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, expectedOut, amounts[1])
		return nil
	})
	jtx.RequireBalance(t, tok, env.Other.Address, expectedOut)
}

func TestSwapTokensForExactNative(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, wnative := env.RouterFixture()
	tok := env.DeployToken("Token A", "TKA", jtx.ExpandTo18(100), env.Admin.Address)
	nativePair(env, wnative, tok, jtx.ExpandTo18(10), jtx.ExpandTo18(5))
	env.Approve(env.Admin, tok, r.Address(), token.MaxUint256())

	path := []common.Address{tok.Address(), wnative.Address()}
	env.RunExpect(router.ErrInvalidPath, func() error {
		_, err := r.SwapTokensForExactNative(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), token.MaxUint256(), []common.Address{wnative.Address(), tok.Address()}, env.Other.Address, deadline(env))
		return err
	})
	env.RunExpect(router.ErrExcessiveInputAmount, func() error {
		_, err := r.SwapTokensForExactNative(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), uint256.NewInt(1), path, env.Other.Address, deadline(env))
		return err
	})

	before := env.World.NativeBalanceOf(env.Other.Address)
	env.MustRun(func() error {
		amounts, err := r.SwapTokensForExactNative(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), token.MaxUint256(), path, env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, jtx.ExpandTo18(1), amounts[1])
		return nil
	})
	after := env.World.NativeBalanceOf(env.Other.Address)
	jtx.RequireAmount(t, jtx.ExpandTo18(1), new(uint256.Int).Sub(after, before))
}

func TestSwapExactTokensForNative(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, wnative := env.RouterFixture()
	tok := env.DeployToken("Token A", "TKA", jtx.ExpandTo18(100), env.Admin.Address)
	nativePair(env, wnative, tok, jtx.ExpandTo18(10), jtx.ExpandTo18(5))
	env.Approve(env.Admin, tok, r.Address(), token.MaxUint256())

	expectedOut := jtx.MustBig("453305446940074565")
	before := env.World.NativeBalanceOf(env.Other.Address)
	env.MustRun(func() error {
		amounts, err := r.SwapExactTokensForNative(env.Ctx(env.Admin),
			jtx.ExpandTo18(1), expectedOut, []common.Address{tok.Address(), wnative.Address()}, env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, expectedOut, amounts[1])
		return nil
	})
	after := env.World.NativeBalanceOf(env.Other.Address)
	jtx.RequireAmount(t, expectedOut, new(uint256.Int).Sub(after, before))
}

func TestSwapNativeForExactTokens(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, wnative := env.RouterFixture()
	tok := env.DeployToken("Token A", "TKA", jtx.ExpandTo18(100), env.Admin.Address)
	nativePair(env, wnative, tok, jtx.ExpandTo18(10), jtx.ExpandTo18(5))

	expectedIn := jtx.MustBig("557227237267357629")
	before := env.World.NativeBalanceOf(env.Other.Address)
	env.MustRun(func() error {
		amounts, err := r.SwapNativeForExactTokens(env.CtxValue(env.Other, jtx.ExpandTo18(2)),
			jtx.ExpandTo18(1), []common.Address{wnative.Address(), tok.Address()}, env.Other.Address, deadline(env))
		if err != nil {
			return err
		}
		jtx.RequireAmount(t, expectedIn, amounts[0])
		return nil
	})
	// Only the priced input is spent; the rest of the attached value comes
	// back.
	after := env.World.NativeBalanceOf(env.Other.Address)
	jtx.RequireAmount(t, expectedIn, new(uint256.Int).Sub(before, after))
	jtx.RequireBalance(t, tok, env.Other.Address, jtx.ExpandTo18(1))
}

func TestSwapDeadlines(t *testing.T) {
	env := jtx.NewTestEnv(t)
	r, wnative := env.RouterFixture()
	token0, token1, _ := env.PairFixture()
	path := []common.Address{token0.Address(), token1.Address()}
	past := env.Now() - 1

	env.RunExpect(router.ErrExpired, func() error {
		_, err := r.SwapExactTokensForTokens(env.Ctx(env.Admin), jtx.ExpandTo18(1), uint256.NewInt(0), path, env.Other.Address, past)
		return err
	})
	env.RunExpect(router.ErrExpired, func() error {
		_, err := r.SwapTokensForExactTokens(env.Ctx(env.Admin), jtx.ExpandTo18(1), token.MaxUint256(), path, env.Other.Address, past)
		return err
	})
	env.RunExpect(router.ErrExpired, func() error {
		_, err := r.SwapExactNativeForTokens(env.CtxValue(env.Admin, jtx.ExpandTo18(1)), uint256.NewInt(0),
			[]common.Address{wnative.Address(), token0.Address()}, env.Other.Address, past)
		return err
	})
	env.RunExpect(router.ErrExpired, func() error {
		_, err := r.SwapExactTokensForNative(env.Ctx(env.Admin), jtx.ExpandTo18(1), uint256.NewInt(0),
			[]common.Address{token0.Address(), wnative.Address()}, env.Other.Address, past)
		return err
	})
}
