package testing

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lovelyswap/golovelyd/internal/core/factory"
	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/router"
	"github.com/lovelyswap/golovelyd/internal/core/state"
	"github.com/lovelyswap/golovelyd/internal/core/tcrouter"
	"github.com/lovelyswap/golovelyd/internal/core/token"
)

// TestChainID is the chain id test worlds run on; it is folded into permit
// domain separators.
const TestChainID = 1337

// Default exchange parameters for test fixtures: 0.1% protocol fee, 0.2% LP
// fee. The admin is exempt from the listing fee.
const (
	DefaultOwnerFee = 10
	DefaultLPFee    = 20
)

// TestEnv manages a test exchange environment. It provides a simplified
// interface for deploying tokens, listing them, creating pairs, and running
// operations as different accounts with a controllable clock.
type TestEnv struct {
	T     *testing.T
	World *state.World
	Clock *ManualClock

	// Admin is the exchange admin (fee-to setter); Other is an ordinary user.
	Admin *Account
	Other *Account

	FeeToken *token.Token
	Factory  *factory.Factory
}

// NewTestEnv creates a world with a manual clock, funded admin and user
// accounts, a deployed listing-fee token, and a factory with the default fee
// configuration.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	clock := NewManualClock()
	world := state.NewWorld(TestChainID, clock)

	admin := NewAccount("admin")
	other := NewAccount("other")
	world.NativeMint(admin.Address, ExpandTo18(10_000))
	world.NativeMint(other.Address, ExpandTo18(10_000))

	feeToken, err := token.New(world, "Listing Fee Token", "LFT", 18)
	require.NoError(t, err)
	require.NoError(t, feeToken.Mint(admin.Address, ExpandTo18(1_000_000)))

	f, err := factory.New(world, admin.Address, feeToken.Address(), ExpandTo18(100), DefaultOwnerFee, DefaultLPFee)
	require.NoError(t, err)

	return &TestEnv{
		T:        t,
		World:    world,
		Clock:    clock,
		Admin:    admin,
		Other:    other,
		FeeToken: feeToken,
		Factory:  f,
	}
}

// Ctx returns a call context for the given account.
func (env *TestEnv) Ctx(a *Account) *state.Context {
	return state.NewContext(env.World, a.Address)
}

// CtxValue returns a call context carrying native value, like a payable call.
func (env *TestEnv) CtxValue(a *Account, value *uint256.Int) *state.Context {
	return env.Ctx(a).WithValue(value)
}

// Now returns the world clock as unix seconds.
func (env *TestEnv) Now() uint64 { return env.World.Now() }

// Advance moves the clock forward.
func (env *TestEnv) Advance(d time.Duration) { env.Clock.Advance(d) }

// MustRun executes op atomically and fails the test on error.
func (env *TestEnv) MustRun(op func() error) {
	env.T.Helper()
	require.NoError(env.T, env.World.Run(op))
}

// RunExpect executes op atomically and requires it to fail with expected.
func (env *TestEnv) RunExpect(expected error, op func() error) {
	env.T.Helper()
	require.ErrorIs(env.T, env.World.Run(op), expected)
}

// DeployToken deploys a fresh token and mints supply to holder.
func (env *TestEnv) DeployToken(name, symbol string, supply *uint256.Int, holder common.Address) *token.Token {
	env.T.Helper()
	t, err := token.New(env.World, name, symbol, 18)
	require.NoError(env.T, err)
	require.NoError(env.T, t.Mint(holder, supply))
	return t
}

// DeployDeflatingToken deploys a token that burns 1% of every transfer.
func (env *TestEnv) DeployDeflatingToken(name, symbol string, supply *uint256.Int, holder common.Address) *token.Token {
	env.T.Helper()
	t, err := token.NewDeflating(env.World, name, symbol, 100)
	require.NoError(env.T, err)
	require.NoError(env.T, t.Mint(holder, supply))
	return t
}

// DeployWrapped deploys the wrapped-native token.
func (env *TestEnv) DeployWrapped() *token.Wrapped {
	env.T.Helper()
	w, err := token.NewWrapped(env.World, "Wrapped Native", "WNATIVE")
	require.NoError(env.T, err)
	return w
}

// AllowTokens lists the given tokens as the admin, active immediately.
func (env *TestEnv) AllowTokens(tokens ...common.Address) {
	env.T.Helper()
	for _, addr := range tokens {
		addr := addr
		if env.Factory.Allowlist(addr) != nil {
			continue
		}
		env.MustRun(func() error {
			return env.Factory.AllowToken(env.Ctx(env.Admin), addr, 0)
		})
	}
}

// CreatePair lists both tokens and opens their pair, all as the admin, with
// trading active immediately.
func (env *TestEnv) CreatePair(tokenA, tokenB common.Address) *pair.Pair {
	env.T.Helper()
	env.AllowTokens(tokenA, tokenB)
	var p *pair.Pair
	env.MustRun(func() error {
		var err error
		p, err = env.Factory.CreatePair(env.Ctx(env.Admin), tokenA, tokenB, 0)
		return err
	})
	return p
}

// PairFixture deploys two 10000-supply tokens to the admin and opens their
// pair. The returned tokens are in pair order: token0 sorts below token1.
func (env *TestEnv) PairFixture() (token0, token1 *token.Token, p *pair.Pair) {
	env.T.Helper()
	tokenA := env.DeployToken("Token A", "TKA", ExpandTo18(10_000), env.Admin.Address)
	tokenB := env.DeployToken("Token B", "TKB", ExpandTo18(10_000), env.Admin.Address)
	p = env.CreatePair(tokenA.Address(), tokenB.Address())
	token0, token1 = tokenA, tokenB
	if p.Token0() != tokenA.Address() {
		token0, token1 = tokenB, tokenA
	}
	return token0, token1, p
}

// AddLiquidity pushes amounts straight into the pair and mints the resulting
// shares to the account, bypassing the router.
func (env *TestEnv) AddLiquidity(a *Account, p *pair.Pair, token0, token1 *token.Token, amount0, amount1 *uint256.Int) *uint256.Int {
	env.T.Helper()
	var liquidity *uint256.Int
	env.MustRun(func() error {
		if err := token0.Transfer(env.Ctx(a), p.Address(), amount0); err != nil {
			return err
		}
		if err := token1.Transfer(env.Ctx(a), p.Address(), amount1); err != nil {
			return err
		}
		var err error
		liquidity, err = p.Mint(env.Ctx(a), a.Address)
		return err
	})
	return liquidity
}

// RouterFixture deploys the wrapped-native token and a router over the
// environment's factory.
func (env *TestEnv) RouterFixture() (*router.Router, *token.Wrapped) {
	env.T.Helper()
	wnative := env.DeployWrapped()
	r, err := router.New(env.World, env.Factory, wnative)
	require.NoError(env.T, err)
	return r, wnative
}

// TCRouterFixture deploys the wrapped-native token and a competition router
// charging the given native creation fee.
func (env *TestEnv) TCRouterFixture(competitionFee *uint256.Int) (*tcrouter.TCRouter, *token.Wrapped) {
	env.T.Helper()
	wnative := env.DeployWrapped()
	r, err := tcrouter.New(env.World, env.Factory, wnative, competitionFee)
	require.NoError(env.T, err)
	return r, wnative
}

// Approve sets an allowance as the given account. Works for plain tokens,
// the wrapped-native token, and pair shares.
func (env *TestEnv) Approve(a *Account, t pair.ERC20, spender common.Address, amount *uint256.Int) {
	env.T.Helper()
	type approver interface {
		Approve(ctx *state.Context, spender common.Address, amount *uint256.Int) error
	}
	env.MustRun(func() error {
		return t.(approver).Approve(env.Ctx(a), spender, amount)
	})
}

// Events returns the committed world event log.
func (env *TestEnv) Events() []state.Event { return env.World.Events() }
