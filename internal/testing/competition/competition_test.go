// Package competition_test covers the trading-competition router: competition
// creation and escrow, registration, volume accrual through routed swaps,
// final ranking, reward claims, and vault withdrawals.
package competition_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/tcrouter"
	"github.com/lovelyswap/golovelyd/internal/core/token"
	jtx "github.com/lovelyswap/golovelyd/internal/testing"
)

// competitionFee is the native fee non-admin creators attach.
var competitionFee = jtx.ExpandTo18(1)

type fixture struct {
	env            *jtx.TestEnv
	r              *tcrouter.TCRouter
	token0, token1 *token.Token
	p              *pair.Pair
	reward         *token.Token
	rewards        [4]*uint256.Int
	funding        *uint256.Int
}

func newFixture(t *testing.T) *fixture {
	env := jtx.NewTestEnv(t)
	r, _ := env.TCRouterFixture(competitionFee)
	token0, token1, p := env.PairFixture()
	env.AddLiquidity(env.Admin, p, token0, token1, jtx.ExpandTo18(100), jtx.ExpandTo18(100))

	reward := env.DeployToken("Reward Token", "RWD", jtx.ExpandTo18(10_000), env.Admin.Address)
	env.Approve(env.Admin, reward, r.Address(), token.MaxUint256())

	rewards := [4]*uint256.Int{jtx.ExpandTo18(50), jtx.ExpandTo18(20), jtx.ExpandTo18(10), jtx.ExpandTo18(5)}
	return &fixture{
		env:     env,
		r:       r,
		token0:  token0,
		token1:  token1,
		p:       p,
		reward:  reward,
		rewards: rewards,
		funding: tcrouter.TotalFunding(rewards),
	}
}

// create opens a competition as the admin: one hour long, starting 100 seconds
// from now, tracking volume in token0 on the fixture pair.
func (f *fixture) create() (id uint64, start, end uint64) {
	f.env.T.Helper()
	start = f.env.Now() + 100
	end = start + 3600
	f.env.MustRun(func() error {
		var err error
		id, err = f.r.CreateCompetition(f.env.Ctx(f.env.Admin), start, end,
			f.reward.Address(), f.token0.Address(), uint256.NewInt(1), f.rewards,
			[]common.Address{f.p.Address()})
		return err
	})
	return id, start, end
}

func (f *fixture) register(a *jtx.Account, id uint64) {
	f.env.T.Helper()
	f.env.MustRun(func() error { return f.r.Register(f.env.Ctx(a), id) })
}

// tradeAs routes an exact-input token0 swap through the competition router.
func (f *fixture) tradeAs(a *jtx.Account, amountIn *uint256.Int) {
	f.env.T.Helper()
	f.env.MustRun(func() error {
		_, err := f.r.SwapExactTokensForTokens(f.env.Ctx(a), amountIn, uint256.NewInt(0),
			[]common.Address{f.token0.Address(), f.token1.Address()}, a.Address, f.env.Now()+100)
		return err
	})
}

func (f *fixture) fund(a *jtx.Account, amount *uint256.Int) {
	f.env.T.Helper()
	f.env.MustRun(func() error {
		return f.token0.Transfer(f.env.Ctx(f.env.Admin), a.Address, amount)
	})
	f.env.Approve(a, f.token0, f.r.Address(), token.MaxUint256())
}

func TestCreateCompetitionValidation(t *testing.T) {
	f := newFixture(t)
	env := f.env
	now := env.Now()
	pairs := []common.Address{f.p.Address()}

	create := func(start, end uint64, competitionToken common.Address, rewards [4]*uint256.Int, pairs []common.Address) error {
		_, err := f.r.CreateCompetition(env.Ctx(env.Admin), start, end,
			f.reward.Address(), competitionToken, uint256.NewInt(1), rewards, pairs)
		return err
	}

	env.RunExpect(tcrouter.ErrInvalidRange, func() error {
		return create(now-1, now+100, f.token0.Address(), f.rewards, pairs)
	})
	env.RunExpect(tcrouter.ErrInvalidRange, func() error {
		return create(now+100, now+100, f.token0.Address(), f.rewards, pairs)
	})
	env.RunExpect(tcrouter.ErrRangeTooBig, func() error {
		return create(now+100, now+100+tcrouter.MaxDuration+1, f.token0.Address(), f.rewards, pairs)
	})

	var zeroed [4]*uint256.Int
	for i := range zeroed {
		zeroed[i] = uint256.NewInt(0)
	}
	env.RunExpect(tcrouter.ErrInvalidRewards, func() error {
		return create(now+100, now+200, f.token0.Address(), zeroed, pairs)
	})

	env.RunExpect(tcrouter.ErrNotACompetitionToken, func() error {
		return create(now+100, now+200, common.Address{}, f.rewards, pairs)
	})
	env.RunExpect(tcrouter.ErrPairsNotProvided, func() error {
		return create(now+100, now+200, f.token0.Address(), f.rewards, nil)
	})
	env.RunExpect(tcrouter.ErrPairDoesNotExist, func() error {
		return create(now+100, now+200, f.token0.Address(), f.rewards, []common.Address{f.token0.Address()})
	})
}

func TestCreateCompetitionStartsNow(t *testing.T) {
	f := newFixture(t)
	env := f.env
	now := env.Now()

	var id uint64
	env.MustRun(func() error {
		var err error
		id, err = f.r.CreateCompetition(env.Ctx(env.Admin), now, now+3600,
			f.reward.Address(), f.token0.Address(), uint256.NewInt(1), f.rewards,
			[]common.Address{f.p.Address()})
		return err
	})

	c, err := f.r.Competition(id)
	require.NoError(t, err)
	require.Equal(t, now, c.Start)

	// The window is open immediately.
	f.register(env.Other, id)
	f.fund(env.Other, jtx.ExpandTo18(5))
	f.tradeAs(env.Other, jtx.ExpandTo18(1))
	participants, err := f.r.Participants(id)
	require.NoError(t, err)
	jtx.RequireAmount(t, jtx.ExpandTo18(1), participants[0].Volume)
}

func TestCreateCompetitionRewardSchedules(t *testing.T) {
	f := newFixture(t)
	env := f.env
	now := env.Now()
	pairs := []common.Address{f.p.Address()}

	create := func(rewards [4]*uint256.Int) (id uint64) {
		env.MustRun(func() error {
			var err error
			id, err = f.r.CreateCompetition(env.Ctx(env.Admin), now+100, now+200,
				f.reward.Address(), f.token0.Address(), uint256.NewInt(1), rewards, pairs)
			return err
		})
		return id
	}

	// A zero tail tier is fine as long as some tier pays out.
	tailZero := [4]*uint256.Int{jtx.ExpandTo18(10), jtx.ExpandTo18(5), jtx.ExpandTo18(2), uint256.NewInt(0)}
	c, err := f.r.Competition(create(tailZero))
	require.NoError(t, err)
	jtx.RequireAmount(t, tcrouter.TotalFunding(tailZero), c.Vault.Balance())

	// Tier ordering is the creator's business.
	create([4]*uint256.Int{jtx.ExpandTo18(1), jtx.ExpandTo18(2), jtx.ExpandTo18(3), jtx.ExpandTo18(4)})
}

func TestCreateCompetitionEscrowsFunding(t *testing.T) {
	f := newFixture(t)
	before := f.reward.BalanceOf(f.env.Admin.Address)

	id, _, _ := f.create()
	require.Equal(t, uint64(0), id)
	require.Equal(t, 1, f.r.CompetitionsLength())

	c, err := f.r.Competition(id)
	require.NoError(t, err)
	jtx.RequireAmount(t, f.funding, c.TotalFunding)
	jtx.RequireAmount(t, f.funding, c.Vault.Balance())
	jtx.RequireBalance(t, f.reward, f.env.Admin.Address, new(uint256.Int).Sub(before, f.funding))

	ev := jtx.LastEventOfType[tcrouter.CompetitionCreated](t, f.env)
	require.Equal(t, id, ev.ID)
}

func TestCreateCompetitionFee(t *testing.T) {
	f := newFixture(t)
	env := f.env

	// Give the non-admin creator reward funding of its own.
	env.MustRun(func() error {
		return f.reward.Transfer(env.Ctx(env.Admin), env.Other.Address, f.funding)
	})
	env.Approve(env.Other, f.reward, f.r.Address(), token.MaxUint256())

	start, end := env.Now()+100, env.Now()+200
	create := func(value *uint256.Int) error {
		_, err := f.r.CreateCompetition(env.CtxValue(env.Other, value), start, end,
			f.reward.Address(), f.token0.Address(), uint256.NewInt(1), f.rewards,
			[]common.Address{f.p.Address()})
		return err
	}

	env.RunExpect(tcrouter.ErrInvalidFee, func() error { return create(uint256.NewInt(0)) })
	env.RunExpect(tcrouter.ErrInvalidFee, func() error {
		return create(new(uint256.Int).AddUint64(competitionFee, 1))
	})

	adminBefore := env.World.NativeBalanceOf(env.Admin.Address)
	env.MustRun(func() error { return create(competitionFee) })
	adminAfter := env.World.NativeBalanceOf(env.Admin.Address)
	jtx.RequireAmount(t, competitionFee, new(uint256.Int).Sub(adminAfter, adminBefore))

	c, err := f.r.Competition(0)
	require.NoError(t, err)
	require.Equal(t, env.Other.Address, c.Creator)
}

func TestCreateCompetitionRejectsDeflatingRewardToken(t *testing.T) {
	f := newFixture(t)
	env := f.env
	dtt := env.DeployDeflatingToken("Deflating Reward", "DRT", jtx.ExpandTo18(10_000), env.Admin.Address)
	env.Approve(env.Admin, dtt, f.r.Address(), token.MaxUint256())

	env.RunExpect(tcrouter.ErrFeeTokensForbidden, func() error {
		_, err := f.r.CreateCompetition(env.Ctx(env.Admin), env.Now()+100, env.Now()+200,
			dtt.Address(), f.token0.Address(), uint256.NewInt(1), f.rewards,
			[]common.Address{f.p.Address()})
		return err
	})
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	env := f.env

	env.RunExpect(tcrouter.ErrNoCompetition, func() error {
		return f.r.Register(env.Ctx(env.Other), 99)
	})

	id, _, _ := f.create()
	f.register(env.Other, id)

	registered, err := f.r.IsRegistered(id, env.Other.Address)
	require.NoError(t, err)
	require.True(t, registered)
	require.Equal(t, []uint64{id}, f.r.CompetitionsOf(env.Other.Address))

	ev := jtx.LastEventOfType[tcrouter.Registered](t, env)
	require.Equal(t, env.Other.Address, ev.User)

	env.RunExpect(tcrouter.ErrAlreadyRegistered, func() error {
		return f.r.Register(env.Ctx(env.Other), id)
	})
}

func TestRegisterCapacity(t *testing.T) {
	f := newFixture(t)
	id, _, _ := f.create()

	for i := 0; i < f.r.MaxParticipants(); i++ {
		f.register(jtx.NewAccount(fmt.Sprintf("trader-%d", i)), id)
	}
	f.env.RunExpect(tcrouter.ErrForbidden, func() error {
		return f.r.Register(f.env.Ctx(f.env.Other), id)
	})
}

func TestVolumeAccrual(t *testing.T) {
	f := newFixture(t)
	env := f.env
	id, _, end := f.create()
	f.register(env.Other, id)
	f.fund(env.Other, jtx.ExpandTo18(20))
	f.fund(env.Admin, jtx.ExpandTo18(20))

	// Trading before the window starts counts nothing.
	f.tradeAs(env.Other, jtx.ExpandTo18(1))
	volume := func() *uint256.Int {
		participants, err := f.r.Participants(id)
		require.NoError(t, err)
		require.Len(t, participants, 1)
		return participants[0].Volume
	}
	jtx.RequireAmount(t, uint256.NewInt(0), volume())

	env.Advance(101 * time.Second)

	// In the window, the competition-token leg accrues for the registered
	// trader.
	f.tradeAs(env.Other, jtx.ExpandTo18(1))
	jtx.RequireAmount(t, jtx.ExpandTo18(1), volume())

	// Unregistered traders accrue nothing.
	f.tradeAs(env.Admin, jtx.ExpandTo18(1))
	jtx.RequireAmount(t, jtx.ExpandTo18(1), volume())

	// After the window closes the hook goes quiet again.
	env.Advance(time.Duration(end-env.Now()+1) * time.Second)
	f.tradeAs(env.Other, jtx.ExpandTo18(1))
	jtx.RequireAmount(t, jtx.ExpandTo18(1), volume())
}

func TestVolumeBelowTrackingMinimum(t *testing.T) {
	f := newFixture(t)
	env := f.env

	start := env.Now() + 100
	var id uint64
	env.MustRun(func() error {
		var err error
		id, err = f.r.CreateCompetition(env.Ctx(env.Admin), start, start+3600,
			f.reward.Address(), f.token0.Address(), jtx.ExpandTo18(2), f.rewards,
			[]common.Address{f.p.Address()})
		return err
	})
	f.register(env.Other, id)
	f.fund(env.Other, jtx.ExpandTo18(20))
	env.Advance(101 * time.Second)

	f.tradeAs(env.Other, jtx.ExpandTo18(1))
	participants, err := f.r.Participants(id)
	require.NoError(t, err)
	jtx.RequireAmount(t, uint256.NewInt(0), participants[0].Volume)

	f.tradeAs(env.Other, jtx.ExpandTo18(2))
	participants, err = f.r.Participants(id)
	require.NoError(t, err)
	jtx.RequireAmount(t, jtx.ExpandTo18(2), participants[0].Volume)
}

func TestVolumeOnOutputLeg(t *testing.T) {
	f := newFixture(t)
	env := f.env

	// Track volume in token1, the output side of the fixture trade.
	start := env.Now() + 100
	var id uint64
	env.MustRun(func() error {
		var err error
		id, err = f.r.CreateCompetition(env.Ctx(env.Admin), start, start+3600,
			f.reward.Address(), f.token1.Address(), uint256.NewInt(1), f.rewards,
			[]common.Address{f.p.Address()})
		return err
	})
	f.register(env.Other, id)
	f.fund(env.Other, jtx.ExpandTo18(20))
	env.Advance(101 * time.Second)

	var out *uint256.Int
	env.MustRun(func() error {
		amounts, err := f.r.SwapExactTokensForTokens(env.Ctx(env.Other),
			jtx.ExpandTo18(1), uint256.NewInt(0),
			[]common.Address{f.token0.Address(), f.token1.Address()}, env.Other.Address, env.Now()+100)
		if err != nil {
			return err
		}
		out = amounts[1]
		return nil
	})
	participants, err := f.r.Participants(id)
	require.NoError(t, err)
	jtx.RequireAmount(t, out, participants[0].Volume)
}

func TestSetCompetitionFee(t *testing.T) {
	f := newFixture(t)
	env := f.env

	env.RunExpect(tcrouter.ErrForbidden, func() error {
		return f.r.SetCompetitionFee(env.Ctx(env.Other), uint256.NewInt(0))
	})
	env.MustRun(func() error {
		return f.r.SetCompetitionFee(env.Ctx(env.Admin), jtx.ExpandTo18(2))
	})
	jtx.RequireAmount(t, jtx.ExpandTo18(2), f.r.CompetitionFee())
}

func TestCompetitionViews(t *testing.T) {
	f := newFixture(t)
	id, _, _ := f.create()

	rewards, err := f.r.GetRewards(id)
	require.NoError(t, err)
	for i := range rewards {
		jtx.RequireAmount(t, f.rewards[i], rewards[i])
	}

	pairs, err := f.r.GetPairs(id)
	require.NoError(t, err)
	require.Equal(t, []common.Address{f.p.Address()}, pairs)
	require.Equal(t, []uint64{id}, f.r.GetCompetitionsOfPair(f.p.Address()))

	for i := 0; i < 5; i++ {
		f.register(jtx.NewAccount(fmt.Sprintf("trader-%d", i)), id)
	}
	page, err := f.r.ParticipantsPaginated(id, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	page, err = f.r.ParticipantsPaginated(id, 4, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	page, err = f.r.ParticipantsPaginated(id, 10, 2)
	require.NoError(t, err)
	require.Empty(t, page)
}
