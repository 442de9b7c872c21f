// Package tcrouter extends the swap router with trading competitions:
// time-boxed contests where registered traders accrue volume in a designated
// token across chosen pairs and the top fifty split an escrowed reward pot.
package tcrouter

import (
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/factory"
	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/router"
	"github.com/lovelyswap/golovelyd/internal/core/state"
	"github.com/lovelyswap/golovelyd/internal/core/token"
)

// MaxDuration caps a competition window at thirty days.
const MaxDuration = 30 * 24 * 60 * 60

// DefaultMaxParticipants bounds registrations per competition.
const DefaultMaxParticipants = 500

// MaxWinners is the payout cutoff: only the top fifty ranks earn rewards.
const MaxWinners = 50

// tierSizes is how many ranks each reward tier spans: rank 0, ranks 1-4,
// ranks 5-14, ranks 15-49.
var tierSizes = [4]uint64{1, 4, 10, 35}

var (
	ErrNoCompetition        = errors.New("tcrouter: NO_COMPETITION")
	ErrInvalidRange         = errors.New("tcrouter: INVALID_RANGE")
	ErrRangeTooBig          = errors.New("tcrouter: RANGE_TOO_BIG")
	ErrInvalidRewards       = errors.New("tcrouter: INVALID_REWARDS")
	ErrNotACompetitionToken = errors.New("tcrouter: NOT_A_COMPETITION_TOKEN")
	ErrPairsNotProvided     = errors.New("tcrouter: PAIRS_NOT_PROVIDED")
	ErrPairDoesNotExist     = errors.New("tcrouter: PAIR_DOES_NOT_EXIST")
	ErrInvalidFee           = errors.New("tcrouter: INVALID_FEE")
	ErrFeeTokensForbidden   = errors.New("tcrouter: FEE_TOKENS_FORBIDDEN")
	ErrAlreadyRegistered    = errors.New("tcrouter: ALREADY_REGISTERED")
	ErrForbidden            = errors.New("tcrouter: FORBIDDEN")
	ErrNotEnded             = errors.New("tcrouter: NOT_ENDED")
	ErrAlreadySorted        = errors.New("tcrouter: ALREADY_SORTED")
	ErrWinnersNotSelected   = errors.New("tcrouter: WINNERS_NOT_SELECTED")
	ErrNotAWinner           = errors.New("tcrouter: NOT_A_WINNER")
	ErrAlreadyClaimed       = errors.New("tcrouter: ALREADY_CLAIMED")
	ErrAlreadyWithdrawn     = errors.New("tcrouter: ALREADY_WITHDRAWN")
	ErrNothingToWithdraw    = errors.New("tcrouter: NOTHING_TO_WITHDRAW")
)

type (
	CompetitionCreated struct{ ID uint64 }
	ReadyForPayouts    struct{ ID uint64 }
	Registered         struct {
		ID   uint64
		User common.Address
	}
	RewardClaimed struct {
		ID     uint64
		User   common.Address
		Amount *uint256.Int
	}
)

// Participant is one registered trader and the volume they accrued.
type Participant struct {
	Addr    common.Address
	Volume  *uint256.Int
	Claimed bool
}

// Competition is one contest: a time window, the token volume is measured
// in, the pairs it is measured on, and a four-tier reward schedule escrowed
// in a dedicated vault.
type Competition struct {
	ID               uint64
	Creator          common.Address
	Start, End       uint64
	RewardToken      common.Address
	CompetitionToken common.Address
	MinVolumeToTrack *uint256.Int
	Rewards          [4]*uint256.Int
	Pairs            []common.Address

	Vault        *RewardsVault
	TotalFunding *uint256.Int

	participants []*Participant
	indexOf      map[common.Address]int

	Sorted    bool
	Withdrawn bool
}

// TCRouter is a swap router that additionally runs trading competitions. It
// hooks its own swap pipeline, so trades routed through it count toward any
// active competition tracking the traded pair.
type TCRouter struct {
	*router.Router

	world   *state.World
	factory *factory.Factory

	competitions []*Competition
	byPair       map[common.Address][]uint64
	byUser       map[common.Address][]uint64

	competitionFee  *uint256.Int // native fee for non-admin creators
	maxParticipants int
}

// New deploys a competition router on top of a fresh swap router.
func New(w *state.World, f *factory.Factory, wnative *token.Wrapped, competitionFee *uint256.Int) (*TCRouter, error) {
	base, err := router.New(w, f, wnative)
	if err != nil {
		return nil, err
	}
	r := &TCRouter{
		Router:          base,
		world:           w,
		factory:         f,
		byPair:          make(map[common.Address][]uint64),
		byUser:          make(map[common.Address][]uint64),
		competitionFee:  new(uint256.Int).Set(competitionFee),
		maxParticipants: DefaultMaxParticipants,
	}
	base.SetTradeHook(r)
	return r, nil
}

func (r *TCRouter) CompetitionFee() *uint256.Int { return new(uint256.Int).Set(r.competitionFee) }
func (r *TCRouter) MaxParticipants() int         { return r.maxParticipants }

// SetCompetitionFee updates the native creation fee. Exchange admin only.
func (r *TCRouter) SetCompetitionFee(ctx *state.Context, fee *uint256.Int) error {
	if ctx.Caller != r.factory.Admin() {
		return ErrForbidden
	}
	prev := r.competitionFee
	r.competitionFee = new(uint256.Int).Set(fee)
	r.world.Record(func() { r.competitionFee = prev })
	return nil
}

// TotalFunding returns the escrow required for a reward schedule: every rank
// of every tier paid in full.
func TotalFunding(rewards [4]*uint256.Int) *uint256.Int {
	total := new(uint256.Int)
	for i, reward := range rewards {
		total.Add(total, new(uint256.Int).Mul(reward, uint256.NewInt(tierSizes[i])))
	}
	return total
}

// CreateCompetition opens a contest. The creator escrows the full reward
// funding up front; non-admin creators additionally attach the native
// competition fee, which is forwarded to the exchange admin. At least one
// reward tier must pay out, and fee-on-transfer reward tokens are rejected
// since the vault would come up short.
func (r *TCRouter) CreateCompetition(ctx *state.Context, start, end uint64, rewardToken, competitionToken common.Address, minVolumeToTrack *uint256.Int, rewards [4]*uint256.Int, pairs []common.Address) (uint64, error) {
	now := ctx.Now()
	if start < now || end <= start {
		return 0, ErrInvalidRange
	}
	if end-start > MaxDuration {
		return 0, ErrRangeTooBig
	}
	allZero := true
	for i := range rewards {
		if rewards[i] == nil {
			rewards[i] = new(uint256.Int)
		}
		if !rewards[i].IsZero() {
			allZero = false
		}
	}
	if allZero {
		return 0, ErrInvalidRewards
	}
	if competitionToken == (common.Address{}) {
		return 0, ErrNotACompetitionToken
	}
	if len(pairs) == 0 {
		return 0, ErrPairsNotProvided
	}
	for _, pairAddr := range pairs {
		p, ok := r.world.Contract(pairAddr).(*pair.Pair)
		if !ok || r.factory.GetPair(p.Token0(), p.Token1()) == nil {
			return 0, ErrPairDoesNotExist
		}
	}

	if ctx.Caller != r.factory.Admin() {
		if !ctx.Value.Eq(r.competitionFee) {
			return 0, ErrInvalidFee
		}
		if err := r.world.NativeTransfer(ctx.Caller, r.factory.Admin(), ctx.Value); err != nil {
			return 0, err
		}
	}

	rewardERC20, ok := r.world.Contract(rewardToken).(pair.ERC20)
	if !ok {
		return 0, ErrNotACompetitionToken
	}
	vault, err := NewRewardsVault(r.world, rewardERC20, r.Address())
	if err != nil {
		return 0, err
	}
	funding := TotalFunding(rewards)
	before := vault.Balance()
	if err := rewardERC20.TransferFrom(state.NewContext(r.world, r.Address()), ctx.Caller, vault.Address(), funding); err != nil {
		return 0, err
	}
	// A reward token that shaves transfers would leave the vault underfunded.
	if !new(uint256.Int).Sub(vault.Balance(), before).Eq(funding) {
		return 0, ErrFeeTokensForbidden
	}

	id := uint64(len(r.competitions))
	c := &Competition{
		ID:               id,
		Creator:          ctx.Caller,
		Start:            start,
		End:              end,
		RewardToken:      rewardToken,
		CompetitionToken: competitionToken,
		MinVolumeToTrack: new(uint256.Int).Set(minVolumeToTrack),
		Pairs:            append([]common.Address(nil), pairs...),
		Vault:            vault,
		TotalFunding:     funding,
		indexOf:          make(map[common.Address]int),
	}
	for i := range rewards {
		c.Rewards[i] = new(uint256.Int).Set(rewards[i])
	}
	r.competitions = append(r.competitions, c)
	r.world.Record(func() { r.competitions = r.competitions[:id] })
	for _, pairAddr := range pairs {
		pairAddr := pairAddr
		r.byPair[pairAddr] = append(r.byPair[pairAddr], id)
		r.world.Record(func() {
			ids := r.byPair[pairAddr]
			r.byPair[pairAddr] = ids[:len(ids)-1]
		})
	}
	r.world.Emit(CompetitionCreated{ID: id})
	return id, nil
}

func (r *TCRouter) competition(id uint64) (*Competition, error) {
	if id >= uint64(len(r.competitions)) {
		return nil, ErrNoCompetition
	}
	return r.competitions[id], nil
}

// Register enters the caller into a competition with zero volume. Capacity
// is bounded by maxParticipants.
func (r *TCRouter) Register(ctx *state.Context, id uint64) error {
	c, err := r.competition(id)
	if err != nil {
		return err
	}
	if _, ok := c.indexOf[ctx.Caller]; ok {
		return ErrAlreadyRegistered
	}
	if len(c.participants) >= r.maxParticipants {
		return ErrForbidden
	}
	user := ctx.Caller
	c.indexOf[user] = len(c.participants)
	c.participants = append(c.participants, &Participant{Addr: user, Volume: uint256.NewInt(0)})
	r.byUser[user] = append(r.byUser[user], id)
	r.world.Record(func() {
		delete(c.indexOf, user)
		c.participants = c.participants[:len(c.participants)-1]
		ids := r.byUser[user]
		r.byUser[user] = ids[:len(ids)-1]
	})
	r.world.Emit(Registered{ID: id, User: user})
	return nil
}

// OnTrade accrues competition volume for every swap hop routed through this
// router: the trader must be registered, the pair tracked, the competition
// in its window, and the competition-token leg at or above the tracking
// minimum.
func (r *TCRouter) OnTrade(ctx *state.Context, trader common.Address, p *pair.Pair, tokenIn, tokenOut common.Address, amountIn, amountOut *uint256.Int) {
	now := ctx.Now()
	for _, id := range r.byPair[p.Address()] {
		c := r.competitions[id]
		// The tracking window is [start, end).
		if now < c.Start || now >= c.End {
			continue
		}
		idx, ok := c.indexOf[trader]
		if !ok {
			continue
		}
		var amount *uint256.Int
		switch c.CompetitionToken {
		case tokenIn:
			amount = amountIn
		case tokenOut:
			amount = amountOut
		default:
			continue
		}
		if amount.Lt(c.MinVolumeToTrack) {
			continue
		}
		participant := c.participants[idx]
		prev := participant.Volume
		participant.Volume = new(uint256.Int).Add(prev, amount)
		r.world.Record(func() { participant.Volume = prev })
	}
}

// SumUpCompetition ranks participants by volume, descending and stable, and
// opens the competition for claims.
func (r *TCRouter) SumUpCompetition(ctx *state.Context, id uint64) error {
	c, err := r.competition(id)
	if err != nil {
		return err
	}
	if ctx.Now() < c.End {
		return ErrNotEnded
	}
	if c.Sorted {
		return ErrAlreadySorted
	}
	prevOrder := append([]*Participant(nil), c.participants...)
	sort.SliceStable(c.participants, func(i, j int) bool {
		return c.participants[i].Volume.Gt(c.participants[j].Volume)
	})
	for i, participant := range c.participants {
		c.indexOf[participant.Addr] = i
	}
	c.Sorted = true
	r.world.Record(func() {
		c.participants = prevOrder
		for i, participant := range prevOrder {
			c.indexOf[participant.Addr] = i
		}
		c.Sorted = false
	})
	r.world.Emit(ReadyForPayouts{ID: id})
	return nil
}

// rewardForRank returns the tier reward for a rank, or nil past the cutoff.
func (c *Competition) rewardForRank(rank int) *uint256.Int {
	bound := 0
	for tier, size := range tierSizes {
		bound += int(size)
		if rank < bound {
			return c.Rewards[tier]
		}
	}
	return nil
}

func (c *Competition) winners() int {
	if len(c.participants) < MaxWinners {
		return len(c.participants)
	}
	return MaxWinners
}

// ClaimByID pays the reward for a final rank to the participant holding it.
func (r *TCRouter) ClaimByID(ctx *state.Context, id uint64, rank int) error {
	c, err := r.competition(id)
	if err != nil {
		return err
	}
	if !c.Sorted {
		return ErrWinnersNotSelected
	}
	if rank < 0 || rank >= c.winners() {
		return ErrNotAWinner
	}
	participant := c.participants[rank]
	if participant.Claimed {
		return ErrAlreadyClaimed
	}
	reward := c.rewardForRank(rank)
	participant.Claimed = true
	r.world.Record(func() { participant.Claimed = false })
	if err := c.Vault.Withdraw(state.NewContext(r.world, r.Address()), participant.Addr, reward); err != nil {
		return err
	}
	r.world.Emit(RewardClaimed{ID: id, User: participant.Addr, Amount: reward})
	return nil
}

// ClaimByAddress pays the reward earned by addr, if it finished in the money.
func (r *TCRouter) ClaimByAddress(ctx *state.Context, id uint64, addr common.Address) error {
	c, err := r.competition(id)
	if err != nil {
		return err
	}
	if !c.Sorted {
		return ErrWinnersNotSelected
	}
	rank, ok := c.indexOf[addr]
	if !ok {
		return ErrNotAWinner
	}
	return r.ClaimByID(ctx, id, rank)
}

// WithdrawRemainings returns the unearned part of the funding to the
// creator: whatever the final ranking left unassigned because fewer than
// fifty traders competed.
func (r *TCRouter) WithdrawRemainings(ctx *state.Context, id uint64) error {
	c, err := r.competition(id)
	if err != nil {
		return err
	}
	if ctx.Now() < c.End {
		return ErrNotEnded
	}
	if c.Withdrawn {
		return ErrAlreadyWithdrawn
	}
	earned := new(uint256.Int)
	for rank := 0; rank < c.winners(); rank++ {
		earned.Add(earned, c.rewardForRank(rank))
	}
	remaining := new(uint256.Int).Sub(c.TotalFunding, earned)
	if remaining.IsZero() {
		return ErrNothingToWithdraw
	}
	c.Withdrawn = true
	r.world.Record(func() { c.Withdrawn = false })
	return c.Vault.Withdraw(state.NewContext(r.world, r.Address()), c.Creator, remaining)
}

// CleanUpCompetition detaches an ended competition from the pair index so
// the trade hook stops scanning it.
func (r *TCRouter) CleanUpCompetition(ctx *state.Context, id uint64) error {
	c, err := r.competition(id)
	if err != nil {
		return err
	}
	if ctx.Now() < c.End {
		return ErrNotEnded
	}
	for _, pairAddr := range c.Pairs {
		pairAddr := pairAddr
		ids := r.byPair[pairAddr]
		for i, candidate := range ids {
			if candidate != id {
				continue
			}
			prev := append([]uint64(nil), ids...)
			r.byPair[pairAddr] = append(ids[:i:i], ids[i+1:]...)
			r.world.Record(func() { r.byPair[pairAddr] = prev })
			break
		}
	}
	return nil
}

// CompetitionsLength returns how many competitions have been created.
func (r *TCRouter) CompetitionsLength() int { return len(r.competitions) }

// Competition returns a competition by id.
func (r *TCRouter) Competition(id uint64) (*Competition, error) {
	return r.competition(id)
}

// GetRewards returns the four-tier reward schedule of a competition.
func (r *TCRouter) GetRewards(id uint64) ([4]*uint256.Int, error) {
	c, err := r.competition(id)
	if err != nil {
		return [4]*uint256.Int{}, err
	}
	var out [4]*uint256.Int
	for i := range c.Rewards {
		out[i] = new(uint256.Int).Set(c.Rewards[i])
	}
	return out, nil
}

// GetPairs returns the pairs a competition tracks.
func (r *TCRouter) GetPairs(id uint64) ([]common.Address, error) {
	c, err := r.competition(id)
	if err != nil {
		return nil, err
	}
	return append([]common.Address(nil), c.Pairs...), nil
}

// GetCompetitionsOfPair returns the competitions currently indexed on a pair.
func (r *TCRouter) GetCompetitionsOfPair(pairAddr common.Address) []uint64 {
	return append([]uint64(nil), r.byPair[pairAddr]...)
}

// CompetitionsOf returns every competition a user registered for.
func (r *TCRouter) CompetitionsOf(user common.Address) []uint64 {
	return append([]uint64(nil), r.byUser[user]...)
}

// IsRegistered reports whether user entered a competition.
func (r *TCRouter) IsRegistered(id uint64, user common.Address) (bool, error) {
	c, err := r.competition(id)
	if err != nil {
		return false, err
	}
	_, ok := c.indexOf[user]
	return ok, nil
}

// RewardForRank returns the tier reward a final rank earns, or nil when the
// rank is past the payout cutoff.
func (r *TCRouter) RewardForRank(id uint64, rank int) (*uint256.Int, error) {
	c, err := r.competition(id)
	if err != nil {
		return nil, err
	}
	if rank < 0 || rank >= c.winners() {
		return nil, nil
	}
	return new(uint256.Int).Set(c.rewardForRank(rank)), nil
}

// Participants returns the participant list in its current order: entry
// order before SumUpCompetition, final ranking after.
func (r *TCRouter) Participants(id uint64) ([]Participant, error) {
	c, err := r.competition(id)
	if err != nil {
		return nil, err
	}
	out := make([]Participant, len(c.participants))
	for i, participant := range c.participants {
		out[i] = Participant{Addr: participant.Addr, Volume: new(uint256.Int).Set(participant.Volume), Claimed: participant.Claimed}
	}
	return out, nil
}

// ParticipantsPaginated returns a window of the participant list.
func (r *TCRouter) ParticipantsPaginated(id uint64, offset, limit int) ([]Participant, error) {
	all, err := r.Participants(id)
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
