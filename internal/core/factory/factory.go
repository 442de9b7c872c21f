// Package factory creates and indexes liquidity pairs and gates them behind a
// token allowlist: anyone may list a token, non-admins pay a listing fee, and
// freshly listed tokens can sit in a pending window during which only their
// lister may open pairs for them.
package factory

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/state"
)

// MaxPendingPeriod caps both how far in the future a token listing may
// activate and how far ahead a pair's trading start may be scheduled.
const MaxPendingPeriod = 7 * 24 * 60 * 60

// MaxFee caps each trading-fee component at 20/10000 (0.2%).
const MaxFee = 20

var (
	ErrValidationFailed     = errors.New("factory: VALIDATION_FAILED")
	ErrForbidden            = errors.New("factory: FORBIDDEN")
	ErrZeroAddress          = errors.New("factory: ZERO_ADDRESS")
	ErrAlreadyWhitelisted   = errors.New("factory: ALREADY_WHITELISTED")
	ErrInvalidPendingPeriod = errors.New("factory: INVALID_PENDING_PERIOD")
	ErrIdenticalAddresses   = errors.New("factory: IDENTICAL_ADDRESSES")
	ErrTokenANotWhitelisted = errors.New("factory: TOKEN_A_NOT_WHITELISTED")
	ErrTokenBNotWhitelisted = errors.New("factory: TOKEN_B_NOT_WHITELISTED")
	ErrPairExists           = errors.New("factory: PAIR_EXISTS")
	ErrInvalidActiveFrom    = errors.New("factory: INVALID_ACTIVE_FROM")
)

// AllowlistEntry records who listed a token and when it becomes tradeable.
// An ActiveFrom in the future marks the listing as pending.
type AllowlistEntry struct {
	Token      common.Address
	Creator    common.Address
	ActiveFrom uint64
}

type (
	PairCreated struct {
		Token0, Token1 common.Address
		Pair           common.Address
		Index          int
	}
	TokenAllowed struct {
		Token      common.Address
		Creator    common.Address
		ActiveFrom uint64
	}
)

// Factory deploys pairs at deterministic addresses and owns the exchange
// parameters: the protocol fee sink, the trading-fee split, and the listing
// fee charged to non-admin listers.
type Factory struct {
	world *state.World
	addr  common.Address

	admin      common.Address // the fee-to setter; also exempt from fees
	feeTo      common.Address
	feeToken   common.Address
	listingFee *uint256.Int
	ownerFee   uint64
	lpFee      uint64

	allowlist     map[common.Address]*AllowlistEntry
	allowedTokens []common.Address

	pairs    map[[2]common.Address]*pair.Pair
	allPairs []*pair.Pair
}

// New deploys a factory. The admin and fee token must be set and each fee
// component is capped at MaxFee.
func New(w *state.World, admin, feeToken common.Address, listingFee *uint256.Int, ownerFee, lpFee uint64) (*Factory, error) {
	if admin == (common.Address{}) || feeToken == (common.Address{}) {
		return nil, ErrValidationFailed
	}
	if ownerFee > MaxFee || lpFee > MaxFee {
		return nil, ErrValidationFailed
	}
	f := &Factory{
		world:      w,
		addr:       w.NewAddress(),
		admin:      admin,
		feeToken:   feeToken,
		listingFee: new(uint256.Int).Set(listingFee),
		ownerFee:   ownerFee,
		lpFee:      lpFee,
		allowlist:  make(map[common.Address]*AllowlistEntry),
		pairs:      make(map[[2]common.Address]*pair.Pair),
	}
	if err := w.Register(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Factory) Address() common.Address { return f.addr }
func (f *Factory) Admin() common.Address   { return f.admin }
func (f *Factory) FeeTo() common.Address   { return f.feeTo }
func (f *Factory) FeeToken() common.Address {
	return f.feeToken
}
func (f *Factory) ListingFee() *uint256.Int { return new(uint256.Int).Set(f.listingFee) }

// TradingFees returns the protocol and liquidity-provider components of the
// swap fee, on the 10000 scale.
func (f *Factory) TradingFees() (ownerFee, lpFee uint64) { return f.ownerFee, f.lpFee }

// Allowlist returns the listing entry for token, or nil.
func (f *Factory) Allowlist(token common.Address) *AllowlistEntry {
	if e, ok := f.allowlist[token]; ok {
		cp := *e
		return &cp
	}
	return nil
}

// AllowedTokens returns every listed token in listing order.
func (f *Factory) AllowedTokens() []common.Address {
	out := make([]common.Address, len(f.allowedTokens))
	copy(out, f.allowedTokens)
	return out
}

func (f *Factory) AllowedTokensLength() int { return len(f.allowedTokens) }

// GetPair returns the pair for two tokens in either order, or nil.
func (f *Factory) GetPair(tokenA, tokenB common.Address) *pair.Pair {
	token0, token1 := SortTokens(tokenA, tokenB)
	return f.pairs[[2]common.Address{token0, token1}]
}

// AllPairs returns every pair in creation order.
func (f *Factory) AllPairs() []*pair.Pair {
	out := make([]*pair.Pair, len(f.allPairs))
	copy(out, f.allPairs)
	return out
}

func (f *Factory) AllPairsLength() int { return len(f.allPairs) }

// AllowToken lists a token for trading. A non-admin caller pays the listing
// fee in the fee token. activeFrom may defer activation by at most
// MaxPendingPeriod; zero activates immediately.
func (f *Factory) AllowToken(ctx *state.Context, tokenAddr common.Address, activeFrom uint64) error {
	if tokenAddr == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, ok := f.allowlist[tokenAddr]; ok {
		return ErrAlreadyWhitelisted
	}
	now := ctx.Now()
	if activeFrom > now+MaxPendingPeriod {
		return ErrInvalidPendingPeriod
	}
	if ctx.Caller != f.admin && !f.listingFee.IsZero() {
		feeToken, err := f.erc20(f.feeToken)
		if err != nil {
			return err
		}
		sink := f.feeTo
		if sink == (common.Address{}) {
			sink = f.admin
		}
		if err := feeToken.TransferFrom(state.NewContext(f.world, f.addr), ctx.Caller, sink, f.listingFee); err != nil {
			return err
		}
	}
	entry := &AllowlistEntry{Token: tokenAddr, Creator: ctx.Caller, ActiveFrom: activeFrom}
	f.allowlist[tokenAddr] = entry
	f.allowedTokens = append(f.allowedTokens, tokenAddr)
	f.world.Record(func() {
		delete(f.allowlist, tokenAddr)
		f.allowedTokens = f.allowedTokens[:len(f.allowedTokens)-1]
	})
	f.world.Emit(TokenAllowed{Token: tokenAddr, Creator: ctx.Caller, ActiveFrom: activeFrom})
	return nil
}

// CreatePair deploys the pool for two listed tokens. While a token's listing
// is still pending, only its lister may open pairs with it. The pair's own
// activation time must cover both listings' activation times and may not be
// scheduled further out than MaxPendingPeriod.
func (f *Factory) CreatePair(ctx *state.Context, tokenA, tokenB common.Address, activeFrom uint64) (*pair.Pair, error) {
	if tokenA == tokenB {
		return nil, ErrIdenticalAddresses
	}
	entryA, ok := f.allowlist[tokenA]
	if !ok {
		return nil, ErrTokenANotWhitelisted
	}
	entryB, ok := f.allowlist[tokenB]
	if !ok {
		return nil, ErrTokenBNotWhitelisted
	}
	token0Addr, token1Addr := SortTokens(tokenA, tokenB)
	key := [2]common.Address{token0Addr, token1Addr}
	if _, ok := f.pairs[key]; ok {
		return nil, ErrPairExists
	}

	now := ctx.Now()
	for _, e := range []*AllowlistEntry{entryA, entryB} {
		if e.ActiveFrom > now && ctx.Caller != e.Creator {
			return nil, ErrForbidden
		}
	}

	effective := activeFrom
	if effective == 0 {
		effective = now
	} else if ctx.Caller != f.admin && effective < now {
		return nil, ErrInvalidActiveFrom
	}
	if effective < entryA.ActiveFrom || effective < entryB.ActiveFrom {
		return nil, ErrInvalidActiveFrom
	}
	if effective > now+MaxPendingPeriod {
		return nil, ErrInvalidActiveFrom
	}

	token0, err := f.erc20(token0Addr)
	if err != nil {
		return nil, ErrTokenANotWhitelisted
	}
	token1, err := f.erc20(token1Addr)
	if err != nil {
		return nil, ErrTokenBNotWhitelisted
	}

	p, err := pair.New(f.world, PairAddress(f.addr, token0Addr, token1Addr), f)
	if err != nil {
		return nil, err
	}
	if err := p.Initialize(state.NewContext(f.world, f.addr), token0, token1, effective); err != nil {
		return nil, err
	}
	f.pairs[key] = p
	f.allPairs = append(f.allPairs, p)
	f.world.Record(func() {
		delete(f.pairs, key)
		f.allPairs = f.allPairs[:len(f.allPairs)-1]
	})
	f.world.Emit(PairCreated{Token0: token0Addr, Token1: token1Addr, Pair: p.Address(), Index: len(f.allPairs)})
	return p, nil
}

// SetFeeTo points protocol-fee share minting at a new sink. The zero address
// disables fee collection.
func (f *Factory) SetFeeTo(ctx *state.Context, feeTo common.Address) error {
	if ctx.Caller != f.admin {
		return ErrForbidden
	}
	prev := f.feeTo
	f.feeTo = feeTo
	f.world.Record(func() { f.feeTo = prev })
	return nil
}

// SetAdmin hands the exchange over to a new admin.
func (f *Factory) SetAdmin(ctx *state.Context, admin common.Address) error {
	if ctx.Caller != f.admin {
		return ErrForbidden
	}
	if admin == (common.Address{}) {
		return ErrValidationFailed
	}
	prev := f.admin
	f.admin = admin
	f.world.Record(func() { f.admin = prev })
	return nil
}

// SetListingFee adjusts the fee charged for listing a token.
func (f *Factory) SetListingFee(ctx *state.Context, fee *uint256.Int) error {
	if ctx.Caller != f.admin {
		return ErrForbidden
	}
	prev := f.listingFee
	f.listingFee = new(uint256.Int).Set(fee)
	f.world.Record(func() { f.listingFee = prev })
	return nil
}

// SetFeeToken swaps the token listing fees are charged in.
func (f *Factory) SetFeeToken(ctx *state.Context, feeToken common.Address) error {
	if ctx.Caller != f.admin {
		return ErrForbidden
	}
	if feeToken == (common.Address{}) {
		return ErrValidationFailed
	}
	prev := f.feeToken
	f.feeToken = feeToken
	f.world.Record(func() { f.feeToken = prev })
	return nil
}

// SetTradingFees updates the swap-fee split. Each component is capped at
// MaxFee; existing pairs pick the change up on their next swap.
func (f *Factory) SetTradingFees(ctx *state.Context, ownerFee, lpFee uint64) error {
	if ctx.Caller != f.admin {
		return ErrForbidden
	}
	if ownerFee > MaxFee || lpFee > MaxFee {
		return ErrValidationFailed
	}
	prevOwner, prevLP := f.ownerFee, f.lpFee
	f.ownerFee, f.lpFee = ownerFee, lpFee
	f.world.Record(func() { f.ownerFee, f.lpFee = prevOwner, prevLP })
	return nil
}

func (f *Factory) erc20(addr common.Address) (pair.ERC20, error) {
	t, ok := f.world.Contract(addr).(pair.ERC20)
	if !ok {
		return nil, ErrZeroAddress
	}
	return t, nil
}
