// Package token implements the fungible-token ledger consumed by pools and
// routers: balances, allowances, and the signed-approval (permit) flow.
package token

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/state"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrOverflow              = errors.New("token: arithmetic overflow")
	ErrExpired               = errors.New("token: EXPIRED")
	ErrInvalidSignature      = errors.New("token: INVALID_SIGNATURE")
)

// Transfer is emitted on every balance movement, including mints (from the
// zero address) and burns (to the zero address).
type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// Approval mirrors the standard approval event.
type Approval struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

// Token is an in-world fungible-token ledger. The share token of every pair
// embeds one, so it also carries the permit machinery (permit.go).
type Token struct {
	world *state.World
	addr  common.Address

	name     string
	symbol   string
	decimals uint8

	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	nonces      map[common.Address]uint64

	// Fee burned from every transfer, in basis points. Zero for ordinary
	// tokens; the deflating test fixture uses 100 (1%).
	transferFeeBps uint64

	domainSeparator common.Hash
}

// New deploys a token ledger into the world.
func New(w *state.World, name, symbol string, decimals uint8) (*Token, error) {
	t := NewLedger(w, w.NewAddress(), name, symbol, decimals)
	if err := w.Register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewLedger builds a ledger at a caller-chosen address without registering
// it as a contract. Pairs embed one at the derived pair address and register
// the pair itself there.
func NewLedger(w *state.World, addr common.Address, name, symbol string, decimals uint8) *Token {
	t := &Token{
		world:       w,
		addr:        addr,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: uint256.NewInt(0),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		nonces:      make(map[common.Address]uint64),
	}
	t.domainSeparator = domainSeparator(name, w.ChainID(), addr)
	return t
}

// NewDeflating deploys a token that burns feeBps of every transfer, used to
// exercise the fee-on-transfer router paths and competition funding checks.
func NewDeflating(w *state.World, name, symbol string, feeBps uint64) (*Token, error) {
	t, err := New(w, name, symbol, 18)
	if err != nil {
		return nil, err
	}
	t.transferFeeBps = feeBps
	return t, nil
}

func (t *Token) Address() common.Address { return t.addr }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

// TotalSupply returns the outstanding supply.
func (t *Token) TotalSupply() *uint256.Int {
	return new(uint256.Int).Set(t.totalSupply)
}

// BalanceOf returns the balance of owner.
func (t *Token) BalanceOf(owner common.Address) *uint256.Int {
	if b, ok := t.balances[owner]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

// Allowance returns the remaining approved amount of owner for spender.
func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(uint256.Int).Set(a)
		}
	}
	return uint256.NewInt(0)
}

// Nonce returns the next permit nonce of owner.
func (t *Token) Nonce(owner common.Address) uint64 { return t.nonces[owner] }

func (t *Token) setBalance(owner common.Address, v *uint256.Int) {
	prev, had := t.balances[owner]
	t.world.Record(func() {
		if had {
			t.balances[owner] = prev
		} else {
			delete(t.balances, owner)
		}
	})
	t.balances[owner] = new(uint256.Int).Set(v)
}

func (t *Token) setAllowance(owner, spender common.Address, v *uint256.Int) {
	m, hadMap := t.allowances[owner]
	if !hadMap {
		m = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = m
		t.world.Record(func() { delete(t.allowances, owner) })
	}
	prev, had := m[spender]
	t.world.Record(func() {
		if had {
			m[spender] = prev
		} else {
			delete(m, spender)
		}
	})
	m[spender] = new(uint256.Int).Set(v)
}

func (t *Token) setTotalSupply(v *uint256.Int) {
	prev := t.totalSupply
	t.world.Record(func() { t.totalSupply = prev })
	t.totalSupply = new(uint256.Int).Set(v)
}

// Mint credits amount to owner. Test fixtures and the pair's share
// accounting are the only callers.
func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount)
	if overflow {
		return ErrOverflow
	}
	t.setTotalSupply(supply)
	t.setBalance(to, new(uint256.Int).Add(t.BalanceOf(to), amount))
	t.world.Emit(Transfer{Token: t.addr, From: common.Address{}, To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// Burn destroys amount held by owner.
func (t *Token) Burn(from common.Address, amount *uint256.Int) error {
	balance := t.BalanceOf(from)
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	t.setBalance(from, balance.Sub(balance, amount))
	t.setTotalSupply(new(uint256.Int).Sub(t.totalSupply, amount))
	t.world.Emit(Transfer{Token: t.addr, From: from, To: common.Address{}, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// Transfer moves amount from the caller to dst.
func (t *Token) Transfer(ctx *state.Context, to common.Address, amount *uint256.Int) error {
	return t.move(ctx.Caller, to, amount)
}

// TransferFrom spends the caller's allowance on owner's balance. The
// max-uint256 allowance is treated as unlimited and never decremented.
func (t *Token) TransferFrom(ctx *state.Context, from, to common.Address, amount *uint256.Int) error {
	allowance := t.Allowance(from, ctx.Caller)
	if !isMax(allowance) {
		if allowance.Lt(amount) {
			return ErrInsufficientAllowance
		}
		t.setAllowance(from, ctx.Caller, allowance.Sub(allowance, amount))
	}
	return t.move(from, to, amount)
}

// Approve sets the caller's allowance for spender.
func (t *Token) Approve(ctx *state.Context, spender common.Address, amount *uint256.Int) error {
	t.setAllowance(ctx.Caller, spender, amount)
	t.world.Emit(Approval{Token: t.addr, Owner: ctx.Caller, Spender: spender, Amount: new(uint256.Int).Set(amount)})
	return nil
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) error {
	balance := t.BalanceOf(from)
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	received := new(uint256.Int).Set(amount)
	if t.transferFeeBps > 0 {
		fee := new(uint256.Int).Mul(amount, uint256.NewInt(t.transferFeeBps))
		fee.Div(fee, uint256.NewInt(10000))
		received.Sub(received, fee)
		t.setTotalSupply(new(uint256.Int).Sub(t.totalSupply, fee))
	}
	t.setBalance(from, new(uint256.Int).Sub(balance, amount))
	t.setBalance(to, new(uint256.Int).Add(t.BalanceOf(to), received))
	t.world.Emit(Transfer{Token: t.addr, From: from, To: to, Amount: received})
	return nil
}

func isMax(v *uint256.Int) bool {
	return v[0] == ^uint64(0) && v[1] == ^uint64(0) && v[2] == ^uint64(0) && v[3] == ^uint64(0)
}

// MaxUint256 is the unlimited-allowance sentinel.
func MaxUint256() *uint256.Int {
	max := new(uint256.Int)
	max[0], max[1], max[2], max[3] = ^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)
	return max
}
