// Package pair implements the constant-product liquidity pool. A pair holds
// reserves of two tokens, issues LP share tokens against deposits, and prices
// swaps so that the fee-adjusted product of its reserves never decreases.
package pair

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/state"
	"github.com/lovelyswap/golovelyd/internal/core/token"
)

// MinimumLiquidity is the share amount permanently locked to the zero address
// on the first deposit so the pool can never be fully drained.
const MinimumLiquidity = 1000

// FeeDenominator is the scale trading fees are quoted in: a fee of 30 is
// 30/10000 = 0.3%.
const FeeDenominator = 10000

var (
	ErrForbidden                   = errors.New("pair: FORBIDDEN")
	ErrLocked                      = errors.New("pair: LOCKED")
	ErrNotActive                   = errors.New("pair: NOT_ACTIVE")
	ErrOverflow                    = errors.New("pair: OVERFLOW")
	ErrInsufficientLiquidityMinted = errors.New("pair: INSUFFICIENT_LIQUIDITY_MINTED")
	ErrInsufficientLiquidityBurned = errors.New("pair: INSUFFICIENT_LIQUIDITY_BURNED")
	ErrInsufficientOutputAmount    = errors.New("pair: INSUFFICIENT_OUTPUT_AMOUNT")
	ErrInsufficientInputAmount     = errors.New("pair: INSUFFICIENT_INPUT_AMOUNT")
	ErrInsufficientLiquidity       = errors.New("pair: INSUFFICIENT_LIQUIDITY")
	ErrInvalidTo                   = errors.New("pair: INVALID_TO")
	ErrK                           = errors.New("pair: K")
)

// FeeSource is the view of the factory a pair needs: where protocol fees go,
// how the trading fee is split, and who the exchange admin is.
type FeeSource interface {
	Address() common.Address
	FeeTo() common.Address
	TradingFees() (ownerFee, lpFee uint64)
	Admin() common.Address
}

// SwapCallee receives the optimistic transfer during a flash swap and must
// leave the pair paid for before returning.
type SwapCallee interface {
	OnSwap(sender common.Address, amount0Out, amount1Out *uint256.Int, data []byte) error
}

// ERC20 is the token surface pairs and routers move funds through. Both plain
// tokens and the wrapped-native token satisfy it, as do pair shares.
type ERC20 interface {
	Address() common.Address
	BalanceOf(owner common.Address) *uint256.Int
	Transfer(ctx *state.Context, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx *state.Context, from, to common.Address, amount *uint256.Int) error
}

// Event payloads emitted by a pair.
type (
	MintEvent struct {
		Pair             common.Address
		Sender           common.Address
		Amount0, Amount1 *uint256.Int
	}
	BurnEvent struct {
		Pair             common.Address
		Sender           common.Address
		Amount0, Amount1 *uint256.Int
		To               common.Address
	}
	SwapEvent struct {
		Pair                   common.Address
		Sender                 common.Address
		Amount0In, Amount1In   *uint256.Int
		Amount0Out, Amount1Out *uint256.Int
		To                     common.Address
	}
	SyncEvent struct {
		Pair               common.Address
		Reserve0, Reserve1 *uint256.Int
	}
)

// Pair is a two-token pool. It embeds its own LP share ledger, so the pair
// address doubles as the share token address.
type Pair struct {
	*token.Token

	world   *state.World
	factory FeeSource

	token0 ERC20
	token1 ERC20

	reserve0           *uint256.Int // capped at 2^112-1
	reserve1           *uint256.Int
	blockTimestampLast uint32

	price0CumulativeLast *uint256.Int
	price1CumulativeLast *uint256.Int
	kLast                *uint256.Int

	activeFrom uint64

	locked bool
}

// New builds an uninitialized pair at addr and registers it with the world.
// Only the factory calls this; Initialize binds the token endpoints.
func New(w *state.World, addr common.Address, factory FeeSource) (*Pair, error) {
	p := &Pair{
		Token:                token.NewLedger(w, addr, "Lovely Swap", "LS", 18),
		world:                w,
		factory:              factory,
		reserve0:             uint256.NewInt(0),
		reserve1:             uint256.NewInt(0),
		price0CumulativeLast: uint256.NewInt(0),
		price1CumulativeLast: uint256.NewInt(0),
		kLast:                uint256.NewInt(0),
	}
	if err := w.Register(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Initialize binds the pair to its token endpoints and activation time.
// Callable once, by the factory only.
func (p *Pair) Initialize(ctx *state.Context, token0, token1 ERC20, activeFrom uint64) error {
	if ctx.Caller != p.factory.Address() || p.token0 != nil {
		return ErrForbidden
	}
	p.token0 = token0
	p.token1 = token1
	p.activeFrom = activeFrom
	return nil
}

func (p *Pair) Token0() common.Address { return p.token0.Address() }
func (p *Pair) Token1() common.Address { return p.token1.Address() }
func (p *Pair) Factory() common.Address {
	return p.factory.Address()
}

// ActiveFrom returns the unix time trading opens. Zero means open at creation.
func (p *Pair) ActiveFrom() uint64 { return p.activeFrom }

// Reserves returns the tracked reserves and the timestamp of the last update.
func (p *Pair) Reserves() (reserve0, reserve1 *uint256.Int, blockTimestampLast uint32) {
	return new(uint256.Int).Set(p.reserve0), new(uint256.Int).Set(p.reserve1), p.blockTimestampLast
}

// Price0CumulativeLast returns the accumulated token1/token0 price, in
// UQ112x112 seconds, for TWAP oracles.
func (p *Pair) Price0CumulativeLast() *uint256.Int {
	return new(uint256.Int).Set(p.price0CumulativeLast)
}

// Price1CumulativeLast returns the accumulated token0/token1 price.
func (p *Pair) Price1CumulativeLast() *uint256.Int {
	return new(uint256.Int).Set(p.price1CumulativeLast)
}

// KLast returns the reserve product as of the last liquidity event, used to
// meter protocol-fee share growth.
func (p *Pair) KLast() *uint256.Int { return new(uint256.Int).Set(p.kLast) }

func (p *Pair) enter() error {
	if p.locked {
		return ErrLocked
	}
	p.locked = true
	return nil
}

func (p *Pair) exit() { p.locked = false }

// ctx with the pair as caller, for moving pool-held tokens.
func (p *Pair) selfCtx() *state.Context {
	return state.NewContext(p.world, p.Address())
}

// pendingAmounts returns how much each balance exceeds the tracked reserve.
func pendingAmount(balance, reserve *uint256.Int) *uint256.Int {
	if balance.Lt(reserve) {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(balance, reserve)
}

// Mint issues LP shares to `to` against tokens already transferred into the
// pair. Before the activation time only deposits credited to the exchange
// admin go through.
func (p *Pair) Mint(ctx *state.Context, to common.Address) (*uint256.Int, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.exit()

	if ctx.Now() < p.activeFrom && to != p.factory.Admin() {
		return nil, ErrNotActive
	}

	balance0 := p.token0.BalanceOf(p.Address())
	balance1 := p.token1.BalanceOf(p.Address())
	amount0 := pendingAmount(balance0, p.reserve0)
	amount1 := pendingAmount(balance1, p.reserve1)

	feeOn, err := p.mintFee(ctx)
	if err != nil {
		return nil, err
	}

	total := p.TotalSupply()
	liquidity := new(uint256.Int)
	if total.IsZero() {
		liquidity.Mul(amount0, amount1)
		liquidity.Sqrt(liquidity)
		if liquidity.CmpUint64(MinimumLiquidity) <= 0 {
			return nil, ErrInsufficientLiquidityMinted
		}
		liquidity.SubUint64(liquidity, MinimumLiquidity)
		if err := p.Token.Mint(common.Address{}, uint256.NewInt(MinimumLiquidity)); err != nil {
			return nil, err
		}
	} else {
		l0 := new(uint256.Int).Mul(amount0, total)
		l0.Div(l0, p.reserve0)
		l1 := new(uint256.Int).Mul(amount1, total)
		l1.Div(l1, p.reserve1)
		if l0.Lt(l1) {
			liquidity.Set(l0)
		} else {
			liquidity.Set(l1)
		}
	}
	if liquidity.IsZero() {
		return nil, ErrInsufficientLiquidityMinted
	}
	if err := p.Token.Mint(to, liquidity); err != nil {
		return nil, err
	}

	if err := p.update(ctx, balance0, balance1); err != nil {
		return nil, err
	}
	if feeOn {
		p.setKLast(new(uint256.Int).Mul(p.reserve0, p.reserve1))
	}
	p.world.Emit(MintEvent{Pair: p.Address(), Sender: ctx.Caller, Amount0: amount0, Amount1: amount1})
	return liquidity, nil
}

// Burn redeems the LP shares held by the pair for a proportional cut of both
// reserves, paid to `to`.
func (p *Pair) Burn(ctx *state.Context, to common.Address) (amount0, amount1 *uint256.Int, err error) {
	if err := p.enter(); err != nil {
		return nil, nil, err
	}
	defer p.exit()

	balance0 := p.token0.BalanceOf(p.Address())
	balance1 := p.token1.BalanceOf(p.Address())
	liquidity := p.BalanceOf(p.Address())

	feeOn, err := p.mintFee(ctx)
	if err != nil {
		return nil, nil, err
	}

	total := p.TotalSupply()
	amount0 = new(uint256.Int).Mul(liquidity, balance0)
	amount0.Div(amount0, total)
	amount1 = new(uint256.Int).Mul(liquidity, balance1)
	amount1.Div(amount1, total)
	if amount0.IsZero() || amount1.IsZero() {
		return nil, nil, ErrInsufficientLiquidityBurned
	}
	if err := p.Token.Burn(p.Address(), liquidity); err != nil {
		return nil, nil, err
	}
	self := p.selfCtx()
	if err := p.token0.Transfer(self, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.token1.Transfer(self, to, amount1); err != nil {
		return nil, nil, err
	}

	balance0 = p.token0.BalanceOf(p.Address())
	balance1 = p.token1.BalanceOf(p.Address())
	if err := p.update(ctx, balance0, balance1); err != nil {
		return nil, nil, err
	}
	if feeOn {
		p.setKLast(new(uint256.Int).Mul(p.reserve0, p.reserve1))
	}
	p.world.Emit(BurnEvent{Pair: p.Address(), Sender: ctx.Caller, Amount0: amount0, Amount1: amount1, To: to})
	return amount0, amount1, nil
}

// Swap sends the requested output amounts to `to` optimistically, invokes the
// flash-swap callback when data is non-empty, and then verifies the pool got
// paid: the fee-adjusted reserve product must not have shrunk.
func (p *Pair) Swap(ctx *state.Context, amount0Out, amount1Out *uint256.Int, to common.Address, data []byte) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if ctx.Now() < p.activeFrom {
		return ErrNotActive
	}
	if amount0Out.IsZero() && amount1Out.IsZero() {
		return ErrInsufficientOutputAmount
	}
	if !amount0Out.Lt(p.reserve0) || !amount1Out.Lt(p.reserve1) {
		return ErrInsufficientLiquidity
	}
	if to == p.token0.Address() || to == p.token1.Address() {
		return ErrInvalidTo
	}

	self := p.selfCtx()
	if !amount0Out.IsZero() {
		if err := p.token0.Transfer(self, to, amount0Out); err != nil {
			return err
		}
	}
	if !amount1Out.IsZero() {
		if err := p.token1.Transfer(self, to, amount1Out); err != nil {
			return err
		}
	}
	if len(data) > 0 {
		callee, ok := p.world.Contract(to).(SwapCallee)
		if !ok {
			return ErrInvalidTo
		}
		if err := callee.OnSwap(ctx.Caller, amount0Out, amount1Out, data); err != nil {
			return err
		}
	}

	balance0 := p.token0.BalanceOf(p.Address())
	balance1 := p.token1.BalanceOf(p.Address())
	amount0In := swapAmountIn(balance0, p.reserve0, amount0Out)
	amount1In := swapAmountIn(balance1, p.reserve1, amount1Out)
	if amount0In.IsZero() && amount1In.IsZero() {
		return ErrInsufficientInputAmount
	}

	ownerFee, lpFee := p.factory.TradingFees()
	totalFee := ownerFee + lpFee
	adjusted0 := adjustedBalance(balance0, amount0In, totalFee)
	adjusted1 := adjustedBalance(balance1, amount1In, totalFee)
	kFloor := new(uint256.Int).Mul(p.reserve0, p.reserve1)
	kFloor.Mul(kFloor, uint256.NewInt(FeeDenominator*FeeDenominator))
	if new(uint256.Int).Mul(adjusted0, adjusted1).Lt(kFloor) {
		return ErrK
	}

	if err := p.update(ctx, balance0, balance1); err != nil {
		return err
	}
	p.world.Emit(SwapEvent{
		Pair:       p.Address(),
		Sender:     ctx.Caller,
		Amount0In:  amount0In,
		Amount1In:  amount1In,
		Amount0Out: amount0Out,
		Amount1Out: amount1Out,
		To:         to,
	})
	return nil
}

// amountIn = balance - (reserve - amountOut) when positive, else zero.
func swapAmountIn(balance, reserve, amountOut *uint256.Int) *uint256.Int {
	prior := new(uint256.Int).Sub(reserve, amountOut)
	return pendingAmount(balance, prior)
}

// adjustedBalance = balance*FeeDenominator - amountIn*fee.
func adjustedBalance(balance, amountIn *uint256.Int, fee uint64) *uint256.Int {
	adj := new(uint256.Int).Mul(balance, uint256.NewInt(FeeDenominator))
	return adj.Sub(adj, new(uint256.Int).Mul(amountIn, uint256.NewInt(fee)))
}

// Skim pays out any balance in excess of the reserves to `to`.
func (p *Pair) Skim(ctx *state.Context, to common.Address) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	self := p.selfCtx()
	excess0 := pendingAmount(p.token0.BalanceOf(p.Address()), p.reserve0)
	excess1 := pendingAmount(p.token1.BalanceOf(p.Address()), p.reserve1)
	if err := p.token0.Transfer(self, to, excess0); err != nil {
		return err
	}
	return p.token1.Transfer(self, to, excess1)
}

// Sync force-matches the reserves to the current balances.
func (p *Pair) Sync(ctx *state.Context) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()
	return p.update(ctx, p.token0.BalanceOf(p.Address()), p.token1.BalanceOf(p.Address()))
}

// mintFee issues protocol-fee shares to the fee collector for the pool growth
// since the last liquidity event. Returns whether fee collection is on.
func (p *Pair) mintFee(ctx *state.Context) (bool, error) {
	feeTo := p.factory.FeeTo()
	feeOn := feeTo != (common.Address{})
	if !feeOn {
		if !p.kLast.IsZero() {
			p.setKLast(uint256.NewInt(0))
		}
		return false, nil
	}
	if p.kLast.IsZero() {
		return true, nil
	}
	ownerFee, lpFee := p.factory.TradingFees()
	if ownerFee == 0 {
		return true, nil
	}
	rootK := new(uint256.Int).Mul(p.reserve0, p.reserve1)
	rootK.Sqrt(rootK)
	rootKLast := new(uint256.Int).Sqrt(p.kLast)
	if !rootK.Gt(rootKLast) {
		return true, nil
	}
	// The protocol keeps ownerFee/(ownerFee+lpFee) of the fee growth; with the
	// default 10/20 split the dilution denominator is 2*rootK + rootKLast.
	numerator := new(uint256.Int).Sub(rootK, rootKLast)
	numerator.Mul(numerator, p.TotalSupply())
	share := (ownerFee + lpFee) / ownerFee
	denominator := new(uint256.Int).Mul(rootK, uint256.NewInt(share-1))
	denominator.Add(denominator, rootKLast)
	liquidity := numerator.Div(numerator, denominator)
	if !liquidity.IsZero() {
		if err := p.Token.Mint(feeTo, liquidity); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (p *Pair) setKLast(v *uint256.Int) {
	prev := p.kLast
	p.kLast = v
	p.world.Record(func() { p.kLast = prev })
}
