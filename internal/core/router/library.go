package router

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/factory"
	"github.com/lovelyswap/golovelyd/internal/core/pair"
)

var (
	ErrInsufficientAmount       = errors.New("router: INSUFFICIENT_AMOUNT")
	ErrInsufficientInputAmount  = errors.New("router: INSUFFICIENT_INPUT_AMOUNT")
	ErrInsufficientOutputAmount = errors.New("router: INSUFFICIENT_OUTPUT_AMOUNT")
	ErrInsufficientLiquidity    = errors.New("router: INSUFFICIENT_LIQUIDITY")
	ErrInvalidPath              = errors.New("router: INVALID_PATH")
	ErrPairNotExist             = errors.New("router: PAIR_NOT_EXIST")
)

// Quote converts amountA into the equivalent amount of the other asset at the
// current reserve ratio, with no fee applied.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA.IsZero() {
		return nil, ErrInsufficientAmount
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	amountB := new(uint256.Int).Mul(amountA, reserveB)
	return amountB.Div(amountB, reserveA), nil
}

// GetAmountOut prices an exact input against a pool, charging totalFee on the
// 10000 scale: out = in*(10000-fee)*rOut / (rIn*10000 + in*(10000-fee)).
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, totalFee uint64) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	amountInWithFee := new(uint256.Int).Mul(amountIn, uint256.NewInt(pair.FeeDenominator-totalFee))
	numerator := new(uint256.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(uint256.Int).Mul(reserveIn, uint256.NewInt(pair.FeeDenominator))
	denominator.Add(denominator, amountInWithFee)
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn prices an exact output: the minimum input that buys amountOut,
// rounded up.
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int, totalFee uint64) (*uint256.Int, error) {
	if amountOut.IsZero() {
		return nil, ErrInsufficientOutputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	numerator := new(uint256.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, uint256.NewInt(pair.FeeDenominator))
	denominator := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, uint256.NewInt(pair.FeeDenominator-totalFee))
	amountIn := numerator.Div(numerator, denominator)
	return amountIn.AddUint64(amountIn, 1), nil
}

// pairFor resolves the deployed pair for two tokens.
func (r *Router) pairFor(tokenA, tokenB common.Address) (*pair.Pair, error) {
	p := r.factory.GetPair(tokenA, tokenB)
	if p == nil {
		return nil, ErrPairNotExist
	}
	return p, nil
}

// reservesFor returns the pair's reserves ordered so reserveA belongs to
// tokenA.
func (r *Router) reservesFor(tokenA, tokenB common.Address) (reserveA, reserveB *uint256.Int, err error) {
	p, err := r.pairFor(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}
	reserve0, reserve1, _ := p.Reserves()
	token0, _ := factory.SortTokens(tokenA, tokenB)
	if tokenA == token0 {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// GetAmountsOut walks the path forward, pricing an exact input hop by hop.
func (r *Router) GetAmountsOut(amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	ownerFee, lpFee := r.factory.TradingFees()
	amounts := make([]*uint256.Int, len(path))
	amounts[0] = new(uint256.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := r.reservesFor(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		amounts[i+1], err = GetAmountOut(amounts[i], reserveIn, reserveOut, ownerFee+lpFee)
		if err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// GetAmountsIn walks the path backward, pricing an exact output hop by hop.
func (r *Router) GetAmountsIn(amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	ownerFee, lpFee := r.factory.TradingFees()
	amounts := make([]*uint256.Int, len(path))
	amounts[len(path)-1] = new(uint256.Int).Set(amountOut)
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := r.reservesFor(path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		amounts[i-1], err = GetAmountIn(amounts[i], reserveIn, reserveOut, ownerFee+lpFee)
		if err != nil {
			return nil, err
		}
	}
	return amounts, nil
}
