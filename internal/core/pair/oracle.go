package pair

import (
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/state"
)

// maxReserve is the largest value a reserve may hold, 2^112-1. Reserves are
// stored at that width so both fit alongside a 32-bit timestamp in one slot
// of the canonical layout, and the price accumulators below rely on it.
var maxReserve = func() *uint256.Int {
	m := new(uint256.Int).Lsh(uint256.NewInt(1), 112)
	return m.SubUint64(m, 1)
}()

// uq112Price returns (numerator << 112) / denominator, the UQ112x112
// fixed-point price of one reserve in terms of the other.
func uq112Price(numerator, denominator *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Lsh(numerator, 112)
	return q.Div(q, denominator)
}

// update advances the cumulative price oracles and snaps the reserves to the
// given balances. The timestamp is tracked mod 2^32; elapsed-time arithmetic
// and the accumulators themselves are expected to overflow and wrap.
func (p *Pair) update(ctx *state.Context, balance0, balance1 *uint256.Int) error {
	if balance0.Gt(maxReserve) || balance1.Gt(maxReserve) {
		return ErrOverflow
	}
	blockTimestamp := uint32(ctx.Now())
	elapsed := blockTimestamp - p.blockTimestampLast
	if elapsed > 0 && !p.reserve0.IsZero() && !p.reserve1.IsZero() {
		dt := uint256.NewInt(uint64(elapsed))
		acc0 := new(uint256.Int).Mul(uq112Price(p.reserve1, p.reserve0), dt)
		acc0.Add(acc0, p.price0CumulativeLast)
		acc1 := new(uint256.Int).Mul(uq112Price(p.reserve0, p.reserve1), dt)
		acc1.Add(acc1, p.price1CumulativeLast)
		p.setCumulativePrices(acc0, acc1)
	}
	p.setReserves(new(uint256.Int).Set(balance0), new(uint256.Int).Set(balance1), blockTimestamp)
	p.world.Emit(SyncEvent{Pair: p.Address(), Reserve0: new(uint256.Int).Set(balance0), Reserve1: new(uint256.Int).Set(balance1)})
	return nil
}

func (p *Pair) setCumulativePrices(acc0, acc1 *uint256.Int) {
	prev0, prev1 := p.price0CumulativeLast, p.price1CumulativeLast
	p.price0CumulativeLast = acc0
	p.price1CumulativeLast = acc1
	p.world.Record(func() {
		p.price0CumulativeLast = prev0
		p.price1CumulativeLast = prev1
	})
}

func (p *Pair) setReserves(r0, r1 *uint256.Int, ts uint32) {
	prev0, prev1, prevTS := p.reserve0, p.reserve1, p.blockTimestampLast
	p.reserve0 = r0
	p.reserve1 = r1
	p.blockTimestampLast = ts
	p.world.Record(func() {
		p.reserve0 = prev0
		p.reserve1 = prev1
		p.blockTimestampLast = prevTS
	})
}
