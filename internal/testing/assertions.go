package testing

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/state"
)

// RequireBalance asserts that owner holds exactly expected of the token.
func RequireBalance(t *testing.T, tok pair.ERC20, owner common.Address, expected *uint256.Int) {
	t.Helper()
	actual := tok.BalanceOf(owner)
	require.True(t, actual.Eq(expected),
		"balance mismatch for %s on token %s: expected %s, got %s",
		owner, tok.Address(), expected.Dec(), actual.Dec())
}

// RequireNativeBalance asserts an account's native-currency balance.
func RequireNativeBalance(t *testing.T, env *TestEnv, owner common.Address, expected *uint256.Int) {
	t.Helper()
	actual := env.World.NativeBalanceOf(owner)
	require.True(t, actual.Eq(expected),
		"native balance mismatch for %s: expected %s, got %s",
		owner, expected.Dec(), actual.Dec())
}

// RequireReserves asserts a pair's tracked reserves.
func RequireReserves(t *testing.T, p *pair.Pair, reserve0, reserve1 *uint256.Int) {
	t.Helper()
	r0, r1, _ := p.Reserves()
	require.True(t, r0.Eq(reserve0), "reserve0 mismatch: expected %s, got %s", reserve0.Dec(), r0.Dec())
	require.True(t, r1.Eq(reserve1), "reserve1 mismatch: expected %s, got %s", reserve1.Dec(), r1.Dec())
}

// RequireAmount asserts two amounts are equal, with readable decimal output.
func RequireAmount(t *testing.T, expected, actual *uint256.Int) {
	t.Helper()
	require.True(t, actual.Eq(expected), "amount mismatch: expected %s, got %s", expected.Dec(), actual.Dec())
}

// EventsOfType filters the committed event log down to one payload type.
func EventsOfType[T any](env *TestEnv) []T {
	return state.EventsOfType[T](env.World)
}

// LastEventOfType returns the most recent event of the given payload type,
// failing the test if none was emitted.
func LastEventOfType[T any](t *testing.T, env *TestEnv) T {
	t.Helper()
	events := EventsOfType[T](env)
	require.NotEmpty(t, events, "no event of type %T in world log", *new(T))
	return events[len(events)-1]
}
