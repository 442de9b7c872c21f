// Package testing provides test infrastructure for exchange testing.
//
// It builds deterministic in-memory exchange worlds: a manual clock, funded
// accounts with real secp256k1 keys (so permits can be signed), a factory
// with the default fee configuration, and fixture helpers for tokens, pairs,
// routers, and trading competitions.
//
// # Overview
//
// The testing package provides:
//   - TestEnv: a test world with factory, fee token, and funded accounts
//   - Account: deterministic test accounts with keypairs
//   - Amount helpers: ExpandTo18 and MustBig for 18-decimal fixtures
//   - Assertions: balance, reserve, and event checks
//
// # Basic Usage
//
//	func TestSwap(t *testing.T) {
//	    env := testing.NewTestEnv(t)
//	    token0, token1, pool := env.PairFixture()
//
//	    env.AddLiquidity(env.Admin, pool, token0, token1,
//	        testing.ExpandTo18(5), testing.ExpandTo18(10))
//
//	    env.MustRun(func() error {
//	        return pool.Swap(env.Ctx(env.Admin),
//	            uint256.NewInt(0), out, env.Admin.Address, nil)
//	    })
//	}
//
// Per-area test suites live in subdirectories (pool, listing, trade,
// competition, ledger) and import this package as jtx-style infrastructure.
package testing
