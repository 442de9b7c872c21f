// Package state holds the exchange world: native balances, deployed
// contracts, the clock, and the event log. Every public operation runs
// through World.Run, which gives it all-or-nothing semantics: on error the
// journal unwinds every write and drops every event emitted inside the call.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrAlreadyRegistered  = errors.New("state: contract already registered at address")
	ErrInsufficientNative = errors.New("state: insufficient native balance")
	ErrReentrantRun       = errors.New("state: nested Run is not allowed")
)

// Clock abstracts the time source so tests can drive it manually.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }

// Contract is anything deployed into the world at an address.
type Contract interface {
	Address() common.Address
}

// World is the single-owner state store. All mutation goes through contract
// entry points which in turn journal their writes here; callers outside an
// operation only ever observe fully committed state.
type World struct {
	mu sync.RWMutex

	chainID uint64
	clock   Clock

	native    map[common.Address]*uint256.Int
	contracts map[common.Address]Contract

	events  []Event
	journal *Journal

	// deploy counter for address derivation of non-deterministic deploys
	deploySeq uint64
}

// NewWorld creates an empty world on the given clock.
func NewWorld(chainID uint64, clock Clock) *World {
	if clock == nil {
		clock = SystemClock()
	}
	return &World{
		chainID:   chainID,
		clock:     clock,
		native:    make(map[common.Address]*uint256.Int),
		contracts: make(map[common.Address]Contract),
		journal:   newJournal(),
	}
}

// ChainID is bound into permit domain separators.
func (w *World) ChainID() uint64 { return w.chainID }

// Now returns the current time as unix seconds. All contract logic works on
// second granularity.
func (w *World) Now() uint64 { return uint64(w.clock.Now().Unix()) }

// Run executes op atomically: if op returns an error, every journaled write
// and every event emitted during op is rolled back before Run returns.
// Operations are strictly serialized; Run must not be re-entered.
func (w *World) Run(op func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.journal.active {
		return ErrReentrantRun
	}
	w.journal.active = true
	eventMark := len(w.events)
	err := op()
	if err != nil {
		w.journal.unwind()
		w.events = w.events[:eventMark]
	} else {
		w.journal.discard()
	}
	w.journal.active = false
	return err
}

// Record registers an undo action for the in-flight operation. Writes made
// outside Run (tests building fixtures) are committed immediately.
func (w *World) Record(undo func()) {
	if w.journal.active {
		w.journal.append(undo)
	}
}

// Emit appends an event to the world log. Events emitted inside a failed
// operation are discarded together with its writes.
func (w *World) Emit(ev Event) {
	w.events = append(w.events, ev)
}

// Events returns the committed event log.
func (w *World) Events() []Event { return w.events }

// Register deploys a contract into the world.
func (w *World) Register(c Contract) error {
	addr := c.Address()
	if _, ok := w.contracts[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, addr)
	}
	w.Record(func() { delete(w.contracts, addr) })
	w.contracts[addr] = c
	return nil
}

// Contract resolves the contract deployed at addr, or nil.
func (w *World) Contract(addr common.Address) Contract {
	return w.contracts[addr]
}

// NewAddress derives a fresh deployment address. Deterministic in deploy
// order, so a replayed genesis produces identical addresses.
func (w *World) NewAddress() common.Address {
	w.deploySeq++
	seq := w.deploySeq
	w.Record(func() { w.deploySeq = seq - 1 })
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(seq >> (8 * (7 - i)))
	}
	return common.BytesToAddress(crypto.Keccak256([]byte("lovelyd/deploy"), buf[:]))
}

// NativeBalanceOf returns the native-currency balance of addr.
func (w *World) NativeBalanceOf(addr common.Address) *uint256.Int {
	if b, ok := w.native[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

func (w *World) setNative(addr common.Address, v *uint256.Int) {
	prev, had := w.native[addr]
	w.Record(func() {
		if had {
			w.native[addr] = prev
		} else {
			delete(w.native, addr)
		}
	})
	w.native[addr] = new(uint256.Int).Set(v)
}

// NativeMint credits native currency out of thin air (genesis and tests).
func (w *World) NativeMint(addr common.Address, amount *uint256.Int) {
	w.setNative(addr, new(uint256.Int).Add(w.NativeBalanceOf(addr), amount))
}

// NativeTransfer moves native currency between addresses.
func (w *World) NativeTransfer(from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	balance := w.NativeBalanceOf(from)
	if balance.Lt(amount) {
		return ErrInsufficientNative
	}
	w.setNative(from, new(uint256.Int).Sub(balance, amount))
	w.setNative(to, new(uint256.Int).Add(w.NativeBalanceOf(to), amount))
	return nil
}
