// Package checkpoint persists periodic snapshots of the exchange engine:
// pair reserves, share supplies, and the event-log height they were taken
// at. Snapshots are msgpack-encoded into a pebble store and the most recent
// decodes are kept in an LRU cache.
package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ugorji/go/codec"
)

var (
	ErrClosed   = errors.New("checkpoint: store is closed")
	ErrNotFound = errors.New("checkpoint: not found")
)

// PairState is one pair's position at snapshot time. Amounts are decimal
// strings so they survive encoding without precision loss.
type PairState struct {
	Pair        string `codec:"pair" json:"pair"`
	Token0      string `codec:"token0" json:"token0"`
	Token1      string `codec:"token1" json:"token1"`
	Reserve0    string `codec:"reserve0" json:"reserve0"`
	Reserve1    string `codec:"reserve1" json:"reserve1"`
	TotalSupply string `codec:"total_supply" json:"total_supply"`
}

// Snapshot is one engine checkpoint.
type Snapshot struct {
	// Sequence is the event-log height the snapshot was taken at.
	Sequence uint64 `codec:"sequence" json:"sequence"`
	// Timestamp is the engine clock at snapshot time, unix seconds.
	Timestamp uint64      `codec:"timestamp" json:"timestamp"`
	Pairs     []PairState `codec:"pairs" json:"pairs"`
}

// Store is a pebble-backed snapshot store keyed by sequence.
type Store struct {
	mu     sync.Mutex
	db     *pebble.DB
	cache  *lru.Cache[uint64, *Snapshot]
	handle codec.MsgpackHandle

	latest uint64
	closed bool
}

// Open opens or creates the checkpoint store at path. cacheSize bounds the
// decoded snapshots held in memory.
func Open(path string, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[uint64, *Snapshot](cacheSize)
	if err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store at %s: %w", path, err)
	}
	s := &Store{db: db, cache: cache}
	if err := s.loadLatest(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadLatest() error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()
	if iter.Last() && iter.Valid() {
		s.latest = binary.BigEndian.Uint64(iter.Key())
	}
	return iter.Error()
}

func key(sequence uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], sequence)
	return k[:]
}

// Put stores a snapshot under its sequence.
func (s *Store) Put(snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	var buf []byte
	if err := codec.NewEncoderBytes(&buf, &s.handle).Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode snapshot %d: %w", snapshot.Sequence, err)
	}
	if err := s.db.Set(key(snapshot.Sequence), buf, pebble.Sync); err != nil {
		return err
	}
	s.cache.Add(snapshot.Sequence, snapshot)
	if snapshot.Sequence > s.latest {
		s.latest = snapshot.Sequence
	}
	return nil
}

// Get returns the snapshot stored at a sequence.
func (s *Store) Get(sequence uint64) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if snapshot, ok := s.cache.Get(sequence); ok {
		return snapshot, nil
	}

	val, closer, err := s.db.Get(key(sequence))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var snapshot Snapshot
	if err := codec.NewDecoderBytes(val, &s.handle).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %d: %w", sequence, err)
	}
	s.cache.Add(sequence, &snapshot)
	return &snapshot, nil
}

// Latest returns the most recent snapshot.
func (s *Store) Latest() (*Snapshot, error) {
	s.mu.Lock()
	latest := s.latest
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if latest == 0 {
		// Sequence zero may be a real snapshot; probe it before giving up.
		snapshot, err := s.Get(0)
		if err != nil {
			return nil, ErrNotFound
		}
		return snapshot, nil
	}
	return s.Get(latest)
}

// Close flushes and closes the underlying store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
