// Package history is the relational trade archive: every committed swap and
// every settled competition is written here after commit, and the RPC layer
// reads it back out. The store is an embedded sqlite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("history: not found")

// Swap is one executed swap hop.
type Swap struct {
	ID         int64  `json:"id"`
	Pair       string `json:"pair"`
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
	Timestamp  uint64 `json:"timestamp"`
}

// CompetitionResult is one winner's final standing in a settled competition.
type CompetitionResult struct {
	CompetitionID uint64 `json:"competition_id"`
	Rank          int    `json:"rank"`
	Trader        string `json:"trader"`
	Volume        string `json:"volume"`
	Reward        string `json:"reward"`
}

// Store is the sqlite-backed history archive.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS swaps (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	pair        TEXT NOT NULL,
	sender      TEXT NOT NULL,
	recipient   TEXT NOT NULL,
	amount0_in  TEXT NOT NULL,
	amount1_in  TEXT NOT NULL,
	amount0_out TEXT NOT NULL,
	amount1_out TEXT NOT NULL,
	timestamp   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_swaps_pair ON swaps(pair, id);

CREATE TABLE IF NOT EXISTS competition_results (
	competition_id INTEGER NOT NULL,
	rank           INTEGER NOT NULL,
	trader         TEXT NOT NULL,
	volume         TEXT NOT NULL,
	reward         TEXT NOT NULL,
	PRIMARY KEY (competition_id, rank)
);
`

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database at %s: %w", path, err)
	}
	// sqlite handles one writer at a time; serialize through a single conn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordSwap appends one swap row.
func (s *Store) RecordSwap(ctx context.Context, swap *Swap) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO swaps (pair, sender, recipient, amount0_in, amount1_in, amount0_out, amount1_out, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		swap.Pair, swap.Sender, swap.Recipient,
		swap.Amount0In, swap.Amount1In, swap.Amount0Out, swap.Amount1Out,
		swap.Timestamp)
	return err
}

// SwapsByPair returns the most recent swaps on a pair, newest first.
func (s *Store) SwapsByPair(ctx context.Context, pair string, limit int) ([]Swap, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pair, sender, recipient, amount0_in, amount1_in, amount0_out, amount1_out, timestamp
		 FROM swaps WHERE pair = ? ORDER BY id DESC LIMIT ?`, pair, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swaps []Swap
	for rows.Next() {
		var swap Swap
		if err := rows.Scan(&swap.ID, &swap.Pair, &swap.Sender, &swap.Recipient,
			&swap.Amount0In, &swap.Amount1In, &swap.Amount0Out, &swap.Amount1Out,
			&swap.Timestamp); err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, rows.Err()
}

// RecordCompetitionResults writes a settled competition's final standings in
// one transaction.
func (s *Store) RecordCompetitionResults(ctx context.Context, results []CompetitionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, result := range results {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO competition_results (competition_id, rank, trader, volume, reward)
			 VALUES (?, ?, ?, ?, ?)`,
			result.CompetitionID, result.Rank, result.Trader, result.Volume, result.Reward); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// CompetitionResults returns a competition's standings ordered by rank.
func (s *Store) CompetitionResults(ctx context.Context, competitionID uint64) ([]CompetitionResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT competition_id, rank, trader, volume, reward
		 FROM competition_results WHERE competition_id = ? ORDER BY rank`, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CompetitionResult
	for rows.Next() {
		var result CompetitionResult
		if err := rows.Scan(&result.CompetitionID, &result.Rank, &result.Trader,
			&result.Volume, &result.Reward); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
