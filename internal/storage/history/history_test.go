package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSwapHistory(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	pair := "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordSwap(ctx, &Swap{
			Pair:       pair,
			Sender:     "0x1111111111111111111111111111111111111111",
			Recipient:  "0x2222222222222222222222222222222222222222",
			Amount0In:  "1000000000000000000",
			Amount1In:  "0",
			Amount0Out: "0",
			Amount1Out: "1662497915624478906",
			Timestamp:  uint64(1700000000 + i),
		}))
	}

	swaps, err := s.SwapsByPair(ctx, pair, 2)
	require.NoError(t, err)
	require.Len(t, swaps, 2)
	// Newest first.
	require.Equal(t, uint64(1700000002), swaps[0].Timestamp)
	require.Equal(t, "1662497915624478906", swaps[0].Amount1Out)

	swaps, err = s.SwapsByPair(ctx, "0x0000000000000000000000000000000000000000", 10)
	require.NoError(t, err)
	require.Empty(t, swaps)
}

func TestCompetitionResults(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.CompetitionResults(ctx, 0)
	require.ErrorIs(t, err, ErrNotFound)

	results := []CompetitionResult{
		{CompetitionID: 0, Rank: 0, Trader: "0x3333333333333333333333333333333333333333", Volume: "3000000000000000000", Reward: "50000000000000000000"},
		{CompetitionID: 0, Rank: 1, Trader: "0x4444444444444444444444444444444444444444", Volume: "2000000000000000000", Reward: "20000000000000000000"},
	}
	require.NoError(t, s.RecordCompetitionResults(ctx, results))

	got, err := s.CompetitionResults(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, results, got)
}
