// Package node assembles a running lovelyd instance: the exchange engine
// (world, factory, competition router), the checkpoint and history stores,
// and the event feed the RPC layer streams from.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lovelyswap/golovelyd/internal/config"
	"github.com/lovelyswap/golovelyd/internal/core/factory"
	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/state"
	"github.com/lovelyswap/golovelyd/internal/core/tcrouter"
	"github.com/lovelyswap/golovelyd/internal/core/token"
	"github.com/lovelyswap/golovelyd/internal/storage/checkpoint"
	"github.com/lovelyswap/golovelyd/internal/storage/history"
)

// Node is one lovelyd instance.
type Node struct {
	log    *zap.Logger
	config *config.Config

	world    *state.World
	feeToken *token.Token
	wnative  *token.Wrapped
	factory  *factory.Factory
	router   *tcrouter.TCRouter

	checkpoints *checkpoint.Store
	history     *history.Store

	mu          sync.Mutex
	drained     int // events already fed to archive and subscribers
	subscribers map[int]chan state.Event
	nextSubID   int
}

// New builds a node from configuration: a fresh world on the system clock,
// the exchange contracts, and the on-disk stores.
func New(cfg *config.Config, log *zap.Logger) (*Node, error) {
	world := state.NewWorld(cfg.Exchange.ChainID, state.SystemClock())
	admin := cfg.Exchange.AdminAddress()

	feeToken, err := token.New(world, "Lovely Fee Token", "LFT", 18)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy fee token: %w", err)
	}
	wnative, err := token.NewWrapped(world, "Wrapped Native", "WNATIVE")
	if err != nil {
		return nil, fmt.Errorf("failed to deploy wrapped native: %w", err)
	}
	f, err := factory.New(world, admin, feeToken.Address(),
		cfg.Exchange.ListingFeeAmount(), cfg.Exchange.OwnerFee, cfg.Exchange.LPFee)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy factory: %w", err)
	}
	router, err := tcrouter.New(world, f, wnative, cfg.Exchange.CompetitionFeeAmount())
	if err != nil {
		return nil, fmt.Errorf("failed to deploy router: %w", err)
	}

	checkpoints, err := checkpoint.Open(cfg.CheckpointPath(), cfg.Database.CheckpointCacheSize)
	if err != nil {
		return nil, err
	}
	archive, err := history.Open(cfg.HistoryPath())
	if err != nil {
		checkpoints.Close()
		return nil, err
	}

	log.Info("exchange deployed",
		zap.Uint64("chain_id", cfg.Exchange.ChainID),
		zap.String("admin", admin.Hex()),
		zap.String("factory", f.Address().Hex()),
		zap.String("router", router.Address().Hex()),
		zap.String("wnative", wnative.Address().Hex()))

	return &Node{
		log:         log,
		config:      cfg,
		world:       world,
		feeToken:    feeToken,
		wnative:     wnative,
		factory:     f,
		router:      router,
		checkpoints: checkpoints,
		history:     archive,
		subscribers: make(map[int]chan state.Event),
	}, nil
}

func (n *Node) World() *state.World          { return n.world }
func (n *Node) Factory() *factory.Factory    { return n.factory }
func (n *Node) Router() *tcrouter.TCRouter   { return n.router }
func (n *Node) WNative() *token.Wrapped      { return n.wnative }
func (n *Node) FeeToken() *token.Token       { return n.feeToken }
func (n *Node) History() *history.Store      { return n.history }
func (n *Node) Checkpoints() *checkpoint.Store { return n.checkpoints }

// Execute runs one operation atomically against the engine and, on success,
// archives and publishes the events it emitted.
func (n *Node) Execute(ctx context.Context, op func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.world.Run(op); err != nil {
		return err
	}
	n.drain(ctx)
	return nil
}

// drain archives and publishes events committed since the last drain.
// Callers hold n.mu.
func (n *Node) drain(ctx context.Context) {
	events := n.world.Events()
	for _, ev := range events[n.drained:] {
		n.archive(ctx, ev)
		for _, ch := range n.subscribers {
			select {
			case ch <- ev:
			default:
				// A slow subscriber drops events rather than stalling commits.
			}
		}
	}
	n.drained = len(events)
}

func (n *Node) archive(ctx context.Context, ev state.Event) {
	switch e := ev.(type) {
	case pair.SwapEvent:
		err := n.history.RecordSwap(ctx, &history.Swap{
			Pair:       e.Pair.Hex(),
			Sender:     e.Sender.Hex(),
			Recipient:  e.To.Hex(),
			Amount0In:  e.Amount0In.Dec(),
			Amount1In:  e.Amount1In.Dec(),
			Amount0Out: e.Amount0Out.Dec(),
			Amount1Out: e.Amount1Out.Dec(),
			Timestamp:  n.world.Now(),
		})
		if err != nil {
			n.log.Error("failed to archive swap", zap.String("pair", e.Pair.Hex()), zap.Error(err))
		}
	case tcrouter.ReadyForPayouts:
		if err := n.archiveCompetition(ctx, e.ID); err != nil {
			n.log.Error("failed to archive competition results", zap.Uint64("competition", e.ID), zap.Error(err))
		}
	}
}

// archiveCompetition writes a settled competition's final standings.
func (n *Node) archiveCompetition(ctx context.Context, id uint64) error {
	participants, err := n.router.Participants(id)
	if err != nil {
		return err
	}
	var results []history.CompetitionResult
	for rank, participant := range participants {
		reward, err := n.router.RewardForRank(id, rank)
		if err != nil {
			return err
		}
		if reward == nil {
			break
		}
		results = append(results, history.CompetitionResult{
			CompetitionID: id,
			Rank:          rank,
			Trader:        participant.Addr.Hex(),
			Volume:        participant.Volume.Dec(),
			Reward:        reward.Dec(),
		})
	}
	if len(results) == 0 {
		return nil
	}
	return n.history.RecordCompetitionResults(ctx, results)
}

// Subscribe returns a feed of committed events. The returned cancel func
// must be called when the consumer goes away.
func (n *Node) Subscribe() (<-chan state.Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextSubID
	n.nextSubID++
	ch := make(chan state.Event, 256)
	n.subscribers[id] = ch
	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subscribers[id]; ok {
			delete(n.subscribers, id)
			close(ch)
		}
	}
}

// Snapshot captures the current pair positions.
func (n *Node) Snapshot() *checkpoint.Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	pairs := n.factory.AllPairs()
	states := make([]checkpoint.PairState, len(pairs))
	for i, p := range pairs {
		reserve0, reserve1, _ := p.Reserves()
		states[i] = checkpoint.PairState{
			Pair:        p.Address().Hex(),
			Token0:      p.Token0().Hex(),
			Token1:      p.Token1().Hex(),
			Reserve0:    reserve0.Dec(),
			Reserve1:    reserve1.Dec(),
			TotalSupply: p.TotalSupply().Dec(),
		}
	}
	return &checkpoint.Snapshot{
		Sequence:  uint64(len(n.world.Events())),
		Timestamp: n.world.Now(),
		Pairs:     states,
	}
}

// Run drives the background loops until ctx is cancelled: periodic
// checkpointing today, with the API server attached by the caller.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.checkpointLoop(ctx) })
	return g.Wait()
}

func (n *Node) checkpointLoop(ctx context.Context) error {
	interval := time.Duration(n.config.Database.CheckpointIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshot := n.Snapshot()
			if err := n.checkpoints.Put(snapshot); err != nil {
				n.log.Error("checkpoint failed", zap.Uint64("sequence", snapshot.Sequence), zap.Error(err))
				continue
			}
			n.log.Debug("checkpoint written",
				zap.Uint64("sequence", snapshot.Sequence),
				zap.Int("pairs", len(snapshot.Pairs)))
		}
	}
}

// Close releases the node's stores.
func (n *Node) Close() error {
	n.mu.Lock()
	for id, ch := range n.subscribers {
		delete(n.subscribers, id)
		close(ch)
	}
	n.mu.Unlock()

	if err := n.checkpoints.Close(); err != nil {
		n.history.Close()
		return err
	}
	return n.history.Close()
}
