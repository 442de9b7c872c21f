// Package rpc is the lovelyd API: a JSON HTTP endpoint for exchange queries
// and a WebSocket endpoint streaming committed engine events.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lovelyswap/golovelyd/internal/config"
	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/node"
	"github.com/lovelyswap/golovelyd/internal/storage/checkpoint"
	"github.com/lovelyswap/golovelyd/internal/storage/history"
)

var errUnknownMethod = errors.New("rpc: unknown method")

// Request is one API call: a method name and its parameters.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries either a result or an error string.
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Server serves the HTTP and WebSocket API over a node.
type Server struct {
	node    *node.Node
	log     *zap.Logger
	config  *config.ServerConfig
	handler http.Handler
}

// NewServer wires the API routes over a node.
func NewServer(n *node.Node, cfg *config.ServerConfig, log *zap.Logger) *Server {
	s := &Server{node: n, log: log, config: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRPC)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok","service":"lovelyd"}`)
	})
	s.handler = mux
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve runs the API on the configured bind address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.config.Bind,
		Handler:      s.handler,
		ReadTimeout:  time.Duration(s.config.RequestTimeoutSeconds) * time.Second,
		WriteTimeout: 0, // websocket streams stay open
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("api listening", zap.String("bind", s.config.Bind))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	result, err := s.dispatch(r.Context(), &req)
	if err != nil {
		s.log.Debug("rpc call failed", zap.String("method", req.Method), zap.Error(err))
		s.writeResponse(w, Response{Error: err.Error()})
		return
	}
	s.writeResponse(w, Response{Result: result})
}

func (s *Server) writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("failed to write response", zap.Error(err))
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, error) {
	switch req.Method {
	case "ping":
		return "pong", nil
	case "exchange_info":
		return s.exchangeInfo(), nil
	case "pairs":
		return s.pairs(), nil
	case "pair_info":
		return s.pairInfo(req.Params)
	case "quote_amounts_out":
		return s.quoteAmountsOut(req.Params)
	case "quote_amounts_in":
		return s.quoteAmountsIn(req.Params)
	case "swap_history":
		return s.swapHistory(ctx, req.Params)
	case "competition_info":
		return s.competitionInfo(req.Params)
	case "competition_leaderboard":
		return s.competitionLeaderboard(req.Params)
	case "competition_results":
		return s.competitionResults(ctx, req.Params)
	case "snapshot_latest":
		return s.latestSnapshot()
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownMethod, req.Method)
	}
}

// ExchangeInfo describes the deployed exchange.
type ExchangeInfo struct {
	ChainID        uint64 `json:"chain_id"`
	Factory        string `json:"factory"`
	Router         string `json:"router"`
	WrappedNative  string `json:"wrapped_native"`
	FeeToken       string `json:"fee_token"`
	Admin          string `json:"admin"`
	FeeTo          string `json:"fee_to"`
	OwnerFee       uint64 `json:"owner_fee"`
	LPFee          uint64 `json:"lp_fee"`
	ListingFee     string `json:"listing_fee"`
	CompetitionFee string `json:"competition_fee"`
}

func (s *Server) exchangeInfo() ExchangeInfo {
	f := s.node.Factory()
	ownerFee, lpFee := f.TradingFees()
	return ExchangeInfo{
		ChainID:        s.node.World().ChainID(),
		Factory:        f.Address().Hex(),
		Router:         s.node.Router().Address().Hex(),
		WrappedNative:  s.node.WNative().Address().Hex(),
		FeeToken:       f.FeeToken().Hex(),
		Admin:          f.Admin().Hex(),
		FeeTo:          f.FeeTo().Hex(),
		OwnerFee:       ownerFee,
		LPFee:          lpFee,
		ListingFee:     f.ListingFee().Dec(),
		CompetitionFee: s.node.Router().CompetitionFee().Dec(),
	}
}

// PairInfo is one pair's live state.
type PairInfo struct {
	Pair             string `json:"pair"`
	Token0           string `json:"token0"`
	Token1           string `json:"token1"`
	Reserve0         string `json:"reserve0"`
	Reserve1         string `json:"reserve1"`
	TotalSupply      string `json:"total_supply"`
	ActiveFrom       uint64 `json:"active_from"`
	Price0Cumulative string `json:"price0_cumulative"`
	Price1Cumulative string `json:"price1_cumulative"`
}

func (s *Server) pairs() []PairInfo {
	pairs := s.node.Factory().AllPairs()
	out := make([]PairInfo, len(pairs))
	for i, p := range pairs {
		out[i] = describePair(p)
	}
	return out
}

func (s *Server) lookupPair(addr common.Address) *pair.Pair {
	for _, p := range s.node.Factory().AllPairs() {
		if p.Address() == addr {
			return p
		}
	}
	return nil
}

func describePair(p *pair.Pair) PairInfo {
	reserve0, reserve1, _ := p.Reserves()
	price0 := p.Price0CumulativeLast()
	price1 := p.Price1CumulativeLast()
	return PairInfo{
		Pair:             p.Address().Hex(),
		Token0:           p.Token0().Hex(),
		Token1:           p.Token1().Hex(),
		Reserve0:         reserve0.Dec(),
		Reserve1:         reserve1.Dec(),
		TotalSupply:      p.TotalSupply().Dec(),
		ActiveFrom:       p.ActiveFrom(),
		Price0Cumulative: price0.Dec(),
		Price1Cumulative: price1.Dec(),
	}
}

type pairParams struct {
	Pair string `json:"pair"`
}

func (s *Server) pairInfo(params json.RawMessage) (interface{}, error) {
	var p pairParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if !common.IsHexAddress(p.Pair) {
		return nil, fmt.Errorf("invalid pair address: %q", p.Pair)
	}
	found := s.lookupPair(common.HexToAddress(p.Pair))
	if found == nil {
		return nil, fmt.Errorf("unknown pair: %s", p.Pair)
	}
	return describePair(found), nil
}

type quoteParams struct {
	Amount string   `json:"amount"`
	Path   []string `json:"path"`
}

func (p *quoteParams) parse() (*uint256.Int, []common.Address, error) {
	amount, err := uint256.FromDecimal(p.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid amount %q: %w", p.Amount, err)
	}
	path := make([]common.Address, len(p.Path))
	for i, hop := range p.Path {
		if !common.IsHexAddress(hop) {
			return nil, nil, fmt.Errorf("invalid path address: %q", hop)
		}
		path[i] = common.HexToAddress(hop)
	}
	return amount, path, nil
}

func amountsToDec(amounts []*uint256.Int) []string {
	out := make([]string, len(amounts))
	for i, amount := range amounts {
		out[i] = amount.Dec()
	}
	return out
}

func (s *Server) quoteAmountsOut(params json.RawMessage) (interface{}, error) {
	var p quoteParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	amount, path, err := p.parse()
	if err != nil {
		return nil, err
	}
	amounts, err := s.node.Router().GetAmountsOut(amount, path)
	if err != nil {
		return nil, err
	}
	return amountsToDec(amounts), nil
}

func (s *Server) quoteAmountsIn(params json.RawMessage) (interface{}, error) {
	var p quoteParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	amount, path, err := p.parse()
	if err != nil {
		return nil, err
	}
	amounts, err := s.node.Router().GetAmountsIn(amount, path)
	if err != nil {
		return nil, err
	}
	return amountsToDec(amounts), nil
}

type swapHistoryParams struct {
	Pair  string `json:"pair"`
	Limit int    `json:"limit"`
}

func (s *Server) swapHistory(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p swapHistoryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if !common.IsHexAddress(p.Pair) {
		return nil, fmt.Errorf("invalid pair address: %q", p.Pair)
	}
	swaps, err := s.node.History().SwapsByPair(ctx, common.HexToAddress(p.Pair).Hex(), p.Limit)
	if err != nil {
		return nil, err
	}
	if swaps == nil {
		swaps = []history.Swap{}
	}
	return swaps, nil
}

type competitionParams struct {
	ID     uint64 `json:"id"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// CompetitionInfo describes one competition.
type CompetitionInfo struct {
	ID               uint64   `json:"id"`
	Creator          string   `json:"creator"`
	Start            uint64   `json:"start"`
	End              uint64   `json:"end"`
	RewardToken      string   `json:"reward_token"`
	CompetitionToken string   `json:"competition_token"`
	MinVolumeToTrack string   `json:"min_volume_to_track"`
	Rewards          []string `json:"rewards"`
	Pairs            []string `json:"pairs"`
	TotalFunding     string   `json:"total_funding"`
	VaultBalance     string   `json:"vault_balance"`
	Participants     int      `json:"participants"`
	Sorted           bool     `json:"sorted"`
	Withdrawn        bool     `json:"withdrawn"`
}

func (s *Server) competitionInfo(params json.RawMessage) (interface{}, error) {
	var p competitionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	c, err := s.node.Router().Competition(p.ID)
	if err != nil {
		return nil, err
	}
	participants, err := s.node.Router().Participants(p.ID)
	if err != nil {
		return nil, err
	}
	rewards := make([]string, len(c.Rewards))
	for i := range c.Rewards {
		rewards[i] = c.Rewards[i].Dec()
	}
	pairs := make([]string, len(c.Pairs))
	for i := range c.Pairs {
		pairs[i] = c.Pairs[i].Hex()
	}
	return CompetitionInfo{
		ID:               c.ID,
		Creator:          c.Creator.Hex(),
		Start:            c.Start,
		End:              c.End,
		RewardToken:      c.RewardToken.Hex(),
		CompetitionToken: c.CompetitionToken.Hex(),
		MinVolumeToTrack: c.MinVolumeToTrack.Dec(),
		Rewards:          rewards,
		Pairs:            pairs,
		TotalFunding:     c.TotalFunding.Dec(),
		VaultBalance:     c.Vault.Balance().Dec(),
		Participants:     len(participants),
		Sorted:           c.Sorted,
		Withdrawn:        c.Withdrawn,
	}, nil
}

// LeaderboardEntry is one row of a competition leaderboard.
type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	Trader  string `json:"trader"`
	Volume  string `json:"volume"`
	Claimed bool   `json:"claimed"`
}

func (s *Server) competitionLeaderboard(params json.RawMessage) (interface{}, error) {
	var p competitionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	page, err := s.node.Router().ParticipantsPaginated(p.ID, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, len(page))
	for i, participant := range page {
		entries[i] = LeaderboardEntry{
			Rank:    p.Offset + i,
			Trader:  participant.Addr.Hex(),
			Volume:  participant.Volume.Dec(),
			Claimed: participant.Claimed,
		}
	}
	return entries, nil
}

func (s *Server) competitionResults(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p competitionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return s.node.History().CompetitionResults(ctx, p.ID)
}

func (s *Server) latestSnapshot() (interface{}, error) {
	snapshot, err := s.node.Checkpoints().Latest()
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			// Nothing persisted yet; serve a live view.
			return s.node.Snapshot(), nil
		}
		return nil, err
	}
	return snapshot, nil
}
