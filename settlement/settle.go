package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/storerunner/storefront/clients"
	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/pricing"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/utils"
)

// Settler submits escrow transactions.
type Settler interface {
	CreateIntent(ctx context.Context, req *types.CreateIntentRequest) (*types.IntentResult, error)
	SubmitProof(ctx context.Context, req *types.SubmitProofRequest) (*types.ProofResult, error)
}

// SettlementService routes escrow reads and writes to the per-network client.
type SettlementService struct {
	escrows map[types.Network]clients.Escrow
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

type Option func(*SettlementService)

func WithLogger(l logger.Logger) Option {
	return func(s *SettlementService) { s.logger = logger.OrNoop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *SettlementService) { s.metrics = metrics.OrNoop(r) }
}

// WithClock overrides time.Now, for deadline math in tests.
func WithClock(now func() time.Time) Option {
	return func(s *SettlementService) { s.now = now }
}

func NewSettlementService(timeout time.Duration, opts ...Option) *SettlementService {
	s := &SettlementService{
		escrows: make(map[types.Network]clients.Escrow),
		timeout: timeout,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddEscrow registers the escrow client for its network.
func (s *SettlementService) AddEscrow(e clients.Escrow) error {
	if e.Network().ChainID() == nil {
		return types.NewError(types.KindValidation, fmt.Sprintf("unsupported network: %s", e.Network()), nil)
	}
	s.escrows[e.Network()] = e
	return nil
}

func (s *SettlementService) IsNetworkSupported(network types.Network) bool {
	_, ok := s.escrows[network]
	return ok
}

func (s *SettlementService) escrow(network types.Network) (clients.Escrow, error) {
	e, ok := s.escrows[network]
	if !ok {
		return nil, types.NewError(types.KindUnavailable, fmt.Sprintf("no escrow client configured for network %s", network), nil)
	}
	return e, nil
}

// Sender returns the configured signing address for network.
func (s *SettlementService) Sender(network types.Network) (common.Address, bool) {
	e, err := s.escrow(network)
	if err != nil {
		return common.Address{}, false
	}
	return e.Sender()
}

func (s *SettlementService) NextIntentID(ctx context.Context, network types.Network) (*big.Int, error) {
	e, err := s.escrow(network)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	id, err := e.NextIntentID(ctx)
	metrics.Track(s.metrics, "chain.next_intent_id", start, err)
	if err != nil {
		return nil, types.NewError(types.KindChain, "nextIntentId failed", err)
	}
	return id, nil
}

func (s *SettlementService) IsSolverWhitelisted(ctx context.Context, network types.Network, solver common.Address) (bool, error) {
	e, err := s.escrow(network)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := e.IsSolverWhitelisted(ctx, solver)
	if err != nil {
		return false, types.NewError(types.KindChain, "isSolverWhitelisted failed", err)
	}
	return ok, nil
}

// CreateIntent submits createIntent and reports the new intent id when the
// receipt carries the IntentCreated log.
func (s *SettlementService) CreateIntent(ctx context.Context, req *types.CreateIntentRequest) (*types.IntentResult, error) {
	result := &types.IntentResult{NetworkID: req.Network.String(), Timestamp: s.now()}

	e, err := s.escrow(req.Network)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	seconds := big.NewInt(int64(req.Duration / time.Second))
	start := time.Now()
	receipt, err := e.CreateIntent(ctx, req.HashedProductLink, req.HashedShippingAddr, seconds, req.Value)
	metrics.Track(s.metrics, "chain.create_intent", start, err)
	if receipt != nil {
		result.TxHash = receipt.TxHash.Hex()
	}
	if err != nil {
		s.logger.Error("createIntent failed", map[string]any{
			"network": req.Network.String(),
			"tx":      result.TxHash,
			"error":   err,
		})
		result.Error = clients.ChainAlert(err)
		return result, types.NewError(types.KindChain, "createIntent failed", err)
	}

	for _, l := range receipt.Logs {
		if ev, perr := e.ParseIntentCreated(*l); perr == nil {
			result.IntentID = ev.IntentID
			break
		}
	}

	result.Success = true
	s.logger.Info("intent created", map[string]any{
		"network":   req.Network.String(),
		"tx":        result.TxHash,
		"intent_id": bigString(result.IntentID),
	})
	return result, nil
}

// SubmitProof submits the solver's claim for an intent.
func (s *SettlementService) SubmitProof(ctx context.Context, req *types.SubmitProofRequest) (*types.ProofResult, error) {
	result := &types.ProofResult{NetworkID: req.Network.String(), Timestamp: s.now()}

	e, err := s.escrow(req.Network)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	receipt, err := e.SubmitProof(ctx, req.IntentID, req.HashedProductLink, req.HashedShippingAddr, req.FinalPrice)
	metrics.Track(s.metrics, "chain.submit_proof", start, err)
	if receipt != nil {
		result.TxHash = receipt.TxHash.Hex()
	}
	if err != nil {
		s.logger.Error("submitProof failed", map[string]any{
			"network":   req.Network.String(),
			"intent_id": bigString(req.IntentID),
			"tx":        result.TxHash,
			"error":     err,
		})
		result.Error = clients.ChainAlert(err)
		return result, types.NewError(types.KindChain, "submitProof failed", err)
	}

	for _, l := range receipt.Logs {
		if ev, perr := e.ParseProofSubmitted(*l); perr == nil {
			result.SolverFee = ev.SolverFee
			result.SolverPayout = ev.SolverPayout
			result.BuyerRefund = ev.LeftoverBuyerRefund
			break
		}
	}

	result.Success = true
	s.logger.Info("proof submitted", map[string]any{
		"network":   req.Network.String(),
		"intent_id": bigString(req.IntentID),
		"tx":        result.TxHash,
	})
	return result, nil
}

// ListIntents builds the solver dashboard: every created intent with its
// fulfilment flag and time left, newest first.
func (s *SettlementService) ListIntents(ctx context.Context, network types.Network, fromBlock *big.Int, rate decimal.Decimal) ([]types.IntentListing, error) {
	e, err := s.escrow(network)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	events, err := e.IntentCreatedEvents(ctx, fromBlock)
	if err != nil {
		return nil, types.NewError(types.KindChain, "listing intents failed", err)
	}

	now := s.now()
	out := make([]types.IntentListing, 0, len(events))
	for _, ev := range events {
		in, err := e.GetIntent(ctx, ev.IntentID)
		if err != nil {
			return nil, types.NewError(types.KindChain, fmt.Sprintf("reading intent %s failed", ev.IntentID), err)
		}
		deadline := time.Unix(ev.Deadline.Int64(), 0).UTC()
		out = append(out, types.IntentListing{
			IntentID:           ev.IntentID.String(),
			Buyer:              ev.Buyer.Hex(),
			Deposit:            ev.Deposit.String(),
			DepositUSD:         pricing.FormatUSD(pricing.FromNative(ev.Deposit, rate)),
			HashedProductLink:  ev.HashedProductLink.Hex(),
			HashedShippingAddr: ev.HashedShippingAddr.Hex(),
			Deadline:           deadline,
			Fulfilled:          in.Fulfilled,
			Remaining:          utils.FormatRemaining(deadline, now),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].IntentID) > len(out[j].IntentID) ||
			(len(out[i].IntentID) == len(out[j].IntentID) && out[i].IntentID > out[j].IntentID)
	})
	return out, nil
}

// Close closes all client connections.
func (s *SettlementService) Close() {
	for _, e := range s.escrows {
		e.Close()
	}
}

func bigString(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.String()
}
