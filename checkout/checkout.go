// Package checkout runs the buyer side of a purchase: price the order, hash
// the product and shipping address, and lock the deposit in the escrow.
package checkout

import (
	"context"
	"errors"
	"math/big"
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

// Chain is the escrow access checkout needs.
type Chain interface {
	Sender(network types.Network) (common.Address, bool)
	NextIntentID(ctx context.Context, network types.Network) (*big.Int, error)
	CreateIntent(ctx context.Context, req *types.CreateIntentRequest) (*types.IntentResult, error)
}

// Mirror receives the off-chain copy of a created intent.
type Mirror interface {
	UpsertBuyer(ctx context.Context, rec types.BuyerRecord) error
}

// Order is what the buyer submits at checkout.
type Order struct {
	ItemURL    string                `json:"itemUrl" validate:"required"`
	TotalPrice decimal.Decimal       `json:"totalPrice"`
	Quantity   int                   `json:"quantity" validate:"min=1"`
	Shipping   types.ShippingDetails `json:"shipping"`
}

// Result is the outcome of one checkout attempt.
type Result struct {
	State     State       `json:"state"`
	IntentID  *big.Int    `json:"intentId,omitempty"`
	TxHash    string      `json:"txHash,omitempty"`
	Alert     string      `json:"alert,omitempty"`
	Quote     types.Quote `json:"quote"`
	AmountWei *big.Int    `json:"amountWei,omitempty"`
}

type Config struct {
	Network        types.Network
	IntentDuration time.Duration
}

type Service struct {
	chain   Chain
	mirror  Mirror
	oracle  pricing.Oracle
	calc    *pricing.Calculator
	cfg     Config
	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = logger.OrNoop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = metrics.OrNoop(r) }
}

// WithMirror enables the best-effort buyer record write after success.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(chain Chain, oracle pricing.Oracle, calc *pricing.Calculator, cfg Config, opts ...Option) *Service {
	if calc == nil {
		calc = pricing.DefaultCalculator()
	}
	s := &Service{
		chain:   chain,
		oracle:  oracle,
		calc:    calc,
		cfg:     cfg,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and prices the order, then creates the escrow intent.
// Validation and wallet errors are returned before anything is sent. Once
// the transaction is attempted the returned Result carries the terminal
// state; a failed attempt also returns a chain error. A broadcast
// transaction whose receipt did not arrive in time ends Pending with its
// hash and no error, and is not mirrored.
func (s *Service) Submit(ctx context.Context, order Order) (*Result, error) {
	if err := ValidateOrder(order); err != nil {
		return nil, err
	}

	sender, ok := s.chain.Sender(s.cfg.Network)
	if !ok {
		return nil, types.NewError(types.KindUnavailable, "Wallet not connected", nil)
	}

	rate, err := s.oracle.Rate(ctx)
	if err != nil {
		return nil, types.NewError(types.KindUpstream, "exchange rate unavailable", err)
	}

	quote := s.calc.Quote(order.TotalPrice)
	value, err := pricing.ToNative(quote.Final, rate)
	if err != nil {
		return nil, types.NewError(types.KindValidation, "Invalid total price", err)
	}

	address := order.Shipping.FormattedAddress()
	req := &types.CreateIntentRequest{
		Network:            s.cfg.Network,
		HashedProductLink:  utils.ContentHash(utils.ExtractASIN(order.ItemURL)),
		HashedShippingAddr: utils.ContentHash(address),
		Duration:           s.cfg.IntentDuration,
		Value:              value,
	}

	wf := NewWorkflow()
	res := &Result{Quote: quote, AmountWei: value}
	start := time.Now()
	if err := wf.Send(ctx); err != nil {
		return nil, types.NewError(types.KindInternal, "checkout workflow", err)
	}

	fail := func(err error, alert string) (*Result, error) {
		_ = wf.Fail(ctx)
		res.State = wf.Current()
		res.Alert = alert
		metrics.Track(s.metrics, "checkout.submit", start, err)
		s.logger.Error("checkout failed", map[string]any{
			"buyer": sender.Hex(),
			"tx":    res.TxHash,
			"error": err,
		})
		return res, err
	}

	next, err := s.chain.NextIntentID(ctx, s.cfg.Network)
	if err != nil {
		return fail(err, clients.ChainAlert(err))
	}

	created, err := s.chain.CreateIntent(ctx, req)
	if created != nil {
		res.TxHash = created.TxHash
	}
	if err != nil && errors.Is(err, clients.ErrPending) && res.TxHash != "" {
		_ = wf.Pending(ctx)
		res.State = wf.Current()
		res.IntentID = next
		res.Alert = clients.ChainAlert(err)
		metrics.TrackOutcome(s.metrics, "checkout.submit", start, metrics.OutcomePending)
		s.logger.Warn("checkout transaction pending", map[string]any{
			"buyer":     sender.Hex(),
			"intent_id": next.String(),
			"tx":        res.TxHash,
			"error":     err,
		})
		return res, nil
	}
	if err != nil {
		alert := clients.ChainAlert(err)
		if created != nil && created.Error != "" {
			alert = created.Error
		}
		return fail(err, alert)
	}

	res.IntentID = created.IntentID
	if res.IntentID == nil {
		res.IntentID = next
	}
	_ = wf.Succeed(ctx)
	res.State = wf.Current()
	metrics.Track(s.metrics, "checkout.submit", start, nil)
	s.logger.Info("checkout succeeded", map[string]any{
		"buyer":     sender.Hex(),
		"intent_id": res.IntentID.String(),
		"tx":        res.TxHash,
	})

	s.mirrorBuyer(ctx, sender, order, address, res)
	return res, nil
}

func (s *Service) mirrorBuyer(ctx context.Context, buyer common.Address, order Order, address string, res *Result) {
	if s.mirror == nil || res.IntentID == nil || !res.IntentID.IsInt64() {
		return
	}
	deposit := res.AmountWei.String()
	deadline := s.now().Add(s.cfg.IntentDuration).UTC()
	err := s.mirror.UpsertBuyer(ctx, types.BuyerRecord{
		IntentID:        res.IntentID.Int64(),
		WalletAddress:   buyer.Hex(),
		ShippingAddress: address,
		ProductLink:     order.ItemURL,
		Quantity:        order.Quantity,
		Deposit:         &deposit,
		Deadline:        &deadline,
	})
	if err != nil {
		s.logger.Warn("buyer mirror write failed", map[string]any{
			"intent_id": res.IntentID.String(),
			"error":     err,
		})
	}
}

// ValidateOrder checks the order fields before any pricing or chain work.
func ValidateOrder(order Order) error {
	if err := utils.Validate(order); err != nil {
		return err
	}
	if !order.TotalPrice.IsPositive() {
		return types.NewError(types.KindValidation, "Invalid total price", nil)
	}
	return nil
}
