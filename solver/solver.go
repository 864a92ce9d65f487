// Package solver runs the solver side of an order: a proof session is
// opened for an intent, the provider posts back an attested proof, and the
// normalized order facts are submitted to the escrow.
package solver

import (
	"context"
	"errors"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/skip2/go-qrcode"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/pricing"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/utils"
	"github.com/storerunner/storefront/verification"
)

const qrSize = 256

// DefaultMaxSessions bounds the session registry when Config.MaxSessions is
// unset.
const DefaultMaxSessions = 10_000

// Chain is the escrow access the proof workflow needs.
type Chain interface {
	IsSolverWhitelisted(ctx context.Context, network types.Network, solver common.Address) (bool, error)
	SubmitProof(ctx context.Context, req *types.SubmitProofRequest) (*types.ProofResult, error)
}

type Verifier interface {
	Verify(ctx context.Context, proof *types.Proof) (*types.VerificationResult, error)
}

// Mirror receives the solver half of the off-chain record.
type Mirror interface {
	UpdateSolver(ctx context.Context, rec types.SolverRecord) (int64, error)
}

type Config struct {
	Network         types.Network
	AppID           string
	ProviderID      string
	RequestBaseURL  string
	CallbackBaseURL string
	// SessionTTL of zero keeps sessions until evicted for capacity.
	SessionTTL time.Duration
	// MaxSessions caps open sessions; the least recently used is evicted.
	MaxSessions uint64
}

type Service struct {
	chain    Chain
	verifier Verifier
	oracle   pricing.Oracle
	mirror   Mirror
	cfg      Config
	sessions *ttlcache.Cache[string, *Session]
	logger   logger.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = logger.OrNoop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = metrics.OrNoop(r) }
}

func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(chain Chain, verifier Verifier, oracle pricing.Oracle, cfg Config, opts ...Option) *Service {
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	s := &Service{
		chain:    chain,
		verifier: verifier,
		oracle:   oracle,
		cfg:      cfg,
		sessions: ttlcache.New[string, *Session](
			ttlcache.WithTTL[string, *Session](cfg.SessionTTL),
			ttlcache.WithCapacity[string, *Session](cfg.MaxSessions),
		),
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			s.logger.Warn("proof session evicted at capacity", map[string]any{
				"session_id": item.Key(),
				"capacity":   cfg.MaxSessions,
			})
		}
	})
	if cfg.SessionTTL > 0 {
		go s.sessions.Start()
	}
	return s
}

// Close stops the session janitor.
func (s *Service) Close() {
	if s.cfg.SessionTTL > 0 {
		s.sessions.Stop()
	}
}

// Start opens a proof session for a solver on an intent.
func (s *Service) Start(ctx context.Context, intentID *big.Int, solver string) (*View, error) {
	if intentID == nil || intentID.Sign() < 0 {
		return nil, types.NewError(types.KindValidation, "intentId must be a non-negative integer", nil)
	}
	if !utils.ValidateAddress(solver) {
		return nil, types.NewError(types.KindValidation, "solverAddress must be a valid address", nil)
	}

	id := uuid.NewString()
	sess := &Session{
		id:         id,
		intentID:   new(big.Int).Set(intentID),
		solver:     common.HexToAddress(solver),
		requestURL: s.requestURL(id),
		createdAt:  s.now().UTC(),
		wf:         NewWorkflow(),
	}
	s.sessions.Set(id, sess, ttlcache.DefaultTTL)
	s.metrics.IncCounter("proof.session", map[string]string{"outcome": metrics.OutcomeSuccess})
	s.logger.Info("proof session opened", map[string]any{
		"session_id": id,
		"intent_id":  intentID.String(),
		"solver":     sess.solver.Hex(),
	})
	return sess.View(), nil
}

func (s *Service) Get(id string) (*View, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.View(), nil
}

// QR renders the session's request URL as a PNG.
func (s *Service) QR(id string) ([]byte, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(sess.requestURL, qrcode.Medium, qrSize)
	if err != nil {
		return nil, types.NewError(types.KindInternal, "encoding QR code failed", err)
	}
	return png, nil
}

// Fail records a provider-side error for the session.
func (s *Service) Fail(ctx context.Context, id, reason string) (*View, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.wf.Done() {
		return sess.view(), types.NewError(types.KindValidation, "proof session already finished", nil)
	}
	if reason == "" {
		reason = "proof provider error"
	}
	s.fail(ctx, sess, reason)
	return sess.view(), nil
}

// Complete verifies the posted proof and, when valid, submits it on chain.
// A session accepts at most one proof.
func (s *Service) Complete(ctx context.Context, id string, proof *types.Proof) (*View, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.wf.Done() {
		return sess.view(), types.NewError(types.KindValidation, "proof session already finished", nil)
	}

	start := time.Now()
	err = s.complete(ctx, sess, proof)
	metrics.Track(s.metrics, "proof.submit", start, err)
	return sess.view(), err
}

func (s *Service) complete(ctx context.Context, sess *Session, proof *types.Proof) error {
	verdict, err := s.verifier.Verify(ctx, proof)
	if err != nil {
		s.fail(ctx, sess, "proof verification unavailable")
		return types.NewError(types.KindUpstream, "proof verification failed", err)
	}
	if !verdict.Valid {
		s.fail(ctx, sess, "Invalid proof")
		return types.NewError(types.KindProof, "Invalid proof", errors.New(verdict.Reason))
	}
	if err := sess.wf.Validate(ctx); err != nil {
		return types.NewError(types.KindInternal, "proof workflow", err)
	}

	fields := verification.NormalizeFields(proof.PublicData)
	sess.fields = &fields

	price, err := utils.FirstNumber(fields.FinalPrice)
	if err != nil {
		s.fail(ctx, sess, "Proof carries no final price")
		return types.NewError(types.KindProof, "Proof carries no final price", err)
	}
	rate, err := s.oracle.Rate(ctx)
	if err != nil {
		s.fail(ctx, sess, "Exchange rate unavailable")
		return types.NewError(types.KindUpstream, "exchange rate unavailable", err)
	}
	finalWei, err := pricing.ToNative(price, rate)
	if err != nil {
		s.fail(ctx, sess, "Proof carries no final price")
		return types.NewError(types.KindProof, "Proof carries no final price", err)
	}

	whitelisted, err := s.chain.IsSolverWhitelisted(ctx, s.cfg.Network, sess.solver)
	if err != nil {
		s.fail(ctx, sess, "Transaction failed.")
		return err
	}
	if !whitelisted {
		s.fail(ctx, sess, "Solver is not whitelisted")
		return types.NewError(types.KindValidation, "Solver is not whitelisted", nil)
	}

	result, err := s.chain.SubmitProof(ctx, &types.SubmitProofRequest{
		Network:            s.cfg.Network,
		IntentID:           sess.intentID,
		Solver:             sess.solver,
		HashedProductLink:  utils.ContentHash(utils.ExtractASIN(fields.ItemLink)),
		HashedShippingAddr: utils.ContentHash(fields.ShippingAddress),
		FinalPrice:         finalWei,
	})
	if result != nil {
		sess.txHash = result.TxHash
	}
	if err != nil {
		alert := "Transaction failed."
		if result != nil && result.Error != "" {
			alert = result.Error
		}
		s.fail(ctx, sess, alert)
		return err
	}

	sess.solverPayout = result.SolverPayout
	_ = sess.wf.Succeed(ctx)
	s.logger.Info("proof submitted", map[string]any{
		"session_id": sess.id,
		"intent_id":  sess.intentID.String(),
		"tx":         sess.txHash,
	})
	s.mirrorSolver(ctx, sess)
	return nil
}

func (s *Service) mirrorSolver(ctx context.Context, sess *Session) {
	if s.mirror == nil || !sess.intentID.IsInt64() {
		return
	}
	var delivery *string
	if sess.fields != nil && sess.fields.DeliveryDate != "" {
		d := sess.fields.DeliveryDate
		delivery = &d
	}
	_, err := s.mirror.UpdateSolver(ctx, types.SolverRecord{
		IntentID:      sess.intentID.Int64(),
		WalletAddress: sess.solver.Hex(),
		DeliveryDate:  delivery,
		Fulfilled:     true,
	})
	if err != nil {
		s.logger.Warn("solver mirror write failed", map[string]any{
			"intent_id": sess.intentID.String(),
			"error":     err,
		})
	}
}

func (s *Service) fail(ctx context.Context, sess *Session, reason string) {
	_ = sess.wf.Fail(ctx)
	sess.reason = reason
	s.logger.Warn("proof session failed", map[string]any{
		"session_id": sess.id,
		"intent_id":  sess.intentID.String(),
		"reason":     reason,
	})
}

func (s *Service) lookup(id string) (*Session, error) {
	item := s.sessions.Get(id)
	if item == nil {
		return nil, types.NewError(types.KindNotFound, "Proof session not found", nil)
	}
	return item.Value(), nil
}

// requestURL is the link the solver opens to start the provider flow.
func (s *Service) requestURL(sessionID string) string {
	q := url.Values{}
	q.Set("appId", s.cfg.AppID)
	q.Set("providerId", s.cfg.ProviderID)
	q.Set("sessionId", sessionID)
	q.Set("callbackUrl", s.CallbackURL(sessionID))

	base := s.cfg.RequestBaseURL
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// CallbackURL is where the provider posts the proof for a session.
func (s *Service) CallbackURL(sessionID string) string {
	return strings.TrimRight(s.cfg.CallbackBaseURL, "/") + "/api/proofs/" + sessionID + "/callback"
}
