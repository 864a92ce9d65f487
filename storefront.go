// Package storefront assembles the storefront services from configuration:
// the intent mirror, the escrow settlement, checkout, the solver proof
// workflow, the product scraper and the mini-app surface.
package storefront

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"github.com/storerunner/storefront/checkout"
	"github.com/storerunner/storefront/clients"
	"github.com/storerunner/storefront/config"
	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/miniapp"
	"github.com/storerunner/storefront/platform"
	"github.com/storerunner/storefront/pricing"
	"github.com/storerunner/storefront/scraper"
	"github.com/storerunner/storefront/settlement"
	"github.com/storerunner/storefront/solver"
	"github.com/storerunner/storefront/store"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/utils"
	"github.com/storerunner/storefront/verification"
	"github.com/storerunner/storefront/wallet"
)

const Version = "1.0.0"

// Storefront holds the wired services.
type Storefront struct {
	cfg     *config.Config
	network types.Network
	mode    platform.Mode

	db      *gorm.DB
	ownDB   bool
	backend clients.Backend

	intents *store.IntentStore
	tuples  *store.TupleStore
	tokens  *store.NotificationStore

	oracle     pricing.Oracle
	calc       *pricing.Calculator
	settlement *settlement.SettlementService
	checkout   *checkout.Service
	proofs     *solver.Service
	scraper    *scraper.Scraper
	webhooks   *miniapp.Webhooks
	notifier   *miniapp.Notifier
	wallet     *wallet.Adapter
	signer     wallet.Connector

	logger  logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
}

// Status is the health summary.
type Status struct {
	Status     string
	Network    types.Network
	ChainReady bool
	Time       time.Time
}

// New builds every service from cfg.
func New(cfg *config.Config, opts ...Option) (*Storefront, error) {
	if cfg == nil {
		return nil, types.NewError(types.KindValidation, "config is required", nil)
	}
	mode, err := platform.ParseMode(cfg.Platform.Mode)
	if err != nil {
		return nil, err
	}

	s := &Storefront{
		cfg:     cfg,
		network: cfg.Network(),
		mode:    mode,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: cfg.Chain.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.db == nil {
		db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(db); err != nil {
			return nil, err
		}
		s.db, s.ownDB = db, true
	}

	storeOpts := []store.Option{store.WithLogger(s.logger), store.WithMetrics(s.metrics)}
	s.intents = store.NewIntentStore(s.db, storeOpts...)
	s.tuples = store.NewTupleStore(s.db, storeOpts...)
	s.tokens = store.NewNotificationStore(s.db, storeOpts...)

	oracle, err := pricing.NewStaticOracle(cfg.Pricing.Rate())
	if err != nil {
		return nil, err
	}
	s.oracle = oracle
	s.calc = pricing.NewCalculator(cfg.Pricing.FeeRate(), cfg.Pricing.Shipping())

	s.settlement = settlement.NewSettlementService(s.timeout,
		settlement.WithLogger(s.logger),
		settlement.WithMetrics(s.metrics),
	)
	if err := s.attachEscrow(); err != nil {
		return nil, err
	}

	verifier, err := verification.NewVerificationService(cfg.Proof.Attestors,
		verification.WithLogger(s.logger),
		verification.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}

	s.checkout = checkout.NewService(s.settlement, s.oracle, s.calc,
		checkout.Config{Network: s.network, IntentDuration: cfg.Chain.IntentDuration},
		checkout.WithLogger(s.logger),
		checkout.WithMetrics(s.metrics),
		checkout.WithMirror(s.intents),
	)
	s.proofs = solver.NewService(s.settlement, verifier, s.oracle,
		solver.Config{
			Network:         s.network,
			AppID:           cfg.Proof.AppID,
			ProviderID:      cfg.Proof.ProviderID,
			RequestBaseURL:  cfg.Proof.RequestBaseURL,
			CallbackBaseURL: cfg.Proof.CallbackBaseURL,
			SessionTTL:      cfg.Proof.SessionTTL,
			MaxSessions:     cfg.Proof.MaxSessions,
		},
		solver.WithLogger(s.logger),
		solver.WithMetrics(s.metrics),
		solver.WithMirror(s.intents),
	)
	s.scraper = scraper.New(
		scraper.Config{Marker: cfg.Scraper.Marker, UserAgent: cfg.Scraper.UserAgent, Timeout: cfg.Scraper.Timeout},
		scraper.WithLogger(s.logger),
		scraper.WithMetrics(s.metrics),
	)

	app := cfg.App.MiniApp()
	s.webhooks = miniapp.NewWebhooks(s.tokens, s.logger, cfg.App.NotificationHosts...)
	s.notifier = miniapp.NewNotifier(s.tokens, app, s.logger, s.metrics)
	s.wallet = wallet.NewAdapter(cfg.Wallet.ProjectID, s.logger)

	s.logger.Info("storefront ready", map[string]any{
		"network":     s.network.String(),
		"chain_ready": s.settlement.IsNetworkSupported(s.network),
		"mode":        string(s.mode),
		"version":     Version,
	})
	return s, nil
}

// attachEscrow registers the escrow client when a backend is present. A
// configured private key becomes both the transaction signer and the
// server-held wallet.
func (s *Storefront) attachEscrow() error {
	if s.backend == nil {
		s.logger.Warn("no RPC backend, chain operations disabled", map[string]any{"network": s.network.String()})
		return nil
	}

	escrowOpts := []clients.EscrowOption{clients.WithGasLimit(s.cfg.Chain.GasLimit)}
	if s.cfg.Chain.PrivateKey != "" {
		key, err := utils.PrivateKeyFromHex(s.cfg.Chain.PrivateKey)
		if err != nil {
			return types.NewError(types.KindValidation, "invalid chain private key", err)
		}
		escrowOpts = append(escrowOpts, clients.WithSigner(key))
		s.signer = wallet.NewKeyedConnector(key, s.backend)
	}

	escrow, err := clients.NewEscrowClient(s.network, common.HexToAddress(s.cfg.Chain.EscrowAddress), s.backend, escrowOpts...)
	if err != nil {
		return types.NewError(types.KindChain, "building escrow client failed", err)
	}
	return s.settlement.AddEscrow(escrow)
}

// ListChainIntents lists the intents created on the configured network
// since the configured start block.
func (s *Storefront) ListChainIntents(ctx context.Context) ([]types.IntentListing, error) {
	rate, err := s.oracle.Rate(ctx)
	if err != nil {
		return nil, types.NewError(types.KindUnavailable, "exchange rate unavailable", err)
	}
	from := new(big.Int).SetUint64(s.cfg.Chain.FromBlock)
	return s.settlement.ListIntents(ctx, s.network, from, rate)
}

// Health reports whether the escrow is reachable.
func (s *Storefront) Health(ctx context.Context) Status {
	st := Status{Status: "ok", Network: s.network, Time: time.Now().UTC()}
	if !s.settlement.IsNetworkSupported(s.network) {
		st.Status = "degraded"
		return st
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	id, err := s.backend.ChainID(ctx)
	switch {
	case err != nil:
		s.logger.Warn("rpc health check failed", map[string]any{"error": err})
		st.Status = "degraded"
	case id.Cmp(s.network.ChainID()) != 0:
		s.logger.Warn("rpc endpoint on unexpected chain", map[string]any{"chain_id": id.String()})
		st.Status = "degraded"
	default:
		st.ChainReady = true
	}
	return st
}

func (s *Storefront) Network() types.Network                    { return s.network }
func (s *Storefront) Mode() platform.Mode                       { return s.mode }
func (s *Storefront) Intents() *store.IntentStore               { return s.intents }
func (s *Storefront) Tuples() *store.TupleStore                 { return s.tuples }
func (s *Storefront) Oracle() pricing.Oracle                    { return s.oracle }
func (s *Storefront) Calculator() *pricing.Calculator           { return s.calc }
func (s *Storefront) Checkout() *checkout.Service               { return s.checkout }
func (s *Storefront) Proofs() *solver.Service                   { return s.proofs }
func (s *Storefront) Scraper() *scraper.Scraper                 { return s.scraper }
func (s *Storefront) Webhooks() *miniapp.Webhooks               { return s.webhooks }
func (s *Storefront) Notifier() *miniapp.Notifier               { return s.notifier }
func (s *Storefront) Wallet() *wallet.Adapter                   { return s.wallet }
func (s *Storefront) App() miniapp.App                          { return s.cfg.App.MiniApp() }
func (s *Storefront) Settlement() *settlement.SettlementService { return s.settlement }

// Signer is the server-held wallet, or nil when no key is configured.
func (s *Storefront) Signer() wallet.Connector { return s.signer }

// Close stops background work and releases connections.
func (s *Storefront) Close() error {
	s.proofs.Close()
	s.settlement.Close()
	if s.ownDB {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
