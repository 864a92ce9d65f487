package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/storerunner/storefront"
	"github.com/storerunner/storefront/api"
	"github.com/storerunner/storefront/clients"
	"github.com/storerunner/storefront/config"
	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("STOREFRONT_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	var (
		rec      metrics.Recorder = metrics.NoopRecorder{}
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		pr, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			log.Fatalf("Failed to register metrics: %v", err)
		}
		rec, gatherer = pr, reg
	}

	opts := []storefront.Option{
		storefront.WithLogger(zl),
		storefront.WithMetrics(rec),
		storefront.WithTimeout(cfg.Chain.Timeout),
	}
	if cfg.Chain.RPCURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Chain.Timeout)
		backend, err := clients.Dial(ctx, cfg.Chain.RPCURL)
		cancel()
		if err != nil {
			log.Fatalf("Failed to dial RPC: %v", err)
		}
		opts = append(opts, storefront.WithBackend(backend))
	}

	sf, err := storefront.New(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to start storefront: %v", err)
	}

	app := api.New(api.Deps{
		Intents:  sf.Intents(),
		Tuples:   sf.Tuples(),
		Scraper:  sf.Scraper(),
		Checkout: sf.Checkout(),
		Proofs:   sf.Proofs(),
		Chain:    sf,
		Webhooks: sf.Webhooks(),
		Notifier: sf.Notifier(),

		App:        sf.App(),
		Wallet:     sf.Wallet(),
		Signer:     sf.Signer(),
		Oracle:     sf.Oracle(),
		Calculator: sf.Calculator(),
		Mode:       sf.Mode(),
		Health: func(ctx context.Context) api.Health {
			st := sf.Health(ctx)
			return api.Health{Status: st.Status, Network: st.Network.String(), ChainReady: st.ChainReady, Time: st.Time}
		},

		Logger:      zl,
		Metrics:     rec,
		Gatherer:    gatherer,
		CORSOrigins: cfg.Server.CORSOrigins,
		ReadTimeout: cfg.Server.ReadTimeout,
	})

	go func() {
		zl.Info("listening", map[string]any{"addr": cfg.Server.Addr, "version": storefront.Version})
		if err := app.Listen(cfg.Server.Addr); err != nil {
			zl.Error("server stopped", map[string]any{"error": err})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zl.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		zl.Error("shutdown failed", map[string]any{"error": err})
	}
	if err := sf.Close(); err != nil {
		zl.Error("closing storefront failed", map[string]any{"error": err})
	}
}
