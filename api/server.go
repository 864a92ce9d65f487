// Package api exposes the storefront over HTTP with fiber.
package api

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storerunner/storefront/checkout"
	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/miniapp"
	"github.com/storerunner/storefront/platform"
	"github.com/storerunner/storefront/pricing"
	"github.com/storerunner/storefront/solver"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/wallet"
)

const localCapability = "capability"

// IntentStore is the intent mirror.
type IntentStore interface {
	UpsertBuyer(ctx context.Context, rec types.BuyerRecord) error
	UpdateSolver(ctx context.Context, rec types.SolverRecord) (int64, error)
	List(ctx context.Context, f types.IntentFilter) (*types.IntentPage, error)
}

type TupleStore interface {
	Publish(ctx context.Context, messages []string) (*types.Tuple, error)
	List(ctx context.Context) ([]types.Tuple, error)
}

type ProductScraper interface {
	Scrape(ctx context.Context, url string) (*types.ProductMetadata, error)
}

type Checkout interface {
	Submit(ctx context.Context, order checkout.Order) (*checkout.Result, error)
}

type Proofs interface {
	Start(ctx context.Context, intentID *big.Int, solver string) (*solver.View, error)
	Get(id string) (*solver.View, error)
	QR(id string) ([]byte, error)
	Complete(ctx context.Context, id string, proof *types.Proof) (*solver.View, error)
	Fail(ctx context.Context, id, reason string) (*solver.View, error)
}

// IntentLister lists on-chain intents for the solver dashboard.
type IntentLister interface {
	ListChainIntents(ctx context.Context) ([]types.IntentListing, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, ev *miniapp.WebhookEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, fid int64, title, message string) error
}

// Health is the /health payload.
type Health struct {
	Status     string    `json:"status"`
	Network    string    `json:"network"`
	ChainReady bool      `json:"chainReady"`
	Time       time.Time `json:"time"`
}

// Deps are the services the HTTP layer routes to. Nil services leave their
// routes answering 503.
type Deps struct {
	Intents  IntentStore
	Tuples   TupleStore
	Scraper  ProductScraper
	Checkout Checkout
	Proofs   Proofs
	Chain    IntentLister
	Webhooks WebhookHandler
	Notifier Notifier

	App        miniapp.App
	Wallet     *wallet.Adapter
	Signer     wallet.Connector
	Oracle     pricing.Oracle
	Calculator *pricing.Calculator
	Mode       platform.Mode
	Health     func(ctx context.Context) Health

	Logger      logger.Logger
	Metrics     metrics.Recorder
	Gatherer    prometheus.Gatherer
	CORSOrigins string
	ReadTimeout time.Duration
}

type handler struct {
	Deps
	log logger.Logger
}

// New builds the fiber app with middleware and every route.
func New(d Deps) *fiber.App {
	d.Logger = logger.OrNoop(d.Logger)
	d.Metrics = metrics.OrNoop(d.Metrics)
	if d.Calculator == nil {
		d.Calculator = pricing.DefaultCalculator()
	}
	if d.Wallet == nil {
		d.Wallet = wallet.NewAdapter("", d.Logger)
	}
	if d.CORSOrigins == "" {
		d.CORSOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               d.App.Name,
		ReadTimeout:           d.ReadTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(d.Logger),
	})

	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(helmet.New(helmet.Config{
		// the storefront is embedded by mini-app hosts
		XFrameOptions:             "ALLOWALL",
		ContentSecurityPolicy:     "frame-ancestors *",
		CrossOriginResourcePolicy: "cross-origin",
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: d.CORSOrigins,
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " +
			wallet.HeaderWalletAddress + ", " + wallet.HeaderChainID + ", " +
			platform.HeaderMiniAppSDK + ", " + platform.HeaderPageURL + ", " + platform.HeaderFrameContext,
	}))
	app.Use(accessLog(d.Logger, d.Metrics))
	app.Use(resolvePlatform(d.Mode))

	h := &handler{Deps: d, log: d.Logger}

	app.Get("/health", h.health)
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	app.Get("/", h.landing)
	app.Get("/.well-known/farcaster.json", h.manifest)

	api := app.Group("/api")

	api.Post("/intents", h.upsertBuyer)
	api.Patch("/intents", h.updateSolver)
	api.Get("/intents", h.listIntents)
	api.Post("/publish", h.publishTuple)
	api.Get("/strings", h.listTuples)

	api.Post("/scrape", h.scrape)
	api.Get("/quote", h.quote)
	api.Get("/session", h.session)
	api.Post("/checkout", h.checkout)

	api.Post("/proofs", h.startProof)
	api.Get("/proofs/:id", h.getProof)
	api.Get("/proofs/:id/qr", h.proofQR)
	api.Post("/proofs/:id/callback", h.proofCallback)
	api.Post("/proofs/:id/error", h.proofError)

	api.Get("/chain/intents", h.chainIntents)

	fc := api.Group("/farcaster")
	fc.Post("/frame", h.frame)
	fc.Post("/webhook", h.webhook)
	fc.Post("/notify", h.notify)
	fc.Get("/status", h.status)
	fc.Get("/debug", h.debug)
	fc.Post("/debug", h.debug)

	return app
}

func errorHandler(l logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		kind := types.KindOf(err)
		l.Error("unhandled request error", map[string]any{
			"request_id": requestID(c),
			"path":       c.Path(),
			"error":      err,
		})
		return c.Status(types.StatusOf(kind)).JSON(fiber.Map{"error": types.SafeMessage(kind)})
	}
}

func accessLog(l logger.Logger, r metrics.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = types.StatusOf(types.KindOf(err))
			}
		}
		latency := time.Since(start)

		l.Info("request", map[string]any{
			"request_id": requestID(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    latency.String(),
		})
		outcome := metrics.OutcomeSuccess
		if status >= fiber.StatusInternalServerError {
			outcome = metrics.OutcomeFailure
		}
		r.ObserveLatency("http.request", latency, map[string]string{"outcome": outcome})
		return err
	}
}

// resolvePlatform decides the environment once per request and stores it
// in the request locals for handlers.
func resolvePlatform(mode platform.Mode) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(localCapability, platform.ResolveFunc(c.UserContext(), mode, headerGetter(c)))
		return c.Next()
	}
}

func capability(c *fiber.Ctx) platform.Capability {
	if v, ok := c.Locals(localCapability).(platform.Capability); ok {
		return v
	}
	return platform.Static{Env: platform.EnvStandalone}
}

func headerGetter(c *fiber.Ctx) func(string) string {
	return func(k string) string { return c.Get(k) }
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// publicMessage picks the message a caller may see for err. Validation,
// not-found and unavailable errors carry messages written for callers;
// everything else gets fallback, or the kind's safe default.
func publicMessage(err error, fallback string) string {
	var se *types.StorefrontError
	if errors.As(err, &se) {
		switch se.Kind {
		case types.KindValidation, types.KindNotFound, types.KindUnavailable:
			return se.Message
		}
	}
	if fallback != "" {
		return fallback
	}
	return types.SafeMessage(types.KindOf(err))
}

func unavailable(c *fiber.Ctx) error {
	return fail(c, fiber.StatusServiceUnavailable, types.SafeMessage(types.KindUnavailable))
}

func (h *handler) health(c *fiber.Ctx) error {
	if h.Health == nil {
		return c.JSON(Health{Status: "ok", Time: time.Now().UTC()})
	}
	return c.JSON(h.Health(c.UserContext()))
}
