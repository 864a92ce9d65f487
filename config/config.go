// Package config loads storefront settings from an optional YAML file, a
// .env file and STOREFRONT_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/storerunner/storefront/miniapp"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/utils"
)

const EnvPrefix = "STOREFRONT"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Proof    ProofConfig    `mapstructure:"proof"`
	Platform PlatformConfig `mapstructure:"platform"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	App      AppConfig      `mapstructure:"app"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr" validate:"required"`
	CORSOrigins string        `mapstructure:"cors_origins"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type ChainConfig struct {
	Network        string        `mapstructure:"network" validate:"oneof=base base-sepolia"`
	RPCURL         string        `mapstructure:"rpc_url"`
	EscrowAddress  string        `mapstructure:"escrow_address" validate:"required,eth_addr"`
	PrivateKey     string        `mapstructure:"private_key"`
	IntentDuration time.Duration `mapstructure:"intent_duration" validate:"gt=0"`
	GasLimit       uint64        `mapstructure:"gas_limit" validate:"gt=0"`
	FromBlock      uint64        `mapstructure:"from_block"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type PricingConfig struct {
	USDPerNative  string `mapstructure:"usd_per_native" validate:"required,numeric"`
	SolverFeeRate string `mapstructure:"solver_fee_rate" validate:"required,numeric"`
	ShippingFee   string `mapstructure:"shipping_fee" validate:"required,numeric"`
}

type ScraperConfig struct {
	Marker    string        `mapstructure:"marker" validate:"required"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ProofConfig struct {
	AppID           string        `mapstructure:"app_id"`
	ProviderID      string        `mapstructure:"provider_id"`
	RequestBaseURL  string        `mapstructure:"request_base_url"`
	CallbackBaseURL string        `mapstructure:"callback_base_url"`
	Attestors       []string      `mapstructure:"attestors" validate:"dive,eth_addr"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"gte=0"`
	MaxSessions     uint64        `mapstructure:"max_sessions" validate:"gt=0"`
}

type PlatformConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=auto standalone miniapp"`
}

type WalletConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

type AppConfig struct {
	Name               string              `mapstructure:"name" validate:"required"`
	URL                string              `mapstructure:"url" validate:"required,url"`
	ImageURL           string              `mapstructure:"image_url"`
	IconURL            string              `mapstructure:"icon_url"`
	Description        string              `mapstructure:"description"`
	AccountAssociation miniapp.Association `mapstructure:"account_association"`
	NotificationHosts  []string            `mapstructure:"notification_hosts" validate:"min=1,dive,hostname"`
}

var defaults = map[string]any{
	"server.addr":         ":8080",
	"server.cors_origins": "*",
	"server.read_timeout": "10s",

	"log.level": "info",

	"metrics.enabled": true,

	"database.driver": "sqlite",
	"database.dsn":    "storefront.db",

	"chain.network":         string(types.NetworkBaseSepolia),
	"chain.rpc_url":         "",
	"chain.escrow_address":  "0x6Eff10719fF6d40A5b4874B2244A97CAf768a150",
	"chain.private_key":     "",
	"chain.intent_duration": "3000s",
	"chain.gas_limit":       3_000_000,
	"chain.from_block":      0,
	"chain.timeout":         "30s",

	"pricing.usd_per_native":  "3050",
	"pricing.solver_fee_rate": "0.02",
	"pricing.shipping_fee":    "13",

	"scraper.marker":     "amazon",
	"scraper.user_agent": "",
	"scraper.timeout":    "15s",

	"proof.app_id":            "",
	"proof.provider_id":       "",
	"proof.request_base_url":  "",
	"proof.callback_base_url": "",
	"proof.attestors":         []string{},
	"proof.session_ttl":       "1h",
	"proof.max_sessions":      10_000,

	"platform.mode": "auto",

	"wallet.project_id": "",

	"app.name":                          "Storerunner",
	"app.url":                           "https://storerunner.xyz",
	"app.image_url":                     "",
	"app.icon_url":                      "",
	"app.description":                   "Order from your favorite ecommerce platforms directly onchain without having to move any funds.",
	"app.account_association.header":    "",
	"app.account_association.payload":   "",
	"app.account_association.signature": "",
	"app.notification_hosts":            miniapp.DefaultNotificationHosts,
}

// Load reads configuration. path may be empty, in which case only the
// defaults, .env and the environment are used.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, types.NewError(types.KindValidation, "reading .env failed", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, types.NewError(types.KindValidation, "reading config file failed", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.NewError(types.KindValidation, "decoding config failed", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return utils.Validate(c)
}

// Network is the parsed chain network.
func (c *Config) Network() types.Network {
	return types.Network(c.Chain.Network)
}

// Rate is the configured USD price of one native unit.
func (c PricingConfig) Rate() decimal.Decimal {
	return decimal.RequireFromString(c.USDPerNative)
}

func (c PricingConfig) FeeRate() decimal.Decimal {
	return decimal.RequireFromString(c.SolverFeeRate)
}

func (c PricingConfig) Shipping() decimal.Decimal {
	return decimal.RequireFromString(c.ShippingFee)
}

// MiniApp converts the app section for the mini-app surface.
func (c AppConfig) MiniApp() miniapp.App {
	assoc := c.AccountAssociation
	return miniapp.App{
		Name:               c.Name,
		URL:                c.URL,
		ImageURL:           c.ImageURL,
		IconURL:            c.IconURL,
		Description:        c.Description,
		AccountAssociation: &assoc,
	}
}
