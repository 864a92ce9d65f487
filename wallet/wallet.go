// Package wallet picks the wallet connection setup for the running
// environment and reports the connected account.
package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/samber/lo"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/platform"
	"github.com/storerunner/storefront/types"
)

// Connector kinds.
const (
	ConnectorMultiWallet = "multi-wallet"
	ConnectorMiniApp     = "miniapp"
)

// TargetNetwork is the chain every session is steered to.
const TargetNetwork = types.NetworkBaseSepolia

// Config is the connection setup for one environment.
type Config struct {
	Connector string          `json:"connector"`
	Networks  []types.Network `json:"networks"`
	Target    types.Network   `json:"target"`
	ProjectID string          `json:"projectId,omitempty"`
}

// ConfigFor returns the setup for env. A standalone browser gets the
// multi-wallet connector on the test network only; the mini-app host's
// embedded connector also allows mainnet.
func ConfigFor(env platform.Environment, projectID string) Config {
	if env == platform.EnvMiniApp {
		return Config{
			Connector: ConnectorMiniApp,
			Networks:  []types.Network{types.NetworkBaseSepolia, types.NetworkBase},
			Target:    TargetNetwork,
		}
	}
	return Config{
		Connector: ConnectorMultiWallet,
		Networks:  []types.Network{types.NetworkBaseSepolia},
		Target:    TargetNetwork,
		ProjectID: projectID,
	}
}

// Session is the wallet state for one request.
type Session struct {
	Environment     platform.Environment `json:"environment"`
	Connector       string               `json:"connector"`
	Networks        []string             `json:"networks"`
	Address         string               `json:"address,omitempty"`
	Connected       bool                 `json:"connected"`
	ChainID         string               `json:"chainId,omitempty"`
	TargetChainID   string               `json:"targetChainId"`
	SwitchRequested bool                 `json:"switchRequested"`
	Warning         string               `json:"warning,omitempty"`
}

type Adapter struct {
	projectID string
	logger    logger.Logger
}

func NewAdapter(projectID string, l logger.Logger) *Adapter {
	return &Adapter{projectID: projectID, logger: logger.OrNoop(l)}
}

// Open connects through c and, when the wallet sits on another chain, asks
// it to switch to the target. A failed switch is reported in Warning and
// does not block the session.
func (a *Adapter) Open(ctx context.Context, env platform.Environment, c Connector) *Session {
	cfg := ConfigFor(env, a.projectID)
	target := cfg.Target.ChainID()

	s := &Session{
		Environment:   env,
		Connector:     cfg.Connector,
		Networks:      lo.Map(cfg.Networks, func(n types.Network, _ int) string { return n.String() }),
		TargetChainID: target.String(),
	}

	if c == nil {
		return s
	}
	addr, ok := c.Address()
	if !ok {
		return s
	}
	s.Address = addr.Hex()
	s.Connected = true

	current, err := c.ChainID(ctx)
	if err != nil {
		a.logger.Warn("wallet chain unknown", map[string]any{"address": s.Address, "error": err})
		s.Warning = "Could not read the wallet network."
		return s
	}
	s.ChainID = current.String()
	if current.Cmp(target) == 0 {
		return s
	}

	if err := c.SwitchChain(ctx, target); err != nil {
		a.logger.Warn("chain switch failed", map[string]any{
			"address": s.Address,
			"from":    s.ChainID,
			"to":      s.TargetChainID,
			"error":   err,
		})
		s.Warning = fmt.Sprintf("Please switch your wallet to %s.", cfg.Target)
		return s
	}
	s.SwitchRequested = true
	return s
}

// Allowed reports whether chainID is one of the networks of cfg.
func (cfg Config) Allowed(chainID *big.Int) bool {
	return lo.SomeBy(cfg.Networks, func(n types.Network) bool {
		id := n.ChainID()
		return id != nil && chainID != nil && id.Cmp(chainID) == 0
	})
}
