package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/storerunner/storefront/utils"
)

// Headers an embedding client uses to report its wallet.
const (
	HeaderWalletAddress = "X-Wallet-Address"
	HeaderChainID       = "X-Chain-Id"
)

var ErrChainUnknown = errors.New("wallet chain id unknown")

// Connector is a source of the connected account and its chain.
type Connector interface {
	Address() (common.Address, bool)
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
}

// ChainReader reports the chain of an RPC endpoint.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// KeyedConnector is the server-held signer. Its chain is the RPC
// endpoint's chain and cannot be switched.
type KeyedConnector struct {
	key     *ecdsa.PrivateKey
	backend ChainReader
}

func NewKeyedConnector(key *ecdsa.PrivateKey, backend ChainReader) *KeyedConnector {
	return &KeyedConnector{key: key, backend: backend}
}

func (k *KeyedConnector) Address() (common.Address, bool) {
	if k == nil || k.key == nil {
		return common.Address{}, false
	}
	return utils.AddressFromPrivateKey(k.key), true
}

func (k *KeyedConnector) ChainID(ctx context.Context) (*big.Int, error) {
	if k.backend == nil {
		return nil, ErrChainUnknown
	}
	return k.backend.ChainID(ctx)
}

func (k *KeyedConnector) SwitchChain(ctx context.Context, chainID *big.Int) error {
	current, err := k.ChainID(ctx)
	if err != nil {
		return err
	}
	if current.Cmp(chainID) != 0 {
		return fmt.Errorf("keyed wallet is bound to chain %s, cannot switch to %s", current, chainID)
	}
	return nil
}

// InjectedConnector is a wallet living in the embedding client, known only
// through what the client reports. Switch requests are recorded for the
// client to act on.
type InjectedConnector struct {
	address common.Address
	hasAddr bool
	chainID *big.Int

	mu      sync.Mutex
	pending *big.Int
}

// NewInjectedConnector parses the reported address and chain id. Either
// may be empty; the chain id accepts decimal or 0x-prefixed hex.
func NewInjectedConnector(address, chainID string) *InjectedConnector {
	c := &InjectedConnector{}
	if utils.ValidateAddress(address) {
		c.address = common.HexToAddress(address)
		c.hasAddr = true
	}
	c.chainID = parseChainID(chainID)
	return c
}

// FromHeaders builds an InjectedConnector from request headers.
func FromHeaders(get func(string) string) *InjectedConnector {
	return NewInjectedConnector(get(HeaderWalletAddress), get(HeaderChainID))
}

func (c *InjectedConnector) Address() (common.Address, bool) {
	return c.address, c.hasAddr
}

func (c *InjectedConnector) ChainID(context.Context) (*big.Int, error) {
	if c.chainID == nil {
		return nil, ErrChainUnknown
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *InjectedConnector) SwitchChain(_ context.Context, chainID *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = new(big.Int).Set(chainID)
	return nil
}

// PendingSwitch returns the last requested chain, if any.
func (c *InjectedConnector) PendingSwitch() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func parseChainID(s string) *big.Int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() <= 0 {
		return nil
	}
	return n
}
