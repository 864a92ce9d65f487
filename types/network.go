package types

import (
	"fmt"
	"math/big"
)

// Network identifies an EVM chain the escrow contract is deployed on.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
)

var chainIDs = map[Network]int64{
	NetworkBase:        8453,
	NetworkBaseSepolia: 84532,
}

// ChainID returns the EIP-155 chain id, or nil for an unknown network.
func (n Network) ChainID() *big.Int {
	id, ok := chainIDs[n]
	if !ok {
		return nil
	}
	return big.NewInt(id)
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia
}

func (n Network) String() string {
	return string(n)
}

// ParseNetwork validates a configured network name.
func ParseNetwork(s string) (Network, error) {
	n := Network(s)
	if _, ok := chainIDs[n]; !ok {
		return "", NewError(KindValidation, fmt.Sprintf("unsupported network: %s", s), nil)
	}
	return n, nil
}

// NetworkByChainID maps a chain id back to a known network.
func NetworkByChainID(id int64) (Network, bool) {
	for n, cid := range chainIDs {
		if cid == id {
			return n, true
		}
	}
	return "", false
}
