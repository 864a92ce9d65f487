package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainIntent is the escrow contract's view of an intent.
type ChainIntent struct {
	ID                 *big.Int       `json:"intentId"`
	Buyer              common.Address `json:"buyer"`
	Deposit            *big.Int       `json:"deposit"`
	HashedProductLink  common.Hash    `json:"hashedProductLink"`
	HashedShippingAddr common.Hash    `json:"hashedShippingAddr"`
	Deadline           *big.Int       `json:"deadline"`
	Fulfilled          bool           `json:"fulfilled"`
}

// DeadlineTime converts the unix-seconds deadline.
func (c *ChainIntent) DeadlineTime() time.Time {
	if c.Deadline == nil {
		return time.Time{}
	}
	return time.Unix(c.Deadline.Int64(), 0).UTC()
}

// IntentCreatedEvent is a decoded IntentCreated log.
type IntentCreatedEvent struct {
	IntentID           *big.Int
	Buyer              common.Address
	Deposit            *big.Int
	HashedProductLink  common.Hash
	HashedShippingAddr common.Hash
	Deadline           *big.Int
	BlockNumber        uint64
	TxHash             common.Hash
}

// CreateIntentRequest asks the escrow to lock Value behind the two hashes.
type CreateIntentRequest struct {
	Network            Network
	HashedProductLink  common.Hash
	HashedShippingAddr common.Hash
	Duration           time.Duration
	Value              *big.Int
}

// SubmitProofRequest claims an intent with solver-side hashes and price.
type SubmitProofRequest struct {
	Network            Network
	IntentID           *big.Int
	Solver             common.Address
	HashedProductLink  common.Hash
	HashedShippingAddr common.Hash
	FinalPrice         *big.Int
}

// IntentResult reports a createIntent submission.
type IntentResult struct {
	Success   bool      `json:"success"`
	IntentID  *big.Int  `json:"intentId,omitempty"`
	TxHash    string    `json:"txHash,omitempty"`
	Error     string    `json:"error,omitempty"`
	NetworkID string    `json:"networkId"`
	Timestamp time.Time `json:"timestamp"`
}

// ProofResult reports a submitProof submission.
type ProofResult struct {
	Success      bool      `json:"success"`
	TxHash       string    `json:"txHash,omitempty"`
	SolverFee    *big.Int  `json:"solverFee,omitempty"`
	SolverPayout *big.Int  `json:"solverPayout,omitempty"`
	BuyerRefund  *big.Int  `json:"buyerRefund,omitempty"`
	Error        string    `json:"error,omitempty"`
	NetworkID    string    `json:"networkId"`
	Timestamp    time.Time `json:"timestamp"`
}

// IntentListing is a dashboard row built from an IntentCreated event.
type IntentListing struct {
	IntentID           string    `json:"intentId"`
	Buyer              string    `json:"buyer"`
	Deposit            string    `json:"deposit"`
	DepositUSD         string    `json:"depositUsd"`
	HashedProductLink  string    `json:"hashedProductLink"`
	HashedShippingAddr string    `json:"hashedShippingAddr"`
	Deadline           time.Time `json:"deadline"`
	Fulfilled          bool      `json:"fulfilled"`
	Remaining          string    `json:"remaining"`
}
