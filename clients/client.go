// Package clients talks to the escrow contract over JSON-RPC.
package clients

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/storerunner/storefront/types"
)

// Backend is the subset of *ethclient.Client the escrow client needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// Escrow is the contract surface used by settlement and the dashboard.
type Escrow interface {
	Network() types.Network
	Sender() (common.Address, bool)
	NextIntentID(ctx context.Context) (*big.Int, error)
	SolverFeeBPS(ctx context.Context) (*big.Int, error)
	GetIntent(ctx context.Context, id *big.Int) (*types.ChainIntent, error)
	IsSolverWhitelisted(ctx context.Context, solver common.Address) (bool, error)
	CreateIntent(ctx context.Context, link, shipping common.Hash, seconds, value *big.Int) (*gethtypes.Receipt, error)
	SubmitProof(ctx context.Context, id *big.Int, link, shipping common.Hash, finalPrice *big.Int) (*gethtypes.Receipt, error)
	IntentCreatedEvents(ctx context.Context, fromBlock *big.Int) ([]types.IntentCreatedEvent, error)
	ParseIntentCreated(log gethtypes.Log) (*types.IntentCreatedEvent, error)
	ParseProofSubmitted(log gethtypes.Log) (*ProofSubmittedEvent, error)
	Close()
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	return ethclient.DialContext(ctx, rpcURL)
}
