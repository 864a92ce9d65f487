package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/storerunner/storefront/types"
)

// DefaultGasLimit is the fixed gas limit attached to escrow transactions.
const DefaultGasLimit uint64 = 3_000_000

var (
	ErrNoSigner = errors.New("escrow client has no signer")
	ErrReverted = errors.New("transaction reverted")
	// ErrPending means the transaction was broadcast but no receipt arrived
	// before the context ended. The returned receipt carries only TxHash.
	ErrPending = errors.New("transaction pending")
)

var _ Escrow = (*EscrowClient)(nil)

// EscrowClient reads and writes the intent escrow contract.
type EscrowClient struct {
	network  types.Network
	address  common.Address
	backend  Backend
	abi      abi.ABI
	signer   *bind.TransactOpts
	gasLimit uint64
}

// ProofSubmittedEvent is the payout breakdown emitted by submitProof.
type ProofSubmittedEvent struct {
	IntentID            *big.Int
	Solver              common.Address
	FinalPrice          *big.Int
	SolverFee           *big.Int
	SolverPayout        *big.Int
	LeftoverBuyerRefund *big.Int
}

type EscrowOption func(*EscrowClient) error

// WithSigner lets the client send transactions from key.
func WithSigner(key *ecdsa.PrivateKey) EscrowOption {
	return func(c *EscrowClient) error {
		chainID := c.network.ChainID()
		if chainID == nil {
			return fmt.Errorf("no chain id for network %s", c.network)
		}
		opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return fmt.Errorf("failed to build transactor: %w", err)
		}
		c.signer = opts
		return nil
	}
}

func WithGasLimit(limit uint64) EscrowOption {
	return func(c *EscrowClient) error {
		if limit > 0 {
			c.gasLimit = limit
		}
		return nil
	}
}

func NewEscrowClient(network types.Network, address common.Address, backend Backend, opts ...EscrowOption) (*EscrowClient, error) {
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow ABI: %w", err)
	}

	c := &EscrowClient{
		network:  network,
		address:  address,
		backend:  backend,
		abi:      parsed,
		gasLimit: DefaultGasLimit,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *EscrowClient) Network() types.Network {
	return c.network
}

func (c *EscrowClient) Address() common.Address {
	return c.address
}

// Sender returns the signing address, if any.
func (c *EscrowClient) Sender() (common.Address, bool) {
	if c.signer == nil {
		return common.Address{}, false
	}
	return c.signer.From, true
}

func (c *EscrowClient) Close() {
	c.backend.Close()
}

func (c *EscrowClient) NextIntentID(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "nextIntentId")
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (c *EscrowClient) SolverFeeBPS(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "SOLVER_FEE_BPS")
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (c *EscrowClient) IsSolverWhitelisted(ctx context.Context, solver common.Address) (bool, error) {
	out, err := c.call(ctx, "isSolverWhitelisted", solver)
	if err != nil {
		return false, err
	}
	ok, _ := out[0].(bool)
	return ok, nil
}

// GetIntent reads the intents(id) tuple.
func (c *EscrowClient) GetIntent(ctx context.Context, id *big.Int) (*types.ChainIntent, error) {
	out, err := c.call(ctx, "intents", id)
	if err != nil {
		return nil, err
	}
	if len(out) != 6 {
		return nil, fmt.Errorf("intents(%s): unexpected %d outputs", id, len(out))
	}
	return &types.ChainIntent{
		ID:                 new(big.Int).Set(id),
		Buyer:              out[0].(common.Address),
		Deposit:            abi.ConvertType(out[1], new(big.Int)).(*big.Int),
		HashedProductLink:  common.Hash(out[2].([32]byte)),
		HashedShippingAddr: common.Hash(out[3].([32]byte)),
		Deadline:           abi.ConvertType(out[4], new(big.Int)).(*big.Int),
		Fulfilled:          out[5].(bool),
	}, nil
}

// CreateIntent locks value behind the product and shipping hashes for
// seconds and waits for the receipt.
func (c *EscrowClient) CreateIntent(ctx context.Context, link, shipping common.Hash, seconds, value *big.Int) (*gethtypes.Receipt, error) {
	return c.transact(ctx, value, "createIntent", [32]byte(link), [32]byte(shipping), seconds)
}

// SubmitProof claims intent id with the solver's hashes and final price.
func (c *EscrowClient) SubmitProof(ctx context.Context, id *big.Int, link, shipping common.Hash, finalPrice *big.Int) (*gethtypes.Receipt, error) {
	return c.transact(ctx, nil, "submitProof", id, [32]byte(link), [32]byte(shipping), finalPrice)
}

// IntentCreatedEvents lists every IntentCreated log from fromBlock onward.
func (c *EscrowClient) IntentCreatedEvents(ctx context.Context, fromBlock *big.Int) ([]types.IntentCreatedEvent, error) {
	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: fromBlock,
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.abi.Events["IntentCreated"].ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter IntentCreated logs: %w", err)
	}

	events := make([]types.IntentCreatedEvent, 0, len(logs))
	for _, l := range logs {
		ev, err := c.ParseIntentCreated(l)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, nil
}

func (c *EscrowClient) ParseIntentCreated(l gethtypes.Log) (*types.IntentCreatedEvent, error) {
	ev := c.abi.Events["IntentCreated"]
	if len(l.Topics) != 3 || l.Topics[0] != ev.ID {
		return nil, fmt.Errorf("log is not IntentCreated")
	}
	values := map[string]any{}
	if err := ev.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
		return nil, fmt.Errorf("failed to decode IntentCreated: %w", err)
	}
	return &types.IntentCreatedEvent{
		IntentID:           new(big.Int).SetBytes(l.Topics[1].Bytes()),
		Buyer:              common.BytesToAddress(l.Topics[2].Bytes()),
		Deposit:            values["deposit"].(*big.Int),
		HashedProductLink:  common.Hash(values["hashedProductLink"].([32]byte)),
		HashedShippingAddr: common.Hash(values["hashedShippingAddr"].([32]byte)),
		Deadline:           values["deadline"].(*big.Int),
		BlockNumber:        l.BlockNumber,
		TxHash:             l.TxHash,
	}, nil
}

func (c *EscrowClient) ParseProofSubmitted(l gethtypes.Log) (*ProofSubmittedEvent, error) {
	ev := c.abi.Events["ProofSubmitted"]
	if len(l.Topics) != 3 || l.Topics[0] != ev.ID {
		return nil, fmt.Errorf("log is not ProofSubmitted")
	}
	values := map[string]any{}
	if err := ev.Inputs.NonIndexed().UnpackIntoMap(values, l.Data); err != nil {
		return nil, fmt.Errorf("failed to decode ProofSubmitted: %w", err)
	}
	return &ProofSubmittedEvent{
		IntentID:            new(big.Int).SetBytes(l.Topics[1].Bytes()),
		Solver:              common.BytesToAddress(l.Topics[2].Bytes()),
		FinalPrice:          values["finalPrice"].(*big.Int),
		SolverFee:           values["solverFee"].(*big.Int),
		SolverPayout:        values["solverPayout"].(*big.Int),
		LeftoverBuyerRefund: values["leftoverBuyerRefund"].(*big.Int),
	}, nil
}

func (c *EscrowClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: data}
	if from, ok := c.Sender(); ok {
		msg.From = from
	}

	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func (c *EscrowClient) transact(ctx context.Context, value *big.Int, method string, args ...any) (*gethtypes.Receipt, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}
	if value == nil {
		value = new(big.Int)
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.signer.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    value,
		Gas:      c.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := c.signer.Signer(c.signer.From, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s: %w", method, err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, c.backend, signed)
	if err != nil {
		return &gethtypes.Receipt{TxHash: signed.Hash()}, fmt.Errorf("%w: %s %s: %w", ErrPending, method, signed.Hash().Hex(), err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s %s", ErrReverted, method, signed.Hash().Hex())
	}
	return receipt, nil
}
