package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storerunner/storefront/clients"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/types"
)

type fakeEscrow struct {
	network   types.Network
	next      *big.Int
	intents   map[int64]*types.ChainIntent
	events    []types.IntentCreatedEvent
	createErr error
	submitErr error
	createdID *big.Int
	lastValue *big.Int
	lastSecs  *big.Int
	closed    bool
}

func (f *fakeEscrow) Network() types.Network { return f.network }

func (f *fakeEscrow) Sender() (common.Address, bool) {
	return common.HexToAddress("0x01"), true
}

func (f *fakeEscrow) NextIntentID(context.Context) (*big.Int, error) { return f.next, nil }

func (f *fakeEscrow) SolverFeeBPS(context.Context) (*big.Int, error) { return big.NewInt(200), nil }

func (f *fakeEscrow) GetIntent(_ context.Context, id *big.Int) (*types.ChainIntent, error) {
	in, ok := f.intents[id.Int64()]
	if !ok {
		return nil, errors.New("missing")
	}
	return in, nil
}

func (f *fakeEscrow) IsSolverWhitelisted(context.Context, common.Address) (bool, error) {
	return true, nil
}

func (f *fakeEscrow) CreateIntent(_ context.Context, _, _ common.Hash, seconds, value *big.Int) (*gethtypes.Receipt, error) {
	f.lastSecs, f.lastValue = seconds, value
	if errors.Is(f.createErr, clients.ErrPending) {
		return &gethtypes.Receipt{TxHash: common.Hash{0xaa}}, f.createErr
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	r := &gethtypes.Receipt{TxHash: common.Hash{0xaa}}
	if f.createdID != nil {
		r.Logs = []*gethtypes.Log{{Topics: []common.Hash{{0x1}}}}
	}
	return r, nil
}

func (f *fakeEscrow) SubmitProof(context.Context, *big.Int, common.Hash, common.Hash, *big.Int) (*gethtypes.Receipt, error) {
	if f.submitErr != nil {
		return &gethtypes.Receipt{TxHash: common.Hash{0xbb}}, f.submitErr
	}
	return &gethtypes.Receipt{TxHash: common.Hash{0xbb}, Logs: []*gethtypes.Log{{}}}, nil
}

func (f *fakeEscrow) IntentCreatedEvents(context.Context, *big.Int) ([]types.IntentCreatedEvent, error) {
	return f.events, nil
}

func (f *fakeEscrow) ParseIntentCreated(gethtypes.Log) (*types.IntentCreatedEvent, error) {
	return &types.IntentCreatedEvent{IntentID: f.createdID}, nil
}

func (f *fakeEscrow) ParseProofSubmitted(gethtypes.Log) (*clients.ProofSubmittedEvent, error) {
	return &clients.ProofSubmittedEvent{SolverFee: big.NewInt(2), SolverPayout: big.NewInt(98), LeftoverBuyerRefund: big.NewInt(5)}, nil
}

func (f *fakeEscrow) Close() { f.closed = true }

func newService(t *testing.T, e *fakeEscrow, opts ...Option) *SettlementService {
	s := NewSettlementService(time.Second, opts...)
	require.NoError(t, s.AddEscrow(e))
	return s
}

func TestAddEscrow_RejectsUnknownNetwork(t *testing.T) {
	s := NewSettlementService(time.Second)
	err := s.AddEscrow(&fakeEscrow{network: "polygon"})
	assert.True(t, types.IsKind(err, types.KindValidation))
	assert.False(t, s.IsNetworkSupported("polygon"))
}

func TestCreateIntent_ReportsIDFromReceipt(t *testing.T) {
	rec := metrics.NewMemoryRecorder()
	e := &fakeEscrow{network: types.NetworkBaseSepolia, createdID: big.NewInt(12)}
	s := newService(t, e, WithMetrics(rec))

	res, err := s.CreateIntent(context.Background(), &types.CreateIntentRequest{
		Network:  types.NetworkBaseSepolia,
		Duration: 3000 * time.Second,
		Value:    big.NewInt(99),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(12), res.IntentID.Int64())
	assert.Equal(t, common.Hash{0xaa}.Hex(), res.TxHash)
	assert.Equal(t, int64(3000), e.lastSecs.Int64())
	assert.Equal(t, int64(99), e.lastValue.Int64())
	assert.Equal(t, 1, rec.Count("chain.create_intent", metrics.OutcomeSuccess))
}

func TestCreateIntent_WithoutLogLeavesIDEmpty(t *testing.T) {
	s := newService(t, &fakeEscrow{network: types.NetworkBaseSepolia})
	res, err := s.CreateIntent(context.Background(), &types.CreateIntentRequest{Network: types.NetworkBaseSepolia})
	require.NoError(t, err)
	assert.Nil(t, res.IntentID)
}

func TestCreateIntent_ChainError(t *testing.T) {
	e := &fakeEscrow{network: types.NetworkBaseSepolia, createErr: errors.New("insufficient funds for transfer")}
	s := newService(t, e)

	res, err := s.CreateIntent(context.Background(), &types.CreateIntentRequest{Network: types.NetworkBaseSepolia})
	require.Error(t, err)
	assert.Equal(t, types.KindChain, types.KindOf(err))
	assert.False(t, res.Success)
	assert.Equal(t, "Transaction failed: Insufficient funds.", res.Error)
	assert.Equal(t, clients.ChainErrInsufficientFunds, clients.ClassifyChainError(err))
}

func TestCreateIntent_PendingKeepsTxHash(t *testing.T) {
	e := &fakeEscrow{network: types.NetworkBaseSepolia, createErr: fmt.Errorf("%w: createIntent: %w", clients.ErrPending, context.DeadlineExceeded)}
	s := newService(t, e)

	res, err := s.CreateIntent(context.Background(), &types.CreateIntentRequest{Network: types.NetworkBaseSepolia})
	require.ErrorIs(t, err, clients.ErrPending)
	assert.Equal(t, types.KindChain, types.KindOf(err))
	assert.False(t, res.Success)
	assert.Equal(t, common.Hash{0xaa}.Hex(), res.TxHash)
	assert.Equal(t, "Transaction submitted but not yet confirmed. Check your wallet before retrying.", res.Error)
}

func TestCreateIntent_UnknownNetwork(t *testing.T) {
	s := NewSettlementService(time.Second)
	_, err := s.CreateIntent(context.Background(), &types.CreateIntentRequest{Network: types.NetworkBase})
	assert.True(t, types.IsKind(err, types.KindUnavailable))
}

func TestSubmitProof(t *testing.T) {
	s := newService(t, &fakeEscrow{network: types.NetworkBaseSepolia})
	res, err := s.SubmitProof(context.Background(), &types.SubmitProofRequest{
		Network:    types.NetworkBaseSepolia,
		IntentID:   big.NewInt(1),
		FinalPrice: big.NewInt(10),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(98), res.SolverPayout.Int64())
	assert.Equal(t, int64(5), res.BuyerRefund.Int64())
}

func TestSubmitProof_Reverted(t *testing.T) {
	s := newService(t, &fakeEscrow{network: types.NetworkBaseSepolia, submitErr: clients.ErrReverted})
	res, err := s.SubmitProof(context.Background(), &types.SubmitProofRequest{
		Network:  types.NetworkBaseSepolia,
		IntentID: big.NewInt(1),
	})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.TxHash)
	assert.ErrorIs(t, err, clients.ErrReverted)
}

func TestListIntents(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	e := &fakeEscrow{
		network: types.NetworkBaseSepolia,
		events: []types.IntentCreatedEvent{
			{IntentID: big.NewInt(9), Buyer: common.HexToAddress("0x02"), Deposit: oneEth, Deadline: big.NewInt(now.Add(-time.Minute).Unix())},
			{IntentID: big.NewInt(10), Buyer: common.HexToAddress("0x03"), Deposit: oneEth, Deadline: big.NewInt(now.Add(90 * time.Second).Unix())},
		},
		intents: map[int64]*types.ChainIntent{
			9:  {Fulfilled: true},
			10: {Fulfilled: false},
		},
	}
	s := newService(t, e, WithClock(func() time.Time { return now }))

	rows, err := s.ListIntents(context.Background(), types.NetworkBaseSepolia, big.NewInt(0), decimal.NewFromInt(3050))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "10", rows[0].IntentID)
	assert.Equal(t, "0d 0h 1m 30s", rows[0].Remaining)
	assert.False(t, rows[0].Fulfilled)
	assert.Equal(t, "$3,050.00", rows[0].DepositUSD)

	assert.Equal(t, "9", rows[1].IntentID)
	assert.Equal(t, "Expired", rows[1].Remaining)
	assert.True(t, rows[1].Fulfilled)
}

func TestClose(t *testing.T) {
	e := &fakeEscrow{network: types.NetworkBaseSepolia}
	s := newService(t, e)
	s.Close()
	assert.True(t, e.closed)
}
