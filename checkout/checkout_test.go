package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storerunner/storefront/clients"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/pricing"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/utils"
)

type fakeChain struct {
	noSigner  bool
	next      *big.Int
	nextErr   error
	created   *types.IntentResult
	createErr error
	lastReq   *types.CreateIntentRequest
}

func (f *fakeChain) Sender(types.Network) (common.Address, bool) {
	return common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), !f.noSigner
}

func (f *fakeChain) NextIntentID(context.Context, types.Network) (*big.Int, error) {
	return f.next, f.nextErr
}

func (f *fakeChain) CreateIntent(_ context.Context, req *types.CreateIntentRequest) (*types.IntentResult, error) {
	f.lastReq = req
	return f.created, f.createErr
}

type fakeMirror struct {
	records []types.BuyerRecord
	err     error
}

func (m *fakeMirror) UpsertBuyer(_ context.Context, rec types.BuyerRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

func validOrder() Order {
	return Order{
		ItemURL:    "https://www.amazon.com/Some-Thing/dp/B08N5WRWNW/ref=sr_1_1",
		TotalPrice: decimal.NewFromInt(100),
		Quantity:   1,
		Shipping: types.ShippingDetails{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Address:   "12 Main St",
			City:      "Springfield",
			State:     "IL",
			ZipCode:   "62701",
			Country:   "United States",
		},
	}
}

func newTestService(t *testing.T, chain *fakeChain, opts ...Option) *Service {
	t.Helper()
	oracle, err := pricing.NewStaticOracle(decimal.NewFromInt(3050))
	require.NoError(t, err)
	return NewService(chain, oracle, nil, Config{
		Network:        types.NetworkBaseSepolia,
		IntentDuration: 3000 * time.Second,
	}, opts...)
}

func TestWorkflow_Transitions(t *testing.T) {
	ctx := context.Background()

	wf := NewWorkflow()
	assert.Equal(t, StateIdle, wf.Current())
	assert.Error(t, wf.Succeed(ctx))
	assert.Error(t, wf.Fail(ctx))

	require.NoError(t, wf.Send(ctx))
	assert.Equal(t, StateSending, wf.Current())
	assert.Error(t, wf.Send(ctx))
	require.NoError(t, wf.Succeed(ctx))
	assert.Equal(t, StateSuccess, wf.Current())
	assert.True(t, wf.Done())

	for _, step := range []func(context.Context) error{wf.Send, wf.Succeed, wf.Fail} {
		assert.Error(t, step(ctx))
	}

	wf = NewWorkflow()
	require.NoError(t, wf.Send(ctx))
	require.NoError(t, wf.Fail(ctx))
	assert.Equal(t, StateFailed, wf.Current())
	assert.Error(t, wf.Send(ctx))
	assert.Error(t, wf.Succeed(ctx))

	wf = NewWorkflow()
	assert.Error(t, wf.Pending(ctx))
	require.NoError(t, wf.Send(ctx))
	require.NoError(t, wf.Pending(ctx))
	assert.Equal(t, StatePending, wf.Current())
	assert.True(t, wf.Done())
	assert.Error(t, wf.Succeed(ctx))
}

func TestSubmit_Success(t *testing.T) {
	chain := &fakeChain{
		next:    big.NewInt(4),
		created: &types.IntentResult{Success: true, IntentID: big.NewInt(5), TxHash: "0xabc"},
	}
	mirror := &fakeMirror{}
	rec := metrics.NewMemoryRecorder()
	svc := newTestService(t, chain, WithMirror(mirror), WithMetrics(rec))

	res, err := svc.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, int64(5), res.IntentID.Int64())
	assert.Equal(t, "0xabc", res.TxHash)
	assert.Empty(t, res.Alert)
	assert.Equal(t, "$115.00", res.Quote.FormattedFinal)

	req := chain.lastReq
	require.NotNil(t, req)
	assert.Equal(t, utils.ContentHash("B08N5WRWNW"), req.HashedProductLink)
	assert.Equal(t, utils.ContentHash("Ada Lovelace12 MAIN STSPRINGFIELD, IL 62701United States"), req.HashedShippingAddr)
	assert.Equal(t, "37704918032786885", req.Value.String())
	assert.Equal(t, 3000*time.Second, req.Duration)

	require.Len(t, mirror.records, 1)
	assert.Equal(t, int64(5), mirror.records[0].IntentID)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", mirror.records[0].WalletAddress)
	assert.Equal(t, "37704918032786885", *mirror.records[0].Deposit)
	assert.Equal(t, 1, rec.Count("checkout.submit", metrics.OutcomeSuccess))
}

func TestSubmit_FallsBackToPreReadID(t *testing.T) {
	chain := &fakeChain{
		next:    big.NewInt(9),
		created: &types.IntentResult{Success: true, TxHash: "0xabc"},
	}
	res, err := newTestService(t, chain).Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.IntentID.Int64())
}

func TestSubmit_NonMarketplaceURLUsesFallbackIdentifier(t *testing.T) {
	chain := &fakeChain{next: big.NewInt(1), created: &types.IntentResult{Success: true}}
	order := validOrder()
	order.ItemURL = "https://example.com/item/42"

	_, err := newTestService(t, chain).Submit(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, utils.ContentHash(utils.ASINNotFound), chain.lastReq.HashedProductLink)
}

func TestSubmit_MirrorFailureKeepsSuccess(t *testing.T) {
	chain := &fakeChain{next: big.NewInt(1), created: &types.IntentResult{Success: true, IntentID: big.NewInt(1)}}
	svc := newTestService(t, chain, WithMirror(&fakeMirror{err: errors.New("db down")}))

	res, err := svc.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, res.State)
}

func TestSubmit_ChainFailure(t *testing.T) {
	chain := &fakeChain{
		next:      big.NewInt(1),
		created:   &types.IntentResult{TxHash: "0xdead", Error: "Transaction rejected by the user."},
		createErr: types.NewError(types.KindChain, "createIntent failed", errors.New("user rejected transaction")),
	}
	mirror := &fakeMirror{}
	res, err := newTestService(t, chain, WithMirror(mirror)).Submit(context.Background(), validOrder())
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "Transaction rejected by the user.", res.Alert)
	assert.Equal(t, "0xdead", res.TxHash)
	assert.Empty(t, mirror.records)
}

func TestSubmit_UnconfirmedTransactionIsPending(t *testing.T) {
	cause := fmt.Errorf("%w: createIntent 0xbeef: %w", clients.ErrPending, context.DeadlineExceeded)
	chain := &fakeChain{
		next:      big.NewInt(7),
		created:   &types.IntentResult{TxHash: "0xbeef", Error: clients.ChainAlert(cause)},
		createErr: types.NewError(types.KindChain, "createIntent failed", cause),
	}
	mirror := &fakeMirror{}
	rec := metrics.NewMemoryRecorder()
	svc := newTestService(t, chain, WithMirror(mirror), WithMetrics(rec))

	res, err := svc.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.Equal(t, StatePending, res.State)
	assert.Equal(t, "0xbeef", res.TxHash)
	assert.Equal(t, int64(7), res.IntentID.Int64())
	assert.Equal(t, "Transaction submitted but not yet confirmed. Check your wallet before retrying.", res.Alert)
	assert.Empty(t, mirror.records)
	assert.Equal(t, 1, rec.Count("checkout.submit", metrics.OutcomePending))
	assert.Zero(t, rec.Count("checkout.submit", metrics.OutcomeFailure))
}

func TestSubmit_NextIDFailure(t *testing.T) {
	chain := &fakeChain{nextErr: errors.New("insufficient funds for gas")}
	res, err := newTestService(t, chain).Submit(context.Background(), validOrder())
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "Transaction failed: Insufficient funds.", res.Alert)
	assert.Nil(t, chain.lastReq)
}

func TestSubmit_RejectedBeforeSending(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Order)
		chain  *fakeChain
		kind   types.ErrorKind
	}{
		"zero total":       {mutate: func(o *Order) { o.TotalPrice = decimal.Zero }, kind: types.KindValidation},
		"missing url":      {mutate: func(o *Order) { o.ItemURL = "" }, kind: types.KindValidation},
		"zero quantity":    {mutate: func(o *Order) { o.Quantity = 0 }, kind: types.KindValidation},
		"missing city":     {mutate: func(o *Order) { o.Shipping.City = "" }, kind: types.KindValidation},
		"wallet unplugged": {chain: &fakeChain{noSigner: true}, kind: types.KindUnavailable},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			order := validOrder()
			if c.mutate != nil {
				c.mutate(&order)
			}
			chain := c.chain
			if chain == nil {
				chain = &fakeChain{}
			}
			res, err := newTestService(t, chain).Submit(context.Background(), order)
			assert.Nil(t, res)
			assert.Equal(t, c.kind, types.KindOf(err))
			assert.Nil(t, chain.lastReq)
		})
	}
}
