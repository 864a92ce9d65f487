package storefront

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storerunner/storefront/checkout"
	"github.com/storerunner/storefront/config"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/platform"
	"github.com/storerunner/storefront/store"
	"github.com/storerunner/storefront/types"
)

func newStorefront(t *testing.T, opts ...Option) *Storefront {
	t.Helper()
	chdir(t, t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)

	db, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	s, err := New(cfg, append([]Option{WithDB(db)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_WithoutBackend(t *testing.T) {
	s := newStorefront(t)

	assert.Equal(t, types.NetworkBaseSepolia, s.Network())
	assert.Equal(t, platform.ModeAuto, s.Mode())
	assert.Nil(t, s.Signer())
	assert.Equal(t, "Storerunner", s.App().Name)

	st := s.Health(context.Background())
	assert.Equal(t, "degraded", st.Status)
	assert.False(t, st.ChainReady)
}

func TestCheckout_WithoutBackendReportsNoWallet(t *testing.T) {
	s := newStorefront(t)

	_, err := s.Checkout().Submit(context.Background(), checkout.Order{
		ItemURL:    "https://www.amazon.com/dp/B000000001",
		TotalPrice: decimal.NewFromInt(100),
		Quantity:   1,
		Shipping: types.ShippingDetails{
			FirstName: "Ada", LastName: "Lovelace", Address: "12 Main St",
			City: "London", State: "LDN", ZipCode: "00000", Country: "UK",
		},
	})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindUnavailable))
}

func TestListChainIntents_WithoutBackend(t *testing.T) {
	s := newStorefront(t)
	_, err := s.ListChainIntents(context.Background())
	assert.True(t, types.IsKind(err, types.KindUnavailable))
}

func TestMirrorSharedAcrossServices(t *testing.T) {
	rec := metrics.NewMemoryRecorder()
	s := newStorefront(t, WithMetrics(rec))
	ctx := context.Background()

	require.NoError(t, s.Intents().UpsertBuyer(ctx, types.BuyerRecord{IntentID: 1, WalletAddress: "0xabc"}))
	page, err := s.Intents().List(ctx, types.IntentFilter{WalletAddress: "0xabc"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Pagination.Total)
	assert.Equal(t, 1, rec.Count("store.upsert_buyer", metrics.OutcomeSuccess))
}

func TestNew_RejectsBadPlatformMode(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Platform.Mode = "desktop"

	_, err = New(cfg)
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
