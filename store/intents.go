package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/types"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 50
)

var buyerColumns = []string{
	"wallet_address",
	"shipping_address",
	"product_link",
	"quantity",
	"timestamp",
}

// IntentStore reads and writes the intent mirror table.
type IntentStore struct {
	db      *gorm.DB
	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

type Option func(*options)

type options struct {
	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = logger.OrNoop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = metrics.OrNoop(r) }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewIntentStore(db *gorm.DB, opts ...Option) *IntentStore {
	o := buildOptions(opts)
	return &IntentStore{db: db, logger: o.logger, metrics: o.metrics, now: o.now}
}

// UpsertBuyer inserts the buyer half of an intent, or replaces the buyer
// columns of an existing row with the same intent id. Solver columns are
// left untouched, and deposit and deadline are only overwritten when rec
// carries them.
func (s *IntentStore) UpsertBuyer(ctx context.Context, rec types.BuyerRecord) error {
	row := types.Intent{
		IntentID:        rec.IntentID,
		WalletAddress:   rec.WalletAddress,
		ShippingAddress: rec.ShippingAddress,
		ProductLink:     rec.ProductLink,
		Quantity:        rec.Quantity,
		Deposit:         rec.Deposit,
		Deadline:        rec.Deadline,
		Timestamp:       s.now(),
	}

	columns := append([]string(nil), buyerColumns...)
	if rec.Deposit != nil {
		columns = append(columns, "deposit")
	}
	if rec.Deadline != nil {
		columns = append(columns, "deadline")
	}

	start := time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "intent_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
	metrics.Track(s.metrics, "store.upsert_buyer", start, err)
	if err != nil {
		s.logger.Error("buyer upsert failed", map[string]any{"intent_id": rec.IntentID, "error": err})
		return types.NewError(types.KindStorage, "Could not publish buyer data.", err)
	}
	return nil
}

// UpdateSolver records the solver on the row with the given intent id and
// reports how many rows matched. Zero matches is not an error.
func (s *IntentStore) UpdateSolver(ctx context.Context, rec types.SolverRecord) (int64, error) {
	updates := map[string]any{
		"solver_wallet_address": rec.WalletAddress,
		"solver_delivery_date":  rec.DeliveryDate,
		"timestamp":             s.now(),
	}
	if rec.Fulfilled {
		updates["fulfilled"] = true
	}

	start := time.Now()
	res := s.db.WithContext(ctx).
		Model(&types.Intent{}).
		Where("intent_id = ?", rec.IntentID).
		Updates(updates)
	metrics.Track(s.metrics, "store.update_solver", start, res.Error)
	if res.Error != nil {
		s.logger.Error("solver update failed", map[string]any{"intent_id": rec.IntentID, "error": res.Error})
		return 0, types.NewError(types.KindStorage, "Could not publish solver data.", res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Warn("solver update matched no intent", map[string]any{"intent_id": rec.IntentID})
	}
	return res.RowsAffected, nil
}

// List returns one page of mirror rows, newest first.
func (s *IntentStore) List(ctx context.Context, f types.IntentFilter) (*types.IntentPage, error) {
	page, limit := NormalizePage(f.Page, f.Limit)

	q := s.db.WithContext(ctx).Model(&types.Intent{})
	if f.WalletAddress != "" {
		q = q.Where("wallet_address = ?", f.WalletAddress)
	}
	if f.IntentID != nil {
		q = q.Where("intent_id = ?", *f.IntentID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, types.NewError(types.KindStorage, "Could not retrieve intents.", err)
	}

	rows := make([]types.Intent, 0, limit)
	err := q.Order("timestamp DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, types.NewError(types.KindStorage, "Could not retrieve intents.", err)
	}

	return &types.IntentPage{
		Data:       rows,
		Pagination: types.NewPagination(page, limit, total),
	}, nil
}

// NormalizePage applies the listing defaults: page below 1 becomes 1, limit
// below 1 becomes DefaultPageLimit, and limit is capped at MaxPageLimit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
