package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/types"
)

// TupleStore keeps the legacy two-string records.
type TupleStore struct {
	db      *gorm.DB
	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

func NewTupleStore(db *gorm.DB, opts ...Option) *TupleStore {
	o := buildOptions(opts)
	return &TupleStore{db: db, logger: o.logger, metrics: o.metrics, now: o.now}
}

func (s *TupleStore) Publish(ctx context.Context, messages []string) (*types.Tuple, error) {
	t := &types.Tuple{
		ID:        uuid.NewString(),
		Messages:  messages,
		Timestamp: s.now(),
	}

	start := time.Now()
	err := s.db.WithContext(ctx).Create(t).Error
	metrics.Track(s.metrics, "store.publish_tuple", start, err)
	if err != nil {
		s.logger.Error("tuple publish failed", map[string]any{"error": err})
		return nil, types.NewError(types.KindStorage, "Something went wrong storing the strings", err)
	}
	return t, nil
}

// List returns every tuple, oldest first.
func (s *TupleStore) List(ctx context.Context) ([]types.Tuple, error) {
	var out []types.Tuple
	if err := s.db.WithContext(ctx).Order("timestamp ASC").Find(&out).Error; err != nil {
		return nil, types.NewError(types.KindStorage, "Error retrieving data", err)
	}
	return out, nil
}
