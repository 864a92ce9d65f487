package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/types"
)

// NotificationStore keeps one push registration per mini-app user.
type NotificationStore struct {
	db     *gorm.DB
	logger logger.Logger
	now    func() time.Time
}

func NewNotificationStore(db *gorm.DB, opts ...Option) *NotificationStore {
	o := buildOptions(opts)
	return &NotificationStore{db: db, logger: o.logger, now: o.now}
}

// Save registers or re-enables the token for fid.
func (s *NotificationStore) Save(ctx context.Context, fid int64, url, token string) error {
	row := types.NotificationToken{
		FID:       fid,
		Token:     token,
		URL:       url,
		Enabled:   true,
		UpdatedAt: s.now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fid"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "url", "enabled", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return types.NewError(types.KindStorage, "saving notification token failed", err)
	}
	s.logger.Info("notification token saved", map[string]any{"fid": fid})
	return nil
}

// Disable turns off notifications for fid. Unknown users are ignored.
func (s *NotificationStore) Disable(ctx context.Context, fid int64) error {
	err := s.db.WithContext(ctx).
		Model(&types.NotificationToken{}).
		Where("fid = ?", fid).
		Updates(map[string]any{"enabled": false, "updated_at": s.now()}).Error
	if err != nil {
		return types.NewError(types.KindStorage, "disabling notification token failed", err)
	}
	return nil
}

// Enabled returns the active registration for fid, or a not_found error.
func (s *NotificationStore) Enabled(ctx context.Context, fid int64) (*types.NotificationToken, error) {
	var row types.NotificationToken
	err := s.db.WithContext(ctx).Where("fid = ? AND enabled = ?", fid, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.KindNotFound, "No notification token for user", err)
	}
	if err != nil {
		return nil, types.NewError(types.KindStorage, "reading notification token failed", err)
	}
	return &row, nil
}
