// Package store persists the off-chain intent mirror, the legacy string
// tuples and mini-app notification tokens.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storerunner/storefront/types"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured database. Postgres connections are
// retried a few times since the database often starts alongside the server.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	switch driver {
	case DriverSQLite:
		db, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, types.NewError(types.KindStorage, "opening sqlite database failed", err)
		}
		// sqlite allows a single writer
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil

	case DriverPostgres:
		var lastErr error
		for attempt := 0; attempt < 5; attempt++ {
			db, err := gorm.Open(postgres.Open(dsn), cfg)
			if err == nil {
				return db, nil
			}
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
		}
		return nil, types.NewError(types.KindStorage, "connecting to postgres failed", lastErr)

	default:
		return nil, types.NewError(types.KindValidation, fmt.Sprintf("unsupported database driver: %s", driver), nil)
	}
}

// Migrate creates or updates every table the storefront uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Intent{},
		&types.Tuple{},
		&types.NotificationToken{},
	); err != nil {
		return types.NewError(types.KindStorage, "migration failed", err)
	}
	return nil
}
