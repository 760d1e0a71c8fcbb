// Package store is the relational persistence layer: typed models, atomic
// upserts, and the transactional composite writes the price-check and deal
// pipelines depend on.
package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keeperwatch/pricewatch/pkg/types"
)

// Store wraps a pooled gorm.DB connection. Sessions are per-operation; the
// pool itself handles connection liveness checks.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Config configures the connection pool.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to postgres, configures the pool, and creates all tables if
// absent (idempotent DDL — migrations are out of scope). It also upserts the
// reserved system user.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(
		&userRow{},
		&watchedProductRow{},
		&priceHistoryRow{},
		&priceAlertRow{},
		&dealFilterRow{},
		&dealReportRow{},
		&collectedDealRow{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	s := &Store{db: db, logger: log.With("component", "store")}
	if err := s.ensureSystemUser(); err != nil {
		return nil, fmt.Errorf("ensure system user: %w", err)
	}
	return s, nil
}

// ensureSystemUser idempotently creates the reserved all-zero system user
// that owns products the deal pipeline auto-tracks.
func (s *Store) ensureSystemUser() error {
	row := userRow{
		ID:        types.SystemUserID,
		Email:     "system@internal",
		Deleted:   false,
		CreatedAt: time.Now(),
	}
	return s.db.Where("id = ?", types.SystemUserID).
		FirstOrCreate(&row).Error
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newUUID() uuid.UUID {
	return uuid.New()
}

func toWatchedProduct(r watchedProductRow) types.WatchedProduct {
	return types.WatchedProduct{
		ID:                r.ID,
		UserID:            r.UserID,
		ProductCode:       r.ProductCode,
		Title:             r.Title,
		CurrentPrice:      decimalFromFloat(r.CurrentPrice),
		TargetPrice:       decimalFromFloat(r.TargetPrice),
		Volatility:        r.Volatility,
		Status:            types.WatchStatus(r.Status),
		Domain:            types.Domain(r.Domain),
		LastCheckedAt:     r.LastCheckedAt,
		LastPriceChangeAt: r.LastPriceChangeAt,
		CreatedAt:         r.CreatedAt,
	}
}
