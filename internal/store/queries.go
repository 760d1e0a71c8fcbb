package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keeperwatch/pricewatch/pkg/apperrors"
	"github.com/keeperwatch/pricewatch/pkg/types"
)

const priceChangeEpsilon = 0.005 // half a cent; below this, prices are "unchanged"

// GetActiveWatches returns all ACTIVE watched products.
func (s *Store) GetActiveWatches() ([]types.WatchedProduct, error) {
	var rows []watchedProductRow
	if err := s.db.Where("status = ?", string(types.WatchActive)).Find(&rows).Error; err != nil {
		return nil, wrapPersistenceErr(err)
	}
	out := make([]types.WatchedProduct, len(rows))
	for i, r := range rows {
		out[i] = toWatchedProduct(r)
	}
	return out, nil
}

// ActiveWatchesByProductCode returns all ACTIVE watches (across all owning
// users) matching a product code. Event-log consumers use this to fan a
// single keyed message out to every interested watch.
func (s *Store) ActiveWatchesByProductCode(productCode string) ([]types.WatchedProduct, error) {
	var rows []watchedProductRow
	if err := s.db.Where("product_code = ? AND status = ?", productCode, string(types.WatchActive)).
		Find(&rows).Error; err != nil {
		return nil, wrapPersistenceErr(err)
	}
	out := make([]types.WatchedProduct, len(rows))
	for i, r := range rows {
		out[i] = toWatchedProduct(r)
	}
	return out, nil
}

// GetWatchByID returns a single watch by id.
func (s *Store) GetWatchByID(watchID uuid.UUID) (types.WatchedProduct, error) {
	var row watchedProductRow
	if err := s.db.First(&row, "id = ?", watchID).Error; err != nil {
		return types.WatchedProduct{}, wrapPersistenceErr(err)
	}
	return toWatchedProduct(row), nil
}

// GetUser returns a user by id, used by the alert dispatcher to resolve
// delivery channels.
func (s *Store) GetUser(userID uuid.UUID) (types.User, error) {
	var row userRow
	if err := s.db.First(&row, "id = ?", userID).Error; err != nil {
		return types.User{}, wrapPersistenceErr(err)
	}
	return types.User{
		ID:              row.ID,
		Email:           row.Email,
		MessagingHandle: row.MessagingHandle,
		WebhookURL:      row.WebhookURL,
		PrimaryChannel:  row.PrimaryChannel,
		Deleted:         row.Deleted,
		CreatedAt:       row.CreatedAt,
	}, nil
}

// CountSentAlertsForUserSince counts SENT alerts delivered to any of a
// user's watches since since, for the per-user hourly rate cap.
func (s *Store) CountSentAlertsForUserSince(userID uuid.UUID, since time.Time) (int, error) {
	var count int64
	err := s.db.Model(&priceAlertRow{}).
		Joins("JOIN watched_products ON watched_products.id = price_alerts.watch_id").
		Where("watched_products.user_id = ? AND price_alerts.status = ? AND price_alerts.sent_at >= ?",
			userID, string(types.AlertSent), since).
		Count(&count).Error
	if err != nil {
		return 0, wrapPersistenceErr(err)
	}
	return int(count), nil
}

// UpdateWatchPrice atomically updates a watch's current price and
// last-checked timestamp (and last-price-change if the price actually
// moved), and inserts a PriceHistory row, in one transaction.
func (s *Store) UpdateWatchPrice(watchID uuid.UUID, price float64, source string) (types.WatchedProduct, error) {
	var updated watchedProductRow
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row watchedProductRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "id = ?", watchID).Error; err != nil {
			return err
		}

		now := time.Now()
		changed := abs(row.CurrentPrice-price) > priceChangeEpsilon
		row.CurrentPrice = price
		row.LastCheckedAt = now
		if changed {
			row.LastPriceChangeAt = now
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		hist := priceHistoryRow{
			ID:         newUUID(),
			WatchID:    watchID,
			Price:      price,
			Source:     source,
			RecordedAt: now,
		}
		if err := tx.Create(&hist).Error; err != nil {
			return err
		}

		updated = row
		return nil
	})
	if err != nil {
		return types.WatchedProduct{}, wrapPersistenceErr(err)
	}
	return toWatchedProduct(updated), nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// EnsureTrackedProduct finds or creates a WatchedProduct owned by the system
// user. Idempotent: calling twice with the same productCode yields the same
// watchId.
func (s *Store) EnsureTrackedProduct(productCode, title string, currentPrice float64) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row watchedProductRow
		err := tx.Where("user_id = ? AND product_code = ?", types.SystemUserID, productCode).
			First(&row).Error
		if err == nil {
			id = row.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		row = watchedProductRow{
			ID:            newUUID(),
			UserID:        types.SystemUserID,
			ProductCode:   productCode,
			Title:         title,
			CurrentPrice:  currentPrice,
			TargetPrice:   currentPrice, // no user target; tracked for history only
			Status:        string(types.WatchActive),
			LastCheckedAt: now,
			CreatedAt:     now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_code"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return err
		}
		// DoNothing means row.ID may not be the persisted one on a race; re-read.
		if err := tx.Where("user_id = ? AND product_code = ?", types.SystemUserID, productCode).
			First(&row).Error; err != nil {
			return err
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, wrapPersistenceErr(err)
	}
	return id, nil
}

// RecordDealPrice composes EnsureTrackedProduct + a watch-level price update
// + a PriceHistory insert.
func (s *Store) RecordDealPrice(productCode string, price float64, title, source string) error {
	watchID, err := s.EnsureTrackedProduct(productCode, title, price)
	if err != nil {
		return err
	}
	_, err = s.UpdateWatchPrice(watchID, price, source)
	return err
}

// ActiveDealFilters returns all DealFilters with active=true, used by the
// daily deal-report pass.
func (s *Store) ActiveDealFilters() ([]types.DealFilter, error) {
	var rows []dealFilterRow
	if err := s.db.Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, wrapPersistenceErr(err)
	}
	out := make([]types.DealFilter, len(rows))
	for i, r := range rows {
		out[i] = types.DealFilter{
			ID:          r.ID,
			UserID:      r.UserID,
			Categories:  strings.Split(r.Categories, ","),
			MinPrice:    decimalFromFloat(r.MinPrice),
			MaxPrice:    decimalFromFloat(r.MaxPrice),
			MinDiscount: decimalFromFloat(r.MinDiscount),
			MaxDiscount: decimalFromFloat(r.MaxDiscount),
			MinRating:   r.MinRating,
			Active:      r.Active,
			CreatedAt:   r.CreatedAt,
		}
	}
	return out, nil
}

// SaveDealReport persists a generated report's payload as JSON.
func (s *Store) SaveDealReport(filterID uuid.UUID, deals []types.CollectedDeal) (uuid.UUID, error) {
	payload, err := json.Marshal(deals)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal report payload: %w", err)
	}
	row := dealReportRow{
		ID:          newUUID(),
		FilterID:    filterID,
		Payload:     payload,
		GeneratedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return uuid.Nil, wrapPersistenceErr(err)
	}
	return row.ID, nil
}

// MarkDealReportSent records that a report was handed off to the dispatcher.
func (s *Store) MarkDealReportSent(reportID uuid.UUID) error {
	now := time.Now()
	return wrapPersistenceErr(s.db.Model(&dealReportRow{}).
		Where("id = ?", reportID).
		Update("sent_at", now).Error)
}

// SaveCollectedDealsBatch bulk-inserts deals in a single transaction.
func (s *Store) SaveCollectedDealsBatch(deals []types.CollectedDeal) (int, error) {
	if len(deals) == 0 {
		return 0, nil
	}
	rows := make([]collectedDealRow, len(deals))
	for i, d := range deals {
		rows[i] = collectedDealRow{
			ID:              newUUID(),
			ProductCode:     d.ProductCode,
			Title:           d.Title,
			CurrentPrice:    floatFromDecimal(d.CurrentPrice),
			OriginalPrice:   floatFromDecimal(d.OriginalPrice),
			DiscountPercent: floatFromDecimal(d.DiscountPercent),
			Rating:          d.Rating,
			ReviewCount:     d.ReviewCount,
			SalesRank:       d.SalesRank,
			Domain:          int(d.Domain),
			Category:        d.Category,
			DealScore:       d.DealScore,
			URL:             d.URL,
			PrimeEligible:   d.PrimeEligible,
			Source:          d.Source,
			CollectedAt:     d.CollectedAt,
		}
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	}); err != nil {
		return 0, wrapPersistenceErr(err)
	}
	return len(rows), nil
}

// CreatePriceAlert inserts a PENDING alert row.
func (s *Store) CreatePriceAlert(watchID uuid.UUID, triggered, target, old, newPrice float64) (uuid.UUID, error) {
	discount := 0.0
	if old > 0 && old > newPrice {
		discount = round1((1 - newPrice/old) * 100)
	}
	row := priceAlertRow{
		ID:              newUUID(),
		WatchID:         watchID,
		TriggeredPrice:  triggered,
		TargetPrice:     target,
		OldPrice:        old,
		NewPrice:        newPrice,
		DiscountPercent: discount,
		Status:          string(types.AlertPending),
		TriggeredAt:     time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return uuid.Nil, wrapPersistenceErr(err)
	}
	return row.ID, nil
}

// round1 rounds f to one decimal place using fixed-point decimal rounding,
// avoiding binary-float rounding error on the x.x5 boundary.
func round1(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(1).Float64()
	return v
}

// HasRecentSentAlert reports whether a SENT alert exists for watchID whose
// triggered_price, rounded to the cent, equals triggeredPrice rounded to the
// cent, within the window ending now.
func (s *Store) HasRecentSentAlert(watchID uuid.UUID, triggeredPrice float64, window time.Duration) (bool, error) {
	since := time.Now().Add(-window)
	var count int64
	err := s.db.Model(&priceAlertRow{}).
		Where("watch_id = ? AND status = ? AND triggered_at >= ? AND round(triggered_price * 100) = round(? * 100)",
			watchID, string(types.AlertSent), since, triggeredPrice).
		Count(&count).Error
	if err != nil {
		return false, wrapPersistenceErr(err)
	}
	return count > 0, nil
}

// HasPendingOrSentAlertWithinHour is used by the price consumer (§4.5) to
// avoid duplicate alert creation within the last hour for a watch.
func (s *Store) HasPendingOrSentAlertWithinHour(watchID uuid.UUID) (bool, error) {
	since := time.Now().Add(-time.Hour)
	var count int64
	err := s.db.Model(&priceAlertRow{}).
		Where("watch_id = ? AND status IN ? AND triggered_at >= ?",
			watchID, []string{string(types.AlertPending), string(types.AlertSent)}, since).
		Count(&count).Error
	if err != nil {
		return false, wrapPersistenceErr(err)
	}
	return count > 0, nil
}

// MarkAlertSent sets an alert's terminal SENT state.
func (s *Store) MarkAlertSent(alertID uuid.UUID, channel string) error {
	now := time.Now()
	return wrapPersistenceErr(s.db.Model(&priceAlertRow{}).
		Where("id = ?", alertID).
		Updates(map[string]any{"status": string(types.AlertSent), "sent_at": now, "channel": channel}).Error)
}

// MarkAlertFailed sets an alert's terminal FAILED state.
func (s *Store) MarkAlertFailed(alertID uuid.UUID) error {
	return wrapPersistenceErr(s.db.Model(&priceAlertRow{}).
		Where("id = ?", alertID).
		Update("status", string(types.AlertFailed)).Error)
}

// PendingAlerts returns all alerts awaiting dispatch.
func (s *Store) PendingAlerts() ([]types.PriceAlert, error) {
	var rows []priceAlertRow
	if err := s.db.Where("status = ?", string(types.AlertPending)).Find(&rows).Error; err != nil {
		return nil, wrapPersistenceErr(err)
	}
	out := make([]types.PriceAlert, len(rows))
	for i, r := range rows {
		out[i] = types.PriceAlert{
			ID:              r.ID,
			WatchID:         r.WatchID,
			TriggeredPrice:  decimalFromFloat(r.TriggeredPrice),
			TargetPrice:     decimalFromFloat(r.TargetPrice),
			OldPrice:        decimalFromFloat(r.OldPrice),
			NewPrice:        decimalFromFloat(r.NewPrice),
			DiscountPercent: decimalFromFloat(r.DiscountPercent),
			Status:          types.AlertStatus(r.Status),
			Channel:         r.Channel,
			TriggeredAt:     r.TriggeredAt,
			SentAt:          r.SentAt,
		}
	}
	return out, nil
}

// BackfillPriceHistoryFromDeals is a one-shot startup job: for every
// collected deal owned implicitly by the system user's tracked products,
// ensure at least one PriceHistory row exists. Idempotent: skips products
// that already have history rows tagged source="backfill".
func (s *Store) BackfillPriceHistoryFromDeals() (int, error) {
	var deals []collectedDealRow
	if err := s.db.Order("collected_at asc").Find(&deals).Error; err != nil {
		return 0, wrapPersistenceErr(err)
	}

	seen := map[string]bool{}
	inserted := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, d := range deals {
			if seen[d.ProductCode] {
				continue
			}
			seen[d.ProductCode] = true

			var watch watchedProductRow
			err := tx.Where("user_id = ? AND product_code = ?", types.SystemUserID, d.ProductCode).
				First(&watch).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				now := time.Now()
				watch = watchedProductRow{
					ID:            newUUID(),
					UserID:        types.SystemUserID,
					ProductCode:   d.ProductCode,
					Title:         d.Title,
					CurrentPrice:  d.CurrentPrice,
					TargetPrice:   d.CurrentPrice,
					Status:        string(types.WatchActive),
					LastCheckedAt: now,
					CreatedAt:     now,
				}
				if err := tx.Create(&watch).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			var existing int64
			if err := tx.Model(&priceHistoryRow{}).
				Where("watch_id = ? AND source = ?", watch.ID, "backfill").
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}

			if err := tx.Create(&priceHistoryRow{
				ID:         newUUID(),
				WatchID:    watch.ID,
				Price:      d.CurrentPrice,
				Source:     "backfill",
				RecordedAt: d.CollectedAt,
			}).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, wrapPersistenceErr(err)
	}
	return inserted, nil
}

func wrapPersistenceErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("record not found: %w", err)
	}
	// Connection-level failures surface through gorm as generic errors;
	// constraint violations are distinguished by the postgres driver's
	// SQLSTATE class 23xxx, which lib/pq surfaces in the error string.
	if isConstraintViolation(err) {
		return &apperrors.PersistenceFatal{Err: err}
	}
	return &apperrors.PersistenceTransient{Err: err}
}

func isConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return len(pqErr.Code) >= 2 && pqErr.Code[:2] == "23"
	}
	return false
}
