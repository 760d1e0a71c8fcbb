package store

import (
	"time"

	"github.com/google/uuid"
)

// userRow is the gorm model backing types.User.
type userRow struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email           string    `gorm:"uniqueIndex;not null"`
	MessagingHandle string
	WebhookURL      string
	PrimaryChannel  string `gorm:"size:16"`
	Deleted         bool   `gorm:"not null;default:false"`
	CreatedAt       time.Time
}

func (userRow) TableName() string { return "users" }

// watchedProductRow is the gorm model backing types.WatchedProduct.
type watchedProductRow struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_product_code"`
	ProductCode       string    `gorm:"size:10;not null;uniqueIndex:idx_user_product_code"`
	Title             string
	CurrentPrice      float64 `gorm:"type:numeric(12,2);not null;default:0"`
	TargetPrice       float64 `gorm:"type:numeric(12,2);not null"`
	Volatility        float64 `gorm:"not null;default:0"`
	Status            string  `gorm:"size:16;not null;index"`
	Domain            int     `gorm:"not null"`
	LastCheckedAt     time.Time
	LastPriceChangeAt time.Time
	CreatedAt         time.Time
}

func (watchedProductRow) TableName() string { return "watched_products" }

// priceHistoryRow is the gorm model backing types.PriceHistory.
type priceHistoryRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	WatchID    uuid.UUID `gorm:"type:uuid;not null;index:idx_watch_recorded_at"`
	Price      float64   `gorm:"type:numeric(12,2);not null"`
	Source     string    `gorm:"size:64"`
	RecordedAt time.Time `gorm:"index:idx_watch_recorded_at"`
}

func (priceHistoryRow) TableName() string { return "price_history" }

// priceAlertRow is the gorm model backing types.PriceAlert.
type priceAlertRow struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	WatchID         uuid.UUID `gorm:"type:uuid;not null;index"`
	TriggeredPrice  float64   `gorm:"type:numeric(12,2);not null"`
	TargetPrice     float64   `gorm:"type:numeric(12,2);not null"`
	OldPrice        float64   `gorm:"type:numeric(12,2);not null"`
	NewPrice        float64   `gorm:"type:numeric(12,2);not null"`
	DiscountPercent float64   `gorm:"type:numeric(6,2);not null;default:0"`
	Status          string    `gorm:"size:16;not null;index"`
	Channel         string    `gorm:"size:32"`
	TriggeredAt     time.Time `gorm:"index"`
	SentAt          *time.Time
}

func (priceAlertRow) TableName() string { return "price_alerts" }

// dealFilterRow is the gorm model backing types.DealFilter.
type dealFilterRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Categories  string    // comma-separated category identifiers
	MinPrice    float64   `gorm:"type:numeric(12,2)"`
	MaxPrice    float64   `gorm:"type:numeric(12,2)"`
	MinDiscount float64   `gorm:"type:numeric(6,2)"`
	MaxDiscount float64   `gorm:"type:numeric(6,2)"`
	MinRating   float64
	Active      bool `gorm:"not null;default:true;index"`
	CreatedAt   time.Time
}

func (dealFilterRow) TableName() string { return "deal_filters" }

// dealReportRow is the gorm model backing types.DealReport.
type dealReportRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	FilterID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Payload     []byte    `gorm:"type:jsonb"`
	GeneratedAt time.Time
	SentAt      *time.Time
}

func (dealReportRow) TableName() string { return "deal_reports" }

// collectedDealRow is the gorm model backing types.CollectedDeal.
type collectedDealRow struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductCode     string    `gorm:"size:10;not null;index:idx_product_collected"`
	Title           string
	CurrentPrice    float64 `gorm:"type:numeric(12,2);not null;index"`
	OriginalPrice   float64 `gorm:"type:numeric(12,2)"`
	DiscountPercent float64 `gorm:"type:numeric(6,2);index"`
	Rating          float64
	ReviewCount     int
	SalesRank       int
	Domain          int `gorm:"not null"`
	Category        string
	DealScore       float64
	URL             string
	PrimeEligible   bool
	Source          string    `gorm:"size:32"`
	CollectedAt     time.Time `gorm:"index:idx_product_collected"`
}

func (collectedDealRow) TableName() string { return "collected_deals" }
