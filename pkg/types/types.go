// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the price tracker — entity
// records, Keepa wire shapes, and event-log payloads. It has no dependencies
// on internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// WatchStatus is the lifecycle state of a WatchedProduct.
type WatchStatus string

const (
	WatchActive   WatchStatus = "ACTIVE"
	WatchPaused   WatchStatus = "PAUSED"
	WatchInactive WatchStatus = "INACTIVE" // soft-deleted; never hard-deleted
)

// AlertStatus is the lifecycle state of a PriceAlert.
type AlertStatus string

const (
	AlertPending AlertStatus = "PENDING"
	AlertSent    AlertStatus = "SENT"
	AlertFailed  AlertStatus = "FAILED"
)

// Domain identifies a Keepa marketplace. Numeric ids match Keepa's own
// encoding; they cover the five in-scope EU marketplaces plus US, which the
// client can technically reach since it is a generic wrapper — see
// SPEC_FULL.md §12.1.
type Domain int

const (
	DomainUS Domain = 1
	DomainUK Domain = 2
	DomainDE Domain = 3
	DomainFR Domain = 4
	DomainIT Domain = 8
	DomainES Domain = 9
)

// InScopeDomains are the five European marketplaces this system tracks.
var InScopeDomains = []Domain{DomainDE, DomainUK, DomainFR, DomainIT, DomainES}

// SystemUserID is the reserved all-zero identifier for the system user that
// owns products auto-tracked by the deal pipeline (spec §3).
var SystemUserID = uuid.Nil

// ————————————————————————————————————————————————————————————————————————
// Entities (spec §3)
// ————————————————————————————————————————————————————————————————————————

// User is the identity used for alert routing.
type User struct {
	ID              uuid.UUID
	Email           string
	MessagingHandle string // optional messaging-channel address
	WebhookURL      string // optional
	PrimaryChannel  string // "email", "messaging", or "webhook"; checked first in channel order
	Deleted         bool
	CreatedAt       time.Time
}

// WatchedProduct is a user's declared interest in a product at a target price.
type WatchedProduct struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	ProductCode       string // exactly 10 alphanumeric characters (ASIN-shaped)
	Title             string
	CurrentPrice      decimal.Decimal
	TargetPrice       decimal.Decimal
	Volatility        float64 // [0,1]
	Status            WatchStatus
	Domain            Domain
	LastCheckedAt     time.Time
	LastPriceChangeAt time.Time
	CreatedAt         time.Time
}

// PriceHistory is an append-only observation of a watch's price over time.
type PriceHistory struct {
	ID          uuid.UUID
	WatchID     uuid.UUID
	Price       decimal.Decimal
	Source      string // "backfill", "kafka", "kafka_deals", seller name, or ""
	RecordedAt  time.Time
}

// PriceAlert is a target-crossing event awaiting delivery.
type PriceAlert struct {
	ID              uuid.UUID
	WatchID         uuid.UUID
	TriggeredPrice  decimal.Decimal
	TargetPrice     decimal.Decimal
	OldPrice        decimal.Decimal
	NewPrice        decimal.Decimal
	DiscountPercent decimal.Decimal
	Status          AlertStatus
	Channel         string
	TriggeredAt     time.Time
	SentAt          *time.Time
}

// DealFilter is a user-defined deal-matching criterion set.
type DealFilter struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Categories    []string
	MinPrice      decimal.Decimal
	MaxPrice      decimal.Decimal
	MinDiscount   decimal.Decimal
	MaxDiscount   decimal.Decimal
	MinRating     float64
	Active        bool
	CreatedAt     time.Time
}

// DealReport is a generated report artifact for a DealFilter.
type DealReport struct {
	ID          uuid.UUID
	FilterID    uuid.UUID
	Payload     []CollectedDeal
	GeneratedAt time.Time
	SentAt      *time.Time
}

// CollectedDeal is a raw, system-wide deal snapshot. Not user-owned.
type CollectedDeal struct {
	ID              uuid.UUID
	ProductCode     string
	Title           string
	CurrentPrice    decimal.Decimal
	OriginalPrice   decimal.Decimal
	DiscountPercent decimal.Decimal
	Rating          float64
	ReviewCount     int
	SalesRank       int
	Domain          Domain
	Category        string
	DealScore       float64
	URL             string
	PrimeEligible   bool
	Source          string // "", "deals", or "product_heuristic" (§4.7's deal-endpoint-denied fallback)
	CollectedAt     time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Keepa wire shapes (spec §4.2)
// ————————————————————————————————————————————————————————————————————————

// Product is the Keepa product response, trimmed to the fields the price
// extractor and deal pipeline need.
type Product struct {
	ASIN       string      `json:"asin"`
	Title      string      `json:"title"`
	Domain     Domain      `json:"domainId"`
	CSV        [][]int64   `json:"csv"`       // packed series, indexed per §4.2
	Stats      *StatsBlock `json:"stats"`     // fallback current-value source
	Offers     []Offer     `json:"offers"`    // fallback offer iteration
	BuyBoxPrice int64      `json:"buyBoxPrice"` // cents; final fallback
	Rating     int64       `json:"rating"`    // raw Keepa rating (half-stars or x10)
	ReviewCount int64      `json:"reviewCount"`
	SalesRank   int64      `json:"salesRank"`
	Category    string     `json:"category"`
	URL         string     `json:"url"`
	PrimeEligible bool     `json:"isPrimeEligible"`
	TokensLeft  int        `json:"tokensLeft"`
}

// StatsBlock mirrors Keepa's "stats.current" array, indexed the same way as CSV.
type StatsBlock struct {
	Current [30]int64 `json:"current"`
}

// Offer is one entry in the offers fallback array.
type Offer struct {
	Price    int64 `json:"price"` // cents
	IsBuyBox bool  `json:"isBuyBoxWinner"`
}

// Deal is one entry in a Keepa deal-search response.
type Deal struct {
	ASIN            string  `json:"asin"`
	Title           string  `json:"title"`
	CurrentPrice    float64 `json:"currentPrice"`
	ListPrice       float64 `json:"listPrice"`
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountPercent float64 `json:"discountPercent"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"reviewCount"`
	SalesRank       int     `json:"salesRank"`
	Domain          Domain  `json:"domainId"`
	Category        string  `json:"category"`
	URL             string  `json:"url"`
	PrimeEligible   bool    `json:"isPrimeEligible"`
	TokensLeft      int     `json:"tokensLeft"`
}

// TokenStatus is the free token-state query response (spec §4.2).
type TokenStatus struct {
	Available int           `json:"tokensLeft"`
	RefillIn  time.Duration `json:"refillIn"`
	Rate      int           `json:"refillRate"`
}

// ————————————————————————————————————————————————————————————————————————
// Event log payloads (spec §4.4)
// ————————————————————————————————————————————————————————————————————————

// PriceUpdateEvent is published on the price-updates topic, keyed by ProductCode.
type PriceUpdateEvent struct {
	ProductCode    string    `json:"product_code"`
	ProductTitle   string    `json:"product_title"`
	CurrentPrice   float64   `json:"current_price"`
	TargetPrice    float64   `json:"target_price"`
	PreviousPrice  float64   `json:"previous_price"`
	PercentChange  float64   `json:"percent_change"`
	Domain         Domain    `json:"domain"`
	Currency       string    `json:"currency"`
	Timestamp      time.Time `json:"timestamp"`
	EventType      string    `json:"event_type"` // "price_update"
}

// DealUpdateEvent is published on the deal-updates topic, keyed by ProductCode.
type DealUpdateEvent struct {
	ProductCode     string    `json:"product_code"`
	ProductTitle    string    `json:"product_title"`
	CurrentPrice    float64   `json:"current_price"`
	OriginalPrice   float64   `json:"original_price"`
	DiscountPercent float64   `json:"discount_percent"`
	Domain          Domain    `json:"domain"`
	Currency        string    `json:"currency"`
	Layout          string    `json:"layout"` // keyboard physical layout (§4.7 annotation); "" when the title has no layout signal and the market implies none
	Timestamp       time.Time `json:"timestamp"`
	EventType       string    `json:"event_type"` // "deal_update"
}
