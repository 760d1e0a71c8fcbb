package dealpipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizedDeal is the canonical shape produced from heterogeneous upstream
// payloads (both camelCase and underscore_case keys, both stringified and
// numeric values).
type NormalizedDeal struct {
	ProductCode     string
	Title           string
	CurrentPrice    float64
	OriginalPrice   float64
	DiscountPercent float64
	Rating          float64
	ReviewCount     int
	SalesRank       int
	Category        string
	URL             string
	PrimeEligible   bool
}

// fieldAliases maps a canonical field name to every accepted upstream key,
// camelCase and underscore_case variants alike. This is a public contract:
// every alias pair here must be covered by normalize_test.go.
var fieldAliases = map[string][]string{
	"productCode":     {"productCode", "product_code", "asin"},
	"title":           {"title", "productTitle", "product_title"},
	"currentPrice":    {"currentPrice", "current_price"},
	"originalPrice":   {"originalPrice", "original_price", "listPrice", "list_price"},
	"discountPercent": {"discountPercent", "discount_percent"},
	"rating":          {"rating"},
	"reviewCount":     {"reviewCount", "review_count"},
	"salesRank":       {"salesRank", "sales_rank"},
	"category":        {"category"},
	"url":             {"url"},
	"primeEligible":   {"primeEligible", "prime_eligible", "isPrimeEligible"},
}

// Normalize accepts a raw upstream record and produces a canonical record.
// It is idempotent: Normalize applied to the canonical shape (re-keyed under
// the canonical field names) returns the same values.
func Normalize(raw map[string]any) (NormalizedDeal, error) {
	get := func(field string) (any, bool) {
		for _, alias := range fieldAliases[field] {
			if v, ok := raw[alias]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}

	productCode, _ := asString(firstOr(get("productCode")))
	title, _ := asString(firstOr(get("title")))

	currentPrice := asFloat(firstOr(get("currentPrice")))
	originalPrice := asFloat(firstOr(get("originalPrice")))

	discount := asFloat(firstOr(get("discountPercent")))
	if v, ok := get("discountPercent"); !ok || v == nil {
		discount = computeDiscount(currentPrice, originalPrice)
	}

	rating := asFloat(firstOr(get("rating")))
	reviewCount := int(asFloat(firstOr(get("reviewCount"))))
	salesRank := int(asFloat(firstOr(get("salesRank"))))
	category, _ := asString(firstOr(get("category")))
	url, _ := asString(firstOr(get("url")))
	prime := asBool(firstOr(get("primeEligible")))

	if productCode == "" {
		return NormalizedDeal{}, fmt.Errorf("normalize: missing product code")
	}

	return NormalizedDeal{
		ProductCode:     productCode,
		Title:           title,
		CurrentPrice:    currentPrice,
		OriginalPrice:   originalPrice,
		DiscountPercent: discount,
		Rating:          rating,
		ReviewCount:     reviewCount,
		SalesRank:       salesRank,
		Category:        category,
		URL:             url,
		PrimeEligible:   prime,
	}, nil
}

// computeDiscount rounds (1 - current/list) * 100 to one decimal when both
// prices are positive and list > current; otherwise 0 (caller-supplied
// discount, if any, takes precedence in Normalize before this is reached).
func computeDiscount(current, list float64) float64 {
	if current <= 0 || list <= 0 || list <= current {
		return 0
	}
	ratio := decimal.NewFromFloat(1).Sub(decimal.NewFromFloat(current).Div(decimal.NewFromFloat(list)))
	pct, _ := ratio.Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return pct
}

func firstOr(v any, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

func asString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}
