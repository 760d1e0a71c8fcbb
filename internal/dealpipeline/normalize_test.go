package dealpipeline

import "testing"

func TestNormalizeAcceptsCamelCaseAliases(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"productCode":   "B07W6JN8V8",
		"title":         "Mechanical Keyboard",
		"currentPrice":  45.0,
		"originalPrice": 90.0,
		"rating":        4.5,
		"reviewCount":   120,
	}
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.ProductCode != "B07W6JN8V8" || got.CurrentPrice != 45.0 || got.OriginalPrice != 90.0 {
		t.Errorf("got %+v", got)
	}
	if got.DiscountPercent != 50.0 {
		t.Errorf("DiscountPercent = %v, want 50.0", got.DiscountPercent)
	}
}

func TestNormalizeAcceptsUnderscoreCaseAliases(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"product_code":   "B07W6JN8V8",
		"product_title":  "Mechanical Keyboard",
		"current_price":  "45.00",
		"list_price":     "90.00",
		"review_count":   "120",
		"prime_eligible":  "true",
	}
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.ProductCode != "B07W6JN8V8" {
		t.Errorf("ProductCode = %q", got.ProductCode)
	}
	if got.CurrentPrice != 45.0 || got.OriginalPrice != 90.0 {
		t.Errorf("stringified prices not parsed: %+v", got)
	}
	if got.ReviewCount != 120 {
		t.Errorf("ReviewCount = %d, want 120", got.ReviewCount)
	}
	if !got.PrimeEligible {
		t.Error("PrimeEligible = false, want true")
	}
}

func TestNormalizeAcceptsOriginalPriceAlias(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"asin":          "B07W6JN8V8",
		"currentPrice":  45.0,
		"original_price": 90.0,
	}
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.OriginalPrice != 90.0 {
		t.Errorf("OriginalPrice = %v, want 90.0", got.OriginalPrice)
	}
}

func TestNormalizeComputesDiscountWhenAbsent(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"productCode":   "B07W6JN8V8",
		"currentPrice":  75.0,
		"originalPrice": 100.0,
	}
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.DiscountPercent != 25.0 {
		t.Errorf("DiscountPercent = %v, want 25.0", got.DiscountPercent)
	}
}

func TestNormalizePrefersUpstreamDiscountWhenSupplied(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"productCode":     "B07W6JN8V8",
		"currentPrice":    75.0,
		"originalPrice":   100.0,
		"discountPercent": 40.0, // inconsistent with prices, but spec says use upstream if supplied
	}
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.DiscountPercent != 40.0 {
		t.Errorf("DiscountPercent = %v, want 40.0 (upstream-supplied)", got.DiscountPercent)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"productCode":   "B07W6JN8V8",
		"title":         "Mechanical Keyboard",
		"currentPrice":  45.0,
		"originalPrice": 90.0,
		"rating":        4.5,
		"reviewCount":   120,
		"salesRank":     5000,
		"category":      "electronics",
		"url":           "https://amazon.de/dp/B07W6JN8V8",
		"primeEligible": true,
	}
	first, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	reEncoded := map[string]any{
		"productCode":     first.ProductCode,
		"title":           first.Title,
		"currentPrice":    first.CurrentPrice,
		"originalPrice":   first.OriginalPrice,
		"discountPercent": first.DiscountPercent,
		"rating":          first.Rating,
		"reviewCount":     first.ReviewCount,
		"salesRank":       first.SalesRank,
		"category":        first.Category,
		"url":             first.URL,
		"primeEligible":   first.PrimeEligible,
	}
	second, err := Normalize(reEncoded)
	if err != nil {
		t.Fatalf("Normalize (second pass): %v", err)
	}
	if first != second {
		t.Errorf("Normalize not idempotent: first=%+v second=%+v", first, second)
	}
}

func TestNormalizeMissingProductCodeErrors(t *testing.T) {
	t.Parallel()

	_, err := Normalize(map[string]any{"title": "no code here"})
	if err == nil {
		t.Fatal("expected error for missing product code")
	}
}
