package keepa

import (
	"testing"

	"github.com/keeperwatch/pricewatch/pkg/types"
)

func productWithCSV(csv [][]int64) *types.Product {
	return &types.Product{ASIN: "B07W6JN8V8", CSV: csv}
}

func TestCurrentPriceUsesAmazonSeriesFirst(t *testing.T) {
	t.Parallel()

	p := productWithCSV([][]int64{
		SeriesAmazon: {1000, 4499},
	})
	price, ok := CurrentPrice(p)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if price != 44.99 {
		t.Errorf("price = %v, want 44.99", price)
	}
}

func TestCurrentPriceFallsThroughPriorityChain(t *testing.T) {
	t.Parallel()

	csv := make([][]int64, SeriesBuyBoxUsed+1)
	csv[SeriesAmazon] = []int64{1000, sentinelUnavailable}
	csv[SeriesBuyBox] = []int64{1000, sentinelNeverPopulated}
	csv[SeriesNewFBA] = []int64{1000, 2599}

	p := productWithCSV(csv)
	price, ok := CurrentPrice(p)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if price != 25.99 {
		t.Errorf("price = %v, want 25.99 (from New-FBA)", price)
	}
}

func TestCurrentPriceFallsBackToStats(t *testing.T) {
	t.Parallel()

	p := productWithCSV(nil)
	p.Stats = &types.StatsBlock{}
	p.Stats.Current[SeriesAmazon] = 1999

	price, ok := CurrentPrice(p)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if price != 19.99 {
		t.Errorf("price = %v, want 19.99", price)
	}
}

func TestCurrentPriceFallsBackToOffers(t *testing.T) {
	t.Parallel()

	p := productWithCSV(nil)
	p.Offers = []types.Offer{{Price: 999}}

	price, ok := CurrentPrice(p)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if price != 9.99 {
		t.Errorf("price = %v, want 9.99", price)
	}
}

func TestCurrentPriceFallsBackToBuyBoxPrice(t *testing.T) {
	t.Parallel()

	p := productWithCSV(nil)
	p.BuyBoxPrice = 1599

	price, ok := CurrentPrice(p)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if price != 15.99 {
		t.Errorf("price = %v, want 15.99", price)
	}
}

func TestCurrentPriceAbsentWhenAllNegative(t *testing.T) {
	t.Parallel()

	csv := make([][]int64, SeriesWarehouse+1)
	for i := range csv {
		csv[i] = []int64{1000, sentinelUnavailable}
	}
	p := productWithCSV(csv)

	_, ok := CurrentPrice(p)
	if ok {
		t.Error("expected ok=false when all series are sentinel-negative")
	}
}

func TestNormalizeRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  int64
		want float64
	}{
		{45, 4.5},
		{5, 5},
		{0, 0},
		{38, 3.8},
	}
	for _, tt := range tests {
		if got := NormalizeRating(tt.raw); got != tt.want {
			t.Errorf("NormalizeRating(%d) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
