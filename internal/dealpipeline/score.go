package dealpipeline

import (
	"math"
	"strings"
)

// Score computes the 0-100 weighted composite deal score.
func Score(d NormalizedDeal) float64 {
	ratingScore := (d.Rating / 5) * 100
	rankScore := 100 * (1 - math.Min(1, float64(d.SalesRank)/100000))
	priceScore := 100 * (1 - math.Min(1, d.CurrentPrice/500))

	return 0.50*d.DiscountPercent + 0.35*ratingScore + 0.10*rankScore + 0.05*priceScore
}

// IsSpam reports whether a deal must be dropped per the spam filter rules.
func IsSpam(d NormalizedDeal) bool {
	if d.Rating < 3.5 {
		return true
	}
	if d.CurrentPrice < 10 {
		return true
	}
	if d.DiscountPercent > 80 {
		return true
	}
	if d.Title == "" {
		return true
	}
	lower := strings.ToLower(d.Title)
	if strings.Contains(lower, "dropship") || strings.Contains(lower, "fast shipping") {
		return true
	}
	return false
}
