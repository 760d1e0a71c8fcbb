package keepa

import "github.com/keeperwatch/pricewatch/pkg/types"

// Series indices into a product's packed CSV price arrays. Named per
// Keepa's own encoding so the priority walk never indexes by a raw number.
const (
	SeriesAmazon         = 0  // Amazon direct
	SeriesMarketplaceNew  = 1  // Marketplace — New
	SeriesMarketplaceUsed = 2  // Marketplace — Used
	SeriesSalesRank       = 3  // Sales rank
	SeriesNewFBA          = 7  // New, Fulfilled by Amazon
	SeriesWarehouse       = 9  // Amazon Warehouse (used, very good)
	SeriesBuyBox          = 11 // BuyBox
	SeriesUsedLikeNew     = 12 // Used, Like New
	SeriesRating          = 16 // Rating (ten times the star value)
	SeriesReviewCount     = 17 // Review count
	SeriesBuyBoxUsed      = 18 // BuyBox — used
)

// sentinelUnavailable means "not available for this series at this time".
const sentinelUnavailable = -1

// sentinelNeverPopulated means "series never populated".
const sentinelNeverPopulated = -2

// priceChain is the priority order the client walks to resolve a product's
// current price.
var priceChain = []int{SeriesAmazon, SeriesBuyBox, SeriesNewFBA, SeriesMarketplaceNew, SeriesUsedLikeNew, SeriesBuyBoxUsed, SeriesWarehouse}

// lastValue returns the value of the last (time, value) pair of a packed
// series [t0,v0,t1,v1,...], or sentinelNeverPopulated if the series is
// absent or malformed.
func lastValue(series []int64) int64 {
	if len(series) < 2 || len(series)%2 != 0 {
		return sentinelNeverPopulated
	}
	return series[len(series)-1]
}

// CurrentPrice walks the priority chain over csv, falling back to stats,
// then offers, then the root buyBoxPrice. It returns the price in currency
// units (not cents) and whether a usable value was found.
func CurrentPrice(p *types.Product) (float64, bool) {
	for _, idx := range priceChain {
		if idx < len(p.CSV) {
			if v := lastValue(p.CSV[idx]); v > 0 {
				return float64(v) / 100, true
			}
		}
	}
	if p.Stats != nil {
		for _, idx := range priceChain {
			if idx < len(p.Stats.Current) {
				if v := p.Stats.Current[idx]; v > 0 {
					return float64(v) / 100, true
				}
			}
		}
	}
	for _, o := range p.Offers {
		if o.Price > 0 {
			return float64(o.Price) / 100, true
		}
	}
	if p.BuyBoxPrice > 0 {
		return float64(p.BuyBoxPrice) / 100, true
	}
	return 0, false
}

// NormalizeRating converts a raw Keepa rating (which may be encoded as ten
// times the star value) to a plain 0-5 scale.
func NormalizeRating(raw int64) float64 {
	v := float64(raw)
	if v > 10 {
		v /= 10
	}
	return v
}
