package store

import "github.com/shopspring/decimal"

// Rows store prices as float64 (postgres numeric columns scan cleanly into
// float64 via lib/pq); conversion to decimal.Decimal happens at the
// store/domain boundary so arithmetic elsewhere uses fixed-point precision.

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func floatFromDecimal(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
