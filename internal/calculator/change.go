package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ChangePercent returns the percentage move from previousClose to price.
// The result is not rounded; zone boundaries are compared against the exact move.
func ChangePercent(price, previousClose float64) (float64, error) {
	if previousClose <= 0 {
		return 0, errors.New("previous close must be positive")
	}
	if price <= 0 {
		return 0, errors.New("price must be positive")
	}
	cur := decimal.NewFromFloat(price)
	prev := decimal.NewFromFloat(previousClose)
	pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
	return pct.InexactFloat64(), nil
}
