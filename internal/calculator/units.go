package calculator

import "github.com/shopspring/decimal"

// WholeUnits converts a cash amount into the largest whole number of units
// purchasable at price. The fractional residue is not spent.
func WholeUnits(amount, price float64) (qty int64, spend float64) {
	if amount <= 0 || price <= 0 {
		return 0, 0
	}
	p := decimal.NewFromFloat(price)
	units := decimal.NewFromFloat(amount).Div(p).Floor()
	qty = units.IntPart()
	if qty <= 0 {
		return 0, 0
	}
	return qty, units.Mul(p).Round(2).InexactFloat64()
}
