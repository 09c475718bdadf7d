package collector

import (
	"github.com/shopspring/decimal"

	"fareflow/models"
)

var hundred = decimal.NewFromInt(100)

// ScaleSpecifiedAmount prices a fare-by-rule specified amount, published per
// hundred miles, for mileage miles, rounded to decimals places.
func ScaleSpecifiedAmount(amount float64, mileage int, decimals int32) float64 {
	d := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromInt(int64(mileage))).
		Div(hundred).
		Round(decimals)
	f, _ := d.Float64()
	return f
}

// ApplySpecifiedAmount prices a specified fare-by-rule fare for mileage,
// replacing its FareInfo with a clone carrying the new amount. A fare with
// no amount published in its currency is left untouched.
func ApplySpecifiedAmount(trx *models.Transaction, ptf *models.PaxTypeFare, mileage int, decimals int32) {
	specified := ptf.FareByRule.SpecifiedAmount(ptf.Currency())
	if specified == 0 {
		return
	}
	amount := ScaleSpecifiedAmount(specified, mileage, decimals)

	info := ptf.Fare.Info.Clone()
	if ptf.OWRT() == models.RoundTripMayNotBeHalved && !trx.Options.RoundTheWorld {
		half := decimal.NewFromFloat(amount).Div(decimal.NewFromInt(2)).Round(decimals)
		info.Amount, _ = half.Float64()
	} else {
		info.Amount = amount
	}
	ptf.Fare.Info = info
	ptf.Amount = amount

	if ptf.IsDiscounted() {
		ptf.Amount = ApplyDiscount(amount, ptf.Discount.Percent, decimals)
	}
}

// ApplyDiscount returns percent of amount, rounded to decimals places.
func ApplyDiscount(amount, percent float64, decimals int32) float64 {
	d := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(hundred).
		Round(decimals)
	f, _ := d.Float64()
	return f
}
