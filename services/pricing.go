package services

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Pricing computes line prices and order totals in decimal and hands back
// floats rounded to two places.
type Pricing struct {
	DeliveryFee   decimal.Decimal
	FreeThreshold decimal.Decimal
	Currency      string
}

func NewPricing(deliveryFee, freeThreshold float64, currency string) Pricing {
	return Pricing{
		DeliveryFee:   decimal.NewFromFloat(deliveryFee),
		FreeThreshold: decimal.NewFromFloat(freeThreshold),
		Currency:      currency,
	}
}

// FinalPrice applies a percentage discount to price.
func FinalPrice(price, discountPercent float64) float64 {
	p := decimal.NewFromFloat(price)
	d := decimal.NewFromFloat(discountPercent)
	if d.IsNegative() {
		d = decimal.Zero
	}
	if d.GreaterThan(hundred) {
		d = hundred
	}
	return p.Mul(hundred.Sub(d)).Div(hundred).Round(2).InexactFloat64()
}

// LineTotal is unit * qty.
func LineTotal(unit float64, qty int) float64 {
	return decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(qty))).Round(2).InexactFloat64()
}

// Totals sums line totals and adds the delivery fee. Delivery is free once
// the subtotal is strictly above the threshold, and nothing is charged for
// an empty basket.
func (p Pricing) Totals(lineTotals []float64) (subtotal, delivery, total float64) {
	sum := decimal.Zero
	for _, lt := range lineTotals {
		sum = sum.Add(decimal.NewFromFloat(lt))
	}
	fee := p.DeliveryFee
	if sum.IsZero() || sum.GreaterThan(p.FreeThreshold) {
		fee = decimal.Zero
	}
	return sum.Round(2).InexactFloat64(), fee.Round(2).InexactFloat64(), sum.Add(fee).Round(2).InexactFloat64()
}

// MinorUnits converts an amount to the integer smallest-unit value payment
// providers expect (paise, cents).
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}
