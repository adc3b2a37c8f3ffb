package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when an order carries no currency code.
const DefaultCurrency = "USD"

// FromCents converts integer minor units into a two-decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// Format renders cents as "12.34 USD".
func Format(cents int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return FromCents(cents).StringFixed(2) + " " + currency
}

// LineTotal multiplies a unit price by quantity in minor units.
func LineTotal(unitCents int64, quantity int) int64 {
	return decimal.NewFromInt(unitCents).Mul(decimal.NewFromInt(int64(quantity))).IntPart()
}
