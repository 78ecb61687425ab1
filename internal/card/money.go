package card

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MoneySymbol prefixes every formatted amount; amounts are always USD
const MoneySymbol = "$"

// moneyLocale fixes grouping and decimal separators
var moneyLocale = language.AmericanEnglish

// usdScale is the number of minor-unit digits of USD
var usdScale = func() int32 {
	scale, _ := currency.Standard.Rounding(currency.USD)
	return int32(scale)
}()

// FormatUSD renders amount as en-US currency with exactly two decimals, e.g. $1,234.50
func FormatUSD(amount decimal.Decimal) string {
	return formatMoney(amount, usdScale)
}

// FormatWholeUSD renders amount rounded to whole dollars, e.g. $1,235
func FormatWholeUSD(amount decimal.Decimal) string {
	return formatMoney(amount, 0)
}

func formatMoney(amount decimal.Decimal, scale int32) string {
	rounded := amount.Round(scale)

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}

	// Round first so the float conversion never needs to round again
	value, _ := rounded.Float64()
	p := message.NewPrinter(moneyLocale)
	return sign + MoneySymbol + p.Sprintf("%v", number.Decimal(value, number.Scale(int(scale))))
}
