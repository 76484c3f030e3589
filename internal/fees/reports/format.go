package reports

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var inr = message.NewPrinter(language.MustParse("en-IN"))

// FormatAmount renders an amount with Indian digit grouping (1,23,456.00)
// for report view models.
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return inr.Sprint(number.Decimal(f,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}
