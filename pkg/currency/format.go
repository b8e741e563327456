package currency

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var vnPrinter = message.NewPrinter(language.Vietnamese)

// FormatVND renders an amount the way the app shows money: Vietnamese digit
// grouping, no fractional digits, dong sign suffix. 100000 -> "100.000 ₫".
func FormatVND(amount float64) string {
	n := int64(math.Round(amount))
	return vnPrinter.Sprintf("%d", n) + " ₫"
}
