// Package shared holds cross-cutting helpers used by more than one feature.
package shared

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Peso amounts are displayed with en-PH digit grouping, matching the
// receipts printed by the store backend.
var pesoPrinter = message.NewPrinter(language.English)

// FormatPeso renders an amount for operator-facing messages, e.g. ₱1,234.50.
func FormatPeso(amount float64) string {
	return pesoPrinter.Sprintf("₱%.2f", amount)
}
