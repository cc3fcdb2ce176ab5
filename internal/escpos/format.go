package escpos

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// priceColumn is reserved at the right of item lines for the amount.
const priceColumn = 10

// FormatAmount renders money with exactly two decimals.
func FormatAmount(symbol string, d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + symbol + d.Neg().StringFixed(2)
	}
	return symbol + d.StringFixed(2)
}

// FormatLine puts label on the left and amount flush right so the line
// is exactly width characters. A label that fits exactly is joined to
// the amount without a space; a longer one is cut to leave one.
func FormatLine(label, amount string, width int) string {
	amountLen := utf8.RuneCountInString(amount)
	if amountLen >= width {
		return truncate(amount, width)
	}

	room := width - amountLen
	if utf8.RuneCountInString(label) > room {
		label = truncate(label, room-1)
	}
	pad := width - utf8.RuneCountInString(label) - amountLen
	return label + strings.Repeat(" ", pad) + amount
}

// ItemLabel is the left column of an item line: quantity and name,
// cut to column characters.
func ItemLabel(name string, quantity, column int) string {
	return truncate(fmt.Sprintf("%dx %s", quantity, name), column)
}

// Rule is a horizontal separator of width characters.
func Rule(width int) string {
	return strings.Repeat("-", width)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// wrapWords splits free text into lines of at most width characters.
func wrapWords(s string, width int) []string {
	var lines []string
	var current []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > width {
			if len(current) > 0 {
				lines = append(lines, string(current))
				current = nil
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(current) == 0:
			current = w
		case len(current)+1+len(w) > width:
			lines = append(lines, string(current))
			current = w
		default:
			current = append(append(current, ' '), w...)
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}
