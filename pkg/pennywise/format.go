package pennywise

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
	"CNY": "¥",
	"KES": "KSh",
	"CAD": "CA$",
	"AUD": "A$",
}

// FormatCurrency renders a whole-unit amount with its currency symbol and
// thousands separators, e.g. "$1,235" or "-€40"
func FormatCurrency(amount decimal.Decimal, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = DefaultCurrency
	}
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}

	rounded := amount.Round(0)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	return sign + symbol + humanize.Comma(rounded.IntPart())
}

// FormatAmount renders amount in the signed-in user's currency
func (c *Client) FormatAmount(amount decimal.Decimal) string {
	return FormatCurrency(amount, c.profile.currency())
}

// Currency returns the profile currency, or DefaultCurrency before the profile loads
func (c *Client) Currency() string {
	return c.profile.currency()
}

// FormatDate renders a date as "Mar 5, 2025"
func FormatDate(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}

// FormatMonthYear renders a date as "March 2025"
func FormatMonthYear(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("January 2006")
}

// LastNMonths returns short month names of the n months ending with now's, oldest first
func LastNMonths(n int, now time.Time) []string {
	if n <= 0 {
		return nil
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = first.AddDate(0, i-(n-1), 0).Format("Jan")
	}
	return out
}

// DateRangeLabel renders a range compactly: a single date, "3-17 Mar 2025"
// within one month, or "Mar 5, 2025 - Apr 2, 2025"
func DateRangeLabel(start, end Date) string {
	if start.Compare(end) == 0 {
		return FormatDate(start)
	}
	if start.Year() == end.Year() && start.Month() == end.Month() {
		return fmt.Sprintf("%d-%d %s", start.Day(), end.Day(), start.Format("Jan 2006"))
	}
	return FormatDate(start) + " - " + FormatDate(end)
}

// Capitalize upper-cases the first letter, e.g. for kinds and periods
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
