package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/shopspring/decimal"
)

func parseAmount(flag, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return d, nil
}

func parseDateFlag(flag, value string) (pennywise.Date, error) {
	if value == "" || value == "today" {
		return pennywise.Today(), nil
	}
	d, err := pennywise.ParseDate(value)
	if err != nil {
		return pennywise.Date{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", flag, value)
	}
	return d, nil
}

// optionalDate parses value, leaving the zero date for an empty flag
func optionalDate(flag, value string) (pennywise.Date, error) {
	if value == "" {
		return pennywise.Date{}, nil
	}
	return parseDateFlag(flag, value)
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = headerStyle.Render(h)
	}
	fmt.Fprintln(tw, strings.Join(styled, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...string) {
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
