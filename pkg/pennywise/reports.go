package pennywise

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateRange is an inclusive span of calendar days
type DateRange struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// Contains reports whether d falls within the range
func (r DateRange) Contains(d Date) bool {
	return d.Within(r.Start, r.End)
}

// Label renders the range for display
func (r DateRange) Label() string {
	return DateRangeLabel(r.Start, r.End)
}

// RangePeriod is a dashboard filter period
type RangePeriod string

const (
	RangeDay   RangePeriod = "day"
	RangeWeek  RangePeriod = "week"
	RangeMonth RangePeriod = "month"
	RangeYear  RangePeriod = "year"
)

// Label names the period relative to today
func (p RangePeriod) Label() string {
	switch p {
	case RangeDay:
		return "Today"
	case RangeWeek:
		return "This Week"
	case RangeYear:
		return "This Year"
	}
	return "This Month"
}

// PeriodRange returns the range of the period containing now. Weeks start on Sunday.
func PeriodRange(period RangePeriod, now time.Time) (DateRange, error) {
	today := DateOf(now)
	switch period {
	case RangeDay:
		return DateRange{Start: today, End: today}, nil
	case RangeWeek:
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return DateRange{Start: Date{start}, End: Date{start.AddDate(0, 0, 6)}}, nil
	case RangeMonth, "":
		return CurrentMonthRange(now), nil
	case RangeYear:
		return DateRange{
			Start: NewDate(now.Year(), time.January, 1),
			End:   NewDate(now.Year(), time.December, 31),
		}, nil
	}
	return DateRange{}, fmt.Errorf("unknown period %q", period)
}

// CurrentMonthRange returns the first and last day of now's month
func CurrentMonthRange(now time.Time) DateRange {
	return monthRange(now.Year(), now.Month())
}

func monthRange(year int, month time.Month) DateRange {
	start := NewDate(year, month, 1)
	return DateRange{Start: start, End: Date{start.AddDate(0, 1, -1)}}
}

// CategoryAmount is one category's total and share
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Percent  int             `json:"percent"`
	Count    int             `json:"count"`
}

// CategoryTotals sums txns of kind per category, largest first
func CategoryTotals(txns []Transaction, kind Kind) []CategoryAmount {
	byCategory := make(map[string]*CategoryAmount)
	total := decimal.Zero
	for _, t := range txns {
		if t.Type != kind {
			continue
		}
		c, ok := byCategory[t.Category]
		if !ok {
			c = &CategoryAmount{Category: t.Category}
			byCategory[t.Category] = c
		}
		c.Amount = c.Amount.Add(t.Amount)
		c.Count++
		total = total.Add(t.Amount)
	}

	out := make([]CategoryAmount, 0, len(byCategory))
	for _, c := range byCategory {
		c.Percent = Percentage(c.Amount, total)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TopCategories returns the k largest categories of kind
func TopCategories(txns []Transaction, kind Kind, k int) []CategoryAmount {
	all := CategoryTotals(txns, kind)
	if k >= 0 && len(all) > k {
		return all[:k]
	}
	return all
}

// MonthTotal is one month's income and expense
type MonthTotal struct {
	Month   string          `json:"month"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Net returns income minus expense
func (m MonthTotal) Net() decimal.Decimal {
	return m.Income.Sub(m.Expense)
}

// MonthlyTotals buckets txns into the trailing window of n months ending
// with now's month, oldest first. Months without activity are zero.
func MonthlyTotals(txns []Transaction, n int, now time.Time) []MonthTotal {
	if n <= 0 {
		return nil
	}

	out := make([]MonthTotal, n)
	index := make(map[string]int, n)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i-(n-1), 0)
		key := m.Format("2006-01")
		out[i] = MonthTotal{Month: key, Label: m.Format("Jan 06")}
		index[key] = i
	}

	for _, t := range txns {
		i, ok := index[t.Date.MonthKey()]
		if !ok {
			continue
		}
		addToMonth(&out[i], t)
	}
	return out
}

// SpendingTrend is the six-month window used by the dashboard chart
func SpendingTrend(txns []Transaction, now time.Time) []MonthTotal {
	return MonthlyTotals(txns, 6, now)
}

// IncomeVsExpense groups txns within r by month, chronologically; only
// months with activity are returned
func IncomeVsExpense(txns []Transaction, r DateRange) []MonthTotal {
	byMonth := make(map[string]*MonthTotal)
	for _, t := range txns {
		if !r.Contains(t.Date) {
			continue
		}
		key := t.Date.MonthKey()
		m, ok := byMonth[key]
		if !ok {
			m = &MonthTotal{Month: key, Label: t.Date.Format("Jan 06")}
			byMonth[key] = m
		}
		addToMonth(m, t)
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func addToMonth(m *MonthTotal, t Transaction) {
	switch t.Type {
	case KindIncome:
		m.Income = m.Income.Add(t.Amount)
	case KindExpense:
		m.Expense = m.Expense.Add(t.Amount)
	}
}

// Summary totals a set of transactions
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
	Count   int             `json:"count"`
}

// Summarize totals txns
func Summarize(txns []Transaction) Summary {
	s := Summary{
		Income:  SumByType(txns, KindIncome),
		Expense: SumByType(txns, KindExpense),
		Count:   len(txns),
	}
	s.Balance = s.Income.Sub(s.Expense)
	return s
}

// RecentTransactions returns the n latest transactions by date
func RecentTransactions(txns []Transaction, n int) []Transaction {
	out := append([]Transaction(nil), txns...)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c > 0
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Percentage returns value as a rounded whole percent of total; 0 for a zero total
func Percentage(value, total decimal.Decimal) int {
	if total.IsZero() {
		return 0
	}
	return int(value.Div(total).Mul(hundred).Round(0).IntPart())
}
