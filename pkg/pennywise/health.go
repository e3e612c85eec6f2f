package pennywise

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IndicatorLevel grades one health factor
type IndicatorLevel string

const (
	LevelGood    IndicatorLevel = "good"
	LevelOkay    IndicatorLevel = "okay"
	LevelWarning IndicatorLevel = "warning"
	LevelBad     IndicatorLevel = "bad"
)

// Indicator is one human-readable health finding
type Indicator struct {
	Text  string         `json:"text"`
	Level IndicatorLevel `json:"level"`
}

// HealthInputs are the only values the score depends on
type HealthInputs struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Budgets      []Budget
	TotalSavings decimal.Decimal
}

// HealthReport is the scored result
type HealthReport struct {
	Score           int             `json:"score"`
	SavingsRate     decimal.Decimal `json:"savings_rate"`
	SavingsPoints   int             `json:"savings_points"`
	BudgetPoints    int             `json:"budget_points"`
	EmergencyPoints int             `json:"emergency_points"`
	EmergencyMonths decimal.Decimal `json:"emergency_months"`
	Indicators      []Indicator     `json:"indicators"`
}

// Label names the overall band of the score
func (r HealthReport) Label() string {
	switch {
	case r.Score >= 80:
		return "Excellent"
	case r.Score >= 60:
		return "Good"
	case r.Score >= 40:
		return "Fair"
	}
	return "Needs Attention"
}

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// HealthScore computes the 0-100 financial health score. Savings rate is
// worth up to 40 points, budget adherence up to 30 and emergency fund
// coverage (months of average monthly expense) up to 30.
func HealthScore(in HealthInputs) HealthReport {
	var report HealthReport

	// savings rate; tiers compare (income-expense)*100 against k*income to stay exact
	net := in.TotalIncome.Sub(in.TotalExpense)
	rateAtLeast := func(k int64) bool {
		if !in.TotalIncome.IsPositive() {
			// no income: any spending counts as spending beyond income
			return k <= 0 && !net.IsNegative()
		}
		return net.Mul(hundred).GreaterThanOrEqual(in.TotalIncome.Mul(decimal.NewFromInt(k)))
	}
	report.SavingsRate = decimal.Zero
	if in.TotalIncome.IsPositive() {
		report.SavingsRate = net.Div(in.TotalIncome).Mul(hundred).Round(0)
	}

	switch {
	case rateAtLeast(20):
		report.SavingsPoints = 40
		report.Indicators = append(report.Indicators, Indicator{"Excellent savings rate", LevelGood})
	case rateAtLeast(10):
		report.SavingsPoints = 25
		report.Indicators = append(report.Indicators, Indicator{"Good savings rate", LevelOkay})
	case rateAtLeast(0):
		report.SavingsPoints = 10
		report.Indicators = append(report.Indicators, Indicator{"Low savings rate", LevelWarning})
	default:
		report.Indicators = append(report.Indicators, Indicator{"Spending exceeds income", LevelBad})
	}

	// budget adherence
	if len(in.Budgets) > 0 {
		exceeded := 0
		for i := range in.Budgets {
			if in.Budgets[i].IsExceeded() {
				exceeded++
			}
		}
		within, total := len(in.Budgets)-exceeded, len(in.Budgets)

		switch {
		case within*100 >= 80*total:
			report.BudgetPoints = 30
			report.Indicators = append(report.Indicators, Indicator{"Staying within budgets", LevelGood})
		case within*100 >= 60*total:
			report.BudgetPoints = 20
			report.Indicators = append(report.Indicators, Indicator{"Mostly within budgets", LevelOkay})
		default:
			report.BudgetPoints = 10
			report.Indicators = append(report.Indicators, Indicator{"Exceeding budgets", LevelWarning})
		}
	} else {
		report.BudgetPoints = 15
		report.Indicators = append(report.Indicators, Indicator{"No budgets set", LevelWarning})
	}

	// emergency fund; tiers compare savings*12 against n*expense to stay exact
	covers := func(n int64) bool {
		if !in.TotalExpense.IsPositive() {
			return false
		}
		return in.TotalSavings.Mul(monthsInYear).GreaterThanOrEqual(in.TotalExpense.Mul(decimal.NewFromInt(n)))
	}
	if in.TotalExpense.IsPositive() {
		report.EmergencyMonths = in.TotalSavings.Mul(monthsInYear).Div(in.TotalExpense).Round(1)
	}

	switch {
	case covers(6):
		report.EmergencyPoints = 30
		report.Indicators = append(report.Indicators, Indicator{"Strong emergency fund", LevelGood})
	case covers(3):
		report.EmergencyPoints = 20
		report.Indicators = append(report.Indicators, Indicator{"Adequate emergency fund", LevelOkay})
	case covers(1):
		report.EmergencyPoints = 10
		report.Indicators = append(report.Indicators, Indicator{"Building emergency fund", LevelWarning})
	default:
		report.Indicators = append(report.Indicators, Indicator{"No emergency fund", LevelBad})
	}

	report.Score = report.SavingsPoints + report.BudgetPoints + report.EmergencyPoints
	if report.Score > 100 {
		report.Score = 100
	}
	return report
}

// String renders the score with its band
func (r HealthReport) String() string {
	return fmt.Sprintf("%d/100 (%s)", r.Score, r.Label())
}
