package pennywise

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func budgetWith(amount, spent string) Budget {
	return Budget{Amount: d(amount), Spent: d(spent)}
}

func TestHealthScore_Tiers(t *testing.T) {
	tests := []struct {
		name      string
		in        HealthInputs
		score     int
		savings   int
		budget    int
		emergency int
		rate      string
	}{
		{
			name:      "empty state",
			in:        HealthInputs{},
			score:     25,
			savings:   10,
			budget:    15,
			emergency: 0,
			rate:      "0",
		},
		{
			name: "excellent across the board",
			in: HealthInputs{
				TotalIncome:  d("10000"),
				TotalExpense: d("6000"),
				Budgets:      []Budget{budgetWith("500", "400"), budgetWith("300", "100")},
				TotalSavings: d("3000"),
			},
			score: 100, savings: 40, budget: 30, emergency: 30, rate: "40",
		},
		{
			name: "exactly twenty percent savings rate",
			in: HealthInputs{
				TotalIncome:  d("1000"),
				TotalExpense: d("800"),
			},
			score: 55, savings: 40, budget: 15, emergency: 0, rate: "20",
		},
		{
			name: "spending exceeds income",
			in: HealthInputs{
				TotalIncome:  d("1000"),
				TotalExpense: d("1200"),
				Budgets:      []Budget{budgetWith("100", "150")},
				TotalSavings: d("100"),
			},
			score: 20, savings: 0, budget: 10, emergency: 10, rate: "-20",
		},
		{
			name: "three of five budgets within is sixty percent",
			in: HealthInputs{
				TotalIncome:  d("1000"),
				TotalExpense: d("850"),
				Budgets: []Budget{
					budgetWith("10", "5"), budgetWith("10", "10"), budgetWith("10", "0"),
					budgetWith("10", "11"), budgetWith("10", "20"),
				},
				TotalSavings: d("212.50"),
			},
			score: 65, savings: 25, budget: 20, emergency: 20, rate: "15",
		},
		{
			name: "exactly six months of expenses",
			in: HealthInputs{
				TotalIncome:  d("0"),
				TotalExpense: d("1000"),
				TotalSavings: d("500"),
			},
			score: 45, savings: 0, budget: 15, emergency: 30, rate: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := HealthScore(tt.in)
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.savings, r.SavingsPoints)
			assert.Equal(t, tt.budget, r.BudgetPoints)
			assert.Equal(t, tt.emergency, r.EmergencyPoints)
			assert.Equal(t, tt.rate, r.SavingsRate.String())
			assert.Len(t, r.Indicators, 3)
		})
	}
}

func TestHealthScore_Deterministic(t *testing.T) {
	in := HealthInputs{
		TotalIncome:  d("4321.17"),
		TotalExpense: d("3999.99"),
		Budgets:      []Budget{budgetWith("120", "119.99")},
		TotalSavings: d("1000.01"),
	}
	assert.Equal(t, HealthScore(in), HealthScore(in))
}

func TestHealthScore_MonotonicInIncome(t *testing.T) {
	budgets := []Budget{budgetWith("100", "80"), budgetWith("50", "75")}
	expense := d("2400")
	savings := d("900")

	prev := -1
	for income := int64(0); income <= 6000; income += 50 {
		r := HealthScore(HealthInputs{
			TotalIncome:  decimal.NewFromInt(income),
			TotalExpense: expense,
			Budgets:      budgets,
			TotalSavings: savings,
		})
		assert.GreaterOrEqual(t, r.Score, prev, "income %d", income)
		prev = r.Score
	}
}

func TestHealthReport_Label(t *testing.T) {
	assert.Equal(t, "Excellent", HealthReport{Score: 80}.Label())
	assert.Equal(t, "Good", HealthReport{Score: 60}.Label())
	assert.Equal(t, "Fair", HealthReport{Score: 40}.Label())
	assert.Equal(t, "Needs Attention", HealthReport{Score: 39}.Label())
	assert.Equal(t, "100/100 (Excellent)", HealthReport{Score: 100}.String())
}
