package main

import (
	"context"
	"testing"
	"time"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)

func newTestTools(t *testing.T) (*pennywiseTools, *pennywise.MemoryAdapter) {
	t.Helper()
	ctx := context.Background()
	adapter := pennywise.NewMemoryAdapter("user-1", "ada@example.com")

	for _, p := range []*pennywise.CreateTransactionParams{
		{Amount: decimal.NewFromInt(3000), Category: "Salary", Description: "March pay", Date: pennywise.MustParseDate("2025-03-01"), Type: pennywise.KindIncome},
		{Amount: decimal.NewFromInt(1200), Category: "Rent", Description: "rent", Date: pennywise.MustParseDate("2025-03-02"), Type: pennywise.KindExpense},
		{Amount: decimal.NewFromInt(300), Category: "Food", Description: "groceries", Date: pennywise.MustParseDate("2025-03-10"), Type: pennywise.KindExpense},
		{Amount: decimal.NewFromInt(500), Category: "Food", Description: "february food", Date: pennywise.MustParseDate("2025-02-10"), Type: pennywise.KindExpense},
	} {
		_, err := adapter.CreateTransaction(ctx, p)
		require.NoError(t, err)
	}
	_, err := adapter.CreateBudget(ctx, &pennywise.CreateBudgetParams{Category: "Food", Amount: decimal.NewFromInt(600), Period: pennywise.PeriodMonthly})
	require.NoError(t, err)

	due := pennywise.MustParseDate("2025-03-30")
	goal, err := adapter.CreateSavings(ctx, &pennywise.CreateSavingsParams{
		Title: "Bike", TargetAmount: decimal.NewFromInt(1000), TargetDate: &due, Category: "Transport", Priority: pennywise.PriorityMedium,
	})
	require.NoError(t, err)
	_, err = adapter.CreateSavingsTransaction(ctx, &pennywise.CreateSavingsTransactionParams{
		SavingsID: goal.ID, Amount: decimal.NewFromInt(250), Type: pennywise.SavingsDeposit, Date: pennywise.MustParseDate("2025-03-05"),
	})
	require.NoError(t, err)

	client, err := pennywise.NewClient(&pennywise.ClientOptions{Adapter: adapter, Notifier: quietNotifier{}})
	require.NoError(t, err)
	require.NoError(t, client.Start(ctx))

	return &pennywiseTools{client: client, now: func() time.Time { return testNow }}, adapter
}

func TestGetTransactionsTool(t *testing.T) {
	tools, _ := newTestTools(t)

	_, output, err := tools.GetTransactions(context.Background(), nil, GetTransactionsInput{
		StartDate: "2025-03-01",
		EndDate:   "2025-03-31",
		Type:      "expense",
	})
	require.NoError(t, err)
	require.Equal(t, 2, output.Count)
	assert.Equal(t, "groceries", output.Transactions[0].Description)
	assert.Equal(t, "2025-03-10", output.Transactions[0].Date)
	assert.Equal(t, 300.0, output.Transactions[0].Amount)
	assert.Equal(t, "USD", output.Currency)

	_, output, err = tools.GetTransactions(context.Background(), nil, GetTransactionsInput{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, output.Count)

	_, _, err = tools.GetTransactions(context.Background(), nil, GetTransactionsInput{StartDate: "03/01/2025"})
	assert.ErrorContains(t, err, "invalid startDate")

	_, _, err = tools.GetTransactions(context.Background(), nil, GetTransactionsInput{Type: "transfer"})
	assert.ErrorContains(t, err, "invalid type")
}

func TestGetTransactionsTool_SeesNewRows(t *testing.T) {
	tools, adapter := newTestTools(t)

	_, err := adapter.CreateTransaction(context.Background(), &pennywise.CreateTransactionParams{
		Amount: decimal.NewFromInt(15), Category: "Food", Description: "coffee beans", Date: pennywise.MustParseDate("2025-03-18"), Type: pennywise.KindExpense,
	})
	require.NoError(t, err)

	_, output, err := tools.GetTransactions(context.Background(), nil, GetTransactionsInput{Search: "coffee"})
	require.NoError(t, err)
	require.Equal(t, 1, output.Count)
	assert.Equal(t, "coffee beans", output.Transactions[0].Description)
}

func TestGetBudgetsTool(t *testing.T) {
	tools, _ := newTestTools(t)

	_, output, err := tools.GetBudgets(context.Background(), nil, GetBudgetsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, output.Count)

	food := output.Budgets[0]
	assert.Equal(t, "Food", food.Category)
	assert.Equal(t, 800.0, food.Spent)
	assert.Equal(t, -200.0, food.Remaining)
	assert.Equal(t, 100, food.Progress)
	assert.True(t, food.Exceeded)
}

func TestGetSavingsGoalsTool(t *testing.T) {
	tools, adapter := newTestTools(t)

	_, output, err := tools.GetSavingsGoals(context.Background(), nil, GetSavingsGoalsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, output.Count)

	bike := output.Goals[0]
	assert.Equal(t, "Bike", bike.Title)
	assert.Equal(t, 250.0, bike.Saved)
	assert.InDelta(t, 25.0, bike.Progress, 0.001)
	assert.Equal(t, "2025-03-30", bike.TargetDate)
	require.NotNil(t, bike.DaysLeft)
	assert.Equal(t, 10, *bike.DaysLeft)
	assert.Equal(t, 250.0, output.TotalSavings)

	_, output, err = tools.GetSavingsGoals(context.Background(), nil, GetSavingsGoalsInput{Status: "completed"})
	require.NoError(t, err)
	assert.Zero(t, output.Count)

	adapter.SetSavingsProvisioned(false)
	_, _, err = tools.GetSavingsGoals(context.Background(), nil, GetSavingsGoalsInput{})
	assert.ErrorIs(t, err, pennywise.ErrNotProvisioned)
}

func TestGetFinancialHealthTool(t *testing.T) {
	tools, _ := newTestTools(t)

	_, output, err := tools.GetFinancialHealth(context.Background(), nil, GetFinancialHealthInput{})
	require.NoError(t, err)

	// income 3000, expenses 2000: 33% saved -> 40; the only budget is exceeded -> 10;
	// 250*12 = 3000 covers one month of 2000 -> 10
	assert.Equal(t, 40, output.SavingsPoints)
	assert.Equal(t, 10, output.BudgetPoints)
	assert.Equal(t, 10, output.EmergencyPoints)
	assert.Equal(t, 60, output.Score)
	assert.Equal(t, "Good", output.Label)
	assert.NotEmpty(t, output.Indicators)
}

func TestGetSpendingSummaryTool(t *testing.T) {
	tools, _ := newTestTools(t)

	_, output, err := tools.GetSpendingSummary(context.Background(), nil, GetSpendingSummaryInput{})
	require.NoError(t, err)

	assert.Equal(t, "This Month", output.Period)
	assert.Equal(t, "2025-03-01", output.StartDate)
	assert.Equal(t, "2025-03-31", output.EndDate)
	assert.Equal(t, 3000.0, output.Income)
	assert.Equal(t, 1500.0, output.Expense)
	assert.Equal(t, 1500.0, output.Balance)
	assert.Equal(t, 3, output.Count)
	require.Len(t, output.TopCategories, 2)
	assert.Equal(t, "Rent", output.TopCategories[0].Category)
	assert.Equal(t, 80, output.TopCategories[0].Percent)

	require.Len(t, output.Trend, 6)
	assert.Equal(t, "2025-03", output.Trend[5].Month)
	assert.Equal(t, 500.0, output.Trend[4].Expense)

	_, _, err = tools.GetSpendingSummary(context.Background(), nil, GetSpendingSummaryInput{Period: "decade"})
	assert.Error(t, err)
}
