package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedClient(t *testing.T, adapter *pennywise.MemoryAdapter) *pennywise.Client {
	t.Helper()
	client, err := pennywise.NewClientWithAdapter(adapter, nil)
	require.NoError(t, err)
	require.NoError(t, client.Start(context.Background()))
	return client
}

func seed(t *testing.T) *pennywise.MemoryAdapter {
	t.Helper()
	ctx := context.Background()
	adapter := pennywise.NewMemoryAdapter("user-1", "ada@example.com")

	for _, p := range []*pennywise.CreateTransactionParams{
		{Amount: decimal.NewFromInt(3000), Category: "Salary", Description: "pay", Date: pennywise.MustParseDate("2025-03-01"), Type: pennywise.KindIncome},
		{Amount: decimal.NewFromInt(80), Category: "Food", Description: "groceries", Date: pennywise.MustParseDate("2025-03-04"), Type: pennywise.KindExpense},
		{Amount: decimal.NewFromInt(20), Category: "Food", Description: "lunch", Date: pennywise.MustParseDate("2025-03-05"), Type: pennywise.KindExpense},
	} {
		_, err := adapter.CreateTransaction(ctx, p)
		require.NoError(t, err)
	}
	_, err := adapter.CreateBudget(ctx, &pennywise.CreateBudgetParams{Category: "Food", Amount: decimal.NewFromInt(300), Period: pennywise.PeriodMonthly})
	require.NoError(t, err)
	return adapter
}

func findResult(t *testing.T, report *ValidationReport, name string) ValidationResult {
	t.Helper()
	for _, r := range report.Results {
		if r.Check == name {
			return r
		}
	}
	t.Fatalf("no result for %s", name)
	return ValidationResult{}
}

func TestValidator_ConsistentState(t *testing.T) {
	adapter := seed(t)
	goal, err := adapter.CreateSavings(context.Background(), &pennywise.CreateSavingsParams{
		Title: "Trip", TargetAmount: decimal.NewFromInt(500), Category: "Travel", Priority: pennywise.PriorityLow,
	})
	require.NoError(t, err)
	_, err = adapter.CreateSavingsTransaction(context.Background(), &pennywise.CreateSavingsTransactionParams{
		SavingsID: goal.ID, Amount: decimal.NewFromInt(100), Type: pennywise.SavingsDeposit, Date: pennywise.MustParseDate("2025-03-02"),
	})
	require.NoError(t, err)

	report := NewValidator(startedClient(t, adapter)).Run(context.Background())

	assert.Equal(t, 5, report.TotalChecks)
	assert.Equal(t, 5, report.Passed)
	assert.Zero(t, report.Failed)
	assert.InDelta(t, 100.0, report.SuccessRate, 0.001)
	assert.Equal(t, 3, findResult(t, report, "transactions_valid").Checked)
	assert.Equal(t, 1, findResult(t, report, "budget_spent").Checked)
	assert.Equal(t, 1, findResult(t, report, "goal_balance").Checked)
}

func TestValidator_GoalStatusBehindBalance(t *testing.T) {
	adapter := seed(t)
	ctx := context.Background()
	goal, err := adapter.CreateSavings(ctx, &pennywise.CreateSavingsParams{
		Title: "Laptop", TargetAmount: decimal.NewFromInt(100), Category: "Tech", Priority: pennywise.PriorityHigh,
	})
	require.NoError(t, err)
	// a direct adapter write skips the reconcile the savings service would run
	_, err = adapter.CreateSavingsTransaction(ctx, &pennywise.CreateSavingsTransactionParams{
		SavingsID: goal.ID, Amount: decimal.NewFromInt(150), Type: pennywise.SavingsDeposit, Date: pennywise.MustParseDate("2025-03-02"),
	})
	require.NoError(t, err)

	client, err := pennywise.NewClientWithAdapter(adapter, nil)
	require.NoError(t, err)
	require.NoError(t, client.Transactions.Load(ctx))
	require.NoError(t, client.Budgets.Load(ctx))
	require.NoError(t, client.Savings.Load(ctx))

	// Load reconciles, so force the stale status back
	active := pennywise.GoalActive
	_, err = client.Savings.Update(ctx, goal.ID, &pennywise.UpdateSavingsParams{Status: &active})
	require.NoError(t, err)

	report := NewValidator(client).Run(ctx)

	status := findResult(t, report, "goal_status")
	assert.False(t, status.Passed)
	require.Len(t, status.Problems, 1)
	assert.Contains(t, status.Problems[0], "reconcile gives Completed")
	assert.True(t, findResult(t, report, "goal_balance").Passed)
	assert.Equal(t, 1, report.Failed)

	var out bytes.Buffer
	printSummary(&out, report, true)
	assert.Contains(t, out.String(), "Failed: 1")
	assert.Contains(t, out.String(), "goal_status:")
}

func TestValidator_SkipsGoalsWithoutSavingsTables(t *testing.T) {
	adapter := seed(t)
	adapter.SetSavingsProvisioned(false)

	report := NewValidator(startedClient(t, adapter)).Run(context.Background())

	assert.Zero(t, report.Failed)
	assert.Zero(t, findResult(t, report, "goal_status").Checked)
}

func TestBar(t *testing.T) {
	assert.Equal(t, "██████████░░░░░░░░░░", bar(50, 20))
	assert.Equal(t, "░░░░░", bar(-3, 5))
	assert.Equal(t, "█████", bar(140, 5))
}

func TestParseHelpers(t *testing.T) {
	d, err := parseAmount("amount", " 12.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))

	_, err = parseAmount("amount", "twelve")
	assert.ErrorContains(t, err, "--amount")

	date, err := parseDateFlag("date", "2025-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", date.String())

	_, err = parseDateFlag("date", "28/02/2025")
	assert.Error(t, err)

	zero, err := optionalDate("from", "")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	assert.Equal(t, pennywise.PriorityHigh, parsePriority("HIGH"))
	assert.Equal(t, pennywise.GoalPaused, parseStatus("paused"))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
