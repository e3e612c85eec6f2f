package pennywise

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBudgetService_SpentFollowsTransactions(t *testing.T) {
	client, _ := newTestClient(t, NewMemoryAdapter("user-1", ""))
	ctx := context.Background()

	budget, err := client.Budgets.Add(ctx, &CreateBudgetParams{
		Category: "Food",
		Amount:   decimal.NewFromInt(100),
		Period:   PeriodMonthly,
	})
	require.NoError(t, err)
	assert.True(t, budget.Spent.IsZero())

	_, err = client.Transactions.Add(ctx, expenseParams(60, "Food"))
	require.NoError(t, err)
	assert.Equal(t, 60, client.Budgets.Progress(budget.ID))
	assert.False(t, client.Budgets.IsExceeded(budget.ID))

	second, err := client.Transactions.Add(ctx, expenseParams(50, "Food"))
	require.NoError(t, err)
	_, err = client.Transactions.Add(ctx, expenseParams(500, "Rent"))
	require.NoError(t, err)
	_, err = client.Transactions.Add(ctx, &CreateTransactionParams{
		Amount: decimal.NewFromInt(1000), Category: "Food", Description: "refund", Date: MustParseDate("2025-03-01"), Type: KindIncome,
	})
	require.NoError(t, err)

	got, err := client.Budgets.Get(budget.ID)
	require.NoError(t, err)
	assert.True(t, got.Spent.Equal(decimal.NewFromInt(110)), "income and other categories are ignored")
	assert.Equal(t, 100, client.Budgets.Progress(budget.ID))
	assert.True(t, client.Budgets.IsExceeded(budget.ID))

	require.NoError(t, client.Transactions.Remove(ctx, second.ID))
	got, err = client.Budgets.Get(budget.ID)
	require.NoError(t, err)
	assert.True(t, got.Spent.Equal(decimal.NewFromInt(60)))
}

func TestBudgetService_LoadAppliesCurrentTransactions(t *testing.T) {
	adapter := NewMemoryAdapter("user-1", "")
	ctx := context.Background()
	_, err := adapter.CreateTransaction(ctx, expenseParams(40, "Fun"))
	require.NoError(t, err)
	_, err = adapter.CreateBudget(ctx, &CreateBudgetParams{Category: "Fun", Amount: decimal.NewFromInt(80), Period: PeriodWeekly})
	require.NoError(t, err)

	client, _ := newTestClient(t, adapter)
	require.NoError(t, client.Transactions.Load(ctx))
	require.NoError(t, client.Budgets.Load(ctx))

	b := client.Budgets.ByCategory("Fun")
	require.NotNil(t, b)
	assert.True(t, b.Spent.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, 50, b.Progress())
	assert.Nil(t, client.Budgets.ByCategory("Travel"))
}

func TestBudgetService_UpdateRecomputes(t *testing.T) {
	client, _ := newTestClient(t, NewMemoryAdapter("user-1", ""))
	ctx := context.Background()

	_, err := client.Transactions.Add(ctx, expenseParams(30, "Travel"))
	require.NoError(t, err)
	budget, err := client.Budgets.Add(ctx, &CreateBudgetParams{Category: "Food", Amount: decimal.NewFromInt(50), Period: PeriodMonthly})
	require.NoError(t, err)

	category := "Travel"
	updated, err := client.Budgets.Update(ctx, budget.ID, &UpdateBudgetParams{Category: &category})
	require.NoError(t, err)
	assert.True(t, updated.Spent.Equal(decimal.NewFromInt(30)))

	require.NoError(t, client.Budgets.Remove(ctx, budget.ID))
	assert.Empty(t, client.Budgets.List())
}

func TestBudgetService_StaleSnapshotIgnored(t *testing.T) {
	client, _ := newTestClient(t, new(MockAdapter))
	svc := client.Budgets.(*budgetService)
	svc.items = []Budget{{ID: "b1", Category: "Food", Amount: decimal.NewFromInt(100)}}

	svc.transactionsChanged(5, []Transaction{{Category: "Food", Type: KindExpense, Amount: decimal.NewFromInt(70)}})
	svc.transactionsChanged(4, []Transaction{{Category: "Food", Type: KindExpense, Amount: decimal.NewFromInt(10)}})

	got, err := client.Budgets.Get("b1")
	require.NoError(t, err)
	assert.True(t, got.Spent.Equal(decimal.NewFromInt(70)))
}

func TestBudgetService_FailedRemoveKeepsBudget(t *testing.T) {
	adapter := new(MockAdapter)
	adapter.On("ListBudgets", mock.Anything).Return([]*Budget{{ID: "b1", Category: "Food", Amount: decimal.NewFromInt(10), Period: PeriodMonthly}}, nil)
	adapter.On("DeleteBudget", mock.Anything, "b1").Return(ErrServerError)

	client, notifier := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Budgets.Load(ctx))

	err := client.Budgets.Remove(ctx, "b1")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Len(t, client.Budgets.List(), 1)
	assert.Equal(t, []string{"Failed to delete budget"}, notifier.Failures())
}

func TestBudgetService_FailedUpdateKeepsBudget(t *testing.T) {
	adapter := new(MockAdapter)
	adapter.On("ListBudgets", mock.Anything).Return([]*Budget{{ID: "b1", Category: "Food", Amount: decimal.NewFromInt(10), Period: PeriodMonthly}}, nil)
	adapter.On("UpdateBudget", mock.Anything, "b1", mock.Anything).Return(nil, ErrServerError)

	client, notifier := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Budgets.Load(ctx))
	before := client.Budgets.List()

	amount := decimal.NewFromInt(500)
	_, err := client.Budgets.Update(ctx, "b1", &UpdateBudgetParams{Amount: &amount})
	require.Error(t, err)

	assert.Equal(t, before, client.Budgets.List())
	assert.Equal(t, []string{"Failed to update budget"}, notifier.Failures())
}

func TestBudgetService_UpdateOfRemovedBudgetIsNotFound(t *testing.T) {
	adapter := new(MockAdapter)
	adapter.On("ListBudgets", mock.Anything).Return([]*Budget{{ID: "b1", Category: "Food", Amount: decimal.NewFromInt(10), Period: PeriodMonthly}}, nil)

	client, notifier := newTestClient(t, adapter)
	svc := client.Budgets.(*budgetService)
	ctx := context.Background()
	require.NoError(t, client.Budgets.Load(ctx))

	// the budget disappears locally while the remote update runs
	adapter.On("UpdateBudget", mock.Anything, "b1", mock.Anything).Run(func(mock.Arguments) {
		svc.mu.Lock()
		svc.items = nil
		svc.mu.Unlock()
	}).Return(&Budget{ID: "b1", Category: "Food", Amount: decimal.NewFromInt(20), Period: PeriodMonthly}, nil)

	amount := decimal.NewFromInt(20)
	updated, err := client.Budgets.Update(ctx, "b1", &UpdateBudgetParams{Amount: &amount})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, updated)
	assert.Empty(t, client.Budgets.List())
	assert.Equal(t, []string{"Failed to update budget"}, notifier.Failures())
	assert.Empty(t, notifier.Successes())
}

func TestBudgetService_RemoveAfterResetIsNotAuthenticated(t *testing.T) {
	adapter := new(MockAdapter)
	adapter.On("ListBudgets", mock.Anything).Return([]*Budget{{ID: "b1", Category: "Food", Amount: decimal.NewFromInt(10), Period: PeriodMonthly}}, nil)

	client, notifier := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Budgets.Load(ctx))

	adapter.On("DeleteBudget", mock.Anything, "b1").Run(func(mock.Arguments) {
		client.Budgets.Reset()
	}).Return(nil)

	err := client.Budgets.Remove(ctx, "b1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, client.Budgets.List())
	assert.Empty(t, notifier.Successes())
}

func TestBudgetService_DuplicateRemoveIsReported(t *testing.T) {
	adapter := new(MockAdapter)
	adapter.On("ListBudgets", mock.Anything).Return([]*Budget{{ID: "b1", Category: "Food", Amount: decimal.NewFromInt(10), Period: PeriodMonthly}}, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	adapter.On("DeleteBudget", mock.Anything, "b1").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()

	client, notifier := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Budgets.Load(ctx))

	done := make(chan error, 1)
	go func() { done <- client.Budgets.Remove(ctx, "b1") }()

	<-started
	err := client.Budgets.Remove(ctx, "b1")
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Equal(t, []string{"Failed to delete budget"}, notifier.Failures())

	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, client.Budgets.List())
	adapter.AssertExpectations(t)
}

func TestBudgetService_ZeroAmountHasNoProgress(t *testing.T) {
	adapter := new(MockAdapter)
	adapter.On("ListTransactions", mock.Anything).Return([]*Transaction{
		{ID: "t1", Amount: decimal.NewFromInt(25), Category: "Food", Type: KindExpense, Date: MustParseDate("2025-03-01")},
	}, nil)
	adapter.On("ListBudgets", mock.Anything).Return([]*Budget{{ID: "b0", Category: "Food", Amount: decimal.Zero, Period: PeriodMonthly}}, nil)

	client, _ := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Transactions.Load(ctx))
	require.NoError(t, client.Budgets.Load(ctx))

	got, err := client.Budgets.Get("b0")
	require.NoError(t, err)
	assert.True(t, got.Spent.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 0, client.Budgets.Progress("b0"))
	assert.Equal(t, 0, got.Progress())
}

func TestSpentByCategory(t *testing.T) {
	spent := SpentByCategory([]Transaction{
		{Category: "Food", Type: KindExpense, Amount: decimal.RequireFromString("10.10")},
		{Category: "Food", Type: KindExpense, Amount: decimal.RequireFromString("0.20")},
		{Category: "Food", Type: KindIncome, Amount: decimal.NewFromInt(99)},
	})
	assert.True(t, spent["Food"].Equal(decimal.RequireFromString("10.30")))
	assert.True(t, spent["Rent"].IsZero())
}
