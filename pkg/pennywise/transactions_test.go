package pennywise

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func expenseParams(amount int64, category string) *CreateTransactionParams {
	return &CreateTransactionParams{
		Amount:      decimal.NewFromInt(amount),
		Category:    category,
		Description: "test",
		Date:        MustParseDate("2025-03-10"),
		Type:        KindExpense,
	}
}

func TestTransactionService_LoadAndAdd(t *testing.T) {
	client, notifier := newTestClient(t, NewMemoryAdapter("user-1", "ada@example.com"))
	ctx := context.Background()

	require.NoError(t, client.Transactions.Load(ctx))
	assert.Empty(t, client.Transactions.List())
	assert.True(t, client.Transactions.State().Loaded)

	first, err := client.Transactions.Add(ctx, expenseParams(20, "Food"))
	require.NoError(t, err)
	second, err := client.Transactions.Add(ctx, expenseParams(5, "Transport"))
	require.NoError(t, err)

	list := client.Transactions.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "new transactions are prepended")
	assert.Equal(t, first.ID, list[1].ID)
	assert.True(t, client.Transactions.TotalByType(KindExpense).Equal(decimal.NewFromInt(25)))
	assert.Contains(t, notifier.Successes(), "Transaction added successfully")
}

func TestTransactionService_UpdateAndRemove(t *testing.T) {
	client, _ := newTestClient(t, NewMemoryAdapter("user-1", ""))
	ctx := context.Background()

	created, err := client.Transactions.Add(ctx, expenseParams(20, "Food"))
	require.NoError(t, err)

	category := "Groceries"
	updated, err := client.Transactions.Update(ctx, created.ID, &UpdateTransactionParams{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", updated.Category)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(20)))

	got, err := client.Transactions.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Category)

	require.NoError(t, client.Transactions.Remove(ctx, created.ID))
	assert.Empty(t, client.Transactions.List())

	_, err = client.Transactions.Get(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionService_FailedAddKeepsState(t *testing.T) {
	adapter := new(MockAdapter)
	existing := &Transaction{ID: "t1", Amount: decimal.NewFromInt(10), Category: "Food", Type: KindExpense, Date: MustParseDate("2025-03-01")}
	adapter.On("ListTransactions", mock.Anything).Return([]*Transaction{existing}, nil)
	rejection := &Error{Code: "23514", Message: "check constraint violated", StatusCode: 400}
	adapter.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil, rejection)

	client, notifier := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Transactions.Load(ctx))

	_, err := client.Transactions.Add(ctx, expenseParams(99, "Food"))
	require.Error(t, err)
	assert.True(t, IsRemoteRejection(err))

	list := client.Transactions.List()
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0].ID)
	assert.Equal(t, []string{"Failed to add transaction"}, notifier.Failures())
	adapter.AssertExpectations(t)
}

func TestTransactionService_LoadIsIdempotent(t *testing.T) {
	adapter := NewMemoryAdapter("user-1", "")
	ctx := context.Background()
	for _, category := range []string{"Food", "Rent", "Fun"} {
		_, err := adapter.CreateTransaction(ctx, expenseParams(15, category))
		require.NoError(t, err)
	}

	client, _ := newTestClient(t, adapter)
	require.NoError(t, client.Transactions.Load(ctx))
	first := client.Transactions.List()
	require.NoError(t, client.Transactions.Load(ctx))

	assert.Equal(t, first, client.Transactions.List())
	assert.Len(t, first, 3)
}

func TestTransactionService_FailedUpdateAndRemoveKeepState(t *testing.T) {
	adapter := new(MockAdapter)
	existing := &Transaction{ID: "t1", Amount: decimal.NewFromInt(10), Category: "Food", Type: KindExpense, Date: MustParseDate("2025-03-01")}
	adapter.On("ListTransactions", mock.Anything).Return([]*Transaction{existing}, nil)
	rejection := &Error{Code: "23514", Message: "check constraint violated", StatusCode: 400}
	adapter.On("UpdateTransaction", mock.Anything, "t1", mock.Anything).Return(nil, rejection)
	adapter.On("DeleteTransaction", mock.Anything, "t1").Return(ErrServerError)

	client, notifier := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Transactions.Load(ctx))
	before := client.Transactions.List()

	amount := decimal.NewFromInt(99)
	_, err := client.Transactions.Update(ctx, "t1", &UpdateTransactionParams{Amount: &amount})
	require.Error(t, err)
	assert.True(t, IsRemoteRejection(err))

	err = client.Transactions.Remove(ctx, "t1")
	require.Error(t, err)

	assert.Equal(t, before, client.Transactions.List())
	assert.Equal(t, []string{"Failed to update transaction", "Failed to delete transaction"}, notifier.Failures())
	adapter.AssertExpectations(t)
}

func TestTransactionService_InvalidParamsSkipAdapter(t *testing.T) {
	adapter := new(MockAdapter)
	client, _ := newTestClient(t, adapter)

	_, err := client.Transactions.Add(context.Background(), expenseParams(0, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	adapter.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
}

func TestTransactionService_UpdateUnknownID(t *testing.T) {
	adapter := new(MockAdapter)
	client, _ := newTestClient(t, adapter)

	amount := decimal.NewFromInt(1)
	_, err := client.Transactions.Update(context.Background(), "nope", &UpdateTransactionParams{Amount: &amount})
	assert.ErrorIs(t, err, ErrNotFound)
	adapter.AssertNotCalled(t, "UpdateTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransactionService_LoadTimeoutKeepsPreviousList(t *testing.T) {
	adapter := new(MockAdapter)
	existing := &Transaction{ID: "t1", Amount: decimal.NewFromInt(10), Type: KindIncome}
	adapter.On("ListTransactions", mock.Anything).Return([]*Transaction{existing}, nil).Once()
	adapter.On("ListTransactions", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.DeadlineExceeded).Once()

	client, notifier := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Transactions.Load(ctx))

	err := client.Transactions.Load(ctx)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	state := client.Transactions.State()
	assert.False(t, state.Loading)
	assert.True(t, state.Loaded)
	assert.Error(t, state.Err)
	require.Len(t, client.Transactions.List(), 1)
	assert.Equal(t, []string{"Failed to load transactions"}, notifier.Failures())
}

func TestTransactionService_ResetDiscardsInFlightLoad(t *testing.T) {
	adapter := new(MockAdapter)
	started := make(chan struct{})
	release := make(chan struct{})
	adapter.On("ListTransactions", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]*Transaction{{ID: "stale"}}, nil).Once()

	client, _ := newTestClient(t, adapter)

	done := make(chan error, 1)
	go func() { done <- client.Transactions.Load(context.Background()) }()

	<-started
	client.Transactions.Reset()
	close(release)

	err := <-done
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, client.Transactions.List())
	assert.False(t, client.Transactions.State().Loaded)
}

func TestTransactionService_DuplicateAddRejected(t *testing.T) {
	adapter := new(MockAdapter)
	started := make(chan struct{})
	release := make(chan struct{})
	adapter.On("CreateTransaction", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(&Transaction{ID: "t1", Amount: decimal.NewFromInt(20), Type: KindExpense}, nil).Once()

	client, notifier := newTestClient(t, adapter)
	params := expenseParams(20, "Food")

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = client.Transactions.Add(context.Background(), params)
	}()

	<-started
	_, err := client.Transactions.Add(context.Background(), expenseParams(20, "Food"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Equal(t, []string{"Failed to add transaction"}, notifier.Failures())

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Len(t, client.Transactions.List(), 1)
	assert.Equal(t, 0, client.guard.busy())
	adapter.AssertExpectations(t)
}

func TestTransactionService_ObserversSeeIncreasingVersions(t *testing.T) {
	client, _ := newTestClient(t, NewMemoryAdapter("user-1", ""))
	ctx := context.Background()

	var (
		mu       sync.Mutex
		versions []uint64
		sizes    []int
	)
	unsubscribe := client.Transactions.Subscribe(TransactionObserverFunc(func(version uint64, snapshot []Transaction) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, version)
		sizes = append(sizes, len(snapshot))
	}))

	require.NoError(t, client.Transactions.Load(ctx))
	created, err := client.Transactions.Add(ctx, expenseParams(10, "Food"))
	require.NoError(t, err)
	require.NoError(t, client.Transactions.Remove(ctx, created.ID))

	unsubscribe()
	_, err = client.Transactions.Add(ctx, expenseParams(11, "Food"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, versions, 4, "initial delivery plus load, add and remove")
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
	assert.Equal(t, []int{0, 0, 1, 0}, sizes)
}

func TestTransactionService_Queries(t *testing.T) {
	client, _ := newTestClient(t, NewMemoryAdapter("user-1", ""))
	ctx := context.Background()

	_, err := client.Transactions.Add(ctx, expenseParams(10, "Food"))
	require.NoError(t, err)
	_, err = client.Transactions.Add(ctx, &CreateTransactionParams{
		Amount:      decimal.NewFromInt(2000),
		Category:    "Salary",
		Description: "March pay",
		Date:        MustParseDate("2025-04-01"),
		Type:        KindIncome,
	})
	require.NoError(t, err)

	assert.Len(t, client.Transactions.ByType(KindIncome), 1)
	assert.Len(t, client.Transactions.ByCategory("Food"), 1)
	assert.Len(t, client.Transactions.ByDateRange(MustParseDate("2025-04-01"), MustParseDate("2025-04-30")), 1)

	minAmount := decimal.NewFromInt(100)
	assert.Len(t, client.Transactions.Filter(TransactionFilter{MinAmount: &minAmount}), 1)
}

func TestBoundedLoad_ParentCancellationIsNotTimeout(t *testing.T) {
	client, _ := newTestClient(t, new(MockAdapter))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := boundedLoad(ctx, client, "test", func(ctx context.Context) error { return ctx.Err() })
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsTimeout(err))
}
