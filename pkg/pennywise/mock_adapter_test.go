package pennywise

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAdapter is a mock implementation of Adapter
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) EnsureUserProfile(ctx context.Context) (*UserProfile, error) {
	args := m.Called(ctx)
	if p, ok := args.Get(0).(*UserProfile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) UpdateUserProfile(ctx context.Context, params *UpdateProfileParams) (*UserProfile, error) {
	args := m.Called(ctx, params)
	if p, ok := args.Get(0).(*UserProfile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	args := m.Called(ctx)
	if rows, ok := args.Get(0).([]*Transaction); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) CreateTransaction(ctx context.Context, params *CreateTransactionParams) (*Transaction, error) {
	args := m.Called(ctx, params)
	if t, ok := args.Get(0).(*Transaction); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) UpdateTransaction(ctx context.Context, id string, params *UpdateTransactionParams) (*Transaction, error) {
	args := m.Called(ctx, id, params)
	if t, ok := args.Get(0).(*Transaction); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) DeleteTransaction(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdapter) ListBudgets(ctx context.Context) ([]*Budget, error) {
	args := m.Called(ctx)
	if rows, ok := args.Get(0).([]*Budget); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) CreateBudget(ctx context.Context, params *CreateBudgetParams) (*Budget, error) {
	args := m.Called(ctx, params)
	if b, ok := args.Get(0).(*Budget); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) UpdateBudget(ctx context.Context, id string, params *UpdateBudgetParams) (*Budget, error) {
	args := m.Called(ctx, id, params)
	if b, ok := args.Get(0).(*Budget); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) DeleteBudget(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdapter) ListSavings(ctx context.Context) ([]*SavingsGoal, error) {
	args := m.Called(ctx)
	if rows, ok := args.Get(0).([]*SavingsGoal); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) CreateSavings(ctx context.Context, params *CreateSavingsParams) (*SavingsGoal, error) {
	args := m.Called(ctx, params)
	if g, ok := args.Get(0).(*SavingsGoal); ok {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) UpdateSavings(ctx context.Context, id string, params *UpdateSavingsParams) (*SavingsGoal, error) {
	args := m.Called(ctx, id, params)
	if g, ok := args.Get(0).(*SavingsGoal); ok {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) DeleteSavings(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdapter) ListSavingsTransactions(ctx context.Context) ([]*SavingsTransaction, error) {
	args := m.Called(ctx)
	if rows, ok := args.Get(0).([]*SavingsTransaction); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) CreateSavingsTransaction(ctx context.Context, params *CreateSavingsTransactionParams) (*SavingsTransaction, error) {
	args := m.Called(ctx, params)
	if t, ok := args.Get(0).(*SavingsTransaction); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) DeleteSavingsTransactions(ctx context.Context, savingsID string) error {
	return m.Called(ctx, savingsID).Error(0)
}

func (m *MockAdapter) ReconcileSavingsStatuses(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAdapter) DeleteUserData(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// recordingNotifier keeps every outcome message
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Failure(msg string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, msg)
}

func (n *recordingNotifier) Successes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

func (n *recordingNotifier) Failures() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.failures...)
}

// newTestClient builds a client over adapter with a short load timeout
func newTestClient(t *testing.T, adapter Adapter) (*Client, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	client, err := NewClient(&ClientOptions{
		Adapter:     adapter,
		Notifier:    notifier,
		LoadTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	return client, notifier
}
