package pennywise

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Adapter is the persistence boundary. Every call is scoped to the
// authenticated user and fails with ErrNotAuthenticated without one.
type Adapter interface {
	// Profile
	EnsureUserProfile(ctx context.Context) (*UserProfile, error)
	UpdateUserProfile(ctx context.Context, params *UpdateProfileParams) (*UserProfile, error)

	// Transactions, newest date first
	ListTransactions(ctx context.Context) ([]*Transaction, error)
	CreateTransaction(ctx context.Context, params *CreateTransactionParams) (*Transaction, error)
	UpdateTransaction(ctx context.Context, id string, params *UpdateTransactionParams) (*Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error

	// Budgets, newest first
	ListBudgets(ctx context.Context) ([]*Budget, error)
	CreateBudget(ctx context.Context, params *CreateBudgetParams) (*Budget, error)
	UpdateBudget(ctx context.Context, id string, params *UpdateBudgetParams) (*Budget, error)
	DeleteBudget(ctx context.Context, id string) error

	// Savings goals, newest first
	ListSavings(ctx context.Context) ([]*SavingsGoal, error)
	CreateSavings(ctx context.Context, params *CreateSavingsParams) (*SavingsGoal, error)
	UpdateSavings(ctx context.Context, id string, params *UpdateSavingsParams) (*SavingsGoal, error)
	DeleteSavings(ctx context.Context, id string) error

	// Savings transactions, newest date first
	ListSavingsTransactions(ctx context.Context) ([]*SavingsTransaction, error)
	CreateSavingsTransaction(ctx context.Context, params *CreateSavingsTransactionParams) (*SavingsTransaction, error)
	DeleteSavingsTransactions(ctx context.Context, savingsID string) error

	// ReconcileSavingsStatuses applies ReconcileGoalStatus to every goal server-side
	ReconcileSavingsStatuses(ctx context.Context) error

	// DeleteUserData removes every row owned by the user
	DeleteUserData(ctx context.Context) error
}

// TransactionObserver is notified after every change to the transaction list.
// Version increases monotonically; snapshot is a private copy.
type TransactionObserver interface {
	TransactionsChanged(version uint64, snapshot []Transaction)
}

// TransactionObserverFunc adapts a function to TransactionObserver
type TransactionObserverFunc func(version uint64, snapshot []Transaction)

// TransactionsChanged calls f
func (f TransactionObserverFunc) TransactionsChanged(version uint64, snapshot []Transaction) {
	f(version, snapshot)
}

// Notifier surfaces transient outcome messages to the user
type Notifier interface {
	Success(msg string)
	Failure(msg string, err error)
}

// ProviderState reports the load status of a provider
type ProviderState struct {
	Loading  bool
	Loaded   bool
	Err      error
	LoadedAt time.Time
}

// TransactionService holds the user's transactions
type TransactionService interface {
	Load(ctx context.Context) error
	Add(ctx context.Context, params *CreateTransactionParams) (*Transaction, error)
	Update(ctx context.Context, id string, params *UpdateTransactionParams) (*Transaction, error)
	Remove(ctx context.Context, id string) error

	List() []Transaction
	Get(id string) (*Transaction, error)
	ByType(kind Kind) []Transaction
	ByCategory(category string) []Transaction
	ByDateRange(start, end Date) []Transaction
	Filter(filter TransactionFilter) []Transaction
	TotalByType(kind Kind) decimal.Decimal

	Subscribe(observer TransactionObserver) (unsubscribe func())
	State() ProviderState
	Reset()
}

// BudgetService holds the user's budgets with derived spending
type BudgetService interface {
	Load(ctx context.Context) error
	Add(ctx context.Context, params *CreateBudgetParams) (*Budget, error)
	Update(ctx context.Context, id string, params *UpdateBudgetParams) (*Budget, error)
	Remove(ctx context.Context, id string) error

	List() []Budget
	Get(id string) (*Budget, error)
	ByCategory(category string) *Budget
	Progress(id string) int
	IsExceeded(id string) bool

	State() ProviderState
	Reset()
}

// SavingsService holds the user's goals and their transactions
type SavingsService interface {
	Load(ctx context.Context) error
	Add(ctx context.Context, params *CreateSavingsParams) (*SavingsGoal, error)
	Update(ctx context.Context, id string, params *UpdateSavingsParams) (*SavingsGoal, error)
	Delete(ctx context.Context, id string) error
	AddTransaction(ctx context.Context, params *CreateSavingsTransactionParams) (*SavingsTransaction, error)
	Reconcile(ctx context.Context) error

	List() []SavingsGoal
	Get(id string) (*SavingsGoal, error)
	Transactions() []SavingsTransaction
	TransactionsFor(goalID string) []SavingsTransaction
	TotalSavings() decimal.Decimal
	ActiveGoals() []SavingsGoal
	CompletedGoals() []SavingsGoal
	TableExists() bool

	State() ProviderState
	Reset()
}

// ProfileService manages the user profile and account data
type ProfileService interface {
	Ensure(ctx context.Context) (*UserProfile, error)
	Update(ctx context.Context, params *UpdateProfileParams) (*UserProfile, error)
	Current() *UserProfile
	DeleteAllData(ctx context.Context) error
}

// AuthService handles sign-in against the hosted backend
type AuthService interface {
	Login(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	GetSession() *Session
	SaveSession(path string) error
	LoadSession(path string) error
}
