package pennywise

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryAdapter is an in-process Adapter. It keeps the same server-side
// rules as the hosted backend: CurrentAmount is the signed sum of a goal's
// savings transactions and statuses follow ReconcileGoalStatus.
type MemoryAdapter struct {
	mu sync.RWMutex

	userID string
	email  string

	profiles     map[string]*UserProfile
	transactions map[string]*Transaction
	budgets      map[string]*Budget
	savings      map[string]*SavingsGoal
	savingsTxns  map[string]*SavingsTransaction

	savingsProvisioned bool
	now                func() time.Time
}

var _ Adapter = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates an adapter signed in as userID; an empty id means signed out
func NewMemoryAdapter(userID, email string) *MemoryAdapter {
	return &MemoryAdapter{
		userID:             userID,
		email:              email,
		profiles:           make(map[string]*UserProfile),
		transactions:       make(map[string]*Transaction),
		budgets:            make(map[string]*Budget),
		savings:            make(map[string]*SavingsGoal),
		savingsTxns:        make(map[string]*SavingsTransaction),
		savingsProvisioned: true,
		now:                time.Now,
	}
}

// SetUser switches the signed-in user; an empty id signs out
func (m *MemoryAdapter) SetUser(userID, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID, m.email = userID, email
}

// SetSavingsProvisioned simulates the savings tables being present or absent
func (m *MemoryAdapter) SetSavingsProvisioned(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savingsProvisioned = ok
}

// begin checks the context and session; callers hold the lock
func (m *MemoryAdapter) begin(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.userID == "" {
		return "", ErrNotAuthenticated
	}
	return m.userID, nil
}

func (m *MemoryAdapter) beginSavings(ctx context.Context) (string, error) {
	user, err := m.begin(ctx)
	if err != nil {
		return "", err
	}
	if !m.savingsProvisioned {
		return "", WrapError(ErrNotProvisioned, "42P01", `relation "savings" does not exist`)
	}
	return user, nil
}

func notFound(entity, id string) error {
	return WrapError(ErrNotFound, "NOT_FOUND", fmt.Sprintf("%s %s not found", entity, id))
}

// EnsureUserProfile gets or creates the user's profile
func (m *MemoryAdapter) EnsureUserProfile(ctx context.Context) (*UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := m.profiles[user]
	if !ok {
		p = &UserProfile{
			ID:        user,
			Email:     m.email,
			Currency:  DefaultCurrency,
			Theme:     DefaultTheme,
			CreatedAt: m.now(),
		}
		m.profiles[user] = p
	}
	out := *p
	return &out, nil
}

// UpdateUserProfile changes profile preferences
func (m *MemoryAdapter) UpdateUserProfile(ctx context.Context, params *UpdateProfileParams) (*UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := m.profiles[user]
	if !ok {
		return nil, notFound("profile", user)
	}
	if params.Name != nil {
		p.Name = *params.Name
	}
	if params.Currency != nil {
		p.Currency = *params.Currency
	}
	if params.Theme != nil {
		p.Theme = *params.Theme
	}
	out := *p
	return &out, nil
}

// ListTransactions returns the user's transactions, newest date first
func (m *MemoryAdapter) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Transaction
	for _, t := range m.transactions {
		if t.UserID == user {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c > 0
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CreateTransaction stores a new transaction
func (m *MemoryAdapter) CreateTransaction(ctx context.Context, params *CreateTransactionParams) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	t := &Transaction{
		ID:          uuid.NewString(),
		UserID:      user,
		Amount:      params.Amount,
		Category:    params.Category,
		Description: params.Description,
		Date:        params.Date,
		Type:        params.Type,
		IsRecurring: params.IsRecurring,
		CreatedAt:   m.now(),
	}
	m.transactions[t.ID] = t
	out := *t
	return &out, nil
}

// UpdateTransaction applies the changed fields
func (m *MemoryAdapter) UpdateTransaction(ctx context.Context, id string, params *UpdateTransactionParams) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := m.transactions[id]
	if !ok || t.UserID != user {
		return nil, notFound("transaction", id)
	}
	params.Apply(t)
	out := *t
	return &out, nil
}

// DeleteTransaction removes a transaction
func (m *MemoryAdapter) DeleteTransaction(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return err
	}
	if t, ok := m.transactions[id]; ok && t.UserID == user {
		delete(m.transactions, id)
	}
	return nil
}

// ListBudgets returns the user's budgets, newest first
func (m *MemoryAdapter) ListBudgets(ctx context.Context) ([]*Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Budget
	for _, b := range m.budgets {
		if b.UserID == user {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CreateBudget stores a new budget
func (m *MemoryAdapter) CreateBudget(ctx context.Context, params *CreateBudgetParams) (*Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	b := &Budget{
		ID:        uuid.NewString(),
		UserID:    user,
		Category:  params.Category,
		Amount:    params.Amount,
		Period:    params.Period,
		CreatedAt: m.now(),
	}
	m.budgets[b.ID] = b
	out := *b
	return &out, nil
}

// UpdateBudget applies the changed fields
func (m *MemoryAdapter) UpdateBudget(ctx context.Context, id string, params *UpdateBudgetParams) (*Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	b, ok := m.budgets[id]
	if !ok || b.UserID != user {
		return nil, notFound("budget", id)
	}
	params.Apply(b)
	out := *b
	return &out, nil
}

// DeleteBudget removes a budget
func (m *MemoryAdapter) DeleteBudget(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return err
	}
	if b, ok := m.budgets[id]; ok && b.UserID == user {
		delete(m.budgets, id)
	}
	return nil
}

// ListSavings returns the user's goals, newest first
func (m *MemoryAdapter) ListSavings(ctx context.Context) ([]*SavingsGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, err := m.beginSavings(ctx)
	if err != nil {
		return nil, err
	}
	var out []*SavingsGoal
	for _, g := range m.savings {
		if g.UserID == user {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CreateSavings stores a new goal with a zero balance
func (m *MemoryAdapter) CreateSavings(ctx context.Context, params *CreateSavingsParams) (*SavingsGoal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.beginSavings(ctx)
	if err != nil {
		return nil, err
	}
	status := params.Status
	if status == "" {
		status = GoalActive
	}
	now := m.now()
	g := &SavingsGoal{
		ID:            uuid.NewString(),
		UserID:        user,
		Title:         params.Title,
		Description:   params.Description,
		TargetAmount:  params.TargetAmount,
		CurrentAmount: decimal.Zero,
		TargetDate:    params.TargetDate,
		Category:      params.Category,
		Priority:      params.Priority,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.savings[g.ID] = g
	out := *g
	return &out, nil
}

// UpdateSavings applies the changed fields
func (m *MemoryAdapter) UpdateSavings(ctx context.Context, id string, params *UpdateSavingsParams) (*SavingsGoal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.beginSavings(ctx)
	if err != nil {
		return nil, err
	}
	g, ok := m.savings[id]
	if !ok || g.UserID != user {
		return nil, notFound("savings goal", id)
	}
	params.Apply(g)
	g.UpdatedAt = m.now()
	out := *g
	return &out, nil
}

// DeleteSavings removes a goal
func (m *MemoryAdapter) DeleteSavings(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.beginSavings(ctx)
	if err != nil {
		return err
	}
	if g, ok := m.savings[id]; ok && g.UserID == user {
		delete(m.savings, id)
	}
	return nil
}

// ListSavingsTransactions returns the user's savings transactions, newest date first
func (m *MemoryAdapter) ListSavingsTransactions(ctx context.Context) ([]*SavingsTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, err := m.beginSavings(ctx)
	if err != nil {
		return nil, err
	}
	var out []*SavingsTransaction
	for _, t := range m.savingsTxns {
		if t.UserID == user {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c > 0
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CreateSavingsTransaction stores a deposit or withdrawal and recomputes the goal balance
func (m *MemoryAdapter) CreateSavingsTransaction(ctx context.Context, params *CreateSavingsTransactionParams) (*SavingsTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.beginSavings(ctx)
	if err != nil {
		return nil, err
	}
	g, ok := m.savings[params.SavingsID]
	if !ok || g.UserID != user {
		return nil, &Error{
			Code:       "23503",
			Message:    `insert or update on table "savings_transactions" violates foreign key constraint`,
			StatusCode: 409,
		}
	}
	t := &SavingsTransaction{
		ID:          uuid.NewString(),
		UserID:      user,
		SavingsID:   params.SavingsID,
		Amount:      params.Amount,
		Type:        params.Type,
		Description: params.Description,
		Date:        params.Date,
		CreatedAt:   m.now(),
	}
	m.savingsTxns[t.ID] = t

	balance := decimal.Zero
	for _, st := range m.savingsTxns {
		if st.SavingsID == g.ID {
			balance = balance.Add(st.Signed())
		}
	}
	g.CurrentAmount = balance
	g.UpdatedAt = m.now()

	out := *t
	return &out, nil
}

// DeleteSavingsTransactions removes every transaction of one goal
func (m *MemoryAdapter) DeleteSavingsTransactions(ctx context.Context, savingsID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.beginSavings(ctx)
	if err != nil {
		return err
	}
	for id, t := range m.savingsTxns {
		if t.SavingsID == savingsID && t.UserID == user {
			delete(m.savingsTxns, id)
		}
	}
	return nil
}

// ReconcileSavingsStatuses applies ReconcileGoalStatus to every goal of the user
func (m *MemoryAdapter) ReconcileSavingsStatuses(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.beginSavings(ctx)
	if err != nil {
		return err
	}
	for _, g := range m.savings {
		if g.UserID != user {
			continue
		}
		if status := ReconcileGoalStatus(*g); status != g.Status {
			g.Status = status
			g.UpdatedAt = m.now()
		}
	}
	return nil
}

// DeleteUserData removes every row the user owns, profile included
func (m *MemoryAdapter) DeleteUserData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.begin(ctx)
	if err != nil {
		return err
	}
	for id, t := range m.savingsTxns {
		if t.UserID == user {
			delete(m.savingsTxns, id)
		}
	}
	for id, g := range m.savings {
		if g.UserID == user {
			delete(m.savings, id)
		}
	}
	for id, b := range m.budgets {
		if b.UserID == user {
			delete(m.budgets, id)
		}
	}
	for id, t := range m.transactions {
		if t.UserID == user {
			delete(m.transactions, id)
		}
	}
	delete(m.profiles, user)
	return nil
}
