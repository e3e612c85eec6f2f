package pennywise

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// budgetService implements the BudgetService interface. Spent is derived
// from the transaction snapshots it receives as an observer.
type budgetService struct {
	client *Client

	mu         sync.RWMutex
	items      []Budget
	state      ProviderState
	generation uint64

	// last transaction snapshot applied; older deliveries are ignored
	txVersion uint64
	txItems   []Transaction

	loads singleflight.Group
}

// newBudgetService creates a budget service subscribed to txns
func newBudgetService(client *Client, txns *transactionService) *budgetService {
	s := &budgetService{
		client: client,
	}
	txns.Subscribe(TransactionObserverFunc(s.transactionsChanged))
	return s
}

// transactionsChanged recomputes every budget against a newer snapshot
func (s *budgetService) transactionsChanged(version uint64, snapshot []Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version < s.txVersion {
		return
	}
	s.txVersion = version
	s.txItems = snapshot
	s.recomputeLocked()
}

// recomputeLocked is a full pass; callers hold mu
func (s *budgetService) recomputeLocked() {
	spent := SpentByCategory(s.txItems)
	for i := range s.items {
		s.items[i].Spent = spent[s.items[i].Category]
	}
}

// Load replaces the list with the backend's, keeping the old one on failure
func (s *budgetService) Load(ctx context.Context) error {
	_, err, _ := s.loads.Do("load", func() (interface{}, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *budgetService) load(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	gen := s.generation
	s.mu.Unlock()

	var rows []*Budget
	err := boundedLoad(ctx, s.client, "budgets.list", func(ctx context.Context) error {
		var err error
		rows, err = s.client.adapter.ListBudgets(ctx)
		return err
	})

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.state.Loading = false
	if err != nil {
		s.state.Err = err
		s.mu.Unlock()
		s.client.notifier.Failure("Failed to load budgets", err)
		return pkgerrors.Wrap(err, "failed to load budgets")
	}

	s.items = derefAll(rows)
	for i := range s.items {
		s.items[i].Spent = decimal.Zero
	}
	s.recomputeLocked()
	s.state = ProviderState{Loaded: true, LoadedAt: time.Now()}
	s.mu.Unlock()
	return nil
}

// Add creates a budget remotely and prepends the stored record
func (s *budgetService) Add(ctx context.Context, params *CreateBudgetParams) (*Budget, error) {
	if err := params.Validate(); err != nil {
		s.client.notifier.Failure("Failed to add budget", err)
		return nil, err
	}

	release, err := s.client.guard.acquire("budget", "create", params.Category+"|"+string(params.Period))
	if err != nil {
		s.client.notifier.Failure("Failed to add budget", err)
		return nil, err
	}
	defer release()

	gen := s.currentGeneration()

	var created *Budget
	err = s.client.execute(ctx, "budgets.create", func(ctx context.Context) error {
		var err error
		created, err = s.client.adapter.CreateBudget(ctx, params)
		return err
	})
	if err != nil {
		s.client.notifier.Failure("Failed to add budget", err)
		return nil, pkgerrors.Wrap(err, "failed to add budget")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	s.items = append([]Budget{*created}, s.items...)
	s.recomputeLocked()
	out := s.items[0]
	s.mu.Unlock()

	s.client.notifier.Success("Budget added successfully")
	return &out, nil
}

// Update sends amount, category or period and applies the stored record
func (s *budgetService) Update(ctx context.Context, id string, params *UpdateBudgetParams) (*Budget, error) {
	if err := params.Validate(); err != nil {
		s.client.notifier.Failure("Failed to update budget", err)
		return nil, err
	}
	if _, err := s.Get(id); err != nil {
		s.client.notifier.Failure("Failed to update budget", err)
		return nil, err
	}

	release, err := s.client.guard.acquire("budget", "update", id)
	if err != nil {
		s.client.notifier.Failure("Failed to update budget", err)
		return nil, err
	}
	defer release()

	gen := s.currentGeneration()

	var updated *Budget
	err = s.client.execute(ctx, "budgets.update", func(ctx context.Context) error {
		var err error
		updated, err = s.client.adapter.UpdateBudget(ctx, id, params)
		return err
	})
	if err != nil {
		s.client.notifier.Failure("Failed to update budget", err)
		return nil, pkgerrors.Wrap(err, "failed to update budget")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		// removed locally while the update was in flight
		s.mu.Unlock()
		s.client.notifier.Failure("Failed to update budget", ErrNotFound)
		return nil, ErrNotFound
	}
	s.items[idx] = *updated
	s.recomputeLocked()
	out := s.items[idx]
	s.mu.Unlock()

	s.client.notifier.Success("Budget updated successfully")
	return &out, nil
}

// Remove deletes remotely, then locally
func (s *budgetService) Remove(ctx context.Context, id string) error {
	if _, err := s.Get(id); err != nil {
		s.client.notifier.Failure("Failed to delete budget", err)
		return err
	}

	release, err := s.client.guard.acquire("budget", "delete", id)
	if err != nil {
		s.client.notifier.Failure("Failed to delete budget", err)
		return err
	}
	defer release()

	gen := s.currentGeneration()

	err = s.client.execute(ctx, "budgets.delete", func(ctx context.Context) error {
		return s.client.adapter.DeleteBudget(ctx, id)
	})
	if err != nil {
		s.client.notifier.Failure("Failed to delete budget", err)
		return pkgerrors.Wrap(err, "failed to delete budget")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	kept := s.items[:0:0]
	for _, b := range s.items {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	s.items = kept
	s.mu.Unlock()

	s.client.notifier.Success("Budget deleted successfully")
	return nil
}

// List returns a copy of the current budgets
func (s *budgetService) List() []Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Budget(nil), s.items...)
}

// Get returns one budget by id
func (s *budgetService) Get(id string) (*Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.items {
		if b.ID == id {
			out := b
			return &out, nil
		}
	}
	return nil, WrapError(ErrNotFound, "NOT_FOUND", fmt.Sprintf("budget %s not found", id))
}

// ByCategory returns the first budget for category, or nil
func (s *budgetService) ByCategory(category string) *Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.items {
		if b.Category == category {
			out := b
			return &out
		}
	}
	return nil
}

// Progress returns spent as a capped whole percent; 0 for unknown ids
func (s *budgetService) Progress(id string) int {
	b, err := s.Get(id)
	if err != nil {
		return 0
	}
	return b.Progress()
}

// IsExceeded reports whether spent is above the amount
func (s *budgetService) IsExceeded(id string) bool {
	b, err := s.Get(id)
	if err != nil {
		return false
	}
	return b.IsExceeded()
}

// State returns the load status
func (s *budgetService) State() ProviderState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset drops all budgets; in-flight results are discarded
func (s *budgetService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.items = nil
	s.state = ProviderState{}
}

func (s *budgetService) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// SpentByCategory sums expense amounts per category
func SpentByCategory(txns []Transaction) map[string]decimal.Decimal {
	spent := make(map[string]decimal.Decimal)
	for _, t := range txns {
		if t.Type != KindExpense {
			continue
		}
		spent[t.Category] = spent[t.Category].Add(t.Amount)
	}
	return spent
}
