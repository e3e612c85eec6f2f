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

// savingsService implements the SavingsService interface. The backend owns
// CurrentAmount; the service refetches goals after every savings transaction.
type savingsService struct {
	client *Client

	mu          sync.RWMutex
	goals       []SavingsGoal
	txns        []SavingsTransaction
	state       ProviderState
	tableExists bool
	generation  uint64

	loads singleflight.Group
}

// newSavingsService creates a new savings service
func newSavingsService(client *Client) *savingsService {
	return &savingsService{
		client:      client,
		tableExists: true,
	}
}

// Load fetches goals, then savings transactions, then reconciles statuses.
// It is the only operation that retries after storage was found missing.
func (s *savingsService) Load(ctx context.Context) error {
	_, err, _ := s.loads.Do("load", func() (interface{}, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *savingsService) load(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	gen := s.generation
	s.mu.Unlock()

	var (
		goals []*SavingsGoal
		txns  []*SavingsTransaction
	)
	err := boundedLoad(ctx, s.client, "savings.list", func(ctx context.Context) error {
		var err error
		if goals, err = s.client.adapter.ListSavings(ctx); err != nil {
			return err
		}
		txns, err = s.client.adapter.ListSavingsTransactions(ctx)
		return err
	})

	if err == nil {
		if refreshed, rerr := s.reconcile(ctx); rerr != nil {
			s.client.logWarn("Failed to reconcile savings statuses", "error", rerr)
		} else {
			goals = refreshed
		}
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.state.Loading = false

	if err != nil {
		s.state.Err = err
		if IsNotProvisioned(err) {
			s.tableExists = false
			s.goals, s.txns = nil, nil
		}
		s.mu.Unlock()

		if IsNotProvisioned(err) {
			s.client.notifier.Failure("Savings feature is not set up. Please run the database migration.", err)
		} else {
			s.client.notifier.Failure("Failed to load savings", err)
		}
		return pkgerrors.Wrap(err, "failed to load savings")
	}

	s.tableExists = true
	s.goals = derefAll(goals)
	s.txns = derefAll(txns)
	s.state = ProviderState{Loaded: true, LoadedAt: time.Now()}
	s.mu.Unlock()
	return nil
}

// reconcile runs the bulk status update and returns the refetched goals
func (s *savingsService) reconcile(ctx context.Context) ([]*SavingsGoal, error) {
	var goals []*SavingsGoal
	err := boundedLoad(ctx, s.client, "savings.reconcile", func(ctx context.Context) error {
		if err := s.client.adapter.ReconcileSavingsStatuses(ctx); err != nil {
			return err
		}
		var err error
		goals, err = s.client.adapter.ListSavings(ctx)
		return err
	})
	return goals, err
}

// Reconcile applies the status rule remotely and refetches goals
func (s *savingsService) Reconcile(ctx context.Context) error {
	if err := s.requireProvisioned(); err != nil {
		return err
	}

	gen := s.currentGeneration()
	goals, err := s.reconcile(ctx)
	if err != nil {
		s.markIfMissing(err)
		s.client.notifier.Failure("Failed to update savings statuses", err)
		return pkgerrors.Wrap(err, "failed to reconcile savings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return ErrNotAuthenticated
	}
	s.goals = derefAll(goals)
	return nil
}

// Add creates a goal remotely and prepends the stored record
func (s *savingsService) Add(ctx context.Context, params *CreateSavingsParams) (*SavingsGoal, error) {
	if err := s.requireProvisioned(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		s.client.notifier.Failure("Failed to add savings goal", err)
		return nil, err
	}

	create := *params
	if create.Status == "" {
		create.Status = GoalActive
	}

	release, err := s.client.guard.acquire("savings", "create", create.Title+"|"+create.TargetAmount.String())
	if err != nil {
		s.client.notifier.Failure("Failed to add savings goal", err)
		return nil, err
	}
	defer release()

	gen := s.currentGeneration()

	var created *SavingsGoal
	err = s.client.execute(ctx, "savings.create", func(ctx context.Context) error {
		var err error
		created, err = s.client.adapter.CreateSavings(ctx, &create)
		return err
	})
	if err != nil {
		s.markIfMissing(err)
		s.client.notifier.Failure("Failed to add savings goal", err)
		return nil, pkgerrors.Wrap(err, "failed to add savings goal")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	s.goals = append([]SavingsGoal{*created}, s.goals...)
	s.mu.Unlock()

	s.client.notifier.Success("Savings goal added successfully")
	out := *created
	return &out, nil
}

// Update edits a goal; status may be overridden manually at any time
func (s *savingsService) Update(ctx context.Context, id string, params *UpdateSavingsParams) (*SavingsGoal, error) {
	if err := s.requireProvisioned(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		s.client.notifier.Failure("Failed to update savings goal", err)
		return nil, err
	}
	if _, err := s.Get(id); err != nil {
		s.client.notifier.Failure("Failed to update savings goal", err)
		return nil, err
	}

	release, err := s.client.guard.acquire("savings", "update", id)
	if err != nil {
		s.client.notifier.Failure("Failed to update savings goal", err)
		return nil, err
	}
	defer release()

	gen := s.currentGeneration()

	var updated *SavingsGoal
	err = s.client.execute(ctx, "savings.update", func(ctx context.Context) error {
		var err error
		updated, err = s.client.adapter.UpdateSavings(ctx, id, params)
		return err
	})
	if err != nil {
		s.markIfMissing(err)
		s.client.notifier.Failure("Failed to update savings goal", err)
		return nil, pkgerrors.Wrap(err, "failed to update savings goal")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals[i] = *updated
			break
		}
	}
	s.mu.Unlock()

	s.client.notifier.Success("Savings goal updated successfully")
	out := *updated
	return &out, nil
}

// Delete removes a goal and all of its savings transactions
func (s *savingsService) Delete(ctx context.Context, id string) error {
	if err := s.requireProvisioned(); err != nil {
		return err
	}
	if _, err := s.Get(id); err != nil {
		s.client.notifier.Failure("Failed to delete savings goal", err)
		return err
	}

	release, err := s.client.guard.acquire("savings", "delete", id)
	if err != nil {
		s.client.notifier.Failure("Failed to delete savings goal", err)
		return err
	}
	defer release()

	gen := s.currentGeneration()

	err = s.client.execute(ctx, "savings.delete_transactions", func(ctx context.Context) error {
		return s.client.adapter.DeleteSavingsTransactions(ctx, id)
	})
	if err != nil {
		s.markIfMissing(err)
		s.client.notifier.Failure("Failed to delete savings goal", err)
		return pkgerrors.Wrap(err, "failed to delete savings transactions")
	}

	// the transactions are gone remotely from here on
	s.mu.Lock()
	if gen == s.generation {
		s.txns = withoutGoal(s.txns, id)
	}
	s.mu.Unlock()

	err = s.client.execute(ctx, "savings.delete", func(ctx context.Context) error {
		return s.client.adapter.DeleteSavings(ctx, id)
	})
	if err != nil {
		s.markIfMissing(err)
		s.client.notifier.Failure("Failed to delete savings goal", err)
		return pkgerrors.Wrap(err, "failed to delete savings goal")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	kept := s.goals[:0:0]
	for _, g := range s.goals {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	s.goals = kept
	s.mu.Unlock()

	s.client.notifier.Success("Savings goal deleted successfully")
	return nil
}

// AddTransaction records a deposit or withdrawal and refetches goals
func (s *savingsService) AddTransaction(ctx context.Context, params *CreateSavingsTransactionParams) (*SavingsTransaction, error) {
	if err := s.requireProvisioned(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		s.client.notifier.Failure("Failed to add transaction", err)
		return nil, err
	}
	if _, err := s.Get(params.SavingsID); err != nil {
		s.client.notifier.Failure("Failed to add transaction", err)
		return nil, err
	}

	release, err := s.client.guard.acquire("savings_transaction", "create",
		fmt.Sprintf("%s|%s|%s|%s", params.SavingsID, params.Type, params.Amount, params.Date))
	if err != nil {
		s.client.notifier.Failure("Failed to add transaction", err)
		return nil, err
	}
	defer release()

	gen := s.currentGeneration()

	var created *SavingsTransaction
	err = s.client.execute(ctx, "savings.create_transaction", func(ctx context.Context) error {
		var err error
		created, err = s.client.adapter.CreateSavingsTransaction(ctx, params)
		return err
	})
	if err != nil {
		s.markIfMissing(err)
		s.client.notifier.Failure("Failed to add transaction", err)
		return nil, pkgerrors.Wrap(err, "failed to add savings transaction")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	s.txns = append([]SavingsTransaction{*created}, s.txns...)
	s.mu.Unlock()

	// CurrentAmount is recomputed by the backend; refetch before reporting success
	goals, err := s.reconcile(ctx)
	if err != nil {
		s.client.notifier.Failure("Transaction saved but goals could not be refreshed", err)
		out := *created
		return &out, pkgerrors.Wrap(err, "failed to refresh savings goals")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	s.goals = derefAll(goals)
	s.mu.Unlock()

	if params.Type == SavingsDeposit {
		s.client.notifier.Success("Deposit added successfully")
	} else {
		s.client.notifier.Success("Withdrawal added successfully")
	}
	out := *created
	return &out, nil
}

// List returns a copy of the goals
func (s *savingsService) List() []SavingsGoal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SavingsGoal(nil), s.goals...)
}

// Get returns one goal by id
func (s *savingsService) Get(id string) (*SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.goals {
		if g.ID == id {
			out := g
			return &out, nil
		}
	}
	return nil, WrapError(ErrNotFound, "NOT_FOUND", fmt.Sprintf("savings goal %s not found", id))
}

// Transactions returns a copy of all savings transactions
func (s *savingsService) Transactions() []SavingsTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SavingsTransaction(nil), s.txns...)
}

// TransactionsFor returns the savings transactions of one goal
func (s *savingsService) TransactionsFor(goalID string) []SavingsTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SavingsTransaction
	for _, t := range s.txns {
		if t.SavingsID == goalID {
			out = append(out, t)
		}
	}
	return out
}

// TotalSavings sums CurrentAmount over all goals
func (s *savingsService) TotalSavings() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, g := range s.goals {
		total = total.Add(g.CurrentAmount)
	}
	return total
}

// ActiveGoals returns goals with status Active
func (s *savingsService) ActiveGoals() []SavingsGoal {
	return s.byStatus(GoalActive)
}

// CompletedGoals returns goals with status Completed
func (s *savingsService) CompletedGoals() []SavingsGoal {
	return s.byStatus(GoalCompleted)
}

// TableExists reports false once the backend said savings storage is missing
func (s *savingsService) TableExists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tableExists
}

// State returns the load status
func (s *savingsService) State() ProviderState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset drops all state; provisioning is detected again on the next load
func (s *savingsService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.goals, s.txns = nil, nil
	s.state = ProviderState{}
	s.tableExists = true
}

func (s *savingsService) byStatus(status GoalStatus) []SavingsGoal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SavingsGoal
	for _, g := range s.goals {
		if g.Status == status {
			out = append(out, g)
		}
	}
	return out
}

func (s *savingsService) requireProvisioned() error {
	if s.TableExists() {
		return nil
	}
	return WrapError(ErrNotProvisioned, "NOT_PROVISIONED", "savings storage is not set up; run the database migration first")
}

// markIfMissing enters the sticky not-provisioned mode
func (s *savingsService) markIfMissing(err error) {
	if !IsNotProvisioned(err) {
		return
	}
	s.mu.Lock()
	s.tableExists = false
	s.mu.Unlock()
}

func (s *savingsService) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func withoutGoal(txns []SavingsTransaction, goalID string) []SavingsTransaction {
	kept := txns[:0:0]
	for _, t := range txns {
		if t.SavingsID != goalID {
			kept = append(kept, t)
		}
	}
	return kept
}
