package pennywise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// transactionService implements the TransactionService interface
type transactionService struct {
	client *Client

	mu         sync.RWMutex
	items      []Transaction
	state      ProviderState
	generation uint64
	version    uint64

	obsMu     sync.Mutex
	observers map[int]TransactionObserver
	nextObs   int

	loads singleflight.Group
}

// newTransactionService creates a new transaction service
func newTransactionService(client *Client) *transactionService {
	return &transactionService{
		client:    client,
		observers: make(map[int]TransactionObserver),
	}
}

// Load replaces the list with the backend's, keeping the old one on failure
func (s *transactionService) Load(ctx context.Context) error {
	_, err, _ := s.loads.Do("load", func() (interface{}, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *transactionService) load(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	gen := s.generation
	s.mu.Unlock()

	var rows []*Transaction
	err := boundedLoad(ctx, s.client, "transactions.list", func(ctx context.Context) error {
		var err error
		rows, err = s.client.adapter.ListTransactions(ctx)
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
		s.client.notifier.Failure("Failed to load transactions", err)
		return pkgerrors.Wrap(err, "failed to load transactions")
	}

	s.items = derefAll(rows)
	s.state = ProviderState{Loaded: true, LoadedAt: time.Now()}
	version, snapshot := s.publishLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
	return nil
}

// Add creates a transaction remotely and prepends the stored record
func (s *transactionService) Add(ctx context.Context, params *CreateTransactionParams) (*Transaction, error) {
	if err := params.Validate(); err != nil {
		s.client.notifier.Failure("Failed to add transaction", err)
		return nil, err
	}

	release, err := s.client.guard.acquire("transaction", "create", params.fingerprint())
	if err != nil {
		s.client.notifier.Failure("Failed to add transaction", err)
		return nil, err
	}
	defer release()

	gen := s.currentGeneration()

	var created *Transaction
	err = s.client.execute(ctx, "transactions.create", func(ctx context.Context) error {
		var err error
		created, err = s.client.adapter.CreateTransaction(ctx, params)
		return err
	})
	if err != nil {
		s.client.notifier.Failure("Failed to add transaction", err)
		return nil, pkgerrors.Wrap(err, "failed to add transaction")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	s.items = append([]Transaction{*created}, s.items...)
	version, snapshot := s.publishLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
	s.client.notifier.Success("Transaction added successfully")

	out := *created
	return &out, nil
}

// Update sends the changed fields and replaces the local record with the stored one
func (s *transactionService) Update(ctx context.Context, id string, params *UpdateTransactionParams) (*Transaction, error) {
	if err := params.Validate(); err != nil {
		s.client.notifier.Failure("Failed to update transaction", err)
		return nil, err
	}

	current, err := s.Get(id)
	if err != nil {
		s.client.notifier.Failure("Failed to update transaction", err)
		return nil, err
	}
	if params.IsEmpty() {
		return current, nil
	}

	release, err := s.client.guard.acquire("transaction", "update", id)
	if err != nil {
		s.client.notifier.Failure("Failed to update transaction", err)
		return nil, err
	}
	defer release()

	gen := s.currentGeneration()

	var updated *Transaction
	err = s.client.execute(ctx, "transactions.update", func(ctx context.Context) error {
		var err error
		updated, err = s.client.adapter.UpdateTransaction(ctx, id, params)
		return err
	})
	if err != nil {
		s.client.notifier.Failure("Failed to update transaction", err)
		return nil, pkgerrors.Wrap(err, "failed to update transaction")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i] = *updated
			break
		}
	}
	version, snapshot := s.publishLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
	s.client.notifier.Success("Transaction updated successfully")

	out := *updated
	return &out, nil
}

// Remove deletes remotely, then locally
func (s *transactionService) Remove(ctx context.Context, id string) error {
	if _, err := s.Get(id); err != nil {
		s.client.notifier.Failure("Failed to delete transaction", err)
		return err
	}

	release, err := s.client.guard.acquire("transaction", "delete", id)
	if err != nil {
		s.client.notifier.Failure("Failed to delete transaction", err)
		return err
	}
	defer release()

	gen := s.currentGeneration()

	err = s.client.execute(ctx, "transactions.delete", func(ctx context.Context) error {
		return s.client.adapter.DeleteTransaction(ctx, id)
	})
	if err != nil {
		s.client.notifier.Failure("Failed to delete transaction", err)
		return pkgerrors.Wrap(err, "failed to delete transaction")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	kept := s.items[:0:0]
	for _, t := range s.items {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.items = kept
	version, snapshot := s.publishLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
	s.client.notifier.Success("Transaction deleted successfully")
	return nil
}

// List returns a copy of the current list
func (s *transactionService) List() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Transaction(nil), s.items...)
}

// Get returns one transaction by id
func (s *transactionService) Get(id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.items {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, WrapError(ErrNotFound, "NOT_FOUND", fmt.Sprintf("transaction %s not found", id))
}

// ByType returns transactions of the given kind
func (s *transactionService) ByType(kind Kind) []Transaction {
	return s.Filter(TransactionFilter{Type: &kind})
}

// ByCategory returns transactions in the given category
func (s *transactionService) ByCategory(category string) []Transaction {
	return s.Filter(TransactionFilter{Category: category})
}

// ByDateRange returns transactions dated within [start, end]
func (s *transactionService) ByDateRange(start, end Date) []Transaction {
	return s.Filter(TransactionFilter{StartDate: start, EndDate: end})
}

// Filter returns transactions matching every set criterion
func (s *transactionService) Filter(filter TransactionFilter) []Transaction {
	return FilterTransactions(s.List(), filter)
}

// TotalByType sums amounts of the given kind
func (s *transactionService) TotalByType(kind Kind) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SumByType(s.items, kind)
}

// Subscribe registers an observer and immediately delivers the current snapshot
func (s *transactionService) Subscribe(observer TransactionObserver) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = observer
	s.obsMu.Unlock()

	s.mu.RLock()
	version, snapshot := s.version, append([]Transaction(nil), s.items...)
	s.mu.RUnlock()
	observer.TransactionsChanged(version, snapshot)

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// State returns the load status
func (s *transactionService) State() ProviderState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset drops all state; in-flight results are discarded
func (s *transactionService) Reset() {
	s.mu.Lock()
	s.generation++
	s.items = nil
	s.state = ProviderState{}
	version, snapshot := s.publishLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
}

// snapshot returns the current version and a copy of the list
func (s *transactionService) snapshot() (uint64, []Transaction) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, append([]Transaction(nil), s.items...)
}

func (s *transactionService) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// publishLocked bumps the version; callers hold mu
func (s *transactionService) publishLocked() (uint64, []Transaction) {
	s.version++
	return s.version, append([]Transaction(nil), s.items...)
}

func (s *transactionService) notify(version uint64, snapshot []Transaction) {
	s.obsMu.Lock()
	observers := make([]TransactionObserver, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.obsMu.Unlock()

	for _, o := range observers {
		o.TransactionsChanged(version, append([]Transaction(nil), snapshot...))
	}
}

// FilterTransactions returns the members of txns matching filter, in order
func FilterTransactions(txns []Transaction, filter TransactionFilter) []Transaction {
	out := make([]Transaction, 0, len(txns))
	for i := range txns {
		if filter.Match(&txns[i]) {
			out = append(out, txns[i])
		}
	}
	return out
}

// SumByType sums the amounts of txns with the given kind
func SumByType(txns []Transaction, kind Kind) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		if t.Type == kind {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func (p *CreateTransactionParams) fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", p.Amount.String(), p.Category, p.Description, p.Date, p.Type)
}

// boundedLoad runs a list call under the client's load timeout. A result
// that arrives after the deadline is reported as a timeout.
func boundedLoad(ctx context.Context, c *Client, operation string, fn func(ctx context.Context) error) error {
	loadCtx, cancel := context.WithTimeout(ctx, c.options.LoadTimeout)
	defer cancel()

	err := c.execute(loadCtx, operation, fn)
	if errors.Is(loadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.Wrapf(ErrTimeout, "%s exceeded %s", operation, c.options.LoadTimeout)
		}
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(ErrTimeout, err.Error())
	}
	return err
}

func derefAll[T any](rows []*T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
