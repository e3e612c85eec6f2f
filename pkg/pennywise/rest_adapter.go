package pennywise

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pennywise-app/pennywise-go/internal/transport"
	"github.com/pkg/errors"
)

const (
	tableUsers               = "users"
	tableTransactions        = "transactions"
	tableBudgets             = "budgets"
	tableSavings             = "savings"
	tableSavingsTransactions = "savings_transactions"

	rpcReconcileSavings = "update_all_savings_statuses"

	// foreign key violation; the user profile row is missing
	codeForeignKey = "23503"
	// unique violation; a concurrent create won
	codeUniqueViolation = "23505"
)

// RESTAdapter implements Adapter over the hosted PostgREST backend
type RESTAdapter struct {
	transport *transport.RESTTransport
	logger    Logger

	// ensureSession renews or resolves the session before user-scoped calls
	ensureSession func(ctx context.Context) error
}

var _ Adapter = (*RESTAdapter)(nil)

// NewRESTAdapter creates an adapter that scopes every call to the transport's session user
func NewRESTAdapter(t *transport.RESTTransport, logger Logger) *RESTAdapter {
	return &RESTAdapter{transport: t, logger: logger}
}

func (a *RESTAdapter) userID(ctx context.Context) (string, error) {
	if a.ensureSession != nil {
		if err := a.ensureSession(ctx); err != nil {
			return "", err
		}
	}
	session := a.transport.Session()
	if session == nil || session.UserID == "" {
		return "", ErrNotAuthenticated
	}
	return session.UserID, nil
}

func ownedBy(userID string) url.Values {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	return q
}

func byID(id, userID string) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("user_id", "eq."+userID)
	return q
}

func hasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// list fetches every row of table owned by the user
func (a *RESTAdapter) list(ctx context.Context, table, order string, result interface{}) error {
	user, err := a.userID(ctx)
	if err != nil {
		return err
	}
	q := ownedBy(user)
	q.Set("order", order)
	return a.transport.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/" + table,
		Query:  q,
	}, result)
}

// insert creates one row. A missing profile row is created once and the insert retried.
func (a *RESTAdapter) insert(ctx context.Context, table string, body interface{}, result interface{}) error {
	req := &transport.Request{
		Method: http.MethodPost,
		Path:   "/" + table,
		Query:  url.Values{"select": {"*"}},
		Body:   body,
	}
	err := a.transport.Do(ctx, req, result)
	if err != nil && hasCode(err, codeForeignKey) && table != tableSavingsTransactions {
		if a.logger != nil {
			a.logger.Warn("Profile row missing, creating it before retrying", "table", table)
		}
		if _, perr := a.EnsureUserProfile(ctx); perr != nil {
			return errors.Wrap(perr, "failed to ensure user profile")
		}
		err = a.transport.Do(ctx, req, result)
	}
	return err
}

// patch updates one row of the user; result is empty when nothing matched
func (a *RESTAdapter) patch(ctx context.Context, table, id string, body interface{}, result interface{}) error {
	user, err := a.userID(ctx)
	if err != nil {
		return err
	}
	q := byID(id, user)
	q.Set("select", "*")
	return a.transport.Do(ctx, &transport.Request{
		Method: http.MethodPatch,
		Path:   "/" + table,
		Query:  q,
		Body:   body,
	}, result)
}

func (a *RESTAdapter) remove(ctx context.Context, table string, q url.Values) error {
	return a.transport.Do(ctx, &transport.Request{
		Method: http.MethodDelete,
		Path:   "/" + table,
		Query:  q,
	}, nil)
}

// EnsureUserProfile gets the profile row, creating it with defaults when missing
func (a *RESTAdapter) EnsureUserProfile(ctx context.Context) (*UserProfile, error) {
	user, err := a.userID(ctx)
	if err != nil {
		return nil, err
	}

	get := func() (*UserProfile, error) {
		var rows []*UserProfile
		q := url.Values{"select": {"*"}, "id": {"eq." + user}}
		if err := a.transport.Do(ctx, &transport.Request{
			Method: http.MethodGet,
			Path:   "/" + tableUsers,
			Query:  q,
		}, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}

	profile, err := get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user profile")
	}
	if profile != nil {
		return profile, nil
	}

	email := ""
	if s := a.transport.Session(); s != nil {
		email = s.Email
	}
	body := map[string]interface{}{
		"id":       user,
		"email":    email,
		"currency": DefaultCurrency,
		"theme":    DefaultTheme,
	}
	var created []*UserProfile
	err = a.transport.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/" + tableUsers,
		Query:  url.Values{"select": {"*"}},
		Body:   body,
	}, &created)
	if hasCode(err, codeUniqueViolation) {
		if profile, err = get(); err == nil && profile != nil {
			return profile, nil
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user profile")
	}
	if len(created) == 0 {
		return nil, errors.New("failed to create user profile: empty response")
	}
	return created[0], nil
}

// UpdateUserProfile changes profile preferences
func (a *RESTAdapter) UpdateUserProfile(ctx context.Context, params *UpdateProfileParams) (*UserProfile, error) {
	user, err := a.userID(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*UserProfile
	if err := a.transport.Do(ctx, &transport.Request{
		Method: http.MethodPatch,
		Path:   "/" + tableUsers,
		Query:  url.Values{"select": {"*"}, "id": {"eq." + user}},
		Body:   params,
	}, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to update user profile")
	}
	if len(rows) == 0 {
		return nil, notFound("profile", user)
	}
	return rows[0], nil
}

// ListTransactions returns the user's transactions, newest date first
func (a *RESTAdapter) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	var rows []*Transaction
	if err := a.list(ctx, tableTransactions, "date.desc,created_at.desc", &rows); err != nil {
		return nil, errors.Wrap(err, "failed to list transactions")
	}
	return rows, nil
}

// CreateTransaction inserts a transaction
func (a *RESTAdapter) CreateTransaction(ctx context.Context, params *CreateTransactionParams) (*Transaction, error) {
	user, err := a.userID(ctx)
	if err != nil {
		return nil, err
	}
	body := struct {
		UserID string `json:"user_id"`
		*CreateTransactionParams
	}{user, params}

	var rows []*Transaction
	if err := a.insert(ctx, tableTransactions, body, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to create transaction")
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to create transaction: empty response")
	}
	return rows[0], nil
}

// UpdateTransaction patches the changed fields
func (a *RESTAdapter) UpdateTransaction(ctx context.Context, id string, params *UpdateTransactionParams) (*Transaction, error) {
	var rows []*Transaction
	if err := a.patch(ctx, tableTransactions, id, params, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to update transaction")
	}
	if len(rows) == 0 {
		return nil, notFound("transaction", id)
	}
	return rows[0], nil
}

// DeleteTransaction deletes a transaction
func (a *RESTAdapter) DeleteTransaction(ctx context.Context, id string) error {
	user, err := a.userID(ctx)
	if err != nil {
		return err
	}
	if err := a.remove(ctx, tableTransactions, byID(id, user)); err != nil {
		return errors.Wrap(err, "failed to delete transaction")
	}
	return nil
}

// ListBudgets returns the user's budgets, newest first
func (a *RESTAdapter) ListBudgets(ctx context.Context) ([]*Budget, error) {
	var rows []*Budget
	if err := a.list(ctx, tableBudgets, "created_at.desc", &rows); err != nil {
		return nil, errors.Wrap(err, "failed to list budgets")
	}
	return rows, nil
}

// CreateBudget inserts a budget
func (a *RESTAdapter) CreateBudget(ctx context.Context, params *CreateBudgetParams) (*Budget, error) {
	user, err := a.userID(ctx)
	if err != nil {
		return nil, err
	}
	body := struct {
		UserID string `json:"user_id"`
		*CreateBudgetParams
	}{user, params}

	var rows []*Budget
	if err := a.insert(ctx, tableBudgets, body, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to create budget")
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to create budget: empty response")
	}
	return rows[0], nil
}

// UpdateBudget patches the changed fields
func (a *RESTAdapter) UpdateBudget(ctx context.Context, id string, params *UpdateBudgetParams) (*Budget, error) {
	var rows []*Budget
	if err := a.patch(ctx, tableBudgets, id, params, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to update budget")
	}
	if len(rows) == 0 {
		return nil, notFound("budget", id)
	}
	return rows[0], nil
}

// DeleteBudget deletes a budget
func (a *RESTAdapter) DeleteBudget(ctx context.Context, id string) error {
	user, err := a.userID(ctx)
	if err != nil {
		return err
	}
	if err := a.remove(ctx, tableBudgets, byID(id, user)); err != nil {
		return errors.Wrap(err, "failed to delete budget")
	}
	return nil
}

// ListSavings returns the user's goals, newest first
func (a *RESTAdapter) ListSavings(ctx context.Context) ([]*SavingsGoal, error) {
	var rows []*SavingsGoal
	if err := a.list(ctx, tableSavings, "created_at.desc", &rows); err != nil {
		return nil, errors.Wrap(err, "failed to list savings goals")
	}
	return rows, nil
}

// CreateSavings inserts a goal; the server starts it at a zero balance
func (a *RESTAdapter) CreateSavings(ctx context.Context, params *CreateSavingsParams) (*SavingsGoal, error) {
	user, err := a.userID(ctx)
	if err != nil {
		return nil, err
	}
	status := params.Status
	if status == "" {
		status = GoalActive
	}
	body := struct {
		UserID string     `json:"user_id"`
		Status GoalStatus `json:"status"`
		*CreateSavingsParams
	}{user, status, params}

	var rows []*SavingsGoal
	if err := a.insert(ctx, tableSavings, body, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to create savings goal")
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to create savings goal: empty response")
	}
	return rows[0], nil
}

// UpdateSavings patches the changed fields
func (a *RESTAdapter) UpdateSavings(ctx context.Context, id string, params *UpdateSavingsParams) (*SavingsGoal, error) {
	var rows []*SavingsGoal
	if err := a.patch(ctx, tableSavings, id, params, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to update savings goal")
	}
	if len(rows) == 0 {
		return nil, notFound("savings goal", id)
	}
	return rows[0], nil
}

// DeleteSavings deletes a goal
func (a *RESTAdapter) DeleteSavings(ctx context.Context, id string) error {
	user, err := a.userID(ctx)
	if err != nil {
		return err
	}
	if err := a.remove(ctx, tableSavings, byID(id, user)); err != nil {
		return errors.Wrap(err, "failed to delete savings goal")
	}
	return nil
}

// ListSavingsTransactions returns the user's savings transactions, newest date first
func (a *RESTAdapter) ListSavingsTransactions(ctx context.Context) ([]*SavingsTransaction, error) {
	var rows []*SavingsTransaction
	if err := a.list(ctx, tableSavingsTransactions, "date.desc,created_at.desc", &rows); err != nil {
		return nil, errors.Wrap(err, "failed to list savings transactions")
	}
	return rows, nil
}

// CreateSavingsTransaction inserts a deposit or withdrawal
func (a *RESTAdapter) CreateSavingsTransaction(ctx context.Context, params *CreateSavingsTransactionParams) (*SavingsTransaction, error) {
	user, err := a.userID(ctx)
	if err != nil {
		return nil, err
	}
	body := struct {
		UserID string `json:"user_id"`
		*CreateSavingsTransactionParams
	}{user, params}

	var rows []*SavingsTransaction
	if err := a.insert(ctx, tableSavingsTransactions, body, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to create savings transaction")
	}
	if len(rows) == 0 {
		return nil, errors.New("failed to create savings transaction: empty response")
	}
	return rows[0], nil
}

// DeleteSavingsTransactions deletes every transaction of one goal
func (a *RESTAdapter) DeleteSavingsTransactions(ctx context.Context, savingsID string) error {
	user, err := a.userID(ctx)
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("savings_id", "eq."+savingsID)
	q.Set("user_id", "eq."+user)
	if err := a.remove(ctx, tableSavingsTransactions, q); err != nil {
		return errors.Wrap(err, "failed to delete savings transactions")
	}
	return nil
}

// ReconcileSavingsStatuses runs the server-side status procedure
func (a *RESTAdapter) ReconcileSavingsStatuses(ctx context.Context) error {
	user, err := a.userID(ctx)
	if err != nil {
		return err
	}
	body := map[string]string{"p_user_id": user}
	if err := a.transport.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/rpc/" + rpcReconcileSavings,
		Body:   body,
		Prefer: "return=minimal",
	}, nil); err != nil {
		return errors.Wrap(err, "failed to reconcile savings statuses")
	}
	return nil
}

// DeleteUserData deletes every row of the user, children first.
// Savings tables that were never provisioned are skipped.
func (a *RESTAdapter) DeleteUserData(ctx context.Context) error {
	user, err := a.userID(ctx)
	if err != nil {
		return err
	}
	for _, table := range []string{tableSavingsTransactions, tableSavings, tableBudgets, tableTransactions} {
		err := a.remove(ctx, table, url.Values{"user_id": {"eq." + user}})
		if err != nil && !IsNotProvisioned(err) {
			return errors.Wrap(err, fmt.Sprintf("failed to delete %s", table))
		}
	}
	if err := a.remove(ctx, tableUsers, url.Values{"id": {"eq." + user}}); err != nil {
		return errors.Wrap(err, "failed to delete user profile")
	}
	return nil
}
