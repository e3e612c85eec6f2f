// Package sqlitestore is a single-user pennywise.Adapter backed by a local
// SQLite file. Amounts are stored as decimal strings.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically in time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements pennywise.Adapter for one configured local user
type Store struct {
	db     *sql.DB
	userID string
	logger pennywise.Logger
	now    func() time.Time
}

var _ pennywise.Adapter = (*Store)(nil)

// Open creates the database file if needed and applies migrations
func Open(dbPath, userID string, logger pennywise.Logger) (*Store, error) {
	if userID == "" {
		return nil, errors.New("sqlitestore: user id is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logger != nil {
		logger.Debug("SQLite store opened", "path", dbPath, "user", userID)
	}
	return &Store{db: db, userID: userID, logger: logger, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the handle for maintenance commands
func (s *Store) DB() *sql.DB {
	return s.db
}

// mapError translates driver errors into the pennywise taxonomy
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"):
		return pennywise.WrapError(pennywise.ErrNotProvisioned, "NO_SUCH_TABLE", msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &pennywise.Error{Code: "23503", Message: msg, StatusCode: 409}
	case strings.Contains(msg, "CHECK constraint failed"):
		return &pennywise.Error{Code: "23514", Message: msg, StatusCode: 400}
	}
	return errors.Wrap(err, what)
}

func isForeignKey(err error) bool {
	var apiErr *pennywise.Error
	return errors.As(err, &apiErr) && apiErr.Code == "23503"
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	// RFC3339Nano also reads rows written before the fixed-width layout
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(v string) pennywise.Date {
	d, _ := pennywise.ParseDate(v)
	return d
}

// insertWithProfile runs an insert, creating the profile row once if it is missing
func (s *Store) insertWithProfile(ctx context.Context, what, query string, args ...interface{}) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	err = mapError(err, what)
	if err != nil && isForeignKey(err) {
		if _, perr := s.EnsureUserProfile(ctx); perr != nil {
			return perr
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		err = mapError(err, what)
	}
	return err
}

// EnsureUserProfile gets or creates the local user's profile
func (s *Store) EnsureUserProfile(ctx context.Context) (*pennywise.UserProfile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, email, currency, theme, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.userID, "", pennywise.DefaultCurrency, pennywise.DefaultTheme, s.stamp())
	if err != nil {
		return nil, mapError(err, "create user profile")
	}
	return s.profile(ctx)
}

func (s *Store) profile(ctx context.Context) (*pennywise.UserProfile, error) {
	var (
		p       pennywise.UserProfile
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, currency, theme, created_at FROM users WHERE id = ?`, s.userID).
		Scan(&p.ID, &p.Email, &p.Name, &p.Currency, &p.Theme, &created)
	if err == sql.ErrNoRows {
		return nil, pennywise.WrapError(pennywise.ErrNotFound, "NOT_FOUND", "profile not found")
	}
	if err != nil {
		return nil, mapError(err, "get user profile")
	}
	p.CreatedAt = parseTime(created)
	return &p, nil
}

// UpdateUserProfile changes profile preferences
func (s *Store) UpdateUserProfile(ctx context.Context, params *pennywise.UpdateProfileParams) (*pennywise.UserProfile, error) {
	current, err := s.profile(ctx)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		current.Name = *params.Name
	}
	if params.Currency != nil {
		current.Currency = *params.Currency
	}
	if params.Theme != nil {
		current.Theme = *params.Theme
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET name = ?, currency = ?, theme = ? WHERE id = ?`,
		current.Name, current.Currency, current.Theme, s.userID)
	if err != nil {
		return nil, mapError(err, "update user profile")
	}
	return current, nil
}

const transactionColumns = `id, user_id, amount, category, description, date, type, is_recurring, created_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*pennywise.Transaction, error) {
	var (
		t                           pennywise.Transaction
		amount, date, kind, created string
	)
	if err := row.Scan(&t.ID, &t.UserID, &amount, &t.Category, &t.Description, &date, &kind, &t.IsRecurring, &created); err != nil {
		return nil, err
	}
	t.Amount = parseDecimal(amount)
	t.Date = parseDate(date)
	t.Type = pennywise.Kind(kind)
	t.CreatedAt = parseTime(created)
	return &t, nil
}

func (s *Store) getTransaction(ctx context.Context, id string) (*pennywise.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, s.userID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, pennywise.WrapError(pennywise.ErrNotFound, "NOT_FOUND", fmt.Sprintf("transaction %s not found", id))
	}
	if err != nil {
		return nil, mapError(err, "get transaction")
	}
	return t, nil
}

// ListTransactions returns the user's transactions, newest date first
func (s *Store) ListTransactions(ctx context.Context) ([]*pennywise.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`, s.userID)
	if err != nil {
		return nil, mapError(err, "list transactions")
	}
	defer rows.Close()

	var out []*pennywise.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError(err, "scan transaction")
		}
		out = append(out, t)
	}
	return out, mapError(rows.Err(), "list transactions")
}

// CreateTransaction inserts a transaction
func (s *Store) CreateTransaction(ctx context.Context, params *pennywise.CreateTransactionParams) (*pennywise.Transaction, error) {
	id := uuid.NewString()
	err := s.insertWithProfile(ctx, "create transaction",
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.userID, params.Amount.String(), params.Category, params.Description,
		params.Date.String(), string(params.Type), params.IsRecurring, s.stamp())
	if err != nil {
		return nil, err
	}
	return s.getTransaction(ctx, id)
}

// UpdateTransaction applies the changed fields
func (s *Store) UpdateTransaction(ctx context.Context, id string, params *pennywise.UpdateTransactionParams) (*pennywise.Transaction, error) {
	t, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	params.Apply(t)
	_, err = s.db.ExecContext(ctx,
		`UPDATE transactions SET amount = ?, category = ?, description = ?, date = ?, type = ?, is_recurring = ?
		 WHERE id = ? AND user_id = ?`,
		t.Amount.String(), t.Category, t.Description, t.Date.String(), string(t.Type), t.IsRecurring, id, s.userID)
	if err != nil {
		return nil, mapError(err, "update transaction")
	}
	return t, nil
}

// DeleteTransaction removes a transaction
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, s.userID)
	return mapError(err, "delete transaction")
}

const budgetColumns = `id, user_id, category, amount, period, created_at`

func scanBudget(row interface{ Scan(...interface{}) error }) (*pennywise.Budget, error) {
	var (
		b                       pennywise.Budget
		amount, period, created string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Category, &amount, &period, &created); err != nil {
		return nil, err
	}
	b.Amount = parseDecimal(amount)
	b.Period = pennywise.Period(period)
	b.CreatedAt = parseTime(created)
	return &b, nil
}

func (s *Store) getBudget(ctx context.Context, id string) (*pennywise.Budget, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, s.userID)
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, pennywise.WrapError(pennywise.ErrNotFound, "NOT_FOUND", fmt.Sprintf("budget %s not found", id))
	}
	if err != nil {
		return nil, mapError(err, "get budget")
	}
	return b, nil
}

// ListBudgets returns the user's budgets, newest first
func (s *Store) ListBudgets(ctx context.Context) ([]*pennywise.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY created_at DESC`, s.userID)
	if err != nil {
		return nil, mapError(err, "list budgets")
	}
	defer rows.Close()

	var out []*pennywise.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, mapError(err, "scan budget")
		}
		out = append(out, b)
	}
	return out, mapError(rows.Err(), "list budgets")
}

// CreateBudget inserts a budget
func (s *Store) CreateBudget(ctx context.Context, params *pennywise.CreateBudgetParams) (*pennywise.Budget, error) {
	id := uuid.NewString()
	err := s.insertWithProfile(ctx, "create budget",
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, s.userID, params.Category, params.Amount.String(), string(params.Period), s.stamp())
	if err != nil {
		return nil, err
	}
	return s.getBudget(ctx, id)
}

// UpdateBudget applies the changed fields
func (s *Store) UpdateBudget(ctx context.Context, id string, params *pennywise.UpdateBudgetParams) (*pennywise.Budget, error) {
	b, err := s.getBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	params.Apply(b)
	_, err = s.db.ExecContext(ctx, `UPDATE budgets SET category = ?, amount = ?, period = ? WHERE id = ? AND user_id = ?`,
		b.Category, b.Amount.String(), string(b.Period), id, s.userID)
	if err != nil {
		return nil, mapError(err, "update budget")
	}
	return b, nil
}

// DeleteBudget removes a budget
func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, s.userID)
	return mapError(err, "delete budget")
}
