package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const savingsColumns = `id, user_id, title, description, target_amount, current_amount, target_date,
	category, priority, status, created_at, updated_at`

func scanGoal(row interface{ Scan(...interface{}) error }) (*pennywise.SavingsGoal, error) {
	var (
		g                    pennywise.SavingsGoal
		target, current      string
		targetDate           sql.NullString
		priority, status     string
		createdAt, updatedAt string
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &target, &current, &targetDate,
		&g.Category, &priority, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	g.TargetAmount = parseDecimal(target)
	g.CurrentAmount = parseDecimal(current)
	if targetDate.Valid && targetDate.String != "" {
		d := parseDate(targetDate.String)
		g.TargetDate = &d
	}
	g.Priority = pennywise.Priority(priority)
	g.Status = pennywise.GoalStatus(status)
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return &g, nil
}

func nullableDate(d *pennywise.Date) interface{} {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func (s *Store) getGoal(ctx context.Context, id string) (*pennywise.SavingsGoal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+savingsColumns+` FROM savings WHERE id = ? AND user_id = ?`, id, s.userID)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, pennywise.WrapError(pennywise.ErrNotFound, "NOT_FOUND", fmt.Sprintf("savings goal %s not found", id))
	}
	if err != nil {
		return nil, mapError(err, "get savings goal")
	}
	return g, nil
}

// ListSavings returns the user's goals, newest first
func (s *Store) ListSavings(ctx context.Context) ([]*pennywise.SavingsGoal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+savingsColumns+` FROM savings WHERE user_id = ? ORDER BY created_at DESC`, s.userID)
	if err != nil {
		return nil, mapError(err, "list savings goals")
	}
	defer rows.Close()

	var out []*pennywise.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, mapError(err, "scan savings goal")
		}
		out = append(out, g)
	}
	return out, mapError(rows.Err(), "list savings goals")
}

// CreateSavings inserts a goal with a zero balance
func (s *Store) CreateSavings(ctx context.Context, params *pennywise.CreateSavingsParams) (*pennywise.SavingsGoal, error) {
	status := params.Status
	if status == "" {
		status = pennywise.GoalActive
	}
	id := uuid.NewString()
	now := s.stamp()
	err := s.insertWithProfile(ctx, "create savings goal",
		`INSERT INTO savings (`+savingsColumns+`) VALUES (?, ?, ?, ?, ?, '0', ?, ?, ?, ?, ?, ?)`,
		id, s.userID, params.Title, params.Description, params.TargetAmount.String(), nullableDate(params.TargetDate),
		params.Category, string(params.Priority), string(status), now, now)
	if err != nil {
		return nil, err
	}
	return s.getGoal(ctx, id)
}

// UpdateSavings applies the changed fields
func (s *Store) UpdateSavings(ctx context.Context, id string, params *pennywise.UpdateSavingsParams) (*pennywise.SavingsGoal, error) {
	g, err := s.getGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	params.Apply(g)
	g.UpdatedAt = s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE savings SET title = ?, description = ?, target_amount = ?, target_date = ?, category = ?,
		 priority = ?, status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		g.Title, g.Description, g.TargetAmount.String(), nullableDate(g.TargetDate), g.Category,
		string(g.Priority), string(g.Status), g.UpdatedAt.UTC().Format(timeLayout), id, s.userID)
	if err != nil {
		return nil, mapError(err, "update savings goal")
	}
	return g, nil
}

// DeleteSavings removes a goal
func (s *Store) DeleteSavings(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM savings WHERE id = ? AND user_id = ?`, id, s.userID)
	return mapError(err, "delete savings goal")
}

const savingsTxColumns = `id, user_id, savings_id, amount, transaction_type, description, date, created_at`

func scanSavingsTx(row interface{ Scan(...interface{}) error }) (*pennywise.SavingsTransaction, error) {
	var (
		t                           pennywise.SavingsTransaction
		amount, kind, date, created string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.SavingsID, &amount, &kind, &t.Description, &date, &created); err != nil {
		return nil, err
	}
	t.Amount = parseDecimal(amount)
	t.Type = pennywise.SavingsTxType(kind)
	t.Date = parseDate(date)
	t.CreatedAt = parseTime(created)
	return &t, nil
}

// ListSavingsTransactions returns the user's savings transactions, newest date first
func (s *Store) ListSavingsTransactions(ctx context.Context) ([]*pennywise.SavingsTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+savingsTxColumns+` FROM savings_transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`, s.userID)
	if err != nil {
		return nil, mapError(err, "list savings transactions")
	}
	defer rows.Close()

	var out []*pennywise.SavingsTransaction
	for rows.Next() {
		t, err := scanSavingsTx(rows)
		if err != nil {
			return nil, mapError(err, "scan savings transaction")
		}
		out = append(out, t)
	}
	return out, mapError(rows.Err(), "list savings transactions")
}

// CreateSavingsTransaction inserts a deposit or withdrawal and recomputes
// the goal balance in the same database transaction
func (s *Store) CreateSavingsTransaction(ctx context.Context, params *pennywise.CreateSavingsTransactionParams) (*pennywise.SavingsTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin savings transaction")
	}
	defer func() { _ = tx.Rollback() }()

	id := uuid.NewString()
	now := s.stamp()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO savings_transactions (`+savingsTxColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.userID, params.SavingsID, params.Amount.String(), string(params.Type), params.Description,
		params.Date.String(), now)
	if err != nil {
		return nil, mapError(err, "create savings transaction")
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT amount, transaction_type FROM savings_transactions WHERE savings_id = ? AND user_id = ?`,
		params.SavingsID, s.userID)
	if err != nil {
		return nil, mapError(err, "sum savings transactions")
	}
	balance := decimal.Zero
	for rows.Next() {
		var amount, kind string
		if err := rows.Scan(&amount, &kind); err != nil {
			rows.Close()
			return nil, mapError(err, "scan savings amount")
		}
		t := pennywise.SavingsTransaction{Amount: parseDecimal(amount), Type: pennywise.SavingsTxType(kind)}
		balance = balance.Add(t.Signed())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "sum savings transactions")
	}

	if _, err := tx.ExecContext(ctx, `UPDATE savings SET current_amount = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		balance.String(), now, params.SavingsID, s.userID); err != nil {
		return nil, mapError(err, "update savings balance")
	}

	created, err := scanSavingsTx(tx.QueryRowContext(ctx,
		`SELECT `+savingsTxColumns+` FROM savings_transactions WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err, "get savings transaction")
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err, "commit savings transaction")
	}
	return created, nil
}

// DeleteSavingsTransactions removes every transaction of one goal
func (s *Store) DeleteSavingsTransactions(ctx context.Context, savingsID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM savings_transactions WHERE savings_id = ? AND user_id = ?`, savingsID, s.userID)
	return mapError(err, "delete savings transactions")
}

// ReconcileSavingsStatuses applies pennywise.ReconcileGoalStatus to every goal of the user
func (s *Store) ReconcileSavingsStatuses(ctx context.Context) error {
	goals, err := s.ListSavings(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin reconcile")
	}
	defer func() { _ = tx.Rollback() }()

	changed := 0
	for _, g := range goals {
		status := pennywise.ReconcileGoalStatus(*g)
		if status == g.Status {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE savings SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			string(status), s.stamp(), g.ID, s.userID); err != nil {
			return mapError(err, "update savings status")
		}
		changed++
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit reconcile")
	}

	if changed > 0 && s.logger != nil {
		s.logger.Debug("Reconciled savings statuses", "changed", changed)
	}
	return nil
}

// DeleteUserData removes every row of the user, profile included
func (s *Store) DeleteUserData(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin delete")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"savings_transactions", "savings", "budgets", "transactions"} {
		_, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, s.userID)
		if err = mapError(err, "delete "+table); err != nil && !pennywise.IsNotProvisioned(err) {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, s.userID); err != nil {
		return mapError(err, "delete user profile")
	}
	return errors.Wrap(tx.Commit(), "commit delete")
}
