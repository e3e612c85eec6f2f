package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
)

// pennywiseTools holds the client and implements all tool handlers
type pennywiseTools struct {
	client *pennywise.Client
	now    func() time.Time
}

func (t *pennywiseTools) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// refresh reloads a provider, falling back to the last good list when the
// backend is unreachable
func refresh(ctx context.Context, load func(context.Context) error, what string) error {
	if err := load(ctx); err != nil {
		if pennywise.IsAuthError(err) {
			return fmt.Errorf("failed to fetch %s: %w", what, err)
		}
	}
	return nil
}

// GetTransactions tool - queries transactions with optional filters
type GetTransactionsInput struct {
	StartDate string `json:"startDate,omitempty" jsonschema:"Start date in YYYY-MM-DD format (optional)"`
	EndDate   string `json:"endDate,omitempty" jsonschema:"End date in YYYY-MM-DD format (optional)"`
	Type      string `json:"type,omitempty" jsonschema:"income or expense (optional)"`
	Category  string `json:"category,omitempty" jsonschema:"Filter by exact category name (optional)"`
	Search    string `json:"search,omitempty" jsonschema:"Text to find in description or category (optional)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of transactions to return (default: 50)"`
}

type TransactionEntry struct {
	ID          string  `json:"id" jsonschema:"Transaction ID"`
	Date        string  `json:"date" jsonschema:"Transaction date (YYYY-MM-DD)"`
	Amount      float64 `json:"amount" jsonschema:"Transaction amount (always positive)"`
	Type        string  `json:"type" jsonschema:"income or expense"`
	Category    string  `json:"category" jsonschema:"Transaction category"`
	Description string  `json:"description" jsonschema:"Transaction description"`
	IsRecurring bool    `json:"isRecurring" jsonschema:"Whether the transaction recurs"`
}

type GetTransactionsOutput struct {
	Transactions []TransactionEntry `json:"transactions" jsonschema:"List of transactions"`
	Count        int                `json:"count" jsonschema:"Number of transactions returned"`
	Currency     string             `json:"currency" jsonschema:"ISO currency code of all amounts"`
}

func (t *pennywiseTools) GetTransactions(ctx context.Context, req *mcp.CallToolRequest, input GetTransactionsInput) (*mcp.CallToolResult, GetTransactionsOutput, error) {
	filter := pennywise.TransactionFilter{Category: input.Category, Search: input.Search}

	if input.StartDate != "" {
		d, err := pennywise.ParseDate(input.StartDate)
		if err != nil {
			return nil, GetTransactionsOutput{}, fmt.Errorf("invalid startDate format (expected YYYY-MM-DD): %w", err)
		}
		filter.StartDate = d
	}
	if input.EndDate != "" {
		d, err := pennywise.ParseDate(input.EndDate)
		if err != nil {
			return nil, GetTransactionsOutput{}, fmt.Errorf("invalid endDate format (expected YYYY-MM-DD): %w", err)
		}
		filter.EndDate = d
	}
	if input.Type != "" {
		kind := pennywise.Kind(strings.ToLower(input.Type))
		if !kind.IsValid() {
			return nil, GetTransactionsOutput{}, fmt.Errorf("invalid type %q: expected income or expense", input.Type)
		}
		filter.Type = &kind
	}

	// Apply limit (default to 50)
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	if err := refresh(ctx, t.client.Transactions.Load, "transactions"); err != nil {
		return nil, GetTransactionsOutput{}, err
	}

	matched := t.client.Transactions.Filter(filter)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	transactions := make([]TransactionEntry, 0, len(matched))
	for _, tx := range matched {
		transactions = append(transactions, TransactionEntry{
			ID:          tx.ID,
			Date:        tx.Date.String(),
			Amount:      tx.Amount.InexactFloat64(),
			Type:        string(tx.Type),
			Category:    tx.Category,
			Description: tx.Description,
			IsRecurring: tx.IsRecurring,
		})
	}

	return nil, GetTransactionsOutput{
		Transactions: transactions,
		Count:        len(transactions),
		Currency:     t.client.Currency(),
	}, nil
}

// GetBudgets tool - retrieves budgets with derived spending
type GetBudgetsInput struct {
	// No input parameters needed
}

type BudgetEntry struct {
	ID        string  `json:"id" jsonschema:"Budget ID"`
	Category  string  `json:"category" jsonschema:"Expense category the budget caps"`
	Period    string  `json:"period" jsonschema:"weekly, monthly or yearly"`
	Budgeted  float64 `json:"budgeted" jsonschema:"Budgeted amount"`
	Spent     float64 `json:"spent" jsonschema:"Expenses recorded in the category"`
	Remaining float64 `json:"remaining" jsonschema:"Remaining budget amount, negative when exceeded"`
	Progress  int     `json:"progress" jsonschema:"Percentage of budget spent, capped at 100"`
	Exceeded  bool    `json:"exceeded" jsonschema:"Whether spending is above the budget"`
}

type GetBudgetsOutput struct {
	Budgets  []BudgetEntry `json:"budgets" jsonschema:"List of budgets, newest first"`
	Count    int           `json:"count" jsonschema:"Number of budgets"`
	Currency string        `json:"currency" jsonschema:"ISO currency code of all amounts"`
}

func (t *pennywiseTools) GetBudgets(ctx context.Context, req *mcp.CallToolRequest, input GetBudgetsInput) (*mcp.CallToolResult, GetBudgetsOutput, error) {
	if err := refresh(ctx, t.client.Budgets.Load, "budgets"); err != nil {
		return nil, GetBudgetsOutput{}, err
	}

	budgets := t.client.Budgets.List()
	entries := make([]BudgetEntry, 0, len(budgets))
	for _, b := range budgets {
		entries = append(entries, BudgetEntry{
			ID:        b.ID,
			Category:  b.Category,
			Period:    string(b.Period),
			Budgeted:  b.Amount.InexactFloat64(),
			Spent:     b.Spent.InexactFloat64(),
			Remaining: b.Remaining().InexactFloat64(),
			Progress:  b.Progress(),
			Exceeded:  b.IsExceeded(),
		})
	}

	return nil, GetBudgetsOutput{
		Budgets:  entries,
		Count:    len(entries),
		Currency: t.client.Currency(),
	}, nil
}

// GetSavingsGoals tool - retrieves savings goals
type GetSavingsGoalsInput struct {
	Status string `json:"status,omitempty" jsonschema:"Active, Completed or Paused (optional)"`
}

type GoalEntry struct {
	ID           string  `json:"id" jsonschema:"Goal ID"`
	Title        string  `json:"title" jsonschema:"Goal title"`
	Category     string  `json:"category" jsonschema:"Goal category"`
	Priority     string  `json:"priority" jsonschema:"Low, Medium or High"`
	Status       string  `json:"status" jsonschema:"Active, Completed or Paused"`
	TargetAmount float64 `json:"targetAmount" jsonschema:"Amount to save"`
	Saved        float64 `json:"saved" jsonschema:"Deposits minus withdrawals so far"`
	Progress     float64 `json:"progress" jsonschema:"Percentage of the target saved, capped at 100"`
	TargetDate   string  `json:"targetDate,omitempty" jsonschema:"Target date (YYYY-MM-DD) if set"`
	DaysLeft     *int    `json:"daysLeft,omitempty" jsonschema:"Days until the target date, negative when overdue"`
}

type GetSavingsGoalsOutput struct {
	Goals        []GoalEntry `json:"goals" jsonschema:"List of savings goals"`
	Count        int         `json:"count" jsonschema:"Number of goals returned"`
	TotalSavings float64     `json:"totalSavings" jsonschema:"Saved amount across all goals"`
	Currency     string      `json:"currency" jsonschema:"ISO currency code of all amounts"`
}

func (t *pennywiseTools) GetSavingsGoals(ctx context.Context, req *mcp.CallToolRequest, input GetSavingsGoalsInput) (*mcp.CallToolResult, GetSavingsGoalsOutput, error) {
	if err := refresh(ctx, t.client.Savings.Load, "savings goals"); err != nil {
		return nil, GetSavingsGoalsOutput{}, err
	}
	if !t.client.Savings.TableExists() {
		return nil, GetSavingsGoalsOutput{}, fmt.Errorf("savings are not set up for this account: %w", pennywise.ErrNotProvisioned)
	}

	now := t.clock()
	goals := t.client.Savings.List()
	entries := make([]GoalEntry, 0, len(goals))
	for _, g := range goals {
		if input.Status != "" && !strings.EqualFold(string(g.Status), input.Status) {
			continue
		}
		entry := GoalEntry{
			ID:           g.ID,
			Title:        g.Title,
			Category:     g.Category,
			Priority:     string(g.Priority),
			Status:       string(g.Status),
			TargetAmount: g.TargetAmount.InexactFloat64(),
			Saved:        g.CurrentAmount.InexactFloat64(),
			Progress:     g.Progress(),
			DaysLeft:     g.DaysLeft(now),
		}
		if g.TargetDate != nil && !g.TargetDate.IsZero() {
			entry.TargetDate = g.TargetDate.String()
		}
		entries = append(entries, entry)
	}

	return nil, GetSavingsGoalsOutput{
		Goals:        entries,
		Count:        len(entries),
		TotalSavings: t.client.Savings.TotalSavings().InexactFloat64(),
		Currency:     t.client.Currency(),
	}, nil
}

// GetFinancialHealth tool - scores the loaded state
type GetFinancialHealthInput struct {
	// No input parameters needed
}

type IndicatorEntry struct {
	Text  string `json:"text" jsonschema:"Finding"`
	Level string `json:"level" jsonschema:"good, okay, warning or bad"`
}

type GetFinancialHealthOutput struct {
	Score           int              `json:"score" jsonschema:"Overall score from 0 to 100"`
	Label           string           `json:"label" jsonschema:"Excellent, Good, Fair or Needs Attention"`
	SavingsRate     float64          `json:"savingsRate" jsonschema:"Income saved as a whole percent"`
	SavingsPoints   int              `json:"savingsPoints" jsonschema:"Savings rate points out of 40"`
	BudgetPoints    int              `json:"budgetPoints" jsonschema:"Budget adherence points out of 30"`
	EmergencyPoints int              `json:"emergencyPoints" jsonschema:"Emergency fund points out of 30"`
	EmergencyMonths float64          `json:"emergencyMonths" jsonschema:"Months of average expenses covered by savings"`
	Indicators      []IndicatorEntry `json:"indicators" jsonschema:"Human-readable findings"`
}

func (t *pennywiseTools) GetFinancialHealth(ctx context.Context, req *mcp.CallToolRequest, input GetFinancialHealthInput) (*mcp.CallToolResult, GetFinancialHealthOutput, error) {
	if err := t.client.Start(ctx); err != nil && pennywise.IsAuthError(err) {
		return nil, GetFinancialHealthOutput{}, fmt.Errorf("failed to load data: %w", err)
	}

	report := t.client.HealthReport()
	out := GetFinancialHealthOutput{
		Score:           report.Score,
		Label:           report.Label(),
		SavingsRate:     report.SavingsRate.InexactFloat64(),
		SavingsPoints:   report.SavingsPoints,
		BudgetPoints:    report.BudgetPoints,
		EmergencyPoints: report.EmergencyPoints,
		EmergencyMonths: report.EmergencyMonths.InexactFloat64(),
	}
	for _, ind := range report.Indicators {
		out.Indicators = append(out.Indicators, IndicatorEntry{Text: ind.Text, Level: string(ind.Level)})
	}
	return nil, out, nil
}

// GetSpendingSummary tool - summarizes a period
type GetSpendingSummaryInput struct {
	Period string `json:"period,omitempty" jsonschema:"day, week, month or year (default: month)"`
}

type CategoryEntry struct {
	Category string  `json:"category" jsonschema:"Expense category"`
	Amount   float64 `json:"amount" jsonschema:"Total spent in the category"`
	Percent  int     `json:"percent" jsonschema:"Share of period expenses"`
}

type MonthEntry struct {
	Month   string  `json:"month" jsonschema:"Month (YYYY-MM)"`
	Income  float64 `json:"income" jsonschema:"Income in the month"`
	Expense float64 `json:"expense" jsonschema:"Expenses in the month"`
}

type GetSpendingSummaryOutput struct {
	Period        string          `json:"period" jsonschema:"Period label"`
	StartDate     string          `json:"startDate" jsonschema:"First day of the period"`
	EndDate       string          `json:"endDate" jsonschema:"Last day of the period"`
	Income        float64         `json:"income" jsonschema:"Income in the period"`
	Expense       float64         `json:"expense" jsonschema:"Expenses in the period"`
	Balance       float64         `json:"balance" jsonschema:"Income minus expenses"`
	Count         int             `json:"count" jsonschema:"Number of transactions in the period"`
	TopCategories []CategoryEntry `json:"topCategories" jsonschema:"Five largest expense categories in the period"`
	Trend         []MonthEntry    `json:"trend" jsonschema:"Income and expenses for the last six months, oldest first"`
	Currency      string          `json:"currency" jsonschema:"ISO currency code of all amounts"`
}

func (t *pennywiseTools) GetSpendingSummary(ctx context.Context, req *mcp.CallToolRequest, input GetSpendingSummaryInput) (*mcp.CallToolResult, GetSpendingSummaryOutput, error) {
	now := t.clock()
	r, err := pennywise.PeriodRange(pennywise.RangePeriod(strings.ToLower(input.Period)), now)
	if err != nil {
		return nil, GetSpendingSummaryOutput{}, err
	}

	if err := refresh(ctx, t.client.Transactions.Load, "transactions"); err != nil {
		return nil, GetSpendingSummaryOutput{}, err
	}

	inRange := t.client.Transactions.ByDateRange(r.Start, r.End)
	summary := pennywise.Summarize(inRange)

	out := GetSpendingSummaryOutput{
		Period:    pennywise.RangePeriod(strings.ToLower(input.Period)).Label(),
		StartDate: r.Start.String(),
		EndDate:   r.End.String(),
		Income:    summary.Income.InexactFloat64(),
		Expense:   summary.Expense.InexactFloat64(),
		Balance:   summary.Balance.InexactFloat64(),
		Count:     summary.Count,
		Currency:  t.client.Currency(),
	}
	for _, c := range pennywise.TopCategories(inRange, pennywise.KindExpense, 5) {
		out.TopCategories = append(out.TopCategories, CategoryEntry{
			Category: c.Category,
			Amount:   c.Amount.InexactFloat64(),
			Percent:  c.Percent,
		})
	}
	for _, m := range pennywise.SpendingTrend(t.client.Transactions.List(), now) {
		out.Trend = append(out.Trend, MonthEntry{
			Month:   m.Month,
			Income:  m.Income.InexactFloat64(),
			Expense: m.Expense.InexactFloat64(),
		})
	}
	return nil, out, nil
}
