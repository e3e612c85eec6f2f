package pennywise

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// IsValid reports whether k is a known kind
func (k Kind) IsValid() bool {
	return k == KindIncome || k == KindExpense
}

// Period is the cadence of a budget
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// IsValid reports whether p is a known budget period
func (p Period) IsValid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Priority ranks savings goals
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// IsValid reports whether p is a known priority
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// GoalStatus is the lifecycle state of a savings goal
type GoalStatus string

const (
	GoalActive    GoalStatus = "Active"
	GoalCompleted GoalStatus = "Completed"
	GoalPaused    GoalStatus = "Paused"
)

// IsValid reports whether s is a known goal status
func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalPaused:
		return true
	}
	return false
}

// SavingsTxType is the direction of a savings transaction
type SavingsTxType string

const (
	SavingsDeposit    SavingsTxType = "deposit"
	SavingsWithdrawal SavingsTxType = "withdrawal"
)

// IsValid reports whether t is a known savings transaction type
func (t SavingsTxType) IsValid() bool {
	return t == SavingsDeposit || t == SavingsWithdrawal
}

// Transaction is a single income or expense entry
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
	Type        Kind            `json:"type"`
	IsRecurring bool            `json:"is_recurring"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Budget is a spending cap for one category
type Budget struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Period    Period          `json:"period"`
	CreatedAt time.Time       `json:"created_at"`

	// Spent is derived from expense transactions and never persisted
	Spent decimal.Decimal `json:"-"`
}

// Progress returns spent as a whole percent of the budget, capped at 100
func (b *Budget) Progress() int {
	if b == nil || !b.Amount.IsPositive() {
		return 0
	}
	pct := b.Spent.Div(b.Amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return int(pct)
}

// IsExceeded reports whether spending is strictly above the cap
func (b *Budget) IsExceeded() bool {
	return b != nil && b.Spent.GreaterThan(b.Amount)
}

// Remaining returns the unspent amount, negative when exceeded
func (b *Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.Spent)
}

// SavingsGoal is a named target amount with an optional deadline
type SavingsGoal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id,omitempty"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *Date           `json:"target_date"`
	Category      string          `json:"category"`
	Priority      Priority        `json:"priority"`
	Status        GoalStatus      `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Progress returns the funded share as a percent, capped at 100
func (g *SavingsGoal) Progress() float64 {
	if g == nil || !g.TargetAmount.IsPositive() {
		return 0
	}
	pct, _ := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Float64()
	return math.Min(100, math.Max(0, pct))
}

// DaysLeft returns whole days until the target date, rounded up; nil without a target date
func (g *SavingsGoal) DaysLeft(now time.Time) *int {
	if g == nil || g.TargetDate == nil || g.TargetDate.IsZero() {
		return nil
	}
	hours := g.TargetDate.Time.Sub(now).Hours()
	days := int(math.Ceil(hours / 24))
	return &days
}

// SavingsTransaction is a deposit into or withdrawal from a goal
type SavingsTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id,omitempty"`
	SavingsID   string          `json:"savings_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        SavingsTxType   `json:"transaction_type"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed returns the amount as it contributes to the goal balance
func (t *SavingsTransaction) Signed() decimal.Decimal {
	if t.Type == SavingsWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// UserProfile holds per-user display preferences
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Currency  string    `json:"currency"`
	Theme     string    `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	// DefaultCurrency is assigned to new profiles
	DefaultCurrency = "USD"

	// DefaultTheme is assigned to new profiles
	DefaultTheme = "light"
)

// CreateTransactionParams holds the fields of a new transaction
type CreateTransactionParams struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
	Type        Kind            `json:"type"`
	IsRecurring bool            `json:"is_recurring"`
}

// Validate checks the transaction invariants
func (p *CreateTransactionParams) Validate() error {
	v := &ValidationErrors{}
	if p == nil {
		return v.Add("params", "is required", nil)
	}
	v.positive("amount", p.Amount)
	v.required("category", p.Category)
	v.required("description", p.Description)
	if p.Date.IsZero() {
		v.Add("date", "is required", nil)
	}
	if !p.Type.IsValid() {
		v.Add("type", "must be income or expense", p.Type)
	}
	return v.OrNil()
}

// UpdateTransactionParams holds changed fields; nil means unchanged
type UpdateTransactionParams struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
	Date        *Date            `json:"date,omitempty"`
	Type        *Kind            `json:"type,omitempty"`
	IsRecurring *bool            `json:"is_recurring,omitempty"`
}

// Validate checks the changed fields
func (p *UpdateTransactionParams) Validate() error {
	v := &ValidationErrors{}
	if p == nil {
		return v.Add("params", "is required", nil)
	}
	if p.Amount != nil {
		v.positive("amount", *p.Amount)
	}
	if p.Category != nil {
		v.required("category", *p.Category)
	}
	if p.Description != nil {
		v.required("description", *p.Description)
	}
	if p.Date != nil && p.Date.IsZero() {
		v.Add("date", "must not be empty", nil)
	}
	if p.Type != nil && !p.Type.IsValid() {
		v.Add("type", "must be income or expense", *p.Type)
	}
	return v.OrNil()
}

// IsEmpty reports whether no field is set
func (p *UpdateTransactionParams) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil &&
		p.Date == nil && p.Type == nil && p.IsRecurring == nil
}

// Apply copies the changed fields onto t
func (p *UpdateTransactionParams) Apply(t *Transaction) {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.IsRecurring != nil {
		t.IsRecurring = *p.IsRecurring
	}
}

// CreateBudgetParams holds the fields of a new budget
type CreateBudgetParams struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Period   Period          `json:"period"`
}

// Validate checks the budget invariants
func (p *CreateBudgetParams) Validate() error {
	v := &ValidationErrors{}
	if p == nil {
		return v.Add("params", "is required", nil)
	}
	v.required("category", p.Category)
	v.positive("amount", p.Amount)
	if !p.Period.IsValid() {
		v.Add("period", "must be weekly, monthly or yearly", p.Period)
	}
	return v.OrNil()
}

// UpdateBudgetParams holds changed fields; spent is not settable
type UpdateBudgetParams struct {
	Category *string          `json:"category,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Period   *Period          `json:"period,omitempty"`
}

// Validate checks the changed fields
func (p *UpdateBudgetParams) Validate() error {
	v := &ValidationErrors{}
	if p == nil {
		return v.Add("params", "is required", nil)
	}
	if p.Category != nil {
		v.required("category", *p.Category)
	}
	if p.Amount != nil {
		v.positive("amount", *p.Amount)
	}
	if p.Period != nil && !p.Period.IsValid() {
		v.Add("period", "must be weekly, monthly or yearly", *p.Period)
	}
	return v.OrNil()
}

// Apply copies the changed fields onto b
func (p *UpdateBudgetParams) Apply(b *Budget) {
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.Period != nil {
		b.Period = *p.Period
	}
}

// CreateSavingsParams holds the fields of a new goal
type CreateSavingsParams struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	TargetDate   *Date           `json:"target_date"`
	Category     string          `json:"category"`
	Priority     Priority        `json:"priority"`
	Status       GoalStatus      `json:"status,omitempty"`
}

// Validate checks the goal invariants; an empty status defaults to Active
func (p *CreateSavingsParams) Validate() error {
	v := &ValidationErrors{}
	if p == nil {
		return v.Add("params", "is required", nil)
	}
	v.required("title", p.Title)
	v.positive("target_amount", p.TargetAmount)
	v.required("category", p.Category)
	if !p.Priority.IsValid() {
		v.Add("priority", "must be Low, Medium or High", p.Priority)
	}
	if p.Status != "" && !p.Status.IsValid() {
		v.Add("status", "must be Active, Completed or Paused", p.Status)
	}
	return v.OrNil()
}

// UpdateSavingsParams holds changed fields; the current amount is not settable
type UpdateSavingsParams struct {
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	TargetAmount *decimal.Decimal `json:"target_amount,omitempty"`
	TargetDate   *Date            `json:"target_date,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Priority     *Priority        `json:"priority,omitempty"`
	Status       *GoalStatus      `json:"status,omitempty"`
}

// Validate checks the changed fields
func (p *UpdateSavingsParams) Validate() error {
	v := &ValidationErrors{}
	if p == nil {
		return v.Add("params", "is required", nil)
	}
	if p.Title != nil {
		v.required("title", *p.Title)
	}
	if p.TargetAmount != nil {
		v.positive("target_amount", *p.TargetAmount)
	}
	if p.Category != nil {
		v.required("category", *p.Category)
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		v.Add("priority", "must be Low, Medium or High", *p.Priority)
	}
	if p.Status != nil && !p.Status.IsValid() {
		v.Add("status", "must be Active, Completed or Paused", *p.Status)
	}
	return v.OrNil()
}

// Apply copies the changed fields onto g
func (p *UpdateSavingsParams) Apply(g *SavingsGoal) {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.TargetDate != nil {
		d := *p.TargetDate
		g.TargetDate = &d
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.Priority != nil {
		g.Priority = *p.Priority
	}
	if p.Status != nil {
		g.Status = *p.Status
	}
}

// CreateSavingsTransactionParams holds the fields of a deposit or withdrawal
type CreateSavingsTransactionParams struct {
	SavingsID   string          `json:"savings_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        SavingsTxType   `json:"transaction_type"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
}

// Validate checks the savings transaction invariants
func (p *CreateSavingsTransactionParams) Validate() error {
	v := &ValidationErrors{}
	if p == nil {
		return v.Add("params", "is required", nil)
	}
	v.required("savings_id", p.SavingsID)
	v.positive("amount", p.Amount)
	if !p.Type.IsValid() {
		v.Add("type", "must be deposit or withdrawal", p.Type)
	}
	if p.Date.IsZero() {
		v.Add("date", "is required", nil)
	}
	return v.OrNil()
}

// UpdateProfileParams holds changed profile fields
type UpdateProfileParams struct {
	Name     *string `json:"name,omitempty"`
	Currency *string `json:"currency,omitempty"`
	Theme    *string `json:"theme,omitempty"`
}

// Validate checks the changed fields
func (p *UpdateProfileParams) Validate() error {
	v := &ValidationErrors{}
	if p == nil {
		return v.Add("params", "is required", nil)
	}
	if p.Currency != nil && len(strings.TrimSpace(*p.Currency)) != 3 {
		v.Add("currency", "must be a three letter ISO code", *p.Currency)
	}
	if p.Theme != nil && *p.Theme != "light" && *p.Theme != "dark" {
		v.Add("theme", "must be light or dark", *p.Theme)
	}
	return v.OrNil()
}

// TransactionFilter narrows a transaction list; every set field must match
type TransactionFilter struct {
	Type      *Kind
	Category  string
	StartDate Date
	EndDate   Date
	Search    string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// Match reports whether t satisfies every set criterion
func (f *TransactionFilter) Match(t *Transaction) bool {
	if f == nil {
		return true
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if !t.Date.Within(f.StartDate, f.EndDate) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.Search)) {
		return false
	}
	if f.MinAmount != nil && t.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && t.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	return true
}
