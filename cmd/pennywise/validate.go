package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ValidationResult is the outcome of one consistency check
type ValidationResult struct {
	Check    string        `json:"check"`
	Passed   bool          `json:"passed"`
	Checked  int           `json:"checked"`
	Problems []string      `json:"problems,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ValidationReport is the full consistency report
type ValidationReport struct {
	Timestamp   time.Time          `json:"timestamp"`
	TotalChecks int                `json:"total_checks"`
	Passed      int                `json:"passed"`
	Failed      int                `json:"failed"`
	SuccessRate float64            `json:"success_rate"`
	Results     []ValidationResult `json:"results"`
}

// Validator checks the loaded state against the rules the providers maintain
type Validator struct {
	client *pennywise.Client
	checks []check
}

type check struct {
	name string
	run  func(ctx context.Context, c *pennywise.Client) (checked int, problems []string, err error)
}

// NewValidator creates a validator over a started client
func NewValidator(client *pennywise.Client) *Validator {
	return &Validator{
		client: client,
		checks: []check{
			{"transactions_valid", checkTransactionsValid},
			{"transactions_ordered", checkTransactionsOrdered},
			{"budget_spent", checkBudgetSpent},
			{"goal_balance", checkGoalBalance},
			{"goal_status", checkGoalStatus},
		},
	}
}

// Run executes every check
func (v *Validator) Run(ctx context.Context) *ValidationReport {
	report := &ValidationReport{
		Timestamp: time.Now(),
		Results:   make([]ValidationResult, 0, len(v.checks)),
	}

	for _, c := range v.checks {
		start := time.Now()
		checked, problems, err := c.run(ctx, v.client)
		result := ValidationResult{
			Check:    c.name,
			Checked:  checked,
			Problems: problems,
			Passed:   err == nil && len(problems) == 0,
			Duration: time.Since(start),
		}
		if err != nil {
			result.Error = err.Error()
		}
		report.Results = append(report.Results, result)

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	report.TotalChecks = len(report.Results)
	if report.TotalChecks > 0 {
		report.SuccessRate = float64(report.Passed) / float64(report.TotalChecks) * 100
	}
	return report
}

func checkTransactionsValid(_ context.Context, c *pennywise.Client) (int, []string, error) {
	txns := c.Transactions.List()
	var problems []string
	for _, t := range txns {
		params := pennywise.CreateTransactionParams{
			Amount:      t.Amount,
			Category:    t.Category,
			Description: t.Description,
			Date:        t.Date,
			Type:        t.Type,
		}
		if err := params.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("transaction %s: %v", t.ID, err))
		}
	}
	return len(txns), problems, nil
}

func checkTransactionsOrdered(_ context.Context, c *pennywise.Client) (int, []string, error) {
	txns := c.Transactions.List()
	var problems []string
	for i := 1; i < len(txns); i++ {
		if txns[i-1].Date.Compare(txns[i].Date) < 0 {
			problems = append(problems, fmt.Sprintf("transaction %s (%s) listed before newer %s (%s)",
				txns[i-1].ID, txns[i-1].Date, txns[i].ID, txns[i].Date))
		}
	}
	return len(txns), problems, nil
}

func checkBudgetSpent(_ context.Context, c *pennywise.Client) (int, []string, error) {
	spent := pennywise.SpentByCategory(c.Transactions.List())
	budgets := c.Budgets.List()
	var problems []string
	for _, b := range budgets {
		if want := spent[b.Category]; !b.Spent.Equal(want) {
			problems = append(problems, fmt.Sprintf("budget %s (%s): spent %s, transactions sum to %s",
				b.ID, b.Category, b.Spent, want))
		}
	}
	return len(budgets), problems, nil
}

func checkGoalBalance(_ context.Context, c *pennywise.Client) (int, []string, error) {
	if !c.Savings.TableExists() {
		return 0, nil, nil
	}
	goals := c.Savings.List()
	var problems []string
	for _, g := range goals {
		sum := decimal.Zero
		for _, t := range c.Savings.TransactionsFor(g.ID) {
			sum = sum.Add(t.Signed())
		}
		if !g.CurrentAmount.Equal(sum) {
			problems = append(problems, fmt.Sprintf("goal %s (%s): current amount %s, transactions sum to %s",
				g.ID, g.Title, g.CurrentAmount, sum))
		}
	}
	return len(goals), problems, nil
}

func checkGoalStatus(_ context.Context, c *pennywise.Client) (int, []string, error) {
	if !c.Savings.TableExists() {
		return 0, nil, nil
	}
	goals := c.Savings.List()
	var problems []string
	for _, g := range goals {
		if want := pennywise.ReconcileGoalStatus(g); g.Status != want {
			problems = append(problems, fmt.Sprintf("goal %s (%s): status %s, reconcile gives %s",
				g.ID, g.Title, g.Status, want))
		}
	}
	return len(goals), problems, nil
}

func validateCmd() *cobra.Command {
	var outputDir string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check stored data for consistency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report := NewValidator(a.client).Run(cmd.Context())

			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				path := filepath.Join(outputDir, fmt.Sprintf("validation_report_%d.json", report.Timestamp.Unix()))
				if err := saveReport(report, path); err != nil {
					return fmt.Errorf("failed to save report: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to: %s\n", path)
			}

			if a.json {
				if err := printJSON(a.out, report); err != nil {
					return err
				}
			} else {
				printSummary(a.out, report, verbose)
			}

			if report.Failed > 0 {
				return fmt.Errorf("%d of %d checks failed", report.Failed, report.TotalChecks)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output", "", "directory to save a JSON report in")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "list every problem")
	return cmd
}

func saveReport(report *ValidationReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(w io.Writer, report *ValidationReport, verbose bool) {
	fmt.Fprintln(w, headerStyle.Render("=== Validation Report ==="))
	fmt.Fprintf(w, "Total Checks: %d\n", report.TotalChecks)
	fmt.Fprintf(w, "Passed: %d\n", report.Passed)
	fmt.Fprintf(w, "Failed: %d\n", report.Failed)
	fmt.Fprintf(w, "Success Rate: %.1f%%\n", report.SuccessRate)

	if report.Failed == 0 {
		return
	}
	fmt.Fprintln(w, "\nFailed Checks:")
	for _, result := range report.Results {
		if result.Passed {
			continue
		}
		switch {
		case result.Error != "":
			fmt.Fprintf(w, "  - %s: %s\n", result.Check, failureStyle.Render(result.Error))
		case verbose:
			fmt.Fprintf(w, "  - %s:\n", result.Check)
			for _, p := range result.Problems {
				fmt.Fprintf(w, "      %s\n", p)
			}
		default:
			fmt.Fprintf(w, "  - %s: %d problems (first: %s)\n", result.Check, len(result.Problems), result.Problems[0])
		}
	}
}
