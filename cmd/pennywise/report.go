package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/spf13/cobra"
)

// report is the JSON shape of the report command
type report struct {
	Period        string                     `json:"period"`
	Range         pennywise.DateRange        `json:"range"`
	Summary       pennywise.Summary          `json:"summary"`
	TopExpenses   []pennywise.CategoryAmount `json:"top_expenses"`
	Trend         []pennywise.MonthTotal     `json:"trend"`
	Health        pennywise.HealthReport     `json:"health"`
	TotalSavings  string                     `json:"total_savings"`
	ActiveGoals   int                        `json:"active_goals"`
	ExceededCount int                        `json:"exceeded_budgets"`
}

func reportCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"dashboard"},
		Short:   "Summarize a period and score financial health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			p := pennywise.RangePeriod(strings.ToLower(period))
			r, err := pennywise.PeriodRange(p, now)
			if err != nil {
				return err
			}

			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			c := a.client
			all := c.Transactions.List()
			inRange := c.Transactions.ByDateRange(r.Start, r.End)

			exceeded := 0
			for _, b := range c.Budgets.List() {
				if b.IsExceeded() {
					exceeded++
				}
			}

			rep := report{
				Period:        p.Label(),
				Range:         r,
				Summary:       pennywise.Summarize(inRange),
				TopExpenses:   pennywise.TopCategories(inRange, pennywise.KindExpense, 5),
				Trend:         pennywise.SpendingTrend(all, now),
				Health:        c.HealthReport(),
				TotalSavings:  c.Savings.TotalSavings().String(),
				ActiveGoals:   len(c.Savings.ActiveGoals()),
				ExceededCount: exceeded,
			}
			if a.json {
				return printJSON(a.out, rep)
			}

			out := a.out
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s (%s)", rep.Period, r.Label())))
			fmt.Fprintf(out, "  Income   %s\n", c.FormatAmount(rep.Summary.Income))
			fmt.Fprintf(out, "  Expenses %s\n", c.FormatAmount(rep.Summary.Expense))
			fmt.Fprintf(out, "  Balance  %s\n", c.FormatAmount(rep.Summary.Balance))
			fmt.Fprintf(out, "  %d transactions\n\n", rep.Summary.Count)

			if len(rep.TopExpenses) > 0 {
				tw := newTable(out, "TOP EXPENSES", "AMOUNT", "SHARE")
				for _, ca := range rep.TopExpenses {
					row(tw, ca.Category, c.FormatAmount(ca.Amount), fmt.Sprintf("%d%%", ca.Percent))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}

			tw := newTable(out, "MONTH", "INCOME", "EXPENSES", "NET")
			for _, m := range rep.Trend {
				row(tw, m.Label, c.FormatAmount(m.Income), c.FormatAmount(m.Expense), c.FormatAmount(m.Net()))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, headerStyle.Render("Financial health: "+rep.Health.String()))
			for _, ind := range rep.Health.Indicators {
				fmt.Fprintln(out, "  "+indicatorStyle(ind.Level).Render("• "+ind.Text))
			}
			fmt.Fprintf(out, "\nSaved %s across %d active goals; %d budgets exceeded\n",
				c.FormatAmount(c.Savings.TotalSavings()), rep.ActiveGoals, rep.ExceededCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", string(pennywise.RangeMonth), "day, week, month or year")
	return cmd
}
