package main

import (
	"fmt"
	"strings"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/spf13/cobra"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "budget",
		Aliases: []string{"budgets"},
		Short:   "Manage category budgets",
	}
	cmd.AddCommand(budgetListCmd(), budgetAddCmd(), budgetUpdateCmd(), budgetRemoveCmd())
	return cmd
}

// budgetView is the JSON shape of a budget with its derived fields
type budgetView struct {
	pennywise.Budget
	Spent    string `json:"spent"`
	Progress int    `json:"progress"`
	Exceeded bool   `json:"exceeded"`
}

func budgetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List budgets with spending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			budgets := a.client.Budgets.List()
			if a.json {
				views := make([]budgetView, 0, len(budgets))
				for _, b := range budgets {
					views = append(views, budgetView{
						Budget:   b,
						Spent:    b.Spent.String(),
						Progress: b.Progress(),
						Exceeded: b.IsExceeded(),
					})
				}
				return printJSON(a.out, views)
			}
			if len(budgets) == 0 {
				fmt.Fprintln(a.out, mutedStyle.Render("No budgets"))
				return nil
			}

			tw := newTable(a.out, "CATEGORY", "PERIOD", "SPENT", "BUDGET", "PROGRESS", "ID")
			for _, b := range budgets {
				progress := fmt.Sprintf("%3d%% %s", b.Progress(), bar(b.Progress(), 20))
				if b.IsExceeded() {
					progress = failureStyle.Render(progress + " over")
				}
				row(tw, b.Category, string(b.Period), a.client.FormatAmount(b.Spent), a.client.FormatAmount(b.Amount), progress, b.ID)
			}
			return tw.Flush()
		},
	}
}

func budgetAddCmd() *cobra.Command {
	var category, amount, period string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a budget for a category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}

			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.client.Budgets.Add(cmd.Context(), &pennywise.CreateBudgetParams{
				Category: category,
				Amount:   amt,
				Period:   pennywise.Period(strings.ToLower(period)),
			})
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, created)
			}
			fmt.Fprintln(a.out, mutedStyle.Render("id: "+created.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "expense category")
	cmd.Flags().StringVar(&amount, "amount", "", "spending cap")
	cmd.Flags().StringVar(&period, "period", string(pennywise.PeriodMonthly), "weekly, monthly or yearly")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func budgetUpdateCmd() *cobra.Command {
	var category, amount, period string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := &pennywise.UpdateBudgetParams{}
			if cmd.Flags().Changed("category") {
				params.Category = &category
			}
			if cmd.Flags().Changed("amount") {
				d, err := parseAmount("amount", amount)
				if err != nil {
					return err
				}
				params.Amount = &d
			}
			if cmd.Flags().Changed("period") {
				p := pennywise.Period(strings.ToLower(period))
				params.Period = &p
			}

			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.client.Budgets.Update(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, updated)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "expense category")
	cmd.Flags().StringVar(&amount, "amount", "", "spending cap")
	cmd.Flags().StringVar(&period, "period", "", "weekly, monthly or yearly")
	return cmd
}

func budgetRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a budget",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.client.Budgets.Remove(cmd.Context(), args[0])
		},
	}
}

// bar renders pct as a fixed-width progress bar
func bar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
