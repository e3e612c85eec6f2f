package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/spf13/cobra"
)

func savingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "savings",
		Aliases: []string{"goals"},
		Short:   "Manage savings goals and their deposits",
	}
	cmd.AddCommand(
		savingsListCmd(),
		savingsAddCmd(),
		savingsUpdateCmd(),
		savingsMoveCmd("deposit", pennywise.SavingsDeposit),
		savingsMoveCmd("withdraw", pennywise.SavingsWithdrawal),
		savingsRemoveCmd(),
		savingsReconcileCmd(),
	)
	return cmd
}

// startedSavings is startedApp for commands that need the savings tables
func startedSavings(cmd *cobra.Command) (*app, error) {
	a, err := startedApp(cmd)
	if err != nil {
		return nil, err
	}
	if !a.client.Savings.TableExists() {
		a.Close()
		return nil, fmt.Errorf("savings are not set up for this account: %w", pennywise.ErrNotProvisioned)
	}
	return a, nil
}

func savingsListCmd() *cobra.Command {
	var showTxns bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List savings goals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := startedSavings(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			goals := a.client.Savings.List()
			if a.json {
				if showTxns {
					return printJSON(a.out, map[string]interface{}{
						"goals":        goals,
						"transactions": a.client.Savings.Transactions(),
					})
				}
				return printJSON(a.out, goals)
			}
			if len(goals) == 0 {
				fmt.Fprintln(a.out, mutedStyle.Render("No savings goals"))
				return nil
			}

			now := time.Now()
			tw := newTable(a.out, "TITLE", "STATUS", "PRIORITY", "SAVED", "TARGET", "PROGRESS", "DUE", "ID")
			for _, g := range goals {
				due := ""
				if g.TargetDate != nil && !g.TargetDate.IsZero() {
					due = humanize.RelTime(g.TargetDate.Time, now, "ago", "from now")
				}
				row(tw, truncate(g.Title, 30), string(g.Status), string(g.Priority),
					a.client.FormatAmount(g.CurrentAmount), a.client.FormatAmount(g.TargetAmount),
					fmt.Sprintf("%3.0f%% %s", g.Progress(), bar(int(g.Progress()), 20)), due, g.ID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\nTotal saved: %s\n", a.client.FormatAmount(a.client.Savings.TotalSavings()))

			if showTxns {
				fmt.Fprintln(a.out)
				tw := newTable(a.out, "DATE", "GOAL", "TYPE", "AMOUNT", "DESCRIPTION")
				for _, t := range a.client.Savings.Transactions() {
					title := t.SavingsID
					if g, err := a.client.Savings.Get(t.SavingsID); err == nil {
						title = g.Title
					}
					row(tw, t.Date.String(), truncate(title, 30), string(t.Type), a.client.FormatAmount(t.Amount), truncate(t.Description, 40))
				}
				return tw.Flush()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showTxns, "transactions", false, "also list deposits and withdrawals")
	return cmd
}

func parsePriority(value string) pennywise.Priority {
	return pennywise.Priority(pennywise.Capitalize(strings.ToLower(value)))
}

func parseStatus(value string) pennywise.GoalStatus {
	return pennywise.GoalStatus(pennywise.Capitalize(strings.ToLower(value)))
}

func savingsAddCmd() *cobra.Command {
	var title, description, target, date, category, priority string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a savings goal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := parseAmount("target", target)
			if err != nil {
				return err
			}
			params := &pennywise.CreateSavingsParams{
				Title:        title,
				Description:  description,
				TargetAmount: amt,
				Category:     category,
				Priority:     parsePriority(priority),
			}
			if date != "" {
				d, err := parseDateFlag("date", date)
				if err != nil {
					return err
				}
				params.TargetDate = &d
			}

			a, err := startedSavings(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.client.Savings.Add(cmd.Context(), params)
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
	cmd.Flags().StringVar(&title, "title", "", "goal title")
	cmd.Flags().StringVar(&description, "description", "", "goal description")
	cmd.Flags().StringVar(&target, "target", "", "target amount")
	cmd.Flags().StringVar(&date, "date", "", "target date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "General", "goal category")
	cmd.Flags().StringVar(&priority, "priority", string(pennywise.PriorityMedium), "low, medium or high")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func savingsUpdateCmd() *cobra.Command {
	var title, description, target, date, category, priority, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a savings goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := &pennywise.UpdateSavingsParams{}
			flags := cmd.Flags()
			if flags.Changed("title") {
				params.Title = &title
			}
			if flags.Changed("description") {
				params.Description = &description
			}
			if flags.Changed("target") {
				d, err := parseAmount("target", target)
				if err != nil {
					return err
				}
				params.TargetAmount = &d
			}
			if flags.Changed("date") {
				d, err := parseDateFlag("date", date)
				if err != nil {
					return err
				}
				params.TargetDate = &d
			}
			if flags.Changed("category") {
				params.Category = &category
			}
			if flags.Changed("priority") {
				p := parsePriority(priority)
				params.Priority = &p
			}
			if flags.Changed("status") {
				s := parseStatus(status)
				params.Status = &s
			}

			a, err := startedSavings(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.client.Savings.Update(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, updated)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "goal title")
	cmd.Flags().StringVar(&description, "description", "", "goal description")
	cmd.Flags().StringVar(&target, "target", "", "target amount")
	cmd.Flags().StringVar(&date, "date", "", "target date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "goal category")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&status, "status", "", "active, completed or paused")
	return cmd
}

func savingsMoveCmd(name string, kind pennywise.SavingsTxType) *cobra.Command {
	var amount, description, date string
	short := "Add money to a goal"
	if kind == pennywise.SavingsWithdrawal {
		short = "Take money out of a goal"
	}
	cmd := &cobra.Command{
		Use:   name + " <goal-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}
			d, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}

			a, err := startedSavings(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.client.Savings.AddTransaction(cmd.Context(), &pennywise.CreateSavingsTransactionParams{
				SavingsID:   args[0],
				Amount:      amt,
				Type:        kind,
				Description: description,
				Date:        d,
			})
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, created)
			}
			if g, err := a.client.Savings.Get(args[0]); err == nil {
				fmt.Fprintf(a.out, "%s: %s of %s (%s)\n", g.Title,
					a.client.FormatAmount(g.CurrentAmount), a.client.FormatAmount(g.TargetAmount), g.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount")
	cmd.Flags().StringVar(&description, "description", "", "note")
	cmd.Flags().StringVar(&date, "date", "today", "date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func savingsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a goal and its transactions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := startedSavings(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.client.Savings.Delete(cmd.Context(), args[0])
		},
	}
}

func savingsReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute goal statuses from their balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := startedSavings(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.client.Savings.Reconcile(cmd.Context())
		},
	}
}
