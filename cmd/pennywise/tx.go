package main

import (
	"fmt"
	"strings"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/spf13/cobra"
)

func txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "List and edit income and expense transactions",
	}
	cmd.AddCommand(txListCmd(), txAddCmd(), txUpdateCmd(), txRemoveCmd())
	return cmd
}

func txListCmd() *cobra.Command {
	var (
		kind, category, from, to, search, minAmount, maxAmount string
		limit                                                  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := pennywise.TransactionFilter{Category: category, Search: search}
			if kind != "" {
				k := pennywise.Kind(strings.ToLower(kind))
				if !k.IsValid() {
					return fmt.Errorf("invalid --type %q: want income or expense", kind)
				}
				filter.Type = &k
			}
			var err error
			if filter.StartDate, err = optionalDate("from", from); err != nil {
				return err
			}
			if filter.EndDate, err = optionalDate("to", to); err != nil {
				return err
			}
			if minAmount != "" {
				d, err := parseAmount("min", minAmount)
				if err != nil {
					return err
				}
				filter.MinAmount = &d
			}
			if maxAmount != "" {
				d, err := parseAmount("max", maxAmount)
				if err != nil {
					return err
				}
				filter.MaxAmount = &d
			}

			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txns := a.client.Transactions.Filter(filter)
			if limit > 0 && len(txns) > limit {
				txns = txns[:limit]
			}
			if a.json {
				return printJSON(a.out, txns)
			}
			if len(txns) == 0 {
				fmt.Fprintln(a.out, mutedStyle.Render("No transactions"))
				return nil
			}

			tw := newTable(a.out, "DATE", "TYPE", "CATEGORY", "DESCRIPTION", "AMOUNT", "RECURRING", "ID")
			for _, t := range txns {
				amount := a.client.FormatAmount(t.Amount)
				if t.Type == pennywise.KindExpense {
					amount = "-" + amount
				}
				row(tw, t.Date.String(), string(t.Type), t.Category, truncate(t.Description, 40), amount, yesNo(t.IsRecurring), t.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "income or expense")
	cmd.Flags().StringVar(&category, "category", "", "exact category")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&search, "search", "", "text in description or category")
	cmd.Flags().StringVar(&minAmount, "min", "", "minimum amount")
	cmd.Flags().StringVar(&maxAmount, "max", "", "maximum amount")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows (0 for all)")
	return cmd
}

func txAddCmd() *cobra.Command {
	var (
		amount, category, description, date, kind string
		recurring                                 bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}
			d, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}

			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.client.Transactions.Add(cmd.Context(), &pennywise.CreateTransactionParams{
				Amount:      amt,
				Category:    category,
				Description: description,
				Date:        d,
				Type:        pennywise.Kind(strings.ToLower(kind)),
				IsRecurring: recurring,
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
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&date, "date", "today", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&kind, "type", string(pennywise.KindExpense), "income or expense")
	cmd.Flags().BoolVar(&recurring, "recurring", false, "mark as recurring")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func txUpdateCmd() *cobra.Command {
	var (
		amount, category, description, date, kind string
		recurring                                 bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := &pennywise.UpdateTransactionParams{}
			flags := cmd.Flags()
			if flags.Changed("amount") {
				d, err := parseAmount("amount", amount)
				if err != nil {
					return err
				}
				params.Amount = &d
			}
			if flags.Changed("category") {
				params.Category = &category
			}
			if flags.Changed("description") {
				params.Description = &description
			}
			if flags.Changed("date") {
				d, err := parseDateFlag("date", date)
				if err != nil {
					return err
				}
				params.Date = &d
			}
			if flags.Changed("type") {
				k := pennywise.Kind(strings.ToLower(kind))
				params.Type = &k
			}
			if flags.Changed("recurring") {
				params.IsRecurring = &recurring
			}

			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.client.Transactions.Update(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, updated)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&kind, "type", "", "income or expense")
	cmd.Flags().BoolVar(&recurring, "recurring", false, "recurring flag")
	return cmd
}

func txRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a transaction",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.client.Transactions.Remove(cmd.Context(), args[0])
		},
	}
}
