package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/pennywise-app/pennywise-go/internal/ofximport"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// importResult summarizes one import run
type importResult struct {
	File       string   `json:"file"`
	Accounts   []string `json:"accounts"`
	Parsed     int      `json:"parsed"`
	Skipped    int      `json:"skipped"`
	Duplicates int      `json:"duplicates"`
	Imported   int      `json:"imported"`
	Failed     int      `json:"failed"`
	DryRun     bool     `json:"dry_run"`
}

func importCmd() *cobra.Command {
	var (
		dryRun   bool
		category string
	)
	cmd := &cobra.Command{
		Use:   "import <file.ofx>",
		Short: "Import transactions from an OFX or QFX bank statement",
		Long: `Import reads a bank or credit card statement downloaded as OFX/QFX.
Debits become expenses and credits become income. Transactions that already
exist (same date, type, amount and description) are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open statement: %w", err)
			}
			st, err := ofximport.Parse(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			if category != "" {
				for i := range st.Transactions {
					if st.Transactions[i].Category == ofximport.DefaultCategory {
						st.Transactions[i].Category = category
					}
				}
			}

			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.client.Transactions.State().Err; err != nil {
				return fmt.Errorf("transactions are not loaded, refusing to import: %w", err)
			}

			fresh, dups := ofximport.Dedupe(st.Transactions, a.client.Transactions.List())
			res := importResult{
				File:       args[0],
				Accounts:   st.Accounts,
				Parsed:     len(st.Transactions),
				Skipped:    st.Skipped,
				Duplicates: dups,
				DryRun:     dryRun,
			}

			if !dryRun && len(fresh) > 0 {
				res.Imported, res.Failed = importAll(cmd, a, fresh)
			}

			if a.json {
				return printJSON(a.out, res)
			}
			tw := newTable(a.out, "FILE", "PARSED", "SKIPPED", "DUPLICATES", "IMPORTED", "FAILED")
			row(tw, res.File, strconv.Itoa(res.Parsed), strconv.Itoa(res.Skipped), strconv.Itoa(res.Duplicates),
				strconv.Itoa(res.Imported), strconv.Itoa(res.Failed))
			if err := tw.Flush(); err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintln(a.out, mutedStyle.Render(fmt.Sprintf("Dry run: %d new transactions would be imported", len(fresh))))
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d transactions failed to import", res.Failed, len(fresh))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and dedupe without saving")
	cmd.Flags().StringVar(&category, "category", "", "category for transactions without one (default: "+ofximport.DefaultCategory+")")
	return cmd
}

// importAll adds each transaction, continuing past individual failures
func importAll(cmd *cobra.Command, a *app, params []pennywise.CreateTransactionParams) (imported, failed int) {
	bar := progressbar.NewOptions(len(params),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Importing transactions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	// one summary line instead of a toast per row
	a.notifier.quiet = true
	defer func() { a.notifier.quiet = false }()
	for i := range params {
		if _, err := a.client.Transactions.Add(cmd.Context(), &params[i]); err != nil {
			slog.Warn("Failed to import transaction", "description", params[i].Description, "error", err)
			failed++
		} else {
			imported++
		}
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
	return imported, failed
}
