package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pennywise-app/pennywise-go/internal/sheetsexport"
	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var format, output, from, to, spreadsheet, sheet string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions to a spreadsheet",
		Long: `Export writes transactions to an .xlsx workbook, a CSV file, or a
Google Sheets spreadsheet (--format sheets, using a service account).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "xlsx" && format != "csv" && format != "sheets" {
				return fmt.Errorf("invalid --format %q: want xlsx, csv or sheets", format)
			}
			start, err := optionalDate("from", from)
			if err != nil {
				return err
			}
			end, err := optionalDate("to", to)
			if err != nil {
				return err
			}

			a, err := startedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txns := a.client.Transactions.Filter(pennywise.TransactionFilter{StartDate: start, EndDate: end})
			if format == "sheets" {
				return exportSheets(cmd, a, spreadsheet, sheet, txns)
			}
			if output == "" {
				output = fmt.Sprintf("transactions-%s.%s", time.Now().Format("2006-01-02"), format)
			}

			var w io.Writer = a.out
			if output != "-" {
				f, err := os.Create(filepath.Clean(output))
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if format == "xlsx" {
				err = pennywise.ExportExcel(w, txns)
			} else {
				err = pennywise.ExportCSV(w, txns, a.client.Currency())
			}
			if err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("✓ Exported %d transactions to %s", len(txns), output)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx, csv or sheets")
	cmd.Flags().StringVar(&spreadsheet, "spreadsheet", "", "Google Sheets spreadsheet ID (default: google_spreadsheet_id)")
	cmd.Flags().StringVar(&sheet, "sheet", sheetsexport.DefaultSheet, "tab to overwrite")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	return cmd
}

func exportSheets(cmd *cobra.Command, a *app, spreadsheet, sheet string, txns []pennywise.Transaction) error {
	if spreadsheet == "" {
		spreadsheet = a.cfg.GoogleSpreadsheetID
	}
	client, err := sheetsexport.New(cmd.Context(), spreadsheet, a.cfg.GoogleCredentialsFile)
	if err != nil {
		return err
	}
	rng, err := client.Export(cmd.Context(), sheet, txns)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("✓ Exported %d transactions to %s", len(txns), rng)))
	return nil
}
