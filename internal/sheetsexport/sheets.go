// Package sheetsexport writes transactions to a Google Sheets spreadsheet
// using service account credentials.
package sheetsexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheet is the tab written when none is configured
const DefaultSheet = "Transactions"

// Client writes to one spreadsheet
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// New creates a client from a service account key. credentialsFile falls
// back to GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, credentialsFile string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if credentialsFile == "" {
		return nil, errors.New("missing service account credentials (set google_credentials_file or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID), nil
}

// NewWithService wraps an existing Sheets service
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// Export replaces the contents of sheet with txns and returns the range written
func (c *Client) Export(ctx context.Context, sheet string, txns []pennywise.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if sheet == "" {
		sheet = DefaultSheet
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, sheet, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to clear sheet %s: %w", sheet, err)
	}

	values := pennywise.ExportValues(txns)
	rng := fmt.Sprintf("%s!A1:F%d", sheet, len(values))
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to write sheet %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Exported transactions to Google Sheets",
		"spreadsheet", c.spreadsheetID,
		"range", resp.UpdatedRange,
		"rows", len(txns))
	return rng, nil
}
