// Package google writes expense snapshots to a Google spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "expensedash/internal/log"
	"expensedash/internal/sheets"
)

var _ sheets.Exporter = (*Client)(nil)

// Config selects the spreadsheet, its tabs and the service account. Tab
// names may contain "%d", replaced by the year of the exported summary.
type Config struct {
	SpreadsheetID   string
	ExpensesSheet   string
	SummarySheet    string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	summarySheet  string
	logger        *applog.Logger
}

// New creates a client authenticated with the configured service account.
// Extra options are appended after the credentials.
func New(ctx context.Context, cfg Config, logger *applog.Logger, opts ...goption.ClientOption) (*Client, error) {
	cred, err := credentialsOption(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg, logger, append([]goption.ClientOption{cred}, opts...)...)
}

// NewWithOptions creates a client from explicit API options, leaving
// authentication to the caller.
func NewWithOptions(ctx context.Context, cfg Config, logger *applog.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	if cfg.ExpensesSheet == "" {
		cfg.ExpensesSheet = "Expenses"
	}
	if cfg.SummarySheet == "" {
		cfg.SummarySheet = "Summary"
	}

	opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		expensesSheet: cfg.ExpensesSheet,
		summarySheet:  cfg.SummarySheet,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}, nil
}

// credentialsOption prefers inline JSON over a credentials file.
func credentialsOption(cfg Config) (goption.ClientOption, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)

	switch {
	case inline != "":
		return goption.WithCredentialsJSON([]byte(inline)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return goption.WithCredentialsJSON(data), nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Export clears both tabs and writes the snapshot into them.
func (c *Client) Export(ctx context.Context, snap sheets.Snapshot) error {
	year := snap.Summary.Period.Year()
	expensesTab := sheetName(c.expensesSheet, year)
	summaryTab := sheetName(c.summarySheet, year)

	if err := c.replace(ctx, expensesTab, sheets.ExpenseRows(snap)); err != nil {
		return err
	}
	if err := c.replace(ctx, summaryTab, sheets.SummaryRows(snap)); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Exported snapshot to Google Sheets",
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, len(snap.Expenses),
		"expenses_sheet", expensesTab,
		"summary_sheet", summaryTab)
	return nil
}

func (c *Client) replace(ctx context.Context, tab string, rows [][]any) error {
	quoted := quoteSheet(tab)

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoted, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %q: %w", tab, err)
	}

	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoted+"!A1", vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet %q: %w", tab, err)
	}
	return nil
}

func sheetName(pattern string, year int) string {
	if strings.Contains(pattern, "%d") {
		return fmt.Sprintf(pattern, year)
	}
	return pattern
}

// quoteSheet wraps a tab name for A1 notation, doubling embedded quotes.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
