// Package google mirrors the transaction log into a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"pockets/internal/core"
	"pockets/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
	balanceSheet  string
}

var _ store.Snapshotter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID string
	LedgerSheet   string
	BalanceSheet  string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

// NewFromConfig creates a Sheets client from explicit settings.
func NewFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, strings.TrimSpace(cfg.CredentialsJSON), strings.TrimSpace(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, cfg.LedgerSheet, cfg.BalanceSheet), nil
}

// New wraps an existing Sheets service. Empty sheet names select the defaults.
func New(svc *gsheet.Service, spreadsheetID, ledgerSheet, balanceSheet string) *Client {
	ledgerSheet = strings.TrimSpace(ledgerSheet)
	if ledgerSheet == "" {
		ledgerSheet = "Ledger"
	}
	balanceSheet = strings.TrimSpace(balanceSheet)
	if balanceSheet == "" {
		balanceSheet = "Balances"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, ledgerSheet: ledgerSheet, balanceSheet: balanceSheet}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

// Load implements store.Snapshotter
func (c *Client) Load(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1:%s", c.ledgerSheet, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseRows(resp.Values)
}

// SaveAll implements store.Snapshotter. The sheet is rewritten in one update.
func (c *Client) SaveAll(ctx context.Context, log []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	return c.replace(ctx, c.ledgerSheet, encodeRows(log))
}

// WriteBalances rewrites the balances sheet with one row per pocket and goal.
func (c *Client) WriteBalances(ctx context.Context, pockets, goals map[string]core.Money) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	return c.replace(ctx, c.balanceSheet, encodeBalances(pockets, goals))
}

// replace overwrites sheet from A1 with a single update. Rows beyond the new
// content are blanked in the same request, so a failed write leaves the
// previous content in place.
func (c *Client) replace(ctx context.Context, sheet string, values [][]any) error {
	used, err := c.usedRows(ctx, sheet)
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: padRows(values, used, len(header))}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	slog.DebugContext(ctx, "Sheet rewritten", "sheet", sheet, "rows", len(values), "blanked", len(vr.Values)-len(values))
	return nil
}

// usedRows counts the rows currently holding data in sheet.
func (c *Client) usedRows(ctx context.Context, sheet string) (int, error) {
	rng := fmt.Sprintf("%s!A:%s", sheet, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	return len(resp.Values), nil
}

// padRows appends blank rows of width cells until values has n rows.
func padRows(values [][]any, n, width int) [][]any {
	for len(values) < n {
		blank := make([]any, width)
		for i := range blank {
			blank[i] = ""
		}
		values = append(values, blank)
	}
	return values
}

func encodeBalances(pockets, goals map[string]core.Money) [][]any {
	out := [][]any{{"Type", "ID", "Balance"}}
	add := func(kind string, m map[string]core.Money) {
		ids := make([]string, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, []any{kind, id, m[id].Cents})
		}
	}
	add("pocket", pockets)
	add("goal", goals)
	return out
}
