// Package sheets appends per-user dashboard snapshots to a Google
// Sheets spreadsheet, giving users an exportable history of their
// monthly figures.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finledger/internal/core"
)

// SummaryWriter is the port the export worker writes through.
type SummaryWriter interface {
	AppendSummary(ctx context.Context, userID string, s core.MonthlySummary) error
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ SummaryWriter = (*Exporter)(nil)

// NewFromEnv builds an Exporter from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_NAME
// (default "Summaries").
func NewFromEnv(ctx context.Context) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Summaries"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	saJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	saFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if saJSON == "" && saFile == "" {
		saFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case saJSON != "":
		return gsheet.NewService(ctx, goption.WithCredentialsJSON([]byte(saJSON)), goption.WithScopes(gsheet.SpreadsheetsScope))
	case saFile != "":
		return gsheet.NewService(ctx, goption.WithCredentialsFile(saFile), goption.WithScopes(gsheet.SpreadsheetsScope))
	default:
		// Fall back to application default credentials.
		return gsheet.NewService(ctx, goption.WithScopes(gsheet.SpreadsheetsScope))
	}
}

// AppendSummary appends one snapshot row: timestamp, user, net worth,
// monthly income, monthly expense, and the expense breakdown as JSON.
func (e *Exporter) AppendSummary(ctx context.Context, userID string, s core.MonthlySummary) error {
	breakdown := make(map[string]string, len(s.CategoryBreakdown))
	for name, amount := range s.CategoryBreakdown {
		breakdown[name] = core.FormatCents(amount.Cents)
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	row := []any{
		time.Now().Format(time.RFC3339),
		userID,
		core.FormatCents(s.NetWorth.Cents),
		core.FormatCents(s.MonthlyIncome.Cents),
		core.FormatCents(s.MonthlyExpense.Cents),
		string(breakdownJSON),
	}

	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err = e.svc.Spreadsheets.Values.
		Append(e.spreadsheetID, e.sheetName+"!A:F", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append summary row: %w", err)
	}

	slog.InfoContext(ctx, "Summary exported to sheet",
		"user_id", userID,
		"sheet", e.sheetName,
		"net_worth_cents", s.NetWorth.Cents)

	return nil
}
