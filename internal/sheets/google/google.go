package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.SnapshotWriter = (*Client)(nil)

// NewClient creates a Sheets client using service account credentials.
func NewClient(ctx context.Context, spreadsheetID, sheetName, credentialsFile string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if credentialsFile == "" {
		return nil, errors.New("missing service account credentials file")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsFile(credentialsFile),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendSnapshot appends one row per balance for the given period. Amounts
// are written as decimal strings so the sheet shows them as currency.
func (c *Client) AppendSnapshot(ctx context.Context, userID string, p core.Period, balances []core.EnrichedBalance) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(balances) == 0 {
		return "", nil
	}

	values := make([][]any, 0, len(balances))
	for _, b := range balances {
		over := ""
		if b.OverBudget {
			over = "over"
		}
		values = append(values, []any{
			p.String(),
			userID,
			b.CategoryName,
			b.Limit.String(),
			b.Spent.String(),
			b.Remaining.String(),
			over,
		})
	}

	rng := fmt.Sprintf("%s!A:G", c.sheetName)
	vr := &gsheet.ValueRange{Values: values}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append snapshot to sheet %s: %w", c.sheetName, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Appended period snapshot",
		"user_id", userID,
		"period", p.String(),
		"rows", len(values),
		"sheets_ref", ref)

	return ref, nil
}
