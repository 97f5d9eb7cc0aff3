// Package mirror streams recorded expenses into a Google Sheet, one row
// per record. The mirror is append-only and best-effort: the sheet is a
// human-readable copy, never the source of truth.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"studyspend/internal/core"
)

// RowAppender writes one expense row for an owner.
type RowAppender interface {
	AppendRow(ctx context.Context, ownerID string, e core.Expense) error
}

// SheetsClient appends to a single worksheet of one spreadsheet.
type SheetsClient struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ RowAppender = (*SheetsClient)(nil)

// NewSheetsClient builds a client from service account credentials.
// credentialsJSON may be empty, in which case GOOGLE_APPLICATION_CREDENTIALS
// is read from disk.
func NewSheetsClient(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte) (*SheetsClient, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		sheetName = "Expenses"
	}

	if len(credentialsJSON) == 0 {
		path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		if path == "" {
			return nil, errors.New("missing service account credentials")
		}
		var err error
		credentialsJSON, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendRow appends Date, Description, Category, Amount, Notes, Owner.
func (c *SheetsClient) AppendRow(ctx context.Context, ownerID string, e core.Expense) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{{
		e.Date.String(),
		e.Description,
		string(e.Category),
		core.FormatCents(e.Amount.Cents),
		e.Notes,
		ownerID,
	}}}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	return nil
}
