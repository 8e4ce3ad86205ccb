package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	ports "sitepay/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options selects the spreadsheet and the service account credentials.
// CredentialsJSON wins over CredentialsFile.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client appends exported entries to a Google Sheets tab.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	headerOnce sync.Once
	headerErr  error
}

var _ ports.LedgerWriter = (*Client)(nil)

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets ledger ready", "sheet", opts.SheetName)
	return newWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

func newWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if sheetName == "" {
		sheetName = "Entries"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func loadCredentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// AppendRows writes rows after the last used row, creating the header on first use.
func (c *Client) AppendRows(ctx context.Context, rows []ports.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.ensureHeader(ctx); err != nil {
		return err
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.columns(), &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %d rows to %s: %w", len(rows), c.sheetName, err)
	}
	return nil
}

// Clear removes every data row and keeps the header.
func (c *Client) Clear(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A2:%s", c.sheetName, lastColumn())
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) ensureHeader(ctx context.Context) error {
	c.headerOnce.Do(func() {
		rng := fmt.Sprintf("%s!A1:%s1", c.sheetName, lastColumn())
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			c.headerErr = fmt.Errorf("read header %s: %w", rng, err)
			return
		}
		if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
			return
		}
		header := make([]any, len(ports.Header))
		for i, h := range ports.Header {
			header[i] = h
		}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			c.headerErr = fmt.Errorf("write header %s: %w", rng, err)
		}
	})
	return c.headerErr
}

func (c *Client) columns() string {
	return fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn())
}

func lastColumn() string {
	return string(rune('A' + len(ports.Header) - 1))
}
