// Package backend builds the ledger the export worker writes to.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"sitepay/internal/config"
	"sitepay/internal/sheets"
	gsheet "sitepay/internal/sheets/google"
	"sitepay/internal/sheets/memory"
)

type LedgerType string

const (
	MemoryLedger LedgerType = config.LedgerMemory
	SheetsLedger LedgerType = config.LedgerSheets
)

func (t LedgerType) IsValid() bool {
	return t == MemoryLedger || t == SheetsLedger
}

type Config struct {
	Type            LedgerType
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// FromAppConfig extracts the ledger settings.
func FromAppConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Type:            LedgerType(c.LedgerBackend),
		SpreadsheetID:   c.GoogleSpreadsheetID,
		SheetName:       c.GoogleSheetName,
		CredentialsJSON: c.GoogleServiceAccountJSON,
		CredentialsFile: c.GoogleServiceAccountFile,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid ledger type: %q", c.Type)
	}
	if c.Type == SheetsLedger && c.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet id is required for sheets ledger")
	}
	return nil
}

// NewLedger returns the writer selected by cfg.
func NewLedger(ctx context.Context, cfg Config, logger *slog.Logger) (sheets.LedgerWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case SheetsLedger:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.SpreadsheetID,
			SheetName:       cfg.SheetName,
			CredentialsJSON: cfg.CredentialsJSON,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets ledger: %w", err)
		}
		logger.Info("Initialized Google Sheets ledger", "sheet", cfg.SheetName)
		return cli, nil
	default:
		logger.Info("Initialized in-memory ledger")
		return memory.New(), nil
	}
}
