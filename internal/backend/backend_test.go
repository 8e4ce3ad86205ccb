package backend

import (
	"context"
	"testing"

	"sitepay/internal/config"
	"sitepay/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg, err := FromAppConfig(&config.Config{LedgerBackend: "memory"})
	if err != nil || cfg.Type != MemoryLedger {
		t.Fatalf("unexpected %+v %v", cfg, err)
	}
	if _, err := FromAppConfig(&config.Config{LedgerBackend: "sheets"}); err == nil {
		t.Fatal("sheets ledger without spreadsheet should fail")
	}
	if _, err := FromAppConfig(&config.Config{LedgerBackend: "csv"}); err == nil {
		t.Fatal("unknown ledger should fail")
	}
}

func TestNewLedgerMemory(t *testing.T) {
	l, err := NewLedger(context.Background(), Config{Type: MemoryLedger}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.(*memory.Ledger); !ok {
		t.Fatalf("expected memory ledger, got %T", l)
	}
}

func TestNewLedgerSheetsNeedsCredentials(t *testing.T) {
	_, err := NewLedger(context.Background(), Config{Type: SheetsLedger, SpreadsheetID: "abc"}, nil)
	if err == nil {
		t.Fatal("expected credentials error")
	}
}
