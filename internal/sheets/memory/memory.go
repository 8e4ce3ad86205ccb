package memory

import (
	"context"
	"sync"

	ports "sitepay/internal/sheets"
)

// Ledger keeps exported rows in process. Used in development and tests.
type Ledger struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
	seen map[int64]struct{}
}

var _ ports.LedgerWriter = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{seen: make(map[int64]struct{})}
}

// AppendRows stores rows, skipping entries already present so redelivered
// messages do not duplicate lines.
func (l *Ledger) AppendRows(_ context.Context, rows []ports.LedgerRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range rows {
		if _, ok := l.seen[r.EntryID]; ok {
			continue
		}
		l.seen[r.EntryID] = struct{}{}
		l.rows = append(l.rows, r)
	}
	return nil
}

func (l *Ledger) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = nil
	l.seen = make(map[int64]struct{})
	return nil
}

// Rows returns a copy of the stored rows in append order.
func (l *Ledger) Rows() []ports.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ports.LedgerRow(nil), l.rows...)
}
