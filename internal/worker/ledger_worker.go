package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sitepay/internal/amqp"
	"sitepay/internal/core"
	"sitepay/internal/sheets"
	"sitepay/internal/storage"
)

// Consumer delivers queued messages until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// LedgerWorker copies recorded entries into the external ledger. Messages
// give low latency; the periodic backlog scan catches anything they missed.
// Ledger writes are serialised: the Sheets ledger appends blindly, so the
// exported check, the append and the mark must not interleave.
type LedgerWorker struct {
	mu        sync.Mutex
	storage   *storage.SQLiteRepository
	ledger    sheets.LedgerWriter
	batchSize int
	now       func() time.Time
}

func NewLedgerWorker(repo *storage.SQLiteRepository, ledger sheets.LedgerWriter, batchSize int) *LedgerWorker {
	if batchSize < 1 {
		batchSize = 50
	}
	return &LedgerWorker{storage: repo, ledger: ledger, batchSize: batchSize, now: time.Now}
}

// HandleMessage processes one queue message.
func (w *LedgerWorker) HandleMessage(ctx context.Context, msg *amqp.Message) error {
	switch msg.Type {
	case amqp.TypeLedgerReset:
		w.mu.Lock()
		defer w.mu.Unlock()
		if err := w.ledger.Clear(ctx); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
		slog.InfoContext(ctx, "Ledger cleared after reset", "message_id", msg.ID)
		return nil
	case amqp.TypeEntryRecorded:
		return w.exportEntry(ctx, msg.EntryID)
	default:
		slog.WarnContext(ctx, "Ignoring message of unknown type", "type", msg.Type, "message_id", msg.ID)
		return nil
	}
}

func (w *LedgerWorker) exportEntry(ctx context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	exported, err := w.storage.IsEntryExported(ctx, id)
	if errors.Is(err, core.ErrEntryNotFound) {
		// Deleted by a reset before we got to it.
		slog.InfoContext(ctx, "Entry no longer exists, skipping", "entry_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if exported {
		slog.DebugContext(ctx, "Entry already exported", "entry_id", id)
		return nil
	}

	e, err := w.storage.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	site, err := w.storage.GetSite(ctx, e.SiteID)
	if err != nil {
		return err
	}
	if err := w.ledger.AppendRows(ctx, []sheets.LedgerRow{sheets.NewLedgerRow(site, e)}); err != nil {
		return fmt.Errorf("append entry %d: %w", id, err)
	}
	if _, err := w.storage.MarkEntryExported(ctx, id, w.now()); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Entry exported", "entry_id", id, "site_id", e.SiteID, "name", e.Name())
	return nil
}

// ExportPending exports one batch of entries that are still unexported and
// returns how many were written.
func (w *LedgerWorker) ExportPending(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := w.storage.ListUnexportedEntries(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	sites := make(map[int64]core.Site)
	rows := make([]sheets.LedgerRow, 0, len(entries))
	for _, e := range entries {
		site, ok := sites[e.SiteID]
		if !ok {
			if site, err = w.storage.GetSite(ctx, e.SiteID); err != nil {
				return 0, err
			}
			sites[e.SiteID] = site
		}
		rows = append(rows, sheets.NewLedgerRow(site, e))
	}

	if err := w.ledger.AppendRows(ctx, rows); err != nil {
		return 0, fmt.Errorf("append backlog: %w", err)
	}
	now := w.now()
	for _, e := range entries {
		if _, err := w.storage.MarkEntryExported(ctx, e.ID, now); err != nil {
			return 0, err
		}
	}
	slog.InfoContext(ctx, "Exported pending entries", "count", len(entries))
	return len(entries), nil
}

// Run consumes messages (when consumer is non-nil) and scans the backlog
// every interval until ctx is cancelled or either side fails.
func (w *LedgerWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			return consumer.Consume(ctx, w.HandleMessage)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := w.ExportPending(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Backlog export failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
