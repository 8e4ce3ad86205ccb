package services

import (
	"context"
	"fmt"
	"log/slog"

	"sitepay/internal/core"
	applog "sitepay/internal/log"
	"sitepay/internal/storage"
)

// ResetConfirmation must be supplied verbatim to ResetAll.
const ResetConfirmation = "RESET"

// ResetAll zeroes every section and team and deletes the whole entry
// history. It cannot be undone.
func (s *SiteService) ResetAll(ctx context.Context, confirm string) (storage.ResetStats, error) {
	if confirm != ResetConfirmation {
		return storage.ResetStats{}, core.ErrConfirmationRequired
	}

	var stats storage.ResetStats
	err := s.storage.WithTx(ctx, func(tx *storage.SQLiteRepository) error {
		var err error
		stats, err = tx.ResetAll(ctx)
		return err
	})
	if err != nil {
		return storage.ResetStats{}, fmt.Errorf("reset all data: %w", err)
	}
	s.invalidate(ctx)

	slog.WarnContext(ctx, "All data reset",
		applog.FieldOperation, applog.OpReset,
		"sections_zeroed", stats.Sections,
		"teams_zeroed", stats.Teams,
		"entries_deleted", stats.Entries)

	if s.publisher != nil {
		if err := s.publisher.PublishLedgerReset(ctx); err != nil {
			slog.WarnContext(ctx, "Failed to publish reset event", applog.FieldError, err)
		}
	}
	return stats, nil
}
