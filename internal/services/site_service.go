package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"sitepay/internal/cache"
	"sitepay/internal/core"
	applog "sitepay/internal/log"
	"sitepay/internal/storage"
)

// Publisher announces recorded entries and resets. *amqp.Client satisfies it.
type Publisher interface {
	PublishEntryRecorded(ctx context.Context, e core.Entry) error
	PublishLedgerReset(ctx context.Context) error
}

// SiteService owns every operation on sites, their sections and teams, and
// the daily entry history. Writes go to SQLite first; events and cache
// invalidation follow the commit.
type SiteService struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
	totals    cache.Cache[core.AllSitesTotal]
	now       func() time.Time

	// generation counts invalidations; a report computed across one is not cached.
	generation atomic.Uint64
}

// NewSiteService wires the service. publisher and totals may be nil.
func NewSiteService(repo *storage.SQLiteRepository, publisher Publisher, totals cache.Cache[core.AllSitesTotal]) *SiteService {
	return &SiteService{
		storage:   repo,
		publisher: publisher,
		totals:    totals,
		now:       time.Now,
	}
}

// WithClock replaces the time source used to date entries.
func (s *SiteService) WithClock(now func() time.Time) *SiteService {
	s.now = now
	return s
}

func (s *SiteService) today() core.Date {
	return core.DateOf(s.now())
}

// CreateSite validates the input, stores the site and seeds its sections,
// teams and civil marker in the same transaction.
func (s *SiteService) CreateSite(ctx context.Context, in core.SiteInput) (core.Site, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Site{}, err
	}

	var site core.Site
	err := s.storage.WithTx(ctx, func(tx *storage.SQLiteRepository) error {
		var err error
		if site, err = tx.CreateSite(ctx, in, s.now()); err != nil {
			return err
		}
		_, err = ensureBootstrap(ctx, tx, site.ID)
		return err
	})
	if err != nil {
		return core.Site{}, fmt.Errorf("create site: %w", err)
	}
	s.invalidate(ctx)

	slog.InfoContext(ctx, "Site created",
		applog.FieldSiteID, site.ID,
		"name", site.Name,
		"location", site.Location)
	return site, nil
}

func (s *SiteService) ListSites(ctx context.Context) ([]core.Site, error) {
	return s.storage.ListSites(ctx)
}

// Ready pings the database.
func (s *SiteService) Ready(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func (s *SiteService) invalidate(ctx context.Context) {
	s.generation.Add(1)
	if s.totals == nil {
		return
	}
	s.totals.Purge()
	slog.DebugContext(ctx, "All-sites totals cache purged")
}

func (s *SiteService) publishEntries(ctx context.Context, entries []core.Entry) {
	if s.publisher == nil {
		return
	}
	for _, e := range entries {
		if err := s.publisher.PublishEntryRecorded(ctx, e); err != nil {
			// The worker's backlog scan exports it later.
			slog.WarnContext(ctx, "Failed to publish entry event",
				applog.FieldEntryID, e.ID,
				applog.FieldError, err)
		}
	}
}
