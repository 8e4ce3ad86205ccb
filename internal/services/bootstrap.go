package services

import (
	"context"
	"fmt"
	"log/slog"

	"sitepay/internal/core"
	applog "sitepay/internal/log"
	"sitepay/internal/storage"
)

// BootstrapResult counts what EnsureBootstrap had to create.
type BootstrapResult struct {
	Sections    int
	Teams       int
	CivilDetail bool
}

func (r BootstrapResult) Changed() bool {
	return r.Sections > 0 || r.Teams > 0 || r.CivilDetail
}

// EnsureBootstrap makes sure the site has every required section, the
// default civil teams and its civil marker. It only adds rows, so running
// it again is harmless.
func (s *SiteService) EnsureBootstrap(ctx context.Context, siteID int64) (BootstrapResult, error) {
	var res BootstrapResult
	err := s.storage.WithTx(ctx, func(tx *storage.SQLiteRepository) error {
		if _, err := tx.GetSite(ctx, siteID); err != nil {
			return err
		}
		var err error
		res, err = ensureBootstrap(ctx, tx, siteID)
		return err
	})
	if err != nil {
		return BootstrapResult{}, err
	}
	if res.Changed() {
		s.invalidate(ctx)
	}
	return res, nil
}

func ensureBootstrap(ctx context.Context, tx *storage.SQLiteRepository, siteID int64) (BootstrapResult, error) {
	var res BootstrapResult

	sections, err := tx.ListSections(ctx, siteID)
	if err != nil {
		return res, err
	}
	have := make(map[string]bool, len(sections))
	for _, sec := range sections {
		have[sec.Name] = true
	}
	for _, name := range core.RequiredSections {
		if have[name] {
			continue
		}
		if _, err := tx.CreateSection(ctx, siteID, name); err != nil {
			return res, err
		}
		res.Sections++
	}

	// Default teams are seeded only into a site without any team, so renamed
	// or removed crews are not recreated.
	teams, err := tx.ListTeams(ctx, siteID)
	if err != nil {
		return res, err
	}
	if len(teams) == 0 {
		for _, name := range core.DefaultTeams {
			if _, err := tx.CreateTeam(ctx, siteID, name); err != nil {
				return res, err
			}
			res.Teams++
		}
	}

	ok, err := tx.HasCivilDetail(ctx, siteID)
	if err != nil {
		return res, err
	}
	if !ok {
		if err := tx.CreateCivilDetail(ctx, siteID); err != nil {
			return res, fmt.Errorf("bootstrap site %d: %w", siteID, err)
		}
		res.CivilDetail = true
	}

	if res.Changed() {
		slog.InfoContext(ctx, "Site bootstrapped",
			applog.FieldSiteID, siteID,
			"sections_created", res.Sections,
			"teams_created", res.Teams,
			"civil_detail_created", res.CivilDetail)
	}
	return res, nil
}
