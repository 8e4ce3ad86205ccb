package services

import (
	"context"
	"log/slog"

	"sitepay/internal/core"
	applog "sitepay/internal/log"
	"sitepay/internal/storage"
)

// CivilLabel names team entries in the cross-site section report.
const CivilLabel = "Civil"

// SiteDetail is everything the site page shows.
type SiteDetail struct {
	Site     core.Site
	Sections []core.Section
	Teams    []core.CivilTeam
	Summary  core.SiteSummary
}

// SectionView answers a single-section filter. Civil gets the team table;
// any other section gets its positive entries.
type SectionView struct {
	Name    string
	IsCivil bool
	Teams   core.TeamsView
	Entries []core.Entry
	Total   core.Money
	// SiteNames is set when the view spans every site, keyed by site id.
	SiteNames map[int64]string
}

// SectionReport is the cross-site section report.
type SectionReport struct {
	Sections []string
	Selected string
	Range    *core.DateRange
	Rows     []core.SectionRow
	Total    core.Money
}

// SiteDetail seeds anything missing and returns the site with the civil
// section's payment replaced by its teams' total.
func (s *SiteService) SiteDetail(ctx context.Context, siteID int64) (SiteDetail, error) {
	if _, err := s.EnsureBootstrap(ctx, siteID); err != nil {
		return SiteDetail{}, err
	}
	site, err := s.storage.GetSite(ctx, siteID)
	if err != nil {
		return SiteDetail{}, err
	}
	sections, err := s.storage.ListSections(ctx, siteID)
	if err != nil {
		return SiteDetail{}, err
	}
	teams, err := s.storage.ListTeams(ctx, siteID)
	if err != nil {
		return SiteDetail{}, err
	}
	applied, summary := core.SummarizeSite(sections, teams)
	return SiteDetail{Site: site, Sections: applied, Teams: teams, Summary: summary}, nil
}

// FilterEntries lists the site's entries inside r with a positive amount.
func (s *SiteService) FilterEntries(ctx context.Context, siteID int64, r core.DateRange) (core.EntrySummary, error) {
	if _, err := s.storage.GetSite(ctx, siteID); err != nil {
		return core.EntrySummary{}, err
	}
	entries, err := s.storage.ListEntries(ctx, storage.EntryFilter{SiteID: siteID, Range: &r})
	if err != nil {
		return core.EntrySummary{}, err
	}
	summary := core.SummarizeEntries(entries)
	slog.DebugContext(ctx, "Entries filtered",
		applog.FieldSiteID, siteID,
		applog.FieldFromDate, r.From.String(),
		applog.FieldToDate, r.To.String(),
		applog.FieldCount, len(summary.Entries))
	return summary, nil
}

// FilterSection reports one section of a site, or of every site when
// siteID is zero. Name matching ignores case.
func (s *SiteService) FilterSection(ctx context.Context, siteID int64, name string) (SectionView, error) {
	name = core.NormalizeSectionName(name)
	if siteID != 0 {
		if _, err := s.storage.GetSite(ctx, siteID); err != nil {
			return SectionView{}, err
		}
	}

	view := SectionView{Name: name, IsCivil: name == core.CivilSection}
	if siteID == 0 {
		sites, err := s.storage.ListSites(ctx)
		if err != nil {
			return SectionView{}, err
		}
		view.SiteNames = make(map[int64]string, len(sites))
		for _, site := range sites {
			view.SiteNames[site.ID] = site.Name
		}
	}
	if view.IsCivil {
		var teams []core.CivilTeam
		var err error
		if siteID != 0 {
			teams, err = s.storage.ListTeams(ctx, siteID)
		} else {
			teams, err = s.storage.ListAllTeams(ctx)
		}
		if err != nil {
			return SectionView{}, err
		}
		view.Teams = core.TeamsView{Teams: teams, Total: core.CivilTeamTotal(teams)}
		view.Total = view.Teams.Total
		return view, nil
	}

	if name == "" {
		return view, nil
	}
	entries, err := s.storage.ListEntries(ctx, storage.EntryFilter{SiteID: siteID, Kind: core.EntrySection, Name: name})
	if err != nil {
		return SectionView{}, err
	}
	summary := core.SummarizeEntries(entries)
	view.Entries, view.Total = summary.Entries, summary.SectionTotal
	return view, nil
}

func totalsKey(r *core.DateRange) string {
	if r == nil {
		return "current"
	}
	return r.String()
}

// AllSitesTotal totals every site. Without a range it uses the stored
// section payments plus team totals; with a range it sums entries inside
// it. Sites whose total is not positive are left out of the list but still
// count towards the grand total.
func (s *SiteService) AllSitesTotal(ctx context.Context, r *core.DateRange) (core.AllSitesTotal, error) {
	key := totalsKey(r)
	gen := s.generation.Load()
	if s.totals != nil {
		if cached, ok := s.totals.Get(key); ok {
			return cached, nil
		}
	}

	sites, err := s.storage.ListSites(ctx)
	if err != nil {
		return core.AllSitesTotal{}, err
	}
	sectionTotals := make(map[int64]core.Money, len(sites))
	civilTotals := make(map[int64]core.Money, len(sites))

	if r == nil {
		sections, err := s.storage.ListAllSections(ctx)
		if err != nil {
			return core.AllSitesTotal{}, err
		}
		for _, sec := range sections {
			sectionTotals[sec.SiteID] = sectionTotals[sec.SiteID].Add(sec.Payment)
		}
		teams, err := s.storage.ListAllTeams(ctx)
		if err != nil {
			return core.AllSitesTotal{}, err
		}
		for _, t := range teams {
			civilTotals[t.SiteID] = civilTotals[t.SiteID].Add(t.TotalPayment())
		}
	} else {
		entries, err := s.storage.ListEntries(ctx, storage.EntryFilter{Range: r})
		if err != nil {
			return core.AllSitesTotal{}, err
		}
		for _, e := range entries {
			switch e.Kind {
			case core.EntrySection:
				sectionTotals[e.SiteID] = sectionTotals[e.SiteID].Add(e.Amount())
			case core.EntryTeam:
				civilTotals[e.SiteID] = civilTotals[e.SiteID].Add(e.Amount())
			}
		}
	}

	report := core.AllSitesTotal{Range: r}
	for _, site := range sites {
		report.Add(core.SiteTotal{
			Site:         site,
			SectionTotal: sectionTotals[site.ID],
			CivilTotal:   civilTotals[site.ID],
		})
	}

	if s.totals != nil && s.generation.Load() == gen {
		s.totals.Set(key, report)
	}
	return report, nil
}

// SectionFilter lists positive payments of one section across every site,
// optionally restricted to r. Civil lists team entries labelled Civil.
func (s *SiteService) SectionFilter(ctx context.Context, name string, r *core.DateRange) (SectionReport, error) {
	names, err := s.storage.ListSectionNames(ctx)
	if err != nil {
		return SectionReport{}, err
	}
	report := SectionReport{Sections: names, Selected: core.NormalizeSectionName(name), Range: r}
	if report.Selected == "" {
		return report, nil
	}

	filter := storage.EntryFilter{Range: r, Kind: core.EntrySection, Name: report.Selected}
	if report.Selected == core.CivilSection {
		filter.Kind, filter.Name = core.EntryTeam, ""
	}
	entries, err := s.storage.ListEntries(ctx, filter)
	if err != nil {
		return SectionReport{}, err
	}

	sites, err := s.storage.ListSites(ctx)
	if err != nil {
		return SectionReport{}, err
	}
	byID := make(map[int64]core.Site, len(sites))
	for _, site := range sites {
		byID[site.ID] = site
	}

	summary := core.SummarizeEntries(entries)
	for _, e := range summary.Entries {
		label := e.Name()
		if e.Kind == core.EntryTeam {
			label = CivilLabel
		}
		report.Rows = append(report.Rows, core.SectionRow{
			Site:    byID[e.SiteID],
			Section: label,
			Date:    e.Date,
			Payment: e.Amount(),
		})
	}
	report.Total = summary.GrandTotal
	return report, nil
}
