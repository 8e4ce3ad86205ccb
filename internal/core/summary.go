package core

import (
	"sort"
)

// DateRange is inclusive on both ends.
type DateRange struct {
	From Date
	To   Date
}

// NewDateRange parses both bounds; either one missing or malformed is an error.
func NewDateRange(from, to string) (DateRange, error) {
	f, err := ParseDate(from)
	if err != nil {
		return DateRange{}, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{From: f, To: t}, nil
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}

func (r DateRange) String() string {
	return r.From.String() + ".." + r.To.String()
}

// SiteSummary holds the current-state totals shown on a site's page.
type SiteSummary struct {
	SectionPaymentTotal Money
	LabourTotal         int
	MaterialTotal       int
	CivilTeamTotal      Money
}

// EntrySummary is an itemized list of entries with positive amounts and
// their sub-totals.
type EntrySummary struct {
	Entries      []Entry
	SectionTotal Money
	TeamTotal    Money
	GrandTotal   Money
}

// SiteTotal is one row of the cross-site report.
type SiteTotal struct {
	Site         Site
	SectionTotal Money
	CivilTotal   Money
	SiteTotal    Money
}

// AllSitesTotal is the cross-site report. GrandTotal covers every site, even
// the ones left out of Sites.
type AllSitesTotal struct {
	Range      *DateRange
	Sites      []SiteTotal
	GrandTotal Money
}

// TeamsView lists a site's civil teams with their derived totals.
type TeamsView struct {
	Teams []CivilTeam
	Total Money
}

// SectionRow is one line of the global section report.
type SectionRow struct {
	Site    Site
	Section string
	Date    Date
	Payment Money
}

// CivilTeamTotal sums the derived total of every team.
func CivilTeamTotal(teams []CivilTeam) Money {
	var total Money
	for _, t := range teams {
		total = total.Add(t.TotalPayment())
	}
	return total
}

// ApplyCivilTotal returns a copy of sections where the civil placeholder
// carries the teams' combined total.
func ApplyCivilTotal(sections []Section, teams []CivilTeam) []Section {
	civil := CivilTeamTotal(teams)
	out := make([]Section, len(sections))
	copy(out, sections)
	for i := range out {
		if out[i].IsCivil() {
			out[i].Payment = civil
		}
	}
	return out
}

// SummarizeSite computes the site page totals. The returned sections have the
// civil payment substituted.
func SummarizeSite(sections []Section, teams []CivilTeam) ([]Section, SiteSummary) {
	applied := ApplyCivilTotal(sections, teams)
	summary := SiteSummary{CivilTeamTotal: CivilTeamTotal(teams)}
	for _, s := range applied {
		summary.SectionPaymentTotal = summary.SectionPaymentTotal.Add(s.Payment)
		summary.LabourTotal += s.LabourCount
		summary.MaterialTotal += s.MaterialCount
	}
	return applied, summary
}

// SummarizeEntries keeps entries whose amount is strictly positive, orders
// them newest first and totals them per kind.
func SummarizeEntries(entries []Entry) EntrySummary {
	var out EntrySummary
	for _, e := range entries {
		if !e.Amount().IsPositive() {
			continue
		}
		out.Entries = append(out.Entries, e)
		switch e.Kind {
		case EntrySection:
			out.SectionTotal = out.SectionTotal.Add(e.Amount())
		case EntryTeam:
			out.TeamTotal = out.TeamTotal.Add(e.Amount())
		}
	}
	SortNewestFirst(out.Entries)
	out.GrandTotal = out.SectionTotal.Add(out.TeamTotal)
	return out
}

// SortNewestFirst orders by date descending, then by id descending.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date.Time) {
			return entries[i].Date.After(entries[j].Date.Time)
		}
		return entries[i].ID > entries[j].ID
	})
}

// Add accumulates a site into the report. Only sites with a positive total
// are listed; the grand total includes all of them.
func (a *AllSitesTotal) Add(t SiteTotal) {
	t.SiteTotal = t.SectionTotal.Add(t.CivilTotal)
	a.GrandTotal = a.GrandTotal.Add(t.SiteTotal)
	if t.SiteTotal.IsPositive() {
		a.Sites = append(a.Sites, t)
	}
}
