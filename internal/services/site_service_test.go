package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sitepay/internal/cache"
	"sitepay/internal/core"
	"sitepay/internal/storage"
)

var today = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu      sync.Mutex
	entries []core.Entry
	resets  int
	err     error
}

func (f *fakePublisher) PublishEntryRecorded(_ context.Context, e core.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return f.err
}

func (f *fakePublisher) PublishLedgerReset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.err
}

type fixture struct {
	svc  *SiteService
	repo *storage.SQLiteRepository
	pub  *fakePublisher
	lru  *cache.LRUCache[core.AllSitesTotal]
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	f := &fixture{repo: repo, pub: &fakePublisher{}, lru: cache.NewLRUCache[core.AllSitesTotal](16, time.Hour), now: today}
	f.svc = NewSiteService(repo, f.pub, f.lru).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) site(t *testing.T, name string) core.Site {
	t.Helper()
	site, err := f.svc.CreateSite(context.Background(), core.SiteInput{Name: name})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	return site
}

func sectionID(t *testing.T, d SiteDetail, name string) int64 {
	t.Helper()
	for _, s := range d.Sections {
		if s.Name == name {
			return s.ID
		}
	}
	t.Fatalf("section %s not found", name)
	return 0
}

func teamID(t *testing.T, d SiteDetail, name string) int64 {
	t.Helper()
	for _, tm := range d.Teams {
		if tm.Name == name {
			return tm.ID
		}
	}
	t.Fatalf("team %s not found", name)
	return 0
}

func TestCreateSiteBootstraps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	site := f.site(t, "  Riverside ")
	if site.Name != "Riverside" {
		t.Fatalf("name should be trimmed, got %q", site.Name)
	}

	d, err := f.svc.SiteDetail(ctx, site.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(d.Sections) != len(core.RequiredSections) || len(d.Teams) != len(core.DefaultTeams) {
		t.Fatalf("sections=%d teams=%d", len(d.Sections), len(d.Teams))
	}
	for i, s := range d.Sections {
		if s.Name != core.RequiredSections[i] {
			t.Fatalf("sections should be ordered by name, got %s at %d", s.Name, i)
		}
	}
	if !d.Summary.SectionPaymentTotal.IsZero() || d.Summary.LabourTotal != 0 {
		t.Fatalf("new site should have zero totals: %+v", d.Summary)
	}
}

func TestCreateSiteRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSite(context.Background(), core.SiteInput{Name: "   "})
	if !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	sites, _ := f.svc.ListSites(context.Background())
	if len(sites) != 0 {
		t.Fatalf("no site should be stored")
	}
}

func TestEnsureBootstrapIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	site := f.site(t, "A")

	for i := 0; i < 2; i++ {
		res, err := f.svc.EnsureBootstrap(ctx, site.ID)
		if err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
		if res.Changed() {
			t.Fatalf("bootstrap after create should add nothing, got %+v", res)
		}
	}
	sections, _ := f.repo.ListSections(ctx, site.ID)
	teams, _ := f.repo.ListTeams(ctx, site.ID)
	marker, _ := f.repo.HasCivilDetail(ctx, site.ID)
	if len(sections) != 7 || len(teams) != 4 || !marker {
		t.Fatalf("sections=%d teams=%d marker=%v", len(sections), len(teams), marker)
	}

	if _, err := f.svc.EnsureBootstrap(ctx, 404); !errors.Is(err, core.ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestEnsureBootstrapHealsPartialSite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	site, err := f.repo.CreateSite(ctx, core.SiteInput{Name: "Legacy"}, today)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.repo.CreateSection(ctx, site.ID, "tiles")
	_, _ = f.repo.CreateTeam(ctx, site.ID, "Own Crew")

	res, err := f.svc.EnsureBootstrap(ctx, site.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Sections != 6 || res.Teams != 0 || !res.CivilDetail {
		t.Fatalf("unexpected result %+v", res)
	}
	teams, _ := f.repo.ListTeams(ctx, site.ID)
	if len(teams) != 1 {
		t.Fatalf("existing teams must not be topped up, got %d", len(teams))
	}
}

func TestUpdateSectionsRecordsEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	site := f.site(t, "A")
	d, _ := f.svc.SiteDetail(ctx, site.ID)
	plumbing := sectionID(t, d, "plumbing")
	civil := sectionID(t, d, "civil")

	entries, err := f.svc.UpdateSections(ctx, site.ID, map[int64]SectionValues{
		plumbing: {LabourCount: 5, MaterialCount: 3, Payment: core.MoneyFromInt(250)},
		civil:    {Payment: core.MoneyFromInt(9999)},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected one entry per non-civil section, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Name() == core.CivilSection {
			t.Fatal("civil must not be recorded as a section entry")
		}
		if e.Date.String() != "2025-03-14" {
			t.Fatalf("entry should be dated today, got %s", e.Date)
		}
	}

	d, _ = f.svc.SiteDetail(ctx, site.ID)
	for _, s := range d.Sections {
		switch s.Name {
		case "plumbing":
			if s.LabourCount != 5 || s.MaterialCount != 3 || !s.Payment.Equal(core.MoneyFromInt(250)) {
				t.Fatalf("plumbing not updated: %+v", s)
			}
		case "civil":
			if !s.Payment.IsZero() {
				t.Fatalf("civil payment must follow teams, got %s", s.Payment)
			}
		default:
			if !s.Payment.IsZero() || s.LabourCount != 0 {
				t.Fatalf("absent fields should be zero: %+v", s)
			}
		}
	}

	stored, _ := f.repo.ListEntries(ctx, storage.EntryFilter{SiteID: site.ID, Name: "plumbing"})
	if len(stored) != 1 || stored[0].Section.LabourCount != 5 || !stored[0].Amount().Equal(core.MoneyFromInt(250)) {
		t.Fatalf("unexpected stored plumbing entries %+v", stored)
	}
	if len(f.pub.entries) != 6 {
		t.Fatalf("expected 6 published events, got %d", len(f.pub.entries))
	}
}

func TestUpdateUnknownSite(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.UpdateSections(context.Background(), 77, nil); !errors.Is(err, core.ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateTeams(context.Background(), 77, nil); !errors.Is(err, core.ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	site := f.site(t, "A")
	if _, err := f.svc.UpdateTeams(context.Background(), site.ID, nil); err != nil {
		t.Fatalf("write should succeed without the broker: %v", err)
	}
}

func TestRiversideScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	site := f.site(t, "Riverside")
	d, _ := f.svc.SiteDetail(ctx, site.ID)

	if _, err := f.svc.UpdateTeams(ctx, site.ID, map[int64]TeamValues{
		teamID(t, d, "Trichy Team"): {MasonPayment: core.MoneyFromInt(800), HelperPayment: core.MoneyFromInt(500)},
	}); err != nil {
		t.Fatalf("update teams: %v", err)
	}

	d, err := f.svc.SiteDetail(ctx, site.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Summary.CivilTeamTotal.Equal(core.MoneyFromInt(1300)) {
		t.Fatalf("civil team total = %s", d.Summary.CivilTeamTotal)
	}
	for _, s := range d.Sections {
		if s.IsCivil() && !s.Payment.Equal(core.MoneyFromInt(1300)) {
			t.Fatalf("civil section payment = %s", s.Payment)
		}
	}
	for _, tm := range d.Teams {
		if tm.Name == "Trichy Team" && !tm.TotalPayment().Equal(core.MoneyFromInt(1300)) {
			t.Fatalf("Trichy total = %s", tm.TotalPayment())
		}
	}

	r, _ := core.NewDateRange("2025-03-14", "2025-03-14")
	summary, err := f.svc.FilterEntries(ctx, site.ID, r)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Entries) != 1 || !summary.TeamTotal.Equal(core.MoneyFromInt(1300)) {
		t.Fatalf("zero-total teams should be filtered out: %+v", summary)
	}
}

func TestFilterEntriesInclusiveRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	site := f.site(t, "A")
	d, _ := f.svc.SiteDetail(ctx, site.ID)
	tiles := sectionID(t, d, "tiles")

	for _, day := range []int{9, 10, 15, 20, 21} {
		f.now = time.Date(2025, 1, day, 12, 0, 0, 0, time.UTC)
		if _, err := f.svc.UpdateSections(ctx, site.ID, map[int64]SectionValues{tiles: {Payment: core.MoneyFromInt(int64(day))}}); err != nil {
			t.Fatal(err)
		}
	}
	r, _ := core.NewDateRange("2025-01-10", "2025-01-20")
	got, err := f.svc.FilterEntries(ctx, site.ID, r)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != 3 || !got.SectionTotal.Equal(core.MoneyFromInt(45)) {
		t.Fatalf("entries=%d total=%s", len(got.Entries), got.SectionTotal)
	}
	if got.Entries[0].Date.String() != "2025-01-20" {
		t.Fatalf("newest first, got %s", got.Entries[0].Date)
	}

	if _, err := f.svc.FilterEntries(ctx, 999, r); !errors.Is(err, core.ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestFilterSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.site(t, "A")
	b := f.site(t, "B")
	da, _ := f.svc.SiteDetail(ctx, a.ID)
	db, _ := f.svc.SiteDetail(ctx, b.ID)

	_, _ = f.svc.UpdateSections(ctx, a.ID, map[int64]SectionValues{sectionID(t, da, "plumbing"): {Payment: core.MoneyFromInt(100)}})
	_, _ = f.svc.UpdateSections(ctx, b.ID, map[int64]SectionValues{sectionID(t, db, "plumbing"): {Payment: core.MoneyFromInt(30)}})
	_, _ = f.svc.UpdateTeams(ctx, a.ID, map[int64]TeamValues{teamID(t, da, "Kerala Team"): {MasonPayment: core.MoneyFromInt(70)}})

	view, err := f.svc.FilterSection(ctx, a.ID, "PLUMBING")
	if err != nil {
		t.Fatal(err)
	}
	if view.IsCivil || len(view.Entries) != 1 || !view.Total.Equal(core.MoneyFromInt(100)) {
		t.Fatalf("unexpected site view %+v", view)
	}

	all, err := f.svc.FilterSection(ctx, 0, "plumbing")
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Entries) != 2 || !all.Total.Equal(core.MoneyFromInt(130)) {
		t.Fatalf("unexpected global view %+v", all)
	}
	if all.SiteNames[a.ID] != "A" || all.SiteNames[b.ID] != "B" {
		t.Fatalf("global view should name sites, got %v", all.SiteNames)
	}
	if view.SiteNames != nil {
		t.Fatalf("site view should not carry site names, got %v", view.SiteNames)
	}

	civil, err := f.svc.FilterSection(ctx, a.ID, "civil")
	if err != nil {
		t.Fatal(err)
	}
	if !civil.IsCivil || len(civil.Teams.Teams) != 4 || !civil.Teams.Total.Equal(core.MoneyFromInt(70)) {
		t.Fatalf("unexpected civil view %+v", civil)
	}
}

func TestAllSitesTotalCurrentState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.site(t, "A")
	f.site(t, "B")
	da, _ := f.svc.SiteDetail(ctx, a.ID)

	_, _ = f.svc.UpdateSections(ctx, a.ID, map[int64]SectionValues{sectionID(t, da, "tiles"): {Payment: core.MoneyFromInt(60)}})
	_, _ = f.svc.UpdateTeams(ctx, a.ID, map[int64]TeamValues{teamID(t, da, "Basker Team"): {HelperPayment: core.MoneyFromInt(40)}})

	report, err := f.svc.AllSitesTotal(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Sites) != 1 || report.Sites[0].Site.Name != "A" {
		t.Fatalf("only A should be listed: %+v", report.Sites)
	}
	st := report.Sites[0]
	if !st.SectionTotal.Equal(core.MoneyFromInt(60)) || !st.CivilTotal.Equal(core.MoneyFromInt(40)) || !st.SiteTotal.Equal(core.MoneyFromInt(100)) {
		t.Fatalf("unexpected totals %+v", st)
	}
	if !report.GrandTotal.Equal(core.MoneyFromInt(100)) {
		t.Fatalf("grand total = %s", report.GrandTotal)
	}
}

func TestAllSitesTotalRangeAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.site(t, "A")
	da, _ := f.svc.SiteDetail(ctx, a.ID)
	misc := sectionID(t, da, "misc")

	f.now = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	_, _ = f.svc.UpdateSections(ctx, a.ID, map[int64]SectionValues{misc: {Payment: core.MoneyFromInt(10)}})
	f.now = time.Date(2025, 2, 5, 9, 0, 0, 0, time.UTC)
	_, _ = f.svc.UpdateSections(ctx, a.ID, map[int64]SectionValues{misc: {Payment: core.MoneyFromInt(20)}})

	r, _ := core.NewDateRange("2025-02-01", "2025-02-03")
	report, err := f.svc.AllSitesTotal(ctx, &r)
	if err != nil {
		t.Fatal(err)
	}
	if !report.GrandTotal.Equal(core.MoneyFromInt(10)) {
		t.Fatalf("range total = %s", report.GrandTotal)
	}
	if f.lru.Size() != 1 {
		t.Fatalf("report should be cached, size=%d", f.lru.Size())
	}

	f.now = time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC)
	_, _ = f.svc.UpdateSections(ctx, a.ID, map[int64]SectionValues{misc: {Payment: core.MoneyFromInt(5)}})
	if f.lru.Size() != 0 {
		t.Fatal("writes should purge cached totals")
	}
	report, _ = f.svc.AllSitesTotal(ctx, &r)
	if !report.GrandTotal.Equal(core.MoneyFromInt(15)) {
		t.Fatalf("range total after write = %s", report.GrandTotal)
	}
}

// writeOnMissCache runs onMiss the first time a lookup misses, standing in
// for a save that commits while a report is being computed.
type writeOnMissCache struct {
	*cache.LRUCache[core.AllSitesTotal]
	onMiss func()
	sets   int
}

func (c *writeOnMissCache) Get(key string) (core.AllSitesTotal, bool) {
	v, ok := c.LRUCache.Get(key)
	if !ok && c.onMiss != nil {
		hook := c.onMiss
		c.onMiss = nil
		hook()
	}
	return v, ok
}

func (c *writeOnMissCache) Set(key string, data core.AllSitesTotal) {
	c.sets++
	c.LRUCache.Set(key, data)
}

func TestAllSitesTotalNotCachedAcrossWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	totals := &writeOnMissCache{LRUCache: cache.NewLRUCache[core.AllSitesTotal](16, time.Hour)}
	f.svc = NewSiteService(f.repo, f.pub, totals).WithClock(func() time.Time { return f.now })

	a := f.site(t, "A")
	da, _ := f.svc.SiteDetail(ctx, a.ID)
	misc := sectionID(t, da, "misc")
	totals.onMiss = func() {
		if _, err := f.svc.UpdateSections(ctx, a.ID, map[int64]SectionValues{misc: {Payment: core.MoneyFromInt(30)}}); err != nil {
			t.Errorf("update: %v", err)
		}
	}

	if _, err := f.svc.AllSitesTotal(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if totals.sets != 0 || totals.Size() != 0 {
		t.Fatalf("report computed across a write must not be cached, sets=%d", totals.sets)
	}

	report, err := f.svc.AllSitesTotal(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !report.GrandTotal.Equal(core.MoneyFromInt(30)) {
		t.Fatalf("grand total = %s", report.GrandTotal)
	}
	if totals.sets != 1 {
		t.Fatalf("quiet computation should be cached, sets=%d", totals.sets)
	}
}

func TestSectionFilterAcrossSites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.site(t, "A")
	b := f.site(t, "B")
	da, _ := f.svc.SiteDetail(ctx, a.ID)
	db, _ := f.svc.SiteDetail(ctx, b.ID)

	_, _ = f.svc.UpdateSections(ctx, a.ID, map[int64]SectionValues{sectionID(t, da, "painting"): {Payment: core.MoneyFromInt(11)}})
	_, _ = f.svc.UpdateSections(ctx, b.ID, map[int64]SectionValues{sectionID(t, db, "painting"): {Payment: core.MoneyFromInt(22)}})
	_, _ = f.svc.UpdateTeams(ctx, b.ID, map[int64]TeamValues{teamID(t, db, "Mahesh Team"): {MasonPayment: core.MoneyFromInt(33)}})

	none, err := f.svc.SectionFilter(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(none.Sections) != len(core.RequiredSections) || len(none.Rows) != 0 {
		t.Fatalf("unexpected empty report %+v", none)
	}

	paint, _ := f.svc.SectionFilter(ctx, "painting", nil)
	if len(paint.Rows) != 2 || !paint.Total.Equal(core.MoneyFromInt(33)) {
		t.Fatalf("unexpected painting report %+v", paint)
	}

	civil, _ := f.svc.SectionFilter(ctx, "civil", nil)
	if len(civil.Rows) != 1 || civil.Rows[0].Section != CivilLabel || civil.Rows[0].Site.Name != "B" {
		t.Fatalf("unexpected civil report %+v", civil.Rows)
	}

	r, _ := core.NewDateRange("2024-01-01", "2024-12-31")
	empty, _ := f.svc.SectionFilter(ctx, "painting", &r)
	if len(empty.Rows) != 0 {
		t.Fatalf("range should exclude today's entries, got %d", len(empty.Rows))
	}
}

func TestResetAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.site(t, "A")
	da, _ := f.svc.SiteDetail(ctx, a.ID)
	_, _ = f.svc.UpdateSections(ctx, a.ID, map[int64]SectionValues{sectionID(t, da, "tiles"): {LabourCount: 2, Payment: core.MoneyFromInt(50)}})
	_, _ = f.svc.UpdateTeams(ctx, a.ID, map[int64]TeamValues{teamID(t, da, "Trichy Team"): {MasonPayment: core.MoneyFromInt(5)}})

	if _, err := f.svc.ResetAll(ctx, "reset"); !errors.Is(err, core.ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}

	stats, err := f.svc.ResetAll(ctx, ResetConfirmation)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 10 || stats.Sections != 7 || stats.Teams != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	d, _ := f.svc.SiteDetail(ctx, a.ID)
	if !d.Summary.SectionPaymentTotal.IsZero() || d.Summary.LabourTotal != 0 || !d.Summary.CivilTeamTotal.IsZero() {
		t.Fatalf("reset should zero current state: %+v", d.Summary)
	}
	entries, _ := f.repo.ListEntries(ctx, storage.EntryFilter{})
	if len(entries) != 0 {
		t.Fatalf("reset should delete entries, got %d", len(entries))
	}
	if f.pub.resets != 1 {
		t.Fatalf("expected one reset event, got %d", f.pub.resets)
	}
}
