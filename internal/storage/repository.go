package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sitepay/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	inTx    bool
}

// EntryFilter narrows ListEntries. Zero fields match everything.
type EntryFilter struct {
	SiteID int64
	Range  *core.DateRange
	Kind   core.EntryKind
	Name   string
}

// ResetStats reports how many rows a reset touched.
type ResetStats struct {
	Sections int64
	Teams    int64
	Entries  int64
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Schema first, on its own connection.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers; queries inside a tx must use the tx repository.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil && !r.inTx {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn against a repository bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Nested
// calls reuse the outer transaction.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(tx *SQLiteRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txRepo := &SQLiteRepository{db: r.db, queries: r.queries.WithTx(tx), inTx: true}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateSite(ctx context.Context, in core.SiteInput, now time.Time) (core.Site, error) {
	row, err := r.queries.CreateSite(ctx, CreateSiteParams{
		Name:      in.Name,
		Location:  in.Location,
		CreatedAt: now.UTC().Format(timeLayout),
	})
	if err != nil {
		return core.Site{}, fmt.Errorf("create site: %w", err)
	}
	slog.InfoContext(ctx, "Site saved to SQLite", "site_id", row.ID, "name", row.Name)
	return toSite(row), nil
}

func (r *SQLiteRepository) GetSite(ctx context.Context, id int64) (core.Site, error) {
	row, err := r.queries.GetSite(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Site{}, fmt.Errorf("site %d: %w", id, core.ErrSiteNotFound)
	}
	if err != nil {
		return core.Site{}, fmt.Errorf("get site: %w", err)
	}
	return toSite(row), nil
}

func (r *SQLiteRepository) ListSites(ctx context.Context) ([]core.Site, error) {
	rows, err := r.queries.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	sites := make([]core.Site, len(rows))
	for i, row := range rows {
		sites[i] = toSite(row)
	}
	return sites, nil
}

// DeleteSite removes a site and, through cascading keys, everything it owns.
func (r *SQLiteRepository) DeleteSite(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteSite(ctx, id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("site %d: %w", id, core.ErrSiteNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListSections(ctx context.Context, siteID int64) ([]core.Section, error) {
	rows, err := r.queries.ListSections(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return toSections(rows)
}

// ListAllSections returns every site's sections ordered by site then name.
func (r *SQLiteRepository) ListAllSections(ctx context.Context) ([]core.Section, error) {
	rows, err := r.queries.ListAllSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all sections: %w", err)
	}
	return toSections(rows)
}

func (r *SQLiteRepository) CreateSection(ctx context.Context, siteID int64, name string) (core.Section, error) {
	row, err := r.queries.CreateSection(ctx, siteID, name)
	if err != nil {
		return core.Section{}, fmt.Errorf("create section %s: %w", name, err)
	}
	return toSection(row)
}

func (r *SQLiteRepository) UpdateSection(ctx context.Context, s core.Section) error {
	n, err := r.queries.UpdateSection(ctx, UpdateSectionParams{
		ID:            s.ID,
		SiteID:        s.SiteID,
		LabourCount:   int64(s.LabourCount),
		MaterialCount: int64(s.MaterialCount),
		Payment:       s.Payment.String(),
	})
	if err != nil {
		return fmt.Errorf("update section %d: %w", s.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update section %d: %w", s.ID, sql.ErrNoRows)
	}
	return nil
}

func (r *SQLiteRepository) ListSectionNames(ctx context.Context) ([]string, error) {
	names, err := r.queries.ListSectionNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list section names: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) ListTeams(ctx context.Context, siteID int64) ([]core.CivilTeam, error) {
	rows, err := r.queries.ListTeams(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return toTeams(rows)
}

func (r *SQLiteRepository) ListAllTeams(ctx context.Context) ([]core.CivilTeam, error) {
	rows, err := r.queries.ListAllTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all teams: %w", err)
	}
	return toTeams(rows)
}

func (r *SQLiteRepository) CreateTeam(ctx context.Context, siteID int64, name string) (core.CivilTeam, error) {
	row, err := r.queries.CreateTeam(ctx, siteID, name)
	if err != nil {
		return core.CivilTeam{}, fmt.Errorf("create team %s: %w", name, err)
	}
	return toTeam(row)
}

func (r *SQLiteRepository) UpdateTeam(ctx context.Context, t core.CivilTeam) error {
	n, err := r.queries.UpdateTeam(ctx, UpdateTeamParams{
		ID:            t.ID,
		SiteID:        t.SiteID,
		MasonPayment:  t.MasonPayment.String(),
		HelperPayment: t.HelperPayment.String(),
	})
	if err != nil {
		return fmt.Errorf("update team %d: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update team %d: %w", t.ID, sql.ErrNoRows)
	}
	return nil
}

func (r *SQLiteRepository) HasCivilDetail(ctx context.Context, siteID int64) (bool, error) {
	n, err := r.queries.CountCivilDetails(ctx, siteID)
	if err != nil {
		return false, fmt.Errorf("count civil details: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CreateCivilDetail(ctx context.Context, siteID int64) error {
	if err := r.queries.CreateCivilDetail(ctx, siteID); err != nil {
		return fmt.Errorf("create civil detail: %w", err)
	}
	return nil
}

// InsertEntry appends an entry and returns it with its id set.
func (r *SQLiteRepository) InsertEntry(ctx context.Context, e core.Entry, now time.Time) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	arg := InsertEntryParams{
		SiteID:        e.SiteID,
		EntryDate:     e.Date.String(),
		Kind:          string(e.Kind),
		Name:          e.Name(),
		Payment:       "0",
		MasonPayment:  "0",
		HelperPayment: "0",
		TotalPayment:  "0",
		CreatedAt:     now.UTC().Format(timeLayout),
	}
	switch e.Kind {
	case core.EntrySection:
		arg.LabourCount = int64(e.Section.LabourCount)
		arg.MaterialCount = int64(e.Section.MaterialCount)
		arg.Payment = e.Section.Payment.String()
	case core.EntryTeam:
		arg.MasonPayment = e.Team.MasonPayment.String()
		arg.HelperPayment = e.Team.HelperPayment.String()
		arg.TotalPayment = e.Team.TotalPayment.String()
	}
	id, err := r.queries.InsertEntry(ctx, arg)
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	e.ID = id
	return e, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	row, err := r.queries.GetEntry(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("entry %d: %w", id, core.ErrEntryNotFound)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return toEntry(row)
}

// ListEntries returns matching entries newest first.
func (r *SQLiteRepository) ListEntries(ctx context.Context, f EntryFilter) ([]core.Entry, error) {
	arg := ListEntriesParams{SiteID: f.SiteID, Kind: string(f.Kind), Name: strings.TrimSpace(f.Name)}
	if f.Range != nil {
		arg.From = f.Range.From.String()
		arg.To = f.Range.To.String()
	}
	rows, err := r.queries.ListEntries(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return toEntries(rows)
}

// ListUnexportedEntries returns up to limit entries not yet copied to the ledger, oldest first.
func (r *SQLiteRepository) ListUnexportedEntries(ctx context.Context, limit int) ([]core.Entry, error) {
	rows, err := r.queries.ListUnexportedEntries(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unexported entries: %w", err)
	}
	return toEntries(rows)
}

// MarkEntryExported stamps the entry. It reports false when the entry was
// already exported or no longer exists.
func (r *SQLiteRepository) MarkEntryExported(ctx context.Context, id int64, at time.Time) (bool, error) {
	n, err := r.queries.MarkEntryExported(ctx, id, at.UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("mark entry exported: %w", err)
	}
	return n > 0, nil
}

// ResetAll zeroes every section and team and deletes all entries. Callers
// wanting atomicity run it inside WithTx.
func (r *SQLiteRepository) ResetAll(ctx context.Context) (ResetStats, error) {
	var stats ResetStats
	var err error
	if stats.Sections, err = r.queries.ResetSections(ctx); err != nil {
		return ResetStats{}, fmt.Errorf("reset sections: %w", err)
	}
	if stats.Teams, err = r.queries.ResetTeams(ctx); err != nil {
		return ResetStats{}, fmt.Errorf("reset teams: %w", err)
	}
	if stats.Entries, err = r.queries.DeleteAllEntries(ctx); err != nil {
		return ResetStats{}, fmt.Errorf("delete entries: %w", err)
	}
	return stats, nil
}

func toSite(row SiteRow) core.Site {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		slog.Warn("Unparseable site timestamp", "site_id", row.ID, "value", row.CreatedAt)
	}
	return core.Site{ID: row.ID, Name: row.Name, Location: row.Location, CreatedAt: created}
}

func toSection(row SectionRow) (core.Section, error) {
	payment, err := core.ParseMoney(row.Payment)
	if err != nil {
		return core.Section{}, fmt.Errorf("section %d payment %q: %w", row.ID, row.Payment, err)
	}
	return core.Section{
		ID:            row.ID,
		SiteID:        row.SiteID,
		Name:          row.Name,
		LabourCount:   int(row.LabourCount),
		MaterialCount: int(row.MaterialCount),
		Payment:       payment,
	}, nil
}

func toSections(rows []SectionRow) ([]core.Section, error) {
	out := make([]core.Section, 0, len(rows))
	for _, row := range rows {
		s, err := toSection(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func toTeam(row TeamRow) (core.CivilTeam, error) {
	mason, err := core.ParseMoney(row.MasonPayment)
	if err != nil {
		return core.CivilTeam{}, fmt.Errorf("team %d mason payment %q: %w", row.ID, row.MasonPayment, err)
	}
	helper, err := core.ParseMoney(row.HelperPayment)
	if err != nil {
		return core.CivilTeam{}, fmt.Errorf("team %d helper payment %q: %w", row.ID, row.HelperPayment, err)
	}
	return core.CivilTeam{ID: row.ID, SiteID: row.SiteID, Name: row.Name, MasonPayment: mason, HelperPayment: helper}, nil
}

func toTeams(rows []TeamRow) ([]core.CivilTeam, error) {
	out := make([]core.CivilTeam, 0, len(rows))
	for _, row := range rows {
		t, err := toTeam(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func toEntry(row EntryRow) (core.Entry, error) {
	date, err := core.ParseDate(row.EntryDate)
	if err != nil {
		return core.Entry{}, fmt.Errorf("entry %d: %w", row.ID, err)
	}
	e := core.Entry{ID: row.ID, SiteID: row.SiteID, Date: date, Kind: core.EntryKind(row.Kind)}
	switch e.Kind {
	case core.EntrySection:
		payment, err := core.ParseMoney(row.Payment)
		if err != nil {
			return core.Entry{}, fmt.Errorf("entry %d payment: %w", row.ID, err)
		}
		e.Section = &core.SectionSnapshot{
			Name:          row.Name,
			LabourCount:   int(row.LabourCount),
			MaterialCount: int(row.MaterialCount),
			Payment:       payment,
		}
	case core.EntryTeam:
		var snap core.TeamSnapshot
		snap.Name = row.Name
		for _, f := range []struct {
			dst *core.Money
			src string
		}{
			{&snap.MasonPayment, row.MasonPayment},
			{&snap.HelperPayment, row.HelperPayment},
			{&snap.TotalPayment, row.TotalPayment},
		} {
			if *f.dst, err = core.ParseMoney(f.src); err != nil {
				return core.Entry{}, fmt.Errorf("entry %d team amount %q: %w", row.ID, f.src, err)
			}
		}
		e.Team = &snap
	default:
		return core.Entry{}, fmt.Errorf("entry %d: %w: kind %q", row.ID, core.ErrInvalidEntry, row.Kind)
	}
	return e, nil
}

func toEntries(rows []EntryRow) ([]core.Entry, error) {
	out := make([]core.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := toEntry(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// IsEntryExported reports whether the entry already reached the ledger.
func (r *SQLiteRepository) IsEntryExported(ctx context.Context, id int64) (bool, error) {
	row, err := r.queries.GetEntry(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("entry %d: %w", id, core.ErrEntryNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("get entry: %w", err)
	}
	return row.ExportedAt.Valid, nil
}
