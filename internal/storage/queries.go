package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row models. Money columns are decimal strings.
type (
	SiteRow struct {
		ID        int64
		Name      string
		Location  string
		CreatedAt string
	}

	SectionRow struct {
		ID            int64
		SiteID        int64
		Name          string
		LabourCount   int64
		MaterialCount int64
		Payment       string
	}

	TeamRow struct {
		ID            int64
		SiteID        int64
		Name          string
		MasonPayment  string
		HelperPayment string
	}

	EntryRow struct {
		ID            int64
		SiteID        int64
		EntryDate     string
		Kind          string
		Name          string
		LabourCount   int64
		MaterialCount int64
		Payment       string
		MasonPayment  string
		HelperPayment string
		TotalPayment  string
		CreatedAt     string
		ExportedAt    sql.NullString
	}
)

const createSite = `INSERT INTO sites (name, location, created_at) VALUES (?, ?, ?)
RETURNING id, name, location, created_at`

type CreateSiteParams struct {
	Name      string
	Location  string
	CreatedAt string
}

func (q *Queries) CreateSite(ctx context.Context, arg CreateSiteParams) (SiteRow, error) {
	row := q.db.QueryRowContext(ctx, createSite, arg.Name, arg.Location, arg.CreatedAt)
	var i SiteRow
	err := row.Scan(&i.ID, &i.Name, &i.Location, &i.CreatedAt)
	return i, err
}

const getSite = `SELECT id, name, location, created_at FROM sites WHERE id = ?`

func (q *Queries) GetSite(ctx context.Context, id int64) (SiteRow, error) {
	row := q.db.QueryRowContext(ctx, getSite, id)
	var i SiteRow
	err := row.Scan(&i.ID, &i.Name, &i.Location, &i.CreatedAt)
	return i, err
}

const listSites = `SELECT id, name, location, created_at FROM sites ORDER BY created_at DESC, id DESC`

func (q *Queries) ListSites(ctx context.Context) ([]SiteRow, error) {
	rows, err := q.db.QueryContext(ctx, listSites)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SiteRow
	for rows.Next() {
		var i SiteRow
		if err := rows.Scan(&i.ID, &i.Name, &i.Location, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteSite = `DELETE FROM sites WHERE id = ?`

func (q *Queries) DeleteSite(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSite, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listSections = `SELECT id, site_id, name, labour_count, material_count, payment
FROM site_sections WHERE site_id = ? ORDER BY name`

func (q *Queries) ListSections(ctx context.Context, siteID int64) ([]SectionRow, error) {
	rows, err := q.db.QueryContext(ctx, listSections, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SectionRow
	for rows.Next() {
		var i SectionRow
		if err := rows.Scan(&i.ID, &i.SiteID, &i.Name, &i.LabourCount, &i.MaterialCount, &i.Payment); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listAllSections = `SELECT id, site_id, name, labour_count, material_count, payment
FROM site_sections ORDER BY site_id, name`

func (q *Queries) ListAllSections(ctx context.Context) ([]SectionRow, error) {
	rows, err := q.db.QueryContext(ctx, listAllSections)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SectionRow
	for rows.Next() {
		var i SectionRow
		if err := rows.Scan(&i.ID, &i.SiteID, &i.Name, &i.LabourCount, &i.MaterialCount, &i.Payment); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createSection = `INSERT INTO site_sections (site_id, name) VALUES (?, ?)
RETURNING id, site_id, name, labour_count, material_count, payment`

func (q *Queries) CreateSection(ctx context.Context, siteID int64, name string) (SectionRow, error) {
	row := q.db.QueryRowContext(ctx, createSection, siteID, name)
	var i SectionRow
	err := row.Scan(&i.ID, &i.SiteID, &i.Name, &i.LabourCount, &i.MaterialCount, &i.Payment)
	return i, err
}

const updateSection = `UPDATE site_sections
SET labour_count = ?, material_count = ?, payment = ?
WHERE id = ? AND site_id = ?`

type UpdateSectionParams struct {
	ID            int64
	SiteID        int64
	LabourCount   int64
	MaterialCount int64
	Payment       string
}

func (q *Queries) UpdateSection(ctx context.Context, arg UpdateSectionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateSection, arg.LabourCount, arg.MaterialCount, arg.Payment, arg.ID, arg.SiteID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listSectionNames = `SELECT DISTINCT name FROM site_sections ORDER BY name`

func (q *Queries) ListSectionNames(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listSectionNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	return items, rows.Err()
}

const listTeams = `SELECT id, site_id, name, mason_payment, helper_payment
FROM civil_teams WHERE site_id = ? ORDER BY name`

func (q *Queries) ListTeams(ctx context.Context, siteID int64) ([]TeamRow, error) {
	rows, err := q.db.QueryContext(ctx, listTeams, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TeamRow
	for rows.Next() {
		var i TeamRow
		if err := rows.Scan(&i.ID, &i.SiteID, &i.Name, &i.MasonPayment, &i.HelperPayment); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listAllTeams = `SELECT id, site_id, name, mason_payment, helper_payment
FROM civil_teams ORDER BY site_id, name`

func (q *Queries) ListAllTeams(ctx context.Context) ([]TeamRow, error) {
	rows, err := q.db.QueryContext(ctx, listAllTeams)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TeamRow
	for rows.Next() {
		var i TeamRow
		if err := rows.Scan(&i.ID, &i.SiteID, &i.Name, &i.MasonPayment, &i.HelperPayment); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createTeam = `INSERT INTO civil_teams (site_id, name) VALUES (?, ?)
RETURNING id, site_id, name, mason_payment, helper_payment`

func (q *Queries) CreateTeam(ctx context.Context, siteID int64, name string) (TeamRow, error) {
	row := q.db.QueryRowContext(ctx, createTeam, siteID, name)
	var i TeamRow
	err := row.Scan(&i.ID, &i.SiteID, &i.Name, &i.MasonPayment, &i.HelperPayment)
	return i, err
}

const updateTeam = `UPDATE civil_teams SET mason_payment = ?, helper_payment = ?
WHERE id = ? AND site_id = ?`

type UpdateTeamParams struct {
	ID            int64
	SiteID        int64
	MasonPayment  string
	HelperPayment string
}

func (q *Queries) UpdateTeam(ctx context.Context, arg UpdateTeamParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTeam, arg.MasonPayment, arg.HelperPayment, arg.ID, arg.SiteID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countCivilDetails = `SELECT COUNT(*) FROM civil_details WHERE site_id = ?`

func (q *Queries) CountCivilDetails(ctx context.Context, siteID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCivilDetails, siteID).Scan(&n)
	return n, err
}

const createCivilDetail = `INSERT INTO civil_details (site_id) VALUES (?)`

func (q *Queries) CreateCivilDetail(ctx context.Context, siteID int64) error {
	_, err := q.db.ExecContext(ctx, createCivilDetail, siteID)
	return err
}

const insertEntry = `INSERT INTO daily_entries (
    site_id, entry_date, kind, name, labour_count, material_count,
    payment, mason_payment, helper_payment, total_payment, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type InsertEntryParams struct {
	SiteID        int64
	EntryDate     string
	Kind          string
	Name          string
	LabourCount   int64
	MaterialCount int64
	Payment       string
	MasonPayment  string
	HelperPayment string
	TotalPayment  string
	CreatedAt     string
}

func (q *Queries) InsertEntry(ctx context.Context, arg InsertEntryParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertEntry,
		arg.SiteID, arg.EntryDate, arg.Kind, arg.Name, arg.LabourCount, arg.MaterialCount,
		arg.Payment, arg.MasonPayment, arg.HelperPayment, arg.TotalPayment, arg.CreatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const entryColumns = `id, site_id, entry_date, kind, name, labour_count, material_count,
payment, mason_payment, helper_payment, total_payment, created_at, exported_at`

func scanEntry(s interface{ Scan(...any) error }) (EntryRow, error) {
	var i EntryRow
	err := s.Scan(&i.ID, &i.SiteID, &i.EntryDate, &i.Kind, &i.Name, &i.LabourCount, &i.MaterialCount,
		&i.Payment, &i.MasonPayment, &i.HelperPayment, &i.TotalPayment, &i.CreatedAt, &i.ExportedAt)
	return i, err
}

const getEntry = `SELECT ` + entryColumns + ` FROM daily_entries WHERE id = ?`

func (q *Queries) GetEntry(ctx context.Context, id int64) (EntryRow, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getEntry, id))
}

// Empty string and zero arguments disable the matching condition.
const listEntries = `SELECT ` + entryColumns + ` FROM daily_entries
WHERE (? = 0 OR site_id = ?)
  AND (? = '' OR entry_date >= ?)
  AND (? = '' OR entry_date <= ?)
  AND (? = '' OR kind = ?)
  AND (? = '' OR name = ? COLLATE NOCASE)
ORDER BY entry_date DESC, id DESC`

type ListEntriesParams struct {
	SiteID int64
	From   string
	To     string
	Kind   string
	Name   string
}

func (q *Queries) ListEntries(ctx context.Context, arg ListEntriesParams) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listEntries,
		arg.SiteID, arg.SiteID,
		arg.From, arg.From,
		arg.To, arg.To,
		arg.Kind, arg.Kind,
		arg.Name, arg.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EntryRow
	for rows.Next() {
		i, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listUnexportedEntries = `SELECT ` + entryColumns + ` FROM daily_entries
WHERE exported_at IS NULL ORDER BY id LIMIT ?`

func (q *Queries) ListUnexportedEntries(ctx context.Context, limit int64) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listUnexportedEntries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EntryRow
	for rows.Next() {
		i, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markEntryExported = `UPDATE daily_entries SET exported_at = ? WHERE id = ? AND exported_at IS NULL`

func (q *Queries) MarkEntryExported(ctx context.Context, id int64, at string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markEntryExported, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const resetSections = `UPDATE site_sections SET labour_count = 0, material_count = 0, payment = '0'`

func (q *Queries) ResetSections(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, resetSections)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const resetTeams = `UPDATE civil_teams SET mason_payment = '0', helper_payment = '0'`

func (q *Queries) ResetTeams(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, resetTeams)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAllEntries = `DELETE FROM daily_entries`

func (q *Queries) DeleteAllEntries(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAllEntries)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
