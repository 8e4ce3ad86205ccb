package sheets

import (
	"context"

	"sitepay/internal/core"
)

// LedgerRow is one exported entry as it appears in the external ledger.
type LedgerRow struct {
	EntryID  int64
	SiteID   int64
	SiteName string
	Date     string
	Kind     core.EntryKind
	Name     string
	Labour   int
	Material int
	Mason    core.Money
	Helper   core.Money
	Amount   core.Money
}

// LedgerWriter is the outbound port the export worker writes to.
type LedgerWriter interface {
	AppendRows(ctx context.Context, rows []LedgerRow) error
	// Clear removes every exported row, mirroring a data reset.
	Clear(ctx context.Context) error
}

// NewLedgerRow flattens an entry of the given site.
func NewLedgerRow(site core.Site, e core.Entry) LedgerRow {
	row := LedgerRow{
		EntryID:  e.ID,
		SiteID:   site.ID,
		SiteName: site.Name,
		Date:     e.Date.String(),
		Kind:     e.Kind,
		Name:     e.Name(),
		Amount:   e.Amount(),
	}
	if e.Section != nil {
		row.Labour = e.Section.LabourCount
		row.Material = e.Section.MaterialCount
	}
	if e.Team != nil {
		row.Mason = e.Team.MasonPayment
		row.Helper = e.Team.HelperPayment
	}
	return row
}

// Header is the column layout shared by the ledger adapters.
var Header = []string{"Entry ID", "Date", "Site", "Kind", "Name", "Labour", "Material", "Mason", "Helper", "Amount"}

// Values renders the row in Header order.
func (r LedgerRow) Values() []any {
	return []any{
		r.EntryID, r.Date, r.SiteName, string(r.Kind), r.Name,
		r.Labour, r.Material, r.Mason.Float(), r.Helper.Float(), r.Amount.Float(),
	}
}
