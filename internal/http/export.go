package http

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"sitepay/internal/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const exportSheet = "All sites"

// writeAllSitesWorkbook writes the all-sites report as a one-sheet workbook:
// a header row, one row per listed site and a grand total row.
func writeAllSitesWorkbook(w io.Writer, report core.AllSitesTotal) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"Site", "Location", "Section total", "Civil total", "Site total"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, st := range report.Sites {
		values := []any{st.Site.Name, st.Site.Location, st.SectionTotal.Float(), st.CivilTotal.Float(), st.SiteTotal.Float()}
		if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("write site %d: %w", st.Site.ID, err)
		}
		row++
	}

	total := []any{"Grand total", "", "", "", report.GrandTotal.Float()}
	if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &total); err != nil {
		return fmt.Errorf("write grand total: %w", err)
	}
	if report.Range != nil {
		label := []any{"Range", report.Range.From.String(), report.Range.To.String()}
		if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row+2), &label); err != nil {
			return fmt.Errorf("write range: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func exportFilename(report core.AllSitesTotal) string {
	if report.Range == nil {
		return "all-sites-total.xlsx"
	}
	return fmt.Sprintf("all-sites-total_%s_%s.xlsx", report.Range.From, report.Range.To)
}
