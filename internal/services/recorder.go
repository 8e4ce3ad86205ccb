package services

import (
	"context"
	"fmt"
	"log/slog"

	"sitepay/internal/core"
	applog "sitepay/internal/log"
	"sitepay/internal/storage"
)

// SectionValues are the submitted figures for one section.
type SectionValues struct {
	LabourCount   int
	MaterialCount int
	Payment       core.Money
}

// TeamValues are the submitted payments for one civil team.
type TeamValues struct {
	MasonPayment  core.Money
	HelperPayment core.Money
}

// UpdateSections overwrites every non-civil section of the site with the
// values keyed by section id (missing ids become zero) and appends one
// section entry per section dated today. The batch is atomic.
func (s *SiteService) UpdateSections(ctx context.Context, siteID int64, values map[int64]SectionValues) ([]core.Entry, error) {
	today := s.today()
	var recorded []core.Entry

	err := s.storage.WithTx(ctx, func(tx *storage.SQLiteRepository) error {
		if _, err := tx.GetSite(ctx, siteID); err != nil {
			return err
		}
		sections, err := tx.ListSections(ctx, siteID)
		if err != nil {
			return err
		}
		for _, sec := range sections {
			if sec.IsCivil() {
				continue
			}
			v := values[sec.ID]
			sec.LabourCount, sec.MaterialCount, sec.Payment = v.LabourCount, v.MaterialCount, v.Payment
			if err := tx.UpdateSection(ctx, sec); err != nil {
				return err
			}
			e, err := tx.InsertEntry(ctx, core.NewSectionEntry(siteID, today, sec), s.now())
			if err != nil {
				return err
			}
			recorded = append(recorded, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update sections of site %d: %w", siteID, err)
	}

	s.afterRecord(ctx, siteID, recorded)
	return recorded, nil
}

// UpdateTeams overwrites the mason and helper payment of every team of the
// site (missing ids become zero) and appends one team entry per team.
func (s *SiteService) UpdateTeams(ctx context.Context, siteID int64, values map[int64]TeamValues) ([]core.Entry, error) {
	today := s.today()
	var recorded []core.Entry

	err := s.storage.WithTx(ctx, func(tx *storage.SQLiteRepository) error {
		if _, err := tx.GetSite(ctx, siteID); err != nil {
			return err
		}
		teams, err := tx.ListTeams(ctx, siteID)
		if err != nil {
			return err
		}
		for _, team := range teams {
			v := values[team.ID]
			team.MasonPayment, team.HelperPayment = v.MasonPayment, v.HelperPayment
			if err := tx.UpdateTeam(ctx, team); err != nil {
				return err
			}
			e, err := tx.InsertEntry(ctx, core.NewTeamEntry(siteID, today, team), s.now())
			if err != nil {
				return err
			}
			recorded = append(recorded, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update civil teams of site %d: %w", siteID, err)
	}

	s.afterRecord(ctx, siteID, recorded)
	return recorded, nil
}

func (s *SiteService) afterRecord(ctx context.Context, siteID int64, recorded []core.Entry) {
	s.invalidate(ctx)
	s.publishEntries(ctx, recorded)

	var total core.Money
	for _, e := range recorded {
		total = total.Add(e.Amount())
	}
	fields := applog.NewFields().WithOperation(applog.OpUpdate).WithSite(siteID)
	fields[applog.FieldCount] = len(recorded)
	fields[applog.FieldAmount] = total.String()
	fields[applog.FieldEntryDate] = s.today().String()
	slog.InfoContext(ctx, "Daily entries recorded", fields.ToSlice()...)
}
