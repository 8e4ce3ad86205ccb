package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CivilSection is the placeholder section whose payment is derived from the
// site's civil teams.
const CivilSection = "civil"

// RequiredSections is the fixed set of sections every site carries.
var RequiredSections = []string{"carpenter", "civil", "electrical", "misc", "painting", "plumbing", "tiles"}

// DefaultTeams are the civil sub-crews created for a new site.
var DefaultTeams = []string{"Trichy Team", "Mahesh Team", "Basker Team", "Kerala Team"}

const (
	EntrySection EntryKind = "section"
	EntryTeam    EntryKind = "team"
)

type (
	EntryKind string

	Date struct {
		time.Time
	}

	Site struct {
		ID        int64
		Name      string
		Location  string
		CreatedAt time.Time
	}

	// SiteInput carries the fields a user submits when creating a site.
	SiteInput struct {
		Name     string `validate:"required,max=200"`
		Location string `validate:"max=200"`
	}

	Section struct {
		ID            int64
		SiteID        int64
		Name          string
		LabourCount   int
		MaterialCount int
		Payment       Money
	}

	CivilTeam struct {
		ID            int64
		SiteID        int64
		Name          string
		MasonPayment  Money
		HelperPayment Money
	}

	SectionSnapshot struct {
		Name          string
		LabourCount   int
		MaterialCount int
		Payment       Money
	}

	TeamSnapshot struct {
		Name          string
		MasonPayment  Money
		HelperPayment Money
		TotalPayment  Money
	}

	// Entry is an immutable record of one update. Exactly one of Section or
	// Team is set, matching Kind.
	Entry struct {
		ID      int64
		SiteID  int64
		Date    Date
		Kind    EntryKind
		Section *SectionSnapshot
		Team    *TeamSnapshot
	}
)

var (
	ErrSiteNotFound         = errors.New("site not found")
	ErrEntryNotFound        = errors.New("entry not found")
	ErrEmptyName            = errors.New("empty site name")
	ErrNameTooLong          = errors.New("site name too long (max 200 characters)")
	ErrLocationTooLong      = errors.New("location too long (max 200 characters)")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidEntry         = errors.New("invalid entry")
	ErrConfirmationRequired = errors.New("reset confirmation required")
)

var validate = validator.New()

func (in SiteInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		switch {
		case fe.Field() == "Name" && fe.Tag() == "required":
			return ErrEmptyName
		case fe.Field() == "Name":
			return ErrNameTooLong
		case fe.Field() == "Location":
			return ErrLocationTooLong
		}
	}
	return err
}

// Normalize trims the input so whitespace-only names fail validation.
func (in SiteInput) Normalize() SiteInput {
	return SiteInput{
		Name:     strings.TrimSpace(in.Name),
		Location: strings.TrimSpace(in.Location),
	}
}

// IsCivil reports whether the section is the derived civil placeholder.
func (s Section) IsCivil() bool {
	return s.Name == CivilSection
}

// TotalPayment is derived, never stored.
func (t CivilTeam) TotalPayment() Money {
	return t.MasonPayment.Add(t.HelperPayment)
}

// NewDate returns the calendar day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func NewSectionEntry(siteID int64, date Date, s Section) Entry {
	return Entry{
		SiteID: siteID,
		Date:   date,
		Kind:   EntrySection,
		Section: &SectionSnapshot{
			Name:          s.Name,
			LabourCount:   s.LabourCount,
			MaterialCount: s.MaterialCount,
			Payment:       s.Payment,
		},
	}
}

func NewTeamEntry(siteID int64, date Date, t CivilTeam) Entry {
	return Entry{
		SiteID: siteID,
		Date:   date,
		Kind:   EntryTeam,
		Team: &TeamSnapshot{
			Name:          t.Name,
			MasonPayment:  t.MasonPayment,
			HelperPayment: t.HelperPayment,
			TotalPayment:  t.TotalPayment(),
		},
	}
}

func (e Entry) Validate() error {
	if e.Date.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidEntry)
	}
	switch e.Kind {
	case EntrySection:
		if e.Section == nil || e.Team != nil {
			return fmt.Errorf("%w: section entry needs a section snapshot only", ErrInvalidEntry)
		}
	case EntryTeam:
		if e.Team == nil || e.Section != nil {
			return fmt.Errorf("%w: team entry needs a team snapshot only", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	return nil
}

// Name returns the section or team name of the entry.
func (e Entry) Name() string {
	switch {
	case e.Section != nil:
		return e.Section.Name
	case e.Team != nil:
		return e.Team.Name
	}
	return ""
}

// Amount is the payment for section entries and the total for team entries.
func (e Entry) Amount() Money {
	switch {
	case e.Section != nil:
		return e.Section.Payment
	case e.Team != nil:
		return e.Team.TotalPayment
	}
	return Money{}
}

// NormalizeSectionName lower-cases and trims a section name for matching.
func NormalizeSectionName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
