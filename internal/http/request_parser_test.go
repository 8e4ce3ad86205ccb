package http

import (
	"errors"
	"net/url"
	"testing"

	"sitepay/internal/core"
)

func TestParseRequiredRange(t *testing.T) {
	cases := []struct {
		name    string
		query   url.Values
		wantErr error
	}{
		{"both", url.Values{"from_date": {"2025-01-01"}, "to_date": {"2025-01-31"}}, nil},
		{"missing to", url.Values{"from_date": {"2025-01-01"}}, errMissingDates},
		{"blank from", url.Values{"from_date": {" "}, "to_date": {"2025-01-31"}}, errMissingDates},
		{"malformed", url.Values{"from_date": {"01/01/2025"}, "to_date": {"2025-01-31"}}, core.ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequiredRange(tc.query)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if ParseOptionalRange(url.Values{"from_date": {"2025-01-01"}}) != nil {
		t.Fatal("a half range means no range")
	}
	if r := ParseOptionalRange(url.Values{"from_date": {"2025-01-01"}, "to_date": {"2025-01-02"}}); r == nil || r.To.String() != "2025-01-02" {
		t.Fatalf("unexpected range %v", r)
	}
}

func TestParseSectionForm(t *testing.T) {
	form := url.Values{
		"labour_3":   {"5"},
		"material_3": {"3"},
		"payment_3":  {"250.5"},
		"payment_4":  {"abc"},
		"labour_x":   {"9"},
		"payment_":   {"1"},
		"other":      {"1"},
	}
	got := ParseSectionForm(form)
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %v", got)
	}
	if v := got[3]; v.LabourCount != 5 || v.MaterialCount != 3 || v.Payment.String() != "250.50" {
		t.Fatalf("section 3 = %+v", v)
	}
	if !got[4].Payment.IsZero() {
		t.Fatalf("invalid payment should coerce to zero")
	}
}

func TestParseTeamForm(t *testing.T) {
	got := ParseTeamForm(url.Values{
		"mason_payment_7":  {"800"},
		"helper_payment_7": {"500"},
		"helper_payment_8": {"-20"},
	})
	if !got[7].MasonPayment.Equal(core.MoneyFromInt(800)) || !got[7].HelperPayment.Equal(core.MoneyFromInt(500)) {
		t.Fatalf("team 7 = %+v", got[7])
	}
	if !got[8].HelperPayment.Equal(core.MoneyFromInt(-20)) {
		t.Fatalf("negative amounts are kept, got %s", got[8].HelperPayment)
	}
}

func TestHelpers(t *testing.T) {
	if got := formatRupees(core.MoneyFromInt(1300)); got != "₹ 1300.00" {
		t.Fatalf("formatRupees = %q", got)
	}
	if got := titleCase("civil work"); got != "Civil Work" {
		t.Fatalf("titleCase = %q", got)
	}
	if got := sanitizeInput("  a\x00b\tc "); got != "ab\tc" {
		t.Fatalf("sanitizeInput = %q", got)
	}
}
