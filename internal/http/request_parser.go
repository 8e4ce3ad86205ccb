package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sitepay/internal/core"
	"sitepay/internal/services"
)

var errMissingDates = errors.New("both dates are required")

// ParseRequiredRange reads from_date and to_date. Either one missing yields
// errMissingDates; a malformed one yields core.ErrInvalidDate.
func ParseRequiredRange(query url.Values) (core.DateRange, error) {
	from := strings.TrimSpace(query.Get("from_date"))
	to := strings.TrimSpace(query.Get("to_date"))
	if from == "" || to == "" {
		return core.DateRange{}, errMissingDates
	}
	return core.NewDateRange(from, to)
}

// ParseOptionalRange returns a range only when both dates are present and
// valid; anything else means "no date filter".
func ParseOptionalRange(query url.Values) *core.DateRange {
	r, err := ParseRequiredRange(query)
	if err != nil {
		return nil
	}
	return &r
}

// ParseSectionForm collects labour_<id>, material_<id> and payment_<id>
// fields. Unparseable numbers become zero.
func ParseSectionForm(form url.Values) map[int64]services.SectionValues {
	values := make(map[int64]services.SectionValues)
	for key, vs := range form {
		field, id, ok := splitFieldID(key, "labour_", "material_", "payment_")
		if !ok || len(vs) == 0 {
			continue
		}
		v := values[id]
		raw := sanitizeInput(vs[0])
		switch field {
		case "labour_":
			v.LabourCount = core.ParseCount(raw)
		case "material_":
			v.MaterialCount = core.ParseCount(raw)
		case "payment_":
			v.Payment = core.ParseAmount(raw)
		}
		values[id] = v
	}
	return values
}

// ParseTeamForm collects mason_payment_<id> and helper_payment_<id> fields.
func ParseTeamForm(form url.Values) map[int64]services.TeamValues {
	values := make(map[int64]services.TeamValues)
	for key, vs := range form {
		field, id, ok := splitFieldID(key, "mason_payment_", "helper_payment_")
		if !ok || len(vs) == 0 {
			continue
		}
		v := values[id]
		amount := core.ParseAmount(sanitizeInput(vs[0]))
		if field == "mason_payment_" {
			v.MasonPayment = amount
		} else {
			v.HelperPayment = amount
		}
		values[id] = v
	}
	return values
}

func splitFieldID(key string, prefixes ...string) (string, int64, bool) {
	for _, p := range prefixes {
		if !strings.HasPrefix(key, p) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(key, p), 10, 64)
		if err != nil || id <= 0 {
			return "", 0, false
		}
		return p, id, true
	}
	return "", 0, false
}

// siteIDParam reads the {siteID} route parameter.
func siteIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "siteID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
