package http

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"sitepay/internal/core"
	"sitepay/internal/services"
)

func (s *Server) handleFilterEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := siteIDParam(r)
	if !ok {
		NewResponse().Status(http.StatusNotFound).Fragment("<p>Site not found.</p>").Write(w)
		return
	}
	rng, err := ParseRequiredRange(r.URL.Query())
	switch {
	case errors.Is(err, errMissingDates):
		NewResponse().Fragment("<p>Please select both dates.</p>").Write(w)
		return
	case err != nil:
		NewResponse().Fragment("<p>Please enter valid dates.</p>").Write(w)
		return
	}

	summary, err := s.sites.FilterEntries(r.Context(), id, rng)
	switch {
	case errors.Is(err, core.ErrSiteNotFound):
		NewResponse().Status(http.StatusNotFound).Fragment("<p>Site not found.</p>").Write(w)
		return
	case err != nil:
		s.fragmentError(w, r, "Failed to filter entries", err)
		return
	}
	s.fragment(w, r, "entries_fragment.html", summary)
}

func (s *Server) handleFilterSection(w http.ResponseWriter, r *http.Request) {
	id, ok := siteIDParam(r)
	if !ok {
		NewResponse().Status(http.StatusNotFound).Fragment("<p>Site not found.</p>").Write(w)
		return
	}
	s.filterSection(w, r, id)
}

func (s *Server) handleFilterSectionAll(w http.ResponseWriter, r *http.Request) {
	s.filterSection(w, r, 0)
}

func (s *Server) filterSection(w http.ResponseWriter, r *http.Request, siteID int64) {
	name := sanitizeInput(r.URL.Query().Get("section"))
	if name == "" {
		NewResponse().Fragment("<p>Please select a section.</p>").Write(w)
		return
	}
	view, err := s.sites.FilterSection(r.Context(), siteID, name)
	switch {
	case errors.Is(err, core.ErrSiteNotFound):
		NewResponse().Status(http.StatusNotFound).Fragment("<p>Site not found.</p>").Write(w)
		return
	case err != nil:
		s.fragmentError(w, r, "Failed to filter section", err)
		return
	}
	s.fragment(w, r, "section_fragment.html", view)
}

type allSitesPage struct {
	Report      core.AllSitesTotal
	From, To    string
	ExportQuery string
}

func (s *Server) handleAllSitesTotal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng := ParseOptionalRange(q)
	report, err := s.sites.AllSitesTotal(r.Context(), rng)
	if err != nil {
		s.serverError(w, r, "Failed to total sites", err)
		return
	}
	data := allSitesPage{Report: report, From: q.Get("from_date"), To: q.Get("to_date")}
	if rng != nil {
		data.ExportQuery = "?" + url.Values{"from_date": {rng.From.String()}, "to_date": {rng.To.String()}}.Encode()
	}
	s.render(w, r, http.StatusOK, "all_sites_total.html", "All sites total", data)
}

func (s *Server) handleExportAllSites(w http.ResponseWriter, r *http.Request) {
	report, err := s.sites.AllSitesTotal(r.Context(), ParseOptionalRange(r.URL.Query()))
	if err != nil {
		s.serverError(w, r, "Failed to total sites", err)
		return
	}
	var buf bytes.Buffer
	if err := writeAllSitesWorkbook(&buf, report); err != nil {
		s.serverError(w, r, "Failed to build spreadsheet", err)
		return
	}
	NewResponse().
		Header("Content-Type", xlsxContentType).
		Header("Content-Disposition", `attachment; filename="`+exportFilename(report)+`"`).
		Body(buf.Bytes()).
		Write(w)
}

type sectionsPage struct {
	Report   services.SectionReport
	From, To string
}

func (s *Server) handleSectionFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := s.sites.SectionFilter(r.Context(), sanitizeInput(q.Get("section")), ParseOptionalRange(q))
	if err != nil {
		s.serverError(w, r, "Failed to filter sections", err)
		return
	}
	s.render(w, r, http.StatusOK, "section_filter.html", "Sections",
		sectionsPage{Report: report, From: q.Get("from_date"), To: q.Get("to_date")})
}

func (s *Server) fragmentError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logError(r, msg, err)
	NewResponse().Status(http.StatusInternalServerError).Fragment("<p>" + msg + ".</p>").Write(w)
}
