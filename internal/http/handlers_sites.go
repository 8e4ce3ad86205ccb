package http

import (
	"errors"
	"net/http"
	"strconv"

	"sitepay/internal/core"
)

type createForm struct {
	Name     string
	Location string
	Error    string
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.sites.ListSites(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to list sites", err)
		return
	}
	s.render(w, r, http.StatusOK, "site_list.html", "Sites", sites)
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "site_create.html", "New site", createForm{})
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	in := core.SiteInput{
		Name:     sanitizeInput(r.PostForm.Get("name")),
		Location: sanitizeInput(r.PostForm.Get("location")),
	}

	site, err := s.sites.CreateSite(r.Context(), in)
	switch {
	case isValidationError(err):
		s.render(w, r, http.StatusUnprocessableEntity, "site_create.html", "New site",
			createForm{Name: in.Name, Location: in.Location, Error: err.Error()})
		return
	case err != nil:
		s.serverError(w, r, "Failed to create site", err)
		return
	}
	NewResponse().Redirect(sitePath(site.ID)).Write(w)
}

func (s *Server) handleSiteDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := siteIDParam(r)
	if !ok {
		s.notFound(w, r)
		return
	}
	detail, err := s.sites.SiteDetail(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrSiteNotFound):
		s.notFound(w, r)
		return
	case err != nil:
		s.serverError(w, r, "Failed to load site", err)
		return
	}
	s.render(w, r, http.StatusOK, "site_detail.html", detail.Site.Name, detail)
}

func (s *Server) handleUpdateSections(w http.ResponseWriter, r *http.Request) {
	id, ok := siteIDParam(r)
	if !ok {
		s.notFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	_, err := s.sites.UpdateSections(r.Context(), id, ParseSectionForm(r.PostForm))
	switch {
	case errors.Is(err, core.ErrSiteNotFound):
		s.notFound(w, r)
		return
	case err != nil:
		s.serverError(w, r, "Failed to update sections", err)
		return
	}
	NewResponse().Redirect(sitePath(id)).Write(w)
}

func (s *Server) handleUpdateTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := siteIDParam(r)
	if !ok {
		s.notFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	_, err := s.sites.UpdateTeams(r.Context(), id, ParseTeamForm(r.PostForm))
	switch {
	case errors.Is(err, core.ErrSiteNotFound):
		s.notFound(w, r)
		return
	case err != nil:
		s.serverError(w, r, "Failed to update civil teams", err)
		return
	}
	NewResponse().Redirect(sitePath(id)).Write(w)
}

func sitePath(id int64) string {
	return "/" + strconv.FormatInt(id, 10) + "/"
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyName) ||
		errors.Is(err, core.ErrNameTooLong) ||
		errors.Is(err, core.ErrLocationTooLong)
}
