// Package http serves the site pages, the filter fragments and the reports.
package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sitepay/internal/core"
	applog "sitepay/internal/log"
	"sitepay/internal/middleware/ratelimit"
	"sitepay/internal/middleware/security"
	"sitepay/internal/middleware/trace"
	"sitepay/internal/services"
	"sitepay/internal/storage"
	appweb "sitepay/web"
)

// SiteService is what the handlers need from the service layer.
// *services.SiteService implements it.
type SiteService interface {
	ListSites(ctx context.Context) ([]core.Site, error)
	CreateSite(ctx context.Context, in core.SiteInput) (core.Site, error)
	SiteDetail(ctx context.Context, siteID int64) (services.SiteDetail, error)
	UpdateSections(ctx context.Context, siteID int64, values map[int64]services.SectionValues) ([]core.Entry, error)
	UpdateTeams(ctx context.Context, siteID int64, values map[int64]services.TeamValues) ([]core.Entry, error)
	FilterEntries(ctx context.Context, siteID int64, r core.DateRange) (core.EntrySummary, error)
	FilterSection(ctx context.Context, siteID int64, name string) (services.SectionView, error)
	AllSitesTotal(ctx context.Context, r *core.DateRange) (core.AllSitesTotal, error)
	SectionFilter(ctx context.Context, name string, r *core.DateRange) (services.SectionReport, error)
	ResetAll(ctx context.Context, confirm string) (storage.ResetStats, error)
	Ready(ctx context.Context) error
}

type Options struct {
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	sites     SiteService
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer wires the router. The templates are embedded, so a parse error
// means a broken build and is returned.
func NewServer(addr string, sites SiteService, opts Options) (*Server, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = applog.FromContext(context.Background())
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		templates: t,
		sites:     sites,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:  security.NewDetector(),
		started:   time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	r := chi.NewRouter()
	r.Use(applog.Middleware(opts.Logger.WithComponent(applog.ComponentHTTP)))
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
		r.Use(s.detector.Middleware)
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP))

		r.Get("/", s.handleListSites)
		r.Get("/create/", s.handleCreateForm)
		r.Post("/create/", s.handleCreateSite)
		r.Get("/filter-section/", s.handleFilterSectionAll)
		r.Get("/all-sites-total/", s.handleAllSitesTotal)
		r.Get("/all-sites-total/export.xlsx", s.handleExportAllSites)
		r.Get("/sections/", s.handleSectionFilter)
		r.Get("/reset-data/", s.handleResetForm)
		r.Post("/reset-data/", s.handleReset)

		r.Route("/{siteID}", func(r chi.Router) {
			r.Get("/", s.handleSiteDetail)
			r.Post("/update-sections/", s.handleUpdateSections)
			r.Post("/update-civil-team/", s.handleUpdateTeams)
			r.Get("/filter-entries/", s.handleFilterEntries)
			r.Get("/filter-section/", s.handleFilterSection)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Shutdown stops the limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type page struct {
	Title string
	Data  any
}

// render executes a full page into a buffer so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, page{Title: title, Data: data}); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "template", name, applog.FieldError, err)
		InternalServerError("Failed to render page").Write(w)
		return
	}
	NewResponse().Status(status).BodyHTML(buf.String()).Write(w)
}

// fragment executes a partial template and answers it as {"html": ...}.
func (s *Server) fragment(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Fragment execution failed", "template", name, applog.FieldError, err)
		NewResponse().Status(http.StatusInternalServerError).Fragment("<p>Failed to load results.</p>").Write(w)
		return
	}
	NewResponse().Fragment(buf.String()).Write(w)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error.html", "Site not found", "The requested site does not exist.")
}

func (s *Server) logError(r *http.Request, msg string, err error) {
	slog.ErrorContext(r.Context(), msg, applog.FieldError, err, "path", r.URL.Path)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logError(r, msg, err)
	s.render(w, r, http.StatusInternalServerError, "error.html", "Something went wrong", msg)
}
