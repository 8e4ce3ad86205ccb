package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"sitepay/internal/core"
	"sitepay/internal/services"
)

type resetForm struct {
	Token string
	Error string
}

func (s *Server) handleResetForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "reset_confirm.html", "Reset all data", resetForm{Token: services.ResetConfirmation})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	_, err := s.sites.ResetAll(r.Context(), sanitizeInput(r.PostForm.Get("confirm")))
	switch {
	case errors.Is(err, core.ErrConfirmationRequired):
		s.render(w, r, http.StatusUnprocessableEntity, "reset_confirm.html", "Reset all data",
			resetForm{Token: services.ResetConfirmation, Error: "Type " + services.ResetConfirmation + " to confirm the reset."})
		return
	case err != nil:
		s.serverError(w, r, "Failed to reset data", err)
		return
	}
	NewResponse().Redirect("/").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"requests":  s.tracer.TotalRequests(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	status, code := "ready", http.StatusOK
	if err := s.sites.Ready(ctx); err != nil {
		s.logError(r, "Readiness check failed", err)
		checks["database"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"checks":         checks,
		"active_clients": s.limiter.ActiveClients(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
