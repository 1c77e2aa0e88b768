// Package server exposes the contest service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"contestwatch/internal/app"
	"contestwatch/internal/domain"
	"contestwatch/internal/export"
	"contestwatch/internal/filter"
)

// ContestService is what the HTTP layer needs from the application.
type ContestService interface {
	View(ctx context.Context, c filter.Criteria) []domain.Contest
	Refresh(ctx context.Context) ([]domain.Contest, error)
	Status() app.Status
	Preferences() domain.NotificationPreferences
	SavePreferences(ctx context.Context, prefs domain.NotificationPreferences) (domain.NotificationPreferences, error)
	Reminders(ctx context.Context) []app.Reminder
	ToggleReminder(ctx context.Context, id string) (bool, error)
}

var _ ContestService = (*app.Service)(nil)

// Server is the HTTP API server.
type Server struct {
	svc    ContestService
	router chi.Router
	now    func() time.Time
	log    logrus.FieldLogger
}

// New creates a server and registers its routes.
func New(svc ContestService, logger logrus.FieldLogger) *Server {
	s := &Server{
		svc: svc,
		now: time.Now,
		log: logger.WithField("component", "http"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/feed.rss", s.handleFeed(export.FormatRSS))
	r.Get("/feed.atom", s.handleFeed(export.FormatAtom))

	r.Route("/api", func(r chi.Router) {
		r.Get("/contests", s.handleContests)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/status", s.handleStatus)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handleSavePreferences)
		r.Get("/reminders", s.handleReminders)
		r.Post("/reminders/{contestID}/toggle", s.handleToggleReminder)
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs one line per request through logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func criteriaFromQuery(r *http.Request) (filter.Criteria, error) {
	q := r.URL.Query()
	return filter.ParseCriteria(q.Get("platform"), q.Get("q"), q.Get("range"), q.Get("sort"))
}

func (s *Server) handleContests(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), false)
		return
	}

	contests := s.svc.View(r.Context(), criteria)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contests": contests,
		"count":    len(contests),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	contests, err := s.svc.Refresh(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Refresh via API failed")
		if errors.Is(err, domain.ErrAggregateLoad) {
			writeError(w, http.StatusServiceUnavailable, "Failed to load contests. Please try again later.", true)
			return
		}
		writeError(w, http.StatusInternalServerError, "Refresh failed", false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"count":  len(contests),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Preferences())
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var req domain.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", false)
		return
	}
	platforms := make([]domain.Platform, 0, len(req.Platforms))
	for _, raw := range req.Platforms {
		p, err := domain.ParsePlatform(string(raw))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), false)
			return
		}
		platforms = append(platforms, p)
	}
	req.Platforms = platforms

	saved, err := s.svc.SavePreferences(r.Context(), req)
	if err != nil {
		s.log.WithError(err).Error("Failed to save preferences")
		writeError(w, http.StatusInternalServerError, "Failed to save", false)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reminders": s.svc.Reminders(r.Context()),
	})
}

func (s *Server) handleToggleReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contestID")
	on, err := s.svc.ToggleReminder(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrContestNotFound):
		writeError(w, http.StatusNotFound, err.Error(), false)
		return
	case err != nil:
		s.log.WithError(err).WithField("contest_id", id).Error("Failed to toggle reminder")
		writeError(w, http.StatusInternalServerError, "Failed to toggle reminder", false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contest_id": id,
		"reminder":   on,
	})
}

func (s *Server) handleFeed(format export.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		criteria, err := criteriaFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		feed := export.BuildFeed(s.svc.View(r.Context(), criteria), baseURL(r), s.now())
		out, err := export.Render(feed, format)
		if err != nil {
			s.log.WithError(err).WithField("format", format).Error("Failed to render feed")
			http.Error(w, "Failed to render feed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		_, _ = w.Write([]byte(out))
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, retryable bool) {
	writeJSON(w, status, map[string]interface{}{
		"error":     msg,
		"retryable": retryable,
	})
}
