// Package server exposes the ledger and import pipeline over a JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/contas-dev/contas/internal/config"
	"github.com/contas-dev/contas/internal/openfinance"
	"github.com/contas-dev/contas/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end over a single session.
type Server struct {
	sess *session.Session
	log  zerolog.Logger
	addr string
}

// New builds a server for the given listen address.
func New(addr string, sess *session.Session, log zerolog.Logger) *Server {
	return &Server{sess: sess, log: log, addr: addr}
}

// Handler returns the routed handler, exported so tests can drive it
// without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/import/file", s.handleImportFile)
	mux.HandleFunc("POST /api/v1/import/openfinance", s.handleImportOpenFinance)

	mux.HandleFunc("GET /api/v1/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/v1/transactions", s.handleTransactions)
	mux.HandleFunc("PUT /api/v1/transactions/{id}/category", s.handleSetCategory)
	mux.HandleFunc("GET /api/v1/categories", s.handleCategories)

	mux.HandleFunc("GET /api/v1/provisions", s.handleListProvisions)
	mux.HandleFunc("POST /api/v1/provisions", s.handleAddProvision)
	mux.HandleFunc("PUT /api/v1/provisions/{id}", s.handleUpdateProvision)
	mux.HandleFunc("DELETE /api/v1/provisions/{id}", s.handleDeleteProvision)

	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)

	return s.requestLog(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.addr).Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// errorStatus maps the error taxonomy to HTTP status codes.
func errorStatus(err error) int {
	var cfgErr *config.ConfigError
	var authErr *openfinance.AuthError
	var consentErr *openfinance.ConsentError
	var apiErr *openfinance.APIError
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &consentErr):
		return http.StatusForbidden
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
