package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/managed-records/pkg/metrics"
	"github.com/Sternrassler/managed-records/pkg/pagination"
	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// pageRetriever is the part of pagination.Retriever the proxy needs.
type pageRetriever interface {
	Retrieve(ctx context.Context, req records.PageRequest) (*pagination.PageResult, error)
}

// readyFunc reports whether dependencies are reachable.
type readyFunc func(ctx context.Context) error

type server struct {
	retriever pageRetriever
	ready     readyFunc
	logger    zerolog.Logger
}

func newServer(retriever pageRetriever, ready readyFunc, logger zerolog.Logger) *server {
	return &server{
		retriever: retriever,
		ready:     ready,
		logger:    logger,
	}
}

// routes mounts the proxy endpoints.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/records", s.handleRecords)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Not ready")
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// handleRecords serves GET /records?page=N&color=C. Both "color" and
// "color[]" are accepted.
func (s *server) handleRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var page int
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", records.ErrInvalidPage, raw))
			return
		}
		page = n
	}

	var colors []string
	colors = append(colors, query["color"]...)
	colors = append(colors, query[records.ParamColor]...)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := s.retriever.Retrieve(ctx, records.PageRequest{Page: page, Colors: colors})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, records.ErrInvalidPage) || errors.Is(err, records.ErrInvalidColor) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// serve runs the proxy until ctx is done or SIGINT/SIGTERM arrives, then
// drains in-flight requests.
func serve(ctx context.Context, addr string, s *server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting records proxy")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down records proxy")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
