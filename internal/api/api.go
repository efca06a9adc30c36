// Package api exposes the LeadSim session-control events and observable
// outputs as a JSON HTTP API consumed by the demo UI layer.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leadsim/internal/flow"
	"leadsim/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 5 * time.Second

// Server wires the conversation engine and transcript store to HTTP handlers.
type Server struct {
	engine *flow.Engine
	st     store.Store
}

// NewServer creates an API server around the given engine and store.
func NewServer(engine *flow.Engine, st store.Store) *Server {
	return &Server{engine: engine, st: st}
}

// Handler builds the chi router for all endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/session", func(r chi.Router) {
		r.Post("/option", s.selectOptionHandler)
		r.Post("/text", s.submitTextHandler)
		r.Post("/workflow", s.selectWorkflowHandler)
		r.Post("/version", s.selectVersionHandler)
		r.Post("/ai/toggle", s.toggleAIHandler)
		r.Post("/reset", s.resetHandler)
		r.Post("/schedule", s.scheduleHandler)
		r.Post("/schedule/cancel", s.scheduleCancelHandler)
		r.Post("/call/end", s.endCallHandler)
		r.Put("/messages/{id}", s.editMessageHandler)
		r.Get("/messages", s.messagesHandler)
		r.Get("/state", s.stateHandler)
	})
	r.Get("/transcripts", s.transcriptsHandler)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Run serves the API until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("LeadSim API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("API shutdown failed", "error", err)
			return err
		}
		slog.Info("API shut down cleanly")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
