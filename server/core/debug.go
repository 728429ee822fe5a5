package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RosterSource is what the debug router reports on.
type RosterSource interface {
	PlayerCount() int
	Roster() []RosterInfo
}

// NewDebugRouter serves metrics, a liveness probe and the roster view.
// It must only be bound to a local address.
func NewDebugRouter(src RosterSource, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "players": src.PlayerCount()})
	})
	r.Get("/roster", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, src.Roster())
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DebugServer runs the debug router until its context is cancelled.
type DebugServer struct {
	srv *http.Server
	log *zap.Logger
}

func NewDebugServer(addr string, handler http.Handler, log *zap.Logger) *DebugServer {
	return &DebugServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Run blocks serving until ctx is done, then shuts down.
func (d *DebugServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		d.log.Info("debug server listening", zap.String("addr", d.srv.Addr))
		if err := d.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.srv.Shutdown(shutdownCtx)
	}
}
