package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger is anything whose liveness the health endpoint should report.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the operational HTTP surface of a process: Prometheus metrics and
// a health check. It carries no bot or moderation functionality.
type Server struct {
	router chi.Router
	deps   map[string]Pinger
	log    *zerolog.Logger
}

func NewServer(logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "web").Logger()
	s := &Server{
		router: chi.NewRouter(),
		deps:   map[string]Pinger{},
		log:    &l,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.healthz)
	return s
}

// WithDependency registers a backend to include in the health report.
func (s *Server) WithDependency(name string, p Pinger) *Server {
	s.deps[name] = p
	return s
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := map[string]string{}
	for name, p := range s.deps {
		if err := p.Ping(ctx); err != nil {
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("admin server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
