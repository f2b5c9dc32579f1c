// Package adminhttp serves the admin surface every daemon exposes:
// liveness/readiness probes and the Prometheus scrape endpoint. Routed
// with chi rather than the teacher's bare net/http mux, per the rest of
// the retrieved pack's convention for small admin surfaces.
package adminhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/holo-host/hpos-core/pkg/metrics"
)

// Checker reports whether a dependency this daemon relies on (the
// store, the bus) is currently reachable — modeled after
// cuemby-warren/pkg/health.Checker's Check(ctx) shape, narrowed to a
// single error result (nil means ready) since readiness here is binary,
// not retried/debounced.
type Checker func(ctx context.Context) error

// Server is the admin HTTP surface: /healthz (liveness, always ok once
// serving), /readyz (aggregates every registered Checker), /metrics
// (Prometheus exposition).
type Server struct {
	router   chi.Router
	checkers map[string]Checker
}

// New builds a Server with name->Checker pairs readyz will aggregate.
func New(checkers map[string]Checker) *Server {
	s := &Server{router: chi.NewRouter(), checkers: checkers}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(5 * time.Second))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Handle("/metrics", metrics.Handler())

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	type result struct {
		Name  string `json:"name"`
		Error string `json:"error,omitempty"`
	}

	ready := true
	results := make([]result, 0, len(s.checkers))
	for name, check := range s.checkers {
		if err := check(r.Context()); err != nil {
			ready = false
			results = append(results, result{Name: name, Error: err.Error()})
			continue
		}
		results = append(results, result{Name: name})
	}

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, results)
}
