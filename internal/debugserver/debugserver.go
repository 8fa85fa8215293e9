// Package debugserver exposes a read-only HTTP view into a running
// kernel: Prometheus gauges plus a small JSON snapshot endpoint. It never
// accepts input that mutates simulation state; the EVENT| stream remains
// the only authoritative output.
package debugserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ToxicPie/minecrab/core"
)

// Snapshot is the JSON body returned by GET /snapshot.
type Snapshot struct {
	Tick          uint64 `json:"tick"`
	ProcessCount  int    `json:"process_count"`
	UserCount     int    `json:"user_count"`
	NumGoroutines int    `json:"goroutines"`
}

// Server wraps a chi router exposing /healthz, /metrics, and /snapshot.
type Server struct {
	kernel   *core.Kernel
	log      *logrus.Logger
	registry *prometheus.Registry

	mu           sync.Mutex
	tickGauge    prometheus.Gauge
	processGauge prometheus.Gauge
}

// New builds a debug server bound to kernel. Call Start to begin serving.
func New(kernel *core.Kernel, log *logrus.Logger) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{kernel: kernel, log: log, registry: reg}

	s.tickGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "minecrab_tick",
		Help: "Current simulation tick",
	})
	s.processGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "minecrab_process_count",
		Help: "Number of live processes",
	})
	reg.MustRegister(s.tickGauge, s.processGauge)
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/snapshot", s.handleSnapshot)
	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := Snapshot{
		Tick:         s.kernel.Tick(),
		ProcessCount: len(s.kernel.Processes),
		UserCount:    len(s.kernel.Users),
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.log.WithError(err).Error("failed to encode debug snapshot")
	}
}

// RecordTick updates the Prometheus gauges from the kernel's current
// state. The gauges change only when this is called; neither the kernel's
// tick loop nor cmd/minecrab calls it.
func (s *Server) RecordTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickGauge.Set(float64(s.kernel.Tick()))
	s.processGauge.Set(float64(len(s.kernel.Processes)))
}

// Start launches the HTTP server in the background and returns it so the
// caller can shut it down later.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("debug server exited")
		}
	}()
	return srv
}

// Shutdown gracefully stops the HTTP server within the given timeout.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
