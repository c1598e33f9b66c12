package status

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
)

const namespace = "host_pulse"

// Server exposes the latest loop update over HTTP:
//
//	GET /health            200 while samples are fresh, 503 otherwise
//	GET /snapshot          latest snapshot with its grade
//	GET /history/{metric}  retained samples for one metric; ?window=5m limits the stats
//	GET /metrics           Prometheus exposition
type Server struct {
	router    *mux.Router
	registry  *prometheus.Registry
	evaluator *Evaluator
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	latest *monitor.Update
	live   *history.Set

	value    *prometheus.GaugeVec
	level    *prometheus.GaugeVec
	alerts   *prometheus.CounterVec
	interval prometheus.Gauge
}

// NewServer creates a Server with its own Prometheus registry.
func NewServer(evaluator *Evaluator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if evaluator == nil {
		evaluator = NewEvaluator(nil, 0)
	}

	s := &Server{
		router:    mux.NewRouter(),
		registry:  prometheus.NewRegistry(),
		evaluator: evaluator,
		logger:    logger,
		now:       time.Now,
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_value",
			Help:      "Latest reading per metric, percent or degrees Celsius.",
		}, []string{"metric"}),
		level: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_level",
			Help:      "Health level per metric: 0 healthy, 1 warning, 2 critical, 3 unknown.",
		}, []string{"metric"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts fired per metric.",
		}, []string{"metric"}),
		interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sample_interval_seconds",
			Help:      "Current sampling interval including backoff.",
		}),
	}

	s.registry.MustRegister(
		s.value, s.level, s.alerts, s.interval,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Successful samples.",
		}, func() float64 { return float64(s.state().Samples) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_failures_total",
			Help:      "Failed samples.",
		}, func() float64 { return float64(s.state().Failures) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_updates_total",
			Help:      "Updates dropped because no consumer kept up.",
		}, func() float64 { return float64(s.state().Dropped) }),
	)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/history/{metric}", s.handleHistory).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// UseHistory serves /history from the loop's live series instead of the copy
// carried by the latest update.
func (s *Server) UseHistory(set *history.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = set
}

func (s *Server) liveRing(m collectors.Metric) *history.Ring {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.live == nil {
		return nil
	}
	return s.live.Ring(m)
}

// Observe records u as the latest update.
func (s *Server) Observe(u monitor.Update) {
	st := s.evaluator.Evaluate(u.Snapshot)

	s.mu.Lock()
	s.latest = &u
	s.mu.Unlock()

	for _, m := range collectors.AllMetrics {
		if v, ok := u.Snapshot.Value(m); ok {
			s.value.WithLabelValues(string(m)).Set(v)
		} else {
			s.value.DeleteLabelValues(string(m))
		}
	}
	for _, ms := range st.Metrics {
		s.level.WithLabelValues(string(ms.Metric)).Set(float64(ms.Level))
	}
	for _, a := range u.Alerts {
		s.alerts.WithLabelValues(string(a.Metric)).Inc()
	}
	s.interval.Set(u.State.Interval.Seconds())
}

func (s *Server) state() monitor.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return monitor.State{}
	}
	return s.latest.State
}

func (s *Server) current() (monitor.Update, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return monitor.Update{}, false
	}
	return *s.latest, true
}

type healthResponse struct {
	Status     string        `json:"status"`
	Overall    Level         `json:"overall"`
	LastSample time.Time     `json:"last_sample,omitempty"`
	Interval   time.Duration `json:"interval,omitempty"`
	Errors     int           `json:"consecutive_errors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	u, ok := s.current()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "waiting", Overall: LevelUnknown})
		return
	}

	resp := healthResponse{
		Status:     "ok",
		Overall:    s.evaluator.Evaluate(u.Snapshot).Overall,
		LastSample: u.State.LastSample,
		Interval:   u.State.Interval,
		Errors:     u.State.ConsecutiveErrors,
	}
	code := http.StatusOK
	if s.now().Sub(u.State.LastSample) > 2*u.State.Interval {
		resp.Status = "stale"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

type snapshotResponse struct {
	Snapshot collectors.Snapshot `json:"snapshot"`
	Status   HostStatus          `json:"status"`
	State    monitor.State       `json:"state"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	u, ok := s.current()
	if !ok {
		http.Error(w, "no samples yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		Snapshot: u.Snapshot,
		Status:   s.evaluator.Evaluate(u.Snapshot),
		State:    u.State,
	})
}

type historyResponse struct {
	Metric  collectors.Metric `json:"metric"`
	Samples []history.Sample  `json:"samples"`
	Stats   history.Stats     `json:"stats"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["metric"]
	m, ok := collectors.ParseMetric(name)
	if !ok {
		http.Error(w, "unknown metric "+name, http.StatusNotFound)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil || window <= 0 {
			http.Error(w, "invalid window "+raw, http.StatusBadRequest)
			return
		}
		since = s.now().Add(-window)
	}

	resp := historyResponse{Metric: m}
	if ring := s.liveRing(m); ring != nil {
		resp.Samples = ring.Samples()
		resp.Stats = ring.Stats(since)
	} else {
		u, _ := s.current()
		resp.Samples = u.History[m]
		resp.Stats = history.Summarize(resp.Samples, since)
	}
	if resp.Samples == nil {
		resp.Samples = []history.Sample{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "status: listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("status server shutdown", "error", err)
		}
	}()

	s.logger.Info("status server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "status: serve")
	}
	return nil
}
