// Package health serves the scheduler's liveness, readiness and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/metrics"
)

const (
	defaultPort     = "8080"
	pingTimeout     = 3 * time.Second
	shutdownTimeout = 5 * time.Second
)

// DatabasePinger checks the run store connection
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// PipelineStatus reports whether a pipeline run has finished and the error of the last one
type PipelineStatus interface {
	LastRunOutcome() (finished bool, err error)
}

// HealthResponse is the body of /health and /live
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// ReadyResponse is the body of /ready, one entry per check
type ReadyResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Checks   map[string]string `json:"checks,omitempty"`
	Duration string            `json:"duration,omitempty"`
}

// Config holds the configuration for the health server
type Config struct {
	ServiceName string
	Version     string
	Commit      string
	Port        string
	Logger      *logrus.Logger
	DB          DatabasePinger
	Pipeline    PipelineStatus
	MetricsPath string
}

// check reports a readiness detail and whether it passed
type check struct {
	name string
	run  func(ctx context.Context) (string, bool)
}

// Server exposes the scheduler's state over HTTP
type Server struct {
	cfg    Config
	log    *logrus.Entry
	checks []check
	ready  atomic.Bool
	server *http.Server
}

// NewServer builds the server. The port falls back to HEALTH_PORT, then 8080.
func NewServer(cfg Config) *Server {
	if cfg.Port == "" {
		cfg.Port = os.Getenv("HEALTH_PORT")
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		cfg: cfg,
		log: logger.WithFields(logrus.Fields{"component": "health", "service": cfg.ServiceName}),
	}
	s.checks = append(s.checks, check{name: "service", run: s.serviceCheck})
	if cfg.DB != nil {
		s.checks = append(s.checks, check{name: "database", run: databaseCheck(cfg.DB)})
	}
	if cfg.Pipeline != nil {
		s.checks = append(s.checks, check{name: "pipeline", run: pipelineCheck(cfg.Pipeline)})
	}
	return s
}

// SetReady marks the scheduler as accepting work
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports the flag set by SetReady
func (s *Server) IsReady() bool {
	return s.ready.Load()
}

// Start listens in the background until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.log.WithField("port", s.cfg.Port).Info("Health server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("Health server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			s.log.WithError(err).Warn("Health server shutdown")
		}
	}()

	return nil
}

// Handler returns the health, readiness, liveness and metrics routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("/ready", s.handleReady)
	if s.cfg.MetricsPath != "" {
		mux.Handle(s.cfg.MetricsPath, metrics.Handler())
	}
	return mux
}

// Shutdown stops the listener, waiting up to five seconds for open requests
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.cfg.ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.cfg.Version,
		Commit:    s.cfg.Commit,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: s.cfg.ServiceName})
}

// handleReady runs every check; any failure answers 503
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := ReadyResponse{
		Status:  "ok",
		Service: s.cfg.ServiceName,
		Checks:  make(map[string]string, len(s.checks)),
	}
	code := http.StatusOK
	for _, c := range s.checks {
		detail, ok := c.run(r.Context())
		resp.Checks[c.name] = detail
		if !ok {
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
		}
	}
	resp.Duration = time.Since(start).String()
	s.writeJSON(w, code, resp)
}

func (s *Server) serviceCheck(context.Context) (string, bool) {
	if !s.IsReady() {
		return "not_ready", false
	}
	return "ok", true
}

func databaseCheck(db DatabasePinger) func(context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			return fmt.Sprintf("error: %v", err), false
		}
		return "ok", true
	}
}

// pipelineCheck fails only when the last finished run failed
func pipelineCheck(p PipelineStatus) func(context.Context) (string, bool) {
	return func(context.Context) (string, bool) {
		finished, err := p.LastRunOutcome()
		switch {
		case !finished:
			return "no_runs", true
		case err != nil:
			return fmt.Sprintf("last run failed: %v", err), false
		default:
			return "ok", true
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Debug("Failed to write health response")
	}
}
