package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-irsensor/internal/audit"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irsensor/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown. A probe in progress is allowed to finish.
const gracefulShutdownTimeout = 30 * time.Second

// LegacyPath is the historical endpoint path, always served alongside the
// configured one so existing clients keep working.
const LegacyPath = "/ir.php"

// SensorReader performs one sensor read.
type SensorReader interface {
	Read(ctx context.Context) (*sensor.ProbeResult, error)
}

// ProbeInfo describes the configured probe for the health endpoint.
type ProbeInfo interface {
	ScriptPath() string
	CommandLine() string
}

// HealthChecker is implemented by optional collaborators (database, MQTT,
// InfluxDB) whose status is reported by /api/v1/health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// QueueStats is implemented by the event queues whose backlog is reported
// by /api/v1/health.
type QueueStats interface {
	Pending() int
	Dropped() uint64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	SiteID string
	Logger *logging.Logger
	Reader SensorReader

	// Optional collaborators.
	Probe      ProbeInfo
	AuditRepo  audit.Repository
	Components map[string]HealthChecker
	Queues     map[string]QueueStats

	Version string
}

// Server is the HTTP API server.
//
// It is created with New(), started with Start() and stopped with Close().
// All methods are safe for concurrent use.
type Server struct {
	cfg        config.APIConfig
	siteID     string
	logger     *logging.Logger
	reader     SensorReader
	probe      ProbeInfo
	auditRepo  audit.Repository
	components map[string]HealthChecker
	queues     map[string]QueueStats
	version    string
	started    time.Time

	handler  http.Handler
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Reader == nil {
		return nil, fmt.Errorf("sensor reader is required")
	}

	s := &Server{
		cfg:        deps.Config,
		siteID:     deps.SiteID,
		logger:     deps.Logger.With("component", "api"),
		reader:     deps.Reader,
		probe:      deps.Probe,
		auditRepo:  deps.AuditRepo,
		components: deps.Components,
		queues:     deps.Queues,
		version:    deps.Version,
		started:    time.Now(),
	}
	s.handler = s.buildRouter()

	return s, nil
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves requests in a background goroutine.
//
// The bind happens synchronously so a port already in use is reported
// here rather than only in the log.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests (including running probes) up to gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
