package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/halomqtt/internal/bridges/halo"
	"github.com/nerrad567/halomqtt/internal/device"
	"github.com/nerrad567/halomqtt/internal/infrastructure/config"
	"github.com/nerrad567/halomqtt/internal/infrastructure/logging"
	"github.com/nerrad567/halomqtt/internal/location"
	"github.com/nerrad567/halomqtt/internal/mesh"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusSource reports the mesh connection entries.
// *mesh.Coordinator implements it.
type StatusSource interface {
	Snapshot(ctx context.Context) ([]mesh.EntryStatus, error)
}

// StateReader exposes stored light state. *device.Registry implements it.
type StateReader interface {
	Snapshot() map[string]device.LightState
	History(ctx context.Context, tag string, limit int) ([]device.StateHistoryEntry, error)
}

// ConnectionChecker reports control-plane connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// BridgeMetricsProvider supplies bridge counters for the metrics endpoint.
type BridgeMetricsProvider interface {
	GetMetrics() halo.BridgeMetrics
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Location *location.Location
	Mesh     StatusSource
	States   StateReader
	MQTT     ConnectionChecker     // optional
	Bridge   BridgeMetricsProvider // optional
	DB       *sql.DB               // optional
	Version  string
}

// Server is the HTTP status server.
//
// It is created with New, started with Start and stopped with Close.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	loc       *location.Location
	mesh      StatusSource
	states    StateReader
	mqtt      ConnectionChecker
	bridge    BridgeMetricsProvider
	db        *sql.DB
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// New creates a new API server with the given dependencies.
// The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Mesh == nil {
		return nil, fmt.Errorf("mesh status source is required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state reader is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		loc:       deps.Location,
		mesh:      deps.Mesh,
		states:    deps.States,
		mqtt:      deps.MQTT,
		bridge:    deps.Bridge,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine. Binding
// happens before Start returns, so an address in use is reported here.
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
