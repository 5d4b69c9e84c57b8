package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
	"github.com/nerrad567/gray-logic-busdecode/internal/recorder"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	gracefulShutdownTimeout = 10 * time.Second

	// componentCheckTimeout bounds each component check made by /health.
	componentCheckTimeout = 3 * time.Second
)

// Store is the part of recorder.Recorder the API reads from.
type Store interface {
	Devices(ctx context.Context) ([]recorder.Device, error)
	GroupAddresses(ctx context.Context) ([]recorder.GroupAddress, error)
	RecentTelegrams(ctx context.Context, limit int) ([]recorder.TelegramRow, error)
}

// HealthChecker is implemented by the infrastructure clients the health
// endpoint reports on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsProvider reports the live session counters. *monitor.Monitor
// implements it.
type StatsProvider interface {
	Stats() knx.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Store     Store         // optional: inventory endpoints answer 503 without it
	Direction knx.Direction // direction of the decoded stream, for /stats
	Version   string

	// Components are checked by /health, keyed by name ("database", "mqtt").
	Components map[string]HealthChecker
}

// Server is the HTTP API server for the bus decoder.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	store      Store
	direction  knx.Direction
	version    string
	components map[string]HealthChecker
	hub        *Hub

	mu       sync.RWMutex
	stats    StatsProvider
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // cancels the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but its hub already
// accepts results so it can be handed to the monitor first.
//
// Parameters:
//   - deps: Required dependencies (config, logger)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		store:      deps.Store,
		direction:  deps.Direction,
		version:    deps.Version,
		components: deps.Components,
		hub:        NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub. It implements monitor.Sink and
// monitor.StatsReporter.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetStatsProvider sets the source of live session counters. This is called
// after the monitor is created, since the monitor needs the hub first.
func (s *Server) SetStatsProvider(p StatsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = p
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port of 0 picks a free
// port that Addr reports.
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("listening on %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}

	// Create internal context so Close() can stop the hub independently of
	// the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	if s.cfg.TLS.Enabled {
		s.logger.Info("API server starting with TLS",
			"address", ln.Addr().String(),
			"cert", s.cfg.TLS.CertFile,
		)
	} else {
		s.logger.Info("API server starting", "address", ln.Addr().String())
	}

	srv := s.server
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// Stop the hub first so WebSocket connections do not hold up shutdown.
	if cancel != nil {
		cancel()
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelShutdown()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.Addr() == "" {
		return fmt.Errorf("api server not started")
	}

	return nil
}

func (s *Server) statsProvider() StatsProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
