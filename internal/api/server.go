package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/powersim/internal/device"
	"github.com/nerrad567/powersim/internal/infrastructure/config"
	"github.com/nerrad567/powersim/internal/infrastructure/logging"
	"github.com/nerrad567/powersim/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is an infrastructure dependency that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Simulator *device.Simulator         // optional: enables simulation metrics and the readings feed
	MQTT      *mqtt.Client              // optional: enables power commands and state publishing
	PowerLog  device.PowerLogRepository // optional: enables /devices/{id}/power-log
	Checks    map[string]HealthChecker  // optional: dependencies reported by /health
	Version   string
}

// Server is the HTTP API server for the power simulator.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub and
// the MQTT bridge. The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registry  *device.Registry
	simulator *device.Simulator
	mqtt      *mqtt.Client
	powerLog  device.PowerLogRepository
	checks    map[string]HealthChecker
	version   string
	startTime time.Time
	hub       *Hub

	attachOnce sync.Once
	server     *http.Server
	listener   net.Listener
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, registry) plus optional integrations
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		simulator: deps.Simulator,
		mqtt:      deps.MQTT,
		powerLog:  deps.PowerLog,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start binds the listen address and begins serving HTTP connections.
//
// The bind happens synchronously so that an unusable address is reported
// to the caller. Serving, the WebSocket hub and the MQTT command
// subscription run in the background until Close() is called.
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.attachListeners()

	if err := s.subscribePowerCommands(); err != nil {
		s.logger.Warn("failed to subscribe to MQTT power commands", "error", err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// attachListeners connects the live feed and the MQTT bridge to registry
// and simulator events. It is safe to call more than once.
func (s *Server) attachListeners() {
	s.attachOnce.Do(func() {
		s.registry.OnPowerChange(s.onPowerChange)
		if s.simulator != nil {
			s.simulator.OnTick(s.onReadings)
		}
	})
}

// onPowerChange fans a power change out to WebSocket clients and MQTT.
func (s *Server) onPowerChange(change device.PowerChange) {
	s.hub.Broadcast(ChannelPowerChanged, change)
	s.publishSnapshot(change.Device)
}

// onReadings fans tick readings out to WebSocket clients and MQTT.
func (s *Server) onReadings(readings []device.Reading) {
	if len(readings) == 0 {
		return
	}
	s.hub.Broadcast(ChannelReadings, readings)
	s.publishReadings(readings)
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
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
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
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

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
