// Package server hosts football environments behind a JSON HTTP API.
//
// Every environment lives in a session guarded by its own mutex, so requests
// for different environments run in parallel while steps of one environment
// are serialised. Idle sessions are closed by a background health monitor.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/engine/remote"
	"github.com/zeusync/football/internal/core/engine/stub"
	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/events/bus"
	"github.com/zeusync/football/internal/core/observability/log"
)

// Config holds server configuration
type Config struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" mapstructure:"listen_addr"`

	// Environment limits. MaxEnvs also counts engine endpoint sessions.
	MaxEnvs        int           `json:"max_envs" yaml:"max_envs" mapstructure:"max_envs"`
	EnvIdleTimeout time.Duration `json:"env_idle_timeout" yaml:"env_idle_timeout" mapstructure:"env_idle_timeout"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval" mapstructure:"health_check_interval"`

	// Bearer token required on /v1 routes; empty disables the check.
	AuthToken string `json:"auth_token" yaml:"auth_token" mapstructure:"auth_token"`

	// Serve stub engines to remote clients over WebSocket (/v1/engine) and,
	// when EngineQUICAddr is set, over QUIC with a self-signed certificate.
	EngineEndpoint bool   `json:"engine_endpoint" yaml:"engine_endpoint" mapstructure:"engine_endpoint"`
	EngineQUICAddr string `json:"engine_quic_addr" yaml:"engine_quic_addr" mapstructure:"engine_quic_addr"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:          "127.0.0.1:8080",
		MaxEnvs:             256,
		EnvIdleTimeout:      10 * time.Minute,
		RequestTimeout:      30 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		EngineEndpoint:      true,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	case c.MaxEnvs < 1:
		return fmt.Errorf("%w: max_envs must be positive", ErrInvalidConfig)
	case c.EnvIdleTimeout <= 0 || c.HealthCheckInterval <= 0 || c.RequestTimeout <= 0:
		return fmt.Errorf("%w: timeouts and intervals must be positive", ErrInvalidConfig)
	}
	return nil
}

// session is one hosted environment.
type session struct {
	id        string
	env       *env.Env
	createdAt time.Time
	lastSeen  atomic.Int64 // unix seconds

	mu     sync.Mutex
	closed bool
}

func (s *session) touch() { s.lastSeen.Store(time.Now().Unix()) }

// Server hosts environments.
type Server struct {
	config   Config
	defaults env.Config
	bus      bus.EventBus
	logger   log.Log
	router   http.Handler
	engines  *remote.Server
	metrics  http.Handler

	httpServer *http.Server
	listener   net.Listener
	quicLn     *quic.Listener

	envs        sync.Map // map[string]*session
	envCount    atomic.Int64
	engineCount atomic.Int64
	slots       atomic.Int64 // envCount + engineCount, bounded by MaxEnvs

	running atomic.Bool
	closed  atomic.Bool

	workerGroup sync.WaitGroup
	stopMu      sync.Mutex
	stopChan    chan struct{} // closed by Stop, replaced by the next Start
}

// Option customises a Server.
type Option func(*Server)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a server. New environments start from defaults and
// publish their episode events on b, which may be nil.
func NewServer(config Config, defaults env.Config, b bus.EventBus, logger log.Log, opts ...Option) *Server {
	s := &Server{
		config:   config,
		defaults: defaults,
		bus:      b,
		logger:   logger.With(log.String("component", "server")),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if config.EngineEndpoint {
		s.engines = remote.NewServer(s.newEngine, s.logger)
	}
	s.router = s.routes()

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_envs", config.MaxEnvs))
	return s
}

// Handler exposes the HTTP API, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	s.stopMu.Lock()
	select {
	case <-s.stopChan:
		s.stopChan = make(chan struct{})
	default:
	}
	s.stopMu.Unlock()

	s.logger.Info("Starting server")

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.running.Store(false)
		s.logger.Error("Failed to create listener", log.Error(err))
		return err
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()

	if s.engines != nil && s.config.EngineQUICAddr != "" {
		if err := s.startQUIC(ctx); err != nil {
			_ = s.httpServer.Close()
			s.running.Store(false)
			return err
		}
	}

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
	s.startWorkers()
	return nil
}

func (s *Server) startQUIC(ctx context.Context) error {
	tlsConf, err := remote.SelfSignedTLS()
	if err != nil {
		return fmt.Errorf("engine tls: %w", err)
	}
	ln, err := quic.ListenAddr(s.config.EngineQUICAddr, tlsConf, nil)
	if err != nil {
		s.logger.Error("Failed to create QUIC listener", log.Error(err))
		return err
	}
	s.quicLn = ln
	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		if err := s.engines.ServeQUIC(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("QUIC engine endpoint failed", log.Error(err))
		}
	}()
	s.logger.Info("Engine endpoint listening", log.String("quic_addr", ln.Addr().String()))
	return nil
}

// Addr is the bound HTTP address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the server and closes every environment.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")
	s.stopMu.Lock()
	close(s.stopChan)
	s.stopMu.Unlock()

	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	if s.quicLn != nil {
		errs = append(errs, s.quicLn.Close())
	}
	s.closeAll()
	s.stopWorkers()

	s.logger.Info("Server stopped")
	return errors.Join(errs...)
}

// Close closes the server and releases all resources
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Info("Closing server")
	if s.running.Load() {
		_ = s.Stop(context.Background())
	}
	s.closeAll()
	return nil
}

// createEnv builds and registers a new environment.
func (s *Server) createEnv(ctx context.Context, cfg env.Config) (*session, error) {
	if s.closed.Load() {
		return nil, ErrServerClosed
	}
	if err := s.reserve(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	opts := []env.Option{env.WithInstanceID(id), env.WithLogger(s.logger)}
	if s.bus != nil {
		opts = append(opts, env.WithBus(s.bus))
	}
	e, err := env.Make(ctx, cfg, opts...)
	if err != nil {
		s.slots.Add(-1)
		return nil, err
	}

	sess := &session{id: id, env: e, createdAt: time.Now()}
	sess.touch()
	s.envs.Store(id, sess)
	s.envCount.Add(1)

	s.logger.Info("Environment created",
		log.String("instance", id),
		log.String("scenario", cfg.Scenario),
		log.Int64("total_envs", s.envCount.Load()))
	return sess, nil
}

func (s *Server) reserve() error {
	if s.slots.Add(1) > int64(s.config.MaxEnvs) {
		s.slots.Add(-1)
		return ErrMaxEnvsReached
	}
	return nil
}

// newEngine builds the stub engine behind one engine endpoint session. The
// session holds a slot until its engine is closed.
func (s *Server) newEngine(_ context.Context, cfg engine.Config) (engine.Engine, error) {
	if err := s.reserve(); err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrCapacity, err)
	}
	eng, err := stub.New(cfg)
	if err != nil {
		s.slots.Add(-1)
		return nil, err
	}
	s.engineCount.Add(1)
	return &slotEngine{Engine: eng, release: sync.OnceFunc(func() {
		s.engineCount.Add(-1)
		s.slots.Add(-1)
	})}, nil
}

type slotEngine struct {
	engine.Engine
	release func()
}

func (e *slotEngine) Close() error {
	e.release()
	return e.Engine.Close()
}

func (s *Server) lookup(id string) (*session, error) {
	v, ok := s.envs.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEnvNotFound, id)
	}
	return v.(*session), nil
}

// withEnv runs fn with exclusive access to the environment.
func (s *Server) withEnv(id string, fn func(*env.Env) error) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return fmt.Errorf("%w: %s", ErrEnvNotFound, id)
	}
	sess.touch()
	return fn(sess.env)
}

func (s *Server) removeEnv(id string) error {
	v, ok := s.envs.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEnvNotFound, id)
	}
	sess := v.(*session)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.closed = true
	s.envCount.Add(-1)
	s.slots.Add(-1)
	if err := sess.env.Close(); err != nil {
		s.logger.Warn("Failed to close environment", log.String("instance", id), log.Error(err))
	}
	s.logger.Info("Environment closed",
		log.String("instance", id),
		log.Int64("total_envs", s.envCount.Load()))
	return nil
}

func (s *Server) closeAll() {
	s.envs.Range(func(key, _ any) bool {
		_ = s.removeEnv(key.(string))
		return true
	})
}

// Stats contains server statistics
type Stats struct {
	EnvCount       int64 `json:"env_count"`
	EngineSessions int64 `json:"engine_sessions"`
	Running        bool  `json:"running"`
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		EnvCount:       s.envCount.Load(),
		EngineSessions: s.engineCount.Load(),
		Running:        s.running.Load(),
	}
}

// startWorkers starts background worker goroutines
func (s *Server) startWorkers() {
	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		s.healthMonitor()
	}()
}

// done is closed when the current run of the server stops.
func (s *Server) done() <-chan struct{} {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.stopChan
}

func (s *Server) stopWorkers() {
	s.workerGroup.Wait()
}

func (s *Server) healthMonitor() {
	s.logger.Debug("Health monitor started")

	stop := s.done()
	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthChecks(time.Now())
		case <-stop:
			s.logger.Debug("Health monitor stopped")
			return
		}
	}
}

// performHealthChecks closes environments idle for longer than
// EnvIdleTimeout.
func (s *Server) performHealthChecks(now time.Time) {
	timeout := int64(s.config.EnvIdleTimeout.Seconds())

	var idle []string
	s.envs.Range(func(key, value any) bool {
		if now.Unix()-value.(*session).lastSeen.Load() > timeout {
			idle = append(idle, key.(string))
		}
		return true
	})

	for _, id := range idle {
		s.logger.Info("Closing idle environment", log.String("instance", id))
		_ = s.removeEnv(id)
	}

	if len(idle) > 0 {
		s.logger.Info("Health check completed",
			log.Int("closed_envs", len(idle)),
			log.Int64("active_envs", s.envCount.Load()))
	}
}
