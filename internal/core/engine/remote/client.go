// Package remote connects environments to a football engine running in
// another process, and serves local engines to such clients.
//
// Frames are JSON objects. Over WebSocket each frame is one text message;
// over QUIC the frames travel newline-delimited on a single bidirectional
// stream.
package remote

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/observability/log"
)

// DefaultTimeout bounds a single request when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

type options struct {
	timeout time.Duration
	tls     *tls.Config
	logger  log.Log
}

type Option func(*options)

func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithTLSConfig sets the TLS configuration for quic:// addresses.
func WithTLSConfig(c *tls.Config) Option { return func(o *options) { o.tls = c } }

func WithLogger(l log.Log) Option { return func(o *options) { o.logger = l } }

// Engine is an engine.Engine backed by a remote process. Calls are
// serialised over one connection.
type Engine struct {
	mu      sync.Mutex
	t       transport
	timeout time.Duration
	logger  log.Log
	closed  bool
}

var _ engine.Engine = (*Engine)(nil)

// Dial connects to the engine at addr (ws://, wss:// or quic://) and opens a
// simulation for cfg.
func Dial(ctx context.Context, addr string, cfg engine.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{timeout: DefaultTimeout, logger: log.Provide()}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse engine address: %w", err)
	}

	var t transport
	switch u.Scheme {
	case "ws", "wss":
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		t = newWSTransport(conn)
	case "quic":
		tlsConf := o.tls
		if tlsConf == nil {
			tlsConf = &tls.Config{MinVersion: tls.VersionTLS13}
		}
		tlsConf = tlsConf.Clone()
		tlsConf.NextProtos = []string{ALPN}
		conn, err := quic.DialAddr(ctx, u.Host, tlsConf, &quic.Config{KeepAlivePeriod: 10 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			_ = conn.CloseWithError(0, "")
			return nil, fmt.Errorf("open stream: %w", err)
		}
		t = newQUICTransport(conn, stream)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	e := &Engine{
		t:       t,
		timeout: o.timeout,
		logger:  o.logger.With(log.String("component", "remote_engine"), log.String("addr", u.Host)),
	}
	if _, err = e.call(ctx, Request{Op: OpOpen, Config: &cfg}); err != nil {
		_ = t.close()
		return nil, err
	}
	e.logger.Debug("Remote engine opened", log.String("scenario", cfg.Scenario))
	return e, nil
}

func (e *Engine) Reset(ctx context.Context, seed int64) (*models.Observation, error) {
	resp, err := e.call(ctx, Request{Op: OpReset, Seed: seed})
	if err != nil {
		return nil, err
	}
	if resp.Observation == nil {
		return nil, fmt.Errorf("%w: reset reply without observation", ErrProtocol)
	}
	return resp.Observation, nil
}

func (e *Engine) Step(ctx context.Context, left, right []models.Action) (*models.Observation, bool, error) {
	resp, err := e.call(ctx, Request{Op: OpStep, Left: left, Right: right})
	if err != nil {
		return nil, false, err
	}
	if resp.Observation == nil {
		return nil, false, fmt.Errorf("%w: step reply without observation", ErrProtocol)
	}
	return resp.Observation, resp.Done, nil
}

// Close tells the remote side to release its simulation and drops the
// connection. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := e.call(ctx, Request{Op: OpClose}); err != nil {
		e.logger.Debug("Close request failed", log.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.t.close()
}

// drop closes a connection whose request and reply streams may be out of
// step; later calls fail with engine.ErrEngineClosed. e.mu must be held.
func (e *Engine) drop(err error) error {
	e.closed = true
	_ = e.t.close()
	e.logger.Warn("Engine connection dropped", log.Error(err))
	return err
}

func (e *Engine) call(ctx context.Context, req Request) (*Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, engine.ErrEngineClosed
	}

	if _, ok := ctx.Deadline(); !ok && e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req.ID = uuid.NewString()
	if err := sendFrame(ctx, e.t, req); err != nil {
		return nil, e.drop(fmt.Errorf("send %s request: %w", req.Op, err))
	}
	data, err := e.t.receive(ctx)
	if err != nil {
		return nil, e.drop(fmt.Errorf("receive %s reply: %w", req.Op, err))
	}

	var resp Response
	if err = json.Unmarshal(data, &resp); err != nil {
		return nil, e.drop(fmt.Errorf("%w: decode %s reply: %v", ErrProtocol, req.Op, err))
	}
	if resp.ID != req.ID {
		return nil, e.drop(fmt.Errorf("%w: reply id %q does not match request %q", ErrProtocol, resp.ID, req.ID))
	}
	if resp.Code != "" || resp.Error != "" {
		return nil, &Error{Op: req.Op, Code: resp.Code, Message: resp.Error}
	}
	return &resp, nil
}
