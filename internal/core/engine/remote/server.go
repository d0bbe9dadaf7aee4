package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/observability/log"
)

// Factory creates the engine that serves one client connection.
type Factory func(ctx context.Context, cfg engine.Config) (engine.Engine, error)

// Server exposes locally built engines to remote clients, one engine per
// connection.
type Server struct {
	factory  Factory
	logger   log.Log
	upgrader websocket.Upgrader
}

func NewServer(factory Factory, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	return &Server{
		factory: factory,
		logger:  logger.With(log.String("component", "engine_server")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a WebSocket and serves engine frames on it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", log.Error(err))
		return
	}
	s.serve(r.Context(), newWSTransport(conn), r.RemoteAddr)
}

// ServeQUIC accepts QUIC connections until ctx is done or the listener fails.
// Each connection opens one stream carrying its frames.
func (s *Server) ServeQUIC(ctx context.Context, ln *quic.Listener) error {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			stream, err := conn.AcceptStream(ctx)
			if err != nil {
				s.logger.Warn("Accept stream failed", log.Error(err))
				_ = conn.CloseWithError(1, "no stream")
				return
			}
			s.serve(ctx, newQUICTransport(conn, stream), conn.RemoteAddr().String())
		}()
	}
}

type session struct {
	s   *Server
	eng engine.Engine
}

func (s *Server) serve(ctx context.Context, t transport, peer string) {
	logger := s.logger.With(log.String("peer", peer))
	logger.Debug("Engine session started")

	sess := &session{s: s}
	defer func() {
		if sess.eng != nil {
			_ = sess.eng.Close()
		}
		_ = t.close()
		logger.Debug("Engine session finished")
	}()

	for {
		data, err := t.receive(ctx)
		if err != nil {
			if !isClosed(err) {
				logger.Warn("Read failed", log.Error(err))
			}
			return
		}

		resp, stop := sess.handle(ctx, data)
		if err = sendFrame(ctx, t, resp); err != nil {
			logger.Warn("Write failed", log.Error(err))
			return
		}
		if stop {
			return
		}
	}
}

func (ss *session) handle(ctx context.Context, data []byte) (Response, bool) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return failure("", fmt.Errorf("%w: %v", ErrProtocol, err)), false
	}
	resp := Response{ID: req.ID}

	switch req.Op {
	case OpOpen:
		if ss.eng != nil {
			return failure(req.ID, fmt.Errorf("%w: engine already open", ErrProtocol)), false
		}
		if req.Config == nil {
			return failure(req.ID, fmt.Errorf("%w: open without config", ErrProtocol)), false
		}
		eng, err := ss.s.factory(ctx, *req.Config)
		if err != nil {
			return failure(req.ID, err), false
		}
		ss.eng = eng
		return resp, false

	case OpReset:
		if ss.eng == nil {
			return failure(req.ID, fmt.Errorf("%w: engine not open", ErrProtocol)), false
		}
		obs, err := ss.eng.Reset(ctx, req.Seed)
		if err != nil {
			return failure(req.ID, err), false
		}
		resp.Observation = obs
		return resp, false

	case OpStep:
		if ss.eng == nil {
			return failure(req.ID, fmt.Errorf("%w: engine not open", ErrProtocol)), false
		}
		obs, done, err := ss.eng.Step(ctx, req.Left, req.Right)
		if err != nil {
			return failure(req.ID, err), false
		}
		resp.Observation, resp.Done = obs, done
		return resp, false

	case OpClose:
		return resp, true

	default:
		return failure(req.ID, fmt.Errorf("%w: unknown op %q", ErrProtocol, req.Op)), false
	}
}

func failure(id string, err error) Response {
	return Response{ID: id, Code: codeOf(err), Error: err.Error()}
}

func isClosed(err error) bool {
	var appErr *quic.ApplicationError
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.As(err, &appErr)
}
