package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/observability/log"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// streamRequest is one client message on /v1/envs/{id}/stream.
type streamRequest struct {
	Op      string `json:"op"` // reset | step
	Seed    *int64 `json:"seed,omitempty"`
	Actions []int  `json:"actions,omitempty"`
}

type streamResponse struct {
	Op          string      `json:"op"`
	Observation [][]float32 `json:"observation,omitempty"`
	Reward      []float64   `json:"reward,omitempty"`
	Terminated  bool        `json:"terminated,omitempty"`
	Truncated   bool        `json:"truncated,omitempty"`
	Info        *env.Info   `json:"info,omitempty"`
	Error       string      `json:"error,omitempty"`
	Status      int         `json:"status,omitempty"`
}

// handleStream drives one environment over a WebSocket, one response per
// request, in order. Errors are reported in-band and keep the stream open.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.lookup(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", log.String("instance", id), log.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	logger := s.logger.WithContext(r.Context()).With(log.String("instance", id), log.String("remote", conn.RemoteAddr().String()))
	logger.Debug("Stream opened")

	for {
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Stream closed", log.Error(err))
			}
			return
		}

		resp := s.streamOp(r, id, req)
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			logger.Warn("Stream write failed", log.Error(err))
			return
		}
	}
}

func (s *Server) streamOp(r *http.Request, id string, req streamRequest) streamResponse {
	resp := streamResponse{Op: req.Op}
	var err error
	switch req.Op {
	case "reset":
		err = s.withEnv(id, func(e *env.Env) error {
			obs, info, err := e.Reset(r.Context(), req.Seed)
			resp.Observation, resp.Info = obs, &info
			return err
		})
	case "step":
		err = s.withEnv(id, func(e *env.Env) error {
			res, err := e.Step(r.Context(), req.Actions)
			if err != nil {
				return err
			}
			resp.Observation, resp.Reward = res.Observations, res.Rewards
			resp.Terminated, resp.Truncated = res.Terminated, res.Truncated
			resp.Info = &res.Info
			return nil
		})
	default:
		err = ErrInvalidRequest
	}
	if err != nil {
		return streamResponse{Op: req.Op, Error: err.Error(), Status: statusOf(err)}
	}
	return resp
}
