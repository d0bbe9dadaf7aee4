package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/observation"
	"github.com/zeusync/football/internal/core/observability/log"
)

const maxBodySize = 1 << 20

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestFields, middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.engines != nil {
		// engine clients do not send the bearer token
		r.Handle("/v1/engine", s.engines)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/v1/events", s.handleEvents)
		r.Get("/v1/envs/{id}/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.config.RequestTimeout))

			r.Post("/v1/envs", s.handleCreate)
			r.Get("/v1/envs", s.handleList)
			r.Delete("/v1/envs/{id}", s.handleDelete)
			r.Post("/v1/envs/{id}/reset", s.handleReset)
			r.Post("/v1/envs/{id}/step", s.handleStep)
			r.Get("/v1/envs/{id}/state", s.handleState)
			r.Get("/v1/envs/{id}/observation_space", s.handleObservationSpace)
			r.Get("/v1/envs/{id}/action_space", s.handleActionSpace)
			r.Get("/v1/envs/{id}/observation_layout", s.handleObservationLayout)
		})
	})
	return r
}

// requestFields tags log lines written while serving r with its request ID.
func requestFields(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.ContextWithFields(r.Context(), log.String("request_id", middleware.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type envSummary struct {
	InstanceID     string    `json:"instance_id"`
	Scenario       string    `json:"scenario"`
	Representation string    `json:"representation"`
	NumAgents      int       `json:"num_agents"`
	CreatedAt      time.Time `json:"created_at"`
}

type resetRequest struct {
	Seed *int64 `json:"seed"`
}

type resetResponse struct {
	Observation [][]float32 `json:"observation"`
	Info        env.Info    `json:"info"`
}

type stepRequest struct {
	Actions []int `json:"actions"`
}

type stepResponse struct {
	Observation [][]float32 `json:"observation"`
	Reward      []float64   `json:"reward"`
	Terminated  bool        `json:"terminated"`
	Truncated   bool        `json:"truncated"`
	Info        env.Info    `json:"info"`
}

func newStepResponse(res env.StepResult) stepResponse {
	return stepResponse{
		Observation: res.Observations,
		Reward:      res.Rewards,
		Terminated:  res.Terminated,
		Truncated:   res.Truncated,
		Info:        res.Info,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stats": s.GetStats()})
}

// handleCreate starts from the server defaults; the body overrides them.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	cfg := s.defaults
	if err := decode(r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	// clients may not point the server at arbitrary engines
	cfg.EngineAddr = s.defaults.EngineAddr

	sess, err := s.createEnv(r.Context(), cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary(sess))
}

func summary(sess *session) envSummary {
	cfg := sess.env.Config()
	return envSummary{
		InstanceID:     sess.id,
		Scenario:       cfg.Scenario,
		Representation: cfg.Representation,
		NumAgents:      cfg.NumAgents(),
		CreatedAt:      sess.createdAt,
	}
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	out := []envSummary{}
	s.envs.Range(func(_, value any) bool {
		out = append(out, summary(value.(*session)))
		return true
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.removeEnv(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var resp resetResponse
	err := s.withEnv(chi.URLParam(r, "id"), func(e *env.Env) error {
		obs, info, err := e.Reset(r.Context(), req.Seed)
		resp = resetResponse{Observation: obs, Info: info}
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var res env.StepResult
	err := s.withEnv(chi.URLParam(r, "id"), func(e *env.Env) error {
		var err error
		res, err = e.Step(r.Context(), req.Actions)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStepResponse(res))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var state []float32
	err := s.withEnv(chi.URLParam(r, "id"), func(e *env.Env) error {
		var err error
		state, err = e.State()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

func (s *Server) handleObservationSpace(w http.ResponseWriter, r *http.Request) {
	var spaces []env.Box
	err := s.withEnv(chi.URLParam(r, "id"), func(e *env.Env) error {
		for i := range e.NumAgents() {
			box, err := e.ObservationSpace(i)
			if err != nil {
				return err
			}
			spaces = append(spaces, box)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (s *Server) handleActionSpace(w http.ResponseWriter, r *http.Request) {
	var space env.MultiDiscrete
	err := s.withEnv(chi.URLParam(r, "id"), func(e *env.Env) error {
		space = e.ActionSpace()
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, space)
}

// handleObservationLayout returns the blocks of one agent's vector, agent 0
// unless ?agent= says otherwise.
func (s *Server) handleObservationLayout(w http.ResponseWriter, r *http.Request) {
	agent := 0
	if v := r.URL.Query().Get("agent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: agent must be an integer", ErrInvalidRequest))
			return
		}
		agent = n
	}
	var layout []observation.Block
	err := s.withEnv(chi.URLParam(r, "id"), func(e *env.Env) error {
		if agent < 0 || agent >= e.NumAgents() {
			return fmt.Errorf("%w: %d", env.ErrUnknownAgent, agent)
		}
		layout = e.Layout(agent)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": agent, "blocks": layout})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrEnvNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMaxEnvsReached):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServerClosed), errors.Is(err, ErrNoEventBus):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, env.ErrInvalidConfig),
		errors.Is(err, env.ErrBadAction),
		errors.Is(err, env.ErrNotReset),
		errors.Is(err, env.ErrEpisodeOver),
		errors.Is(err, env.ErrUnknownAgent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithContext(r.Context()).Error("Request failed",
			log.String("path", r.URL.Path), log.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
