package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/engine/remote"
	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/events/bus"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/observability/log"
)

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultServerConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	defaults := env.DefaultConfig()
	defaults.Scenario = "academy_empty_goal_close"

	s := NewServer(cfg, defaults, bus.New(), log.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close()
	})
	return s, ts
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func create(t *testing.T, ts *httptest.Server, body any) envSummary {
	t.Helper()
	var sum envSummary
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, ts.URL+"/v1/envs", body, &sum))
	return sum
}

func shot() []int { return []int{int(models.ActionShot)} }

func TestEnvLifecycle(t *testing.T) {
	s, ts := newTestServer(t, nil)

	sum := create(t, ts, map[string]any{})
	assert.Equal(t, "academy_empty_goal_close", sum.Scenario)
	assert.Equal(t, 1, sum.NumAgents)
	assert.Equal(t, int64(1), s.GetStats().EnvCount)

	base := ts.URL + "/v1/envs/" + sum.InstanceID

	// stepping before reset is a client error
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, base+"/step", stepRequest{Actions: shot()}, nil))

	var reset resetResponse
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/reset", map[string]any{"seed": 7}, &reset))
	require.Len(t, reset.Observation, 1)
	assert.Equal(t, 1, reset.Info.Episode)
	assert.Equal(t, sum.InstanceID, reset.Info.Instance)

	var step stepResponse
	for !step.Terminated && !step.Truncated {
		require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/step", stepRequest{Actions: shot()}, &step))
	}
	assert.True(t, step.Terminated)
	assert.Equal(t, []float64{1}, step.Reward)
	assert.Equal(t, [2]int{1, 0}, step.Info.Score)

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, base+"/step", stepRequest{Actions: shot()}, nil))

	var list []envSummary
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/v1/envs", nil, &list))
	require.Len(t, list, 1)

	require.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, base, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodPost, base+"/reset", nil, nil))
	assert.Equal(t, int64(0), s.GetStats().EnvCount)
}

func TestEnvDescriptors(t *testing.T) {
	_, ts := newTestServer(t, nil)
	sum := create(t, ts, map[string]any{"scenario": "academy_3_vs_1_with_keeper", "left_agents": 2})
	base := ts.URL + "/v1/envs/" + sum.InstanceID

	var spaces []map[string]any
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, base+"/observation_space", nil, &spaces))
	assert.Len(t, spaces, 2)

	var actions map[string]any
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, base+"/action_space", nil, &actions))
	assert.Equal(t, []any{19.0, 19.0}, actions["nvec"])

	var layout struct {
		Agent  int              `json:"agent"`
		Blocks []map[string]any `json:"blocks"`
	}
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, base+"/observation_layout?agent=1", nil, &layout))
	assert.Equal(t, 1, layout.Agent)
	assert.NotEmpty(t, layout.Blocks)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, base+"/observation_layout?agent=5", nil, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, base+"/observation_layout?agent=x", nil, nil))

	// state needs a reset first
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, base+"/state", nil, nil))
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/reset", nil, nil))
	var state map[string][]float32
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, base+"/state", nil, &state))
	assert.Len(t, state["state"], 115)
}

func TestCreateErrors(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.MaxEnvs = 1 })

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, ts.URL+"/v1/envs", map[string]any{"scenario": "nope"}, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, ts.URL+"/v1/envs", map[string]any{"bogus": 1}, nil))

	// client supplied engine addresses are ignored, so this uses the stub
	create(t, ts, map[string]any{"engine_addr": "ws://127.0.0.1:1/v1/engine"})
	assert.Equal(t, http.StatusTooManyRequests, do(t, http.MethodPost, ts.URL+"/v1/envs", map[string]any{}, nil))
}

func TestEngineSessionsShareEnvLimit(t *testing.T) {
	s, ts := newTestServer(t, func(c *Config) { c.MaxEnvs = 1 })
	addr := "ws://" + strings.TrimPrefix(ts.URL, "http://") + "/v1/engine"
	engCfg := engine.Config{Scenario: "academy_empty_goal", LeftAgents: 1}

	eng, err := remote.Dial(context.Background(), addr, engCfg, remote.WithLogger(log.Nop()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.GetStats().EngineSessions)

	assert.Equal(t, http.StatusTooManyRequests, do(t, http.MethodPost, ts.URL+"/v1/envs", map[string]any{}, nil))
	_, err = remote.Dial(context.Background(), addr, engCfg, remote.WithLogger(log.Nop()))
	require.ErrorIs(t, err, engine.ErrCapacity)

	require.NoError(t, eng.Close())
	assert.Eventually(t, func() bool { return s.GetStats().EngineSessions == 0 }, 2*time.Second, 10*time.Millisecond)
	create(t, ts, map[string]any{})
}

func TestAuthToken(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.AuthToken = "secret" })

	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, ts.URL+"/v1/envs", nil, nil))
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/v1/envs?token=secret", nil, nil))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/envs", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/healthz", nil, nil))
}

func TestStream(t *testing.T) {
	_, ts := newTestServer(t, nil)
	sum := create(t, ts, map[string]any{})

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/envs/" + sum.InstanceID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	var resp streamResponse
	require.NoError(t, conn.WriteJSON(streamRequest{Op: "step", Actions: shot()}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.NotEmpty(t, resp.Error)

	require.NoError(t, conn.WriteJSON(streamRequest{Op: "reset"}))
	resp = streamResponse{}
	require.NoError(t, conn.ReadJSON(&resp))
	require.Empty(t, resp.Error)
	require.Len(t, resp.Observation, 1)

	for !resp.Terminated && !resp.Truncated {
		require.NoError(t, conn.WriteJSON(streamRequest{Op: "step", Actions: shot()}))
		resp = streamResponse{}
		require.NoError(t, conn.ReadJSON(&resp))
		require.Empty(t, resp.Error)
	}
	assert.True(t, resp.Terminated)
	assert.Equal(t, [2]int{1, 0}, resp.Info.Score)

	require.NoError(t, conn.WriteJSON(streamRequest{Op: "dance"}))
	resp = streamResponse{}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	_, _, err = websocket.DefaultDialer.Dial(strings.Replace(u, sum.InstanceID, "missing", 1), nil)
	assert.Error(t, err)
}

func TestEventsStream(t *testing.T) {
	_, ts := newTestServer(t, nil)
	sum := create(t, ts, map[string]any{})
	base := ts.URL + "/v1/envs/" + sum.InstanceID

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events?instance="+sum.InstanceID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/reset", nil, nil))
	var step stepResponse
	for !step.Terminated && !step.Truncated {
		require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/step", stepRequest{Actions: shot()}, &step))
	}

	var got []episodeEvent
	scanner := bufio.NewScanner(resp.Body)
	for len(got) < 2 && scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev episodeEvent
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "episode.goal", got[0].Type)
	assert.Equal(t, models.SideLeft.String(), got[0].Scorer)
	assert.Equal(t, "episode.end", got[1].Type)
	assert.True(t, got[1].Terminated)
	assert.Equal(t, []float64{1}, got[1].Returns)
}

func TestIdleEnvsAreClosed(t *testing.T) {
	s, ts := newTestServer(t, nil)
	idle := create(t, ts, map[string]any{})
	busy := create(t, ts, map[string]any{})

	sess, err := s.lookup(idle.InstanceID)
	require.NoError(t, err)
	sess.lastSeen.Store(time.Now().Add(-time.Hour).Unix())

	s.performHealthChecks(time.Now())

	_, err = s.lookup(idle.InstanceID)
	assert.ErrorIs(t, err, ErrEnvNotFound)
	_, err = s.lookup(busy.InstanceID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), s.GetStats().EnvCount)
}

func TestStartStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := NewServer(cfg, env.DefaultConfig(), nil, log.Nop())

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrServerAlreadyRunning)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.Stop(context.Background()), ErrServerNotRunning)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Start(context.Background()), ErrServerClosed)
}

func TestRestart(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := NewServer(cfg, env.DefaultConfig(), nil, log.Nop())
	t.Cleanup(func() { _ = s.Close() })

	for range 2 {
		require.NoError(t, s.Start(context.Background()))
		select {
		case <-s.done():
			t.Fatal("stop channel closed while running")
		default:
		}

		resp, err := http.Get("http://" + s.Addr() + "/healthz")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		stop := s.done()
		require.NotPanics(t, func() { require.NoError(t, s.Stop(context.Background())) })
		select {
		case <-stop:
		default:
			t.Fatal("stop channel still open after Stop")
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	s := NewServer(DefaultServerConfig(), env.DefaultConfig(), nil, log.Nop(),
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	plain := NewServer(DefaultServerConfig(), env.DefaultConfig(), nil, log.Nop())
	rec = httptest.NewRecorder()
	plain.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
