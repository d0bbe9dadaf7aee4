package remote

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/engine/stub"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/observability/log"
)

var cfg = engine.Config{Scenario: "academy_empty_goal", LeftAgents: 1}

func stubFactory(_ context.Context, cfg engine.Config) (engine.Engine, error) {
	e, err := stub.New(cfg)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func wsServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(NewServer(stubFactory, log.Nop()))
	t.Cleanup(srv.Close)
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

// replay drives a remote and a local engine with the same inputs and checks
// they stay identical.
func replay(t *testing.T, remote engine.Engine) {
	t.Helper()
	ctx := context.Background()
	local, err := stub.New(cfg)
	require.NoError(t, err)

	want, err := local.Reset(ctx, 42)
	require.NoError(t, err)
	got, err := remote.Reset(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, want, got)

	actions := []models.Action{models.ActionRight, models.ActionSprint, models.ActionTopRight, models.ActionShot, models.ActionIdle}
	for _, a := range actions {
		want, wantDone, err := local.Step(ctx, []models.Action{a}, nil)
		require.NoError(t, err)
		got, gotDone, err := remote.Step(ctx, []models.Action{a}, nil)
		require.NoError(t, err)
		require.Equal(t, want, got, a.String())
		require.Equal(t, wantDone, gotDone)
		if wantDone {
			break
		}
	}
}

func TestWebSocketEngine(t *testing.T) {
	e, err := Dial(context.Background(), wsServer(t), cfg, WithLogger(log.Nop()))
	require.NoError(t, err)

	replay(t, e)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	_, err = e.Reset(context.Background(), 1)
	require.ErrorIs(t, err, engine.ErrEngineClosed)
}

func TestRemoteErrorsKeepSentinels(t *testing.T) {
	addr := wsServer(t)

	_, err := Dial(context.Background(), addr, engine.Config{Scenario: "academy_empty_goal", LeftAgents: 5})
	require.ErrorIs(t, err, engine.ErrInvalidConfig)
	var remoteErr *Error
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, OpOpen, remoteErr.Op)
	assert.Equal(t, CodeInvalidConfig, remoteErr.Code)

	e, err := Dial(context.Background(), addr, cfg)
	require.NoError(t, err)
	defer e.Close()

	_, _, err = e.Step(context.Background(), []models.Action{models.ActionIdle}, nil)
	require.ErrorIs(t, err, engine.ErrNotReset)

	_, err = e.Reset(context.Background(), 1)
	require.NoError(t, err)
	_, _, err = e.Step(context.Background(), nil, nil)
	require.ErrorIs(t, err, engine.ErrBadActions)
}

func TestMismatchedReplyID(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err = conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"not-the-request"}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), "ws://"+strings.TrimPrefix(srv.URL, "http://"), cfg)
	require.ErrorIs(t, err, ErrProtocol)
}

// lateTransport times out the first receive and then hands back the reply
// that arrived too late.
type lateTransport struct {
	sent   []Request
	recvs  int
	closed bool
}

func (l *lateTransport) send(_ context.Context, frame []byte) error {
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		return err
	}
	l.sent = append(l.sent, req)
	return nil
}

func (l *lateTransport) receive(context.Context) ([]byte, error) {
	l.recvs++
	if l.recvs == 1 {
		return nil, context.DeadlineExceeded
	}
	return json.Marshal(Response{ID: l.sent[0].ID})
}

func (l *lateTransport) close() error {
	l.closed = true
	return nil
}

func TestTransportErrorDropsConnection(t *testing.T) {
	lt := &lateTransport{}
	e := &Engine{t: lt, timeout: time.Second, logger: log.Nop()}

	_, err := e.Reset(context.Background(), 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, lt.closed)

	// the stale reply is never read as the answer to a new request
	_, err = e.Reset(context.Background(), 2)
	require.ErrorIs(t, err, engine.ErrEngineClosed)
	assert.Len(t, lt.sent, 1)
	assert.Equal(t, 1, lt.recvs)
	require.NoError(t, e.Close())
}

func TestUnsupportedScheme(t *testing.T) {
	_, err := Dial(context.Background(), "tcp://localhost:1", cfg)
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestQUICEngine(t *testing.T) {
	serverTLS, err := SelfSignedTLS()
	require.NoError(t, err)
	ln, err := quic.ListenAddr("127.0.0.1:0", serverTLS, nil)
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewServer(stubFactory, log.Nop()).ServeQUIC(ctx, ln) }()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	e, err := Dial(dialCtx, "quic://"+ln.Addr().String(), cfg,
		WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
		WithLogger(log.Nop()),
	)
	require.NoError(t, err)
	defer e.Close()

	replay(t, e)
}
