package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennydictor/visualmath/internal/auth"
	"github.com/bennydictor/visualmath/internal/config"
	"github.com/bennydictor/visualmath/internal/hub"
	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/internal/presentation"
	"github.com/bennydictor/visualmath/internal/router"
	"github.com/bennydictor/visualmath/internal/session"
	"github.com/bennydictor/visualmath/internal/testutil"
	vmws "github.com/bennydictor/visualmath/internal/websocket"
	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

// stallingRouter holds the reader of the first join once Dispatch returns,
// widening the window between the join and whatever the reader does next.
type stallingRouter struct {
	interfaces.EventRouter
	once    sync.Once
	stalled chan struct{}
	resume  chan struct{}
}

func (r *stallingRouter) Dispatch(ctx context.Context, conn interfaces.Connection, raw []byte) *types.Reply {
	reply := r.EventRouter.Dispatch(ctx, conn, raw)
	if strings.Contains(string(raw), `"event":"join"`) {
		r.once.Do(func() {
			close(r.stalled)
			<-r.resume
		})
	}
	return reply
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(frameTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func sendEvent(t *testing.T, conn *websocket.Conn, token, event string, data interface{}) {
	t.Helper()
	in := map[string]interface{}{"event": event, "authorization": token}
	if data != nil {
		in["data"] = data
	}
	require.NoError(t, conn.WriteJSON(in))
}

func TestJoinReplyArrivesBeforeLaterSnapshots(t *testing.T) {
	ctx := t.Context()
	log := logger.NewNop()
	class := testutil.NewClassroom(t)
	cfg := config.DefaultConfig()

	sessions := session.NewManager(class.DB, log)
	sessionHub := hub.NewHub(cfg.Session.QueueSize, cfg.Session.IdleTimeout, log)
	require.NoError(t, sessionHub.Start())
	t.Cleanup(func() { _ = sessionHub.Stop() })
	registry := vmws.NewRegistry(log)
	authService := auth.NewService(class.DB, class.DB, log)

	engine := presentation.NewEngine(presentation.Deps{
		Sessions:  sessions,
		Access:    sessions.Access(),
		Users:     class.DB,
		Responses: class.DB,
		Registry:  registry,
		Hub:       sessionHub,
		OpTimeout: cfg.Session.OpTimeout,
	}, log)
	stalling := &stallingRouter{
		EventRouter: router.NewRouter(engine, authService, 0, cfg.Session.OpTimeout, log),
		stalled:     make(chan struct{}),
		resume:      make(chan struct{}),
	}
	srv := httptest.NewServer(http.HandlerFunc(vmws.NewHandler(stalling, cfg.WebSocket, nil, log).HandleWebSocket))
	t.Cleanup(srv.Close)
	t.Cleanup(registry.CloseAll)

	started, err := sessions.Start(ctx, class.Teacher, class.Lecture.ID)
	require.NoError(t, err)
	teacherToken, _, err := authService.Login(ctx, class.Teacher.Email, testutil.Password)
	require.NoError(t, err)
	studentToken, _, err := authService.Login(ctx, class.Student.Email, testutil.Password)
	require.NoError(t, err)
	target := map[string]int64{"session_id": started.ID}

	dial := func() *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	presenter, viewer := dial(), dial()

	sendEvent(t, presenter, teacherToken, types.EventPresent, target)
	require.Equal(t, types.StatusOK, readFrame(t, presenter).Status)

	sendEvent(t, viewer, studentToken, types.EventJoin, target)
	select {
	case <-stalling.stalled:
	case <-time.After(frameTimeout):
		t.Fatal("join was never dispatched")
	}

	sendEvent(t, presenter, teacherToken, types.EventNextModule, nil)
	for {
		f := readFrame(t, presenter)
		if f.Type == types.FrameReply {
			require.Equal(t, types.StatusOK, f.Status, "next-module failed: %s", f.Message)
			break
		}
	}
	close(stalling.resume)

	var first, second viewerView
	reply := readFrame(t, viewer)
	require.Equal(t, types.FrameReply, reply.Type, "the join reply must come first")
	require.Equal(t, types.StatusOK, reply.Status)
	reply.decode(t, &first)

	push := readFrame(t, viewer)
	require.Equal(t, types.FrameSnapshot, push.Type)
	push.decode(t, &second)

	require.NotNil(t, first.CurrentModuleNumber)
	require.NotNil(t, second.CurrentModuleNumber)
	assert.Equal(t, 0, *first.CurrentModuleNumber)
	assert.Equal(t, 1, *second.CurrentModuleNumber, "the last frame seen reflects the current module")
}
