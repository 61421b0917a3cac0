package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/bennydictor/visualmath/internal/app"
	"github.com/bennydictor/visualmath/internal/config"
	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/internal/testutil"
	"github.com/bennydictor/visualmath/pkg/types"
)

const frameTimeout = 2 * time.Second

// frame is any server frame: a reply or a push.
type frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Status  string          `json:"status"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f frame) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Data, v), "data: %s", f.Data)
}

// server is a running application on a free port over a seeded classroom.
type server struct {
	app   *app.Application
	class *testutil.Classroom
	base  string
}

func startServer(t *testing.T) *server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "visualmath.db")
	class := testutil.NewClassroomAt(t, path)
	require.NoError(t, class.DB.Close())

	cfg := config.DefaultConfig()
	cfg.Database.Path = path
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0

	application, err := app.NewApplication(cfg, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, application.Start(t.Context()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(ctx)
	})

	return &server{app: application, class: class, base: "http://" + application.GetAddr()}
}

// request performs an API call and decodes the JSON body into out when given.
func (s *server) request(t *testing.T, method, path, token string, body, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.base+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *server) login(t *testing.T, user *types.User) string {
	t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	code := s.request(t, http.MethodPost, "/api/sessions", "", map[string]string{
		"email":    user.Email,
		"password": testutil.Password,
	}, &out)
	require.Equal(t, http.StatusCreated, code)
	return out.Token
}

// client is a websocket connection that splits replies from pushes.
type client struct {
	conn    *websocket.Conn
	token   string
	replies chan frame
	pushes  chan frame
}

func (s *server) dial(t *testing.T, token string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.app.GetAddr()+"/ws", nil)
	require.NoError(t, err)

	c := &client{conn: conn, token: token, replies: make(chan frame, 32), pushes: make(chan frame, 32)}
	go c.readLoop()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

func (c *client) readLoop() {
	defer close(c.replies)
	defer close(c.pushes)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if json.Unmarshal(data, &f) != nil {
			continue
		}
		if f.Type == types.FrameReply {
			c.replies <- f
		} else {
			c.pushes <- f
		}
	}
}

// send emits an event and waits for its reply.
func (c *client) send(t *testing.T, event string, data interface{}) frame {
	t.Helper()
	in := map[string]interface{}{"event": event, "authorization": c.token}
	if data != nil {
		in["data"] = data
	}
	require.NoError(t, c.conn.WriteJSON(in))
	return c.next(t, c.replies, "reply to "+event)
}

func (c *client) ok(t *testing.T, event string, data interface{}) frame {
	t.Helper()
	f := c.send(t, event, data)
	require.Equal(t, types.StatusOK, f.Status, "%s failed: %s %s", event, f.Error, f.Message)
	return f
}

func (c *client) push(t *testing.T) frame {
	t.Helper()
	return c.next(t, c.pushes, "push")
}

func (c *client) noPush(t *testing.T) {
	t.Helper()
	select {
	case f := <-c.pushes:
		t.Fatalf("unexpected push %s: %s", f.Type, f.Data)
	case <-time.After(100 * time.Millisecond):
	}
}

func (c *client) next(t *testing.T, ch <-chan frame, what string) frame {
	t.Helper()
	select {
	case f, ok := <-ch:
		require.True(t, ok, fmt.Sprintf("connection closed while waiting for %s", what))
		return f
	case <-time.After(frameTimeout):
		t.Fatalf("timed out waiting for %s", what)
		return frame{}
	}
}
