// Package presentation drives live started lectures: who is attached to
// which session in which role, where the presenter is in the lecture, and
// which snapshot every attached connection receives after a change.
package presentation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bennydictor/visualmath/internal/bus"
	"github.com/bennydictor/visualmath/internal/hub"
	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/internal/projection"
	"github.com/bennydictor/visualmath/internal/session"
	"github.com/bennydictor/visualmath/internal/websocket"
	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

const defaultOpTimeout = 10 * time.Second

// AccessChecker decides course-level permissions. *session.Access implements it.
type AccessChecker interface {
	CanPresent(ctx context.Context, user *types.User, courseID int64) (bool, error)
	CanView(ctx context.Context, user *types.User, courseID int64) (bool, error)
}

// Deps are the collaborators of an Engine. Bus may be nil for a single instance.
type Deps struct {
	Sessions  interfaces.SessionStore
	Access    AccessChecker
	Users     interfaces.UserStore
	Responses interfaces.ResponseStore
	Registry  *websocket.Registry
	Hub       *hub.Hub
	Bus       bus.Bus
	OpTimeout time.Duration
}

// Engine applies role transitions and session changes. Every change of a
// started lecture, together with its fan-out, runs on that lecture's hub
// actor, so changes of one session are applied one at a time and in order.
type Engine struct {
	sessions  interfaces.SessionStore
	access    AccessChecker
	users     interfaces.UserStore
	responses interfaces.ResponseStore
	registry  *websocket.Registry
	hub       *hub.Hub
	bus       bus.Bus
	opTimeout time.Duration
	log       *logger.Logger
}

// NewEngine creates an engine.
func NewEngine(deps Deps, log *logger.Logger) *Engine {
	if deps.Bus == nil {
		deps.Bus = bus.NewNopBus()
	}
	if deps.OpTimeout <= 0 {
		deps.OpTimeout = defaultOpTimeout
	}
	return &Engine{
		sessions:  deps.Sessions,
		access:    deps.Access,
		users:     deps.Users,
		responses: deps.Responses,
		registry:  deps.Registry,
		hub:       deps.Hub,
		bus:       deps.Bus,
		opTimeout: deps.OpTimeout,
		log:       log.With("component", "presentation"),
	}
}

// Join attaches conn as a viewer of sessionID and returns the viewer snapshot.
// A non-nil deliver is called with the snapshot on the session actor right
// after attaching, so the reply it queues precedes every later push of the
// session. If deliver fails the connection is detached again.
func (e *Engine) Join(ctx context.Context, conn interfaces.Connection, user *types.User, sessionID int64, deliver func(snapshot interface{}) error) (*projection.ViewerSnapshot, error) {
	var snap *projection.ViewerSnapshot
	err := e.attach(ctx, conn, user, sessionID, types.RoleViewing, deliver, func(src projection.Source) interface{} {
		snap = projection.Viewer(src)
		return snap
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Present attaches conn as a presenter of sessionID and returns the full
// snapshot. deliver behaves as for Join.
func (e *Engine) Present(ctx context.Context, conn interfaces.Connection, user *types.User, sessionID int64, deliver func(snapshot interface{}) error) (*projection.PresenterSnapshot, error) {
	var snap *projection.PresenterSnapshot
	err := e.attach(ctx, conn, user, sessionID, types.RolePresenting, deliver, func(src projection.Source) interface{} {
		snap = projection.Presenter(src)
		return snap
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (e *Engine) attach(ctx context.Context, conn interfaces.Connection, user *types.User, sessionID int64, role types.Role, deliver func(interface{}) error, render func(projection.Source) interface{}) error {
	if e.registry.State(conn).Role != types.RoleNone {
		return websocket.ErrAlreadyAttached
	}

	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	lecture, err := e.sessions.Lecture(ctx, s.LectureID)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, user, lecture.CourseID, role); err != nil {
		return err
	}

	// Attaching, rendering and queueing the reply all happen on the actor,
	// so no fan-out of the session can land between them.
	return e.hub.Do(ctx, sessionID, func(ctx context.Context) error {
		src, err := e.source(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := e.registry.Attach(conn, user.ID, sessionID, role); err != nil {
			return err
		}
		snap := render(src)
		if deliver != nil {
			if err := deliver(snap); err != nil {
				e.registry.Detach(conn)
				return err
			}
		}
		e.log.Info("connection attached", "connection_id", conn.ID(), "user_id", user.ID, "session_id", sessionID, "role", role)
		return nil
	})
}

func (e *Engine) authorize(ctx context.Context, user *types.User, courseID int64, role types.Role) error {
	switch role {
	case types.RolePresenting:
		ok, err := e.access.CanPresent(ctx, user, courseID)
		if err != nil {
			return err
		}
		if !ok {
			return session.ErrNotLecturer
		}
	case types.RoleViewing:
		ok, err := e.access.CanView(ctx, user, courseID)
		if err != nil {
			return err
		}
		if !ok {
			return session.ErrNotMember
		}
	default:
		return fmt.Errorf("%w: role %q", types.ErrBadRequest, role)
	}
	return nil
}

// Leave detaches conn. It fails when the connection is not attached or was
// attached by another user.
func (e *Engine) Leave(ctx context.Context, conn interfaces.Connection, user *types.User) error {
	a := e.registry.State(conn)
	if a.Role == types.RoleNone {
		return ErrNotAttached
	}
	if a.UserID != user.ID {
		return ErrWrongUser
	}
	if _, ok := e.registry.Detach(conn); !ok {
		return ErrNotAttached
	}
	e.log.Info("connection left", "connection_id", conn.ID(), "session_id", a.SessionID, "role", a.Role)
	return nil
}

// Disconnect is the implicit leave of a connection that went away.
func (e *Engine) Disconnect(conn interfaces.Connection) {
	if a, ok := e.registry.Detach(conn); ok {
		e.log.Debug("detached closed connection", "connection_id", conn.ID(), "session_id", a.SessionID, "role", a.Role)
	}
}

// Snapshot renders sessionID for user in the given role, checking the same
// permissions as joining or presenting.
func (e *Engine) Snapshot(ctx context.Context, user *types.User, sessionID int64, role types.Role) (interface{}, error) {
	src, err := e.source(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, user, src.Lecture.CourseID, role); err != nil {
		return nil, err
	}
	return projection.For(role, src)
}

// Responses lists the answers of a started lecture to its lecturer or an admin.
func (e *Engine) Responses(ctx context.Context, user *types.User, sessionID int64) ([]*types.QuestionResponse, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !user.Admin && s.LecturerID != user.ID {
		return nil, session.ErrNotLecturer
	}
	return e.responses.ListResponses(ctx, sessionID)
}

func (e *Engine) source(ctx context.Context, sessionID int64) (projection.Source, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return projection.Source{}, err
	}
	lecture, err := e.sessions.Lecture(ctx, s.LectureID)
	if err != nil {
		return projection.Source{}, err
	}
	lecturer, err := e.users.GetUser(ctx, s.LecturerID)
	if err != nil {
		return projection.Source{}, fmt.Errorf("failed to load lecturer of session %d: %w", sessionID, err)
	}
	return projection.Source{Session: s, Lecture: lecture, Lecturer: lecturer}, nil
}

// fanout pushes the viewer projection to the viewing group and the full
// projection to the presenting group of the session.
func (e *Engine) fanout(src projection.Source) {
	id := src.Session.ID
	viewers := e.push(id, types.RoleViewing, types.Push{Type: types.FrameSnapshot, Data: projection.Viewer(src)})
	presenters := e.push(id, types.RolePresenting, types.Push{Type: types.FrameSnapshot, Data: projection.Presenter(src)})
	e.log.Debug("snapshot fanned out", "session_id", id, "viewers", viewers, "presenters", presenters)
}

func (e *Engine) push(sessionID int64, role types.Role, frame types.Push) int {
	data, err := json.Marshal(frame)
	if err != nil {
		e.log.Error("failed to encode push", "session_id", sessionID, "type", frame.Type, "error", err)
		return 0
	}
	return e.registry.Broadcast(sessionID, role, data)
}

// HandleChange reacts to a change another instance made: the cached copy is
// dropped and local connections get fresh snapshots.
func (e *Engine) HandleChange(c bus.Change) {
	e.sessions.Invalidate(c.SessionID)

	ctx, cancel := context.WithTimeout(context.Background(), e.opTimeout)
	defer cancel()

	err := e.hub.Do(ctx, c.SessionID, func(ctx context.Context) error {
		src, err := e.source(ctx, c.SessionID)
		if err != nil {
			return err
		}
		e.fanout(src)
		return nil
	})
	if err != nil {
		e.log.Warn("failed to apply remote change", "session_id", c.SessionID, "origin", c.Origin, "error", err)
	}
}
