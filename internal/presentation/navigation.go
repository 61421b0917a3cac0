package presentation

import (
	"context"
	"errors"

	"github.com/bennydictor/visualmath/internal/session"
	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

// transition computes the next state of a started lecture from the current
// one. A nil next with a nil error means there is nothing to change.
type transition func(cur *types.StartedLecture, lecture *types.Lecture) (next *types.StartedLecture, err error)

// Next moves the presenter's session one module forward.
func (e *Engine) Next(ctx context.Context, conn interfaces.Connection, user *types.User) error {
	return e.navigate(ctx, conn, user, 1)
}

// Prev moves the presenter's session one module back.
func (e *Engine) Prev(ctx context.Context, conn interfaces.Connection, user *types.User) error {
	return e.navigate(ctx, conn, user, -1)
}

// navigate steps relative to the module the session was on when the event
// arrived. A step that finds the session already at its target was applied
// by an identical earlier event and succeeds without a change.
func (e *Engine) navigate(ctx context.Context, conn interfaces.Connection, user *types.User, delta int) error {
	observed, err := e.presenting(ctx, conn, user)
	if err != nil {
		return err
	}
	from := *observed.CurrentModuleNumber
	to := from + delta

	return e.apply(ctx, user, observed, func(cur *types.StartedLecture, lecture *types.Lecture) (*types.StartedLecture, error) {
		if !cur.Active() {
			return nil, ErrSessionEnded
		}
		switch at := *cur.CurrentModuleNumber; {
		case at == to:
			return nil, nil
		case at != from:
			return nil, ErrModuleChanged
		}
		if to < 0 {
			return nil, ErrFirstModule
		}
		if to >= len(lecture.Modules) {
			return nil, ErrLastModule
		}

		next := cur.Clone()
		next.CurrentModuleNumber = types.IntPtr(to)
		next.CurrentModuleStarted = types.InitialGate(lecture.Modules[to])
		return next, nil
	})
}

// StartModule opens the current gated module to viewers.
func (e *Engine) StartModule(ctx context.Context, conn interfaces.Connection, user *types.User) error {
	return e.setGate(ctx, conn, user, types.GateOpen)
}

// StopModule closes the current gated module again.
func (e *Engine) StopModule(ctx context.Context, conn interfaces.Connection, user *types.User) error {
	return e.setGate(ctx, conn, user, types.GateClosed)
}

func (e *Engine) setGate(ctx context.Context, conn interfaces.Connection, user *types.User, gate types.GateState) error {
	observed, err := e.presenting(ctx, conn, user)
	if err != nil {
		return err
	}
	if observed.CurrentModuleStarted == types.GateNone {
		return ErrNoGate
	}
	module := *observed.CurrentModuleNumber

	return e.apply(ctx, user, observed, func(cur *types.StartedLecture, _ *types.Lecture) (*types.StartedLecture, error) {
		if !cur.Active() {
			return nil, ErrSessionEnded
		}
		if *cur.CurrentModuleNumber != module {
			return nil, ErrModuleChanged
		}
		switch cur.CurrentModuleStarted {
		case types.GateNone:
			return nil, ErrNoGate
		case gate:
			return nil, nil
		}

		next := cur.Clone()
		next.CurrentModuleStarted = gate
		return next, nil
	})
}

// Stop ends the presenter's session. Ending an ended session succeeds.
func (e *Engine) Stop(ctx context.Context, conn interfaces.Connection, user *types.User) error {
	a := e.registry.State(conn)
	if a.Role != types.RolePresenting {
		return ErrNotPresenting
	}
	if a.UserID != user.ID {
		return ErrWrongUser
	}
	return e.StopSession(ctx, user, a.SessionID)
}

// StopSession ends sessionID on behalf of user, who must be allowed to
// present it. Attached connections stay attached and receive the ended snapshot.
func (e *Engine) StopSession(ctx context.Context, user *types.User, sessionID int64) error {
	observed, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	return e.apply(ctx, user, observed, func(cur *types.StartedLecture, _ *types.Lecture) (*types.StartedLecture, error) {
		if !cur.Active() {
			return nil, nil
		}
		next := cur.Clone()
		next.CurrentModuleNumber = nil
		next.CurrentModuleStarted = types.GateNone
		return next, nil
	})
}

// presenting checks that conn presents a live session on behalf of user and
// returns that session as it is now.
func (e *Engine) presenting(ctx context.Context, conn interfaces.Connection, user *types.User) (*types.StartedLecture, error) {
	a := e.registry.State(conn)
	if a.Role != types.RolePresenting {
		return nil, ErrNotPresenting
	}
	if a.UserID != user.ID {
		return nil, ErrWrongUser
	}

	s, err := e.sessions.Get(ctx, a.SessionID)
	if err != nil {
		return nil, err
	}
	if !s.Active() {
		return nil, ErrSessionEnded
	}
	return s, nil
}

// apply re-checks that user may present the session, then runs t on the
// session's actor: read, transition, compare-and-set, fan out, publish.
// A compare-and-set lost to another instance is retried once on fresh state.
func (e *Engine) apply(ctx context.Context, user *types.User, observed *types.StartedLecture, t transition) error {
	lecture, err := e.sessions.Lecture(ctx, observed.LectureID)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, user, lecture.CourseID, types.RolePresenting); err != nil {
		return err
	}

	id := observed.ID
	return e.hub.Do(ctx, id, func(ctx context.Context) error {
		var err error
		for attempt := 0; attempt < 2; attempt++ {
			err = e.step(ctx, id, lecture, t)
			if !errors.Is(err, interfaces.ErrStaleUpdate) {
				return err
			}
			e.log.Warn("started lecture changed elsewhere, retrying", "session_id", id)
		}
		return err
	})
}

func (e *Engine) step(ctx context.Context, id int64, lecture *types.Lecture, t transition) error {
	cur, err := e.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := t(cur, lecture)
	if err != nil || next == nil {
		return err
	}

	if err := e.sessions.Update(ctx, cur, next); err != nil {
		return err
	}
	e.log.Info("started lecture changed",
		"session_id", id,
		"module", next.CurrentModuleNumber,
		"started", next.CurrentModuleStarted.String())

	src, err := e.source(ctx, id)
	if err != nil {
		// The change is committed; remote instances can still catch up.
		e.log.Error("failed to load snapshot source", "session_id", id, "error", err)
	} else {
		e.fanout(src)
	}

	if err := e.bus.Publish(ctx, id); err != nil {
		e.log.Warn("failed to publish session change", "session_id", id, "error", err)
	}
	return nil
}

var _ AccessChecker = (*session.Access)(nil)
