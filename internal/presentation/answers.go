package presentation

import (
	"context"
	"time"

	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

// Answer grades a viewer's response to question req.Index of the current
// module, stores it and notifies the presenters. The module must be open.
func (e *Engine) Answer(ctx context.Context, conn interfaces.Connection, user *types.User, req types.AnswerRequest) (*types.AnswerResult, error) {
	a := e.registry.State(conn)
	if a.Role != types.RoleViewing {
		return nil, ErrNotViewing
	}
	if a.UserID != user.ID {
		return nil, ErrWrongUser
	}

	var result *types.AnswerResult
	err := e.hub.Do(ctx, a.SessionID, func(ctx context.Context) error {
		s, err := e.sessions.Get(ctx, a.SessionID)
		if err != nil {
			return err
		}
		if !s.Active() {
			return ErrSessionEnded
		}
		if s.CurrentModuleStarted != types.GateOpen {
			return ErrModuleNotStarted
		}
		lecture, err := e.sessions.Lecture(ctx, s.LectureID)
		if err != nil {
			return err
		}

		n := *s.CurrentModuleNumber
		questions := types.ModuleQuestions(lecture.Modules[n])
		if req.Index < 0 || req.Index >= len(questions) || questions[req.Index] == nil {
			return ErrNoSuchQuestion
		}

		r := &types.QuestionResponse{
			StartedLectureID: s.ID,
			QuestionNumber:   lecture.QuestionCount(n) + req.Index,
			UserID:           user.ID,
			Response:         req.Response,
			Correct:          questions[req.Index].Check(req.Response),
			AnsweredAt:       time.Now().UTC(),
		}
		if err := e.responses.SaveResponse(ctx, r); err != nil {
			return err
		}

		e.push(s.ID, types.RolePresenting, types.Push{Type: types.FrameResponse, Data: r})
		result = &types.AnswerResult{Number: r.QuestionNumber, Correct: r.Correct}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("answer recorded", "session_id", a.SessionID, "user_id", user.ID, "number", result.Number)
	return result, nil
}
