package integration

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennydictor/visualmath/pkg/types"
)

type questionView struct {
	Kind          string   `json:"kind"`
	Variants      []string `json:"variants"`
	CorrectAnswer *int     `json:"correct_answer"`
}

type moduleView struct {
	Title    string        `json:"title"`
	Question *questionView `json:"question"`
}

type presenterView struct {
	ID                   int64       `json:"id"`
	Active               bool        `json:"active"`
	CurrentModuleNumber  *int        `json:"current_module_number"`
	CurrentModuleStarted *bool       `json:"current_module_started"`
	CurrentModule        *moduleView `json:"current_module"`
}

type viewerView struct {
	ID                     int64       `json:"id"`
	Active                 bool        `json:"active"`
	CurrentModuleNumber    *int        `json:"current_module_number"`
	CurrentModuleStarted   *bool       `json:"current_module_started"`
	CurrentModuleIfStarted *moduleView `json:"current_module_if_started"`
}

func TestLectureFlow(t *testing.T) {
	s := startServer(t)
	teacherToken := s.login(t, s.class.Teacher)
	studentToken := s.login(t, s.class.Student)

	var started presenterView
	code := s.request(t, http.MethodPost, "/api/started_lectures", teacherToken,
		map[string]int64{"lecture_id": s.class.Lecture.ID}, &started)
	require.Equal(t, http.StatusCreated, code)
	session := map[string]int64{"session_id": started.ID}

	presenter := s.dial(t, teacherToken)
	viewer := s.dial(t, studentToken)

	var snap presenterView
	presenter.ok(t, types.EventPresent, session).decode(t, &snap)
	require.NotNil(t, snap.CurrentModuleNumber)
	assert.Equal(t, 0, *snap.CurrentModuleNumber)
	assert.Equal(t, "Graph of 1/x", snap.CurrentModule.Title)

	var joined viewerView
	viewer.ok(t, types.EventJoin, session).decode(t, &joined)
	require.NotNil(t, joined.CurrentModuleIfStarted, "ungated module is visible")
	presenter.noPush(t)

	// Onto the gated question module.
	presenter.ok(t, types.EventNextModule, nil)

	var pushed presenterView
	push := presenter.push(t)
	require.Equal(t, types.FrameSnapshot, push.Type)
	push.decode(t, &pushed)
	assert.Equal(t, 1, *pushed.CurrentModuleNumber)
	require.NotNil(t, pushed.CurrentModuleStarted)
	assert.False(t, *pushed.CurrentModuleStarted)
	require.NotNil(t, pushed.CurrentModule.Question.CorrectAnswer, "presenters see the answer key")

	var seen viewerView
	viewer.push(t).decode(t, &seen)
	assert.Equal(t, 1, *seen.CurrentModuleNumber)
	assert.Nil(t, seen.CurrentModuleIfStarted, "closed module is hidden")

	reply := viewer.send(t, types.EventAnswer, map[string]interface{}{"index": 0, "response": "1"})
	assert.Equal(t, types.StatusError, reply.Status)
	assert.Equal(t, types.KindForbidden, reply.Error)

	presenter.ok(t, types.EventStartModule, nil)
	presenter.push(t)
	viewer.push(t).decode(t, &seen)
	require.NotNil(t, seen.CurrentModuleIfStarted)
	require.NotNil(t, seen.CurrentModuleIfStarted.Question)
	assert.Equal(t, []string{"1", "0", "infinity"}, seen.CurrentModuleIfStarted.Question.Variants)
	assert.Nil(t, seen.CurrentModuleIfStarted.Question.CorrectAnswer, "viewers never see the answer key")

	var result types.AnswerResult
	viewer.ok(t, types.EventAnswer, map[string]interface{}{"index": 0, "response": "1"}).decode(t, &result)
	assert.Equal(t, types.AnswerResult{Number: 0, Correct: true}, result)

	var response types.QuestionResponse
	push = presenter.push(t)
	require.Equal(t, types.FrameResponse, push.Type)
	push.decode(t, &response)
	assert.Equal(t, s.class.Student.ID, response.UserID)
	assert.True(t, response.Correct)

	var listed struct {
		Responses []types.QuestionResponse `json:"responses"`
	}
	path := "/api/started_lectures/" + strconv.FormatInt(started.ID, 10)
	require.Equal(t, http.StatusOK, s.request(t, http.MethodGet, path+"/responses", teacherToken, nil, &listed))
	assert.Len(t, listed.Responses, 1)

	// Viewers cannot drive the lecture.
	reply = viewer.send(t, types.EventNextModule, nil)
	assert.Equal(t, types.KindForbidden, reply.Error)

	presenter.ok(t, types.EventStop, nil)
	presenter.push(t).decode(t, &pushed)
	assert.False(t, pushed.Active)
	viewer.push(t).decode(t, &seen)
	assert.False(t, seen.Active)
	assert.Nil(t, seen.CurrentModuleNumber)

	var final presenterView
	require.Equal(t, http.StatusOK, s.request(t, http.MethodGet, path, teacherToken, nil, &final))
	assert.False(t, final.Active)
}

func TestLectureFlow_Authentication(t *testing.T) {
	s := startServer(t)
	teacherToken := s.login(t, s.class.Teacher)

	var started presenterView
	require.Equal(t, http.StatusCreated, s.request(t, http.MethodPost, "/api/started_lectures", teacherToken,
		map[string]int64{"lecture_id": s.class.Lecture.ID}, &started))

	anonymous := s.dial(t, "")
	reply := anonymous.send(t, types.EventJoin, map[string]int64{"session_id": started.ID})
	assert.Equal(t, types.KindUnauthorized, reply.Error)

	outsider := s.dial(t, s.login(t, s.class.Outsider))
	reply = outsider.send(t, types.EventJoin, map[string]int64{"session_id": started.ID})
	assert.Equal(t, types.KindForbidden, reply.Error)

	reply = outsider.send(t, types.EventJoin, map[string]int64{"session_id": started.ID + 100})
	assert.Equal(t, types.KindNotFound, reply.Error)

	// A token revoked by a later login stops working on open sockets too.
	stale := s.dial(t, teacherToken)
	s.login(t, s.class.Teacher)
	reply = stale.send(t, types.EventPresent, map[string]int64{"session_id": started.ID})
	assert.Equal(t, types.KindUnauthorized, reply.Error)
}

func TestLectureFlow_PresenterLeavesSessionSurvives(t *testing.T) {
	s := startServer(t)
	teacherToken := s.login(t, s.class.Teacher)
	studentToken := s.login(t, s.class.Student)

	var started presenterView
	require.Equal(t, http.StatusCreated, s.request(t, http.MethodPost, "/api/started_lectures", teacherToken,
		map[string]int64{"lecture_id": s.class.Lecture.ID}, &started))
	session := map[string]int64{"session_id": started.ID}

	presenter := s.dial(t, teacherToken)
	presenter.ok(t, types.EventPresent, session)
	presenter.ok(t, types.EventNextModule, nil)
	presenter.push(t)
	require.NoError(t, presenter.conn.Close())

	viewer := s.dial(t, studentToken)
	var seen viewerView
	viewer.ok(t, types.EventJoin, session).decode(t, &seen)
	assert.True(t, seen.Active)
	assert.Equal(t, 1, *seen.CurrentModuleNumber)

	var health map[string]interface{}
	require.Equal(t, http.StatusOK, s.request(t, http.MethodGet, "/health", "", nil, &health))
	assert.Equal(t, "healthy", health["status"])
}
