package projection

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennydictor/visualmath/internal/testutil"
	"github.com/bennydictor/visualmath/pkg/types"
)

func source(index *int, gate types.GateState) Source {
	return Source{
		Session: &types.StartedLecture{
			ID:                   5,
			LectureID:            1,
			LecturerID:           2,
			CurrentModuleNumber:  index,
			CurrentModuleStarted: gate,
		},
		Lecture:  testutil.SampleLecture(1, 2),
		Lecturer: &types.User{ID: 2, FirstName: "Ada", Email: "ada@example.com", Password: "hash"},
	}
}

// allStates covers every index with every gate value plus the ended state.
func allStates() []Source {
	var out []Source
	for i := 0; i < 3; i++ {
		for _, g := range []types.GateState{types.GateNone, types.GateClosed, types.GateOpen} {
			out = append(out, source(types.IntPtr(i), g))
		}
	}
	return append(out, source(nil, types.GateNone))
}

func TestPresenter_IncludesAnswerKeys(t *testing.T) {
	snap := Presenter(source(types.IntPtr(1), types.GateClosed))

	require.NotNil(t, snap.CurrentModule)
	assert.Equal(t, types.ModuleText, snap.CurrentModule.Kind)
	require.NotNil(t, snap.CurrentModule.Question)
	require.NotNil(t, snap.CurrentModule.Question.CorrectAnswer)
	assert.Equal(t, 1, *snap.CurrentModule.Question.CorrectAnswer)
	assert.Equal(t, 0, *snap.CurrentModule.QuestionNumber)
	assert.Equal(t, types.GateClosed, snap.CurrentModuleStarted)
	assert.True(t, snap.Active)
	assert.Equal(t, 3, snap.Lecture.ModuleCount)
}

func TestPresenter_TestBlockNumbering(t *testing.T) {
	snap := Presenter(source(types.IntPtr(2), types.GateOpen))

	require.Len(t, snap.CurrentModule.Modules, 2)
	ms := snap.CurrentModule.Modules[0]
	assert.Equal(t, 1, *ms.QuestionNumber)
	assert.Equal(t, []int{0, 2}, ms.Question.CorrectAnswers)
	fr := snap.CurrentModule.Modules[1]
	assert.Equal(t, 2, *fr.QuestionNumber)
	assert.Equal(t, "42", *fr.Question.ExpectedText)
	assert.Equal(t, types.CheckerExactMatch, fr.Question.Checker)
}

func TestViewer_GateControlsContent(t *testing.T) {
	tests := []struct {
		name        string
		index       int
		gate        types.GateState
		wantContent bool
	}{
		{"ungated visual", 0, types.GateNone, true},
		{"closed question", 1, types.GateClosed, false},
		{"open question", 1, types.GateOpen, true},
		{"closed test block", 2, types.GateClosed, false},
		{"open test block", 2, types.GateOpen, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Viewer(source(types.IntPtr(tt.index), tt.gate))
			assert.Equal(t, tt.wantContent, snap.CurrentModuleIfStarted != nil)
			assert.Equal(t, tt.index, *snap.CurrentModuleNumber)
			assert.Equal(t, tt.gate, snap.CurrentModuleStarted)

			data, err := json.Marshal(snap)
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, strings.Contains(string(data), `"current_module_if_started"`),
				"a withheld module must be absent from the JSON, got %s", data)
		})
	}
}

func TestViewer_NeverLeaksAnswers(t *testing.T) {
	for _, src := range allStates() {
		data, err := json.Marshal(Viewer(src))
		require.NoError(t, err)
		body := string(data)

		for _, key := range []string{"correct", "expected_text", "checker", "password", "email"} {
			assert.NotContains(t, body, `"`+key, "viewer JSON leaked %q: %s", key, body)
		}
		assert.NotContains(t, body, `"42"`, "viewer JSON leaked the free response answer: %s", body)
	}
}

func TestViewer_EndedSession(t *testing.T) {
	snap := Viewer(source(nil, types.GateNone))

	assert.False(t, snap.Active)
	assert.Nil(t, snap.CurrentModuleNumber)
	assert.Nil(t, snap.CurrentModuleIfStarted)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"current_module_started":null`)
	assert.Contains(t, string(data), `"current_module_number":null`)
}

func TestPresenter_GateJSON(t *testing.T) {
	for _, tt := range []struct {
		gate types.GateState
		want string
	}{
		{types.GateNone, `"current_module_started":null`},
		{types.GateClosed, `"current_module_started":false`},
		{types.GateOpen, `"current_module_started":true`},
	} {
		data, err := json.Marshal(Presenter(source(types.IntPtr(1), tt.gate)))
		require.NoError(t, err)
		assert.Contains(t, string(data), tt.want)
	}
}

func TestProjections_DoNotAliasSession(t *testing.T) {
	src := source(types.IntPtr(1), types.GateOpen)
	p := Presenter(src)
	v := Viewer(src)

	*src.Session.CurrentModuleNumber = 2
	assert.Equal(t, 1, *p.CurrentModuleNumber)
	assert.Equal(t, 1, *v.CurrentModuleNumber)
}

func TestFor(t *testing.T) {
	src := source(types.IntPtr(0), types.GateNone)

	p, err := For(types.RolePresenting, src)
	require.NoError(t, err)
	assert.IsType(t, &PresenterSnapshot{}, p)

	v, err := For(types.RoleViewing, src)
	require.NoError(t, err)
	assert.IsType(t, &ViewerSnapshot{}, v)

	_, err = For(types.RoleNone, src)
	assert.Error(t, err)
}
