// Package projection renders started lectures for presenters and viewers.
// Everything here is a pure function of its inputs.
package projection

import (
	"fmt"

	"github.com/bennydictor/visualmath/pkg/types"
)

// Source is everything a projection needs.
type Source struct {
	Session  *types.StartedLecture
	Lecture  *types.Lecture
	Lecturer *types.User
}

// current returns the current module and the lecture number of its first
// question, or nil when the session is inactive or the pointer is out of range.
func (s Source) current() (types.Module, int) {
	if !s.Session.Active() {
		return nil, 0
	}
	n := *s.Session.CurrentModuleNumber
	if n < 0 || n >= len(s.Lecture.Modules) {
		return nil, 0
	}
	return s.Lecture.Modules[n], s.Lecture.QuestionCount(n)
}

func lectureInfo(l *types.Lecture) LectureInfo {
	return LectureInfo{
		ID:          l.ID,
		Title:       l.Title,
		CourseID:    l.CourseID,
		CreatedAt:   l.CreatedAt,
		ModuleCount: len(l.Modules),
	}
}

func userInfo(u *types.User) *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, MiddleName: u.MiddleName}
}

func copyIndex(n *int) *int {
	if n == nil {
		return nil
	}
	return types.IntPtr(*n)
}

// Presenter renders the full snapshot.
func Presenter(src Source) *PresenterSnapshot {
	snap := &PresenterSnapshot{
		ID:                   src.Session.ID,
		Lecture:              lectureInfo(src.Lecture),
		Lecturer:             userInfo(src.Lecturer),
		StartedAt:            src.Session.StartedAt,
		Active:               src.Session.Active(),
		CurrentModuleNumber:  copyIndex(src.Session.CurrentModuleNumber),
		CurrentModuleStarted: src.Session.CurrentModuleStarted,
	}
	if m, first := src.current(); m != nil {
		snap.CurrentModule = PresentModule(m, first)
	}
	return snap
}

// Viewer renders the learner snapshot. The module is included only when its
// gate is not closed, and never with answer data.
func Viewer(src Source) *ViewerSnapshot {
	snap := &ViewerSnapshot{
		ID:                   src.Session.ID,
		Lecture:              lectureInfo(src.Lecture),
		Lecturer:             userInfo(src.Lecturer),
		StartedAt:            src.Session.StartedAt,
		Active:               src.Session.Active(),
		CurrentModuleNumber:  copyIndex(src.Session.CurrentModuleNumber),
		CurrentModuleStarted: src.Session.CurrentModuleStarted,
	}
	if !src.Session.CurrentModuleStarted.Visible() {
		return snap
	}
	if m, first := src.current(); m != nil {
		snap.CurrentModuleIfStarted = LearnModule(m, first)
	}
	return snap
}

// For renders the projection matching role.
func For(role types.Role, src Source) (interface{}, error) {
	switch role {
	case types.RolePresenting:
		return Presenter(src), nil
	case types.RoleViewing:
		return Viewer(src), nil
	default:
		return nil, fmt.Errorf("no projection for role %q", role)
	}
}

// PresentModule renders m with answer keys. first is the lecture number of
// the module's first question.
func PresentModule(m types.Module, first int) *ModuleView {
	h := m.Header()
	v := &ModuleView{ID: h.ID, Kind: m.Kind(), Title: h.Title}

	switch m := m.(type) {
	case *types.TextModule:
		v.Text = m.Text
		if m.Question != nil {
			v.QuestionNumber = types.IntPtr(first)
			v.Question = PresentQuestion(m.Question)
		}
	case *types.TestBlockModule:
		for i, sub := range m.Modules {
			v.Modules = append(v.Modules, PresentModule(sub, first+i))
		}
	case *types.VisualModule:
	}
	return v
}

// PresentQuestion renders q with its answer key.
func PresentQuestion(q types.Question) *QuestionView {
	v := &QuestionView{ID: q.QuestionID(), Kind: q.Kind()}

	switch q := q.(type) {
	case *types.MultipleChoiceQuestion:
		v.Variants = append([]string(nil), q.Variants...)
		v.CorrectAnswer = types.IntPtr(q.CorrectAnswer)
	case *types.MultipleSelectQuestion:
		for _, variant := range q.Variants {
			v.Variants = append(v.Variants, variant.Text)
		}
		v.CorrectAnswers = q.CorrectIndices()
		if v.CorrectAnswers == nil {
			v.CorrectAnswers = []int{}
		}
	case *types.FreeResponseQuestion:
		expected := q.CorrectAnswer
		v.ExpectedText = &expected
		v.Checker = q.Checker
	}
	return v
}

// LearnModule renders m without any answer data.
func LearnModule(m types.Module, first int) *LearnerModuleView {
	h := m.Header()
	v := &LearnerModuleView{ID: h.ID, Kind: m.Kind(), Title: h.Title}

	switch m := m.(type) {
	case *types.TextModule:
		v.Text = m.Text
		if m.Question != nil {
			v.QuestionNumber = types.IntPtr(first)
			v.Question = LearnQuestion(m.Question)
		}
	case *types.TestBlockModule:
		for i, sub := range m.Modules {
			v.Modules = append(v.Modules, LearnModule(sub, first+i))
		}
	case *types.VisualModule:
	}
	return v
}

// LearnQuestion renders q as a student may see it.
func LearnQuestion(q types.Question) *LearnerQuestionView {
	v := &LearnerQuestionView{ID: q.QuestionID(), Kind: q.Kind()}

	switch q := q.(type) {
	case *types.MultipleChoiceQuestion:
		v.Variants = append([]string(nil), q.Variants...)
	case *types.MultipleSelectQuestion:
		for _, variant := range q.Variants {
			v.Variants = append(v.Variants, variant.Text)
		}
	case *types.FreeResponseQuestion:
	}
	return v
}
