package projection

import (
	"time"

	"github.com/bennydictor/visualmath/pkg/types"
)

// LectureInfo is the lecture metadata both projections carry.
type LectureInfo struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	CourseID    int64     `json:"course_id"`
	CreatedAt   time.Time `json:"created_at"`
	ModuleCount int       `json:"module_count"`
}

// UserInfo is the public part of a user.
type UserInfo struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
}

// ModuleView is a module as the presenter sees it, answer keys included.
type ModuleView struct {
	ID    int64            `json:"id"`
	Kind  types.ModuleKind `json:"kind"`
	Title string           `json:"title"`
	Text  string           `json:"text,omitempty"`
	// QuestionNumber is the lecture-wide number of Question.
	QuestionNumber *int          `json:"question_number,omitempty"`
	Question       *QuestionView `json:"question,omitempty"`
	Modules        []*ModuleView `json:"modules,omitempty"`
}

// QuestionView carries the answer key: the correct variant index for
// multiple choice, the correct indices for multiple select and the expected
// text with its checker for free response.
type QuestionView struct {
	ID             int64              `json:"id"`
	Kind           types.QuestionKind `json:"kind"`
	Variants       []string           `json:"variants,omitempty"`
	CorrectAnswer  *int               `json:"correct_answer,omitempty"`
	CorrectAnswers []int              `json:"correct_answers,omitempty"`
	ExpectedText   *string            `json:"expected_text,omitempty"`
	Checker        types.Checker      `json:"checker,omitempty"`
}

// LearnerModuleView is a module as a viewer sees it.
type LearnerModuleView struct {
	ID             int64                `json:"id"`
	Kind           types.ModuleKind     `json:"kind"`
	Title          string               `json:"title"`
	Text           string               `json:"text,omitempty"`
	QuestionNumber *int                 `json:"question_number,omitempty"`
	Question       *LearnerQuestionView `json:"question,omitempty"`
	Modules        []*LearnerModuleView `json:"modules,omitempty"`
}

// LearnerQuestionView has no answer fields at all.
type LearnerQuestionView struct {
	ID       int64              `json:"id"`
	Kind     types.QuestionKind `json:"kind"`
	Variants []string           `json:"variants,omitempty"`
}

// PresenterSnapshot is the full projection of a started lecture.
type PresenterSnapshot struct {
	ID                   int64           `json:"id"`
	Lecture              LectureInfo     `json:"lecture"`
	Lecturer             *UserInfo       `json:"lecturer,omitempty"`
	StartedAt            time.Time       `json:"started_at"`
	Active               bool            `json:"active"`
	CurrentModuleNumber  *int            `json:"current_module_number"`
	CurrentModule        *ModuleView     `json:"current_module"`
	CurrentModuleStarted types.GateState `json:"current_module_started"`
}

// ViewerSnapshot withholds the current module while its gate is closed.
type ViewerSnapshot struct {
	ID                     int64              `json:"id"`
	Lecture                LectureInfo        `json:"lecture"`
	Lecturer               *UserInfo          `json:"lecturer,omitempty"`
	StartedAt              time.Time          `json:"started_at"`
	Active                 bool               `json:"active"`
	CurrentModuleNumber    *int               `json:"current_module_number"`
	CurrentModuleStarted   types.GateState    `json:"current_module_started"`
	CurrentModuleIfStarted *LearnerModuleView `json:"current_module_if_started,omitempty"`
}
