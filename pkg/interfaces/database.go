package interfaces

import (
	"context"

	"github.com/bennydictor/visualmath/pkg/types"
)

// Lookups return a wrapped types.ErrNotFound when the row does not exist.

// UserStore persists accounts.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	// CreateUser inserts u and sets u.ID.
	CreateUser(ctx context.Context, u *types.User) error
}

// TokenStore keeps at most one bearer token per user.
type TokenStore interface {
	// ReplaceToken deletes every token of userID and stores token in one step.
	ReplaceToken(ctx context.Context, userID int64, token string) error
	GetUserByToken(ctx context.Context, token string) (*types.User, error)
}

// CourseStore answers course membership questions.
type CourseStore interface {
	GetCourse(ctx context.Context, id int64) (*types.Course, error)
	CreateCourse(ctx context.Context, c *types.Course) error
	AddTeacher(ctx context.Context, courseID, userID int64) error
	AddStudent(ctx context.Context, courseID, userID int64) error
	IsTeacher(ctx context.Context, courseID, userID int64) (bool, error)
	IsStudent(ctx context.Context, courseID, userID int64) (bool, error)
}

// LectureStore reads lectures with their modules and questions fully loaded.
type LectureStore interface {
	GetLecture(ctx context.Context, id int64) (*types.Lecture, error)
	// CreateLecture stores l, its modules and questions and numbers the
	// lecture questions. IDs are assigned in place.
	CreateLecture(ctx context.Context, l *types.Lecture) error
}

// StartedLectureStore persists live sessions.
type StartedLectureStore interface {
	// CreateStartedLecture inserts s and sets s.ID.
	CreateStartedLecture(ctx context.Context, s *types.StartedLecture) error
	GetStartedLecture(ctx context.Context, id int64) (*types.StartedLecture, error)
	// UpdateStartedLecture writes next's module pointer and gate if the row
	// still holds prev's values, and returns ErrStaleUpdate otherwise.
	UpdateStartedLecture(ctx context.Context, prev, next *types.StartedLecture) error
	ListActiveStartedLectures(ctx context.Context) ([]*types.StartedLecture, error)
}

// ResponseStore records student answers.
type ResponseStore interface {
	// SaveResponse inserts or replaces the answer of one student to one question.
	SaveResponse(ctx context.Context, r *types.QuestionResponse) error
	ListResponses(ctx context.Context, startedLectureID int64) ([]*types.QuestionResponse, error)
}

// DatabaseManager is the whole storage collaborator.
type DatabaseManager interface {
	UserStore
	TokenStore
	CourseStore
	LectureStore
	StartedLectureStore
	ResponseStore

	HealthCheck(ctx context.Context) error
	Close() error
}
