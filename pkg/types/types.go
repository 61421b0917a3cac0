package types

import (
	"time"
)

// Connection roles. A connection starts in RoleNone and may attach to one
// started lecture at a time as either a viewer or a presenter.
type Role string

const (
	RoleNone       Role = "none"
	RoleViewing    Role = "viewing"
	RolePresenting Role = "presenting"
)

// User is an account. Password holds the bcrypt hash and never leaves the server.
type User struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	MiddleName      string `json:"middle_name"`
	University      string `json:"university"`
	UniversityGroup string `json:"university_group"`
	Email           string `json:"email"`
	Password        string `json:"-"`
	Admin           bool   `json:"admin"`
}

// Course groups lectures; teachers and students are attached through
// membership tables and checked by CourseStore.
type Course struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Lecture is an ordered sequence of modules. It is treated as immutable once a
// started lecture references it.
type Lecture struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	AuthorID  int64
	CourseID  int64
	Modules   []Module
}

// QuestionCount returns how many lecture question numbers the modules before
// position n occupy. Text modules with a question take one number, test blocks
// take one per sub-module.
func (l *Lecture) QuestionCount(n int) int {
	count := 0
	for i := 0; i < n && i < len(l.Modules); i++ {
		switch m := l.Modules[i].(type) {
		case *TextModule:
			if m.Question != nil {
				count++
			}
		case *TestBlockModule:
			count += len(m.Modules)
		}
	}
	return count
}

// StartedLecture is a live presentation of a lecture. CurrentModuleNumber is
// nil once the lecture has been stopped.
type StartedLecture struct {
	ID                   int64
	LectureID            int64
	LecturerID           int64
	StartedAt            time.Time
	CurrentModuleNumber  *int
	CurrentModuleStarted GateState
}

// Active reports whether the session still has a current module.
func (s *StartedLecture) Active() bool {
	return s.CurrentModuleNumber != nil
}

// Clone returns a deep copy so cached sessions are never shared between goroutines.
func (s *StartedLecture) Clone() *StartedLecture {
	if s == nil {
		return nil
	}
	c := *s
	if s.CurrentModuleNumber != nil {
		n := *s.CurrentModuleNumber
		c.CurrentModuleNumber = &n
	}
	return &c
}

// QuestionResponse is one student's answer to one lecture question of a started lecture.
type QuestionResponse struct {
	StartedLectureID int64     `json:"started_lecture_id"`
	QuestionNumber   int       `json:"number"`
	UserID           int64     `json:"user_id"`
	Response         string    `json:"response"`
	Correct          bool      `json:"correct"`
	AnsweredAt       time.Time `json:"answered_at"`
}

// IntPtr is a small helper for building optional module numbers.
func IntPtr(n int) *int {
	return &n
}
