// Package testutil builds sqlite-backed fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/bennydictor/visualmath/internal/database"
	"github.com/bennydictor/visualmath/internal/platform/logger"
	dbconfig "github.com/bennydictor/visualmath/pkg/database"
	"github.com/bennydictor/visualmath/pkg/types"
)

// Password is the plain password of every fixture user.
const Password = "password"

// Classroom is a course with one lecture and one user per role.
type Classroom struct {
	DB       *database.Manager
	Admin    *types.User
	Teacher  *types.User
	Student  *types.User
	Outsider *types.User
	Course   *types.Course
	Lecture  *types.Lecture
}

// NewDB returns a migrated database in a temp dir, closed at test end.
func NewDB(t testing.TB) *database.Manager {
	t.Helper()
	return NewDBAt(t, filepath.Join(t.TempDir(), "visualmath.db"))
}

// NewDBAt is NewDB with an explicit file path.
func NewDBAt(t testing.TB, path string) *database.Manager {
	t.Helper()
	config := dbconfig.DefaultConfig()
	config.DatabasePath = path

	m, err := database.NewManager(config, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	if err := dbconfig.NewMigrationManager(m.GetDB(), dbconfig.MigrationsFS("")).ApplyMigrations(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return m
}

// SampleLecture is [Visual, Text with a multiple choice question, TestBlock of
// a multiple select and a free response question].
func SampleLecture(courseID, authorID int64) *types.Lecture {
	return &types.Lecture{
		Title:    "Limits",
		AuthorID: authorID,
		CourseID: courseID,
		Modules: []types.Module{
			&types.VisualModule{ModuleHeader: types.ModuleHeader{Title: "Graph of 1/x"}},
			&types.TextModule{
				ModuleHeader: types.ModuleHeader{Title: "Limit at infinity"},
				Text:         "What is the limit of 1/x as x grows?",
				Question:     &types.MultipleChoiceQuestion{Variants: []string{"1", "0", "infinity"}, CorrectAnswer: 1},
			},
			&types.TestBlockModule{
				ModuleHeader: types.ModuleHeader{Title: "Quiz"},
				Modules: []*types.TextModule{
					{
						ModuleHeader: types.ModuleHeader{Title: "Continuous functions"},
						Text:         "Which are continuous on R?",
						Question: &types.MultipleSelectQuestion{Variants: []types.SelectVariant{
							{Text: "x^2", Correct: true},
							{Text: "1/x"},
							{Text: "sin x", Correct: true},
						}},
					},
					{
						ModuleHeader: types.ModuleHeader{Title: "Arithmetic"},
						Text:         "6 * 7 = ?",
						Question:     &types.FreeResponseQuestion{CorrectAnswer: "42", Checker: types.CheckerExactMatch},
					},
				},
			},
		},
	}
}

// NewClassroom seeds a fresh database with a Classroom.
func NewClassroom(t testing.TB) *Classroom {
	t.Helper()
	return seed(t, NewDB(t))
}

// NewClassroomAt seeds a fresh database at path. Close c.DB before another
// process or manager takes the file over.
func NewClassroomAt(t testing.TB, path string) *Classroom {
	t.Helper()
	return seed(t, NewDBAt(t, path))
}

func seed(t testing.TB, db *database.Manager) *Classroom {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := func(email string, admin bool) *types.User {
		u := &types.User{Email: email, Password: string(hash), Admin: admin, FirstName: email}
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatalf("failed to create user %s: %v", email, err)
		}
		return u
	}

	c := &Classroom{
		DB:       db,
		Admin:    user("admin@example.com", true),
		Teacher:  user("teacher@example.com", false),
		Student:  user("student@example.com", false),
		Outsider: user("outsider@example.com", false),
		Course:   &types.Course{Title: "Calculus I"},
	}
	if err := db.CreateCourse(ctx, c.Course); err != nil {
		t.Fatalf("failed to create course: %v", err)
	}
	if err := db.AddTeacher(ctx, c.Course.ID, c.Teacher.ID); err != nil {
		t.Fatalf("failed to add teacher: %v", err)
	}
	if err := db.AddStudent(ctx, c.Course.ID, c.Student.ID); err != nil {
		t.Fatalf("failed to add student: %v", err)
	}

	c.Lecture = SampleLecture(c.Course.ID, c.Teacher.ID)
	if err := db.CreateLecture(ctx, c.Lecture); err != nil {
		t.Fatalf("failed to create lecture: %v", err)
	}
	return c
}
