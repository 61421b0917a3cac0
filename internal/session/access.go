package session

import (
	"context"

	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

// Access answers "may this user present or view lectures of this course".
// Admins may do both everywhere.
type Access struct {
	courses interfaces.CourseStore
}

// NewAccess creates an Access backed by the course membership store.
func NewAccess(courses interfaces.CourseStore) *Access {
	return &Access{courses: courses}
}

// CanPresent reports whether user teaches the course or is an admin.
func (a *Access) CanPresent(ctx context.Context, user *types.User, courseID int64) (bool, error) {
	if user.Admin {
		return true, nil
	}
	return a.courses.IsTeacher(ctx, courseID, user.ID)
}

// CanView reports whether user is a student or teacher of the course or an admin.
func (a *Access) CanView(ctx context.Context, user *types.User, courseID int64) (bool, error) {
	ok, err := a.CanPresent(ctx, user, courseID)
	if err != nil || ok {
		return ok, err
	}
	return a.courses.IsStudent(ctx, courseID, user.ID)
}
