package session

import (
	"fmt"

	"github.com/bennydictor/visualmath/pkg/types"
)

var (
	ErrNotLecturer  = fmt.Errorf("%w: only a teacher of the course or an admin may do this", types.ErrForbidden)
	ErrNotMember    = fmt.Errorf("%w: not a member of the course", types.ErrForbidden)
	ErrEmptyLecture = fmt.Errorf("%w: %v", types.ErrBadRequest, types.ErrEmptyLecture)
)
