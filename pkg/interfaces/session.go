package interfaces

import (
	"context"

	"github.com/bennydictor/visualmath/pkg/types"
)

// SessionStore is the engine's view of started lectures.
// Reads return private copies; writes are compare-and-set.
type SessionStore interface {
	// Get returns the started lecture or a wrapped types.ErrNotFound.
	Get(ctx context.Context, id int64) (*types.StartedLecture, error)

	// Lecture returns the (immutable) lecture a started lecture presents.
	Lecture(ctx context.Context, id int64) (*types.Lecture, error)

	// Update persists next if the stored row still equals prev, otherwise it
	// returns ErrStaleUpdate and leaves the row untouched.
	Update(ctx context.Context, prev, next *types.StartedLecture) error

	// Invalidate drops any cached copy so the next Get reads storage.
	Invalidate(id int64)
}
