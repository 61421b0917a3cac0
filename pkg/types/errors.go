package types

import "errors"

// Failure taxonomy shared by the websocket and HTTP surfaces. Components wrap
// these with fmt.Errorf("%w: ...") and callers classify them with KindOf.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
)

// Lecture structure errors
var (
	ErrEmptyLecture        = errors.New("lecture must contain at least one module")
	ErrEmptyTitle          = errors.New("title must not be empty")
	ErrEmptyTestBlock      = errors.New("test block must contain at least one module")
	ErrTestBlockQuestion   = errors.New("every test block module needs a question")
	ErrInvalidCorrectIndex = errors.New("correct answer index out of range")
	ErrNoVariants          = errors.New("question must have at least one variant")
	ErrUnknownChecker      = errors.New("unknown free response checker")
)

// Error kinds as reported on the wire.
const (
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindBadRequest   = "bad_request"
	KindInternal     = "internal"
)

// KindOf maps an error onto its wire tag. Anything outside the taxonomy is internal.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	default:
		return KindInternal
	}
}
