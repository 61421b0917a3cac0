package auth

import (
	"fmt"

	"github.com/bennydictor/visualmath/pkg/types"
)

var (
	ErrMissingToken  = fmt.Errorf("%w: missing bearer token", types.ErrUnauthorized)
	ErrInvalidToken  = fmt.Errorf("%w: invalid bearer token", types.ErrUnauthorized)
	ErrUnknownEmail  = fmt.Errorf("%w: no user with that email", types.ErrNotFound)
	ErrWrongPassword = fmt.Errorf("%w: wrong password", types.ErrForbidden)
)
