package router

import (
	"fmt"

	"github.com/bennydictor/visualmath/pkg/types"
)

var (
	ErrMalformedFrame    = fmt.Errorf("%w: frame is not a JSON event", types.ErrBadRequest)
	ErrInvalidEnvelope   = fmt.Errorf("%w: invalid event envelope", types.ErrBadRequest)
	ErrMissingData       = fmt.Errorf("%w: event requires data", types.ErrBadRequest)
	ErrInvalidPayload    = fmt.Errorf("%w: invalid event data", types.ErrBadRequest)
	ErrRateLimitExceeded = fmt.Errorf("%w: rate limit exceeded", types.ErrForbidden)
)
