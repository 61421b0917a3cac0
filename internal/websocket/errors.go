package websocket

import (
	"errors"
	"fmt"

	"github.com/bennydictor/visualmath/pkg/types"
)

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidJSON      = errors.New("invalid JSON data")
	ErrSlowConsumer     = errors.New("connection send buffer full")
)

// Registry-related errors
var (
	ErrNilConnection   = errors.New("connection cannot be nil")
	ErrAlreadyAttached = fmt.Errorf("%w: connection already joined or presenting", types.ErrForbidden)
	ErrNoRole          = fmt.Errorf("%w: attachment needs a role", types.ErrBadRequest)
)
