package interfaces

import (
	"context"

	"github.com/bennydictor/visualmath/pkg/types"
)

// EventRouter turns raw inbound frames into engine operations.
type EventRouter interface {
	// Dispatch handles one inbound frame and returns the single reply for it,
	// or nil when the reply was already queued on conn.
	Dispatch(ctx context.Context, conn Connection, raw []byte) *types.Reply

	// Disconnect is the implicit leave of a connection that went away.
	Disconnect(conn Connection)
}

// Authenticator resolves opaque bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*types.User, error)
}
