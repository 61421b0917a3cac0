package interfaces

// Connection represents one live client connection.
// Implementations must serialize their writes; every method is safe for
// concurrent use.
type Connection interface {
	// ID returns an identifier unique to this connection for its lifetime.
	ID() string

	// WriteJSON queues a reply for the client, waiting a bounded time for
	// buffer space.
	WriteJSON(v interface{}) error

	// Send queues an already encoded push without blocking. A full buffer is
	// reported as an error and the connection is considered too slow to keep.
	Send(data []byte) error

	// Close closes the connection and releases its resources.
	Close() error
}
