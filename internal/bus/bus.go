package bus

import (
	"context"
	"errors"
)

// Change announces that a started lecture was modified by some server
// instance. Receivers reload the session and fan out to their own clients.
type Change struct {
	SessionID int64  `json:"session_id"`
	Origin    string `json:"origin"`
}

// Bus carries session changes between server instances. A bus never hands
// an instance its own changes back.
type Bus interface {
	Publish(ctx context.Context, sessionID int64) error
	StartForwarder(ctx context.Context, onMsg func(c Change)) error
	Close() error
}

var ErrNoHandler = errors.New("onMsg callback required")

type nopBus struct{}

// NewNopBus returns a bus for a single instance deployment. Publishing is a
// no-op and nothing is ever forwarded.
func NewNopBus() Bus { return nopBus{} }

func (nopBus) Publish(context.Context, int64) error { return nil }

func (nopBus) StartForwarder(_ context.Context, onMsg func(Change)) error {
	if onMsg == nil {
		return ErrNoHandler
	}
	return nil
}

func (nopBus) Close() error { return nil }
