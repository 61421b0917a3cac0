package types

import (
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	EventJoin        = "join"
	EventPresent     = "present"
	EventLeave       = "leave"
	EventPrevModule  = "prev-module"
	EventNextModule  = "next-module"
	EventStartModule = "start-module"
	EventStopModule  = "stop-module"
	EventStop        = "stop"
	EventAnswer      = "answer"
)

// Outbound frame types.
const (
	FrameReply    = "reply"
	FrameSnapshot = "snapshot"
	FrameResponse = "response"
)

// Reply statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// InboundEvent is the envelope of every client frame. Authorization carries the
// bearer token; each frame is authenticated on its own.
type InboundEvent struct {
	Event         string          `json:"event" validate:"required,max=32"`
	Authorization string          `json:"authorization"`
	RequestID     string          `json:"request_id,omitempty" validate:"max=64"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// SessionRequest is the payload of join and present.
type SessionRequest struct {
	SessionID int64 `json:"session_id" validate:"required,gt=0"`
}

// AnswerRequest is the payload of answer. Index selects the sub-module of a
// test block and must be 0 for a text module.
type AnswerRequest struct {
	Index    int    `json:"index" validate:"gte=0"`
	Response string `json:"response" validate:"max=4096"`
}

// AnswerResult is returned to the student who answered.
type AnswerResult struct {
	Number  int  `json:"number"`
	Correct bool `json:"correct"`
}

// Reply is the single response to an inbound event.
type Reply struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	RequestID string      `json:"request_id,omitempty"`
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Push is an unsolicited frame sent to a recipient group.
type Push struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// OKReply builds a success reply.
func OKReply(event, requestID string, data interface{}) *Reply {
	return &Reply{Type: FrameReply, Event: event, RequestID: requestID, Status: StatusOK, Data: data}
}

// ErrorReply builds a failure reply tagged with the error's kind. Internal
// errors are not echoed to clients.
func ErrorReply(event, requestID string, err error) *Reply {
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindInternal {
		msg = "internal error"
	}
	return &Reply{Type: FrameReply, Event: event, RequestID: requestID, Status: StatusError, Error: kind, Message: msg}
}

// IsKnownEvent reports whether name is one of the inbound event names.
func IsKnownEvent(name string) bool {
	switch name {
	case EventJoin, EventPresent, EventLeave, EventPrevModule, EventNextModule,
		EventStartModule, EventStopModule, EventStop, EventAnswer:
		return true
	}
	return false
}

// ErrUnknownEvent is reported for frames naming no known event.
var ErrUnknownEvent = fmt.Errorf("%w: unknown event", ErrBadRequest)
