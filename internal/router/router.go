package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/internal/projection"
	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

// Engine is what the router drives. *presentation.Engine implements it.
type Engine interface {
	Join(ctx context.Context, conn interfaces.Connection, user *types.User, sessionID int64, deliver func(snapshot interface{}) error) (*projection.ViewerSnapshot, error)
	Present(ctx context.Context, conn interfaces.Connection, user *types.User, sessionID int64, deliver func(snapshot interface{}) error) (*projection.PresenterSnapshot, error)
	Leave(ctx context.Context, conn interfaces.Connection, user *types.User) error
	Next(ctx context.Context, conn interfaces.Connection, user *types.User) error
	Prev(ctx context.Context, conn interfaces.Connection, user *types.User) error
	StartModule(ctx context.Context, conn interfaces.Connection, user *types.User) error
	StopModule(ctx context.Context, conn interfaces.Connection, user *types.User) error
	Stop(ctx context.Context, conn interfaces.Connection, user *types.User) error
	Answer(ctx context.Context, conn interfaces.Connection, user *types.User, req types.AnswerRequest) (*types.AnswerResult, error)
	Disconnect(conn interfaces.Connection)
}

// Router implements interfaces.EventRouter: it decodes and validates the
// envelope, rate limits and authenticates every frame, then dispatches it.
type Router struct {
	engine    Engine
	auth      interfaces.Authenticator
	validate  *validator.Validate
	limiter   *RateLimiter
	opTimeout time.Duration
	log       *logger.Logger
}

// NewRouter creates a router. Each event gets opTimeout to complete.
func NewRouter(engine Engine, auth interfaces.Authenticator, eventsPerMinute int, opTimeout time.Duration, log *logger.Logger) *Router {
	return &Router{
		engine:    engine,
		auth:      auth,
		validate:  validator.New(),
		limiter:   NewRateLimiter(eventsPerMinute),
		opTimeout: opTimeout,
		log:       log.With("component", "router"),
	}
}

// Dispatch handles one inbound frame and returns its reply. A successful
// join or present reply is queued on conn from the session actor instead,
// ahead of any push for the session, and Dispatch returns nil.
func (r *Router) Dispatch(ctx context.Context, conn interfaces.Connection, raw []byte) *types.Reply {
	var in types.InboundEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		return types.ErrorReply("", "", ErrMalformedFrame)
	}
	if err := r.validate.Struct(&in); err != nil {
		return types.ErrorReply(in.Event, in.RequestID, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err))
	}
	if !types.IsKnownEvent(in.Event) {
		return types.ErrorReply(in.Event, in.RequestID, types.ErrUnknownEvent)
	}
	if !r.limiter.Allow(conn.ID()) {
		return types.ErrorReply(in.Event, in.RequestID, ErrRateLimitExceeded)
	}

	if r.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
	}

	user, err := r.auth.Authenticate(ctx, in.Authorization)
	if err != nil {
		return r.fail(conn, &in, err)
	}

	if in.Event == types.EventJoin || in.Event == types.EventPresent {
		if err := r.attach(ctx, conn, user, &in); err != nil {
			return r.fail(conn, &in, err)
		}
		return nil
	}

	data, err := r.handle(ctx, conn, user, &in)
	if err != nil {
		return r.fail(conn, &in, err)
	}
	return types.OKReply(in.Event, in.RequestID, data)
}

// attach runs join and present. The reply is encoded and queued on conn by
// the engine while the session actor still holds the session.
func (r *Router) attach(ctx context.Context, conn interfaces.Connection, user *types.User, in *types.InboundEvent) error {
	var req types.SessionRequest
	if err := r.decode(in.Data, &req); err != nil {
		return err
	}
	deliver := func(snapshot interface{}) error {
		payload, err := json.Marshal(types.OKReply(in.Event, in.RequestID, snapshot))
		if err != nil {
			return fmt.Errorf("failed to encode reply: %w", err)
		}
		return conn.Send(payload)
	}

	var err error
	if in.Event == types.EventPresent {
		_, err = r.engine.Present(ctx, conn, user, req.SessionID, deliver)
	} else {
		_, err = r.engine.Join(ctx, conn, user, req.SessionID, deliver)
	}
	return err
}

func (r *Router) handle(ctx context.Context, conn interfaces.Connection, user *types.User, in *types.InboundEvent) (interface{}, error) {
	switch in.Event {
	case types.EventLeave:
		return nil, r.engine.Leave(ctx, conn, user)

	case types.EventNextModule:
		return nil, r.engine.Next(ctx, conn, user)

	case types.EventPrevModule:
		return nil, r.engine.Prev(ctx, conn, user)

	case types.EventStartModule:
		return nil, r.engine.StartModule(ctx, conn, user)

	case types.EventStopModule:
		return nil, r.engine.StopModule(ctx, conn, user)

	case types.EventStop:
		return nil, r.engine.Stop(ctx, conn, user)

	case types.EventAnswer:
		var req types.AnswerRequest
		if err := r.decode(in.Data, &req); err != nil {
			return nil, err
		}
		return r.engine.Answer(ctx, conn, user, req)

	default:
		return nil, types.ErrUnknownEvent
	}
}

func (r *Router) decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return ErrMissingData
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := r.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (r *Router) fail(conn interfaces.Connection, in *types.InboundEvent, err error) *types.Reply {
	if types.KindOf(err) == types.KindInternal {
		r.log.Error("event failed", "connection_id", conn.ID(), "event", in.Event, "error", err)
	} else {
		r.log.Debug("event rejected", "connection_id", conn.ID(), "event", in.Event, "error", err)
	}
	return types.ErrorReply(in.Event, in.RequestID, err)
}

// Disconnect forgets the connection and detaches it from its session.
func (r *Router) Disconnect(conn interfaces.Connection) {
	r.limiter.Forget(conn.ID())
	r.engine.Disconnect(conn)
}

var _ interfaces.EventRouter = (*Router)(nil)
