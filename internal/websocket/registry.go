package websocket

import (
	"sync"

	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

// Attachment is what a connection is doing: which user joined or presents
// which started lecture.
type Attachment struct {
	UserID    int64
	SessionID int64
	Role      types.Role
}

type groupKey struct {
	sessionID int64
	role      types.Role
}

// Registry tracks which connections view or present which started lecture.
// The attachment of a connection and its group membership change together
// under one lock.
type Registry struct {
	mu          sync.RWMutex
	attachments map[string]Attachment
	groups      map[groupKey]map[string]interfaces.Connection
	log         *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		attachments: make(map[string]Attachment),
		groups:      make(map[groupKey]map[string]interfaces.Connection),
		log:         log.With("component", "registry"),
	}
}

// Attach records that conn, authenticated as userID, now has role in sessionID.
// A connection holds at most one attachment; attaching again fails until it leaves.
func (r *Registry) Attach(conn interfaces.Connection, userID, sessionID int64, role types.Role) error {
	if conn == nil {
		return ErrNilConnection
	}
	if role == types.RoleNone {
		return ErrNoRole
	}

	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attachments[id]; ok {
		return ErrAlreadyAttached
	}

	r.attachments[id] = Attachment{UserID: userID, SessionID: sessionID, Role: role}

	key := groupKey{sessionID: sessionID, role: role}
	if r.groups[key] == nil {
		r.groups[key] = make(map[string]interfaces.Connection)
	}
	r.groups[key][id] = conn

	return nil
}

// Detach removes the attachment of conn and returns it. It reports false when
// the connection was idle.
func (r *Registry) Detach(conn interfaces.Connection) (Attachment, bool) {
	if conn == nil {
		return Attachment{}, false
	}

	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attachments[id]
	if !ok {
		return Attachment{}, false
	}

	delete(r.attachments, id)

	key := groupKey{sessionID: a.SessionID, role: a.Role}
	if group, exists := r.groups[key]; exists {
		delete(group, id)
		if len(group) == 0 {
			delete(r.groups, key)
		}
	}

	return a, true
}

// State returns the attachment of conn. An idle connection has RoleNone.
func (r *Registry) State(conn interfaces.Connection) Attachment {
	if conn == nil {
		return Attachment{Role: types.RoleNone}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.attachments[conn.ID()]; ok {
		return a
	}
	return Attachment{Role: types.RoleNone}
}

// Recipients returns the connections holding role in sessionID.
func (r *Registry) Recipients(sessionID int64, role types.Role) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[groupKey{sessionID: sessionID, role: role}]
	connections := make([]interfaces.Connection, 0, len(group))
	for _, conn := range group {
		connections = append(connections, conn)
	}
	return connections
}

// Broadcast pushes payload to every connection holding role in sessionID and
// returns how many accepted it. Delivery happens under the read lock, so a
// connection detached before the call never sees the frame. Connections whose
// buffer is full are closed; their read pump then detaches them.
func (r *Registry) Broadcast(sessionID int64, role types.Role, payload []byte) int {
	var slow []interfaces.Connection
	delivered := 0

	r.mu.RLock()
	for _, conn := range r.groups[groupKey{sessionID: sessionID, role: role}] {
		if err := conn.Send(payload); err != nil {
			if err == ErrSlowConsumer {
				slow = append(slow, conn)
			}
			continue
		}
		delivered++
	}
	r.mu.RUnlock()

	for _, conn := range slow {
		r.log.Warn("closing slow connection", "connection_id", conn.ID(), "session_id", sessionID)
		if err := conn.Close(); err != nil {
			r.log.Debug("close failed", "connection_id", conn.ID(), "error", err)
		}
	}

	return delivered
}

// CloseAll closes every attached connection. Used on shutdown, since hijacked
// connections outlive http.Server.Shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]interfaces.Connection, 0, len(r.attachments))
	for _, group := range r.groups {
		for _, conn := range group {
			conns = append(conns, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	if len(conns) > 0 {
		r.log.Info("closed attached connections", "count", len(conns))
	}
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make(map[int64]bool)
	viewing, presenting := 0, 0
	for key, group := range r.groups {
		sessions[key.sessionID] = true
		switch key.role {
		case types.RoleViewing:
			viewing += len(group)
		case types.RolePresenting:
			presenting += len(group)
		}
	}

	return map[string]int{
		"attached_connections": len(r.attachments),
		"active_sessions":      len(sessions),
		"viewing":              viewing,
		"presenting":           presenting,
	}
}
