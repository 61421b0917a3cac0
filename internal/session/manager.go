package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

// Store is the slice of the database the manager needs.
type Store interface {
	interfaces.StartedLectureStore
	interfaces.LectureStore
	interfaces.CourseStore
}

// Manager owns started lectures: it creates them, caches them and applies
// compare-and-set updates. It implements interfaces.SessionStore.
//
// Cached started lectures are never handed out directly; callers get clones.
// Lectures are immutable once started and are shared.
type Manager struct {
	db       Store
	access   *Access
	sessions map[int64]*types.StartedLecture
	lectures map[int64]*types.Lecture
	mu       sync.RWMutex
	log      *logger.Logger
}

// NewManager creates a new session manager
func NewManager(db Store, log *logger.Logger) *Manager {
	return &Manager{
		db:       db,
		access:   NewAccess(db),
		sessions: make(map[int64]*types.StartedLecture),
		lectures: make(map[int64]*types.Lecture),
		log:      log.With("component", "session"),
	}
}

// Access returns the membership checker the manager uses.
func (m *Manager) Access() *Access {
	return m.access
}

// LoadActiveSessions warms the cache with every active started lecture and its lecture.
func (m *Manager) LoadActiveSessions(ctx context.Context) error {
	sessions, err := m.db.ListActiveStartedLectures(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active sessions: %w", err)
	}

	for _, s := range sessions {
		if _, err := m.Lecture(ctx, s.LectureID); err != nil {
			return fmt.Errorf("failed to load lecture %d of session %d: %w", s.LectureID, s.ID, err)
		}
	}

	m.mu.Lock()
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	m.mu.Unlock()

	m.log.Info("loaded active sessions", "count", len(sessions))
	return nil
}

// Start creates a started lecture at module 0 on behalf of user, who must be a
// teacher of the lecture's course or an admin.
func (m *Manager) Start(ctx context.Context, user *types.User, lectureID int64) (*types.StartedLecture, error) {
	lecture, err := m.Lecture(ctx, lectureID)
	if err != nil {
		return nil, err
	}

	ok, err := m.access.CanPresent(ctx, user, lecture.CourseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotLecturer
	}
	if len(lecture.Modules) == 0 {
		return nil, ErrEmptyLecture
	}

	s := &types.StartedLecture{
		LectureID:            lecture.ID,
		LecturerID:           user.ID,
		CurrentModuleNumber:  types.IntPtr(0),
		CurrentModuleStarted: types.InitialGate(lecture.Modules[0]),
	}
	if err := m.db.CreateStartedLecture(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create started lecture: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s.Clone()
	m.mu.Unlock()

	m.log.Info("started lecture", "session_id", s.ID, "lecture_id", lecture.ID, "user_id", user.ID)
	return s, nil
}

// Get returns a private copy of a started lecture.
func (m *Manager) Get(ctx context.Context, id int64) (*types.StartedLecture, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s.Clone(), nil
	}

	s, err := m.db.GetStartedLecture(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if cached, ok := m.sessions[id]; ok {
		// Someone else filled the slot first; theirs may be newer.
		s = cached
	} else {
		m.sessions[id] = s
	}
	m.mu.Unlock()
	return s.Clone(), nil
}

// Lecture returns the lecture with the given id, loading it once.
func (m *Manager) Lecture(ctx context.Context, id int64) (*types.Lecture, error) {
	m.mu.RLock()
	l, ok := m.lectures[id]
	m.mu.RUnlock()
	if ok {
		return l, nil
	}

	l, err := m.db.GetLecture(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.lectures[id] = l
	m.mu.Unlock()
	return l, nil
}

// Update persists next if storage still holds prev. A stale write drops the
// cached copy so the caller's retry reads storage.
func (m *Manager) Update(ctx context.Context, prev, next *types.StartedLecture) error {
	if err := m.db.UpdateStartedLecture(ctx, prev, next); err != nil {
		if errors.Is(err, interfaces.ErrStaleUpdate) || errors.Is(err, types.ErrNotFound) {
			m.Invalidate(prev.ID)
		}
		return err
	}

	m.mu.Lock()
	m.sessions[next.ID] = next.Clone()
	m.mu.Unlock()
	return nil
}

// Invalidate drops the cached copy of a started lecture.
func (m *Manager) Invalidate(id int64) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// ListActive returns copies of the cached started lectures that are still active.
func (m *Manager) ListActive() []*types.StartedLecture {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.StartedLecture, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Active() {
			out = append(out, s.Clone())
		}
	}
	return out
}

// GetStats returns session manager statistics
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	for _, s := range m.sessions {
		if s.Active() {
			active++
		}
	}
	return map[string]interface{}{
		"active_sessions": active,
		"cached_sessions": len(m.sessions),
		"cached_lectures": len(m.lectures),
	}
}
