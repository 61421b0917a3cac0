package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bennydictor/visualmath/internal/platform/logger"
)

// Job is one unit of work on a session. Jobs of the same session never run
// concurrently and run in submission order.
type Job func(ctx context.Context) error

// Hub runs one actor per started lecture: a goroutine draining a bounded
// queue of jobs. Actors are created on demand and exit after idling.
// Different sessions proceed independently.
type Hub struct {
	queueSize   int
	idleTimeout time.Duration
	log         *logger.Logger

	workers map[int64]*worker
	running bool
	stopCh  chan struct{}
	mu      sync.Mutex
	wg      sync.WaitGroup
}

type worker struct {
	sessionID int64
	jobs      chan *job
}

type job struct {
	ctx  context.Context
	fn   Job
	done chan error
}

// NewHub creates a hub whose actors queue at most queueSize jobs and exit
// after idleTimeout without work.
func NewHub(queueSize int, idleTimeout time.Duration, log *logger.Logger) *Hub {
	return &Hub{
		queueSize:   queueSize,
		idleTimeout: idleTimeout,
		log:         log.With("component", "hub"),
		workers:     make(map[int64]*worker),
	}
}

// Start allows jobs to be submitted.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.log.Info("session hub started", "queue_size", h.queueSize, "idle_timeout", h.idleTimeout)
	return nil
}

// Stop rejects new jobs, fails queued ones with ErrHubNotRunning and waits
// for running jobs to finish.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.stopCh)
	h.mu.Unlock()

	h.wg.Wait()

	h.mu.Lock()
	h.workers = make(map[int64]*worker)
	h.mu.Unlock()

	h.log.Info("session hub stopped")
	return nil
}

// Do runs fn on the actor of sessionID and returns its error. It returns
// ErrQueueFull at once when the session has too much queued work. A job whose
// ctx is done before it starts is skipped and reports ctx.Err().
func (h *Hub) Do(ctx context.Context, sessionID int64, fn Job) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	w, ok := h.workers[sessionID]
	if !ok {
		w = &worker{sessionID: sessionID, jobs: make(chan *job, h.queueSize)}
		h.workers[sessionID] = w
		h.wg.Add(1)
		go h.run(w, h.stopCh)
	}
	select {
	case w.jobs <- j:
	default:
		h.mu.Unlock()
		h.log.Warn("session queue full", "session_id", sessionID)
		return ErrQueueFull
	}
	h.mu.Unlock()

	// Every queued job is answered, either by running it or on shutdown.
	return <-j.done
}

func (h *Hub) run(w *worker, stop <-chan struct{}) {
	defer h.wg.Done()

	idle := time.NewTimer(h.idleTimeout)
	defer idle.Stop()

	for {
		// Shutdown wins over queued work.
		select {
		case <-stop:
			h.drain(w)
			return
		default:
		}

		select {
		case j := <-w.jobs:
			j.done <- h.execute(w.sessionID, j)
			idle.Reset(h.idleTimeout)

		case <-idle.C:
			// Do enqueues under h.mu, so an empty queue seen here stays empty
			// once the worker is unregistered.
			h.mu.Lock()
			if len(w.jobs) == 0 {
				if h.workers[w.sessionID] == w {
					delete(h.workers, w.sessionID)
				}
				h.mu.Unlock()
				return
			}
			h.mu.Unlock()
			idle.Reset(h.idleTimeout)

		case <-stop:
			h.drain(w)
			return
		}
	}
}

func (h *Hub) drain(w *worker) {
	for {
		select {
		case j := <-w.jobs:
			j.done <- ErrHubNotRunning
		default:
			return
		}
	}
}

func (h *Hub) execute(sessionID int64, j *job) (err error) {
	if err := j.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("session job panicked", "session_id", sessionID, "panic", r)
			err = fmt.Errorf("session %d job panicked: %v", sessionID, r)
		}
	}()
	return j.fn(j.ctx)
}

// Pending returns the number of jobs queued, not counting a running one.
func (h *Hub) Pending(sessionID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if w, ok := h.workers[sessionID]; ok {
		return len(w.jobs)
	}
	return 0
}

// GetStats returns hub statistics
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return map[string]interface{}{
		"running":        h.running,
		"session_actors": len(h.workers),
	}
}
