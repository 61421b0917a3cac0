package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bennydictor/visualmath/internal/platform/logger"
)

func startHub(t *testing.T, queueSize int, idle time.Duration) *Hub {
	t.Helper()
	h := NewHub(queueSize, idle, logger.NewNop())
	if err := h.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

// waitPending polls until n jobs are queued on the session.
func waitPending(t *testing.T, h *Hub, sessionID int64, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Pending(sessionID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending jobs, have %d", n, h.Pending(sessionID))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_StartStop(t *testing.T) {
	h := NewHub(4, time.Minute, logger.NewNop())

	if err := h.Do(context.Background(), 1, func(context.Context) error { return nil }); err != ErrHubNotRunning {
		t.Errorf("Expected ErrHubNotRunning before Start, got %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.Start(); err != ErrHubAlreadyRunning {
		t.Errorf("Expected ErrHubAlreadyRunning, got %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := h.Stop(); err != ErrHubNotRunning {
		t.Errorf("Expected ErrHubNotRunning, got %v", err)
	}
	// The hub can be restarted.
	if err := h.Start(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if err := h.Do(context.Background(), 1, func(context.Context) error { return nil }); err != nil {
		t.Errorf("Do after restart failed: %v", err)
	}
	_ = h.Stop()
}

func TestHub_ReturnsJobError(t *testing.T) {
	h := startHub(t, 4, time.Minute)
	want := errors.New("boom")

	if err := h.Do(context.Background(), 1, func(context.Context) error { return want }); err != want {
		t.Errorf("Expected job error, got %v", err)
	}
}

func TestHub_SerializesPerSession(t *testing.T) {
	h := startHub(t, 128, time.Minute)

	var (
		inFlight int32
		maxSeen  int32
		order    []int
		mu       sync.Mutex
		wg       sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.Do(context.Background(), 7, func(context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
						break
					}
				}
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				time.Sleep(100 * time.Microsecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("Jobs of one session ran concurrently: max in flight %d", maxSeen)
	}
	if len(order) != 50 {
		t.Errorf("Expected 50 jobs to run, got %d", len(order))
	}
}

func TestHub_FIFOWithinSession(t *testing.T) {
	h := startHub(t, 16, time.Minute)
	release := make(chan struct{})

	go func() {
		_ = h.Do(context.Background(), 1, func(context.Context) error { <-release; return nil })
	}()
	waitPending(t, h, 1, 0)
	time.Sleep(10 * time.Millisecond)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.Do(context.Background(), 1, func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		waitPending(t, h, 1, i+1)
	}
	close(release)
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("Jobs ran out of order: %v", order)
		}
	}
}

func TestHub_SessionsAreIndependent(t *testing.T) {
	h := startHub(t, 4, time.Minute)
	block := make(chan struct{})
	defer close(block)

	go func() {
		_ = h.Do(context.Background(), 1, func(context.Context) error { <-block; return nil })
	}()

	done := make(chan error, 1)
	go func() {
		done <- h.Do(context.Background(), 2, func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Job on other session failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Blocked session 1 stalled session 2")
	}
}

func TestHub_QueueFull(t *testing.T) {
	h := startHub(t, 1, time.Minute)
	release := make(chan struct{})

	go func() {
		_ = h.Do(context.Background(), 1, func(context.Context) error { <-release; return nil })
	}()
	time.Sleep(20 * time.Millisecond)

	queued := make(chan error, 1)
	go func() {
		queued <- h.Do(context.Background(), 1, func(context.Context) error { return nil })
	}()
	waitPending(t, h, 1, 1)

	if err := h.Do(context.Background(), 1, func(context.Context) error { return nil }); err != ErrQueueFull {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	close(release)
	if err := <-queued; err != nil {
		t.Errorf("Queued job failed: %v", err)
	}
}

func TestHub_SkipsCancelledJobs(t *testing.T) {
	h := startHub(t, 4, time.Minute)
	release := make(chan struct{})

	go func() {
		_ = h.Do(context.Background(), 1, func(context.Context) error { <-release; return nil })
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	ran := int32(0)
	result := make(chan error, 1)
	go func() {
		result <- h.Do(ctx, 1, func(context.Context) error { atomic.StoreInt32(&ran, 1); return nil })
	}()
	waitPending(t, h, 1, 1)
	cancel()
	close(release)

	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Error("Cancelled job should not run")
	}
}

func TestHub_IdleWorkerExits(t *testing.T) {
	h := startHub(t, 4, 20*time.Millisecond)

	if err := h.Do(context.Background(), 3, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got := h.GetStats()["session_actors"]; got != 1 {
		t.Fatalf("Expected one actor, got %v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.GetStats()["session_actors"] != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Idle actor did not exit")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A new actor is created on demand.
	if err := h.Do(context.Background(), 3, func(context.Context) error { return nil }); err != nil {
		t.Errorf("Do after idle exit failed: %v", err)
	}
}

func TestHub_StopFailsQueuedJobs(t *testing.T) {
	h := NewHub(4, time.Minute, logger.NewNop())
	if err := h.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	release := make(chan struct{})
	started := make(chan struct{})

	first := make(chan error, 1)
	go func() {
		first <- h.Do(context.Background(), 1, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	queued := make(chan error, 1)
	go func() {
		queued <- h.Do(context.Background(), 1, func(context.Context) error { return nil })
	}()
	waitPending(t, h, 1, 1)

	stopped := make(chan error, 1)
	go func() { stopped <- h.Stop() }()

	// Stop flags the hub before waiting on workers, so the queued job is
	// failed once the running one returns.
	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-first; err != nil {
		t.Errorf("Running job should complete, got %v", err)
	}
	if err := <-queued; err != ErrHubNotRunning {
		t.Errorf("Queued job should fail with ErrHubNotRunning, got %v", err)
	}
	if err := <-stopped; err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestHub_RecoversPanics(t *testing.T) {
	h := startHub(t, 4, time.Minute)

	err := h.Do(context.Background(), 1, func(context.Context) error { panic("bad job") })
	if err == nil {
		t.Fatal("Expected panic to be reported as error")
	}
	if err := h.Do(context.Background(), 1, func(context.Context) error { return nil }); err != nil {
		t.Errorf("Actor should survive a panicking job, got %v", err)
	}
}
