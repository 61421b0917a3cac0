package bus

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennydictor/visualmath/internal/config"
	"github.com/bennydictor/visualmath/internal/platform/logger"
)

func TestMemoryBus_ForwardsToOtherInstances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewBroker()
	a, b := NewMemoryBus(broker), NewMemoryBus(broker)

	gotA := make(chan Change, 1)
	gotB := make(chan Change, 1)
	require.NoError(t, a.StartForwarder(ctx, func(c Change) { gotA <- c }))
	require.NoError(t, b.StartForwarder(ctx, func(c Change) { gotB <- c }))

	require.NoError(t, a.Publish(ctx, 42))

	select {
	case c := <-gotB:
		assert.Equal(t, int64(42), c.SessionID)
		assert.NotEmpty(t, c.Origin)
	case <-time.After(time.Second):
		t.Fatal("change not forwarded to the other instance")
	}

	select {
	case c := <-gotA:
		t.Fatalf("publisher received its own change %+v", c)
	default:
	}
}

func TestMemoryBus_CloseUnsubscribes(t *testing.T) {
	ctx := context.Background()
	broker := NewBroker()
	a, b := NewMemoryBus(broker), NewMemoryBus(broker)

	got := make(chan Change, 1)
	require.NoError(t, b.StartForwarder(ctx, func(c Change) { got <- c }))
	require.NoError(t, b.Close())
	require.NoError(t, a.Publish(ctx, 1))

	assert.Empty(t, got)
}

func TestBus_RequiresHandler(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, NewNopBus().StartForwarder(ctx, nil), ErrNoHandler)
	assert.ErrorIs(t, NewMemoryBus(NewBroker()).StartForwarder(ctx, nil), ErrNoHandler)
}

func TestNopBus(t *testing.T) {
	b := NewNopBus()
	assert.NoError(t, b.Publish(context.Background(), 1))
	assert.NoError(t, b.StartForwarder(context.Background(), func(Change) {}))
	assert.NoError(t, b.Close())
}

func TestNewRedisBus_RequiresAddress(t *testing.T) {
	_, err := NewRedisBus(&config.RedisConfig{}, logger.NewNop())
	assert.Error(t, err)
}

// TestRedisBus_RoundTrip needs a live server; set VISUALMATH_TEST_REDIS_ADDR to run it.
func TestRedisBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("VISUALMATH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VISUALMATH_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := "visualmath:test:" + t.Name()
	a := newRedisBus(goredis.NewClient(&goredis.Options{Addr: addr}), channel, logger.NewNop())
	b := newRedisBus(goredis.NewClient(&goredis.Options{Addr: addr}), channel, logger.NewNop())
	defer a.Close()
	defer b.Close()

	got := make(chan Change, 1)
	require.NoError(t, b.StartForwarder(ctx, func(c Change) { got <- c }))
	require.NoError(t, a.StartForwarder(ctx, func(c Change) { t.Errorf("publisher got its own change %+v", c) }))
	require.NoError(t, a.Publish(ctx, 7))

	select {
	case c := <-got:
		assert.Equal(t, int64(7), c.SessionID)
	case <-time.After(5 * time.Second):
		t.Fatal("change not forwarded through redis")
	}
}
