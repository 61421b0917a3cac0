package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Broker connects in-process buses as if they were separate instances
// sharing one Redis channel.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]func(Change)
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]func(Change))}
}

type memoryBus struct {
	broker *Broker
	origin string
}

// NewMemoryBus returns a bus attached to broker with its own origin.
func NewMemoryBus(broker *Broker) Bus {
	return &memoryBus{broker: broker, origin: uuid.NewString()}
}

func (b *memoryBus) Publish(_ context.Context, sessionID int64) error {
	c := Change{SessionID: sessionID, Origin: b.origin}

	b.broker.mu.RLock()
	defer b.broker.mu.RUnlock()
	for origin, fn := range b.broker.subs {
		if origin != b.origin {
			fn(c)
		}
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(c Change)) error {
	if onMsg == nil {
		return ErrNoHandler
	}

	b.broker.mu.Lock()
	b.broker.subs[b.origin] = onMsg
	b.broker.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe()
	}()
	return nil
}

func (b *memoryBus) Close() error {
	b.unsubscribe()
	return nil
}

func (b *memoryBus) unsubscribe() {
	b.broker.mu.Lock()
	delete(b.broker.subs, b.origin)
	b.broker.mu.Unlock()
}
