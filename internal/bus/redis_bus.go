package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/bennydictor/visualmath/internal/config"
	"github.com/bennydictor/visualmath/internal/platform/logger"
)

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
}

// NewRedisBus connects to the configured Redis server and verifies it answers.
func NewRedisBus(cfg *config.RedisConfig, log *logger.Logger) (Bus, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisBus(rdb, cfg.Channel, log), nil
}

func newRedisBus(rdb *goredis.Client, channel string, log *logger.Logger) *redisBus {
	origin := uuid.NewString()
	return &redisBus{
		log:     log.With("component", "bus", "origin", origin),
		rdb:     rdb,
		channel: channel,
		origin:  origin,
	}
}

func (b *redisBus) Publish(ctx context.Context, sessionID int64) error {
	raw, err := json.Marshal(Change{SessionID: sessionID, Origin: b.origin})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(c Change)) error {
	if onMsg == nil {
		return ErrNoHandler
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so no change published after
	// this call returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					b.log.Warn("bad session change payload", "error", err)
					continue
				}
				if c.Origin == b.origin {
					continue
				}
				onMsg(c)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}
