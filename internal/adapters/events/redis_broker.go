package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tour-planning-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker carries transitions over Redis Pub/Sub so that every service
// replica can stream them.
type RedisBroker struct {
	rdb    *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[chan domain.Transition]*redis.PubSub
}

func NewRedisBroker(rdb *redis.Client, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{rdb: rdb, logger: logger, subs: map[chan domain.Transition]*redis.PubSub{}}
}

func (b *RedisBroker) Subscribe(topic string) chan domain.Transition {
	ch := make(chan domain.Transition, 16)
	ctx := context.Background()

	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		b.logger.Warn("redis subscribe failed", zap.String("topic", topic), zap.Error(err))
	}

	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()

	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var t domain.Transition
			if err := json.Unmarshal([]byte(msg.Payload), &t); err != nil {
				b.logger.Warn("drop malformed transition", zap.String("topic", topic), zap.Error(err))
				continue
			}
			select {
			case ch <- t:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Redis subscription; ch is closed once its reader
// goroutine drains.
func (b *RedisBroker) Unsubscribe(_ string, ch chan domain.Transition) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()

	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(topic string, t domain.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(t)
	if err != nil {
		b.logger.Error("encode transition", zap.Error(err))
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(topic), data).Err(); err != nil {
		b.logger.Warn("publish transition", zap.String("topic", topic), zap.Error(err))
	}
}

func (b *RedisBroker) chanName(topic string) string { return "planner:" + topic }
