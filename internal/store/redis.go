package store

import (
	"context"
	"sync"

	"github.com/arnold/achievements-api/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisChannel carries the names of changed days between instances.
const RedisChannel = "achievements:changed"

// RedisNotifier fans change announcements out over redis pub/sub so several
// API instances can share one SQL database.
type RedisNotifier struct {
	rdb *redis.Client
	log *zap.Logger

	mu        sync.RWMutex
	listeners []func(models.Day)
	pubsub    *redis.PubSub
	done      chan struct{}
}

func NewRedisNotifier(rdb *redis.Client, log *zap.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context, day models.Day) error {
	return n.rdb.Publish(ctx, RedisChannel, string(day)).Err()
}

// Listen starts the redis subscription on first use.
func (n *RedisNotifier) Listen(fn func(models.Day)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
	if n.pubsub != nil {
		return
	}
	n.pubsub = n.rdb.Subscribe(context.Background(), RedisChannel)
	n.done = make(chan struct{})
	go n.loop(n.pubsub, n.done)
}

func (n *RedisNotifier) loop(ps *redis.PubSub, done chan struct{}) {
	defer close(done)
	for msg := range ps.Channel() {
		day, ok := models.ParseDay(msg.Payload)
		if !ok {
			n.log.Warn("ignoring change for unknown day", zap.String("payload", msg.Payload))
			continue
		}
		n.mu.RLock()
		listeners := append([]func(models.Day){}, n.listeners...)
		n.mu.RUnlock()
		for _, fn := range listeners {
			fn(day)
		}
	}
}

func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	ps, done := n.pubsub, n.done
	n.pubsub = nil
	n.listeners = nil
	n.mu.Unlock()

	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}
