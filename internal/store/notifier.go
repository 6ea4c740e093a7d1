package store

import (
	"context"
	"sync"

	"github.com/arnold/achievements-api/internal/models"
)

// Notifier announces that a Day changed so every process sharing a database
// can refresh its subscribers.
type Notifier interface {
	// Notify announces day to every listener, this process included.
	Notify(ctx context.Context, day models.Day) error
	Listen(fn func(models.Day))
	Close() error
}

// LocalNotifier only reaches listeners in this process.
type LocalNotifier struct {
	mu        sync.RWMutex
	listeners []func(models.Day)
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{}
}

func (n *LocalNotifier) Notify(ctx context.Context, day models.Day) error {
	n.mu.RLock()
	listeners := append([]func(models.Day){}, n.listeners...)
	n.mu.RUnlock()
	for _, fn := range listeners {
		fn(day)
	}
	return nil
}

func (n *LocalNotifier) Listen(fn func(models.Day)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

func (n *LocalNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = nil
	return nil
}
