package store

import (
	"sync"

	"github.com/arnold/achievements-api/internal/models"
)

// Subscription delivers full snapshots of one Day. Only the latest snapshot is
// kept for a slow reader; older ones are dropped.
type Subscription struct {
	Day models.Day

	mu      sync.Mutex
	ch      chan Snapshot
	closed  bool
	release func(*Subscription)
}

func newSubscription(day models.Day, release func(*Subscription)) *Subscription {
	return &Subscription{Day: day, ch: make(chan Snapshot, 1), release: release}
}

// Updates is closed once the subscription is closed.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	if s.shut() && s.release != nil {
		s.release(s)
	}
}

// shut closes the channel and reports whether this call did it.
func (s *Subscription) shut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.ch)
	return true
}

func (s *Subscription) offer(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// broker fans snapshots out to the subscriptions of each Day.
type broker struct {
	mu    sync.RWMutex
	rooms map[models.Day]map[*Subscription]bool

	// idle is called without the lock held when the last subscription of a Day goes away.
	idle func(models.Day)
}

func newBroker() *broker {
	return &broker{rooms: make(map[models.Day]map[*Subscription]bool)}
}

func (b *broker) subscribe(day models.Day) *Subscription {
	sub := newSubscription(day, b.unsubscribe)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rooms[day] == nil {
		b.rooms[day] = make(map[*Subscription]bool)
	}
	b.rooms[day][sub] = true
	return sub
}

func (b *broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	empty := false
	if subs, ok := b.rooms[sub.Day]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.rooms, sub.Day)
			empty = true
		}
	}
	b.mu.Unlock()

	if empty && b.idle != nil {
		b.idle(sub.Day)
	}
}

func (b *broker) watched(day models.Day) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[day]) > 0
}

// publish hands every subscriber of day its own copy of snap.
func (b *broker) publish(day models.Day, snap Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.rooms[day] {
		sub.offer(snap.clone())
	}
}

func (b *broker) closeAll() {
	b.mu.Lock()
	var subs []*Subscription
	for _, room := range b.rooms {
		for sub := range room {
			subs = append(subs, sub)
		}
	}
	b.rooms = make(map[models.Day]map[*Subscription]bool)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.shut()
	}
}
