package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/arnold/achievements-api/internal/models"
)

// Memory is an in-process Store. It backs tests and STORE_BACKEND=memory.
type Memory struct {
	mu     sync.Mutex
	days   map[models.Day]Snapshot
	broker *broker
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		days:   make(map[models.Day]Snapshot),
		broker: newBroker(),
	}
}

func (m *Memory) Subscribe(ctx context.Context, day models.Day) (*Subscription, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("%w: unknown day %q", ErrBadPath, day)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	sub := m.broker.subscribe(day)
	sub.offer(m.days[day].clone())
	return sub, nil
}

func (m *Memory) Snapshot(ctx context.Context, day models.Day) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.days[day].clone(), nil
}

func (m *Memory) NewKey(ctx context.Context, day models.Day) (string, error) {
	if !day.Valid() {
		return "", fmt.Errorf("%w: unknown day %q", ErrBadPath, day)
	}
	return newKey()
}

func (m *Memory) Update(ctx context.Context, updates Updates) error {
	changes, err := plan(updates)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	// Stage into copies so a bad value leaves every day untouched.
	staged := make(map[models.Day]Snapshot)
	for _, c := range changes {
		snap, ok := staged[c.day]
		if !ok {
			snap = m.days[c.day].clone()
			staged[c.day] = snap
		}
		if c.remove {
			delete(snap, c.id)
			continue
		}
		rec, err := snap[c.id].WithFields(c.fields)
		if err != nil {
			return fmt.Errorf("%s: %w", ItemPath(c.day, c.id), err)
		}
		snap[c.id] = rec
	}

	for day, snap := range staged {
		m.days[day] = snap
	}
	for _, day := range touchedDays(changes) {
		m.broker.publish(day, m.days[day])
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.Field != "" {
		return m.Update(ctx, Updates{path: nil})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if p.ID == "" {
		delete(m.days, p.Day)
	} else {
		snap := m.days[p.Day].clone()
		delete(snap, p.ID)
		m.days[p.Day] = snap
	}
	m.broker.publish(p.Day, m.days[p.Day])
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.broker.closeAll()
	return nil
}
