package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"firebase.google.com/go/v4/db"
	"github.com/arnold/achievements-api/internal/models"
	"go.uber.org/zap"
)

// Firebase keeps collections in a Firebase Realtime Database. The Admin SDK has
// no listeners, so each watched Day is polled and published when it changes.
type Firebase struct {
	client   *db.Client
	interval time.Duration
	log      *zap.Logger
	broker   *broker

	mu      sync.Mutex
	pollers map[models.Day]*poller
}

type poller struct {
	cancel context.CancelFunc
	poke   chan struct{}
	last   Snapshot
}

func NewFirebase(client *db.Client, interval time.Duration, log *zap.Logger) *Firebase {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	f := &Firebase{
		client:   client,
		interval: interval,
		log:      log,
		broker:   newBroker(),
		pollers:  make(map[models.Day]*poller),
	}
	f.broker.idle = f.stopPoller
	return f
}

func (f *Firebase) Subscribe(ctx context.Context, day models.Day) (*Subscription, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("%w: unknown day %q", ErrBadPath, day)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.pollers[day]; ok {
		sub := f.broker.subscribe(day)
		sub.offer(p.last.clone())
		p.wake()
		return sub, nil
	}

	snap, err := f.load(ctx, day)
	if err != nil {
		return nil, err
	}
	sub := f.broker.subscribe(day)
	sub.offer(snap.clone())

	pctx, cancel := context.WithCancel(context.Background())
	p := &poller{cancel: cancel, poke: make(chan struct{}, 1), last: snap}
	f.pollers[day] = p
	go f.poll(pctx, day, p)
	return sub, nil
}

func (f *Firebase) Snapshot(ctx context.Context, day models.Day) (Snapshot, error) {
	return f.load(ctx, day)
}

// NewKey generates keys locally like the client SDK's push() does.
func (f *Firebase) NewKey(ctx context.Context, day models.Day) (string, error) {
	if !day.Valid() {
		return "", fmt.Errorf("%w: unknown day %q", ErrBadPath, day)
	}
	return newKey()
}

// Update sends one multi-path PATCH. Item maps are expanded to field paths so
// fields not named keep their value, as with the other stores.
func (f *Firebase) Update(ctx context.Context, updates Updates) error {
	changes, err := plan(updates)
	if err != nil {
		return err
	}
	patch, err := patchFor(changes)
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return nil
	}
	if err := f.client.NewRef("/").Update(ctx, patch); err != nil {
		return fmt.Errorf("firebase update: %w", err)
	}
	f.wake(touchedDays(changes)...)
	return nil
}

// patchFor flattens changes into the path/value map of a PATCH on the root.
func patchFor(changes []change) (map[string]interface{}, error) {
	patch := make(map[string]interface{})
	for _, c := range changes {
		if c.remove {
			patch[ItemPath(c.day, c.id)] = nil
			continue
		}
		for field, v := range c.fields {
			if _, err := (Record{}).With(field, v); err != nil {
				return nil, fmt.Errorf("%s: %w", ItemPath(c.day, c.id), err)
			}
			patch[FieldPath(c.day, c.id, field)] = v
		}
	}
	return patch, nil
}

func (f *Firebase) Delete(ctx context.Context, path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if err := f.client.NewRef(p.String()).Delete(ctx); err != nil {
		return fmt.Errorf("firebase delete %s: %w", path, err)
	}
	f.wake(p.Day)
	return nil
}

func (f *Firebase) Close() error {
	f.mu.Lock()
	for day, p := range f.pollers {
		p.cancel()
		delete(f.pollers, day)
	}
	f.mu.Unlock()
	f.broker.closeAll()
	return nil
}

func (f *Firebase) load(ctx context.Context, day models.Day) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := f.client.NewRef(DayPath(day)).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("firebase get %s: %w", DayPath(day), err)
	}
	return decodeSnapshot(day, raw, f.log), nil
}

func decodeSnapshot(day models.Day, raw map[string]json.RawMessage, log *zap.Logger) Snapshot {
	snap := make(Snapshot, len(raw))
	for key, msg := range raw {
		var rec Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			// Nodes written out of band may not be objects.
			log.Warn("skipping malformed achievement", zap.String("path", ItemPath(day, key)), zap.Error(err))
			continue
		}
		snap[key] = rec
	}
	return snap
}

func (f *Firebase) poll(ctx context.Context, day models.Day, p *poller) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.poke:
		}

		snap, err := f.load(ctx, day)
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn("poll failed", zap.String("day", string(day)), zap.Error(err))
			}
			continue
		}

		f.mu.Lock()
		if ctx.Err() == nil && !reflect.DeepEqual(p.last, snap) {
			p.last = snap
			f.broker.publish(day, snap)
		}
		f.mu.Unlock()
	}
}

func (f *Firebase) wake(days ...models.Day) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, day := range days {
		if p, ok := f.pollers[day]; ok {
			p.wake()
		}
	}
}

func (f *Firebase) stopPoller(day models.Day) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broker.watched(day) {
		return
	}
	if p, ok := f.pollers[day]; ok {
		p.cancel()
		delete(f.pollers, day)
	}
}

func (p *poller) wake() {
	select {
	case p.poke <- struct{}{}:
	default:
	}
}
