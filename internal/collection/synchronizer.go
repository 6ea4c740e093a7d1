// Package collection keeps a local, ordered view of one Day's achievements in
// step with the store and writes admin and participant changes back to it.
package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arnold/achievements-api/internal/metrics"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/store"
	"go.uber.org/zap"
)

var (
	ErrUnknownDay      = errors.New("unknown day")
	ErrNotSelected     = errors.New("no day selected")
	ErrIncomplete      = errors.New("title, description and image are required")
	ErrMissingProof    = errors.New("proof url is required")
	ErrNotFound        = errors.New("achievement not found")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNothingSelected = errors.New("no achievement selected")
)

// ChangeFunc observes every replacement of the local list.
type ChangeFunc func(day models.Day, items []models.Achievement)

// Synchronizer mirrors the selected Day. The list is rebuilt from every store
// notification; local changes that have not come back yet are overwritten.
type Synchronizer struct {
	store    store.Store
	log      *zap.Logger
	onChange ChangeFunc

	// selectMu serializes subscription changes.
	selectMu sync.Mutex

	mu       sync.RWMutex
	day      models.Day
	items    []models.Achievement
	sub      *store.Subscription
	done     chan struct{}
	editing  string
	selected string
}

func New(st store.Store, log *zap.Logger, onChange ChangeFunc) *Synchronizer {
	return &Synchronizer{store: st, log: log, onChange: onChange}
}

// Select releases the current subscription and subscribes to day. It returns
// once the day's current content has been loaded.
func (s *Synchronizer) Select(ctx context.Context, day models.Day) error {
	if !day.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDay, day)
	}
	s.selectMu.Lock()
	defer s.selectMu.Unlock()
	s.release()

	sub, err := s.store.Subscribe(ctx, day)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", day, err)
	}

	var first store.Snapshot
	select {
	case snap, ok := <-sub.Updates():
		if !ok {
			return fmt.Errorf("subscribe %s: %w", day, store.ErrClosed)
		}
		first = snap
	case <-ctx.Done():
		sub.Close()
		return ctx.Err()
	}

	done := make(chan struct{})
	items := FromSnapshot(first)
	s.mu.Lock()
	s.day = day
	s.items = items
	s.sub = sub
	s.done = done
	s.editing = ""
	s.selected = ""
	s.mu.Unlock()

	metrics.SnapshotsApplied.WithLabelValues(string(day)).Inc()
	s.notify(day, items)
	go s.watch(sub, done)
	return nil
}

// Close releases the subscription. The list stays readable.
func (s *Synchronizer) Close() {
	s.selectMu.Lock()
	defer s.selectMu.Unlock()
	s.release()
}

func (s *Synchronizer) release() {
	s.mu.Lock()
	sub, done := s.sub, s.done
	s.sub, s.done = nil, nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
}

func (s *Synchronizer) watch(sub *store.Subscription, done chan struct{}) {
	defer close(done)
	for snap := range sub.Updates() {
		items := FromSnapshot(snap)
		s.mu.Lock()
		if s.sub != sub {
			s.mu.Unlock()
			continue
		}
		day := s.day
		s.items = items
		s.mu.Unlock()

		metrics.SnapshotsApplied.WithLabelValues(string(day)).Inc()
		s.notify(day, items)
	}
}

func (s *Synchronizer) notify(day models.Day, items []models.Achievement) {
	if s.onChange != nil {
		s.onChange(day, slices.Clone(items))
	}
}

func (s *Synchronizer) Day() models.Day {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

// Items returns a copy of the current list.
func (s *Synchronizer) Items() []models.Achievement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Find returns the item with id from the current list.
func (s *Synchronizer) Find(id string) (models.Achievement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(id)
}

func (s *Synchronizer) find(id string) (models.Achievement, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return models.Achievement{}, false
}

// target returns the selected day after checking that id is in the list.
func (s *Synchronizer) target(id string) (models.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sub == nil {
		return "", ErrNotSelected
	}
	if _, ok := s.find(id); !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.day, nil
}

// Reorder moves the item at from to to, shows the new order at once and
// rewrites every order in one update. A failed write is not rolled back.
func (s *Synchronizer) Reorder(ctx context.Context, from, to int) error {
	s.mu.Lock()
	if s.sub == nil {
		s.mu.Unlock()
		return ErrNotSelected
	}
	n := len(s.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		s.mu.Unlock()
		return fmt.Errorf("%w: move %d to %d in %d items", ErrIndexOutOfRange, from, to, n)
	}
	day := s.day
	next := Renumber(Move(s.items, from, to))
	s.items = next
	s.mu.Unlock()

	s.notify(day, next)

	err := s.store.Update(ctx, OrderUpdates(day, next))
	metrics.RecordStoreWrite("reorder", err)
	if err != nil {
		s.log.Warn("reorder not saved", zap.String("day", string(day)), zap.Int("from", from), zap.Int("to", to), zap.Error(err))
		return fmt.Errorf("reorder: %w", err)
	}
	return nil
}

// Create appends an achievement and returns its key. The list picks it up
// from the store notification.
func (s *Synchronizer) Create(ctx context.Context, in models.AchievementInput) (string, error) {
	if !in.Complete() {
		return "", ErrIncomplete
	}
	s.mu.RLock()
	if s.sub == nil {
		s.mu.RUnlock()
		return "", ErrNotSelected
	}
	day, order := s.day, len(s.items)
	s.mu.RUnlock()

	id, err := s.store.NewKey(ctx, day)
	if err != nil {
		metrics.RecordStoreWrite("create", err)
		return "", fmt.Errorf("new key: %w", err)
	}

	err = s.store.Update(ctx, store.Updates{
		store.ItemPath(day, id): map[string]any{
			store.FieldTitle:       in.Title,
			store.FieldDescription: in.Description,
			store.FieldImage:       in.Image,
			store.FieldCompleted:   false,
			store.FieldProof:       nil,
			store.FieldOrder:       order,
		},
	})
	metrics.RecordStoreWrite("create", err)
	if err != nil {
		s.log.Warn("create not saved", zap.String("day", string(day)), zap.Error(err))
		return "", fmt.Errorf("create: %w", err)
	}
	return id, nil
}

// Update rewrites title, description and image only, and leaves edit mode.
func (s *Synchronizer) Update(ctx context.Context, id string, in models.AchievementInput) error {
	s.CancelEdit()
	if !in.Complete() {
		return ErrIncomplete
	}
	day, err := s.target(id)
	if err != nil {
		return err
	}

	err = s.store.Update(ctx, store.Updates{
		store.FieldPath(day, id, store.FieldTitle):       in.Title,
		store.FieldPath(day, id, store.FieldDescription): in.Description,
		store.FieldPath(day, id, store.FieldImage):       in.Image,
	})
	metrics.RecordStoreWrite("update", err)
	if err != nil {
		s.log.Warn("update not saved", zap.String("day", string(day)), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// Delete removes the item. Remaining orders are left as they are.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	day, err := s.target(id)
	if err != nil {
		return err
	}
	err = s.store.Delete(ctx, store.ItemPath(day, id))
	metrics.RecordStoreWrite("delete", err)
	if err != nil {
		s.log.Warn("delete not saved", zap.String("day", string(day)), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Reset clears a participant's completion.
func (s *Synchronizer) Reset(ctx context.Context, id string) error {
	day, err := s.target(id)
	if err != nil {
		return err
	}
	err = s.store.Update(ctx, store.Updates{
		store.FieldPath(day, id, store.FieldCompleted): false,
		store.FieldPath(day, id, store.FieldProof):     nil,
	})
	metrics.RecordStoreWrite("reset", err)
	if err != nil {
		s.log.Warn("reset not saved", zap.String("day", string(day)), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// MarkComplete records proofURL for id and marks it completed.
func (s *Synchronizer) MarkComplete(ctx context.Context, id, proofURL string) error {
	if proofURL == "" {
		return ErrMissingProof
	}
	day, err := s.target(id)
	if err != nil {
		return err
	}
	err = s.store.Update(ctx, store.Updates{
		store.FieldPath(day, id, store.FieldProof):     proofURL,
		store.FieldPath(day, id, store.FieldCompleted): true,
	})
	metrics.RecordStoreWrite("complete", err)
	if err != nil {
		s.log.Warn("completion not saved", zap.String("day", string(day)), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

// Toggle selects id, or clears the selection when id is already selected.
func (s *Synchronizer) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == id {
		s.selected = ""
		return
	}
	s.selected = id
}

func (s *Synchronizer) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// CompleteSelected marks the selected item complete with proofURL and clears
// the selection.
func (s *Synchronizer) CompleteSelected(ctx context.Context, proofURL string) error {
	s.mu.Lock()
	id := s.selected
	s.selected = ""
	s.mu.Unlock()

	if id == "" {
		return ErrNothingSelected
	}
	return s.MarkComplete(ctx, id, proofURL)
}

func (s *Synchronizer) BeginEdit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = id
}

func (s *Synchronizer) Editing() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editing
}

func (s *Synchronizer) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = ""
}
