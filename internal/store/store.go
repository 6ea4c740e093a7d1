// Package store holds the keyed, ordered collections of achievements.
//
// A Store exposes the primitives of a hosted realtime database: subscribe to
// a Day and receive its full content on every change, apply partial
// multi-path updates atomically, generate keys for appends and delete by path.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/arnold/achievements-api/internal/models"
	"github.com/google/uuid"
)

var (
	ErrBadPath  = errors.New("store: bad path")
	ErrBadValue = errors.New("store: bad value")
	ErrClosed   = errors.New("store: closed")
)

// Updates maps item or field paths to their new value. An item path takes a
// map of fields, or nil to remove the item. A nil field value clears it.
type Updates map[string]any

type Store interface {
	// Subscribe opens a subscription on a Day. The current content is
	// available on the subscription before Subscribe returns.
	Subscribe(ctx context.Context, day models.Day) (*Subscription, error)
	Snapshot(ctx context.Context, day models.Day) (Snapshot, error)
	// NewKey returns a fresh key under the Day. Keys sort in creation order.
	NewKey(ctx context.Context, day models.Day) (string, error)
	// Update applies all entries or none.
	Update(ctx context.Context, updates Updates) error
	// Delete removes an item path, or a whole Day path.
	Delete(ctx context.Context, path string) error
	Close() error
}

type change struct {
	day    models.Day
	id     string
	fields map[string]any
	remove bool
}

// plan groups a multi-path update by item, sorted by day and key.
func plan(u Updates) ([]change, error) {
	byItem := make(map[Path]*change)
	whole := make(map[Path]bool)
	partial := make(map[Path]bool)

	for raw, v := range u {
		p, err := ParsePath(raw)
		if err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: cannot update a whole day (%q)", ErrBadPath, raw)
		}
		item := Path{Day: p.Day, ID: p.ID}
		c, ok := byItem[item]
		if !ok {
			c = &change{day: p.Day, id: p.ID, fields: make(map[string]any)}
			byItem[item] = c
		}

		if p.Field != "" {
			partial[item] = true
			c.fields[p.Field] = v
			continue
		}

		whole[item] = true
		switch val := v.(type) {
		case nil:
			c.remove = true
		case map[string]any:
			for k, fv := range val {
				if !knownField(k) {
					return nil, fmt.Errorf("%w: unknown field %q at %q", ErrBadValue, k, raw)
				}
				c.fields[k] = fv
			}
		default:
			return nil, fmt.Errorf("%w: item %q needs a field map, got %T", ErrBadValue, raw, v)
		}
	}

	for item := range whole {
		if partial[item] {
			return nil, fmt.Errorf("%w: %q overlaps one of its fields", ErrBadPath, item.String())
		}
	}

	out := make([]change, 0, len(byItem))
	for _, c := range byItem {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].day != out[j].day {
			return out[i].day < out[j].day
		}
		return out[i].id < out[j].id
	})
	return out, nil
}

func touchedDays(changes []change) []models.Day {
	seen := make(map[models.Day]bool)
	var days []models.Day
	for _, c := range changes {
		if !seen[c.day] {
			seen[c.day] = true
			days = append(days, c.day)
		}
	}
	return days
}

// newKey returns a version 7 UUID; their string form sorts by creation time.
func newKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
