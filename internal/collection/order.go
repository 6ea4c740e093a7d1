package collection

import (
	"cmp"
	"slices"

	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/store"
)

// FromSnapshot builds the display list of a Day: ascending by order, with an
// absent order read as 0 and ties kept in key order.
func FromSnapshot(snap store.Snapshot) []models.Achievement {
	items := make([]models.Achievement, 0, len(snap))
	for _, id := range snap.Keys() {
		rec := snap[id]
		order := 0
		if rec.Order != nil {
			order = *rec.Order
		}
		items = append(items, models.Achievement{
			ID:          id,
			Title:       rec.Title,
			Description: rec.Description,
			Image:       rec.Image,
			Completed:   rec.Completed,
			Proof:       rec.Proof,
			Order:       order,
		})
	}
	slices.SortStableFunc(items, func(a, b models.Achievement) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return items
}

// Move removes the item at from and reinserts it at to. items is not modified.
func Move(items []models.Achievement, from, to int) []models.Achievement {
	out := slices.Clone(items)
	moved := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, moved)
}

// OrderUpdates sets every item's order to its index, in one multi-path update.
func OrderUpdates(day models.Day, items []models.Achievement) store.Updates {
	updates := make(store.Updates, len(items))
	for i, item := range items {
		updates[store.FieldPath(day, item.ID, store.FieldOrder)] = i
	}
	return updates
}

// Renumber returns items with Order matching their position.
func Renumber(items []models.Achievement) []models.Achievement {
	out := slices.Clone(items)
	for i := range out {
		out[i].Order = i
	}
	return out
}
