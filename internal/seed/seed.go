// Package seed loads achievement lists from YAML files into the store.
package seed

import (
	"context"
	"fmt"
	"io"

	"github.com/arnold/achievements-api/internal/collection"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/store"
	"gopkg.in/yaml.v3"
)

// File maps each day to its achievements in display order.
//
//	friday:
//	  - title: Early bird
//	    description: Arrive before the doors open
//	    image: https://example.com/bird.png
type File map[models.Day][]models.AchievementInput

// Load decodes and checks a seed file.
func Load(r io.Reader) (File, error) {
	var raw map[string][]models.AchievementInput
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	f := make(File, len(raw))
	for name, items := range raw {
		day, ok := models.ParseDay(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", collection.ErrUnknownDay, name)
		}
		for i, item := range items {
			if !item.Complete() {
				return nil, fmt.Errorf("%s item %d: %w", day, i+1, collection.ErrIncomplete)
			}
		}
		f[day] = append(f[day], items...)
	}
	return f, nil
}

// Days returns the days present in f in display order.
func (f File) Days() []models.Day {
	var days []models.Day
	for _, day := range models.Days {
		if _, ok := f[day]; ok {
			days = append(days, day)
		}
	}
	return days
}

// Apply appends every day's items after the ones already stored, in one
// update per day. With replace the day is cleared first.
func Apply(ctx context.Context, st store.Store, f File, replace bool) (int, error) {
	total := 0
	for _, day := range f.Days() {
		if replace {
			if err := st.Delete(ctx, store.DayPath(day)); err != nil {
				return total, fmt.Errorf("clear %s: %w", day, err)
			}
		}

		snap, err := st.Snapshot(ctx, day)
		if err != nil {
			return total, err
		}
		next := len(snap)

		updates := store.Updates{}
		for i, item := range f[day] {
			id, err := st.NewKey(ctx, day)
			if err != nil {
				return total, err
			}
			updates[store.ItemPath(day, id)] = map[string]any{
				store.FieldTitle:       item.Title,
				store.FieldDescription: item.Description,
				store.FieldImage:       item.Image,
				store.FieldCompleted:   false,
				store.FieldProof:       nil,
				store.FieldOrder:       next + i,
			}
		}
		if len(updates) == 0 {
			continue
		}
		if err := st.Update(ctx, updates); err != nil {
			return total, fmt.Errorf("seed %s: %w", day, err)
		}
		total += len(updates)
	}
	return total, nil
}

// FromLists keeps the editable fields of each listed day, in list order.
func FromLists(days []models.Day, lists map[models.Day][]models.Achievement) File {
	f := make(File, len(days))
	for _, day := range days {
		inputs := make([]models.AchievementInput, len(lists[day]))
		for i, item := range lists[day] {
			inputs[i] = models.AchievementInput{Title: item.Title, Description: item.Description, Image: item.Image}
		}
		f[day] = inputs
	}
	return f
}

// Write encodes f as YAML with days in display order.
func Write(w io.Writer, f File) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, day := range f.Days() {
		var items yaml.Node
		if err := items.Encode(f[day]); err != nil {
			return err
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: string(day)}, &items)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
