package seed

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/arnold/achievements-api/internal/collection"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
Friday:
  - title: Early bird
    description: Arrive before the doors open
    image: bird.png
  - title: Night owl
    description: Stay until closing
    image: owl.png
sunday:
  - title: Brunch
    description: Eat brunch with the crew
    image: brunch.png
`

func TestLoad(t *testing.T) {
	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []models.Day{models.Friday, models.Sunday}, f.Days())
	require.Len(t, f[models.Friday], 2)
	assert.Equal(t, "Night owl", f[models.Friday][1].Title)
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown day":   "monday:\n  - {title: a, description: b, image: c}\n",
		"missing field": "friday:\n  - {title: a, description: b}\n",
		"unknown key":   "friday:\n  - {title: a, description: b, image: c, colour: red}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	_, err := Load(strings.NewReader("friday:\n  - {title: a, description: b}\n"))
	assert.ErrorIs(t, err, collection.ErrIncomplete)
}

func TestLoad_Empty(t *testing.T) {
	f, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Days())
}

func TestApply_AppendsAfterExisting(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	defer st.Close()
	require.NoError(t, st.Update(ctx, store.Updates{
		store.ItemPath(models.Friday, "old"): map[string]any{store.FieldTitle: "Old", store.FieldOrder: 0},
	}))

	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	n, err := Apply(ctx, st, f, false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	snap, err := st.Snapshot(ctx, models.Friday)
	require.NoError(t, err)
	items := collection.FromSnapshot(snap)
	require.Len(t, items, 3)
	assert.Equal(t, "Old", items[0].Title)
	assert.Equal(t, "Early bird", items[1].Title)
	assert.Equal(t, 1, items[1].Order)
	assert.Equal(t, "Night owl", items[2].Title)
	assert.Equal(t, 2, items[2].Order)
	assert.False(t, items[2].Completed)
	assert.Nil(t, items[2].Proof)
}

func TestApply_Replace(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	defer st.Close()
	require.NoError(t, st.Update(ctx, store.Updates{
		store.ItemPath(models.Friday, "old"): map[string]any{store.FieldTitle: "Old", store.FieldOrder: 0},
	}))

	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	_, err = Apply(ctx, st, f, true)
	require.NoError(t, err)

	snap, err := st.Snapshot(ctx, models.Friday)
	require.NoError(t, err)
	items := collection.FromSnapshot(snap)
	require.Len(t, items, 2)
	assert.Equal(t, "Early bird", items[0].Title)
	assert.Equal(t, 0, items[0].Order)
}

func TestFromListsWrite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	defer st.Close()

	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	_, err = Apply(ctx, st, f, false)
	require.NoError(t, err)

	lists := make(map[models.Day][]models.Achievement)
	for _, day := range models.Days {
		snap, err := st.Snapshot(ctx, day)
		require.NoError(t, err)
		lists[day] = collection.FromSnapshot(snap)
	}
	exported := FromLists(models.Days, lists)
	assert.Empty(t, exported[models.Saturday])

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, exported))
	assert.True(t, strings.Index(buf.String(), "friday:") < strings.Index(buf.String(), "saturday:"))

	back, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, f[models.Friday], back[models.Friday])
	assert.Equal(t, f[models.Sunday], back[models.Sunday])
}
