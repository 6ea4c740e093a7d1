package collection

import (
	"context"
	"fmt"

	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/store"
	"go.uber.org/zap"
)

// Board keeps one Synchronizer per Day for the lifetime of the server.
type Board struct {
	days map[models.Day]*Synchronizer
}

func NewBoard(st store.Store, log *zap.Logger, onChange ChangeFunc) *Board {
	b := &Board{days: make(map[models.Day]*Synchronizer, len(models.Days))}
	for _, day := range models.Days {
		b.days[day] = New(st, log.With(zap.String("day", string(day))), onChange)
	}
	return b
}

// Open subscribes every Day.
func (b *Board) Open(ctx context.Context) error {
	for _, day := range models.Days {
		if err := b.days[day].Select(ctx, day); err != nil {
			b.Close()
			return fmt.Errorf("open %s: %w", day, err)
		}
	}
	return nil
}

func (b *Board) Day(day models.Day) (*Synchronizer, bool) {
	s, ok := b.days[day]
	return s, ok
}

func (b *Board) Close() {
	for _, s := range b.days {
		s.Close()
	}
}
