package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arnold/achievements-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// achievementRow is one item of a Day collection.
type achievementRow struct {
	Day         string  `gorm:"primaryKey;size:16"`
	Key         string  `gorm:"column:item_key;primaryKey;size:64"`
	Title       string  `gorm:"not null;default:''"`
	Description string  `gorm:"not null;default:''"`
	Image       string  `gorm:"not null;default:''"`
	Completed   bool    `gorm:"not null;default:false"`
	Proof       *string `gorm:"default:null"`
	SortOrder   *int    `gorm:"column:sort_order;default:null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (achievementRow) TableName() string {
	return "achievements"
}

func (r achievementRow) record() Record {
	return Record{
		Title:       r.Title,
		Description: r.Description,
		Image:       r.Image,
		Completed:   r.Completed,
		Proof:       r.Proof,
		Order:       r.SortOrder,
	}
}

func (r *achievementRow) set(rec Record) {
	r.Title = rec.Title
	r.Description = rec.Description
	r.Image = rec.Image
	r.Completed = rec.Completed
	r.Proof = rec.Proof
	r.SortOrder = rec.Order
}

// Gorm keeps collections in a SQL table (sqlite or postgres). Subscribers are
// refreshed from the table whenever the Notifier announces a change.
type Gorm struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
	broker   *broker

	// refreshMu keeps snapshot loads and their publication in commit order.
	refreshMu sync.Mutex
}

func NewGorm(db *gorm.DB, notifier Notifier, log *zap.Logger) (*Gorm, error) {
	if err := db.AutoMigrate(&achievementRow{}); err != nil {
		return nil, fmt.Errorf("migrate achievements: %w", err)
	}
	g := &Gorm{db: db, notifier: notifier, log: log, broker: newBroker()}
	notifier.Listen(g.refresh)
	return g, nil
}

func (g *Gorm) Subscribe(ctx context.Context, day models.Day) (*Subscription, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("%w: unknown day %q", ErrBadPath, day)
	}
	g.refreshMu.Lock()
	defer g.refreshMu.Unlock()

	snap, err := g.load(ctx, g.db, day)
	if err != nil {
		return nil, err
	}
	sub := g.broker.subscribe(day)
	sub.offer(snap)
	return sub, nil
}

func (g *Gorm) Snapshot(ctx context.Context, day models.Day) (Snapshot, error) {
	return g.load(ctx, g.db, day)
}

func (g *Gorm) NewKey(ctx context.Context, day models.Day) (string, error) {
	if !day.Valid() {
		return "", fmt.Errorf("%w: unknown day %q", ErrBadPath, day)
	}
	return newKey()
}

func (g *Gorm) Update(ctx context.Context, updates Updates) error {
	changes, err := plan(updates)
	if err != nil {
		return err
	}

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			where := tx.Where("day = ? AND item_key = ?", string(c.day), c.id)
			if c.remove {
				if err := where.Delete(&achievementRow{}).Error; err != nil {
					return err
				}
				continue
			}

			var row achievementRow
			found := true
			if err := where.Take(&row).Error; err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				found = false
				row = achievementRow{Day: string(c.day), Key: c.id}
			}

			rec, err := row.record().WithFields(c.fields)
			if err != nil {
				return fmt.Errorf("%s: %w", ItemPath(c.day, c.id), err)
			}
			row.set(rec)

			if found {
				err = tx.Save(&row).Error
			} else {
				err = tx.Create(&row).Error
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update achievements: %w", err)
	}

	g.announce(ctx, touchedDays(changes))
	return nil
}

func (g *Gorm) Delete(ctx context.Context, path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.Field != "" {
		return g.Update(ctx, Updates{path: nil})
	}

	q := g.db.WithContext(ctx).Where("day = ?", string(p.Day))
	if p.ID != "" {
		q = q.Where("item_key = ?", p.ID)
	}
	if err := q.Delete(&achievementRow{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	g.announce(ctx, []models.Day{p.Day})
	return nil
}

func (g *Gorm) Close() error {
	g.broker.closeAll()
	return g.notifier.Close()
}

func (g *Gorm) announce(ctx context.Context, days []models.Day) {
	for _, day := range days {
		if err := g.notifier.Notify(ctx, day); err != nil {
			// Other instances miss this change until their next one; ours still refreshes.
			g.log.Warn("change notification failed", zap.String("day", string(day)), zap.Error(err))
			g.refresh(day)
		}
	}
}

func (g *Gorm) refresh(day models.Day) {
	if !g.broker.watched(day) {
		return
	}
	g.refreshMu.Lock()
	defer g.refreshMu.Unlock()

	snap, err := g.load(context.Background(), g.db, day)
	if err != nil {
		g.log.Error("snapshot reload failed", zap.String("day", string(day)), zap.Error(err))
		return
	}
	g.broker.publish(day, snap)
}

func (g *Gorm) load(ctx context.Context, db *gorm.DB, day models.Day) (Snapshot, error) {
	var rows []achievementRow
	if err := db.WithContext(ctx).Where("day = ?", string(day)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", DayPath(day), err)
	}
	snap := make(Snapshot, len(rows))
	for _, r := range rows {
		snap[r.Key] = r.record()
	}
	return snap, nil
}
