package store

import (
	"fmt"
	"strings"

	"github.com/arnold/achievements-api/internal/models"
)

// Root is the top-level path every collection lives under.
const Root = "achievements"

// Path addresses a Day collection, one item in it, or one field of an item.
type Path struct {
	Day   models.Day
	ID    string
	Field string
}

func DayPath(day models.Day) string {
	return Root + "/" + string(day)
}

func ItemPath(day models.Day, id string) string {
	return DayPath(day) + "/" + id
}

func FieldPath(day models.Day, id, field string) string {
	return ItemPath(day, id) + "/" + field
}

func (p Path) String() string {
	switch {
	case p.ID == "":
		return DayPath(p.Day)
	case p.Field == "":
		return ItemPath(p.Day, p.ID)
	default:
		return FieldPath(p.Day, p.ID, p.Field)
	}
}

// ParsePath splits "achievements/{day}[/{id}[/{field}]]".
func ParsePath(raw string) (Path, error) {
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) < 2 || len(parts) > 4 || parts[0] != Root {
		return Path{}, fmt.Errorf("%w: %q", ErrBadPath, raw)
	}
	day, ok := models.ParseDay(parts[1])
	if !ok {
		return Path{}, fmt.Errorf("%w: unknown day in %q", ErrBadPath, raw)
	}
	p := Path{Day: day}
	if len(parts) > 2 {
		if parts[2] == "" {
			return Path{}, fmt.Errorf("%w: empty key in %q", ErrBadPath, raw)
		}
		p.ID = parts[2]
	}
	if len(parts) > 3 {
		if !knownField(parts[3]) {
			return Path{}, fmt.Errorf("%w: unknown field in %q", ErrBadPath, raw)
		}
		p.Field = parts[3]
	}
	return p, nil
}
