package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Field names as stored under an item key.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldImage       = "image"
	FieldCompleted   = "completed"
	FieldProof       = "proof"
	FieldOrder       = "order"
)

func knownField(f string) bool {
	switch f {
	case FieldTitle, FieldDescription, FieldImage, FieldCompleted, FieldProof, FieldOrder:
		return true
	}
	return false
}

// Record is the stored value of one item. Order is nil when the field is absent.
type Record struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image,omitempty"`
	Completed   bool    `json:"completed,omitempty"`
	Proof       *string `json:"proof,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// Snapshot is the full keyed content of one Day. Receivers must treat it as read-only.
type Snapshot map[string]Record

// Keys returns the snapshot keys in ascending order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// With returns a copy of r with field set to v. A nil v clears the field.
// Pointer fields are always replaced, never written through.
func (r Record) With(field string, v any) (Record, error) {
	switch field {
	case FieldTitle, FieldDescription, FieldImage:
		s, err := asString(field, v)
		if err != nil {
			return r, err
		}
		switch field {
		case FieldTitle:
			r.Title = s
		case FieldDescription:
			r.Description = s
		default:
			r.Image = s
		}
	case FieldCompleted:
		if v == nil {
			r.Completed = false
			return r, nil
		}
		b, ok := v.(bool)
		if !ok {
			return r, fmt.Errorf("%w: %s must be a bool, got %T", ErrBadValue, field, v)
		}
		r.Completed = b
	case FieldProof:
		if v == nil {
			r.Proof = nil
			return r, nil
		}
		s, err := asString(field, v)
		if err != nil {
			return r, err
		}
		r.Proof = &s
	case FieldOrder:
		if v == nil {
			r.Order = nil
			return r, nil
		}
		n, err := asInt(v)
		if err != nil {
			return r, err
		}
		r.Order = &n
	default:
		return r, fmt.Errorf("%w: unknown field %q", ErrBadValue, field)
	}
	return r, nil
}

// WithFields applies every entry of fields in key order.
func (r Record) WithFields(fields map[string]any) (Record, error) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	var err error
	for _, name := range names {
		if r, err = r.With(name, fields[name]); err != nil {
			return r, err
		}
	}
	return r, nil
}

func asString(field string, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrBadValue, field, v)
	}
	return s, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: order must be an integer, got %v", ErrBadValue, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: order: %v", ErrBadValue, err)
		}
		return int(i), nil
	}
	return 0, fmt.Errorf("%w: order must be a number, got %T", ErrBadValue, v)
}
