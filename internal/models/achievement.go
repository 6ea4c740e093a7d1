package models

import "strings"

// Day is one of the fixed partitions of the achievement collection.
type Day string

const (
	Friday   Day = "friday"
	Saturday Day = "saturday"
	Sunday   Day = "sunday"
)

// Days lists every Day in display order.
var Days = []Day{Friday, Saturday, Sunday}

func (d Day) Valid() bool {
	switch d {
	case Friday, Saturday, Sunday:
		return true
	}
	return false
}

// ParseDay accepts a day name in any case.
func ParseDay(s string) (Day, bool) {
	d := Day(strings.ToLower(strings.TrimSpace(s)))
	return d, d.Valid()
}

// Achievement is one trackable item of a Day as seen by clients.
type Achievement struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Completed   bool    `json:"completed"`
	Proof       *string `json:"proof"`
	Order       int     `json:"order"`
}

// AchievementInput carries the admin-editable fields.
type AchievementInput struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Image       string `json:"image" yaml:"image"`
}

// Complete reports whether every required field is set.
func (in AchievementInput) Complete() bool {
	return in.Title != "" && in.Description != "" && in.Image != ""
}

// ReorderRequest is a drag result. From is required; a nil To is a drop outside the list.
type ReorderRequest struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}
