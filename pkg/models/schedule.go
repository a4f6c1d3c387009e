package models

import "time"

// Schedule restricts when a workflow may fire. DaysOfWeek uses 0 for Sunday.
// An empty set places no restriction on that dimension.
type Schedule struct {
	Enabled    bool  `json:"enabled"`
	DaysOfWeek []int `json:"daysOfWeek,omitempty" validate:"dive,min=0,max=6"`
	Hours      []int `json:"hours,omitempty"      validate:"dive,min=0,max=23"`
}

// Allows reports whether the workflow may fire at t. A disabled schedule never allows.
func (s *Schedule) Allows(t time.Time) bool {
	if !s.Enabled {
		return false
	}

	if len(s.DaysOfWeek) > 0 && !containsInt(s.DaysOfWeek, int(t.Weekday())) {
		return false
	}

	if len(s.Hours) > 0 && !containsInt(s.Hours, t.Hour()) {
		return false
	}

	return true
}

func containsInt(values []int, value int) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
