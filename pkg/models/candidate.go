package models

import (
	"slices"
	"strings"
	"time"
)

// AutomationAuthor is the author name used for notes and activities written by workflows.
const AutomationAuthor = "Workflow Automation"

// Candidate holds the fields of a candidate record that the automation engine reads or writes.
// The record itself is owned by the CRM.
type Candidate struct {
	ID             string     `json:"id"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email"`
	Position       string     `json:"position,omitempty"`
	Status         string     `json:"status"`
	Tags           []string   `json:"tags"`
	Notes          []Note     `json:"notes"`
	Activities     []Activity `json:"activities"`
	AssignedTo     string     `json:"assignedTo,omitempty"`
	Score          *float64   `json:"score,omitempty"`
	StageEnteredAt *time.Time `json:"stageEnteredAt,omitempty"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Note is a free-text note attached to a candidate.
type Note struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	AuthorName string    `json:"authorName"`
	IsPrivate  bool      `json:"isPrivate"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Activity is an entry of the candidate activity log.
type Activity struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	PerformedBy string         `json:"performedBy"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// FullName joins first and last name.
func (c *Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// HasTag reports whether the candidate carries tag.
func (c *Candidate) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// AddTag adds tag and reports whether the tag set changed.
func (c *Candidate) AddTag(tag string) bool {
	if c.HasTag(tag) {
		return false
	}

	c.Tags = append(c.Tags, tag)

	return true
}

// RemoveTag removes tag and reports whether the tag set changed.
func (c *Candidate) RemoveTag(tag string) bool {
	kept := make([]string, 0, len(c.Tags))
	removed := false

	for _, t := range c.Tags {
		if t == tag {
			removed = true

			continue
		}

		kept = append(kept, t)
	}

	c.Tags = kept

	return removed
}

// DaysInStage returns the number of whole days since the candidate entered the current
// status, or false when the stage start is unknown.
func (c *Candidate) DaysInStage(now time.Time) (int, bool) {
	if c.StageEnteredAt == nil {
		return 0, false
	}

	days := int(now.Sub(*c.StageEnteredAt) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}

	return days, true
}

// Clone returns a copy of c that shares no slices or pointers with it.
func (c *Candidate) Clone() *Candidate {
	clone := *c
	clone.Tags = slices.Clone(c.Tags)
	clone.Notes = slices.Clone(c.Notes)
	clone.Activities = slices.Clone(c.Activities)

	if c.Score != nil {
		score := *c.Score
		clone.Score = &score
	}

	if c.StageEnteredAt != nil {
		entered := *c.StageEnteredAt
		clone.StageEnteredAt = &entered
	}

	if c.LastActivityAt != nil {
		last := *c.LastActivityAt
		clone.LastActivityAt = &last
	}

	return &clone
}
