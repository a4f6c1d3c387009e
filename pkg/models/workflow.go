// Package models defines the core domain models for candidate workflow automation
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrMissingTrigger is returned when a workflow has no trigger condition.
	ErrMissingTrigger = errors.New("workflow trigger is required")

	// ErrMissingActionSpec is returned when an action carries no type-specific configuration.
	ErrMissingActionSpec = errors.New("action configuration is required")

	ErrNegativeDelay = errors.New("delayMinutes must not be negative")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Workflow is a named automation rule: one trigger and an ordered list of actions.
type Workflow struct {
	ID          string `json:"id"`
	Name        string `json:"name"                  validate:"required,min=3"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
	Priority    int    `json:"priority"`
	TestMode    bool   `json:"testMode"`

	Trigger  Trigger   `json:"trigger"`
	Actions  []Action  `json:"actions"            validate:"required,min=1"`
	Schedule *Schedule `json:"schedule,omitempty"`

	MaxExecutionsPerDay       *int `json:"maxExecutionsPerDay,omitempty"       validate:"omitempty,min=0"`
	MaxExecutionsPerCandidate *int `json:"maxExecutionsPerCandidate,omitempty" validate:"omitempty,min=0"`

	ExecutionCount int        `json:"executionCount"`
	SuccessCount   int        `json:"successCount"`
	FailureCount   int        `json:"failureCount"`
	LastExecutedAt *time.Time `json:"lastExecutedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Runnable reports whether the workflow has anything to execute.
func (w *Workflow) Runnable() bool {
	return len(w.Actions) > 0
}

// Validate checks the structural invariants of a workflow definition.
func (w *Workflow) Validate() error {
	err := validate.Struct(w)
	if err != nil {
		return err
	}

	if w.Trigger.Condition == nil {
		return ErrMissingTrigger
	}

	for i, action := range w.Actions {
		if action.Spec == nil {
			return fmt.Errorf("action %d: %w", i, ErrMissingActionSpec)
		}

		if action.DelayMinutes < 0 {
			return fmt.Errorf("action %d: %w", i, ErrNegativeDelay)
		}
	}

	return nil
}
