package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TriggerType identifies the kind of domain event a workflow reacts to.
type TriggerType string

const (
	TriggerStatusChanged  TriggerType = "STATUS_CHANGED"
	TriggerTagAdded       TriggerType = "TAG_ADDED"
	TriggerTagRemoved     TriggerType = "TAG_REMOVED"
	TriggerDaysInStage    TriggerType = "DAYS_IN_STAGE"
	TriggerNoActivity     TriggerType = "NO_ACTIVITY"
	TriggerScoreThreshold TriggerType = "SCORE_THRESHOLD"
)

// TriggerTypes lists every supported trigger type.
var TriggerTypes = []TriggerType{
	TriggerStatusChanged,
	TriggerTagAdded,
	TriggerTagRemoved,
	TriggerDaysInStage,
	TriggerNoActivity,
	TriggerScoreThreshold,
}

// ErrUnknownTriggerType is returned when decoding a trigger with an unsupported type.
var ErrUnknownTriggerType = errors.New("unknown trigger type")

// TriggerCondition is the type-specific part of a trigger. The set of implementations is
// closed: only the condition types declared in this package satisfy it.
type TriggerCondition interface {
	TriggerType() TriggerType
	isTriggerCondition()
}

// StatusChangedCondition fires when a candidate moves into one of ToStatus,
// optionally only when coming from one of FromStatus.
type StatusChangedCondition struct {
	ToStatus   StringSet `json:"toStatus,omitempty"`
	FromStatus StringSet `json:"fromStatus,omitempty"`
}

// TagFilter selects the tags a tag trigger reacts to. Tag and Tags are alternatives.
type TagFilter struct {
	Tag  string   `json:"tag,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

type TagAddedCondition struct {
	TagFilter
}

type TagRemovedCondition struct {
	TagFilter
}

// DaysInStageCondition fires once a candidate has spent at least DaysInStage days in
// their current status.
type DaysInStageCondition struct {
	DaysInStage *int `json:"daysInStage,omitempty"`
}

// NoActivityCondition is declared for completeness; it never matches.
type NoActivityCondition struct {
	DaysInactive *int `json:"daysInactive,omitempty"`
}

// ScoreThresholdCondition fires when the candidate score lies in [MinScore, MaxScore].
type ScoreThresholdCondition struct {
	MinScore *float64 `json:"minScore,omitempty"`
	MaxScore *float64 `json:"maxScore,omitempty"`
}

func (*StatusChangedCondition) TriggerType() TriggerType  { return TriggerStatusChanged }
func (*TagAddedCondition) TriggerType() TriggerType       { return TriggerTagAdded }
func (*TagRemovedCondition) TriggerType() TriggerType     { return TriggerTagRemoved }
func (*DaysInStageCondition) TriggerType() TriggerType    { return TriggerDaysInStage }
func (*NoActivityCondition) TriggerType() TriggerType     { return TriggerNoActivity }
func (*ScoreThresholdCondition) TriggerType() TriggerType { return TriggerScoreThreshold }

func (*StatusChangedCondition) isTriggerCondition()  {}
func (*TagAddedCondition) isTriggerCondition()       {}
func (*TagRemovedCondition) isTriggerCondition()     {}
func (*DaysInStageCondition) isTriggerCondition()    {}
func (*NoActivityCondition) isTriggerCondition()     {}
func (*ScoreThresholdCondition) isTriggerCondition() {}

// Trigger wraps a TriggerCondition and serializes it as {"type": ..., <fields>}.
type Trigger struct {
	Condition TriggerCondition
}

// NewTrigger wraps a condition.
func NewTrigger(condition TriggerCondition) Trigger {
	return Trigger{Condition: condition}
}

// Type returns the trigger type, or an empty string when no condition is set.
func (t Trigger) Type() TriggerType {
	if t.Condition == nil {
		return ""
	}

	return t.Condition.TriggerType()
}

func (t Trigger) MarshalJSON() ([]byte, error) {
	if t.Condition == nil {
		return []byte("null"), nil
	}

	return marshalTagged(string(t.Condition.TriggerType()), t.Condition, nil)
}

func (t *Trigger) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Condition = nil

		return nil
	}

	kind, err := readType(data)
	if err != nil {
		return fmt.Errorf("failed to read trigger type: %w", err)
	}

	condition, err := newTriggerCondition(TriggerType(kind))
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, condition)
	if err != nil {
		return fmt.Errorf("failed to decode %s trigger: %w", kind, err)
	}

	t.Condition = condition

	return nil
}

func newTriggerCondition(kind TriggerType) (TriggerCondition, error) {
	switch kind {
	case TriggerStatusChanged:
		return &StatusChangedCondition{}, nil
	case TriggerTagAdded:
		return &TagAddedCondition{}, nil
	case TriggerTagRemoved:
		return &TagRemovedCondition{}, nil
	case TriggerDaysInStage:
		return &DaysInStageCondition{}, nil
	case TriggerNoActivity:
		return &NoActivityCondition{}, nil
	case TriggerScoreThreshold:
		return &ScoreThresholdCondition{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTriggerType, kind)
	}
}
