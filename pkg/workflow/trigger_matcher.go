package workflow

import (
	"log/slog"

	"github.com/dukex/recruitflow/pkg/models"
)

// TriggerMatcher decides whether a workflow reacts to a candidate event. It holds no state
// besides its logger and is safe for concurrent use.
type TriggerMatcher struct {
	logger *slog.Logger
}

// NewTriggerMatcher creates a new trigger matcher
func NewTriggerMatcher(logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// Matches reports whether workflow should fire for event. Constraints left empty in the
// trigger do not restrict the match.
func (tm *TriggerMatcher) Matches(workflow *models.Workflow, candidate *models.Candidate, event models.EventContext) bool {
	if workflow == nil || !workflow.IsActive {
		return false
	}

	if workflow.Trigger.Type() != event.Type {
		return false
	}

	switch condition := workflow.Trigger.Condition.(type) {
	case *models.StatusChangedCondition:
		return matchStatusChanged(condition, event)
	case *models.TagAddedCondition:
		return matchTag(condition.TagFilter, event)
	case *models.TagRemovedCondition:
		return matchTag(condition.TagFilter, event)
	case *models.DaysInStageCondition:
		return matchDaysInStage(condition, event)
	case *models.ScoreThresholdCondition:
		return matchScore(condition, candidate, event)
	case *models.NoActivityCondition:
		tm.logger.Warn("NO_ACTIVITY triggers are not evaluated",
			"workflow_id", workflow.ID,
			"candidate_id", event.CandidateID)

		return false
	default:
		return false
	}
}

func matchStatusChanged(condition *models.StatusChangedCondition, event models.EventContext) bool {
	if len(condition.ToStatus) > 0 && !condition.ToStatus.Contains(event.NewStatus) {
		return false
	}

	// fromStatus is only enforced when the previous status is known
	if len(condition.FromStatus) > 0 && event.OldStatus != "" && !condition.FromStatus.Contains(event.OldStatus) {
		return false
	}

	return true
}

func matchTag(filter models.TagFilter, event models.EventContext) bool {
	if event.Tag == "" {
		return false
	}

	if filter.Tag == "" && len(filter.Tags) == 0 {
		return true
	}

	if filter.Tag == event.Tag {
		return true
	}

	for _, tag := range filter.Tags {
		if tag == event.Tag {
			return true
		}
	}

	return false
}

func matchDaysInStage(condition *models.DaysInStageCondition, event models.EventContext) bool {
	if condition.DaysInStage == nil {
		return true
	}

	return event.DaysInStage != nil && *event.DaysInStage >= *condition.DaysInStage
}

// matchScore uses the event score, falling back to the candidate's current score.
func matchScore(condition *models.ScoreThresholdCondition, candidate *models.Candidate, event models.EventContext) bool {
	score := event.Score
	if score == nil && candidate != nil {
		score = candidate.Score
	}

	if condition.MinScore == nil && condition.MaxScore == nil {
		return true
	}

	if score == nil {
		return false
	}

	if condition.MinScore != nil && *score < *condition.MinScore {
		return false
	}

	if condition.MaxScore != nil && *score > *condition.MaxScore {
		return false
	}

	return true
}
