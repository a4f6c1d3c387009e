package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/recruitflow/pkg/models"
)

const (
	ActivityStatusChanged = "status_changed"
	ActivityAssigned      = "assigned"
)

func (e *Executor) addTag(ctx context.Context, spec *models.AddTagAction, candidate *models.Candidate) (*Outcome, error) {
	tag := strings.TrimSpace(spec.TagName)

	added, err := e.updateCandidate(ctx, models.ActionAddTag, candidate, func(c *models.Candidate) bool {
		return c.AddTag(tag)
	})
	if err != nil {
		return nil, err
	}

	if !added {
		return &Outcome{Message: fmt.Sprintf("Candidate already has tag %q", tag)}, nil
	}

	return &Outcome{Message: fmt.Sprintf("Added tag %q", tag), Metadata: map[string]any{"tag": tag}}, nil
}

func (e *Executor) removeTag(ctx context.Context, spec *models.RemoveTagAction, candidate *models.Candidate) (*Outcome, error) {
	tag := strings.TrimSpace(spec.TagName)

	removed, err := e.updateCandidate(ctx, models.ActionRemoveTag, candidate, func(c *models.Candidate) bool {
		return c.RemoveTag(tag)
	})
	if err != nil {
		return nil, err
	}

	if !removed {
		return &Outcome{Message: fmt.Sprintf("Candidate does not have tag %q", tag)}, nil
	}

	return &Outcome{Message: fmt.Sprintf("Removed tag %q", tag), Metadata: map[string]any{"tag": tag}}, nil
}

// changeStatus moves the candidate to a new status and restarts its stage clock. It does
// not dispatch a STATUS_CHANGED event, so workflows never cascade into each other.
func (e *Executor) changeStatus(ctx context.Context, spec *models.ChangeStatusAction, candidate *models.Candidate, workflow *models.Workflow) (*Outcome, error) {
	newStatus := strings.TrimSpace(spec.NewStatus)
	previousStatus := candidate.Status

	if previousStatus == newStatus {
		return &Outcome{Message: fmt.Sprintf("Candidate is already in status %q", newStatus)}, nil
	}

	now := e.now().UTC()
	metadata := map[string]any{
		"previousStatus": previousStatus,
		"newStatus":      newStatus,
		"workflowId":     workflow.ID,
	}

	_, err := e.updateCandidate(ctx, models.ActionChangeStatus, candidate, func(c *models.Candidate) bool {
		c.Status = newStatus
		c.StageEnteredAt = &now
		c.LastActivityAt = &now
		c.Activities = append(c.Activities, models.Activity{
			ID:          newID(),
			Type:        ActivityStatusChanged,
			Description: fmt.Sprintf("Status changed from %q to %q by workflow %q", previousStatus, newStatus, workflow.Name),
			PerformedBy: models.AutomationAuthor,
			Metadata:    metadata,
			CreatedAt:   now,
		})

		return true
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{Message: fmt.Sprintf("Changed status from %q to %q", previousStatus, newStatus), Metadata: metadata}, nil
}

func (e *Executor) addNote(ctx context.Context, spec *models.AddNoteAction, candidate *models.Candidate) (*Outcome, error) {
	now := e.now().UTC()
	note := models.Note{
		ID:         newID(),
		Content:    e.email.RenderTemplate(spec.NoteContent, e.Variables(candidate)),
		AuthorName: models.AutomationAuthor,
		IsPrivate:  spec.IsPrivate,
		CreatedAt:  now,
	}

	_, err := e.updateCandidate(ctx, models.ActionAddNote, candidate, func(c *models.Candidate) bool {
		c.Notes = append(c.Notes, note)
		c.LastActivityAt = &now

		return true
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{Message: "Added note", Metadata: map[string]any{"noteId": note.ID, "isPrivate": note.IsPrivate}}, nil
}

func (e *Executor) assignUser(ctx context.Context, spec *models.AssignUserAction, candidate *models.Candidate, workflow *models.Workflow) (*Outcome, error) {
	assignee := strings.TrimSpace(spec.AssignTo)
	previous := candidate.AssignedTo

	if previous == assignee {
		return &Outcome{Message: fmt.Sprintf("Candidate is already assigned to %q", assignee)}, nil
	}

	now := e.now().UTC()
	metadata := map[string]any{
		"previousAssignee": previous,
		"assignedTo":       assignee,
		"workflowId":       workflow.ID,
	}

	_, err := e.updateCandidate(ctx, models.ActionAssignUser, candidate, func(c *models.Candidate) bool {
		c.AssignedTo = assignee
		c.LastActivityAt = &now
		c.Activities = append(c.Activities, models.Activity{
			ID:          newID(),
			Type:        ActivityAssigned,
			Description: fmt.Sprintf("Assigned to %q by workflow %q", assignee, workflow.Name),
			PerformedBy: models.AutomationAuthor,
			Metadata:    metadata,
			CreatedAt:   now,
		})

		return true
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{Message: fmt.Sprintf("Assigned candidate to %q", assignee), Metadata: metadata}, nil
}
