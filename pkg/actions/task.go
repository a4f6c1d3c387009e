package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/recruitflow/pkg/models"
)

func (e *Executor) createTask(ctx context.Context, spec *models.CreateTaskAction, candidate *models.Candidate, workflow *models.Workflow) (*Outcome, error) {
	now := e.now().UTC()
	variables := e.Variables(candidate)

	task := &models.Task{
		ID:          newID(),
		Title:       e.email.RenderTemplate(spec.TaskTitle, variables),
		Description: e.email.RenderTemplate(spec.TaskDescription, variables),
		CandidateID: candidate.ID,
		WorkflowID:  workflow.ID,
		AssignedTo:  taskAssignee(spec, candidate),
		Priority:    taskPriority(spec),
		Status:      models.TaskStatusPending,
		DueDate:     now.Add(time.Duration(taskDueDays(spec)) * 24 * time.Hour),
		CreatedBy:   models.AutomationAuthor,
		CreatedAt:   now,
	}

	err := e.tasks.Create(ctx, task)
	if err != nil {
		return nil, newExecutionError(models.ActionCreateTask, "failed to create task", err)
	}

	return &Outcome{
		Message: fmt.Sprintf("Created task %q for %s", task.Title, task.AssignedTo),
		Metadata: map[string]any{
			"taskId":     task.ID,
			"assignedTo": task.AssignedTo,
			"dueDate":    task.DueDate.Format(time.RFC3339),
			"priority":   task.Priority,
		},
	}, nil
}

func taskAssignee(spec *models.CreateTaskAction, candidate *models.Candidate) string {
	switch {
	case spec.TaskAssignTo != "":
		return spec.TaskAssignTo
	case candidate.AssignedTo != "":
		return candidate.AssignedTo
	default:
		return models.Unassigned
	}
}

func taskPriority(spec *models.CreateTaskAction) string {
	if spec.TaskPriority == "" {
		return models.TaskPriorityMedium
	}

	return spec.TaskPriority
}

func taskDueDays(spec *models.CreateTaskAction) int {
	if spec.TaskDueInDays == nil {
		return defaultTaskDueDays
	}

	return *spec.TaskDueInDays
}
