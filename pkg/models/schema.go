package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// WorkflowSchema is the JSON Schema a workflow definition document must satisfy.
const WorkflowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Workflow",
  "type": "object",
  "required": ["name", "trigger", "actions"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string", "minLength": 3},
    "description": {"type": "string"},
    "isActive": {"type": "boolean"},
    "priority": {"type": "integer"},
    "testMode": {"type": "boolean"},
    "maxExecutionsPerDay": {"type": "integer", "minimum": 0},
    "maxExecutionsPerCandidate": {"type": "integer", "minimum": 0},
    "schedule": {
      "type": "object",
      "required": ["enabled"],
      "properties": {
        "enabled": {"type": "boolean"},
        "daysOfWeek": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 6}, "uniqueItems": true},
        "hours": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 23}, "uniqueItems": true}
      }
    },
    "trigger": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["STATUS_CHANGED", "TAG_ADDED", "TAG_REMOVED", "DAYS_IN_STAGE", "NO_ACTIVITY", "SCORE_THRESHOLD"]},
        "toStatus": {"$ref": "#/definitions/stringOrSet"},
        "fromStatus": {"$ref": "#/definitions/stringOrSet"},
        "tag": {"type": "string"},
        "tags": {"type": "array", "items": {"type": "string"}},
        "daysInStage": {"type": "integer", "minimum": 0},
        "daysInactive": {"type": "integer", "minimum": 0},
        "minScore": {"type": "number"},
        "maxScore": {"type": "number"}
      }
    },
    "actions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"enum": ["SEND_EMAIL", "ADD_TAG", "REMOVE_TAG", "CHANGE_STATUS", "ADD_NOTE", "CREATE_TASK", "ASSIGN_USER", "SEND_NOTIFICATION", "WEBHOOK"]},
          "delayMinutes": {"type": "integer", "minimum": 0},
          "emailTo": {"enum": ["candidate", "assigned_user", "custom"]},
          "emailCustomRecipient": {"type": "string"},
          "emailSubject": {"type": "string"},
          "emailBody": {"type": "string"},
          "tagName": {"type": "string"},
          "newStatus": {"type": "string"},
          "noteContent": {"type": "string"},
          "isPrivate": {"type": "boolean"},
          "taskTitle": {"type": "string"},
          "taskDescription": {"type": "string"},
          "taskDueInDays": {"type": "integer", "minimum": 0},
          "taskAssignTo": {"type": "string"},
          "taskPriority": {"enum": ["low", "medium", "high"]},
          "assignTo": {"type": "string"},
          "notificationTitle": {"type": "string"},
          "notificationMessage": {"type": "string"},
          "notifyUser": {"type": "string"},
          "webhookUrl": {"type": "string"},
          "webhookMethod": {"enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]},
          "webhookHeaders": {"type": "object", "additionalProperties": {"type": "string"}}
        }
      }
    }
  },
  "definitions": {
    "stringOrSet": {
      "oneOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}, "minItems": 1}
      ]
    }
  }
}`

var workflowSchemaLoader = gojsonschema.NewStringLoader(WorkflowSchema)

// DefinitionError lists the schema violations of a workflow definition document.
type DefinitionError struct {
	Violations []string
}

func (e *DefinitionError) Error() string {
	return "invalid workflow definition: " + strings.Join(e.Violations, "; ")
}

// ParseWorkflowDefinition validates a JSON workflow definition against WorkflowSchema
// and decodes it.
func ParseWorkflowDefinition(data []byte) (*Workflow, error) {
	result, err := gojsonschema.Validate(workflowSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to validate workflow definition: %w", err)
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return nil, &DefinitionError{Violations: violations}
	}

	var workflow Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	err = workflow.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}

	return &workflow, nil
}
