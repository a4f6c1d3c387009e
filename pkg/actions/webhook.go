package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dukex/recruitflow/pkg/models"
)

// WebhookEvent is the event name sent in every webhook payload.
const WebhookEvent = "workflow.action"

// maxWebhookResponseBytes caps how much of a response body is kept for the execution record.
const maxWebhookResponseBytes = 1024

// WebhookPayload is the JSON body POSTed to webhook URLs.
type WebhookPayload struct {
	Event     string            `json:"event"`
	Workflow  WebhookWorkflow   `json:"workflow"`
	Candidate *models.Candidate `json:"candidate"`
	Timestamp time.Time         `json:"timestamp"`
}

type WebhookWorkflow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e *Executor) callWebhook(ctx context.Context, spec *models.WebhookAction, candidate *models.Candidate, workflow *models.Workflow) (*Outcome, error) {
	method := webhookMethod(spec)

	payload, err := json.Marshal(WebhookPayload{
		Event:     WebhookEvent,
		Workflow:  WebhookWorkflow{ID: workflow.ID, Name: workflow.Name},
		Candidate: candidate,
		Timestamp: e.now().UTC(),
	})
	if err != nil {
		return nil, newExecutionError(models.ActionWebhook, "failed to encode payload", err)
	}

	var body io.Reader
	if method != http.MethodGet {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.WebhookURL, body)
	if err != nil {
		return nil, newExecutionError(models.ActionWebhook, "failed to build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "recruitflow-webhook")

	for key, value := range spec.WebhookHeaders {
		req.Header.Set(key, value)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, newExecutionError(models.ActionWebhook, fmt.Sprintf("request to %s failed", spec.WebhookURL), err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.logger.ErrorContext(ctx, "failed to close response body", "error", closeErr)
		}
	}()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))
	if err != nil {
		return nil, newExecutionError(models.ActionWebhook, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newExecutionError(models.ActionWebhook,
			fmt.Sprintf("%s %s returned status %d", method, spec.WebhookURL, resp.StatusCode), ErrWebhookStatus)
	}

	return &Outcome{
		Message: fmt.Sprintf("Webhook %s %s returned %d", method, spec.WebhookURL, resp.StatusCode),
		Metadata: map[string]any{
			"statusCode": resp.StatusCode,
			"response":   string(responseBody),
		},
	}, nil
}
