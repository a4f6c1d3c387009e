package actions_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/actions"
	"github.com/dukex/recruitflow/pkg/models"
)

func TestExecutor_WebhookPostsPayload(t *testing.T) {
	var (
		received    actions.WebhookPayload
		method      string
		contentType string
		token       string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		token = r.Header.Get("X-Token")

		body, err := io.ReadAll(r.Body)
		if err == nil {
			_ = json.Unmarshal(body, &received)
		}

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := setup(t)

	outcome, err := f.run(t, &models.WebhookAction{
		WebhookURL:     server.URL + "/hooks/candidate",
		WebhookHeaders: map[string]string{"X-Token": "secret"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "secret", token)
	assert.Equal(t, actions.WebhookEvent, received.Event)
	assert.Equal(t, f.workflow.ID, received.Workflow.ID)
	assert.Equal(t, f.workflow.Name, received.Workflow.Name)
	require.NotNil(t, received.Candidate)
	assert.Equal(t, f.candidate.ID, received.Candidate.ID)
	assert.True(t, received.Timestamp.Equal(fixedNow))

	assert.Equal(t, http.StatusAccepted, outcome.Metadata["statusCode"])
	assert.Equal(t, `{"ok":true}`, outcome.Metadata["response"])
}

func TestExecutor_WebhookCustomMethod(t *testing.T) {
	var method string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := setup(t)

	_, err := f.run(t, &models.WebhookAction{WebhookURL: server.URL, WebhookMethod: "put"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
}

func TestExecutor_WebhookNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := setup(t)

	_, err := f.run(t, &models.WebhookAction{WebhookURL: server.URL})
	requireExecutionError(t, err, models.ActionWebhook)
	assert.ErrorIs(t, err, actions.ErrWebhookStatus)
	assert.Contains(t, err.Error(), "500")
}

func TestExecutor_WebhookTransportErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	url := server.URL
	server.Close()

	f := setup(t)

	_, err := f.run(t, &models.WebhookAction{WebhookURL: url})
	requireExecutionError(t, err, models.ActionWebhook)
	assert.Contains(t, err.Error(), "request to")
}

func TestExecutor_WebhookTimeout(t *testing.T) {
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	f := setup(t, actions.WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := f.run(t, &models.WebhookAction{WebhookURL: server.URL})

	requireExecutionError(t, err, models.ActionWebhook)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecutor_WebhookRejectsInvalidURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		method string
	}{
		{name: "relative", url: "/hooks"},
		{name: "unsupported_scheme", url: "ftp://example.com/hooks"},
		{name: "no_host", url: "http://"},
		{name: "unsupported_method", url: "https://example.com/hooks", method: "TRACE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)

			_, err := f.run(t, &models.WebhookAction{WebhookURL: tt.url, WebhookMethod: tt.method})
			requireExecutionError(t, err, models.ActionWebhook)
		})
	}
}
