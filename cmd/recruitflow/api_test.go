package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/cmd"
	"github.com/dukex/recruitflow/pkg/config"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/testutil"
	"github.com/dukex/recruitflow/pkg/web"
)

func setupTestEngine(t *testing.T) *cmd.Engine {
	t.Helper()

	cfg := config.Default()
	cfg.DatabaseURL = "file://" + t.TempDir()
	cfg.Sweep.Schedule = ""

	engine, err := cmd.NewEngine(context.Background(), cfg, slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = engine.Close(ctx)
	})

	return engine
}

func setupTestApp(t *testing.T) (*fiber.App, *cmd.Engine) {
	t.Helper()

	engine := setupTestEngine(t)
	api := NewAPI(slog.Default(), engine.Repository, engine.Dispatcher, web.NewDispatchSink(engine.Dispatcher))

	return api.App(), engine
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := get(t, app, "/")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Recruitflow API", body)
}

func TestAPI_Probes(t *testing.T) {
	app, _ := setupTestApp(t)

	for _, path := range []string{"/livez", "/readyz"} {
		status, _ := get(t, app, path)
		assert.Equal(t, http.StatusOK, status, path)
	}

	status, body := get(t, app, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "healthy")
}

func TestAPI_EventRunsWorkflowThroughEngine(t *testing.T) {
	app, engine := setupTestApp(t)
	ctx := context.Background()

	candidate := testutil.CreateTestCandidate(testutil.WithStatus("screening"))
	require.NoError(t, engine.Persistence.CandidateRepository().Save(ctx, candidate))

	wf, err := engine.Repository.Create(ctx, testutil.CreateTestWorkflow(
		testutil.WithTrigger(&models.StatusChangedCondition{ToStatus: models.StringSet{"interview"}}),
	))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events/status-changed",
		strings.NewReader(`{"candidateId": "`+candidate.ID+`", "oldStatus": "screening", "newStatus": "interview"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted web.EventAcceptedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	require.NoError(t, resp.Body.Close())
	require.Len(t, accepted.Executions, 1)

	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Supervisor.Shutdown(drainCtx))

	status, body := get(t, app, "/executions/"+accepted.Executions[0])
	require.Equal(t, http.StatusOK, status)

	var execution models.WorkflowExecution
	require.NoError(t, json.Unmarshal([]byte(body), &execution))
	assert.Equal(t, wf.ID, execution.WorkflowID)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}
