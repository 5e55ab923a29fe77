package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/pkg/audit"
	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence/file"
	"github.com/opsdeck/opsdeck/pkg/queue"
	"github.com/opsdeck/opsdeck/pkg/registry"
	"github.com/opsdeck/opsdeck/pkg/resolver"
	"github.com/opsdeck/opsdeck/pkg/schedule"
	"github.com/opsdeck/opsdeck/pkg/services"
	"github.com/opsdeck/opsdeck/pkg/synthesizer"
	"github.com/opsdeck/opsdeck/pkg/testutil"
	"github.com/opsdeck/opsdeck/pkg/web"
)

func setupTestApp(t *testing.T, actions ...*models.Action) *fiber.App {
	t.Helper()

	ctx := context.Background()
	persistence := file.NewPersistence(t.TempDir())

	for _, action := range actions {
		require.NoError(t, persistence.ActionRepository().Save(ctx, action))
	}

	logger := slog.Default()

	reg := registry.NewRegistry(logger, persistence.ActionRepository())
	require.NoError(t, reg.Load(ctx))

	sink := audit.NewSink(logger, persistence.RecordRepository(), nil)
	synth := synthesizer.NewMock()

	console := services.NewConsole(
		logger, persistence, reg, resolver.New(logger, nil), synth, sink, nil,
		"en", queue.WithLatency(time.Millisecond),
	)
	catalog := services.NewCatalog(logger, reg, nil)

	backgroundQueue := queue.New(logger, reg, synth, sink, nil, queue.WithLatency(time.Millisecond))
	scheduler := schedule.NewScheduler(backgroundQueue, logger)

	handlers := web.NewAPIHandlers(console, catalog, scheduler,
		validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	s := app.Group("/sessions")
	s.Post("/", handlers.CreateSession)
	s.Get("/", handlers.GetSessions)
	s.Get("/:id/messages", handlers.GetMessages)
	s.Post("/:id/messages", handlers.PostMessage)
	s.Post("/:id/executions", handlers.EnqueueExecution)
	s.Post("/:id/executions/cancel", handlers.CancelExecution)

	ac := app.Group("/actions")
	ac.Get("/", handlers.GetActions)
	ac.Post("/", handlers.CreateAction)
	ac.Get("/:id", handlers.GetAction)
	ac.Patch("/:id", handlers.UpdateAction)
	ac.Delete("/:id", handlers.DeleteAction)

	sc := app.Group("/schedules")
	sc.Get("/", handlers.GetSchedules)
	sc.Post("/", handlers.CreateSchedule)
	sc.Delete("/:actionId", handlers.DeleteSchedule)

	app.Get("/records", handlers.GetRecords)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		if str, ok := body.(string); ok {
			reader = bytes.NewBufferString(str)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewBuffer(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, payload
}

func TestAPIHandlers_CreateAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateActionRequest{
				Kind:    "script",
				Name:    "Disk Usage",
				Content: "df -h",
				Tags:    []string{"disk"},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - unknown kind",
			requestBody: web.CreateActionRequest{
				Kind:    "binary",
				Name:    "Disk Usage",
				Content: "df -h",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - missing content",
			requestBody: web.CreateActionRequest{
				Kind: "script",
				Name: "Disk Usage",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			resp, body := doJSON(t, app, http.MethodPost, "/actions/", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var action models.Action
				require.NoError(t, json.Unmarshal(body, &action))
				assert.NotEmpty(t, action.ID)
				assert.Equal(t, models.ActionKindScript, action.Kind)
				assert.Equal(t, "Disk Usage", action.Name)
			}
		})
	}
}

func TestAPIHandlers_ActionLifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, testutil.CreateTestAction(
		testutil.WithID("action-backup"),
		testutil.WithName("Database Backup"),
	))

	resp, body := doJSON(t, app, http.MethodGet, "/actions/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Actions []models.Action `json:"actions"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 1, listing.Count)

	resp, _ = doJSON(t, app, http.MethodPatch, "/actions/action-backup", web.UpdateActionRequest{
		Description: stringPtr("Nightly dump"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/actions/action-backup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var action models.Action
	require.NoError(t, json.Unmarshal(body, &action))
	assert.Equal(t, "Nightly dump", action.Description)
	assert.Equal(t, "Database Backup", action.Name)

	resp, _ = doJSON(t, app, http.MethodDelete, "/actions/action-backup", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/actions/action-backup", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_SessionFlow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, testutil.CreateTestAction(
		testutil.WithID("action-backup"),
		testutil.WithName("Database Backup"),
	))

	resp, body := doJSON(t, app, http.MethodPost, "/sessions/", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	require.NotEmpty(t, session.ID)

	resp, body = doJSON(t, app, http.MethodPost, "/sessions/"+session.ID+"/messages", web.PostMessageRequest{
		Text: "run the backup",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var reply models.ChatMessage
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.Equal(t, "action-backup", reply.MatchedActionID)

	resp, _ = doJSON(t, app, http.MethodPost, "/sessions/"+session.ID+"/executions", web.EnqueueExecutionRequest{
		ActionID:  "action-backup",
		MessageID: reply.ID,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/sessions/"+session.ID+"/executions/cancel", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, body = doJSON(t, app, http.MethodGet, "/records", nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}

		var trail struct {
			Count int `json:"count"`
		}

		return json.Unmarshal(body, &trail) == nil && trail.Count == 1
	}, 5*time.Second, 10*time.Millisecond)

	resp, body = doJSON(t, app, http.MethodGet, "/sessions/"+session.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var transcript struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &transcript))
	assert.GreaterOrEqual(t, len(transcript.Messages), 2)
}

func TestAPIHandlers_SessionNotFound(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/sessions/session-ghost/messages", web.PostMessageRequest{
		Text: "hello",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/sessions/session-ghost/messages", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_EnqueueEnvActionRejected(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, testutil.CreateTestAction(
		testutil.WithID("action-env"),
		testutil.WithEnvKind("HOST", "db.internal"),
	))

	resp, body := doJSON(t, app, http.MethodPost, "/sessions/", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))

	resp, _ = doJSON(t, app, http.MethodPost, "/sessions/"+session.ID+"/executions", web.EnqueueExecutionRequest{
		ActionID: "action-env",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_Schedules(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, testutil.CreateTestAction(
		testutil.WithID("action-backup"),
		testutil.WithName("Database Backup"),
	))

	resp, _ := doJSON(t, app, http.MethodPost, "/schedules/", web.CreateScheduleRequest{
		ActionID: "action-backup",
		Cron:     "@hourly",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/schedules/", web.CreateScheduleRequest{
		ActionID: "action-backup",
		Cron:     "not a cron",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/schedules/", web.CreateScheduleRequest{
		ActionID: "action-ghost",
		Cron:     "@hourly",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/schedules/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 1, listing.Count)

	resp, _ = doJSON(t, app, http.MethodDelete, "/schedules/action-backup", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
}

func stringPtr(s string) *string {
	return &s
}
