package handler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agenthub-platform/agenthub/internal/cache"
	"github.com/agenthub-platform/agenthub/internal/config"
	"github.com/agenthub-platform/agenthub/internal/execution"
	"github.com/agenthub-platform/agenthub/internal/logger"
	"github.com/agenthub-platform/agenthub/internal/middleware"
	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

type testEnv struct {
	store  *store.Store
	server *httptest.Server
}

// newTestEnv wires the full API surface against an in-memory database, a
// permissive fake execution server, and bearer-token auth.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	s := store.New(db)

	execSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(execSrv.Close)

	cfg := &config.Config{AuthEnabled: true}
	h := New(s, cfg, cache.NewMemoryCache(), execution.New(execSrv.URL), nil, logger.Nop())

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(s, cfg))

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Route("/{agentId}", func(r chi.Router) {
				r.Get("/", h.GetAgent)
				r.Put("/", h.UpdateAgent)
				r.Delete("/", h.DeleteAgent)
				r.Get("/files/{fileId}", h.GetAgentFile)
				r.Post("/star", h.StarAgent)
				r.Post("/verify", h.VerifyAgent)
				r.Post("/env-vars", h.SetAgentEnvVar)
				r.Delete("/env-vars", h.DeleteAgentEnvVar)
				r.Post("/invoke", h.InvokeAgent)
			})
		})

		r.Get("/jobs/{jobId}", h.GetJob)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Patch("/", h.PatchSession)
				r.Delete("/", h.DeleteSession)
				r.Get("/messages", h.ListMessages)
				r.Post("/messages", h.AppendMessage)
				r.Post("/messages/bulk", h.AppendMessagesBulk)
				r.Get("/variables", h.ListVariables)
				r.Post("/variables", h.UpsertVariable)
				r.Put("/variables/{key}", h.UpdateVariable)
				r.Delete("/variables/{key}", h.DeleteVariable)
			})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{store: s, server: srv}
}

// newUserWithToken creates a user plus a bearer token the test can send.
func (e *testEnv) newUserWithToken(t *testing.T, email string, admin bool) (*model.User, string) {
	t.Helper()
	ctx := context.Background()

	user := &model.User{Email: email, Name: email, IsAdmin: admin}
	require.NoError(t, e.store.CreateUser(ctx, user))

	raw := "token-" + email
	sum := sha256.Sum256([]byte(raw))
	require.NoError(t, e.store.CreateAccessToken(ctx, &model.AccessToken{
		UserID:    user.ID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	return user, raw
}

func (e *testEnv) newAgent(t *testing.T, creatorID string) *model.Agent {
	t.Helper()
	agent := &model.Agent{
		Name:        "scenario-agent",
		Description: "agent used in handler tests",
		Version:     "1.0.0",
		CreatorID:   creatorID,
	}
	require.NoError(t, e.store.CreateAgent(context.Background(), agent))
	return agent
}

// do sends a JSON request with the given bearer token and decodes the body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/agents", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/agents", "bogus-token", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestStarAndEnvVarScenario(t *testing.T) {
	env := newTestEnv(t)
	creator, creatorToken := env.newUserWithToken(t, "u1@example.com", false)
	_, fanToken := env.newUserWithToken(t, "u2@example.com", false)
	agent := env.newAgent(t, creator.ID)

	// U2 stars the agent.
	status, body := env.do(t, http.MethodPost, "/api/agents/"+agent.ID+"/star", fanToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["isStarred"])

	// Detail as U2 reflects the star.
	status, body = env.do(t, http.MethodGet, "/api/agents/"+agent.ID, fanToken, nil)
	require.Equal(t, http.StatusOK, status)
	detail := body["agent"].(map[string]any)
	require.Equal(t, true, detail["isStarredByUser"])
	require.EqualValues(t, 1, detail["starCount"])

	// U1 sets an env var and sees it in the detail.
	status, body = env.do(t, http.MethodPost, "/api/agents/"+agent.ID+"/env-vars", creatorToken,
		map[string]string{"key": "FOO", "value": "bar"})
	require.Equal(t, http.StatusOK, status)
	envVar := body["envVar"].(map[string]any)
	require.Equal(t, "FOO", envVar["key"])

	status, body = env.do(t, http.MethodGet, "/api/agents/"+agent.ID, creatorToken, nil)
	require.Equal(t, http.StatusOK, status)
	detail = body["agent"].(map[string]any)
	envVars := detail["envVars"].([]any)
	require.Len(t, envVars, 1)
	first := envVars[0].(map[string]any)
	require.Equal(t, "FOO", first["key"])
	require.Equal(t, "bar", first["value"])

	// U2 may not touch env vars on someone else's agent.
	status, _ = env.do(t, http.MethodPost, "/api/agents/"+agent.ID+"/env-vars", fanToken,
		map[string]string{"key": "EVIL", "value": "x"})
	require.Equal(t, http.StatusForbidden, status)
}

func TestInvokeAndJobScenario(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.newUserWithToken(t, "u1@example.com", false)
	_, otherToken := env.newUserWithToken(t, "u2@example.com", false)
	agent := env.newAgent(t, user.ID)

	status, body := env.do(t, http.MethodPost, "/api/agents/"+agent.ID+"/invoke", token,
		map[string]string{"prompt": "hello"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	sessionID := body["sessionId"].(string)
	jobID := body["jobId"].(string)
	require.NotEmpty(t, sessionID)
	require.NotEmpty(t, jobID)

	status, body = env.do(t, http.MethodGet, "/api/jobs/"+jobID, token, nil)
	require.Equal(t, http.StatusOK, status)
	job := body["job"].(map[string]any)
	require.Equal(t, string(model.JobStatusQueued), job["status"])
	require.Equal(t, string(model.JobTypeAgentInvocation), job["type"])
	require.Equal(t, sessionID, job["sessionId"])
	require.Empty(t, job["logs"])

	// Another user cannot read the job.
	status, _ = env.do(t, http.MethodGet, "/api/jobs/"+jobID, otherToken, nil)
	require.Equal(t, http.StatusNotFound, status)

	// The prompt landed in the session history.
	status, body = env.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, status)
	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	require.Equal(t, model.RoleUser, msg["role"])
	require.Equal(t, "hello", msg["content"])
}

func TestVerifyRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	creator, creatorToken := env.newUserWithToken(t, "creator@example.com", false)
	_, adminToken := env.newUserWithToken(t, "admin@example.com", true)
	agent := env.newAgent(t, creator.ID)

	status, _ := env.do(t, http.MethodPost, "/api/agents/"+agent.ID+"/verify", creatorToken, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, body := env.do(t, http.MethodPost, "/api/agents/"+agent.ID+"/verify", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	verified := body["agent"].(map[string]any)
	require.Equal(t, true, verified["isVerified"])
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.newUserWithToken(t, "user@example.com", false)
	agent := env.newAgent(t, user.ID)

	status, session := env.do(t, http.MethodPost, "/api/sessions", token,
		map[string]string{"agentId": agent.ID, "initialMessage": "hi"})
	require.Equal(t, http.StatusCreated, status)
	sessionID := session["id"].(string)

	// Variables: upsert, list, update, delete.
	status, variable := env.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/variables", token,
		map[string]string{"key": "name", "value": "alice"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "alice", variable["value"])

	status, variable = env.do(t, http.MethodPut, "/api/sessions/"+sessionID+"/variables/name", token,
		map[string]string{"value": "bob"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "bob", variable["value"])

	status, _ = env.do(t, http.MethodPut, "/api/sessions/"+sessionID+"/variables/missing", token,
		map[string]string{"value": "x"})
	require.Equal(t, http.StatusNotFound, status)

	// Bulk append with a bad role commits nothing.
	status, _ = env.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/messages/bulk", token,
		map[string]any{"messages": []map[string]string{
			{"role": "user", "content": "ok"},
			{"role": "robot", "content": "bad"},
		}})
	require.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["messages"].([]any), 1)

	// End the session; further writes are rejected.
	status, ended := env.do(t, http.MethodPatch, "/api/sessions/"+sessionID, token,
		map[string]bool{"endSession": true})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, ended["endedAt"])

	status, _ = env.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/messages", token,
		map[string]string{"role": "user", "content": "too late"})
	require.Equal(t, http.StatusBadRequest, status)

	// Delete the session.
	status, _ = env.do(t, http.MethodDelete, "/api/sessions/"+sessionID, token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/sessions/"+sessionID, token, nil)
	require.Equal(t, http.StatusNotFound, status)
}
