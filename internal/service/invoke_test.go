package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenthub-platform/agenthub/internal/execution"
	"github.com/agenthub-platform/agenthub/internal/logger"
	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

// fakeExecServer stands in for the execution server, answering every request
// with a fixed status.
func fakeExecServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status >= 400 {
			json.NewEncoder(w).Encode(map[string]string{"error": "rejected"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInvokeCreatesSessionJobAndMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	srv := fakeExecServer(t, http.StatusOK)

	svc := NewInvocationService(s, execution.New(srv.URL), logger.Nop())

	result, err := svc.Invoke(ctx, user.ID, agent.ID, "hello", "")
	require.NoError(t, err)
	require.Equal(t, agent.ID, result.AgentID)
	require.NotEmpty(t, result.SessionID)
	require.NotEmpty(t, result.JobID)

	job, err := s.GetJobOwned(ctx, result.JobID, user.ID)
	require.NoError(t, err)
	require.Equal(t, string(model.JobTypeAgentInvocation), job.Type)
	require.Equal(t, string(model.JobStatusQueued), job.Status)
	require.NotNil(t, job.SessionID)
	require.Equal(t, result.SessionID, *job.SessionID)
	require.Empty(t, job.Logs)

	count, err := s.CountSessionMessages(ctx, result.SessionID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestInvokeUpstreamFailureDeletesNewSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	srv := fakeExecServer(t, http.StatusInternalServerError)

	svc := NewInvocationService(s, execution.New(srv.URL), logger.Nop())

	_, err := svc.Invoke(ctx, user.ID, agent.ID, "hello", "")
	var upstream *execution.UpstreamError
	require.ErrorAs(t, err, &upstream)

	// Both the job and the session this call created are rolled back.
	require.Zero(t, countRows(t, s, &model.Job{}))
	require.Zero(t, countRows(t, s, &model.Session{}))
	require.Zero(t, countRows(t, s, &model.ChatMessage{}))
}

func TestInvokeUpstreamFailureKeepsSuppliedSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	srv := fakeExecServer(t, http.StatusInternalServerError)

	session := &model.Session{UserID: user.ID, AgentID: agent.ID}
	require.NoError(t, s.CreateSession(ctx, session))

	svc := NewInvocationService(s, execution.New(srv.URL), logger.Nop())

	_, err := svc.Invoke(ctx, user.ID, agent.ID, "hello again", session.ID)
	var upstream *execution.UpstreamError
	require.ErrorAs(t, err, &upstream)

	// The job is gone, but a caller-supplied session is never deleted.
	require.Zero(t, countRows(t, s, &model.Job{}))
	kept, err := s.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, session.ID, kept.ID)
}

func TestInvokeValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	other := newTestUser(t, s, "other@example.com")
	agent := newTestAgent(t, s, user.ID)
	srv := fakeExecServer(t, http.StatusOK)

	svc := NewInvocationService(s, execution.New(srv.URL), logger.Nop())

	_, err := svc.Invoke(ctx, user.ID, agent.ID, "", "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = svc.Invoke(ctx, user.ID, "missing-agent", "hi", "")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Another user's session reads as not found.
	session := &model.Session{UserID: user.ID, AgentID: agent.ID}
	require.NoError(t, s.CreateSession(ctx, session))
	_, err = svc.Invoke(ctx, other.ID, agent.ID, "hi", session.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// An ended session rejects new invocations.
	_, err = s.EndSession(ctx, session.ID)
	require.NoError(t, err)
	_, err = svc.Invoke(ctx, user.ID, agent.ID, "hi", session.ID)
	require.ErrorAs(t, err, &vErr)
}
