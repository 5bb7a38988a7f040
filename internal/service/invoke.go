package service

import (
	"context"
	"fmt"

	"github.com/agenthub-platform/agenthub/internal/execution"
	"github.com/agenthub-platform/agenthub/internal/logger"
	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

// InvokeResult reports the identifiers a caller needs to follow an
// invocation: the session carrying the conversation and the job tracking it.
type InvokeResult struct {
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId"`
	JobID     string `json:"jobId"`
	Note      string `json:"note"`
}

// InvocationService hands agent invocations to the execution server.
type InvocationService struct {
	store *store.Store
	exec  *execution.Client
	log   *logger.Logger
}

func NewInvocationService(s *store.Store, exec *execution.Client, log *logger.Logger) *InvocationService {
	return &InvocationService{store: s, exec: exec, log: log}
}

// Invoke runs a prompt against an agent. With no sessionID a fresh session
// is opened; with one, the existing conversation continues. Either way the
// prompt lands in chat history and a QUEUED job links the session before the
// execution server is called.
//
// When the handoff fails, the job is always deleted, but the session is
// deleted only if this call created it. A caller-supplied session survives
// the failure untouched.
func (s *InvocationService) Invoke(ctx context.Context, userID, agentID, prompt, sessionID string) (*InvokeResult, error) {
	if prompt == "" {
		return nil, validationErr("prompt is required")
	}
	if _, err := s.store.GetAgentByID(ctx, agentID); err != nil {
		return nil, err
	}

	sessionCreated := false
	if sessionID == "" {
		session := &model.Session{UserID: userID, AgentID: agentID}
		if err := s.store.CreateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		sessionID = session.ID
		sessionCreated = true
	} else {
		session, err := s.store.GetSessionByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session.UserID != userID || session.AgentID != agentID {
			return nil, store.ErrNotFound
		}
		if session.Ended() {
			return nil, validationErr("session has ended")
		}
	}

	message := &model.ChatMessage{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   prompt,
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		s.cleanupSession(ctx, sessionID, sessionCreated)
		return nil, fmt.Errorf("failed to record prompt: %w", err)
	}

	job := &model.Job{
		Type:      string(model.JobTypeAgentInvocation),
		UserID:    userID,
		SessionID: &sessionID,
	}
	job.SetResource(agentID)
	if err := s.store.CreateJob(ctx, job); err != nil {
		s.cleanupSession(ctx, sessionID, sessionCreated)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	err := s.exec.Invoke(ctx, agentID, execution.InvokeRequest{
		SessionID: sessionID,
		JobID:     job.ID,
		UserID:    userID,
		Prompt:    prompt,
	})
	if err != nil {
		if derr := s.store.DeleteJob(ctx, job.ID); derr != nil {
			s.log.Error("compensating job delete failed", "job_id", job.ID, "error", derr)
		}
		s.cleanupSession(ctx, sessionID, sessionCreated)
		return nil, err
	}

	return &InvokeResult{
		AgentID:   agentID,
		SessionID: sessionID,
		JobID:     job.ID,
		Note:      "Agent invocation queued; poll the job for status and the session for responses.",
	}, nil
}

func (s *InvocationService) cleanupSession(ctx context.Context, sessionID string, created bool) {
	if !created {
		return
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		s.log.Error("compensating session delete failed", "session_id", sessionID, "error", err)
	}
}
