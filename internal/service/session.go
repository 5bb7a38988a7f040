package service

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

// SessionInfo is the API shape of a session.
type SessionInfo struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	AgentID       string     `json:"agentId"`
	AgentName     string     `json:"agentName,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt"`
	MessageCount  *int64     `json:"messageCount,omitempty"`
	VariableCount *int64     `json:"variableCount,omitempty"`
}

// Pagination is the envelope accompanying paginated list responses.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// MessageInfo is the API shape of a chat message.
type MessageInfo struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// VariableInfo is the API shape of a session variable.
type VariableInfo struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageInput is one message in an append or bulk-append request.
type MessageInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionService manages chat sessions, their message history, and their
// variables. All operations are scoped to the calling user; sessions owned
// by other users read as not found.
type SessionService struct {
	store *store.Store
}

func NewSessionService(s *store.Store) *SessionService {
	return &SessionService{store: s}
}

// CreateSession opens a session between the caller and an agent, optionally
// seeded with an initial user message.
func (s *SessionService) CreateSession(ctx context.Context, userID, agentID, initialMessage string) (*SessionInfo, error) {
	if agentID == "" {
		return nil, validationErr("agentId is required")
	}
	if _, err := s.store.GetAgentByID(ctx, agentID); err != nil {
		return nil, err
	}

	session := &model.Session{UserID: userID, AgentID: agentID}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if initialMessage != "" {
		message := &model.ChatMessage{
			SessionID: session.ID,
			Role:      model.RoleUser,
			Content:   initialMessage,
		}
		if err := s.store.CreateMessage(ctx, message); err != nil {
			return nil, fmt.Errorf("failed to seed session message: %w", err)
		}
	}
	return mapSession(session), nil
}

// ListSessions returns the caller's sessions with a pagination envelope.
func (s *SessionService) ListSessions(ctx context.Context, userID string, filter store.SessionFilter) ([]*SessionInfo, *Pagination, error) {
	filter.UserID = userID
	sessions, total, err := s.store.ListSessions(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	infos := make([]*SessionInfo, len(sessions))
	for i, session := range sessions {
		infos[i] = mapSession(session)
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return infos, &Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}, nil
}

// GetSession returns one session with its agent plus message and variable
// counts.
func (s *SessionService) GetSession(ctx context.Context, userID, sessionID string) (*SessionInfo, error) {
	session, err := s.store.GetSessionDetail(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, store.ErrNotFound
	}

	messages, err := s.store.CountSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	variables, err := s.store.CountSessionVariables(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count variables: %w", err)
	}

	info := mapSession(session)
	info.MessageCount = &messages
	info.VariableCount = &variables
	return info, nil
}

// EndSession stamps the session's end time. Ending twice keeps the original
// timestamp.
func (s *SessionService) EndSession(ctx context.Context, userID, sessionID string) (*SessionInfo, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	session, err := s.store.EndSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	return mapSession(session), nil
}

// DeleteSession removes a session with its messages and variables.
func (s *SessionService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// AppendMessage adds one message to an active session.
func (s *SessionService) AppendMessage(ctx context.Context, userID, sessionID string, in MessageInput) (*MessageInfo, error) {
	if err := validateMessage(in); err != nil {
		return nil, err
	}
	if _, err := s.activeSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	message := &model.ChatMessage{
		SessionID: sessionID,
		Role:      in.Role,
		Content:   in.Content,
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return mapMessage(message), nil
}

// AppendMessages bulk-appends messages to an active session. Every message
// is validated before any row is written; the batch commits whole or not at
// all.
func (s *SessionService) AppendMessages(ctx context.Context, userID, sessionID string, inputs []MessageInput) ([]*MessageInfo, error) {
	if len(inputs) == 0 {
		return nil, validationErr("messages must be a non-empty array")
	}
	for i, in := range inputs {
		if err := validateMessage(in); err != nil {
			return nil, validationErr(fmt.Sprintf("message %d: %s", i, err.Error()))
		}
	}
	if _, err := s.activeSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	messages := make([]*model.ChatMessage, len(inputs))
	for i, in := range inputs {
		messages[i] = &model.ChatMessage{
			SessionID: sessionID,
			Role:      in.Role,
			Content:   in.Content,
		}
	}
	if err := s.store.CreateMessages(ctx, messages); err != nil {
		return nil, fmt.Errorf("failed to create messages: %w", err)
	}

	infos := make([]*MessageInfo, len(messages))
	for i, message := range messages {
		infos[i] = mapMessage(message)
	}
	return infos, nil
}

// ListMessages returns up to limit messages in chronological order. With a
// before message ID set, only messages strictly older than that message are
// returned.
func (s *SessionService) ListMessages(ctx context.Context, userID, sessionID string, limit int, beforeID string) ([]*MessageInfo, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	var before *time.Time
	if beforeID != "" {
		cursor, err := s.store.GetMessageByID(ctx, beforeID)
		if err != nil {
			return nil, err
		}
		if cursor.SessionID != sessionID {
			return nil, store.ErrNotFound
		}
		before = &cursor.Timestamp
	}

	messages, err := s.store.ListMessagesBefore(ctx, sessionID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	// Fetched newest-first; flip to chronological order for the caller.
	infos := make([]*MessageInfo, len(messages))
	for i, message := range messages {
		infos[len(messages)-1-i] = mapMessage(message)
	}
	return infos, nil
}

// ListVariables returns all variables on a session.
func (s *SessionService) ListVariables(ctx context.Context, userID, sessionID string) ([]*VariableInfo, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	variables, err := s.store.ListVariables(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variables: %w", err)
	}
	infos := make([]*VariableInfo, len(variables))
	for i, v := range variables {
		infos[i] = mapVariable(v)
	}
	return infos, nil
}

// UpsertVariable creates or updates a variable by key on an active session.
func (s *SessionService) UpsertVariable(ctx context.Context, userID, sessionID, key, value string) (*VariableInfo, error) {
	if key == "" {
		return nil, validationErr("key is required")
	}
	if _, err := s.activeSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	variable, err := s.store.UpsertVariable(ctx, sessionID, key, value)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert variable: %w", err)
	}
	return mapVariable(variable), nil
}

// UpdateVariable updates an existing variable; a missing key is not found.
func (s *SessionService) UpdateVariable(ctx context.Context, userID, sessionID, key, value string) (*VariableInfo, error) {
	if _, err := s.activeSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	variable, err := s.store.UpdateVariable(ctx, sessionID, key, value)
	if err != nil {
		return nil, err
	}
	return mapVariable(variable), nil
}

// DeleteVariable removes an existing variable; a missing key is not found.
func (s *SessionService) DeleteVariable(ctx context.Context, userID, sessionID, key string) error {
	if _, err := s.activeSession(ctx, userID, sessionID); err != nil {
		return err
	}
	return s.store.DeleteVariable(ctx, sessionID, key)
}

// ownedSession loads the session and hides other users' sessions behind
// not-found.
func (s *SessionService) ownedSession(ctx context.Context, userID, sessionID string) (*model.Session, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, store.ErrNotFound
	}
	return session, nil
}

// activeSession additionally rejects ended sessions. Writes to an ended
// session fail validation no matter who asks.
func (s *SessionService) activeSession(ctx context.Context, userID, sessionID string) (*model.Session, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Ended() {
		return nil, validationErr("session has ended")
	}
	return session, nil
}

func validateMessage(in MessageInput) error {
	if !model.ValidRole(in.Role) {
		return validationErr("role must be one of user, agent, system")
	}
	if in.Content == "" {
		return validationErr("content is required")
	}
	return nil
}

func mapSession(session *model.Session) *SessionInfo {
	info := &SessionInfo{
		ID:        session.ID,
		UserID:    session.UserID,
		AgentID:   session.AgentID,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
	}
	if session.Agent != nil {
		info.AgentName = session.Agent.Name
	}
	return info
}

func mapMessage(message *model.ChatMessage) *MessageInfo {
	return &MessageInfo{
		ID:        message.ID,
		SessionID: message.SessionID,
		Role:      message.Role,
		Content:   message.Content,
		Timestamp: message.Timestamp,
	}
}

func mapVariable(v *model.UserVariable) *VariableInfo {
	return &VariableInfo{
		Key:       v.Key,
		Value:     v.Value,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}
