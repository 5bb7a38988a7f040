package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

func TestCreateSessionSeedsInitialMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	svc := NewSessionService(s)

	session, err := svc.CreateSession(ctx, user.ID, agent.ID, "hello")
	require.NoError(t, err)

	messages, err := svc.ListMessages(ctx, user.ID, session.ID, 10, "")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, model.RoleUser, messages[0].Role)
	require.Equal(t, "hello", messages[0].Content)
}

func TestCreateSessionUnknownAgent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	svc := NewSessionService(s)

	_, err := svc.CreateSession(ctx, user.ID, "missing", "")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBulkAppendAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	svc := NewSessionService(s)

	session, err := svc.CreateSession(ctx, user.ID, agent.ID, "")
	require.NoError(t, err)

	// One bad role poisons the whole batch.
	_, err = svc.AppendMessages(ctx, user.ID, session.ID, []MessageInput{
		{Role: model.RoleUser, Content: "fine"},
		{Role: "robot", Content: "bad role"},
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Zero(t, countRows(t, s, &model.ChatMessage{}))

	// Empty content poisons it too.
	_, err = svc.AppendMessages(ctx, user.ID, session.ID, []MessageInput{
		{Role: model.RoleUser, Content: "fine"},
		{Role: model.RoleAgent, Content: ""},
	})
	require.ErrorAs(t, err, &vErr)
	require.Zero(t, countRows(t, s, &model.ChatMessage{}))

	// A clean batch commits whole.
	created, err := svc.AppendMessages(ctx, user.ID, session.ID, []MessageInput{
		{Role: model.RoleUser, Content: "one"},
		{Role: model.RoleAgent, Content: "two"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.EqualValues(t, 2, countRows(t, s, &model.ChatMessage{}))
}

func TestEndedSessionRejectsWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	svc := NewSessionService(s)

	session, err := svc.CreateSession(ctx, user.ID, agent.ID, "")
	require.NoError(t, err)
	_, err = svc.EndSession(ctx, user.ID, session.ID)
	require.NoError(t, err)

	var vErr *ValidationError

	_, err = svc.AppendMessage(ctx, user.ID, session.ID, MessageInput{Role: model.RoleUser, Content: "late"})
	require.ErrorAs(t, err, &vErr)

	_, err = svc.AppendMessages(ctx, user.ID, session.ID, []MessageInput{{Role: model.RoleUser, Content: "late"}})
	require.ErrorAs(t, err, &vErr)

	_, err = svc.UpsertVariable(ctx, user.ID, session.ID, "k", "v")
	require.ErrorAs(t, err, &vErr)

	_, err = svc.UpdateVariable(ctx, user.ID, session.ID, "k", "v")
	require.ErrorAs(t, err, &vErr)

	err = svc.DeleteVariable(ctx, user.ID, session.ID, "k")
	require.ErrorAs(t, err, &vErr)
}

func TestListMessagesCursorPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	svc := NewSessionService(s)

	session, err := svc.CreateSession(ctx, user.ID, agent.ID, "")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	var ids []string
	for i, content := range []string{"m1", "m2", "m3", "m4", "m5"} {
		message := &model.ChatMessage{
			SessionID: session.ID,
			Role:      model.RoleUser,
			Content:   content,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.CreateMessage(ctx, message))
		ids = append(ids, message.ID)
	}

	// Without a cursor: the most recent messages, ascending.
	messages, err := svc.ListMessages(ctx, user.ID, session.ID, 3, "")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, "m3", messages[0].Content)
	require.Equal(t, "m5", messages[2].Content)

	// With a cursor on m4: only older messages, ascending.
	messages, err = svc.ListMessages(ctx, user.ID, session.ID, 2, ids[3])
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "m2", messages[0].Content)
	require.Equal(t, "m3", messages[1].Content)

	// A cursor that resolves to no message is not silently ignored.
	_, err = svc.ListMessages(ctx, user.ID, session.ID, 2, "no-such-message")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionOwnershipHidesOthers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestUser(t, s, "owner@example.com")
	stranger := newTestUser(t, s, "stranger@example.com")
	agent := newTestAgent(t, s, owner.ID)
	svc := NewSessionService(s)

	session, err := svc.CreateSession(ctx, owner.ID, agent.ID, "")
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, stranger.ID, session.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.AppendMessage(ctx, stranger.ID, session.ID, MessageInput{Role: model.RoleUser, Content: "hi"})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = svc.DeleteSession(ctx, stranger.ID, session.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetSessionCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	svc := NewSessionService(s)

	session, err := svc.CreateSession(ctx, user.ID, agent.ID, "hello")
	require.NoError(t, err)
	_, err = svc.UpsertVariable(ctx, user.ID, session.ID, "k", "v")
	require.NoError(t, err)

	detail, err := svc.GetSession(ctx, user.ID, session.ID)
	require.NoError(t, err)
	require.Equal(t, agent.Name, detail.AgentName)
	require.NotNil(t, detail.MessageCount)
	require.EqualValues(t, 1, *detail.MessageCount)
	require.NotNil(t, detail.VariableCount)
	require.EqualValues(t, 1, *detail.VariableCount)
}

func TestListSessionsPaginationEnvelope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user := newTestUser(t, s, "user@example.com")
	agent := newTestAgent(t, s, user.ID)
	svc := NewSessionService(s)

	for i := 0; i < 5; i++ {
		_, err := svc.CreateSession(ctx, user.ID, agent.ID, "")
		require.NoError(t, err)
	}

	sessions, pagination, err := svc.ListSessions(ctx, user.ID, store.SessionFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, 1, pagination.Page)
	require.Equal(t, 2, pagination.Limit)
	require.EqualValues(t, 5, pagination.Total)
	require.Equal(t, 3, pagination.TotalPages)
}
