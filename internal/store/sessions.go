package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/agenthub-platform/agenthub/internal/model"
)

// SessionFilter narrows ListSessions. UserID is required; the rest are
// optional.
type SessionFilter struct {
	UserID       string
	AgentID      string
	IncludeEnded bool
	Page         int
	Limit        int
}

func (f SessionFilter) offset() (skip, take int) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}
	return (page - 1) * limit, limit
}

// ListSessions returns the caller's sessions newest first, along with the
// total count for pagination.
func (s *Store) ListSessions(ctx context.Context, filter SessionFilter) ([]*model.Session, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Session{}).Where("user_id = ?", filter.UserID)

	if filter.AgentID != "" {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if !filter.IncludeEnded {
		query = query.Where("ended_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	skip, take := filter.offset()

	var sessions []*model.Session
	err := query.
		Preload("Agent").
		Order("started_at DESC").
		Offset(skip).
		Limit(take).
		Find(&sessions).Error
	return sessions, total, err
}

func (s *Store) GetSessionByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetSessionDetail returns a session with its agent preloaded.
func (s *Store) GetSessionDetail(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).Preload("Agent").First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

// EndSession stamps the session's end time and returns the updated row.
// Ending an already-ended session leaves the original timestamp in place.
func (s *Store) EndSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.GetSessionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.EndedAt == nil {
		now := time.Now()
		session.EndedAt = &now
		if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
			return nil, err
		}
	}
	return session, nil
}

// DeleteSession removes the session and its messages and variables.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&model.UserVariable{}).Error; err != nil {
			return err
		}
		// Detach jobs that referenced this session
		if err := tx.Model(&model.Job{}).Where("session_id = ?", id).Update("session_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Session{}, "id = ?", id).Error
	})
}

func (s *Store) CountSessionMessages(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

func (s *Store) CountSessionVariables(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.UserVariable{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

// --- Chat Messages ---

func (s *Store) CreateMessage(ctx context.Context, message *model.ChatMessage) error {
	return s.db.WithContext(ctx).Create(message).Error
}

// CreateMessages inserts all messages in a single transaction; either every
// message is committed or none are.
func (s *Store) CreateMessages(ctx context.Context, messages []*model.ChatMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, msg := range messages {
			if err := tx.Create(msg).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetMessageByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	var message model.ChatMessage
	if err := s.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &message, nil
}

// ListMessagesBefore returns up to limit messages of the session, newest
// first. A non-nil before restricts to messages strictly older than it.
// Callers wanting chronological order reverse the slice.
func (s *Store) ListMessagesBefore(ctx context.Context, sessionID string, before *time.Time, limit int) ([]*model.ChatMessage, error) {
	if limit < 1 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if before != nil {
		query = query.Where("timestamp < ?", *before)
	}

	var messages []*model.ChatMessage
	err := query.Order("timestamp DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

// --- User Variables ---

func (s *Store) ListVariables(ctx context.Context, sessionID string) ([]*model.UserVariable, error) {
	var variables []*model.UserVariable
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&variables).Error
	return variables, err
}

func (s *Store) GetVariable(ctx context.Context, sessionID, key string) (*model.UserVariable, error) {
	var variable model.UserVariable
	err := s.db.WithContext(ctx).First(&variable, "session_id = ? AND key = ?", sessionID, key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &variable, nil
}

// UpsertVariable creates or updates the variable for (sessionID, key).
func (s *Store) UpsertVariable(ctx context.Context, sessionID, key, value string) (*model.UserVariable, error) {
	var variable model.UserVariable
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&variable, "session_id = ? AND key = ?", sessionID, key).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			variable = model.UserVariable{SessionID: sessionID, Key: key, Value: value}
			return tx.Create(&variable).Error
		}

		variable.Value = value
		return tx.Save(&variable).Error
	})
	if err != nil {
		return nil, err
	}
	return &variable, nil
}

// UpdateVariable updates an existing variable; a miss is ErrNotFound.
func (s *Store) UpdateVariable(ctx context.Context, sessionID, key, value string) (*model.UserVariable, error) {
	variable, err := s.GetVariable(ctx, sessionID, key)
	if err != nil {
		return nil, err
	}
	variable.Value = value
	if err := s.db.WithContext(ctx).Save(variable).Error; err != nil {
		return nil, err
	}
	return variable, nil
}

// DeleteVariable deletes an existing variable; a miss is ErrNotFound.
func (s *Store) DeleteVariable(ctx context.Context, sessionID, key string) error {
	result := s.db.WithContext(ctx).Delete(&model.UserVariable{}, "session_id = ? AND key = ?", sessionID, key)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
