package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/agenthub-platform/agenthub/internal/model"
)

// AgentFilter narrows ListAgents. Zero values mean "no filter".
type AgentFilter struct {
	Query     string // free text over name and description
	Verified  *bool
	CreatorID string
	Page      int
	Limit     int
}

func (f AgentFilter) offset() (skip, take int) {
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

// ListAgents returns agents matching the filter, newest first, with the
// creator and star rows preloaded.
func (s *Store) ListAgents(ctx context.Context, filter AgentFilter) ([]*model.Agent, error) {
	query := s.db.WithContext(ctx).Model(&model.Agent{})

	if filter.Query != "" {
		pattern := "%" + strings.ToLower(filter.Query) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.Verified != nil {
		query = query.Where("is_verified = ?", *filter.Verified)
	}
	if filter.CreatorID != "" {
		query = query.Where("creator_id = ?", filter.CreatorID)
	}

	skip, take := filter.offset()

	var agents []*model.Agent
	err := query.
		Preload("Creator").
		Preload("Stars").
		Order("created_at DESC").
		Offset(skip).
		Limit(take).
		Find(&agents).Error
	return agents, err
}

// GetAgentByID returns an agent with its files, env vars, tags, and stars.
func (s *Store) GetAgentByID(ctx context.Context, id string) (*model.Agent, error) {
	var agent model.Agent
	err := s.db.WithContext(ctx).
		Preload("Creator").
		Preload("Files").
		Preload("EnvVars").
		Preload("Tags").
		Preload("Stars").
		First(&agent, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &agent, nil
}

// GetAgentOwned returns the agent only when creatorID owns it.
// A mismatch is indistinguishable from a missing agent, so ownership is not
// leaked to other callers.
func (s *Store) GetAgentOwned(ctx context.Context, id, creatorID string) (*model.Agent, error) {
	var agent model.Agent
	err := s.db.WithContext(ctx).First(&agent, "id = ? AND creator_id = ?", id, creatorID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &agent, nil
}

func (s *Store) CreateAgent(ctx context.Context, agent *model.Agent) error {
	return s.db.WithContext(ctx).Create(agent).Error
}

// SetAgentVerified flips the verification flag and returns the updated agent.
func (s *Store) SetAgentVerified(ctx context.Context, id string, verified bool) (*model.Agent, error) {
	result := s.db.WithContext(ctx).Model(&model.Agent{}).Where("id = ?", id).Update("is_verified", verified)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var agent model.Agent
	if err := s.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// DeleteAgent removes the agent and everything hanging off it.
func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Delete messages and variables of this agent's sessions first,
		// then the sessions themselves
		if err := tx.Where("session_id IN (SELECT id FROM sessions WHERE agent_id = ?)", id).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id IN (SELECT id FROM sessions WHERE agent_id = ?)", id).Delete(&model.UserVariable{}).Error; err != nil {
			return err
		}
		if err := tx.Where("agent_id = ?", id).Delete(&model.Session{}).Error; err != nil {
			return err
		}

		// Detach jobs rather than deleting them - the job history stays
		// useful after the agent is gone
		if err := tx.Model(&model.Job{}).Where("agent_id = ?", id).Update("agent_id", nil).Error; err != nil {
			return err
		}

		if err := tx.Where("agent_id = ?", id).Delete(&model.AgentFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("agent_id = ?", id).Delete(&model.AgentEnvVar{}).Error; err != nil {
			return err
		}
		if err := tx.Where("agent_id = ?", id).Delete(&model.StarredAgent{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM agent_tags WHERE agent_id = ?", id).Error; err != nil {
			return err
		}

		return tx.Delete(&model.Agent{}, "id = ?", id).Error
	})
}

// --- Agent Files ---

func (s *Store) GetAgentFileByID(ctx context.Context, id string) (*model.AgentFile, error) {
	var file model.AgentFile
	if err := s.db.WithContext(ctx).First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

func (s *Store) CreateAgentFile(ctx context.Context, file *model.AgentFile) error {
	return s.db.WithContext(ctx).Create(file).Error
}

// --- Agent Env Vars ---

// SetAgentEnvVar creates or updates the variable for (agentID, key).
// Exactly one row per (agentID, key) exists afterwards.
func (s *Store) SetAgentEnvVar(ctx context.Context, agentID, key, value string) (*model.AgentEnvVar, error) {
	var envVar model.AgentEnvVar
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&envVar, "agent_id = ? AND key = ?", agentID, key).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			envVar = model.AgentEnvVar{AgentID: agentID, Key: key, Value: value}
			return tx.Create(&envVar).Error
		}

		envVar.Value = value
		return tx.Save(&envVar).Error
	})
	if err != nil {
		return nil, err
	}
	return &envVar, nil
}

func (s *Store) DeleteAgentEnvVar(ctx context.Context, agentID, key string) error {
	result := s.db.WithContext(ctx).Delete(&model.AgentEnvVar{}, "agent_id = ? AND key = ?", agentID, key)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Stars ---

// ToggleStar flips star membership for (agentID, userID) and returns the new
// starred state.
func (s *Store) ToggleStar(ctx context.Context, agentID, userID string) (bool, error) {
	var starred bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.StarredAgent
		err := tx.First(&existing, "agent_id = ? AND user_id = ?", agentID, userID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			starred = true
			return tx.Create(&model.StarredAgent{AgentID: agentID, UserID: userID}).Error
		}

		starred = false
		return tx.Delete(&existing).Error
	})
	return starred, err
}

func (s *Store) CountStars(ctx context.Context, agentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.StarredAgent{}).
		Where("agent_id = ?", agentID).
		Count(&count).Error
	return count, err
}

func (s *Store) IsStarredBy(ctx context.Context, agentID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.StarredAgent{}).
		Where("agent_id = ? AND user_id = ?", agentID, userID).
		Count(&count).Error
	return count > 0, err
}
