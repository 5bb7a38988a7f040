package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agenthub-platform/agenthub/internal/cache"
	"github.com/agenthub-platform/agenthub/internal/crypto"
	"github.com/agenthub-platform/agenthub/internal/execution"
	"github.com/agenthub-platform/agenthub/internal/logger"
	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

const (
	listCacheTTL   = time.Minute
	detailCacheTTL = time.Minute
)

// placeholderName fills the agent record until the execution server finishes
// processing the uploaded bundle.
const placeholderName = "Processing..."

// AgentSummary is the list-view shape of an agent.
type AgentSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Version         string    `json:"version"`
	IsVerified      bool      `json:"isVerified"`
	CreatorID       string    `json:"creatorId"`
	CreatorName     string    `json:"creatorName"`
	StarCount       int       `json:"starCount"`
	IsStarredByUser bool      `json:"isStarredByUser"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// AgentDetail is the single-agent shape, including files, env vars and tags.
type AgentDetail struct {
	AgentSummary
	Files   []AgentFileInfo `json:"files"`
	EnvVars []EnvVarInfo    `json:"envVars"`
	Tags    []string        `json:"tags"`
}

// AgentFileInfo is file metadata; content is served by the execution server.
type AgentFileInfo struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"filepath"`
	Filesize  int64     `json:"filesize"`
	Mimetype  string    `json:"mimetype"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type EnvVarInfo struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AgentService handles agent catalog operations. With an encryptor set, env
// var values are encrypted at rest and decrypted on read.
type AgentService struct {
	store *store.Store
	cache cache.Cache
	exec  *execution.Client
	enc   *crypto.Encryptor
	log   *logger.Logger
}

func NewAgentService(s *store.Store, c cache.Cache, exec *execution.Client, enc *crypto.Encryptor, log *logger.Logger) *AgentService {
	return &AgentService{store: s, cache: c, exec: exec, enc: enc, log: log}
}

// ListAgents returns agents matching the filter, annotated with star state
// for the viewing user. Results are cached per (filter, user).
func (s *AgentService) ListAgents(ctx context.Context, userID string, filter store.AgentFilter) ([]*AgentSummary, error) {
	key := cache.AgentListKey(listHash(userID, filter))
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var cached []*AgentSummary
		if json.Unmarshal(data, &cached) == nil {
			return cached, nil
		}
	}

	agents, err := s.store.ListAgents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	summaries := make([]*AgentSummary, len(agents))
	for i, a := range agents {
		summaries[i] = mapAgentSummary(a, userID)
	}

	if data, err := json.Marshal(summaries); err == nil {
		if err := s.cache.Set(ctx, key, data, listCacheTTL); err != nil {
			s.log.Warn("cache set failed", "key", key, "error", err)
		}
	}
	return summaries, nil
}

// GetAgent returns the full detail view of one agent.
func (s *AgentService) GetAgent(ctx context.Context, userID, agentID string) (*AgentDetail, error) {
	key := cache.AgentDetailKey(agentID, userID)
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var cached AgentDetail
		if json.Unmarshal(data, &cached) == nil {
			return &cached, nil
		}
	}

	agent, err := s.store.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	detail := &AgentDetail{
		AgentSummary: *mapAgentSummary(agent, userID),
		Files:        make([]AgentFileInfo, len(agent.Files)),
		EnvVars:      make([]EnvVarInfo, len(agent.EnvVars)),
		Tags:         make([]string, len(agent.Tags)),
	}
	for i, f := range agent.Files {
		detail.Files[i] = AgentFileInfo{
			ID:        f.ID,
			Filename:  f.Filename,
			Filepath:  f.Filepath,
			Filesize:  f.Filesize,
			Mimetype:  f.Mimetype,
			CreatedAt: f.CreatedAt,
		}
	}
	for i, v := range agent.EnvVars {
		detail.EnvVars[i] = EnvVarInfo{Key: v.Key, Value: s.revealEnvVar(v.Key, v.Value)}
	}
	for i, t := range agent.Tags {
		detail.Tags[i] = t.Name
	}

	if data, err := json.Marshal(detail); err == nil {
		if err := s.cache.Set(ctx, key, data, detailCacheTTL); err != nil {
			s.log.Warn("cache set failed", "key", key, "error", err)
		}
	}
	return detail, nil
}

// CreateAgentResult reports the placeholder agent and its tracking job.
type CreateAgentResult struct {
	AgentID string
	JobID   string
}

// CreateAgent records a placeholder agent plus a QUEUED job, then hands the
// uploaded bundle to the execution server. If the handoff fails both records
// are deleted so no orphaned placeholder survives.
func (s *AgentService) CreateAgent(ctx context.Context, userID string, upload execution.AgentUpload) (*CreateAgentResult, error) {
	agent := &model.Agent{
		Name:        placeholderName,
		Description: placeholderName,
		Version:     "0.0.1",
		CreatorID:   userID,
	}
	if err := s.store.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	job := &model.Job{
		Type:   string(model.JobTypeAgentCreate),
		UserID: userID,
	}
	job.SetResource(agent.ID)
	if err := s.store.CreateJob(ctx, job); err != nil {
		if derr := s.store.DeleteAgent(ctx, agent.ID); derr != nil {
			s.log.Error("compensating agent delete failed", "agent_id", agent.ID, "error", derr)
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	upload.AgentID = agent.ID
	upload.JobID = job.ID
	upload.UserID = userID
	if err := s.exec.CreateAgent(ctx, upload); err != nil {
		if derr := s.store.DeleteJob(ctx, job.ID); derr != nil {
			s.log.Error("compensating job delete failed", "job_id", job.ID, "error", derr)
		}
		if derr := s.store.DeleteAgent(ctx, agent.ID); derr != nil {
			s.log.Error("compensating agent delete failed", "agent_id", agent.ID, "error", derr)
		}
		return nil, err
	}

	s.invalidateLists(ctx)
	return &CreateAgentResult{AgentID: agent.ID, JobID: job.ID}, nil
}

// UpdateAgent hands an updated bundle to the execution server under a new
// job. Only the creator may update. On handoff failure the job is deleted;
// the agent record is untouched.
func (s *AgentService) UpdateAgent(ctx context.Context, userID, agentID string, upload execution.AgentUpload) (string, error) {
	agent, err := s.store.GetAgentOwned(ctx, agentID, userID)
	if err != nil {
		return "", err
	}

	job := &model.Job{
		Type:   string(model.JobTypeAgentUpdate),
		UserID: userID,
	}
	job.SetResource(agent.ID)
	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	upload.AgentID = agent.ID
	upload.JobID = job.ID
	upload.UserID = userID
	if err := s.exec.UpdateAgent(ctx, upload); err != nil {
		if derr := s.store.DeleteJob(ctx, job.ID); derr != nil {
			s.log.Error("compensating job delete failed", "job_id", job.ID, "error", derr)
		}
		return "", err
	}

	s.invalidateAgent(ctx, agentID)
	return job.ID, nil
}

// DeleteAgent removes an agent and all dependent records. Creator only.
func (s *AgentService) DeleteAgent(ctx context.Context, userID, agentID string) error {
	agent, err := s.store.GetAgentByID(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.CreatorID != userID {
		return ErrPermissionDenied
	}
	if err := s.store.DeleteAgent(ctx, agentID); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	s.invalidateAgent(ctx, agentID)
	return nil
}

// GetAgentFile returns one file's metadata with a download URL pointing at
// the execution server.
func (s *AgentService) GetAgentFile(ctx context.Context, agentID, fileID string) (*AgentFileInfo, error) {
	file, err := s.store.GetAgentFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.AgentID != agentID {
		return nil, store.ErrNotFound
	}
	return &AgentFileInfo{
		ID:        file.ID,
		Filename:  file.Filename,
		Filepath:  file.Filepath,
		Filesize:  file.Filesize,
		Mimetype:  file.Mimetype,
		URL:       s.exec.FileURL(agentID, file.ID),
		CreatedAt: file.CreatedAt,
	}, nil
}

// ToggleStar flips the caller's star on an agent and returns the new state.
func (s *AgentService) ToggleStar(ctx context.Context, userID, agentID string) (bool, error) {
	if _, err := s.store.GetAgentByID(ctx, agentID); err != nil {
		return false, err
	}
	starred, err := s.store.ToggleStar(ctx, agentID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle star: %w", err)
	}
	s.invalidateAgent(ctx, agentID)
	return starred, nil
}

// ToggleVerified flips an agent's verification flag. Admin only.
func (s *AgentService) ToggleVerified(ctx context.Context, user *model.User, agentID string) (*model.Agent, error) {
	if !user.IsAdmin {
		return nil, ErrPermissionDenied
	}
	agent, err := s.store.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.SetAgentVerified(ctx, agentID, !agent.IsVerified)
	if err != nil {
		return nil, err
	}
	s.invalidateAgent(ctx, agentID)
	return updated, nil
}

// SetEnvVar upserts an env var on the agent. Creator only.
func (s *AgentService) SetEnvVar(ctx context.Context, userID, agentID, key, value string) (*EnvVarInfo, error) {
	if key == "" {
		return nil, validationErr("key is required")
	}
	if err := s.requireCreator(ctx, userID, agentID); err != nil {
		return nil, err
	}

	stored := value
	if s.enc != nil {
		encrypted, err := s.enc.EncryptString(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt env var: %w", err)
		}
		stored = encrypted
	}
	envVar, err := s.store.SetAgentEnvVar(ctx, agentID, key, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to set env var: %w", err)
	}
	s.invalidateAgent(ctx, agentID)
	return &EnvVarInfo{Key: envVar.Key, Value: value}, nil
}

// revealEnvVar decrypts a stored value when encryption is configured. Values
// written before the key was set pass through unchanged.
func (s *AgentService) revealEnvVar(key, stored string) string {
	if s.enc == nil {
		return stored
	}
	plaintext, err := s.enc.DecryptString(stored)
	if err != nil {
		s.log.Warn("env var decryption failed, returning stored value", "key", key)
		return stored
	}
	return plaintext
}

// DeleteEnvVar removes an env var by key. Creator only.
func (s *AgentService) DeleteEnvVar(ctx context.Context, userID, agentID, key string) error {
	if key == "" {
		return validationErr("key is required")
	}
	if err := s.requireCreator(ctx, userID, agentID); err != nil {
		return err
	}
	if err := s.store.DeleteAgentEnvVar(ctx, agentID, key); err != nil {
		return err
	}
	s.invalidateAgent(ctx, agentID)
	return nil
}

// requireCreator distinguishes a missing agent from one owned by someone
// else, so callers can map to 404 vs 403.
func (s *AgentService) requireCreator(ctx context.Context, userID, agentID string) error {
	agent, err := s.store.GetAgentByID(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.CreatorID != userID {
		return ErrPermissionDenied
	}
	return nil
}

func (s *AgentService) invalidateLists(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, cache.AgentListPrefix()); err != nil {
		s.log.Warn("cache invalidation failed", "prefix", cache.AgentListPrefix(), "error", err)
	}
}

func (s *AgentService) invalidateAgent(ctx context.Context, agentID string) {
	s.invalidateLists(ctx)
	if err := s.cache.DeletePrefix(ctx, cache.AgentDetailPrefix(agentID)); err != nil {
		s.log.Warn("cache invalidation failed", "agent_id", agentID, "error", err)
	}
}

func mapAgentSummary(a *model.Agent, userID string) *AgentSummary {
	summary := &AgentSummary{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Version:     a.Version,
		IsVerified:  a.IsVerified,
		CreatorID:   a.CreatorID,
		StarCount:   len(a.Stars),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.Creator != nil {
		summary.CreatorName = a.Creator.Name
	}
	for _, star := range a.Stars {
		if star.UserID == userID {
			summary.IsStarredByUser = true
			break
		}
	}
	return summary
}

func listHash(userID string, filter store.AgentFilter) string {
	verified := "any"
	if filter.Verified != nil {
		verified = fmt.Sprintf("%t", *filter.Verified)
	}
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		userID, filter.Query, verified, filter.CreatorID, filter.Page, filter.Limit)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
