package service

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

// JobLogEntry is one log line in a job status response.
type JobLogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JobDetail is the job status response shape, logs in ascending order.
type JobDetail struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Status        string        `json:"status"`
	Progress      int           `json:"progress"`
	StatusMessage *string       `json:"statusMessage"`
	ErrorMessage  *string       `json:"errorMessage"`
	AgentID       *string       `json:"agentId,omitempty"`
	ModelID       *string       `json:"modelId,omitempty"`
	DatasetID     *string       `json:"datasetId,omitempty"`
	SessionID     *string       `json:"sessionId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	StartedAt     *time.Time    `json:"startedAt"`
	CompletedAt   *time.Time    `json:"completedAt"`
	Logs          []JobLogEntry `json:"logs"`
}

// JobService creates and reads job records. Jobs only ever leave QUEUED
// through out-of-band writes by the execution server.
type JobService struct {
	store *store.Store
}

func NewJobService(s *store.Store) *JobService {
	return &JobService{store: s}
}

// CreateJob records a QUEUED job of the given type. resourceID lands in the
// reference field implied by the type; sessionID is optional.
func (s *JobService) CreateJob(ctx context.Context, jobType model.JobType, userID, resourceID string, sessionID *string) (*model.Job, error) {
	if !model.ValidJobType(jobType) {
		return nil, validationErr(fmt.Sprintf("unknown job type: %s", jobType))
	}
	job := &model.Job{
		Type:      string(jobType),
		UserID:    userID,
		SessionID: sessionID,
	}
	job.SetResource(resourceID)
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// CheckJobStatus returns the job with its ordered logs, only when owned by
// the caller. A job owned by someone else reads as not found.
func (s *JobService) CheckJobStatus(ctx context.Context, jobID, userID string) (*JobDetail, error) {
	job, err := s.store.GetJobOwned(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	detail := &JobDetail{
		ID:            job.ID,
		Type:          job.Type,
		Status:        job.Status,
		Progress:      job.Progress,
		StatusMessage: job.StatusMessage,
		ErrorMessage:  job.ErrorMessage,
		AgentID:       job.AgentID,
		ModelID:       job.ModelID,
		DatasetID:     job.DatasetID,
		SessionID:     job.SessionID,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		Logs:          make([]JobLogEntry, len(job.Logs)),
	}
	for i, entry := range job.Logs {
		detail.Logs[i] = JobLogEntry{
			Level:     entry.Level,
			Message:   entry.Message,
			Timestamp: entry.Timestamp,
		}
	}
	return detail, nil
}
