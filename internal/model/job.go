package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// JobType represents the type of asynchronous operation a job tracks.
type JobType string

const (
	JobTypeAgentCreate     JobType = "AGENT_CREATE"
	JobTypeAgentUpdate     JobType = "AGENT_UPDATE"
	JobTypeModelCreate     JobType = "MODEL_CREATE"
	JobTypeModelUpdate     JobType = "MODEL_UPDATE"
	JobTypeDatasetCreate   JobType = "DATASET_CREATE"
	JobTypeDatasetUpdate   JobType = "DATASET_UPDATE"
	JobTypeAgentInvocation JobType = "AGENT_INVOCATION"
)

// ValidJobType reports whether t is a known job type.
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeAgentCreate, JobTypeAgentUpdate, JobTypeModelCreate,
		JobTypeModelUpdate, JobTypeDatasetCreate, JobTypeDatasetUpdate,
		JobTypeAgentInvocation:
		return true
	}
	return false
}

// Job tracks an asynchronous operation performed by the external execution
// server. This service only creates jobs in the QUEUED state and reads them
// back; status transitions, progress, and logs are written out-of-band by the
// execution server.
type Job struct {
	ID            string     `gorm:"primaryKey;type:text" json:"id"`
	Type          string     `gorm:"not null;type:text;index" json:"type"`
	Status        string     `gorm:"not null;type:text;default:QUEUED" json:"status"`
	Progress      int        `gorm:"not null;default:0" json:"progress"`
	StatusMessage *string    `gorm:"column:status_message;type:text" json:"statusMessage"`
	ErrorMessage  *string    `gorm:"column:error_message;type:text" json:"errorMessage"`
	UserID        string     `gorm:"column:user_id;not null;type:text;index" json:"userId"`
	AgentID       *string    `gorm:"column:agent_id;type:text;index" json:"agentId,omitempty"`
	ModelID       *string    `gorm:"column:model_id;type:text" json:"modelId,omitempty"`
	DatasetID     *string    `gorm:"column:dataset_id;type:text" json:"datasetId,omitempty"`
	SessionID     *string    `gorm:"column:session_id;type:text;index" json:"sessionId,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	StartedAt     *time.Time `gorm:"column:started_at" json:"startedAt"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completedAt"`

	User *User    `gorm:"foreignKey:UserID" json:"-"`
	Logs []JobLog `gorm:"foreignKey:JobID" json:"-"`
}

func (Job) TableName() string { return "jobs" }

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = string(JobStatusQueued)
	}
	return nil
}

// SetResource populates the resource reference field implied by the job type.
// AGENT_* types bind agentId, MODEL_* bind modelId, DATASET_* bind datasetId.
func (j *Job) SetResource(resourceID string) {
	if resourceID == "" {
		return
	}
	switch {
	case strings.HasPrefix(j.Type, "AGENT_"):
		j.AgentID = &resourceID
	case strings.HasPrefix(j.Type, "MODEL_"):
		j.ModelID = &resourceID
	case strings.HasPrefix(j.Type, "DATASET_"):
		j.DatasetID = &resourceID
	}
}

// JobLog is one log line attached to a job, written by the execution server.
type JobLog struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	JobID     string    `gorm:"column:job_id;not null;type:text;index" json:"jobId"`
	Level     string    `gorm:"not null;type:text" json:"level"`
	Message   string    `gorm:"not null;type:text" json:"message"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`

	Job *Job `gorm:"foreignKey:JobID" json:"-"`
}

func (JobLog) TableName() string { return "job_logs" }

func (l *JobLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}
