package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/agenthub-platform/agenthub/internal/model"
)

// CreateJob creates a new job record. Jobs start QUEUED; everything past that
// is written by the external execution server.
func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

// GetJobOwned returns the job only when userID owns it, with logs ordered by
// timestamp ascending. A mismatch reads as ErrNotFound.
func (s *Store) GetJobOwned(ctx context.Context, jobID, userID string) (*model.Job, error) {
	var job model.Job
	err := s.db.WithContext(ctx).
		Preload("Logs", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC")
		}).
		First(&job, "id = ? AND user_id = ?", jobID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// DeleteJob removes a job and its logs. Used for compensation when the
// external handoff fails.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&model.JobLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Job{}, "id = ?", id).Error
	})
}

// CreateJobLog appends a log line to a job. Exposed for the execution
// server's write path and for tests.
func (s *Store) CreateJobLog(ctx context.Context, entry *model.JobLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
