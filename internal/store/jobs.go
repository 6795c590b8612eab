// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentberlin/linkpatrol"
)

// ErrJobNotFound is returned when a job ID does not exist
var ErrJobNotFound = errors.New("job not found")

// CreateJob inserts a new pending job and returns it with a fresh UUID
func (s *Store) CreateJob(seedURL, mode string, settings linkpatrol.Settings) (*Job, error) {
	job := &Job{
		ID:      uuid.NewString(),
		SeedURL: seedURL,
		Mode:    mode,
		Status:  JobStatusPending,
	}
	if err := job.SetSettings(settings); err != nil {
		return nil, fmt.Errorf("failed to serialize settings: %v", err)
	}
	if err := s.db.Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %v", err)
	}
	return job, nil
}

// GetJob fetches a job by ID
func (s *Store) GetJob(jobID string) (*Job, error) {
	var job Job
	err := s.db.First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %v", err)
	}
	return &job, nil
}

// MarkJobRunning transitions a job to running and stamps its start time
func (s *Store) MarkJobRunning(jobID string) error {
	return s.updateJob(jobID, map[string]interface{}{
		"status":     JobStatusRunning,
		"started_at": time.Now().Unix(),
	})
}

// SetJobProgress updates the job's progress counters. Progress is written
// as reported; callers are responsible for monotonicity.
func (s *Store) SetJobProgress(jobID string, progress linkpatrol.Progress) error {
	return s.updateJob(jobID, map[string]interface{}{
		"current":    progress.Current,
		"total":      progress.Total,
		"percentage": progress.Percentage,
	})
}

// FinishJob transitions a job to a terminal status, recording the error
// message for failed jobs
func (s *Store) FinishJob(jobID, status, errMessage string) error {
	return s.updateJob(jobID, map[string]interface{}{
		"status":      status,
		"error":       errMessage,
		"finished_at": time.Now().Unix(),
	})
}

func (s *Store) updateJob(jobID string, fields map[string]interface{}) error {
	result := s.db.Model(&Job{}).Where("id = ?", jobID).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update job: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ListJobs returns jobs newest first, up to limit
func (s *Store) ListJobs(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []Job
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %v", err)
	}
	return jobs, nil
}

// DeleteJobsOlderThan removes jobs created before the cutoff along with all
// their dependent rows. Used by the retention sweep.
func (s *Store) DeleteJobsOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).Unix()

	var ids []string
	if err := s.db.Model(&Job{}).Where("created_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find expired jobs: %v", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&DiscoveredLink{}, &BrokenLink{}, &SeoRecord{}, &SecurityEvent{}} {
			if err := tx.Where("job_id IN ?", ids).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", ids).Delete(&Job{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired jobs: %v", err)
	}
	return int64(len(ids)), nil
}
