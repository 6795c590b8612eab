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
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/agentberlin/linkpatrol"
)

// RecordSeoReport upserts the SEO analysis of one page. Re-analyzing the
// same page within a job overwrites the previous record.
func (s *Store) RecordSeoReport(jobID string, report *linkpatrol.SEOReport) error {
	row := &SeoRecord{JobID: jobID}
	if err := row.SetReport(report); err != nil {
		return fmt.Errorf("failed to serialize SEO report: %v", err)
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "grade", "issues", "metrics"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record SEO report: %v", err)
	}
	return nil
}

// ListSeoRecords returns a job's SEO records, worst scores first
func (s *Store) ListSeoRecords(jobID string) ([]SeoRecord, error) {
	var records []SeoRecord
	if err := s.db.Where("job_id = ?", jobID).Order("score ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list SEO records: %v", err)
	}
	return records, nil
}
