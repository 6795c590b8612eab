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

// LinkFilter selects which discovered links a listing returns
type LinkFilter struct {
	// Broken restricts to checked links that are not working
	Broken bool
	// Internal/External restrict by origin; both false means no restriction
	Internal bool
	External bool
	// Limit and Offset paginate; Limit defaults to 100, capped at 1000
	Limit  int
	Offset int
}

// RecordDiscoveredLink inserts a link row if the (job, URL) pair is new.
// Replays of the same discovery are ignored, keeping writes idempotent.
func (s *Store) RecordDiscoveredLink(jobID string, link linkpatrol.DiscoveredLink) error {
	row := &DiscoveredLink{
		JobID:      jobID,
		URL:        link.URL,
		SourceURL:  link.SourceURL,
		LinkText:   link.LinkText,
		IsInternal: link.IsInternal,
		Depth:      link.Depth,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "url"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record discovered link: %v", err)
	}
	return nil
}

// RecordCheckResult stores a check outcome against the link's row, creating
// the row when the URL was never recorded as discovered (the seed, for
// instance). Re-recording the same check overwrites in place.
func (s *Store) RecordCheckResult(jobID string, result linkpatrol.CheckResult, link linkpatrol.DiscoveredLink) error {
	row := &DiscoveredLink{
		JobID:          jobID,
		URL:            result.URL,
		SourceURL:      link.SourceURL,
		LinkText:       link.LinkText,
		IsInternal:     link.IsInternal,
		Depth:          link.Depth,
		Checked:        true,
		IsWorking:      result.IsWorking,
		StatusCode:     result.StatusCode,
		ErrorType:      result.ErrorType,
		ErrorMessage:   result.ErrorMessage,
		ResponseTimeMs: result.ResponseTime.Milliseconds(),
		CheckedAt:      result.CheckedAt.Unix(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}, {Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"checked", "is_working", "status_code", "error_type",
			"error_message", "response_time_ms", "checked_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record check result: %v", err)
	}
	return nil
}

// RecordBrokenLink appends a broken link finding
func (s *Store) RecordBrokenLink(jobID string, broken linkpatrol.BrokenLink) error {
	row := &BrokenLink{
		JobID:      jobID,
		URL:        broken.URL,
		SourceURL:  broken.SourceURL,
		StatusCode: broken.StatusCode,
		ErrorType:  broken.ErrorType,
		LinkText:   broken.LinkText,
	}
	if err := s.db.Create(row).Error; err != nil {
		return fmt.Errorf("failed to record broken link: %v", err)
	}
	return nil
}

// ListLinks returns a filtered, paginated page of a job's discovered links
// in discovery order
func (s *Store) ListLinks(jobID string, filter LinkFilter) ([]DiscoveredLink, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := s.db.Where("job_id = ?", jobID)
	if filter.Broken {
		query = query.Where("checked = ? AND is_working = ?", true, false)
	}
	if filter.Internal && !filter.External {
		query = query.Where("is_internal = ?", true)
	}
	if filter.External && !filter.Internal {
		query = query.Where("is_internal = ?", false)
	}

	var links []DiscoveredLink
	err := query.Order("id ASC").Limit(limit).Offset(filter.Offset).Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %v", err)
	}
	return links, nil
}

// ListBrokenLinks returns a job's broken link findings in discovery order
func (s *Store) ListBrokenLinks(jobID string) ([]BrokenLink, error) {
	var broken []BrokenLink
	if err := s.db.Where("job_id = ?", jobID).Order("id ASC").Find(&broken).Error; err != nil {
		return nil, fmt.Errorf("failed to list broken links: %v", err)
	}
	return broken, nil
}

// LinkSummary aggregates a job's link counts
type LinkSummary struct {
	TotalLinks    int64 `json:"totalLinks"`
	CheckedLinks  int64 `json:"checkedLinks"`
	BrokenLinks   int64 `json:"brokenLinks"`
	InternalLinks int64 `json:"internalLinks"`
	ExternalLinks int64 `json:"externalLinks"`
}

// Summarize computes the link counts for a job
func (s *Store) Summarize(jobID string) (*LinkSummary, error) {
	summary := &LinkSummary{}
	counts := []struct {
		dest  *int64
		where []interface{}
	}{
		{&summary.TotalLinks, nil},
		{&summary.CheckedLinks, []interface{}{"checked = ?", true}},
		{&summary.BrokenLinks, []interface{}{"checked = ? AND is_working = ?", true, false}},
		{&summary.InternalLinks, []interface{}{"is_internal = ?", true}},
		{&summary.ExternalLinks, []interface{}{"is_internal = ?", false}},
	}
	for _, c := range counts {
		query := s.db.Model(&DiscoveredLink{}).Where("job_id = ?", jobID)
		if c.where != nil {
			query = query.Where(c.where[0], c.where[1:]...)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to summarize links: %v", err)
		}
	}
	return summary, nil
}
