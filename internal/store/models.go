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
	"encoding/json"

	"github.com/agentberlin/linkpatrol"
)

// Job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusStopped   = "stopped"
)

// Job modes
const (
	JobModeDiscovery = "discovery"
	JobModeTargeted  = "targeted"
)

// Job represents one scan: its seed, settings, lifecycle state and
// progress counters. The ID is a UUID assigned at creation.
type Job struct {
	ID         string `gorm:"primaryKey"`
	SeedURL    string `gorm:"not null"`
	Mode       string `gorm:"not null;default:'discovery'"`
	Status     string `gorm:"not null;default:'pending';index"`
	Settings   string `gorm:"type:text"` // JSON-encoded scan settings
	Current    int    `gorm:"default:0"`
	Total      int    `gorm:"default:0"`
	Percentage int    `gorm:"default:0"`
	Error      string `gorm:"type:text"`
	StartedAt  int64
	FinishedAt int64
	CreatedAt  int64 `gorm:"autoCreateTime"`
	UpdatedAt  int64 `gorm:"autoUpdateTime"`
}

// GetSettings deserializes the job's scan settings, falling back to
// defaults when the column is empty or malformed
func (j *Job) GetSettings() linkpatrol.Settings {
	settings := linkpatrol.DefaultSettings()
	if j.Settings == "" {
		return settings
	}
	if err := json.Unmarshal([]byte(j.Settings), &settings); err != nil {
		return linkpatrol.DefaultSettings()
	}
	return settings
}

// SetSettings serializes scan settings into the job row
func (j *Job) SetSettings(settings linkpatrol.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	j.Settings = string(data)
	return nil
}

// DiscoveredLink is one unique URL seen during a scan, with the outcome of
// its liveness check once performed. The (JobID, URL) pair is unique.
type DiscoveredLink struct {
	ID             uint   `gorm:"primaryKey"`
	JobID          string `gorm:"not null;index"`
	URL            string `gorm:"not null"`
	SourceURL      string `gorm:"type:text"`
	LinkText       string `gorm:"type:text"`
	IsInternal     bool   `gorm:"not null;default:true"`
	Depth          int    `gorm:"default:0"`
	Checked        bool   `gorm:"not null;default:false;index"`
	IsWorking      bool   `gorm:"not null;default:false"`
	StatusCode     int    `gorm:"default:0"`
	ErrorType      string `gorm:"type:text"`
	ErrorMessage   string `gorm:"type:text"`
	ResponseTimeMs int64  `gorm:"default:0"`
	CheckedAt      int64  `gorm:"default:0"`
	CreatedAt      int64  `gorm:"autoCreateTime"`
}

// BrokenLink is an append-only record of a link whose final check concluded
// it is not working
type BrokenLink struct {
	ID         uint   `gorm:"primaryKey"`
	JobID      string `gorm:"not null;index"`
	URL        string `gorm:"not null"`
	SourceURL  string `gorm:"type:text"`
	StatusCode int    `gorm:"default:0"`
	ErrorType  string `gorm:"type:text"`
	LinkText   string `gorm:"type:text"`
	CreatedAt  int64  `gorm:"autoCreateTime"`
}

// SeoRecord stores the scored SEO analysis of one page. The (JobID, URL)
// pair is unique; re-analysis overwrites in place.
type SeoRecord struct {
	ID        uint   `gorm:"primaryKey"`
	JobID     string `gorm:"not null;index"`
	URL       string `gorm:"not null"`
	Score     int    `gorm:"not null"`
	Grade     string `gorm:"not null"`
	Issues    string `gorm:"type:text"` // JSON array of issues
	Metrics   string `gorm:"type:text"` // JSON metrics bundle
	CreatedAt int64  `gorm:"autoCreateTime"`
}

// SetReport serializes an SEO report into the record
func (r *SeoRecord) SetReport(report *linkpatrol.SEOReport) error {
	issues, err := json.Marshal(report.Issues)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(report.Metrics)
	if err != nil {
		return err
	}
	r.URL = report.URL
	r.Score = report.Score
	r.Grade = report.Grade
	r.Issues = string(issues)
	r.Metrics = string(metrics)
	return nil
}

// SecurityEvent is the audit log of policy decisions: blocked URLs, rate
// limit violations and stop requests. Append-only.
type SecurityEvent struct {
	ID        uint   `gorm:"primaryKey"`
	JobID     string `gorm:"index"` // empty when the event precedes a job
	EventType string `gorm:"not null;index"`
	ClientIP  string `gorm:"type:text"`
	UserAgent string `gorm:"type:text"`
	Endpoint  string `gorm:"type:text"`
	Detail    string `gorm:"type:text"`
	Severity  string `gorm:"not null;default:'low'"`
	Blocked   bool   `gorm:"not null;default:false"`
	CreatedAt int64  `gorm:"autoCreateTime"`
}

// Security event types
const (
	EventBlockedURL        = "blocked_url"
	EventRobotsBlocked     = "robots_blocked"
	EventRateLimitViolated = "rate_limit_violation"
	EventInvalidInput      = "invalid_input"
	EventSuspiciousPattern = "suspicious_pattern"
	EventScanStopped       = "scan_stopped"
)

// Security event severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)
