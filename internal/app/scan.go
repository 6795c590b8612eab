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

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/agentberlin/linkpatrol"
	"github.com/agentberlin/linkpatrol/internal/store"
)

func logf(format string, args ...interface{}) {
	log.Printf("[app] "+format, args...)
}

// ScanRequest describes one scan to start
type ScanRequest struct {
	// URL is the seed page
	URL string
	// Mode is discovery (default) or targeted
	Mode string
	// URLs is the pre-analyzed list for targeted scans
	URLs []string
	// Settings is the crawl configuration
	Settings linkpatrol.Settings
	// ClientIP is recorded on audit events
	ClientIP string
}

// StartScan validates the request, creates the job row and launches the
// scan supervisor. Unsafe seeds and robots.txt-disallowed sites are rejected
// before any job exists, with an audit event recording the attempt.
func (a *App) StartScan(req ScanRequest) (*store.Job, error) {
	if !linkpatrol.IsValidURL(req.URL) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeed, req.URL)
	}
	if !a.allowPrivateHosts {
		if safe, reason := linkpatrol.IsSafeURL(req.URL); !safe {
			a.AuditEvent(store.SecurityEvent{
				EventType: store.EventBlockedURL,
				ClientIP:  req.ClientIP,
				Endpoint:  "/api/v1/scan",
				Detail:    fmt.Sprintf("seed %s rejected: %s", req.URL, reason),
				Severity:  store.SeverityHigh,
				Blocked:   true,
			})
			return nil, fmt.Errorf("%w: %s", ErrSeedBlocked, reason)
		}
	}

	mode := req.Mode
	if mode == "" {
		mode = store.JobModeDiscovery
	}
	if mode != store.JobModeDiscovery && mode != store.JobModeTargeted {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidSeed, mode)
	}

	seed, err := linkpatrol.NormalizeURL(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	// Consult robots.txt before the job exists so a fully disallowed site
	// is a synchronous rejection, not a job that immediately fails
	if req.Settings.RespectRobots {
		advisor := linkpatrol.NewRobotsAdvisor(linkpatrol.DefaultFetcherConfig().UserAgent)
		if advice := advisor.Consult(context.Background(), seed); !advice.Allowed {
			a.AuditEvent(store.SecurityEvent{
				EventType: store.EventRobotsBlocked,
				ClientIP:  req.ClientIP,
				Endpoint:  "/api/v1/scan",
				Detail:    fmt.Sprintf("robots.txt disallows crawling %s", seed),
				Severity:  store.SeverityMedium,
				Blocked:   true,
			})
			return nil, linkpatrol.ErrRobotsBlocked
		}
	}

	job, err := a.store.CreateJob(seed, mode, req.Settings)
	if err != nil {
		return nil, err
	}

	crawler, err := linkpatrol.NewCrawler(linkpatrol.CrawlerConfig{
		SeedURL:           seed,
		Settings:          req.Settings,
		Hooks:             a.storeHooks(job.ID),
		AllowPrivateHosts: a.allowPrivateHosts,
	})
	if err != nil {
		_ = a.store.FinishJob(job.ID, store.JobStatusFailed, err.Error())
		return nil, err
	}

	a.registerScan(job.ID, crawler)
	go a.runScan(job.ID, mode, crawler, req.URLs)

	return job, nil
}

// StopScan cancels a running scan and records the request in the audit log
func (a *App) StopScan(jobID, clientIP string) error {
	if _, err := a.store.GetJob(jobID); err != nil {
		return err
	}
	crawler, ok := a.activeScan(jobID)
	if !ok {
		return ErrScanNotRunning
	}
	crawler.Stop()
	a.AuditEvent(store.SecurityEvent{
		JobID:     jobID,
		EventType: store.EventScanStopped,
		ClientIP:  clientIP,
		Endpoint:  fmt.Sprintf("/api/v1/scan/%s/stop", jobID),
	})
	return nil
}

// runScan supervises one crawl from start to terminal job status. It is the
// only writer of the job's lifecycle columns.
func (a *App) runScan(jobID, mode string, crawler *linkpatrol.Crawler, targetURLs []string) {
	defer a.unregisterScan(jobID)

	if err := a.store.MarkJobRunning(jobID); err != nil {
		logf("job %s: %v", jobID, err)
		return
	}
	logf("job %s: scan started", jobID)

	var err error
	if mode == store.JobModeTargeted {
		err = crawler.RunTargeted(context.Background(), targetURLs)
	} else {
		err = crawler.Run(context.Background())
	}

	switch {
	case err == nil:
		logf("job %s: scan completed", jobID)
		if err := a.store.FinishJob(jobID, store.JobStatusCompleted, ""); err != nil {
			logf("job %s: %v", jobID, err)
		}
	case errors.Is(err, linkpatrol.ErrCrawlStopped):
		logf("job %s: scan stopped", jobID)
		if err := a.store.FinishJob(jobID, store.JobStatusStopped, ""); err != nil {
			logf("job %s: %v", jobID, err)
		}
	case errors.Is(err, linkpatrol.ErrRobotsBlocked):
		logf("job %s: robots.txt disallows crawling", jobID)
		a.AuditEvent(store.SecurityEvent{
			JobID:     jobID,
			EventType: store.EventRobotsBlocked,
			Detail:    err.Error(),
			Severity:  store.SeverityMedium,
			Blocked:   true,
		})
		if err := a.store.FinishJob(jobID, store.JobStatusFailed, err.Error()); err != nil {
			logf("job %s: %v", jobID, err)
		}
	default:
		logf("job %s: scan failed: %v", jobID, err)
		if err := a.store.FinishJob(jobID, store.JobStatusFailed, err.Error()); err != nil {
			logf("job %s: %v", jobID, err)
		}
	}
}

// storeHooks adapts crawl events into store writes. Write failures are
// logged and swallowed: a storage hiccup must not abort the crawl.
func (a *App) storeHooks(jobID string) linkpatrol.Hooks {
	return linkpatrol.Hooks{
		OnLinkDiscovered: func(link linkpatrol.DiscoveredLink) {
			if err := a.store.RecordDiscoveredLink(jobID, link); err != nil {
				logf("job %s: %v", jobID, err)
			}
		},
		OnLinkChecked: func(result linkpatrol.CheckResult, link linkpatrol.DiscoveredLink) {
			if err := a.store.RecordCheckResult(jobID, result, link); err != nil {
				logf("job %s: %v", jobID, err)
			}
		},
		OnBrokenLink: func(broken linkpatrol.BrokenLink) {
			if err := a.store.RecordBrokenLink(jobID, broken); err != nil {
				logf("job %s: %v", jobID, err)
			}
		},
		OnSEOReport: func(report *linkpatrol.SEOReport) {
			if err := a.store.RecordSeoReport(jobID, report); err != nil {
				logf("job %s: %v", jobID, err)
			}
		},
		OnProgress: func(progress linkpatrol.Progress) {
			if err := a.store.SetJobProgress(jobID, progress); err != nil {
				logf("job %s: %v", jobID, err)
			}
		},
	}
}
