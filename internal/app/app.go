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

// Package app owns running scans: it validates scan requests, supervises
// the crawl goroutine for each job and translates crawl events into store
// writes.
package app

import (
	"errors"
	"sync"

	"github.com/agentberlin/linkpatrol"
	"github.com/agentberlin/linkpatrol/internal/store"
)

var (
	// ErrInvalidSeed is returned when the requested URL does not parse as HTTP(S)
	ErrInvalidSeed = errors.New("invalid seed URL")
	// ErrSeedBlocked is returned when the requested URL fails the safety gate
	ErrSeedBlocked = errors.New("seed URL blocked for security reasons")
	// ErrScanNotRunning is returned when stopping a job with no active scan
	ErrScanNotRunning = errors.New("scan is not running")
)

// App coordinates scans against the store. One App serves the whole
// process; all methods are safe for concurrent use.
type App struct {
	store *store.Store

	mu     sync.Mutex
	active map[string]*linkpatrol.Crawler

	// allowPrivateHosts disables the safety gate, for scanning internal
	// sites and for tests
	allowPrivateHosts bool
}

// New creates an App over the given store
func New(st *store.Store) *App {
	return &App{
		store:  st,
		active: make(map[string]*linkpatrol.Crawler),
	}
}

// AllowPrivateHosts disables seed and target safety checks for this App
func (a *App) AllowPrivateHosts() {
	a.allowPrivateHosts = true
}

// PrivateHostsAllowed reports whether the safety gate is disabled
func (a *App) PrivateHostsAllowed() bool {
	return a.allowPrivateHosts
}

// Store exposes the underlying store for read paths
func (a *App) Store() *store.Store {
	return a.store
}

// GetJob fetches a job by ID
func (a *App) GetJob(jobID string) (*store.Job, error) {
	return a.store.GetJob(jobID)
}

// ListLinks returns a filtered page of a job's discovered links
func (a *App) ListLinks(jobID string, filter store.LinkFilter) ([]store.DiscoveredLink, error) {
	if _, err := a.store.GetJob(jobID); err != nil {
		return nil, err
	}
	return a.store.ListLinks(jobID, filter)
}

// Summary aggregates a job's link counts
func (a *App) Summary(jobID string) (*store.LinkSummary, error) {
	if _, err := a.store.GetJob(jobID); err != nil {
		return nil, err
	}
	return a.store.Summarize(jobID)
}

// SeoRecords returns a job's SEO analyses, worst first
func (a *App) SeoRecords(jobID string) ([]store.SeoRecord, error) {
	if _, err := a.store.GetJob(jobID); err != nil {
		return nil, err
	}
	return a.store.ListSeoRecords(jobID)
}

// ActiveScanCount reports how many scans are currently running
func (a *App) ActiveScanCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

func (a *App) registerScan(jobID string, crawler *linkpatrol.Crawler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[jobID] = crawler
}

func (a *App) unregisterScan(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, jobID)
}

func (a *App) activeScan(jobID string) (*linkpatrol.Crawler, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	crawler, ok := a.active[jobID]
	return crawler, ok
}

// AuditEvent appends a security event, logging but never failing on error
func (a *App) AuditEvent(event store.SecurityEvent) {
	if err := a.store.AppendSecurityEvent(event); err != nil {
		logf("failed to write security event: %v", err)
	}
}
