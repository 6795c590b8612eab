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

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agentberlin/linkpatrol"
	"github.com/agentberlin/linkpatrol/internal/app"
	"github.com/agentberlin/linkpatrol/internal/store"
)

// Error codes surfaced to API clients
const (
	CodeSecurityBlocked = "SECURITY_BLOCKED"
	CodeRobotsBlocked   = "ROBOTS_BLOCKED"
	CodeValidationError = "VALIDATION_ERROR"
	CodeRateLimited     = "RATE_LIMITED"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Server represents the HTTP server
type Server struct {
	app      *app.App
	mux      *http.ServeMux
	limiter  *RateLimiter
	validate *validator.Validate
}

// NewServer creates a new HTTP server
func NewServer(a *app.App) *Server {
	s := &Server{
		app:      a,
		mux:      http.NewServeMux(),
		limiter:  NewRateLimiter(),
		validate: validator.New(),
	}

	// Register routes
	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS middleware
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// Handle preflight
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Logging middleware
	log.Printf("%s %s", r.Method, r.URL.Path)

	// Serve request
	s.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/scan", s.handleStartScan)
	s.mux.HandleFunc("/api/v1/scan/", s.handleScanWithID)
}

// writeError emits the JSON error body shared by every failure path
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// clientIP extracts the caller's address, preferring X-Forwarded-For when a
// proxy sits in front
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// checkLimit enforces the rate limit for one request. On violation it writes
// the 429 response with Retry-After, records an audit event and returns
// false.
func (s *Server) checkLimit(w http.ResponseWriter, r *http.Request, class string, multiplier int) bool {
	ip := clientIP(r)
	verdict := s.limiter.Allow(ip, class, multiplier)
	if verdict.Allowed {
		return true
	}

	s.app.AuditEvent(store.SecurityEvent{
		EventType: store.EventRateLimitViolated,
		ClientIP:  ip,
		UserAgent: r.UserAgent(),
		Endpoint:  r.URL.Path,
		Detail:    fmt.Sprintf("class %s, violation %d", class, verdict.Violations),
		Severity:  store.SeverityMedium,
		Blocked:   true,
	})

	w.Header().Set("Retry-After", strconv.Itoa(int(verdict.RetryAfter.Seconds()+0.5)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":        "rate limit exceeded",
		"code":         CodeRateLimited,
		"blockedUntil": verdict.BlockedUntil.UTC().Format(time.RFC3339),
	})
	return false
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.checkLimit(w, r, classHealth, 1) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"activeScans": s.app.ActiveScanCount(),
	})
}

// scanSettingsPayload carries the optional settings block of a scan request.
// Omitted fields fall back to defaults; pointers distinguish zero values
// from absence.
type scanSettingsPayload struct {
	MaxDepth        *int    `json:"maxDepth" validate:"omitempty,min=1,max=5"`
	IncludeExternal *bool   `json:"includeExternal"`
	Timeout         *int    `json:"timeout" validate:"omitempty,min=1000,max=30000"` // milliseconds
	CrawlMode       *string `json:"crawlMode" validate:"omitempty,oneof=auto content_pages discovered_links"`
	EnableSEO       *bool   `json:"enableSEO"`
	UseSitemap      *bool   `json:"useSitemap"`
	RespectRobots   *bool   `json:"respectRobots"`
}

type preAnalyzedURL struct {
	URL       string `json:"url" validate:"required"`
	SourceURL string `json:"sourceUrl"`
	Category  string `json:"category"`
}

type scanRequestPayload struct {
	URL             string              `json:"url" validate:"required"`
	Settings        scanSettingsPayload `json:"settings"`
	PreAnalyzedURLs []preAnalyzedURL    `json:"preAnalyzedUrls" validate:"omitempty,dive"`
}

func (p *scanRequestPayload) toSettings() linkpatrol.Settings {
	settings := linkpatrol.DefaultSettings()
	if p.Settings.MaxDepth != nil {
		settings.MaxDepth = *p.Settings.MaxDepth
	}
	if p.Settings.IncludeExternal != nil {
		settings.IncludeExternal = *p.Settings.IncludeExternal
	}
	if p.Settings.Timeout != nil {
		settings.Timeout = time.Duration(*p.Settings.Timeout) * time.Millisecond
	}
	if p.Settings.CrawlMode != nil {
		settings.CrawlMode = linkpatrol.CrawlMode(*p.Settings.CrawlMode)
	}
	if p.Settings.EnableSEO != nil {
		settings.EnableSEO = *p.Settings.EnableSEO
	}
	if p.Settings.UseSitemap != nil {
		settings.UseSitemap = *p.Settings.UseSitemap
	}
	if p.Settings.RespectRobots != nil {
		settings.RespectRobots = *p.Settings.RespectRobots
	}
	return settings
}

// jobResponse is the wire shape of a job row
type jobResponse struct {
	ID         string `json:"id"`
	SeedURL    string `json:"seedUrl"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Error      string `json:"error,omitempty"`
	StartedAt  int64  `json:"startedAt,omitempty"`
	FinishedAt int64  `json:"finishedAt,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
}

func toJobResponse(job *store.Job) jobResponse {
	return jobResponse{
		ID:         job.ID,
		SeedURL:    job.SeedURL,
		Mode:       job.Mode,
		Status:     job.Status,
		Current:    job.Current,
		Total:      job.Total,
		Percentage: job.Percentage,
		Error:      job.Error,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		CreatedAt:  job.CreatedAt,
	}
}

// handleStartScan handles POST /api/v1/scan
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		writeError(w, http.StatusMethodNotAllowed, CodeValidationError, "method not allowed")
		return
	}

	var payload scanRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "invalid request body")
		return
	}

	// Targeted scans land on the analyze quota, discovery on the crawl
	// start quota
	class := classCrawl
	if len(payload.PreAnalyzedURLs) > 0 {
		class = classAnalyze
	}
	if !s.checkLimit(w, r, class, 1) {
		return
	}

	if err := s.validate.Struct(&payload); err != nil {
		s.auditInvalidInput(r, err.Error())
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	mode := store.JobModeDiscovery
	var targetURLs []string
	if len(payload.PreAnalyzedURLs) > 0 {
		mode = store.JobModeTargeted
		for _, target := range payload.PreAnalyzedURLs {
			if !linkpatrol.IsValidURL(target.URL) {
				s.auditInvalidInput(r, fmt.Sprintf("invalid target URL %s", target.URL))
				writeError(w, http.StatusBadRequest, CodeValidationError, fmt.Sprintf("invalid URL in preAnalyzedUrls: %s", target.URL))
				return
			}
			if !s.app.PrivateHostsAllowed() {
				if safe, reason := linkpatrol.IsSafeURL(target.URL); !safe {
					s.app.AuditEvent(store.SecurityEvent{
						EventType: store.EventBlockedURL,
						ClientIP:  clientIP(r),
						UserAgent: r.UserAgent(),
						Endpoint:  r.URL.Path,
						Detail:    fmt.Sprintf("target %s rejected: %s", target.URL, reason),
						Severity:  store.SeverityHigh,
						Blocked:   true,
					})
					writeError(w, http.StatusForbidden, CodeSecurityBlocked, fmt.Sprintf("URL blocked: %s", reason))
					return
				}
			}
			targetURLs = append(targetURLs, target.URL)
		}
	}

	job, err := s.app.StartScan(app.ScanRequest{
		URL:      payload.URL,
		Mode:     mode,
		URLs:     targetURLs,
		Settings: payload.toSettings(),
		ClientIP: clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSeedBlocked):
			writeError(w, http.StatusForbidden, CodeSecurityBlocked, err.Error())
		case errors.Is(err, linkpatrol.ErrRobotsBlocked):
			writeError(w, http.StatusForbidden, CodeRobotsBlocked, "robots.txt disallows crawling this site")
		case errors.Is(err, app.ErrInvalidSeed):
			s.auditInvalidInput(r, err.Error())
			writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, CodeInternalError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Scan started",
		"job":     toJobResponse(job),
	})
}

// handleScanWithID handles /api/v1/scan/{id}/*
func (s *Server) handleScanWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/scan/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, CodeValidationError, "job ID required")
		return
	}
	jobID := parts[0]

	// GET /api/v1/scan/{id}
	if len(parts) == 1 && r.Method == "GET" {
		s.handleScanStatus(w, r, jobID)
		return
	}

	// POST /api/v1/scan/{id}/stop
	if len(parts) == 2 && parts[1] == "stop" && r.Method == "POST" {
		s.handleStopScan(w, r, jobID)
		return
	}

	if len(parts) == 2 && r.Method == "GET" {
		switch parts[1] {
		case "links":
			s.handleLinks(w, r, jobID)
			return
		case "summary":
			s.handleSummary(w, r, jobID)
			return
		case "seo":
			s.handleSeo(w, r, jobID)
			return
		case "export":
			s.handleExport(w, r, jobID)
			return
		}
	}

	writeError(w, http.StatusNotFound, CodeNotFound, "not found")
}

// handleScanStatus handles GET /api/v1/scan/{id}. The status quota scales
// with job size so pollers of large scans are not starved.
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := s.app.GetJob(jobID)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	if !s.checkLimit(w, r, classStatus, statusMultiplier(job)) {
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// statusMultiplier scales the status-endpoint quota by estimated job size
func statusMultiplier(job *store.Job) int {
	links := job.Total
	depth := job.GetSettings().MaxDepth
	switch {
	case links > 1000 || depth >= 5:
		return 6
	case links > 500 || depth >= 4:
		return 4
	case links > 200 || depth >= 3:
		return 2
	}
	return 1
}

// handleStopScan handles POST /api/v1/scan/{id}/stop
func (s *Server) handleStopScan(w http.ResponseWriter, r *http.Request, jobID string) {
	if !s.checkLimit(w, r, classGeneral, 1) {
		return
	}
	if err := s.app.StopScan(jobID, clientIP(r)); err != nil {
		switch {
		case errors.Is(err, store.ErrJobNotFound):
			writeError(w, http.StatusNotFound, CodeNotFound, "job not found")
		case errors.Is(err, app.ErrScanNotRunning):
			writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, CodeInternalError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Scan stopped",
	})
}

// handleLinks handles GET /api/v1/scan/{id}/links?broken=&internal=&external=&limit=&offset=
func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request, jobID string) {
	if !s.checkLimit(w, r, classResults, 1) {
		return
	}

	query := r.URL.Query()
	filter := store.LinkFilter{
		Broken:   query.Get("broken") == "true",
		Internal: query.Get("internal") == "true",
		External: query.Get("external") == "true",
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	links, err := s.app.ListLinks(jobID, filter)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"links": links,
		"count": len(links),
	})
}

// handleSummary handles GET /api/v1/scan/{id}/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, jobID string) {
	if !s.checkLimit(w, r, classResults, 1) {
		return
	}
	summary, err := s.app.Summary(jobID)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSeo handles GET /api/v1/scan/{id}/seo
func (s *Server) handleSeo(w http.ResponseWriter, r *http.Request, jobID string) {
	if !s.checkLimit(w, r, classResults, 1) {
		return
	}
	records, err := s.app.SeoRecords(jobID)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// handleExport handles GET /api/v1/scan/{id}/export?broken=true
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, jobID string) {
	if !s.checkLimit(w, r, classResults, 1) {
		return
	}
	job, err := s.app.GetJob(jobID)
	if err != nil {
		s.writeJobError(w, err)
		return
	}

	brokenOnly := r.URL.Query().Get("broken") == "true"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", app.ExportFilename(job)))
	if err := s.app.ExportCSV(jobID, brokenOnly, w); err != nil {
		// Headers are already sent; the truncated body is all we can do
		log.Printf("export for job %s failed: %v", jobID, err)
	}
}

// writeJobError maps store lookup failures onto the error taxonomy
func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "job not found")
		return
	}
	writeError(w, http.StatusInternalServerError, CodeInternalError, err.Error())
}

func (s *Server) auditInvalidInput(r *http.Request, detail string) {
	s.app.AuditEvent(store.SecurityEvent{
		EventType: store.EventInvalidInput,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
		Endpoint:  r.URL.Path,
		Detail:    detail,
		Severity:  store.SeverityLow,
	})
}
