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

package linkpatrol

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsFetchTimeout bounds the robots.txt request independently of the
// per-job request timeout
const robotsFetchTimeout = 5 * time.Second

// RobotsAdvice is the decision produced by consulting a site's robots.txt
type RobotsAdvice struct {
	// Allowed is false only when robots.txt disallows all crawling
	Allowed bool
	// Reason explains a negative decision
	Reason string
	// CrawlDelay is the politeness delay requested by the site, at least 1s
	// when the site specifies one, zero otherwise
	CrawlDelay time.Duration
	// DisallowedPaths are the Disallow prefixes that apply to this bot
	DisallowedPaths []string

	group *robotstxt.Group
}

// PathAllowed reports whether a path may be fetched under this advice
func (ra *RobotsAdvice) PathAllowed(path string) bool {
	if !ra.Allowed {
		return false
	}
	if ra.group != nil {
		return ra.group.Test(path)
	}
	for _, prefix := range ra.DisallowedPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// RobotsAdvisor fetches and interprets robots.txt files. Network failures
// are treated as permission to crawl with a default politeness delay, so a
// missing or unreachable robots.txt never blocks a scan.
type RobotsAdvisor struct {
	client    *http.Client
	userAgent string
}

// NewRobotsAdvisor creates an advisor identifying itself with the given
// User-Agent string
func NewRobotsAdvisor(userAgent string) *RobotsAdvisor {
	return &RobotsAdvisor{
		client:    &http.Client{Timeout: robotsFetchTimeout},
		userAgent: userAgent,
	}
}

// permissiveAdvice is returned when robots.txt cannot be fetched or parsed
func permissiveAdvice() *RobotsAdvice {
	return &RobotsAdvice{Allowed: true, CrawlDelay: time.Second}
}

// Consult fetches /robots.txt from the base URL's origin and returns the
// crawl advice that applies to this bot
func (a *RobotsAdvisor) Consult(ctx context.Context, baseURL string) *RobotsAdvice {
	parsed, err := urlParser.Parse(baseURL)
	if err != nil {
		return permissiveAdvice()
	}

	robotsURL := strings.ToLower(parsed.Scheme()) + "://" + parsed.Host() + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return permissiveAdvice()
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return permissiveAdvice()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return permissiveAdvice()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return permissiveAdvice()
	}

	advice := parseRobots(body)

	// Keep the parsed group for precise per-path testing, covering Allow
	// rules and wildcard patterns the prefix list cannot express
	if data, err := robotstxt.FromBytes(body); err == nil {
		advice.group = data.FindGroup(a.userAgent)
	}

	return advice
}

// parseRobots walks the file sequentially, tracking whether the current
// user-agent block applies to this bot (a "*" agent or any agent token
// containing "bot"), and collects Disallow prefixes and Crawl-delay.
func parseRobots(body []byte) *RobotsAdvice {
	advice := &RobotsAdvice{Allowed: true}

	applies := false
	sawAgentLine := false

	for _, rawLine := range strings.Split(string(body), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			agent := strings.ToLower(value)
			matches := agent == "*" || strings.Contains(agent, "bot")
			if sawAgentLine {
				// Consecutive user-agent lines extend the same block;
				// anything else starts a fresh block
				applies = applies || matches
			} else {
				applies = matches
			}
			sawAgentLine = true

		case "disallow":
			sawAgentLine = false
			if !applies || value == "" {
				continue
			}
			if value == "/" {
				advice.Allowed = false
				advice.Reason = "Robots.txt disallows all crawling"
			}
			advice.DisallowedPaths = append(advice.DisallowedPaths, value)

		case "crawl-delay":
			sawAgentLine = false
			if !applies {
				continue
			}
			if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
				delay := time.Duration(secs * float64(time.Second))
				if delay < time.Second {
					delay = time.Second
				}
				advice.CrawlDelay = delay
			}

		default:
			sawAgentLine = false
		}
	}

	return advice
}
