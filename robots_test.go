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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func robotsServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConsultAllowsByDefault(t *testing.T) {
	srv := robotsServer(t, "User-agent: *\nAllow: /\n", http.StatusOK)

	advisor := NewRobotsAdvisor("Broken Link Checker Bot/1.0")
	advice := advisor.Consult(context.Background(), srv.URL)

	assert.True(t, advice.Allowed)
	assert.True(t, advice.PathAllowed("/anything"))
}

func TestConsultDisallowAll(t *testing.T) {
	srv := robotsServer(t, "User-agent: *\nDisallow: /\n", http.StatusOK)

	advisor := NewRobotsAdvisor("Broken Link Checker Bot/1.0")
	advice := advisor.Consult(context.Background(), srv.URL)

	assert.False(t, advice.Allowed)
	assert.NotEmpty(t, advice.Reason)
	assert.False(t, advice.PathAllowed("/"))
}

func TestConsultCollectsDisallowPrefixes(t *testing.T) {
	body := "User-agent: *\nDisallow: /private/\nDisallow: /tmp/\n\nUser-agent: googlebot\nDisallow: /nogoogle/\n"
	srv := robotsServer(t, body, http.StatusOK)

	advisor := NewRobotsAdvisor("Broken Link Checker Bot/1.0")
	advice := advisor.Consult(context.Background(), srv.URL)

	require.True(t, advice.Allowed)
	assert.Contains(t, advice.DisallowedPaths, "/private/")
	assert.Contains(t, advice.DisallowedPaths, "/tmp/")
	// googlebot contains "bot", so its block applies to us as well
	assert.Contains(t, advice.DisallowedPaths, "/nogoogle/")
	assert.False(t, advice.PathAllowed("/private/page"))
	assert.True(t, advice.PathAllowed("/public/page"))
}

func TestConsultIgnoresUnrelatedAgents(t *testing.T) {
	body := "User-agent: SomeCrawler\nDisallow: /secret/\n"
	srv := robotsServer(t, body, http.StatusOK)

	advisor := NewRobotsAdvisor("Broken Link Checker Bot/1.0")
	advice := advisor.Consult(context.Background(), srv.URL)

	assert.True(t, advice.Allowed)
	assert.Empty(t, advice.DisallowedPaths)
}

func TestConsultCrawlDelay(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected time.Duration
	}{
		{"whole seconds", "User-agent: *\nCrawl-delay: 3\n", 3 * time.Second},
		{"floors sub-second delays", "User-agent: *\nCrawl-delay: 0.2\n", time.Second},
		{"absent delay", "User-agent: *\nDisallow:\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := robotsServer(t, tt.body, http.StatusOK)

			advisor := NewRobotsAdvisor("Broken Link Checker Bot/1.0")
			advice := advisor.Consult(context.Background(), srv.URL)

			assert.Equal(t, tt.expected, advice.CrawlDelay)
		})
	}
}

func TestConsultMissingRobotsIsPermissive(t *testing.T) {
	srv := robotsServer(t, "not found", http.StatusNotFound)

	advisor := NewRobotsAdvisor("Broken Link Checker Bot/1.0")
	advice := advisor.Consult(context.Background(), srv.URL)

	assert.True(t, advice.Allowed)
	assert.Equal(t, time.Second, advice.CrawlDelay)
}

func TestConsultUnreachableHostIsPermissive(t *testing.T) {
	advisor := NewRobotsAdvisor("Broken Link Checker Bot/1.0")
	advice := advisor.Consult(context.Background(), "http://127.0.0.1:1/")

	assert.True(t, advice.Allowed)
	assert.Equal(t, time.Second, advice.CrawlDelay)
}
