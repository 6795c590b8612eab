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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/linkpatrol/testutil"
)

// scanRecorder collects crawl events for assertions
type scanRecorder struct {
	mu         sync.Mutex
	discovered []DiscoveredLink
	checked    []CheckResult
	broken     []BrokenLink
	pages      map[string]PageInfo
	seo        []*SEOReport
	progress   []Progress
}

func newScanRecorder() *scanRecorder {
	return &scanRecorder{pages: make(map[string]PageInfo)}
}

func (r *scanRecorder) hooks() Hooks {
	return Hooks{
		OnLinkDiscovered: func(l DiscoveredLink) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.discovered = append(r.discovered, l)
		},
		OnLinkChecked: func(c CheckResult, _ DiscoveredLink) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.checked = append(r.checked, c)
		},
		OnBrokenLink: func(b BrokenLink) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.broken = append(r.broken, b)
		},
		OnPageInfo: func(url string, p PageInfo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.pages[url] = p
		},
		OnSEOReport: func(s *SEOReport) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.seo = append(r.seo, s)
		},
		OnProgress: func(p Progress) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, p)
		},
	}
}

func (r *scanRecorder) brokenURLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var urls []string
	for _, b := range r.broken {
		urls = append(urls, b.URL)
	}
	return urls
}

func (r *scanRecorder) checkedURLs() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, c := range r.checked {
		counts[c.URL]++
	}
	return counts
}

func testCrawler(t *testing.T, seedURL string, overrides func(*CrawlerConfig)) (*Crawler, *scanRecorder) {
	t.Helper()
	recorder := newScanRecorder()
	settings := DefaultSettings()
	settings.DelayBetweenRequests = 10 * time.Millisecond
	settings.Timeout = 5 * time.Second
	config := CrawlerConfig{
		SeedURL:           seedURL,
		Settings:          settings,
		Hooks:             recorder.hooks(),
		AllowPrivateHosts: true,
	}
	if overrides != nil {
		overrides(&config)
	}
	crawler, err := NewCrawler(config)
	require.NoError(t, err)
	return crawler, recorder
}

func TestDiscoveryFindsBrokenLinks(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, nil)
	require.NoError(t, crawler.Run(context.Background()))

	assert.Contains(t, recorder.brokenURLs(), srv.URL+"/missing")
	for _, b := range recorder.broken {
		assert.Equal(t, "404", b.ErrorType)
		assert.NotEmpty(t, b.SourceURL)
	}
}

func TestDiscoveryChecksEachURLOnce(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, nil)
	require.NoError(t, crawler.Run(context.Background()))

	for url, count := range recorder.checkedURLs() {
		assert.Equal(t, 1, count, "URL %s checked more than once", url)
	}
	// /missing is linked from both the seed and article one, but must be
	// checked a single time
	assert.Equal(t, 1, recorder.checkedURLs()[srv.URL+"/missing"])
}

func TestDiscoveryRespectsMaxDepth(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, func(c *CrawlerConfig) {
		c.Settings.MaxDepth = 1
	})
	require.NoError(t, crawler.Run(context.Background()))

	// At MaxDepth 1 only the seed is expanded: its links are checked but
	// never fetched, so /articles/two behind /articles/one stays unknown
	checked := recorder.checkedURLs()
	assert.Contains(t, checked, srv.URL+"/articles/one")
	assert.NotContains(t, checked, srv.URL+"/articles/two")
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Len(t, recorder.pages, 1)
	assert.Contains(t, recorder.pages, srv.URL+"/")
	assert.NotContains(t, recorder.pages, srv.URL+"/articles/one")
	assert.NotContains(t, recorder.pages, srv.URL+"/good")
}

func TestDiscoveryEmitsMonotonicProgress(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, nil)
	require.NoError(t, crawler.Run(context.Background()))

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.NotEmpty(t, recorder.progress)
	prev := Progress{}
	for _, p := range recorder.progress {
		assert.GreaterOrEqual(t, p.Current, prev.Current)
		assert.GreaterOrEqual(t, p.Total, p.Current)
		assert.LessOrEqual(t, p.Percentage, 100)
		prev = p
	}
	last := recorder.progress[len(recorder.progress)-1]
	assert.Equal(t, last.Total, last.Current, "scan should finish at 100%%")
}

func TestDiscoveryRobotsDisallowAll(t *testing.T) {
	srv := testutil.NewSiteServer(testutil.WithRobots("User-agent: *\nDisallow: /\n"))
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, nil)
	err := crawler.Run(context.Background())

	assert.ErrorIs(t, err, ErrRobotsBlocked)
	assert.Empty(t, recorder.checked)
}

func TestDiscoveryRobotsDisallowPrefix(t *testing.T) {
	srv := testutil.NewSiteServer(testutil.WithRobots("User-agent: *\nDisallow: /articles/\n"))
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, nil)
	require.NoError(t, crawler.Run(context.Background()))

	checked := recorder.checkedURLs()
	assert.NotContains(t, checked, srv.URL+"/articles/one")
	assert.Contains(t, checked, srv.URL+"/good")
}

func TestDiscoveryIgnoresRobotsWhenDisabled(t *testing.T) {
	srv := testutil.NewSiteServer(testutil.WithRobots("User-agent: *\nDisallow: /\n"))
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, func(c *CrawlerConfig) {
		c.Settings.RespectRobots = false
	})
	require.NoError(t, crawler.Run(context.Background()))

	assert.NotEmpty(t, recorder.checked)
}

func TestDiscoverySitemapSeeding(t *testing.T) {
	srv := testutil.NewSiteServer(testutil.WithSitemap())
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, func(c *CrawlerConfig) {
		c.Settings.UseSitemap = true
		c.Settings.MaxDepth = 1
	})
	require.NoError(t, crawler.Run(context.Background()))

	// /articles/two is depth 2 through links, but the sitemap seeds it
	// directly as a page
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	_, fetched := recorder.pages[srv.URL+"/articles/two"]
	assert.True(t, fetched, "sitemap entries should be fetched as pages")
}

func TestDiscoverySEOReports(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, func(c *CrawlerConfig) {
		c.Settings.EnableSEO = true
		// /articles/two sits at depth 2 and is only expanded under a
		// deeper limit
		c.Settings.MaxDepth = 3
	})
	require.NoError(t, crawler.Run(context.Background()))

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.NotEmpty(t, recorder.seo)
	byURL := map[string]*SEOReport{}
	for _, s := range recorder.seo {
		byURL[s.URL] = s
	}
	require.Contains(t, byURL, srv.URL+"/articles/two")
	assert.GreaterOrEqual(t, byURL[srv.URL+"/articles/two"].Score, 80)
}

func TestDiscoveryStop(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, _ := testCrawler(t, srv.URL, func(c *CrawlerConfig) {
		c.Settings.DelayBetweenRequests = 200 * time.Millisecond
	})

	done := make(chan error, 1)
	go func() { done <- crawler.Run(context.Background()) }()
	time.Sleep(50 * time.Millisecond)
	crawler.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCrawlStopped)
	case <-time.After(5 * time.Second):
		t.Fatal("crawler did not stop in time")
	}
}

func TestNewCrawlerRejectsUnsafeSeed(t *testing.T) {
	_, err := NewCrawler(CrawlerConfig{
		SeedURL:  "http://169.254.169.254/latest/",
		Settings: DefaultSettings(),
	})

	assert.ErrorIs(t, err, ErrUnsafeURL)
}

func TestNewCrawlerRejectsInvalidSeed(t *testing.T) {
	_, err := NewCrawler(CrawlerConfig{
		SeedURL:  "not a url",
		Settings: DefaultSettings(),
	})

	assert.Error(t, err)
}

func TestTargetedChecksListedURLs(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, nil)
	err := crawler.RunTargeted(context.Background(), []string{
		srv.URL + "/good",
		srv.URL + "/missing",
		srv.URL + "/gone",
	})
	require.NoError(t, err)

	checked := recorder.checkedURLs()
	assert.Contains(t, checked, srv.URL+"/good")
	assert.Contains(t, checked, srv.URL+"/missing")
	assert.Contains(t, checked, srv.URL+"/gone")

	broken := recorder.brokenURLs()
	assert.Contains(t, broken, srv.URL+"/missing")
	assert.Contains(t, broken, srv.URL+"/gone")
	assert.NotContains(t, broken, srv.URL+"/good")
}

func TestTargetedExpandsContentPagesOneLevel(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, nil)
	require.NoError(t, crawler.RunTargeted(context.Background(), []string{
		srv.URL + "/articles/one",
	}))

	// The listed content page is fetched; its broken outbound link is found
	assert.Contains(t, recorder.brokenURLs(), srv.URL+"/missing")

	// Links found on it are checked but never expanded into further fetches
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	_, fetchedTwo := recorder.pages[srv.URL+"/articles/two"]
	assert.False(t, fetchedTwo)
}

func TestDiscoveryStopsAtPageBudget(t *testing.T) {
	// A seed page with more links than the Discovery page budget; the scan
	// must complete once the processed count reaches the cap instead of
	// draining every last URL
	var index strings.Builder
	index.WriteString("<html><body><main>")
	for i := 0; i < 520; i++ {
		fmt.Fprintf(&index, `<a href="/pages/%d">generated page number %d</a>`, i, i)
	}
	index.WriteString("</main></body></html>")

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/" {
			fmt.Fprint(w, index.String())
			return
		}
		fmt.Fprint(w, "<html><body><p>a page with no outbound links</p></body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	crawler, _ := testCrawler(t, srv.URL, func(c *CrawlerConfig) {
		c.Settings.DelayBetweenRequests = 0
	})
	require.NoError(t, crawler.Run(context.Background()))

	processed, discovered := crawler.frontier.counts()
	assert.GreaterOrEqual(t, processed, discoveryMaxPages)
	assert.Less(t, processed, discovered, "scan should finish before draining the frontier")
}

func TestCrawlModeDiscoveredLinksNoExpansion(t *testing.T) {
	srv := testutil.NewSiteServer()
	defer srv.Close()

	crawler, recorder := testCrawler(t, srv.URL, func(c *CrawlerConfig) {
		c.Settings.CrawlMode = CrawlModeDiscoveredLinks
	})
	require.NoError(t, crawler.Run(context.Background()))

	// Only the seed is fetched; its links are checked without expansion
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Len(t, recorder.pages, 1)
	assert.Contains(t, recorder.pages, srv.URL+"/")
}
