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
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// Discovery strategy tuning
const (
	discoveryBatchSize   = 5
	discoveryConcurrency = 3
	discoveryMaxPages    = 500
)

// Targeted strategy tuning
const (
	targetedBatchSize   = 20
	targetedConcurrency = 4
	targetedBatchPause  = 500 * time.Millisecond
)

// Hooks receive crawl events as they happen. Nil hooks are skipped. Hooks
// are called from worker goroutines and must be safe for concurrent use.
type Hooks struct {
	// OnLinkDiscovered fires once per unique URL found during the scan
	OnLinkDiscovered func(DiscoveredLink)
	// OnLinkChecked fires after every liveness check, working or not
	OnLinkChecked func(CheckResult, DiscoveredLink)
	// OnBrokenLink fires when a check concludes a link is not working
	OnBrokenLink func(BrokenLink)
	// OnPageInfo fires with metadata for every fetched HTML page
	OnPageInfo func(pageURL string, page PageInfo)
	// OnSEOReport fires per analyzed page when SEO analysis is enabled
	OnSEOReport func(*SEOReport)
	// OnProgress fires after every batch with a monotonic snapshot
	OnProgress func(Progress)
}

// CrawlerConfig assembles a crawler for one scan
type CrawlerConfig struct {
	// SeedURL is the page the scan starts from
	SeedURL string
	// Settings is the per-job crawl configuration
	Settings Settings
	// Hooks receive crawl events
	Hooks Hooks
	// UserAgent overrides the default bot identification
	UserAgent string
	// AllowPrivateHosts disables the safety gate for internal-site scans
	AllowPrivateHosts bool
}

// Crawler orchestrates one scan: it owns the frontier, the fetcher and the
// extractor, and drives either the Discovery or the Targeted strategy. A
// crawler runs at most one scan and is not reusable.
type Crawler struct {
	seedURL  string
	settings Settings
	hooks    Hooks

	fetcher   *Fetcher
	extractor *Extractor
	robots    *RobotsAdvisor
	sitemap   *SitemapReader

	frontier      *frontier
	pagesEnqueued atomic.Int64
	stopped       atomic.Bool
	targeted      bool
	cancel        context.CancelFunc
}

// NewCrawler validates the seed URL and builds the scan components. The
// seed is rejected before any network I/O when it fails the safety gate.
func NewCrawler(config CrawlerConfig) (*Crawler, error) {
	if !IsValidURL(config.SeedURL) {
		return nil, fmt.Errorf("invalid seed URL: %s", config.SeedURL)
	}
	if !config.AllowPrivateHosts {
		if safe, reason := IsSafeURL(config.SeedURL); !safe {
			return nil, fmt.Errorf("%w: %s", ErrUnsafeURL, reason)
		}
	}

	seed, err := NormalizeURL(config.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize seed URL: %v", err)
	}

	settings := config.Settings
	if settings.MaxLinksPerPage <= 0 {
		settings.MaxLinksPerPage = 1000
	}

	fetcherConfig := DefaultFetcherConfig()
	if settings.Timeout > 0 {
		fetcherConfig.Timeout = settings.Timeout
	}
	fetcherConfig.AllowPrivateHosts = config.AllowPrivateHosts
	if config.UserAgent != "" {
		fetcherConfig.UserAgent = config.UserAgent
	}

	return &Crawler{
		seedURL:  seed,
		settings: settings,
		hooks:    config.Hooks,
		fetcher:  NewFetcher(fetcherConfig),
		extractor: NewExtractor(ExtractorConfig{
			BaseURL:           seed,
			IncludeExternal:   settings.IncludeExternal,
			MaxLinksPerPage:   settings.MaxLinksPerPage,
			AllowPrivateHosts: config.AllowPrivateHosts,
		}),
		robots:   NewRobotsAdvisor(fetcherConfig.UserAgent),
		sitemap:  NewSitemapReader(fetcherConfig.UserAgent, config.AllowPrivateHosts),
		frontier: newFrontier(),
	}, nil
}

// Stop cancels the scan after in-flight requests complete
func (c *Crawler) Stop() {
	c.stopped.Store(true)
	if c.cancel != nil {
		c.cancel()
	}
}

// Run executes the Discovery strategy: BFS from the seed, expanding pages
// shallower than MaxDepth and checking every discovered link exactly once.
// It returns
// ErrRobotsBlocked when robots.txt disallows all crawling and
// ErrCrawlStopped when the scan was cancelled.
func (c *Crawler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	advice, err := c.consultRobots(ctx)
	if err != nil {
		return err
	}

	c.frontier.add(frontierItem{URL: c.seedURL, Depth: 0, Crawl: true})
	c.pagesEnqueued.Add(1)

	if c.settings.UseSitemap {
		for _, seed := range c.sitemap.Discover(ctx, c.seedURL) {
			if c.pagesEnqueued.Load() >= discoveryMaxPages {
				break
			}
			if c.frontier.add(frontierItem{URL: seed, SourceURL: c.seedURL, Depth: 1, Crawl: true}) {
				c.pagesEnqueued.Add(1)
				c.emitDiscovered(frontierItem{URL: seed, SourceURL: c.seedURL, Depth: 1})
			}
		}
	}

	return c.drain(ctx, advice, discoveryBatchSize, discoveryConcurrency, discoveryMaxPages, c.batchDelay(advice))
}

// RunTargeted executes the Targeted strategy over a pre-analyzed URL list:
// content pages are fetched and expanded one level, everything else is
// checked for liveness. The page budget is the size of the list.
func (c *Crawler) RunTargeted(ctx context.Context, urls []string) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	advice, err := c.consultRobots(ctx)
	if err != nil {
		return err
	}

	// Targeted scans expand only the listed content pages; links found on
	// them are checked, never fetched
	c.targeted = true

	for _, raw := range urls {
		normalized, err := NormalizeURL(raw)
		if err != nil || !IsValidURL(normalized) {
			continue
		}
		if !c.fetcher.config.AllowPrivateHosts {
			if safe, _ := IsSafeURL(normalized); !safe {
				continue
			}
		}
		item := frontierItem{
			URL:   normalized,
			Depth: 0,
			Crawl: IsInternalURL(normalized, c.seedURL) && IsContentPage(normalized),
		}
		if c.frontier.add(item) {
			if item.Crawl {
				c.pagesEnqueued.Add(1)
			}
			c.emitDiscovered(item)
		}
	}

	pause := c.batchDelay(advice)
	if pause < targetedBatchPause {
		pause = targetedBatchPause
	}
	// The frontier never grows past the deduplicated list plus one level of
	// content-page links, so the list itself is the budget
	return c.drain(ctx, advice, targetedBatchSize, targetedConcurrency, 0, pause)
}

// consultRobots fetches crawl advice once, before the first batch
func (c *Crawler) consultRobots(ctx context.Context) (*RobotsAdvice, error) {
	if !c.settings.RespectRobots {
		return &RobotsAdvice{Allowed: true}, nil
	}
	advice := c.robots.Consult(ctx, c.seedURL)
	if !advice.Allowed {
		return nil, ErrRobotsBlocked
	}
	return advice, nil
}

// batchDelay is the polite pause between batches: the configured delay or
// the site's crawl-delay, whichever is larger
func (c *Crawler) batchDelay(advice *RobotsAdvice) time.Duration {
	delay := c.settings.DelayBetweenRequests
	if advice.CrawlDelay > delay {
		delay = advice.CrawlDelay
	}
	return delay
}

// drain runs the batch loop until the frontier is empty, the processed
// count reaches the page budget, or the scan stops. A budget of zero means
// the frontier itself bounds the scan.
func (c *Crawler) drain(ctx context.Context, advice *RobotsAdvice, batchSize, concurrency, budget int, pause time.Duration) error {
	pool := NewWorkerPool(ctx, concurrency, batchSize)
	defer pool.Close()

	for {
		if c.stopped.Load() {
			return ErrCrawlStopped
		}
		if ctx.Err() != nil {
			return ErrCrawlStopped
		}

		if budget > 0 {
			if processed, _ := c.frontier.counts(); processed >= budget {
				break
			}
		}

		batch := c.frontier.nextBatch(batchSize)
		if len(batch) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, item := range batch {
			item := item
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				c.process(ctx, item, advice)
			}); err != nil {
				wg.Done()
				c.frontier.markDone(item.URL)
			}
		}
		wg.Wait()

		c.reportProgress()

		processed, discovered := c.frontier.counts()
		if pause > 0 && discovered > processed {
			select {
			case <-ctx.Done():
				return ErrCrawlStopped
			case <-time.After(pause):
			}
		}
	}

	c.reportProgress()
	if c.stopped.Load() {
		return ErrCrawlStopped
	}
	return nil
}

// process handles one frontier item: a page fetch with expansion, or a bare
// liveness check
func (c *Crawler) process(ctx context.Context, item frontierItem, advice *RobotsAdvice) {
	defer c.frontier.markDone(item.URL)

	if c.stopped.Load() || ctx.Err() != nil {
		return
	}

	if c.settings.RespectRobots && !advice.PathAllowed(urlPath(item.URL)) {
		return
	}

	link := DiscoveredLink{
		URL:        item.URL,
		SourceURL:  item.SourceURL,
		IsInternal: IsInternalURL(item.URL, c.seedURL),
		Depth:      item.Depth,
		LinkText:   item.LinkText,
	}

	if !item.Crawl {
		result := c.fetcher.Check(ctx, item.URL)
		c.emitChecked(result, link)
		return
	}

	result := c.fetcher.Fetch(ctx, item.URL)
	c.emitChecked(result.CheckResult, link)

	if !result.IsHTML() {
		return
	}

	extracted, err := c.extractor.Extract(item.URL, result.Body, item.Depth)
	if err != nil {
		return
	}

	if c.hooks.OnPageInfo != nil {
		c.hooks.OnPageInfo(item.URL, extracted.Page)
	}
	if c.settings.EnableSEO && c.hooks.OnSEOReport != nil {
		c.hooks.OnSEOReport(AnalyzeSEO(item.URL, result.Body, result.ResponseTime))
	}

	for _, found := range extracted.Links {
		if found.Depth > c.settings.MaxDepth {
			continue
		}
		next := frontierItem{
			URL:       found.URL,
			SourceURL: item.URL,
			Depth:     found.Depth,
			LinkText:  found.Text,
			Crawl:     !c.targeted && c.shouldExpand(found),
		}
		if next.Crawl && c.pagesEnqueued.Load() >= c.maxPages() {
			next.Crawl = false
		}
		if c.frontier.add(next) {
			if next.Crawl {
				c.pagesEnqueued.Add(1)
			}
			c.emitDiscovered(frontierItem{
				URL:       found.URL,
				SourceURL: item.URL,
				Depth:     found.Depth,
				LinkText:  found.Text,
			})
		}
	}
}

// shouldExpand decides whether a discovered link becomes a page fetch
func (c *Crawler) shouldExpand(link LinkInfo) bool {
	if !link.ShouldCrawl || !link.IsInternal {
		return false
	}
	if link.Depth >= c.settings.MaxDepth {
		return false
	}
	switch c.settings.CrawlMode {
	case CrawlModeDiscoveredLinks:
		return false
	case CrawlModeContentPages:
		return IsContentPage(link.URL)
	default:
		return true
	}
}

// maxPages is the page-fetch budget for the active strategy
func (c *Crawler) maxPages() int64 {
	return discoveryMaxPages
}

func (c *Crawler) emitDiscovered(item frontierItem) {
	if c.hooks.OnLinkDiscovered == nil {
		return
	}
	c.hooks.OnLinkDiscovered(DiscoveredLink{
		URL:        item.URL,
		SourceURL:  item.SourceURL,
		IsInternal: IsInternalURL(item.URL, c.seedURL),
		Depth:      item.Depth,
		LinkText:   item.LinkText,
	})
}

func (c *Crawler) emitChecked(result CheckResult, link DiscoveredLink) {
	if c.hooks.OnLinkChecked != nil {
		c.hooks.OnLinkChecked(result, link)
	}
	if !result.IsWorking && c.hooks.OnBrokenLink != nil {
		c.hooks.OnBrokenLink(BrokenLink{
			URL:        result.URL,
			SourceURL:  link.SourceURL,
			StatusCode: result.StatusCode,
			ErrorType:  result.ErrorType,
			LinkText:   link.LinkText,
		})
	}
}

// reportProgress emits a monotonic progress snapshot: the total never drops
// below the processed count
func (c *Crawler) reportProgress() {
	if c.hooks.OnProgress == nil {
		return
	}
	processed, discovered := c.frontier.counts()
	total := discovered
	if processed > total {
		total = processed
	}
	c.hooks.OnProgress(NewProgress(processed, total))
}

func urlPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	if parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}
