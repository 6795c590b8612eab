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

// Package linkpatrol implements a concurrent broken-link scanner with
// on-page SEO analysis. It discovers reachable pages starting from a seed
// URL, verifies every outbound link over HTTP and optionally scores each
// fetched HTML page against SEO heuristics.
package linkpatrol

import (
	"errors"
	"time"
)

// CrawlMode selects how discovered URLs are treated during a scan
type CrawlMode string

const (
	// CrawlModeAuto lets the scanner decide per URL
	CrawlModeAuto CrawlMode = "auto"
	// CrawlModeContentPages restricts link extraction to content pages
	CrawlModeContentPages CrawlMode = "content_pages"
	// CrawlModeDiscoveredLinks checks discovered links without expansion
	CrawlModeDiscoveredLinks CrawlMode = "discovered_links"
)

// Settings holds the per-job crawl configuration. Settings are immutable
// after job creation.
type Settings struct {
	// MaxDepth bounds BFS depth in Discovery mode. Valid range is 1..5.
	MaxDepth int `json:"maxDepth"`
	// IncludeExternal controls whether cross-origin links are extracted and checked
	IncludeExternal bool `json:"includeExternal"`
	// Timeout is the per-request upper bound. Valid range is 1s..30s.
	Timeout time.Duration `json:"timeout"`
	// CrawlMode is one of auto, content_pages, discovered_links
	CrawlMode CrawlMode `json:"crawlMode"`
	// EnableSEO runs SEO analysis on fetched HTML pages
	EnableSEO bool `json:"enableSEO"`
	// RespectRobots consults robots.txt before crawling (default true)
	RespectRobots bool `json:"respectRobots"`
	// UseSitemap seeds the Discovery frontier from /sitemap.xml when available
	UseSitemap bool `json:"useSitemap"`
	// DelayBetweenRequests is the polite delay between batches (default 200ms)
	DelayBetweenRequests time.Duration `json:"delayBetweenRequests"`
	// MaxLinksPerPage caps links emitted per page (default 1000)
	MaxLinksPerPage int `json:"maxLinksPerPage"`
}

// DefaultSettings returns the settings applied when a job omits them
func DefaultSettings() Settings {
	return Settings{
		MaxDepth:             2,
		IncludeExternal:      false,
		Timeout:              10 * time.Second,
		CrawlMode:            CrawlModeAuto,
		EnableSEO:            false,
		RespectRobots:        true,
		UseSitemap:           false,
		DelayBetweenRequests: 200 * time.Millisecond,
		MaxLinksPerPage:      1000,
	}
}

// Error type identifiers attached to failed link checks
const (
	ErrorTypeTimeout         = "timeout"
	ErrorTypeDNS             = "dns_error"
	ErrorTypeConnection      = "connection_error"
	ErrorTypeSSL             = "ssl_error"
	ErrorTypeInvalidURL      = "invalid_url"
	ErrorTypeSecurityBlocked = "security_blocked"
	ErrorTypeOther           = "other"
)

var (
	// ErrRobotsBlocked is returned when robots.txt disallows all crawling
	ErrRobotsBlocked = errors.New("robots.txt disallows all crawling")
	// ErrUnsafeURL is returned when a URL fails the SSRF safety gate
	ErrUnsafeURL = errors.New("URL failed safety check")
	// ErrCrawlStopped is returned when a scan is cancelled mid-flight
	ErrCrawlStopped = errors.New("crawl stopped")
)

// CheckResult is the outcome of a single liveness check against a URL.
// StatusCode is 0 when no HTTP response was obtained.
type CheckResult struct {
	URL          string        `json:"url"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
	CheckedAt    time.Time     `json:"checkedAt"`
	IsWorking    bool          `json:"isWorking"`
	ErrorType    string        `json:"errorType,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// FetchResult extends CheckResult with the response body for HTML pages.
// Body is nil when the response Content-Type is not text/html or the
// detected charset cannot be treated as UTF-8 text.
type FetchResult struct {
	CheckResult
	ContentType string `json:"contentType"`
	Charset     string `json:"charset,omitempty"`
	Body        []byte `json:"-"`
}

// IsHTML reports whether the fetched response carried an HTML body
func (fr *FetchResult) IsHTML() bool {
	return fr.Body != nil
}

// Link type classifications assigned by the extractor
const (
	LinkTypeContent    = "content"
	LinkTypeNavigation = "navigation"
	LinkTypeResource   = "resource"
	LinkTypeOther      = "other"
)

// LinkAttributes captures the raw anchor attributes of an extracted link
type LinkAttributes struct {
	Rel    string `json:"rel,omitempty"`
	Target string `json:"target,omitempty"`
	Title  string `json:"title,omitempty"`
	Class  string `json:"class,omitempty"`
	ID     string `json:"id,omitempty"`
}

// LinkInfo is a single outbound link extracted from a page
type LinkInfo struct {
	// URL is the normalized absolute target URL
	URL string `json:"url"`
	// SourceURL is the page the link was found on
	SourceURL string `json:"sourceUrl"`
	// Text is the cleaned anchor text, at most 100 characters
	Text string `json:"linkText"`
	// IsInternal indicates the target shares the crawl origin
	IsInternal bool `json:"isInternal"`
	// Depth is the BFS depth the target would be crawled at
	Depth int `json:"depth"`
	// ShouldCrawl indicates the target passes crawl policy
	ShouldCrawl bool `json:"shouldCrawl"`
	// LinkType is one of content, navigation, resource, other
	LinkType string `json:"linkType"`
	// Priority is an advisory crawl priority in [1,10]
	Priority int `json:"priority"`
	// Context is the semantic page area the anchor sits in
	Context string `json:"context,omitempty"`
	// Attributes are the raw anchor attributes
	Attributes LinkAttributes `json:"attributes"`
}

// PageAnalysis is a lightweight structural summary of an HTML page
type PageAnalysis struct {
	WordCount       int  `json:"wordCount"`
	ParagraphCount  int  `json:"paragraphCount"`
	HeadingCount    int  `json:"headingCount"`
	LinkCount       int  `json:"linkCount"`
	ImageCount      int  `json:"imageCount"`
	HasNav          bool `json:"hasNav"`
	HasMainContent  bool `json:"hasMainContent"`
	HasSchemaMarkup bool `json:"hasSchemaMarkup"`
}

// PageInfo holds per-page metadata extracted alongside links
type PageInfo struct {
	// Title is the first <title>, falling back to the first <h1>, at most 100 chars
	Title string `json:"title"`
	// MetaDescription is the meta description or og:description, at most 200 chars
	MetaDescription string `json:"metaDescription"`
	// Canonical is the resolved canonical URL, empty when absent
	Canonical string `json:"canonical,omitempty"`
	// Lang is the <html lang> attribute value
	Lang string `json:"lang,omitempty"`
	// RobotsMeta is the content of <meta name="robots">
	RobotsMeta string `json:"robotsMeta,omitempty"`
	// ContentHash is the xxhash64 of the normalized page text, used for
	// duplicate content detection
	ContentHash string `json:"contentHash,omitempty"`
	// Analysis is the structural page summary
	Analysis PageAnalysis `json:"analysis"`
}

// ExtractStats reports counts from a single extraction pass
type ExtractStats struct {
	// TotalAnchors is the number of href-carrying anchors seen
	TotalAnchors int `json:"totalAnchors"`
	// Skipped counts anchors discarded by scheme, safety or nofollow rules
	Skipped int `json:"skipped"`
	// Deduplicated counts anchors dropped as within-page duplicates
	Deduplicated int `json:"deduplicated"`
	// Capped counts links dropped by the per-page cap
	Capped int `json:"capped"`
}

// ExtractResult is the output of one link-extraction pass over a page
type ExtractResult struct {
	Links []LinkInfo   `json:"links"`
	Page  PageInfo     `json:"pageInfo"`
	Stats ExtractStats `json:"stats"`
}

// Issue severity levels for SEO findings
const (
	IssueCritical = "critical"
	IssueMajor    = "major"
	IssueWarning  = "warning"
	IssueMinor    = "minor"
)

// Issue is a single SEO finding on a page
type Issue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SEOMetrics holds the raw measurements behind an SEO score
type SEOMetrics struct {
	Title struct {
		Text   string `json:"text"`
		Length int    `json:"length"`
	} `json:"title"`
	MetaDescription struct {
		Text   string `json:"text"`
		Length int    `json:"length"`
	} `json:"metaDescription"`
	Headings struct {
		H1 int `json:"h1"`
		H2 int `json:"h2"`
		H3 int `json:"h3"`
	} `json:"headings"`
	Images struct {
		Total      int `json:"total"`
		MissingAlt int `json:"missingAlt"`
	} `json:"images"`
	Technical struct {
		HTTPS          bool   `json:"https"`
		Canonical      string `json:"canonical,omitempty"`
		ResponseTimeMs int64  `json:"responseTimeMs"`
	} `json:"technical"`
	Content struct {
		WordCount int `json:"wordCount"`
	} `json:"content"`
}

// SEOReport is the scored outcome of analyzing one HTML page
type SEOReport struct {
	URL     string     `json:"url"`
	Score   int        `json:"score"`
	Grade   string     `json:"grade"`
	Issues  []Issue    `json:"issues"`
	Metrics SEOMetrics `json:"metrics"`
	// Err carries a partial-failure message; the report is still usable
	Err string `json:"error,omitempty"`
}

// Progress is a monotonic snapshot of scan completion
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// NewProgress builds a progress snapshot with a rounded percentage
func NewProgress(current, total int) Progress {
	p := Progress{Current: current, Total: total}
	if total > 0 {
		p.Percentage = (current*100 + total/2) / total
		if p.Percentage > 100 {
			p.Percentage = 100
		}
	}
	return p
}

// DiscoveredLink describes a URL found during a scan, before or after its check
type DiscoveredLink struct {
	// URL is the normalized target URL
	URL string `json:"url"`
	// SourceURL is the visited page the URL was found on, empty for the seed
	SourceURL string `json:"sourceUrl,omitempty"`
	// IsInternal indicates the URL shares the crawl origin
	IsInternal bool `json:"isInternal"`
	// Depth is the BFS depth the URL was discovered at
	Depth int `json:"depth"`
	// LinkText is the anchor text the URL was discovered under
	LinkText string `json:"linkText,omitempty"`
}

// BrokenLink records a link whose final check concluded it is not working
type BrokenLink struct {
	URL        string `json:"url"`
	SourceURL  string `json:"sourceUrl,omitempty"`
	StatusCode int    `json:"statusCode"`
	ErrorType  string `json:"errorType"`
	LinkText   string `json:"linkText,omitempty"`
}
