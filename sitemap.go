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
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
)

// sitemapMaxURLs caps how many seed URLs one sitemap contributes
const sitemapMaxURLs = 500

// SitemapReader discovers seed URLs from a site's /sitemap.xml. Sitemap
// indexes are followed one level deep. Failures are silent: sitemaps are an
// optional discovery aid, never a requirement.
type SitemapReader struct {
	client            *http.Client
	userAgent         string
	allowPrivateHosts bool
}

// NewSitemapReader creates a reader identifying itself with the given
// User-Agent string
func NewSitemapReader(userAgent string, allowPrivateHosts bool) *SitemapReader {
	return &SitemapReader{
		client:            &http.Client{Timeout: 10 * time.Second},
		userAgent:         userAgent,
		allowPrivateHosts: allowPrivateHosts,
	}
}

// Discover fetches /sitemap.xml from the base URL's origin and returns the
// internal page URLs it lists, normalized and capped at 500
func (s *SitemapReader) Discover(ctx context.Context, baseURL string) []string {
	parsed, err := urlParser.Parse(baseURL)
	if err != nil {
		return nil
	}
	origin := strings.ToLower(parsed.Scheme()) + "://" + parsed.Host()

	urls, nested := s.readSitemap(ctx, origin+"/sitemap.xml")

	// Follow nested sitemap indexes one level deep
	for _, sitemapURL := range nested {
		if len(urls) >= sitemapMaxURLs {
			break
		}
		if !IsInternalURL(sitemapURL, baseURL) {
			continue
		}
		more, _ := s.readSitemap(ctx, sitemapURL)
		urls = append(urls, more...)
	}

	seen := make(map[string]bool)
	var seeds []string
	for _, raw := range urls {
		if len(seeds) >= sitemapMaxURLs {
			break
		}
		normalized, err := NormalizeURL(raw)
		if err != nil || !IsInternalURL(normalized, baseURL) {
			continue
		}
		if !s.allowPrivateHosts {
			if safe, _ := IsSafeURL(normalized); !safe {
				continue
			}
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		seeds = append(seeds, normalized)
	}
	return seeds
}

// readSitemap fetches and parses one sitemap document, returning the page
// URLs and any nested sitemap locations it lists
func (s *SitemapReader) readSitemap(ctx context.Context, sitemapURL string) (pages []string, nested []string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, nil
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var reader io.Reader = io.LimitReader(resp.Body, maxBodySize)
	if strings.HasSuffix(strings.ToLower(sitemapURL), ".gz") ||
		strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "gzip") {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil
		}
		defer gz.Close()
		reader = gz
	}

	doc, err := xmlquery.Parse(reader)
	if err != nil {
		return nil, nil
	}

	for _, node := range xmlquery.Find(doc, "//urlset/url/loc") {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			pages = append(pages, loc)
		}
	}
	for _, node := range xmlquery.Find(doc, "//sitemapindex/sitemap/loc") {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			nested = append(nested, loc)
		}
	}
	return pages, nested
}
