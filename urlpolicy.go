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
	"net/netip"
	"net/url"
	"regexp"
	"sort"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

// urlParser canonicalizes URLs the way browsers do (lowercased scheme and
// host, default ports stripped, paths percent-encoded)
var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// URL categories assigned by ClassifyURL
const (
	CategoryPages      = "pages"
	CategoryWithParams = "withParams"
	CategoryPagination = "pagination"
	CategoryDates      = "dates"
	CategoryMedia      = "media"
	CategoryAdmin      = "admin"
	CategoryAPI        = "api"
	CategoryOther      = "other"
)

// assetExtensions are file extensions the scanner treats as non-page assets
var assetExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico", ".bmp",
	".zip", ".gz", ".tar", ".rar", ".7z",
	".mp4", ".webm", ".avi", ".mov", ".mp3", ".wav", ".ogg", ".flac",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	".css", ".js", ".mjs", ".pdf",
}

// metadataHosts are cloud metadata endpoints that must never be fetched
var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"metadata.google.internal": true,
	"metadata.azure.com":       true,
}

// suspiciousTLDs are free TLDs with a high abuse rate, rejected outright
var suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf"}

var datePathRe = regexp.MustCompile(`/(19|20)\d{2}(/\d{1,2}(/\d{1,2})?)?(/|$)`)

// NormalizeURL returns the canonical form of a URL: lowercased scheme and
// host, fragment stripped, trailing slash removed on non-root paths and
// query parameters sorted lexicographically by key. The result is stable
// under repeated normalization.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := urlParser.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	// Re-parse the canonical href with net/url to rework query and path.
	// The whatwg parser has already lowercased scheme/host and stripped
	// default ports.
	u, err := url.Parse(parsed.Href(true))
	if err != nil {
		return "", err
	}

	u.Fragment = ""

	// Drop the trailing slash on non-root paths
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	// Sort query parameters by key for a stable canonical form
	if u.RawQuery != "" {
		values, err := url.ParseQuery(u.RawQuery)
		if err == nil {
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var parts []string
			for _, k := range keys {
				vs := values[k]
				sort.Strings(vs)
				for _, v := range vs {
					if v == "" {
						parts = append(parts, url.QueryEscape(k))
						continue
					}
					parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
				}
			}
			u.RawQuery = strings.Join(parts, "&")
		}
	}

	return u.String(), nil
}

// IsValidURL reports whether a URL parses and uses an HTTP(S) scheme
func IsValidURL(rawURL string) bool {
	parsed, err := urlParser.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme())
	return scheme == "http" || scheme == "https"
}

// IsInternalURL reports whether two URLs share a hostname (case-insensitive)
func IsInternalURL(rawURL, baseURL string) bool {
	target, err := urlParser.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := urlParser.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(target.Hostname(), base.Hostname())
}

// ShouldCrawlURL reports whether a URL is worth fetching as a page. It
// rejects non-HTTP protocols, asset file extensions and common admin paths.
func ShouldCrawlURL(rawURL string) bool {
	if !IsValidURL(rawURL) {
		return false
	}
	parsed, err := urlParser.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(parsed.Pathname())

	for _, ext := range assetExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	for _, prefix := range []string{"/admin", "/wp-admin", "/api", "/private"} {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}

	return true
}

// IsSafeURL is the SSRF gate. It rejects URLs that resolve to loopback,
// private or link-local address space, cloud metadata hosts, internal
// hostname suffixes, embedded credentials and suspicious TLDs. The reason
// string is empty when the URL is safe. This check MUST run before any
// network I/O touches the URL.
func IsSafeURL(rawURL string) (bool, string) {
	parsed, err := urlParser.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false, "URL does not parse"
	}

	scheme := strings.ToLower(parsed.Scheme())
	if scheme != "http" && scheme != "https" {
		return false, "non-HTTP scheme: " + scheme
	}

	if parsed.Username() != "" || parsed.Password() != "" {
		return false, "URL embeds credentials"
	}

	host := strings.ToLower(strings.Trim(parsed.Hostname(), "[]"))
	if host == "" {
		return false, "empty hostname"
	}

	switch host {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return false, "loopback hostname"
	}

	if metadataHosts[host] {
		return false, "cloud metadata host"
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		switch {
		case addr.IsLoopback():
			return false, "loopback address"
		case addr.IsPrivate():
			return false, "private address range"
		case addr.IsLinkLocalUnicast():
			return false, "link-local address range"
		case addr.IsUnspecified():
			return false, "unspecified address"
		}
	}

	if strings.HasSuffix(host, ".internal") || strings.HasSuffix(host, ".local") {
		return false, "internal hostname suffix"
	}

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			return false, "suspicious TLD"
		}
	}

	return true, ""
}

// ClassifyURL categorizes a URL by its pattern alone, without fetching it.
// Categories are checked in order of specificity: admin, api, media, dates,
// pagination, withParams, pages.
func ClassifyURL(rawURL string) string {
	parsed, err := urlParser.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return CategoryOther
	}

	path := strings.ToLower(parsed.Pathname())
	query := parsed.Query()

	for _, prefix := range []string{"/admin", "/wp-admin", "/wp-content", "/dashboard", "/login", "/auth"} {
		if strings.HasPrefix(path, prefix) {
			return CategoryAdmin
		}
	}

	if strings.Contains(path, "/api/") || strings.Contains(path, "/rest/") ||
		strings.Contains(path, "/graphql") || strings.Contains(path, "/webhook") ||
		strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".xml") {
		return CategoryAPI
	}

	for _, ext := range assetExtensions {
		if strings.HasSuffix(path, ext) {
			return CategoryMedia
		}
	}

	if datePathRe.MatchString(path) {
		return CategoryDates
	}

	if strings.Contains(path, "/page/") || strings.Contains(path, "/feed") ||
		strings.Contains(path, "/rss") || hasQueryParam(query, "page") ||
		hasQueryParam(query, "p") || pathEndsInInteger(path) {
		return CategoryPagination
	}

	if countQueryParams(query) > 3 {
		return CategoryWithParams
	}

	return CategoryPages
}

// paginationParams are query keys that indicate list navigation rather than content
var paginationParams = map[string]bool{
	"page": true, "sort": true, "filter": true, "view": true,
	"limit": true, "offset": true,
}

// IsContentPage reports whether a URL likely serves primary editorial
// content. Pages with a few benign query parameters still qualify;
// admin, api, media, pagination and date-archive URLs never do.
func IsContentPage(rawURL string) bool {
	switch ClassifyURL(rawURL) {
	case CategoryPages:
		return true
	case CategoryWithParams:
		parsed, err := urlParser.Parse(rawURL)
		if err != nil {
			return false
		}
		values, err := url.ParseQuery(strings.TrimPrefix(parsed.Query(), "?"))
		if err != nil || len(values) > 3 {
			return false
		}
		for key := range values {
			if paginationParams[strings.ToLower(key)] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func hasQueryParam(query, key string) bool {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return false
	}
	_, ok := values[key]
	return ok
}

func countQueryParams(query string) int {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return 0
	}
	return len(values)
}

func pathEndsInInteger(path string) bool {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return false
	}
	segment := trimmed[idx+1:]
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(segment) > 0
}
