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
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// skippedSchemes are href prefixes that never produce a checkable link
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "ftp:", "file:"}

// commonNavWords is the fixed anchor-text vocabulary of boilerplate
// navigation links
var commonNavWords = map[string]bool{
	"home": true, "about": true, "about us": true, "contact": true,
	"contact us": true, "login": true, "log in": true, "sign in": true,
	"sign up": true, "register": true, "logout": true, "log out": true,
	"menu": true, "search": true, "help": true, "faq": true,
	"terms": true, "privacy": true, "blog": true, "news": true,
	"services": true, "products": true, "pricing": true, "careers": true,
	"support": true, "sitemap": true,
}

// resourceTextWords in anchor text mark links pointing at downloadable assets
var resourceTextWords = []string{"download", "pdf", "file", "document"}

// readMoreHints are anchor texts that advertise an article behind the link
var readMoreHints = []string{"read more", "continue reading", "learn more"}

var (
	contentPathRe  = regexp.MustCompile(`/(blog|article|post|news|guide|tutorial|review)s?(/|$)`)
	contentClassRe = regexp.MustCompile(`post-link|article-link|content-link|entry-link`)
	navClassRe     = regexp.MustCompile(`\b(nav|menu|navigation|navbar|breadcrumb|sidebar)\b`)
)

// ExtractorConfig controls link extraction for one scan
type ExtractorConfig struct {
	// BaseURL is the crawl origin used for internal/external classification
	BaseURL string
	// IncludeExternal keeps cross-origin links instead of skipping them
	IncludeExternal bool
	// MaxLinksPerPage caps emitted links, preferring higher priority
	MaxLinksPerPage int
	// AllowPrivateHosts disables the safety gate on extracted targets
	AllowPrivateHosts bool
}

// Extractor parses HTML pages into outbound links and page metadata.
// An extractor is built once per scan and is safe for concurrent use.
type Extractor struct {
	config ExtractorConfig
}

// NewExtractor creates an extractor for the given crawl origin
func NewExtractor(config ExtractorConfig) *Extractor {
	if config.MaxLinksPerPage <= 0 {
		config.MaxLinksPerPage = 1000
	}
	return &Extractor{config: config}
}

// Extract parses one HTML page, returning its outbound links, page
// metadata and extraction counters. Links are normalized, deduplicated
// within the page and capped at MaxLinksPerPage keeping the highest
// priority entries.
func (e *Extractor) Extract(pageURL string, body []byte, depth int) (*ExtractResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %v", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page URL: %v", err)
	}

	result := &ExtractResult{
		Page: e.extractPageInfo(doc, base, body),
	}

	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		result.Stats.TotalAnchors++

		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			result.Stats.Skipped++
			return
		}
		lowered := strings.ToLower(href)
		for _, scheme := range skippedSchemes {
			if strings.HasPrefix(lowered, scheme) {
				result.Stats.Skipped++
				return
			}
		}

		ref, err := url.Parse(href)
		if err != nil {
			result.Stats.Skipped++
			return
		}
		normalized, err := NormalizeURL(base.ResolveReference(ref).String())
		if err != nil || !IsValidURL(normalized) {
			result.Stats.Skipped++
			return
		}

		if !e.config.AllowPrivateHosts {
			if safe, _ := IsSafeURL(normalized); !safe {
				result.Stats.Skipped++
				return
			}
		}

		isInternal := IsInternalURL(normalized, e.config.BaseURL)
		if !isInternal && !e.config.IncludeExternal {
			result.Stats.Skipped++
			return
		}

		if seen[normalized] {
			result.Stats.Deduplicated++
			return
		}
		seen[normalized] = true

		rel := sel.AttrOr("rel", "")
		nofollow := strings.Contains(strings.ToLower(rel), "nofollow")
		text := cleanText(sel.Text(), 100)
		position := classifyAnchorPosition(sel)
		class := strings.TrimSpace(sel.AttrOr("class", "") + " " + sel.Parent().AttrOr("class", ""))
		linkType := classifyLinkType(normalized, position, text, class)

		result.Links = append(result.Links, LinkInfo{
			URL:         normalized,
			SourceURL:   pageURL,
			Text:        text,
			IsInternal:  isInternal,
			Depth:       depth + 1,
			ShouldCrawl: isInternal && !nofollow && ShouldCrawlURL(normalized),
			LinkType:    linkType,
			Priority:    scoreLinkPriority(normalized, position, text),
			Context:     anchorContext(sel),
			Attributes: LinkAttributes{
				Rel:    rel,
				Target: sel.AttrOr("target", ""),
				Title:  sel.AttrOr("title", ""),
				Class:  sel.AttrOr("class", ""),
				ID:     sel.AttrOr("id", ""),
			},
		})
	})

	if len(result.Links) > e.config.MaxLinksPerPage {
		sort.SliceStable(result.Links, func(i, j int) bool {
			return result.Links[i].Priority > result.Links[j].Priority
		})
		result.Stats.Capped = len(result.Links) - e.config.MaxLinksPerPage
		result.Links = result.Links[:e.config.MaxLinksPerPage]
	}

	return result, nil
}

// extractPageInfo collects page metadata and the structural analysis bundle
func (e *Extractor) extractPageInfo(doc *goquery.Document, base *url.URL, body []byte) PageInfo {
	info := PageInfo{}

	info.Title = cleanText(doc.Find("title").First().Text(), 100)
	if info.Title == "" {
		info.Title = cleanText(doc.Find("h1").First().Text(), 100)
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		info.MetaDescription = cleanText(desc, 200)
	}
	if info.MetaDescription == "" {
		if og, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			info.MetaDescription = cleanText(og, 200)
		}
	}

	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(canonical)); err == nil {
			if normalized, err := NormalizeURL(base.ResolveReference(ref).String()); err == nil {
				info.Canonical = normalized
			}
		}
	}

	info.Lang = doc.Find("html").AttrOr("lang", "")
	if robots, ok := doc.Find(`meta[name="robots"]`).Attr("content"); ok {
		info.RobotsMeta = strings.TrimSpace(robots)
	}

	info.ContentHash = contentHash(doc)

	bodyText := pageText(doc)
	info.Analysis = PageAnalysis{
		WordCount:       len(strings.Fields(bodyText)),
		ParagraphCount:  doc.Find("p").Length(),
		HeadingCount:    doc.Find("h1, h2, h3, h4, h5, h6").Length(),
		LinkCount:       doc.Find("a[href]").Length(),
		ImageCount:      doc.Find("img").Length(),
		HasNav:          doc.Find("nav").Length() > 0,
		HasMainContent:  doc.Find("main, article").Length() > 0,
		HasSchemaMarkup: doc.Find(`script[type="application/ld+json"], [itemscope]`).Length() > 0,
	}

	return info
}

// pageText returns the visible body text with scripts, styles and
// boilerplate chrome removed
func pageText(doc *goquery.Document) string {
	cloned := doc.Find("body").Clone()
	cloned.Find("script, style, nav, header, footer").Remove()
	return normalizeWhitespace(cloned.Text())
}

// contentHash fingerprints the stable page text so near-identical pages can
// be detected across a scan. Navigation chrome and scripts are excluded to
// keep the hash insensitive to per-request noise.
func contentHash(doc *goquery.Document) string {
	text := pageText(doc)
	if text == "" {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

// classifyAnchorPosition walks the anchor's ancestors looking for semantic
// HTML5 containers, ARIA roles and common class/id vocabulary. More specific
// areas (breadcrumbs, pagination) are checked before generic navigation.
func classifyAnchorPosition(sel *goquery.Selection) string {
	current := sel.Parent()
	for current.Length() > 0 {
		nodeName := goquery.NodeName(current)
		role := current.AttrOr("role", "")
		class := current.AttrOr("class", "")
		id := current.AttrOr("id", "")
		attributes := strings.ToLower(nodeName + " " + role + " " + class + " " + id)

		switch {
		case nodeName == "main" || nodeName == "article" || role == "main" || role == "article" ||
			hasClassWord(class, "content") || hasClassWord(class, "post-content"):
			return "content"
		case strings.Contains(attributes, "breadcrumb"):
			return "breadcrumbs"
		case strings.Contains(attributes, "pagination") || strings.Contains(attributes, "pager"):
			return "pagination"
		case nodeName == "nav" || role == "navigation" || strings.Contains(attributes, "nav") ||
			strings.Contains(attributes, "menu") || strings.Contains(attributes, "navbar"):
			return "navigation"
		case nodeName == "header" || role == "banner" || strings.Contains(attributes, "header") ||
			strings.Contains(attributes, "masthead"):
			return "header"
		case nodeName == "footer" || role == "contentinfo" || strings.Contains(attributes, "footer"):
			return "footer"
		case nodeName == "aside" || role == "complementary" || strings.Contains(attributes, "sidebar"):
			return "sidebar"
		}

		current = current.Parent()
	}
	return "unknown"
}

// classifyLinkType maps a target URL, its anchor position, text and class
// vocabulary onto one of the content/navigation/resource/other link types
func classifyLinkType(targetURL, position, text, class string) string {
	lowText := strings.ToLower(strings.TrimSpace(text))
	lowClass := strings.ToLower(class)

	// Asset targets are resources wherever they appear, so they are checked
	// before the short-text navigation heuristic can claim them
	switch ClassifyURL(targetURL) {
	case CategoryMedia, CategoryAPI:
		return LinkTypeResource
	}
	for _, word := range resourceTextWords {
		if strings.Contains(lowText, word) {
			return LinkTypeResource
		}
	}

	switch {
	case isNavigationArea(position),
		navClassRe.MatchString(lowClass),
		commonNavWords[lowText],
		len([]rune(lowText)) < 4:
		return LinkTypeNavigation
	}

	if contentPathRe.MatchString(strings.ToLower(urlPath(targetURL))) {
		return LinkTypeContent
	}
	if contentClassRe.MatchString(lowClass) {
		return LinkTypeContent
	}
	if position == "content" && len([]rune(text)) > 10 {
		return LinkTypeContent
	}

	return LinkTypeOther
}

// isNavigationArea reports whether an anchor position is site chrome rather
// than page content
func isNavigationArea(position string) bool {
	switch position {
	case "navigation", "header", "footer", "sidebar", "breadcrumbs", "pagination":
		return true
	}
	return false
}

// scoreLinkPriority assigns an advisory crawl priority in [1,10] starting
// from a neutral 5
func scoreLinkPriority(targetURL, position, text string) int {
	priority := 5
	lowText := strings.ToLower(strings.TrimSpace(text))
	textLen := len([]rune(text))

	if position == "content" {
		priority += 2
	}
	if textLen > 10 && textLen < 100 {
		priority++
	}
	for _, hint := range readMoreHints {
		if strings.Contains(lowText, hint) {
			priority += 2
			break
		}
	}
	if commonNavWords[lowText] {
		priority -= 2
	}
	if isNavigationArea(position) {
		priority--
	}
	if ClassifyURL(targetURL) == CategoryPages {
		priority += 2
	}

	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}
	return priority
}

// hasClassWord reports whether a space-separated class attribute contains
// the exact class
func hasClassWord(class, want string) bool {
	for _, field := range strings.Fields(strings.ToLower(class)) {
		if field == want {
			return true
		}
	}
	return false
}

// anchorContext extracts the text of the closest semantic parent (p, li,
// td, headings) so results can show the sentence a link appeared in
func anchorContext(sel *goquery.Selection) string {
	semanticTags := map[string]bool{
		"p": true, "li": true, "td": true, "th": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"blockquote": true, "figcaption": true,
	}

	current := sel.Parent()
	for current.Length() > 0 {
		if semanticTags[goquery.NodeName(current)] {
			return cleanText(current.Text(), 150)
		}
		current = current.Parent()
	}
	return ""
}

// cleanText collapses whitespace and truncates to maxLen runes
func cleanText(text string, maxLen int) string {
	cleaned := normalizeWhitespace(text)
	runes := []rune(cleaned)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return cleaned
}

func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
