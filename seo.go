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
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// seoMaxBodyBytes truncates very large pages before analysis; the heuristics
// only need the head and the leading content
const seoMaxBodyBytes = 50 * 1024

// AnalyzeSEO scores one fetched HTML page against on-page SEO heuristics.
// The report always carries the measured metrics; parse failures surface in
// the report's Err field rather than failing the scan.
func AnalyzeSEO(pageURL string, body []byte, responseTime time.Duration) *SEOReport {
	report := &SEOReport{
		URL:    pageURL,
		Score:  100,
		Issues: []Issue{},
	}

	if len(body) > seoMaxBodyBytes {
		body = body[:seoMaxBodyBytes]
	}

	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		report.Err = fmt.Sprintf("failed to parse HTML: %v", err)
		report.Grade = gradeForScore(0)
		report.Score = 0
		return report
	}

	deduct := func(points int, severity, message string) {
		report.Score -= points
		report.Issues = append(report.Issues, Issue{Type: severity, Message: message})
	}

	// Title
	title := ""
	if node := htmlquery.FindOne(doc, "//title"); node != nil {
		title = strings.TrimSpace(htmlquery.InnerText(node))
	}
	report.Metrics.Title.Text = title
	report.Metrics.Title.Length = len([]rune(title))
	switch {
	case title == "":
		deduct(20, IssueCritical, "page has no title")
	case report.Metrics.Title.Length > 60:
		deduct(10, IssueWarning, "title exceeds 60 characters")
	case report.Metrics.Title.Length < 30:
		deduct(5, IssueWarning, "title is shorter than 30 characters")
	}

	// Meta description, falling back to og:description when absent
	metaDesc := ""
	if node := htmlquery.FindOne(doc, `//meta[@name="description"]`); node != nil {
		metaDesc = strings.TrimSpace(htmlquery.SelectAttr(node, "content"))
	}
	if metaDesc == "" {
		if node := htmlquery.FindOne(doc, `//meta[@property="og:description"]`); node != nil {
			metaDesc = strings.TrimSpace(htmlquery.SelectAttr(node, "content"))
		}
	}
	report.Metrics.MetaDescription.Text = metaDesc
	report.Metrics.MetaDescription.Length = len([]rune(metaDesc))
	switch {
	case metaDesc == "":
		deduct(15, IssueMajor, "page has no meta description")
	case report.Metrics.MetaDescription.Length > 160:
		deduct(8, IssueWarning, "meta description exceeds 160 characters")
	}

	// Headings
	h1Count := len(htmlquery.Find(doc, "//h1"))
	report.Metrics.Headings.H1 = h1Count
	report.Metrics.Headings.H2 = len(htmlquery.Find(doc, "//h2"))
	report.Metrics.Headings.H3 = len(htmlquery.Find(doc, "//h3"))
	switch {
	case h1Count == 0:
		deduct(15, IssueMajor, "page has no H1 heading")
	case h1Count > 1:
		deduct(10, IssueWarning, fmt.Sprintf("page has %d H1 headings", h1Count))
	}

	// Image alt coverage
	images := htmlquery.Find(doc, "//img")
	missingAlt := 0
	for _, img := range images {
		if strings.TrimSpace(htmlquery.SelectAttr(img, "alt")) == "" {
			missingAlt++
		}
	}
	report.Metrics.Images.Total = len(images)
	report.Metrics.Images.MissingAlt = missingAlt
	if len(images) > 0 {
		coverage := float64(len(images)-missingAlt) / float64(len(images))
		if coverage < 0.8 {
			deduct(10, IssueWarning, fmt.Sprintf("%d of %d images missing alt text", missingAlt, len(images)))
		}
	}

	// Technical
	report.Metrics.Technical.HTTPS = strings.HasPrefix(strings.ToLower(pageURL), "https://")
	if !report.Metrics.Technical.HTTPS {
		deduct(10, IssueMajor, "page is not served over HTTPS")
	}

	canonical := ""
	if node := htmlquery.FindOne(doc, `//link[@rel="canonical"]`); node != nil {
		canonical = strings.TrimSpace(htmlquery.SelectAttr(node, "href"))
	}
	report.Metrics.Technical.Canonical = canonical
	if canonical == "" {
		deduct(5, IssueMinor, "page has no canonical link")
	}

	report.Metrics.Technical.ResponseTimeMs = responseTime.Milliseconds()
	if responseTime > 3*time.Second {
		deduct(10, IssueWarning, "response time exceeds 3 seconds")
	}

	// Content volume
	wordCount := len(strings.Fields(visibleText(doc)))
	report.Metrics.Content.WordCount = wordCount
	if wordCount < 200 {
		deduct(10, IssueWarning, "page has fewer than 200 words of content")
	}

	if report.Score < 0 {
		report.Score = 0
	}
	report.Grade = gradeForScore(report.Score)
	return report
}

// gradeForScore maps a 0..100 score onto a letter grade
func gradeForScore(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// visibleText walks the parsed document collecting text nodes while
// skipping script and style subtrees
func visibleText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	body := htmlquery.FindOne(doc, "//body")
	if body == nil {
		body = doc
	}
	walk(body)
	return normalizeWhitespace(sb.String())
}
