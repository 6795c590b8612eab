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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// goodPage is a page that should score an A: proper title length, meta
// description, single H1, alt text, canonical link and enough words.
func goodPage() string {
	words := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 40)
	return fmt.Sprintf(`<html><head>
		<title>A Well Sized Title For This Particular Page</title>
		<meta name="description" content="A reasonable meta description for a page that does things properly.">
		<link rel="canonical" href="https://example.com/good">
	</head><body>
		<h1>The Single Heading</h1>
		<img src="a.png" alt="a picture">
		<p>%s</p>
	</body></html>`, words)
}

func TestAnalyzeSEOGoodPage(t *testing.T) {
	report := AnalyzeSEO("https://example.com/good", []byte(goodPage()), 200*time.Millisecond)

	assert.Equal(t, 100, report.Score)
	assert.Equal(t, "A", report.Grade)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 1, report.Metrics.Headings.H1)
	assert.True(t, report.Metrics.Technical.HTTPS)
	assert.GreaterOrEqual(t, report.Metrics.Content.WordCount, 200)
}

func TestAnalyzeSEOMissingTitleIsCritical(t *testing.T) {
	html := `<html><head></head><body><h1>H</h1></body></html>`

	report := AnalyzeSEO("https://example.com/", []byte(html), 100*time.Millisecond)

	found := false
	for _, issue := range report.Issues {
		if issue.Type == IssueCritical {
			found = true
		}
	}
	assert.True(t, found, "missing title should raise a critical issue")
	assert.LessOrEqual(t, report.Score, 80)
}

func TestAnalyzeSEOTitleLengthDeductions(t *testing.T) {
	build := func(title string) []byte {
		return []byte(fmt.Sprintf(`<html><head><title>%s</title></head><body></body></html>`, title))
	}

	long := AnalyzeSEO("https://example.com/", build(strings.Repeat("x", 70)), 0)
	short := AnalyzeSEO("https://example.com/", build("short"), 0)
	missing := AnalyzeSEO("https://example.com/", build(""), 0)

	// long: -10, short: -5, missing: -20; remaining deductions identical
	assert.Equal(t, short.Score-5, long.Score)
	assert.Less(t, missing.Score, long.Score)
	assert.Less(t, missing.Score, short.Score)
}

func TestAnalyzeSEODeductionTable(t *testing.T) {
	// A page failing nearly every rule over plain HTTP
	html := `<html><head></head><body>
		<h1>one</h1><h1>two</h1>
		<img src="a.png"><img src="b.png">
		<p>thin</p>
	</body></html>`

	report := AnalyzeSEO("http://example.com/", []byte(html), 4*time.Second)

	// no title -20, no meta -15, multiple h1 -10, alt coverage -10,
	// no https -10, no canonical -5, slow -10, thin content -10
	assert.Equal(t, 10, report.Score)
	assert.Equal(t, "F", report.Grade)
	assert.Len(t, report.Issues, 8)

	bySeverity := map[string]int{}
	for _, issue := range report.Issues {
		bySeverity[issue.Type]++
	}
	// critical: missing title; major: missing meta + plain http;
	// warning: multiple h1, alt coverage, slow, thin content; minor: canonical
	assert.Equal(t, 1, bySeverity[IssueCritical])
	assert.Equal(t, 2, bySeverity[IssueMajor])
	assert.Equal(t, 4, bySeverity[IssueWarning])
	assert.Equal(t, 1, bySeverity[IssueMinor])
}

func TestAnalyzeSEOShortTitleIsWarning(t *testing.T) {
	html := `<html><head><title>tiny</title></head><body></body></html>`

	report := AnalyzeSEO("https://example.com/", []byte(html), 0)

	found := false
	for _, issue := range report.Issues {
		if issue.Type == IssueWarning && strings.Contains(issue.Message, "shorter than 30") {
			found = true
		}
	}
	assert.True(t, found, "short title should raise a warning issue")
}

func TestAnalyzeSEOOpenGraphDescriptionFallback(t *testing.T) {
	html := `<html><head>
		<title>A Well Sized Title For This Particular Page</title>
		<meta property="og:description" content="Shared description from the social graph tags.">
	</head><body></body></html>`

	report := AnalyzeSEO("https://example.com/", []byte(html), 0)

	assert.Equal(t, "Shared description from the social graph tags.", report.Metrics.MetaDescription.Text)
	for _, issue := range report.Issues {
		assert.NotContains(t, issue.Message, "no meta description")
	}
}

func TestAnalyzeSEOScoreNeverNegative(t *testing.T) {
	report := AnalyzeSEO("http://example.com/", []byte("<html><body></body></html>"), 5*time.Second)

	assert.GreaterOrEqual(t, report.Score, 0)
	assert.Equal(t, "F", report.Grade)
}

func TestAnalyzeSEOAltCoverageThreshold(t *testing.T) {
	build := func(withAlt, withoutAlt int) []byte {
		var sb strings.Builder
		sb.WriteString("<html><body>")
		for i := 0; i < withAlt; i++ {
			sb.WriteString(`<img src="a.png" alt="described">`)
		}
		for i := 0; i < withoutAlt; i++ {
			sb.WriteString(`<img src="b.png">`)
		}
		sb.WriteString("</body></html>")
		return []byte(sb.String())
	}

	covered := AnalyzeSEO("https://example.com/", build(4, 1), 0)   // 80%, no deduction
	uncovered := AnalyzeSEO("https://example.com/", build(3, 2), 0) // 60%, deducted

	assert.Equal(t, covered.Score-10, uncovered.Score)
	assert.Equal(t, 2, uncovered.Metrics.Images.MissingAlt)
}

func TestAnalyzeSEOGrades(t *testing.T) {
	assert.Equal(t, "A", gradeForScore(95))
	assert.Equal(t, "A", gradeForScore(90))
	assert.Equal(t, "B", gradeForScore(85))
	assert.Equal(t, "C", gradeForScore(72))
	assert.Equal(t, "D", gradeForScore(60))
	assert.Equal(t, "F", gradeForScore(59))
	assert.Equal(t, "F", gradeForScore(0))
}

func TestAnalyzeSEOTruncatesHugeBodies(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<html><head><title>A Well Sized Title For This Particular Page</title></head><body><p>`)
	sb.WriteString(strings.Repeat("padding words here ", 20000))
	sb.WriteString("</p></body></html>")

	report := AnalyzeSEO("https://example.com/", []byte(sb.String()), 100*time.Millisecond)

	// Analysis still succeeds and sees the head metadata
	assert.Empty(t, report.Err)
	assert.Equal(t, "A Well Sized Title For This Particular Page", report.Metrics.Title.Text)
}

func TestAnalyzeSEOWordCountIgnoresScripts(t *testing.T) {
	html := `<html><body>
		<script>var a = "one two three four five six seven eight nine ten";</script>
		<p>visible words only</p>
	</body></html>`

	report := AnalyzeSEO("https://example.com/", []byte(html), 0)

	assert.Equal(t, 3, report.Metrics.Content.WordCount)
}
