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

// Package testutil provides the shared fixture site used by scan tests: a
// small website with working pages, broken links, a robots.txt, a sitemap
// and pages with known SEO problems.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"
)

// SiteOption tweaks the fixture site before it starts
type SiteOption func(*siteConfig)

type siteConfig struct {
	robotsBody  string
	withSitemap bool
	slowDelay   time.Duration
}

// WithRobots serves the given robots.txt body instead of the default
// allow-all file
func WithRobots(body string) SiteOption {
	return func(c *siteConfig) { c.robotsBody = body }
}

// WithSitemap serves a /sitemap.xml listing the article pages
func WithSitemap() SiteOption {
	return func(c *siteConfig) { c.withSitemap = true }
}

// WithSlowDelay sets how long /slow takes to respond
func WithSlowDelay(d time.Duration) SiteOption {
	return func(c *siteConfig) { c.slowDelay = d }
}

// NewSiteServer starts a fixture website for scan tests.
//
// Layout:
//
//	/                 seed page linking to /good, /articles/one, /missing,
//	                  /nav-page (in nav) and an external host
//	/good             working page, no outbound links
//	/articles/one     content page linking to /articles/two and /missing
//	/articles/two     content page, well-formed for SEO
//	/thin             page with known SEO problems
//	/nav-page         page reachable from navigation
//	/missing          404
//	/gone             410
//	/flaky            503 on the first two hits, then 200
//	/slow             sleeps before responding
//	/robots.txt       allow-all unless overridden
func NewSiteServer(opts ...SiteOption) *httptest.Server {
	config := &siteConfig{
		robotsBody: "User-agent: *\nDisallow:\n",
		slowDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	flakyHits := 0
	mux := http.NewServeMux()

	page := func(title, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, "<html><head><title>%s</title></head><body>%s</body></html>", title, body)
		}
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		page("Seed Page", `
			<nav><a href="/nav-page">Navigation</a></nav>
			<main>
				<p><a href="/good">A perfectly good page</a></p>
				<p><a href="/articles/one">The first article on this site</a></p>
				<p><a href="/missing">A link that goes nowhere useful</a></p>
				<p><a href="https://external.invalid/away">An external reference</a></p>
			</main>`)(w, r)
	})

	mux.HandleFunc("/good", page("Good Page", "<main><p>Nothing but working content here.</p></main>"))

	mux.HandleFunc("/articles/one", page("Article One Has A Reasonable Title", `
		<main>
			<h1>Article One</h1>
			<p><a href="/articles/two">Continue to the second article</a></p>
			<p><a href="/missing">A stale reference</a></p>
			<p>`+strings.Repeat("substantial article text ", 80)+`</p>
		</main>`))

	mux.HandleFunc("/articles/two", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head>
			<title>Article Two Carries A Well Sized Title Here</title>
			<meta name="description" content="The second article, fully described for search engines.">
			<link rel="canonical" href="/articles/two">
		</head><body><main><h1>Article Two</h1><p>%s</p></main></body></html>`,
			strings.Repeat("more substantial article text ", 60))
	})

	mux.HandleFunc("/thin", page("", `<h1>one</h1><h1>two</h1><img src="x.png"><p>thin</p>`))

	mux.HandleFunc("/nav-page", page("Navigation Target", "<p>Linked from the nav bar.</p>"))

	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		flakyHits++
		if flakyHits <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(config.slowDelay)
		page("Slow Page", "<p>finally</p>")(w, r)
	})

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, config.robotsBody)
	})

	var srv *httptest.Server
	if config.withSitemap {
		mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/articles/one</loc></url>
  <url><loc>%s/articles/two</loc></url>
</urlset>`, srv.URL, srv.URL)
		})
	}

	srv = httptest.NewServer(mux)
	return srv
}
