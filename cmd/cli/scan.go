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

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentberlin/linkpatrol"
	"github.com/agentberlin/linkpatrol/internal/app"
	"github.com/agentberlin/linkpatrol/internal/store"
)

// scanFlags holds all the flags for the scan command
type scanFlags struct {
	depth        int
	external     bool
	seo          bool
	sitemap      bool
	mode         string
	timeout      int
	dbPath       string
	allowPrivate bool
	quiet        bool
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)

	var flags scanFlags
	fs.IntVar(&flags.depth, "depth", 2, "Maximum crawl depth (1-5)")
	fs.IntVar(&flags.depth, "d", 2, "Maximum crawl depth (shorthand)")
	fs.BoolVar(&flags.external, "external", false, "Check external links too")
	fs.BoolVar(&flags.seo, "seo", false, "Run SEO analysis on crawled pages")
	fs.BoolVar(&flags.sitemap, "sitemap", false, "Seed the crawl from /sitemap.xml")
	fs.StringVar(&flags.mode, "mode", "auto", "Crawl mode: auto, content_pages, discovered_links")
	fs.IntVar(&flags.timeout, "timeout", 10000, "Per-request timeout in milliseconds (1000-30000)")
	fs.StringVar(&flags.dbPath, "db", "", "Path to the SQLite database (default ~/.linkpatrol/linkpatrol.db)")
	fs.BoolVar(&flags.allowPrivate, "allow-private-hosts", false, "Disable the URL safety gate, for scanning internal sites")
	fs.BoolVar(&flags.quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&flags.quiet, "q", false, "Suppress progress output (shorthand)")

	fs.Usage = func() {
		fmt.Println(`Usage: linkpatrol scan <url> [flags]

Scan a website for broken links, starting from the given URL.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Basic scan
  linkpatrol scan https://example.com

  # Deep scan with SEO analysis
  linkpatrol scan https://example.com --depth 4 --seo

  # Include external links
  linkpatrol scan https://example.com --external`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("a URL to scan is required")
	}
	seedURL := fs.Arg(0)

	if flags.depth < 1 || flags.depth > 5 {
		return fmt.Errorf("invalid depth: %d (must be 1-5)", flags.depth)
	}
	if flags.timeout < 1000 || flags.timeout > 30000 {
		return fmt.Errorf("invalid timeout: %d (must be 1000-30000 ms)", flags.timeout)
	}
	mode := linkpatrol.CrawlMode(flags.mode)
	if mode != linkpatrol.CrawlModeAuto && mode != linkpatrol.CrawlModeContentPages && mode != linkpatrol.CrawlModeDiscoveredLinks {
		return fmt.Errorf("invalid mode: %s (must be auto, content_pages or discovered_links)", flags.mode)
	}

	coreApp, err := openApp(flags.dbPath)
	if err != nil {
		return err
	}
	if flags.allowPrivate {
		coreApp.AllowPrivateHosts()
	}

	settings := linkpatrol.DefaultSettings()
	settings.MaxDepth = flags.depth
	settings.IncludeExternal = flags.external
	settings.EnableSEO = flags.seo
	settings.UseSitemap = flags.sitemap
	settings.CrawlMode = mode
	settings.Timeout = time.Duration(flags.timeout) * time.Millisecond

	if !flags.quiet {
		fmt.Printf("Starting scan for %s...\n", seedURL)
	}

	job, err := coreApp.StartScan(app.ScanRequest{URL: seedURL, Settings: settings})
	if err != nil {
		return fmt.Errorf("failed to start scan: %v", err)
	}

	if !flags.quiet {
		fmt.Printf("Job ID: %s\n\n", job.ID)
	}

	// Stop the scan on Ctrl-C; the job is marked stopped and partial
	// results stay queryable
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping scan...")
		if err := coreApp.StopScan(job.ID, ""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}()

	final, err := waitForScan(coreApp, job.ID, flags.quiet)
	if err != nil {
		return err
	}

	if !flags.quiet {
		fmt.Printf("\nScan %s.\n\n", final.Status)
	}
	if final.Status == store.JobStatusFailed {
		return fmt.Errorf("scan failed: %s", final.Error)
	}

	return printScanReport(coreApp, final, flags.seo)
}

// waitForScan polls the job until it reaches a terminal status, printing
// progress along the way
func waitForScan(coreApp *app.App, jobID string, quiet bool) (*store.Job, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastLine string
	for range ticker.C {
		job, err := coreApp.GetJob(jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to read job: %v", err)
		}

		if !quiet {
			line := fmt.Sprintf("Checked %d of %d links (%d%%)", job.Current, job.Total, job.Percentage)
			if line != lastLine {
				fmt.Printf("\r%-60s", line)
				lastLine = line
			}
		}

		switch job.Status {
		case store.JobStatusCompleted, store.JobStatusFailed, store.JobStatusStopped:
			if !quiet {
				fmt.Println()
			}
			return job, nil
		}
	}
	return nil, fmt.Errorf("poll loop exited unexpectedly")
}

// printScanReport prints the summary and the broken-link table
func printScanReport(coreApp *app.App, job *store.Job, withSEO bool) error {
	summary, err := coreApp.Summary(job.ID)
	if err != nil {
		return fmt.Errorf("failed to summarize scan: %v", err)
	}

	fmt.Printf("Links discovered: %d (internal %d, external %d)\n", summary.TotalLinks, summary.InternalLinks, summary.ExternalLinks)
	fmt.Printf("Links checked:    %d\n", summary.CheckedLinks)
	fmt.Printf("Broken links:     %d\n", summary.BrokenLinks)

	if summary.BrokenLinks > 0 {
		broken, err := coreApp.ListLinks(job.ID, store.LinkFilter{Broken: true, Limit: 1000})
		if err != nil {
			return fmt.Errorf("failed to list broken links: %v", err)
		}

		fmt.Printf("\n%-50s %-8s %-18s %-50s\n", "URL", "Status", "Error", "Found on")
		fmt.Println("----------------------------------------------------------------------------------------------------------------------------")
		for _, link := range broken {
			status := "-"
			if link.StatusCode > 0 {
				status = fmt.Sprintf("%d", link.StatusCode)
			}
			fmt.Printf("%-50s %-8s %-18s %-50s\n", truncate(link.URL, 50), status, truncate(link.ErrorType, 18), truncate(link.SourceURL, 50))
		}
	}

	if withSEO {
		records, err := coreApp.SeoRecords(job.ID)
		if err != nil {
			return fmt.Errorf("failed to list SEO records: %v", err)
		}
		if len(records) > 0 {
			fmt.Printf("\n%-60s %-7s %-6s\n", "Page", "Score", "Grade")
			fmt.Println("---------------------------------------------------------------------------")
			for _, record := range records {
				fmt.Printf("%-60s %-7d %-6s\n", truncate(record.URL, 60), record.Score, record.Grade)
			}
		}
	}

	return nil
}

// openApp initializes the store and app shared by the CLI commands
func openApp(dbPath string) (*app.App, error) {
	var st *store.Store
	var err error
	if dbPath != "" {
		st, err = store.NewStoreWithPath(dbPath)
	} else {
		st, err = store.NewStore()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}
	return app.New(st), nil
}

// truncate truncates a string to the specified length
func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
