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
	"time"
)

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)

	var limit int
	var dbPath string
	fs.IntVar(&limit, "limit", 20, "Maximum number of scans to list")
	fs.StringVar(&dbPath, "db", "", "Path to the SQLite database (default ~/.linkpatrol/linkpatrol.db)")

	fs.Usage = func() {
		fmt.Println(`Usage: linkpatrol list [flags]

List past scans, newest first.

Flags:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	coreApp, err := openApp(dbPath)
	if err != nil {
		return err
	}

	jobs, err := coreApp.Store().ListJobs(limit)
	if err != nil {
		return fmt.Errorf("failed to list scans: %v", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No scans found.")
		return nil
	}

	fmt.Printf("%-38s %-20s %-10s %-10s %-8s %s\n", "Job ID", "Date", "Mode", "Status", "Links", "Seed URL")
	fmt.Println("--------------------------------------------------------------------------------------------------------------")
	for _, job := range jobs {
		created := time.Unix(job.CreatedAt, 0).Format("2006-01-02 15:04")
		fmt.Printf("%-38s %-20s %-10s %-10s %-8d %s\n", job.ID, created, job.Mode, job.Status, job.Total, truncate(job.SeedURL, 40))
	}

	return nil
}
