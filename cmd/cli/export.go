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
	"path/filepath"

	"github.com/agentberlin/linkpatrol/internal/app"
)

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)

	var jobID string
	var brokenOnly bool
	var output string
	var dbPath string
	fs.StringVar(&jobID, "job-id", "", "Job ID to export (required)")
	fs.StringVar(&jobID, "j", "", "Job ID (shorthand)")
	fs.BoolVar(&brokenOnly, "broken", false, "Export only broken links")
	fs.StringVar(&output, "output", ".", "Output directory")
	fs.StringVar(&output, "o", ".", "Output directory (shorthand)")
	fs.StringVar(&dbPath, "db", "", "Path to the SQLite database (default ~/.linkpatrol/linkpatrol.db)")

	fs.Usage = func() {
		fmt.Println(`Usage: linkpatrol export [flags]

Export a scan's discovered links as CSV.

Flags:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if jobID == "" {
		fs.Usage()
		return fmt.Errorf("--job-id is required")
	}

	coreApp, err := openApp(dbPath)
	if err != nil {
		return err
	}

	job, err := coreApp.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %v", err)
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	path := filepath.Join(output, app.ExportFilename(job))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %v", err)
	}
	defer file.Close()

	if err := coreApp.ExportCSV(jobID, brokenOnly, file); err != nil {
		return fmt.Errorf("failed to export: %v", err)
	}

	fmt.Printf("Exported to %s\n", path)
	return nil
}
