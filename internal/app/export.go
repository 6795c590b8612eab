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

package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/kennygrant/sanitize"

	"github.com/agentberlin/linkpatrol/internal/store"
)

// ExportFilename builds a download filename from the job's seed URL, safe
// for Content-Disposition headers
func ExportFilename(job *store.Job) string {
	name := sanitize.BaseName(job.SeedURL)
	if name == "" {
		name = "scan"
	}
	return fmt.Sprintf("linkpatrol-%s-%s.csv", name, job.ID[:8])
}

// ExportCSV writes a job's discovered links as CSV. Broken-only exports
// carry the same columns so downstream tooling sees one schema.
func (a *App) ExportCSV(jobID string, brokenOnly bool, w io.Writer) error {
	if _, err := a.store.GetJob(jobID); err != nil {
		return err
	}

	filter := store.LinkFilter{Limit: 1000}
	if brokenOnly {
		filter.Broken = true
	}

	writer := csv.NewWriter(w)
	header := []string{"url", "source_url", "internal", "depth", "checked", "working", "status_code", "error_type", "link_text"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for offset := 0; ; offset += filter.Limit {
		filter.Offset = offset
		links, err := a.store.ListLinks(jobID, filter)
		if err != nil {
			return err
		}
		for _, link := range links {
			record := []string{
				link.URL,
				link.SourceURL,
				strconv.FormatBool(link.IsInternal),
				strconv.Itoa(link.Depth),
				strconv.FormatBool(link.Checked),
				strconv.FormatBool(link.IsWorking),
				strconv.Itoa(link.StatusCode),
				link.ErrorType,
				link.LinkText,
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %v", err)
			}
		}
		if len(links) < filter.Limit {
			break
		}
	}

	writer.Flush()
	return writer.Error()
}
