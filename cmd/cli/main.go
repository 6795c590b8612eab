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

// LinkPatrol CLI
//
// Command-line interface for LinkPatrol. Runs one-shot broken-link scans,
// exports results and lists past scans.
//
// Usage:
//
//	linkpatrol <command> [flags]
//
// Commands:
//
//	scan      Scan a website for broken links
//	export    Export scan results as CSV
//	list      List past scans
//	version   Show version information
package main

import (
	"fmt"
	"os"

	"github.com/agentberlin/linkpatrol/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "scan":
		if err := runScan(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "list":
		if err := runList(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "-v", "--version":
		fmt.Printf("LinkPatrol CLI %s\n", version.CurrentVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`LinkPatrol CLI - Broken-link scanner and SEO analyzer

Usage:
  linkpatrol <command> [flags]

Commands:
  scan      Scan a website for broken links
  export    Export scan results as CSV
  list      List past scans
  version   Show version information
  help      Show this help message

Examples:
  # Scan a website
  linkpatrol scan https://example.com

  # Deeper scan including external links and SEO analysis
  linkpatrol scan https://example.com --depth 3 --external --seo

  # Export broken links of a finished scan
  linkpatrol export --job-id 5f2b... --broken -o ./reports

  # List past scans
  linkpatrol list

Use "linkpatrol <command> --help" for more information about a command.`)
}
