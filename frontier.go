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

import "sync"

const (
	entryPending = iota
	entryInFlight
	entryDone
)

// frontierItem is a unit of work handed to the crawl loop
type frontierItem struct {
	// URL is the normalized target
	URL string
	// SourceURL is the page the URL was discovered on, empty for seeds
	SourceURL string
	// Depth is the BFS depth of the target
	Depth int
	// Crawl marks the item as a page to fetch and expand; otherwise it is
	// only liveness-checked
	Crawl bool
	// LinkText is the anchor text the URL was discovered under
	LinkText string
}

type frontierEntry struct {
	item   frontierItem
	status int
}

// frontier is the single authoritative record of every URL a scan has seen.
// The map enforces the visited-once invariant; the queue preserves discovery
// order so the crawl stays breadth-first.
type frontier struct {
	mu      sync.Mutex
	entries map[string]*frontierEntry
	queue   []string
	done    int
}

func newFrontier() *frontier {
	return &frontier{entries: make(map[string]*frontierEntry)}
}

// add records a URL if it has never been seen. It reports whether the URL
// was new.
func (f *frontier) add(item frontierItem) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, known := f.entries[item.URL]; known {
		return false
	}
	f.entries[item.URL] = &frontierEntry{item: item, status: entryPending}
	f.queue = append(f.queue, item.URL)
	return true
}

// nextBatch dequeues up to n pending items and marks them in flight
func (f *frontier) nextBatch(n int) []frontierItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	var batch []frontierItem
	for len(batch) < n && len(f.queue) > 0 {
		url := f.queue[0]
		f.queue = f.queue[1:]
		entry := f.entries[url]
		if entry == nil || entry.status != entryPending {
			continue
		}
		entry.status = entryInFlight
		batch = append(batch, entry.item)
	}
	return batch
}

// markDone transitions a URL to its terminal state
func (f *frontier) markDone(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := f.entries[url]
	if entry != nil && entry.status != entryDone {
		entry.status = entryDone
		f.done++
	}
}

// counts returns how many URLs have finished and how many are known
func (f *frontier) counts() (processed, discovered int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done, len(f.entries)
}

// size returns how many URLs the frontier has ever recorded
func (f *frontier) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
