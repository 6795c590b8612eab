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
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher(overrides func(*FetcherConfig)) *Fetcher {
	config := DefaultFetcherConfig()
	config.Timeout = 3 * time.Second
	config.RetryDelay = 10 * time.Millisecond
	config.AllowPrivateHosts = true
	if overrides != nil {
		overrides(&config)
	}
	return NewFetcher(config)
}

func TestCheckWorkingLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := testFetcher(nil).Check(context.Background(), srv.URL)

	assert.True(t, result.IsWorking)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Empty(t, result.ErrorType)
	assert.False(t, result.CheckedAt.IsZero())
}

func TestCheckBrokenLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	result := testFetcher(nil).Check(context.Background(), srv.URL+"/missing")

	assert.False(t, result.IsWorking)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Equal(t, "404", result.ErrorType)
}

func TestCheckFallsBackToGetWhenHeadRejected(t *testing.T) {
	var sawRangedGet atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Range") == "bytes=0-1023" {
			sawRangedGet.Store(true)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	result := testFetcher(nil).Check(context.Background(), srv.URL)

	assert.True(t, result.IsWorking)
	assert.True(t, sawRangedGet.Load(), "fallback GET should carry a Range header")
}

func TestCheckSendsBotHeaders(t *testing.T) {
	var ua, purpose, lang atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		purpose.Store(r.Header.Get("Purpose"))
		lang.Store(r.Header.Get("Accept-Language"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	testFetcher(nil).Check(context.Background(), srv.URL)

	assert.Contains(t, ua.Load(), "Broken Link Checker Bot")
	assert.Equal(t, "link-validation", purpose.Load())
	assert.Equal(t, "en-US,en;q=0.5", lang.Load())
}

func TestCheckBlocksUnsafeURLWithoutNetworkIO(t *testing.T) {
	fetcher := testFetcher(func(c *FetcherConfig) { c.AllowPrivateHosts = false })
	result := fetcher.Check(context.Background(), "http://169.254.169.254/latest/meta-data/")

	assert.False(t, result.IsWorking)
	assert.Equal(t, ErrorTypeSecurityBlocked, result.ErrorType)
	assert.Zero(t, result.StatusCode)
}

func TestCheckRetriesOnServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := testFetcher(func(c *FetcherConfig) { c.MaxRetries = 2 }).Check(context.Background(), srv.URL)

	assert.True(t, result.IsWorking)
	assert.GreaterOrEqual(t, hits.Load(), int32(3))
}

func TestCheckDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	result := testFetcher(func(c *FetcherConfig) { c.MaxRetries = 3 }).Check(context.Background(), srv.URL)

	assert.False(t, result.IsWorking)
	assert.Equal(t, "410", result.ErrorType)
	// one HEAD plus one fallback GET, no retries
	assert.Equal(t, int32(2), hits.Load())
}

func TestCheckConnectionRefused(t *testing.T) {
	// Grab a port that was just released so nothing is listening on it
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	result := testFetcher(func(c *FetcherConfig) { c.MaxRetries = 0 }).Check(context.Background(), target)

	assert.False(t, result.IsWorking)
	assert.Zero(t, result.StatusCode)
	assert.Equal(t, ErrorTypeConnection, result.ErrorType)
}

func TestFetchCapturesHTMLBody(t *testing.T) {
	html := "<html><head><title>Hi</title></head><body><p>hello</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	defer srv.Close()

	result := testFetcher(nil).Fetch(context.Background(), srv.URL)

	require.True(t, result.IsWorking)
	assert.True(t, result.IsHTML())
	assert.Equal(t, html, string(result.Body))
	assert.Equal(t, "utf-8", result.Charset)
}

func TestFetchSkipsNonHTMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"a":1}`))
	}))
	defer srv.Close()

	result := testFetcher(nil).Fetch(context.Background(), srv.URL)

	assert.True(t, result.IsWorking)
	assert.False(t, result.IsHTML())
	assert.Nil(t, result.Body)
}

func TestFetchRedirectCap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	result := testFetcher(func(c *FetcherConfig) { c.MaxRetries = 0 }).Fetch(context.Background(), srv.URL+"/a")

	assert.False(t, result.IsWorking)
	assert.Contains(t, result.ErrorMessage, "redirects")
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	fetcher := testFetcher(func(c *FetcherConfig) {
		c.Timeout = 100 * time.Millisecond
		c.MaxRetries = 0
	})
	result := fetcher.Fetch(context.Background(), srv.URL)

	assert.False(t, result.IsWorking)
	assert.Equal(t, ErrorTypeTimeout, result.ErrorType)
}

func TestFetcherDomainRuleLimitsParallelism(t *testing.T) {
	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inflight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inflight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fetcher := testFetcher(nil)
	require.NoError(t, fetcher.Limit(&DomainRule{DomainGlob: "127.0.0.1", Parallelism: 1}))

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			fetcher.Check(context.Background(), srv.URL)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	assert.Equal(t, int32(1), peak.Load())
}

func TestClassifyFetchErrorTable(t *testing.T) {
	errType, _ := classifyFetchError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, errType)

	errType, _ = classifyFetchError(nil)
	assert.Empty(t, errType)
}
