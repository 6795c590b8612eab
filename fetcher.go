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
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/saintfish/chardet"
	"golang.org/x/net/publicsuffix"
)

// maxBodySize caps how much of a response body the fetcher reads
const maxBodySize = 10 * 1024 * 1024

// retryableStatuses are HTTP statuses worth retrying after a delay
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// FetcherConfig controls HTTP behavior for link checks and page fetches
type FetcherConfig struct {
	// Timeout is the per-request upper bound
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after a retryable failure
	MaxRetries int
	// RetryDelay is the base backoff; attempt k waits RetryDelay*k
	RetryDelay time.Duration
	// MaxRedirects caps the redirect chain length
	MaxRedirects int
	// Concurrency bounds in-flight requests across the fetcher
	Concurrency int
	// UserAgent identifies the bot; it must contain "Broken Link Checker Bot"
	UserAgent string
	// From is the contact address sent in the From header
	From string
	// AllowPrivateHosts disables the safety gate so loopback and RFC-1918
	// targets can be scanned. Only for deliberate internal-site scans.
	AllowPrivateHosts bool
}

// DefaultFetcherConfig returns the fetcher defaults used by scans
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:      10 * time.Second,
		MaxRetries:   2,
		RetryDelay:   500 * time.Millisecond,
		MaxRedirects: 3,
		Concurrency:  10,
		UserAgent:    "Mozilla/5.0 (compatible; Broken Link Checker Bot/1.0; +https://linkpatrol.dev/bot)",
		From:         "bot@linkpatrol.dev",
	}
}

// DomainRule provides connection restrictions for matching domains.
// DomainGlob selects the domains; Parallelism bounds concurrent requests to
// them and Delay adds a wait after each request.
type DomainRule struct {
	// DomainGlob is a glob pattern matched against hostnames
	DomainGlob string
	// Delay is the duration to wait after each request to matching domains
	Delay time.Duration
	// Parallelism is the maximum concurrent requests to matching domains
	Parallelism int

	waitChan     chan bool
	compiledGlob glob.Glob
}

// Init compiles the pattern and allocates the parallelism slots
func (r *DomainRule) Init() error {
	waitChanSize := 1
	if r.Parallelism > 1 {
		waitChanSize = r.Parallelism
	}
	r.waitChan = make(chan bool, waitChanSize)
	if r.DomainGlob == "" {
		return errors.New("no domain pattern defined")
	}
	c, err := glob.Compile(r.DomainGlob)
	if err != nil {
		return err
	}
	r.compiledGlob = c
	return nil
}

// Match checks that the domain triggers the rule
func (r *DomainRule) Match(domain string) bool {
	return r.compiledGlob != nil && r.compiledGlob.Match(domain)
}

// Fetcher performs link liveness checks and HTML page fetches. Every URL
// passes the safety gate before any network I/O. All methods are safe for
// concurrent use.
type Fetcher struct {
	config FetcherConfig
	client *http.Client
	slots  chan struct{}

	lock  sync.RWMutex
	rules []*DomainRule
}

// NewFetcher creates a fetcher with a cookie jar scoped by the public
// suffix list
func NewFetcher(config FetcherConfig) *Fetcher {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = 3
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 10
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultFetcherConfig().UserAgent
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	maxRedirects := config.MaxRedirects
	client := &http.Client{
		Jar:     jar,
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Fetcher{
		config: config,
		client: client,
		slots:  make(chan struct{}, config.Concurrency),
	}
}

// Limit registers a per-domain restriction rule
func (f *Fetcher) Limit(rule *DomainRule) error {
	if err := rule.Init(); err != nil {
		return fmt.Errorf("failed to init domain rule: %v", err)
	}
	f.lock.Lock()
	f.rules = append(f.rules, rule)
	f.lock.Unlock()
	return nil
}

func (f *Fetcher) matchingRule(domain string) *DomainRule {
	f.lock.RLock()
	defer f.lock.RUnlock()
	for _, r := range f.rules {
		if r.Match(domain) {
			return r
		}
	}
	return nil
}

// Check verifies that a URL responds, trying HEAD first and falling back to
// a ranged GET when the server rejects or mishandles HEAD. The response body
// is never retained.
func (f *Fetcher) Check(ctx context.Context, rawURL string) CheckResult {
	if blocked, result := f.gate(rawURL); blocked {
		return result
	}

	result := f.doWithRetries(ctx, rawURL, func(attempt int) (CheckResult, bool) {
		res, elapsed, err := f.roundTrip(ctx, http.MethodHead, rawURL, nil)
		if err == nil && res.StatusCode < 400 {
			io.Copy(io.Discard, io.LimitReader(res.Body, 1024))
			res.Body.Close()
			return f.resultFromStatus(rawURL, res.StatusCode, elapsed), false
		}
		if res != nil {
			res.Body.Close()
		}

		// HEAD failed or was rejected; a small ranged GET is the
		// authoritative check
		res, elapsed, err = f.roundTrip(ctx, http.MethodGet, rawURL, map[string]string{
			"Range": "bytes=0-1023",
		})
		if err != nil {
			return f.resultFromError(rawURL, err, elapsed), true
		}
		io.Copy(io.Discard, io.LimitReader(res.Body, 2048))
		res.Body.Close()
		return f.resultFromStatus(rawURL, res.StatusCode, elapsed), retryableStatuses[res.StatusCode]
	})
	return result
}

// Fetch retrieves a URL with a full GET, capturing the body only for HTML
// responses
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) FetchResult {
	if blocked, result := f.gate(rawURL); blocked {
		return FetchResult{CheckResult: result}
	}

	var fetched FetchResult
	fetched.CheckResult = f.doWithRetries(ctx, rawURL, func(attempt int) (CheckResult, bool) {
		res, elapsed, err := f.roundTrip(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return f.resultFromError(rawURL, err, elapsed), true
		}
		defer res.Body.Close()

		result := f.resultFromStatus(rawURL, res.StatusCode, elapsed)
		if retryableStatuses[res.StatusCode] {
			return result, true
		}

		contentType := res.Header.Get("Content-Type")
		fetched.ContentType = contentType
		fetched.Charset = ""
		fetched.Body = nil

		if result.IsWorking && strings.Contains(strings.ToLower(contentType), "text/html") {
			body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
			if err != nil {
				result.ErrorType = ErrorTypeConnection
				result.ErrorMessage = fmt.Sprintf("failed to read body: %v", err)
				return result, true
			}
			fetched.Body = body
			fetched.Charset = detectCharset(contentType, body)
		}
		return result, false
	})
	return fetched
}

// gate runs the safety check and synthesizes a blocked result when it fails
func (f *Fetcher) gate(rawURL string) (bool, CheckResult) {
	if f.config.AllowPrivateHosts {
		return false, CheckResult{}
	}
	if safe, reason := IsSafeURL(rawURL); !safe {
		return true, CheckResult{
			URL:          rawURL,
			CheckedAt:    time.Now(),
			IsWorking:    false,
			ErrorType:    ErrorTypeSecurityBlocked,
			ErrorMessage: fmt.Sprintf("URL blocked for security reasons: %s", reason),
		}
	}
	return false, CheckResult{}
}

// doWithRetries runs one attempt function with linear backoff. The attempt
// reports whether its outcome is retryable.
func (f *Fetcher) doWithRetries(ctx context.Context, rawURL string, attempt func(int) (CheckResult, bool)) CheckResult {
	var result CheckResult
	for i := 0; i <= f.config.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				result.ErrorMessage = "crawl stopped"
				return result
			case <-time.After(f.config.RetryDelay * time.Duration(i)):
			}
		}
		var retryable bool
		result, retryable = attempt(i)
		if !retryable {
			return result
		}
		// Never retry a safety rejection or an unparsable URL
		if result.ErrorType == ErrorTypeSecurityBlocked || result.ErrorType == ErrorTypeInvalidURL {
			return result
		}
	}
	return result
}

// roundTrip issues one request with bot identification headers under the
// concurrency and per-domain limits
func (f *Fetcher) roundTrip(ctx context.Context, method, rawURL string, extraHeaders map[string]string) (*http.Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, 0, &url.Error{Op: method, URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Purpose", "link-validation")
	if f.config.From != "" {
		req.Header.Set("From", f.config.From)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	f.slots <- struct{}{}
	defer func() { <-f.slots }()

	if rule := f.matchingRule(req.URL.Hostname()); rule != nil {
		rule.waitChan <- true
		defer func() {
			time.Sleep(rule.Delay)
			<-rule.waitChan
		}()
	}

	start := time.Now()
	res, err := f.client.Do(req)
	return res, time.Since(start), err
}

func (f *Fetcher) resultFromStatus(rawURL string, statusCode int, elapsed time.Duration) CheckResult {
	result := CheckResult{
		URL:          rawURL,
		StatusCode:   statusCode,
		ResponseTime: elapsed,
		CheckedAt:    time.Now(),
		IsWorking:    statusCode >= 200 && statusCode < 400,
	}
	if !result.IsWorking {
		result.ErrorType = fmt.Sprintf("%d", statusCode)
		result.ErrorMessage = fmt.Sprintf("HTTP %d %s", statusCode, http.StatusText(statusCode))
	}
	return result
}

func (f *Fetcher) resultFromError(rawURL string, err error, elapsed time.Duration) CheckResult {
	errType, message := classifyFetchError(err)
	return CheckResult{
		URL:          rawURL,
		StatusCode:   0,
		ResponseTime: elapsed,
		CheckedAt:    time.Now(),
		IsWorking:    false,
		ErrorType:    errType,
		ErrorMessage: message,
	}
}

// classifyFetchError maps a transport error onto the error taxonomy
func classifyFetchError(err error) (string, string) {
	if err == nil {
		return "", ""
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		// Unwrap so the checks below see the transport cause
		err = urlErr.Err
	}

	var dnsErr *net.DNSError
	var certErr *x509.CertificateInvalidError
	var hostErr x509.HostnameError
	var unknownAuthErr x509.UnknownAuthorityError

	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		return ErrorTypeTimeout, "request timed out"
	case errors.As(err, &dnsErr):
		return ErrorTypeDNS, fmt.Sprintf("DNS lookup failed: %v", dnsErr)
	case errors.As(err, &certErr), errors.As(err, &hostErr), errors.As(err, &unknownAuthErr),
		strings.Contains(err.Error(), "tls:"), strings.Contains(err.Error(), "x509:"):
		return ErrorTypeSSL, fmt.Sprintf("TLS verification failed: %v", err)
	case errors.Is(err, context.Canceled):
		return ErrorTypeOther, "request cancelled"
	case strings.Contains(err.Error(), "redirects"):
		return ErrorTypeOther, err.Error()
	case strings.Contains(err.Error(), "unsupported protocol") || strings.Contains(err.Error(), "invalid URL"):
		return ErrorTypeInvalidURL, err.Error()
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrorTypeTimeout, "request timed out"
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return ErrorTypeConnection, fmt.Sprintf("connection failed: %v", opErr)
		}
		return ErrorTypeOther, err.Error()
	}
}

// detectCharset returns the charset declared in the Content-Type header,
// falling back to statistical detection over the body
func detectCharset(contentType string, body []byte) string {
	for _, part := range strings.Split(contentType, ";") {
		part = strings.TrimSpace(strings.ToLower(part))
		if cs, ok := strings.CutPrefix(part, "charset="); ok {
			return strings.Trim(cs, `"'`)
		}
	}
	if len(body) == 0 {
		return ""
	}
	sample := body
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	if best, err := chardet.NewTextDetector().DetectBest(sample); err == nil {
		return strings.ToLower(best.Charset)
	}
	return ""
}
