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

package server

import (
	"sync"
	"time"
)

// Endpoint classes for rate limiting. Each class carries its own quota and
// block policy; violations are counted per (client IP, class).
const (
	classAnalyze = "analyze"
	classCrawl   = "crawl"
	classStatus  = "status"
	classResults = "results"
	classHealth  = "health"
	classGeneral = "general"
)

// limitPolicy is a fixed-window quota with a base block duration applied on
// violation
type limitPolicy struct {
	MaxRequests int
	Window      time.Duration
	BaseBlock   time.Duration
}

var limitPolicies = map[string]limitPolicy{
	classAnalyze: {MaxRequests: 10, Window: 15 * time.Minute, BaseBlock: 5 * time.Minute},
	classCrawl:   {MaxRequests: 20, Window: 60 * time.Minute, BaseBlock: 120 * time.Minute},
	classStatus:  {MaxRequests: 5000, Window: 60 * time.Minute, BaseBlock: 5 * time.Minute},
	classResults: {MaxRequests: 500, Window: 15 * time.Minute, BaseBlock: 10 * time.Minute},
	classHealth:  {MaxRequests: 2000, Window: 5 * time.Minute, BaseBlock: 2 * time.Minute},
	classGeneral: {MaxRequests: 200, Window: 15 * time.Minute, BaseBlock: 10 * time.Minute},
}

type clientWindow struct {
	windowStart  time.Time
	count        int
	violations   int
	blockedUntil time.Time
}

// RateLimiter enforces per-(IP, endpoint-class) fixed-window quotas with
// progressive block durations. One RateLimiter serves the whole process.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow

	// now is swapped out in tests
	now func() time.Time
}

// NewRateLimiter creates a limiter with the default policies
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// Verdict reports the outcome of one rate-limit check
type Verdict struct {
	Allowed      bool
	RetryAfter   time.Duration
	BlockedUntil time.Time
	// Violations counts past violations for this (IP, class), including
	// the one just recorded
	Violations int
}

// Allow records one request for the client against the given endpoint class
// and reports whether it may proceed. multiplier scales the status-class
// quota for large jobs; pass 1 for every other class.
func (rl *RateLimiter) Allow(clientIP, class string, multiplier int) Verdict {
	policy, ok := limitPolicies[class]
	if !ok {
		policy = limitPolicies[classGeneral]
	}
	if multiplier < 1 {
		multiplier = 1
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := clientIP + "|" + class
	cw := rl.clients[key]
	if cw == nil {
		cw = &clientWindow{windowStart: now}
		rl.clients[key] = cw
	}

	if now.Before(cw.blockedUntil) {
		return Verdict{
			RetryAfter:   cw.blockedUntil.Sub(now),
			BlockedUntil: cw.blockedUntil,
			Violations:   cw.violations,
		}
	}

	if now.Sub(cw.windowStart) >= policy.Window {
		cw.windowStart = now
		cw.count = 0
	}

	limit := policy.MaxRequests * multiplier
	if cw.count >= limit {
		cw.violations++
		block := rl.blockDuration(policy, cw.violations, multiplier)
		cw.blockedUntil = now.Add(block)
		return Verdict{
			RetryAfter:   block,
			BlockedUntil: cw.blockedUntil,
			Violations:   cw.violations,
		}
	}

	cw.count++
	return Verdict{Allowed: true}
}

// blockDuration applies the progressive penalty: base times the violation
// count, capped at five. Scaled quotas divide the base but never go below a
// minute.
func (rl *RateLimiter) blockDuration(policy limitPolicy, violations, multiplier int) time.Duration {
	base := policy.BaseBlock
	if multiplier > 1 {
		base = policy.BaseBlock / time.Duration(multiplier)
		if base < time.Minute {
			base = time.Minute
		}
	}
	n := violations
	if n > 5 {
		n = 5
	}
	return base * time.Duration(n)
}
