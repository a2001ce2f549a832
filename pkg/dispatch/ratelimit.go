// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package dispatch

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// RateLimiter is a fixed-window counter per scope key. It is advisory
// process-local state; replicas each enforce their own window.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  *gocache.Cache
	limit    int
	window   time.Duration
	now      func() time.Time
	disabled bool
}

// NewRateLimiter creates a limiter allowing limit requests per window
func NewRateLimiter(limit int, window time.Duration, enabled bool) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets:  gocache.New(2*window, 2*window),
		limit:    limit,
		window:   window,
		now:      time.Now,
		disabled: !enabled,
	}
}

// Allow consumes one request for the scope. When denied it returns the
// seconds until the current window resets, for the Retry-After header.
func (r *RateLimiter) Allow(scope string) (allowed bool, retryAfter int) {
	if r.disabled {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	windowStart := now.Truncate(r.window)
	key := fmt.Sprintf("%s|%d", scope, windowStart.Unix())

	count := 0
	if v, ok := r.buckets.Get(key); ok {
		count = v.(int)
	}
	if count >= r.limit {
		remaining := windowStart.Add(r.window).Sub(now)
		seconds := int(remaining.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		return false, seconds
	}
	r.buckets.Set(key, count+1, gocache.DefaultExpiration)
	return true, 0
}
