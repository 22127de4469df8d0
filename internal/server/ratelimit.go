package server

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// RateLimiter tracks per-client request rates and daily upload quotas.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	maxDataPerDay     int64

	clients map[string]*clientUsage
}

type clientUsage struct {
	requestsLastMinute int
	dataToday          int64
	lastRequestTime    time.Time
	dayStartTime       time.Time
}

// LimitError reports a rate or quota violation.
type LimitError struct {
	Type       string // "minute" or "data"
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (retry after %v)", e.Type, e.RetryAfter.Round(time.Second))
}

// RetryAfterHeader renders the Retry-After value in seconds.
func (e *LimitError) RetryAfterHeader() string {
	secs := int(e.RetryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// NewRateLimiter creates a rate limiter. Zero limits disable the
// corresponding check.
func NewRateLimiter(requestsPerMinute int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
	}
}

// Check records one request from the given client and reports whether it
// exceeds the configured limits.
func (rl *RateLimiter) Check(clientID string, dataSize int64) *LimitError {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{lastRequestTime: now, dayStartTime: now}
		rl.clients[clientID] = usage
	}

	if now.Sub(usage.lastRequestTime) >= time.Minute {
		usage.requestsLastMinute = 0
	}
	if now.Day() != usage.dayStartTime.Day() || now.Month() != usage.dayStartTime.Month() {
		usage.dataToday = 0
		usage.dayStartTime = now
	}

	if rl.requestsPerMinute > 0 && usage.requestsLastMinute >= rl.requestsPerMinute {
		return &LimitError{Type: "minute", RetryAfter: time.Minute - now.Sub(usage.lastRequestTime)}
	}
	if rl.maxDataPerDay > 0 && usage.dataToday+dataSize > rl.maxDataPerDay {
		midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
		return &LimitError{Type: "data", RetryAfter: midnight.Sub(now)}
	}

	usage.requestsLastMinute++
	usage.dataToday += dataSize
	usage.lastRequestTime = now
	return nil
}
