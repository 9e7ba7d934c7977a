// Per-IP rate limiting for the chart endpoints.
package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter allows maxRate requests per client IP in each fixed window.
// A client's window opens with its first request and resets once it has
// fully elapsed; there is no sliding or refill in between.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	maxRate int           // requests per window
	length  time.Duration // window length
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

type window struct {
	remaining int
	opened    time.Time
}

// NewRateLimiter creates a rate limiter allowing maxRate requests per window.
// Call Close to stop the background cleanup.
func NewRateLimiter(maxRate int, length time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		maxRate: maxRate,
		length:  length,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	// Periodic cleanup of stale entries.
	go func() {
		ticker := time.NewTicker(cleanupInterval(length))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.stop:
				return
			}
		}
	}()
	return rl
}

func cleanupInterval(length time.Duration) time.Duration {
	if length < time.Minute {
		return time.Minute
	}
	return 2 * length
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// Allow consumes one request from ip's window and reports whether it fit.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.opened) >= rl.length {
		rl.windows[ip] = &window{remaining: rl.maxRate - 1, opened: now}
		return rl.maxRate > 0
	}
	if w.remaining <= 0 {
		return false
	}
	w.remaining--
	return true
}

// RetryAfter returns the whole seconds until ip's window closes, or 0 when
// ip has no open window.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[ip]
	if !ok {
		return 0
	}
	left := w.opened.Add(rl.length).Sub(rl.now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// cleanup forgets clients whose window closed more than one window ago.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * rl.length)
	for ip, w := range rl.windows {
		if w.opened.Before(cutoff) {
			delete(rl.windows, ip)
		}
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the remote address
// without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware wraps a handler with rate limiting. Returns 429 if exceeded.
func RateLimitMiddleware(rl *RateLimiter, onLimited func(), next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			if onLimited != nil {
				onLimited()
			}
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
