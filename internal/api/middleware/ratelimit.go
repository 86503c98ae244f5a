// Package middleware holds the HTTP middleware the feed service mounts on
// top of chi's stock set.
package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a fixed-window in-memory per-IP limiter. Good enough for
// a single-node feed service; a fleet would need shared state.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientWindow
	requests int
	window   time.Duration
}

type clientWindow struct {
	resetAt time.Time
	count   int
}

// NewRateLimiter allows `requests` per client per `window`.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*clientWindow),
		requests: requests,
		window:   window,
	}
	go rl.evictExpired()
	return rl
}

// Middleware rejects over-limit clients with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UTC()
	cw, ok := rl.clients[client]
	if !ok || now.After(cw.resetAt) {
		rl.clients[client] = &clientWindow{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	if cw.count < rl.requests {
		cw.count++
		return true
	}
	return false
}

// evictExpired drops stale windows so the map does not grow with every IP
// that ever connected.
func (rl *RateLimiter) evictExpired() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now().UTC()
		for client, cw := range rl.clients {
			if now.After(cw.resetAt) {
				delete(rl.clients, client)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIP prefers the first X-Forwarded-For hop (the service normally sits
// behind one reverse proxy), then falls back to the socket address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
