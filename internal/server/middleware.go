package server

import (
	"container/list"
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SecurityHeadersMiddleware adds security headers to all responses.
// frameSrc lists the external origins component iframes may load from;
// bundled components are same-origin and always allowed.
func SecurityHeadersMiddleware(frameSrc []string) func(http.Handler) http.Handler {
	frames := strings.Join(append([]string{"'self'"}, frameSrc...), " ")

	// blob: in script-src is where the component frontend imports widget ESM
	// from. frame-ancestors 'self' lets the host embed bundled components.
	csp := "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline' blob:; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data: https:; " +
		"font-src 'self' data:; " +
		"connect-src 'self'; " +
		"frame-src " + frames + "; " +
		"frame-ancestors 'self'"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", csp)

			next.ServeHTTP(w, r)
		})
	}
}

// FrontendHeadersMiddleware adds the headers of a standalone component
// frontend. It must be embeddable by any host page, so it sets no framing
// restrictions.
func FrontendHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; script-src 'self' 'unsafe-inline' blob:; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:")
			w.Header().Set("Cache-Control", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}

// evictionLogInterval is the minimum time between eviction log messages.
const evictionLogInterval = 30 * time.Second

// limiterEntry is a token bucket and its position in the LRU list.
type limiterEntry struct {
	key      string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per key, evicting the least recently
// used key when full.
type limiterSet struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recent
	rps   float64
	burst int
	max   int

	lastEvictLog time.Time
	evictCount   int
}

func newLimiterSet(rps float64, burst, max int) *limiterSet {
	if max <= 0 {
		max = 10000
	}
	return &limiterSet{
		items: make(map[string]*list.Element),
		order: list.New(),
		rps:   rps,
		burst: burst,
		max:   max,
	}
}

// allow takes a token from key's bucket.
func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if elem, ok := s.items[key]; ok {
		s.order.MoveToFront(elem)
		entry := elem.Value.(*limiterEntry)
		entry.lastSeen = now
		return entry.limiter.Allow()
	}

	if s.order.Len() >= s.max {
		s.evictOldest()
	}
	entry := &limiterEntry{
		key:      key,
		limiter:  rate.NewLimiter(rate.Limit(s.rps), s.burst),
		lastSeen: now,
	}
	s.items[key] = s.order.PushFront(entry)
	return entry.limiter.Allow()
}

// evictOldest drops the least recently used key. Called with mu held.
func (s *limiterSet) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	s.order.Remove(back)
	delete(s.items, back.Value.(*limiterEntry).key)

	s.evictCount++
	if time.Since(s.lastEvictLog) >= evictionLogInterval {
		log.Printf("[RateLimit] Evicted %d least-recent client(s) (at capacity: %d)", s.evictCount, s.max)
		s.lastEvictLog = time.Now()
		s.evictCount = 0
	}
}

// sweep drops keys idle for longer than idle. LRU order tracks access
// recency, so every entry is checked.
func (s *limiterSet) sweep(idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for e := s.order.Back(); e != nil; {
		prev := e.Prev()
		entry := e.Value.(*limiterEntry)
		if now.Sub(entry.lastSeen) > idle {
			s.order.Remove(e)
			delete(s.items, entry.key)
		}
		e = prev
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// RateLimitMiddleware limits HTTP requests per client IP with a token bucket.
// maxIPs bounds the number of tracked IPs (LRU eviction when full). WebSocket
// events are limited per session separately.
//
// The cleanup goroutine stops when ctx is cancelled; the returned channel is
// closed once it has exited.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, maxIPs int) (func(http.Handler) http.Handler, <-chan struct{}) {
	set := newLimiterSet(rps, burst, maxIPs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				set.sweep(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()

	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The upgrade request is one request; its events are limited per session.
			if !set.allow(getClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	return middleware, done
}

// getClientIP extracts the client IP from the request.
// It only trusts X-Forwarded-For / X-Real-IP when the immediate peer is a
// loopback or private address (i.e., behind a reverse proxy).
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peerIP := net.ParseIP(host)
	trustedProxy := peerIP != nil && (peerIP.IsLoopback() || peerIP.IsPrivate())

	if trustedProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if peerIP != nil {
		return peerIP.String()
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
