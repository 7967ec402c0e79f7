package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"streamlayout/pkg/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimiterStore stores per-key (for example, per IP) rate limiters.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  make(map[string]*rate.Limiter),
		rate:      r,
		burstSize: burst,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(s.rate, s.burstSize)
		s.limiters[key] = limiter
	}
	return limiter
}

// clientIP extracts the IP part from the request's remote address.
func clientIP(r *http.Request) string {
	// Try X-Forwarded-For first (behind proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware returns Gin middleware that applies simple IP-based rate limiting.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RateLimiting.HTTP.RequestsPerSecond
	burst := cfg.RateLimiting.HTTP.Burst

	store := newRateLimiterStore(rate.Limit(rps), burst)

	var globalSem chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		// Global concurrent requests throttling
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error": "too many concurrent requests",
				})
				return
			}
		}

		ip := clientIP(c.Request)
		limiter := store.getLimiter(ip)
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfterSeconds(limiter),
			})
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(limiter *rate.Limiter) int {
	r := limiter.Reserve()
	defer r.Cancel()
	secs := int(r.Delay() / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// MessageLimiter throttles inbound websocket messages for one connection.
// A nil limiter allows everything.
type MessageLimiter struct {
	limiter *rate.Limiter
}

// NewMessageLimiter creates a per-connection limiter for inbound websocket
// messages. It allows everything when rate limiting is disabled.
func NewMessageLimiter(cfg *config.Config) *MessageLimiter {
	if !cfg.RateLimiting.Enabled {
		return &MessageLimiter{}
	}
	return &MessageLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimiting.WebSocket.MessagesPerSecond), cfg.RateLimiting.WebSocket.Burst),
	}
}

// Allow reports whether one more message may be handled now.
func (m *MessageLimiter) Allow() bool {
	if m == nil || m.limiter == nil {
		return true
	}
	return m.limiter.Allow()
}

// ConnectionGate caps concurrent websocket connections and the rate at which
// a single client may open them.
type ConnectionGate struct {
	enabled bool
	sem     chan struct{}
	store   *rateLimiterStore
}

// NewConnectionGate creates a gate bounding new websocket connections.
func NewConnectionGate(cfg *config.Config) *ConnectionGate {
	g := &ConnectionGate{enabled: cfg.RateLimiting.Enabled}
	if !g.enabled {
		return g
	}
	if max := cfg.RateLimiting.WebSocket.MaxConcurrent; max > 0 {
		g.sem = make(chan struct{}, max)
	}
	perMinute := cfg.RateLimiting.WebSocket.ConnectionsPerMinute
	g.store = newRateLimiterStore(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return g
}

// Acquire admits a connection from r. The returned release must be called
// when the connection ends.
func (g *ConnectionGate) Acquire(r *http.Request) (release func(), ok bool) {
	if !g.enabled {
		return func() {}, true
	}
	if !g.store.getLimiter(clientIP(r)).Allow() {
		return nil, false
	}
	if g.sem == nil {
		return func() {}, true
	}
	select {
	case g.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-g.sem }) }, true
	default:
		return nil, false
	}
}
