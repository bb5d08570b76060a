package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/vaidashi/restaurant-pos/pkg/logger"
	"github.com/vaidashi/restaurant-pos/pkg/ratelimit"
)

// RateLimiterMiddleware limits requests per POS terminal (or client address when no terminal header is sent)
type RateLimiterMiddleware struct {
	limiter           *ratelimit.KeyedLimiter
	logger            logger.Logger
	trustForwardedFor bool
	stop              chan struct{}
}

// RateLimiterConfig configures the rate limiter middleware
type RateLimiterConfig struct {
	Interval          time.Duration
	Burst             int
	TrustForwardedFor bool
}

// NewRateLimiterMiddleware creates a new rate limiter middleware and starts its sweeper
func NewRateLimiterMiddleware(cfg RateLimiterConfig, logger logger.Logger) *RateLimiterMiddleware {
	m := &RateLimiterMiddleware{
		limiter:           ratelimit.NewKeyedLimiter(cfg.Interval, cfg.Burst),
		logger:            logger,
		trustForwardedFor: cfg.TrustForwardedFor,
		stop:              make(chan struct{}),
	}

	go m.sweepLoop()

	return m
}

// Middleware returns a middleware function
func (m *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Terminal-ID")
		if key == "" {
			key = m.clientIP(r)
		}

		if !m.limiter.Allow(key) {
			m.logger.Warn("Rate limit exceeded", "method", r.Method, "path", r.URL.Path, "client", key)

			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded. Please try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Stop stops the sweeper goroutine
func (m *RateLimiterMiddleware) Stop() {
	close(m.stop)
}

func (m *RateLimiterMiddleware) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.limiter.Sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *RateLimiterMiddleware) clientIP(r *http.Request) string {
	if m.trustForwardedFor {
		if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
			ips := strings.Split(forwardedFor, ",")
			return strings.TrimSpace(ips[0])
		}
	}

	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}
