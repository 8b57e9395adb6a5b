package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/pranavgnn/moodmeter/pkg/config"
	"github.com/pranavgnn/moodmeter/pkg/utils"
)

const MsgTooManyRequests = "Too many requests. Please try again later."

// Config holds rate limiting configuration
type Config struct {
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	// EndpointLimits are keyed by "METHOD /path" and counted per client IP.
	EndpointLimits map[string]EndpointLimit

	BucketTTL      time.Duration
	IncludeHeaders bool
}

type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

// FromEnv builds a Config from environment settings. The caller supplies
// the endpoints each class of limit applies to.
func FromEnv(cfg config.RateLimitConfig, login, signup, mail []string) *Config {
	c := &Config{
		PerIPEnabled:    cfg.PerIPEnabled,
		PerIPCapacity:   cfg.PerIPCapacity,
		PerIPRefillRate: cfg.PerIPRefillRate,
		EndpointLimits:  make(map[string]EndpointLimit),
		BucketTTL:       time.Hour,
		IncludeHeaders:  cfg.IncludeHeaders,
	}
	for _, e := range login {
		c.EndpointLimits[e] = EndpointLimit{Capacity: cfg.LoginCapacity, RefillRate: cfg.LoginRefillRate}
	}
	for _, e := range signup {
		c.EndpointLimits[e] = EndpointLimit{Capacity: cfg.SignupCapacity, RefillRate: cfg.SignupRefillRate}
	}
	for _, e := range mail {
		c.EndpointLimits[e] = EndpointLimit{Capacity: cfg.MailCapacity, RefillRate: cfg.MailRefillRate}
	}
	return c
}

type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

type Middleware struct {
	config           *Config
	ipLimiter        *RateLimiter
	endpointLimiters map[string]*RateLimiter
}

func NewMiddleware(cfg *Config) *Middleware {
	m := &Middleware{
		config:           cfg,
		endpointLimiters: make(map[string]*RateLimiter),
	}
	if cfg.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(cfg.PerIPCapacity, cfg.PerIPRefillRate, cfg.BucketTTL)
	}
	for endpoint, limit := range cfg.EndpointLimits {
		m.endpointLimiters[endpoint] = NewRateLimiter(limit.Capacity, limit.RefillRate, cfg.BucketTTL)
	}
	return m
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := utils.ClientIP(r)

		if m.ipLimiter != nil && ip != "" {
			if ok, wait := m.ipLimiter.Allow(ip); !ok {
				m.rateLimitExceeded(w, r, "ip", wait)
				return
			}
		}

		endpoint := r.Method + " " + r.URL.Path
		if limiter, ok := m.endpointLimiters[endpoint]; ok {
			if ok, wait := limiter.Allow(ip); !ok {
				m.rateLimitExceeded(w, r, "endpoint", wait)
				return
			}
			if m.config.IncludeHeaders {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.config.EndpointLimits[endpoint].Capacity))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Run sweeps idle buckets until ctx is done.
func (m *Middleware) Run(ctx context.Context) {
	interval := m.config.BucketTTL
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Middleware) sweep() {
	removed := 0
	if m.ipLimiter != nil {
		removed += m.ipLimiter.Sweep()
	}
	for _, l := range m.endpointLimiters {
		removed += l.Sweep()
	}
	if removed > 0 {
		slog.Debug("Swept idle rate limit buckets", "removed", removed)
	}
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string, wait time.Duration) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", utils.ClientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, ErrorResponse{Error: MsgTooManyRequests, ErrorCode: "rate_limited"})
}
