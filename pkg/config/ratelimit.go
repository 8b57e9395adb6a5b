package config

// RateLimitConfig contains rate limiting settings for the public auth endpoints.
type RateLimitConfig struct {
	// Per-IP rate limiting across all endpoints
	PerIPEnabled    bool    `env:"RATELIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPCapacity   int     `env:"RATELIMIT_PER_IP_CAPACITY" env-default:"100"`
	PerIPRefillRate float64 `env:"RATELIMIT_PER_IP_REFILL_RATE" env-default:"1.67"` // tokens per second

	// Login endpoint specific limits (brute force protection)
	LoginCapacity   int     `env:"RATELIMIT_LOGIN_CAPACITY" env-default:"10"`
	LoginRefillRate float64 `env:"RATELIMIT_LOGIN_REFILL_RATE" env-default:"0.167"`

	// Signup endpoint specific limits
	SignupCapacity   int     `env:"RATELIMIT_SIGNUP_CAPACITY" env-default:"5"`
	SignupRefillRate float64 `env:"RATELIMIT_SIGNUP_REFILL_RATE" env-default:"0.017"`

	// Resend and password recovery mails
	MailCapacity   int     `env:"RATELIMIT_MAIL_CAPACITY" env-default:"3"`
	MailRefillRate float64 `env:"RATELIMIT_MAIL_REFILL_RATE" env-default:"0.0167"`

	// IncludeHeaders controls whether rate limit headers are included in responses
	IncludeHeaders bool `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`
}
