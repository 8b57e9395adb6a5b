package config

import "time"

const (
	IdentityModeGoTrue = "gotrue"
	IdentityModeMemory = "memory"
)

// IdentityConfig configures the external identity provider client.
type IdentityConfig struct {
	// Mode selects the provider implementation: "gotrue" talks to a GoTrue
	// compatible auth server, "memory" runs an in-process provider for development.
	Mode    string        `env:"IDP_MODE" env-default:"memory"`
	URL     string        `env:"IDP_URL" env-default:"http://localhost:9999"`
	APIKey  string        `env:"IDP_API_KEY" env-default:""`
	Timeout time.Duration `env:"IDP_TIMEOUT" env-default:"10s"`
	PKCE    bool          `env:"IDP_PKCE" env-default:"true"`

	BreakerMaxFailures uint32        `env:"IDP_BREAKER_MAX_FAILURES" env-default:"5"`
	BreakerOpenTimeout time.Duration `env:"IDP_BREAKER_OPEN_TIMEOUT" env-default:"30s"`

	// SiteURL is the public origin used to build links in emails.
	SiteURL string `env:"SITE_URL" env-default:"http://localhost:4000"`
}
