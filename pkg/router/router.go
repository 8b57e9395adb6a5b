package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	availabilityapi "github.com/pranavgnn/moodmeter/pkg/availability/api"
	loginapi "github.com/pranavgnn/moodmeter/pkg/login/api"
	"github.com/pranavgnn/moodmeter/pkg/metrics"
	passwordapi "github.com/pranavgnn/moodmeter/pkg/password/api"
	"github.com/pranavgnn/moodmeter/pkg/ratelimit"
	signupapi "github.com/pranavgnn/moodmeter/pkg/signup/api"
	verificationapi "github.com/pranavgnn/moodmeter/pkg/verification/api"
)

// PrefixConfig holds the mount point of each route group. An empty prefix
// skips the group.
type PrefixConfig struct {
	Auth         string
	API          string
	Signup       string
	Password     string
	Availability string
	Metrics      string
}

func DefaultPrefixConfig() PrefixConfig {
	return PrefixConfig{
		Auth:         "/auth",
		API:          "/api",
		Signup:       "/api/signup",
		Password:     "/api/password",
		Availability: "/api/availability",
		Metrics:      "/metrics",
	}
}

// Config holds all the dependencies and handlers needed to setup routes
type Config struct {
	PrefixConfig PrefixConfig

	VerificationHandle *verificationapi.Handle
	LoginHandle        *loginapi.Handle
	SignupHandle       *signupapi.Handle
	PasswordHandle     *passwordapi.Handle
	AvailabilityHandle *availabilityapi.Handle

	// Optional
	RateLimiter *ratelimit.Middleware
}

// RateLimitedEndpoints lists the endpoints that get their own buckets, in
// the form ratelimit.FromEnv expects.
func RateLimitedEndpoints(p PrefixConfig) (login, signup, mail []string) {
	if p.API != "" {
		login = append(login, http.MethodPost+" "+p.API+"/login")
		mail = append(mail, http.MethodPost+" "+p.API+"/login/resend")
	}
	if p.Signup != "" {
		signup = append(signup, http.MethodPost+" "+p.Signup, http.MethodPost+" "+p.Signup+"/")
	}
	if p.Password != "" {
		mail = append(mail, http.MethodPost+" "+p.Password+"/forgot")
	}
	return login, signup, mail
}

// SetupRoutes mounts all account routes on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	p := cfg.PrefixConfig

	router.Group(func(r chi.Router) {
		r.Use(middleware.RealIP)
		r.Use(metrics.Middleware)
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}

		if p.Auth != "" && cfg.VerificationHandle != nil {
			r.Mount(p.Auth, verificationapi.Handler(cfg.VerificationHandle))
		}
		if p.Signup != "" && cfg.SignupHandle != nil {
			r.Mount(p.Signup, signupapi.Handler(cfg.SignupHandle))
		}
		if p.Password != "" && cfg.PasswordHandle != nil {
			r.Mount(p.Password, passwordapi.Handler(cfg.PasswordHandle))
		}
		if p.Availability != "" && cfg.AvailabilityHandle != nil {
			r.Mount(p.Availability, availabilityapi.Handler(cfg.AvailabilityHandle))
		}
		if p.API != "" && cfg.LoginHandle != nil {
			r.Mount(p.API, loginapi.Handler(cfg.LoginHandle))
		}
	})

	if p.Metrics != "" {
		router.Handle(p.Metrics, metrics.Handler())
	}
}
