package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/pranavgnn/moodmeter/pkg/availability"
	availabilityapi "github.com/pranavgnn/moodmeter/pkg/availability/api"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/login"
	loginapi "github.com/pranavgnn/moodmeter/pkg/login/api"
	"github.com/pranavgnn/moodmeter/pkg/password"
	passwordapi "github.com/pranavgnn/moodmeter/pkg/password/api"
	"github.com/pranavgnn/moodmeter/pkg/profile"
	"github.com/pranavgnn/moodmeter/pkg/ratelimit"
	"github.com/pranavgnn/moodmeter/pkg/reconcile"
	"github.com/pranavgnn/moodmeter/pkg/sessions"
	"github.com/pranavgnn/moodmeter/pkg/signup"
	signupapi "github.com/pranavgnn/moodmeter/pkg/signup/api"
	"github.com/pranavgnn/moodmeter/pkg/tokengenerator"
	"github.com/pranavgnn/moodmeter/pkg/verification"
	verificationapi "github.com/pranavgnn/moodmeter/pkg/verification/api"
)

// Dependencies are the collaborators the account routes are built from.
type Dependencies struct {
	Profiles profile.Repository
	Identity identity.Client

	// Optional: warnings are only logged when nil.
	WarningSink reconcile.WarningSink
	// Optional: an in-memory registry is used when nil.
	Sessions *sessions.Service

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenExpiry time.Duration

	SiteURL           string
	CookieSecure      bool
	UsePKCE           bool
	LoginInvalidFloor time.Duration

	// Optional
	RateLimit *ratelimit.Config
}

// NewConfig wires services and handles from deps. It also returns the
// jwtauth verifier for session tokens so callers can protect their own
// routes with it.
func NewConfig(deps Dependencies, prefixes PrefixConfig) (Config, *jwtauth.JWTAuth) {
	siteURL := strings.TrimRight(deps.SiteURL, "/")
	tokenAuth := jwtauth.New("HS256", []byte(deps.JWTSecret), nil)

	var reconcileOpts []reconcile.Option
	if deps.WarningSink != nil {
		reconcileOpts = append(reconcileOpts, reconcile.WithSink(deps.WarningSink))
	}
	reconciler := reconcile.New(deps.Profiles, reconcileOpts...)

	registry := deps.Sessions
	if registry == nil {
		registry = sessions.NewService(sessions.NewMemoryRepository())
	}

	tokenExpiry := deps.TokenExpiry
	if tokenExpiry <= 0 {
		tokenExpiry = tokengenerator.DefaultExpiry
	}
	gateOpts := []login.Option{
		login.WithTokenGenerator(tokengenerator.NewJwtTokenGenerator(deps.JWTSecret, deps.JWTIssuer, deps.JWTAudience)),
		login.WithSessions(registry),
		login.WithTokenExpiry(tokenExpiry),
	}
	if deps.LoginInvalidFloor > 0 {
		gateOpts = append(gateOpts, login.WithInvalidFloor(deps.LoginInvalidFloor))
	}
	gate := login.NewGate(deps.Profiles, deps.Identity, gateOpts...)

	sameSite := http.SameSiteLaxMode
	if deps.CookieSecure {
		sameSite = http.SameSiteStrictMode
	}

	signupService := signup.NewService(deps.Profiles, deps.Identity,
		signup.WithPKCE(deps.UsePKCE),
		signup.WithRedirectTo(siteURL+prefixes.Auth+"/confirm"),
		signup.WithReconciler(reconciler),
	)

	passwordOpts := []passwordapi.Option{passwordapi.WithCookieSecure(deps.CookieSecure)}
	if siteURL != "" {
		passwordOpts = append(passwordOpts, passwordapi.WithSiteURL(siteURL))
	}

	cfg := Config{
		PrefixConfig: prefixes,
		VerificationHandle: verificationapi.NewHandle(
			verification.NewDispatcher(deps.Identity, reconciler),
			verificationapi.WithCookieSecure(deps.CookieSecure),
		),
		LoginHandle: loginapi.NewHandle(gate, tokenAuth,
			loginapi.WithSessions(registry),
			loginapi.WithCookieSetter(tokengenerator.NewCookieSetter(deps.CookieSecure, sameSite)),
		),
		SignupHandle:       signupapi.NewHandle(signupService, signupapi.WithCookieSecure(deps.CookieSecure)),
		PasswordHandle:     passwordapi.NewHandle(password.NewService(deps.Identity), passwordOpts...),
		AvailabilityHandle: availabilityapi.NewHandle(availability.NewChecker(deps.Profiles)),
	}
	if deps.RateLimit != nil {
		cfg.RateLimiter = ratelimit.NewMiddleware(deps.RateLimit)
	}
	return cfg, tokenAuth
}
