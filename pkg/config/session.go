package config

import (
	"net/http"
	"time"
)

// JWTConfig holds settings for application session tokens issued after login.
type JWTConfig struct {
	Secret       string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer       string        `env:"JWT_ISSUER" env-default:"moodmeter"`
	Audience     string        `env:"JWT_AUDIENCE" env-default:"moodmeter"`
	Expiry       time.Duration `env:"JWT_EXPIRY" env-default:"1h"`
	CookieSecure bool          `env:"COOKIE_SECURE" env-default:"false"`
}

// CookieSameSite returns the SameSite setting based on CookieSecure
func (j JWTConfig) CookieSameSite() http.SameSite {
	if j.CookieSecure {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// SessionConfig selects where issued session tokens are registered.
type SessionConfig struct {
	Store         string `env:"SESSION_STORE" env-default:"memory"`
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
}

// LoginConfig holds login gate settings.
type LoginConfig struct {
	// InvalidFloor is the minimum latency of a rejected login attempt.
	InvalidFloor time.Duration `env:"LOGIN_INVALID_FLOOR" env-default:"400ms"`
}
