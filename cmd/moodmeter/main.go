package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/pranavgnn/moodmeter/pkg/config"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/notification"
	"github.com/pranavgnn/moodmeter/pkg/profile"
	"github.com/pranavgnn/moodmeter/pkg/ratelimit"
	"github.com/pranavgnn/moodmeter/pkg/reconcile"
	"github.com/pranavgnn/moodmeter/pkg/router"
	"github.com/pranavgnn/moodmeter/pkg/sessions"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
)

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

type Config struct {
	AppConfig       app.AppConfig
	LogConfig       LogConfig
	DatabaseConfig  config.DatabaseConfig
	ProfileStore    config.ProfileStoreConfig
	IdentityConfig  config.IdentityConfig
	EmailConfig     config.EmailConfig
	JWTConfig       config.JWTConfig
	SessionConfig   config.SessionConfig
	LoginConfig     config.LoginConfig
	KafkaConfig     config.KafkaConfig
	RateLimitConfig config.RateLimitConfig
}

func main() {
	config.LoadEnvFile()

	cfg := Config{}
	if err := config.Load(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(-1)
	}
	slog.SetDefault(newLogger(cfg.LogConfig))

	ctx := context.Background()

	profiles, closeStore := newProfileStore(ctx, cfg)
	defer closeStore()

	idp := newIdentityClient(cfg)

	sink, closeSink := newWarningSink(cfg.KafkaConfig)
	defer closeSink()

	registry := newSessionRegistry(ctx, cfg.SessionConfig)

	prefixes := router.DefaultPrefixConfig()
	login, signup, mail := router.RateLimitedEndpoints(prefixes)
	rl := ratelimit.FromEnv(cfg.RateLimitConfig, login, signup, mail)

	routes, _ := router.NewConfig(router.Dependencies{
		Profiles:          profiles,
		Identity:          idp,
		WarningSink:       sink,
		Sessions:          registry,
		JWTSecret:         cfg.JWTConfig.Secret,
		JWTIssuer:         cfg.JWTConfig.Issuer,
		JWTAudience:       cfg.JWTConfig.Audience,
		TokenExpiry:       cfg.JWTConfig.Expiry,
		SiteURL:           cfg.IdentityConfig.SiteURL,
		CookieSecure:      cfg.JWTConfig.CookieSecure,
		UsePKCE:           cfg.IdentityConfig.PKCE,
		LoginInvalidFloor: cfg.LoginConfig.InvalidFloor,
		RateLimit:         rl,
	}, prefixes)
	go routes.RateLimiter.Run(ctx)

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)
	router.SetupRoutes(server.R, routes)

	slog.Info("MoodMeter account service ready",
		"idp_mode", cfg.IdentityConfig.Mode,
		"profile_store", cfg.ProfileStore.Persistence,
		"session_store", cfg.SessionConfig.Store,
		"kafka", cfg.KafkaConfig.Enabled(),
		"pkce", cfg.IdentityConfig.PKCE,
	)
	server.Run()
}

func newLogger(c LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newProfileStore(ctx context.Context, cfg Config) (profile.Repository, func()) {
	if cfg.ProfileStore.Persistence == config.PersistenceFile {
		repo, err := profile.NewRepository(config.PersistenceFile, profile.RepositoryConfig{DataDir: cfg.ProfileStore.DataDir})
		if err != nil {
			slog.Error("Failed creating file profile store", "dir", cfg.ProfileStore.DataDir, "err", err)
			os.Exit(-1)
		}
		return repo, func() {}
	}

	dbConfig := cfg.DatabaseConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User, "err", err)
		os.Exit(-1)
	}
	repo, err := profile.NewRepository(config.PersistencePostgres, profile.RepositoryConfig{DB: pool})
	if err != nil {
		slog.Error("Failed creating profile store", "err", err)
		os.Exit(-1)
	}
	return repo, pool.Close
}

func newIdentityClient(cfg Config) identity.Client {
	ic := cfg.IdentityConfig
	if ic.Mode == config.IdentityModeGoTrue {
		slog.Info("Using GoTrue identity provider", "url", ic.URL)
		return identity.NewGoTrueClient(ic.URL,
			identity.WithAPIKey(ic.APIKey),
			identity.WithTimeout(ic.Timeout),
			identity.WithBreaker(ic.BreakerMaxFailures, ic.BreakerOpenTimeout),
		)
	}

	var notifier notification.Notifier = notification.LogNotifier{}
	if cfg.EmailConfig.Enabled {
		n, err := notification.NewEmailNotifier(cfg.EmailConfig.ToSMTPConfig(), notification.DefaultTemplates())
		if err != nil {
			slog.Error("Failed creating email notifier", "host", cfg.EmailConfig.Host, "err", err)
			os.Exit(-1)
		}
		notifier = n
	}
	slog.Warn("Using in-memory identity provider; accounts are lost on restart")
	return identity.NewMemoryProvider(
		identity.WithNotifier(notifier),
		identity.WithSiteURL(ic.SiteURL),
	)
}

func newWarningSink(kc config.KafkaConfig) (reconcile.WarningSink, func()) {
	if !kc.Enabled() {
		return reconcile.LogSink{}, func() {}
	}
	ks := reconcile.NewKafkaSink(reconcile.NewKafkaWriter(kc.Brokers), kc.WarningsTopic)
	slog.Info("Publishing reconcile warnings", "brokers", kc.Brokers, "topic", kc.WarningsTopic)
	return reconcile.MultiSink{reconcile.LogSink{}, ks}, func() {
		if err := ks.Close(); err != nil {
			slog.Error("Failed closing kafka writer", "err", err)
		}
	}
}

func newSessionRegistry(ctx context.Context, sc config.SessionConfig) *sessions.Service {
	if sc.Store != config.SessionStoreRedis {
		return sessions.NewService(sessions.NewMemoryRepository())
	}
	client, err := sessions.NewRedisClient(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
	if err != nil {
		slog.Error("Failed connecting to redis", "addr", sc.RedisAddr, "err", err)
		os.Exit(-1)
	}
	return sessions.NewService(sessions.NewRedisRepository(client))
}
