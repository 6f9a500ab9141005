// Package main is the entrypoint for the Tasklane API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/tasklane/tasklane/internal/auth"
	"github.com/tasklane/tasklane/internal/cache"
	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/events"
	"github.com/tasklane/tasklane/internal/handler"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/repository"
	"github.com/tasklane/tasklane/internal/scheduler"
	"github.com/tasklane/tasklane/internal/server"
	"github.com/tasklane/tasklane/internal/service"
	"github.com/tasklane/tasklane/internal/webhook"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		if err := repository.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			logger.Error("failed to apply migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	verifier, err := webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance)
	if err != nil {
		// The error never includes the secret itself.
		logger.Error("invalid webhook secret", "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewInMemory()

	publisher, activity := newEventBackend(cfg, cacheClient, logger)
	emitter := events.NewEmitter(publisher, logger, recorder)

	// Identity gateway
	gateway := auth.NewClerkGateway(auth.ClerkGatewayConfig{
		Verifier:       auth.NewTokenVerifier(cfg.ClerkJWKSURL, cfg.ClerkIssuer, cfg.ClerkAudience),
		Roles:          auth.NewClerkRoleResolver(cfg.ClerkAPIURL, cfg.ClerkSecretKey, cacheClient, cfg.RoleCacheTTL, logger),
		HeaderFallback: cfg.AuthHeaderFallback,
		Logger:         logger,
	})
	if cfg.AuthHeaderFallback {
		logger.Warn("header identity fallback enabled; never use outside local development")
	}

	// Services
	todoService := service.NewTodoService(repo, emitter, recorder)
	subscriptionService := service.NewSubscriptionService(repo, emitter, recorder, logger)
	provisioningService := service.NewProvisioningService(repo, cacheClient, emitter, recorder, logger)
	adminService := service.NewAdminService(repo, activity)

	router := server.NewRouter(server.Deps{
		Config:  cfg,
		Logger:  logger,
		Gateway: gateway,
		Metrics: recorder,
		Limiter: cacheClient,
		Health: map[string]handler.HealthChecker{
			"database": repo,
			"redis":    cacheClient,
		},
		Todos:         todoService,
		Subscriptions: subscriptionService,
		Verifier:      verifier,
		Provisioner:   provisioningService,
		Admin:         adminService,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Shutdown runs in reverse: scheduler, events, cache, database.
	srv.OnShutdown("database", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("cache", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("events", func(ctx context.Context) error {
		if err := emitter.Drain(ctx); err != nil {
			logger.Warn("event publishes still in flight at shutdown", "error", err)
		}
		return publisher.Close()
	})

	sched := scheduler.New(subscriptionService, logger)
	if err := sched.Start(cfg.ReconcileSchedule); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	srv.OnShutdown("scheduler", sched.Stop)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"events_backend", cfg.EventsBackend,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newEventBackend selects the domain event publisher. Only the Redis
// stream backend can also serve the admin activity feed. An unreachable
// broker falls back to logging so the API still starts.
func newEventBackend(cfg *config.Config, cacheClient *cache.Cache, logger *slog.Logger) (events.Publisher, events.Reader) {
	switch cfg.EventsBackend {
	case "redis":
		stream := events.NewRedisStreamPublisher(cacheClient.Client(), logger)
		return stream, stream
	case "rabbitmq":
		pub, err := events.NewRabbitMQPublisher(cfg.AMQPURL, cfg.EventsExchange, logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, logging events instead",
				slog.String("error", sanitizeError(err, cfg.AMQPURL)),
				slog.String("amqp_url", redactURL(cfg.AMQPURL)),
			)
			return events.NewLogPublisher(logger), nil
		}
		return pub, nil
	default:
		return events.NewLogPublisher(logger), nil
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "tasklane")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL drops the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces every secret URL in err's message with its
// redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
