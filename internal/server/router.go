package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tasklane/tasklane/internal/auth"
	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/handler"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/middleware"
	"github.com/tasklane/tasklane/internal/model"
)

// Deps are the collaborators NewRouter wires into routes.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Gateway auth.Gateway
	Limiter middleware.RateLimiter // nil disables rate limiting

	// Metrics is required; it records and serves /metrics.
	Metrics *metrics.InMemoryRecorder

	// Health checks by name; a nil checker is reported as not configured.
	Health map[string]handler.HealthChecker

	Todos         handler.TodoService
	Subscriptions handler.SubscriptionService
	Verifier      handler.WebhookVerifier
	Provisioner   handler.Provisioner
	Admin         handler.AdminService
}

// NewRouter builds the application router. Probes and /metrics bypass the
// authorization filter; every other path, including unknown ones, passes
// through it first.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config

	h := handler.New()
	healthHandler := handler.NewHealthHandler(d.Health)
	metricsHandler := handler.NewMetricsHandler(d.Metrics)
	pageHandler := handler.NewPageHandler()
	todoHandler := handler.NewTodoHandler(d.Todos, d.Logger)
	subscriptionHandler := handler.NewSubscriptionHandler(d.Subscriptions, d.Logger)
	webhookHandler := handler.NewWebhookHandler(d.Verifier, d.Provisioner, d.Metrics, d.Logger)
	adminHandler := handler.NewAdminHandler(d.Admin, d.Logger)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:        d.Logger,
		Limiter:       d.Limiter,
		CallerEnabled: cfg.RateLimitAPIEnabled && d.Limiter != nil,
		CallerRPM:     cfg.RateLimitAPIRPM,
		CallerBurst:   cfg.RateLimitAPIBurst,
		IPEnabled:     cfg.RateLimitWebhookEnabled && d.Limiter != nil,
		IPRPS:         cfg.RateLimitWebhookRPS,
		IPBurst:       cfg.RateLimitWebhookBurst,
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recoverer(d.Logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(cfg.IsDevelopment()))
	r.Use(middleware.CORS(cfg.GetCORSAllowedOrigins()))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	app := chi.NewRouter()
	app.Use(middleware.Authorize(middleware.AuthorizeConfig{
		Gateway: d.Gateway,
		Logger:  d.Logger,
		Metrics: d.Metrics,
	}))

	app.Get(middleware.PathRoot, pageHandler.Page("home"))
	app.Get(middleware.PathSignIn, pageHandler.Page("sign-in"))
	app.Get(middleware.PathSignUp, pageHandler.Page("sign-up"))
	app.Get(middleware.PathDashboard, pageHandler.Page("dashboard"))
	app.Get(middleware.PathError, pageHandler.Error)

	app.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/webhook/register", webhookHandler.Register)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitCaller(rateLimitCfg))

			r.Route("/todos", func(r chi.Router) {
				r.Get("/", todoHandler.List)
				r.Post("/", todoHandler.Create)
				r.Put("/{id}", todoHandler.Toggle)
				r.Delete("/{id}", todoHandler.Delete)
			})

			r.Post("/subscription", subscriptionHandler.Activate)
			r.Get("/subscription", subscriptionHandler.Status)
		})
	})

	app.Route(middleware.AdminPrefix, func(r chi.Router) {
		r.Use(middleware.RequireRole(model.RoleAdmin))

		r.Get("/dashboard", adminHandler.Dashboard)
		r.Get("/api/users", adminHandler.Users)
		r.Get("/api/activity", adminHandler.Activity)
	})

	app.NotFound(h.NotFound)
	app.MethodNotAllowed(h.MethodNotAllowed)

	r.Mount("/", app)

	return r
}
