package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tasklane/tasklane/internal/auth"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/model"
)

// Route paths the authorization filter knows about.
const (
	PathRoot           = "/"
	PathSignIn         = "/sign-in"
	PathSignUp         = "/sign-up"
	PathDashboard      = "/dashboard"
	PathAdminDashboard = "/admin/dashboard"
	PathError          = "/error"
	PathWebhook        = "/api/webhook/register"

	AdminPrefix = "/admin"
)

var publicPaths = map[string]bool{
	PathRoot:    true,
	PathSignIn:  true,
	PathSignUp:  true,
	PathWebhook: true,
}

// Decision is the outcome of the authorization filter for one request.
// An empty Location means the request proceeds.
type Decision struct {
	Outcome  string
	Location string
}

func pass() Decision {
	return Decision{Outcome: metrics.DecisionPass}
}

// Decide classifies path for caller, which is nil for anonymous requests.
// It has no side effects.
func Decide(path string, caller *model.Caller) Decision {
	path = normalizePath(path)

	if path == PathError {
		return pass()
	}

	if caller == nil {
		if publicPaths[path] {
			return pass()
		}
		return Decision{Outcome: metrics.DecisionSignIn, Location: PathSignIn}
	}

	admin := caller.IsAdmin()
	switch {
	case admin && path == PathDashboard:
		return Decision{Outcome: metrics.DecisionAdminDashboard, Location: PathAdminDashboard}
	case !admin && isAdminPath(path):
		return Decision{Outcome: metrics.DecisionDashboard, Location: PathDashboard}
	case path == PathRoot || path == PathSignIn || path == PathSignUp:
		return dashboardFor(admin)
	}

	return pass()
}

func dashboardFor(admin bool) Decision {
	if admin {
		return Decision{Outcome: metrics.DecisionAdminDashboard, Location: PathAdminDashboard}
	}
	return Decision{Outcome: metrics.DecisionDashboard, Location: PathDashboard}
}

func isAdminPath(path string) bool {
	return path == AdminPrefix || strings.HasPrefix(path, AdminPrefix+"/")
}

func normalizePath(path string) string {
	if path == "" {
		return PathRoot
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return PathRoot
		}
	}
	return path
}

// AuthorizeConfig holds dependencies for the authorization filter.
type AuthorizeConfig struct {
	Gateway auth.Gateway
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Authorize resolves the caller for every request and redirects according
// to Decide. Requests that proceed carry the caller in their context.
// Any failure, including a panic while resolving the caller, redirects to
// the error page.
func Authorize(cfg AuthorizeConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := resolveCaller(cfg.Gateway, r)
			if err != nil {
				cfg.Logger.Error("caller resolution failed",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncAuthDecision(metrics.DecisionError)
				http.Redirect(w, r, PathError, http.StatusTemporaryRedirect)
				return
			}

			d := Decide(r.URL.Path, caller)
			recorder.IncAuthDecision(d.Outcome)

			if d.Location != "" {
				cfg.Logger.Debug("request redirected",
					slog.String("path", r.URL.Path),
					slog.String("location", d.Location),
					slog.String("user_id", callerID(caller)),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				http.Redirect(w, r, d.Location, http.StatusTemporaryRedirect)
				return
			}

			if caller != nil {
				r = r.WithContext(auth.ContextWithCaller(r.Context(), caller))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveCaller turns a gateway panic into an error.
func resolveCaller(gw auth.Gateway, r *http.Request) (caller *model.Caller, err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			caller, err = nil, fmt.Errorf("resolve caller panicked: %v", rvr)
		}
	}()
	return gw.ResolveCaller(r)
}

func callerID(c *model.Caller) string {
	if c == nil {
		return ""
	}
	return c.UserID
}

// RequireRole rejects requests whose caller lacks role. Applied behind
// Authorize, so it only guards against routing mistakes.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.CallerFromContext(r.Context())
			if caller == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}
			if caller.Role != role {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden access")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
