package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lingvodoc/lingvodoc/internal/acl"
	"github.com/lingvodoc/lingvodoc/internal/auth"
	"github.com/lingvodoc/lingvodoc/internal/observability"
	"github.com/lingvodoc/lingvodoc/internal/platform/httpx"
	"github.com/lingvodoc/lingvodoc/internal/shared"
	"github.com/lingvodoc/lingvodoc/jobs"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	ACLHandler     *acl.Handler
	ACLMiddleware  acl.Middleware
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	// Checks are consulted by /healthz, keyed by name.
	Checks map[string]Pinger
}

// NewRouter constructs the chi.Router with Lingvodoc defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthz(params.Checks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/acl", params.ACLHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.ACLMiddleware.RequireAdmin)
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := healthStatus{Status: "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if status.Checks == nil {
				status.Checks = make(map[string]string, len(checks))
			}
			if err := check.Ping(ctx); err != nil {
				status.Status = "degraded"
				status.Checks[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status.Checks[name] = "ok"
		}
		httpx.JSON(w, code, status)
	}
}
