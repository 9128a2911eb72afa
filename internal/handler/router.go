package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/observability"
	"github.com/boddenberg/travel-crm-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services groups the use cases exposed over HTTP.
type Services struct {
	Auth          *service.AuthService
	Leads         *service.LeadService
	Transitions   *service.TransitionService
	Documents     *service.DocumentService
	Notifications *service.NotificationService
	Generator     *service.NotificationGenerator
	Dashboard     *service.DashboardService
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the router.
type Options struct {
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
	// FilesDir, when set, is served under /files/ (local document storage).
	FilesDir string
	Store    Pinger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.Store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if opts.FilesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FilesDir))))
	}

	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(svcs.Auth, logger))

		// Reachable while the account is pending.
		r.Get("/me", meHandler(svcs.Auth))
		r.Post("/access-request", accessRequestHandler(svcs.Auth, logger))

		r.Group(func(r chi.Router) {
			r.Use(RequireApproved(logger))

			r.Get("/pipeline", pipelineHandler(svcs.Transitions))
			r.Get("/dashboard", dashboardHandler(svcs.Dashboard, logger))

			// Leads
			r.Route("/leads", func(r chi.Router) {
				r.Get("/", listLeadsHandler(svcs.Leads, logger))
				r.Post("/", createLeadHandler(svcs.Leads, logger))

				r.Route("/{leadId}", func(r chi.Router) {
					r.Get("/", getLeadHandler(svcs.Leads, logger))
					r.Patch("/", updateLeadHandler(svcs.Leads, logger))
					r.Delete("/", deleteLeadHandler(svcs.Leads, logger))

					// Transitions
					r.Get("/transitions/forward", prepareForwardHandler(svcs.Leads, svcs.Transitions, logger))
					r.Get("/transitions/backward", prepareBackwardHandler(svcs.Leads, svcs.Transitions, logger))
					r.Post("/transitions", executeTransitionHandler(svcs.Leads, svcs.Transitions, logger))
					r.Post("/advance", advanceHandler(svcs.Leads, svcs.Transitions, logger))
					r.Post("/regress", regressHandler(svcs.Leads, svcs.Transitions, logger))

					// Documents
					r.Get("/documents", listDocumentsHandler(svcs.Documents, logger))
					r.Post("/documents", uploadDocumentHandler(svcs.Documents, opts.MaxUploadBytes, logger))
				})
			})

			r.Get("/documents/expiring", expiringDocumentsHandler(svcs.Documents, logger))
			r.Delete("/documents/{docId}", deleteDocumentHandler(svcs.Documents, logger))

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", listNotificationsHandler(svcs.Notifications, logger))
				r.Post("/generate", generateNotificationsHandler(svcs.Generator, logger))
				r.Post("/read-all", markAllNotificationsReadHandler(svcs.Notifications, logger))
				r.Post("/{notifId}/read", markNotificationReadHandler(svcs.Notifications, logger))
				r.Delete("/{notifId}", deleteNotificationHandler(svcs.Notifications, logger))
			})

			// Admin
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAdmin, logger))

				r.Get("/metrics/notifications", notificationMetricsHandler(metrics))
				r.Route("/admin", func(r chi.Router) {
					r.Get("/profiles", listProfilesHandler(svcs.Auth, logger))
					r.Post("/profiles/{profileId}/approve", approveProfileHandler(svcs.Auth, logger))
					r.Post("/profiles/{profileId}/reject", rejectProfileHandler(svcs.Auth, logger))
					r.Post("/profiles/{profileId}/suspend", suspendProfileHandler(svcs.Auth, logger))
					r.Put("/profiles/{profileId}/role", changeRoleHandler(svcs.Auth, logger))
					r.Post("/notifications", createNotificationHandler(svcs.Notifications, logger))
				})
			})
		})
	})

	return r
}

// ============================================================
// Probes
// ============================================================

func healthzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "travel-crm", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("healthz: record store unreachable", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "record-store", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func notificationMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.NotificationSnapshot())
	}
}
