package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/infra/observability"
	"github.com/asherv/martpal-go/internal/port"
	"github.com/asherv/martpal-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Deps collects everything the router needs. All fields are required
// except Store, which healthz degrades gracefully without.
type Deps struct {
	Sessions  *service.SessionService
	Sources   *service.SourceService
	Imports   *service.ImportService
	Leads     *service.LeadService
	Messages  *service.MessageService
	Templates *service.TemplateService
	Metrics   *observability.Metrics

	// Store is the primary document store, probed by healthz.
	Store port.SourceHandle

	// WatchInterval is the SSE keepalive period for /v1/leads/watch.
	WatchInterval time.Duration

	Logger *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Store, d.Logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Authentication
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			// Public routes
			r.Post("/register", authRegisterHandler(d.Sessions, d.Logger))
			r.Post("/login", authLoginHandler(d.Sessions, d.Logger))

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(d.Sessions, d.Logger))
				r.Post("/logout", authLogoutHandler(d.Sessions, d.Logger))
				r.Get("/me", authMeHandler(d.Sessions, d.Logger))
			})
		})

		// Everything below requires a live session.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(d.Sessions, d.Logger))

			// =============================================
			// 2. External source
			// =============================================
			r.Post("/source/connect", sourceConnectHandler(d.Sources, d.Logger))
			r.Get("/source/status", sourceStatusHandler(d.Sources, d.Logger))
			r.Post("/source/import", sourceImportHandler(d.Imports, d.Logger))
			r.Delete("/source", sourceDisconnectHandler(d.Sources, d.Logger))

			// =============================================
			// 3. Funnel
			// =============================================
			r.Get("/leads/summary", leadsSummaryHandler(d.Leads, d.Logger))
			r.Get("/leads/watch", leadsWatchHandler(d.Leads, d.WatchInterval, d.Logger))
			r.Get("/leads/{segment}", leadsListHandler(d.Leads, d.Logger))
			r.Post("/leads/{segment}/{id}/move", leadsMoveHandler(d.Leads, d.Logger))
			r.Delete("/leads/{segment}/{id}", leadsDeleteHandler(d.Leads, d.Logger))

			// =============================================
			// 4. Messaging
			// =============================================
			r.Post("/messages/send", messagesSendHandler(d.Messages, d.Logger))
			r.Post("/messages/schedule", messagesScheduleHandler(d.Messages, d.Logger))
			r.Get("/messages/scheduled", messagesScheduledListHandler(d.Messages, d.Logger))

			// =============================================
			// 5. Templates
			// =============================================
			r.Post("/templates", templatesCreateHandler(d.Templates, d.Logger))
			r.Get("/templates", templatesListHandler(d.Templates, d.Logger))
			r.Delete("/templates/{id}", templatesDeleteHandler(d.Templates, d.Logger))

			// =============================================
			// 6. Funnel metrics
			// =============================================
			r.Get("/metrics/funnel", funnelMetricsHandler(d.Metrics, d.Logger))
		})
	})

	return r
}
