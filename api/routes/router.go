package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/sgtm-webhook/api/controllers"
	"github.com/angelmondragon/sgtm-webhook/api/middleware"
	"github.com/angelmondragon/sgtm-webhook/internal/dispatch"
	"github.com/angelmondragon/sgtm-webhook/internal/events"
	"github.com/angelmondragon/sgtm-webhook/internal/statistics"
	"github.com/angelmondragon/sgtm-webhook/pkg/config"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

// Params carries the services the HTTP surface exposes.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	Readiness  map[string]controllers.Pinger
	Gatherer   prometheus.Gatherer
	Events     *events.Handler
	Dispatcher *dispatch.Dispatcher
	Statistics *statistics.Service
	Outcomes   statistics.Repository
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/events", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.OperatorRoleSystem, enums.OperatorRoleAdmin))
		r.Post("/orders", controllers.OrderEvents(p.Events, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin))

		r.Route("/dispatch", func(r chi.Router) {
			r.Post("/reprocess", controllers.AdminDispatchReprocess(p.Dispatcher, cfg.Dispatch.ReprocessLimit, logg))
			r.Get("/{orderId}", controllers.AdminDispatchRecord(p.Dispatcher, logg))
			r.Post("/{orderId}/resend", controllers.AdminDispatchResend(p.Dispatcher, logg))
			r.Get("/{orderId}/outcomes", controllers.AdminDispatchOutcomes(p.Outcomes, logg))
		})
		r.Get("/statistics", controllers.AdminStatistics(p.Statistics, logg))
		r.Post("/webhook/test", controllers.AdminWebhookTest(p.Dispatcher, logg))
		r.Get("/webhook/connectivity", controllers.AdminWebhookConnectivity(p.Dispatcher, logg))
	})

	return r
}
