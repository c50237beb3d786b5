package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/dailyledger/api/controllers"
	ordercontrollers "github.com/angelmondragon/dailyledger/api/controllers/orders"
	"github.com/angelmondragon/dailyledger/api/middleware"
	"github.com/angelmondragon/dailyledger/internal/orders"
	"github.com/angelmondragon/dailyledger/pkg/config"
	"github.com/angelmondragon/dailyledger/pkg/logger"
	"github.com/angelmondragon/dailyledger/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	idempotencyStore redis.IdempotencyStore,
	metricsHandler http.Handler,
	ordersSvc orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	idempotent := middleware.Idempotency(idempotencyStore, logg)
	r.Route("/api/v1/{tenant}", func(r chi.Router) {
		r.Use(middleware.Tenant(cfg.Ledger, logg))
		r.Get("/cart/{userId}", ordercontrollers.Cart(ordersSvc, logg))
		r.With(idempotent).Post("/order/{userId}", ordercontrollers.Submit(ordersSvc, logg))
		r.Get("/orders/{userId}", ordercontrollers.History(ordersSvc, logg))
		r.With(idempotent).Post("/orderFeedback/{userId}/{orderNumber}", ordercontrollers.Feedback(ordersSvc, logg))
	})

	return r
}
