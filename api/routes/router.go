package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ordercore-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/ordercore-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/ordercore-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/ordercore-backend/api/controllers/webhooks"
	"github.com/angelmondragon/ordercore-backend/api/middleware"
	"github.com/angelmondragon/ordercore-backend/internal/audit"
	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/internal/checkout"
	"github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/ordercore-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type auditReader interface {
	ListRecent(ctx context.Context, orderID uuid.UUID, limit int, cursor string) (*audit.Page, error)
}

// Dependencies are the services the HTTP surface is wired to.
type Dependencies struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               pinger
	Redis            pinger
	IdempotencyStore pkgredis.IdempotencyStore
	Carts            cart.Service
	Checkout         checkout.Service
	Orders           orders.Service
	Audit            auditReader
	PaymentWebhooks  webhookcontrollers.PaymentWebhookService
	MetricsHandler   http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	idem := middleware.Idempotency(deps.IdempotencyStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(deps.PaymentWebhooks, cfg.Webhooks.PaymentSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Carts, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Carts, logg))
				r.Patch("/items/{skuId}", cartcontrollers.CartUpdateItem(deps.Carts, logg))
				r.Delete("/items/{skuId}", cartcontrollers.CartRemoveItem(deps.Carts, logg))
			})
			r.With(idem).Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.With(idem).Post("/orders/{orderId}/cancel", ordercontrollers.CancelOrder(deps.Orders, logg))
		})
	})

	r.Route("/api/admin/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))
		r.With(idem).Post("/", ordercontrollers.AdminCreateOrder(deps.Checkout, logg))
		r.With(idem).Post("/bulk-cancel", ordercontrollers.AdminBulkCancel(deps.Orders, logg))
		r.With(idem).Post("/{orderId}/transitions", ordercontrollers.AdminTransition(deps.Orders, logg))
		r.With(idem).Delete("/{orderId}", ordercontrollers.AdminSoftDelete(deps.Orders, logg))
		r.Get("/{orderId}/audit", ordercontrollers.AdminOrderAudit(deps.Audit, cfg.Orders.AuditDefaultLimit, cfg.Orders.AuditMaxLimit, logg))
	})

	return r
}
