package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hungerdash/hungerdash-backend/api/controllers"
	webhookcontrollers "github.com/hungerdash/hungerdash-backend/api/controllers/webhooks"
	"github.com/hungerdash/hungerdash-backend/api/middleware"
	cartsvc "github.com/hungerdash/hungerdash-backend/internal/cart"
	checkoutsvc "github.com/hungerdash/hungerdash-backend/internal/checkout"
	couponsvc "github.com/hungerdash/hungerdash-backend/internal/coupons"
	deliverysvc "github.com/hungerdash/hungerdash-backend/internal/delivery"
	ordersvc "github.com/hungerdash/hungerdash-backend/internal/orders"
	paymentsvc "github.com/hungerdash/hungerdash-backend/internal/payments"
	"github.com/hungerdash/hungerdash-backend/pkg/config"
	"github.com/hungerdash/hungerdash-backend/pkg/db"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/redis"
)

// webhookVerifier checks the HMAC signature on gateway deliveries.
// Satisfied by *gateway.Client.
type webhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) bool
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatewayVerifier webhookVerifier,
	cartService cartsvc.Service,
	checkoutService checkoutsvc.Service,
	ordersService ordersvc.Service,
	paymentsService paymentsvc.Service,
	couponsService couponsvc.Service,
	deliveryService deliverysvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	apiPolicy := middleware.RateLimitPolicy{
		Name:   "api",
		Limit:  cfg.RateLimit.APILimit,
		Window: cfg.RateLimit.APIWindow,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(paymentsService, gatewayVerifier, logg))
	})

	// Storefront reads available before sign-in. Throttled by client IP.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))
		r.Get("/api/v1/delivery-settings", controllers.DeliverySettingsFetch(deliveryService, logg))
		r.Get("/api/v1/delivery-settings/calculate-charge", controllers.DeliveryQuote(deliveryService, logg))
		r.Get("/api/v1/coupons/active", controllers.ListActiveCoupons(couponsService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Put("/items/{itemID}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(cartService, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(cartService, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(cartService, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", controllers.PlaceOrder(checkoutService, logg))
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderID}", controllers.OrderDetail(ordersService, logg))
			r.Get("/{orderID}/track", controllers.OrderTracking(ordersService, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(ordersService, logg))
		})

		r.Route("/v1/payments", func(r chi.Router) {
			r.Get("/", controllers.ListPayments(paymentsService, logg))
			r.Post("/checkout", controllers.PaymentCheckout(paymentsService, logg))
			r.Post("/create", controllers.PaymentCreate(paymentsService, logg))
			r.Get("/{paymentID}", controllers.PaymentDetail(paymentsService, logg))
			r.Get("/{paymentID}/confirm", controllers.PaymentConfirm(paymentsService, logg))
		})

		r.Post("/v1/coupons/validate", controllers.ValidateCoupon(couponsService, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Patch("/v1/orders/{orderID}/status", controllers.AdminUpdateOrderStatus(ordersService, logg))
		r.Post("/v1/payments/{paymentID}/refund", controllers.AdminRefundPayment(paymentsService, logg))

		r.Route("/v1/coupons", func(r chi.Router) {
			r.Get("/", controllers.AdminListCoupons(couponsService, logg))
			r.Post("/", controllers.AdminCreateCoupon(couponsService, logg))
			r.Patch("/{couponID}", controllers.AdminUpdateCoupon(couponsService, logg))
			r.Delete("/{couponID}", controllers.AdminDeactivateCoupon(couponsService, logg))
		})

		r.Post("/v1/delivery-settings", controllers.AdminReplaceDeliverySettings(deliveryService, logg))
	})

	return r
}
