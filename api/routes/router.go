package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/content"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/likes"
	"github.com/angelmondragon/storefront-backend/internal/newsletter"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/promos"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const requestTimeout = 30 * time.Second

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// RedisStore is the redis surface the HTTP layer needs: idempotency records
// and rate limit counters.
type RedisStore interface {
	pkgredis.IdempotencyStore
	middleware.RateLimitStore
	Ping(context.Context) error
}

type paymentSignatureVerifier interface {
	VerifyWebhookSignature(body []byte, header string) bool
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type newsletterSubscriber interface {
	Subscribe(ctx context.Context, email string) (*newsletter.Subscription, error)
}

// Dependencies bundles what the router wires into controllers.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    RedisStore
	Sessions sessionManager
	Registry *prometheus.Registry

	Auth       auth.Service
	Catalog    catalog.Service
	Content    content.Service
	Cart       cart.Service
	Promos     promos.Service
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	Payments   payments.Service
	Likes      likes.Service
	Reviews    reviews.Service
	Newsletter newsletterSubscriber

	PaymentWebhook webhookcontrollers.PaymentEventHandler
	WebhookVerify  paymentSignatureVerifier
	WebhookGuard   webhookGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if deps.Registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(deps.Registry)
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	limits := cfg.RateLimit
	loginPolicy := middleware.RateLimitPolicy{Name: "login", Window: limits.LoginWindow, IPLimit: limits.LoginIPLimit, AccountLimit: limits.LoginAccountLimit}
	registerPolicy := middleware.RateLimitPolicy{Name: "register", Window: limits.RegisterWindow, IPLimit: limits.RegisterIPLimit, AccountLimit: limits.RegisterAccountLimit}
	newsletterPolicy := middleware.RateLimitPolicy{Name: "newsletter", Window: limits.NewsletterWindow, IPLimit: limits.NewsletterIPLimit}
	resetPolicy := middleware.RateLimitPolicy{Name: "password_reset", Window: limits.ResetWindow, IPLimit: limits.ResetIPLimit, AccountLimit: limits.ResetAccountLimit}

	rateStore := rateLimitStore(deps.Redis)
	idemStore := idempotencyStore(deps.Redis)
	checkoutOnce := middleware.Idempotency(idemStore, middleware.CheckoutIdempotencyTTL, logg)
	onceADay := middleware.Idempotency(idemStore, middleware.DefaultIdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(deps.PaymentWebhook, deps.WebhookVerify, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(middleware.CartSession(!cfg.App.IsDev(), logg))
		r.Use(middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(middleware.RateLimit(registerPolicy, rateStore, logg), onceADay).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Sessions, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Sessions, cfg.JWT, logg))
			r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg)).Post("/password", controllers.AuthChangePassword(deps.Auth, logg))
			r.With(middleware.RateLimit(resetPolicy, rateStore, logg)).Post("/password/reset", controllers.AuthPasswordResetRequest(deps.Auth, logg))
			r.With(middleware.RateLimit(resetPolicy, rateStore, logg)).Post("/password/reset/confirm", controllers.AuthPasswordResetConfirm(deps.Auth, logg))
		})

		r.Get("/categories", controllers.CategoryList(deps.Catalog, logg))
		r.Route("/content", func(r chi.Router) {
			r.Get("/", controllers.ContentHome(deps.Content, logg))
			r.Get("/promotions", controllers.ContentPromotions(deps.Content, logg))
			r.Get("/legal", controllers.ContentLegalList(deps.Content, logg))
			r.Get("/legal/{slug}", controllers.ContentLegalPage(deps.Content, logg))
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Catalog, logg))
			r.Get("/{slug}", controllers.ProductDetail(deps.Catalog, logg))
			r.Post("/{productID}/like", controllers.ProductLikeToggle(deps.Likes, logg))
			r.Get("/{productID}/reviews", controllers.ReviewList(deps.Reviews, logg))
			r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg)).Post("/{productID}/reviews", controllers.ReviewCreate(deps.Reviews, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
			r.Delete("/", cartcontrollers.CartEmpty(deps.Cart, logg))
			r.Get("/count", cartcontrollers.CartCount(deps.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
			r.Post("/items/{productID}/decrement", cartcontrollers.CartDecrementItem(deps.Cart, logg))
			r.Delete("/items/{itemID}", cartcontrollers.CartRemoveItem(deps.Cart, logg))
			r.Post("/promo", cartcontrollers.CartApplyPromo(deps.Cart, logg))
		})

		r.With(checkoutOnce).Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		r.With(checkoutOnce).Post("/checkout/buy-now", controllers.BuyNow(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderID}", ordercontrollers.Detail(deps.Orders, logg))
			r.Get("/{orderID}/payment-return", ordercontrollers.PaymentReturn(deps.Payments, logg))
		})

		r.With(middleware.RateLimit(newsletterPolicy, rateStore, logg)).Post("/newsletter", controllers.NewsletterSubscribe(deps.Newsletter, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.With(onceADay).Post("/orders/{orderID}/status", controllers.AdminOrderStatus(deps.Orders, logg))
			r.Post("/products", controllers.AdminProductCreate(deps.Catalog, logg))
			r.Post("/categories", controllers.AdminCategoryCreate(deps.Catalog, logg))
			r.Post("/promo-codes", controllers.AdminPromoCreate(deps.Promos, logg))
		})
	})

	return r
}

func readinessDeps(deps Dependencies) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["database"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	return checks
}

// The middleware nil-checks their stores, so a missing redis must reach them
// as an untyped nil.
func rateLimitStore(store RedisStore) middleware.RateLimitStore {
	if store == nil {
		return nil
	}
	return store
}

func idempotencyStore(store RedisStore) pkgredis.IdempotencyStore {
	if store == nil {
		return nil
	}
	return store
}
