package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/authz"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Store is the Redis surface the HTTP layer needs for rate limits and
// idempotency.
type Store interface {
	pkgredis.IdempotencyStore
	middleware.RateLimiterStore
}

// Dependencies bundles everything the router wires into handlers.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Store    Store
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer

	Auth     auth.Service
	Users    users.Service
	Products product.Service
	Cart     cart.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Wishlist wishlist.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.NamedPinger{Name: "database", Pinger: deps.DB},
			controllers.NamedPinger{Name: "redis", Pinger: deps.Redis},
		))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, deps.Store, logg), middleware.Idempotency(deps.Store, logg)).
				Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, deps.Store, logg)).
				Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg), middleware.Authorize(authz.Authenticated, logg)).
				Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.Authorize(authz.Authenticated, logg))
			r.Use(middleware.Idempotency(deps.Store, logg))

			r.Get("/users/me", controllers.UserProfile(deps.Users, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
				r.Delete("/", cartcontrollers.CartClear(deps.Cart, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
				r.Patch("/items", cartcontrollers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items", cartcontrollers.CartRemoveItem(deps.Cart, logg))
				r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItemByID(deps.Cart, logg))
				r.Put("/discount", cartcontrollers.CartApplyDiscount(deps.Cart, logg))
				r.Delete("/discount", cartcontrollers.CartRemoveDiscount(deps.Cart, logg))
				r.Put("/shipping", cartcontrollers.CartUpdateShipping(deps.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Place(deps.Checkout, logg))
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.WishlistList(deps.Wishlist, logg))
				r.Post("/{productId}", controllers.WishlistAdd(deps.Wishlist, logg))
				r.Delete("/{productId}", controllers.WishlistRemove(deps.Wishlist, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.Authorize(authz.IsAdmin, logg))

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", ordercontrollers.AdminList(deps.Orders, logg))
					r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
					r.Patch("/{orderId}/status", ordercontrollers.AdminUpdateStatus(deps.Orders, logg))
				})
				r.Route("/products", func(r chi.Router) {
					r.Post("/", controllers.AdminCreateProduct(deps.Products, logg))
					r.Patch("/{productId}", controllers.AdminUpdateProduct(deps.Products, logg))
					r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.Products, logg))
					r.Put("/{productId}/stock", controllers.AdminSetProductStock(deps.Products, logg))
				})
				r.Route("/users", func(r chi.Router) {
					r.Get("/", controllers.AdminListUsers(deps.Users, logg))
					r.Patch("/{userId}/role", controllers.AdminSetUserRole(deps.Users, logg))
				})
			})
		})
	})

	return r
}
