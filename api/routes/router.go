package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rilegato/rilegato-backend/api/controllers"
	cartcontrollers "github.com/rilegato/rilegato-backend/api/controllers/cart"
	shippingcontrollers "github.com/rilegato/rilegato-backend/api/controllers/shipping"
	"github.com/rilegato/rilegato-backend/api/middleware"
	cartsvc "github.com/rilegato/rilegato-backend/internal/cart"
	shippingsvc "github.com/rilegato/rilegato-backend/internal/shipping"
	"github.com/rilegato/rilegato-backend/pkg/auth/session"
	"github.com/rilegato/rilegato-backend/pkg/config"
	"github.com/rilegato/rilegato-backend/pkg/db"
	"github.com/rilegato/rilegato-backend/pkg/logger"
	"github.com/rilegato/rilegato-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.Checker,
	cartService cartsvc.Service,
	quoteService shippingsvc.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session, sessions, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Fetch(cartService, logg))
			r.Post("/merge", cartcontrollers.Merge(cartService, logg))
			r.Post("/add", cartcontrollers.Add(cartService, logg))
			r.Put("/update", cartcontrollers.Update(cartService, logg))
			r.Delete("/remove/{itemID}", cartcontrollers.Remove(cartService, logg))
			r.Post("/clear", cartcontrollers.Clear(cartService, logg))
		})

		r.With(middleware.QuoteRateLimit(cfg.RateLimit, redisClient, logg)).
			Post("/shipping/rates", shippingcontrollers.Rates(quoteService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session, sessions, logg))
		r.Get("/cart/{userID}/shipping", shippingcontrollers.AdminCachedQuote(quoteService, cartService, logg))
	})

	return r
}
