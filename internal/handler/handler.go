package handler

import (
	"context"
	"io"
	"net/http"

	"fsanano/foodshare/internal/metrics"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	AllowedOrigins []string
	// RateLimitRPS and RateLimitBurst throttle signup and login per client address.
	// A zero RPS disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the connection
	// address. Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

type Handler struct {
	router   *chi.Mux
	accounts *AccountHandler
	listings *ListingHandler
	store    Pinger
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	opts     Options
}

func NewHandler(accounts *AccountHandler, listings *ListingHandler, store Pinger, m *metrics.Metrics, log logrus.FieldLogger, opts Options) *Handler {
	router := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	compressor := middleware.NewCompressor(5, "application/json", "text/plain")
	compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})

	// Middleware
	router.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		router.Use(middleware.RealIP)
	}
	router.Use(requestLogger(log, m))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	router.Use(compressor.Handler)

	h := &Handler{
		router:   router,
		accounts: accounts,
		listings: listings,
		store:    store,
		metrics:  m,
		log:      log,
		opts:     opts,
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.router.Get("/healthz", h.HealthCheck)
	h.router.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	h.router.Route("/api", func(r chi.Router) {
		r.Get("/", h.Working)

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if h.opts.RateLimitRPS > 0 {
					r.Use(newIPRateLimiter(h.opts.RateLimitRPS, h.opts.RateLimitBurst).Middleware)
				}
				r.Post("/signup", h.accounts.Signup)
				r.Post("/login", h.accounts.Login)
			})
			r.Get("/search/{city}/{role}", h.accounts.Search)
			r.Get("/leaderboard", h.accounts.Leaderboard)
			r.Put("/add-balance/{username}", h.accounts.AddBalance)
			r.Post("/receive-food/{username}", h.accounts.ReceiveFood)
			r.Put("/food-details/{username}", h.accounts.UpdateFoodDetails)
		})

		r.Route("/donations", func(r chi.Router) {
			r.Post("/submit", h.listings.SubmitDonation)
			r.Get("/", h.listings.ListDonations)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.listings.SubmitRequest)
			r.Get("/", h.listings.ListRequests)
		})
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) Working(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("working!"))
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("health check failed")
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
