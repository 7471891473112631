package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/blog-backend/config"
	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/services"
)

type Server struct {
	*http.Server
	startupTime time.Time
}

func NewServer(cfg *config.Config, database database.Database, store services.FileStore) (Server, error) {
	startupTime := time.Now()

	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		return Server{}, err
	}

	router := newRouter(database, withConfig(cfg), withStartupTime(startupTime), withFileStore(store), withTrustedProxies(proxies))

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout(),  // Timeout for reading the entire request
		WriteTimeout: cfg.WriteTimeout(), // Timeout for writing the response
		IdleTimeout:  cfg.IdleTimeout(),  // Timeout for idle connections
	}

	return Server{server, startupTime}, nil
}

type router struct {
	config      *config.Config
	startupTime time.Time
	store       services.FileStore
	proxies     []*net.IPNet
}

func withConfig(c *config.Config) func(*router) {
	return func(r *router) {
		r.config = c
	}
}

func withStartupTime(startupTime time.Time) func(*router) {
	return func(r *router) {
		r.startupTime = startupTime
	}
}

func withFileStore(store services.FileStore) func(*router) {
	return func(r *router) {
		r.store = store
	}
}

func withTrustedProxies(proxies []*net.IPNet) func(*router) {
	return func(r *router) {
		r.proxies = proxies
	}
}

func newRouter(database database.Database, opts ...func(*router)) *chi.Mux {
	var router router
	for _, opt := range opts {
		opt(&router)
	}
	cfg := router.config

	metrics := newHTTPMetrics()
	blocklist := newIPBlocklist(cfg.BlockedIPList())
	tokens := services.NewTokenIssuer(cfg.JWTSecret)
	uploads := services.NewUploadGuard(router.store, cfg.MaxUploadBytes())

	chiRouter := chi.NewRouter()
	chiRouter.Use(LogInternalServerErrors)
	chiRouter.Use(trustedRealIP(router.proxies))
	chiRouter.Use(RequestID)
	chiRouter.Use(ProcessTime)
	chiRouter.Use(HTTPLoggingMiddleware)
	chiRouter.Use(metrics.middleware)
	chiRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Process-Time"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	chiRouter.Use(blocklist.middleware)
	if cfg.RateLimitPerMinute > 0 {
		chiRouter.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
	}

	handlers := initializeHandlers(database, cfg, tokens, uploads, blocklist, router.startupTime)
	authMiddleware := newAuthMiddleware(database.UserRepo(), tokens)

	setupRoutes(chiRouter, handlers, authMiddleware)
	if local, ok := router.store.(*services.LocalStore); ok {
		setupMediaRoutes(chiRouter, cfg.MediaURLPrefix, local.Dir())
	}
	chiRouter.Method(http.MethodGet, "/metrics", metrics.handler())

	return chiRouter
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("Server started on: %s", s.Addr)
	errChannel <- s.ListenAndServe()
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Msg("Gracefully shutting down...")

	gracefullCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(gracefullCtx); err != nil {
		log.Error().Msgf("Error shutting down the server: %v", err)
	} else {
		log.Info().Msg("HttpServer gracefully shut down")
	}
}
