// Package server wires configuration, storage and services into the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/config"
	"github.com/pageza/recipe-lens/backend/internal/api"
	"github.com/pageza/recipe-lens/backend/internal/database"
	"github.com/pageza/recipe-lens/backend/internal/inference"
	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/ratelimit"
	"github.com/pageza/recipe-lens/backend/internal/service"
)

// Server represents the HTTP server
type Server struct {
	cfg    *config.Config
	db     *gorm.DB
	redis  *redis.Client
	router *gin.Engine
	http   *http.Server
}

// New opens every backing store named by cfg and builds the router.
func New(cfg *config.Config) (*Server, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	s := &Server{cfg: cfg, db: db}
	if cfg.Redis.Enabled() {
		client, err := database.NewRedisClient(cfg.Redis)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		s.redis = client
	}

	deps, err := s.dependencies(context.Background())
	if err != nil {
		_ = s.close()
		return nil, err
	}
	s.router = api.NewRouter(deps, cfg.Server.CORSOrigins)
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) dependencies(ctx context.Context) (*api.Dependencies, error) {
	cfg := s.cfg

	rules, err := limitRules(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	var store ratelimit.Store
	if cfg.RateLimit.Store == "redis" && s.redis != nil {
		store = ratelimit.NewRedisStore(s.redis)
	} else {
		store = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(store, rules)

	var engineOpts []inference.HTTPOption
	if cfg.Inference.MaxRPS > 0 {
		engineOpts = append(engineOpts, inference.WithThrottle(cfg.Inference.MaxRPS, max(cfg.Inference.Burst, 1)))
	}
	if cfg.Inference.URL == "" {
		logging.Warn().Msg("inference.url is not set; /predict will answer 502")
	}
	engine := inference.NewHTTPEngine(cfg.Inference.URL, engineOpts...)

	var gatewayOpts []service.GatewayOption
	if cfg.Inference.CacheTTL > 0 {
		if s.redis != nil {
			gatewayOpts = append(gatewayOpts, service.WithResultCache(service.NewRedisResultCache(s.redis)))
		} else {
			gatewayOpts = append(gatewayOpts, service.WithResultCache(service.NewMemoryResultCache(cfg.Inference.CacheTTL)))
		}
	}
	if cfg.Storage.Enabled() {
		s3cfg, err := config.NewS3Config(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		gatewayOpts = append(gatewayOpts, service.WithImageStore(service.NewS3ImageStore(s3cfg)))
	}

	return &api.Dependencies{
		DB:             s.db,
		Auth:           service.NewAuthService(s.db, cfg.JWT.Secret, cfg.JWT.Expiry),
		Recipes:        service.NewRecipeService(s.db),
		Ratings:        service.NewRatingService(s.db),
		Favorites:      service.NewFavoriteService(s.db),
		Shopping:       service.NewShoppingService(s.db),
		Gateway:        service.NewInferenceGateway(engine, limiter, cfg.Inference, gatewayOpts...),
		Limiter:        limiter,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, nil
}

// limitRules parses the per-route budgets.
func limitRules(cfg config.RateLimitConfig) (map[ratelimit.Route]ratelimit.Rule, error) {
	raw := map[ratelimit.Route]string{
		ratelimit.RoutePredict:    cfg.Predict,
		ratelimit.RouteLogin:      cfg.Login,
		ratelimit.RouteRegister:   cfg.Register,
		ratelimit.RouteRecipeSave: cfg.RecipeSave,
		ratelimit.RouteRate:       cfg.Rate,
		ratelimit.RouteDefault:    cfg.Default,
	}
	rules := make(map[ratelimit.Route]ratelimit.Rule, len(raw))
	for route, value := range raw {
		if value == "" {
			continue
		}
		rule, err := ratelimit.ParseRule(value)
		if err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", route, err)
		}
		rules[route] = rule
	}
	return rules, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.http.Addr).Msg("server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, database.Close(s.db))
	return errors.Join(errs...)
}
