package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/internal/database"
	"github.com/pageza/recipe-lens/backend/internal/middleware"
	"github.com/pageza/recipe-lens/backend/internal/ratelimit"
	"github.com/pageza/recipe-lens/backend/internal/service"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	DB        *gorm.DB
	Auth      service.IAuthService
	Recipes   service.IRecipeService
	Ratings   service.IRatingService
	Favorites service.IFavoriteService
	Shopping  service.IShoppingService
	Gateway   service.IInferenceGateway
	Limiter   *ratelimit.Limiter
	// MaxUploadBytes caps the /predict request body.
	MaxUploadBytes int64
}

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db *gorm.DB
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	dbStatus := "ok"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.HealthCheck(ctx, h.db); err != nil {
			dbStatus = "unavailable"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": dbStatus,
	})
}

// NewRouter builds the gin engine with the shared middleware chain and every route.
func NewRouter(deps *Dependencies, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.Recovery(),
		middleware.RequestLogger(),
		middleware.Metrics(),
		middleware.CORS(corsOrigins),
		middleware.ErrorHandler(),
	)
	RegisterRoutes(router, deps)
	return router
}

// RegisterRoutes registers all API routes at the root and under /api/v1.
func RegisterRoutes(router *gin.Engine, deps *Dependencies) {
	health := &HealthHandler{db: deps.DB}
	router.GET("/health", health.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	mount(router.Group(""), deps)
	mount(router.Group("/api/v1"), deps)
}

func mount(g *gin.RouterGroup, deps *Dependencies) {
	auth := middleware.AuthMiddleware(deps.Auth)
	limit := func(route ratelimit.Route, key middleware.KeyFunc) gin.HandlerFunc {
		if deps.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(deps.Limiter, route, key)
	}
	perUser := limit(ratelimit.RouteDefault, middleware.ByUser)

	NewAuthHandler(deps.Auth).RegisterRoutes(g, auth, limit, perUser)
	NewPredictHandler(deps.Gateway, deps.MaxUploadBytes).RegisterRoutes(g.Group("", auth))
	NewRecipeHandler(deps.Recipes, deps.Ratings, deps.Favorites).RegisterRoutes(g.Group("/recipes", auth, perUser), limit)
	NewShoppingHandler(deps.Shopping).RegisterRoutes(g.Group("/shopping-list", auth, perUser))
}

// limitFunc builds the rate-limit middleware for a route.
type limitFunc func(route ratelimit.Route, key middleware.KeyFunc) gin.HandlerFunc
