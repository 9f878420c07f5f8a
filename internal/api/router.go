package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/mstanton/labtrack/internal/auth"
	"github.com/mstanton/labtrack/internal/cache"
	"github.com/mstanton/labtrack/internal/handlers"
	"github.com/mstanton/labtrack/internal/middleware"
	"github.com/mstanton/labtrack/internal/services"
)

// Options bundles the dependencies and tunables for building the router.
type Options struct {
	DB    *gorm.DB
	JWT   *iauth.JWTService
	Cache cache.Store

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if opts.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	notificationService, err := services.NewNotificationService(opts.DB)
	if err != nil {
		return nil, err
	}
	userService, err := services.NewUserService(opts.DB, notificationService)
	if err != nil {
		return nil, err
	}
	productService, err := services.NewProductService(opts.DB)
	if err != nil {
		return nil, err
	}
	loanService, err := services.NewLoanService(opts.DB, notificationService)
	if err != nil {
		return nil, err
	}
	reportService, err := services.NewReportService(opts.DB, opts.Cache)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(opts.CORSOrigins))
	r.Use(middleware.RateLimit(opts.Cache, opts.RateLimitRequests, opts.RateLimitWindow))

	r.NoRoute(middleware.NotFoundHandler)

	// Public endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.Auth(opts.JWT)
	requireAdmin := middleware.RequireAdmin()

	registerAuthRoutes(r, userService, opts.JWT, requireAuth)

	api := r.Group("/api")
	api.Use(requireAuth)

	registerUserRoutes(api, userService, requireAdmin)
	registerProductRoutes(api, productService, requireAdmin)
	registerLoanRoutes(api, loanService, requireAdmin)
	registerNotificationRoutes(api, notificationService)
	registerReportRoutes(api, reportService, requireAdmin)

	return r, nil
}
