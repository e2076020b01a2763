// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"bakehouse/internal/domain/feasibility"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/recipe"
	"bakehouse/internal/infrastructure/http/v1/handlers"
	"bakehouse/internal/infrastructure/http/v1/middleware"
	"bakehouse/internal/infrastructure/idempotency"
	"bakehouse/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	Ingredients *ingredient.Service
	Recipes     *recipe.Service
	Calculator  *feasibility.Calculator
	Audit       handlers.AuditReader

	// Idempotency guards ledger writes; nil disables the middleware.
	Idempotency idempotency.Store

	// Storage names the backend in health checks; Readiness may be nil.
	Storage   string
	Readiness handlers.ReadinessChecker

	// Mode is a gin mode; empty means release.
	Mode string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Storage, cfg.Readiness)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	var write []gin.HandlerFunc
	if cfg.Idempotency != nil {
		write = append(write, middleware.Idempotency(cfg.Idempotency))
	}

	baseHandler := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")

	// --- INGREDIENTS ---
	{
		handler := handlers.NewIngredientHandler(baseHandler, cfg.Ingredients, cfg.Audit)
		ingredients := v1.Group("/ingredients")
		ingredients.GET("", handler.List)
		ingredients.POST("", withWrite(write, handler.Create)...)
		ingredients.GET("/:id", handler.Get)
		RegisterLedgerRoutes(ingredients.Group("/:id"), handler, write...)
	}

	// --- RECIPES ---
	{
		handler := handlers.NewRecipeHandler(baseHandler, cfg.Recipes)
		recipes := v1.Group("/recipes")
		recipes.GET("", handler.List)
		recipes.POST("", withWrite(write, handler.Create)...)
		recipes.GET("/base", handler.ListBase)
		recipes.GET("/:id", handler.Get)
		recipes.PUT("/:id", withWrite(write, handler.Update)...)

		planning := handlers.NewFeasibilityHandler(baseHandler, cfg.Calculator)
		RegisterFeasibilityRoutes(recipes.Group("/:id"), planning)
	}

	return router
}
