// Package app wires storage, services and the HTTP router from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"bakehouse/internal/config"
	"bakehouse/internal/core/tx"
	"bakehouse/internal/domain/feasibility"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/recipe"
	"bakehouse/internal/infrastructure/audit"
	v1 "bakehouse/internal/infrastructure/http/v1"
	"bakehouse/internal/infrastructure/http/v1/handlers"
	"bakehouse/internal/infrastructure/idempotency"
	"bakehouse/internal/infrastructure/storage/memory"
	"bakehouse/internal/infrastructure/storage/postgres"
	"bakehouse/internal/infrastructure/storage/postgres/ingredient_repo"
	"bakehouse/internal/infrastructure/storage/postgres/recipe_repo"
	"bakehouse/pkg/logger"
)

// IngredientStore persists ingredients and serves recipe lookups.
type IngredientStore interface {
	ingredient.Repository
	recipe.IngredientLookup
}

// AuditStore records ledger mutations and reads them back.
type AuditStore interface {
	ingredient.AuditLog
	handlers.AuditReader
}

// Storage is one backend behind every repository the services need.
type Storage struct {
	Name        string
	TxManager   tx.Manager
	Ingredients IngredientStore
	Recipes     recipe.Repository
	Audit       AuditStore
	Idempotency idempotency.Store

	// Pool is nil for in-memory storage.
	Pool *postgres.Pool
}

// Close releases the backend.
func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Ready implements handlers.ReadinessChecker.
func (s *Storage) Ready(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ready(ctx)
}

// OpenStorage selects PostgreSQL when a database URL is configured and
// in-memory storage otherwise. The PostgreSQL schema is created if missing.
func OpenStorage(ctx context.Context, cfg config.Config) (*Storage, error) {
	codec, err := audit.NewCodec(cfg.Ledger.AuditCompressThreshold)
	if err != nil {
		return nil, fmt.Errorf("audit codec: %w", err)
	}

	if cfg.Database.URL == "" {
		store := memory.New()
		return &Storage{
			Name:        "memory",
			TxManager:   memory.NewTxManager(store),
			Ingredients: memory.NewIngredientRepo(store),
			Recipes:     memory.NewRecipeRepo(store),
			Audit:       memory.NewAuditLog(store, codec),
			Idempotency: memory.NewIdempotencyStore(cfg.Jobs.IdempotencyTTL),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL, cfg.Database.MaxConns))
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	txm := postgres.NewTxManager(pool)
	return &Storage{
		Name:        "database",
		TxManager:   txm,
		Ingredients: ingredient_repo.NewIngredientRepo(txm),
		Recipes:     recipe_repo.NewRecipeRepo(txm),
		Audit:       postgres.NewAuditLog(txm, codec),
		Idempotency: postgres.NewIdempotencyStore(pool, cfg.Jobs.IdempotencyTTL),
		Pool:        pool,
	}, nil
}

// Services are the domain services built over one storage.
type Services struct {
	Ingredients *ingredient.Service
	Recipes     *recipe.Service
	Calculator  *feasibility.Calculator
}

// NewServices builds the domain services.
func NewServices(cfg config.Config, st *Storage) Services {
	recipes := recipe.NewService(recipe.ServiceConfig{
		Repo:        st.Recipes,
		Ingredients: st.Ingredients,
		TxManager:   st.TxManager,
	})
	return Services{
		Ingredients: ingredient.NewService(ingredient.ServiceConfig{
			Repo:               st.Ingredients,
			TxManager:          st.TxManager,
			Audit:              st.Audit,
			AllowNegativeStock: cfg.Ledger.AllowNegativeStock,
		}),
		Recipes:    recipes,
		Calculator: feasibility.NewCalculator(recipes, st.Ingredients, st.TxManager),
	}
}

// NewRouter builds the HTTP API over the services.
func NewRouter(cfg config.Config, st *Storage, svc Services, log *logger.Logger) *gin.Engine {
	rc := v1.RouterConfig{
		Logger:      log,
		Ingredients: svc.Ingredients,
		Recipes:     svc.Recipes,
		Calculator:  svc.Calculator,
		Audit:       st.Audit,
		Storage:     st.Name,
		Readiness:   st,
	}
	if cfg.Jobs.IdempotencyEnabled {
		rc.Idempotency = st.Idempotency
	}
	if cfg.Development() {
		rc.Mode = gin.DebugMode
	}
	return v1.NewRouter(rc)
}
