package v1

import (
	"slices"

	"github.com/gin-gonic/gin"
)

// LedgerRouteHandler defines the ledger endpoints of an ingredient.
type LedgerRouteHandler interface {
	AppendEntry(c *gin.Context)
	ReplaceEntry(c *gin.Context)
	RemoveEntry(c *gin.Context)
	Stock(c *gin.Context)
	Turnover(c *gin.Context)
	History(c *gin.Context)
}

// FeasibilityRouteHandler defines the production planning endpoints of a recipe.
type FeasibilityRouteHandler interface {
	Requirements(c *gin.Context)
	MaxProducible(c *gin.Context)
}

// RegisterLedgerRoutes registers ledger routes under an ingredient group.
// Writes run behind the write middlewares (idempotency), reads do not.
//
// Usage:
//
//	RegisterLedgerRoutes(v1.Group("/ingredients/:id"), handler, middleware.Idempotency(store))
func RegisterLedgerRoutes(group *gin.RouterGroup, handler LedgerRouteHandler, write ...gin.HandlerFunc) {
	group.POST("/ledger", withWrite(write, handler.AppendEntry)...)
	group.PATCH("/ledger/:entryId", withWrite(write, handler.ReplaceEntry)...)
	group.DELETE("/ledger/:entryId", withWrite(write, handler.RemoveEntry)...)

	group.GET("/stock", handler.Stock)
	group.GET("/turnover", handler.Turnover)
	group.GET("/audit", handler.History)
}

// withWrite returns a fresh chain of the write middlewares followed by handler,
// so routes never share a backing array.
func withWrite(write []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	return slices.Concat(write, []gin.HandlerFunc{handler})
}

// RegisterFeasibilityRoutes registers planning routes under a recipe group.
func RegisterFeasibilityRoutes(group *gin.RouterGroup, handler FeasibilityRouteHandler) {
	group.GET("/requirements", handler.Requirements)
	group.GET("/max-producible", handler.MaxProducible)
}
