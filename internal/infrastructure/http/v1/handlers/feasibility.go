package handlers

import (
	"github.com/gin-gonic/gin"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/feasibility"
	"bakehouse/internal/infrastructure/http/v1/dto"
)

// FeasibilityHandler answers "how much can we bake" questions.
type FeasibilityHandler struct {
	*BaseHandler
	calculator *feasibility.Calculator
}

// NewFeasibilityHandler creates a new feasibility handler.
func NewFeasibilityHandler(base *BaseHandler, calculator *feasibility.Calculator) *FeasibilityHandler {
	return &FeasibilityHandler{BaseHandler: base, calculator: calculator}
}

// Requirements handles GET /recipes/:id/requirements?runs=N or ?quantity=Q.
// quantity is converted into runs through the recipe output quantity.
func (h *FeasibilityHandler) Requirements(c *gin.Context) {
	ctx := c.Request.Context()
	recipeID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	runsParam, qtyParam := c.Query("runs"), c.Query("quantity")
	var (
		result feasibility.Requirements
		err    error
	)
	switch {
	case runsParam != "" && qtyParam != "":
		h.Error(c, apperror.NewValidation("runs and quantity are mutually exclusive"))
		return
	case qtyParam != "":
		qty, perr := types.ParseQuantity(qtyParam)
		if perr != nil {
			h.Error(c, apperror.NewValidation("invalid quantity").WithDetail("field", "quantity"))
			return
		}
		result, err = h.calculator.ComputeRequirementsForQuantity(ctx, recipeID, qty)
	default:
		runs := types.NewQuantityFromInt(1)
		if runsParam != "" {
			parsed, perr := types.ParseQuantity(runsParam)
			if perr != nil {
				h.Error(c, apperror.NewValidation("invalid runs").WithDetail("field", "runs"))
				return
			}
			runs = parsed
		}
		result, err = h.calculator.ComputeRequirements(ctx, recipeID, runs)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRequirements(result))
}

// MaxProducible handles GET /recipes/:id/max-producible.
func (h *FeasibilityHandler) MaxProducible(c *gin.Context) {
	recipeID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	result, err := h.calculator.ComputeMaxProducible(c.Request.Context(), recipeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromMaxProducible(result))
}
