package dto

import (
	"bakehouse/internal/core/types"
	"bakehouse/internal/domain/feasibility"
)

// RequirementLineResponse is the requirement of one ingredient.
type RequirementLineResponse struct {
	IngredientID string             `json:"ingredientId"`
	Name         string             `json:"name,omitempty"`
	Unit         types.Unit         `json:"unit"`
	Required     types.Quantity     `json:"required"`
	Available    types.Quantity     `json:"available"`
	Sufficient   bool               `json:"sufficient"`
	Shortage     types.Quantity     `json:"shortage"`
	Status       feasibility.Status `json:"status"`
	Issue        *ErrorResponse     `json:"issue,omitempty"`
}

// RequirementsResponse is the body of GET /recipes/:id/requirements.
type RequirementsResponse struct {
	RecipeID      string                    `json:"recipeId"`
	Runs          types.Quantity            `json:"runs"`
	AllSufficient bool                      `json:"allSufficient"`
	Complete      bool                      `json:"complete"`
	Lines         []RequirementLineResponse `json:"lines"`
}

// FromRequirements converts a requirements projection.
func FromRequirements(r feasibility.Requirements) RequirementsResponse {
	resp := RequirementsResponse{
		RecipeID:      r.RecipeID.String(),
		Runs:          r.Runs,
		AllSufficient: r.AllSufficient,
		Complete:      r.Complete,
		Lines:         make([]RequirementLineResponse, len(r.Lines)),
	}
	for i, l := range r.Lines {
		resp.Lines[i] = RequirementLineResponse{
			IngredientID: l.IngredientID.String(),
			Name:         l.Name,
			Unit:         l.Unit,
			Required:     l.Required,
			Available:    l.Available,
			Sufficient:   l.Sufficient,
			Shortage:     l.Shortage,
			Status:       l.Status,
			Issue:        FromAppError(l.Issue),
		}
	}
	return resp
}

// CapacityLineResponse is the run capacity of one ingredient.
type CapacityLineResponse struct {
	IngredientID string             `json:"ingredientId"`
	Name         string             `json:"name,omitempty"`
	Available    types.Quantity     `json:"available"`
	PerRun       types.Quantity     `json:"perRun"`
	MaxRuns      types.Quantity     `json:"maxRuns"`
	Status       feasibility.Status `json:"status"`
	Issue        *ErrorResponse     `json:"issue,omitempty"`
}

// MaxProducibleResponse is the body of GET /recipes/:id/max-producible.
type MaxProducibleResponse struct {
	RecipeID           string                 `json:"recipeId"`
	Applicable         bool                   `json:"applicable"`
	MaxRuns            types.Quantity         `json:"maxRuns"`
	BottleneckID       *string                `json:"bottleneckIngredientId,omitempty"`
	MaxProductQuantity *types.Quantity        `json:"maxProductQuantity,omitempty"`
	Complete           bool                   `json:"complete"`
	Lines              []CapacityLineResponse `json:"lines"`
}

// FromMaxProducible converts a capacity result.
func FromMaxProducible(m feasibility.MaxProducible) MaxProducibleResponse {
	resp := MaxProducibleResponse{
		RecipeID:           m.RecipeID.String(),
		Applicable:         m.Applicable,
		MaxRuns:            m.MaxRuns,
		MaxProductQuantity: m.MaxProductQuantity,
		Complete:           m.Complete,
		Lines:              make([]CapacityLineResponse, len(m.Lines)),
	}
	if m.Bottleneck != nil {
		s := m.Bottleneck.String()
		resp.BottleneckID = &s
	}
	for i, l := range m.Lines {
		resp.Lines[i] = CapacityLineResponse{
			IngredientID: l.IngredientID.String(),
			Name:         l.Name,
			Available:    l.Available,
			PerRun:       l.PerRun,
			MaxRuns:      l.MaxRuns,
			Status:       l.Status,
			Issue:        FromAppError(l.Issue),
		}
	}
	return resp
}
