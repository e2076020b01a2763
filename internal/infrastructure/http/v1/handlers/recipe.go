package handlers

import (
	"github.com/gin-gonic/gin"

	"bakehouse/internal/domain/recipe"
	"bakehouse/internal/infrastructure/http/v1/dto"
)

// RecipeHandler handles recipe endpoints.
type RecipeHandler struct {
	*BaseHandler
	service *recipe.Service
}

// NewRecipeHandler creates a new recipe handler.
func NewRecipeHandler(base *BaseHandler, service *recipe.Service) *RecipeHandler {
	return &RecipeHandler{BaseHandler: base, service: service}
}

// Create handles POST /recipes.
func (h *RecipeHandler) Create(c *gin.Context) {
	var req dto.CreateRecipeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), rec); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromRecipe(rec))
}

// Update handles PUT /recipes/:id.
func (h *RecipeHandler) Update(c *gin.Context) {
	recipeID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateRecipeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := req.ToEntity(recipeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Update(c.Request.Context(), rec); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecipe(rec))
}

// Get handles GET /recipes/:id. Full recipes include their effective lines.
func (h *RecipeHandler) Get(c *gin.Context) {
	recipeID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	resolved, err := h.service.Resolve(c.Request.Context(), recipeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromResolved(resolved))
}

// List handles GET /recipes.
func (h *RecipeHandler) List(c *gin.Context) {
	var req dto.RecipeListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, recipeList(items, req.Limit, req.Offset))
}

// ListBase handles GET /recipes/base: the recipes a full recipe may extend.
func (h *RecipeHandler) ListBase(c *gin.Context) {
	items, err := h.service.ListBase(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, recipeList(items, 0, 0))
}

func recipeList(items []*recipe.Recipe, limit, offset int) dto.ListResponse[dto.RecipeResponse] {
	resp := dto.ListResponse[dto.RecipeResponse]{
		Items:  make([]dto.RecipeResponse, len(items)),
		Limit:  limit,
		Offset: offset,
	}
	for i, r := range items {
		resp.Items[i] = dto.FromRecipe(r)
	}
	return resp
}
