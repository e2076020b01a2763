package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/infrastructure/audit"
	"bakehouse/internal/infrastructure/http/v1/dto"
)

// AuditReader returns the recorded ledger mutations of an ingredient.
type AuditReader interface {
	History(ctx context.Context, ingredientID id.ID, limit int) ([]audit.Entry, error)
}

// IngredientHandler handles ingredient and ledger endpoints.
type IngredientHandler struct {
	*BaseHandler
	service *ingredient.Service
	audit   AuditReader
}

// NewIngredientHandler creates a new ingredient handler.
func NewIngredientHandler(base *BaseHandler, service *ingredient.Service, audit AuditReader) *IngredientHandler {
	return &IngredientHandler{BaseHandler: base, service: service, audit: audit}
}

// Create handles POST /ingredients.
func (h *IngredientHandler) Create(c *gin.Context) {
	var req dto.CreateIngredientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ing := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), ing); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromIngredient(ing, true))
}

// List handles GET /ingredients.
func (h *IngredientHandler) List(c *gin.Context) {
	var req dto.IngredientListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	items, err := h.service.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.ListResponse[dto.IngredientResponse]{
		Items:  make([]dto.IngredientResponse, len(items)),
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	for i, ing := range items {
		resp.Items[i] = dto.FromIngredient(ing, false)
	}
	h.OK(c, resp)
}

// Get handles GET /ingredients/:id. The response carries the full ledger.
func (h *IngredientHandler) Get(c *gin.Context) {
	ingredientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	ing, err := h.service.GetByID(c.Request.Context(), ingredientID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromIngredient(ing, true))
}

// AppendEntry handles POST /ingredients/:id/ledger.
func (h *IngredientHandler) AppendEntry(c *gin.Context) {
	ingredientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AppendEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	ing, err := h.service.AppendEntry(c.Request.Context(), ingredientID, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	// The appended entry is the one with the highest sequence.
	var entryID id.ID
	var seq int64 = -1
	for _, e := range ing.Entries {
		if e.Seq > seq {
			seq, entryID = e.Seq, e.ID
		}
	}
	h.Created(c, dto.LedgerMutationResponse{
		EntryID:    entryID.String(),
		Ingredient: dto.FromIngredient(ing, true),
	})
}

// ReplaceEntry handles PATCH /ingredients/:id/ledger/:entryId.
func (h *IngredientHandler) ReplaceEntry(c *gin.Context) {
	ingredientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	entryID, ok := h.ParamID(c, "entryId")
	if !ok {
		return
	}
	var req dto.PatchEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		h.Error(c, err)
		return
	}

	ing, err := h.service.ReplaceEntry(c.Request.Context(), ingredientID, entryID, patch)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LedgerMutationResponse{
		EntryID:    entryID.String(),
		Ingredient: dto.FromIngredient(ing, true),
	})
}

// RemoveEntry handles DELETE /ingredients/:id/ledger/:entryId.
func (h *IngredientHandler) RemoveEntry(c *gin.Context) {
	ingredientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	entryID, ok := h.ParamID(c, "entryId")
	if !ok {
		return
	}

	ing, err := h.service.RemoveEntry(c.Request.Context(), ingredientID, entryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LedgerMutationResponse{
		EntryID:    entryID.String(),
		Ingredient: dto.FromIngredient(ing, true),
	})
}

// Stock handles GET /ingredients/:id/stock[?at=YYYY-MM-DD].
func (h *IngredientHandler) Stock(c *gin.Context) {
	ctx := c.Request.Context()
	ingredientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var (
		level ingredient.StockLevel
		err   error
	)
	if at := c.Query("at"); at != "" {
		day, perr := dto.ParseDate("at", at)
		if perr != nil {
			h.Error(c, perr)
			return
		}
		level, err = h.service.StockAt(ctx, ingredientID, day)
	} else {
		level, err = h.service.Stock(ctx, ingredientID)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockLevel(level))
}

// Turnover handles GET /ingredients/:id/turnover?from=&to=.
func (h *IngredientHandler) Turnover(c *gin.Context) {
	ingredientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		h.Error(c, apperror.NewValidation("from and to are required"))
		return
	}
	fromDay, err := dto.ParseDate("from", from)
	if err != nil {
		h.Error(c, err)
		return
	}
	toDay, err := dto.ParseDate("to", to)
	if err != nil {
		h.Error(c, err)
		return
	}

	t, err := h.service.Turnover(c.Request.Context(), ingredientID, fromDay, toDay)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTurnover(ingredientID.String(), t))
}

// History handles GET /ingredients/:id/audit.
func (h *IngredientHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	ingredientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	// 404 for unknown ingredients rather than an empty history.
	if _, err := h.service.GetByID(ctx, ingredientID); err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.audit.History(ctx, ingredientID, page.Limit)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	resp := dto.ListResponse[dto.AuditEntryResponse]{
		Items: make([]dto.AuditEntryResponse, len(entries)),
		Limit: page.Limit,
	}
	for i, e := range entries {
		resp.Items[i] = dto.FromAuditEntry(e)
	}
	h.OK(c, resp)
}
