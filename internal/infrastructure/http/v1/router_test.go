package v1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakehouse/internal/domain/feasibility"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/recipe"
	"bakehouse/internal/infrastructure/audit"
	v1 "bakehouse/internal/infrastructure/http/v1"
	"bakehouse/internal/infrastructure/storage/memory"
	"bakehouse/pkg/logger"
)

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) apiFixture {
	t.Helper()
	store := memory.New()
	txm := memory.NewTxManager(store)
	ingRepo := memory.NewIngredientRepo(store)
	codec, err := audit.NewCodec(audit.DefaultCompressThreshold)
	require.NoError(t, err)
	auditLog := memory.NewAuditLog(store, codec)
	clock := func() time.Time { return time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC) }

	ingredients := ingredient.NewService(ingredient.ServiceConfig{
		Repo:               ingRepo,
		TxManager:          txm,
		Clock:              clock,
		Audit:              auditLog,
		AllowNegativeStock: true,
	})
	recipes := recipe.NewService(recipe.ServiceConfig{
		Repo:        memory.NewRecipeRepo(store),
		Ingredients: ingRepo,
		TxManager:   txm,
		Clock:       clock,
	})

	router := v1.NewRouter(v1.RouterConfig{
		Logger:      logger.Nop(),
		Ingredients: ingredients,
		Recipes:     recipes,
		Calculator:  feasibility.NewCalculator(recipes, ingRepo, txm),
		Audit:       auditLog,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Storage:     "memory",
		Mode:        gin.TestMode,
	})
	return apiFixture{t: t, router: router}
}

func (f apiFixture) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f apiFixture) createIngredient(name, typ, initial string) string {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/v1/ingredients", map[string]any{
		"name": name, "type": typ, "unit": "g", "initialQuantity": initial,
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(f.t, w)["id"].(string)
}

func (f apiFixture) appendEntry(ingredientID, kind, qty, date string) map[string]any {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/v1/ingredients/"+ingredientID+"/ledger", map[string]any{
		"kind": kind, "quantity": qty, "occurredAt": date,
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(f.t, w)
}

func balances(t *testing.T, resp map[string]any) []string {
	t.Helper()
	ing := resp["ingredient"].(map[string]any)
	var out []string
	for _, e := range ing["entries"].([]any) {
		entry := e.(map[string]any)
		out = append(out, entry["balanceBefore"].(string)+">"+entry["balanceAfter"].(string))
	}
	return out
}

func TestHealth(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["checks"].(map[string]any)["memory"])
}

func TestIngredients_CreateGetList(t *testing.T) {
	api := newAPI(t)
	flourID := api.createIngredient("Flour", "base", "100")
	api.createIngredient("Cocoa", "flavor", "0")

	w := api.do(http.MethodGet, "/api/v1/ingredients/"+flourID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Flour", body["name"])
	assert.Equal(t, "base", body["role"])
	assert.Equal(t, "100", body["currentQuantity"])
	assert.Equal(t, false, body["outOfStock"])

	w = api.do(http.MethodGet, "/api/v1/ingredients?type=flavor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Cocoa", items[0].(map[string]any)["name"])
	assert.Equal(t, true, items[0].(map[string]any)["outOfStock"])
}

func TestIngredients_ValidationErrorShape(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodPost, "/api/v1/ingredients", map[string]any{
		"name": "Glitter", "type": "sparkle", "unit": "g",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.NotEmpty(t, body["details"])

	w = api.do(http.MethodGet, "/api/v1/ingredients/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/ingredients/0190a5b0-0000-7000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
}

func TestLedger_BackdatedEntriesReflow(t *testing.T) {
	api := newAPI(t)
	flourID := api.createIngredient("Flour", "base", "100")

	imported := api.appendEntry(flourID, "import", "50", "2026-05-02")
	api.appendEntry(flourID, "usage", "60", "2026-05-05")
	resp := api.appendEntry(flourID, "usage", "20", "2026-05-03")

	assert.Equal(t, []string{"100>150", "150>130", "130>70"}, balances(t, resp))
	assert.Equal(t, "70", resp["ingredient"].(map[string]any)["currentQuantity"])

	w := api.do(http.MethodGet, "/api/v1/ingredients/"+flourID+"/stock?at=2026-05-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stock := decode(t, w)
	assert.Equal(t, "130", stock["quantity"])
	assert.Equal(t, "2026-05-03", stock["at"])

	w = api.do(http.MethodGet, "/api/v1/ingredients/"+flourID+"/turnover?from=2026-05-03&to=2026-05-05", nil)
	require.Equal(t, http.StatusOK, w.Code)
	turnover := decode(t, w)
	assert.Equal(t, "150", turnover["openingBalance"])
	assert.Equal(t, "0", turnover["imported"])
	assert.Equal(t, "80", turnover["used"])
	assert.Equal(t, "70", turnover["closingBalance"])

	// Shrinking the first import reflows every later balance.
	importID := imported["entryId"].(string)
	w = api.do(http.MethodPatch, "/api/v1/ingredients/"+flourID+"/ledger/"+importID, map[string]any{"quantity": "30"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"100>130", "130>110", "110>50"}, balances(t, decode(t, w)))

	w = api.do(http.MethodDelete, "/api/v1/ingredients/"+flourID+"/ledger/"+importID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"100>80", "80>20"}, balances(t, decode(t, w)))

	w = api.do(http.MethodGet, "/api/v1/ingredients/"+flourID+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)["items"].([]any)
	require.Len(t, history, 5)
	latest := history[0].(map[string]any)
	assert.Equal(t, "remove", latest["operation"])
	assert.Equal(t, "50", latest["balanceBefore"])
	assert.Equal(t, "20", latest["balanceAfter"])
}

func TestLedger_InvalidRequests(t *testing.T) {
	api := newAPI(t)
	flourID := api.createIngredient("Flour", "base", "100")

	w := api.do(http.MethodPost, "/api/v1/ingredients/"+flourID+"/ledger", map[string]any{
		"kind": "gift", "quantity": "5",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/ingredients/"+flourID+"/ledger", map[string]any{
		"kind": "import", "quantity": "0",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/ingredients/"+flourID+"/ledger", map[string]any{
		"kind": "import", "quantity": "5", "occurredAt": "yesterday",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/ingredients/"+flourID+"/turnover?from=2026-05-05&to=2026-05-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodDelete, "/api/v1/ingredients/"+flourID+"/ledger/0190a5b0-0000-7000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuantities_OutOfRangeRejected(t *testing.T) {
	api := newAPI(t)
	flourID := api.createIngredient("Flour", "base", "100")

	w := api.do(http.MethodPost, "/api/v1/ingredients/"+flourID+"/ledger", map[string]any{
		"kind": "import", "quantity": "1e-100",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = api.do(http.MethodPost, "/api/v1/ingredients/"+flourID+"/ledger", map[string]any{
		"kind": "import", "quantity": "1e20",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	entry := api.appendEntry(flourID, "import", "5", "2026-05-01")
	w = api.do(http.MethodPatch, "/api/v1/ingredients/"+flourID+"/ledger/"+entry["entryId"].(string), map[string]any{
		"quantity": "0.000000001",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/ingredients/"+flourID+"/stock", nil)
	assert.Equal(t, "105", decode(t, w)["quantity"])

	w = api.do(http.MethodPost, "/api/v1/recipes", map[string]any{
		"name": "Sponge", "tier": "base", "outputQuantity": "8",
		"lines": []map[string]any{
			{"ingredientId": flourID, "quantityPerOutputUnit": "1e-4000000", "unit": "g"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = api.do(http.MethodPost, "/api/v1/recipes", map[string]any{
		"name": "Sponge", "tier": "base", "outputQuantity": "8",
		"lines": []map[string]any{
			{"ingredientId": flourID, "quantityPerOutputUnit": "10", "unit": "g"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recipeID := decode(t, w)["id"].(string)

	w = api.do(http.MethodGet, "/api/v1/recipes/"+recipeID+"/requirements?runs=1e-999999999", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = api.do(http.MethodGet, "/api/v1/recipes/"+recipeID+"/requirements?quantity=1e-100", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedger_IdempotentAppend(t *testing.T) {
	api := newAPI(t)
	flourID := api.createIngredient("Flour", "base", "100")
	path := "/api/v1/ingredients/" + flourID + "/ledger"
	body := map[string]any{"kind": "import", "quantity": "25", "occurredAt": "2026-05-09"}

	first := api.do(http.MethodPost, path, body, "X-Idempotency-Key", "delivery-17")
	require.Equal(t, http.StatusCreated, first.Code)

	second := api.do(http.MethodPost, path, body, "X-Idempotency-Key", "delivery-17")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w := api.do(http.MethodGet, "/api/v1/ingredients/"+flourID+"/stock", nil)
	assert.Equal(t, "125", decode(t, w)["quantity"])

	body["quantity"] = "30"
	w = api.do(http.MethodPost, path, body, "X-Idempotency-Key", "delivery-17")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "IDEMPOTENCY_MISMATCH", decode(t, w)["code"])
}

func TestRecipes_AndFeasibility(t *testing.T) {
	api := newAPI(t)
	flourID := api.createIngredient("Flour", "base", "100")
	sugarID := api.createIngredient("Sugar", "base", "40")
	cocoaID := api.createIngredient("Cocoa", "flavor", "9")

	w := api.do(http.MethodPost, "/api/v1/recipes", map[string]any{
		"name": "Sponge", "tier": "base", "outputQuantity": "8",
		"lines": []map[string]any{
			{"ingredientId": flourID, "quantityPerOutputUnit": "10", "unit": "g"},
			{"ingredientId": sugarID, "quantityPerOutputUnit": "5", "unit": "g"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	baseID := decode(t, w)["id"].(string)

	w = api.do(http.MethodPost, "/api/v1/recipes", map[string]any{
		"name": "Chocolate sponge", "tier": "full", "baseRecipeId": baseID, "outputQuantity": "12",
		"lines": []map[string]any{
			{"ingredientId": cocoaID, "quantityPerOutputUnit": "3", "unit": "g"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	fullID := decode(t, w)["id"].(string)

	w = api.do(http.MethodGet, "/api/v1/recipes/"+fullID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["effectiveLines"], 3)

	w = api.do(http.MethodGet, "/api/v1/recipes/base", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = api.do(http.MethodGet, "/api/v1/recipes/"+baseID+"/max-producible", nil)
	require.Equal(t, http.StatusOK, w.Code)
	capacity := decode(t, w)
	assert.Equal(t, true, capacity["applicable"])
	assert.Equal(t, "8", capacity["maxRuns"])
	assert.Equal(t, sugarID, capacity["bottleneckIngredientId"])
	assert.Equal(t, "64", capacity["maxProductQuantity"])

	w = api.do(http.MethodGet, "/api/v1/recipes/"+fullID+"/max-producible", nil)
	require.Equal(t, http.StatusOK, w.Code)
	capacity = decode(t, w)
	assert.Equal(t, "3", capacity["maxRuns"])
	assert.Equal(t, cocoaID, capacity["bottleneckIngredientId"])
	assert.Equal(t, "36", capacity["maxProductQuantity"])

	w = api.do(http.MethodGet, "/api/v1/recipes/"+fullID+"/requirements?quantity=24", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	req := decode(t, w)
	assert.Equal(t, "2", req["runs"])
	assert.Equal(t, true, req["allSufficient"])
	assert.Len(t, req["lines"], 3)

	w = api.do(http.MethodGet, "/api/v1/recipes/"+fullID+"/requirements?runs=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	req = decode(t, w)
	assert.Equal(t, false, req["allSufficient"])
	for _, l := range req["lines"].([]any) {
		line := l.(map[string]any)
		if line["ingredientId"] == cocoaID {
			assert.Equal(t, "short", line["status"])
			assert.Equal(t, "3", line["shortage"])
		}
	}

	w = api.do(http.MethodGet, "/api/v1/recipes/"+fullID+"/requirements?runs=1&quantity=2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecipes_Rejections(t *testing.T) {
	api := newAPI(t)
	flourID := api.createIngredient("Flour", "base", "100")
	boxID := api.createIngredient("Box", "material", "10")

	w := api.do(http.MethodPost, "/api/v1/recipes", map[string]any{
		"name": "Boxed", "tier": "base",
		"lines": []map[string]any{
			{"ingredientId": boxID, "quantityPerOutputUnit": "1", "unit": "g"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/recipes", map[string]any{
		"name": "No yield", "tier": "base",
		"lines": []map[string]any{
			{"ingredientId": flourID, "quantityPerOutputUnit": "1", "unit": "g"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode(t, w)
	recipeID := rec["id"].(string)

	w = api.do(http.MethodGet, "/api/v1/recipes/"+recipeID+"/requirements?quantity=10", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CALCULATION_NOT_APPLICABLE", decode(t, w)["code"])

	update := map[string]any{
		"name": "With yield", "tier": "base", "outputQuantity": "4", "version": 1,
		"lines": []map[string]any{
			{"ingredientId": flourID, "quantityPerOutputUnit": "2", "unit": "g"},
		},
	}
	w = api.do(http.MethodPut, "/api/v1/recipes/"+recipeID, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["version"])

	w = api.do(http.MethodPut, "/api/v1/recipes/"+recipeID, update)
	assert.Equal(t, http.StatusConflict, w.Code)
}
