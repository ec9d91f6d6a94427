package catalog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store Store) http.Handler {
	h := &Handler{Store: store}
	r := chi.NewRouter()
	r.Route("/v1/admin/promotions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func bogoRequest() map[string]any {
	return map[string]any{
		"name":     "buy two get one",
		"kind":     "bogo",
		"startsAt": evalTime.Add(-time.Hour).Format(time.RFC3339),
		"endsAt":   evalTime.Add(time.Hour).Format(time.RFC3339),
		"bogo": map[string]any{
			"buyQuantity":        2,
			"getQuantity":        1,
			"getDiscountPercent": "100",
		},
	}
}

func TestCreateAndFetchPromotion(t *testing.T) {
	store := NewMemory()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/promotions/", bogoRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID string `json:"ID"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)

	rec = doJSON(t, router, http.MethodGet, "/v1/admin/promotions/"+created.Data.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/admin/promotions/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRejectsInvalidDefinition(t *testing.T) {
	router := newTestRouter(NewMemory())

	payload := bogoRequest()
	payload["bogo"].(map[string]any)["buyQuantity"] = 0
	rec := doJSON(t, router, http.MethodPost, "/v1/admin/promotions/", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = bogoRequest()
	payload["kind"] = "mystery"
	rec = doJSON(t, router, http.MethodPost, "/v1/admin/promotions/", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDuplicateCouponCodeConflicts(t *testing.T) {
	router := newTestRouter(NewMemory())

	coupon := map[string]any{
		"name":     "five off",
		"kind":     "coupon",
		"startsAt": evalTime.Add(-time.Hour).Format(time.RFC3339),
		"coupon": map[string]any{
			"code":           "SAVE5",
			"discountAmount": "5.00",
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/admin/promotions/", coupon)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/admin/promotions/", coupon)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateAndDeletePromotion(t *testing.T) {
	store := NewMemory()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/promotions/", bogoRequest())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data struct {
			ID string `json:"ID"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	update := bogoRequest()
	update["name"] = "renamed"
	rec = doJSON(t, router, http.MethodPut, "/v1/admin/promotions/"+created.Data.ID, update)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/v1/admin/promotions/"+created.Data.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/v1/admin/promotions/"+created.Data.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
