package pricing

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/mn-ibiz/promo-engine/internal/promo"
)

func newTestRouter(svc *Service) http.Handler {
	h := &Handler{Svc: svc, Validate: validator.New()}
	r := chi.NewRouter()
	r.Post("/v1/pricing/quote", h.Quote)
	r.Post("/v1/pricing/{txID}/commit", h.Commit)
	r.Post("/v1/pricing/{txID}/void", h.Void)
	r.Post("/v1/coupons/validate", h.ValidateCoupon)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestQuoteEndpoint(t *testing.T) {
	cDef := couponDef(nil)
	cat := &stubCatalog{
		defs:    []promo.Definition{bogoDef(nil)},
		coupons: map[string]*promo.Definition{"SAVE10": &cDef},
	}
	router := newTestRouter(newService(cat, nil))

	rec := postJSON(t, router, "/v1/pricing/quote", map[string]any{
		"transactionId": "tx-1",
		"couponCodes":   []string{"SAVE10"},
		"lines": []map[string]any{
			{"productId": productA.String(), "quantity": 3, "unitPrice": "100.00"},
			{"productId": productB.String(), "quantity": 1, "unitPrice": "50.00"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Subtotal      string `json:"subtotal"`
			TotalDiscount string `json:"totalDiscount"`
			Total         string `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "350", body.Data.Subtotal)
	require.Equal(t, "125", body.Data.TotalDiscount)
	require.Equal(t, "225", body.Data.Total)
}

func TestQuoteEndpointRejectsBadPayload(t *testing.T) {
	router := newTestRouter(newService(&stubCatalog{}, nil))

	rec := postJSON(t, router, "/v1/pricing/quote", map[string]any{
		"transactionId": "tx-1",
		"lines": []map[string]any{
			{"productId": "not-a-uuid", "quantity": 1, "unitPrice": "1.00"},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/v1/pricing/quote", map[string]any{
		"transactionId": "tx-1",
		"lines": []map[string]any{
			{"productId": productA.String(), "quantity": 0, "unitPrice": "1.00"},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/v1/pricing/quote", map[string]any{
		"transactionId": "tx-1",
		"lines": []map[string]any{
			{"productId": productA.String(), "quantity": 1, "unitPrice": "-5"},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitAndVoidEndpoints(t *testing.T) {
	cat := &stubCatalog{defs: []promo.Definition{bogoDef(ptr(5))}}
	router := newTestRouter(newService(cat, nil))

	rec := postJSON(t, router, "/v1/pricing/quote", map[string]any{
		"transactionId": "tx-1",
		"lines": []map[string]any{
			{"productId": productA.String(), "quantity": 3, "unitPrice": "100.00"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/v1/pricing/tx-1/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var commitBody struct {
		Data struct {
			Records []promo.RedemptionRecord `json:"records"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &commitBody))
	require.Len(t, commitBody.Data.Records, 1)

	rec = postJSON(t, router, "/v1/pricing/tx-1/void", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/v1/pricing/unknown/commit", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateCouponEndpoint(t *testing.T) {
	cDef := couponDef(nil)
	cat := &stubCatalog{coupons: map[string]*promo.Definition{"SAVE10": &cDef}}
	router := newTestRouter(newService(cat, nil))

	rec := postJSON(t, router, "/v1/coupons/validate", map[string]any{
		"code": "SAVE10",
		"lines": []map[string]any{
			{"productId": productA.String(), "quantity": 1, "unitPrice": "200.00"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data CouponValidation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Data.Valid)
	require.Equal(t, "20", body.Data.Discount.String())
}
