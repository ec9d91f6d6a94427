package pricing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mn-ibiz/promo-engine/internal/common"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// Handler exposes the pricing endpoints a point-of-sale terminal calls.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type quotePayload struct {
	TransactionID string        `json:"transactionId" validate:"required"`
	CustomerID    *string       `json:"customerId"`
	CouponCodes   []string      `json:"couponCodes"`
	Lines         []linePayload `json:"lines" validate:"required,min=1,dive"`
}

type linePayload struct {
	ProductID  string  `json:"productId" validate:"required,uuid"`
	CategoryID *string `json:"categoryId"`
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice  string  `json:"unitPrice" validate:"required"`
}

type validatePayload struct {
	Code       string        `json:"code" validate:"required"`
	CustomerID *string       `json:"customerId"`
	Lines      []linePayload `json:"lines" validate:"required,min=1,dive"`
}

// Quote prices a cart and holds budget reservations for the transaction.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	var payload quotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	req, err := buildQuoteRequest(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	result, err := h.Svc.Quote(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrAlreadyCommitted) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "transaction already committed", nil)
			return
		}
		if errors.Is(err, promo.ErrInvariant) {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing invariant violated", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to price cart", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Commit finalizes the transaction's reservations and returns the
// redemption records it produced.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	txID := strings.TrimSpace(chi.URLParam(r, "txID"))
	if txID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "transaction id is required", nil)
		return
	}
	records, err := h.Svc.Commit(r.Context(), txID)
	if err != nil {
		if errors.Is(err, ErrUnknownTransaction) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown transaction", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to commit transaction", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"records": records}})
}

// Void reverses a committed transaction, refunding budgets and emitting
// reversal records.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	txID := strings.TrimSpace(chi.URLParam(r, "txID"))
	if txID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "transaction id is required", nil)
		return
	}
	records, err := h.Svc.Void(r.Context(), txID)
	if err != nil {
		if errors.Is(err, ErrUnknownTransaction) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown transaction", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to void transaction", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"records": records}})
}

// ValidateCoupon checks a coupon against a cart without reserving anything.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	var payload validatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	lines, err := buildLines(payload.Lines)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	customer, err := optionalUUID(payload.CustomerID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer id", nil)
		return
	}
	outcome, err := h.Svc.ValidateCoupon(r.Context(), payload.Code, lines, customer)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to validate coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": outcome})
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func buildQuoteRequest(payload quotePayload) (QuoteRequest, error) {
	lines, err := buildLines(payload.Lines)
	if err != nil {
		return QuoteRequest{}, err
	}
	customer, err := optionalUUID(payload.CustomerID)
	if err != nil {
		return QuoteRequest{}, errors.New("invalid customer id")
	}
	return QuoteRequest{
		TransactionID: strings.TrimSpace(payload.TransactionID),
		Lines:         lines,
		CouponCodes:   payload.CouponCodes,
		CustomerID:    customer,
	}, nil
}

func buildLines(payloads []linePayload) ([]promo.CartLine, error) {
	out := make([]promo.CartLine, 0, len(payloads))
	for _, p := range payloads {
		productID, err := uuid.Parse(strings.TrimSpace(p.ProductID))
		if err != nil {
			return nil, errors.New("invalid product id")
		}
		price, err := decimal.NewFromString(strings.TrimSpace(p.UnitPrice))
		if err != nil || price.IsNegative() {
			return nil, errors.New("invalid unit price")
		}
		line := promo.CartLine{
			ProductID: productID,
			Quantity:  p.Quantity,
			UnitPrice: price,
		}
		if p.CategoryID != nil && strings.TrimSpace(*p.CategoryID) != "" {
			categoryID, err := uuid.Parse(strings.TrimSpace(*p.CategoryID))
			if err != nil {
				return nil, errors.New("invalid category id")
			}
			line.CategoryID = categoryID
		}
		out = append(out, line)
	}
	return out, nil
}

func optionalUUID(value *string) (*uuid.UUID, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*value))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
