package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mn-ibiz/promo-engine/internal/common"
	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// Handler exposes administrative promotion management endpoints.
type Handler struct {
	Store Store
}

type promotionPayload struct {
	ID         *string    `json:"id"`
	Name       string     `json:"name"`
	Priority   int        `json:"priority"`
	StartsAt   time.Time  `json:"startsAt"`
	EndsAt     *time.Time `json:"endsAt"`
	ProductID  *string    `json:"productId"`
	CategoryID *string    `json:"categoryId"`
	StackClass string     `json:"stackClass"`
	Budget     *int       `json:"budget"`
	Kind       string     `json:"kind"`

	BOGO          *bogoPayload          `json:"bogo"`
	MixMatch      *mixMatchPayload      `json:"mixMatch"`
	QuantityBreak *quantityBreakPayload `json:"quantityBreak"`
	Combo         *comboPayload         `json:"combo"`
	Coupon        *couponPayload        `json:"coupon"`
}

type bogoPayload struct {
	BuyQuantity        int     `json:"buyQuantity"`
	GetQuantity        int     `json:"getQuantity"`
	GetDiscountPercent string  `json:"getDiscountPercent"`
	GetProductID       *string `json:"getProductId"`
	GetCategoryID      *string `json:"getCategoryId"`
	CheapestFree       bool    `json:"cheapestFree"`
	MaxApplications    *int    `json:"maxApplications"`
}

type mixMatchGroupPayload struct {
	Role        string   `json:"role"`
	ProductIDs  []string `json:"productIds"`
	CategoryIDs []string `json:"categoryIds"`
	MinQuantity int      `json:"minQuantity"`
	MaxQuantity *int     `json:"maxQuantity"`
}

type mixMatchPayload struct {
	RequiredQuantity int                    `json:"requiredQuantity"`
	Groups           []mixMatchGroupPayload `json:"groups"`
	Pricing          string                 `json:"pricing"`
	BundlePrice      *string                `json:"bundlePrice"`
	DiscountPercent  *string                `json:"discountPercent"`
	MaxApplications  *int                   `json:"maxApplications"`
}

type quantityTierPayload struct {
	MinQuantity     int     `json:"minQuantity"`
	MaxQuantity     *int    `json:"maxQuantity"`
	UnitPrice       *string `json:"unitPrice"`
	DiscountPercent *string `json:"discountPercent"`
}

type quantityBreakPayload struct {
	Tiers []quantityTierPayload `json:"tiers"`
}

type comboComponentPayload struct {
	ProductID  string  `json:"productId"`
	Quantity   int     `json:"quantity"`
	Optional   bool    `json:"optional"`
	AddOnPrice *string `json:"addOnPrice"`
}

type comboPayload struct {
	Components      []comboComponentPayload `json:"components"`
	ComboPrice      string                  `json:"comboPrice"`
	MaxApplications *int                    `json:"maxApplications"`
}

type couponPayload struct {
	Code               string     `json:"code"`
	DiscountAmount     *string    `json:"discountAmount"`
	DiscountPercent    *string    `json:"discountPercent"`
	MaxDiscount        *string    `json:"maxDiscount"`
	MinPurchase        *string    `json:"minPurchase"`
	ValidFrom          *time.Time `json:"validFrom"`
	ValidTo            *time.Time `json:"validTo"`
	MaxUses            *int       `json:"maxUses"`
	CustomerID         *string    `json:"customerId"`
	CategoryID         *string    `json:"categoryId"`
	AppliesPreDiscount bool       `json:"appliesPreDiscount"`
	Active             *bool      `json:"active"`
}

// Create registers a new promotion.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	var payload promotionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	def, err := buildDefinition(payload, uuid.Nil)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if err := h.Store.Upsert(r.Context(), def); err != nil {
		if errors.Is(err, ErrDuplicateCoupon) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to store promotion", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": def})
}

// Update replaces an existing promotion.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	if _, err := h.Store.Get(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load promotion", nil)
		return
	}
	var payload promotionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	def, err := buildDefinition(payload, id)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if err := h.Store.Upsert(r.Context(), def); err != nil {
		if errors.Is(err, ErrDuplicateCoupon) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to store promotion", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": def})
}

// Get returns one promotion by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	def, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load promotion", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": def})
}

// List pages through promotions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	defs, err := h.Store.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list promotions", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": defs})
}

// Delete removes a promotion.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete promotion", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": id}})
}

func buildDefinition(payload promotionPayload, existing uuid.UUID) (promo.Definition, error) {
	id := existing
	if id == uuid.Nil {
		if payload.ID != nil && strings.TrimSpace(*payload.ID) != "" {
			parsed, err := uuid.Parse(strings.TrimSpace(*payload.ID))
			if err != nil {
				return promo.Definition{}, errors.New("invalid promotion id")
			}
			id = parsed
		} else {
			id = uuid.New()
		}
	}
	def := promo.Definition{
		ID:         id,
		Name:       strings.TrimSpace(payload.Name),
		Priority:   payload.Priority,
		StartsAt:   payload.StartsAt,
		StackClass: strings.TrimSpace(payload.StackClass),
		Budget:     payload.Budget,
		Kind:       promo.RuleKind(strings.TrimSpace(payload.Kind)),
	}
	if payload.EndsAt != nil {
		def.EndsAt = *payload.EndsAt
	}
	var err error
	if def.Scope.ProductID, err = optionalID(payload.ProductID); err != nil {
		return promo.Definition{}, errors.New("invalid scope product id")
	}
	if def.Scope.CategoryID, err = optionalID(payload.CategoryID); err != nil {
		return promo.Definition{}, errors.New("invalid scope category id")
	}

	switch def.Kind {
	case promo.RuleBOGO:
		def.BOGO, err = buildBOGO(payload.BOGO)
	case promo.RuleMixMatch:
		def.MixMatch, err = buildMixMatch(payload.MixMatch)
	case promo.RuleQuantityBreak:
		def.QuantityBreak, err = buildQuantityBreak(payload.QuantityBreak)
	case promo.RuleCombo:
		def.Combo, err = buildCombo(payload.Combo)
	case promo.RuleCoupon:
		def.Coupon, err = buildCoupon(payload.Coupon)
	}
	if err != nil {
		return promo.Definition{}, err
	}
	if err := ValidateDefinition(def); err != nil {
		return promo.Definition{}, err
	}
	return def, nil
}

func buildBOGO(p *bogoPayload) (*promo.BOGOParams, error) {
	if p == nil {
		return nil, errors.New("bogo parameters are required")
	}
	pct, err := parseAmount(p.GetDiscountPercent)
	if err != nil {
		return nil, errors.New("invalid get discount percent")
	}
	out := &promo.BOGOParams{
		BuyQuantity:        p.BuyQuantity,
		GetQuantity:        p.GetQuantity,
		GetDiscountPercent: pct,
		CheapestFree:       p.CheapestFree,
		MaxApplications:    p.MaxApplications,
	}
	if out.GetProductID, err = optionalID(p.GetProductID); err != nil {
		return nil, errors.New("invalid get product id")
	}
	if out.GetCategoryID, err = optionalID(p.GetCategoryID); err != nil {
		return nil, errors.New("invalid get category id")
	}
	return out, nil
}

func buildMixMatch(p *mixMatchPayload) (*promo.MixMatchParams, error) {
	if p == nil {
		return nil, errors.New("mix-and-match parameters are required")
	}
	out := &promo.MixMatchParams{
		RequiredQuantity: p.RequiredQuantity,
		Pricing:          promo.MixMatchPricing(strings.TrimSpace(p.Pricing)),
		MaxApplications:  p.MaxApplications,
	}
	var err error
	if out.BundlePrice, err = optionalAmount(p.BundlePrice); err != nil {
		return nil, errors.New("invalid bundle price")
	}
	if out.DiscountPercent, err = optionalAmount(p.DiscountPercent); err != nil {
		return nil, errors.New("invalid discount percent")
	}
	for _, g := range p.Groups {
		group := promo.MixMatchGroup{
			Role:        promo.GroupRole(strings.TrimSpace(g.Role)),
			MinQuantity: g.MinQuantity,
			MaxQuantity: g.MaxQuantity,
		}
		if group.ProductIDs, err = parseIDs(g.ProductIDs); err != nil {
			return nil, errors.New("invalid group product id")
		}
		if group.CategoryIDs, err = parseIDs(g.CategoryIDs); err != nil {
			return nil, errors.New("invalid group category id")
		}
		out.Groups = append(out.Groups, group)
	}
	return out, nil
}

func buildQuantityBreak(p *quantityBreakPayload) (*promo.QuantityBreakParams, error) {
	if p == nil {
		return nil, errors.New("quantity break parameters are required")
	}
	out := &promo.QuantityBreakParams{}
	for _, t := range p.Tiers {
		tier := promo.QuantityTier{MinQuantity: t.MinQuantity, MaxQuantity: t.MaxQuantity}
		var err error
		if tier.UnitPrice, err = optionalAmount(t.UnitPrice); err != nil {
			return nil, errors.New("invalid tier unit price")
		}
		if tier.DiscountPercent, err = optionalAmount(t.DiscountPercent); err != nil {
			return nil, errors.New("invalid tier discount percent")
		}
		out.Tiers = append(out.Tiers, tier)
	}
	return out, nil
}

func buildCombo(p *comboPayload) (*promo.ComboParams, error) {
	if p == nil {
		return nil, errors.New("combo parameters are required")
	}
	price, err := parseAmount(p.ComboPrice)
	if err != nil {
		return nil, errors.New("invalid combo price")
	}
	out := &promo.ComboParams{ComboPrice: price, MaxApplications: p.MaxApplications}
	for _, c := range p.Components {
		productID, err := uuid.Parse(strings.TrimSpace(c.ProductID))
		if err != nil {
			return nil, errors.New("invalid component product id")
		}
		component := promo.ComboComponent{ProductID: productID, Quantity: c.Quantity, Optional: c.Optional}
		if component.AddOnPrice, err = optionalAmount(c.AddOnPrice); err != nil {
			return nil, errors.New("invalid component add-on price")
		}
		out.Components = append(out.Components, component)
	}
	return out, nil
}

func buildCoupon(p *couponPayload) (*promo.CouponParams, error) {
	if p == nil {
		return nil, errors.New("coupon parameters are required")
	}
	out := &promo.CouponParams{
		Code:               strings.ToUpper(strings.TrimSpace(p.Code)),
		ValidFrom:          p.ValidFrom,
		ValidTo:            p.ValidTo,
		MaxUses:            p.MaxUses,
		AppliesPreDiscount: p.AppliesPreDiscount,
		Active:             true,
	}
	if p.Active != nil {
		out.Active = *p.Active
	}
	var err error
	if out.DiscountAmount, err = optionalAmount(p.DiscountAmount); err != nil {
		return nil, errors.New("invalid discount amount")
	}
	if out.DiscountPercent, err = optionalAmount(p.DiscountPercent); err != nil {
		return nil, errors.New("invalid discount percent")
	}
	if out.MaxDiscount, err = optionalAmount(p.MaxDiscount); err != nil {
		return nil, errors.New("invalid max discount")
	}
	if p.MinPurchase != nil {
		if out.MinPurchase, err = parseAmount(*p.MinPurchase); err != nil {
			return nil, errors.New("invalid minimum purchase")
		}
	} else {
		out.MinPurchase = money.Zero
	}
	if out.CustomerID, err = optionalID(p.CustomerID); err != nil {
		return nil, errors.New("invalid customer id")
	}
	if out.CategoryID, err = optionalID(p.CategoryID); err != nil {
		return nil, errors.New("invalid category id")
	}
	return out, nil
}

func parseAmount(s string) (money.Amount, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

func optionalAmount(s *string) (*money.Amount, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v, err := parseAmount(*s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalID(s *string) (*uuid.UUID, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*s))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		parsed, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
