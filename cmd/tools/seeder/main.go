package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedPromotions(db)

	log.Println("Seeding completed successfully!")
}

func seedPromotions(db *sql.DB) {
	log.Println("Seeding promotions...")

	now := time.Now().UTC().Truncate(time.Hour)
	monthOut := now.AddDate(0, 1, 0)

	espresso := uuid.MustParse("6f1a38f2-1f7e-4a9e-9b53-0d2476cd1001")
	croissant := uuid.MustParse("6f1a38f2-1f7e-4a9e-9b53-0d2476cd1002")
	sandwich := uuid.MustParse("6f1a38f2-1f7e-4a9e-9b53-0d2476cd1003")
	juice := uuid.MustParse("6f1a38f2-1f7e-4a9e-9b53-0d2476cd1004")
	pastryCategory := uuid.MustParse("aa1a38f2-1f7e-4a9e-9b53-0d2476cd2001")

	bundlePrice := money.FromInt(10)
	tierPrice := money.FromInt(2)
	tenPercent := money.FromInt(10)
	maxDiscount := money.FromInt(5)
	fullDiscount := money.FromInt(100)
	tierCap := 6
	budget := 500

	defs := []promo.Definition{
		{
			ID:       uuid.MustParse("11111111-0000-0000-0000-000000000001"),
			Name:     "Espresso B2G1",
			Priority: 100,
			StartsAt: now,
			EndsAt:   monthOut,
			Scope:    promo.Scope{ProductID: &espresso},
			Kind:     promo.RuleBOGO,
			Budget:   &budget,
			BOGO: &promo.BOGOParams{
				BuyQuantity:        2,
				GetQuantity:        1,
				GetDiscountPercent: fullDiscount,
			},
		},
		{
			ID:       uuid.MustParse("11111111-0000-0000-0000-000000000002"),
			Name:     "Breakfast bundle",
			Priority: 90,
			StartsAt: now,
			EndsAt:   monthOut,
			Kind:     promo.RuleMixMatch,
			MixMatch: &promo.MixMatchParams{
				RequiredQuantity: 2,
				Pricing:          promo.PricingFixedBundle,
				BundlePrice:      &bundlePrice,
				Groups: []promo.MixMatchGroup{
					{ProductIDs: []uuid.UUID{croissant, sandwich}, CategoryIDs: []uuid.UUID{pastryCategory}},
				},
			},
		},
		{
			ID:       uuid.MustParse("11111111-0000-0000-0000-000000000003"),
			Name:     "Juice volume pricing",
			Priority: 80,
			StartsAt: now,
			EndsAt:   monthOut,
			Scope:    promo.Scope{ProductID: &juice},
			Kind:     promo.RuleQuantityBreak,
			QuantityBreak: &promo.QuantityBreakParams{
				Tiers: []promo.QuantityTier{
					{MinQuantity: 3, MaxQuantity: &tierCap, UnitPrice: &tierPrice},
					{MinQuantity: 6, DiscountPercent: &tenPercent},
				},
			},
		},
		{
			ID:       uuid.MustParse("11111111-0000-0000-0000-000000000004"),
			Name:     "Lunch combo",
			Priority: 70,
			StartsAt: now,
			EndsAt:   monthOut,
			Kind:     promo.RuleCombo,
			Combo: &promo.ComboParams{
				ComboPrice: money.FromInt(12),
				Components: []promo.ComboComponent{
					{ProductID: sandwich, Quantity: 1},
					{ProductID: juice, Quantity: 1},
					{ProductID: croissant, Quantity: 1, Optional: true, AddOnPrice: &tierPrice},
				},
			},
		},
		{
			ID:       uuid.MustParse("11111111-0000-0000-0000-000000000005"),
			Name:     "Welcome coupon",
			Priority: 10,
			StartsAt: now,
			EndsAt:   monthOut,
			Kind:     promo.RuleCoupon,
			Coupon: &promo.CouponParams{
				Code:            "WELCOME10",
				DiscountPercent: &tenPercent,
				MaxDiscount:     &maxDiscount,
				MinPurchase:     money.FromInt(20),
				Active:          true,
			},
		},
	}

	for _, def := range defs {
		payload, err := json.Marshal(def)
		if err != nil {
			log.Fatalf("Failed to encode promotion %s: %v", def.Name, err)
		}
		var couponCode sql.NullString
		if def.Coupon != nil {
			couponCode = sql.NullString{String: def.Coupon.Code, Valid: true}
		}
		var endsAt sql.NullTime
		if !def.EndsAt.IsZero() {
			endsAt = sql.NullTime{Time: def.EndsAt, Valid: true}
		}
		_, err = db.Exec(`
			INSERT INTO promotions (id, name, kind, starts_at, ends_at, coupon_code, definition, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				starts_at = EXCLUDED.starts_at,
				ends_at = EXCLUDED.ends_at,
				coupon_code = EXCLUDED.coupon_code,
				definition = EXCLUDED.definition,
				updated_at = now();
		`, def.ID, def.Name, string(def.Kind), def.StartsAt, endsAt, couponCode, payload)
		if err != nil {
			log.Fatalf("Failed to seed promotion %s: %v", def.Name, err)
		}
		log.Printf("Seeded promotion: %s", def.Name)
	}
}
