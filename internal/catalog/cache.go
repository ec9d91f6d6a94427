package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mn-ibiz/promo-engine/internal/promo"
)

const (
	activeKey    = "promo:catalog:active"
	couponPrefix = "promo:catalog:coupon:"
)

// Cached layers a Redis read-through cache over a Store. Writes invalidate;
// cache failures fall through to the inner store.
type Cached struct {
	Inner  Store
	Client *redis.Client
	TTL    time.Duration
	Logger zerolog.Logger
}

// couponEntry distinguishes a cached miss from an absent key.
type couponEntry struct {
	Found      bool              `json:"found"`
	Definition *promo.Definition `json:"definition,omitempty"`
}

func (c *Cached) ActivePromotions(ctx context.Context, at time.Time) ([]promo.Definition, error) {
	var defs []promo.Definition
	if ok, err := c.getJSON(ctx, activeKey, &defs); err != nil {
		c.Logger.Warn().Err(err).Msg("catalog cache read")
	} else if ok {
		// Cached sets hold every non-expired definition; the window still has
		// to be re-checked against the pass instant.
		var out []promo.Definition
		for _, d := range defs {
			if d.ActiveAt(at) {
				out = append(out, d)
			}
		}
		return out, nil
	}
	defs, err := c.Inner.ActivePromotions(ctx, at)
	if err != nil {
		return nil, err
	}
	if err := c.setJSON(ctx, activeKey, defs); err != nil {
		c.Logger.Warn().Err(err).Msg("catalog cache write")
	}
	return defs, nil
}

func (c *Cached) CouponByCode(ctx context.Context, code string) (*promo.Definition, error) {
	key := couponPrefix + strings.ToUpper(strings.TrimSpace(code))
	var entry couponEntry
	if ok, err := c.getJSON(ctx, key, &entry); err != nil {
		c.Logger.Warn().Err(err).Msg("catalog cache read")
	} else if ok {
		return entry.Definition, nil
	}
	def, err := c.Inner.CouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := c.setJSON(ctx, key, couponEntry{Found: def != nil, Definition: def}); err != nil {
		c.Logger.Warn().Err(err).Msg("catalog cache write")
	}
	return def, nil
}

func (c *Cached) Upsert(ctx context.Context, def promo.Definition) error {
	if err := c.Inner.Upsert(ctx, def); err != nil {
		return err
	}
	c.invalidate(ctx, def)
	return nil
}

func (c *Cached) Get(ctx context.Context, id uuid.UUID) (*promo.Definition, error) {
	return c.Inner.Get(ctx, id)
}

func (c *Cached) List(ctx context.Context, limit, offset int) ([]promo.Definition, error) {
	return c.Inner.List(ctx, limit, offset)
}

func (c *Cached) Delete(ctx context.Context, id uuid.UUID) error {
	def, err := c.Inner.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Inner.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, *def)
	return nil
}

func (c *Cached) invalidate(ctx context.Context, def promo.Definition) {
	keys := []string{activeKey}
	if def.Kind == promo.RuleCoupon && def.Coupon != nil {
		keys = append(keys, couponPrefix+strings.ToUpper(strings.TrimSpace(def.Coupon.Code)))
	}
	if c.Client == nil {
		return
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		c.Logger.Warn().Err(err).Msg("catalog cache invalidate")
	}
}

func (c *Cached) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c.Client == nil {
		return false, nil
	}
	data, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cached) setJSON(ctx context.Context, key string, v any) error {
	if c.Client == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return c.Client.Set(ctx, key, data, ttl).Err()
}
