// Package rediscache caches the active order modifier rules in Redis.
package rediscache

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/modifier"
)

const rulesKey = "storefront:modifier:rules:v1"

// New creates a Redis client and checks connectivity. addr is either
// host:port or a redis:// URL.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		opts = parsed
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ modifier.Repository = (*ModifierRepository)(nil)

// ModifierRepository serves ActiveRules from Redis and falls back to the
// wrapped repository on a miss or a Redis failure. Writes go to the wrapped
// repository and drop the cached snapshot.
type ModifierRepository struct {
	next   modifier.Repository
	client *redis.Client
	ttl    time.Duration
}

// NewModifierRepository wraps next with a cache of the given TTL.
func NewModifierRepository(next modifier.Repository, client *redis.Client, ttl time.Duration) *ModifierRepository {
	return &ModifierRepository{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

func (r *ModifierRepository) ActiveRules(ctx context.Context) (*modifier.Rules, error) {
	lg := zctx.From(ctx)

	payload, err := r.client.Get(ctx, rulesKey).Bytes()
	switch {
	case err == nil:
		rules, err := decodeRules(payload)
		if err == nil {
			return rules, nil
		}
		lg.Warn("Dropping undecodable cached rules", zap.Error(err))
	case !errors.Is(err, redis.Nil):
		lg.Warn("Rule cache read failed", zap.Error(err))
	}

	rules, err := r.next.ActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.client.Set(ctx, rulesKey, encodeRules(rules), r.ttl).Err(); err != nil {
		lg.Warn("Rule cache write failed", zap.Error(err))
	}
	return rules, nil
}

func (r *ModifierRepository) UpsertTaxRule(ctx context.Context, t *modifier.TaxRule) error {
	if err := r.next.UpsertTaxRule(ctx, t); err != nil {
		return err
	}
	return r.Invalidate(ctx)
}

func (r *ModifierRepository) UpsertDiscountRule(ctx context.Context, d *modifier.DiscountRule) error {
	if err := r.next.UpsertDiscountRule(ctx, d); err != nil {
		return err
	}
	return r.Invalidate(ctx)
}

// Invalidate drops the cached snapshot.
func (r *ModifierRepository) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, rulesKey).Err(); err != nil {
		return errors.Wrap(err, "invalidate rule cache")
	}
	return nil
}

func encodeRules(rules *modifier.Rules) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	if t := rules.Tax; t != nil {
		e.FieldStart("tax")
		e.ObjStart()
		e.FieldStart("id")
		e.Str(t.ID)
		e.FieldStart("name")
		e.Str(t.Name)
		e.FieldStart("rate")
		e.Int(t.Rate)
		e.FieldStart("active")
		e.Bool(t.Active)
		e.FieldStart("created_at")
		e.Str(t.CreatedAt.UTC().Format(time.RFC3339Nano))
		e.ObjEnd()
	}
	e.FieldStart("discounts")
	e.ArrStart()
	for _, d := range rules.Discounts {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(d.ID)
		e.FieldStart("name")
		e.Str(d.Name)
		e.FieldStart("threshold")
		e.Str(d.Threshold.String())
		e.FieldStart("percent")
		e.Str(d.Percent.String())
		e.FieldStart("active")
		e.Bool(d.Active)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}

func decodeRules(data []byte) (*modifier.Rules, error) {
	rules := &modifier.Rules{}
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tax":
			t, err := decodeTax(d)
			if err != nil {
				return errors.Wrap(err, "tax")
			}
			rules.Tax = t
		case "discounts":
			return d.Arr(func(d *jx.Decoder) error {
				r, err := decodeDiscount(d)
				if err != nil {
					return errors.Wrap(err, "discount")
				}
				rules.Discounts = append(rules.Discounts, r)
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func decodeTax(d *jx.Decoder) (*modifier.TaxRule, error) {
	var t modifier.TaxRule
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			t.ID, err = d.Str()
		case "name":
			t.Name, err = d.Str()
		case "rate":
			t.Rate, err = d.Int()
		case "active":
			t.Active, err = d.Bool()
		case "created_at":
			var s string
			if s, err = d.Str(); err == nil {
				t.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		return err
	})
	return &t, err
}

func decodeDiscount(d *jx.Decoder) (modifier.DiscountRule, error) {
	var r modifier.DiscountRule
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			r.ID, err = d.Str()
		case "name":
			r.Name, err = d.Str()
		case "threshold":
			r.Threshold, err = decodeDecimal(d)
		case "percent":
			r.Percent, err = decodeDecimal(d)
		case "active":
			r.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return r, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}
