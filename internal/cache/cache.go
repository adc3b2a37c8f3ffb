// Package cache invalidates read caches after committed mutations. It is a side
// channel: failures are logged and never affect the outcome of an operation.
package cache

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordercore-backend/pkg/logger"
)

// Invalidator drops every cached view tagged with any of tags. Implementations
// must be idempotent; callers may deliver the same tags more than once.
type Invalidator interface {
	Invalidate(ctx context.Context, tags []string) error
}

type store interface {
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	CacheKey(tag string) string
	CacheVersionKey(tag string) string
}

// RedisInvalidator deletes the cached value of each tag and bumps its version
// counter so readers keyed on the version miss as well.
type RedisInvalidator struct {
	store store
	logg  *logger.Logger
}

func NewRedisInvalidator(s store, logg *logger.Logger) (*RedisInvalidator, error) {
	if s == nil {
		return nil, errors.New("cache store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisInvalidator{store: s, logg: logg}, nil
}

func (r *RedisInvalidator) Invalidate(ctx context.Context, tags []string) error {
	tags = Normalize(tags)
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for _, tag := range tags {
		keys = append(keys, r.store.CacheKey(tag))
	}
	err := r.store.Del(ctx, keys...)
	for _, tag := range tags {
		if _, incrErr := r.store.Incr(ctx, r.store.CacheVersionKey(tag)); incrErr != nil {
			err = multierr.Append(err, incrErr)
		}
	}
	if err == nil {
		r.logg.Debug(r.logg.WithField(ctx, "cache_tags", tags), "cache tags invalidated")
	}
	return err
}

// Noop discards invalidations.
type Noop struct{}

func (Noop) Invalidate(context.Context, []string) error { return nil }

// BestEffort invalidates tags and only logs failures.
func BestEffort(ctx context.Context, inv Invalidator, logg *logger.Logger, tags []string) {
	if inv == nil || len(tags) == 0 {
		return
	}
	if err := inv.Invalidate(ctx, tags); err != nil && logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"cache_tags": tags,
			"error":      err.Error(),
		}), "cache invalidation failed")
	}
}

// Normalize trims, dedupes and sorts tags.
func Normalize(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func CartTag(id uuid.UUID) string {
	return "cart:" + id.String()
}

func SkuTag(id uuid.UUID) string {
	return "sku:" + id.String()
}

func OrderTag(id uuid.UUID) string {
	return "order:" + id.String()
}

// UserOrdersTag covers a customer's order list.
func UserOrdersTag(userID uuid.UUID) string {
	return "user-orders:" + userID.String()
}

// AdminOrdersTag covers admin order listings.
const AdminOrdersTag = "admin-orders"
