// Package idempotency records which events a consumer has already acted on, so
// redelivered Pub/Sub messages and provider webhooks do not repeat side effects.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/pkg/redis"
)

// DefaultTTL outlives the subscription's message retention window.
const DefaultTTL = 7 * 24 * time.Hour

// Manager claims event ids for one named consumer. A claim is a SETNX on
// <prefix>:evt:<consumer>:<event_id> whose value is the claim time.
type Manager struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, errors.New("consumer name is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, consumer: consumer, ttl: ttl, now: time.Now}, nil
}

// Claim reports whether the caller now owns eventID. False means another
// delivery already claimed it.
func (m *Manager) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return m.ClaimKey(ctx, eventID.String())
}

// Release drops a claim after a failed side effect so the redelivery retries it.
func (m *Manager) Release(ctx context.Context, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return errors.New("event id is required")
	}
	return m.ReleaseKey(ctx, eventID.String())
}

// ClaimKey is Claim for ids minted outside the engine, such as payment
// provider event ids.
func (m *Manager) ClaimKey(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, errors.New("event id is required")
	}
	return m.store.SetNX(ctx, m.key(id), m.now().UTC().Format(time.RFC3339Nano), m.ttl)
}

func (m *Manager) ReleaseKey(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("event id is required")
	}
	return m.store.Del(ctx, m.key(id))
}

func (m *Manager) key(id string) string {
	return m.store.IdempotencyKey("evt:"+m.consumer, id)
}
