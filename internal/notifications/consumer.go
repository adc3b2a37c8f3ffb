package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordercore-backend/internal/cache"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox/registry"
)

// ConsumerName scopes this worker's processed-event claims.
const ConsumerName = "notifications-worker"

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type processedTracker interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

// Consumer turns domain events into cache invalidations and customer emails.
// Invalidation is repeated on every delivery; emails are sent once per event.
type Consumer struct {
	subscription *pubsub.Subscriber
	registry     eventResolver
	idempotency  processedTracker
	dispatcher   Dispatcher
	cache        cache.Invalidator
	logg         *logger.Logger
}

// NewConsumer builds the domain event consumer.
func NewConsumer(subscription *pubsub.Subscriber, reg eventResolver, manager processedTracker, dispatcher Dispatcher, invalidator cache.Invalidator, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if reg == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if invalidator == nil {
		invalidator = cache.Noop{}
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		registry:     reg,
		idempotency:  manager,
		dispatcher:   dispatcher,
		cache:        invalidator,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	aggregateID, err := uuid.Parse(msg.Attributes["aggregate_id"])
	if err != nil {
		c.logg.Error(logCtx, "invalid aggregate id", err)
		return processResult{ack: true}
	}
	resolved, err := c.registry.Resolve(models.OutboxEvent{
		EventType:     enums.OutboxEventType(eventType),
		AggregateType: enums.OutboxAggregateType(msg.Attributes["aggregate_type"]),
		AggregateID:   aggregateID,
		Payload:       msg.Data,
	})
	if err != nil {
		c.logg.Error(logCtx, "failed to resolve event", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(resolved.Envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	switch payload := resolved.Payload.(type) {
	case *payloads.OrderLifecycleEvent:
		c.invalidate(logCtx, payload.CacheTags)
		if !payload.Notify {
			return processResult{ack: true}
		}
		return c.notifyOnce(ctx, logCtx, eventID, payload)
	case *payloads.CartUpdatedEvent:
		c.invalidate(logCtx, payload.CacheTags)
	case *payloads.CartExpiredEvent:
		c.invalidate(logCtx, payload.CacheTags)
	default:
		c.logg.Info(logCtx, "event not handled")
	}
	return processResult{ack: true}
}

func (c *Consumer) notifyOnce(ctx, logCtx context.Context, eventID uuid.UUID, payload *payloads.OrderLifecycleEvent) processResult {
	template, ok := TemplateFor(payload.Action)
	if !ok || payload.Email == "" {
		c.logg.Info(logCtx, "no notification for event")
		return processResult{ack: true}
	}

	claimed, err := c.idempotency.Claim(ctx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	data := OrderPayload(payload.OrderID, payload.OrderNumber, payload.Action, payload.Current.Status,
		payload.Current.PaymentStatus, payload.TotalCents, payload.Currency, payload.TrackingNumber, payload.Note)
	if err := c.dispatcher.Send(ctx, template, payload.Email, data); err != nil {
		c.logg.Error(logCtx, "notification dispatch failed", err)
		if delErr := c.idempotency.Release(ctx, eventID); delErr != nil {
			c.logg.Error(logCtx, "failed to clear idempotency key", multierr.Combine(err, delErr))
		}
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) invalidate(logCtx context.Context, tags []string) {
	if len(tags) == 0 {
		return
	}
	cache.BestEffort(logCtx, c.cache, c.logg, tags)
}
