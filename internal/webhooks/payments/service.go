package payments

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
)

// Provider event types the engine reacts to.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventCheckoutExpired  = "checkout.expired"
)

// Outcome values reported back to the provider.
const (
	OutcomeProcessed      = "processed"
	OutcomeDuplicate      = "duplicate"
	OutcomeAlreadyApplied = "already_applied"
	OutcomeIgnored        = "ignored"
	OutcomeRejected       = "rejected"
)

const actorLabel = "payment-provider"

// ConsumerName scopes the processed-webhook claims.
const ConsumerName = "payment-webhook"

// Event is the provider payload.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	OrderID           uuid.UUID `json:"order_id"`
	PaymentSessionRef string    `json:"payment_session_ref"`
	Reason            string    `json:"reason"`
}

// ParseEvent decodes a raw webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	event.ID = strings.TrimSpace(event.ID)
	event.Type = strings.TrimSpace(event.Type)
	if event.ID == "" || event.Type == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id and type are required")
	}
	return &event, nil
}

type orderTransitioner interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID, actor orders.Actor, note string) (*orders.Result, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, actor orders.Actor, reason string) (*orders.Result, error)
	ExpireUnpaid(ctx context.Context, orderID uuid.UUID, actor orders.Actor, reason string) (*orders.Result, error)
}

// eventGuard is satisfied by idempotency.Manager.
type eventGuard interface {
	ClaimKey(ctx context.Context, id string) (bool, error)
	ReleaseKey(ctx context.Context, id string) error
}

type ServiceParams struct {
	Orders orderTransitioner
	Guard  eventGuard
	Logger *logger.Logger
}

// Service maps payment provider events onto order transitions.
type Service struct {
	orders orderTransitioner
	guard  eventGuard
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Service{
		orders: params.Orders,
		guard:  params.Guard,
		logg:   params.Logger,
	}, nil
}

// HandleEvent applies one provider event at most once. A replay whose target
// state is already reached surfaces as Conflict from the state machine and is
// reported as already applied. Events the order can never accept are rejected
// and keep their marker. Only retryable failures clear the marker so the
// provider's retry is processed.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (string, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"webhook_event_id":   event.ID,
		"webhook_event_type": event.Type,
	})

	apply, ok := s.handlerFor(event.Type)
	if !ok {
		s.logg.Info(logCtx, "webhook event ignored")
		return OutcomeIgnored, nil
	}
	if event.Data.OrderID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	logCtx = s.logg.WithOrderID(logCtx, event.Data.OrderID.String())

	claimed, err := s.guard.ClaimKey(ctx, event.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
	}
	if !claimed {
		s.logg.Info(logCtx, "webhook event already processed")
		return OutcomeDuplicate, nil
	}

	actor := orders.WebhookActor(actorLabel)
	if err := apply(ctx, event, actor); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.logg.Info(logCtx, "webhook target state already reached")
			return OutcomeAlreadyApplied, nil
		}
		code := pkgerrors.CodeOf(err)
		if !pkgerrors.MetadataFor(code).Retryable {
			logCtx = s.logg.WithField(logCtx, "error_code", string(code))
			s.logg.Warn(logCtx, "webhook event rejected by order state")
			return OutcomeRejected, nil
		}
		if delErr := s.guard.ReleaseKey(ctx, event.ID); delErr != nil {
			s.logg.Error(logCtx, "failed to clear webhook idempotency key", delErr)
		}
		return "", err
	}
	s.logg.Info(logCtx, "webhook event applied")
	return OutcomeProcessed, nil
}

type applyFunc func(ctx context.Context, event *Event, actor orders.Actor) error

func (s *Service) handlerFor(eventType string) (applyFunc, bool) {
	switch eventType {
	case EventPaymentSucceeded:
		return func(ctx context.Context, e *Event, actor orders.Actor) error {
			_, err := s.orders.MarkPaid(ctx, e.Data.OrderID, actor, "payment confirmed by provider")
			return err
		}, true
	case EventPaymentFailed:
		return func(ctx context.Context, e *Event, actor orders.Actor) error {
			_, err := s.orders.MarkPaymentFailed(ctx, e.Data.OrderID, actor, reasonOr(e.Data.Reason, "payment failed"))
			return err
		}, true
	case EventCheckoutExpired:
		return func(ctx context.Context, e *Event, actor orders.Actor) error {
			_, err := s.orders.ExpireUnpaid(ctx, e.Data.OrderID, actor, reasonOr(e.Data.Reason, "checkout session expired"))
			return err
		}, true
	}
	return nil, false
}

func reasonOr(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return fallback
}
