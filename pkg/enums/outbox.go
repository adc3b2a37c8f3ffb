package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateCart  OutboxAggregateType = "cart"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCart,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderPaid            OutboxEventType = "order_paid"
	EventOrderProcessing      OutboxEventType = "order_processing"
	EventOrderShipped         OutboxEventType = "order_shipped"
	EventOrderDelivered       OutboxEventType = "order_delivered"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventOrderReturned        OutboxEventType = "order_returned"
	EventOrderStatusReverted  OutboxEventType = "order_status_reverted"
	EventOrderPaymentFailed   OutboxEventType = "order_payment_failed"
	EventOrderAddressUpdated  OutboxEventType = "order_address_updated"
	EventOrderTrackingUpdated OutboxEventType = "order_tracking_updated"
	EventOrderDeleted         OutboxEventType = "order_deleted"
	EventCartUpdated          OutboxEventType = "cart_updated"
	EventCartExpired          OutboxEventType = "cart_expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderProcessing,
	EventOrderShipped,
	EventOrderDelivered,
	EventOrderCancelled,
	EventOrderReturned,
	EventOrderStatusReverted,
	EventOrderPaymentFailed,
	EventOrderAddressUpdated,
	EventOrderTrackingUpdated,
	EventOrderDeleted,
	EventCartUpdated,
	EventCartExpired,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OrderEventForAction maps an audit action to the lifecycle event emitted alongside it.
func OrderEventForAction(action AuditAction) (OutboxEventType, bool) {
	switch action {
	case AuditActionCreated:
		return EventOrderCreated, true
	case AuditActionPaid:
		return EventOrderPaid, true
	case AuditActionProcessing:
		return EventOrderProcessing, true
	case AuditActionShipped:
		return EventOrderShipped, true
	case AuditActionDelivered:
		return EventOrderDelivered, true
	case AuditActionCancelled:
		return EventOrderCancelled, true
	case AuditActionReturned:
		return EventOrderReturned, true
	case AuditActionStatusReverted:
		return EventOrderStatusReverted, true
	case AuditActionPaymentFailed:
		return EventOrderPaymentFailed, true
	case AuditActionAddressUpdated:
		return EventOrderAddressUpdated, true
	case AuditActionTrackingUpdated:
		return EventOrderTrackingUpdated, true
	case AuditActionDeleted:
		return EventOrderDeleted, true
	}
	return "", false
}

// OutboxDLQErrorReason records why an event was parked in outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
