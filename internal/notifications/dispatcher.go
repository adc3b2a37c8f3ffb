// Package notifications delivers customer emails for order lifecycle events.
// Delivery mechanics live behind Dispatcher; callers treat it as fire-and-forget.
package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/money"
)

// Template names an email the delivery backend knows how to render.
type Template string

const (
	TemplateOrderConfirmed Template = "order_confirmed"
	TemplateOrderPaid      Template = "order_paid"
	TemplateOrderShipped   Template = "order_shipped"
	TemplateReviewRequest  Template = "order_review_request"
	TemplateOrderCancelled Template = "order_cancelled"
	TemplateOrderReturned  Template = "order_returned"
)

// TemplateFor maps an audit action to its customer email, if it has one.
func TemplateFor(action enums.AuditAction) (Template, bool) {
	switch action {
	case enums.AuditActionCreated:
		return TemplateOrderConfirmed, true
	case enums.AuditActionPaid:
		return TemplateOrderPaid, true
	case enums.AuditActionShipped:
		return TemplateOrderShipped, true
	case enums.AuditActionDelivered:
		return TemplateReviewRequest, true
	case enums.AuditActionCancelled:
		return TemplateOrderCancelled, true
	case enums.AuditActionReturned:
		return TemplateOrderReturned, true
	}
	return "", false
}

// Payload is the data every order template renders from.
type Payload struct {
	OrderID        uuid.UUID           `json:"order_id"`
	OrderNumber    string              `json:"order_number"`
	Action         enums.AuditAction   `json:"action"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	Total          string              `json:"total"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
	Note           string              `json:"note,omitempty"`
}

// OrderPayload builds a template payload with the total formatted for display.
func OrderPayload(orderID uuid.UUID, orderNumber string, action enums.AuditAction, status enums.OrderStatus, payment enums.PaymentStatus, totalCents int64, currency, tracking, note string) Payload {
	return Payload{
		OrderID:        orderID,
		OrderNumber:    orderNumber,
		Action:         action,
		Status:         status,
		PaymentStatus:  payment,
		Total:          money.Format(totalCents, currency),
		TrackingNumber: tracking,
		Note:           note,
	}
}

// Dispatcher sends one templated email.
type Dispatcher interface {
	Send(ctx context.Context, template Template, recipient string, payload Payload) error
}

// LogDispatcher records dispatches in the structured log instead of sending mail.
type LogDispatcher struct {
	logg *logger.Logger
}

func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) Send(ctx context.Context, template Template, recipient string, payload Payload) error {
	if strings.TrimSpace(recipient) == "" {
		return errors.New("recipient required")
	}
	if template == "" {
		return errors.New("template required")
	}
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"template":     template,
		"order_id":     payload.OrderID.String(),
		"order_number": payload.OrderNumber,
		"total":        payload.Total,
	}), "notification dispatched")
	return nil
}
