package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/internal/audit"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox"
)

// Actor is whoever requested a transition.
type Actor struct {
	UserID *uuid.UUID
	Role   enums.ActorRole
	Label  string
	Source enums.AuditSource
}

// CustomerActor builds the actor for a signed-in customer.
func CustomerActor(userID uuid.UUID, label string) Actor {
	return Actor{UserID: &userID, Role: enums.ActorRoleCustomer, Label: label, Source: enums.AuditSourceCustomer}
}

// AdminActor builds the actor for a back-office user.
func AdminActor(userID uuid.UUID, label string) Actor {
	return Actor{UserID: &userID, Role: enums.ActorRoleAdmin, Label: label, Source: enums.AuditSourceAdmin}
}

// WebhookActor builds the actor for a payment provider callback.
func WebhookActor(label string) Actor {
	return Actor{Label: label, Source: enums.AuditSourceWebhook}
}

// SystemActor builds the actor for scheduled jobs.
func SystemActor(label string) Actor {
	return Actor{Label: label, Source: enums.AuditSourceSystem}
}

var webhookActions = map[enums.AuditAction]struct{}{
	enums.AuditActionPaid:          {},
	enums.AuditActionPaymentFailed: {},
	enums.AuditActionCancelled:     {},
}

func (a Actor) validate() error {
	if !a.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid actor source")
	}
	switch a.Source {
	case enums.AuditSourceCustomer, enums.AuditSourceAdmin:
		if a.UserID == nil || *a.UserID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
		}
	}
	return nil
}

// authorize checks the actor against the locked order. Customers may only cancel
// their own pending orders; an already-cancelled order falls through to the
// guard so replays report a conflict rather than a permission error.
func authorize(actor Actor, action enums.AuditAction, order *models.Order) error {
	switch actor.Source {
	case enums.AuditSourceCustomer:
		if actor.Role != enums.ActorRoleCustomer || action != enums.AuditActionCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only cancel orders")
		}
		if order.UserID == nil || actor.UserID == nil || *order.UserID != *actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only pending orders can be cancelled by the customer")
		}
	case enums.AuditSourceAdmin:
		if actor.Role != enums.ActorRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
		}
	case enums.AuditSourceWebhook:
		if _, ok := webhookActions[action]; !ok {
			return pkgerrors.New(pkgerrors.CodeForbidden, "action not allowed from webhooks")
		}
	}
	return nil
}

func (a Actor) author() audit.Author {
	return audit.Author{ID: a.UserID, Label: a.Label}
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: a.UserID,
		Role:   string(a.Role),
		Label:  a.Label,
		Source: a.Source,
	}
}

// autoNotify reports whether the worker should email the customer for a
// transition nobody asked to notify synchronously.
func autoNotify(action enums.AuditAction, source enums.AuditSource) bool {
	switch action {
	case enums.AuditActionDelivered:
		return true
	case enums.AuditActionCancelled:
		return source == enums.AuditSourceCustomer || source == enums.AuditSourceWebhook
	case enums.AuditActionPaid:
		return source == enums.AuditSourceWebhook
	}
	return false
}
