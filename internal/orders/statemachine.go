package orders

import (
	"strings"
	"time"

	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
)

// transition is one row of the order lifecycle table. guard runs against the
// locked row; apply mutates it in memory before compensation and persistence.
type transition struct {
	action enums.AuditAction
	guard  func(order *models.Order, req Request) error
	apply  func(order *models.Order, req Request, now time.Time)
}

var transitions = map[enums.AuditAction]transition{
	enums.AuditActionPaid: {
		action: enums.AuditActionPaid,
		guard: func(o *models.Order, _ Request) error {
			switch {
			case o.Status == enums.OrderStatusCancelled:
				return invalid("cancelled orders cannot be paid")
			case o.PaymentStatus == enums.PaymentStatusPaid:
				return conflict("order is already paid")
			case o.PaymentStatus == enums.PaymentStatusRefunded:
				return invalid("refunded orders cannot be paid")
			}
			return nil
		},
		apply: func(o *models.Order, _ Request, now time.Time) {
			o.PaidAt = &now
		},
	},
	enums.AuditActionProcessing: {
		action: enums.AuditActionProcessing,
		guard: func(o *models.Order, _ Request) error {
			switch {
			case o.Status == enums.OrderStatusProcessing:
				return conflict("order is already processing")
			case o.Status != enums.OrderStatusPending:
				return invalid("only pending orders can start processing")
			case o.PaymentStatus != enums.PaymentStatusPaid:
				return invalid("order must be paid before processing")
			}
			return nil
		},
		apply: func(o *models.Order, _ Request, _ time.Time) {
			o.Status = enums.OrderStatusProcessing
			o.FulfillmentStatus = enums.FulfillmentStatusProcessing
		},
	},
	enums.AuditActionShipped: {
		action: enums.AuditActionShipped,
		guard: func(o *models.Order, req Request) error {
			switch {
			case o.Status == enums.OrderStatusShipped:
				return conflict("order is already shipped")
			case o.Status != enums.OrderStatusProcessing:
				return invalid("only processing orders can be shipped")
			case o.PaymentStatus != enums.PaymentStatusPaid:
				return invalid("order must be paid before shipping")
			case strings.TrimSpace(req.TrackingNumber) == "":
				return pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
			}
			return nil
		},
		apply: func(o *models.Order, req Request, now time.Time) {
			o.Status = enums.OrderStatusShipped
			o.FulfillmentStatus = enums.FulfillmentStatusShipped
			o.TrackingNumber = trimmedPtr(req.TrackingNumber)
			if carrier := trimmedPtr(req.Carrier); carrier != nil {
				o.Carrier = carrier
			}
			o.ShippedAt = &now
		},
	},
	enums.AuditActionStatusReverted: {
		action: enums.AuditActionStatusReverted,
		guard: func(o *models.Order, req Request) error {
			switch {
			case o.Status == enums.OrderStatusProcessing:
				return conflict("order is already processing")
			case o.Status != enums.OrderStatusShipped:
				return invalid("only shipped orders can be reverted")
			case strings.TrimSpace(req.Reason) == "":
				return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
			}
			return nil
		},
		apply: func(o *models.Order, _ Request, _ time.Time) {
			o.Status = enums.OrderStatusProcessing
			o.FulfillmentStatus = enums.FulfillmentStatusProcessing
			o.TrackingNumber = nil
			o.ShippedAt = nil
		},
	},
	enums.AuditActionDelivered: {
		action: enums.AuditActionDelivered,
		guard: func(o *models.Order, _ Request) error {
			switch {
			case o.Status == enums.OrderStatusDelivered:
				return conflict("order is already delivered")
			case o.Status != enums.OrderStatusShipped:
				return invalid("only shipped orders can be delivered")
			}
			return nil
		},
		apply: func(o *models.Order, _ Request, now time.Time) {
			o.Status = enums.OrderStatusDelivered
			o.FulfillmentStatus = enums.FulfillmentStatusDelivered
			o.DeliveredAt = &now
		},
	},
	enums.AuditActionReturned: {
		action: enums.AuditActionReturned,
		guard: func(o *models.Order, _ Request) error {
			switch {
			case o.FulfillmentStatus == enums.FulfillmentStatusReturned:
				return conflict("order is already returned")
			case o.Status != enums.OrderStatusDelivered:
				return invalid("only delivered orders can be returned")
			}
			return nil
		},
		apply: func(o *models.Order, _ Request, _ time.Time) {
			o.FulfillmentStatus = enums.FulfillmentStatusReturned
		},
	},
	enums.AuditActionCancelled: {
		action: enums.AuditActionCancelled,
		guard: func(o *models.Order, req Request) error {
			switch o.Status {
			case enums.OrderStatusCancelled:
				return conflict("order is already cancelled")
			case enums.OrderStatusDelivered:
				return invalid("delivered orders cannot be cancelled")
			}
			if req.RequireUnpaid && (o.Status != enums.OrderStatusPending || !o.PaymentStatus.AwaitingPayment()) {
				return invalid("order is no longer awaiting payment")
			}
			return nil
		},
		apply: func(o *models.Order, _ Request, now time.Time) {
			o.Status = enums.OrderStatusCancelled
			o.CancelledAt = &now
		},
	},
	enums.AuditActionTrackingUpdated: {
		action: enums.AuditActionTrackingUpdated,
		guard: func(o *models.Order, req Request) error {
			tracking := strings.TrimSpace(req.TrackingNumber)
			switch {
			case o.Status != enums.OrderStatusShipped:
				return invalid("tracking can only change on shipped orders")
			case tracking == "":
				return pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
			case o.TrackingNumber != nil && *o.TrackingNumber == tracking &&
				(strings.TrimSpace(req.Carrier) == "" || (o.Carrier != nil && *o.Carrier == strings.TrimSpace(req.Carrier))):
				return conflict("tracking is unchanged")
			}
			return nil
		},
		apply: func(o *models.Order, req Request, _ time.Time) {
			o.TrackingNumber = trimmedPtr(req.TrackingNumber)
			if carrier := trimmedPtr(req.Carrier); carrier != nil {
				o.Carrier = carrier
			}
		},
	},
	enums.AuditActionAddressUpdated: {
		action: enums.AuditActionAddressUpdated,
		guard: func(o *models.Order, req Request) error {
			if o.Status != enums.OrderStatusPending && o.Status != enums.OrderStatusProcessing {
				return invalid("address can only change before shipping")
			}
			if req.Address == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "address is required")
			}
			if err := req.Address.Normalize().Validate(); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
			}
			return nil
		},
		apply: func(o *models.Order, req Request, _ time.Time) {
			addr := req.Address.Normalize()
			o.ShippingName = addr.Name
			o.ShippingLine1 = addr.Line1
			o.ShippingLine2 = addr.Line2
			o.ShippingCity = addr.City
			o.ShippingRegion = addr.Region
			o.ShippingPostalCode = addr.PostalCode
			o.ShippingCountry = addr.Country
		},
	},
	enums.AuditActionPaymentFailed: {
		action: enums.AuditActionPaymentFailed,
		guard: func(o *models.Order, _ Request) error {
			switch {
			case o.PaymentStatus == enums.PaymentStatusFailed:
				return conflict("payment is already marked failed")
			case o.Status != enums.OrderStatusPending:
				return invalid("only pending orders can fail payment")
			case o.PaymentStatus != enums.PaymentStatusPending:
				return invalid("only pending payments can fail")
			}
			return nil
		},
		apply: func(o *models.Order, _ Request, _ time.Time) {
			o.PaymentStatus = enums.PaymentStatusFailed
		},
	},
	enums.AuditActionDeleted: {
		action: enums.AuditActionDeleted,
		guard: func(o *models.Order, _ Request) error {
			if !CanDelete(o) {
				return invalid("paid or refunded orders must be retained")
			}
			return nil
		},
		apply: func(o *models.Order, _ Request, now time.Time) {
			o.DeletedAt = &now
		},
	},
}

func lookupTransition(action enums.AuditAction) (transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// CanDelete reports whether an order may be tombstoned. Orders that ever took
// money are kept for the accounting retention period.
func CanDelete(order *models.Order) bool {
	if order == nil || order.DeletedAt != nil {
		return false
	}
	return !order.PaymentStatus.CapturedFunds()
}

func invalid(msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, msg)
}

func conflict(msg string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, msg)
}

func trimmedPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
