package enums

import "fmt"

// AuditAction names the transition an order_audits row records.
type AuditAction string

const (
	AuditActionCreated         AuditAction = "CREATED"
	AuditActionPaid            AuditAction = "PAID"
	AuditActionProcessing      AuditAction = "PROCESSING"
	AuditActionShipped         AuditAction = "SHIPPED"
	AuditActionDelivered       AuditAction = "DELIVERED"
	AuditActionCancelled       AuditAction = "CANCELLED"
	AuditActionReturned        AuditAction = "RETURNED"
	AuditActionStatusReverted  AuditAction = "STATUS_REVERTED"
	AuditActionAddressUpdated  AuditAction = "ADDRESS_UPDATED"
	AuditActionTrackingUpdated AuditAction = "TRACKING_UPDATED"
	AuditActionPaymentFailed   AuditAction = "PAYMENT_FAILED"
	AuditActionDeleted         AuditAction = "DELETED"
)

var validAuditActions = []AuditAction{
	AuditActionCreated,
	AuditActionPaid,
	AuditActionProcessing,
	AuditActionShipped,
	AuditActionDelivered,
	AuditActionCancelled,
	AuditActionReturned,
	AuditActionStatusReverted,
	AuditActionAddressUpdated,
	AuditActionTrackingUpdated,
	AuditActionPaymentFailed,
	AuditActionDeleted,
}

func (a AuditAction) String() string {
	return string(a)
}

func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}

// AuditSource identifies which kind of caller triggered a transition.
type AuditSource string

const (
	AuditSourceAdmin    AuditSource = "ADMIN"
	AuditSourceCustomer AuditSource = "CUSTOMER"
	AuditSourceWebhook  AuditSource = "WEBHOOK"
	AuditSourceSystem   AuditSource = "SYSTEM"
)

var validAuditSources = []AuditSource{
	AuditSourceAdmin,
	AuditSourceCustomer,
	AuditSourceWebhook,
	AuditSourceSystem,
}

func (s AuditSource) String() string {
	return string(s)
}

func (s AuditSource) IsValid() bool {
	for _, candidate := range validAuditSources {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseAuditSource(value string) (AuditSource, error) {
	for _, candidate := range validAuditSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit source %q", value)
}
