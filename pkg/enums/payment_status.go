package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks whether money for an order has moved.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
)

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusFailed:
		return true
	}
	return false
}

// CapturedFunds reports whether money was ever taken. Such orders are kept
// for accounting and cancel into REFUNDED.
func (p PaymentStatus) CapturedFunds() bool {
	return p == PaymentStatusPaid || p == PaymentStatusRefunded
}

// AwaitingPayment reports whether the provider may still settle the order.
// The unpaid-order sweeper only considers these.
func (p PaymentStatus) AwaitingPayment() bool {
	return p == PaymentStatusPending || p == PaymentStatusFailed
}

// UnsettledPaymentStatuses lists the statuses for which AwaitingPayment holds.
func UnsettledPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusPending, PaymentStatusFailed}
}

// ParsePaymentStatus accepts any letter case.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return status, nil
}
