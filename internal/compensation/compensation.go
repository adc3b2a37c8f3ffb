// Package compensation decides the stock and payment side effects of an order
// transition. It performs no I/O.
package compensation

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/pkg/enums"
)

// Item is the part of an order line compensation cares about.
type Item struct {
	SkuID    *uuid.UUID
	Quantity int
}

// Input is the order state observed under lock before the transition is applied.
type Input struct {
	Action            enums.AuditAction
	PrevStatus        enums.OrderStatus
	PrevPaymentStatus enums.PaymentStatus
	Reservation       enums.StockReservation
	PaymentSessionRef *string
	Items             []Item
}

// Plan lists the side effects to apply in the same transaction as the transition.
// StockDeltas are signed: positive releases stock, negative takes it.
type Plan struct {
	StockDeltas     map[uuid.UUID]int
	PaymentStatus   *enums.PaymentStatus
	Reservation     *enums.StockReservation
	RestoresStock   bool
	DecrementsStock bool
}

// HasStockChanges reports whether the plan touches inventory.
func (p Plan) HasStockChanges() bool {
	return len(p.StockDeltas) > 0
}

// EffectiveReservation resolves the reservation state of an order. Rows written
// before the column existed fall back to the payment session heuristic: a session
// reference means stock was reserved online at checkout.
func EffectiveReservation(state enums.StockReservation, paymentSessionRef *string) enums.StockReservation {
	if state.IsValid() {
		return state
	}
	if paymentSessionRef != nil && strings.TrimSpace(*paymentSessionRef) != "" {
		return enums.StockReservationHeld
	}
	return enums.StockReservationNone
}

// Decide computes the compensation plan for a transition.
func Decide(in Input) Plan {
	reservation := EffectiveReservation(in.Reservation, in.PaymentSessionRef)

	switch in.Action {
	case enums.AuditActionCancelled:
		plan := Plan{}
		if in.PrevStatus == enums.OrderStatusPending && reservation == enums.StockReservationHeld {
			plan.StockDeltas = itemDeltas(in.Items, 1)
			plan.RestoresStock = true
			plan.Reservation = reservationPtr(enums.StockReservationReleased)
		}
		if in.PrevPaymentStatus == enums.PaymentStatusPaid {
			plan.PaymentStatus = paymentPtr(enums.PaymentStatusRefunded)
		}
		return plan

	case enums.AuditActionPaid:
		plan := Plan{PaymentStatus: paymentPtr(enums.PaymentStatusPaid)}
		if reservation != enums.StockReservationHeld {
			plan.StockDeltas = itemDeltas(in.Items, -1)
			plan.DecrementsStock = true
			plan.Reservation = reservationPtr(enums.StockReservationHeld)
		}
		return plan
	}

	return Plan{}
}

// AggregateDeltas folds the stock deltas of several plans per SKU, dropping SKUs
// whose deltas cancel out.
func AggregateDeltas(plans []Plan) map[uuid.UUID]int {
	out := map[uuid.UUID]int{}
	for _, plan := range plans {
		for skuID, delta := range plan.StockDeltas {
			out[skuID] += delta
		}
	}
	for skuID, delta := range out {
		if delta == 0 {
			delete(out, skuID)
		}
	}
	return out
}

func itemDeltas(items []Item, sign int) map[uuid.UUID]int {
	deltas := map[uuid.UUID]int{}
	for _, item := range items {
		if item.SkuID == nil || *item.SkuID == uuid.Nil || item.Quantity <= 0 {
			continue
		}
		deltas[*item.SkuID] += sign * item.Quantity
	}
	if len(deltas) == 0 {
		return nil
	}
	return deltas
}

func paymentPtr(v enums.PaymentStatus) *enums.PaymentStatus {
	return &v
}

func reservationPtr(v enums.StockReservation) *enums.StockReservation {
	return &v
}
