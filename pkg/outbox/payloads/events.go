package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/ordercore-backend/pkg/enums"
)

// StatusSnapshot captures the three status axes of an order at one point in time.
type StatusSnapshot struct {
	Status            enums.OrderStatus       `json:"status"`
	PaymentStatus     enums.PaymentStatus     `json:"payment_status"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
}

// OrderLifecycleEvent is emitted for every committed order transition.
type OrderLifecycleEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	Action         enums.AuditAction `json:"action"`
	Source         enums.AuditSource `json:"source"`
	Previous       StatusSnapshot    `json:"previous"`
	Current        StatusSnapshot    `json:"current"`
	Email          string            `json:"email,omitempty"`
	Note           string            `json:"note,omitempty"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	TotalCents     int64             `json:"total_cents"`
	Currency       string            `json:"currency"`
	// Notify asks the worker to dispatch the customer email; false when the request
	// already sent it synchronously or the action has no customer-facing template.
	Notify    bool     `json:"notify"`
	CacheTags []string `json:"cache_tags,omitempty"`
}

// CartUpdatedEvent is emitted when cart lines change the stock they hold.
type CartUpdatedEvent struct {
	CartID    uuid.UUID   `json:"cart_id"`
	SkuIDs    []uuid.UUID `json:"sku_ids"`
	CacheTags []string    `json:"cache_tags,omitempty"`
}

// CartExpiredEvent is emitted when a guest cart is reclaimed and its stock released.
type CartExpiredEvent struct {
	CartID        uuid.UUID   `json:"cart_id"`
	SkuIDs        []uuid.UUID `json:"sku_ids"`
	UnitsReleased int         `json:"units_released"`
	CacheTags     []string    `json:"cache_tags,omitempty"`
}
