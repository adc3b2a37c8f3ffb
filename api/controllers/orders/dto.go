package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	internalorders "github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	"github.com/angelmondragon/ordercore-backend/pkg/types"
)

// OrderResponse is the public view of an order.
type OrderResponse struct {
	ID                uuid.UUID               `json:"id"`
	OrderNumber       string                  `json:"order_number"`
	Email             string                  `json:"email"`
	Status            enums.OrderStatus       `json:"status"`
	PaymentStatus     enums.PaymentStatus     `json:"payment_status"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
	StockReservation  enums.StockReservation  `json:"stock_reservation,omitempty"`
	Shipping          types.Address           `json:"shipping"`
	Carrier           *string                 `json:"carrier,omitempty"`
	TrackingNumber    *string                 `json:"tracking_number,omitempty"`
	SubtotalCents     int64                   `json:"subtotal_cents"`
	DiscountCents     int64                   `json:"discount_cents"`
	ShippingCents     int64                   `json:"shipping_cents"`
	TaxCents          int64                   `json:"tax_cents"`
	TotalCents        int64                   `json:"total_cents"`
	Currency          string                  `json:"currency"`
	Items             []OrderItemResponse     `json:"items,omitempty"`
	PaidAt            *time.Time              `json:"paid_at,omitempty"`
	ShippedAt         *time.Time              `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time              `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time              `json:"cancelled_at,omitempty"`
	DeletedAt         *time.Time              `json:"deleted_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

type OrderItemResponse struct {
	SkuID          *uuid.UUID `json:"sku_id,omitempty"`
	ProductTitle   string     `json:"product_title"`
	VariantTitle   string     `json:"variant_title,omitempty"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Quantity       int        `json:"quantity"`
	LineTotalCents int64      `json:"line_total_cents"`
}

// TransitionResponse pairs the updated order with the audit row written for it.
type TransitionResponse struct {
	Order *OrderResponse `json:"order"`
	Audit *AuditEntry    `json:"audit,omitempty"`
}

type AuditEntry struct {
	ID                    uuid.UUID                `json:"id"`
	Action                enums.AuditAction        `json:"action"`
	PrevStatus            *enums.OrderStatus       `json:"prev_status,omitempty"`
	NewStatus             *enums.OrderStatus       `json:"new_status,omitempty"`
	PrevPaymentStatus     *enums.PaymentStatus     `json:"prev_payment_status,omitempty"`
	NewPaymentStatus      *enums.PaymentStatus     `json:"new_payment_status,omitempty"`
	PrevFulfillmentStatus *enums.FulfillmentStatus `json:"prev_fulfillment_status,omitempty"`
	NewFulfillmentStatus  *enums.FulfillmentStatus `json:"new_fulfillment_status,omitempty"`
	Note                  *string                  `json:"note,omitempty"`
	Metadata              json.RawMessage          `json:"metadata,omitempty"`
	AuthorID              *uuid.UUID               `json:"author_id,omitempty"`
	AuthorLabel           string                   `json:"author_label,omitempty"`
	Source                enums.AuditSource        `json:"source"`
	CreatedAt             time.Time                `json:"created_at"`
}

type AuditPage struct {
	Entries    []AuditEntry `json:"entries"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func NewOrderResponse(order *models.Order) *OrderResponse {
	if order == nil {
		return nil
	}
	resp := &OrderResponse{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		Email:             order.Email,
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		FulfillmentStatus: order.FulfillmentStatus,
		StockReservation:  order.StockReservation,
		Shipping: types.Address{
			Name:       order.ShippingName,
			Line1:      order.ShippingLine1,
			Line2:      order.ShippingLine2,
			City:       order.ShippingCity,
			Region:     order.ShippingRegion,
			PostalCode: order.ShippingPostalCode,
			Country:    order.ShippingCountry,
		},
		Carrier:        order.Carrier,
		TrackingNumber: order.TrackingNumber,
		SubtotalCents:  order.SubtotalCents,
		DiscountCents:  order.DiscountCents,
		ShippingCents:  order.ShippingCents,
		TaxCents:       order.TaxCents,
		TotalCents:     order.TotalCents,
		Currency:       order.Currency,
		PaidAt:         order.PaidAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		CancelledAt:    order.CancelledAt,
		DeletedAt:      order.DeletedAt,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			SkuID:          item.SkuID,
			ProductTitle:   item.ProductTitle,
			VariantTitle:   item.VariantTitle,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return resp
}

func newAuditEntry(row *models.OrderAudit) *AuditEntry {
	if row == nil {
		return nil
	}
	return &AuditEntry{
		ID:                    row.ID,
		Action:                row.Action,
		PrevStatus:            row.PrevStatus,
		NewStatus:             row.NewStatus,
		PrevPaymentStatus:     row.PrevPaymentStatus,
		NewPaymentStatus:      row.NewPaymentStatus,
		PrevFulfillmentStatus: row.PrevFulfillmentStatus,
		NewFulfillmentStatus:  row.NewFulfillmentStatus,
		Note:                  row.Note,
		Metadata:              row.Metadata,
		AuthorID:              row.AuthorID,
		AuthorLabel:           row.AuthorLabel,
		Source:                row.Source,
		CreatedAt:             row.CreatedAt,
	}
}

func newTransitionResponse(result *internalorders.Result) TransitionResponse {
	return TransitionResponse{
		Order: NewOrderResponse(result.Order),
		Audit: newAuditEntry(result.Audit),
	}
}
