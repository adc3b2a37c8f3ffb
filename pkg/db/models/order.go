package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/pkg/enums"
)

// Order is created once at checkout and afterwards mutated only by the order state machine.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string                  `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            *uuid.UUID              `gorm:"column:user_id;type:uuid;index"`
	Email             string                  `gorm:"column:email;not null"`
	Status            enums.OrderStatus       `gorm:"column:status;not null"`
	PaymentStatus     enums.PaymentStatus     `gorm:"column:payment_status;not null"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;not null"`
	StockReservation  enums.StockReservation  `gorm:"column:stock_reservation;not null;default:''"`
	PaymentSessionRef *string                 `gorm:"column:payment_session_ref"`

	ShippingName       string  `gorm:"column:shipping_name;not null;default:''"`
	ShippingLine1      string  `gorm:"column:shipping_line1;not null;default:''"`
	ShippingLine2      *string `gorm:"column:shipping_line2"`
	ShippingCity       string  `gorm:"column:shipping_city;not null;default:''"`
	ShippingRegion     string  `gorm:"column:shipping_region;not null;default:''"`
	ShippingPostalCode string  `gorm:"column:shipping_postal_code;not null;default:''"`
	ShippingCountry    string  `gorm:"column:shipping_country;not null;default:''"`
	Carrier            *string `gorm:"column:carrier"`
	TrackingNumber     *string `gorm:"column:tracking_number"`

	SubtotalCents int64  `gorm:"column:subtotal_cents;not null"`
	DiscountCents int64  `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents int64  `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents      int64  `gorm:"column:tax_cents;not null;default:0"`
	TotalCents    int64  `gorm:"column:total_cents;not null"`
	Currency      string `gorm:"column:currency;not null;default:'USD'"`

	PaidAt      *time.Time `gorm:"column:paid_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is an immutable snapshot; SkuID is used for stock compensation only.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	SkuID          *uuid.UUID `gorm:"column:sku_id;type:uuid"`
	ProductTitle   string     `gorm:"column:product_title;not null"`
	VariantTitle   string     `gorm:"column:variant_title;not null;default:''"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	LineTotalCents int64      `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
