package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/pkg/enums"
)

// OrderAudit is append-only: rows are never updated or deleted.
type OrderAudit struct {
	ID                    uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index:order_audits_order_created_idx,priority:1"`
	Action                enums.AuditAction        `gorm:"column:action;not null"`
	PrevStatus            *enums.OrderStatus       `gorm:"column:prev_status"`
	NewStatus             *enums.OrderStatus       `gorm:"column:new_status"`
	PrevPaymentStatus     *enums.PaymentStatus     `gorm:"column:prev_payment_status"`
	NewPaymentStatus      *enums.PaymentStatus     `gorm:"column:new_payment_status"`
	PrevFulfillmentStatus *enums.FulfillmentStatus `gorm:"column:prev_fulfillment_status"`
	NewFulfillmentStatus  *enums.FulfillmentStatus `gorm:"column:new_fulfillment_status"`
	Note                  *string                  `gorm:"column:note"`
	Metadata              json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	AuthorID              *uuid.UUID               `gorm:"column:author_id;type:uuid"`
	AuthorLabel           string                   `gorm:"column:author_label;not null;default:''"`
	Source                enums.AuditSource        `gorm:"column:source;not null"`
	CreatedAt             time.Time                `gorm:"column:created_at;not null;index:order_audits_order_created_idx,priority:2"`
}

func (a *OrderAudit) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
