package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sku is a purchasable stock unit. Inventory is only mutated through the stock ledger.
type Sku struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	Code         string     `gorm:"column:code;not null;uniqueIndex"`
	VariantTitle string     `gorm:"column:variant_title;not null;default:''"`
	PriceCents   int64      `gorm:"column:price_cents;not null"`
	Inventory    int        `gorm:"column:inventory;not null;default:0;check:skus_inventory_non_negative,inventory >= 0"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	DeletedAt    *time.Time `gorm:"column:deleted_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Product *Product `gorm:"foreignKey:ProductID;references:ID"`
}

func (s *Sku) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
