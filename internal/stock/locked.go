package stock

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
)

// LockedSku is proof that the caller holds the row lock on a SKU inside tx.
// It is only produced by Ledger.Lock and LockMany, and inventory is only readable
// through it.
type LockedSku struct {
	tx      *gorm.DB
	sku     models.Sku
	product models.Product
}

func (l *LockedSku) ID() uuid.UUID {
	return l.sku.ID
}

func (l *LockedSku) Inventory() int {
	return l.sku.Inventory
}

func (l *LockedSku) PriceCents() int64 {
	return l.sku.PriceCents
}

func (l *LockedSku) ProductTitle() string {
	return l.product.Title
}

func (l *LockedSku) VariantTitle() string {
	return l.sku.VariantTitle
}

// Sellable reports whether the SKU and its product may take new reservations.
func (l *LockedSku) Sellable() bool {
	return l.sku.IsActive && l.sku.DeletedAt == nil &&
		l.product.IsActive && l.product.IsPublic && l.product.DeletedAt == nil
}

func (l *LockedSku) heldBy(tx *gorm.DB) bool {
	return l != nil && l.tx != nil && l.tx.Statement != nil && tx != nil &&
		l.tx.Statement.ConnPool == tx.Statement.ConnPool
}
