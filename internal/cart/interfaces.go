package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
)

// CartRepository describes the persistence surface the cart service relies on.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByOwner(ctx context.Context, owner Owner) (*models.Cart, error)
	LockByOwner(ctx context.Context, owner Owner) (*models.Cart, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	Touch(ctx context.Context, cartID uuid.UUID, expiresAt *time.Time, now time.Time) error
	Delete(ctx context.Context, cartID uuid.UUID) error
	ListExpiredGuestIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	FindItem(ctx context.Context, cartID, skuID uuid.UUID) (*models.CartItem, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	CountItems(ctx context.Context, cartID uuid.UUID) (int64, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int, now time.Time) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
}
