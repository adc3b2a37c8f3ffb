package orders

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockMany(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	Save(ctx context.Context, order *models.Order) error
	ListStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("id = ? AND deleted_at IS NULL", id).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID takes the row lock on a live order, then loads its items.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", id).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", order.ID).Order("created_at ASC").Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockMany locks live orders in ascending id order. Missing ids are omitted.
func (r *repository) LockMany(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	out := make([]models.Order, 0, len(ordered))
	for _, id := range ordered {
		order, err := r.LockByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *order)
	}
	return out, nil
}

// Create inserts an order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Save persists every field a transition may touch, including the caller's
// UpdatedAt.
func (r *repository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":               order.Status,
			"payment_status":       order.PaymentStatus,
			"fulfillment_status":   order.FulfillmentStatus,
			"stock_reservation":    order.StockReservation,
			"shipping_name":        order.ShippingName,
			"shipping_line1":       order.ShippingLine1,
			"shipping_line2":       order.ShippingLine2,
			"shipping_city":        order.ShippingCity,
			"shipping_region":      order.ShippingRegion,
			"shipping_postal_code": order.ShippingPostalCode,
			"shipping_country":     order.ShippingCountry,
			"carrier":              order.Carrier,
			"tracking_number":      order.TrackingNumber,
			"paid_at":              order.PaidAt,
			"shipped_at":           order.ShippedAt,
			"delivered_at":         order.DeliveredAt,
			"cancelled_at":         order.CancelledAt,
			"deleted_at":           order.DeletedAt,
			"updated_at":           order.UpdatedAt,
		}).Error
}

// ListStalePendingIDs returns unpaid pending orders created before cutoff, oldest first.
func (r *repository) ListStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND payment_status IN ? AND deleted_at IS NULL AND created_at < ?",
			enums.OrderStatusPending,
			enums.UnsettledPaymentStatuses(),
			cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
