package stock

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/metrics"
)

// User facing messages never include counts.
const (
	msgOutOfStock   = "item is out of stock"
	msgInsufficient = "insufficient stock for requested quantity"
	msgUnavailable  = "item is unavailable"
)

type recorder interface {
	ObserveStock(kind string, units int)
}

// Ledger owns every inventory mutation. All methods require an open transaction.
type Ledger struct {
	metrics recorder
	logg    *logger.Logger
}

// NewLedger builds a ledger; metrics and logger are optional.
func NewLedger(m *metrics.EngineMetrics, logg *logger.Logger) *Ledger {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Ledger{metrics: m, logg: logg}
}

// Lock takes the exclusive row lock on a SKU and loads its product.
// Soft-deleted SKUs are still returned so compensation can release into them.
func (l *Ledger) Lock(ctx context.Context, tx *gorm.DB, skuID uuid.UUID) (*LockedSku, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if skuID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku id is required")
	}
	tx = tx.WithContext(ctx)

	var sku models.Sku
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", skuID).
		Take(&sku).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sku not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock sku")
	}

	var product models.Product
	if err := tx.Where("id = ?", sku.ProductID).Take(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	return &LockedSku{tx: tx, sku: sku, product: product}, nil
}

// LockMany locks the given SKUs in ascending id order so two transactions touching
// overlapping sets cannot deadlock. Duplicate ids are locked once.
func (l *Ledger) LockMany(ctx context.Context, tx *gorm.DB, skuIDs []uuid.UUID) (map[uuid.UUID]*LockedSku, error) {
	ordered := sortedUnique(skuIDs)
	out := make(map[uuid.UUID]*LockedSku, len(ordered))
	for _, id := range ordered {
		locked, err := l.Lock(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = locked
	}
	return out, nil
}

// Reserve decrements inventory for a sellable SKU.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, locked *LockedSku, qty int) error {
	if err := l.checkHandle(tx, locked, qty); err != nil {
		return err
	}
	if !locked.Sellable() {
		return pkgerrors.New(pkgerrors.CodeSkuInactive, msgUnavailable)
	}
	return l.decrement(ctx, tx, locked, qty)
}

// Release increments inventory. Retired SKUs still accept releases.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, locked *LockedSku, qty int) error {
	if err := l.checkHandle(tx, locked, qty); err != nil {
		return err
	}
	res := tx.WithContext(ctx).Model(&models.Sku{}).
		Where("id = ?", locked.ID()).
		UpdateColumn("inventory", gorm.Expr("inventory + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release stock")
	}
	locked.sku.Inventory += qty
	l.metrics.ObserveStock(metrics.StockRelease, qty)
	return nil
}

// ApplyDeltas locks every SKU in deltas and applies the signed quantity: positive
// values release stock, negative values take it. Taking stock here skips the
// sellability check because the units were already sold on an order.
func (l *Ledger) ApplyDeltas(ctx context.Context, tx *gorm.DB, deltas map[uuid.UUID]int) error {
	ids := make([]uuid.UUID, 0, len(deltas))
	for id, delta := range deltas {
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	locked, err := l.LockMany(ctx, tx, ids)
	if err != nil {
		return err
	}
	for _, id := range sortedUnique(ids) {
		delta := deltas[id]
		if delta > 0 {
			err = l.Release(ctx, tx, locked[id], delta)
		} else {
			err = l.take(ctx, tx, locked[id], -delta)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) take(ctx context.Context, tx *gorm.DB, locked *LockedSku, qty int) error {
	if err := l.checkHandle(tx, locked, qty); err != nil {
		return err
	}
	return l.decrement(ctx, tx, locked, qty)
}

func (l *Ledger) decrement(ctx context.Context, tx *gorm.DB, locked *LockedSku, qty int) error {
	if locked.Inventory() <= 0 {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, msgOutOfStock)
	}
	if qty > locked.Inventory() {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, msgInsufficient)
	}
	res := tx.WithContext(ctx).Model(&models.Sku{}).
		Where("id = ? AND inventory >= ?", locked.ID(), qty).
		UpdateColumn("inventory", gorm.Expr("inventory - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		// the lock should make this unreachable; the guard keeps inventory >= 0 regardless
		l.logg.Warn(l.logg.WithField(ctx, "sku_id", locked.ID().String()), "guarded stock decrement matched no row")
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, msgInsufficient)
	}
	locked.sku.Inventory -= qty
	l.metrics.ObserveStock(metrics.StockReserve, qty)
	return nil
}

func (l *Ledger) checkHandle(tx *gorm.DB, locked *LockedSku, qty int) error {
	if tx == nil || locked == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "locked sku and transaction required")
	}
	if !locked.heldBy(tx) {
		return pkgerrors.New(pkgerrors.CodeInternal, "sku lock belongs to another transaction")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
