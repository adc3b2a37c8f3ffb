package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/internal/audit"
	"github.com/angelmondragon/ordercore-backend/internal/cache"
	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/internal/stock"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/money"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordercore-backend/pkg/types"
)

const orderNumberAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type skuLocker interface {
	LockMany(ctx context.Context, tx *gorm.DB, skuIDs []uuid.UUID) (map[uuid.UUID]*stock.LockedSku, error)
}

type auditAppender interface {
	Append(ctx context.Context, tx *gorm.DB, entry audit.Entry) (*models.OrderAudit, error)
}

// Service turns carts into orders and lets admins record orders taken offline.
type Service interface {
	PlaceOrder(ctx context.Context, owner cart.Owner, input PlaceOrderInput) (*models.Order, error)
	CreateManualOrder(ctx context.Context, actor orders.Actor, input ManualOrderInput) (*models.Order, error)
}

// PlaceOrderInput carries the buyer data the cart does not know.
type PlaceOrderInput struct {
	Email             string
	Shipping          types.Address
	PaymentSessionRef string
	ShippingCents     int64
	TaxCents          int64
}

// ManualLine is one SKU on a manual order.
type ManualLine struct {
	SkuID    uuid.UUID
	Quantity int
}

// ManualOrderInput describes an order an admin enters by hand. Stock is not
// taken until the order is marked paid.
type ManualOrderInput struct {
	UserID        *uuid.UUID
	Email         string
	Shipping      types.Address
	Lines         []ManualLine
	ShippingCents int64
	TaxCents      int64
	Note          string
	Notify        bool
}

type service struct {
	tx       txRunner
	carts    cart.CartRepository
	orders   orders.Repository
	ledger   skuLocker
	audit    auditAppender
	outbox   outbox.Emitter
	cache    cache.Invalidator
	cfg      config.CartConfig
	currency string
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	carts cart.CartRepository,
	orderRepo orders.Repository,
	ledger skuLocker,
	auditLedger auditAppender,
	emitter outbox.Emitter,
	invalidator cache.Invalidator,
	cfg config.CartConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if auditLedger == nil {
		return nil, fmt.Errorf("audit ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if invalidator == nil {
		invalidator = cache.Noop{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:       tx,
		carts:    carts,
		orders:   orderRepo,
		ledger:   ledger,
		audit:    auditLedger,
		outbox:   emitter,
		cache:    invalidator,
		cfg:      cfg,
		currency: "USD",
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// PlaceOrder converts the owner's cart into a pending order. The cart lines already
// hold their stock, so the order starts with a HELD reservation and the lines are
// removed without releasing anything.
func (s *service) PlaceOrder(ctx context.Context, owner cart.Owner, input PlaceOrderInput) (*models.Order, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	email, address, err := validateBuyer(input.Email, input.Shipping)
	if err != nil {
		return nil, err
	}
	if input.ShippingCents < 0 || input.TaxCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charges cannot be negative")
	}

	var (
		order *models.Order
		tags  []string
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		record, err := carts.LockByOwner(ctx, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock cart")
		}
		if record.IsExpired(s.now()) {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart has expired")
		}
		items, err := carts.ListItems(ctx, record.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
		}

		lines := make([]line, 0, len(items))
		for _, item := range items {
			lines = append(lines, line{skuID: item.SkuID, quantity: item.Quantity, unitCents: item.PriceAtAddCents})
		}
		built, err := s.buildOrder(ctx, tx, lines, false)
		if err != nil {
			return err
		}
		built.UserID = owner.UserID
		built.Email = email
		built.StockReservation = enums.StockReservationHeld
		if ref := strings.TrimSpace(input.PaymentSessionRef); ref != "" {
			built.PaymentSessionRef = &ref
		}
		applyAddress(built, address)
		applyCharges(built, input.ShippingCents, input.TaxCents)

		actor := orders.Actor{UserID: owner.UserID, Role: enums.ActorRoleCustomer, Label: email, Source: enums.AuditSourceCustomer}
		if err := s.create(ctx, tx, built, actor, "", true); err != nil {
			return err
		}
		if err := carts.DeleteItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		order = built
		tags = append(orderTags(built), cache.CartTag(record.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.BestEffort(ctx, s.cache, s.logg, tags)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total_cents":  order.TotalCents,
	}), "order placed")
	return order, nil
}

// CreateManualOrder snapshots the requested SKUs into a pending order without
// touching inventory.
func (s *service) CreateManualOrder(ctx context.Context, actor orders.Actor, input ManualOrderInput) (*models.Order, error) {
	if actor.Source != enums.AuditSourceAdmin || actor.Role != enums.ActorRoleAdmin || actor.UserID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "manual orders require an admin")
	}
	email, address, err := validateBuyer(input.Email, input.Shipping)
	if err != nil {
		return nil, err
	}
	if input.ShippingCents < 0 || input.TaxCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charges cannot be negative")
	}
	lines, err := s.manualLines(input.Lines)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		built, err := s.buildOrder(ctx, tx, lines, true)
		if err != nil {
			return err
		}
		built.UserID = input.UserID
		built.Email = email
		built.StockReservation = enums.StockReservationNone
		applyAddress(built, address)
		applyCharges(built, input.ShippingCents, input.TaxCents)

		if err := s.create(ctx, tx, built, actor, input.Note, input.Notify); err != nil {
			return err
		}
		order = built
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.BestEffort(ctx, s.cache, s.logg, orderTags(order))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"author_id":    actor.UserID.String(),
	}), "manual order created")
	return order, nil
}

type line struct {
	skuID     uuid.UUID
	quantity  int
	unitCents int64
}

func (s *service) manualLines(in []ManualLine) ([]line, error) {
	if len(in) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	if s.cfg.MaxItems > 0 && len(in) > s.cfg.MaxItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("an order can hold at most %d items", s.cfg.MaxItems))
	}
	seen := make(map[uuid.UUID]struct{}, len(in))
	out := make([]line, 0, len(in))
	for _, l := range in {
		if l.SkuID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku id is required")
		}
		if _, dup := seen[l.SkuID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each sku may appear once")
		}
		seen[l.SkuID] = struct{}{}
		if l.Quantity < 1 || (s.cfg.MaxQuantityPerOrder > 0 && l.Quantity > s.cfg.MaxQuantityPerOrder) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity is out of range")
		}
		out = append(out, line{skuID: l.SkuID, quantity: l.Quantity})
	}
	return out, nil
}

// buildOrder locks the SKUs and snapshots titles and prices into order items.
// Lines without a unit price take the current SKU price.
func (s *service) buildOrder(ctx context.Context, tx *gorm.DB, lines []line, currentPrice bool) (*models.Order, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.skuID)
	}
	locked, err := s.ledger.LockMany(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Status:            enums.OrderStatusPending,
		PaymentStatus:     enums.PaymentStatusPending,
		FulfillmentStatus: enums.FulfillmentStatusUnfulfilled,
		Currency:          s.currency,
	}
	for _, l := range lines {
		sku := locked[l.skuID]
		if sku == nil || !sku.Sellable() {
			return nil, pkgerrors.New(pkgerrors.CodeSkuInactive, "item is unavailable")
		}
		unit := l.unitCents
		if currentPrice {
			unit = sku.PriceCents()
		}
		skuID := l.skuID
		total := money.LineTotal(unit, l.quantity)
		order.SubtotalCents += total
		order.Items = append(order.Items, models.OrderItem{
			SkuID:          &skuID,
			ProductTitle:   sku.ProductTitle(),
			VariantTitle:   sku.VariantTitle(),
			UnitPriceCents: unit,
			Quantity:       l.quantity,
			LineTotalCents: total,
		})
	}
	return order, nil
}

// create inserts the order under a fresh order number, then records the CREATED
// audit row and event.
func (s *service) create(ctx context.Context, tx *gorm.DB, order *models.Order, actor orders.Actor, note string, notify bool) error {
	repo := s.orders.WithTx(tx)
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber(s.now())
		err = createInSavepoint(ctx, tx, repo, order, attempt)
		if err == nil {
			break
		}
		if !db.IsUniqueViolation(err, "idx_orders_order_number") {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate an order number")
	}

	after := audit.Snapshot{
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		FulfillmentStatus: order.FulfillmentStatus,
	}
	if _, err := s.audit.Append(ctx, tx, audit.Entry{
		OrderID: order.ID,
		Action:  enums.AuditActionCreated,
		After:   after,
		Note:    note,
		Metadata: map[string]any{
			"stock_reservation": order.StockReservation,
			"items":             len(order.Items),
		},
		Author: audit.Author{ID: actor.UserID, Label: actor.Label},
		Source: actor.Source,
	}); err != nil {
		return err
	}

	ref := &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role), Label: actor.Label, Source: actor.Source}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         ref,
		Data: payloads.OrderLifecycleEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Action:      enums.AuditActionCreated,
			Source:      actor.Source,
			Current: payloads.StatusSnapshot{
				Status:            after.Status,
				PaymentStatus:     after.PaymentStatus,
				FulfillmentStatus: after.FulfillmentStatus,
			},
			Email:      order.Email,
			Note:       strings.TrimSpace(note),
			TotalCents: order.TotalCents,
			Currency:   order.Currency,
			Notify:     notify,
			CacheTags:  orderTags(order),
		},
	})
}

// createInSavepoint retries inside a savepoint so a unique violation on postgres
// does not abort the surrounding transaction.
func createInSavepoint(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, attempt int) error {
	name := fmt.Sprintf("order_number_%d", attempt)
	if err := tx.SavePoint(name).Error; err != nil {
		return err
	}
	if err := repo.Create(ctx, order); err != nil {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return rbErr
		}
		return err
	}
	return nil
}

func validateBuyer(email string, shipping types.Address) (string, types.Address, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	address := shipping.Normalize()
	if err := address.Validate(); err != nil {
		return "", types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return email, address, nil
}

func applyAddress(order *models.Order, addr types.Address) {
	order.ShippingName = addr.Name
	order.ShippingLine1 = addr.Line1
	order.ShippingLine2 = addr.Line2
	order.ShippingCity = addr.City
	order.ShippingRegion = addr.Region
	order.ShippingPostalCode = addr.PostalCode
	order.ShippingCountry = addr.Country
}

func applyCharges(order *models.Order, shippingCents, taxCents int64) {
	order.ShippingCents = shippingCents
	order.TaxCents = taxCents
	order.TotalCents = order.SubtotalCents - order.DiscountCents + shippingCents + taxCents
}

func orderTags(order *models.Order) []string {
	tags := []string{cache.OrderTag(order.ID), cache.AdminOrdersTag}
	if order.UserID != nil {
		tags = append(tags, cache.UserOrdersTag(*order.UserID))
	}
	return tags
}
