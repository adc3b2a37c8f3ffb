package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/internal/cache"
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
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Lock(ctx context.Context, tx *gorm.DB, skuID uuid.UUID) (*stock.LockedSku, error)
	LockMany(ctx context.Context, tx *gorm.DB, skuIDs []uuid.UUID) (map[uuid.UUID]*stock.LockedSku, error)
	Reserve(ctx context.Context, tx *gorm.DB, locked *stock.LockedSku, qty int) error
	Release(ctx context.Context, tx *gorm.DB, locked *stock.LockedSku, qty int) error
}

// Service exposes cart mutations. Every mutation holds stock for the cart's lines.
type Service interface {
	GetCart(ctx context.Context, owner Owner) (*View, error)
	AddItem(ctx context.Context, owner Owner, skuID uuid.UUID, qty int) (*View, error)
	UpdateItem(ctx context.Context, owner Owner, skuID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, owner Owner, skuID uuid.UUID) (*View, error)
	ExpireGuestCarts(ctx context.Context, limit int) (*ExpiryReport, error)
}

// View is the cart as returned to callers.
type View struct {
	ID            uuid.UUID  `json:"id"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Items         []LineView `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
}

type LineView struct {
	SkuID           uuid.UUID `json:"sku_id"`
	Quantity        int       `json:"quantity"`
	PriceAtAddCents int64     `json:"price_at_add_cents"`
	LineTotalCents  int64     `json:"line_total_cents"`
}

// ExpiryReport summarizes one guest cart expiry sweep.
type ExpiryReport struct {
	CartsExpired  int
	UnitsReleased int
}

type service struct {
	repo    CartRepository
	tx      txRunner
	ledger  stockLedger
	emitter outbox.Emitter
	cache   cache.Invalidator
	cfg     config.CartConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, ledger stockLedger, emitter outbox.Emitter, invalidator cache.Invalidator, cfg config.CartConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if invalidator == nil {
		invalidator = cache.Noop{}
	}
	if cfg.MaxItems <= 0 || cfg.MaxQuantityPerOrder <= 0 || cfg.GuestTTL <= 0 {
		return nil, fmt.Errorf("cart limits must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    repo,
		tx:      tx,
		ledger:  ledger,
		emitter: emitter,
		cache:   invalidator,
		cfg:     cfg,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// mutation collects what a committed cart change must invalidate.
type mutation struct {
	tags []string
	view *View
}

func (m *mutation) touch(tags ...string) {
	m.tags = append(m.tags, tags...)
}

// GetCart returns the owner's live cart. Owners without one, or whose guest cart
// has expired, get an empty view; reads never reclaim.
func (s *service) GetCart(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	record, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &View{Items: []LineView{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if record.IsExpired(s.now()) {
		return &View{Items: []LineView{}}, nil
	}
	return buildView(record, record.Items), nil
}

// AddItem creates a line or grows an existing one, reserving qty units.
func (s *service) AddItem(ctx context.Context, owner Owner, skuID uuid.UUID, qty int) (*View, error) {
	if err := s.validateInput(owner, skuID); err != nil {
		return nil, err
	}
	if qty < 1 || qty > s.cfg.MaxQuantityPerOrder {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", s.cfg.MaxQuantityPerOrder))
	}

	var out mutation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		out = mutation{}
		repo := s.repo.WithTx(tx)

		record, err := s.resolveCart(ctx, tx, repo, owner, true, &out)
		if err != nil {
			return err
		}
		locked, err := s.ledger.Lock(ctx, tx, skuID)
		if err != nil {
			return err
		}
		existing, err := findItem(ctx, repo, record.ID, skuID)
		if err != nil {
			return err
		}

		if existing == nil {
			count, err := repo.CountItems(ctx, record.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count cart items")
			}
			if count >= int64(s.cfg.MaxItems) {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart cannot hold more than %d items", s.cfg.MaxItems))
			}
		} else if existing.Quantity+qty > s.cfg.MaxQuantityPerOrder {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", s.cfg.MaxQuantityPerOrder))
		}

		if err := s.ledger.Reserve(ctx, tx, locked, qty); err != nil {
			return err
		}

		if existing == nil {
			item := &models.CartItem{
				CartID:          record.ID,
				SkuID:           skuID,
				Quantity:        qty,
				PriceAtAddCents: locked.PriceCents(),
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				if db.IsUniqueViolation(err, "cart_items_cart_sku_key") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart line changed concurrently")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart item")
			}
		} else if err := repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+qty, s.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}

		return s.finish(ctx, tx, repo, owner, record, []uuid.UUID{skuID}, &out)
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, owner, "cart item added", out.tags)
	return out.view, nil
}

// UpdateItem sets a line's quantity. Increases reserve the delta, decreases
// release it without a stock check.
func (s *service) UpdateItem(ctx context.Context, owner Owner, skuID uuid.UUID, qty int) (*View, error) {
	if err := s.validateInput(owner, skuID); err != nil {
		return nil, err
	}
	if qty < 1 || qty > s.cfg.MaxQuantityPerOrder {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", s.cfg.MaxQuantityPerOrder))
	}

	var out mutation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		out = mutation{}
		repo := s.repo.WithTx(tx)

		record, err := s.resolveCart(ctx, tx, repo, owner, false, &out)
		if err != nil {
			return err
		}
		locked, err := s.ledger.Lock(ctx, tx, skuID)
		if err != nil {
			return err
		}
		existing, err := findItem(ctx, repo, record.ID, skuID)
		if err != nil {
			return err
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item is not in the cart")
		}

		switch delta := qty - existing.Quantity; {
		case delta > 0:
			err = s.ledger.Reserve(ctx, tx, locked, delta)
		case delta < 0:
			err = s.ledger.Release(ctx, tx, locked, -delta)
		}
		if err != nil {
			return err
		}
		if qty != existing.Quantity {
			if err := repo.UpdateItemQuantity(ctx, existing.ID, qty, s.now()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
			}
		}

		return s.finish(ctx, tx, repo, owner, record, []uuid.UUID{skuID}, &out)
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, owner, "cart item updated", out.tags)
	return out.view, nil
}

// RemoveItem deletes a line and releases everything it held.
func (s *service) RemoveItem(ctx context.Context, owner Owner, skuID uuid.UUID) (*View, error) {
	if err := s.validateInput(owner, skuID); err != nil {
		return nil, err
	}

	var out mutation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		out = mutation{}
		repo := s.repo.WithTx(tx)

		record, err := s.resolveCart(ctx, tx, repo, owner, false, &out)
		if err != nil {
			return err
		}
		locked, err := s.ledger.Lock(ctx, tx, skuID)
		if err != nil {
			return err
		}
		existing, err := findItem(ctx, repo, record.ID, skuID)
		if err != nil {
			return err
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item is not in the cart")
		}
		if err := s.ledger.Release(ctx, tx, locked, existing.Quantity); err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, existing.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}

		return s.finish(ctx, tx, repo, owner, record, []uuid.UUID{skuID}, &out)
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, owner, "cart item removed", out.tags)
	return out.view, nil
}

// ExpireGuestCarts reclaims up to limit expired guest carts, one transaction each.
func (s *service) ExpireGuestCarts(ctx context.Context, limit int) (*ExpiryReport, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.ListExpiredGuestIDs(ctx, s.now(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired carts")
	}

	report := &ExpiryReport{}
	for _, id := range ids {
		var (
			out      mutation
			released int
			expired  bool
		)
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			out = mutation{}
			released, expired = 0, false
			repo := s.repo.WithTx(tx)
			record, err := repo.LockByID(ctx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock cart")
			}
			// touched by its owner since the listing
			if !record.IsExpired(s.now()) {
				return nil
			}
			released, err = s.reclaim(ctx, tx, repo, record, &out)
			expired = err == nil
			return err
		})
		if err != nil {
			return report, err
		}
		if expired {
			report.CartsExpired++
			report.UnitsReleased += released
			cache.BestEffort(ctx, s.cache, s.logg, out.tags)
		}
	}
	return report, nil
}

// resolveCart locks the owner's cart. An expired guest cart is reclaimed first so
// the owner never sees stock or lines from it.
func (s *service) resolveCart(ctx context.Context, tx *gorm.DB, repo CartRepository, owner Owner, create bool, out *mutation) (*models.Cart, error) {
	record, err := repo.LockByOwner(ctx, owner)
	switch {
	case err == nil:
		if !record.IsExpired(s.now()) {
			return record, nil
		}
		if _, err := s.reclaim(ctx, tx, repo, record, out); err != nil {
			return nil, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock cart")
	}

	if !create {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}

	record = &models.Cart{}
	if owner.IsGuest() {
		session := owner.SessionID
		expires := s.now().Add(s.cfg.GuestTTL)
		record.SessionID = &session
		record.ExpiresAt = &expires
	} else {
		userID := *owner.UserID
		record.UserID = &userID
	}
	if err := repo.Create(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart was created concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return record, nil
}

// reclaim releases the stock held by a locked cart, then deletes it.
func (s *service) reclaim(ctx context.Context, tx *gorm.DB, repo CartRepository, record *models.Cart, out *mutation) (int, error) {
	items, err := repo.ListItems(ctx, record.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
	}
	skuIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		skuIDs = append(skuIDs, item.SkuID)
	}
	locked, err := s.ledger.LockMany(ctx, tx, skuIDs)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, item := range items {
		if err := s.ledger.Release(ctx, tx, locked[item.SkuID], item.Quantity); err != nil {
			return 0, err
		}
		released += item.Quantity
	}
	if err := repo.DeleteItems(ctx, record.ID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart items")
	}
	if err := repo.Delete(ctx, record.ID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart")
	}

	tags := cartTags(record.ID, skuIDs)
	out.touch(tags...)
	event := outbox.DomainEvent{
		EventType:     enums.EventCartExpired,
		AggregateType: enums.AggregateCart,
		AggregateID:   record.ID,
		Actor:         &outbox.ActorRef{Source: enums.AuditSourceSystem, Label: "cart-expiry"},
		Data: payloads.CartExpiredEvent{
			CartID:        record.ID,
			SkuIDs:        skuIDs,
			UnitsReleased: released,
			CacheTags:     tags,
		},
	}
	if err := s.emitter.Emit(ctx, tx, event); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit cart expired event")
	}
	return released, nil
}

// finish slides the guest expiry, queues the cart event and builds the view.
func (s *service) finish(ctx context.Context, tx *gorm.DB, repo CartRepository, owner Owner, record *models.Cart, skuIDs []uuid.UUID, out *mutation) error {
	now := s.now()
	if owner.IsGuest() {
		expires := now.Add(s.cfg.GuestTTL)
		record.ExpiresAt = &expires
	}
	if err := repo.Touch(ctx, record.ID, record.ExpiresAt, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch cart")
	}

	tags := cartTags(record.ID, skuIDs)
	out.touch(tags...)
	event := outbox.DomainEvent{
		EventType:     enums.EventCartUpdated,
		AggregateType: enums.AggregateCart,
		AggregateID:   record.ID,
		Actor:         actorFor(owner),
		Data: payloads.CartUpdatedEvent{
			CartID:    record.ID,
			SkuIDs:    skuIDs,
			CacheTags: tags,
		},
	}
	if err := s.emitter.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit cart updated event")
	}

	items, err := repo.ListItems(ctx, record.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
	}
	out.view = buildView(record, items)
	return nil
}

func (s *service) afterCommit(ctx context.Context, owner Owner, msg string, tags []string) {
	cache.BestEffort(ctx, s.cache, s.logg, tags)
	s.logg.Debug(s.logg.WithFields(ctx, owner.logFields()), msg)
}

func (s *service) validateInput(owner Owner, skuID uuid.UUID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if skuID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku id is required")
	}
	return nil
}

func findItem(ctx context.Context, repo CartRepository, cartID, skuID uuid.UUID) (*models.CartItem, error) {
	item, err := repo.FindItem(ctx, cartID, skuID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	return item, nil
}

func cartTags(cartID uuid.UUID, skuIDs []uuid.UUID) []string {
	tags := []string{cache.CartTag(cartID)}
	for _, id := range skuIDs {
		tags = append(tags, cache.SkuTag(id))
	}
	return tags
}

func actorFor(owner Owner) *outbox.ActorRef {
	actor := &outbox.ActorRef{Source: enums.AuditSourceCustomer, Role: string(enums.ActorRoleCustomer)}
	if !owner.IsGuest() {
		id := *owner.UserID
		actor.UserID = &id
	} else {
		actor.Label = "guest"
	}
	return actor
}

func buildView(record *models.Cart, items []models.CartItem) *View {
	view := &View{
		ID:        record.ID,
		ExpiresAt: record.ExpiresAt,
		Items:     make([]LineView, 0, len(items)),
	}
	for _, item := range items {
		line := LineView{
			SkuID:           item.SkuID,
			Quantity:        item.Quantity,
			PriceAtAddCents: item.PriceAtAddCents,
			LineTotalCents:  money.LineTotal(item.PriceAtAddCents, item.Quantity),
		}
		view.SubtotalCents += line.LineTotalCents
		view.Items = append(view.Items, line)
	}
	return view
}
