package orders

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
	"github.com/angelmondragon/ordercore-backend/internal/compensation"
	"github.com/angelmondragon/ordercore-backend/internal/notifications"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordercore-backend/pkg/types"
)

// WarningEmailNotSent is reported when a requested email could not be dispatched.
const WarningEmailNotSent = "email may not have been sent"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockApplier interface {
	ApplyDeltas(ctx context.Context, tx *gorm.DB, deltas map[uuid.UUID]int) error
}

type auditAppender interface {
	Append(ctx context.Context, tx *gorm.DB, entry audit.Entry) (*models.OrderAudit, error)
}

type dispatcher interface {
	Send(ctx context.Context, template notifications.Template, recipient string, payload notifications.Payload) error
}

type transitionRecorder interface {
	ObserveTransition(action, result string)
}

// Service runs every order lifecycle change through the transition table.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, req Request) (*Result, error)

	MarkPaid(ctx context.Context, orderID uuid.UUID, actor Actor, note string) (*Result, error)
	StartProcessing(ctx context.Context, orderID uuid.UUID, actor Actor) (*Result, error)
	Ship(ctx context.Context, orderID uuid.UUID, actor Actor, trackingNumber, carrier string) (*Result, error)
	RevertToProcessing(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID, actor Actor) (*Result, error)
	MarkReturned(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error)
	ExpireUnpaid(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error)
	BulkCancel(ctx context.Context, orderIDs []uuid.UUID, actor Actor, reason string) (*BulkResult, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, actor Actor, trackingNumber, carrier string) (*Result, error)
	UpdateShippingAddress(ctx context.Context, orderID uuid.UUID, actor Actor, address types.Address) (*Result, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error)
	SoftDelete(ctx context.Context, orderID uuid.UUID, actor Actor) (*Result, error)

	ListStaleUnpaid(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error)
}

// Request describes one transition. Only the fields the action reads are used.
type Request struct {
	OrderID        uuid.UUID
	Action         enums.AuditAction
	Actor          Actor
	Reason         string
	TrackingNumber string
	Carrier        string
	Address        *types.Address
	SendEmail      bool
	// RequireUnpaid makes a cancel fail unless the locked order is still
	// pending and awaiting payment.
	RequireUnpaid bool
	Metadata      map[string]any
}

// Result is the outcome of a committed transition.
type Result struct {
	Order   *models.Order
	Audit   *models.OrderAudit
	Status  pkgerrors.ResultStatus
	Warning string
}

// BulkSkip explains why one order of a bulk request was left untouched.
type BulkSkip struct {
	OrderID uuid.UUID      `json:"order_id"`
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
}

// BulkResult is the outcome of a bulk cancellation.
type BulkResult struct {
	Cancelled   []uuid.UUID            `json:"cancelled"`
	Skipped     []BulkSkip             `json:"skipped"`
	StockDeltas map[uuid.UUID]int      `json:"stock_deltas"`
	Status      pkgerrors.ResultStatus `json:"-"`
	Warning     string                 `json:"-"`
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repository Repository
	TxRunner   txRunner
	Ledger     stockApplier
	Audit      auditAppender
	Outbox     outbox.Emitter
	Cache      cache.Invalidator
	Dispatcher dispatcher
	Metrics    transitionRecorder
	Config     config.OrdersConfig
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	tx         txRunner
	ledger     stockApplier
	audit      auditAppender
	outbox     outbox.Emitter
	cache      cache.Invalidator
	dispatcher dispatcher
	metrics    transitionRecorder
	cfg        config.OrdersConfig
	logg       *logger.Logger
	now        func() time.Time
}

type noopRecorder struct{}

func (noopRecorder) ObserveTransition(string, string) {}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if params.Cache == nil {
		params.Cache = cache.Noop{}
	}
	if params.Metrics == nil {
		params.Metrics = noopRecorder{}
	}
	if params.Config.BulkCancelMax <= 0 {
		params.Config.BulkCancelMax = 100
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		repo:       params.Repository,
		tx:         params.TxRunner,
		ledger:     params.Ledger,
		audit:      params.Audit,
		outbox:     params.Outbox,
		cache:      params.Cache,
		dispatcher: params.Dispatcher,
		metrics:    params.Metrics,
		cfg:        params.Config,
		logg:       params.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID, actor Actor, note string) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionPaid, Actor: actor, Reason: note})
}

func (s *service) StartProcessing(ctx context.Context, orderID uuid.UUID, actor Actor) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionProcessing, Actor: actor})
}

func (s *service) Ship(ctx context.Context, orderID uuid.UUID, actor Actor, trackingNumber, carrier string) (*Result, error) {
	return s.Transition(ctx, Request{
		OrderID:        orderID,
		Action:         enums.AuditActionShipped,
		Actor:          actor,
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
	})
}

func (s *service) RevertToProcessing(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionStatusReverted, Actor: actor, Reason: reason})
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID, actor Actor) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionDelivered, Actor: actor})
}

func (s *service) MarkReturned(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionReturned, Actor: actor, Reason: reason})
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionCancelled, Actor: actor, Reason: reason})
}

// ExpireUnpaid cancels an order only if, under its row lock, it is still pending
// and unpaid. A payment that commits first turns this into INVALID_TRANSITION.
func (s *service) ExpireUnpaid(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error) {
	return s.Transition(ctx, Request{
		OrderID:       orderID,
		Action:        enums.AuditActionCancelled,
		Actor:         actor,
		Reason:        reason,
		RequireUnpaid: true,
		Metadata:      map[string]any{"expired_unpaid": true},
	})
}

func (s *service) UpdateTracking(ctx context.Context, orderID uuid.UUID, actor Actor, trackingNumber, carrier string) (*Result, error) {
	return s.Transition(ctx, Request{
		OrderID:        orderID,
		Action:         enums.AuditActionTrackingUpdated,
		Actor:          actor,
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
	})
}

func (s *service) UpdateShippingAddress(ctx context.Context, orderID uuid.UUID, actor Actor, address types.Address) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionAddressUpdated, Actor: actor, Address: &address})
}

func (s *service) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionPaymentFailed, Actor: actor, Reason: reason})
}

func (s *service) SoftDelete(ctx context.Context, orderID uuid.UUID, actor Actor) (*Result, error) {
	return s.Transition(ctx, Request{OrderID: orderID, Action: enums.AuditActionDeleted, Actor: actor})
}

func (s *service) ListStaleUnpaid(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error) {
	if olderThan <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "age threshold must be positive")
	}
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.ListStalePendingIDs(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale orders")
	}
	return ids, nil
}

// Transition locks the order, re-checks the guard, applies the mutation and its
// compensation, appends one audit row and queues the lifecycle event, all in one
// transaction. Cache invalidation and the optional email run after commit.
func (s *service) Transition(ctx context.Context, req Request) (*Result, error) {
	res, err := s.transition(ctx, req)
	if err != nil {
		s.metrics.ObserveTransition(string(req.Action), string(pkgerrors.ResultFor(err)))
		s.logFailure(ctx, req, err)
		return nil, err
	}
	s.metrics.ObserveTransition(string(req.Action), string(res.Status))
	return res, nil
}

func (s *service) transition(ctx context.Context, req Request) (*Result, error) {
	t, ok := lookupTransition(req.Action)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported order action")
	}
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if err := req.Actor.validate(); err != nil {
		return nil, err
	}

	var done *persisted
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		done = nil
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
		}

		st, err := s.stage(t, order, req)
		if err != nil {
			return err
		}
		if st.plan.HasStockChanges() {
			if err := s.ledger.ApplyDeltas(ctx, tx, st.plan.StockDeltas); err != nil {
				return err
			}
		}
		done, err = s.persist(ctx, tx, repo, st, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Order: done.order, Audit: done.audit, Status: pkgerrors.ResultSuccess}
	cache.BestEffort(ctx, s.cache, s.logg, done.tags)
	if req.SendEmail {
		if err := s.sendEmail(ctx, req.Action, done.order, req.Reason); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id": done.order.ID.String(),
				"action":   req.Action,
				"error":    err.Error(),
			}), "order email dispatch failed")
			result.Status = pkgerrors.ResultWarning
			result.Warning = WarningEmailNotSent
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": done.order.ID.String(),
		"action":   req.Action,
		"source":   req.Actor.Source,
		"status":   done.order.Status,
	}), "order transition committed")
	return result, nil
}

// BulkCancel cancels many orders in one transaction. Each order gets the same
// compensation as a single cancel and its own audit row; stock deltas are
// aggregated per SKU and applied once. Orders that are missing or whose guard
// fails are reported as skipped.
func (s *service) BulkCancel(ctx context.Context, orderIDs []uuid.UUID, actor Actor, reason string) (*BulkResult, error) {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id is required")
	}
	if len(ids) > s.cfg.BulkCancelMax {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d orders can be cancelled at once", s.cfg.BulkCancelMax))
	}
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if actor.Source != enums.AuditSourceAdmin && actor.Source != enums.AuditSourceSystem {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "bulk cancellation requires an admin")
	}
	t, _ := lookupTransition(enums.AuditActionCancelled)

	var (
		result *BulkResult
		done   []*persisted
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result = &BulkResult{Cancelled: []uuid.UUID{}, Skipped: []BulkSkip{}}
		done = nil
		repo := s.repo.WithTx(tx)

		locked, err := repo.LockMany(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock orders")
		}
		found := make(map[uuid.UUID]struct{}, len(locked))
		staged := make([]*stagedTransition, 0, len(locked))
		plans := make([]compensation.Plan, 0, len(locked))
		for i := range locked {
			order := &locked[i]
			found[order.ID] = struct{}{}
			req := Request{OrderID: order.ID, Action: enums.AuditActionCancelled, Actor: actor, Reason: reason}
			st, err := s.stage(t, order, req)
			if err != nil {
				typed := pkgerrors.As(err)
				if typed == nil || typed.Code() == pkgerrors.CodeInternal {
					return err
				}
				result.Skipped = append(result.Skipped, BulkSkip{OrderID: order.ID, Code: typed.Code(), Message: typed.Message()})
				continue
			}
			staged = append(staged, st)
			plans = append(plans, st.plan)
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				result.Skipped = append(result.Skipped, BulkSkip{OrderID: id, Code: pkgerrors.CodeNotFound, Message: "order not found"})
			}
		}

		result.StockDeltas = compensation.AggregateDeltas(plans)
		if err := s.ledger.ApplyDeltas(ctx, tx, result.StockDeltas); err != nil {
			return err
		}
		for _, st := range staged {
			req := Request{OrderID: st.order.ID, Action: enums.AuditActionCancelled, Actor: actor, Reason: reason}
			p, err := s.persist(ctx, tx, repo, st, req)
			if err != nil {
				return err
			}
			done = append(done, p)
			result.Cancelled = append(result.Cancelled, st.order.ID)
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveTransition(string(enums.AuditActionCancelled), string(pkgerrors.ResultFor(err)))
		s.logFailure(ctx, Request{Action: enums.AuditActionCancelled, Actor: actor}, err)
		return nil, err
	}

	var tags []string
	for _, p := range done {
		tags = append(tags, p.tags...)
		s.metrics.ObserveTransition(string(enums.AuditActionCancelled), string(pkgerrors.ResultSuccess))
	}
	for _, skip := range result.Skipped {
		s.metrics.ObserveTransition(string(enums.AuditActionCancelled), string(pkgerrors.MetadataFor(skip.Code).Result))
	}
	cache.BestEffort(ctx, s.cache, s.logg, tags)

	result.Status = pkgerrors.ResultSuccess
	if len(result.Skipped) > 0 {
		result.Status = pkgerrors.ResultWarning
		result.Warning = fmt.Sprintf("%d of %d orders were not cancelled", len(result.Skipped), len(ids))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cancelled": len(result.Cancelled),
		"skipped":   len(result.Skipped),
		"source":    actor.Source,
	}), "bulk cancel committed")
	return result, nil
}

// stagedTransition is a locked order with its transition applied in memory.
type stagedTransition struct {
	order  *models.Order
	before audit.Snapshot
	plan   compensation.Plan
}

type persisted struct {
	order *models.Order
	audit *models.OrderAudit
	tags  []string
}

// stage authorizes and guards the transition against the locked row, then
// applies the mutation and the compensation's status changes in memory.
func (s *service) stage(t transition, order *models.Order, req Request) (*stagedTransition, error) {
	if err := authorize(req.Actor, t.action, order); err != nil {
		return nil, err
	}
	if err := t.guard(order, req); err != nil {
		return nil, err
	}

	st := &stagedTransition{order: order, before: snapshotOf(order)}
	st.plan = compensation.Decide(compensation.Input{
		Action:            t.action,
		PrevStatus:        order.Status,
		PrevPaymentStatus: order.PaymentStatus,
		Reservation:       order.StockReservation,
		PaymentSessionRef: order.PaymentSessionRef,
		Items:             compensationItems(order.Items),
	})

	now := s.now()
	t.apply(order, req, now)
	order.UpdatedAt = now
	if st.plan.PaymentStatus != nil {
		order.PaymentStatus = *st.plan.PaymentStatus
	}
	if st.plan.Reservation != nil {
		order.StockReservation = *st.plan.Reservation
	}
	return st, nil
}

// persist writes the staged order, its audit row and its lifecycle event.
func (s *service) persist(ctx context.Context, tx *gorm.DB, repo Repository, st *stagedTransition, req Request) (*persisted, error) {
	order := st.order
	if err := repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save order")
	}

	after := snapshotOf(order)
	row, err := s.audit.Append(ctx, tx, audit.Entry{
		OrderID:  order.ID,
		Action:   req.Action,
		Before:   st.before,
		After:    after,
		Note:     req.Reason,
		Metadata: auditMetadata(req, st.plan, order),
		Author:   req.Actor.author(),
		Source:   req.Actor.Source,
	})
	if err != nil {
		return nil, err
	}

	tags := orderTags(order, st.plan)
	eventType, _ := enums.OrderEventForAction(req.Action)
	_, hasTemplate := notifications.TemplateFor(req.Action)
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         req.Actor.ref(),
		Data: payloads.OrderLifecycleEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			Action:         req.Action,
			Source:         req.Actor.Source,
			Previous:       payloadSnapshot(st.before),
			Current:        payloadSnapshot(after),
			Email:          order.Email,
			Note:           strings.TrimSpace(req.Reason),
			TrackingNumber: derefString(order.TrackingNumber),
			TotalCents:     order.TotalCents,
			Currency:       order.Currency,
			Notify:         hasTemplate && !req.SendEmail && autoNotify(req.Action, req.Actor.Source),
			CacheTags:      tags,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order event")
	}
	return &persisted{order: order, audit: row, tags: tags}, nil
}

func (s *service) sendEmail(ctx context.Context, action enums.AuditAction, order *models.Order, note string) error {
	template, ok := notifications.TemplateFor(action)
	if !ok {
		return nil
	}
	if strings.TrimSpace(order.Email) == "" {
		return errors.New("order has no email")
	}
	payload := notifications.OrderPayload(order.ID, order.OrderNumber, action, order.Status, order.PaymentStatus,
		order.TotalCents, order.Currency, derefString(order.TrackingNumber), strings.TrimSpace(note))
	return s.dispatcher.Send(ctx, template, order.Email, payload)
}

func (s *service) logFailure(ctx context.Context, req Request, err error) {
	fields := map[string]any{
		"action": req.Action,
		"source": req.Actor.Source,
	}
	if req.OrderID != uuid.Nil {
		fields["order_id"] = req.OrderID.String()
	}
	logCtx := s.logg.WithFields(ctx, fields)
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		s.logg.Error(logCtx, "order transition failed", err)
	default:
		s.logg.Info(s.logg.WithField(logCtx, "reason", err.Error()), "order transition rejected")
	}
}

func snapshotOf(order *models.Order) audit.Snapshot {
	return audit.Snapshot{
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		FulfillmentStatus: order.FulfillmentStatus,
	}
}

func payloadSnapshot(snap audit.Snapshot) payloads.StatusSnapshot {
	return payloads.StatusSnapshot{
		Status:            snap.Status,
		PaymentStatus:     snap.PaymentStatus,
		FulfillmentStatus: snap.FulfillmentStatus,
	}
}

func compensationItems(items []models.OrderItem) []compensation.Item {
	out := make([]compensation.Item, 0, len(items))
	for _, item := range items {
		out = append(out, compensation.Item{SkuID: item.SkuID, Quantity: item.Quantity})
	}
	return out
}

func auditMetadata(req Request, plan compensation.Plan, order *models.Order) map[string]any {
	meta := map[string]any{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if plan.RestoresStock {
		meta["stock_restored"] = true
	}
	if plan.DecrementsStock {
		meta["stock_decremented"] = true
	}
	if len(plan.StockDeltas) > 0 {
		deltas := make(map[string]int, len(plan.StockDeltas))
		for id, delta := range plan.StockDeltas {
			deltas[id.String()] = delta
		}
		meta["stock_deltas"] = deltas
	}
	if plan.PaymentStatus != nil && *plan.PaymentStatus == enums.PaymentStatusRefunded {
		meta["payment_refunded"] = true
	}
	switch req.Action {
	case enums.AuditActionShipped, enums.AuditActionTrackingUpdated:
		meta["tracking_number"] = derefString(order.TrackingNumber)
		if order.Carrier != nil {
			meta["carrier"] = *order.Carrier
		}
	}
	return meta
}

func orderTags(order *models.Order, plan compensation.Plan) []string {
	tags := []string{cache.OrderTag(order.ID), cache.AdminOrdersTag}
	if order.UserID != nil {
		tags = append(tags, cache.UserOrdersTag(*order.UserID))
	}
	for id := range plan.StockDeltas {
		tags = append(tags, cache.SkuTag(id))
	}
	return cache.Normalize(tags)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
