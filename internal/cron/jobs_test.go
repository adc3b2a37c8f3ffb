package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordercore-backend/internal/audit"
	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/internal/notifications"
	"github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/internal/stock"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox"
)

type stubCarts struct {
	batches []int
	calls   int
}

func (s *stubCarts) ExpireGuestCarts(_ context.Context, limit int) (*cart.ExpiryReport, error) {
	if s.calls >= len(s.batches) {
		return &cart.ExpiryReport{}, nil
	}
	n := s.batches[s.calls]
	s.calls++
	return &cart.ExpiryReport{CartsExpired: n, UnitsReleased: n * 2}, nil
}

func TestCartExpiryJobDrainsFullBatches(t *testing.T) {
	carts := &stubCarts{batches: []int{2, 2, 1}}
	job, err := NewCartExpiryJob(CartExpiryJobParams{Logger: logger.Nop(), Carts: carts, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, "guest-cart-expiry", job.Name())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, carts.calls)
}

func TestCartExpiryJobStopsAtMaxBatches(t *testing.T) {
	carts := &stubCarts{batches: []int{2, 2, 2, 2}}
	job, err := NewCartExpiryJob(CartExpiryJobParams{Logger: logger.Nop(), Carts: carts, BatchSize: 2, MaxBatches: 2})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, carts.calls)
}

type stubStaleOrders struct {
	ids       []uuid.UUID
	errs      map[uuid.UUID]error
	cancelled []uuid.UUID
	actor     orders.Actor
}

func (s *stubStaleOrders) ListStaleUnpaid(context.Context, time.Duration, int) ([]uuid.UUID, error) {
	return s.ids, nil
}

func (s *stubStaleOrders) ExpireUnpaid(_ context.Context, id uuid.UUID, actor orders.Actor, _ string) (*orders.Result, error) {
	s.actor = actor
	if err := s.errs[id]; err != nil {
		return nil, err
	}
	s.cancelled = append(s.cancelled, id)
	return &orders.Result{Status: pkgerrors.ResultSuccess}, nil
}

func TestUnpaidOrderJobSkipsRacedOrdersAndCollectsFailures(t *testing.T) {
	ok, gone, broken := uuid.New(), uuid.New(), uuid.New()
	stub := &stubStaleOrders{
		ids: []uuid.UUID{ok, gone, broken},
		errs: map[uuid.UUID]error{
			gone:   pkgerrors.New(pkgerrors.CodeNotFound, "order not found"),
			broken: errors.New("db down"),
		},
	}
	job, err := NewUnpaidOrderJob(UnpaidOrderJobParams{Logger: logger.Nop(), Orders: stub})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), broken.String())
	assert.Equal(t, []uuid.UUID{ok}, stub.cancelled)
	assert.Equal(t, enums.AuditSourceSystem, stub.actor.Source)
}

// paidAfterListing settles one order between the stale listing and the expiry,
// the way a payment webhook can.
type paidAfterListing struct {
	orders.Service
	payOrder uuid.UUID
}

func (p *paidAfterListing) ListStaleUnpaid(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error) {
	ids, err := p.Service.ListStaleUnpaid(ctx, olderThan, limit)
	if err != nil {
		return nil, err
	}
	if _, err := p.Service.MarkPaid(ctx, p.payOrder, orders.WebhookActor("payments"), ""); err != nil {
		return nil, err
	}
	return ids, nil
}

func TestUnpaidOrderJobLeavesOrdersPaidAfterListing(t *testing.T) {
	conn, client := dbtest.Open(t)
	cfg := config.OrdersConfig{AuditDefaultLimit: 20, AuditMaxLimit: 100, BulkCancelMax: 10}
	auditSvc, err := audit.NewService(conn, cfg)
	require.NoError(t, err)
	svc, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn),
		TxRunner:   client,
		Ledger:     stock.NewLedger(nil, nil),
		Audit:      auditSvc,
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		Dispatcher: notifications.NewLogDispatcher(logger.Nop()),
		Config:     cfg,
	})
	require.NoError(t, err)

	sku := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 5})
	settled := dbtest.SeedOrder(t, conn, dbtest.OrderSeed{
		Reservation:       enums.StockReservationHeld,
		PaymentSessionRef: strPtr("cs_live_1"),
		Lines:             []dbtest.OrderLine{{Sku: sku, Quantity: 1}},
	})
	abandoned := dbtest.SeedOrder(t, conn, dbtest.OrderSeed{
		Reservation: enums.StockReservationHeld,
		Lines:       []dbtest.OrderLine{{Sku: sku, Quantity: 2}},
	})
	old := time.Now().UTC().Add(-96 * time.Hour)
	require.NoError(t, conn.Model(&models.Order{}).
		Where("id IN ?", []uuid.UUID{settled.ID, abandoned.ID}).
		Update("created_at", old).Error)

	job, err := NewUnpaidOrderJob(UnpaidOrderJobParams{
		Logger: logger.Nop(),
		Orders: &paidAfterListing{Service: svc, payOrder: settled.ID},
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	stored := dbtest.LoadOrder(t, conn, settled.ID)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)

	expired := dbtest.LoadOrder(t, conn, abandoned.ID)
	assert.Equal(t, enums.OrderStatusCancelled, expired.Status)
	assert.Equal(t, enums.PaymentStatusPending, expired.PaymentStatus)

	// only the abandoned order's two units come back
	assert.Equal(t, 7, dbtest.Inventory(t, conn, sku.ID))

	rows := dbtest.AuditRows(t, conn, settled.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.AuditActionPaid, rows[0].Action)
}

func strPtr(v string) *string { return &v }

func TestOutboxRetentionJobPurgesOnlyOldPublishedRows(t *testing.T) {
	conn, client := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &recent},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
	}
	require.NoError(t, conn.Create(&rows).Error)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         client,
		Repository: outbox.NewRepository(conn),
	})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("created_at").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	for _, row := range remaining {
		assert.NotEqual(t, rows[0].ID, row.ID)
	}
}
