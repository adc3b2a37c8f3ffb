package checkout

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/internal/audit"
	"github.com/angelmondragon/ordercore-backend/internal/cache"
	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/internal/orders"
	"github.com/angelmondragon/ordercore-backend/internal/stock"
	"github.com/angelmondragon/ordercore-backend/pkg/config"
	"github.com/angelmondragon/ordercore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/outbox"
	"github.com/angelmondragon/ordercore-backend/pkg/types"
)

type fixture struct {
	conn  *gorm.DB
	carts cart.Service
	svc   Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, client := dbtest.Open(t)
	cartCfg := config.CartConfig{MaxItems: 50, MaxQuantityPerOrder: 99, GuestTTL: 24 * time.Hour}
	ledger := stock.NewLedger(nil, nil)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	carts, err := cart.NewService(cart.NewRepository(conn), client, ledger, emitter, cache.Noop{}, cartCfg, nil)
	require.NoError(t, err)
	auditSvc, err := audit.NewService(conn, config.OrdersConfig{AuditDefaultLimit: 20, AuditMaxLimit: 100})
	require.NoError(t, err)
	svc, err := NewService(client, cart.NewRepository(conn), orders.NewRepository(conn), ledger, auditSvc, emitter, cache.Noop{}, cartCfg, nil)
	require.NoError(t, err)
	return fixture{conn: conn, carts: carts, svc: svc}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code(), typed.Message())
}

func shipping() types.Address {
	return types.Address{Name: "Ana Ruiz", Line1: "1 Main St", City: "Austin", Region: "TX", PostalCode: "78701"}
}

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	number := NewOrderNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260105-[2-9A-HJ-NP-Z]{6}$`), number)
	assert.NotEqual(t, number, NewOrderNumber(now))
}

func TestPlaceOrderConvertsCartWithHeldStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sku := dbtest.SeedSku(t, f.conn, dbtest.SkuSeed{Inventory: 5, PriceCents: 1500, Variant: "M"})
	userID := uuid.New()
	owner := cart.UserOwner(userID)

	_, err := f.carts.AddItem(ctx, owner, sku.ID, 2)
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Sku{}).Where("id = ?", sku.ID).Update("price_cents", 9900).Error)

	order, err := f.svc.PlaceOrder(ctx, owner, PlaceOrderInput{
		Email:             " Buyer@Example.com ",
		Shipping:          shipping(),
		PaymentSessionRef: "cs_test_1",
		ShippingCents:     500,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.StockReservationHeld, order.StockReservation)
	assert.Equal(t, "buyer@example.com", order.Email)
	assert.Equal(t, int64(3000), order.SubtotalCents)
	assert.Equal(t, int64(3500), order.TotalCents)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Linen Shirt", order.Items[0].ProductTitle)
	assert.Equal(t, "M", order.Items[0].VariantTitle)
	assert.Equal(t, int64(1500), order.Items[0].UnitPriceCents)

	assert.Equal(t, 3, dbtest.Inventory(t, f.conn, sku.ID))
	view, err := f.carts.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	rows := dbtest.AuditRows(t, f.conn, order.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.AuditActionCreated, rows[0].Action)
	assert.Equal(t, enums.AuditSourceCustomer, rows[0].Source)
	assert.Nil(t, rows[0].PrevStatus)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, cart.GuestOwner("sess-1"), PlaceOrderInput{Email: "a@b.co", Shipping: shipping()})
	requireCode(t, err, pkgerrors.CodeNotFound)

	sku := dbtest.SeedSku(t, f.conn, dbtest.SkuSeed{Inventory: 1})
	_, err = f.carts.AddItem(ctx, cart.GuestOwner("sess-1"), sku.ID, 1)
	require.NoError(t, err)
	_, err = f.carts.RemoveItem(ctx, cart.GuestOwner("sess-1"), sku.ID)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, cart.GuestOwner("sess-1"), PlaceOrderInput{Email: "a@b.co", Shipping: shipping()})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestPlaceOrderValidatesBuyer(t *testing.T) {
	f := newFixture(t)
	owner := cart.GuestOwner("sess-2")

	_, err := f.svc.PlaceOrder(context.Background(), owner, PlaceOrderInput{Email: "nope", Shipping: shipping()})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.PlaceOrder(context.Background(), owner, PlaceOrderInput{Email: "a@b.co", Shipping: types.Address{Name: "x"}})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateManualOrderLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sku := dbtest.SeedSku(t, f.conn, dbtest.SkuSeed{Inventory: 4, PriceCents: 1000})
	admin := orders.AdminActor(uuid.New(), "ops@example.com")

	order, err := f.svc.CreateManualOrder(ctx, admin, ManualOrderInput{
		Email:    "phone@example.com",
		Shipping: shipping(),
		Lines:    []ManualLine{{SkuID: sku.ID, Quantity: 3}},
		TaxCents: 240,
		Note:     "phone order",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.StockReservationNone, order.StockReservation)
	assert.Equal(t, int64(3240), order.TotalCents)
	assert.Equal(t, 4, dbtest.Inventory(t, f.conn, sku.ID))

	rows := dbtest.AuditRows(t, f.conn, order.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.AuditSourceAdmin, rows[0].Source)
	require.NotNil(t, rows[0].Note)
	assert.Equal(t, "phone order", *rows[0].Note)
}

func TestCreateManualOrderRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sku := dbtest.SeedSku(t, f.conn, dbtest.SkuSeed{Inventory: 4})
	retired := dbtest.SeedSku(t, f.conn, dbtest.SkuSeed{Inventory: 4, Inactive: true})
	admin := orders.AdminActor(uuid.New(), "")
	base := ManualOrderInput{Email: "a@b.co", Shipping: shipping()}

	_, err := f.svc.CreateManualOrder(ctx, orders.CustomerActor(uuid.New(), ""), base)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.CreateManualOrder(ctx, admin, base)
	requireCode(t, err, pkgerrors.CodeValidation)

	in := base
	in.Lines = []ManualLine{{SkuID: sku.ID, Quantity: 1}, {SkuID: sku.ID, Quantity: 2}}
	_, err = f.svc.CreateManualOrder(ctx, admin, in)
	requireCode(t, err, pkgerrors.CodeValidation)

	in.Lines = []ManualLine{{SkuID: sku.ID, Quantity: 100}}
	_, err = f.svc.CreateManualOrder(ctx, admin, in)
	requireCode(t, err, pkgerrors.CodeValidation)

	in.Lines = []ManualLine{{SkuID: retired.ID, Quantity: 1}}
	_, err = f.svc.CreateManualOrder(ctx, admin, in)
	requireCode(t, err, pkgerrors.CodeSkuInactive)

	in.Lines = []ManualLine{{SkuID: uuid.New(), Quantity: 1}}
	_, err = f.svc.CreateManualOrder(ctx, admin, in)
	requireCode(t, err, pkgerrors.CodeNotFound)
}
