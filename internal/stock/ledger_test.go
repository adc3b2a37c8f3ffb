package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordercore-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/metrics"
)

func newLedger() *Ledger {
	return NewLedger(metrics.NewEngineMetrics(prometheus.NewRegistry()), nil)
}

func TestReserveDecrementsInventory(t *testing.T) {
	conn, client := dbtest.Open(t)
	sku := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 5})
	ledger := newLedger()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		locked, err := ledger.Lock(context.Background(), tx, sku.ID)
		if err != nil {
			return err
		}
		if err := ledger.Reserve(context.Background(), tx, locked, 3); err != nil {
			return err
		}
		assert.Equal(t, 2, locked.Inventory())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, dbtest.Inventory(t, conn, sku.ID))
}

func TestReserveDistinguishesOutOfStockFromInsufficient(t *testing.T) {
	conn, client := dbtest.Open(t)
	empty := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 0})
	low := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 2})
	ledger := newLedger()
	ctx := context.Background()

	reserve := func(id uuid.UUID, qty int) error {
		return client.WithTx(ctx, func(tx *gorm.DB) error {
			locked, err := ledger.Lock(ctx, tx, id)
			if err != nil {
				return err
			}
			return ledger.Reserve(ctx, tx, locked, qty)
		})
	}

	err := reserve(empty.ID, 1)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeOutOfStock, pkgerrors.CodeOf(err))

	err = reserve(low.ID, 3)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.CodeOf(err))
	assert.NotContains(t, err.Error(), "2", "message must not leak remaining stock")

	assert.Equal(t, 2, dbtest.Inventory(t, conn, low.ID))
}

func TestReserveRejectsUnsellableSkus(t *testing.T) {
	conn, client := dbtest.Open(t)
	ledger := newLedger()
	ctx := context.Background()

	seeds := map[string]dbtest.SkuSeed{
		"inactive sku":     {Inventory: 5, Inactive: true},
		"deleted sku":      {Inventory: 5, Deleted: true},
		"inactive product": {Inventory: 5, ProductInactive: true},
		"hidden product":   {Inventory: 5, ProductHidden: true},
	}
	for name, seed := range seeds {
		t.Run(name, func(t *testing.T) {
			sku := dbtest.SeedSku(t, conn, seed)
			err := client.WithTx(ctx, func(tx *gorm.DB) error {
				locked, err := ledger.Lock(ctx, tx, sku.ID)
				if err != nil {
					return err
				}
				return ledger.Reserve(ctx, tx, locked, 1)
			})
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeSkuInactive, pkgerrors.CodeOf(err))
			assert.Equal(t, 5, dbtest.Inventory(t, conn, sku.ID))
		})
	}
}

func TestReleaseAcceptsRetiredSku(t *testing.T) {
	conn, client := dbtest.Open(t)
	sku := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 1, Inactive: true, Deleted: true})
	ledger := newLedger()
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := ledger.Lock(ctx, tx, sku.ID)
		if err != nil {
			return err
		}
		return ledger.Release(ctx, tx, locked, 4)
	})
	require.NoError(t, err)
	assert.Equal(t, 5, dbtest.Inventory(t, conn, sku.ID))
}

func TestLockMissingSku(t *testing.T) {
	_, client := dbtest.Open(t)
	ledger := newLedger()
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := ledger.Lock(ctx, tx, uuid.New())
		return err
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestLockedSkuCannotOutliveItsTransaction(t *testing.T) {
	conn, client := dbtest.Open(t)
	sku := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 3})
	ledger := newLedger()
	ctx := context.Background()

	var stale *LockedSku
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		stale, err = ledger.Lock(ctx, tx, sku.ID)
		return err
	}))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, stale, 1)
	})
	require.Error(t, err)
	assert.Equal(t, 3, dbtest.Inventory(t, conn, sku.ID))
}

func TestApplyDeltas(t *testing.T) {
	conn, client := dbtest.Open(t)
	a := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 1})
	b := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 4, Inactive: true})
	c := dbtest.SeedSku(t, conn, dbtest.SkuSeed{Inventory: 7})
	ledger := newLedger()
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.ApplyDeltas(ctx, tx, map[uuid.UUID]int{a.ID: 2, b.ID: -4, c.ID: 0})
	})
	require.NoError(t, err)
	assert.Equal(t, 3, dbtest.Inventory(t, conn, a.ID))
	assert.Equal(t, 0, dbtest.Inventory(t, conn, b.ID))
	assert.Equal(t, 7, dbtest.Inventory(t, conn, c.ID))

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.ApplyDeltas(ctx, tx, map[uuid.UUID]int{a.ID: 1, b.ID: -1})
	})
	assert.Equal(t, pkgerrors.CodeOutOfStock, pkgerrors.CodeOf(err))
	assert.Equal(t, 3, dbtest.Inventory(t, conn, a.ID), "failed batch rolls back every delta")
}

func TestSortedUnique(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	assert.Equal(t, []uuid.UUID{a, b}, sortedUnique([]uuid.UUID{b, a, b}))
}
