// Package dbtest opens throwaway sqlite databases migrated with every model.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/ordercore-backend/pkg/db"
	"github.com/angelmondragon/ordercore-backend/pkg/db/models"
	"github.com/angelmondragon/ordercore-backend/pkg/enums"
)

// Open returns a migrated in-memory database and a client bound to it.
// The pool is capped at one connection, so concurrent transactions run one
// after another, and sqlite ignores FOR UPDATE. Tests on this handle check the
// committed outcome of racing writers, not postgres row-lock ordering.
func Open(t testing.TB) (*gorm.DB, *db.Client) {
	t.Helper()
	dsn := fmt.Sprintf("file:ordercore_%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn, db.NewFromConn(conn, nil)
}

// SkuSeed describes a SKU and its parent product.
type SkuSeed struct {
	Inventory       int
	PriceCents      int64
	Title           string
	Variant         string
	Inactive        bool
	Deleted         bool
	ProductInactive bool
	ProductHidden   bool
}

// SeedSku inserts a product and one SKU under it.
func SeedSku(t testing.TB, conn *gorm.DB, seed SkuSeed) models.Sku {
	t.Helper()
	if seed.Title == "" {
		seed.Title = "Linen Shirt"
	}
	if seed.PriceCents == 0 {
		seed.PriceCents = 2500
	}
	product := models.Product{
		Title:    seed.Title,
		IsActive: !seed.ProductInactive,
		IsPublic: !seed.ProductHidden,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	sku := models.Sku{
		ProductID:    product.ID,
		Code:         "SKU-" + uuid.NewString()[:8],
		VariantTitle: seed.Variant,
		PriceCents:   seed.PriceCents,
		Inventory:    seed.Inventory,
		IsActive:     !seed.Inactive,
	}
	if seed.Deleted {
		now := time.Now().UTC()
		sku.DeletedAt = &now
	}
	if err := conn.Create(&sku).Error; err != nil {
		t.Fatalf("seed sku: %v", err)
	}
	sku.Product = &product
	return sku
}

// Inventory reads the committed inventory of a SKU.
func Inventory(t testing.TB, conn *gorm.DB, skuID uuid.UUID) int {
	t.Helper()
	var sku models.Sku
	if err := conn.Select("inventory").Where("id = ?", skuID).Take(&sku).Error; err != nil {
		t.Fatalf("load sku %s: %v", skuID, err)
	}
	return sku.Inventory
}

// OrderLine is one line of a seeded order.
type OrderLine struct {
	Sku      models.Sku
	Quantity int
}

// OrderSeed describes an order. Zero statuses default to a fresh, unpaid order.
type OrderSeed struct {
	UserID            *uuid.UUID
	Status            enums.OrderStatus
	PaymentStatus     enums.PaymentStatus
	FulfillmentStatus enums.FulfillmentStatus
	Reservation       enums.StockReservation
	PaymentSessionRef *string
	TrackingNumber    *string
	Lines             []OrderLine
}

// SeedOrder inserts an order and its items without touching inventory.
func SeedOrder(t testing.TB, conn *gorm.DB, seed OrderSeed) models.Order {
	t.Helper()
	if seed.Status == "" {
		seed.Status = enums.OrderStatusPending
	}
	if seed.PaymentStatus == "" {
		seed.PaymentStatus = enums.PaymentStatusPending
	}
	if seed.FulfillmentStatus == "" {
		seed.FulfillmentStatus = enums.FulfillmentStatusUnfulfilled
	}
	order := models.Order{
		OrderNumber:       "ORD-TEST-" + strings.ToUpper(uuid.NewString()[:8]),
		UserID:            seed.UserID,
		Email:             "buyer@example.com",
		Status:            seed.Status,
		PaymentStatus:     seed.PaymentStatus,
		FulfillmentStatus: seed.FulfillmentStatus,
		StockReservation:  seed.Reservation,
		PaymentSessionRef: seed.PaymentSessionRef,
		TrackingNumber:    seed.TrackingNumber,
		Currency:          "USD",
	}
	var subtotal int64
	for _, line := range seed.Lines {
		skuID := line.Sku.ID
		total := line.Sku.PriceCents * int64(line.Quantity)
		subtotal += total
		order.Items = append(order.Items, models.OrderItem{
			SkuID:          &skuID,
			ProductTitle:   "Linen Shirt",
			VariantTitle:   line.Sku.VariantTitle,
			UnitPriceCents: line.Sku.PriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: total,
		})
	}
	order.SubtotalCents = subtotal
	order.TotalCents = subtotal
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

// LoadOrder reads an order with its items.
func LoadOrder(t testing.TB, conn *gorm.DB, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	if err := conn.Preload("Items").Where("id = ?", id).Take(&order).Error; err != nil {
		t.Fatalf("load order %s: %v", id, err)
	}
	return order
}

// AuditRows returns the audit rows of an order oldest first.
func AuditRows(t testing.TB, conn *gorm.DB, orderID uuid.UUID) []models.OrderAudit {
	t.Helper()
	var rows []models.OrderAudit
	if err := conn.Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load audit rows: %v", err)
	}
	return rows
}
