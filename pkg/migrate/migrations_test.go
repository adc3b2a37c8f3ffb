package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordercore-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", pattern)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestCatalogMigrationGuardsInventory(t *testing.T) {
	content := readMigration(t, "*_create_catalog_and_carts.sql")
	for _, sub := range []string{
		"CONSTRAINT skus_inventory_non_negative CHECK (inventory >= 0)",
		"CONSTRAINT carts_single_owner CHECK ((user_id IS NULL) <> (session_id IS NULL))",
		"CONSTRAINT cart_items_cart_sku_key UNIQUE (cart_id, sku_id)",
		"DROP TABLE IF EXISTS skus",
	} {
		require.Contains(t, content, sub)
	}
}

func TestOrdersMigrationEnforcesRetention(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")
	require.Contains(t, content, "CONSTRAINT orders_deleted_unpaid_only CHECK (deleted_at IS NULL OR payment_status NOT IN ('PAID','REFUNDED'))")
	require.Contains(t, content, "FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE RESTRICT")
	require.Contains(t, content, "BEFORE DELETE ON orders")
}

func TestAuditMigrationIsAppendOnly(t *testing.T) {
	content := readMigration(t, "*_create_order_audits.sql")
	require.Contains(t, content, "BEFORE UPDATE OR DELETE ON order_audits")
	require.Contains(t, content, "RAISE EXCEPTION 'order_audits is append-only'")
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	names, err := migrate.ValidateDir("migrations")
	require.NoError(t, err)
	require.Len(t, names, 4)
	require.True(t, strings.HasSuffix(names[0], "_create_catalog_and_carts.sql"))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := migrate.CreateSQLMigration(dir, "Add Order Notes!", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260301120000_add_order_notes.sql"), path)

	_, err = migrate.CreateSQLMigration(dir, "add order notes", now)
	require.Error(t, err, "same version and name must not be overwritten")

	names, err := migrate.ValidateDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301120000_broken.sql"), []byte(body), 0o644))

	_, err := migrate.ValidateDir(dir)
	require.Error(t, err)
}
