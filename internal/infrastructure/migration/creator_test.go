package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/rentals/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add refunds index", "add_refunds_index"},
		{"Add-Refunds-Index", "add_refunds_index"},
		{"ADD__REFUNDS", "add_refunds"},
		{"late fees 2", "late_fees_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NextSequentialVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_create_ledger_tables.up.sql"), []byte("--"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_create_ledger_tables.down.sql"), []byte("--"), 0o644))

	mf, err := CreateMigration(dir, "add payout table", "Payouts to landlords")
	require.NoError(t, err)

	assert.Equal(t, uint(2), mf.Version)
	assert.Equal(t, filepath.Join(dir, "000002_add_payout_table.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000002_add_payout_table.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add payout table")
	assert.Contains(t, string(up), "-- Payouts to landlords")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Rollback: add payout table")
}

func TestCreateMigration_EmptyDirStartsAtOne(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "init", "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), mf.Version)
	assert.True(t, strings.HasSuffix(mf.UpPath, "000001_init.up.sql"))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsUnusableName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"000010_tenth.up.sql":   {Data: []byte("--")},
		"000010_tenth.down.sql": {Data: []byte("--")},
		"000002_second.up.sql":  {Data: []byte("--")},
		"000001_first.up.sql":   {Data: []byte("--")},
		"README.md":             {Data: []byte("docs")},
	}
	fsys["nested/000003_x.up.sql"] = &fstest.MapFile{Data: []byte("--")}

	names, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_first", "000002_second", "000010_tenth"}, names)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	names, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEmbeddedMigrations_ArePaired(t *testing.T) {
	names, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "000001_create_ledger_tables", names[0])

	for _, name := range names {
		_, err := fs.Stat(migrations.FS, name+".down.sql")
		assert.NoError(t, err, "missing down migration for %s", name)
	}
}

func TestEmbeddedMigrations_CreateLedgerTables(t *testing.T) {
	up, err := fs.ReadFile(migrations.FS, "000001_create_ledger_tables.up.sql")
	require.NoError(t, err)

	for _, table := range []string{
		"wallets", "wallet_transactions", "invoices", "payments", "prepayments",
		"fee_configs", "late_fee_rules", "refunds", "transaction_audits", "webhook_events",
	} {
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, string(up), "ON fee_configs (channel) WHERE active = TRUE")
	assert.Contains(t, string(up), "idx_wallet_tx_reference ON wallet_transactions (wallet_id, reference)")
}
