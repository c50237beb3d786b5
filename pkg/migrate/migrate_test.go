package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/dailyledger/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestGridRowsMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_grid_rows.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no grid_rows migration file found")

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS grid_rows",
		"PRIMARY KEY (sheet_id, range_name, row_index)",
		"CHECK (row_index >= 0)",
		"DROP TABLE IF EXISTS grid_rows",
	} {
		require.Contains(t, content, sub)
	}
}

func TestEmbeddedMigrationsApplyOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	client := db.Wrap(conn)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ctx := context.Background()
	require.NoError(t, Run(ctx, sqlDB, client.Dialect(), EmbeddedDir, "up"))

	require.NoError(t, conn.Exec(
		"INSERT INTO grid_rows (sheet_id, range_name, row_index, cells) VALUES (?, ?, ?, ?)",
		"sheet", "Orders", 0, `["orderNumber"]`,
	).Error)

	err = conn.Exec(
		"INSERT INTO grid_rows (sheet_id, range_name, row_index, cells) VALUES (?, ?, ?, ?)",
		"sheet", "Orders", 0, `[]`,
	).Error
	require.Error(t, err, "duplicate row index must violate the primary key")
	require.True(t, db.IsUniqueViolation(err, ""))
}

func TestRunRequiresArguments(t *testing.T) {
	require.Error(t, Run(context.Background(), nil, "sqlite3", EmbeddedDir, "up"))
}

func TestCreateAndValidate(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Feedback Index!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_feedback_index.sql"), path)
	require.NoError(t, ValidateDir(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- nothing"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestValidateEmbeddedDir(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestValidateRejectsSectionsOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x (id int);\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20250301090000_x.sql"), []byte(body), 0o644))
	require.ErrorContains(t, ValidateDir(dir), "Down section before Up")
}

func TestCreateRefusesEmbeddedDirAndDuplicates(t *testing.T) {
	_, err := CreateSQLMigration(EmbeddedDir, "x")
	require.Error(t, err)

	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	path, err := createSQLMigration(dir, "orders index", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20250301090000_orders_index.sql"), path)

	_, err = createSQLMigration(dir, "orders index", now)
	require.ErrorContains(t, err, "already exists")
}
