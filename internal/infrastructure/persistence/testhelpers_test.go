package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/posledger/backend/internal/infrastructure/config"
	"github.com/posledger/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newSQLiteDB opens a private in-memory SQLite database with the stock schema.
// A single connection keeps every statement on the same in-memory database.
func newSQLiteDB(t *testing.T) *Database {
	t.Helper()

	db, err := Open(sqlite.Open(":memory:"), &config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1}, zaptest.NewLogger(t), WithLogLevel(gormlogger.Silent))
	require.NoError(t, err)
	require.NoError(t, db.DB.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newMockDB returns a GORM handle over sqlmock using the PostgreSQL dialect.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}
