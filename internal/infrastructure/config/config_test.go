package config

import (
	"testing"
	"time"

	"github.com/posledger/backend/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "posledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "", cfg.Database.Password)
		assert.Equal(t, "posledger", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, "individual", cfg.Stock.DefaultCostMode)
		assert.Equal(t, "oldest_first", cfg.Stock.DefaultPolicy)
		assert.Equal(t, 24*time.Hour, cfg.Stock.IdempotencyTTL)
		assert.Equal(t, IdempotencyBackendNone, cfg.Stock.IdempotencyBackend)
	})

	t.Run("loads values from environment variables with POS prefix", func(t *testing.T) {
		t.Setenv("POS_APP_NAME", "test-app")
		t.Setenv("POS_APP_ENV", "testing")
		t.Setenv("POS_DATABASE_HOST", "testdb.local")
		t.Setenv("POS_DATABASE_PORT", "5433")
		t.Setenv("POS_DATABASE_USER", "testuser")
		t.Setenv("POS_DATABASE_PASSWORD", "testpass")
		t.Setenv("POS_DATABASE_DBNAME", "testdb")
		t.Setenv("POS_DATABASE_SSLMODE", "require")
		t.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("POS_STOCK_DEFAULT_COST_MODE", "average")
		t.Setenv("POS_STOCK_DEFAULT_POLICY", "average")
		t.Setenv("POS_STOCK_IDEMPOTENCY_TTL", "2h")
		t.Setenv("POS_STOCK_IDEMPOTENCY_BACKEND", "redis")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, 2*time.Hour, cfg.Stock.IdempotencyTTL)
		assert.Equal(t, IdempotencyBackendRedis, cfg.Stock.IdempotencyBackend)

		costing, err := cfg.Stock.Costing()
		require.NoError(t, err)
		assert.Equal(t, stock.Costing{Mode: stock.CostModeAverage, Policy: stock.PolicyAverage}, costing)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		t.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		t.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})
}

func TestLoad_StockValidation(t *testing.T) {
	t.Run("rejects unknown cost mode", func(t *testing.T) {
		t.Setenv("POS_STOCK_DEFAULT_COST_MODE", "standard")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown cost mode")
	})

	t.Run("rejects unknown policy", func(t *testing.T) {
		t.Setenv("POS_STOCK_DEFAULT_POLICY", "fifo")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown consumption policy")
	})

	t.Run("rejects average policy with individual mode", func(t *testing.T) {
		t.Setenv("POS_STOCK_DEFAULT_POLICY", "average")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires cost mode")
	})

	t.Run("accepts hyphenated policy", func(t *testing.T) {
		t.Setenv("POS_STOCK_DEFAULT_POLICY", "highest-cost-first")

		cfg, err := Load()
		require.NoError(t, err)
		costing, err := cfg.Stock.Costing()
		require.NoError(t, err)
		assert.Equal(t, stock.PolicyHighestCostFirst, costing.Policy)
	})

	t.Run("rejects unknown idempotency backend", func(t *testing.T) {
		t.Setenv("POS_STOCK_IDEMPOTENCY_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idempotency_backend")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("POS_APP_ENV", "production")
		t.Setenv("POS_DATABASE_PASSWORD", "secure-password")
		t.Setenv("POS_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		t.Setenv("POS_APP_ENV", "production")
		t.Setenv("POS_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("POS_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("POS_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})
}
