package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/config"
)

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

func setupTestPool(t *testing.T) *PoolManager {
	t.Helper()

	pm, err := OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Close() })

	return pm
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestPoolManager_DB(t *testing.T) {
	pm := setupTestPool(t)
	assert.NotNil(t, pm.DB())
}

func TestPoolManager_Ping(t *testing.T) {
	pm := setupTestPool(t)

	ctx := context.Background()
	assert.NoError(t, pm.Ping(ctx))
}

func TestPoolManager_PingAfterClose(t *testing.T) {
	pm, err := OpenInMemory(zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, pm.Close())
	assert.Error(t, pm.Ping(context.Background()))

	// 重复关闭应该是幂等的
	assert.NoError(t, pm.Close())
}

func TestPoolManager_WithTransaction(t *testing.T) {
	pm := setupTestPool(t)

	ctx := context.Background()
	var called bool

	err := pm.WithTransaction(ctx, func(tx *gorm.DB) error {
		called = true
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, called)
}

func TestPoolManager_WithTransactionRollback(t *testing.T) {
	pm := setupTestPool(t)

	err := pm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return assert.AnError
	})

	assert.Error(t, err)
}

func TestPoolManager_WithTransactionAfterClose(t *testing.T) {
	pm, err := OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, pm.Close())

	err = pm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return nil
	})
	assert.Error(t, err)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpen_Sqlite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:          "sqlite",
		Name:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}

	pm, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	defer pm.Close()

	assert.NoError(t, pm.Ping(context.Background()))
}
