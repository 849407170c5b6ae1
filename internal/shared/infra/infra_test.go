package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/config"
	"pocketfiler/internal/shared/eventbus"
)

func TestNewWithSQLite(t *testing.T) {
	cfg := &config.Config{DatabaseDriver: "sqlite", DatabaseURL: ":memory:"}

	infra, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer infra.Close()

	assert.Nil(t, infra.Redis)
	assert.IsType(t, &eventbus.MemoryEventBus{}, infra.EventBus)

	id, err := infra.Store.NextID(context.Background(), "projects")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), "oracle", "", "")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestNewRedisClientBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
