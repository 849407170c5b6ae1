// Package infra 基础设施聚合层
//
// 按配置初始化并统一关闭外部依赖：
//   - Store：持久化存储（MongoDB / PostgreSQL / SQLite）
//   - Redis：可选，用于限流和生命周期事件流
//   - EventBus：Redis Streams，未启用 Redis 时为进程内实现
package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pocketfiler/internal/config"
	"pocketfiler/internal/shared/eventbus"
	eventbusredis "pocketfiler/internal/shared/eventbus/redis"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

var log = logging.Default("infra")

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	// Store 持久化存储
	Store storage.Store

	// Redis 为 nil 表示未启用
	Redis *redis.Client

	// EventBus 生命周期事件
	EventBus eventbus.EventBus
}

// New 按配置初始化基础设施，任一步骤失败时关闭已打开的连接
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	store, err := OpenStore(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DatabaseDBName)
	if err != nil {
		return nil, err
	}
	infra := &Infrastructure{Store: store}

	if cfg.RedisURL == "" {
		log.Info("redis not configured, using in-process event bus")
		infra.EventBus = eventbus.NewMemoryEventBus()
		return infra, nil
	}

	client, err := NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.Redis = client
	infra.EventBus = eventbusredis.NewStoreFromClient(client)
	return infra, nil
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var errs []error

	if i.EventBus != nil {
		errs = append(errs, i.EventBus.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.Store != nil {
		errs = append(errs, i.Store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close infrastructure: %w", err)
	}
	return nil
}
