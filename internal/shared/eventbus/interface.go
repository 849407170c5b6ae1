// Package eventbus 事件总线抽象接口
//
// 记录实体生命周期迁移，供审计查询使用。当前由 Redis Streams 实现，
// 未启用 Redis 时使用进程内实现。
package eventbus

import (
	"context"
)

// Publisher 发布生命周期事件
type Publisher interface {
	Publish(ctx context.Context, event *LifecycleEvent) error
}

// Reader 查询实体最近的生命周期事件，按时间倒序
type Reader interface {
	Recent(ctx context.Context, entity string, entityID int64, count int64) ([]*LifecycleEvent, error)
}

// EventBus 事件总线组合接口
type EventBus interface {
	Publisher
	Reader
	Close() error
}
