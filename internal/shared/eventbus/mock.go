package eventbus

import (
	"context"
	"fmt"
	"sync"
)

// ============================================================================
// NoOpEventBus - 空操作的 EventBus 实现（用于测试）
// ============================================================================

// NoOpEventBus 是一个不做任何操作的 EventBus 实现
type NoOpEventBus struct{}

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

func (e *NoOpEventBus) Publish(ctx context.Context, event *LifecycleEvent) error {
	return nil
}

func (e *NoOpEventBus) Recent(ctx context.Context, entity string, entityID int64, count int64) ([]*LifecycleEvent, error) {
	return []*LifecycleEvent{}, nil
}

func (e *NoOpEventBus) Close() error {
	return nil
}

// ============================================================================
// MemoryEventBus - 进程内实现，未配置 Redis 时使用
// ============================================================================

// MemoryEventBus 按实体保存最近 MaxStreamLength 条事件
type MemoryEventBus struct {
	mu     sync.RWMutex
	seq    int64
	events map[string][]*LifecycleEvent
}

// NewMemoryEventBus 创建进程内事件总线
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{events: make(map[string][]*LifecycleEvent)}
}

func (e *MemoryEventBus) Publish(ctx context.Context, event *LifecycleEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	stored := *event
	stored.ID = fmt.Sprintf("%d-0", e.seq)
	key := StreamKey(event.Entity, event.EntityID)
	list := append(e.events[key], &stored)
	if len(list) > MaxStreamLength {
		list = list[len(list)-MaxStreamLength:]
	}
	e.events[key] = list
	event.ID = stored.ID
	return nil
}

func (e *MemoryEventBus) Recent(ctx context.Context, entity string, entityID int64, count int64) ([]*LifecycleEvent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	list := e.events[StreamKey(entity, entityID)]
	out := make([]*LifecycleEvent, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if count > 0 && int64(len(out)) >= count {
			break
		}
		ev := *list[i]
		out = append(out, &ev)
	}
	return out, nil
}

func (e *MemoryEventBus) Close() error {
	return nil
}

// 确保实现了 EventBus 接口
var (
	_ EventBus = (*NoOpEventBus)(nil)
	_ EventBus = (*MemoryEventBus)(nil)
)
