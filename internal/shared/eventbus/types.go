package eventbus

import (
	"fmt"
	"time"
)

// LifecycleEvent 一次实体状态迁移
type LifecycleEvent struct {
	ID        string            `json:"id"`
	Entity    string            `json:"entity"`
	EntityID  int64             `json:"entityId"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	ActorID   int64             `json:"actorId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

const (
	// KeyLifecycleEvents Stream key 前缀
	KeyLifecycleEvents = "lifecycle_events:"

	// MaxStreamLength 每个实体保留的最大事件数
	MaxStreamLength = 1000
)

// StreamKey 实体对应的 Stream key
func StreamKey(entity string, entityID int64) string {
	return fmt.Sprintf("%s%s:%d", KeyLifecycleEvents, entity, entityID)
}
