// Package redis 基于 Redis Streams 的生命周期事件总线
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pocketfiler/internal/shared/eventbus"
	"pocketfiler/pkg/logging"
)

var log = logging.Default("eventbus")

// Store Redis 事件总线
type Store struct {
	client redis.UniversalClient
}

// NewStoreFromClient 从现有 Redis 客户端创建事件总线
func NewStoreFromClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Publish 写入实体的事件流，超出长度的旧事件被近似裁剪
func (s *Store) Publish(ctx context.Context, event *eventbus.LifecycleEvent) error {
	values := map[string]interface{}{
		"entity":    event.Entity,
		"entity_id": strconv.FormatInt(event.EntityID, 10),
		"from":      event.From,
		"to":        event.To,
		"actor_id":  strconv.FormatInt(event.ActorID, 10),
		"timestamp": event.Timestamp.Format(time.RFC3339Nano),
	}
	for k, v := range event.Data {
		values["data."+k] = v
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: eventbus.StreamKey(event.Entity, event.EntityID),
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	event.ID = id

	log.Debug("published lifecycle event", "entity", event.Entity, "entity_id", event.EntityID, "stream_id", id, "to", event.To)
	return nil
}

// Recent 按时间倒序读取最近 count 条事件
func (s *Store) Recent(ctx context.Context, entity string, entityID int64, count int64) ([]*eventbus.LifecycleEvent, error) {
	if count <= 0 {
		count = eventbus.MaxStreamLength
	}
	msgs, err := s.client.XRevRangeN(ctx, eventbus.StreamKey(entity, entityID), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	events := make([]*eventbus.LifecycleEvent, 0, len(msgs))
	for _, msg := range msgs {
		events = append(events, decode(msg))
	}
	return events, nil
}

func decode(msg redis.XMessage) *eventbus.LifecycleEvent {
	str := func(k string) string {
		v, _ := msg.Values[k].(string)
		return v
	}
	event := &eventbus.LifecycleEvent{
		ID:     msg.ID,
		Entity: str("entity"),
		From:   str("from"),
		To:     str("to"),
	}
	event.EntityID, _ = strconv.ParseInt(str("entity_id"), 10, 64)
	event.ActorID, _ = strconv.ParseInt(str("actor_id"), 10, 64)
	if t, err := time.Parse(time.RFC3339Nano, str("timestamp")); err == nil {
		event.Timestamp = t
	}
	for k, v := range msg.Values {
		if len(k) > 5 && k[:5] == "data." {
			if event.Data == nil {
				event.Data = make(map[string]string)
			}
			event.Data[k[5:]], _ = v.(string)
		}
	}
	return event
}

// Close 事件总线不持有连接，由创建方关闭客户端
func (s *Store) Close() error {
	return nil
}

var _ eventbus.EventBus = (*Store)(nil)
