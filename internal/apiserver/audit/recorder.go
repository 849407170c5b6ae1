// Package audit 生命周期迁移的记录与查询
package audit

import (
	"context"
	"time"

	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/eventbus"
	"pocketfiler/pkg/logging"
)

// Transition 一次已经落库的状态迁移
type Transition struct {
	Entity   string
	EntityID int64
	From     string
	To       string
	ActorID  int64
	Data     map[string]string
}

// Recorder 记录状态迁移：日志、指标、事件流
//
// 迁移已提交，事件发布失败只记日志，不影响请求结果。
type Recorder struct {
	bus     eventbus.Publisher
	metrics *metrics.Metrics
	log     *logging.Logger
	now     func() time.Time
}

// NewRecorder bus 或 m 可以为 nil
func NewRecorder(bus eventbus.Publisher, m *metrics.Metrics, log *logging.Logger) *Recorder {
	if log == nil {
		log = logging.Default("audit")
	}
	return &Recorder{bus: bus, metrics: m, log: log, now: time.Now}
}

// Record 记录一次迁移，Recorder 为 nil 时不做任何事
func (r *Recorder) Record(ctx context.Context, t Transition) {
	if r == nil {
		return
	}
	r.metrics.Transition(t.Entity, t.From, t.To)
	r.log.WithContext(ctx).TransitionLog(t.Entity, t.EntityID, t.From, t.To, "actor_id", t.ActorID)

	if r.bus == nil {
		return
	}
	err := r.bus.Publish(ctx, &eventbus.LifecycleEvent{
		Entity:    t.Entity,
		EntityID:  t.EntityID,
		From:      t.From,
		To:        t.To,
		ActorID:   t.ActorID,
		Timestamp: r.now().UTC(),
		Data:      t.Data,
	})
	if err != nil {
		r.log.WithContext(ctx).WithError(err).Warn("publish lifecycle event failed",
			"entity", t.Entity, "entity_id", t.EntityID)
	}
}
