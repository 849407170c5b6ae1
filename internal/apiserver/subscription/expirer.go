package subscription

import (
	"context"
	"sync"
	"time"

	"pocketfiler/pkg/logging"
)

// Expirer 定期扫描并过期订阅
type Expirer struct {
	svc      *Service
	interval time.Duration
	batch    int
	log      *logging.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

func NewExpirer(svc *Service, interval time.Duration, batch int) *Expirer {
	if interval <= 0 {
		interval = time.Hour
	}
	if batch <= 0 {
		batch = 100
	}
	return &Expirer{
		svc:      svc,
		interval: interval,
		batch:    batch,
		log:      logging.Default("subscription.expirer"),
	}
}

// Start 启动后台扫描，启动时立即执行一次
func (e *Expirer) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.log.Info("expirer started", "interval", e.interval.String(), "batch", e.batch)
	go e.loop(ctx)
}

// Stop 停止扫描并等待当前一轮结束
func (e *Expirer) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	done := e.done
	e.mu.Unlock()
	<-done
}

func (e *Expirer) loop(ctx context.Context) {
	defer close(e.done)

	e.RunOnce(ctx)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("expirer stopped", "reason", "context_cancelled")
			return
		case <-e.stopCh:
			e.log.Info("expirer stopped", "reason", "stop_signal")
			return
		case <-ticker.C:
			e.RunOnce(ctx)
		}
	}
}

// RunOnce 处理到期订阅直到一批不满为止
func (e *Expirer) RunOnce(ctx context.Context) int {
	total := 0
	for {
		n, err := e.svc.ExpireDue(ctx, e.batch)
		total += n
		if err != nil {
			e.log.WithError(err).Warn("expire subscriptions failed", "expired", total)
			return total
		}
		if n < e.batch {
			break
		}
	}
	if total > 0 {
		e.log.Info("subscriptions expired", "count", total)
	}
	return total
}
