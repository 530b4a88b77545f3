package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Janitor 周期性调用 Registry.Sweep 清理空闲会话
type Janitor struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger
	observe  func(removed int)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewJanitor 创建清理器。observe 可为 nil，每次清理后以移除数量回调。
func NewJanitor(registry *Registry, interval time.Duration, logger *zap.Logger, observe func(removed int)) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		registry: registry,
		interval: interval,
		logger:   logger.With(zap.String("component", "session_janitor")),
		observe:  observe,
	}
}

// Start 启动清理循环，重复调用无效
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.running = true

	go j.loop(ctx, j.done)
	j.logger.Info("session janitor started", zap.Duration("interval", j.interval))
}

// Stop 停止清理循环并等待其退出
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	cancel, done := j.cancel, j.done
	j.running = false
	j.mu.Unlock()

	cancel()
	<-done
	j.logger.Info("session janitor stopped")
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweepOnce()
		}
	}
}

func (j *Janitor) sweepOnce() {
	removed := j.registry.Sweep(j.registry.now())
	if j.observe != nil {
		j.observe(len(removed))
	}
	if len(removed) > 0 {
		j.logger.Debug("sweep completed",
			zap.Int("removed", len(removed)),
			zap.Int("active", j.registry.ActiveCount()),
		)
	}
}
