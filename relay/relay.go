package relay

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/voicerelay/audio"
	"github.com/BaSui01/voicerelay/session"
	"github.com/BaSui01/voicerelay/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🧩 依赖接口
// =============================================================================

// Normalizer 将原始音频帧归一化为波形
type Normalizer interface {
	Normalize(raw []byte) (*audio.Waveform, error)
}

// Transcriber 将波形转写为文本
type Transcriber interface {
	Transcribe(ctx context.Context, w *audio.Waveform) (*types.TranscriptionResult, error)
}

// Generator 根据会话历史生成回复
type Generator interface {
	Generate(ctx context.Context, text, sessionID string) (string, error)
}

// Synthesizer 将回复文本合成为音频
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Observer 接收连接与轮次的观测数据，metrics.Collector 实现了该接口
type Observer interface {
	ConnectionOpened()
	ConnectionClosed(lifetime time.Duration)
	FrameReceived(kind, outcome string)
	TurnCompleted(source, outcome string, duration time.Duration)
	StageObserved(stage string, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()                           {}
func (nopObserver) ConnectionClosed(time.Duration)              {}
func (nopObserver) FrameReceived(string, string)                {}
func (nopObserver) TurnCompleted(string, string, time.Duration) {}
func (nopObserver) StageObserved(string, time.Duration, error)  {}

// Components 是 Relay 编排的下游组件
type Components struct {
	Registry    *session.Registry
	Normalizer  Normalizer
	Transcriber Transcriber
	Generator   Generator
	Synthesizer Synthesizer
}

// Config 控制单个连接的行为
type Config struct {
	// FrameRateLimit 每秒允许的入站帧数，<= 0 表示不限制
	FrameRateLimit float64
	FrameBurst     int
	// QueueSize 读取与处理之间的缓冲帧数，队列满时丢弃新帧
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultConfig 返回默认连接配置
func DefaultConfig() Config {
	return Config{
		FrameRateLimit: 20,
		FrameBurst:     40,
		QueueSize:      16,
		WriteTimeout:   10 * time.Second,
	}
}

// Option 配置 Relay
type Option func(*Relay)

// WithObserver 设置观测者
func WithObserver(o Observer) Option {
	return func(r *Relay) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithTracer 替换 tracer，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(r *Relay) {
		if t != nil {
			r.tracer = t
		}
	}
}

// Relay 为每条客户端连接运行一个对话状态机：
// 音频帧 → 归一化 → 转写 → 生成 → 合成 → 回复帧。
type Relay struct {
	components Components
	cfg        Config
	logger     *zap.Logger
	observer   Observer
	tracer     trace.Tracer

	mu      sync.Mutex
	conns   map[string]*Connection
	serving sync.WaitGroup
}

// New 创建 Relay。任一组件缺失时返回 CONFIGURATION 错误。
func New(components Components, cfg Config, logger *zap.Logger, opts ...Option) (*Relay, error) {
	switch {
	case components.Registry == nil:
		return nil, types.NewError(types.ErrConfiguration, "relay requires a session registry")
	case components.Normalizer == nil:
		return nil, types.NewError(types.ErrConfiguration, "relay requires an audio normalizer")
	case components.Transcriber == nil:
		return nil, types.NewError(types.ErrConfiguration, "relay requires a transcriber")
	case components.Generator == nil:
		return nil, types.NewError(types.ErrConfiguration, "relay requires a response generator")
	case components.Synthesizer == nil:
		return nil, types.NewError(types.ErrConfiguration, "relay requires a speech synthesizer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	r := &Relay{
		components: components,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "relay")),
		observer:   nopObserver{},
		tracer:     otel.Tracer("github.com/BaSui01/voicerelay/relay"),
		conns:      make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(r)
	}

	// 空闲过期的会话同时关闭其连接
	components.Registry.OnEnd(func(id string, reason session.EndReason) {
		if reason != session.EndReasonExpired {
			return
		}
		if c := r.lookup(id); c != nil {
			c.logger.Info("session expired, closing connection")
			// 关闭握手可能等待半开的对端，不能阻塞 Sweep
			go c.close(CloseSessionExpired)
		}
	})
	return r, nil
}

// Open 为新连接登记会话，返回处于 AWAITING_INPUT 状态的 Connection
func (r *Relay) Open() (*Connection, error) {
	id, err := r.components.Registry.Create()
	if err != nil {
		return nil, err
	}

	c := newConnection(r, id)
	r.mu.Lock()
	r.conns[id] = c
	r.mu.Unlock()

	r.observer.ConnectionOpened()
	c.setState(StateAwaitingInput)
	c.logger.Info("connection opened")
	return c, nil
}

// Serve 打开会话并在 conn 上运行状态机，直到连接关闭
func (r *Relay) Serve(ctx context.Context, conn Conn) error {
	c, err := r.Open()
	if err != nil {
		_ = conn.Close(CloseInternalError)
		return err
	}
	return c.Serve(ctx, conn)
}

// ActiveConnections 返回当前连接数
func (r *Relay) ActiveConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Shutdown 并发关闭所有连接并等待其处理循环退出，或直到 ctx 结束
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	r.logger.Info("closing connections", zap.Int("count", len(conns)))
	var g errgroup.Group
	for _, c := range conns {
		g.Go(func() error {
			c.close(CloseGoingAway)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		r.serving.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("shutdown deadline reached before all connections closed")
		return ctx.Err()
	}
}

func (r *Relay) lookup(id string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[id]
}

func (r *Relay) forget(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}
