package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/voicerelay/audio"
	"github.com/BaSui01/voicerelay/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// State 连接状态
type State string

const (
	StateConnected     State = "connected"
	StateAwaitingInput State = "awaiting_input"
	StateProcessing    State = "processing"
	StateClosed        State = "closed"
)

// 轮次结果，用于指标与 span 属性
const (
	outcomeResponded = "responded"
	outcomeNoSpeech  = "no_speech"
	outcomeFailed    = "failed"
)

// Connection 是一条客户端连接上的对话状态机。
// 帧按到达顺序逐个处理；读取在独立 goroutine 中进行，以便对端断开时立即取消进行中的调用。
type Connection struct {
	relay    *Relay
	id       string
	logger   *zap.Logger
	openedAt time.Time
	limiter  *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	state State
	conn  Conn

	closeOnce sync.Once
}

func newConnection(r *Relay, id string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		relay:    r,
		id:       id,
		logger:   r.logger.With(zap.String("session_id", id)),
		openedAt: time.Now(),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateConnected,
	}
	if r.cfg.FrameRateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(r.cfg.FrameRateLimit), max(r.cfg.FrameBurst, 1))
	}
	return c
}

// SessionID 返回连接绑定的会话 ID
func (c *Connection) SessionID() string { return c.id }

// State 返回当前状态
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// setState 切换状态；CLOSED 是终态
func (c *Connection) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	if c.state != s {
		c.logger.Debug("state changed", zap.String("from", string(c.state)), zap.String("to", string(s)))
	}
	c.state = s
}

// Close 关闭连接并结束会话，可重复调用
func (c *Connection) Close() {
	c.close(CloseNormal)
}

func (c *Connection) close(reason CloseReason) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		c.mu.Unlock()

		c.cancel()
		// 先结束会话，传输层关闭握手可能较慢
		c.relay.components.Registry.End(c.id)
		c.relay.forget(c.id)

		if conn != nil {
			if err := conn.Close(reason); err != nil {
				c.logger.Debug("transport close failed", zap.Error(err))
			}
		}

		lifetime := time.Since(c.openedAt)
		c.relay.observer.ConnectionClosed(lifetime)
		c.logger.Info("connection closed",
			zap.String("reason", string(reason)),
			zap.Duration("lifetime", lifetime),
		)
	})
}

// attach 绑定传输层；连接已关闭或已在服务中时返回错误
func (c *Connection) attach(conn Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	if c.conn != nil {
		return types.NewError(types.ErrSession, "connection is already being served")
	}
	c.conn = conn
	return nil
}

// =============================================================================
// 🔁 主循环
// =============================================================================

// Serve 运行状态机直到对端断开、ctx 结束或连接被关闭。
// 返回时会话已从注册表移除。对端正常断开返回 nil。
func (c *Connection) Serve(parent context.Context, conn Conn) error {
	if err := c.attach(conn); err != nil {
		_ = conn.Close(CloseGoingAway)
		return err
	}

	c.relay.serving.Add(1)
	defer c.relay.serving.Done()

	ctx, cancel := context.WithCancel(types.WithSessionID(parent, c.id))
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	frames := make(chan Frame, c.relay.cfg.QueueSize)
	readErr := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		c.readLoop(ctx, cancel, conn, frames, readErr)
	}()

	finish := func(reason CloseReason) {
		// 服务端主动结束时以 going away 关闭
		if parent.Err() != nil {
			reason = CloseGoingAway
		}
		c.close(reason)
		cancel()
		<-readerDone
	}

	for {
		select {
		case <-ctx.Done():
			select {
			case err := <-readErr:
				c.logReadError(err)
			default:
			}
			finish(CloseNormal)
			return nil

		case err := <-readErr:
			c.logReadError(err)
			finish(CloseNormal)
			return nil

		case f := <-frames:
			if err := c.handle(ctx, conn, f); err != nil {
				if c.State() == StateClosed || ctx.Err() != nil {
					continue
				}
				c.logger.Warn("failed to write to client", zap.Error(err))
				finish(CloseInternalError)
				return err
			}
			if c.State() == StateClosed {
				finish(CloseNormal)
				return nil
			}
		}
	}
}

// readLoop 读取帧并放入队列。超过速率或队列已满的帧被丢弃。
// 读取失败时取消 ctx，使进行中的下游调用立即中止。
func (c *Connection) readLoop(ctx context.Context, cancel context.CancelFunc, conn Conn, frames chan<- Frame, readErr chan<- error) {
	for {
		f, err := conn.Read(ctx)
		if err != nil {
			readErr <- err
			cancel()
			return
		}

		kind := f.Kind.String()
		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn("frame rate limit exceeded, dropping frame",
				zap.String("kind", kind),
				zap.Int("bytes", len(f.Data)),
			)
			c.relay.observer.FrameReceived(kind, "rate_limited")
			continue
		}

		select {
		case frames <- f:
		case <-ctx.Done():
			return
		default:
			c.logger.Warn("frame queue full, dropping frame", zap.String("kind", kind))
			c.relay.observer.FrameReceived(kind, "dropped")
		}
	}
}

func (c *Connection) logReadError(err error) {
	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		c.logger.Debug("peer closed connection")
		return
	}
	c.logger.Warn("read failed", zap.Error(err))
}

// =============================================================================
// 🎙️ 帧处理
// =============================================================================

// handle 处理一帧。只有写回客户端失败时才返回错误。
func (c *Connection) handle(ctx context.Context, conn Conn, f Frame) error {
	if _, ok := c.relay.components.Registry.Get(c.id); !ok {
		c.logger.Warn("session no longer registered, closing connection")
		c.close(CloseSessionExpired)
		return nil
	}

	switch f.Kind {
	case FrameBinary:
		c.relay.observer.FrameReceived(f.Kind.String(), "accepted")
		return c.handleAudio(ctx, conn, f.Data)

	case FrameText:
		text, ok := parseText(f.Data)
		if !ok {
			c.logger.Warn("ignoring malformed text frame", zap.Int("bytes", len(f.Data)))
			c.relay.observer.FrameReceived(f.Kind.String(), "ignored")
			return nil
		}
		c.relay.observer.FrameReceived(f.Kind.String(), "accepted")

		ctx, end := c.startTurn(ctx, "text")
		outcome, err := c.respond(ctx, conn, text)
		end(outcome, err)
		return err
	}

	c.logger.Warn("ignoring unknown frame kind", zap.Int("kind", int(f.Kind)))
	c.relay.observer.FrameReceived(f.Kind.String(), "ignored")
	return nil
}

func (c *Connection) handleAudio(ctx context.Context, conn Conn, raw []byte) (err error) {
	ctx, end := c.startTurn(ctx, "audio")
	outcome := outcomeFailed
	defer func() { end(outcome, err) }()

	var waveform *audio.Waveform
	if stageErr := c.stage(ctx, "normalize", func(context.Context) (err error) {
		waveform, err = c.relay.components.Normalizer.Normalize(raw)
		return err
	}); stageErr != nil {
		return c.fail(ctx, conn, "normalize", stageErr)
	}

	var result *types.TranscriptionResult
	if stageErr := c.stage(ctx, "transcribe", func(ctx context.Context) (err error) {
		result, err = c.relay.components.Transcriber.Transcribe(ctx, waveform)
		return err
	}); stageErr != nil {
		return c.fail(ctx, conn, "transcribe", stageErr)
	}

	if err := c.send(ctx, conn, transcriptionMessage(result)); err != nil {
		return err
	}

	text := strings.TrimSpace(result.Text)
	if !result.IsFinal || text == "" {
		outcome = outcomeNoSpeech
		return nil
	}

	outcome, err = c.respond(ctx, conn, text)
	return err
}

// respond 执行 生成 → 合成 → 回复，期间处于 PROCESSING 状态
func (c *Connection) respond(ctx context.Context, conn Conn, text string) (string, error) {
	c.setState(StateProcessing)
	defer c.setState(StateAwaitingInput)

	var reply string
	if err := c.stage(ctx, "generate", func(ctx context.Context) (err error) {
		reply, err = c.relay.components.Generator.Generate(ctx, text, c.id)
		return err
	}); err != nil {
		return outcomeFailed, c.fail(ctx, conn, "generate", err)
	}

	var speech []byte
	if err := c.stage(ctx, "synthesize", func(ctx context.Context) (err error) {
		speech, err = c.relay.components.Synthesizer.Synthesize(ctx, reply)
		return err
	}); err != nil {
		return outcomeFailed, c.fail(ctx, conn, "synthesize", err)
	}

	msg := Message{Type: MessageResponse, Data: ResponseData{Text: reply, Audio: speech}}
	if err := c.send(ctx, conn, msg); err != nil {
		return outcomeFailed, err
	}
	return outcomeResponded, nil
}

// fail 记录阶段失败并回写 error 帧；连接正在关闭时不回写
func (c *Connection) fail(ctx context.Context, conn Conn, stage string, err error) error {
	if ctx.Err() != nil {
		c.logger.Debug("turn aborted", zap.String("stage", stage), zap.Error(err))
		return nil
	}
	c.logger.Warn("turn failed",
		zap.String("stage", stage),
		zap.String("code", string(types.GetErrorCode(err))),
		zap.Bool("retryable", types.IsRetryable(err)),
		zap.Error(err),
	)
	return c.send(ctx, conn, errorMessage(stage, err))
}

func (c *Connection) send(ctx context.Context, conn Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.relay.cfg.WriteTimeout)
	defer cancel()
	return conn.WriteJSON(ctx, msg)
}

// =============================================================================
// 🔭 Tracing
// =============================================================================

func (c *Connection) startTurn(ctx context.Context, source string) (context.Context, func(outcome string, err error)) {
	start := time.Now()
	ctx, span := c.relay.tracer.Start(ctx, "relay.turn", trace.WithAttributes(
		attribute.String("session.id", c.id),
		attribute.String("turn.source", source),
	))
	return ctx, func(outcome string, err error) {
		span.SetAttributes(attribute.String("turn.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.relay.observer.TurnCompleted(source, outcome, time.Since(start))
	}
}

func (c *Connection) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := c.relay.tracer.Start(ctx, "relay."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	c.relay.observer.StageObserved(name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e, ok := types.AsError(err); ok {
			span.SetAttributes(attribute.String("error.code", string(e.Code)))
		}
	}
	return err
}
