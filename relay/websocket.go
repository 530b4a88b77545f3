package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/voicerelay/internal/pool"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// frameBuffers 复用出站帧的编码缓冲区；超过 1MB 的缓冲区（大段合成音频）不回收
var frameBuffers = pool.NewBufferPool(4<<10, 1<<20)

// WebSocketConn 将 coder/websocket 连接适配为 Conn 接口。
// 写操作通过 mutex 串行化；Close 可与读写并发调用。
type WebSocketConn struct {
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex // 保护写操作
	closed atomic.Bool
}

// NewWebSocketConn 从已建立的 WebSocket 连接创建适配器
func NewWebSocketConn(conn *websocket.Conn, logger *zap.Logger) *WebSocketConn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketConn{
		conn:   conn,
		logger: logger.With(zap.String("component", "ws_conn")),
	}
}

// Read 读取一条完整消息。对端关闭或本端已关闭时返回包装了 ErrClosed 的错误。
func (w *WebSocketConn) Read(ctx context.Context) (Frame, error) {
	if w.closed.Load() {
		return Frame{}, ErrClosed
	}

	typ, data, err := w.conn.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status != -1 {
			return Frame{}, fmt.Errorf("%w: status=%d", ErrClosed, status)
		}
		return Frame{}, fmt.Errorf("websocket read: %w", err)
	}

	switch typ {
	case websocket.MessageBinary:
		return Frame{Kind: FrameBinary, Data: data}, nil
	case websocket.MessageText:
		return Frame{Kind: FrameText, Data: data}, nil
	}
	return Frame{Data: data}, nil
}

// WriteJSON 将 v 序列化为 JSON 并以文本消息发送
func (w *WebSocketConn) WriteJSON(ctx context.Context, v any) error {
	buf := frameBuffers.Get()
	defer frameBuffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return ErrClosed
	}
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Close 以与 reason 对应的关闭码关闭连接，重复调用返回 nil
func (w *WebSocketConn) Close(reason CloseReason) error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}

	w.logger.Debug("closing websocket", zap.String("reason", string(reason)))
	return w.conn.Close(closeStatus(reason), string(reason))
}

func closeStatus(reason CloseReason) websocket.StatusCode {
	switch reason {
	case CloseGoingAway:
		return websocket.StatusGoingAway
	case CloseSessionExpired:
		return websocket.StatusPolicyViolation
	case CloseInternalError:
		return websocket.StatusInternalError
	}
	return websocket.StatusNormalClosure
}
