package handlers

import (
	"net/http"
	"time"

	"github.com/BaSui01/voicerelay/relay"
	"github.com/BaSui01/voicerelay/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// SessionHeader 在升级响应中返回服务端分配的会话 ID
const SessionHeader = "X-Session-ID"

// ConversationConfig 会话端点配置
type ConversationConfig struct {
	// OriginPatterns 允许的 Origin 主机模式，"*" 表示任意来源
	OriginPatterns []string
	// MaxFrameBytes 单条入站消息的最大字节数
	MaxFrameBytes int64
}

// ConversationHandler 将 WebSocket 连接交给 Relay 驱动
type ConversationHandler struct {
	relay  *relay.Relay
	cfg    ConversationConfig
	logger *zap.Logger
}

// NewConversationHandler 创建会话端点
func NewConversationHandler(r *relay.Relay, cfg ConversationConfig, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		relay:  r,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "conversation_handler")),
	}
}

// ServeHTTP 处理 GET /conversation：登记会话、升级连接并运行状态机直到断开
func (h *ConversationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.relay.Open()
	if err != nil {
		apiErr, ok := types.AsError(err)
		if !ok {
			apiErr = types.NewError(types.ErrSession, "failed to open session").WithCause(err)
		}
		WriteError(w, r, apiErr, h.logger)
		return
	}
	w.Header().Set(SessionHeader, conn.SessionID())

	// 长连接不受 HTTP 服务器读写超时约束
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		// Accept 已写出错误响应
		h.logger.Warn("websocket upgrade failed",
			zap.String("session_id", conn.SessionID()),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		conn.Close()
		return
	}
	if h.cfg.MaxFrameBytes > 0 {
		ws.SetReadLimit(h.cfg.MaxFrameBytes)
	}

	ctx := r.Context()
	if requestID, ok := types.RequestID(ctx); ok {
		h.logger.Debug("conversation started",
			zap.String("session_id", conn.SessionID()),
			zap.String("request_id", requestID),
		)
	}

	if err := conn.Serve(ctx, relay.NewWebSocketConn(ws, h.logger)); err != nil {
		h.logger.Warn("conversation ended with error",
			zap.String("session_id", conn.SessionID()),
			zap.Error(err),
		)
	}
}
