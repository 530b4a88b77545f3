package handlers

import (
	"net/http"

	"github.com/BaSui01/voicerelay/session"
)

// SessionStats 是 /api/v1/sessions/stats 的响应体
type SessionStats struct {
	ActiveSessions    int    `json:"active_sessions"`
	ActiveConnections int    `json:"active_connections"`
	IdleTimeout       string `json:"idle_timeout"`
}

// SessionStatsHandler 报告会话注册表状态
type SessionStatsHandler struct {
	registry    *session.Registry
	connections func() int
}

// NewSessionStatsHandler 创建会话统计端点；connections 可为 nil
func NewSessionStatsHandler(registry *session.Registry, connections func() int) *SessionStatsHandler {
	return &SessionStatsHandler{registry: registry, connections: connections}
}

func (h *SessionStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats := SessionStats{
		ActiveSessions: h.registry.ActiveCount(),
		IdleTimeout:    h.registry.Timeout().String(),
	}
	if h.connections != nil {
		stats.ActiveConnections = h.connections()
	}
	WriteSuccess(w, stats)
}
