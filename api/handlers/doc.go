// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 VoiceRelay HTTP 端点的请求处理器实现。

# 核心类型

  - ConversationHandler  - GET /conversation，WebSocket 升级后交给 relay 驱动
  - HealthHandler        - /health（网关与凭证）、/healthz、/ready、/version
  - SessionStatsHandler  - /api/v1/sessions/stats
  - Response / ErrorInfo - 统一 JSON 响应结构
  - ResponseWriter       - 捕获状态码，透传 Hijack 以支持 WebSocket 升级

会话 ID 在升级响应的 X-Session-ID 头中返回。
*/
package handlers
