// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 VoiceRelay 服务端程序入口。

# 概述

cmd/voicerelay 是语音对话中继的可执行入口，负责组装会话注册表、
音频归一化、转写/生成/合成三个网关与中继状态机，并对外提供
WebSocket 会话端点、健康检查和 Prometheus 指标。

# 核心类型

  - Server     - 组装根，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware - HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、health、version
  - 启动顺序：.env → 配置加载与校验 → 日志 → 遥测 → 历史存储 →
    注册表与清理器 → 网关并发初始化 → 中继 → HTTP 与 Metrics 服务器
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、CORS、RateLimiter（基于 IP）、OTelTracing
  - 优雅关闭：信号监听 → 并行关闭服务器与所有会话连接 → 停止清理器 →
    关闭 Redis → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
