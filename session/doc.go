// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package session 管理语音对话会话的生命周期。

# 概述

Registry 是会话状态的唯一写入方：创建、查询（刷新最近访问时间）、
结束以及按空闲超时清理。查询未命中通过 (nil, false) 表达，不返回错误。

# 并发模型

会话按 ID 哈希分到固定数量的分片，每个分片一把锁：
同一 ID 的操作串行，不同分片上的操作完全并发。

# 清理

Janitor 按配置周期调用 Sweep；会话被移除后触发 OnEnd 回调，
上层借此清除该会话的对话历史。
*/
package session
