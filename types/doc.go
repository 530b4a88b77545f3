// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 voicerelay 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 session、history、gateway、
relay 等上层模块提供统一的类型契约。

# 核心类型

  - Error / ErrorCode   - 结构化错误体系，覆盖音频、转写、LLM、合成、配置、会话与未初始化
  - Turn / Role         - 会话历史中的 (role, text) 轮次
  - TranscriptionResult - 单次转写结果（文本、是否最终、置信度、语言）

# 主要能力

  - Context 传播：WithSessionID / WithRequestID
  - 错误工具链：AsError / IsCode / GetErrorCode / IsRetryable
*/
package types
