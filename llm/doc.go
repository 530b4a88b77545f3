// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义语音对话所需的聊天补全契约与 OpenAI 兼容客户端。

# 核心接口

  - Provider：Completion、HealthCheck 与 Name。
  - ChatRequest / ChatResponse：只保留对话回复所需的字段。
  - Error：带 Code、HTTPStatus 与 Retryable 的上游错误。

# 错误映射

MapHTTPError 将 HTTP 状态码映射为统一错误码：401/403 不可重试，
429、502、503、504、529 可重试，400 中包含 quota/credit/limit
关键字时视为额度耗尽。ReadErrorMessage 优先解析
{"error":{"message":...}} 结构，失败时回退为原始文本。
*/
package llm
