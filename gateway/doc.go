/*
包 gateway 封装三个服务商调用契约：转写 (Transcriber)、回复生成
(ResponseGenerator) 与语音合成 (Synthesizer)。

# 生命周期

每个网关先 Initialize：凭证缺失或服务商未知时返回 CONFIGURATION
错误，并通过 Status 按组件暴露给健康检查。初始化完成前的调用返回
NOT_INITIALIZED。

# 错误

服务商失败统一映射为 TRANSCRIPTION、LLM 或 VOICE_SYNTHESIS。
每次调用都有独立超时，超时、429 与 5xx 标记为 Retryable；网关
本身不重试。
*/
package gateway
