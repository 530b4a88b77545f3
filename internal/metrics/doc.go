// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、服务商调用、
对话中继与会话四个维度。

# 核心类型

  - Collector：持有 Counter、Histogram、Gauge 向量指标。构造时传入
    prometheus.Registerer，测试中可使用独立的 Registry。

# 主要能力

  - HTTP 指标：请求总数与耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - 服务商指标：按 component/provider 统计调用次数、耗时与结果
    (success/error/timeout)，以及 LLM token 用量。
  - 中继指标：活跃连接、连接时长、入站帧结果、对话轮次与各阶段
    耗时，阶段失败按错误码计数。
  - 会话指标：活跃会话 GaugeFunc 与空闲清理计数。
*/
package metrics
