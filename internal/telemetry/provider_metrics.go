package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/BaSui01/voicerelay/gateway"

// ProviderMetrics 以 OTel 指标记录服务商调用，与 Prometheus 收集器并行导出到 OTLP。
// 实现 gateway.Observer。
type ProviderMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	tokens   metric.Int64Counter
}

// NewProviderMetrics 在 mp 上创建服务商调用相关的指标
func NewProviderMetrics(mp metric.MeterProvider) (*ProviderMetrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &ProviderMetrics{}

	var err error
	m.calls, err = meter.Int64Counter("voicerelay.provider.calls",
		metric.WithDescription("Speech and LLM provider calls"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram("voicerelay.provider.duration",
		metric.WithDescription("Provider call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2, 5, 10, 30))
	if err != nil {
		return nil, err
	}

	m.tokens, err = meter.Int64Counter("voicerelay.llm.tokens",
		metric.WithDescription("Tokens consumed by the response generator"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveProviderCall 记录一次服务商调用
func (m *ProviderMetrics) ObserveProviderCall(component, provider string, duration time.Duration, err error) {
	status := "success"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}

	ctx := context.Background()
	componentAttr := attribute.String("component", component)
	providerAttr := attribute.String("provider", provider)
	m.calls.Add(ctx, 1, metric.WithAttributes(componentAttr, providerAttr, attribute.String("status", status)))
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(componentAttr, providerAttr))
}

// ObserveLLMUsage 记录 token 用量
func (m *ProviderMetrics) ObserveLLMUsage(provider, model string, promptTokens, completionTokens int) {
	ctx := context.Background()
	providerAttr := attribute.String("provider", provider)
	modelAttr := attribute.String("model", model)
	m.tokens.Add(ctx, int64(promptTokens), metric.WithAttributes(providerAttr, modelAttr, attribute.String("type", "prompt")))
	m.tokens.Add(ctx, int64(completionTokens), metric.WithAttributes(providerAttr, modelAttr, attribute.String("type", "completion")))
}
