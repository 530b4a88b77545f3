// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/voicerelay/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 服务商调用指标
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	llmTokensUsed           *prometheus.CounterVec

	// 对话中继指标
	connectionsActive  prometheus.Gauge
	connectionsTotal   prometheus.Counter
	connectionDuration prometheus.Histogram
	framesTotal        *prometheus.CounterVec
	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	stageDuration      *prometheus.HistogramVec
	stageErrors        *prometheus.CounterVec

	// 会话指标
	sessionsSwept prometheus.Counter

	registerer prometheus.Registerer
	namespace  string
	logger     *zap.Logger
}

// NewCollector 创建指标收集器；reg 为 nil 时注册到默认 Registerer
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		registerer: reg,
		namespace:  namespace,
		logger:     logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 服务商指标
	c.providerRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of speech/LLM provider calls",
		},
		[]string{"component", "provider", "status"}, // status: success, error, timeout
	)

	c.providerRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"component", "provider"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// 中继指标
	c.connectionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relay_connections_active",
		Help:      "Number of open conversation connections",
	})

	c.connectionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_connections_total",
		Help:      "Total number of conversation connections accepted",
	})

	c.connectionDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "relay_connection_duration_seconds",
		Help:      "Conversation connection lifetime in seconds",
		Buckets:   []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
	})

	c.framesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_frames_total",
			Help:      "Inbound frames by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: accepted, ignored, dropped
	)

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_turns_total",
			Help:      "Conversation turns by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"source"},
	)

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	c.stageErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_stage_errors_total",
			Help:      "Pipeline stage failures by error code",
		},
		[]string{"stage", "code"},
	)

	c.sessionsSwept = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_swept_total",
		Help:      "Sessions removed by the idle sweeper",
	})

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🎙️ 服务商指标记录
// =============================================================================

// ObserveProviderCall 记录一次服务商调用
func (c *Collector) ObserveProviderCall(component, provider string, duration time.Duration, err error) {
	c.providerRequestsTotal.WithLabelValues(component, provider, callStatus(err)).Inc()
	c.providerRequestDuration.WithLabelValues(component, provider).Observe(duration.Seconds())
}

// ObserveLLMUsage 记录 token 用量
func (c *Collector) ObserveLLMUsage(provider, model string, promptTokens, completionTokens int) {
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🔁 中继指标记录
// =============================================================================

// ConnectionOpened 记录新连接
func (c *Collector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed 记录连接关闭
func (c *Collector) ConnectionClosed(lifetime time.Duration) {
	c.connectionsActive.Dec()
	c.connectionDuration.Observe(lifetime.Seconds())
}

// FrameReceived 记录入站帧
func (c *Collector) FrameReceived(kind, outcome string) {
	c.framesTotal.WithLabelValues(kind, outcome).Inc()
}

// TurnCompleted 记录一轮对话
func (c *Collector) TurnCompleted(source, outcome string, duration time.Duration) {
	c.turnsTotal.WithLabelValues(source, outcome).Inc()
	c.turnDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// StageObserved 记录流水线阶段耗时与失败
func (c *Collector) StageObserved(stage string, duration time.Duration, err error) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		code := string(types.GetErrorCode(err))
		if code == "" {
			code = "UNKNOWN"
		}
		c.stageErrors.WithLabelValues(stage, code).Inc()
	}
}

// =============================================================================
// 🗂️ 会话指标记录
// =============================================================================

// RecordSessionsSwept 记录被清理的空闲会话数
func (c *Collector) RecordSessionsSwept(n int) {
	c.sessionsSwept.Add(float64(n))
}

// RegisterSessionGauge 注册活跃会话数 Gauge，按抓取时读取
func (c *Collector) RegisterSessionGauge(active func() int) error {
	return c.registerer.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "sessions_active",
		Help:      "Number of active conversation sessions",
	}, func() float64 { return float64(active()) }))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

func callStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
