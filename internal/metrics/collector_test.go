package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/voicerelay/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("test", reg, zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("GET", "/health", 200, 10*time.Millisecond)
	c.RecordHTTPRequest("GET", "/health", 503, 10*time.Millisecond)
	c.RecordHTTPRequest("GET", "/health", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/health", "5xx")))
}

func TestCollector_ObserveProviderCall(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveProviderCall("transcriber", "deepgram", 200*time.Millisecond, nil)
	c.ObserveProviderCall("transcriber", "deepgram", time.Second, context.DeadlineExceeded)
	c.ObserveProviderCall("synthesizer", "elevenlabs", time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerRequestsTotal.WithLabelValues("transcriber", "deepgram", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerRequestsTotal.WithLabelValues("transcriber", "deepgram", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerRequestsTotal.WithLabelValues("synthesizer", "elevenlabs", "error")))
}

func TestCollector_ObserveLLMUsage(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveLLMUsage("openai", "gpt-3.5-turbo", 100, 40)
	c.ObserveLLMUsage("openai", "gpt-3.5-turbo", 20, 10)

	assert.Equal(t, 120.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("openai", "gpt-3.5-turbo", "prompt")))
	assert.Equal(t, 50.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("openai", "gpt-3.5-turbo", "completion")))
}

func TestCollector_RelayMetrics(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed(3 * time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsTotal))

	c.FrameReceived("binary", "accepted")
	c.FrameReceived("text", "ignored")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesTotal.WithLabelValues("text", "ignored")))

	c.TurnCompleted("audio", "responded", time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("audio", "responded")))

	c.StageObserved("generate", time.Second, types.NewError(types.ErrLLM, "down"))
	c.StageObserved("generate", time.Second, nil)
	c.StageObserved("normalize", time.Millisecond, errors.New("plain"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageErrors.WithLabelValues("generate", "LLM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageErrors.WithLabelValues("normalize", "UNKNOWN")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.stageDuration))
}

func TestCollector_SessionMetrics(t *testing.T) {
	c, reg := newTestCollector(t)

	active := 3
	require.NoError(t, c.RegisterSessionGauge(func() int { return active }))
	c.RecordSessionsSwept(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	var gauge float64
	for _, f := range families {
		if f.GetName() == "test_sessions_active" {
			gauge = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 3.0, gauge)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsSwept))

	// 重复注册返回错误而不是 panic
	assert.Error(t, c.RegisterSessionGauge(func() int { return 0 }))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusCode(tt.code))
	}
}
