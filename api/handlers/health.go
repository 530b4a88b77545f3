package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/voicerelay/gateway"
	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler 健康检查处理器
type HealthHandler struct {
	logger  *zap.Logger
	version string

	mu          sync.RWMutex
	checks      []HealthCheck
	components  []ComponentReporter
	credentials func() []string
}

// HealthCheck 就绪检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// ComponentReporter 报告下游网关的初始化状态
type ComponentReporter interface {
	Status() gateway.ComponentStatus
}

// ServiceHealthResponse 健康状态响应
type ServiceHealthResponse struct {
	Status             string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp          time.Time              `json:"timestamp"`
	Version            string                 `json:"version,omitempty"`
	Checks             map[string]CheckResult `json:"checks,omitempty"`
	MissingCredentials []string               `json:"missing_credentials,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status   string `json:"status"` // "pass", "fail"
	Provider string `json:"provider,omitempty"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		version: version,
	}
}

// RegisterCheck 注册就绪检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// RegisterComponent 注册需要在 /health 中报告的网关
func (h *HealthHandler) RegisterComponent(c ComponentReporter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components = append(h.components, c)
}

// SetCredentialCheck 设置缺失凭证的探测函数，返回缺失的环境变量名
func (h *HealthHandler) SetCredentialCheck(missing func() []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.credentials = missing
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求。
// 所有网关已初始化且凭证齐全时返回 200，否则 503 并列出不健康的组件。
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	components := append([]ComponentReporter(nil), h.components...)
	credentials := h.credentials
	h.mu.RUnlock()

	status := ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(components)),
	}

	healthy := true
	for _, c := range components {
		s := c.Status()
		result := CheckResult{Status: "pass", Provider: s.Provider}
		if !s.Initialized {
			healthy = false
			result.Status = "fail"
			result.Message = "not initialized"
			if s.Error != "" {
				result.Message = s.Error
			}
		}
		status.Checks[s.Name] = result
	}

	if credentials != nil {
		if missing := credentials(); len(missing) > 0 {
			healthy = false
			sort.Strings(missing)
			status.MissingCredentials = missing
		}
	}

	if !healthy {
		status.Status = "unhealthy"
		h.logger.Warn("service unhealthy",
			zap.Any("checks", status.Checks),
			zap.Strings("missing_credentials", status.MissingCredentials),
		)
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleHealthz 处理 /healthz 请求（存活探针，只检查进程在运行）
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// HandleReady 处理 /ready 请求（就绪检查）
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	status := ServiceHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	allHealthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{
			Status:  "pass",
			Latency: latency.String(),
		}
		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			allHealthy = false

			h.logger.Warn("readiness check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}
		status.Checks[check.Name()] = result
	}

	if !allHealthy {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion 处理 /version 请求
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// =============================================================================
// 🔧 内置检查
// =============================================================================

// PingCheck 以 ping 函数实现的就绪检查（Redis 等）
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck 创建就绪检查
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

func (c *PingCheck) Name() string { return c.name }

func (c *PingCheck) Check(ctx context.Context) error { return c.ping(ctx) }
