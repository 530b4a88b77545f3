package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/voicerelay/config"
	"github.com/BaSui01/voicerelay/llm"
	"github.com/BaSui01/voicerelay/speech"
	"github.com/BaSui01/voicerelay/types"
	"go.uber.org/zap"
)

// ComponentStatus 是单个网关的初始化状态，供健康检查按组件汇报
type ComponentStatus struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Initialized bool   `json:"initialized"`
	Error       string `json:"error,omitempty"`
}

// Component 是三类网关的公共能力
type Component interface {
	Initialize(ctx context.Context) error
	Status() ComponentStatus
}

// Observer 接收服务商调用的耗时与结果
type Observer interface {
	ObserveProviderCall(component, provider string, duration time.Duration, err error)
	ObserveLLMUsage(provider, model string, promptTokens, completionTokens int)
}

type nopObserver struct{}

func (nopObserver) ObserveProviderCall(string, string, time.Duration, error) {}
func (nopObserver) ObserveLLMUsage(string, string, int, int)                  {}

// Observers 将每次观测依次转发给所有非 nil 的观察者
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) ObserveProviderCall(component, provider string, d time.Duration, err error) {
	for _, o := range m {
		o.ObserveProviderCall(component, provider, d, err)
	}
}

func (m multiObserver) ObserveLLMUsage(provider, model string, prompt, completion int) {
	for _, o := range m {
		o.ObserveLLMUsage(provider, model, prompt, completion)
	}
}

// =============================================================================
// 🔧 公共状态
// =============================================================================

// state 保存网关的初始化状态，读多写少
type state struct {
	name     string
	provider string
	code     types.ErrorCode
	timeout  time.Duration
	creds    config.Credentials
	logger   *zap.Logger
	observer Observer

	mu          sync.RWMutex
	initialized bool
	initErr     error
}

func (s *state) init(name, provider string, code types.ErrorCode, timeout time.Duration, creds config.Credentials, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.name = name
	s.provider = provider
	s.code = code
	s.timeout = timeout
	s.creds = creds
	s.logger = logger.With(zap.String("component", name), zap.String("provider", provider))
	s.observer = nopObserver{}
}

// Status 返回当前初始化状态
func (s *state) Status() ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := ComponentStatus{Name: s.name, Provider: s.provider, Initialized: s.initialized}
	if s.initErr != nil {
		st.Error = s.initErr.Error()
	}
	return st
}

// apiKey 检查凭证是否存在；缺失时返回 CONFIGURATION 错误
func (s *state) apiKey() (string, error) {
	env := config.CredentialEnv(s.provider)
	if env == "" {
		return "", types.Errorf(types.ErrConfiguration, "unsupported %s provider %q", s.name, s.provider).
			WithProvider(s.provider).WithStage("initialize")
	}
	key := s.creds.Lookup(env)
	if key == "" {
		return "", types.Errorf(types.ErrConfiguration, "%s is not set", env).
			WithProvider(s.provider).WithStage("initialize")
	}
	return key, nil
}

func (s *state) finishInit(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.initialized = false
		s.initErr = err
		s.logger.Error("initialization failed", zap.Error(err))
		return err
	}
	s.initialized = true
	s.initErr = nil
	s.logger.Info("initialized")
	return nil
}

func (s *state) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return types.Errorf(types.ErrNotInitialized, "%s is not initialized", s.name).WithProvider(s.provider)
	}
	return nil
}

// withTimeout 为单次服务商调用设置截止时间
func (s *state) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// wrap 将服务商错误归类为本网关的错误码。
// 超时与限流/5xx 标记为可重试；调用方取消不可重试。
func (s *state) wrap(ctx context.Context, stage string, err error) *types.Error {
	if te, ok := types.AsError(err); ok && te.Code == s.code {
		return te
	}

	retryable := false
	msg := fmt.Sprintf("%s call failed", s.provider)

	var statusErr *speech.StatusError
	var llmErr *llm.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		retryable = true
		msg = fmt.Sprintf("%s call timed out after %s", s.provider, s.timeout)
	case errors.Is(err, context.Canceled):
		msg = fmt.Sprintf("%s call canceled", s.provider)
	case errors.As(err, &statusErr):
		retryable = statusErr.Retryable()
	case errors.As(err, &llmErr):
		retryable = llmErr.Retryable
		if llmErr.Code == llm.ErrUpstreamTimeout {
			msg = fmt.Sprintf("%s call timed out", s.provider)
		}
	}

	return types.NewError(s.code, msg).
		WithCause(err).
		WithStage(stage).
		WithProvider(s.provider).
		WithRetryable(retryable)
}
