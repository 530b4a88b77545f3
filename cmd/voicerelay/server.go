package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/voicerelay/api/handlers"
	"github.com/BaSui01/voicerelay/audio"
	"github.com/BaSui01/voicerelay/config"
	"github.com/BaSui01/voicerelay/gateway"
	"github.com/BaSui01/voicerelay/history"
	"github.com/BaSui01/voicerelay/internal/cache"
	"github.com/BaSui01/voicerelay/internal/metrics"
	"github.com/BaSui01/voicerelay/internal/server"
	"github.com/BaSui01/voicerelay/internal/telemetry"
	"github.com/BaSui01/voicerelay/internal/tlsutil"
	"github.com/BaSui01/voicerelay/relay"
	"github.com/BaSui01/voicerelay/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// historyCleanupTimeout 会话结束时清理对话历史的最长时间
const historyCleanupTimeout = 5 * time.Second

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 VoiceRelay 的组装根：持有所有组件并负责启动与关闭顺序
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// Prometheus 注册与抓取，默认使用全局 registry
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	// 额外的网关选项（注入服务商实现）
	gatewayOpts []gateway.Option

	telemetry *telemetry.Providers
	collector *metrics.Collector
	cache     *cache.Manager
	history   history.Store

	registry    *session.Registry
	janitor     *session.Janitor
	transcriber *gateway.Transcriber
	generator   *gateway.ResponseGenerator
	synthesizer *gateway.Synthesizer
	relay       *relay.Relay

	healthHandler *handlers.HealthHandler

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc

	shutdownOnce sync.Once
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 按依赖顺序初始化组件并启动 HTTP 与 Metrics 服务器。
// 任一网关初始化失败都会返回错误。
func (s *Server) Start(ctx context.Context) error {
	// 1. 遥测（失败时降级为 noop）
	providers, err := telemetry.Init(ctx, s.cfg.Telemetry, Version, s.logger)
	if err != nil {
		s.logger.Warn("telemetry init failed, tracing disabled", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	s.telemetry = providers

	// 2. 指标收集器
	s.collector = metrics.NewCollector("voicerelay", s.registerer, s.logger)

	// 3. 对话历史存储
	if err := s.initHistory(ctx); err != nil {
		return fmt.Errorf("failed to init history store: %w", err)
	}

	// 4. 会话注册表与清理器
	s.initSessions()

	// 5. 网关
	if err := s.initGateways(ctx); err != nil {
		return fmt.Errorf("failed to init gateways: %w", err)
	}

	// 6. 中继
	if err := s.initRelay(); err != nil {
		return fmt.Errorf("failed to init relay: %w", err)
	}

	// 7. HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 8. Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.String("metrics_addr", s.metricsManager.Addr()),
		zap.String("history_backend", s.cfg.History.Backend),
		zap.Bool("telemetry_enabled", s.telemetry.Enabled()),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initHistory(ctx context.Context) error {
	switch s.cfg.History.Backend {
	case "redis":
		manager, err := cache.NewManager(ctx, cache.Config{
			Addr:                s.cfg.Redis.Addr,
			Password:            s.cfg.Redis.Password,
			DB:                  s.cfg.Redis.DB,
			PoolSize:            s.cfg.Redis.PoolSize,
			MinIdleConns:        s.cfg.Redis.MinIdleConns,
			DialTimeout:         5 * time.Second,
			HealthCheckInterval: 30 * time.Second,
		}, s.logger)
		if err != nil {
			return err
		}
		s.cache = manager
		// 会话结束时会主动删除；TTL 兜底进程异常退出的情况
		ttl := s.cfg.Session.Timeout + s.cfg.Session.SweepInterval
		s.history = history.NewRedisStore(manager, s.cfg.History.KeyPrefix, ttl, s.logger)
	default:
		s.history = history.NewMemoryStore()
	}
	s.logger.Info("History store initialized", zap.String("backend", s.cfg.History.Backend))
	return nil
}

func (s *Server) initSessions() {
	s.registry = session.NewRegistry(s.cfg.Session.Timeout, session.WithLogger(s.logger))
	if err := s.collector.RegisterSessionGauge(s.registry.ActiveCount); err != nil {
		s.logger.Warn("failed to register session gauge", zap.Error(err))
	}

	s.janitor = session.NewJanitor(s.registry, s.cfg.Session.SweepInterval, s.logger, s.collector.RecordSessionsSwept)
	s.janitor.Start(context.Background())
}

// initGateways 并发初始化三个网关，任一失败即返回
func (s *Server) initGateways(ctx context.Context) error {
	creds := config.LoadCredentials()

	// Prometheus 与 OTLP 同时记录服务商调用
	var observer gateway.Observer = s.collector
	if pm, err := telemetry.NewProviderMetrics(s.telemetry.MeterProvider()); err != nil {
		s.logger.Warn("failed to create otel provider metrics", zap.Error(err))
	} else {
		observer = gateway.Observers(s.collector, pm)
	}
	opts := append([]gateway.Option{gateway.WithObserver(observer)}, s.gatewayOpts...)

	s.transcriber = gateway.NewTranscriber(s.cfg.SpeechRecognition, creds, s.logger, opts...)
	s.generator = gateway.NewResponseGenerator(s.cfg.LLM, s.cfg.History.MaxTurns, s.history, creds, s.logger, opts...)
	s.synthesizer = gateway.NewSynthesizer(s.cfg.Voice, creds, s.logger, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.transcriber.Initialize(gctx) })
	g.Go(func() error { return s.generator.Initialize(gctx) })
	g.Go(func() error { return s.synthesizer.Initialize(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	// 会话结束后丢弃其对话历史
	generator := s.generator
	logger := s.logger
	s.registry.OnEnd(func(id string, reason session.EndReason) {
		ctx, cancel := context.WithTimeout(context.Background(), historyCleanupTimeout)
		defer cancel()
		if err := generator.ClearHistory(ctx, id); err != nil {
			logger.Warn("failed to clear conversation history",
				zap.String("session_id", id),
				zap.String("reason", string(reason)),
				zap.Error(err))
		}
	})
	return nil
}

func (s *Server) initRelay() error {
	a := s.cfg.Audio
	r, err := relay.New(relay.Components{
		Registry:    s.registry,
		Normalizer:  audio.NewNormalizer(a.SampleRate, a.Channels, a.ChunkSize, a.BufferSize),
		Transcriber: s.transcriber,
		Generator:   s.generator,
		Synthesizer: s.synthesizer,
	}, relay.Config{
		FrameRateLimit: s.cfg.Server.FrameRateLimit,
		FrameBurst:     s.cfg.Server.FrameBurst,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
	}, s.logger,
		relay.WithObserver(s.collector),
		relay.WithTracer(s.telemetry.TracerProvider().Tracer("github.com/BaSui01/voicerelay/relay")),
	)
	if err != nil {
		return err
	}
	s.relay = r
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 构建路由与中间件链
func (s *Server) routes(rateLimiterCtx context.Context) http.Handler {
	s.healthHandler = handlers.NewHealthHandler(Version, s.logger)
	s.healthHandler.RegisterComponent(s.transcriber)
	s.healthHandler.RegisterComponent(s.generator)
	s.healthHandler.RegisterComponent(s.synthesizer)

	required := s.cfg.RequiredCredentials()
	s.healthHandler.SetCredentialCheck(func() []string {
		return config.LoadCredentials().Missing(required)
	})
	if s.cache != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", s.cache.Ping))
	}

	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 会话端点
	// ========================================
	mux.Handle("/conversation", handlers.NewConversationHandler(s.relay, handlers.ConversationConfig{
		OriginPatterns: s.cfg.Server.CORSAllowedOrigins,
		MaxFrameBytes:  s.cfg.Server.MaxFrameBytes,
	}, s.logger))
	mux.Handle("/api/v1/sessions/stats", handlers.NewSessionStatsHandler(s.registry, s.relay.ActiveConnections))

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		OTelTracing(s.telemetry.TracerProvider()),
	)
}

func (s *Server) startHTTPServer() error {
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	serverConfig := server.Config{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:    1 << 20,
		MaxConnections:    s.cfg.Server.MaxConnections,
		ShutdownTimeout:   s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager("http", s.routes(rateLimiterCtx), serverConfig, s.logger)

	// WebSocket 连接已被劫持，需要在 Shutdown 时由中继关闭
	s.httpManager.RegisterOnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.relay.Shutdown(ctx); err != nil {
			s.logger.Warn("relay shutdown incomplete", zap.Error(err))
		}
	})

	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{Registry: s.registerer}))

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager("metrics", mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞直到 ctx 结束或任一服务器异步失败
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-s.httpManager.Errors():
		return fmt.Errorf("http server: %w", err)
	case err := <-s.metricsManager.Errors():
		return fmt.Errorf("metrics server: %w", err)
	}
}

// Shutdown 优雅关闭所有服务，可重复调用
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 1. 并行关闭服务器与中继连接
	var g errgroup.Group
	if s.httpManager != nil {
		g.Go(func() error { return s.httpManager.Shutdown(ctx) })
	}
	if s.metricsManager != nil {
		g.Go(func() error { return s.metricsManager.Shutdown(ctx) })
	}
	if s.relay != nil {
		g.Go(func() error { return s.relay.Shutdown(ctx) })
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}

	// 2. 停止后台任务
	if s.janitor != nil {
		s.janitor.Stop()
	}
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 3. 关闭 Redis 连接
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("cache shutdown error", zap.Error(err))
		}
	}

	// 4. 释放服务商 HTTP 空闲连接
	tlsutil.CloseIdleConnections()

	// 5. 刷新遥测数据
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
