// =============================================================================
// 📦 VoiceRelay 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("VOICERELAY").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/voicerelay/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 VoiceRelay 的完整配置结构
type Config struct {
	// Server HTTP / WebSocket 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Audio 音频归一化参数
	Audio AudioConfig `yaml:"audio" env:"AUDIO"`

	// SpeechRecognition 语音转写配置
	SpeechRecognition SpeechRecognitionConfig `yaml:"speech_recognition" env:"STT"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Voice 语音合成配置
	Voice VoiceConfig `yaml:"voice" env:"VOICE"`

	// Session 会话生命周期配置
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// History 会话历史存储配置
	History HistoryConfig `yaml:"history" env:"HISTORY"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个 IP 的 HTTP 请求速率限制
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源，空表示 *
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 单个 WebSocket 帧的最大字节数
	MaxFrameBytes int64 `yaml:"max_frame_bytes" env:"MAX_FRAME_BYTES"`
	// 每个连接的入站帧速率限制
	FrameRateLimit float64 `yaml:"frame_rate_limit" env:"FRAME_RATE_LIMIT"`
	FrameBurst     int     `yaml:"frame_burst" env:"FRAME_BURST"`
	// 同时打开的连接上限，<= 0 表示不限制
	MaxConnections int `yaml:"max_connections" env:"MAX_CONNECTIONS"`
}

// AudioConfig 音频配置
type AudioConfig struct {
	// 采样率 (Hz)
	SampleRate int `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 声道数: 1 或 2
	Channels int `yaml:"channels" env:"CHANNELS"`
	// 每次读取的采样块大小
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// 临时缓冲区大小
	BufferSize int `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

// SpeechRecognitionConfig 语音转写配置
type SpeechRecognitionConfig struct {
	// 默认 Provider: deepgram, openai
	DefaultProvider string `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	// 单次调用超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 各 Provider 参数
	Providers STTProviders `yaml:"providers" env:"PROVIDERS"`
}

// STTProviders 语音转写 Provider 参数
type STTProviders struct {
	Deepgram DeepgramConfig `yaml:"deepgram" env:"DEEPGRAM"`
	OpenAI   WhisperConfig  `yaml:"openai" env:"OPENAI"`
}

// DeepgramConfig Deepgram 参数
type DeepgramConfig struct {
	BaseURL        string `yaml:"base_url" env:"BASE_URL"`
	Model          string `yaml:"model" env:"MODEL"`
	Language       string `yaml:"language" env:"LANGUAGE"`
	InterimResults bool   `yaml:"interim_results" env:"INTERIM_RESULTS"`
	Punctuate      bool   `yaml:"punctuate" env:"PUNCTUATE"`
	Diarize        bool   `yaml:"diarize" env:"DIARIZE"`
	SmartFormat    bool   `yaml:"smart_format" env:"SMART_FORMAT"`
}

// WhisperConfig OpenAI Whisper 参数
type WhisperConfig struct {
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`
	Model    string `yaml:"model" env:"MODEL"`
	Language string `yaml:"language" env:"LANGUAGE"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// 默认 Provider
	DefaultProvider string `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 系统提示词
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// VoiceConfig 语音合成配置
type VoiceConfig struct {
	// 默认 Provider: elevenlabs, openai
	DefaultProvider string `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	// 单次调用超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 各 Provider 参数
	Providers TTSProviders `yaml:"providers" env:"PROVIDERS"`
}

// TTSProviders 语音合成 Provider 参数
type TTSProviders struct {
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs" env:"ELEVENLABS"`
	OpenAI     OpenAITTSConfig  `yaml:"openai" env:"OPENAI"`
}

// ElevenLabsConfig ElevenLabs 参数
type ElevenLabsConfig struct {
	BaseURL         string  `yaml:"base_url" env:"BASE_URL"`
	VoiceID         string  `yaml:"voice_id" env:"VOICE_ID"`
	ModelID         string  `yaml:"model_id" env:"MODEL_ID"`
	Stability       float64 `yaml:"stability" env:"STABILITY"`
	SimilarityBoost float64 `yaml:"similarity_boost" env:"SIMILARITY_BOOST"`
	OutputFormat    string  `yaml:"output_format" env:"OUTPUT_FORMAT"`
}

// OpenAITTSConfig OpenAI TTS 参数
type OpenAITTSConfig struct {
	BaseURL        string  `yaml:"base_url" env:"BASE_URL"`
	Model          string  `yaml:"model" env:"MODEL"`
	Voice          string  `yaml:"voice" env:"VOICE"`
	ResponseFormat string  `yaml:"response_format" env:"RESPONSE_FORMAT"`
	Speed          float64 `yaml:"speed" env:"SPEED"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	// 空闲超时，超过后会话被清理
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 清理周期
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// HistoryConfig 会话历史配置
type HistoryConfig struct {
	// 存储后端: memory, redis
	Backend string `yaml:"backend" env:"BACKEND"`
	// 保留的最大轮次数（user 与 assistant 各算一轮）
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// Redis key 前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "VOICERELAY",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
// 所有失败均返回 CONFIGURATION 错误
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, types.NewError(types.ErrConfiguration, "failed to load config from file").WithCause(err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, types.NewError(types.ErrConfiguration, "failed to load config from env").WithCause(err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			if types.IsCode(err, types.ErrConfiguration) {
				return nil, err
			}
			return nil, types.NewError(types.ErrConfiguration, "config validation failed").WithCause(err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 校验
// =============================================================================

// 已知的 Provider 名称
const (
	ProviderDeepgram   = "deepgram"
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
)

// Validate 验证配置，汇总全部问题后返回一个 CONFIGURATION 错误
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.MaxFrameBytes <= 0 {
		errs = append(errs, "max_frame_bytes must be positive")
	}

	if c.Audio.SampleRate <= 0 {
		errs = append(errs, "audio.sample_rate must be positive")
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		errs = append(errs, "audio.channels must be 1 or 2")
	}
	if c.Audio.ChunkSize <= 0 {
		errs = append(errs, "audio.chunk_size must be positive")
	}
	if c.Audio.BufferSize < c.Audio.ChunkSize {
		errs = append(errs, "audio.buffer_size must be >= chunk_size")
	}

	switch c.SpeechRecognition.DefaultProvider {
	case ProviderDeepgram, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Sprintf("unknown speech_recognition provider %q", c.SpeechRecognition.DefaultProvider))
	}
	if c.LLM.DefaultProvider != ProviderOpenAI {
		errs = append(errs, fmt.Sprintf("unknown llm provider %q", c.LLM.DefaultProvider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, "llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, "llm.max_tokens must be positive")
	}
	switch c.Voice.DefaultProvider {
	case ProviderElevenLabs:
		if c.Voice.Providers.ElevenLabs.VoiceID == "" {
			errs = append(errs, "voice.providers.elevenlabs.voice_id is required")
		}
	case ProviderOpenAI:
	default:
		errs = append(errs, fmt.Sprintf("unknown voice provider %q", c.Voice.DefaultProvider))
	}

	if c.Session.Timeout <= 0 {
		errs = append(errs, "session.timeout must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, "session.sweep_interval must be positive")
	}

	switch c.History.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unknown history backend %q", c.History.Backend))
	}
	if c.History.MaxTurns <= 0 || c.History.MaxTurns%2 != 0 {
		errs = append(errs, "history.max_turns must be a positive even number")
	}

	if len(errs) > 0 {
		return types.Errorf(types.ErrConfiguration, "config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
