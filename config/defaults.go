// =============================================================================
// 📦 VoiceRelay 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultSystemPrompt 语音对话的默认系统提示词
const DefaultSystemPrompt = "You are a helpful AI assistant engaged in a voice conversation. Keep your responses concise and natural."

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:            DefaultServerConfig(),
		Audio:             DefaultAudioConfig(),
		SpeechRecognition: DefaultSpeechRecognitionConfig(),
		LLM:               DefaultLLMConfig(),
		Voice:             DefaultVoiceConfig(),
		Session:           DefaultSessionConfig(),
		History:           DefaultHistoryConfig(),
		Redis:             DefaultRedisConfig(),
		Log:               DefaultLogConfig(),
		Telemetry:         DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		MaxFrameBytes:   4 << 20,
		FrameRateLimit:  20,
		FrameBurst:      40,
		MaxConnections:  1000,
	}
}

// DefaultAudioConfig 返回默认音频配置
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate: 16000,
		Channels:   1,
		ChunkSize:  1024,
		BufferSize: 4096,
	}
}

// DefaultSpeechRecognitionConfig 返回默认转写配置
func DefaultSpeechRecognitionConfig() SpeechRecognitionConfig {
	return SpeechRecognitionConfig{
		DefaultProvider: ProviderDeepgram,
		Timeout:         30 * time.Second,
		Providers: STTProviders{
			Deepgram: DeepgramConfig{
				BaseURL:     "https://api.deepgram.com",
				Model:       "nova-2",
				Language:    "en-US",
				Punctuate:   true,
				SmartFormat: true,
			},
			OpenAI: WhisperConfig{
				BaseURL: "https://api.openai.com",
				Model:   "whisper-1",
			},
		},
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: ProviderOpenAI,
		BaseURL:         "https://api.openai.com",
		Model:           "gpt-3.5-turbo",
		SystemPrompt:    DefaultSystemPrompt,
		Temperature:     0.7,
		MaxTokens:       150,
		Timeout:         30 * time.Second,
	}
}

// DefaultVoiceConfig 返回默认语音合成配置
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		DefaultProvider: ProviderElevenLabs,
		Timeout:         30 * time.Second,
		Providers: TTSProviders{
			ElevenLabs: ElevenLabsConfig{
				BaseURL:         "https://api.elevenlabs.io",
				VoiceID:         "21m00Tcm4TlvDq8ikWAM",
				ModelID:         "eleven_monolingual_v1",
				Stability:       0.5,
				SimilarityBoost: 0.75,
				OutputFormat:    "mp3_44100_128",
			},
			OpenAI: OpenAITTSConfig{
				BaseURL:        "https://api.openai.com",
				Model:          "tts-1",
				Voice:          "alloy",
				ResponseFormat: "mp3",
				Speed:          1.0,
			},
		},
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Timeout:       time.Hour,
		SweepInterval: time.Minute,
	}
}

// DefaultHistoryConfig 返回默认会话历史配置
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend:   "memory",
		MaxTurns:  10,
		KeyPrefix: "voicerelay:",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "voicerelay",
		SampleRate:   0.1,
	}
}
