package speech

import "time"

// DeepgramConfig 配置 Deepgram 预录转写
type DeepgramConfig struct {
	APIKey         string        `json:"api_key" yaml:"api_key"`
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	Model          string        `json:"model,omitempty" yaml:"model,omitempty"` // nova-2
	Language       string        `json:"language,omitempty" yaml:"language,omitempty"`
	Punctuate      bool          `json:"punctuate,omitempty" yaml:"punctuate,omitempty"`
	SmartFormat    bool          `json:"smart_format,omitempty" yaml:"smart_format,omitempty"`
	Diarize        bool          `json:"diarize,omitempty" yaml:"diarize,omitempty"`
	InterimResults bool          `json:"interim_results,omitempty" yaml:"interim_results,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OpenAISTTConfig 配置 OpenAI Whisper
type OpenAISTTConfig struct {
	APIKey   string        `json:"api_key" yaml:"api_key"`
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	Model    string        `json:"model,omitempty" yaml:"model,omitempty"` // whisper-1
	Language string        `json:"language,omitempty" yaml:"language,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ElevenLabsConfig 配置 ElevenLabs TTS
type ElevenLabsConfig struct {
	APIKey          string        `json:"api_key" yaml:"api_key"`
	BaseURL         string        `json:"base_url" yaml:"base_url"`
	Model           string        `json:"model,omitempty" yaml:"model,omitempty"`
	VoiceID         string        `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	Stability       float64       `json:"stability" yaml:"stability"`
	SimilarityBoost float64       `json:"similarity_boost" yaml:"similarity_boost"`
	OutputFormat    string        `json:"output_format,omitempty" yaml:"output_format,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OpenAITTSConfig 配置 OpenAI TTS
type OpenAITTSConfig struct {
	APIKey         string        `json:"api_key" yaml:"api_key"`
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	Model          string        `json:"model,omitempty" yaml:"model,omitempty"` // tts-1, tts-1-hd
	Voice          string        `json:"voice,omitempty" yaml:"voice,omitempty"` // alloy, echo, fable, onyx, nova, shimmer
	ResponseFormat string        `json:"response_format,omitempty" yaml:"response_format,omitempty"`
	Speed          float64       `json:"speed,omitempty" yaml:"speed,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultDeepgramConfig 返回默认 Deepgram 配置
func DefaultDeepgramConfig() DeepgramConfig {
	return DeepgramConfig{
		BaseURL:     "https://api.deepgram.com",
		Model:       "nova-2",
		Language:    "en-US",
		Punctuate:   true,
		SmartFormat: true,
		Timeout:     120 * time.Second,
	}
}

// DefaultOpenAISTTConfig 返回默认 Whisper 配置
func DefaultOpenAISTTConfig() OpenAISTTConfig {
	return OpenAISTTConfig{
		BaseURL: "https://api.openai.com",
		Model:   "whisper-1",
		Timeout: 120 * time.Second,
	}
}

// DefaultElevenLabsConfig 返回默认 ElevenLabs 配置（Rachel）
func DefaultElevenLabsConfig() ElevenLabsConfig {
	return ElevenLabsConfig{
		BaseURL:         "https://api.elevenlabs.io",
		Model:           "eleven_monolingual_v1",
		VoiceID:         "21m00Tcm4TlvDq8ikWAM",
		Stability:       0.5,
		SimilarityBoost: 0.75,
		OutputFormat:    "mp3_44100_128",
		Timeout:         60 * time.Second,
	}
}

// DefaultOpenAITTSConfig 返回默认 OpenAI TTS 配置
func DefaultOpenAITTSConfig() OpenAITTSConfig {
	return OpenAITTSConfig{
		BaseURL:        "https://api.openai.com",
		Model:          "tts-1",
		Voice:          "alloy",
		ResponseFormat: "mp3",
		Speed:          1.0,
		Timeout:        60 * time.Second,
	}
}
