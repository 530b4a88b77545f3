package speech

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ============================================================
// 语音转文本 (STT)
// ============================================================

// STTRequest 是一次预录音频转写请求，Audio 为完整的音频字节
type STTRequest struct {
	Audio       []byte `json:"-"`
	ContentType string `json:"content_type,omitempty"`
	Encoding    string `json:"encoding,omitempty"` // linear16, wav
	SampleRate  int    `json:"sample_rate,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	Model       string `json:"model,omitempty"`
	Language    string `json:"language,omitempty"`
}

// STTResponse 是转写结果
type STTResponse struct {
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Text       string        `json:"text"`
	Language   string        `json:"language,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// STTProvider 语音转文本接口
type STTProvider interface {
	Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error)
	Name() string
}

// ============================================================
// 文本转语音 (TTS)
// ============================================================

// TTSRequest 文本转语音请求
type TTSRequest struct {
	Text           string  `json:"text"`
	Model          string  `json:"model,omitempty"`
	Voice          string  `json:"voice,omitempty"`
	Speed          float64 `json:"speed,omitempty"`           // 0.25-4.0
	ResponseFormat string  `json:"response_format,omitempty"` // mp3, opus, aac, flac, wav, pcm
}

// TTSResponse 合成结果，音频已完整读入内存
type TTSResponse struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Audio     []byte    `json:"-"`
	Format    string    `json:"format"`
	CharCount int       `json:"char_count,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TTSProvider 文本转语音接口
type TTSProvider interface {
	Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error)
	Name() string
}

// StatusError 表示服务商返回了非 2xx 状态
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

// Retryable 限流和 5xx 可重试
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
