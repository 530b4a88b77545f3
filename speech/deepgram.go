package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/voicerelay/internal/tlsutil"
)

// ErrNoAlternatives 表示 Deepgram 响应中没有可用的转写候选
var ErrNoAlternatives = errors.New("deepgram response has no alternatives")

// DeepgramProvider 使用 Deepgram 预录接口执行 STT
type DeepgramProvider struct {
	cfg    DeepgramConfig
	client *http.Client
}

// NewDeepgramProvider 创建 Deepgram STT 提供者
func NewDeepgramProvider(cfg DeepgramConfig) *DeepgramProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &DeepgramProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
	}
}

func (p *DeepgramProvider) Name() string { return "deepgram" }

type deepgramResponse struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
		Channels  int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language,omitempty"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// query 组装 /v1/listen 查询参数
func (p *DeepgramProvider) query(req *STTRequest) (url.Values, string) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	language := req.Language
	if language == "" {
		language = p.cfg.Language
	}

	params := url.Values{}
	params.Set("model", model)
	if language != "" {
		params.Set("language", language)
	}
	if p.cfg.Punctuate {
		params.Set("punctuate", "true")
	}
	if p.cfg.SmartFormat {
		params.Set("smart_format", "true")
	}
	if p.cfg.Diarize {
		params.Set("diarize", "true")
	}
	if p.cfg.InterimResults {
		params.Set("interim_results", "true")
	}

	// 原始 PCM 必须声明编码与采样参数
	if req.Encoding != "" {
		params.Set("encoding", req.Encoding)
		if req.SampleRate > 0 {
			params.Set("sample_rate", strconv.Itoa(req.SampleRate))
		}
		if req.Channels > 0 {
			params.Set("channels", strconv.Itoa(req.Channels))
		}
	}
	return params, model
}

// Transcribe 上传整段音频并返回第一个声道的首选结果
func (p *DeepgramProvider) Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("audio input is required")
	}

	params, model := p.query(req)
	endpoint := fmt.Sprintf("%s/v1/listen?%s", strings.TrimRight(p.cfg.BaseURL, "/"), params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Token "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepgram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Provider: p.Name(), StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	var dResp deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&dResp); err != nil {
		return nil, fmt.Errorf("failed to decode deepgram response: %w", err)
	}
	if len(dResp.Results.Channels) == 0 || len(dResp.Results.Channels[0].Alternatives) == 0 {
		return nil, ErrNoAlternatives
	}

	channel := dResp.Results.Channels[0]
	alt := channel.Alternatives[0]
	language := channel.DetectedLanguage
	if language == "" {
		language = params.Get("language")
	}

	return &STTResponse{
		Provider:   p.Name(),
		Model:      model,
		Text:       alt.Transcript,
		Language:   language,
		Confidence: alt.Confidence,
		Duration:   time.Duration(dResp.Metadata.Duration * float64(time.Second)),
		CreatedAt:  time.Now(),
	}, nil
}
