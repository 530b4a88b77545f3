package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/voicerelay/audio"
	"github.com/BaSui01/voicerelay/config"
	"github.com/BaSui01/voicerelay/speech"
	"github.com/BaSui01/voicerelay/types"
	"go.uber.org/zap"
)

// Transcriber 是转写网关：归一化波形 → TranscriptionResult。
// 每次调用独立，不在调用之间缓存任何结果。
type Transcriber struct {
	state
	cfg      config.SpeechRecognitionConfig
	injected speech.STTProvider

	clientMu sync.RWMutex
	client   speech.STTProvider
}

// NewTranscriber 创建转写网关；在 Initialize 成功之前调用 Transcribe 返回 NOT_INITIALIZED
func NewTranscriber(cfg config.SpeechRecognitionConfig, creds config.Credentials, logger *zap.Logger, opts ...Option) *Transcriber {
	o := buildOptions(opts)
	t := &Transcriber{cfg: cfg, injected: o.stt}
	t.init("transcriber", cfg.DefaultProvider, types.ErrTranscription, cfg.Timeout, creds, logger)
	t.observer = o.observer
	return t
}

// Initialize 校验凭证并构造服务商客户端
func (t *Transcriber) Initialize(ctx context.Context) error {
	key, err := t.apiKey()
	if err != nil {
		return t.finishInit(err)
	}

	provider := t.injected
	if provider == nil {
		switch t.provider {
		case config.ProviderDeepgram:
			dg := t.cfg.Providers.Deepgram
			provider = speech.NewDeepgramProvider(speech.DeepgramConfig{
				APIKey:         key,
				BaseURL:        dg.BaseURL,
				Model:          dg.Model,
				Language:       dg.Language,
				Punctuate:      dg.Punctuate,
				SmartFormat:    dg.SmartFormat,
				Diarize:        dg.Diarize,
				InterimResults: dg.InterimResults,
				Timeout:        t.timeout,
			})
		case config.ProviderOpenAI:
			wh := t.cfg.Providers.OpenAI
			provider = speech.NewOpenAISTTProvider(speech.OpenAISTTConfig{
				APIKey:   key,
				BaseURL:  wh.BaseURL,
				Model:    wh.Model,
				Language: wh.Language,
				Timeout:  t.timeout,
			})
		default:
			return t.finishInit(types.Errorf(types.ErrConfiguration,
				"unsupported speech recognition provider %q", t.provider).WithStage("initialize"))
		}
	}

	t.clientMu.Lock()
	t.client = provider
	t.clientMu.Unlock()
	return t.finishInit(nil)
}

func (t *Transcriber) language() string {
	switch t.provider {
	case config.ProviderDeepgram:
		return t.cfg.Providers.Deepgram.Language
	case config.ProviderOpenAI:
		return t.cfg.Providers.OpenAI.Language
	}
	return ""
}

// request 按服务商选择上传编码：Deepgram 用 linear16，Whisper 用 WAV
func (t *Transcriber) request(w *audio.Waveform) *speech.STTRequest {
	if t.provider == config.ProviderOpenAI {
		return &speech.STTRequest{
			Audio:       w.WAV(),
			ContentType: "audio/wav",
			Encoding:    "wav",
			SampleRate:  w.SampleRate,
			Channels:    w.Channels,
		}
	}
	return &speech.STTRequest{
		Audio:       w.PCM16(),
		ContentType: "application/octet-stream",
		Encoding:    "linear16",
		SampleRate:  w.SampleRate,
		Channels:    max(w.Channels, 1),
	}
}

// Transcribe 转写一段完整话语。预录模式下结果总是 final。
func (t *Transcriber) Transcribe(ctx context.Context, w *audio.Waveform) (*types.TranscriptionResult, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	if w == nil || len(w.Samples) == 0 {
		return nil, types.NewError(types.ErrTranscription, "waveform is empty").
			WithStage("transcribe").WithProvider(t.provider)
	}

	t.clientMu.RLock()
	provider := t.client
	t.clientMu.RUnlock()

	callCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := provider.Transcribe(callCtx, t.request(w))
	t.observer.ObserveProviderCall(t.name, t.provider, time.Since(start), err)
	if err != nil {
		return nil, t.wrap(callCtx, "transcribe", err)
	}

	result := &types.TranscriptionResult{
		Text:       strings.TrimSpace(resp.Text),
		IsFinal:    true,
		Confidence: clamp01(resp.Confidence),
		Language:   resp.Language,
		Duration:   resp.Duration,
	}
	if result.Language == "" {
		result.Language = t.language()
	}
	if result.Duration == 0 {
		result.Duration = w.Duration()
	}

	t.logger.Debug("transcribed",
		zap.Int("chars", len(result.Text)),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("latency", time.Since(start)))
	return result, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
