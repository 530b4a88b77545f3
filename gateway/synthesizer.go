package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/voicerelay/config"
	"github.com/BaSui01/voicerelay/speech"
	"github.com/BaSui01/voicerelay/types"
	"go.uber.org/zap"
)

// Synthesizer 是语音合成网关，除初始化时的声音参数外无状态
type Synthesizer struct {
	state
	cfg      config.VoiceConfig
	injected speech.TTSProvider

	clientMu sync.RWMutex
	client   speech.TTSProvider
}

// NewSynthesizer 创建语音合成网关
func NewSynthesizer(cfg config.VoiceConfig, creds config.Credentials, logger *zap.Logger, opts ...Option) *Synthesizer {
	o := buildOptions(opts)
	s := &Synthesizer{cfg: cfg, injected: o.tts}
	s.init("synthesizer", cfg.DefaultProvider, types.ErrVoiceSynthesis, cfg.Timeout, creds, logger)
	s.observer = o.observer
	return s
}

// Initialize 校验凭证并构造 TTS 客户端
func (s *Synthesizer) Initialize(ctx context.Context) error {
	key, err := s.apiKey()
	if err != nil {
		return s.finishInit(err)
	}

	provider := s.injected
	if provider == nil {
		switch s.provider {
		case config.ProviderElevenLabs:
			el := s.cfg.Providers.ElevenLabs
			provider = speech.NewElevenLabsProvider(speech.ElevenLabsConfig{
				APIKey:          key,
				BaseURL:         el.BaseURL,
				Model:           el.ModelID,
				VoiceID:         el.VoiceID,
				Stability:       el.Stability,
				SimilarityBoost: el.SimilarityBoost,
				OutputFormat:    el.OutputFormat,
				Timeout:         s.timeout,
			})
		case config.ProviderOpenAI:
			oa := s.cfg.Providers.OpenAI
			provider = speech.NewOpenAITTSProvider(speech.OpenAITTSConfig{
				APIKey:         key,
				BaseURL:        oa.BaseURL,
				Model:          oa.Model,
				Voice:          oa.Voice,
				ResponseFormat: oa.ResponseFormat,
				Speed:          oa.Speed,
				Timeout:        s.timeout,
			})
		default:
			return s.finishInit(types.Errorf(types.ErrConfiguration,
				"unsupported voice provider %q", s.provider).WithStage("initialize"))
		}
	}

	s.clientMu.Lock()
	s.client = provider
	s.clientMu.Unlock()
	return s.finishInit(nil)
}

// Synthesize 将文本合成为音频字节。空文本是调用方错误。
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, types.NewError(types.ErrVoiceSynthesis, "text is empty").
			WithStage("synthesize").WithProvider(s.provider)
	}

	s.clientMu.RLock()
	provider := s.client
	s.clientMu.RUnlock()

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := provider.Synthesize(callCtx, &speech.TTSRequest{Text: text})
	if err == nil && len(resp.Audio) == 0 {
		err = types.NewError(types.ErrVoiceSynthesis, "provider returned no audio").
			WithStage("synthesize").WithProvider(s.provider)
	}
	s.observer.ObserveProviderCall(s.name, s.provider, time.Since(start), err)
	if err != nil {
		return nil, s.wrap(callCtx, "synthesize", err)
	}

	s.logger.Debug("synthesized",
		zap.Int("chars", len(text)),
		zap.Int("bytes", len(resp.Audio)),
		zap.String("format", resp.Format))
	return resp.Audio, nil
}
